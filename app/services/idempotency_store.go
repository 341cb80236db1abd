package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/amirphl/callback-survey/utils"
	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// IdempotencyStore claims idempotency keys so that concurrent requests with the
// same key are processed once
type IdempotencyStore interface {
	// Acquire claims key; false means another request holds or completed it
	Acquire(ctx context.Context, key string) (bool, error)
	// Complete records the id produced for a claimed key
	Complete(ctx context.Context, key string, id uint) error
	// Lookup returns the recorded id, or 0 while the key is pending or unknown
	Lookup(ctx context.Context, key string) (uint, error)
	// Release drops a claim whose request failed
	Release(ctx context.Context, key string) error
}

// RedisIdempotencyStore keeps claims in Redis with SETNX and a TTL
type RedisIdempotencyStore struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisIdempotencyStore(rc *redis.Client, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rc: rc, prefix: prefix, ttl: ttl}
}

func (s *RedisIdempotencyStore) key(k string) string {
	return s.prefix + "idem:" + k
}

func (s *RedisIdempotencyStore) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := s.rc.SetNX(ctx, s.key(key), pendingMarker, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, id uint) error {
	if err := s.rc.Set(ctx, s.key(key), strconv.FormatUint(uint64(id), 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record idempotency key: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Lookup(ctx context.Context, key string) (uint, error) {
	v, err := s.rc.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if v == pendingMarker {
		return 0, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt idempotency value %q: %w", v, err)
	}
	return uint(id), nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rc.Del(ctx, s.key(key)).Err()
}

// MemoryIdempotencyStore is the single-process store used when Redis is disabled
type MemoryIdempotencyStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryClaim
}

type memoryClaim struct {
	id      uint
	expires time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		ttl:     ttl,
		now:     utils.UTCNow,
		entries: make(map[string]memoryClaim),
	}
}

func (s *MemoryIdempotencyStore) live(key string) (memoryClaim, bool) {
	c, ok := s.entries[key]
	if ok && !s.now().Before(c.expires) {
		delete(s.entries, key)
		return memoryClaim{}, false
	}
	return c, ok
}

func (s *MemoryIdempotencyStore) Acquire(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = memoryClaim{expires: s.now().Add(s.ttl)}
	return true, nil
}

func (s *MemoryIdempotencyStore) Complete(ctx context.Context, key string, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryClaim{id: id, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Lookup(ctx context.Context, key string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, _ := s.live(key)
	return c.id, nil
}

func (s *MemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep drops every expired claim and returns how many were removed
func (s *MemoryIdempotencyStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, c := range s.entries {
		if !now.Before(c.expires) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of claims held, expired or not
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartSweeper runs Sweep every interval until ctx is done or the returned
// stop function is called
func (s *MemoryIdempotencyStore) StartSweeper(ctx context.Context, interval time.Duration) func() {
	if interval <= 0 {
		interval = time.Minute
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
	return cancel
}
