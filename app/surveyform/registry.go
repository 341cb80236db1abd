package surveyform

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/callback-survey/utils"
	"github.com/google/uuid"
)

// AlertBuffer collects alerts so a request handler can render them
type AlertBuffer struct {
	mu      sync.Mutex
	pending []string
}

func (b *AlertBuffer) Alert(message string) {
	b.mu.Lock()
	b.pending = append(b.pending, message)
	b.mu.Unlock()
}

// Drain returns and clears the pending alerts
func (b *AlertBuffer) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

// Session pairs a form with the buffer its alerts land in
type Session struct {
	Form   *Form
	Alerts *AlertBuffer

	lastSeen time.Time
}

// Registry keeps the forms of open browser pages, keyed by form id, so that
// repeated posts from one page share a single in-flight guard. Idle sessions
// expire after the TTL.
type Registry struct {
	submitter Submitter
	ttl       time.Duration
	capacity  int
	opts      []Option
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry whose forms submit through submitter
func NewRegistry(submitter Submitter, ttl time.Duration, capacity int, opts ...Option) *Registry {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Registry{
		submitter: submitter,
		ttl:       ttl,
		capacity:  capacity,
		opts:      opts,
		now:       utils.UTCNow,
		sessions:  make(map[string]*Session),
	}
}

// NewID returns a fresh form id
func NewID() string {
	return uuid.New().String()
}

// Open returns the session for id, creating it when absent or expired.
// Ids that are not UUIDs are replaced by a fresh one.
func (r *Registry) Open(id string) *Session {
	if _, err := uuid.Parse(id); err != nil {
		id = NewID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if s, ok := r.sessions[id]; ok && now.Sub(s.lastSeen) <= r.ttl {
		s.lastSeen = now
		return s
	}

	if len(r.sessions) >= r.capacity {
		r.sweepLocked(now)
		r.evictOldestLocked(len(r.sessions) - r.capacity + 1)
	}

	alerts := &AlertBuffer{}
	s := &Session{
		Form:     New(id, r.submitter, alerts, r.opts...),
		Alerts:   alerts,
		lastSeen: now,
	}
	r.sessions[id] = s
	return s
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops expired sessions and returns how many were removed
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.now())
}

// StartSweeper runs Sweep on an interval until the returned stop function is called
func (r *Registry) StartSweeper(parent context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
	return cancel
}

func (r *Registry) sweepLocked(now time.Time) int {
	removed := 0
	for id, s := range r.sessions {
		// Never drop a form with a request outstanding
		if now.Sub(s.lastSeen) > r.ttl && !s.Form.State().Submitting() {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) evictOldestLocked(n int) {
	if n <= 0 {
		return
	}
	type aged struct {
		id   string
		seen time.Time
	}
	all := make([]aged, 0, len(r.sessions))
	for id, s := range r.sessions {
		if s.Form.State().Submitting() {
			continue
		}
		all = append(all, aged{id: id, seen: s.lastSeen})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seen.Before(all[j].seen) })
	for i := 0; i < n && i < len(all); i++ {
		delete(r.sessions, all[i].id)
	}
}
