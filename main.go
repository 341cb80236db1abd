// Package main provides the main entry point for the callback survey service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/callback-survey/app/handlers"
	applogger "github.com/amirphl/callback-survey/app/logger"
	"github.com/amirphl/callback-survey/app/middleware"
	"github.com/amirphl/callback-survey/app/router"
	"github.com/amirphl/callback-survey/app/scheduler"
	"github.com/amirphl/callback-survey/app/services"
	"github.com/amirphl/callback-survey/app/surveyform"
	businessflow "github.com/amirphl/callback-survey/business_flow"
	"github.com/amirphl/callback-survey/config"
	"github.com/amirphl/callback-survey/migrations"
	"github.com/amirphl/callback-survey/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router *router.FiberRouter
	config *config.ProductionConfig
	server *fiber.App
	stops  cleanup
}

// cleanup releases started resources in reverse order of acquisition
type cleanup []func()

func (c *cleanup) add(f func()) {
	*c = append(*c, f)
}

func (c *cleanup) run() {
	for i := len(*c) - 1; i >= 0; i-- {
		(*c)[i]()
	}
	*c = nil
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	closer := applogger.Init(cfg.Logging, cfg.Deployment.Environment)
	defer closer.Close()

	applogger.Log.WithFields(logrus.Fields{
		"version": cfg.Deployment.Version,
		"commit":  cfg.Deployment.CommitHash,
	}).Info("Starting callback survey service")

	app, err := initializeApplication(cfg)
	if err != nil {
		applogger.Log.WithError(err).Fatal("Failed to initialize application")
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			applogger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-sigChan
	applogger.Log.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting requests before the workers they depend on go away
	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		applogger.Log.WithError(err).Error("Error during shutdown")
	}

	app.stops.run()

	applogger.Log.Info("Server stopped")
}

// initializeDatabase opens the connection pool and applies pending migrations
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.AutoMigrate {
		if err := migrations.Run(cfg.URL(), "up"); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		applogger.Log.Info("Database migrations applied")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(
			log.New(applogger.Writer(logrus.WarnLevel), "", 0),
			gormlogger.Config{
				SlowThreshold:             500 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlDB.Close()
		}
	}()

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	applogger.Log.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("Database connection established")

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	applogger.Log.WithField("db", cfg.RedisDB).Info("Redis connection established")
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					applogger.Log.WithError(err).Warn("Redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationService picks the email provider from configuration
func initializeNotificationService(cfg *config.ProductionConfig) services.NotificationService {
	var emailProvider services.EmailProvider
	switch cfg.Email.Provider {
	case "mock":
		emailProvider = services.NewMockEmailProvider()
	default:
		emailProvider = services.NewSMTPEmailProvider(
			cfg.Email.Host,
			cfg.Email.Port,
			cfg.Email.Username,
			cfg.Email.Password,
			cfg.Email.FromEmail,
			cfg.Email.UseTLS,
			cfg.Email.Timeout,
		)
	}
	return services.NewNotificationService(emailProvider, cfg.Email.NotifyEmail)
}

// initializeIdempotencyStore uses Redis when it is available so keys survive
// restarts. The in-memory fallback is swept until the returned stop is called.
func initializeIdempotencyStore(cfg config.CacheConfig, rc *redis.Client) (services.IdempotencyStore, func()) {
	if rc != nil {
		return services.NewRedisIdempotencyStore(rc, cfg.RedisPrefix, cfg.IdempotencyTTL), func() {}
	}
	applogger.Log.Warn("Redis disabled; idempotency keys are kept in memory")
	store := services.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	return store, store.StartSweeper(context.Background(), cfg.SweepInterval)
}

// initializeApplication opens the database and cache, then wires everything on top
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stops cleanup

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	stops.add(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		stops.run()
		return nil, err
	}
	if rc != nil {
		stops.add(func() { _ = rc.Close() })
		stops.add(startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval))
	}

	return assembleApplication(cfg, db, rc, stops)
}

// assembleApplication builds services, flows and the router. On error every
// resource in stops, and everything started here, is released.
func assembleApplication(cfg *config.ProductionConfig, db *gorm.DB, rc *redis.Client, stops cleanup) (_ *Application, err error) {
	defer func() {
		if err != nil {
			stops.run()
		}
	}()

	// Repositories
	submissionRepo := repository.NewSurveySubmissionRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Services
	notificationService := initializeNotificationService(cfg)
	idempotencyStore, stopSweep := initializeIdempotencyStore(cfg.Cache, rc)
	stops.add(stopSweep)

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	// Flows
	surveyFlow := businessflow.NewSurveyFlow(submissionRepo, notificationService, idempotencyStore).
		WithAuditLog(auditRepo).
		WithSnapshotReads(db)
	adminAuthFlow := businessflow.NewAdminAuthFlow(
		businessflow.AdminCredentials{
			Username:     cfg.Admin.Username,
			PasswordHash: cfg.Admin.PasswordHash,
		},
		tokenService,
		auditRepo,
	)

	// Server-rendered forms submit through the public API
	registry := surveyform.NewRegistry(
		surveyform.NewClient(cfg.Survey.APIBaseURL, cfg.Survey.SubmitTimeout).WithPageKey(cfg.Survey.PageKey),
		cfg.Survey.FormTTL,
		cfg.Survey.MaxOpenForms,
		surveyform.WithLogger(applogger.Log.WithField("component", "survey_form")),
	)
	stops.add(registry.StartSweeper(context.Background(), cfg.Survey.SweepInterval))

	appRouter := router.NewFiberRouter(cfg, router.Handlers{
		Page:   handlers.NewSurveyPageHandler(registry, cfg.Survey.SubmitTimeout),
		Survey: handlers.NewSurveyHandler(surveyFlow),
		Admin:  handlers.NewAdminHandler(adminAuthFlow),
		Auth:   middleware.NewAuthMiddleware(tokenService),
	})

	if cfg.Digest.CronSpec != "" {
		digest := scheduler.NewDigestScheduler(submissionRepo, notificationService, cfg.Digest.CronSpec, cfg.Digest.Recipient, cfg.Digest.Window)
		stopDigest, err := digest.Start()
		if err != nil {
			return nil, fmt.Errorf("failed to start digest scheduler: %w", err)
		}
		stops.add(stopDigest)
	}

	return &Application{
		router: appRouter,
		config: cfg,
		server: appRouter.GetApp(),
		stops:  stops,
	}, nil
}
