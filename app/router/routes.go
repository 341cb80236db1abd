// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/amirphl/callback-survey/app/dto"
	"github.com/amirphl/callback-survey/app/handlers"
	applogger "github.com/amirphl/callback-survey/app/logger"
	"github.com/amirphl/callback-survey/app/middleware"
	"github.com/amirphl/callback-survey/config"
	"github.com/amirphl/callback-survey/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	serviceName = "callback-survey"
	healthPath  = "/api/health"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups everything the router mounts
type Handlers struct {
	Page   handlers.SurveyPageHandlerInterface
	Survey handlers.SurveyHandlerInterface
	Admin  handlers.AdminHandlerInterface
	Auth   *middleware.AuthMiddleware
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	cfg      *config.ProductionConfig
	handlers Handlers
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, h Handlers) *FiberRouter {
	app := fiber.New(fiber.Config{
		AppName:      "Callback Survey",
		ServerHeader: "callback-survey",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
	})

	return &FiberRouter{
		app:      app,
		cfg:      cfg,
		handlers: h,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	applogger.Log.Info("Setting up routes...")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Survey page
	r.app.Get("/", r.handlers.Page.Show)
	r.app.Post("/", r.rateLimiter(r.cfg.Security.SubmitRateLimit, nil), r.handlers.Page.Post)

	api := r.app.Group("/api")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// The survey page posts to the API from this process with the page key;
	// its users are already limited on POST /
	fromSelf := func(c fiber.Ctx) bool {
		return r.isPageRequest(c)
	}

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) bool {
		return c.Path() == healthPath || fromSelf(c)
	}))

	api.Post("/submit", r.rateLimiter(r.cfg.Security.SubmitRateLimit, fromSelf), r.handlers.Survey.Submit)
	api.Post("/admin/login", r.rateLimiter(r.cfg.Security.SubmitRateLimit, nil), r.handlers.Admin.Login)

	// Operator endpoints
	submissions := api.Group("/submissions", r.handlers.Auth.AdminAuthenticate())
	submissions.Get("/", r.handlers.Survey.ListSubmissions)
	submissions.Get("/export", r.handlers.Survey.ExportSubmissions)
	submissions.Get("/:ref", r.handlers.Survey.GetSubmission)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	applogger.Log.Info("Routes configured successfully")
}

// SetupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			applogger.Log.WithFields(logrus.Fields{
				"event":      "panic",
				"request_id": requestid.FromContext(c),
				"error":      e,
				"path":       c.Path(),
				"method":     c.Method(),
				"ip":         c.IP(),
			}).Error("Recovered from panic")
		},
	}))

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                31536000, // 1 year
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	if len(r.cfg.Security.AllowedOrigins) > 0 {
		r.app.Use(cors.New(cors.Config{
			AllowOrigins: r.cfg.Security.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders: []string{
				"Origin",
				"Content-Type",
				"Accept",
				"Authorization",
				"X-Request-ID",
				utils.IdempotencyKeyHeader,
			},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: r.cfg.Security.AllowCredentials,
			MaxAge:           r.cfg.Security.CORSMaxAge,
		}))
	}

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// exports are already zip compressed
				return strings.HasSuffix(c.Path(), "/export")
			},
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Stream:     applogger.Log.Out,
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath
			},
		}))
	}
}

// rateLimiter limits requests per client IP over the configured window. A
// non-positive max disables it.
func (r *FiberRouter) rateLimiter(max int, skip func(fiber.Ctx) bool) fiber.Handler {
	if max <= 0 {
		return func(c fiber.Ctx) error { return c.Next() }
	}
	window := r.cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: skip,
	})
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	applogger.Log.WithField("address", address).Info("Starting server")
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"service":   serviceName,
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
			errorCode = "REQUEST_ERROR"
		}
	}

	applogger.Log.WithError(err).WithFields(logrus.Fields{
		"status":     code,
		"path":       c.Path(),
		"request_id": requestid.FromContext(c),
	}).Error("Request failed")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func (r *FiberRouter) isPageRequest(c fiber.Ctx) bool {
	key := r.cfg.Survey.PageKey
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Get(utils.PageKeyHeader)), []byte(key)) == 1
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
