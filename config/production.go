// Package config provides configuration management and environment variable handling for the application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Admin      AdminConfig      `json:"admin"`
	Email      EmailConfig      `json:"email"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Survey     SurveyConfig     `json:"survey"`
	Digest     DigestConfig     `json:"digest"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// DSN returns the key/value connection string used by gorm
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// URL returns the postgres:// form used by the migration runner
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnableCompression bool          `json:"enable_compression"`

	// Client IPs are read from ProxyHeader only on connections from TrustedProxies
	ProxyHeader    string   `json:"proxy_header"`
	TrustedProxies []string `json:"trusted_proxies"` // IPs or CIDRs
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	SubmitRateLimit int           `json:"submit_rate_limit"` // requests per window
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy      string `json:"csp_policy"`
	XFrameOptions  string `json:"x_frame_options"`
	ReferrerPolicy string `json:"referrer_policy"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

// AdminConfig holds the single operator account allowed to read submissions
type AdminConfig struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // bcrypt
}

type EmailConfig struct {
	Provider    string        `json:"provider"` // smtp, mock
	Host        string        `json:"host"`
	Port        int           `json:"port"`
	Username    string        `json:"username"`
	Password    string        `json:"-"`
	FromEmail   string        `json:"from_email"`
	NotifyEmail string        `json:"notify_email"`
	UseTLS      bool          `json:"use_tls"` // implicit TLS (port 465); STARTTLS otherwise
	Timeout     time.Duration `json:"timeout"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled        bool          `json:"enabled"`
	Provider       string        `json:"provider"` // redis, none
	RedisURL       string        `json:"redis_url"`
	RedisDB        int           `json:"redis_db"`
	RedisPrefix    string        `json:"redis_prefix"`
	IdempotencyTTL time.Duration `json:"idempotency_ttl"`
	HealthInterval time.Duration `json:"health_interval"`
	// SweepInterval paces expiry of in-memory idempotency keys when redis is off
	SweepInterval time.Duration `json:"sweep_interval"`
}

// SurveyConfig drives the server-rendered survey page
type SurveyConfig struct {
	APIBaseURL    string        `json:"api_base_url"` // origin the page posts /api/submit against
	SubmitTimeout time.Duration `json:"submit_timeout"`
	FormTTL       time.Duration `json:"form_ttl"`
	MaxOpenForms  int           `json:"max_open_forms"`
	SweepInterval time.Duration `json:"sweep_interval"`
	// PageKey marks the page's own calls to the API; random per process unless set
	PageKey string `json:"-"`
}

// DigestConfig schedules the periodic summary email; an empty CronSpec disables it
type DigestConfig struct {
	CronSpec  string        `json:"cron_spec"`
	Recipient string        `json:"recipient"`
	Window    time.Duration `json:"window"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// IsDevelopment reports whether the service runs in a local/development environment
func (d DeploymentConfig) IsDevelopment() bool {
	switch strings.ToLower(d.Environment) {
	case "development", "local", "test":
		return true
	}
	return false
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// .env never overrides variables already present in the environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "survey"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 20*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", nil),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8080"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			SubmitRateLimit:  getEnvInt("SUBMIT_RATE_LIMIT", 30),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 600),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:        getEnvString("CSP_POLICY", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none';"),
			XFrameOptions:    getEnvString("X_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:   getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 12*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "callback-survey"),
			Audience:       getEnvString("JWT_AUDIENCE", "callback-survey-admin"),
		},
		Admin: AdminConfig{
			Username:     getEnvString("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnvString("ADMIN_PASSWORD_HASH", ""),
		},
		Email: EmailConfig{
			Provider:    getEnvString("EMAIL_PROVIDER", "smtp"),
			Host:        getEnvString("SMTP_HOST", "smtp.gmail.com"),
			Port:        getEnvInt("SMTP_PORT", 465),
			Username:    getEnvString("SMTP_USER", ""),
			Password:    getEnvString("SMTP_PASSWORD", ""),
			FromEmail:   getEnvString("SMTP_FROM", ""),
			NotifyEmail: getEnvString("NOTIFY_EMAIL", ""),
			UseTLS:      getEnvBool("SMTP_USE_TLS", true),
			Timeout:     getEnvDuration("SMTP_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/callback-survey/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:        getEnvBool("CACHE_ENABLED", true),
			Provider:       getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:       getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:        getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:    getEnvString("CACHE_REDIS_PREFIX", "survey:"),
			IdempotencyTTL: getEnvDuration("CACHE_IDEMPOTENCY_TTL", 10*time.Minute),
			HealthInterval: getEnvDuration("CACHE_HEALTH_INTERVAL", 30*time.Second),
			SweepInterval:  getEnvDuration("CACHE_SWEEP_INTERVAL", 1*time.Minute),
		},
		Survey: SurveyConfig{
			APIBaseURL:    getEnvString("SURVEY_API_BASE_URL", "http://127.0.0.1:8080"),
			SubmitTimeout: getEnvDuration("SURVEY_SUBMIT_TIMEOUT", 10*time.Second),
			FormTTL:       getEnvDuration("SURVEY_FORM_TTL", 30*time.Minute),
			MaxOpenForms:  getEnvInt("SURVEY_MAX_OPEN_FORMS", 10000),
			SweepInterval: getEnvDuration("SURVEY_SWEEP_INTERVAL", 1*time.Minute),
			PageKey:       getEnvString("SURVEY_PAGE_KEY", ""),
		},
		Digest: DigestConfig{
			CronSpec:  getEnvString("DIGEST_CRON", ""),
			Recipient: getEnvString("DIGEST_RECIPIENT", ""),
			Window:    getEnvDuration("DIGEST_WINDOW", 24*time.Hour),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Digest mail goes to the notify address unless overridden
	if cfg.Digest.Recipient == "" {
		cfg.Digest.Recipient = cfg.Email.NotifyEmail
	}
	if cfg.Email.FromEmail == "" {
		cfg.Email.FromEmail = cfg.Email.Username
	}
	if cfg.Survey.PageKey == "" {
		key, err := randomKey(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate survey page key: %w", err)
		}
		cfg.Survey.PageKey = key
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func randomKey(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	// Validate JWT configuration
	if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}

	// Validate admin configuration
	if cfg.Admin.Username == "" {
		errors = append(errors, "ADMIN_USERNAME is required")
	}
	if cfg.Admin.PasswordHash == "" {
		errors = append(errors, "ADMIN_PASSWORD_HASH is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	for _, proxy := range cfg.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				errors = append(errors, fmt.Sprintf("SERVER_TRUSTED_PROXIES entry %q is not an IP or CIDR", proxy))
			}
		}
	}

	// Validate email configuration
	switch cfg.Email.Provider {
	case "mock":
	case "smtp":
		if cfg.Email.Host == "" {
			errors = append(errors, "SMTP_HOST is required for smtp provider")
		}
		if cfg.Email.Username == "" {
			errors = append(errors, "SMTP_USER is required for smtp provider")
		}
		if cfg.Email.Password == "" {
			errors = append(errors, "SMTP_PASSWORD is required for smtp provider")
		}
		if cfg.Email.NotifyEmail == "" {
			errors = append(errors, "NOTIFY_EMAIL is required for smtp provider")
		}
	default:
		errors = append(errors, "EMAIL_PROVIDER must be one of: smtp, mock")
	}

	// Validate survey page configuration
	if u, err := url.Parse(cfg.Survey.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, "SURVEY_API_BASE_URL must be an absolute URL")
	}
	if cfg.Survey.SubmitTimeout <= 0 {
		errors = append(errors, "SURVEY_SUBMIT_TIMEOUT must be positive")
	}
	if cfg.Survey.FormTTL <= 0 {
		errors = append(errors, "SURVEY_FORM_TTL must be positive")
	}
	if len(cfg.Survey.PageKey) < 16 {
		errors = append(errors, "SURVEY_PAGE_KEY must be at least 16 characters")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when redis cache is enabled")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	switch cfg.Logging.Output {
	case "stdout", "file", "both":
	default:
		errors = append(errors, "LOG_OUTPUT must be one of: stdout, file, both")
	}

	if cfg.Digest.CronSpec != "" && cfg.Digest.Recipient == "" {
		errors = append(errors, "DIGEST_RECIPIENT or NOTIFY_EMAIL is required when DIGEST_CRON is set")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
