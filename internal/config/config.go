package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"cashcal/internal/log"
)

const minJWTSecretLen = 32

type Config struct {
	// HTTP Server
	Port        string
	FrontendURL string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string

	// AMQP. An empty URL runs projections inline.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google login
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session tokens
	JWTSecret string
	JWTTTL    time.Duration

	// Calendar cache
	CalendarCacheTTL  time.Duration
	CalendarCacheSize int

	RateLimitPerMinute int

	// Projection worker
	ProjectionHorizon  time.Duration
	ProjectionInterval time.Duration

	LogLevel string
}

var validBackends = []string{"memory", "sqlite"}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cashcal.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cashcal"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "projections"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/callback"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),

		CalendarCacheTTL:  getEnvDuration("CALENDAR_CACHE_TTL", 5*time.Minute),
		CalendarCacheSize: getEnvInt("CALENDAR_CACHE_SIZE", 512),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		ProjectionHorizon:  getEnvDuration("PROJECTION_HORIZON", 90*24*time.Hour),
		ProjectionInterval: getEnvDuration("PROJECTION_INTERVAL", time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// GoogleEnabled reports whether Google login is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		errs = append(errs, "GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}
	if c.GoogleEnabled() {
		if u, err := url.Parse(c.GoogleRedirectURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid Google redirect URL '%s'", c.GoogleRedirectURL))
		}
	}

	if u, err := url.Parse(c.FrontendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("invalid frontend URL '%s': must be absolute", c.FrontendURL))
	}

	if len(c.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Sprintf("JWT secret must be at least %d bytes", minJWTSecretLen))
	}
	if c.JWTTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid JWT TTL %v: must be at least 1 minute", c.JWTTTL))
	}

	if c.CalendarCacheTTL < 0 {
		errs = append(errs, fmt.Sprintf("invalid calendar cache TTL %v: must not be negative", c.CalendarCacheTTL))
	}
	if c.CalendarCacheSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid calendar cache size %d: must be at least 1", c.CalendarCacheSize))
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.ProjectionHorizon < 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid projection horizon %v: must be at least 24 hours", c.ProjectionHorizon))
	} else if c.ProjectionHorizon > 5*366*24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid projection horizon %v: must be at most 5 years", c.ProjectionHorizon))
	}
	if c.ProjectionInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid projection interval %v: must be at least 1 second", c.ProjectionInterval))
	} else if c.ProjectionInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid projection interval %v: must be at most 24 hours", c.ProjectionInterval))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
