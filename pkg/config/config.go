package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	RedisURL           string
	DatabaseHost       string
	DatabasePort       int
	DatabaseUser       string
	DatabasePassword   string
	DatabaseName       string
	DatabaseSSLMode    string
	JWTSecret          string
	SessionTTL         time.Duration
	LookupTimeout      time.Duration
	TenantCacheTTL     time.Duration
	SweepInterval      time.Duration
	LoginMaxAttempts   int
	LoginWindow        time.Duration
	LogLevel           string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DATABASE_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_PORT: %w", err)
	}

	sessionTTLMin, err := strconv.Atoi(getEnv("SESSION_TTL_MINUTES", "720"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL_MINUTES: %w", err)
	}

	lookupTimeoutMS, err := strconv.Atoi(getEnv("DIRECTORY_LOOKUP_TIMEOUT_MS", "3000"))
	if err != nil {
		return nil, fmt.Errorf("invalid DIRECTORY_LOOKUP_TIMEOUT_MS: %w", err)
	}

	tenantCacheSec, err := strconv.Atoi(getEnv("TENANT_CACHE_TTL_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid TENANT_CACHE_TTL_SECONDS: %w", err)
	}

	sweepIntervalMin, err := strconv.Atoi(getEnv("SESSION_SWEEP_INTERVAL_MINUTES", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_SWEEP_INTERVAL_MINUTES: %w", err)
	}

	loginMaxAttempts, err := strconv.Atoi(getEnv("LOGIN_MAX_ATTEMPTS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_MAX_ATTEMPTS: %w", err)
	}

	loginWindowSec, err := strconv.Atoi(getEnv("LOGIN_WINDOW_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_WINDOW_SECONDS: %w", err)
	}

	return &Config{
		Environment:      getEnv("ENVIRONMENT", "development"),
		ServerPort:       port,
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
		DatabaseHost:     getEnv("DATABASE_HOST", "localhost"),
		DatabasePort:     dbPort,
		DatabaseUser:     getEnv("DATABASE_USER", "bookinglean"),
		DatabasePassword: getEnv("DATABASE_PASSWORD", "dev"),
		DatabaseName:     getEnv("DATABASE_NAME", "bookinglean"),
		DatabaseSSLMode:  getEnv("DATABASE_SSLMODE", "disable"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		SessionTTL:       time.Duration(sessionTTLMin) * time.Minute,
		LookupTimeout:    time.Duration(lookupTimeoutMS) * time.Millisecond,
		TenantCacheTTL:   time.Duration(tenantCacheSec) * time.Second,
		SweepInterval:    time.Duration(sweepIntervalMin) * time.Minute,
		LoginMaxAttempts: loginMaxAttempts,
		LoginWindow:      time.Duration(loginWindowSec) * time.Second,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
