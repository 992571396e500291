package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourorg/bookinglean/internal/featureflags"
	"github.com/yourorg/bookinglean/internal/handler"
	"github.com/yourorg/bookinglean/internal/infrastructure/logger"
	"github.com/yourorg/bookinglean/internal/infrastructure/redis"
	"github.com/yourorg/bookinglean/internal/observability/metrics"
	"github.com/yourorg/bookinglean/internal/observability/tracing"
	"github.com/yourorg/bookinglean/internal/repository"
	"github.com/yourorg/bookinglean/internal/security"
	"github.com/yourorg/bookinglean/internal/security/audit"
	"github.com/yourorg/bookinglean/internal/security/auth"
	"github.com/yourorg/bookinglean/internal/security/middleware"
	"github.com/yourorg/bookinglean/internal/security/ratelimit"
	"github.com/yourorg/bookinglean/internal/service"
	"github.com/yourorg/bookinglean/internal/worker"
	"github.com/yourorg/bookinglean/pkg/config"
	"github.com/yourorg/bookinglean/pkg/database"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting BookingLean server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "bookinglean", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Initialize Redis client
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	// 5. Initialize Postgres connection pool
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DatabaseHost,
		Port:     cfg.DatabasePort,
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}, log)
	if err != nil {
		log.Error("failed to connect to Postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	db := pool.GetDB()

	// 6. Initialize directories and repositories. Directory lookups go
	// through the resilient wrappers; a tripped breaker surfaces as
	// directory-unavailable, never as a silent fallback.
	staffDir := repository.NewResilientStaffDirectory(
		repository.NewPostgresStaffDirectory(db, cfg.LookupTimeout, log), log)
	customerDir := repository.NewResilientCustomerDirectory(
		repository.NewPostgresCustomerDirectory(db, cfg.LookupTimeout, log), log)
	tenantDir := repository.NewPostgresTenantDirectory(db, cfg.LookupTimeout, log)
	sessionRepo := repository.NewSessionRepository(redisClient, log)

	// 7. Initialize services
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "bookinglean")
	tenantResolver := service.NewTenantResolver(tenantDir, cfg.TenantCacheTTL, log)
	sessionIssuer := service.NewSessionIssuer(tokenManager, sessionRepo, cfg.SessionTTL, log)
	auditLogger := audit.NewLogger(log)
	loginService := service.NewLoginService(
		staffDir,
		customerDir,
		tenantResolver,
		auth.NewBcryptVerifier(),
		sessionIssuer,
		auditLogger,
		log,
	)
	authzService := security.NewAuthorizationService(log)

	// 8. Initialize handlers
	loginHandler := handler.NewLoginHandler(loginService, log)
	sessionHandler := handler.NewSessionHandler(sessionRepo, authzService, auditLogger, log)
	healthHandler := handler.NewHealthHandler(db, redisClient, log)

	// 9. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/identify", loginHandler.Identify)
	mux.HandleFunc("POST /api/login/authenticate", loginHandler.Authenticate)
	mux.HandleFunc("POST /api/login/reset", loginHandler.Reset)
	mux.HandleFunc("GET /api/session", sessionHandler.Introspect)
	mux.HandleFunc("POST /api/logout", sessionHandler.Logout)
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// 9a. Initialize rate limiter for the login endpoints
	rateLimiter := ratelimit.NewLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow)

	// Chain middleware: request ID -> JWT -> login rate limit -> content type -> metrics -> tracing -> CORS
	rootHandler := withRequestID(
		middleware.JWTMiddleware(tokenManager, log)(
			middleware.LoginRateLimitMiddleware(rateLimiter, cfg.LoginMaxAttempts, cfg.LoginWindow, log)(
				middleware.ValidateJSONContentType(log)(
					metrics.HTTPMetricsMiddleware(
						otelhttp.NewHandler(handlerWithCORS, "bookinglean"),
					),
				),
			),
		),
		log,
	)

	// 10. Start session sweeper in background
	if !featureflags.Enabled("DISABLE_SESSION_SWEEPER") {
		sweeper := worker.NewSessionSweeper(sessionRepo, log, cfg.SweepInterval)
		go sweeper.Start(ctx)
	} else {
		log.Info("session sweeper disabled by feature flag")
	}

	// 11. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("login_rate_limit", cfg.LoginMaxAttempts),
		slog.Duration("login_rate_window", cfg.LoginWindow),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop session sweeper
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
