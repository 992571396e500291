package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/bookinglean/internal/infrastructure/redis"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db          *sql.DB
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, redisClient *redis.Client, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
		logger:      logger,
	}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /healthz - simple liveness check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz - readiness check over both identity stores'
// backing services
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)

	dbOK := false
	if h.db != nil {
		if err := h.db.PingContext(ctx); err == nil {
			checks["postgres"] = "ok"
			dbOK = true
		} else {
			checks["postgres"] = "error: " + err.Error()
		}
	} else {
		checks["postgres"] = "not configured"
	}

	redisOK := false
	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx); err == nil {
			checks["redis"] = "ok"
			redisOK = true
		} else {
			checks["redis"] = "error: " + err.Error()
		}
	} else {
		checks["redis"] = "not configured"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !dbOK || !redisOK {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadinessResponse{Status: status, Checks: checks})

	h.logger.Info("readiness check",
		slog.String("status", status),
		slog.String("postgres", checks["postgres"]),
		slog.String("redis", checks["redis"]),
	)
}
