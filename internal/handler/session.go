package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/bookinglean/internal/domain"
	"github.com/yourorg/bookinglean/internal/security"
	"github.com/yourorg/bookinglean/internal/security/audit"
	"github.com/yourorg/bookinglean/internal/security/middleware"
)

// SessionHandler exposes session introspection and logout. Both require
// a valid bearer token; the JWT middleware has already validated it and
// put the claims on the request context.
type SessionHandler struct {
	sessions domain.SessionRepository
	authz    *security.AuthorizationService
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessions domain.SessionRepository,
	authz *security.AuthorizationService,
	auditLogger *audit.Logger,
	logger *slog.Logger,
) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		sessions: sessions,
		authz:    authz,
		audit:    auditLogger,
		logger:   logger,
	}
}

// SessionResponse describes the caller's live session
type SessionResponse struct {
	SubjectID    string                `json:"subjectId"`
	Role         string                `json:"role"`
	TenantID     string                `json:"tenantId,omitempty"`
	RedirectPath string                `json:"redirectPath"`
	ExpiresAt    string                `json:"expiresAt"`
	Permissions  []security.Permission `json:"permissions"`
}

// Introspect handles GET /api/session
func (h *SessionHandler) Introspect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	session, err := h.sessions.Get(r.Context(), claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Token outlived the stored session (logout elsewhere).
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "session expired"})
			return
		}
		h.logger.Error("session lookup failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		SubjectID:    session.SubjectID,
		Role:         string(session.Role),
		TenantID:     session.TenantID,
		RedirectPath: session.RedirectPath,
		ExpiresAt:    session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		Permissions:  h.authz.GetRolePermissions(session.Role),
	})
}

// Logout handles POST /api/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.sessions.Delete(r.Context(), claims.SessionID); err != nil {
		h.logger.Error("failed to delete session",
			slog.String("session_id", claims.SessionID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	h.audit.LogLogout(r.Context(), claims.TenantID, claims.SubjectID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
