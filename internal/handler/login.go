package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/bookinglean/internal/domain"
	"github.com/yourorg/bookinglean/internal/service"
	"github.com/yourorg/bookinglean/pkg/cache"
)

// flowTTL bounds how long an abandoned login flow is kept before the
// registry forgets it. Abandonment needs no compensating action; no
// session exists until authentication succeeds.
const flowTTL = 10 * time.Minute

// IdentifyRequest starts a login flow
type IdentifyRequest struct {
	Identifier string `json:"identifier"`
	TenantSlug string `json:"tenantSlug"`
}

// IdentifyResponse reports the flow stage and, when a candidate was
// matched, its summary. The response shape is identical for "no match
// in either store" and "no match in one store": nothing reveals which
// directory was searched.
type IdentifyResponse struct {
	FlowID    string                    `json:"flowId"`
	Stage     string                    `json:"stage"`
	Candidate *service.CandidateSummary `json:"candidate,omitempty"`
}

// AuthenticateRequest submits the secret for a pending flow
type AuthenticateRequest struct {
	FlowID string `json:"flowId"`
	Secret string `json:"secret"`
}

// AuthenticateResponse carries the resolved session on success
type AuthenticateResponse struct {
	Success      bool      `json:"success"`
	Token        string    `json:"token,omitempty"`
	RedirectPath string    `json:"redirectPath,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`
}

// ResetRequest abandons a pending candidate ("not you?")
type ResetRequest struct {
	FlowID string `json:"flowId"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoginHandler exposes the login orchestration flow over HTTP. Pending
// flows live in a short-TTL registry keyed by an opaque flow ID; each
// flow belongs to exactly one interactive login attempt.
type LoginHandler struct {
	logins *service.LoginService
	flows  *cache.Cache
	logger *slog.Logger
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(logins *service.LoginService, logger *slog.Logger) *LoginHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginHandler{
		logins: logins,
		flows:  cache.New(),
		logger: logger,
	}
}

// Identify handles POST /api/login/identify
func (h *LoginHandler) Identify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode identify request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
		return
	}

	flow := h.logins.NewFlow()
	result, err := flow.Identify(r.Context(), req.Identifier, req.TenantSlug)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}

	flowID := uuid.NewString()
	if result.Stage == service.StageAuthenticate {
		h.flows.Set("flow:"+flowID, flow, flowTTL)
	}

	writeJSON(w, http.StatusOK, IdentifyResponse{
		FlowID:    flowID,
		Stage:     string(result.Stage),
		Candidate: result.Candidate,
	})
}

// Authenticate handles POST /api/login/authenticate
func (h *LoginHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
		return
	}
	if req.FlowID == "" || req.Secret == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "flowId and secret are required"})
		return
	}

	flow, ok := h.getFlow(req.FlowID)
	if !ok {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "login flow expired, start again"})
		return
	}

	session, err := flow.Authenticate(r.Context(), req.Secret)
	if err != nil {
		if errors.Is(err, domain.ErrCrossTenantCandidate) {
			// Candidate no longer valid; force the client back to identify.
			h.flows.Delete("flow:" + req.FlowID)
		}
		h.writeFlowError(w, err)
		return
	}

	h.flows.Delete("flow:" + req.FlowID)
	writeJSON(w, http.StatusOK, AuthenticateResponse{
		Success:      true,
		Token:        session.Token,
		RedirectPath: session.RedirectPath,
		ExpiresAt:    session.ExpiresAt,
	})
}

// Reset handles POST /api/login/reset
func (h *LoginHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
		return
	}

	// Dropping the flow is the reset; a repeated or unknown flow ID is a
	// no-op, matching reset's idempotence.
	if req.FlowID != "" {
		h.flows.Delete("flow:" + req.FlowID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"stage": string(service.StageIdentify)})
}

func (h *LoginHandler) getFlow(flowID string) (*service.LoginFlow, bool) {
	v, ok := h.flows.Get("flow:" + flowID)
	if !ok {
		return nil, false
	}
	flow, ok := v.(*service.LoginFlow)
	return flow, ok
}

// writeFlowError maps flow errors to enumeration-safe responses. A
// failed lookup never reveals whether the identifier exists or which
// store was searched.
func (h *LoginHandler) writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyIdentifier):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "identifier is required"})
	case errors.Is(err, domain.ErrTenantNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown salon"})
	case errors.Is(err, domain.ErrSecretMismatch), errors.Is(err, domain.ErrCrossTenantCandidate):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	case errors.Is(err, domain.ErrDirectoryUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "temporarily unavailable, try again"})
	case errors.Is(err, domain.ErrFlowState), errors.Is(err, domain.ErrNoCandidate):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "login flow expired, start again"})
	default:
		h.logger.Error("login flow error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
