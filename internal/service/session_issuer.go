package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/bookinglean/internal/domain"
	"github.com/yourorg/bookinglean/internal/observability/metrics"
	"github.com/yourorg/bookinglean/internal/security/auth"
)

// Canonical landing paths per role. The mapping is total over the four
// roles; an unmapped role is a programming error, never a runtime
// fallback.
const (
	redirectSuperAdmin  = "/platform/admin"
	redirectTenantAdmin = "/dashboard"
	redirectStaff       = "/staff"
	redirectCustomer    = "/profile"
)

// RedirectPath returns the canonical landing path for a role. Every
// known role maps to exactly one non-empty path; an unknown role is an
// error, not a default landing.
func RedirectPath(role domain.Role) (string, error) {
	switch role {
	case domain.RoleSuperAdmin:
		return redirectSuperAdmin, nil
	case domain.RoleTenantAdmin:
		return redirectTenantAdmin, nil
	case domain.RoleStaff:
		return redirectStaff, nil
	case domain.RoleCustomer:
		return redirectCustomer, nil
	}
	return "", fmt.Errorf("no redirect mapped for role %q", role)
}

// SessionIssuer turns an authenticated identity into a resolved session:
// a signed token, a persisted session record and the role's landing path.
type SessionIssuer struct {
	tokens     *auth.TokenManager
	sessions   domain.SessionRepository
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewSessionIssuer creates a new session issuer
func NewSessionIssuer(tokens *auth.TokenManager, sessions domain.SessionRepository, sessionTTL time.Duration, logger *slog.Logger) *SessionIssuer {
	if logger == nil {
		logger = slog.Default()
	}
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	return &SessionIssuer{
		tokens:     tokens,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// Issue creates a role-scoped session for a verified identity. Called
// only after secret verification and the tenant membership re-check have
// both passed.
func (i *SessionIssuer) Issue(ctx context.Context, record *domain.IdentityRecord) (*domain.ResolvedSession, error) {
	redirect, err := RedirectPath(record.Role)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &domain.ResolvedSession{
		SessionID:    uuid.NewString(),
		SubjectID:    record.SubjectID,
		Role:         record.Role,
		TenantID:     record.TenantID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(i.sessionTTL),
		RedirectPath: redirect,
	}

	token, err := i.tokens.GenerateToken(session.SessionID, record.SubjectID, record.Role, record.TenantID, i.sessionTTL)
	if err != nil {
		i.logger.Error("failed to sign session token",
			slog.String("subject_id", record.SubjectID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	session.Token = token

	if err := i.sessions.Save(ctx, session, i.sessionTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	metrics.ObserveSessionIssued(string(record.Role))
	i.logger.Info("session issued",
		slog.String("session_id", session.SessionID),
		slog.String("subject_id", record.SubjectID),
		slog.String("role", string(record.Role)),
		slog.String("tenant_id", record.TenantID),
	)
	return session, nil
}
