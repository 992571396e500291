package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yourorg/bookinglean/internal/domain"
	"github.com/yourorg/bookinglean/internal/infrastructure/redis"
)

const sessionKeyPrefix = "session:"

// storedSession is the Redis representation of a resolved session. The
// signed token is never persisted; only its metadata is.
type storedSession struct {
	SessionID    string    `json:"session_id"`
	SubjectID    string    `json:"subject_id"`
	Role         string    `json:"role"`
	TenantID     string    `json:"tenant_id,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	RedirectPath string    `json:"redirect_path"`
}

// SessionRepository implements domain.SessionRepository using Redis.
// Sessions expire via key TTL; Delete covers explicit logout.
type SessionRepository struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(redisClient *redis.Client, logger *slog.Logger) *SessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRepository{redis: redisClient, logger: logger}
}

// Save stores a session with the given TTL
func (r *SessionRepository) Save(ctx context.Context, session *domain.ResolvedSession, ttl time.Duration) error {
	if session.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	data, err := json.Marshal(storedSession{
		SessionID:    session.SessionID,
		SubjectID:    session.SubjectID,
		Role:         string(session.Role),
		TenantID:     session.TenantID,
		IssuedAt:     session.IssuedAt,
		ExpiresAt:    session.ExpiresAt,
		RedirectPath: session.RedirectPath,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.redis.Set(ctx, sessionKeyPrefix+session.SessionID, string(data), ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	r.logger.Debug("session stored",
		slog.String("session_id", session.SessionID),
		slog.String("role", string(session.Role)),
	)
	return nil
}

// Get retrieves a session by ID. Returns domain.ErrNotFound for missing
// or expired sessions.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*domain.ResolvedSession, error) {
	data, err := r.redis.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return unmarshalSession([]byte(data))
}

// Delete removes a session (logout)
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.redis.Delete(ctx, sessionKeyPrefix+sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns all live sessions
func (r *SessionRepository) List(ctx context.Context) ([]*domain.ResolvedSession, error) {
	keys, err := r.redis.Keys(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*domain.ResolvedSession, 0, len(keys))
	for _, key := range keys {
		data, err := r.redis.Get(ctx, key)
		if err != nil {
			// Expired between KEYS and GET; skip.
			if errors.Is(err, goredis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to read session %s: %w", key, err)
		}
		s, err := unmarshalSession([]byte(data))
		if err != nil {
			r.logger.Warn("skipping unreadable session record",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// ListByTenant returns all live sessions scoped to one tenant
func (r *SessionRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.ResolvedSession, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.ResolvedSession
	for _, s := range all {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func unmarshalSession(data []byte) (*domain.ResolvedSession, error) {
	var s storedSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &domain.ResolvedSession{
		SessionID:    s.SessionID,
		SubjectID:    s.SubjectID,
		Role:         domain.Role(s.Role),
		TenantID:     s.TenantID,
		IssuedAt:     s.IssuedAt,
		ExpiresAt:    s.ExpiresAt,
		RedirectPath: s.RedirectPath,
	}, nil
}
