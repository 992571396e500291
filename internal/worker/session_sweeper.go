package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/bookinglean/internal/domain"
	"github.com/yourorg/bookinglean/internal/observability/metrics"
)

// SessionSweeper periodically walks the session store, refreshes the
// active-session gauge and removes records whose recorded expiry has
// passed but whose store TTL has not yet fired (the TTL and the
// recorded expiry are set together; a sweep catches clock skew between
// issuer and store).
type SessionSweeper struct {
	sessions domain.SessionRepository
	logger   *slog.Logger
	interval time.Duration
}

// NewSessionSweeper creates a new session sweeper
func NewSessionSweeper(sessions domain.SessionRepository, logger *slog.Logger, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionSweeper{
		sessions: sessions,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the sweep loop. Runs until the context is cancelled.
func (w *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("session sweeper started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SessionSweeper) sweep(ctx context.Context) {
	sessions, err := w.sessions.List(ctx)
	if err != nil {
		w.logger.Error("failed to list sessions",
			slog.String("error", err.Error()),
		)
		return
	}

	now := time.Now()
	live := 0
	for _, s := range sessions {
		if now.Before(s.ExpiresAt) {
			live++
			continue
		}
		if err := w.sessions.Delete(ctx, s.SessionID); err != nil {
			w.logger.Warn("failed to remove expired session",
				slog.String("session_id", s.SessionID),
				slog.String("error", err.Error()),
			)
			continue
		}
		w.logger.Debug("expired session removed", slog.String("session_id", s.SessionID))
	}

	metrics.SetActiveSessions(live)
}
