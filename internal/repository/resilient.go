package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yourorg/bookinglean/internal/domain"
	"github.com/yourorg/bookinglean/internal/reliability/circuitbreaker"
	"github.com/yourorg/bookinglean/internal/reliability/retry"
)

// ResilientStaffDirectory wraps a StaffDirectory with retry and a circuit
// breaker. Lookups are read-only and idempotent, so transient failures
// are retried; a tripped breaker fast-fails as ErrDirectoryUnavailable
// without touching the store. Not-found results never count as failures.
type ResilientStaffDirectory struct {
	inner    domain.StaffDirectory
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg *retry.Config
	logger   *slog.Logger
}

// NewResilientStaffDirectory wraps a staff directory adapter
func NewResilientStaffDirectory(inner domain.StaffDirectory, logger *slog.Logger) *ResilientStaffDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientStaffDirectory{
		inner:    inner,
		breaker:  circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second),
		retryCfg: lookupRetryConfig(),
		logger:   logger,
	}
}

func (d *ResilientStaffDirectory) Lookup(ctx context.Context, email, tenantID string) (*domain.IdentityRecord, error) {
	return guarded(ctx, d.breaker, d.retryCfg, d.logger, "staff_lookup", func(ctx context.Context) (*domain.IdentityRecord, error) {
		return d.inner.Lookup(ctx, email, tenantID)
	})
}

func (d *ResilientStaffDirectory) AssertMembership(ctx context.Context, subjectID, tenantID string) error {
	_, err := guarded(ctx, d.breaker, d.retryCfg, d.logger, "staff_membership", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.inner.AssertMembership(ctx, subjectID, tenantID)
	})
	return err
}

// ResilientCustomerDirectory wraps a CustomerDirectory the same way. Each
// directory has its own breaker so one store being down never degrades
// the other.
type ResilientCustomerDirectory struct {
	inner    domain.CustomerDirectory
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg *retry.Config
	logger   *slog.Logger
}

// NewResilientCustomerDirectory wraps a customer directory adapter
func NewResilientCustomerDirectory(inner domain.CustomerDirectory, logger *slog.Logger) *ResilientCustomerDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientCustomerDirectory{
		inner:    inner,
		breaker:  circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second),
		retryCfg: lookupRetryConfig(),
		logger:   logger,
	}
}

func (d *ResilientCustomerDirectory) Lookup(ctx context.Context, ident, tenantID string) (*domain.IdentityRecord, error) {
	return guarded(ctx, d.breaker, d.retryCfg, d.logger, "customer_lookup", func(ctx context.Context) (*domain.IdentityRecord, error) {
		return d.inner.Lookup(ctx, ident, tenantID)
	})
}

// lookupRetryConfig keeps retries short: a login flow is interactive and
// the total budget must stay well under the caller's patience.
func lookupRetryConfig() *retry.Config {
	return &retry.Config{
		MaxAttempts:       2,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        200 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// guarded runs one directory operation under the breaker and retry
// policy. Only ErrDirectoryUnavailable counts as a breaker failure;
// not-found, tenant-scope and cross-tenant results are terminal and
// returned as-is.
func guarded[T any](
	ctx context.Context,
	breaker *circuitbreaker.CircuitBreaker,
	cfg *retry.Config,
	logger *slog.Logger,
	op string,
	fn retry.Retryable[T],
) (T, error) {
	var zero T
	if !breaker.AllowRequest() {
		return zero, domain.ErrDirectoryUnavailable
	}

	// Terminal results (not-found, cross-tenant, missing scope) end the
	// retry loop immediately; they are answers, not failures.
	var terminal error
	result, err := retry.Do(ctx, cfg, logger, op, func(ctx context.Context) (T, error) {
		out, err := fn(ctx)
		if err != nil && !errors.Is(err, domain.ErrDirectoryUnavailable) {
			terminal = err
			return out, nil
		}
		return out, err
	})
	if err != nil {
		breaker.RecordFailure()
		return zero, err
	}

	breaker.RecordSuccess()
	if terminal != nil {
		return zero, terminal
	}
	return result, nil
}
