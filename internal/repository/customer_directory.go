package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/bookinglean/internal/domain"
	"github.com/yourorg/bookinglean/internal/identifier"
)

// PostgresCustomerDirectory implements domain.CustomerDirectory using
// PostgreSQL. Records are keyed by (tenant, email-or-national-ID); the
// same email may exist as a customer in several tenants at once.
type PostgresCustomerDirectory struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// NewPostgresCustomerDirectory creates a new customer credential store adapter.
func NewPostgresCustomerDirectory(db *sql.DB, timeout time.Duration, logger *slog.Logger) *PostgresCustomerDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &PostgresCustomerDirectory{db: db, timeout: timeout, logger: logger}
}

// Lookup finds a customer record by email or national ID within one
// tenant. National IDs match on bare digits, so formatted and unformatted
// input key the same record. Never returns records from other tenants.
func (d *PostgresCustomerDirectory) Lookup(ctx context.Context, ident, tenantID string) (*domain.IdentityRecord, error) {
	if tenantID == "" {
		return nil, domain.ErrMissingTenantScope
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	query := `
		SELECT id, COALESCE(email, ''), COALESCE(national_id, ''), display_name, tenant_id, password_hash
		FROM customer_credentials
		WHERE tenant_id = $1
		  AND is_active = true
		  AND (email = $2 OR (national_id <> '' AND national_id = $3))
	`

	rec := &domain.IdentityRecord{Role: domain.RoleCustomer}
	err := d.db.QueryRowContext(ctx, query, tenantID, ident, identifier.Digits(ident)).Scan(
		&rec.SubjectID,
		&rec.Email,
		&rec.NationalID,
		&rec.DisplayName,
		&rec.TenantID,
		&rec.SecretRef,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		d.logger.Error("customer directory lookup failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: customer lookup: %v", domain.ErrDirectoryUnavailable, err)
	}

	return rec, nil
}
