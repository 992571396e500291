package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/bookinglean/internal/domain"
)

// PostgresStaffDirectory implements domain.StaffDirectory using PostgreSQL.
// The staff_accounts table holds one record per email across all tenants;
// tenant_id is NULL only for super admins.
type PostgresStaffDirectory struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// NewPostgresStaffDirectory creates a new staff/admin directory adapter.
// Every call runs under the given timeout; a timeout or transport error
// surfaces as domain.ErrDirectoryUnavailable.
func NewPostgresStaffDirectory(db *sql.DB, timeout time.Duration, logger *slog.Logger) *PostgresStaffDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &PostgresStaffDirectory{db: db, timeout: timeout, logger: logger}
}

// Lookup finds a staff or admin record by email. Tenant admins and staff
// must belong to tenantID; super admin accounts are tenant-agnostic, so
// they match under any tenant context. A record existing under a
// different tenant is reported as not found, never revealed.
func (d *PostgresStaffDirectory) Lookup(ctx context.Context, email, tenantID string) (*domain.IdentityRecord, error) {
	if tenantID == "" {
		return nil, domain.ErrMissingTenantScope
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	query := `
		SELECT id, email, display_name, role, COALESCE(tenant_id::text, ''), password_hash
		FROM staff_accounts
		WHERE email = $1
		  AND is_active = true
		  AND (role = 'super_admin' OR tenant_id = $2)
	`

	rec := &domain.IdentityRecord{}
	var role string
	err := d.db.QueryRowContext(ctx, query, email, tenantID).Scan(
		&rec.SubjectID,
		&rec.Email,
		&rec.DisplayName,
		&role,
		&rec.TenantID,
		&rec.SecretRef,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		d.logger.Error("staff directory lookup failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: staff lookup: %v", domain.ErrDirectoryUnavailable, err)
	}

	rec.Role = domain.Role(role)
	if !rec.Role.Valid() {
		return nil, fmt.Errorf("%w: staff record %s has unknown role %q", domain.ErrDirectoryUnavailable, rec.SubjectID, role)
	}
	return rec, nil
}

// AssertMembership re-checks tenant membership for a subject immediately
// before session issuance. Super admins pass for any tenant.
func (d *PostgresStaffDirectory) AssertMembership(ctx context.Context, subjectID, tenantID string) error {
	if tenantID == "" {
		return domain.ErrMissingTenantScope
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	query := `
		SELECT role, COALESCE(tenant_id::text, '')
		FROM staff_accounts
		WHERE id = $1 AND is_active = true
	`

	var role, recordTenant string
	err := d.db.QueryRowContext(ctx, query, subjectID).Scan(&role, &recordTenant)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrCrossTenantCandidate
		}
		return fmt.Errorf("%w: membership check: %v", domain.ErrDirectoryUnavailable, err)
	}

	if domain.Role(role) == domain.RoleSuperAdmin {
		return nil
	}
	if recordTenant != tenantID {
		d.logger.Warn("membership re-check rejected candidate",
			slog.String("subject_id", subjectID),
			slog.String("tenant_id", tenantID),
		)
		return domain.ErrCrossTenantCandidate
	}
	return nil
}
