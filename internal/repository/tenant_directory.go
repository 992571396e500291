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

// PostgresTenantDirectory implements domain.TenantDirectory using PostgreSQL
type PostgresTenantDirectory struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// NewPostgresTenantDirectory creates a new tenant directory adapter
func NewPostgresTenantDirectory(db *sql.DB, timeout time.Duration, logger *slog.Logger) *PostgresTenantDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &PostgresTenantDirectory{db: db, timeout: timeout, logger: logger}
}

// GetBySlug retrieves an active tenant by its URL slug
func (d *PostgresTenantDirectory) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	t := &domain.Tenant{}
	query := `
		SELECT id, slug, name, created_at, updated_at, is_active
		FROM tenants
		WHERE slug = $1 AND is_active = true
	`
	err := d.db.QueryRowContext(ctx, query, slug).Scan(
		&t.ID, &t.Slug, &t.Name, &t.CreatedAt, &t.UpdatedAt, &t.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		d.logger.Error("tenant lookup failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: tenant lookup: %v", domain.ErrDirectoryUnavailable, err)
	}
	return t, nil
}
