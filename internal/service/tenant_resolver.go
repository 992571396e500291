package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/bookinglean/internal/domain"
	"github.com/yourorg/bookinglean/pkg/cache"
)

// TenantResolver maps tenant slugs to tenant contexts. Slugs are hot and
// read-mostly, so resolved tenants are held in a short TTL cache.
// Failure here short-circuits the entire login flow; no identity
// directory is ever queried with an unresolved tenant.
type TenantResolver struct {
	tenants  domain.TenantDirectory
	cache    *cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewTenantResolver creates a new tenant resolver
func NewTenantResolver(tenants domain.TenantDirectory, cacheTTL time.Duration, logger *slog.Logger) *TenantResolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &TenantResolver{
		tenants:  tenants,
		cache:    cache.New(),
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Resolve maps a slug to a TenantContext or ErrTenantNotFound. Negative
// results are not cached: a freshly-created tenant should be resolvable
// immediately.
func (r *TenantResolver) Resolve(ctx context.Context, slug string) (domain.TenantContext, error) {
	if slug == "" {
		return domain.TenantContext{}, domain.ErrTenantNotFound
	}

	key := "tenant:" + slug
	if cached, ok := r.cache.Get(key); ok {
		if tc, ok := cached.(domain.TenantContext); ok {
			return tc, nil
		}
	}

	tenant, err := r.tenants.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return domain.TenantContext{}, domain.ErrTenantNotFound
		}
		return domain.TenantContext{}, fmt.Errorf("resolve tenant %q: %w", slug, err)
	}

	tc := domain.TenantContext{TenantID: tenant.ID, TenantSlug: tenant.Slug}
	r.cache.Set(key, tc, r.cacheTTL)
	r.logger.Debug("tenant resolved",
		slog.String("slug", slug),
		slog.String("tenant_id", tenant.ID),
	)
	return tc, nil
}
