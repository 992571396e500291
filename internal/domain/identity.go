package domain

import (
	"context"
	"time"
)

// Role is the closed set of account roles known to the platform.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleTenantAdmin Role = "tenant_admin"
	RoleStaff       Role = "staff"
	RoleCustomer    Role = "customer"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

// IdentifierKind classifies a raw user-entered identifier.
type IdentifierKind string

const (
	IdentifierEmail      IdentifierKind = "email"
	IdentifierNationalID IdentifierKind = "national_id"
)

// Tenant represents a salon with its own data partition
type Tenant struct {
	ID        string // UUID
	Slug      string // URL-safe unique name, e.g. "glow-studio"
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	IsActive  bool
}

// TenantContext scopes every directory lookup to one tenant.
// Resolved once per login flow and threaded through all queries.
type TenantContext struct {
	TenantID   string
	TenantSlug string
}

// IdentityRecord is the result of a successful directory lookup.
// Produced fresh on every lookup, never cached across requests.
type IdentityRecord struct {
	Role        Role
	SubjectID   string // UUID
	DisplayName string
	TenantID    string // empty only for super admins
	SecretRef   string // opaque handle to the stored credential
	Email       string
	NationalID  string
}

// ResolvedSession is created only after secret verification succeeds.
type ResolvedSession struct {
	SessionID    string
	SubjectID    string
	Role         Role
	TenantID     string // empty for super admins
	IssuedAt     time.Time
	ExpiresAt    time.Time
	RedirectPath string
	Token        string // signed bearer token, not persisted with the session
}

// StaffDirectory is the global-namespace identity store for operator
// accounts: super admins, tenant admins and staff members. One record
// per email regardless of tenant.
type StaffDirectory interface {
	// Lookup finds a staff or admin record by email. For tenant admins
	// and staff the record must belong to tenantID; super admin records
	// match regardless of tenant. Returns ErrNotFound on no match.
	Lookup(ctx context.Context, email, tenantID string) (*IdentityRecord, error)

	// AssertMembership re-checks that the subject still belongs to the
	// tenant. Returns ErrCrossTenantCandidate when it does not.
	AssertMembership(ctx context.Context, subjectID, tenantID string) error
}

// CustomerDirectory is the per-tenant credential store. The same email
// or national ID may exist as a customer in multiple tenants at once.
type CustomerDirectory interface {
	// Lookup finds a customer record by email or national ID within one
	// tenant. tenantID must be non-empty; a lookup without tenant scope
	// is malformed, never silently global. Returns ErrNotFound on no match.
	Lookup(ctx context.Context, identifier, tenantID string) (*IdentityRecord, error)
}

// TenantDirectory resolves tenant slugs to tenants.
type TenantDirectory interface {
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
}

// SecretVerifier checks a supplied secret against a stored credential.
// The orchestrator never inspects secret material itself.
type SecretVerifier interface {
	// Verify returns nil on match and ErrSecretMismatch otherwise.
	Verify(ctx context.Context, secretRef, supplied string) error
}

// SessionRepository persists resolved sessions until logout or expiry.
type SessionRepository interface {
	Save(ctx context.Context, session *ResolvedSession, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*ResolvedSession, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]*ResolvedSession, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*ResolvedSession, error)
}
