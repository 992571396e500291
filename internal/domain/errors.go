package domain

import "errors"

// Login flow error taxonomy. Handlers map these to enumeration-safe
// messages; the sentinels themselves are for internal branching only.
var (
	// ErrEmptyIdentifier rejects empty or whitespace-only input before
	// classification. Recovered locally, no state transition.
	ErrEmptyIdentifier = errors.New("identifier is empty")

	// ErrTenantNotFound is fatal to the flow: no directory is queried
	// with an unresolved tenant.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrNotFound means no record matched in the queried store. During
	// Identify it is not a failure; it drives the signup-offered exit.
	ErrNotFound = errors.New("record not found")

	// ErrAmbiguousMatch flags a data-integrity fault: both directories
	// matched the same identifier within one tenant. Never silently
	// resolved by picking one; the staff record wins and the fault is
	// logged.
	ErrAmbiguousMatch = errors.New("identifier matched in both directories")

	// ErrSecretMismatch keeps the flow in the authenticate stage. The
	// user-facing message never says why verification failed.
	ErrSecretMismatch = errors.New("secret verification failed")

	// ErrDirectoryUnavailable covers timeouts and transport failures
	// from a directory. The flow never falls back to the other store on
	// this error.
	ErrDirectoryUnavailable = errors.New("directory unavailable")

	// ErrCrossTenantCandidate means the membership re-check before
	// session issuance found the candidate no longer belongs to the
	// active tenant. Fatal; the flow is forced back to identify.
	ErrCrossTenantCandidate = errors.New("candidate no longer belongs to tenant")

	// ErrMissingTenantScope rejects a tenant-scoped directory query
	// issued without a tenant. Malformed by contract, never silently
	// widened to a global search.
	ErrMissingTenantScope = errors.New("directory query requires tenant scope")

	// ErrNoCandidate guards Authenticate being called without a pending
	// candidate from a prior Identify.
	ErrNoCandidate = errors.New("no pending candidate")

	// ErrFlowState guards operations invoked in the wrong flow stage.
	ErrFlowState = errors.New("operation not valid in current flow stage")
)
