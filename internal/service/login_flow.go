package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/bookinglean/internal/domain"
	"github.com/yourorg/bookinglean/internal/identifier"
	"github.com/yourorg/bookinglean/internal/observability/metrics"
	"github.com/yourorg/bookinglean/internal/security/audit"
)

// Stage is the login flow's state machine position.
type Stage string

const (
	StageIdentify      Stage = "identify"
	StageAuthenticate  Stage = "authenticate"
	StageSignupOffered Stage = "signup_offered"
)

// CandidateSummary is the only identity material surfaced before a
// secret is verified: a display name, a masked identifier and a role
// label. Never the secret reference, never the raw identifier.
type CandidateSummary struct {
	DisplayName      string      `json:"displayName"`
	MaskedIdentifier string      `json:"maskedIdentifier"`
	Role             domain.Role `json:"role"`
}

// IdentifyResult is the outcome of the identify step.
type IdentifyResult struct {
	Stage     Stage
	Candidate *CandidateSummary // nil when stage is StageSignupOffered
}

// LoginService holds the collaborators shared by all login flows. It is
// safe for concurrent use; per-interaction state lives in LoginFlow.
type LoginService struct {
	staff     domain.StaffDirectory
	customers domain.CustomerDirectory
	tenants   *TenantResolver
	verifier  domain.SecretVerifier
	issuer    *SessionIssuer
	audit     *audit.Logger
	logger    *slog.Logger
}

// NewLoginService creates the login orchestration service
func NewLoginService(
	staff domain.StaffDirectory,
	customers domain.CustomerDirectory,
	tenants *TenantResolver,
	verifier domain.SecretVerifier,
	issuer *SessionIssuer,
	auditLogger *audit.Logger,
	logger *slog.Logger,
) *LoginService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginService{
		staff:     staff,
		customers: customers,
		tenants:   tenants,
		verifier:  verifier,
		issuer:    issuer,
		audit:     auditLogger,
		logger:    logger,
	}
}

// NewFlow starts a fresh login flow. One flow serves exactly one
// interactive login attempt; it is never shared between users and never
// outlives the interaction.
func (s *LoginService) NewFlow() *LoginFlow {
	return &LoginFlow{svc: s, stage: StageIdentify}
}

// LoginFlow drives one interactive login: Identify, then Authenticate,
// with SignupOffered as the no-match exit. The candidate found during
// Identify is pinned: Authenticate verifies against that exact record
// and never re-resolves the identifier.
type LoginFlow struct {
	svc *LoginService

	stage     Stage
	tenant    domain.TenantContext
	candidate *domain.IdentityRecord
	kind      domain.IdentifierKind
}

// Stage returns the flow's current state machine position.
func (f *LoginFlow) Stage() Stage {
	return f.stage
}

// Identify classifies the identifier, resolves the tenant and queries
// the directories in priority order: on email identifiers the
// staff/admin directory first, then the customer store; on national-ID
// identifiers only the customer store, since operator accounts are never
// keyed by national ID. A match moves the flow to Authenticate; no match
// moves it to SignupOffered.
func (f *LoginFlow) Identify(ctx context.Context, rawIdentifier, tenantSlug string) (*IdentifyResult, error) {
	if f.stage != StageIdentify {
		return nil, fmt.Errorf("%w: identify called in stage %s", domain.ErrFlowState, f.stage)
	}

	kind, err := identifier.Classify(rawIdentifier)
	if err != nil {
		return nil, err
	}
	ident := identifier.Normalize(rawIdentifier, kind)

	tenant, err := f.svc.tenants.Resolve(ctx, tenantSlug)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			metrics.ObserveIdentify("tenant_not_found", "")
		}
		return nil, err
	}
	f.tenant = tenant

	record, err := f.resolve(ctx, ident, kind, tenant)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			f.stage = StageSignupOffered
			f.candidate = nil
			metrics.ObserveIdentify("signup_offered", "")
			f.svc.audit.LogIdentify(ctx, tenant.TenantID, "not_found")
			return &IdentifyResult{Stage: StageSignupOffered}, nil
		}
		metrics.ObserveIdentify("error", "")
		return nil, err
	}

	f.candidate = record
	f.kind = kind
	f.stage = StageAuthenticate

	metrics.ObserveIdentify("candidate_found", string(record.Role))
	f.svc.audit.LogIdentify(ctx, tenant.TenantID, "candidate_found")

	return &IdentifyResult{
		Stage: StageAuthenticate,
		Candidate: &CandidateSummary{
			DisplayName:      record.DisplayName,
			MaskedIdentifier: identifier.Mask(ident, kind),
			Role:             record.Role,
		},
	}, nil
}

// resolve queries the eligible directories for one identifier. Sequential
// with short-circuit: the priority rule (staff/admin before customer on
// email identifiers) is encoded in the query order itself. A directory
// failure is surfaced as-is; the flow never falls back to the other
// store on ErrDirectoryUnavailable, since that could bypass the
// priority ordering.
func (f *LoginFlow) resolve(ctx context.Context, ident string, kind domain.IdentifierKind, tenant domain.TenantContext) (*domain.IdentityRecord, error) {
	if kind == domain.IdentifierNationalID {
		return f.lookupCustomer(ctx, ident, tenant)
	}

	staffRec, err := f.lookupStaff(ctx, ident, tenant)
	if err == nil {
		f.detectAmbiguity(ctx, ident, tenant, staffRec)
		return staffRec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	return f.lookupCustomer(ctx, ident, tenant)
}

// detectAmbiguity probes the customer store after a staff/admin hit. An
// identifier existing in both stores within one tenant is a
// data-integrity fault in the upstream directories; it is logged and
// counted, and the staff candidate stands. A failed probe detects
// nothing and changes nothing.
func (f *LoginFlow) detectAmbiguity(ctx context.Context, ident string, tenant domain.TenantContext, staffRec *domain.IdentityRecord) {
	customerRec, err := f.lookupCustomer(ctx, ident, tenant)
	if err != nil {
		return
	}
	metrics.ObserveAmbiguousMatch()
	f.svc.audit.LogAmbiguousMatch(ctx, tenant.TenantID, staffRec.SubjectID, customerRec.SubjectID)
	f.svc.logger.Error("ambiguous identity match",
		slog.String("tenant_id", tenant.TenantID),
		slog.String("staff_subject_id", staffRec.SubjectID),
		slog.String("customer_subject_id", customerRec.SubjectID),
		slog.String("error", domain.ErrAmbiguousMatch.Error()),
	)
}

func (f *LoginFlow) lookupStaff(ctx context.Context, email string, tenant domain.TenantContext) (*domain.IdentityRecord, error) {
	start := time.Now()
	rec, err := f.svc.staff.Lookup(ctx, email, tenant.TenantID)
	metrics.ObserveDirectoryLookup("staff", lookupResult(err), time.Since(start))
	return rec, err
}

func (f *LoginFlow) lookupCustomer(ctx context.Context, ident string, tenant domain.TenantContext) (*domain.IdentityRecord, error) {
	start := time.Now()
	rec, err := f.svc.customers.Lookup(ctx, ident, tenant.TenantID)
	metrics.ObserveDirectoryLookup("customer", lookupResult(err), time.Since(start))
	return rec, err
}

func lookupResult(err error) string {
	switch {
	case err == nil:
		return "hit"
	case errors.Is(err, domain.ErrNotFound):
		return "miss"
	default:
		return "error"
	}
}

// Authenticate verifies the supplied secret against the pinned
// candidate's stored credential. For tenant admins and staff, tenant
// membership is re-asserted immediately before issuance, so a tenant
// context substituted between Identify and Authenticate can never yield
// a session. A wrong secret keeps the flow in Authenticate; this core
// holds no lockout counter.
func (f *LoginFlow) Authenticate(ctx context.Context, secret string) (*domain.ResolvedSession, error) {
	if f.stage != StageAuthenticate {
		return nil, fmt.Errorf("%w: authenticate called in stage %s", domain.ErrFlowState, f.stage)
	}
	if f.candidate == nil {
		return nil, domain.ErrNoCandidate
	}

	if err := f.svc.verifier.Verify(ctx, f.candidate.SecretRef, secret); err != nil {
		metrics.ObserveAuthenticate("secret_mismatch")
		return nil, domain.ErrSecretMismatch
	}

	if f.candidate.Role == domain.RoleTenantAdmin || f.candidate.Role == domain.RoleStaff {
		if err := f.svc.staff.AssertMembership(ctx, f.candidate.SubjectID, f.tenant.TenantID); err != nil {
			if errors.Is(err, domain.ErrCrossTenantCandidate) {
				metrics.ObserveCrossTenantRejection()
				metrics.ObserveAuthenticate("cross_tenant_rejected")
				f.svc.audit.LogCrossTenantRejection(ctx, f.tenant.TenantID, f.candidate.SubjectID)
				f.Reset()
				return nil, domain.ErrCrossTenantCandidate
			}
			metrics.ObserveAuthenticate("error")
			return nil, err
		}
	}

	session, err := f.svc.issuer.Issue(ctx, f.candidate)
	if err != nil {
		metrics.ObserveAuthenticate("error")
		return nil, err
	}

	metrics.ObserveAuthenticate("success")
	f.svc.audit.LogSessionIssued(ctx, f.tenant.TenantID, f.candidate.SubjectID, string(f.candidate.Role))

	// Flow complete; drop the pinned candidate.
	f.Reset()
	return session, nil
}

// Reset returns the flow to Identify and discards the pending candidate.
// Safe to call from any stage; calling it again is a no-op.
func (f *LoginFlow) Reset() {
	f.stage = StageIdentify
	f.candidate = nil
	f.kind = ""
	f.tenant = domain.TenantContext{}
}
