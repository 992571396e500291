package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/bookinglean/internal/domain"
	"github.com/yourorg/bookinglean/internal/security/audit"
	"github.com/yourorg/bookinglean/internal/security/auth"
)

type staffEntry struct {
	rec    *domain.IdentityRecord
	tenant string // membership tenant, empty for super admins
}

type fakeStaffDirectory struct {
	mu          sync.Mutex
	byEmail     map[string]*staffEntry
	lookupCalls int
	unavailable bool
}

func newFakeStaffDirectory() *fakeStaffDirectory {
	return &fakeStaffDirectory{byEmail: map[string]*staffEntry{}}
}

func (d *fakeStaffDirectory) add(email string, role domain.Role, tenantID, subjectID, name, hash string) {
	d.byEmail[email] = &staffEntry{
		rec: &domain.IdentityRecord{
			Role:        role,
			SubjectID:   subjectID,
			DisplayName: name,
			TenantID:    tenantID,
			SecretRef:   hash,
			Email:       email,
		},
		tenant: tenantID,
	}
}

func (d *fakeStaffDirectory) Lookup(_ context.Context, email, tenantID string) (*domain.IdentityRecord, error) {
	d.mu.Lock()
	d.lookupCalls++
	d.mu.Unlock()
	if d.unavailable {
		return nil, domain.ErrDirectoryUnavailable
	}
	if tenantID == "" {
		return nil, domain.ErrMissingTenantScope
	}
	e, ok := d.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if e.rec.Role != domain.RoleSuperAdmin && e.tenant != tenantID {
		return nil, domain.ErrNotFound
	}
	cp := *e.rec
	return &cp, nil
}

func (d *fakeStaffDirectory) AssertMembership(_ context.Context, subjectID, tenantID string) error {
	for _, e := range d.byEmail {
		if e.rec.SubjectID == subjectID {
			if e.rec.Role == domain.RoleSuperAdmin {
				return nil
			}
			if e.tenant == tenantID {
				return nil
			}
			return domain.ErrCrossTenantCandidate
		}
	}
	return domain.ErrCrossTenantCandidate
}

type fakeCustomerDirectory struct {
	mu          sync.Mutex
	records     []*domain.IdentityRecord
	lookupCalls int
	unavailable bool
}

func (d *fakeCustomerDirectory) add(tenantID, email, nationalID, subjectID, name, hash string) {
	d.records = append(d.records, &domain.IdentityRecord{
		Role:        domain.RoleCustomer,
		SubjectID:   subjectID,
		DisplayName: name,
		TenantID:    tenantID,
		SecretRef:   hash,
		Email:       email,
		NationalID:  nationalID,
	})
}

func (d *fakeCustomerDirectory) Lookup(_ context.Context, ident, tenantID string) (*domain.IdentityRecord, error) {
	d.mu.Lock()
	d.lookupCalls++
	d.mu.Unlock()
	if d.unavailable {
		return nil, domain.ErrDirectoryUnavailable
	}
	if tenantID == "" {
		return nil, domain.ErrMissingTenantScope
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, ident)
	for _, rec := range d.records {
		if rec.TenantID != tenantID {
			continue
		}
		if rec.Email == ident || (rec.NationalID != "" && rec.NationalID == digits) {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeTenantDirectory struct {
	bySlug map[string]*domain.Tenant
}

func (d *fakeTenantDirectory) GetBySlug(_ context.Context, slug string) (*domain.Tenant, error) {
	if t, ok := d.bySlug[slug]; ok {
		return t, nil
	}
	return nil, domain.ErrTenantNotFound
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.ResolvedSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*domain.ResolvedSession{}}
}

func (m *memSessionRepo) Save(_ context.Context, s *domain.ResolvedSession, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Token = ""
	m.sessions[s.SessionID] = &cp
	return nil
}

func (m *memSessionRepo) Get(_ context.Context, id string) (*domain.ResolvedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memSessionRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepo) List(_ context.Context) ([]*domain.ResolvedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ResolvedSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memSessionRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.ResolvedSession, error) {
	all, _ := m.List(ctx)
	var out []*domain.ResolvedSession
	for _, s := range all {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

type loginFixture struct {
	staff     *fakeStaffDirectory
	customers *fakeCustomerDirectory
	tenants   *fakeTenantDirectory
	sessions  *memSessionRepo
	svc       *LoginService
}

func newLoginFixture(t *testing.T) *loginFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	staff := newFakeStaffDirectory()
	customers := &fakeCustomerDirectory{}
	tenants := &fakeTenantDirectory{bySlug: map[string]*domain.Tenant{
		"glow-studio": {ID: "t-glow", Slug: "glow-studio", Name: "Glow Studio", IsActive: true},
		"other-salon": {ID: "t-other", Slug: "other-salon", Name: "Other Salon", IsActive: true},
	}}
	sessions := newMemSessionRepo()

	resolver := NewTenantResolver(tenants, time.Minute, logger)
	issuer := NewSessionIssuer(auth.NewTokenManager("test-secret", "bookinglean-test"), sessions, time.Hour, logger)
	svc := NewLoginService(staff, customers, resolver, auth.NewBcryptVerifier(), issuer, audit.NewLogger(logger), logger)

	return &loginFixture{staff: staff, customers: customers, tenants: tenants, sessions: sessions, svc: svc}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	h, err := auth.HashSecret(secret)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	return h
}

func TestIdentifyTenantAdminThenAuthenticate(t *testing.T) {
	fx := newLoginFixture(t)
	hash := mustHash(t, "CorrectHorse9")
	fx.staff.add("owner@salon.com", domain.RoleTenantAdmin, "t-glow", "s-owner", "Olivia Owner", hash)

	flow := fx.svc.NewFlow()
	res, err := flow.Identify(context.Background(), "owner@salon.com", "glow-studio")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if res.Stage != StageAuthenticate {
		t.Fatalf("stage = %s, want authenticate", res.Stage)
	}
	if res.Candidate == nil || res.Candidate.Role != domain.RoleTenantAdmin {
		t.Fatalf("candidate = %+v, want tenant admin", res.Candidate)
	}
	if strings.Contains(res.Candidate.MaskedIdentifier, "owner@salon.com") {
		t.Fatalf("candidate summary leaked raw identifier: %q", res.Candidate.MaskedIdentifier)
	}

	session, err := flow.Authenticate(context.Background(), "CorrectHorse9")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if session.RedirectPath != "/dashboard" {
		t.Errorf("redirect = %q, want /dashboard", session.RedirectPath)
	}
	if session.TenantID != "t-glow" {
		t.Errorf("session tenant = %q, want t-glow", session.TenantID)
	}
	if session.Token == "" {
		t.Errorf("expected signed token on session")
	}
	if _, err := fx.sessions.Get(context.Background(), session.SessionID); err != nil {
		t.Errorf("session not persisted: %v", err)
	}
}

func TestIdentifyNationalIDNoMatchOffersSignup(t *testing.T) {
	fx := newLoginFixture(t)

	flow := fx.svc.NewFlow()
	res, err := flow.Identify(context.Background(), "011.222.333-44", "glow-studio")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if res.Stage != StageSignupOffered {
		t.Fatalf("stage = %s, want signup_offered", res.Stage)
	}
	if res.Candidate != nil {
		t.Fatalf("no candidate expected, got %+v", res.Candidate)
	}
}

func TestNationalIDNeverQueriesStaffDirectory(t *testing.T) {
	fx := newLoginFixture(t)
	fx.customers.add("t-glow", "", "01122233344", "c-1", "Carla Customer", mustHash(t, "pw"))

	flow := fx.svc.NewFlow()
	res, err := flow.Identify(context.Background(), "011.222.333-44", "glow-studio")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if res.Stage != StageAuthenticate {
		t.Fatalf("stage = %s, want authenticate", res.Stage)
	}
	if fx.staff.lookupCalls != 0 {
		t.Fatalf("staff directory queried %d times for a national ID, want 0", fx.staff.lookupCalls)
	}
	if fx.customers.lookupCalls != 1 {
		t.Errorf("customer store queried %d times, want 1", fx.customers.lookupCalls)
	}
}

func TestTenantIsolation(t *testing.T) {
	fx := newLoginFixture(t)
	fx.customers.add("t-glow", "maria@client.com", "", "c-maria", "Maria", mustHash(t, "pw"))

	// Same identifier under the other tenant must be a clean miss.
	flow := fx.svc.NewFlow()
	res, err := flow.Identify(context.Background(), "maria@client.com", "other-salon")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if res.Stage != StageSignupOffered {
		t.Fatalf("stage = %s, want signup_offered under other tenant", res.Stage)
	}

	// And under its own tenant it matches.
	flow2 := fx.svc.NewFlow()
	res2, err := flow2.Identify(context.Background(), "maria@client.com", "glow-studio")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if res2.Stage != StageAuthenticate || res2.Candidate.Role != domain.RoleCustomer {
		t.Fatalf("expected customer candidate under glow-studio, got %+v", res2)
	}
}

func TestPriorityStaffBeforeCustomerAndAmbiguityFlagged(t *testing.T) {
	fx := newLoginFixture(t)
	hash := mustHash(t, "pw")
	// Same email exists as staff AND customer within the same tenant:
	// upstream data-integrity fault. The staff candidate must win.
	fx.staff.add("dual@salon.com", domain.RoleStaff, "t-glow", "s-dual", "Dana Staff", hash)
	fx.customers.add("t-glow", "dual@salon.com", "", "c-dual", "Dana Customer", hash)

	flow := fx.svc.NewFlow()
	res, err := flow.Identify(context.Background(), "dual@salon.com", "glow-studio")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if res.Candidate == nil || res.Candidate.Role != domain.RoleStaff {
		t.Fatalf("candidate = %+v, want staff record to shadow customer", res.Candidate)
	}
	// The ambiguity probe hits the customer store exactly once.
	if fx.customers.lookupCalls != 1 {
		t.Errorf("customer store queried %d times, want 1 (ambiguity probe)", fx.customers.lookupCalls)
	}
}

func TestEmailMissInStaffFallsThroughToCustomer(t *testing.T) {
	fx := newLoginFixture(t)
	fx.customers.add("t-glow", "maria@client.com", "", "c-maria", "Maria", mustHash(t, "pw"))

	flow := fx.svc.NewFlow()
	res, err := flow.Identify(context.Background(), "maria@client.com", "glow-studio")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if res.Candidate == nil || res.Candidate.Role != domain.RoleCustomer {
		t.Fatalf("candidate = %+v, want customer", res.Candidate)
	}
	if fx.staff.lookupCalls != 1 {
		t.Errorf("staff directory queried %d times, want 1 (priority first)", fx.staff.lookupCalls)
	}
}

func TestStaffDirectoryUnavailableDoesNotFallBack(t *testing.T) {
	fx := newLoginFixture(t)
	fx.staff.unavailable = true
	fx.customers.add("t-glow", "maria@client.com", "", "c-maria", "Maria", mustHash(t, "pw"))

	flow := fx.svc.NewFlow()
	_, err := flow.Identify(context.Background(), "maria@client.com", "glow-studio")
	if !errors.Is(err, domain.ErrDirectoryUnavailable) {
		t.Fatalf("err = %v, want ErrDirectoryUnavailable", err)
	}
	if fx.customers.lookupCalls != 0 {
		t.Fatalf("customer store queried %d times after staff failure, want 0 (no fallback)", fx.customers.lookupCalls)
	}
	if flow.Stage() != StageIdentify {
		t.Errorf("stage = %s, want identify after directory failure", flow.Stage())
	}
}

func TestTenantNotFoundShortCircuits(t *testing.T) {
	fx := newLoginFixture(t)

	flow := fx.svc.NewFlow()
	_, err := flow.Identify(context.Background(), "owner@salon.com", "no-such-salon")
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Fatalf("err = %v, want ErrTenantNotFound", err)
	}
	if fx.staff.lookupCalls != 0 || fx.customers.lookupCalls != 0 {
		t.Fatalf("directories queried with unresolved tenant: staff=%d customer=%d",
			fx.staff.lookupCalls, fx.customers.lookupCalls)
	}
}

func TestEmptyIdentifierRejected(t *testing.T) {
	fx := newLoginFixture(t)

	flow := fx.svc.NewFlow()
	_, err := flow.Identify(context.Background(), "   ", "glow-studio")
	if !errors.Is(err, domain.ErrEmptyIdentifier) {
		t.Fatalf("err = %v, want ErrEmptyIdentifier", err)
	}
	if flow.Stage() != StageIdentify {
		t.Errorf("stage = %s, want identify (no transition)", flow.Stage())
	}
}

func TestWrongSecretStaysInAuthenticate(t *testing.T) {
	fx := newLoginFixture(t)
	fx.staff.add("owner@salon.com", domain.RoleTenantAdmin, "t-glow", "s-owner", "Olivia", mustHash(t, "right"))

	flow := fx.svc.NewFlow()
	if _, err := flow.Identify(context.Background(), "owner@salon.com", "glow-studio"); err != nil {
		t.Fatalf("identify failed: %v", err)
	}

	// Three wrong secrets in a row: state never leaves Authenticate and
	// no lockout decision is made here.
	for i := 0; i < 3; i++ {
		_, err := flow.Authenticate(context.Background(), "wrong")
		if !errors.Is(err, domain.ErrSecretMismatch) {
			t.Fatalf("attempt %d: err = %v, want ErrSecretMismatch", i+1, err)
		}
		if flow.Stage() != StageAuthenticate {
			t.Fatalf("attempt %d: stage = %s, want authenticate", i+1, flow.Stage())
		}
	}

	// The right secret still works afterwards.
	if _, err := flow.Authenticate(context.Background(), "right"); err != nil {
		t.Fatalf("authenticate with correct secret failed: %v", err)
	}
}

func TestPinnedCandidateRevokedMembership(t *testing.T) {
	fx := newLoginFixture(t)
	hash := mustHash(t, "pw")
	fx.staff.add("staff@salon.com", domain.RoleStaff, "t-glow", "s-1", "Sam Staff", hash)

	flow := fx.svc.NewFlow()
	if _, err := flow.Identify(context.Background(), "staff@salon.com", "glow-studio"); err != nil {
		t.Fatalf("identify failed: %v", err)
	}

	// Membership revoked between Identify and Authenticate.
	fx.staff.byEmail["staff@salon.com"].tenant = "t-other"

	_, err := flow.Authenticate(context.Background(), "pw")
	if !errors.Is(err, domain.ErrCrossTenantCandidate) {
		t.Fatalf("err = %v, want ErrCrossTenantCandidate", err)
	}
	if flow.Stage() != StageIdentify {
		t.Errorf("stage = %s, want identify (flow forced back)", flow.Stage())
	}
	if len(fx.sessions.sessions) != 0 {
		t.Errorf("session issued for revoked candidate")
	}
}

func TestSuperAdminLoginUnderAnyTenant(t *testing.T) {
	fx := newLoginFixture(t)
	fx.staff.add("root@platform.com", domain.RoleSuperAdmin, "", "s-root", "Root", mustHash(t, "pw"))

	flow := fx.svc.NewFlow()
	res, err := flow.Identify(context.Background(), "root@platform.com", "other-salon")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if res.Candidate == nil || res.Candidate.Role != domain.RoleSuperAdmin {
		t.Fatalf("candidate = %+v, want super admin", res.Candidate)
	}

	session, err := flow.Authenticate(context.Background(), "pw")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if session.RedirectPath != "/platform/admin" {
		t.Errorf("redirect = %q, want /platform/admin", session.RedirectPath)
	}
	if session.TenantID != "" {
		t.Errorf("super admin session should carry no tenant, got %q", session.TenantID)
	}
}

func TestResetIdempotent(t *testing.T) {
	fx := newLoginFixture(t)
	fx.staff.add("owner@salon.com", domain.RoleTenantAdmin, "t-glow", "s-owner", "Olivia", mustHash(t, "pw"))

	flow := fx.svc.NewFlow()
	if _, err := flow.Identify(context.Background(), "owner@salon.com", "glow-studio"); err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if flow.Stage() != StageAuthenticate {
		t.Fatalf("stage = %s, want authenticate", flow.Stage())
	}

	flow.Reset()
	if flow.Stage() != StageIdentify {
		t.Fatalf("stage after reset = %s, want identify", flow.Stage())
	}
	if _, err := flow.Authenticate(context.Background(), "pw"); !errors.Is(err, domain.ErrFlowState) {
		t.Fatalf("authenticate after reset = %v, want ErrFlowState", err)
	}

	// Second reset is a no-op.
	flow.Reset()
	if flow.Stage() != StageIdentify {
		t.Fatalf("stage after second reset = %s, want identify", flow.Stage())
	}

	// Flow is reusable after reset.
	if _, err := flow.Identify(context.Background(), "owner@salon.com", "glow-studio"); err != nil {
		t.Fatalf("identify after reset failed: %v", err)
	}
}

func TestIdentifyGuardedAfterCandidateFound(t *testing.T) {
	fx := newLoginFixture(t)
	fx.staff.add("owner@salon.com", domain.RoleTenantAdmin, "t-glow", "s-owner", "Olivia", mustHash(t, "pw"))

	flow := fx.svc.NewFlow()
	if _, err := flow.Identify(context.Background(), "owner@salon.com", "glow-studio"); err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if _, err := flow.Identify(context.Background(), "owner@salon.com", "glow-studio"); !errors.Is(err, domain.ErrFlowState) {
		t.Fatalf("second identify = %v, want ErrFlowState", err)
	}
}
