package test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/bookinglean/internal/domain"
	"github.com/yourorg/bookinglean/internal/handler"
	"github.com/yourorg/bookinglean/internal/identifier"
	"github.com/yourorg/bookinglean/internal/infrastructure/logger"
	"github.com/yourorg/bookinglean/internal/security/audit"
	"github.com/yourorg/bookinglean/internal/security/auth"
	"github.com/yourorg/bookinglean/internal/service"
)

// TestServerHelper creates a test HTTP server without needing a running backend
type TestServerHelper struct {
	Server   *httptest.Server
	Logger   *slog.Logger
	Mux      *http.ServeMux
	Sessions domain.SessionRepository
}

func NewTestServer(t *testing.T) *TestServerHelper {
	logger := logger.NewLogger("debug")
	mux := http.NewServeMux()

	// Setup basic health endpoints
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// Setup metrics endpoint
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("# HELP test_metric Test metric\n# TYPE test_metric counter\n"))
	})

	server := httptest.NewServer(mux)

	return &TestServerHelper{
		Server: server,
		Logger: logger,
		Mux:    mux,
	}
}

func (h *TestServerHelper) Close() {
	h.Server.Close()
}

func (h *TestServerHelper) URL() string {
	return h.Server.URL
}

// TestAccount seeds an in-memory directory for the login endpoints
type TestAccount struct {
	Role       domain.Role
	SubjectID  string
	Name       string
	TenantID   string
	Email      string
	NationalID string
	Secret     string
}

// AddLoginHandler mounts the login flow endpoints backed by in-memory
// directories seeded from the given accounts. The tenant directory knows
// one salon: slug "glow-studio", ID "t-glow".
func (h *TestServerHelper) AddLoginHandler(t *testing.T, accounts []TestAccount) {
	t.Helper()

	staff := &memStaffDirectory{}
	customers := &memCustomerDirectory{}
	for _, acc := range accounts {
		hash, err := auth.HashSecret(acc.Secret)
		if err != nil {
			t.Fatalf("hash secret: %v", err)
		}
		rec := &domain.IdentityRecord{
			Role:        acc.Role,
			SubjectID:   acc.SubjectID,
			DisplayName: acc.Name,
			TenantID:    acc.TenantID,
			SecretRef:   hash,
			Email:       acc.Email,
			NationalID:  acc.NationalID,
		}
		if acc.Role == domain.RoleCustomer {
			customers.records = append(customers.records, rec)
		} else {
			staff.records = append(staff.records, rec)
		}
	}

	sessions := &memSessionRepository{sessions: map[string]*domain.ResolvedSession{}}
	h.Sessions = sessions

	resolver := service.NewTenantResolver(memTenantDirectory{}, time.Minute, h.Logger)
	issuer := service.NewSessionIssuer(auth.NewTokenManager("integration-test", "test"), sessions, time.Hour, h.Logger)
	svc := service.NewLoginService(
		staff, customers, resolver,
		auth.NewBcryptVerifier(), issuer,
		audit.NewLogger(h.Logger), h.Logger,
	)

	loginHandler := handler.NewLoginHandler(svc, h.Logger)
	h.Mux.HandleFunc("POST /api/login/identify", loginHandler.Identify)
	h.Mux.HandleFunc("POST /api/login/authenticate", loginHandler.Authenticate)
	h.Mux.HandleFunc("POST /api/login/reset", loginHandler.Reset)
}

// AssertStatusCode helper function
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType helper function
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	if ct := resp.Header.Get("Content-Type"); ct != expected {
		t.Errorf("Expected Content-Type %s, got %s", expected, ct)
	}
}

// In-memory directory fakes shared by the integration tests

type memStaffDirectory struct {
	records []*domain.IdentityRecord
}

func (d *memStaffDirectory) Lookup(_ context.Context, email, tenantID string) (*domain.IdentityRecord, error) {
	for _, rec := range d.records {
		if rec.Email != email {
			continue
		}
		if rec.Role == domain.RoleSuperAdmin || rec.TenantID == tenantID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d *memStaffDirectory) AssertMembership(_ context.Context, subjectID, tenantID string) error {
	for _, rec := range d.records {
		if rec.SubjectID == subjectID && (rec.Role == domain.RoleSuperAdmin || rec.TenantID == tenantID) {
			return nil
		}
	}
	return domain.ErrCrossTenantCandidate
}

type memCustomerDirectory struct {
	records []*domain.IdentityRecord
}

func (d *memCustomerDirectory) Lookup(_ context.Context, ident, tenantID string) (*domain.IdentityRecord, error) {
	for _, rec := range d.records {
		if rec.TenantID != tenantID {
			continue
		}
		if rec.Email == ident || (rec.NationalID != "" && identifier.Digits(rec.NationalID) == identifier.Digits(ident)) {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memTenantDirectory struct{}

func (memTenantDirectory) GetBySlug(_ context.Context, slug string) (*domain.Tenant, error) {
	if slug == "glow-studio" {
		return &domain.Tenant{ID: "t-glow", Slug: slug, Name: "Glow Studio"}, nil
	}
	return nil, domain.ErrTenantNotFound
}

type memSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.ResolvedSession
}

func (m *memSessionRepository) Save(_ context.Context, s *domain.ResolvedSession, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

func (m *memSessionRepository) Get(_ context.Context, id string) (*domain.ResolvedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memSessionRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepository) List(_ context.Context) ([]*domain.ResolvedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ResolvedSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (m *memSessionRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.ResolvedSession, error) {
	all, _ := m.List(ctx)
	var out []*domain.ResolvedSession
	for _, s := range all {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}
