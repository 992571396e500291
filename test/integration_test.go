package test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/yourorg/bookinglean/internal/domain"
)

// TestHealthEndpoint verifies health check endpoint
func TestHealthEndpoint(t *testing.T) {
	server := NewTestServer(t)
	defer server.Close()

	resp, err := http.Get(server.URL() + "/healthz")
	if err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	defer resp.Body.Close()

	AssertStatusCode(t, resp, http.StatusOK)

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" && string(body) != "OK" {
		t.Errorf("Expected 'ok' or 'OK', got '%s'", string(body))
	}
}

// TestReadinessEndpoint verifies readiness check endpoint
func TestReadinessEndpoint(t *testing.T) {
	server := NewTestServer(t)
	defer server.Close()

	resp, err := http.Get(server.URL() + "/readyz")
	if err != nil {
		t.Fatalf("Readiness check failed: %v", err)
	}
	defer resp.Body.Close()

	AssertStatusCode(t, resp, http.StatusOK)

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ready" {
		t.Errorf("Expected 'ready', got '%s'", string(body))
	}
}

// TestMetricsEndpoint verifies Prometheus metrics endpoint
func TestMetricsEndpoint(t *testing.T) {
	server := NewTestServer(t)
	defer server.Close()

	resp, err := http.Get(server.URL() + "/metrics")
	if err != nil {
		t.Fatalf("Metrics endpoint failed: %v", err)
	}
	defer resp.Body.Close()

	AssertStatusCode(t, resp, http.StatusOK)
	AssertContentType(t, resp, "text/plain")

	body, _ := io.ReadAll(resp.Body)
	if len(body) < 1 {
		t.Errorf("Expected metrics data, got empty response")
	}
}

func defaultAccounts() []TestAccount {
	return []TestAccount{
		{
			Role: domain.RoleTenantAdmin, SubjectID: "s-owner", Name: "Olivia Owner",
			TenantID: "t-glow", Email: "owner@glow.com", Secret: "owner-pw",
		},
		{
			Role: domain.RoleStaff, SubjectID: "s-stylist", Name: "Sam Stylist",
			TenantID: "t-glow", Email: "sam@glow.com", Secret: "stylist-pw",
		},
		{
			Role: domain.RoleCustomer, SubjectID: "c-maria", Name: "Maria",
			TenantID: "t-glow", Email: "maria@example.com", NationalID: "12345678944", Secret: "maria-pw",
		},
	}
}

func postLoginJSON(t *testing.T, url string, payload map[string]string) (map[string]interface{}, int) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result, resp.StatusCode
}

// TestFullLoginFlow runs identify then authenticate for each role class
// and verifies the role-specific landing paths.
func TestFullLoginFlow(t *testing.T) {
	server := NewTestServer(t)
	defer server.Close()
	server.AddLoginHandler(t, defaultAccounts())

	cases := []struct {
		name       string
		identifier string
		secret     string
		wantPath   string
	}{
		{"tenant admin by email", "owner@glow.com", "owner-pw", "/dashboard"},
		{"staff by email", "sam@glow.com", "stylist-pw", "/staff"},
		{"customer by email", "maria@example.com", "maria-pw", "/profile"},
		{"customer by national id", "123.456.789-44", "maria-pw", "/profile"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idResult, status := postLoginJSON(t, server.URL()+"/api/login/identify", map[string]string{
				"identifier": tc.identifier,
				"tenantSlug": "glow-studio",
			})
			if status != http.StatusOK {
				t.Fatalf("identify status = %d, body = %v", status, idResult)
			}
			if idResult["stage"] != "authenticate" {
				t.Fatalf("stage = %v, want authenticate", idResult["stage"])
			}

			flowID, _ := idResult["flowId"].(string)
			authResult, status := postLoginJSON(t, server.URL()+"/api/login/authenticate", map[string]string{
				"flowId": flowID,
				"secret": tc.secret,
			})
			if status != http.StatusOK {
				t.Fatalf("authenticate status = %d, body = %v", status, authResult)
			}
			if authResult["redirectPath"] != tc.wantPath {
				t.Errorf("redirectPath = %v, want %s", authResult["redirectPath"], tc.wantPath)
			}
			if token, _ := authResult["token"].(string); token == "" {
				t.Error("expected a session token")
			}
		})
	}
}

// TestLoginUnknownIdentifierOffersSignup verifies the no-match exit
func TestLoginUnknownIdentifierOffersSignup(t *testing.T) {
	server := NewTestServer(t)
	defer server.Close()
	server.AddLoginHandler(t, defaultAccounts())

	result, status := postLoginJSON(t, server.URL()+"/api/login/identify", map[string]string{
		"identifier": "nobody@nowhere.com",
		"tenantSlug": "glow-studio",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if result["stage"] != "signup_offered" {
		t.Errorf("stage = %v, want signup_offered", result["stage"])
	}
}

// TestLoginUnknownSalonRejected verifies tenant resolution short-circuits
func TestLoginUnknownSalonRejected(t *testing.T) {
	server := NewTestServer(t)
	defer server.Close()
	server.AddLoginHandler(t, defaultAccounts())

	_, status := postLoginJSON(t, server.URL()+"/api/login/identify", map[string]string{
		"identifier": "owner@glow.com",
		"tenantSlug": "no-such-salon",
	})
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

// TestLoginSessionPersisted verifies the issued session lands in the store
func TestLoginSessionPersisted(t *testing.T) {
	server := NewTestServer(t)
	defer server.Close()
	server.AddLoginHandler(t, defaultAccounts())

	idResult, _ := postLoginJSON(t, server.URL()+"/api/login/identify", map[string]string{
		"identifier": "owner@glow.com",
		"tenantSlug": "glow-studio",
	})
	flowID, _ := idResult["flowId"].(string)
	_, status := postLoginJSON(t, server.URL()+"/api/login/authenticate", map[string]string{
		"flowId": flowID,
		"secret": "owner-pw",
	})
	if status != http.StatusOK {
		t.Fatalf("authenticate status = %d", status)
	}

	sessions, err := server.Sessions.ListByTenant(t.Context(), "t-glow")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	if sessions[0].Role != domain.RoleTenantAdmin {
		t.Errorf("session role = %s", sessions[0].Role)
	}
}
