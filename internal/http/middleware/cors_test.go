package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func corsFixture(origins ...string) (http.Handler, *bool) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	return CORS(origins)(handler), &called
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	handler, called := corsFixture("https://app.vitalhub.example")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.vitalhub.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !*called {
		t.Fatal("expected handler to run")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.vitalhub.example" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-Tenant-Id") {
		t.Fatalf("allow headers = %q, want X-Tenant-Id listed", got)
	}
}

func TestCORSDeniesUnknownOrigin(t *testing.T) {
	handler, _ := corsFixture("https://app.vitalhub.example")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin header, got %q", got)
	}
}

func TestCORSWildcardEchoesOrigin(t *testing.T) {
	handler, _ := corsFixture("*")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://random.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://random.example" {
		t.Fatalf("allow origin = %q, want the request origin echoed", got)
	}
}

func TestCORSShortCircuitsPreflight(t *testing.T) {
	handler, called := corsFixture("https://app.vitalhub.example")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/appointments", nil)
	req.Header.Set("Origin", "https://app.vitalhub.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if *called {
		t.Fatal("preflight must not reach the handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
