package mcpauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNoneAlwaysSucceeds(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/sse", nil)
	id := None{}.Authenticate(r)
	if !id.Succeeded {
		t.Fatal("expected None to always succeed")
	}
}

func TestAPIKeyHeaderSuccess(t *testing.T) {
	validator := NewInMemoryKeyValidator(map[string]string{"secret-key": "user-1"})
	auth := NewAPIKey(validator)

	r := httptest.NewRequest(http.MethodGet, "/sse", nil)
	r.Header.Set("X-API-Key", "secret-key")

	id := auth.Authenticate(r)
	if !id.Succeeded || id.UserID != "user-1" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestAPIKeyQueryFallback(t *testing.T) {
	validator := NewInMemoryKeyValidator(map[string]string{"secret-key": "user-1"})
	auth := NewAPIKey(validator)

	r := httptest.NewRequest(http.MethodGet, "/sse?api_key=secret-key", nil)
	id := auth.Authenticate(r)
	if !id.Succeeded {
		t.Fatalf("expected query param fallback to succeed: %+v", id)
	}
}

func TestAPIKeyMissing(t *testing.T) {
	validator := NewInMemoryKeyValidator(map[string]string{"secret-key": "user-1"})
	auth := NewAPIKey(validator)

	r := httptest.NewRequest(http.MethodGet, "/sse", nil)
	id := auth.Authenticate(r)
	if id.Succeeded {
		t.Fatal("expected failure without a key")
	}
	if id.FailureReason == "" {
		t.Error("expected a failure reason to be set")
	}
}

func TestAPIKeyInvalid(t *testing.T) {
	validator := NewInMemoryKeyValidator(map[string]string{"secret-key": "user-1"})
	auth := NewAPIKey(validator)

	r := httptest.NewRequest(http.MethodGet, "/sse", nil)
	r.Header.Set("X-API-Key", "wrong-key")
	id := auth.Authenticate(r)
	if id.Succeeded {
		t.Fatal("expected failure with a wrong key")
	}
}

func TestAPIKeyProtectedPathsUnprotectedPassesThrough(t *testing.T) {
	validator := NewInMemoryKeyValidator(map[string]string{"secret-key": "user-1"})
	auth := NewAPIKey(validator, "/sse", "/messages")

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	id := auth.Authenticate(r)
	if !id.Succeeded {
		t.Fatalf("expected an unprotected path to pass through, got %+v", id)
	}
}

func TestAPIKeyProtectedPathsStillEnforced(t *testing.T) {
	validator := NewInMemoryKeyValidator(map[string]string{"secret-key": "user-1"})
	auth := NewAPIKey(validator, "/sse", "/messages")

	r := httptest.NewRequest(http.MethodGet, "/sse", nil)
	id := auth.Authenticate(r)
	if id.Succeeded {
		t.Fatal("expected a protected path to still require a key")
	}
}
