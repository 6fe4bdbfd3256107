// Package mcpauth implements the pluggable authentication contract applied
// to the HTTP connection manager's SSE and message endpoints.
package mcpauth

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"
)

// Identity is the result of a successful or failed authentication attempt.
type Identity struct {
	Succeeded     bool
	UserID        string
	Claims        map[string]string
	FailureReason string
}

// Anonymous is the identity None always returns.
var Anonymous = Identity{Succeeded: true, UserID: "anonymous", Claims: map[string]string{}}

// Authenticator inspects an inbound HTTP request and decides whether it may
// proceed. It is applied once on SSE connection establishment and once per
// message POST.
type Authenticator interface {
	Authenticate(r *http.Request) Identity
}

// None always succeeds with an anonymous identity.
type None struct{}

func (None) Authenticate(r *http.Request) Identity { return Anonymous }

// KeyValidator validates a presented API key and reports the subject it
// belongs to.
type KeyValidator interface {
	Validate(key string) (ok bool, subject string)
}

// InMemoryKeyValidator validates keys against a static map loaded at
// startup, comparing in constant time to avoid leaking key material
// through response-time side channels.
type InMemoryKeyValidator struct {
	keys map[string]string // key -> subject
}

// NewInMemoryKeyValidator builds a validator from a key→subject map.
func NewInMemoryKeyValidator(keys map[string]string) *InMemoryKeyValidator {
	return &InMemoryKeyValidator{keys: keys}
}

func (v *InMemoryKeyValidator) Validate(key string) (bool, string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, ""
	}
	var subject string
	var matched bool
	for storedKey, s := range v.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(storedKey)) == 1 {
			matched = true
			subject = s
		}
	}
	return matched, subject
}

// APIKey authenticates requests by a header (default X-API-Key) or a
// fallback query parameter, validating the presented key against a
// KeyValidator.
type APIKey struct {
	Header        string
	QueryParam    string
	Validator     KeyValidator
	ProtectedOnly []string // path prefixes requiring auth; empty means all paths
}

// NewAPIKey builds an APIKey authenticator with the conventional header
// name and query parameter fallback.
func NewAPIKey(validator KeyValidator, protectedPaths ...string) *APIKey {
	return &APIKey{
		Header:        "X-API-Key",
		QueryParam:    "api_key",
		Validator:     validator,
		ProtectedOnly: protectedPaths,
	}
}

func (a *APIKey) Authenticate(r *http.Request) Identity {
	if !a.requiresAuth(r.URL) {
		return Anonymous
	}

	key := r.Header.Get(a.Header)
	if key == "" {
		key = r.URL.Query().Get(a.QueryParam)
	}
	if key == "" {
		return Identity{Succeeded: false, FailureReason: "missing API key"}
	}

	ok, subject := a.Validator.Validate(key)
	if !ok {
		return Identity{Succeeded: false, FailureReason: "invalid API key"}
	}
	return Identity{
		Succeeded: true,
		UserID:    subject,
		Claims:    map[string]string{"subject": subject},
	}
}

func (a *APIKey) requiresAuth(u *url.URL) bool {
	if len(a.ProtectedOnly) == 0 {
		return true
	}
	for _, prefix := range a.ProtectedOnly {
		if strings.HasPrefix(u.Path, prefix) {
			return true
		}
	}
	return false
}
