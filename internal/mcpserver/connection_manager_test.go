package mcpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haasonsaas/mcphost/internal/mcpauth"
	"github.com/haasonsaas/mcphost/internal/toolreg"
)

func newTestManager(t *testing.T) *ConnectionManager {
	t.Helper()
	tools := toolreg.NewRegistry()
	server := New(Info{Name: "test-server", Version: "0.0.0"}, tools, nil)
	return NewConnectionManager(server, mcpauth.None{}, nil)
}

func TestConnectionManagerMessageMissingSessionID(t *testing.T) {
	t.Parallel()
	cm := newTestManager(t)

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	cm.HandleMessage(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestConnectionManagerMessageUnknownSession(t *testing.T) {
	t.Parallel()
	cm := newTestManager(t)

	req := httptest.NewRequest(http.MethodPost, "/messages?sessionId=does-not-exist", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	cm.HandleMessage(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestConnectionManagerMessageUnauthorized(t *testing.T) {
	t.Parallel()
	tools := toolreg.NewRegistry()
	server := New(Info{Name: "test-server", Version: "0.0.0"}, tools, nil)
	validator := mcpauth.NewInMemoryKeyValidator(map[string]string{"key": "user"})
	cm := NewConnectionManager(server, mcpauth.NewAPIKey(validator), nil)

	req := httptest.NewRequest(http.MethodPost, "/messages?sessionId=whatever", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	cm.HandleMessage(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestConnectionManagerHealth(t *testing.T) {
	t.Parallel()
	cm := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	cm.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestConnectionManagerSSEThenMessageRoundTrip(t *testing.T) {
	t.Parallel()
	cm := newTestManager(t)

	sseRec := httptest.NewRecorder()
	sseReq := httptest.NewRequest(http.MethodGet, "/sse", nil)

	done := make(chan struct{})
	go func() {
		cm.HandleSSE(sseRec, sseReq)
		close(done)
	}()

	var sessionID string
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		var found bool
		cm.sessions.Range(func(key, value any) bool {
			sessionID = key.(string)
			found = true
			return false
		})
		if found {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if sessionID == "" {
		t.Fatal("expected a session to be registered after HandleSSE starts")
	}

	initBody, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  map[string]any{"protocolVersion": ProtocolVersion},
	})
	msgReq := httptest.NewRequest(http.MethodPost, "/messages?sessionId="+sessionID, bytes.NewReader(initBody))
	msgRec := httptest.NewRecorder()
	cm.HandleMessage(msgRec, msgReq)

	if msgRec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body=%s", msgRec.Code, http.StatusAccepted, msgRec.Body.String())
	}
}
