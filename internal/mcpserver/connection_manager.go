package mcpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/haasonsaas/mcphost/internal/jsonrpc"
	"github.com/haasonsaas/mcphost/internal/mcpauth"
	"github.com/haasonsaas/mcphost/internal/mcptransport"
)

const (
	sessionCleanupInterval = 5 * time.Minute
	shutdownCeiling        = 10 * time.Second
)

// ConnectionManager is the HTTP surface in front of a Server core: it
// multiplexes GET /sse (one long-lived transport per connection) and
// POST /messages?sessionId= (routing a posted JSON-RPC message to the
// matching transport) and runs a background cleanup timer.
type ConnectionManager struct {
	server *Server
	auth   mcpauth.Authenticator
	logger *slog.Logger

	sessions   sync.Map // sessionID string -> *mcptransport.SSEServerTransport
	stopTicker chan struct{}
}

// NewConnectionManager builds a manager in front of server. auth defaults
// to mcpauth.None if nil.
func NewConnectionManager(server *Server, auth mcpauth.Authenticator, logger *slog.Logger) *ConnectionManager {
	if auth == nil {
		auth = mcpauth.None{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	cm := &ConnectionManager{
		server:     server,
		auth:       auth,
		logger:     logger.With("component", "mcpserver.connection_manager"),
		stopTicker: make(chan struct{}),
	}
	go cm.cleanupLoop()
	return cm
}

// Handler returns an http.Handler exposing /sse, /messages, and /health.
func (cm *ConnectionManager) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", cm.HandleSSE)
	mux.HandleFunc("/messages", cm.HandleMessage)
	mux.HandleFunc("/health", cm.HandleHealth)
	return mux
}

// HandleSSE implements GET /sse: authenticate, mint a transport, register
// it, connect the server core, start it, then block until the request's
// context is cancelled.
func (cm *ConnectionManager) HandleSSE(w http.ResponseWriter, r *http.Request) {
	identity := cm.auth.Authenticate(r)
	if !identity.Succeeded {
		writeJSONError(w, http.StatusUnauthorized, identity.FailureReason)
		return
	}

	transport, err := mcptransport.NewSSEServerTransport(w)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	transport.SetMetadata("userId", identity.UserID)
	for k, v := range identity.Claims {
		transport.SetMetadata("claim."+k, v)
	}

	cm.sessions.Store(transport.SessionID(), transport)
	transport.OnClose(func() {
		cm.sessions.Delete(transport.SessionID())
	})

	cm.server.Connect(transport)

	if err := transport.Start(r.Context()); err != nil {
		cm.logger.Warn("failed to start SSE transport", "error", err)
		cm.sessions.Delete(transport.SessionID())
		return
	}

	<-r.Context().Done()
	_ = transport.Close()
}

// HandleMessage implements POST /messages?sessionId=<sid>.
func (cm *ConnectionManager) HandleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing sessionId")
		return
	}

	identity := cm.auth.Authenticate(r)
	if !identity.Succeeded {
		writeJSONError(w, http.StatusUnauthorized, identity.FailureReason)
		return
	}

	value, ok := cm.sessions.Load(sessionID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Session not found")
		return
	}
	transport := value.(*mcptransport.SSEServerTransport)

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.CodeParseError, "Parse error")
		return
	}

	msg, err := jsonrpc.ParseMessage(raw)
	if err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.CodeParseError, "Parse error")
		return
	}

	switch {
	case msg.Request != nil:
		transport.HandleRequest(msg.Request)
	case msg.Notification != nil:
		transport.HandleNotification(msg.Notification)
	default:
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.CodeInvalidRequest, "Invalid request")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// HandleHealth implements GET /health: 200 while the manager is accepting
// connections.
func (cm *ConnectionManager) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (cm *ConnectionManager) cleanupLoop() {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Reserved for idle-timeout eviction; sessions currently
			// self-unregister via OnClose.
		case <-cm.stopTicker:
			return
		}
	}
}

// Shutdown closes every registered transport in parallel, bounded by a
// 10-second ceiling; transports still open past the ceiling are abandoned.
func (cm *ConnectionManager) Shutdown() {
	close(cm.stopTicker)

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		cm.sessions.Range(func(key, value any) bool {
			wg.Add(1)
			go func(t *mcptransport.SSEServerTransport) {
				defer wg.Done()
				_ = t.Close()
			}(value.(*mcptransport.SSEServerTransport))
			return true
		})
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownCeiling):
		cm.logger.Warn("shutdown ceiling reached, abandoning remaining transports")
	}

	cm.sessions.Range(func(key, value any) bool {
		cm.sessions.Delete(key)
		return true
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status), "message": message})
}

func writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message})
}
