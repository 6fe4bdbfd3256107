package mcptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/haasonsaas/mcphost/internal/jsonrpc"
)

// SSEServerTransport is one transport instance per long-lived SSE HTTP
// response. It never reads inbound JSON-RPC traffic itself — the
// connection manager deserializes POSTed messages and hands them to
// HandleRequest/HandleNotification, which re-emit them on this transport's
// callbacks, matching the MCP split between the GET /sse stream and the
// POST /messages endpoint.
type SSEServerTransport struct {
	sessionID string
	w         http.ResponseWriter
	flusher   http.Flusher

	writeMu sync.Mutex

	onRequest      []func(*jsonrpc.Request)
	onNotification []func(*jsonrpc.Notification)
	onError        []func(error)
	onClose        []func()
	callbackMu     sync.Mutex

	metadata   map[string]string
	metadataMu sync.RWMutex

	started atomic.Bool
	closed  atomic.Bool
}

// NewSSEServerTransport constructs a transport bound to one HTTP response.
// The caller must have already confirmed w supports http.Flusher.
func NewSSEServerTransport(w http.ResponseWriter) (*SSEServerTransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &SSEServerTransport{
		sessionID: uuid.New().String(),
		w:         w,
		flusher:   flusher,
		metadata:  make(map[string]string),
	}, nil
}

func (t *SSEServerTransport) SessionID() string { return t.sessionID }

// SetMetadata stashes authenticated-identity fields (user id, claims) on
// the transport so downstream tool handlers can read them.
func (t *SSEServerTransport) SetMetadata(key, value string) {
	t.metadataMu.Lock()
	defer t.metadataMu.Unlock()
	t.metadata[key] = value
}

func (t *SSEServerTransport) Metadata(key string) (string, bool) {
	t.metadataMu.RLock()
	defer t.metadataMu.RUnlock()
	v, ok := t.metadata[key]
	return v, ok
}

// Start sets SSE headers and writes the first frame: a named "endpoint"
// event whose data is the URL the client should POST JSON-RPC messages to.
func (t *SSEServerTransport) Start(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	t.w.Header().Set("Content-Type", "text/event-stream")
	t.w.Header().Set("Cache-Control", "no-cache")
	t.w.Header().Set("Connection", "keep-alive")
	t.w.WriteHeader(http.StatusOK)
	t.flusher.Flush()

	endpoint := fmt.Sprintf("/messages?sessionId=%s", t.sessionID)
	return t.writeFrame("endpoint", endpoint)
}

func (t *SSEServerTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.fireClose()
	return nil
}

func (t *SSEServerTransport) OnError(fn func(error)) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onError = append(t.onError, fn)
}

func (t *SSEServerTransport) OnClose(fn func()) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onClose = append(t.onClose, fn)
}

func (t *SSEServerTransport) OnRequest(fn func(*jsonrpc.Request)) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onRequest = append(t.onRequest, fn)
}

func (t *SSEServerTransport) OnNotification(fn func(*jsonrpc.Notification)) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onNotification = append(t.onNotification, fn)
}

// Send writes a JSON-RPC response as an anonymous SSE data frame.
func (t *SSEServerTransport) Send(resp *jsonrpc.Response) error {
	if t.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return t.writeFrame("", string(data))
}

// HandleRequest is called by the connection manager for a POSTed JSON-RPC
// request; it re-emits the request on this transport's OnRequest callbacks.
func (t *SSEServerTransport) HandleRequest(req *jsonrpc.Request) {
	t.callbackMu.Lock()
	cbs := append([]func(*jsonrpc.Request){}, t.onRequest...)
	t.callbackMu.Unlock()
	for _, cb := range cbs {
		cb(req)
	}
}

// HandleNotification is called by the connection manager for a POSTed
// JSON-RPC notification.
func (t *SSEServerTransport) HandleNotification(notif *jsonrpc.Notification) {
	t.callbackMu.Lock()
	cbs := append([]func(*jsonrpc.Notification){}, t.onNotification...)
	t.callbackMu.Unlock()
	for _, cb := range cbs {
		cb(notif)
	}
}

func (t *SSEServerTransport) writeFrame(event, data string) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	var err error
	if event != "" {
		_, err = fmt.Fprintf(t.w, "event: %s\ndata: %s\n\n", event, data)
	} else {
		_, err = fmt.Fprintf(t.w, "data: %s\n\n", data)
	}
	if err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

func (t *SSEServerTransport) fireClose() {
	t.callbackMu.Lock()
	cbs := append([]func(){}, t.onClose...)
	t.callbackMu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}
