package mcptransport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/mcphost/internal/backoff"
	"github.com/haasonsaas/mcphost/internal/jsonrpc"
)

// SSEClientTransport opens a GET to a server's SSE endpoint, captures the
// POST URL from the first "endpoint" event, and issues requests/
// notifications by POSTing to it. Responses arrive asynchronously over the
// SSE stream and are matched to pending requests by id.
type SSEClientTransport struct {
	sessionID string
	sseURL    string
	headers   map[string]string
	client    *http.Client
	logger    *slog.Logger

	endpointURL   string
	endpointReady chan struct{}
	endpointOnce  sync.Once

	pending   map[any]chan *jsonrpc.Response
	pendingMu sync.Mutex
	nextID    atomic.Int64

	onResponse []func(*jsonrpc.Response)
	onError    []func(error)
	onClose    []func()
	callbackMu sync.Mutex

	started atomic.Bool
	closed  atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSSEClientTransport builds a client transport against an MCP server's
// SSE endpoint (e.g. "https://host/sse"). headers are attached to every
// outbound request (GET and POST).
func NewSSEClientTransport(sseURL string, headers map[string]string, timeout time.Duration) *SSEClientTransport {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	sid := uuid.New().String()
	return &SSEClientTransport{
		sessionID:     sid,
		sseURL:        sseURL,
		headers:       headers,
		client:        &http.Client{Timeout: timeout},
		logger:        slog.Default().With("component", "mcptransport.sse_client", "session_id", sid),
		endpointReady: make(chan struct{}),
		pending:       make(map[any]chan *jsonrpc.Response),
		stopCh:        make(chan struct{}),
	}
}

func (t *SSEClientTransport) SessionID() string { return t.sessionID }

func (t *SSEClientTransport) Start(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	t.wg.Add(1)
	go t.reconnectLoop(ctx)
	return nil
}

func (t *SSEClientTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(t.stopCh)

	t.pendingMu.Lock()
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	t.pendingMu.Unlock()

	t.wg.Wait()
	t.fireClose()
	return nil
}

func (t *SSEClientTransport) OnResponse(fn func(*jsonrpc.Response)) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onResponse = append(t.onResponse, fn)
}

func (t *SSEClientTransport) OnError(fn func(error)) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onError = append(t.onError, fn)
}

func (t *SSEClientTransport) OnClose(fn func()) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onClose = append(t.onClose, fn)
}

func (t *SSEClientTransport) SendRequest(ctx context.Context, method string, params any) (*jsonrpc.Response, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if err := t.awaitEndpoint(ctx); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	req := &jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}

	respCh := make(chan *jsonrpc.Response, 1)
	t.pendingMu.Lock()
	t.pending[id] = respCh
	t.pendingMu.Unlock()

	if err := t.postMessage(ctx, req); err != nil {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
		return nil, err
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return nil, ErrClosed
		}
		return resp, nil
	case <-ctx.Done():
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}

func (t *SSEClientTransport) SendNotification(ctx context.Context, method string, params any) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if err := t.awaitEndpoint(ctx); err != nil {
		return err
	}
	notif := &jsonrpc.Notification{JSONRPC: jsonrpc.Version, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = raw
	}
	return t.postMessage(ctx, notif)
}

func (t *SSEClientTransport) awaitEndpoint(ctx context.Context) error {
	select {
	case <-t.endpointReady:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.stopCh:
		return ErrClosed
	}
}

func (t *SSEClientTransport) postMessage(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status posting message: %d", resp.StatusCode)
	}
	return nil
}

// reconnectLoop keeps the SSE GET alive, reconnecting with jittered
// exponential backoff whenever the stream drops.
func (t *SSEClientTransport) reconnectLoop(ctx context.Context) {
	defer t.wg.Done()

	policy := backoff.DefaultPolicy()
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		default:
		}

		connected := t.connectOnce(ctx)
		if connected {
			attempt = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		default:
		}

		attempt++
		delay := backoff.ComputeBackoff(policy, attempt)
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-time.After(delay):
		}
	}
}

// connectOnce opens the SSE stream and reads frames until it drops. It
// returns whether the stream connected successfully at all (used to reset
// the backoff attempt counter).
func (t *SSEClientTransport) connectOnce(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.sseURL, nil)
	if err != nil {
		t.fireError(fmt.Errorf("build SSE request: %w", err))
		return false
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		t.fireError(fmt.Errorf("SSE connect: %w", err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.fireError(fmt.Errorf("SSE connect: unexpected status %d", resp.StatusCode))
		return false
	}

	t.logger.Debug("SSE connected", "url", t.sseURL)

	var eventName string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return true
		case <-t.stopCh:
			return true
		default:
		}

		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			t.handleFrame(eventName, data)
			eventName = ""
		case line == "":
			eventName = ""
		}
	}

	if err := scanner.Err(); err != nil {
		t.fireError(fmt.Errorf("SSE stream: %w", err))
	}
	return true
}

func (t *SSEClientTransport) handleFrame(eventName, data string) {
	if eventName == "endpoint" {
		t.endpointOnce.Do(func() {
			base := strings.TrimSuffix(t.sseURL, "/sse")
			t.endpointURL = base + data
			close(t.endpointReady)
		})
		return
	}

	var resp jsonrpc.Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		t.fireError(&jsonrpc.ParseError{Line: data, Err: err})
		return
	}

	t.completePending(&resp)
	t.callbackMu.Lock()
	cbs := append([]func(*jsonrpc.Response){}, t.onResponse...)
	t.callbackMu.Unlock()
	for _, cb := range cbs {
		cb(&resp)
	}
}

func (t *SSEClientTransport) completePending(resp *jsonrpc.Response) {
	key := idKey(resp.ID)
	t.pendingMu.Lock()
	ch, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.pendingMu.Unlock()

	if !ok {
		t.logger.Warn("unknown response", "id", resp.ID)
		return
	}
	ch <- resp
}

func (t *SSEClientTransport) fireError(err error) {
	t.callbackMu.Lock()
	cbs := append([]func(error){}, t.onError...)
	t.callbackMu.Unlock()
	for _, cb := range cbs {
		cb(err)
	}
}

func (t *SSEClientTransport) fireClose() {
	t.callbackMu.Lock()
	cbs := append([]func(){}, t.onClose...)
	t.callbackMu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}
