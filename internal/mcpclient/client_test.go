package mcpclient

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/mcphost/internal/jsonrpc"
)

// fakeTransport is a minimal mcptransport.ClientTransport double that
// answers every request from a canned table, so Client's handshake and
// call-mapping logic can be exercised without a real transport.
type fakeTransport struct {
	sessionID string
	responses map[string]*jsonrpc.Response
	closed    bool
	onClose   []func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sessionID: "fake-session", responses: make(map[string]*jsonrpc.Response)}
}

func (f *fakeTransport) SessionID() string { return f.sessionID }
func (f *fakeTransport) Start(ctx context.Context) error { return nil }
func (f *fakeTransport) Close() error {
	f.closed = true
	for _, cb := range f.onClose {
		cb()
	}
	return nil
}
func (f *fakeTransport) OnError(func(error)) {}
func (f *fakeTransport) OnClose(fn func())   { f.onClose = append(f.onClose, fn) }
func (f *fakeTransport) OnResponse(func(*jsonrpc.Response)) {}

func (f *fakeTransport) SendRequest(ctx context.Context, method string, params any) (*jsonrpc.Response, error) {
	resp, ok := f.responses[method]
	if !ok {
		return nil, &jsonrpc.McpError{Code: jsonrpc.CodeMethodNotFound, Message: "no canned response for " + method}
	}
	return resp, nil
}

func (f *fakeTransport) SendNotification(ctx context.Context, method string, params any) error {
	return nil
}

func mustResult(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestClientConnectSuccess(t *testing.T) {
	ft := newFakeTransport()
	ft.responses["initialize"] = &jsonrpc.Response{
		JSONRPC: jsonrpc.Version,
		ID:      "1",
		Result: mustResult(t, map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      ServerInfo{Name: "test-server", Version: "0.1"},
		}),
	}

	c := New(ft, nil)
	if err := c.Connect(context.Background(), ClientInfo{Name: "mcphost", Version: "0.1"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.Connected() {
		t.Fatal("expected Connected() true after successful Connect")
	}
	if c.ServerInfo().Name != "test-server" {
		t.Errorf("unexpected server info: %+v", c.ServerInfo())
	}
}

func TestClientConnectFailurePropagates(t *testing.T) {
	ft := newFakeTransport()
	// no canned "initialize" response: SendRequest returns MethodNotFound
	c := New(ft, nil)
	if err := c.Connect(context.Background(), ClientInfo{Name: "mcphost", Version: "0.1"}); err == nil {
		t.Fatal("expected Connect to fail without a canned initialize response")
	}
	if c.Connected() {
		t.Fatal("expected Connected() false after failed Connect")
	}
	if !ft.closed {
		t.Fatal("expected transport to be closed after failed Connect")
	}
}

func TestClientListTools(t *testing.T) {
	ft := newFakeTransport()
	ft.responses["initialize"] = &jsonrpc.Response{
		JSONRPC: jsonrpc.Version, ID: "1",
		Result: mustResult(t, map[string]any{
			"protocolVersion": ProtocolVersion,
			"serverInfo":      ServerInfo{Name: "s", Version: "1"},
		}),
	}
	ft.responses["tools/list"] = &jsonrpc.Response{
		JSONRPC: jsonrpc.Version, ID: "2",
		Result: mustResult(t, map[string]any{
			"tools": []map[string]any{{"name": "echo", "description": "repeats text"}},
		}),
	}

	c := New(ft, nil)
	if err := c.Connect(context.Background(), ClientInfo{Name: "mcphost", Version: "0.1"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	tools, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
	if got := c.CachedTools(); len(got) != 1 {
		t.Errorf("expected cached tools to be populated, got %v", got)
	}
}

func TestClientCallToolBeforeConnectFails(t *testing.T) {
	c := New(newFakeTransport(), nil)
	if _, err := c.CallTool(context.Background(), "echo", nil); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClientCallTool(t *testing.T) {
	ft := newFakeTransport()
	ft.responses["initialize"] = &jsonrpc.Response{
		JSONRPC: jsonrpc.Version, ID: "1",
		Result: mustResult(t, map[string]any{
			"protocolVersion": ProtocolVersion,
			"serverInfo":      ServerInfo{Name: "s", Version: "1"},
		}),
	}
	ft.responses["tools/call"] = &jsonrpc.Response{
		JSONRPC: jsonrpc.Version, ID: "2",
		Result: mustResult(t, map[string]any{
			"content": []map[string]any{{"type": "text", "text": "hi"}},
		}),
	}

	c := New(ft, nil)
	if err := c.Connect(context.Background(), ClientInfo{Name: "mcphost", Version: "0.1"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	result, err := c.CallTool(context.Background(), "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError || len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Fatalf("unexpected result: %+v", result)
	}
}
