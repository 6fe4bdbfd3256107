package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestTryParseLineBlank(t *testing.T) {
	tests := []string{"", "   ", "\t\n"}
	for _, line := range tests {
		msg, ok, err := Parser{}.TryParseLine(line)
		if ok || err != nil || msg != nil {
			t.Errorf("blank line %q: expected (nil, false, nil), got (%v, %v, %v)", line, msg, ok, err)
		}
	}
}

func TestTryParseLineRequest(t *testing.T) {
	msg, ok, err := Parser{}.TryParseLine(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || msg.Request == nil {
		t.Fatalf("expected a request, got %+v", msg)
	}
	if msg.Request.Method != "tools/list" {
		t.Errorf("expected method tools/list, got %q", msg.Request.Method)
	}
}

func TestTryParseLineNotification(t *testing.T) {
	msg, ok, err := Parser{}.TryParseLine(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || msg.Notification == nil {
		t.Fatalf("expected a notification, got %+v", msg)
	}
}

func TestTryParseLineResponse(t *testing.T) {
	msg, ok, err := Parser{}.TryParseLine(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || msg.Response == nil {
		t.Fatalf("expected a response, got %+v", msg)
	}
}

func TestTryParseLineErrorResponse(t *testing.T) {
	msg, ok, err := Parser{}.TryParseLine(`{"jsonrpc":"2.0","id":"2","error":{"code":-32601,"message":"Unknown tool: nope"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || msg.Response == nil || msg.Response.Error == nil {
		t.Fatalf("expected an error response, got %+v", msg)
	}
	if msg.Response.Error.Code != CodeMethodNotFound {
		t.Errorf("expected code %d, got %d", CodeMethodNotFound, msg.Response.Error.Code)
	}
}

func TestTryParseLineMalformed(t *testing.T) {
	_, ok, err := Parser{}.TryParseLine(`{not json`)
	if !ok {
		t.Fatal("expected the line to be consumed even though it failed to parse")
	}
	if err == nil {
		t.Fatal("expected a parse error")
	}
	var pe *ParseError
	if _, isParseErr := err.(*ParseError); !isParseErr {
		t.Errorf("expected *ParseError, got %T", err)
	}
	_ = pe
}

func TestEnvelopeRoundTrip(t *testing.T) {
	req := &Request{JSONRPC: Version, ID: "abc", Method: "initialize", Params: json.RawMessage(`{"protocolVersion":"1.0.0"}`)}
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DeserializeRequest(raw)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.ID != req.ID || got.Method != req.Method {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, req)
	}
}

func TestIDTypePreserved(t *testing.T) {
	for _, id := range []any{"string-id", float64(42)} {
		resp, err := NewResponse(id, map[string]any{"ok": true})
		if err != nil {
			t.Fatalf("NewResponse: %v", err)
		}
		raw, err := json.Marshal(resp)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		back, err := DeserializeResponse(raw)
		if err != nil {
			t.Fatalf("deserialize: %v", err)
		}
		if back.ID != id {
			t.Errorf("expected id %v (%T), got %v (%T)", id, id, back.ID, back.ID)
		}
	}
}
