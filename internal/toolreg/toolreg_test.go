package toolreg

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/haasonsaas/mcphost/internal/jsonrpc"
)

func echoParams() []ParamSpec {
	return []ParamSpec{
		{Name: "text", Kind: KindString, Required: true},
		{Name: "count", Kind: KindInteger, Required: false, Default: float64(1)},
	}
}

func TestRegistryInvokeSuccess(t *testing.T) {
	r := NewRegistry()
	err := r.Register("echo", "repeats text", echoParams(), func(ctx context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"Text":"hi"}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Fatalf("unexpected content: %+v", result.Content)
	}
}

func TestRegistryInvokeMissingRequired(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("echo", "repeats text", echoParams(), func(ctx context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	})

	_, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected an error for missing required parameter")
	}
	if _, ok := err.(*InvalidArgsError); !ok {
		t.Fatalf("expected *InvalidArgsError, got %T", err)
	}
}

func TestRegistryInvokeDefaultApplied(t *testing.T) {
	r := NewRegistry()
	var gotCount any
	_ = r.Register("echo", "repeats text", echoParams(), func(ctx context.Context, args map[string]any) (any, error) {
		gotCount = args["count"]
		return args["text"], nil
	})

	if _, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if gotCount != float64(1) {
		t.Errorf("expected default count 1, got %v", gotCount)
	}
}

func TestRegistryInvokeHandlerError(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("boom", "always fails", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errBoom
	})

	result, err := r.Invoke(context.Background(), "boom", nil)
	if err != nil {
		t.Fatalf("Invoke should not return a transport-level error for a handler failure: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected IsError true, got %+v", result)
	}
	if len(result.Content) != 2 {
		t.Fatalf("expected a two-part content, got %+v", result.Content)
	}
	if want := "Error in tool execution: " + errBoom.Error(); result.Content[0].Text != want {
		t.Errorf("Content[0].Text = %q, want %q", result.Content[0].Text, want)
	}
	if !strings.HasPrefix(result.Content[1].Text, "Stack trace:\n") {
		t.Errorf("Content[1].Text = %q, want a Stack trace: prefix", result.Content[1].Text)
	}
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "missing", nil)
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected *NotFoundError, got %T", err)
	}
}

func TestRegistryInvokePanicRecovered(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("panics", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		panic("boom")
	})

	result, err := r.Invoke(context.Background(), "panics", nil)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected a recovered panic to surface as an error result, got %+v", result)
	}
	if len(result.Content) != 2 {
		t.Fatalf("expected a two-part content, got %+v", result.Content)
	}
	if !strings.Contains(result.Content[0].Text, `panicked: boom`) {
		t.Errorf("Content[0].Text = %q, want it to mention the panic value", result.Content[0].Text)
	}
	if !strings.HasPrefix(result.Content[1].Text, "Stack trace:\n") {
		t.Errorf("Content[1].Text = %q, want a Stack trace: prefix", result.Content[1].Text)
	}
}

func TestRegistryInvokeMcpErrorPropagates(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("restricted", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, jsonrpc.NewMcpError(jsonrpc.CodeResourceNotFound, "no such resource")
	})

	_, err := r.Invoke(context.Background(), "restricted", nil)
	mcpErr, ok := err.(*jsonrpc.McpError)
	if !ok {
		t.Fatalf("expected *jsonrpc.McpError, got %T (%v)", err, err)
	}
	if mcpErr.Code != jsonrpc.CodeResourceNotFound {
		t.Errorf("expected code %d, got %d", jsonrpc.CodeResourceNotFound, mcpErr.Code)
	}
}

func TestAgentRegistryCategories(t *testing.T) {
	a := NewAgentRegistry()
	a.SetAvailable([]Descriptor{{Name: "fs_read"}, {Name: "fs_write"}, {Name: "search"}})

	cats := a.Categories()
	if len(cats["fs"]) != 2 {
		t.Errorf("expected 2 tools under fs, got %d", len(cats["fs"]))
	}
	if len(cats["search"]) != 1 {
		t.Errorf("expected 1 tool under search, got %d", len(cats["search"]))
	}
}

func TestAgentRegistryValidateIDs(t *testing.T) {
	a := NewAgentRegistry()
	a.SetAvailable([]Descriptor{{Name: "fs_read"}})

	ok, missing := a.ValidateIDs([]string{"fs_read", "fs_delete"})
	if ok {
		t.Fatal("expected validation to fail")
	}
	if len(missing) != 1 || missing[0] != "fs_delete" {
		t.Errorf("unexpected missing list: %v", missing)
	}
}

func TestAgentRegistryEnabledPreservedAcrossRefresh(t *testing.T) {
	a := NewAgentRegistry()
	a.SetAvailable([]Descriptor{{Name: "fs_read"}, {Name: "fs_write"}})
	a.Enable("fs_read")

	a.SetAvailable([]Descriptor{{Name: "fs_read"}})
	enabled := a.Enabled()
	if len(enabled) != 1 || enabled[0].Name != "fs_read" {
		t.Errorf("expected fs_read to remain enabled, got %v", enabled)
	}
}

var errBoom = simpleErr("boom")

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
