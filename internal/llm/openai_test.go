package llm

import (
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/mcphost/internal/agent"
)

func TestNewOpenAIProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIConfig{}); err == nil {
		t.Fatal("expected an error when APIKey is empty")
	}
}

func TestNewOpenAIProvider_Defaults(t *testing.T) {
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}
	if p.defaultModel != "gpt-4o" {
		t.Errorf("defaultModel = %q, want gpt-4o", p.defaultModel)
	}
	if p.maxAttempts != 3 {
		t.Errorf("maxAttempts = %d, want 3", p.maxAttempts)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", p.Name())
	}
	if !p.SupportsTools() {
		t.Error("SupportsTools() = false, want true")
	}
	if len(p.Models()) == 0 {
		t.Error("expected a non-empty model list")
	}
}

func TestOpenAIProvider_Model(t *testing.T) {
	p := &OpenAIProvider{defaultModel: "gpt-default"}
	if got := p.model(""); got != "gpt-default" {
		t.Errorf("model(\"\") = %q, want gpt-default", got)
	}
	if got := p.model("gpt-4-turbo"); got != "gpt-4-turbo" {
		t.Errorf("model(gpt-4-turbo) = %q, want gpt-4-turbo", got)
	}
}

func TestOpenAIProvider_ConvertMessages_SystemPrepended(t *testing.T) {
	p := &OpenAIProvider{}
	out := p.convertMessages([]agent.CompletionMessage{
		{Role: "user", Content: "hi"},
	}, "be terse")

	if len(out) != 2 {
		t.Fatalf("expected 2 messages (system + user), got %d", len(out))
	}
	if out[0].Role != openai.ChatMessageRoleSystem || out[0].Content != "be terse" {
		t.Errorf("first message = %+v, want system/be terse", out[0])
	}
}

func TestOpenAIProvider_ConvertMessages_ToolResultsBecomeToolRole(t *testing.T) {
	p := &OpenAIProvider{}
	out := p.convertMessages([]agent.CompletionMessage{
		{
			Role: "user",
			ToolResults: []agent.ToolCallResult{
				{ToolCallID: "call-1", Result: map[string]any{"ok": true}},
			},
		},
	}, "")

	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	if out[0].Role != openai.ChatMessageRoleTool || out[0].ToolCallID != "call-1" {
		t.Errorf("tool result message = %+v, want role=tool, ToolCallID=call-1", out[0])
	}
}

func TestOpenAIProvider_ConvertMessages_ToolCalls(t *testing.T) {
	p := &OpenAIProvider{}
	out := p.convertMessages([]agent.CompletionMessage{
		{
			Role: "assistant",
			ToolCalls: []agent.ToolCall{
				{ID: "call-1", Name: "search", Arguments: map[string]any{"q": "go"}},
			},
		},
	}, "")

	if len(out) != 1 || len(out[0].ToolCalls) != 1 {
		t.Fatalf("expected 1 message with 1 tool call, got %+v", out)
	}
	if out[0].ToolCalls[0].Function.Name != "search" {
		t.Errorf("tool call function name = %q, want search", out[0].ToolCalls[0].Function.Name)
	}
}

func TestOpenAIProvider_ConvertTools(t *testing.T) {
	p := &OpenAIProvider{}
	schema := []byte(`{"type":"object","properties":{"q":{"type":"string"}}}`)
	out := p.convertTools([]agent.Tool{fakeTool{name: "search", desc: "search the web", schema: schema}})

	if len(out) != 1 {
		t.Fatalf("expected 1 converted tool, got %d", len(out))
	}
	if out[0].Function.Name != "search" || out[0].Function.Description != "search the web" {
		t.Errorf("converted tool = %+v, want name=search desc='search the web'", out[0].Function)
	}
}

func TestOpenAIProvider_ConvertTools_FallsBackOnInvalidSchema(t *testing.T) {
	p := &OpenAIProvider{}
	out := p.convertTools([]agent.Tool{fakeTool{name: "bad", schema: []byte("not json")}})
	if len(out) != 1 || out[0].Function.Parameters == nil {
		t.Fatalf("expected a fallback empty-object schema, got %+v", out)
	}
}

func TestOpenAIProvider_FlushToolCalls_SkipsIncompleteCalls(t *testing.T) {
	p := &OpenAIProvider{}
	chunks := make(chan *agent.CompletionChunk, 4)

	calls := map[int]*agent.ToolCall{
		0: {ID: "call-1", Name: "search"},
		1: {}, // missing ID and Name, should be skipped
	}
	arg0 := &strings.Builder{}
	arg0.WriteString(`{"q":"go"}`)
	arg1 := &strings.Builder{}
	args := map[int]*strings.Builder{0: arg0, 1: arg1}

	p.flushToolCalls(calls, args, chunks)
	close(chunks)

	var got []*agent.CompletionChunk
	for c := range chunks {
		got = append(got, c)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 emitted tool call chunk, got %d", len(got))
	}
	if got[0].ToolCall.Name != "search" {
		t.Errorf("emitted tool call = %+v, want name=search", got[0].ToolCall)
	}
	if got[0].ToolCall.Arguments["q"] != "go" {
		t.Errorf("tool call arguments = %+v, want q=go", got[0].ToolCall.Arguments)
	}
}

func TestResultTextOrEmpty(t *testing.T) {
	if got := resultTextOrEmpty(nil); got != "" {
		t.Errorf("resultTextOrEmpty(nil) = %q, want empty", got)
	}
	if got := resultTextOrEmpty(map[string]any{"ok": true}); got != `{"ok":true}` {
		t.Errorf("resultTextOrEmpty(...) = %q, want {\"ok\":true}", got)
	}
}
