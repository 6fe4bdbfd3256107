package llm

import (
	"context"
	"testing"

	"github.com/haasonsaas/mcphost/internal/agent"
)

func TestEchoProvider_EchoesLastUserMessage(t *testing.T) {
	p := NewEchoProvider()
	if p.Name() != "echo" {
		t.Errorf("Name() = %q, want echo", p.Name())
	}
	if p.SupportsTools() {
		t.Error("SupportsTools() = true, want false")
	}

	chunks, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "reply"},
			{Role: "user", Content: "second"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var got []*agent.CompletionChunk
	for c := range chunks {
		got = append(got, c)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks (text + done), got %d", len(got))
	}
	if got[0].Text != "echo: second" {
		t.Errorf("Text = %q, want 'echo: second'", got[0].Text)
	}
	if !got[1].Done {
		t.Error("expected the final chunk to be Done")
	}
}

func TestEchoProvider_NoUserMessage(t *testing.T) {
	p := NewEchoProvider()
	chunks, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "assistant", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	var got []*agent.CompletionChunk
	for c := range chunks {
		got = append(got, c)
	}
	if got[0].Text != "echo: " {
		t.Errorf("Text = %q, want 'echo: '", got[0].Text)
	}
}
