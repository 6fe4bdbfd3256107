package llm

import (
	"context"
	"fmt"

	"github.com/haasonsaas/mcphost/internal/agent"
)

// EchoProvider is a minimal in-memory LLMProvider that never calls a real
// model: it echoes the latest user message back as the assistant's reply.
// Used by the CLI's `--provider=echo` smoke mode and by tests that need an
// LLMProvider without network access or an API key.
type EchoProvider struct{}

// NewEchoProvider builds an EchoProvider.
func NewEchoProvider() *EchoProvider { return &EchoProvider{} }

func (p *EchoProvider) Name() string { return "echo" }

func (p *EchoProvider) Models() []agent.Model {
	return []agent.Model{{ID: "echo-1", Name: "Echo", ContextSize: 1 << 20, SupportsVision: false}}
}

func (p *EchoProvider) SupportsTools() bool { return false }

// Complete replies with "echo: <last user message>" and a single Done chunk.
func (p *EchoProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}

	chunks := make(chan *agent.CompletionChunk, 2)
	chunks <- &agent.CompletionChunk{Text: fmt.Sprintf("echo: %s", last)}
	chunks <- &agent.CompletionChunk{Done: true}
	close(chunks)
	return chunks, nil
}
