package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/mcphost/internal/agents"
	"github.com/haasonsaas/mcphost/internal/mcpclient"
	"github.com/haasonsaas/mcphost/internal/toolreg"
)

const thinkingContext = "thinking"

// ChatSession owns one agentic conversation: an LLM provider, an MCP
// client for tool execution, and the subset of tools this session may
// call. It keeps the conversation history itself and sends the whole
// history with every LLM completion request.
type ChatSession struct {
	ID             string
	Agent          *agents.Definition
	CreatedAt      time.Time
	LastActivityAt time.Time

	llm   LLMProvider
	mcp   *mcpclient.Client
	tools *toolreg.AgentRegistry

	emitter *eventEmitter

	mu       sync.Mutex // serializes sendUserMessage per session
	messages []CompletionMessage
}

// NewChatSession wires a session over the given collaborators. def may be
// nil for an ad-hoc session not backed by a persisted agent definition.
func NewChatSession(id string, def *agents.Definition, llm LLMProvider, mcp *mcpclient.Client, tools *toolreg.AgentRegistry, sink EventSink) *ChatSession {
	now := time.Now()
	s := &ChatSession{
		ID:             id,
		Agent:          def,
		CreatedAt:      now,
		LastActivityAt: now,
		llm:            llm,
		mcp:            mcp,
		tools:          tools,
		emitter:        newEventEmitter(id, sink),
	}
	if def != nil && def.SystemPrompt != "" {
		s.messages = append(s.messages, CompletionMessage{Role: "system", Content: def.SystemPrompt})
	}
	s.emitter.sessionStarted(context.Background())
	return s
}

// SendUserMessage emits UserMessageReceived, calls the LLM, then
// interleaves text responses and serially-executed tool calls until the
// LLM stops requesting tools.
func (s *ChatSession) SendUserMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastActivityAt = time.Now()
	s.emitter.userMessageReceived(ctx, text)
	s.messages = append(s.messages, CompletionMessage{Role: "user", Content: text})

	chunks, err := s.callLLM(ctx)
	if err != nil {
		return err
	}

	for len(chunks) > 0 {
		textParts, toolCalls := partitionChunks(chunks)

		for _, part := range textParts {
			s.emitter.assistantMessageReceived(ctx, part)
			s.messages = append(s.messages, CompletionMessage{Role: "assistant", Content: part})
		}

		var results []ToolCallResult
		if len(toolCalls) > 0 {
			results = s.runToolCalls(ctx, toolCalls)
		}

		if len(results) == 0 {
			break
		}

		s.messages = append(s.messages, CompletionMessage{ToolResults: results})
		chunks, err = s.callLLM(ctx)
		if err != nil {
			return err
		}
	}

	return nil
}

// callLLM brackets one LLM call with ThinkingStateChanged(true)/(false),
// the latter firing even on error via defer.
func (s *ChatSession) callLLM(ctx context.Context) ([]*CompletionChunk, error) {
	if s.llm == nil {
		return nil, ErrNoProvider
	}

	s.emitter.thinkingStateChanged(ctx, true, thinkingContext)
	defer s.emitter.thinkingStateChanged(ctx, false, thinkingContext)

	req := &CompletionRequest{Messages: append([]CompletionMessage(nil), s.messages...)}
	if s.Agent != nil {
		req.Model = s.Agent.ModelName
	}

	stream, err := s.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agent: llm completion: %w", err)
	}

	var chunks []*CompletionChunk
	for chunk := range stream {
		if chunk.Error != nil {
			return nil, fmt.Errorf("agent: llm stream: %w", chunk.Error)
		}
		chunks = append(chunks, chunk)
		if chunk.Done {
			break
		}
	}
	return chunks, nil
}

func partitionChunks(chunks []*CompletionChunk) (texts []string, calls []ToolCall) {
	for _, c := range chunks {
		if c.ToolCall != nil {
			calls = append(calls, *c.ToolCall)
		} else if c.Text != "" {
			texts = append(texts, c.Text)
		}
	}
	return texts, calls
}

// runToolCalls executes toolCalls serially, in the order the LLM produced
// them. A missing tool or a handler error both produce a recovered
// {"Error": ...} result rather than aborting the remaining calls in the
// batch.
func (s *ChatSession) runToolCalls(ctx context.Context, calls []ToolCall) []ToolCallResult {
	results := make([]ToolCallResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, s.runOneToolCall(ctx, call))
	}
	return results
}

func (s *ChatSession) runOneToolCall(ctx context.Context, call ToolCall) ToolCallResult {
	if s.tools != nil && !s.toolIsEnabled(call.Name) {
		s.emitter.toolExecutionUpdated(ctx, call.Name, ToolExecutionFailed, "Tool not found", call.ID, call.Arguments)
		return ToolCallResult{ToolCallID: call.ID, Result: map[string]any{"Error": "Tool not found"}}
	}

	s.emitter.toolExecutionUpdated(ctx, call.Name, ToolExecutionStarting, "", call.ID, call.Arguments)

	result, err := s.invokeTool(ctx, call)
	if err != nil {
		s.emitter.toolExecutionUpdated(ctx, call.Name, ToolExecutionFailed, err.Error(), call.ID, call.Arguments)
		return ToolCallResult{ToolCallID: call.ID, Result: map[string]any{"Error": err.Error()}}
	}

	s.emitter.toolExecutionUpdated(ctx, call.Name, ToolExecutionCompleted, "", call.ID, call.Arguments)
	return ToolCallResult{ToolCallID: call.ID, Result: result}
}

func (s *ChatSession) toolIsEnabled(name string) bool {
	for _, d := range s.tools.Enabled() {
		if d.Name == name {
			return true
		}
	}
	return false
}

func (s *ChatSession) invokeTool(ctx context.Context, call ToolCall) (result map[string]any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool %q panicked: %v", call.Name, p)
		}
	}()

	if s.mcp == nil {
		return nil, ErrNoProvider
	}
	callResult, err := s.mcp.CallTool(ctx, call.Name, call.Arguments)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(callResult.Content))
	for i, part := range callResult.Content {
		out[fmt.Sprintf("content_%d", i)] = part.Text
	}
	if callResult.IsError {
		return out, fmt.Errorf("tool reported an error result")
	}
	return out, nil
}
