package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/mcphost/internal/agent"
	"github.com/haasonsaas/mcphost/internal/backoff"
)

// OpenAIConfig holds the settings needed to build an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	MaxAttempts  int
	DefaultModel string
}

// OpenAIProvider implements agent.LLMProvider over OpenAI's chat
// completions streaming API.
type OpenAIProvider struct {
	client       *openai.Client
	maxAttempts  int
	defaultModel string
}

// NewOpenAIProvider builds an OpenAIProvider. APIKey is required.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: openai API key is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		maxAttempts:  cfg.MaxAttempts,
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextSize: 16385, SupportsVision: false},
	}
}

func (p *OpenAIProvider) SupportsTools() bool { return true }

// Complete sends a chat completion request and streams the response.
// Establishing the stream is retried with internal/backoff's exponential
// policy: CreateChatCompletionStream fails synchronously on a rejected
// request, before any tokens are emitted, so a retry here never risks
// duplicating partial output — unlike Anthropic's streaming handshake,
// which only ever fails mid-stream.
func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	messages := p.convertMessages(req.Messages, req.System)

	chatReq := openai.ChatCompletionRequest{
		Model:    p.model(req.Model),
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = p.convertTools(req.Tools)
	}

	policy := backoff.BackoffPolicy{InitialMs: 500, MaxMs: 5000, Factor: 2, Jitter: 0.1}
	result, err := backoff.RetryWithBackoff(ctx, policy, p.maxAttempts, func(attempt int) (*openai.ChatCompletionStream, error) {
		stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			return nil, fmt.Errorf("llm: openai: creating stream (attempt %d): %w", attempt, err)
		}
		return stream, nil
	})
	if err != nil {
		return nil, fmt.Errorf("llm: openai: %w", err)
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.processStream(result.Value, chunks)
	return chunks, nil
}

func (p *OpenAIProvider) processStream(stream *openai.ChatCompletionStream, chunks chan<- *agent.CompletionChunk) {
	defer close(chunks)
	defer stream.Close()

	toolCalls := make(map[int]*agent.ToolCall)
	toolArgs := make(map[int]*strings.Builder)

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.flushToolCalls(toolCalls, toolArgs, chunks)
				chunks <- &agent.CompletionChunk{Done: true}
				return
			}
			chunks <- &agent.CompletionChunk{Error: fmt.Errorf("llm: openai: %w", err)}
			return
		}

		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if choice.Delta.Content != "" {
			chunks <- &agent.CompletionChunk{Text: choice.Delta.Content}
		}

		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if toolCalls[index] == nil {
				toolCalls[index] = &agent.ToolCall{}
				toolArgs[index] = &strings.Builder{}
			}
			if tc.ID != "" {
				toolCalls[index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[index].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolArgs[index].WriteString(tc.Function.Arguments)
			}
		}

		if choice.FinishReason == "tool_calls" {
			p.flushToolCalls(toolCalls, toolArgs, chunks)
			toolCalls = make(map[int]*agent.ToolCall)
			toolArgs = make(map[int]*strings.Builder)
		}
	}
}

func (p *OpenAIProvider) flushToolCalls(calls map[int]*agent.ToolCall, args map[int]*strings.Builder, chunks chan<- *agent.CompletionChunk) {
	for index, call := range calls {
		if call.ID == "" || call.Name == "" {
			continue
		}
		var parsed map[string]any
		_ = json.Unmarshal([]byte(args[index].String()), &parsed)
		call.Arguments = parsed
		chunks <- &agent.CompletionChunk{ToolCall: call}
	}
}

func (p *OpenAIProvider) convertMessages(messages []agent.CompletionMessage, system string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		if len(msg.ToolResults) > 0 {
			for _, tr := range msg.ToolResults {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    resultTextOrEmpty(tr.Result),
					ToolCallID: tr.ToolCallID,
				})
			}
			continue
		}

		oaiMsg := openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
		if len(msg.ToolCalls) > 0 {
			oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				argBytes, _ := json.Marshal(tc.Arguments)
				oaiMsg.ToolCalls[i] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(argBytes),
					},
				}
			}
		}
		out = append(out, oaiMsg)
	}
	return out
}

func (p *OpenAIProvider) convertTools(tools []agent.Tool) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schema map[string]any
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  schema,
			},
		}
	}
	return out
}

func (p *OpenAIProvider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func resultTextOrEmpty(result map[string]any) string {
	if result == nil {
		return ""
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return ""
	}
	return string(payload)
}
