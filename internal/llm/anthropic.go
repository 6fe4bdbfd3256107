// Package llm adapts third-party LLM SDKs to the agent.LLMProvider
// interface, converting between mcphost's internal completion types and
// each provider's wire format.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/haasonsaas/mcphost/internal/agent"
)

// AnthropicConfig holds the settings needed to build an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxAttempts  int
	DefaultModel string
}

// AnthropicProvider implements agent.LLMProvider over Anthropic's Messages
// streaming API.
type AnthropicProvider struct {
	client       anthropic.Client
	maxAttempts  int
	defaultModel string
}

// NewAnthropicProvider builds an AnthropicProvider. APIKey is required.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: anthropic API key is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		maxAttempts:  cfg.MaxAttempts,
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "claude-opus-4-5-20251101", Name: "Claude Opus 4.5", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku", ContextSize: 200000, SupportsVision: true},
	}
}

func (p *AnthropicProvider) SupportsTools() bool { return true }

// Complete opens one streaming Messages request and emits chunks until
// message_stop or a stream error. A failed stream is surfaced as an
// error chunk, not retried.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	chunks := make(chan *agent.CompletionChunk)

	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic: converting messages: %w", err)
	}
	tools, err := p.convertTools(req.Tools)
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic: converting tools: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(req.Model)),
		Messages:  messages,
		MaxTokens: int64(p.maxTokens(req.MaxTokens)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	if req.EnableThinking {
		budget := int64(req.ThinkingBudgetTokens)
		if budget < 1024 {
			budget = 10000
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	go func() {
		defer close(chunks)
		stream := p.client.Messages.NewStreaming(ctx, params)
		p.processStream(stream, chunks)
	}()

	return chunks, nil
}

func (p *AnthropicProvider) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- *agent.CompletionChunk) {
	var currentCall *agent.ToolCall
	var currentInput strings.Builder
	var inputTokens, outputTokens int

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			if ms := event.AsMessageStart(); ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}
		case "content_block_start":
			if block := event.AsContentBlockStart().ContentBlock; block.Type == "tool_use" {
				use := block.AsToolUse()
				currentCall = &agent.ToolCall{ID: use.ID, Name: use.Name}
				currentInput.Reset()
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					chunks <- &agent.CompletionChunk{Text: delta.Text}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					chunks <- &agent.CompletionChunk{Thinking: delta.Thinking}
				}
			case "input_json_delta":
				currentInput.WriteString(delta.PartialJSON)
			}
		case "content_block_stop":
			if currentCall != nil {
				var args map[string]any
				_ = json.Unmarshal([]byte(currentInput.String()), &args)
				currentCall.Arguments = args
				chunks <- &agent.CompletionChunk{ToolCall: currentCall}
				currentCall = nil
			}
		case "message_delta":
			if md := event.AsMessageDelta(); md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
		case "message_stop":
			chunks <- &agent.CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
			return
		case "error":
			chunks <- &agent.CompletionChunk{Error: errors.New("llm: anthropic: stream error")}
			return
		}
	}
	if err := stream.Err(); err != nil {
		chunks <- &agent.CompletionChunk{Error: fmt.Errorf("llm: anthropic: %w", err)}
	}
}

func (p *AnthropicProvider) convertMessages(messages []agent.CompletionMessage) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}
		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tr := range msg.ToolResults {
			text, err := resultText(tr.Result)
			if err != nil {
				return nil, err
			}
			content = append(content, anthropic.NewToolResultBlock(tr.ToolCallID, text, false))
		}
		for _, tc := range msg.ToolCalls {
			content = append(content, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
		}
		if msg.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, nil
}

func (p *AnthropicProvider) convertTools(tools []agent.Tool) ([]anthropic.ToolUnionParam, error) {
	var out []anthropic.ToolUnionParam
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Schema(), &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name(), err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name())
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s", t.Name())
		}
		param.OfTool.Description = anthropic.String(t.Description())
		out = append(out, param)
	}
	return out, nil
}

func (p *AnthropicProvider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func (p *AnthropicProvider) maxTokens(requested int) int {
	if requested <= 0 {
		return 4096
	}
	return requested
}

func resultText(result map[string]any) (string, error) {
	if result == nil {
		return "", nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("llm: marshaling tool result: %w", err)
	}
	return string(payload), nil
}
