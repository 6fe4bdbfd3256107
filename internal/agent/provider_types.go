package agent

import "context"

// LLMProvider defines the interface for Large Language Model backends.
//
// Implementations handle the specifics of communicating with a particular
// LLM API while presenting a unified streaming interface to ChatSession.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Multiple goroutines may
// call Complete() simultaneously for different sessions.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []Model

	// SupportsTools returns whether the provider supports tool use.
	SupportsTools() bool
}

// CompletionRequest contains all parameters for an LLM completion request.
type CompletionRequest struct {
	// Model specifies which LLM model to use. If empty, the provider's
	// default model is used.
	Model string `json:"model"`

	// System is the system prompt that sets the assistant's behavior.
	System string `json:"system,omitempty"`

	// Messages contains the conversation history in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools defines available tools the LLM can request to execute.
	Tools []Tool `json:"tools,omitempty"`

	// MaxTokens limits the maximum length of the generated response.
	MaxTokens int `json:"max_tokens,omitempty"`

	// EnableThinking enables extended thinking mode for supported models.
	EnableThinking bool `json:"enable_thinking,omitempty"`

	// ThinkingBudgetTokens sets the token budget for extended thinking.
	ThinkingBudgetTokens int `json:"thinking_budget_tokens,omitempty"`
}

// CompletionMessage represents a single message in a conversation. Role
// values: "system", "user", "assistant", "tool".
type CompletionMessage struct {
	Role string `json:"role"`

	// Content is the text content of the message (empty for tool-only messages).
	Content string `json:"content,omitempty"`

	// ToolCalls contains any tool execution requests from the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolResults contains responses from executed tools.
	ToolResults []ToolCallResult `json:"tool_results,omitempty"`
}

// ToolCall is a single tool invocation requested by the LLM.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`

	// Result is populated once the tool call has executed, whether it
	// succeeded or failed.
	Result map[string]any `json:"result,omitempty"`
}

// ToolCallResult is the response returned from executing a ToolCall.
type ToolCallResult struct {
	ToolCallID string         `json:"tool_call_id"`
	Result     map[string]any `json:"result"`
}

// CompletionChunk represents a single chunk in a streaming LLM response.
type CompletionChunk struct {
	// Text contains partial response text (streamed incrementally).
	Text string `json:"text,omitempty"`

	// ToolCall contains a complete tool execution request.
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// Done is true when the stream has completed successfully.
	Done bool `json:"done,omitempty"`

	// Error contains any error that occurred (streaming is terminated).
	Error error `json:"-"`

	// Thinking contains reasoning text when extended thinking is enabled.
	Thinking string `json:"thinking,omitempty"`

	// ThinkingStart/ThinkingEnd bracket a thinking block.
	ThinkingStart bool `json:"thinking_start,omitempty"`
	ThinkingEnd   bool `json:"thinking_end,omitempty"`

	// InputTokens/OutputTokens are populated only on the final chunk.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// Model describes an available LLM model and its capabilities.
type Model struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContextSize    int    `json:"context_size"`
	SupportsVision bool   `json:"supports_vision"`
}

// Tool defines the interface an LLM-exposed function implements. It
// mirrors toolreg.Descriptor/HandlerFunc but is the shape an LLMProvider
// sends across the wire to the model.
type Tool interface {
	Name() string
	Description() string
	Schema() []byte
}
