package main

import (
	"fmt"
	"os"

	"github.com/haasonsaas/mcphost/internal/agent"
	"github.com/haasonsaas/mcphost/internal/llm"
)

// buildProvider resolves a provider/model pair into an LLMProvider,
// reading API keys from the environment. It is the ProviderBuilder the
// CLI wires into an agent.Factory.
func buildProvider(provider, model string) (agent.LLMProvider, error) {
	switch provider {
	case "", "echo":
		return llm.NewEchoProvider(), nil
	case "anthropic":
		return llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey:       os.Getenv("ANTHROPIC_API_KEY"),
			DefaultModel: model,
		})
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:       os.Getenv("OPENAI_API_KEY"),
			DefaultModel: model,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
