package agent

import (
	"context"
	"fmt"

	"github.com/haasonsaas/mcphost/internal/agents"
	"github.com/haasonsaas/mcphost/internal/mcpclient"
	"github.com/haasonsaas/mcphost/internal/mcptransport"
	"github.com/haasonsaas/mcphost/internal/toolreg"
)

// ProviderBuilder constructs an LLMProvider for the given provider name
// and model. Supplied by the host binary (cmd/mcphost), which knows about
// concrete provider implementations; this package only depends on the
// LLMProvider interface.
type ProviderBuilder func(provider, model string) (LLMProvider, error)

// Factory builds ChatSessions from agent Definitions: each session gets
// its own mcpclient.Client over a freshly started transport.
type Factory struct {
	newTransport func(ctx context.Context, def *agents.Definition) (mcptransport.ClientTransport, error)
	newProvider  ProviderBuilder
	clientInfo   mcpclient.ClientInfo
}

// NewFactory builds a Factory. newTransport mints a client transport for
// a given agent definition (e.g. spawning the configured MCP server
// subprocess, or dialing its SSE endpoint); newProvider resolves an
// LLMProvider for a definition's provider/model pair.
func NewFactory(newTransport func(ctx context.Context, def *agents.Definition) (mcptransport.ClientTransport, error), newProvider ProviderBuilder, clientInfo mcpclient.ClientInfo) *Factory {
	return &Factory{newTransport: newTransport, newProvider: newProvider, clientInfo: clientInfo}
}

// Build wires an LLMProvider, a connected mcpclient.Client, and an
// AgentRegistry filtered to def.ToolIDs into a new ChatSession.
func (f *Factory) Build(ctx context.Context, sessionID string, def *agents.Definition, sink EventSink) (*ChatSession, error) {
	if def == nil {
		return nil, fmt.Errorf("agent: factory: definition must not be nil")
	}

	provider, err := f.newProvider(def.Provider, def.ModelName)
	if err != nil {
		return nil, fmt.Errorf("agent: factory: building provider %q: %w", def.Provider, err)
	}

	transport, err := f.newTransport(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("agent: factory: building transport for %q: %w", def.ID, err)
	}

	client := mcpclient.New(transport, nil)
	if err := client.Connect(ctx, f.clientInfo); err != nil {
		return nil, fmt.Errorf("agent: factory: connecting mcp client for %q: %w", def.ID, err)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("agent: factory: listing tools for %q: %w", def.ID, err)
	}

	registry := toolreg.NewAgentRegistry()
	registry.SetAvailable(tools)

	toolIDs := def.ToolIDs
	if len(toolIDs) == 0 {
		// An empty ToolIDs list means "every tool this server offers",
		// not "no tools" — a definition only needs to name a subset
		// when it's restricting access below the server's full set.
		for _, t := range tools {
			toolIDs = append(toolIDs, t.Name)
		}
	}

	ok, missing := registry.ValidateIDs(toolIDs)
	if !ok {
		client.Close()
		return nil, fmt.Errorf("agent: factory: definition %q references unknown tools: %v", def.ID, missing)
	}
	for _, id := range toolIDs {
		registry.Enable(id)
	}

	return NewChatSession(sessionID, def, provider, client, registry, sink), nil
}
