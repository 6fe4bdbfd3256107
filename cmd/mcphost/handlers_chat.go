package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/mcphost/internal/agent"
	"github.com/haasonsaas/mcphost/internal/agents"
	"github.com/haasonsaas/mcphost/internal/config"
	"github.com/haasonsaas/mcphost/internal/mcpclient"
	"github.com/haasonsaas/mcphost/internal/mcptransport"
)

type chatOptions struct {
	ConfigPath string
	ServerName string
	Provider   string
	Model      string
	System     string
}

// runChat loads configuration, resolves the named MCP server, and drives
// an interactive REPL over a single agent.ChatSession.
func runChat(ctx context.Context, opts chatOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	serverCfg, err := findServer(cfg.MCP.Servers, opts.ServerName)
	if err != nil {
		return err
	}

	factory := agent.NewFactory(
		func(ctx context.Context, def *agents.Definition) (mcptransport.ClientTransport, error) {
			return dialServer(serverCfg)
		},
		buildProvider,
		mcpclient.ClientInfo{Name: "mcphost-chat", Version: version},
	)

	def := &agents.Definition{
		ID:           "cli-session",
		Name:         "CLI session",
		Provider:     opts.Provider,
		ModelName:    opts.Model,
		SystemPrompt: opts.System,
	}

	sink := &printingSink{}
	session, err := factory.Build(ctx, uuid.NewString(), def, sink)
	if err != nil {
		return fmt.Errorf("failed to start chat session: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Connected to %q via %s/%s. Type 'exit' to quit.\n", serverCfg.Name, opts.Provider, def.ModelName)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if err := session.SendUserMessage(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}

	return scanner.Err()
}

func findServer(servers []config.MCPServerConfig, name string) (config.MCPServerConfig, error) {
	if name == "" {
		if len(servers) == 1 {
			return servers[0], nil
		}
		return config.MCPServerConfig{}, fmt.Errorf("--server is required when more than one MCP server is configured")
	}
	for _, s := range servers {
		if s.Name == name {
			return s, nil
		}
	}
	return config.MCPServerConfig{}, fmt.Errorf("no configured MCP server named %q", name)
}

func dialServer(cfg config.MCPServerConfig) (mcptransport.ClientTransport, error) {
	switch {
	case cfg.Command != "":
		env := make(map[string]string, len(cfg.Env))
		for _, kv := range cfg.Env {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				env[parts[0]] = parts[1]
			}
		}
		return mcptransport.NewStdioSubprocess(cfg.Command, cfg.Args, env, "")
	case cfg.URL != "":
		timeout := cfg.ConnectTimeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		return mcptransport.NewSSEClientTransport(cfg.URL, nil, timeout), nil
	default:
		return nil, fmt.Errorf("mcp server %q has neither command nor url configured", cfg.Name)
	}
}

func envOrFlag(envVar, flagValue string) string {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v
	}
	return flagValue
}

// printingSink prints assistant replies and tool activity to stdout.
type printingSink struct{}

func (printingSink) Emit(ctx context.Context, e agent.Event) {
	switch e.Type {
	case agent.EventAssistantMessageReceived:
		fmt.Fprintf(os.Stdout, "%s\n", e.Content)
	case agent.EventToolExecutionUpdated:
		switch e.ToolState {
		case agent.ToolExecutionStarting:
			fmt.Fprintf(os.Stdout, "[tool] %s...\n", e.ToolName)
		case agent.ToolExecutionFailed:
			fmt.Fprintf(os.Stdout, "[tool] %s failed: %s\n", e.ToolName, e.ToolError)
		}
	}
}
