// Package main provides the CLI entry point for mcphost: an MCP server,
// an MCP client driving an agentic chat loop against upstream tools, and a
// small set of operational conveniences layered on top of both.
//
// # Basic usage
//
// Run the MCP server:
//
//	mcphost serve --config mcphost.yaml
//
// Chat with an agent against a configured MCP server:
//
//	mcphost chat --server docs --provider anthropic --model claude-sonnet-4-20250514
//
// List tools exposed by an upstream MCP server:
//
//	mcphost tools list --server docs
//
// # Environment variables
//
//   - MCPHOST_CONFIG: path to the configuration file (default: mcphost.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
//   - LLM_PROVIDER, LLM_MODEL: override the chat command's --provider and --model flags
//
// There is no log-level flag or environment variable.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "mcphost.yaml"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mcphost",
		Short: "mcphost - MCP server, client, and agentic chat loop",
		Long: `mcphost speaks the Model Context Protocol on both sides of the wire:
as a server exposing a registry of tools over stdio or SSE, and as a client
driving a chat loop against an upstream MCP server and an LLM provider.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
		buildToolsCmd(),
	)

	return rootCmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("MCPHOST_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}
