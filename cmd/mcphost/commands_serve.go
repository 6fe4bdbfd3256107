package main

import "github.com/spf13/cobra"

// buildServeCmd creates the "serve" command that runs mcphost as an MCP
// server: a tool registry exposed over the HTTP connection manager's
// /sse and /messages endpoints, plus /health and /metrics.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mcphost MCP server",
		Long: `Run mcphost as an MCP server.

The server will:
1. Load configuration from the specified file (or mcphost.yaml)
2. Build the tool registry
3. Start the HTTP connection manager (/sse, /messages, /health, /metrics)

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  mcphost serve

  # Start with custom config
  mcphost serve --config /etc/mcphost/production.yaml

  # Start with debug logging
  mcphost serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML/JSON5 configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")

	return cmd
}
