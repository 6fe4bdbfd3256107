package main

import "github.com/spf13/cobra"

// buildChatCmd creates the "chat" command: a REPL that drives an
// agent.ChatSession against one configured upstream MCP server and an
// LLM provider.
func buildChatCmd() *cobra.Command {
	var (
		configPath string
		serverName string
		provider   string
		model      string
		systemMsg  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with an agent backed by an MCP server and an LLM provider",
		Long: `Start an interactive chat session. mcphost connects to the named
upstream MCP server as a client, discovers its tools, and drives a chat loop
against the chosen LLM provider, executing tool calls as the model requests
them.

Type a message and press Enter; Ctrl-D or "exit" ends the session.`,
		Example: `  # Chat against the "docs" server using Claude
  mcphost chat --server docs --provider anthropic --model claude-sonnet-4-20250514

  # Smoke-test the chat loop without an LLM provider
  mcphost chat --server docs --provider echo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runChat(cmd.Context(), chatOptions{
				ConfigPath: configPath,
				ServerName: serverName,
				Provider:   envOrFlag("LLM_PROVIDER", provider),
				Model:      envOrFlag("LLM_MODEL", model),
				System:     systemMsg,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML/JSON5 configuration file")
	cmd.Flags().StringVar(&serverName, "server", "", "Name of the configured MCP server to connect to")
	cmd.Flags().StringVar(&provider, "provider", "echo", "LLM provider: echo, anthropic, or openai")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model name (provider-specific default if empty)")
	cmd.Flags().StringVar(&systemMsg, "system", "", "System prompt for the session")

	return cmd
}
