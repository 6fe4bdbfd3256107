package main

import "github.com/spf13/cobra"

// buildToolsCmd creates the "tools" command group.
func buildToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect tools exposed by a configured MCP server",
	}
	cmd.AddCommand(buildToolsListCmd())
	return cmd
}

func buildToolsListCmd() *cobra.Command {
	var (
		configPath string
		serverName string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Connect to an MCP server and print its tool descriptors as JSON",
		Example: `  mcphost tools list --server docs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runToolsList(cmd.Context(), configPath, serverName)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML/JSON5 configuration file")
	cmd.Flags().StringVar(&serverName, "server", "", "Name of the configured MCP server to connect to")

	return cmd
}
