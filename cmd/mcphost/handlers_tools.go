package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/haasonsaas/mcphost/internal/config"
	"github.com/haasonsaas/mcphost/internal/mcpclient"
)

// runToolsList connects to the named MCP server as a client, lists its
// tools, and prints their descriptors as JSON.
func runToolsList(ctx context.Context, configPath, serverName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	serverCfg, err := findServer(cfg.MCP.Servers, serverName)
	if err != nil {
		return err
	}

	transport, err := dialServer(serverCfg)
	if err != nil {
		return fmt.Errorf("failed to start transport for %q: %w", serverCfg.Name, err)
	}

	client := mcpclient.New(transport, nil)
	if err := client.Connect(ctx, mcpclient.ClientInfo{Name: "mcphost-tools", Version: version}); err != nil {
		return fmt.Errorf("failed to connect to %q: %w", serverCfg.Name, err)
	}
	defer client.Close()

	tools, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tools for %q: %w", serverCfg.Name, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tools)
}
