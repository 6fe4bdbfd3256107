// Package mcpclient implements the MCP client: connection handshake,
// tools/list and tools/call. Request/response correlation is done by the
// client transport's SendRequest; this layer keeps no pending map.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haasonsaas/mcphost/internal/mcptransport"
	"github.com/haasonsaas/mcphost/internal/toolreg"
)

// ProtocolVersion is the MCP protocol version this client speaks.
const ProtocolVersion = "2024-11-05"

// ErrNotConnected is returned by any call issued before Connect succeeds.
var ErrNotConnected = errors.New("mcpclient: not connected")

// ClientInfo identifies this client during the initialize handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo is the peer's self-description, returned from initialize.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

type listToolsResult struct {
	Tools []toolreg.Descriptor `json:"tools"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Client wraps a mcptransport.ClientTransport, handling the initialize
// handshake and mapping tools/list and tools/call into typed values.
type Client struct {
	transport mcptransport.ClientTransport
	logger    *slog.Logger

	mu         sync.RWMutex
	connected  bool
	serverInfo ServerInfo
	tools      []toolreg.Descriptor
}

// New wraps an already-constructed client transport. The transport's
// Start/Close lifecycle is owned by Connect/Close below.
func New(transport mcptransport.ClientTransport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: transport,
		logger:    logger.With("component", "mcpclient"),
	}
}

// Connect starts the transport, performs initialize, and sends the
// optional notifications/initialized acknowledgement. Failure leaves the
// transport closed.
func (c *Client) Connect(ctx context.Context, info ClientInfo) error {
	if err := c.transport.Start(ctx); err != nil {
		return fmt.Errorf("mcpclient: transport start: %w", err)
	}

	resp, err := c.transport.SendRequest(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"clientInfo":      info,
	})
	if err != nil {
		_ = c.transport.Close()
		return fmt.Errorf("mcpclient: initialize: %w", err)
	}
	if resp.Error != nil {
		_ = c.transport.Close()
		return fmt.Errorf("mcpclient: initialize: %w", resp.Error)
	}

	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		_ = c.transport.Close()
		return fmt.Errorf("mcpclient: parse initialize result: %w", err)
	}

	c.mu.Lock()
	c.serverInfo = result.ServerInfo
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("connected to MCP server",
		"name", result.ServerInfo.Name,
		"version", result.ServerInfo.Version,
		"protocol", result.ProtocolVersion)

	if err := c.transport.SendNotification(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn("failed to send initialized notification", "error", err)
	}

	return nil
}

// Close shuts down the underlying transport.
func (c *Client) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return c.transport.Close()
}

// Connected reports whether Connect has completed successfully and Close
// has not yet been called.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ServerInfo returns the peer's self-description from the last Connect.
func (c *Client) ServerInfo() ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// ListTools fetches and caches the server's current tool set.
func (c *Client) ListTools(ctx context.Context) ([]toolreg.Descriptor, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}
	resp, err := c.transport.SendRequest(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: tools/list: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("mcpclient: tools/list: %w", resp.Error)
	}

	var result listToolsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("mcpclient: parse tools/list result: %w", err)
	}

	c.mu.Lock()
	c.tools = result.Tools
	c.mu.Unlock()
	return result.Tools, nil
}

// CachedTools returns the tool set from the most recent ListTools call.
func (c *Client) CachedTools() []toolreg.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// CallTool issues a tools/call request and deserializes its result.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*toolreg.ToolCallResult, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}

	params := callToolParams{Name: name}
	if arguments != nil {
		raw, err := json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: marshal arguments: %w", err)
		}
		params.Arguments = raw
	}

	resp, err := c.transport.SendRequest(ctx, "tools/call", params)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: tools/call: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("mcpclient: tools/call: %w", resp.Error)
	}

	var result toolreg.ToolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("mcpclient: parse tools/call result: %w", err)
	}
	return &result, nil
}
