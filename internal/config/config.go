// Package config loads and validates mcphost's YAML/JSON5 configuration:
// the set of upstream MCP servers to connect to, the HTTP connection
// manager's authentication mode, agent definitions, and logging.
package config

import "time"

// Config is the root configuration document.
type Config struct {
	Version int `yaml:"version"`

	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	MCP     MCPConfig     `yaml:"mcp"`
	Agents  AgentsConfig  `yaml:"agents"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP connection manager this process runs
// when acting as an MCP server.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsPath string `yaml:"metrics_path"`
}

// AuthConfig configures the pluggable authenticator applied to /sse and
// /messages.
type AuthConfig struct {
	// Mode selects the authenticator: "none" or "api_key".
	Mode string `yaml:"mode"`

	// Header is the request header an API key is read from.
	// Defaults to "X-API-Key" when empty.
	Header string `yaml:"header"`

	// QueryParam is the fallback query parameter an API key is read from.
	// Defaults to "api_key" when empty.
	QueryParam string `yaml:"query_param"`

	// Keys maps an API key to the subject identity it authenticates as.
	Keys map[string]string `yaml:"keys"`

	// ProtectedPaths restricts authentication enforcement to these path
	// prefixes; empty means every path requires authentication.
	ProtectedPaths []string `yaml:"protected_paths"`
}

// MCPConfig lists the upstream MCP servers this process connects to as a
// client (when running `mcphost chat`/`mcphost tools list`).
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes one upstream MCP server connection. Exactly
// one of Command or URL should be set, selecting the stdio or SSE
// transport respectively.
type MCPServerConfig struct {
	Name string `yaml:"name"`

	// Command launches a subprocess speaking the stdio transport.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Env     []string `yaml:"env,omitempty"`

	// URL dials an SSE transport at the given base URL.
	URL string `yaml:"url,omitempty"`

	// ConnectTimeout bounds how long Connect waits for the initialize
	// handshake to complete.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// AgentsConfig configures the agent definition store.
type AgentsConfig struct {
	// StoreDir, if non-empty, persists agent definitions as one JSON
	// file per agent under this directory (FileStore). Empty uses an
	// in-memory store that does not survive restart.
	StoreDir string `yaml:"store_dir"`
}

// LoggingConfig configures the process-wide slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
