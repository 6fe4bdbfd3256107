// Package mcpserver implements the MCP server core (JSON-RPC method
// dispatch over a connected transport) and the HTTP connection manager
// that multiplexes SSE sessions and message POSTs onto it.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haasonsaas/mcphost/internal/jsonrpc"
	"github.com/haasonsaas/mcphost/internal/mcptransport"
	"github.com/haasonsaas/mcphost/internal/toolreg"
)

// ProtocolVersion is the MCP protocol version this server implements.
const ProtocolVersion = "2024-11-05"

// Info describes this server in the initialize response.
type Info struct {
	Name         string
	Version      string
	Instructions string
}

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_requests_total",
		Help: "Total JSON-RPC requests handled by the MCP server core, by method.",
	}, []string{"method"})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_tool_calls_total",
		Help: "Total tools/call invocations, by tool name and outcome.",
	}, []string{"tool", "outcome"})
)

// Server is the MCP server core: built-in method dispatch plus whatever
// tools a Registry holds, wired onto one or more connected transports.
type Server struct {
	info   Info
	tools  *toolreg.Registry
	logger *slog.Logger

	initMu sync.RWMutex
	initOK map[string]bool // sessionID -> initialize succeeded
}

// New builds a Server core over the given tool registry.
func New(info Info, tools *toolreg.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		info:   info,
		tools:  tools,
		logger: logger.With("component", "mcpserver"),
		initOK: make(map[string]bool),
	}
}

// Connect wires a server transport's request/notification events to this
// server's dispatch loop. It does not block and sends nothing synchronously.
// Each request is dispatched on its own goroutine: two requests on the same
// session may execute concurrently and their responses may be sent in any
// order, matching this server's concurrency model.
func (s *Server) Connect(transport mcptransport.ServerTransport) {
	transport.OnRequest(func(req *jsonrpc.Request) {
		go s.handleRequest(context.Background(), transport, req)
	})
	transport.OnNotification(func(notif *jsonrpc.Notification) {
		s.handleNotification(transport, notif)
	})
}

func (s *Server) handleNotification(transport mcptransport.ServerTransport, notif *jsonrpc.Notification) {
	if notif.Method == "notifications/initialized" {
		s.logger.Debug("client reported initialized", "session_id", transport.SessionID())
	}
}

func (s *Server) handleRequest(ctx context.Context, transport mcptransport.ServerTransport, req *jsonrpc.Request) {
	requestsTotal.WithLabelValues(req.Method).Inc()

	var resp *jsonrpc.Response
	switch req.Method {
	case "initialize":
		resp = s.handleInitialize(transport, req)
	case "tools/list":
		resp = s.handleToolsList(transport, req)
	case "tools/call":
		resp = s.handleToolsCall(ctx, transport, req)
	case "resources/list":
		resp, _ = jsonrpc.NewResponse(req.ID, map[string]any{"resources": []any{}})
	case "prompts/list":
		resp, _ = jsonrpc.NewResponse(req.ID, map[string]any{"prompts": []any{}})
	default:
		resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeMethodNotFound, fmt.Sprintf("Unknown method: %s", req.Method), nil)
	}

	if err := transport.Send(resp); err != nil {
		s.logger.Warn("failed to send response", "session_id", transport.SessionID(), "method", req.Method, "error", err)
	}
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

func (s *Server) handleInitialize(transport mcptransport.ServerTransport, req *jsonrpc.Request) *jsonrpc.Response {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, "invalid initialize params", nil)
		}
	}

	s.initMu.Lock()
	s.initOK[transport.SessionID()] = true
	s.initMu.Unlock()
	s.logger.Info("session initialized",
		"session_id", transport.SessionID(),
		"client_name", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version)

	result := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]any{"name": s.info.Name, "version": s.info.Version},
	}
	if s.info.Instructions != "" {
		result["instructions"] = s.info.Instructions
	}
	resp, err := jsonrpc.NewResponse(req.ID, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInternalError, err.Error(), nil)
	}
	return resp
}

func (s *Server) handleToolsList(transport mcptransport.ServerTransport, req *jsonrpc.Request) *jsonrpc.Response {
	if !s.isInitialized(transport.SessionID()) {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidRequest, "session is not initialized", nil)
	}
	resp, err := jsonrpc.NewResponse(req.ID, map[string]any{"tools": s.tools.List()})
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInternalError, err.Error(), nil)
	}
	return resp
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (s *Server) handleToolsCall(ctx context.Context, transport mcptransport.ServerTransport, req *jsonrpc.Request) *jsonrpc.Response {
	if !s.isInitialized(transport.SessionID()) {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidRequest, "session is not initialized", nil)
	}

	var params toolCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, "invalid tools/call params", nil)
		}
	}

	if !s.tools.Has(params.Name) {
		toolCallsTotal.WithLabelValues(params.Name, "not_found").Inc()
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeMethodNotFound, fmt.Sprintf("Unknown tool: %s", params.Name), nil)
	}

	result, err := s.tools.Invoke(ctx, params.Name, params.Arguments)
	if err != nil {
		if mcpErr, ok := err.(*jsonrpc.McpError); ok {
			toolCallsTotal.WithLabelValues(params.Name, "mcp_error").Inc()
			var data any
			if len(mcpErr.Data) > 0 {
				data = mcpErr.Data
			}
			return jsonrpc.NewErrorResponse(req.ID, mcpErr.Code, mcpErr.Message, data)
		}
		toolCallsTotal.WithLabelValues(params.Name, "invalid_params").Inc()
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, err.Error(), nil)
	}

	outcome := "ok"
	if result.IsError {
		outcome = "tool_error"
	}
	toolCallsTotal.WithLabelValues(params.Name, outcome).Inc()

	resp, err := jsonrpc.NewResponse(req.ID, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInternalError, err.Error(), nil)
	}
	return resp
}

func (s *Server) isInitialized(sessionID string) bool {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.initOK[sessionID]
}
