// Package mcptransport provides the pluggable byte-level transports that
// carry JSON-RPC/MCP traffic: stdio (newline-delimited JSON over a
// bidirectional byte stream) and SSE-over-HTTP, in both server and client
// roles.
package mcptransport

import (
	"context"
	"errors"

	"github.com/haasonsaas/mcphost/internal/jsonrpc"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("transport: already started")

// ErrClosed is returned by Send/SendRequest/SendNotification once Close has
// completed.
var ErrClosed = errors.New("transport: closed")

// Transport is the contract shared by every concrete transport.
type Transport interface {
	// Start begins reading/producing. Must be called exactly once; a
	// second call returns ErrAlreadyStarted.
	Start(ctx context.Context) error

	// Close is idempotent: exactly one OnClose callback fires regardless
	// of how many times Close is called. After Close returns, every other
	// operation fails with ErrClosed.
	Close() error

	// OnError registers a callback for transport-level errors (parse
	// errors, I/O errors). May be called multiple times; all registered
	// callbacks are invoked.
	OnError(func(error))

	// OnClose registers a callback fired exactly once when the transport
	// closes, whether via Close(), EOF, or an unrecoverable I/O error.
	OnClose(func())

	// SessionID identifies this transport instance for its lifetime.
	SessionID() string
}

// ServerTransport is the side that receives JSON-RPC requests/notifications
// and sends responses — used by the MCP server core.
type ServerTransport interface {
	Transport

	// OnRequest registers a callback invoked for every inbound request.
	OnRequest(func(*jsonrpc.Request))

	// OnNotification registers a callback invoked for every inbound
	// notification.
	OnNotification(func(*jsonrpc.Notification))

	// Send writes a response back to the peer.
	Send(resp *jsonrpc.Response) error
}

// ClientTransport is the side that issues JSON-RPC requests/notifications
// and receives responses — used by the MCP client.
type ClientTransport interface {
	Transport

	// OnResponse registers a callback invoked for every inbound response.
	OnResponse(func(*jsonrpc.Response))

	// SendRequest writes a request and returns once the matching response
	// has arrived (or ctx is done, or the transport closes).
	SendRequest(ctx context.Context, method string, params any) (*jsonrpc.Response, error)

	// SendNotification writes a notification; it does not wait for a reply.
	SendNotification(ctx context.Context, method string, params any) error
}

// StreamTransport composes both roles over one bidirectional byte stream,
// as stdio does: a process speaking MCP over stdio can be dispatched to
// either as a client (talking to a spawned server) or as a server (talking
// to a parent process), depending which half of the interface the caller
// exercises.
type StreamTransport interface {
	ServerTransport
	ClientTransport
}
