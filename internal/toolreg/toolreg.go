// Package toolreg implements the server-side tool registry: registration,
// JSON-Schema-bearing descriptors, and argument-marshalled invocation.
package toolreg

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/haasonsaas/mcphost/internal/jsonrpc"
)

// MaxToolNameLength bounds a registered tool's name.
const MaxToolNameLength = 256

// MaxToolArgsSize bounds the raw JSON arguments accepted by Invoke.
const MaxToolArgsSize = 10 << 20

// ContentPart is one element of a ToolCallResult's Content slice. Kind
// selects which of Text/Data/MimeType/URI are populated, mirroring the
// text/image/resource variants in the wire protocol.
type ContentPart struct {
	Kind     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// ToolCallResult is the wire shape of a tools/call response's result field.
type ToolCallResult struct {
	Content []ContentPart `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// TextResult builds a single-part, non-error ToolCallResult from a string.
func TextResult(s string) *ToolCallResult {
	return &ToolCallResult{Content: []ContentPart{{Kind: "text", Text: s}}}
}

// ErrorResult builds a single-part, isError ToolCallResult from an error.
func ErrorResult(err error) *ToolCallResult {
	return &ToolCallResult{Content: []ContentPart{{Kind: "text", Text: err.Error()}}, IsError: true}
}

// executionErrorResult builds the two-part isError ToolCallResult a handler
// failure (as opposed to a domain McpError) produces: one part naming the
// error, one carrying the stack at the point it was caught.
func executionErrorResult(msg string, stack []byte) *ToolCallResult {
	return &ToolCallResult{
		Content: []ContentPart{
			{Kind: "text", Text: "Error in tool execution: " + msg},
			{Kind: "text", Text: "Stack trace:\n" + string(stack)},
		},
		IsError: true,
	}
}

// Descriptor is the tools/list wire shape for one registered tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// HandlerFunc implements one tool's behavior. args has already been
// validated and defaulted against the tool's ParamSpec list; it is the
// map of argument name to converted Go value. The return value is wrapped
// according to the three outcomes described in Invoke's doc comment.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

type entry struct {
	desc    Descriptor
	params  []ParamSpec
	handler HandlerFunc
	schema  *compiledSchema
}

// Registry holds the tools a server exposes. It is safe for concurrent use;
// Register is expected at startup, Invoke/List during normal operation.
type Registry struct {
	mu      sync.RWMutex
	names   []string
	entries map[string]*entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool under name, building its wire schema from params.
// Re-registering an existing name replaces it in place without disturbing
// its position in List's output order.
func (r *Registry) Register(name, description string, params []ParamSpec, handler HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("toolreg: tool name must not be empty")
	}
	if len(name) > MaxToolNameLength {
		return fmt.Errorf("toolreg: tool name exceeds %d bytes", MaxToolNameLength)
	}
	if handler == nil {
		return fmt.Errorf("toolreg: tool %q: handler must not be nil", name)
	}

	schema, err := BuildSchema(params)
	if err != nil {
		return fmt.Errorf("toolreg: tool %q: %w", name, err)
	}
	compiled, err := compileSchema(name, schema)
	if err != nil {
		return fmt.Errorf("toolreg: tool %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		r.names = append(r.names, name)
	}
	r.entries[name] = &entry{
		desc:    Descriptor{Name: name, Description: description, InputSchema: schema},
		params:  params,
		handler: handler,
		schema:  compiled,
	}
	return nil
}

// Unregister removes a tool. It is a no-op if name is not registered.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return
	}
	delete(r.entries, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
}

// List returns every registered tool's descriptor in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.entries[n].desc)
	}
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Invoke marshals argsRaw against the named tool's declared parameters and
// calls its handler. There are three possible outcomes:
//
//  1. argsRaw fails to parse as a JSON object, or a required parameter is
//     missing, or a value fails to convert to its declared type: Invoke
//     returns a nil result and a non-nil error carrying InvalidParams.
//  2. the handler itself returns an error, or panics: if it is a
//     *jsonrpc.McpError, Invoke returns it unwrapped so the caller can
//     surface it as a JSON-RPC error response; any other error or a
//     recovered panic produces a two-part, IsError ToolCallResult — one
//     part reading "Error in tool execution: <msg>", the other the
//     caught stack trace — the call completed, it just failed at the
//     tool's own logic.
//  3. the handler returns successfully: if its value is already a
//     *ToolCallResult it is returned verbatim; otherwise it is wrapped as
//     a single text part: a string as-is, nil as "", any other value as
//     its JSON encoding (fmt.Sprint if it cannot be marshalled).
//
// A call to an unregistered name returns a ToolNotFound error.
func (r *Registry) Invoke(ctx context.Context, name string, argsRaw json.RawMessage) (result *ToolCallResult, rpcErr error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	if len(argsRaw) > MaxToolArgsSize {
		return nil, &InvalidArgsError{Reason: fmt.Sprintf("arguments exceed %d bytes", MaxToolArgsSize)}
	}

	args, err := MarshalArgs(e.params, argsRaw)
	if err != nil {
		return nil, err
	}
	// Catches structural constraints (pattern/format, additionalProperties)
	// that per-field conversion above doesn't enforce. Schema property names
	// are exact-case, so top-level keys are first renamed to the declared
	// parameter name they matched case-insensitively.
	schemaArgs := argsRaw
	var rawObj map[string]json.RawMessage
	if json.Unmarshal(argsRaw, &rawObj) == nil && rawObj != nil {
		for _, p := range e.params {
			for k, v := range rawObj {
				if k != p.Name && strings.ToLower(k) == strings.ToLower(p.Name) {
					delete(rawObj, k)
					rawObj[p.Name] = v
				}
			}
		}
		schemaArgs, _ = json.Marshal(rawObj)
	}
	if err := e.schema.validateArgs(schemaArgs); err != nil {
		return nil, &InvalidArgsError{Reason: err.Error()}
	}

	defer func() {
		if p := recover(); p != nil {
			result = executionErrorResult(fmt.Sprintf("tool %q panicked: %v", name, p), debug.Stack())
			rpcErr = nil
		}
	}()

	out, err := e.handler(ctx, args)
	if err != nil {
		if mcpErr, ok := err.(*jsonrpc.McpError); ok {
			return nil, mcpErr
		}
		return executionErrorResult(err.Error(), debug.Stack()), nil
	}
	if tr, ok := out.(*ToolCallResult); ok {
		return tr, nil
	}
	if out == nil {
		return TextResult(""), nil
	}
	if s, ok := out.(string); ok {
		return TextResult(s), nil
	}
	b, err := json.Marshal(out)
	if err != nil {
		return TextResult(fmt.Sprint(out)), nil
	}
	return TextResult(string(b)), nil
}

// NotFoundError reports a tools/call naming a tool the registry doesn't have.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("tool not found: %s", e.Name) }

// InvalidArgsError reports malformed or unsatisfiable tool arguments.
type InvalidArgsError struct{ Reason string }

func (e *InvalidArgsError) Error() string { return e.Reason }
