package mcptransport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/haasonsaas/mcphost/internal/jsonrpc"
)

// StdioTransport implements StreamTransport over a newline-delimited JSON
// byte stream. It can be pointed at a spawned subprocess (the usual MCP
// client role: launch a server, talk to it over its stdin/stdout) or at an
// arbitrary io.ReadWriteCloser (the MCP server role: this process's own
// stdin/stdout, talking to whatever launched it).
type StdioTransport struct {
	sessionID string
	logger    *slog.Logger

	cmd    *exec.Cmd
	writer io.Writer
	reader *bufio.Scanner
	closer io.Closer

	writeMu sync.Mutex

	pending   map[any]chan *jsonrpc.Response
	pendingMu sync.Mutex
	nextID    atomic.Int64

	onRequest      []func(*jsonrpc.Request)
	onNotification []func(*jsonrpc.Notification)
	onResponse     []func(*jsonrpc.Response)
	onError        []func(error)
	onClose        []func()
	callbackMu     sync.Mutex

	started atomic.Bool
	closed  atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewStdioSubprocess builds a transport that spawns command/args as a child
// process and speaks MCP over its stdin/stdout, logging its stderr. This is
// the client-role constructor.
func NewStdioSubprocess(command string, args []string, env map[string]string, workDir string) (*StdioTransport, error) {
	cmd := exec.Command(command, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	if len(env) > 0 {
		cmd.Env = append(cmd.Env, os.Environ()...)
		for k, v := range env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	t := newStdioTransport(stdout, stdin, nil)
	t.cmd = cmd
	t.logger = slog.Default().With("component", "mcptransport.stdio", "session_id", t.sessionID)

	t.wg.Add(1)
	go t.logStderr(stderr)

	return t, nil
}

// NewStdioStream builds a transport over an arbitrary read/write pair, used
// for the server role (this process's own stdin/stdout).
func NewStdioStream(r io.Reader, w io.Writer, closer io.Closer) *StdioTransport {
	t := newStdioTransport(r, w, closer)
	t.logger = slog.Default().With("component", "mcptransport.stdio", "session_id", t.sessionID)
	return t
}

func newStdioTransport(r io.Reader, w io.Writer, closer io.Closer) *StdioTransport {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &StdioTransport{
		sessionID: uuid.New().String(),
		writer:    w,
		reader:    scanner,
		closer:    closer,
		pending:   make(map[any]chan *jsonrpc.Response),
		stopCh:    make(chan struct{}),
	}
}

func (t *StdioTransport) SessionID() string { return t.sessionID }

func (t *StdioTransport) Start(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if t.cmd != nil {
		if err := t.cmd.Start(); err != nil {
			return fmt.Errorf("start subprocess: %w", err)
		}
	}
	t.wg.Add(1)
	go t.readLoop()
	return nil
}

func (t *StdioTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(t.stopCh)

	t.pendingMu.Lock()
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	t.pendingMu.Unlock()

	if wc, ok := t.writer.(io.Closer); ok {
		_ = wc.Close()
	}
	if t.closer != nil {
		_ = t.closer.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}

	t.wg.Wait()
	t.fireClose()
	return nil
}

func (t *StdioTransport) OnError(fn func(error)) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onError = append(t.onError, fn)
}

func (t *StdioTransport) OnClose(fn func()) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onClose = append(t.onClose, fn)
}

func (t *StdioTransport) OnRequest(fn func(*jsonrpc.Request)) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onRequest = append(t.onRequest, fn)
}

func (t *StdioTransport) OnNotification(fn func(*jsonrpc.Notification)) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onNotification = append(t.onNotification, fn)
}

func (t *StdioTransport) OnResponse(fn func(*jsonrpc.Response)) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.onResponse = append(t.onResponse, fn)
}

func (t *StdioTransport) Send(resp *jsonrpc.Response) error {
	if t.closed.Load() {
		return ErrClosed
	}
	return t.writeLine(resp)
}

func (t *StdioTransport) SendRequest(ctx context.Context, method string, params any) (*jsonrpc.Response, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}

	id := t.nextID.Add(1)
	req := &jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}

	respCh := make(chan *jsonrpc.Response, 1)
	t.pendingMu.Lock()
	t.pending[idKey(id)] = respCh
	t.pendingMu.Unlock()

	if err := t.writeLine(req); err != nil {
		t.pendingMu.Lock()
		delete(t.pending, idKey(id))
		t.pendingMu.Unlock()
		return nil, err
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return nil, ErrClosed
		}
		return resp, nil
	case <-ctx.Done():
		t.pendingMu.Lock()
		delete(t.pending, idKey(id))
		t.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}

func (t *StdioTransport) SendNotification(ctx context.Context, method string, params any) error {
	if t.closed.Load() {
		return ErrClosed
	}
	notif := &jsonrpc.Notification{JSONRPC: jsonrpc.Version, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = raw
	}
	return t.writeLine(notif)
}

func (t *StdioTransport) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.writer.Write(data)
	return err
}

func (t *StdioTransport) readLoop() {
	// Deferred calls run last-in first-out: wg.Done runs before
	// closeIfNotAlready, so Close's wg.Wait does not wait on this goroutine.
	defer t.closeIfNotAlready()
	defer t.wg.Done()

	for t.reader.Scan() {
		select {
		case <-t.stopCh:
			return
		default:
		}

		msg, ok, err := (jsonrpc.Parser{}).TryParseLine(t.reader.Text())
		if err != nil {
			t.fireError(err)
			continue
		}
		if !ok {
			continue
		}
		t.dispatch(msg)
	}

	if err := t.reader.Err(); err != nil {
		t.fireError(fmt.Errorf("stdio read: %w", err))
	}
}

func (t *StdioTransport) dispatch(msg *jsonrpc.Message) {
	switch {
	case msg.Response != nil:
		t.completePending(msg.Response)
		t.callbackMu.Lock()
		cbs := append([]func(*jsonrpc.Response){}, t.onResponse...)
		t.callbackMu.Unlock()
		for _, cb := range cbs {
			cb(msg.Response)
		}
	case msg.Request != nil:
		t.callbackMu.Lock()
		cbs := append([]func(*jsonrpc.Request){}, t.onRequest...)
		t.callbackMu.Unlock()
		for _, cb := range cbs {
			cb(msg.Request)
		}
	case msg.Notification != nil:
		t.callbackMu.Lock()
		cbs := append([]func(*jsonrpc.Notification){}, t.onNotification...)
		t.callbackMu.Unlock()
		for _, cb := range cbs {
			cb(msg.Notification)
		}
	}
}

func (t *StdioTransport) completePending(resp *jsonrpc.Response) {
	key := idKey(resp.ID)
	t.pendingMu.Lock()
	ch, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.pendingMu.Unlock()

	if !ok {
		if t.logger != nil {
			t.logger.Warn("unknown response", "id", resp.ID)
		}
		return
	}
	ch <- resp
}

func (t *StdioTransport) closeIfNotAlready() {
	if t.closed.Load() {
		return
	}
	_ = t.Close()
}

func (t *StdioTransport) fireError(err error) {
	t.callbackMu.Lock()
	cbs := append([]func(error){}, t.onError...)
	t.callbackMu.Unlock()
	for _, cb := range cbs {
		cb(err)
	}
}

func (t *StdioTransport) fireClose() {
	t.callbackMu.Lock()
	cbs := append([]func(){}, t.onClose...)
	t.callbackMu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

func (t *StdioTransport) logStderr(stderr io.Reader) {
	defer t.wg.Done()
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		select {
		case <-t.stopCh:
			return
		default:
		}
		if line := scanner.Text(); line != "" && t.logger != nil {
			t.logger.Debug("subprocess stderr", "message", line)
		}
	}
}

// idKey normalizes a JSON-RPC id (which round-trips through JSON as
// float64 even when the caller minted an int64) into a comparable map key.
func idKey(id any) any {
	switch v := id.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return id
	}
}
