package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a malformed JSON-RPC message. The offending bytes are
// still consumed by the caller so a byte-stream transport can resynchronize
// on the next line.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// envelope is used only to discriminate which of the four wire shapes a raw
// JSON value represents, by field presence.
type envelope struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// IsRequest reports whether raw has both a method and an id.
func IsRequest(raw json.RawMessage) bool {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return false
	}
	return e.Method != "" && hasID(e.ID)
}

// IsNotification reports whether raw has a method but no id.
func IsNotification(raw json.RawMessage) bool {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return false
	}
	return e.Method != "" && !hasID(e.ID)
}

// IsResponse reports whether raw carries a result or an error (and,
// implicitly, an id).
func IsResponse(raw json.RawMessage) bool {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return false
	}
	return hasID(e.ID) && (len(e.Result) > 0 || len(e.Error) > 0)
}

func hasID(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func DeserializeRequest(raw json.RawMessage) (*Request, error) {
	var r Request
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func DeserializeNotification(raw json.RawMessage) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func DeserializeResponse(raw json.RawMessage) (*Response, error) {
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Message is the result of a successful parse: exactly one field is set,
// matching the four wire variants.
type Message struct {
	Request      *Request
	Notification *Notification
	Response     *Response
}

// ParseMessage classifies and deserializes a single raw JSON value (one
// line, with surrounding whitespace already trimmed). Blank input is not a
// message: callers should skip it before calling ParseMessage.
func ParseMessage(raw json.RawMessage) (*Message, error) {
	switch {
	case IsResponse(raw):
		r, err := DeserializeResponse(raw)
		if err != nil {
			return nil, err
		}
		return &Message{Response: r}, nil
	case IsRequest(raw):
		r, err := DeserializeRequest(raw)
		if err != nil {
			return nil, err
		}
		return &Message{Request: r}, nil
	case IsNotification(raw):
		n, err := DeserializeNotification(raw)
		if err != nil {
			return nil, err
		}
		return &Message{Notification: n}, nil
	default:
		return nil, fmt.Errorf("unrecognized JSON-RPC message shape")
	}
}

// Parser frames newline-delimited JSON-RPC messages from a byte stream.
// One JSON value per '\n'-terminated line; blank/whitespace-only lines are
// skipped without producing a message or an error.
type Parser struct{}

// TryParseLine parses one already-delimited line. ok is false only for a
// blank/whitespace line (no message, no error). A malformed non-blank line
// returns a *ParseError; the caller has still "consumed" the line (the
// framing contract is per-line, so the stream always resyncs).
func (Parser) TryParseLine(line string) (msg *Message, ok bool, err error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, false, nil
	}
	m, perr := ParseMessage(json.RawMessage(trimmed))
	if perr != nil {
		return nil, true, &ParseError{Line: trimmed, Err: perr}
	}
	return m, true, nil
}
