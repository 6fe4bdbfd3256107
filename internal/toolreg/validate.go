package toolreg

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compiledSchema wraps a tool's input schema compiled once at registration
// time. Invoke checks arguments against it after MarshalArgs has succeeded,
// catching structural constraints that per-field conversion does not.
type compiledSchema struct {
	schema *jsonschema.Schema
}

func compileSchema(name string, raw json.RawMessage) (*compiledSchema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	compiler := jsonschema.NewCompiler()
	resource := "tool://" + name + "/input-schema.json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &compiledSchema{schema: schema}, nil
}

// validateArgs checks argsRaw against the compiled schema. A nil receiver
// (compileSchema was given an empty schema) is a permissive no-op.
func (c *compiledSchema) validateArgs(argsRaw json.RawMessage) error {
	if c == nil || c.schema == nil {
		return nil
	}
	var v any
	if len(argsRaw) == 0 {
		v = map[string]any{}
	} else if err := json.Unmarshal(argsRaw, &v); err != nil {
		return fmt.Errorf("arguments must be valid JSON: %w", err)
	}
	if err := c.schema.Validate(v); err != nil {
		return fmt.Errorf("arguments do not match tool schema: %w", err)
	}
	return nil
}
