package toolreg

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind enumerates the parameter types a tool can declare. It maps directly
// onto JSON Schema's "type" keyword, with Enum as a String restricted to a
// fixed value set.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindEnum    Kind = "enum"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// ParamSpec declares one parameter a tool accepts. Name is matched
// case-insensitively against the caller-supplied arguments object.
type ParamSpec struct {
	Name        string
	Kind        Kind
	Description string
	Required    bool
	Default     any
	EnumValues  []string // only for KindEnum
	Items       *ParamSpec
	Properties  []ParamSpec // only for KindObject
}

// BuildSchema renders params into the JSON Schema object sent as a tool
// descriptor's inputSchema.
func BuildSchema(params []ParamSpec) (json.RawMessage, error) {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		s, err := paramJSONSchema(p)
		if err != nil {
			return nil, err
		}
		properties[p.Name] = s
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return json.Marshal(schema)
}

func paramJSONSchema(p ParamSpec) (map[string]any, error) {
	out := map[string]any{}
	if p.Description != "" {
		out["description"] = p.Description
	}
	switch p.Kind {
	case KindString:
		out["type"] = "string"
	case KindInteger:
		out["type"] = "integer"
	case KindNumber:
		out["type"] = "number"
	case KindBoolean:
		out["type"] = "boolean"
	case KindEnum:
		out["type"] = "string"
		vals := make([]any, len(p.EnumValues))
		for i, v := range p.EnumValues {
			vals[i] = v
		}
		out["enum"] = vals
	case KindArray:
		out["type"] = "array"
		if p.Items != nil {
			items, err := paramJSONSchema(*p.Items)
			if err != nil {
				return nil, err
			}
			out["items"] = items
		}
	case KindObject:
		out["type"] = "object"
		props := make(map[string]any, len(p.Properties))
		var required []string
		for _, child := range p.Properties {
			s, err := paramJSONSchema(child)
			if err != nil {
				return nil, err
			}
			props[child.Name] = s
			if child.Required {
				required = append(required, child.Name)
			}
		}
		out["properties"] = props
		if len(required) > 0 {
			out["required"] = required
		}
	default:
		return nil, fmt.Errorf("unknown parameter kind %q for %q", p.Kind, p.Name)
	}
	if p.Default != nil {
		out["default"] = p.Default
	}
	return out, nil
}

// MarshalArgs decodes argsRaw as a JSON object, resolves each declared
// parameter against it by case-insensitive name, applies defaults for
// missing optional parameters, and converts each present value to its
// declared Kind. A required parameter absent from argsRaw, or a value that
// fails to convert, produces an InvalidArgsError — this is the
// InvalidParams boundary described in the server's tools/call handling.
func MarshalArgs(params []ParamSpec, argsRaw json.RawMessage) (map[string]any, error) {
	raw := map[string]json.RawMessage{}
	if len(argsRaw) > 0 {
		if err := json.Unmarshal(argsRaw, &raw); err != nil {
			return nil, &InvalidArgsError{Reason: fmt.Sprintf("arguments must be a JSON object: %v", err)}
		}
	}

	lower := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		lower[strings.ToLower(k)] = v
	}

	out := make(map[string]any, len(params))
	for _, p := range params {
		val, present := lower[strings.ToLower(p.Name)]
		if !present {
			if p.Required {
				return nil, &InvalidArgsError{Reason: fmt.Sprintf("required parameter %q was not provided", p.Name)}
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}
		converted, err := convertParam(p, val)
		if err != nil {
			return nil, &InvalidArgsError{Reason: fmt.Sprintf("parameter %q: %v", p.Name, err)}
		}
		out[p.Name] = converted
	}
	return out, nil
}

func convertParam(p ParamSpec, raw json.RawMessage) (any, error) {
	switch p.Kind {
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("expected string: %w", err)
		}
		return s, nil
	case KindEnum:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("expected string: %w", err)
		}
		for _, v := range p.EnumValues {
			if v == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("value %q is not one of %v", s, p.EnumValues)
	case KindBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("expected boolean: %w", err)
		}
		return b, nil
	case KindNumber:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("expected number: %w", err)
		}
		return f, nil
	case KindInteger:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("expected integer: %w", err)
		}
		if f != float64(int64(f)) {
			return nil, fmt.Errorf("expected integer, got fractional value %v", f)
		}
		return int64(f), nil
	case KindArray:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("expected array: %w", err)
		}
		if p.Items == nil {
			var generic []any
			if err := json.Unmarshal(raw, &generic); err != nil {
				return nil, err
			}
			return generic, nil
		}
		out := make([]any, len(items))
		for i, it := range items {
			v, err := convertParam(*p.Items, it)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	case KindObject:
		if len(p.Properties) == 0 {
			var generic map[string]any
			if err := json.Unmarshal(raw, &generic); err != nil {
				return nil, fmt.Errorf("expected object: %w", err)
			}
			return generic, nil
		}
		return MarshalArgs(p.Properties, raw)
	default:
		return nil, fmt.Errorf("unknown parameter kind %q", p.Kind)
	}
}
