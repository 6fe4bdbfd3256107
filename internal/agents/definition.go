// Package agents holds MCP agent definitions: persisted configuration
// describing an LLM provider/model/system-prompt/tool-set combination,
// plus the registry and store that manage a live set of them.
package agents

import "time"

// Definition describes one configured agent: which provider/model backs
// it, its system prompt, and which tools it is allowed to use.
type Definition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Provider  string `json:"provider"`
	ModelName string `json:"model_name"`

	SystemPrompt string   `json:"system_prompt,omitempty"`
	ToolIDs      []string `json:"tool_ids,omitempty"`

	Parameters map[string]any `json:"parameters,omitempty"`

	Category   string `json:"category,omitempty"`
	CreatedBy  string `json:"created_by,omitempty"`
	ModifiedBy string `json:"modified_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep-enough copy safe for a caller to mutate without
// affecting the stored definition (ToolIDs/Parameters are copied).
func (d Definition) Clone() Definition {
	out := d
	if d.ToolIDs != nil {
		out.ToolIDs = append([]string(nil), d.ToolIDs...)
	}
	if d.Parameters != nil {
		out.Parameters = make(map[string]any, len(d.Parameters))
		for k, v := range d.Parameters {
			out.Parameters[k] = v
		}
	}
	return out
}
