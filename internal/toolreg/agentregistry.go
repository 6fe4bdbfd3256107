package toolreg

import (
	"sort"
	"strings"
	"sync"
)

// AgentRegistry is the agent-side view of a tool set: every descriptor an
// MCP server advertised, plus which of them a given agent definition has
// actually enabled. Tool names are grouped into categories by the prefix
// before their first underscore (e.g. "fs_read" and "fs_write" both fall
// under category "fs"), matching the naming convention MCP servers use for
// related tool families.
type AgentRegistry struct {
	mu      sync.RWMutex
	all     map[string]Descriptor
	order   []string
	enabled map[string]bool
}

// NewAgentRegistry returns an AgentRegistry with nothing enabled.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{
		all:     make(map[string]Descriptor),
		enabled: make(map[string]bool),
	}
}

// SetAvailable replaces the full set of tools known to be available (e.g.
// after a tools/list round trip), preserving the current enabled subset for
// any name that still exists.
func (a *AgentRegistry) SetAvailable(descriptors []Descriptor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.all = make(map[string]Descriptor, len(descriptors))
	a.order = a.order[:0]
	for _, d := range descriptors {
		a.all[d.Name] = d
		a.order = append(a.order, d.Name)
	}
	for name := range a.enabled {
		if _, ok := a.all[name]; !ok {
			delete(a.enabled, name)
		}
	}
}

// Enable marks name as usable by the agent. It is a no-op if name is not
// among the available tools.
func (a *AgentRegistry) Enable(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.all[name]; ok {
		a.enabled[name] = true
	}
}

// Disable marks name as unusable without forgetting its descriptor.
func (a *AgentRegistry) Disable(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.enabled, name)
}

// Enabled returns the descriptors of every currently enabled tool, in the
// order SetAvailable received them.
func (a *AgentRegistry) Enabled() []Descriptor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Descriptor, 0, len(a.enabled))
	for _, name := range a.order {
		if a.enabled[name] {
			out = append(out, a.all[name])
		}
	}
	return out
}

// Categories groups every available tool name by the prefix preceding its
// first underscore. A name with no underscore is its own category.
func (a *AgentRegistry) Categories() map[string][]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string][]string)
	for _, name := range a.order {
		cat := name
		if i := strings.IndexByte(name, '_'); i >= 0 {
			cat = name[:i]
		}
		out[cat] = append(out[cat], name)
	}
	for cat := range out {
		sort.Strings(out[cat])
	}
	return out
}

// ValidateIDs reports which of ids are available tool names and which are
// not, so an agent definition referencing a stale or misspelled tool ID can
// be rejected with a precise list of the offenders.
func (a *AgentRegistry) ValidateIDs(ids []string) (ok bool, missing []string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, id := range ids {
		if _, present := a.all[id]; !present {
			missing = append(missing, id)
		}
	}
	return len(missing) == 0, missing
}
