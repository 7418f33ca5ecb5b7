package resolver

import (
	"sort"
	"sync"

	"github.com/hupe1980/agentgraph/tool"
)

// Registry holds the process-wide global tools. Populate it at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool.Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...tool.Tool) *Registry {
	r := &Registry{tools: make(map[string]tool.Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t tool.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
