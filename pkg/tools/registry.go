package tools

import (
	"context"
	"fmt"
	"sync"
)

// Kind distinguishes locally implemented tools from external server tools.
type Kind string

const (
	KindBuiltin  Kind = "builtin"
	KindExternal Kind = "external"
)

// Fn is the implementation of a builtin tool.
type Fn func(ctx context.Context, args map[string]interface{}) (string, error)

// Entry describes one registered tool. Name is globally unique across kinds.
type Entry struct {
	Name        string                 `json:"name"`
	Kind        Kind                   `json:"kind"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
	Fn          Fn                     `json:"-"`
	ServerName  string                 `json:"server_name,omitempty"`
}

// Registry is the unified builtin/external tool registry. A single lock
// covers mutation and iteration; readers get consistent snapshots.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// RegisterBuiltin registers a local tool. Re-registering the same name is
// idempotent; colliding with an external tool is an error.
func (r *Registry) RegisterBuiltin(name, description string, parameters map[string]interface{}, fn Fn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[name]; ok && existing.Kind != KindBuiltin {
		return fmt.Errorf("tool name %s already registered as %s", name, existing.Kind)
	}
	r.entries[name] = Entry{
		Name:        name,
		Kind:        KindBuiltin,
		Description: description,
		Parameters:  parameters,
		Fn:          fn,
	}
	return nil
}

// RegisterExternal registers a tool advertised by an external server.
func (r *Registry) RegisterExternal(entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.Kind = KindExternal
	if existing, ok := r.entries[entry.Name]; ok && existing.Kind == KindBuiltin {
		return fmt.Errorf("tool name %s already registered as builtin", entry.Name)
	}
	r.entries[entry.Name] = entry
	return nil
}

// ReplaceServer atomically swaps all tools of one server for a fresh set.
// Used when a discovery refresh completes.
func (r *Registry) ReplaceServer(serverName string, entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		if e.Kind == KindExternal && e.ServerName == serverName {
			delete(r.entries, name)
		}
	}
	for _, e := range entries {
		e.Kind = KindExternal
		e.ServerName = serverName
		if existing, ok := r.entries[e.Name]; ok && existing.Kind == KindBuiltin {
			continue // builtins shadow external names
		}
		r.entries[e.Name] = e
	}
}

// RemoveServer drops every tool advertised by serverName.
func (r *Registry) RemoveServer(serverName string) {
	r.ReplaceServer(serverName, nil)
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// List returns a snapshot of every registered tool. Ordering is unspecified;
// name uniqueness is guaranteed.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
