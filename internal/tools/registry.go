// Package tools holds the registry of callable tools and the container
// runtime tool set registered into it at startup.
package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handler executes one tool call. Arguments have been validated against the
// tool's input schema before the handler runs.
type Handler func(ctx context.Context, args Arguments) (any, error)

// Tool is a registered descriptor with its handler.
type Tool struct {
	Descriptor mcp.Tool
	Handler    Handler
}

// ReadOnly reports whether the tool declares that it does not modify its
// environment.
func (t *Tool) ReadOnly() bool {
	hint := t.Descriptor.Annotations.ReadOnlyHint
	return hint != nil && *hint
}

// DuplicateToolError is returned when a tool name is registered twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// UnknownToolError is returned when resolving a name that is not registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// Registry maps tool names to descriptors and handlers. It is filled once at
// startup and only read afterwards, so lookups need no locking.
type Registry struct {
	tools []Tool
	index map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a tool. Names must be non-empty and unique.
func (r *Registry) Register(desc mcp.Tool, handler Handler) error {
	if desc.Name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if handler == nil {
		return fmt.Errorf("register tool %q: nil handler", desc.Name)
	}
	if _, ok := r.index[desc.Name]; ok {
		return &DuplicateToolError{Name: desc.Name}
	}
	r.index[desc.Name] = len(r.tools)
	r.tools = append(r.tools, Tool{Descriptor: desc, Handler: handler})
	return nil
}

// List returns the descriptors in registration order.
func (r *Registry) List() []mcp.Tool {
	out := make([]mcp.Tool, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Descriptor
	}
	return out
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (*Tool, error) {
	i, ok := r.index[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return &r.tools[i], nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}
