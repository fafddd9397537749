package node

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry is a process-wide, read-only-after-construction mapping from
// node_type to Handler. It is built once at startup and never mutated by
// handlers themselves.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register adds a handler under its own TypeName. It is an error to
// register the same type name twice.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return NewValidationError("", "handler", "handler cannot be nil")
	}
	typeName := h.TypeName()
	if typeName == "" {
		return NewValidationError("", "type_name", "handler type name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[typeName]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, typeName)
	}

	r.handlers[typeName] = h
	r.logger.Debug("node type registered", "node_type", typeName, "category", h.Category())
	return nil
}

// Get retrieves the handler registered for node_type.
func (r *Registry) Get(nodeType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.handlers[nodeType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, nodeType)
	}
	return h, nil
}

// Has reports whether node_type is registered.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[nodeType]
	return exists
}

// List returns every registered node_type, sorted lexicographically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered node types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
