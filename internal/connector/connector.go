package connector

import (
	"context"
	"sort"
	"sync"

	"github.com/rendis/relay/pkg/schema"
)

// Row is a single result row. Columns preserves the result-set column order;
// Values maps column name to value. Column order matters: dynamic-choice
// questions treat the first column as the presentation label and the second
// as the stored value.
type Row struct {
	Columns []string
	Values  map[string]any
}

// Get returns the value of the i-th column, or nil when out of range.
func (r Row) Get(i int) any {
	if i < 0 || i >= len(r.Columns) {
		return nil
	}
	return r.Values[r.Columns[i]]
}

// Connector is the uniform query-execution contract implemented by each
// storage backend. Execute borrows a pooled connection for the duration of
// the call and releases it on return; implementations must be safe for
// concurrent use.
type Connector interface {
	Name() string
	Execute(ctx context.Context, query string, bindings map[string]any) ([]Row, error)
	Close() error
}

// Registry is a thread-safe named-connector registry.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[string]Connector),
	}
}

// Register adds a connector to the registry. Returns error on duplicate name.
func (r *Registry) Register(c Connector) error {
	if c == nil {
		return schema.NewError(schema.ErrCodeRegistration, "connector is nil")
	}
	name := c.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeRegistration, "connector name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connectors[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "connector %q already registered", name)
	}

	r.connectors[name] = c
	return nil
}

// Get retrieves a connector by name.
func (r *Registry) Get(name string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connectors[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "connector %q not registered", name)
	}
	return c, nil
}

// Has checks if a connector is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connectors[name]
	return ok
}

// Names returns the registered connector names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes all registered connectors, returning the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for _, c := range r.connectors {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.connectors = make(map[string]Connector)
	return first
}
