package connector

import (
	"context"
	"sync"

	"github.com/rendis/relay/pkg/schema"
)

// MemoryConnector is an in-memory Connector for tests and local development.
// Results are registered per query string; unknown queries error.
type MemoryConnector struct {
	name string

	mu      sync.RWMutex
	results map[string][]Row
	calls   int
}

// NewMemoryConnector creates an empty MemoryConnector.
func NewMemoryConnector(name string) *MemoryConnector {
	return &MemoryConnector{
		name:    name,
		results: make(map[string][]Row),
	}
}

// Name returns the connector's registered name.
func (c *MemoryConnector) Name() string { return c.name }

// Stub registers the rows returned for an exact query string.
func (c *MemoryConnector) Stub(query string, rows []Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[query] = rows
}

// StubTable is a convenience wrapper building rows from ordered columns and cells.
func (c *MemoryConnector) StubTable(query string, columns []string, cells [][]any) {
	rows := make([]Row, 0, len(cells))
	for _, cell := range cells {
		values := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(cell) {
				values[col] = cell[i]
			}
		}
		rows = append(rows, Row{Columns: columns, Values: values})
	}
	c.Stub(query, rows)
}

// Execute returns the stubbed rows for the query.
func (c *MemoryConnector) Execute(ctx context.Context, query string, _ map[string]any) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.calls++
	rows, ok := c.results[query]
	c.mu.Unlock()

	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeConnector,
			"no stubbed result for query").
			WithDetails(map[string]any{"connector": c.name, "query": query})
	}
	return rows, nil
}

// Calls returns the number of Execute invocations, for exactly-once assertions.
func (c *MemoryConnector) Calls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls
}

// Close is a no-op.
func (c *MemoryConnector) Close() error { return nil }

var _ Connector = (*MemoryConnector)(nil)
