package connector

import (
	"context"
	"database/sql"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/relay/pkg/schema"
)

// SQLiteConnector implements the Connector interface over libSQL (embedded
// SQLite fork). Queries bound to data parameters are read-mostly by
// convention; the connector does not enforce this.
type SQLiteConnector struct {
	name string
	db   *sql.DB
}

// NewSQLiteConnector opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewSQLiteConnector(name, dbPath string) (*SQLiteConnector, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConnector,
			"open libsql: %s", err.Error()).WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &SQLiteConnector{name: name, db: db}, nil
}

// Name returns the connector's registered name.
func (c *SQLiteConnector) Name() string { return c.name }

// DB returns the underlying *sql.DB for advanced usage.
func (c *SQLiteConnector) DB() *sql.DB { return c.db }

// Execute runs a query and returns the ordered result rows. Bindings are
// passed as named parameters (":key" or "@key" placeholders in the query).
func (c *SQLiteConnector) Execute(ctx context.Context, query string, bindings map[string]any) ([]Row, error) {
	args := make([]any, 0, len(bindings))
	for k, v := range bindings {
		args = append(args, sql.Named(k, v))
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConnector,
			"sqlite query failed: %s", err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"connector": c.name})
	}
	defer rows.Close()

	return scanRows(rows, c.name)
}

// Close closes the database.
func (c *SQLiteConnector) Close() error { return c.db.Close() }

// scanRows materializes a *sql.Rows into ordered Row values.
func scanRows(rows *sql.Rows, connectorName string) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConnector,
			"read columns: %s", err.Error()).WithCause(err)
	}

	var out []Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConnector,
				"scan row: %s", err.Error()).WithCause(err)
		}

		values := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := raw[i].([]byte); ok {
				values[col] = string(b)
			} else {
				values[col] = raw[i]
			}
		}
		out = append(out, Row{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConnector,
			"iterate rows: %s", err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"connector": connectorName})
	}
	return out, nil
}

var _ Connector = (*SQLiteConnector)(nil)
