package connector

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rendis/relay/pkg/schema"
)

// PostgresConnector implements the Connector interface over a pgx connection
// pool. Each Execute borrows a pooled connection and releases it on return;
// no connection reference survives the call.
type PostgresConnector struct {
	name string
	pool *pgxpool.Pool
}

// NewPostgresConnector connects to PostgreSQL using the given DSN.
func NewPostgresConnector(ctx context.Context, name, dsn string) (*PostgresConnector, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConnector,
			"connect postgres: %s", err.Error()).WithCause(err)
	}
	return &PostgresConnector{name: name, pool: pool}, nil
}

// Name returns the connector's registered name.
func (c *PostgresConnector) Name() string { return c.name }

// Execute runs a query and returns the ordered result rows. Bindings are
// passed as named arguments ("@key" placeholders in the query).
func (c *PostgresConnector) Execute(ctx context.Context, query string, bindings map[string]any) ([]Row, error) {
	var args []any
	if len(bindings) > 0 {
		args = append(args, pgx.NamedArgs(bindings))
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConnector,
			"postgres query failed: %s", err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"connector": c.name})
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out []Row
	for rows.Next() {
		raw, err := rows.Values()
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConnector,
				"read row values: %s", err.Error()).WithCause(err)
		}
		values := make(map[string]any, len(cols))
		for i, col := range cols {
			values[col] = raw[i]
		}
		out = append(out, Row{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConnector,
			"iterate rows: %s", err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"connector": c.name})
	}
	return out, nil
}

// Close releases the connection pool.
func (c *PostgresConnector) Close() error {
	c.pool.Close()
	return nil
}

var _ Connector = (*PostgresConnector)(nil)
