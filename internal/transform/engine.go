package transform

import (
	"context"
	"strings"
)

// Engine evaluates expressions used by question pipelines and data bindings.
// Three implementations: Expr (value transforms), CEL (boolean assertions),
// GoJQ (row reshaping).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Set bundles the three engines and dispatches prefixed expressions.
// "cel:" selects CEL, "jq:" selects GoJQ, anything else runs through Expr.
type Set struct {
	Expr *ExprEngine
	CEL  *CELEngine
	JQ   *GoJQEngine
}

// NewSet creates a Set with all engines initialized.
func NewSet() (*Set, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &Set{
		Expr: NewExprEngine(),
		CEL:  celEngine,
		JQ:   NewGoJQEngine(),
	}, nil
}

// Split returns the engine selected by the expression's prefix and the
// expression with the prefix stripped.
func (s *Set) Split(expression string) (Engine, string) {
	switch {
	case strings.HasPrefix(expression, "cel:"):
		return s.CEL, strings.TrimSpace(strings.TrimPrefix(expression, "cel:"))
	case strings.HasPrefix(expression, "jq:"):
		return s.JQ, strings.TrimSpace(strings.TrimPrefix(expression, "jq:"))
	default:
		return s.Expr, expression
	}
}

// Evaluate dispatches the expression to the engine selected by its prefix.
func (s *Set) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	engine, expr := s.Split(expression)
	return engine.Evaluate(ctx, expr, data)
}
