package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSet(t *testing.T) *Set {
	t.Helper()
	set, err := NewSet()
	require.NoError(t, err)
	return set
}

func TestSplit_PrefixDispatch(t *testing.T) {
	set := newTestSet(t)

	engine, expr := set.Split("cel: value > 3")
	assert.Equal(t, "cel", engine.Name())
	assert.Equal(t, "value > 3", expr)

	engine, expr = set.Split("jq: .data | length")
	assert.Equal(t, "jq", engine.Name())
	assert.Equal(t, ".data | length", expr)

	engine, expr = set.Split("value * 2")
	assert.Equal(t, "expr", engine.Name())
	assert.Equal(t, "value * 2", expr)
}

func TestExpr_Evaluate(t *testing.T) {
	set := newTestSet(t)

	out, err := set.Evaluate(context.Background(), "value * 2", map[string]any{"value": 21})
	require.NoError(t, err)
	assert.EqualValues(t, 42, out)
}

func TestExpr_UndefinedVariableIsNil(t *testing.T) {
	set := newTestSet(t)

	out, err := set.Evaluate(context.Background(), "missing == nil", map[string]any{"value": 1})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_BooleanAssertion(t *testing.T) {
	set := newTestSet(t)

	out, err := set.Evaluate(context.Background(), "cel: value > 3", map[string]any{"value": 5})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = set.Evaluate(context.Background(), "cel: value > 3", map[string]any{"value": 1})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestJQ_ReshapesData(t *testing.T) {
	set := newTestSet(t)

	out, err := set.Evaluate(context.Background(), "jq: .data | map(.name)", map[string]any{
		"data": []any{
			map[string]any{"name": "ada"},
			map[string]any{"name": "lin"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"ada", "lin"}, out)
}

func TestEvaluate_CompileErrorSurfaces(t *testing.T) {
	set := newTestSet(t)

	_, err := set.Evaluate(context.Background(), "jq: .data |", map[string]any{"data": nil})
	assert.Error(t, err)
}

func TestExpr_ProgramCacheReuse(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := set.Evaluate(ctx, "value + 1", map[string]any{"value": i})
		require.NoError(t, err)
		assert.EqualValues(t, i+1, out)
	}
}
