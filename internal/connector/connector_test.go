package connector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/relay/pkg/schema"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewMemoryConnector("main")))

	c, err := r.Get("main")
	require.NoError(t, err)
	assert.Equal(t, "main", c.Name())
	assert.True(t, r.Has("main"))
	assert.False(t, r.Has("other"))
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewMemoryConnector("main")))

	err := r.Register(NewMemoryConnector("main"))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, schema.CodeOf(err))
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewMemoryConnector("b")))
	require.NoError(t, r.Register(NewMemoryConnector("a")))
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRow_GetPreservesColumnOrder(t *testing.T) {
	row := Row{
		Columns: []string{"label", "value"},
		Values:  map[string]any{"label": "Ada", "value": 1},
	}
	assert.Equal(t, "Ada", row.Get(0))
	assert.Equal(t, 1, row.Get(1))
	assert.Nil(t, row.Get(2))
	assert.Nil(t, row.Get(-1))
}

func TestMemoryConnector_StubAndCalls(t *testing.T) {
	c := NewMemoryConnector("mem")
	c.StubTable("SELECT 1", []string{"n"}, [][]any{{1}})

	rows, err := c.Execute(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Get(0))
	assert.Equal(t, 1, c.Calls())

	_, err = c.Execute(context.Background(), "SELECT 2", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConnector, schema.CodeOf(err))
	assert.Equal(t, 2, c.Calls())
}
