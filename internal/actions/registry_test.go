package actions

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/relay/pkg/schema"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopBody(context.Context, map[string]any) (any, error) { return nil, nil }

func TestRegister_DefaultsCommandToName(t *testing.T) {
	r := NewRegistry(discardLogger())
	spec := &Spec{Name: "greet", Body: noopBody}
	require.NoError(t, r.Register(spec))

	byCmd, err := r.GetByCommand("greet")
	require.NoError(t, err)
	assert.Equal(t, "greet", byCmd.Name)
}

func TestRegister_DropsInvalidCommands(t *testing.T) {
	r := NewRegistry(discardLogger())
	spec := &Spec{
		Name:     "greet",
		Commands: []string{"Greet", "say-hi", "hello", "hello"},
		Body:     noopBody,
	}
	require.NoError(t, r.Register(spec))

	// Uppercase and hyphenated forms are dropped, duplicates collapsed.
	assert.Equal(t, []string{"hello"}, spec.Commands)
}

func TestRegister_NoValidCommandFails(t *testing.T) {
	r := NewRegistry(discardLogger())
	err := r.Register(&Spec{Name: "greet", Commands: []string{"Not Valid!"}, Body: noopBody})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeRegistration, schema.CodeOf(err))
}

func TestRegister_CommandLengthLimit(t *testing.T) {
	long := make([]byte, 33)
	for i := range long {
		long[i] = 'a'
	}

	r := NewRegistry(discardLogger())
	err := r.Register(&Spec{Name: "greet", Commands: []string{string(long)}, Body: noopBody})
	require.Error(t, err)

	require.NoError(t, r.Register(&Spec{Name: "ok", Commands: []string{string(long[:32])}, Body: noopBody}))
}

func TestRegister_DuplicateNameRejected(t *testing.T) {
	r := NewRegistry(discardLogger())
	require.NoError(t, r.Register(&Spec{Name: "greet", Body: noopBody}))

	err := r.Register(&Spec{Name: "greet", Commands: []string{"other"}, Body: noopBody})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeRegistration, schema.CodeOf(err))
}

func TestRegister_DuplicateCommandRejected(t *testing.T) {
	r := NewRegistry(discardLogger())
	require.NoError(t, r.Register(&Spec{Name: "greet", Commands: []string{"hi"}, Body: noopBody}))

	err := r.Register(&Spec{Name: "other", Commands: []string{"hi"}, Body: noopBody})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeRegistration, schema.CodeOf(err))
}

func TestRegister_RequiresBody(t *testing.T) {
	r := NewRegistry(discardLogger())
	err := r.Register(&Spec{Name: "greet"})
	require.Error(t, err)
}

func TestNamesAndCommands_Sorted(t *testing.T) {
	r := NewRegistry(discardLogger())
	require.NoError(t, r.Register(&Spec{Name: "zulu", Body: noopBody}))
	require.NoError(t, r.Register(&Spec{Name: "alpha", Commands: []string{"alpha", "first"}, Body: noopBody}))

	assert.Equal(t, []string{"alpha", "zulu"}, r.Names())
	assert.Equal(t, []string{"alpha", "first", "zulu"}, r.Commands())
	assert.True(t, r.Has("alpha"))
	assert.False(t, r.Has("ghost"))
}

func TestGet_Unknown(t *testing.T) {
	r := NewRegistry(discardLogger())
	_, err := r.Get("ghost")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))

	_, err = r.GetByCommand("ghost")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}
