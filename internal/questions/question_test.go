package questions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/relay/internal/connector"
	"github.com/rendis/relay/internal/transform"
	"github.com/rendis/relay/pkg/schema"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	set, err := transform.NewSet()
	require.NoError(t, err)
	return &Env{
		Connectors: connector.NewRegistry(),
		Transforms: set,
		Answers:    map[string]any{},
		User:       map[string]any{"name": "Ada"},
	}
}

func TestStages_FuncTransformsValue(t *testing.T) {
	q := NewText("name?").Post(Stage{
		Func: func(_ context.Context, v any) (any, error) {
			return v.(string) + "!", nil
		},
	})

	out, err := q.Validate(context.Background(), schema.Reply{Text: "hi"}, newTestEnv(t))
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)
}

func TestStages_FuncErrorBecomesValidation(t *testing.T) {
	q := NewText("name?").Post(Stage{
		Func: func(_ context.Context, _ any) (any, error) {
			return nil, errors.New("not acceptable")
		},
	})

	_, err := q.Validate(context.Background(), schema.Reply{Text: "hi"}, newTestEnv(t))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestStages_CELAssertion(t *testing.T) {
	q := NewInteger("age?").Post(Stage{Expression: "cel: value >= 18"})
	env := newTestEnv(t)

	out, err := q.Validate(context.Background(), schema.Reply{Text: "21"}, env)
	require.NoError(t, err)
	assert.EqualValues(t, 21, out)

	_, err = q.Validate(context.Background(), schema.Reply{Text: "12"}, env)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestStages_ExprReplacesValue(t *testing.T) {
	q := NewInteger("n?").Post(Stage{Expression: "value * 10"})

	out, err := q.Validate(context.Background(), schema.Reply{Text: "4"}, newTestEnv(t))
	require.NoError(t, err)
	assert.EqualValues(t, 40, out)
}

func TestStages_PreRunsBeforeBuiltin(t *testing.T) {
	// The pre stage pads a short answer so the builtin pattern accepts it.
	q := NewText("code?").Pattern(`^\d{4}$`).Pre(Stage{
		Func: func(_ context.Context, v any) (any, error) {
			s := v.(string)
			for len(s) < 4 {
				s = "0" + s
			}
			return s, nil
		},
	})

	out, err := q.Validate(context.Background(), schema.Reply{Text: "7"}, newTestEnv(t))
	require.NoError(t, err)
	assert.Equal(t, "0007", out)
}

func TestFailf_PrefersConfiguredErrorText(t *testing.T) {
	q := NewText("code?").Pattern(`^\d+$`).ErrorText("Digits only, please.")

	_, err := q.Validate(context.Background(), schema.Reply{Text: "abc"}, newTestEnv(t))
	require.Error(t, err)
	var re *schema.RelayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "Digits only, please.", re.Message)
}

func TestEnv_LookupQuery(t *testing.T) {
	env := &Env{Queries: []connector.QueryFile{
		{Name: "users", Connector: "main", File: "users.main.sql"},
		{Name: "orders", Connector: "main", File: "orders.main.sql.tmpl", IsTemplate: true},
	}}

	byFile, ok := env.LookupQuery("users.main.sql")
	require.True(t, ok)
	assert.Equal(t, "users", byFile.Name)

	byName, ok := env.LookupQuery("orders")
	require.True(t, ok)
	assert.True(t, byName.IsTemplate)

	_, ok = env.LookupQuery("nope")
	assert.False(t, ok)
}
