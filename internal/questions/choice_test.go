package questions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/relay/internal/connector"
	"github.com/rendis/relay/pkg/schema"
)

func TestStaticChoice_LabelMapsToValue(t *testing.T) {
	q := NewStaticChoice("env?",
		Option{Label: "Production", Value: "prod"},
		Option{Label: "Staging", Value: "stg"},
	)

	out, err := validate(t, q, "Production")
	require.NoError(t, err)
	assert.Equal(t, "prod", out)

	out, err = validate(t, q, "  Staging ")
	require.NoError(t, err)
	assert.Equal(t, "stg", out)
}

func TestStaticChoice_RejectsUnknownLabel(t *testing.T) {
	q := NewStaticChoice("env?", Labels("a", "b")...)

	_, err := validate(t, q, "c")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestStaticChoice_PromptCarriesLabels(t *testing.T) {
	q := NewStaticChoice("env?", Labels("a", "b")...)
	require.True(t, q.Rich())

	msg, err := q.Prompt(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, msg.Choices)
}

func dynamicEnv(t *testing.T, query string, columns []string, cells [][]any) *Env {
	t.Helper()
	env := newTestEnv(t)

	mem := connector.NewMemoryConnector("main")
	mem.StubTable(query, columns, cells)
	require.NoError(t, env.Connectors.Register(mem))

	env.Queries = []connector.QueryFile{{
		Name:      "options",
		Connector: "main",
		File:      "options.main.sql",
		Source:    query,
	}}
	return env
}

func TestDynamicChoice_TwoColumnsMapLabelToValue(t *testing.T) {
	env := dynamicEnv(t, "SELECT name, id FROM envs",
		[]string{"name", "id"}, [][]any{{"Production", 1}, {"Staging", 2}})
	q := NewDynamicChoice("env?", "options")

	msg, err := q.Prompt(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, []string{"Production", "Staging"}, msg.Choices)

	out, err := q.Validate(context.Background(), schema.Reply{Text: "Staging"}, env)
	require.NoError(t, err)
	assert.Equal(t, 2, out)
}

func TestDynamicChoice_SingleColumnUsesValueAsLabel(t *testing.T) {
	env := dynamicEnv(t, "SELECT name FROM envs",
		[]string{"name"}, [][]any{{"alpha"}, {"beta"}})
	q := NewDynamicChoice("env?", "options")

	out, err := q.Validate(context.Background(), schema.Reply{Text: "beta"}, env)
	require.NoError(t, err)
	assert.Equal(t, "beta", out)
}

func TestDynamicChoice_ValidationRefetches(t *testing.T) {
	env := dynamicEnv(t, "SELECT name FROM envs",
		[]string{"name"}, [][]any{{"alpha"}})
	q := NewDynamicChoice("env?", "options")

	_, err := q.Prompt(context.Background(), env)
	require.NoError(t, err)

	// The option disappears between prompt and answer; the stale selection
	// must not get through.
	mem, err2 := env.Connectors.Get("main")
	require.NoError(t, err2)
	mem.(*connector.MemoryConnector).StubTable("SELECT name FROM envs", []string{"name"}, nil)

	_, err = q.Validate(context.Background(), schema.Reply{Text: "alpha"}, env)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestDynamicChoice_TemplatedQuery(t *testing.T) {
	env := newTestEnv(t)
	env.Answers["region"] = "eu"

	mem := connector.NewMemoryConnector("main")
	mem.StubTable("SELECT name FROM envs WHERE region = 'eu'",
		[]string{"name"}, [][]any{{"eu-1"}})
	require.NoError(t, env.Connectors.Register(mem))

	env.Queries = []connector.QueryFile{{
		Name:       "options",
		Connector:  "main",
		File:       "options.main.sql.tmpl",
		Source:     "SELECT name FROM envs WHERE region = '{{.answers.region}}'",
		IsTemplate: true,
	}}

	q := NewDynamicChoice("env?", "options")
	out, err := q.Validate(context.Background(), schema.Reply{Text: "eu-1"}, env)
	require.NoError(t, err)
	assert.Equal(t, "eu-1", out)
}

func TestDynamicChoice_MissingQueryIsFatal(t *testing.T) {
	q := NewDynamicChoice("env?", "ghost")

	_, err := q.Validate(context.Background(), schema.Reply{Text: "x"}, newTestEnv(t))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}
