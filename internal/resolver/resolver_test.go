package resolver

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/relay/internal/actions"
	"github.com/rendis/relay/internal/connector"
	"github.com/rendis/relay/internal/questions"
	"github.com/rendis/relay/internal/transform"
	"github.com/rendis/relay/pkg/schema"
)

func newTestResolver(t *testing.T) (*Resolver, *connector.MemoryConnector) {
	t.Helper()
	registry := connector.NewRegistry()
	mem := connector.NewMemoryConnector("main")
	require.NoError(t, registry.Register(mem))

	set, err := transform.NewSet()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(registry, set, logger), mem
}

func testUser() schema.User {
	return schema.User{ID: "u1", ChatID: "chat-1", Username: "ada", Name: "Ada"}
}

func TestResolve_AnswersAndContext(t *testing.T) {
	r, _ := newTestResolver(t)
	spec := &actions.Spec{
		Name:   "greet",
		Folder: "/actions/greet",
		Params: []string{"name", "user", "folder", "logger"},
		Questions: map[string]questions.Question{
			"name": questions.NewText("name?"),
		},
		Body: noopBody,
	}
	plan, err := BuildPlan(spec)
	require.NoError(t, err)

	args, err := r.Resolve(context.Background(), plan, &Invocation{
		InvocationID: "inv-1",
		User:         testUser(),
		Answers:      map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Ada", args["name"])
	assert.Equal(t, testUser(), args["user"])
	assert.Equal(t, "/actions/greet", args["folder"])
	assert.IsType(t, &slog.Logger{}, args["logger"])
}

func TestResolve_MissingAnswerResolvesNil(t *testing.T) {
	r, _ := newTestResolver(t)
	spec := &actions.Spec{
		Name:      "greet",
		Params:    []string{"name"},
		Questions: map[string]questions.Question{"name": questions.NewText("name?")},
		Body:      noopBody,
	}
	plan, err := BuildPlan(spec)
	require.NoError(t, err)

	args, err := r.Resolve(context.Background(), plan, &Invocation{User: testUser()})
	require.NoError(t, err)
	v, ok := args["name"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestResolve_UnboundParameterResolvesNil(t *testing.T) {
	r, _ := newTestResolver(t)
	spec := &actions.Spec{Name: "future", Params: []string{"user", "new_framework_param"}, Body: noopBody}
	plan, err := BuildPlan(spec)
	require.NoError(t, err)

	args, err := r.Resolve(context.Background(), plan, &Invocation{User: testUser()})
	require.NoError(t, err)
	assert.Equal(t, testUser(), args["user"])
	v, ok := args["new_framework_param"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestResolve_DataExecutesQueryOnce(t *testing.T) {
	r, mem := newTestResolver(t)
	mem.StubTable("SELECT id, name FROM users", []string{"id", "name"},
		[][]any{{1, "ada"}, {2, "lin"}})

	spec := &actions.Spec{
		Name:   "report",
		Params: []string{"data"},
		Queries: []connector.QueryFile{{
			Name: "users", Connector: "main",
			File: "users.main.sql", Source: "SELECT id, name FROM users",
		}},
		Body: noopBody,
	}
	plan, err := BuildPlan(spec)
	require.NoError(t, err)

	args, err := r.Resolve(context.Background(), plan, &Invocation{User: testUser()})
	require.NoError(t, err)

	rows, ok := args["data"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, "ada", rows[0]["name"])
	assert.Equal(t, 1, mem.Calls())
}

func TestResolve_TemplatedQueryUsesAnswers(t *testing.T) {
	r, mem := newTestResolver(t)
	mem.StubTable("SELECT * FROM orders WHERE region = 'eu'", []string{"id"}, [][]any{{7}})

	spec := &actions.Spec{
		Name:   "orders",
		Params: []string{"region", "data"},
		Questions: map[string]questions.Question{
			"region": questions.NewText("region?"),
		},
		Queries: []connector.QueryFile{{
			Name: "orders", Connector: "main", File: "orders.main.sql.tmpl",
			Source:     "SELECT * FROM orders WHERE region = '{{.answers.region}}'",
			IsTemplate: true,
		}},
		Body: noopBody,
	}
	plan, err := BuildPlan(spec)
	require.NoError(t, err)

	args, err := r.Resolve(context.Background(), plan, &Invocation{
		User:    testUser(),
		Answers: map[string]any{"region": "eu"},
	})
	require.NoError(t, err)
	rows := args["data"].([]map[string]any)
	require.Len(t, rows, 1)
	assert.Equal(t, 7, rows[0]["id"])
}

func TestResolve_DataTransformReshapes(t *testing.T) {
	r, mem := newTestResolver(t)
	mem.StubTable("SELECT name FROM users", []string{"name"},
		[][]any{{"ada"}, {"lin"}})

	spec := &actions.Spec{
		Name:   "report",
		Params: []string{"data_users"},
		Queries: []connector.QueryFile{{
			Name: "users", Connector: "main",
			File: "users.main.sql", Source: "SELECT name FROM users",
		}},
		Transforms: map[string]string{"data_users": "jq: .data | map(.name)"},
		Body:       noopBody,
	}
	plan, err := BuildPlan(spec)
	require.NoError(t, err)

	args, err := r.Resolve(context.Background(), plan, &Invocation{User: testUser()})
	require.NoError(t, err)
	assert.Equal(t, []any{"ada", "lin"}, args["data_users"])
}

func TestResolve_TemplateSeesResolvedData(t *testing.T) {
	r, mem := newTestResolver(t)
	mem.StubTable("SELECT count(*) AS n FROM users", []string{"n"}, [][]any{{5}})

	set := testTemplates(t, map[string]string{
		"summary.md.tmpl": "{{.user.name}} sees {{len .data}} rows",
	})

	spec := &actions.Spec{
		Name:   "summary",
		Params: []string{"data", "template_summary"},
		Queries: []connector.QueryFile{{
			Name: "count", Connector: "main",
			File: "count.main.sql", Source: "SELECT count(*) AS n FROM users",
		}},
		Templates: set,
		Body:      noopBody,
	}
	plan, err := BuildPlan(spec)
	require.NoError(t, err)

	args, err := r.Resolve(context.Background(), plan, &Invocation{User: testUser()})
	require.NoError(t, err)
	assert.Equal(t, "Ada sees 1 rows", args["template_summary"])
}

func TestResolve_Deterministic(t *testing.T) {
	r, mem := newTestResolver(t)
	mem.StubTable("SELECT 1", []string{"n"}, [][]any{{1}})

	spec := &actions.Spec{
		Name:   "a",
		Params: []string{"data"},
		Queries: []connector.QueryFile{{
			Name: "one", Connector: "main", File: "one.main.sql", Source: "SELECT 1",
		}},
		Body: noopBody,
	}
	plan, err := BuildPlan(spec)
	require.NoError(t, err)

	inv := func() *Invocation { return &Invocation{User: testUser()} }
	a, err := r.Resolve(context.Background(), plan, inv())
	require.NoError(t, err)
	b, err := r.Resolve(context.Background(), plan, inv())
	require.NoError(t, err)
	assert.Equal(t, a["data"], b["data"])
}
