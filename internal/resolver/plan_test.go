package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/relay/internal/actions"
	"github.com/rendis/relay/internal/connector"
	"github.com/rendis/relay/internal/questions"
	"github.com/rendis/relay/internal/templates"
	"github.com/rendis/relay/pkg/schema"
)

func noopBody(context.Context, map[string]any) (any, error) { return nil, nil }

func testTemplates(t *testing.T, sources map[string]string) *templates.Set {
	t.Helper()
	set, err := templates.NewSet(sources)
	require.NoError(t, err)
	return set
}

func TestBuildPlan_ClassifiesReservedNames(t *testing.T) {
	spec := &actions.Spec{
		Name:      "report",
		Params:    []string{"user", "users", "logger", "folder", "update", "templates"},
		Body:      noopBody,
		Templates: testTemplates(t, nil),
	}

	plan, err := BuildPlan(spec)
	require.NoError(t, err)
	require.Len(t, plan.Bindings, 6)

	want := []Source{SourceUser, SourceUsers, SourceLogger, SourceFolder, SourceUpdate, SourceTemplates}
	for i, b := range plan.Bindings {
		assert.Equal(t, want[i], b.Source, b.Param)
	}
	assert.Empty(t, plan.Questions())
}

func TestBuildPlan_QuestionBinding(t *testing.T) {
	spec := &actions.Spec{
		Name:   "greet",
		Params: []string{"name", "user"},
		Questions: map[string]questions.Question{
			"name": questions.NewText("name?"),
		},
		Body: noopBody,
	}

	plan, err := BuildPlan(spec)
	require.NoError(t, err)

	qs := plan.Questions()
	require.Len(t, qs, 1)
	assert.Equal(t, "name", qs[0].Param)
}

func TestBuildPlan_UnknownParameterBindsAbsent(t *testing.T) {
	spec := &actions.Spec{Name: "future", Params: []string{"user", "new_framework_param"}, Body: noopBody}

	plan, err := BuildPlan(spec)
	require.NoError(t, err)
	require.Len(t, plan.Bindings, 2)
	assert.Equal(t, SourceUnbound, plan.Bindings[1].Source)
	assert.Empty(t, plan.Questions())
	assert.Equal(t, []string{"new_framework_param"}, plan.Unbound())
}

func TestBuildPlan_BareDataRequiresExactlyOneQuery(t *testing.T) {
	oneQuery := []connector.QueryFile{{Name: "users", Connector: "main", File: "users.main.sql"}}

	spec := &actions.Spec{Name: "a", Params: []string{"data"}, Queries: oneQuery, Body: noopBody}
	plan, err := BuildPlan(spec)
	require.NoError(t, err)
	assert.Equal(t, "users", plan.Bindings[0].Query.Name)

	// No query files: unresolvable.
	spec = &actions.Spec{Name: "b", Params: []string{"data"}, Body: noopBody}
	_, err = BuildPlan(spec)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeRegistration, schema.CodeOf(err))

	// Several query files: ambiguous.
	spec = &actions.Spec{
		Name:   "c",
		Params: []string{"data"},
		Queries: append(oneQuery,
			connector.QueryFile{Name: "orders", Connector: "main", File: "orders.main.sql"}),
		Body: noopBody,
	}
	_, err = BuildPlan(spec)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeRegistration, schema.CodeOf(err))
}

func TestBuildPlan_SuffixedDataBinding(t *testing.T) {
	spec := &actions.Spec{
		Name:   "report",
		Params: []string{"data_orders"},
		Queries: []connector.QueryFile{
			{Name: "users", Connector: "main", File: "users.main.sql"},
			{Name: "orders", Connector: "main", File: "orders.main.sql"},
		},
		Body: noopBody,
	}

	plan, err := BuildPlan(spec)
	require.NoError(t, err)
	assert.Equal(t, "orders", plan.Bindings[0].Query.Name)

	spec.Params = []string{"data_ghost"}
	_, err = BuildPlan(spec)
	require.Error(t, err)
}

func TestBuildPlan_TemplateBindings(t *testing.T) {
	set := testTemplates(t, map[string]string{
		"result.md.tmpl": "ok",
	})

	spec := &actions.Spec{Name: "a", Params: []string{"template"}, Templates: set, Body: noopBody}
	plan, err := BuildPlan(spec)
	require.NoError(t, err)
	assert.Equal(t, "result.md.tmpl", plan.Bindings[0].Template)

	// Suffixed form accepts the bare name without extension.
	spec = &actions.Spec{Name: "b", Params: []string{"template_result"}, Templates: set, Body: noopBody}
	plan, err = BuildPlan(spec)
	require.NoError(t, err)
	assert.Equal(t, "result.md.tmpl", plan.Bindings[0].Template)

	// Bare "template" with several templates is ambiguous.
	multi := testTemplates(t, map[string]string{"a.md.tmpl": "a", "b.md.tmpl": "b"})
	spec = &actions.Spec{Name: "c", Params: []string{"template"}, Templates: multi, Body: noopBody}
	_, err = BuildPlan(spec)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeRegistration, schema.CodeOf(err))
}

func TestBuildPlan_RejectsStrayDeclarations(t *testing.T) {
	spec := &actions.Spec{
		Name:   "a",
		Params: []string{"user"},
		Questions: map[string]questions.Question{
			"ghost": questions.NewText("?"),
		},
		Body: noopBody,
	}
	_, err := BuildPlan(spec)
	require.Error(t, err)

	spec = &actions.Spec{
		Name:       "b",
		Params:     []string{"user"},
		Transforms: map[string]string{"ghost": "jq: ."},
		Body:       noopBody,
	}
	_, err = BuildPlan(spec)
	require.Error(t, err)
}

func TestBuildPlan_DuplicateParamFails(t *testing.T) {
	spec := &actions.Spec{Name: "a", Params: []string{"user", "user"}, Body: noopBody}
	_, err := BuildPlan(spec)
	require.Error(t, err)
}
