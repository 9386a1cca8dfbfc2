package resolver

import (
	"context"
	"log/slog"

	"github.com/rendis/relay/internal/connector"
	"github.com/rendis/relay/internal/templates"
	"github.com/rendis/relay/internal/transform"
	"github.com/rendis/relay/pkg/schema"
)

// Invocation carries the runtime inputs of one action invocation: who is
// asking, the answers gathered so far, and the raw inbound message.
type Invocation struct {
	InvocationID string
	User         schema.User
	Audience     []schema.User
	Update       any
	Answers      map[string]any
}

// Resolver turns a plan plus an invocation into the argument map handed to
// the action body. Resolution is deterministic: same plan, same answers,
// same data yields the same arguments.
type Resolver struct {
	connectors *connector.Registry
	transforms *transform.Set
	logger     *slog.Logger
}

// New creates a resolver.
func New(connectors *connector.Registry, transforms *transform.Set, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{connectors: connectors, transforms: transforms, logger: logger}
}

// Resolve produces the argument map for the plan. Data parameters execute
// their query exactly once per invocation; template parameters render last so
// their scope sees every other resolved value. Parameters that cannot be
// filled (a question with no answer, an unbound name) resolve to nil under a
// logged warning so the body always runs with its full argument list.
func (r *Resolver) Resolve(ctx context.Context, plan *Plan, inv *Invocation) (map[string]any, error) {
	if inv.Answers == nil {
		inv.Answers = map[string]any{}
	}

	args := make(map[string]any, len(plan.Bindings))
	var deferred []Binding

	for _, b := range plan.Bindings {
		switch b.Source {
		case SourceQuestion:
			v, ok := inv.Answers[b.Param]
			if !ok {
				r.logger.WarnContext(ctx, "parameter has no answer, resolving nil",
					slog.String("action", plan.Action.Name), slog.String("param", b.Param))
			}
			args[b.Param] = v
		case SourceUser:
			args[b.Param] = inv.User
		case SourceUsers:
			args[b.Param] = inv.Audience
		case SourceLogger:
			args[b.Param] = r.logger.With(
				slog.String("action", plan.Action.Name),
				slog.String("chat_id", inv.User.ChatID),
				slog.String("invocation_id", inv.InvocationID))
		case SourceFolder:
			args[b.Param] = plan.Action.Folder
		case SourceUpdate:
			args[b.Param] = inv.Update
		case SourceTemplates:
			args[b.Param] = plan.Action.Templates
		case SourceData:
			v, err := r.resolveData(ctx, plan, b, inv)
			if err != nil {
				return nil, err
			}
			args[b.Param] = v
		case SourceTemplate:
			deferred = append(deferred, b)
		case SourceUnbound:
			r.logger.WarnContext(ctx, "parameter matches no source, resolving nil",
				slog.String("action", plan.Action.Name), slog.String("param", b.Param))
			args[b.Param] = nil
		}
	}

	for _, b := range deferred {
		rendered, err := plan.Action.Templates.Render(b.Template, r.scope(inv, args))
		if err != nil {
			return nil, err
		}
		args[b.Param] = rendered
	}

	return args, nil
}

// resolveData renders the query when templated, executes it through its
// connector, and applies the optional reshaping transform.
func (r *Resolver) resolveData(ctx context.Context, plan *Plan, b Binding, inv *Invocation) (any, error) {
	query := b.Query.Source
	if b.Query.IsTemplate {
		rendered, err := templates.RenderString(query, map[string]any{
			"answers": inv.Answers,
			"user":    UserMap(inv.User),
		})
		if err != nil {
			return nil, err
		}
		query = rendered
	}

	conn, err := r.connectors.Get(b.Query.Connector)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Execute(ctx, query, inv.Answers)
	if err != nil {
		return nil, err
	}

	value := rowsToMaps(rows)
	if b.Transform == "" {
		return value, nil
	}

	engine, expression := r.transforms.Split(b.Transform)
	out, err := engine.Evaluate(ctx, expression, map[string]any{
		"data":    value,
		"answers": inv.Answers,
		"user":    UserMap(inv.User),
	})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeResolution,
			"transform for parameter %q failed: %s", b.Param, err.Error()).
			WithAction(plan.Action.Name).WithCause(err)
	}
	return out, nil
}

// scope builds the template rendering context: the user, the answers, and
// every already resolved argument under its parameter name.
func (r *Resolver) scope(inv *Invocation, args map[string]any) map[string]any {
	scope := make(map[string]any, len(args)+2)
	for k, v := range args {
		scope[k] = v
	}
	scope["user"] = UserMap(inv.User)
	scope["answers"] = inv.Answers
	return scope
}

// UserMap flattens a user for expression and template scopes.
func UserMap(u schema.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"chat_id":    u.ChatID,
		"username":   u.Username,
		"name":       u.Name,
		"attributes": u.Attributes,
	}
}

func rowsToMaps(rows []connector.Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Values)
	}
	return out
}
