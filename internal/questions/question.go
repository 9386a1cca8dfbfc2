package questions

import (
	"context"
	"fmt"
	"strings"

	"github.com/rendis/relay/internal/connector"
	"github.com/rendis/relay/internal/transform"
	"github.com/rendis/relay/pkg/schema"
)

// Env carries the collaborators a question may need while prompting or
// validating: the connector registry (dynamic choices), the transform engines
// (pre/post stages), the action's query files, and the answers collected so
// far in the conversation.
type Env struct {
	Connectors *connector.Registry
	Transforms *transform.Set
	Queries    []connector.QueryFile
	Answers    map[string]any
	User       map[string]any
}

// LookupQuery finds a query file by exact filename, falling back to query name.
func (e *Env) LookupQuery(ref string) (connector.QueryFile, bool) {
	for _, qf := range e.Queries {
		if qf.File == ref {
			return qf, true
		}
	}
	for _, qf := range e.Queries {
		if qf.Name == ref {
			return qf, true
		}
	}
	return connector.QueryFile{}, false
}

// Question is the closed interactive-input capability. Validate runs the
// layered pipeline post(builtin(pre(raw))): any stage failing yields a
// VALIDATION_ERROR whose message is sent to the user as a request to
// re-answer the same question.
type Question interface {
	// Prompt builds the outbound message asking the question.
	Prompt(ctx context.Context, env *Env) (schema.OutboundMessage, error)
	// Validate turns a raw reply into the validated answer value.
	Validate(ctx context.Context, reply schema.Reply, env *Env) (any, error)
	// Rich reports whether the prompt carries reply markup (choices, etc.).
	// Plain prompts are implicitly re-sent after a failed validation; rich
	// ones are not, since the markup is still on screen.
	Rich() bool
}

// Stage is one free-form step of a question's pre or post pipeline. Either a
// Go function or an expression evaluated by the transform engines ("cel:"
// assertions must return true; "jq:" and plain expr results replace the
// value). Func takes precedence when both are set.
type Stage struct {
	Func       func(ctx context.Context, value any) (any, error)
	Expression string
}

// Base holds the configuration shared by every variant: prompt text,
// configured retry error text, and the pre/post stages.
type Base struct {
	text      string
	errorText string
	pre       []Stage
	post      []Stage
}

// PromptText returns the configured question text.
func (b *Base) PromptText() string { return b.text }

// Prompt sends the question text as a plain message.
func (b *Base) Prompt(_ context.Context, _ *Env) (schema.OutboundMessage, error) {
	return schema.TextMessage(b.text), nil
}

// Rich is false for plain-text prompts; variants with markup override it.
func (b *Base) Rich() bool { return false }

// failf builds the user-visible validation error, preferring the configured
// error text over the fallback message.
func (b *Base) failf(fallback string, args ...any) error {
	if b.errorText != "" {
		return schema.NewError(schema.ErrCodeValidation, b.errorText)
	}
	return schema.NewErrorf(schema.ErrCodeValidation, fallback, args...)
}

// runPre applies the pre stages in order.
func (b *Base) runPre(ctx context.Context, value any, env *Env) (any, error) {
	return runStages(ctx, b.pre, value, env)
}

// runPost applies the post stages in order.
func (b *Base) runPost(ctx context.Context, value any, env *Env) (any, error) {
	return runStages(ctx, b.post, value, env)
}

func runStages(ctx context.Context, stages []Stage, value any, env *Env) (any, error) {
	for _, stage := range stages {
		if stage.Func != nil {
			out, err := stage.Func(ctx, value)
			if err != nil {
				return nil, asValidationError(err)
			}
			value = out
			continue
		}
		if stage.Expression == "" {
			continue
		}
		if env == nil || env.Transforms == nil {
			return nil, schema.NewError(schema.ErrCodeExecution,
				"stage expression configured but no transform engines available")
		}

		engine, expr := env.Transforms.Split(stage.Expression)
		scope := map[string]any{
			"value":   value,
			"answers": env.Answers,
			"user":    env.User,
		}
		out, err := engine.Evaluate(ctx, expr, scope)
		if err != nil {
			return nil, asValidationError(err)
		}

		// CEL stages are assertions: a false result rejects the answer and
		// the value passes through unchanged.
		if engine.Name() == "cel" {
			ok, isBool := out.(bool)
			if !isBool {
				return nil, schema.NewErrorf(schema.ErrCodeExecution,
					"cel stage %q must evaluate to a boolean, got %T", expr, out)
			}
			if !ok {
				return nil, schema.NewError(schema.ErrCodeValidation,
					"The provided answer was not accepted.")
			}
			continue
		}
		value = out
	}
	return value, nil
}

// asValidationError coerces stage failures into user-visible validation
// errors, preserving connector and execution failures as fatal.
func asValidationError(err error) error {
	switch schema.CodeOf(err) {
	case schema.ErrCodeConnector, schema.ErrCodeExecution, schema.ErrCodeNotFound:
		return err
	case schema.ErrCodeValidation:
		return err
	case "":
		return schema.NewError(schema.ErrCodeValidation, err.Error()).WithCause(err)
	default:
		return err
	}
}

// replyText extracts the trimmed text of a reply.
func replyText(reply schema.Reply) string {
	return strings.TrimSpace(reply.Text)
}

// stringify renders the value flowing out of a pre stage back to a string for
// variants whose builtin check parses text.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}
