package questions

import (
	"context"
	"strings"

	"github.com/rendis/relay/internal/templates"
	"github.com/rendis/relay/pkg/schema"
)

// Option is one selectable choice. Label is what the user sees and replies
// with; Value is what the resolved parameter receives. The two are distinct
// on purpose: it is how human-readable choices map to opaque identifiers.
type Option struct {
	Label string
	Value any
}

// Labels is a convenience for choices whose label and stored value coincide.
func Labels(labels ...string) []Option {
	opts := make([]Option, 0, len(labels))
	for _, l := range labels {
		opts = append(opts, Option{Label: l, Value: l})
	}
	return opts
}

// --- StaticChoice ---

// StaticChoice asks the user to pick from a fixed enumerated set.
type StaticChoice struct {
	Base
	options []Option
}

// NewStaticChoice creates a static choice question.
func NewStaticChoice(text string, options ...Option) *StaticChoice {
	return &StaticChoice{Base: Base{text: text}, options: options}
}

// ErrorText overrides the default validation error message.
func (q *StaticChoice) ErrorText(text string) *StaticChoice {
	q.errorText = text
	return q
}

// Pre appends pre-validation stages.
func (q *StaticChoice) Pre(stages ...Stage) *StaticChoice {
	q.pre = append(q.pre, stages...)
	return q
}

// Post appends post-validation stages.
func (q *StaticChoice) Post(stages ...Stage) *StaticChoice {
	q.post = append(q.post, stages...)
	return q
}

// Rich is true: the prompt carries the option labels as reply markup.
func (q *StaticChoice) Rich() bool { return true }

// Prompt attaches the option labels so the transport can render a picker.
func (q *StaticChoice) Prompt(_ context.Context, _ *Env) (schema.OutboundMessage, error) {
	msg := schema.TextMessage(q.text)
	for _, opt := range q.options {
		msg.Choices = append(msg.Choices, opt.Label)
	}
	return msg, nil
}

// Validate matches the reply against the option labels and yields the
// stored value of the selected option.
func (q *StaticChoice) Validate(ctx context.Context, reply schema.Reply, env *Env) (any, error) {
	value, err := q.runPre(ctx, replyText(reply), env)
	if err != nil {
		return nil, err
	}

	label := strings.TrimSpace(stringify(value))
	for _, opt := range q.options {
		if opt.Label == label {
			return q.runPost(ctx, opt.Value, env)
		}
	}
	return nil, q.failf("Please choose one of the available options.")
}

var _ Question = (*StaticChoice)(nil)

// --- DynamicChoice ---

// DynamicChoice obtains its valid set by executing a read-only query through
// a named connector. The query runs at validation time, not only at prompt
// time, so concurrent data changes cannot let a stale selection through.
// A two-column result maps the first column (presentation label) to the
// second (stored value); a single-column result uses the value as both.
type DynamicChoice struct {
	Base
	queryRef string
}

// NewDynamicChoice creates a dynamic choice question backed by the query file
// referenced by name or filename within the action folder.
func NewDynamicChoice(text, queryRef string) *DynamicChoice {
	return &DynamicChoice{Base: Base{text: text}, queryRef: queryRef}
}

// ErrorText overrides the default validation error message.
func (q *DynamicChoice) ErrorText(text string) *DynamicChoice {
	q.errorText = text
	return q
}

// Pre appends pre-validation stages.
func (q *DynamicChoice) Pre(stages ...Stage) *DynamicChoice {
	q.pre = append(q.pre, stages...)
	return q
}

// Post appends post-validation stages.
func (q *DynamicChoice) Post(stages ...Stage) *DynamicChoice {
	q.post = append(q.post, stages...)
	return q
}

// Rich is true: the prompt carries the option labels as reply markup.
func (q *DynamicChoice) Rich() bool { return true }

// Prompt fetches the current options for display.
func (q *DynamicChoice) Prompt(ctx context.Context, env *Env) (schema.OutboundMessage, error) {
	options, err := q.fetchOptions(ctx, env)
	if err != nil {
		return schema.OutboundMessage{}, err
	}

	msg := schema.TextMessage(q.text)
	for _, opt := range options {
		msg.Choices = append(msg.Choices, opt.Label)
	}
	return msg, nil
}

// Validate re-fetches the options and matches the reply against the labels,
// yielding the stored value of the selected option.
func (q *DynamicChoice) Validate(ctx context.Context, reply schema.Reply, env *Env) (any, error) {
	value, err := q.runPre(ctx, replyText(reply), env)
	if err != nil {
		return nil, err
	}

	options, err := q.fetchOptions(ctx, env)
	if err != nil {
		return nil, err
	}

	label := strings.TrimSpace(stringify(value))
	for _, opt := range options {
		if opt.Label == label {
			return q.runPost(ctx, opt.Value, env)
		}
	}
	return nil, q.failf("Please choose one of the available options.")
}

// fetchOptions resolves the query file, renders it when templated, executes
// it through its connector, and builds the ordered option list.
func (q *DynamicChoice) fetchOptions(ctx context.Context, env *Env) ([]Option, error) {
	if env == nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "dynamic choice requires an environment")
	}

	qf, ok := env.LookupQuery(q.queryRef)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"query %q for dynamic choice not found", q.queryRef)
	}

	query := qf.Source
	if qf.IsTemplate {
		rendered, err := templates.RenderString(query, map[string]any{
			"answers": env.Answers,
			"user":    env.User,
		})
		if err != nil {
			return nil, err
		}
		query = rendered
	}

	conn, err := env.Connectors.Get(qf.Connector)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Execute(ctx, query, env.Answers)
	if err != nil {
		return nil, err
	}

	options := make([]Option, 0, len(rows))
	for _, row := range rows {
		switch {
		case len(row.Columns) >= 2:
			options = append(options, Option{
				Label: strings.TrimSpace(stringify(row.Get(0))),
				Value: row.Get(1),
			})
		case len(row.Columns) == 1:
			options = append(options, Option{
				Label: strings.TrimSpace(stringify(row.Get(0))),
				Value: row.Get(0),
			})
		}
	}
	return options, nil
}

var _ Question = (*DynamicChoice)(nil)
