package questions

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rendis/relay/pkg/schema"
)

// --- Text ---

// Text asks for a free-form string, optionally constrained by a pattern.
type Text struct {
	Base
	pattern *regexp.Regexp
}

// NewText creates a text question.
func NewText(text string) *Text {
	return &Text{Base: Base{text: text}}
}

// ErrorText overrides the default validation error message.
func (q *Text) ErrorText(text string) *Text {
	q.errorText = text
	return q
}

// Pattern requires the answer to match the given regular expression.
// Panics on an invalid pattern, which is a programming error at registration.
func (q *Text) Pattern(expr string) *Text {
	q.pattern = regexp.MustCompile(expr)
	return q
}

// Pre appends pre-validation stages.
func (q *Text) Pre(stages ...Stage) *Text {
	q.pre = append(q.pre, stages...)
	return q
}

// Post appends post-validation stages.
func (q *Text) Post(stages ...Stage) *Text {
	q.post = append(q.post, stages...)
	return q
}

// Validate runs post(builtin(pre(raw))) over the reply text.
func (q *Text) Validate(ctx context.Context, reply schema.Reply, env *Env) (any, error) {
	value, err := q.runPre(ctx, replyText(reply), env)
	if err != nil {
		return nil, err
	}

	s := stringify(value)
	if q.pattern != nil && !q.pattern.MatchString(s) {
		return nil, q.failf("The provided response does not match the expected format.")
	}

	return q.runPost(ctx, s, env)
}

var _ Question = (*Text)(nil)

// --- Integer ---

// Integer asks for an integer with optional bound constraints.
type Integer struct {
	Base
	le, ge, lt, gt *int64
	multipleOf     *int64
}

// NewInteger creates an integer question.
func NewInteger(text string) *Integer {
	return &Integer{Base: Base{text: text}}
}

// ErrorText overrides the default validation error message.
func (q *Integer) ErrorText(text string) *Integer {
	q.errorText = text
	return q
}

// AtMost requires value <= n.
func (q *Integer) AtMost(n int64) *Integer { q.le = &n; return q }

// AtLeast requires value >= n.
func (q *Integer) AtLeast(n int64) *Integer { q.ge = &n; return q }

// LessThan requires value < n.
func (q *Integer) LessThan(n int64) *Integer { q.lt = &n; return q }

// GreaterThan requires value > n.
func (q *Integer) GreaterThan(n int64) *Integer { q.gt = &n; return q }

// MultipleOf requires value % n == 0.
func (q *Integer) MultipleOf(n int64) *Integer { q.multipleOf = &n; return q }

// Pre appends pre-validation stages.
func (q *Integer) Pre(stages ...Stage) *Integer {
	q.pre = append(q.pre, stages...)
	return q
}

// Post appends post-validation stages.
func (q *Integer) Post(stages ...Stage) *Integer {
	q.post = append(q.post, stages...)
	return q
}

// Validate parses the reply as an integer and checks the configured bounds.
func (q *Integer) Validate(ctx context.Context, reply schema.Reply, env *Env) (any, error) {
	value, err := q.runPre(ctx, replyText(reply), env)
	if err != nil {
		return nil, err
	}

	n, err := coerceInt(value)
	if err != nil {
		return nil, q.failf("The provided response is not a valid integer.")
	}

	switch {
	case q.le != nil && n > *q.le:
		return nil, q.failf("The provided integer must be less than or equal to %d.", *q.le)
	case q.ge != nil && n < *q.ge:
		return nil, q.failf("The provided integer must be greater than or equal to %d.", *q.ge)
	case q.lt != nil && n >= *q.lt:
		return nil, q.failf("The provided integer must be less than %d.", *q.lt)
	case q.gt != nil && n <= *q.gt:
		return nil, q.failf("The provided integer must be greater than %d.", *q.gt)
	case q.multipleOf != nil && n%*q.multipleOf != 0:
		return nil, q.failf("The provided integer must be a multiple of %d.", *q.multipleOf)
	}

	return q.runPost(ctx, n, env)
}

func coerceInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		// A fractional value out of a pre stage is a bad answer, not a
		// number to round.
		if n != math.Trunc(n) {
			return 0, errors.New("not an integral number")
		}
		return int64(n), nil
	default:
		return strconv.ParseInt(stringify(v), 10, 64)
	}
}

var _ Question = (*Integer)(nil)

// --- Boolean ---

var (
	defaultTrueValues  = []string{"yes", "y", "true", "1", "on"}
	defaultFalseValues = []string{"no", "n", "false", "0", "off"}
)

// Boolean asks a yes/no question with configurable accepted vocabularies.
type Boolean struct {
	Base
	trueValues  map[string]struct{}
	falseValues map[string]struct{}
}

// NewBoolean creates a boolean question with the default vocabularies.
func NewBoolean(text string) *Boolean {
	q := &Boolean{
		Base:        Base{text: text},
		trueValues:  make(map[string]struct{}),
		falseValues: make(map[string]struct{}),
	}
	for _, v := range defaultTrueValues {
		q.trueValues[v] = struct{}{}
	}
	for _, v := range defaultFalseValues {
		q.falseValues[v] = struct{}{}
	}
	return q
}

// ErrorText overrides the default validation error message.
func (q *Boolean) ErrorText(text string) *Boolean {
	q.errorText = text
	return q
}

// TrueValues adds accepted affirmative words.
func (q *Boolean) TrueValues(values ...string) *Boolean {
	for _, v := range values {
		q.trueValues[strings.ToLower(v)] = struct{}{}
	}
	return q
}

// FalseValues adds accepted negative words.
func (q *Boolean) FalseValues(values ...string) *Boolean {
	for _, v := range values {
		q.falseValues[strings.ToLower(v)] = struct{}{}
	}
	return q
}

// Pre appends pre-validation stages.
func (q *Boolean) Pre(stages ...Stage) *Boolean {
	q.pre = append(q.pre, stages...)
	return q
}

// Post appends post-validation stages.
func (q *Boolean) Post(stages ...Stage) *Boolean {
	q.post = append(q.post, stages...)
	return q
}

// Validate matches the reply against the true/false vocabularies,
// case- and whitespace-insensitively.
func (q *Boolean) Validate(ctx context.Context, reply schema.Reply, env *Env) (any, error) {
	value, err := q.runPre(ctx, replyText(reply), env)
	if err != nil {
		return nil, err
	}

	if b, ok := value.(bool); ok {
		return q.runPost(ctx, b, env)
	}

	word := strings.ToLower(strings.TrimSpace(stringify(value)))
	if _, ok := q.trueValues[word]; ok {
		return q.runPost(ctx, true, env)
	}
	if _, ok := q.falseValues[word]; ok {
		return q.runPost(ctx, false, env)
	}
	return nil, q.failf("Please answer yes or no.")
}

var _ Question = (*Boolean)(nil)
