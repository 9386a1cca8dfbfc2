package questions

import (
	"context"
	"time"

	"github.com/rendis/relay/pkg/schema"
)

var defaultDateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

var defaultDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
}

var defaultTimeLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04 PM",
	"3:04PM",
}

// DateTime asks for a point in time, parsed against a layout table, with
// optional bound constraints.
type DateTime struct {
	Base
	layouts  []string
	before   *time.Time
	after    *time.Time
	inPast   bool
	inFuture bool
	now      func() time.Time
}

// NewDateTime creates a date-and-time question with the default layouts.
func NewDateTime(text string) *DateTime {
	return &DateTime{
		Base:    Base{text: text},
		layouts: defaultDateTimeLayouts,
		now:     time.Now,
	}
}

// NewDate creates a date-only question.
func NewDate(text string) *DateTime {
	q := NewDateTime(text)
	q.layouts = defaultDateLayouts
	return q
}

// NewTime creates a time-of-day question.
func NewTime(text string) *DateTime {
	q := NewDateTime(text)
	q.layouts = defaultTimeLayouts
	return q
}

// ErrorText overrides the default validation error message.
func (q *DateTime) ErrorText(text string) *DateTime {
	q.errorText = text
	return q
}

// Layouts replaces the accepted parse layouts.
func (q *DateTime) Layouts(layouts ...string) *DateTime {
	q.layouts = layouts
	return q
}

// Before requires the answer to be strictly earlier than t.
func (q *DateTime) Before(t time.Time) *DateTime { q.before = &t; return q }

// After requires the answer to be strictly later than t.
func (q *DateTime) After(t time.Time) *DateTime { q.after = &t; return q }

// InThePast requires the answer to be earlier than the current time.
func (q *DateTime) InThePast() *DateTime { q.inPast = true; return q }

// InTheFuture requires the answer to be later than the current time.
func (q *DateTime) InTheFuture() *DateTime { q.inFuture = true; return q }

// Pre appends pre-validation stages.
func (q *DateTime) Pre(stages ...Stage) *DateTime {
	q.pre = append(q.pre, stages...)
	return q
}

// Post appends post-validation stages.
func (q *DateTime) Post(stages ...Stage) *DateTime {
	q.post = append(q.post, stages...)
	return q
}

// Validate parses the reply against the layout table and checks bounds.
func (q *DateTime) Validate(ctx context.Context, reply schema.Reply, env *Env) (any, error) {
	value, err := q.runPre(ctx, replyText(reply), env)
	if err != nil {
		return nil, err
	}

	t, ok := q.parse(stringify(value))
	if !ok {
		return nil, q.failf("The provided response is not a valid date or time.")
	}

	now := q.now()
	switch {
	case q.before != nil && !t.Before(*q.before):
		return nil, q.failf("The provided date must be before %s.", q.before.Format("2006-01-02 15:04"))
	case q.after != nil && !t.After(*q.after):
		return nil, q.failf("The provided date must be after %s.", q.after.Format("2006-01-02 15:04"))
	case q.inPast && !t.Before(now):
		return nil, q.failf("The provided date must be in the past.")
	case q.inFuture && !t.After(now):
		return nil, q.failf("The provided date must be in the future.")
	}

	return q.runPost(ctx, t, env)
}

func (q *DateTime) parse(s string) (time.Time, bool) {
	for _, layout := range q.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var _ Question = (*DateTime)(nil)
