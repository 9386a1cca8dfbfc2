package conversation

import (
	"time"

	"github.com/rendis/relay/internal/questions"
	"github.com/rendis/relay/pkg/schema"
)

// Pending is one not-yet-answered question parameter, in declaration order.
type Pending struct {
	Param    string
	Question questions.Question
}

// State tracks a single open conversation: which question is awaited, the
// answers collected so far, and the retry count for the current question.
// Keyed by (chat identity, action); at most one open State per key exists at
// a time. Access is serialized by the Manager's per-key lock.
type State struct {
	ChatID       string
	Action       string
	InvocationID string
	Status       schema.ConversationStatus
	Pending      []Pending
	Answers      map[string]any
	Index        int
	Retries      int
	LastActivity time.Time

	// Handle is the suspended invocation, opaque to this package. The
	// invoker re-enters it on completion instead of restarting resolution.
	Handle any

	seq uint64
}

// ValidTransitions defines the allowed conversation status transitions.
// The awaiting state self-transitions as the question index advances.
var ValidTransitions = map[schema.ConversationStatus][]schema.ConversationStatus{
	schema.ConversationAwaiting: {
		schema.ConversationAwaiting,
		schema.ConversationCompleted,
		schema.ConversationCancelled,
		schema.ConversationTimedOut,
	},
	schema.ConversationCompleted: {},
	schema.ConversationCancelled: {},
	schema.ConversationTimedOut:  {},
}

// Transition validates and applies a status change.
func (s *State) Transition(to schema.ConversationStatus) error {
	allowed, ok := ValidTransitions[s.Status]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"unknown conversation status %q", s.Status)
	}
	for _, a := range allowed {
		if a == to {
			s.Status = to
			return nil
		}
	}
	return schema.NewErrorf(schema.ErrCodeInvalidTransition,
		"invalid conversation transition: %s -> %s", s.Status, to).
		WithAction(s.Action).WithChat(s.ChatID).
		WithDetails(map[string]any{"from": string(s.Status), "to": string(to)})
}

// Current returns the question currently awaited.
func (s *State) Current() (Pending, bool) {
	if s.Status != schema.ConversationAwaiting || s.Index >= len(s.Pending) {
		return Pending{}, false
	}
	return s.Pending[s.Index], true
}

// Accept stores a validated answer for the current question, resets the
// retry counter, and advances to the next question or to Completed.
func (s *State) Accept(value any) error {
	current, ok := s.Current()
	if !ok {
		return schema.NewError(schema.ErrCodeInvalidTransition,
			"no question awaited").WithAction(s.Action).WithChat(s.ChatID)
	}

	s.Answers[current.Param] = value
	s.Retries = 0
	s.Index++

	if s.Index >= len(s.Pending) {
		return s.Transition(schema.ConversationCompleted)
	}
	return s.Transition(schema.ConversationAwaiting)
}

// Reject increments and returns the retry counter for the current question.
// The conversation stays at the same index: retry without restart.
func (s *State) Reject() int {
	s.Retries++
	return s.Retries
}

// Remaining returns how many questions are still unanswered.
func (s *State) Remaining() int {
	if s.Index >= len(s.Pending) {
		return 0
	}
	return len(s.Pending) - s.Index
}
