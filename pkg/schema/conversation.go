package schema

// ConversationStatus is the lifecycle state of a multi-turn conversation.
type ConversationStatus string

const (
	// ConversationAwaiting means the conversation is waiting for the user to
	// answer the question at the current index.
	ConversationAwaiting ConversationStatus = "awaiting_answer"
	// ConversationCompleted means every question has been answered; the state
	// is discarded once the invocation resumes.
	ConversationCompleted ConversationStatus = "completed"
	// ConversationCancelled means the user (or a retry policy) aborted the
	// conversation before completion.
	ConversationCancelled ConversationStatus = "cancelled"
	// ConversationTimedOut means the inactivity window elapsed with no reply.
	ConversationTimedOut ConversationStatus = "timed_out"
)

// Terminal reports whether the status is an end state.
func (s ConversationStatus) Terminal() bool {
	switch s {
	case ConversationCompleted, ConversationCancelled, ConversationTimedOut:
		return true
	}
	return false
}
