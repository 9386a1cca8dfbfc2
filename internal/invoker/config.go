package invoker

import "time"

// ReplyRouting says what to do with a free-form reply when the chat has more
// than one open conversation.
type ReplyRouting int

const (
	// RouteNewest delivers the reply to the most recently opened conversation.
	RouteNewest ReplyRouting = iota
	// RouteReject refuses the reply and asks the user to finish or cancel one
	// of the open conversations first.
	RouteReject
)

// Config tunes the invocation engine. The zero value is usable: every field
// falls back to a sensible default.
type Config struct {
	// InactivityTimeout expires conversations with no reply. Zero applies
	// the default; a negative value disables expiry.
	InactivityTimeout time.Duration
	// MaxRetries caps consecutive failed answers to one question before the
	// conversation is cancelled. Zero means unlimited retries.
	MaxRetries int
	// PageSize is the default pagination page size.
	PageSize int
	// SessionCapacity bounds live pagination sessions.
	SessionCapacity int
	// ReplyRouting selects the ambiguous-reply policy.
	ReplyRouting ReplyRouting
	// ValidateSuppliedArgs runs pre-supplied argument values through their
	// parameter's question pipeline instead of trusting them.
	ValidateSuppliedArgs bool

	// User-facing notice texts.
	CancelledText      string
	TimedOutText       string
	RetriesText        string
	UnknownCommandText string
	ExpiredViewText    string
	BusyText           string
	FailureText        string
}

const DefaultInactivityTimeout = 15 * time.Minute

func (c *Config) withDefaults() {
	if c.InactivityTimeout == 0 {
		c.InactivityTimeout = DefaultInactivityTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	if c.CancelledText == "" {
		c.CancelledText = "Okay, cancelled."
	}
	if c.TimedOutText == "" {
		c.TimedOutText = "This conversation timed out. Send the command again to restart."
	}
	if c.RetriesText == "" {
		c.RetriesText = "Too many invalid answers, cancelling."
	}
	if c.UnknownCommandText == "" {
		c.UnknownCommandText = "I don't know that command."
	}
	if c.ExpiredViewText == "" {
		c.ExpiredViewText = "This view has expired. Run the command again."
	}
	if c.BusyText == "" {
		c.BusyText = "You have several open conversations. Please answer or cancel one of them first."
	}
	if c.FailureText == "" {
		c.FailureText = "Something went wrong while running that action."
	}
}
