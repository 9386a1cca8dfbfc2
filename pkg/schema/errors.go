package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeRegistration      = "REGISTRATION_ERROR"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeResolution        = "RESOLUTION_ERROR"
	ErrCodeConnector         = "CONNECTOR_ERROR"
	ErrCodeTemplate          = "TEMPLATE_ERROR"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeCancelled         = "CANCELLED"
	ErrCodeExecution         = "EXECUTION_ERROR"
)

// RelayError is the structured error type for all RELAY operations.
type RelayError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Action  string         `json:"action,omitempty"`
	ChatID  string         `json:"chat_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *RelayError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("[%s] action %s: %s", e.Code, e.Action, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *RelayError) Unwrap() error {
	return e.Cause
}

// NewError creates a new RelayError.
func NewError(code, message string) *RelayError {
	return &RelayError{Code: code, Message: message}
}

// NewErrorf creates a new RelayError with a formatted message.
func NewErrorf(code, format string, args ...any) *RelayError {
	return &RelayError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithAction attaches an action name to the error.
func (e *RelayError) WithAction(action string) *RelayError {
	e.Action = action
	return e
}

// WithChat attaches a chat identity to the error.
func (e *RelayError) WithChat(chatID string) *RelayError {
	e.ChatID = chatID
	return e
}

// WithCause attaches an underlying cause.
func (e *RelayError) WithCause(err error) *RelayError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *RelayError) WithDetails(details map[string]any) *RelayError {
	e.Details = details
	return e
}

// CodeOf returns the RelayError code carried by err (unwrapping as needed),
// or "" if no RelayError is found in the chain.
func CodeOf(err error) string {
	for err != nil {
		if re, ok := err.(*RelayError); ok {
			return re.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
