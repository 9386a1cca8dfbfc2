package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayError_Message(t *testing.T) {
	err := NewError(ErrCodeValidation, "bad answer")
	assert.Equal(t, "[VALIDATION_ERROR] bad answer", err.Error())

	err = err.WithAction("greet")
	assert.Equal(t, "[VALIDATION_ERROR] action greet: bad answer", err.Error())
}

func TestRelayError_Builders(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrorf(ErrCodeConnector, "query %s failed", "users").
		WithChat("chat-1").
		WithCause(cause).
		WithDetails(map[string]any{"connector": "main"})

	assert.Equal(t, "chat-1", err.ChatID)
	assert.Equal(t, "main", err.Details["connector"])
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf_UnwrapsChain(t *testing.T) {
	inner := NewError(ErrCodeNotFound, "missing")
	wrapped := fmt.Errorf("outer: %w", inner)

	assert.Equal(t, ErrCodeNotFound, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestConversationStatus_Terminal(t *testing.T) {
	require.False(t, ConversationAwaiting.Terminal())
	for _, s := range []ConversationStatus{ConversationCompleted, ConversationCancelled, ConversationTimedOut} {
		assert.True(t, s.Terminal(), string(s))
	}
}
