package invoker

import (
	"context"
	"sync"

	"github.com/rendis/relay/pkg/schema"
)

// Transport delivers outbound messages to a chat. Implementations adapt the
// engine to a concrete messaging surface; the engine itself never knows which.
type Transport interface {
	Send(ctx context.Context, chatID string, msg schema.OutboundMessage) error
}

// MemoryTransport records outbound messages per chat. It backs the tests and
// any embedding that wants to drain messages itself.
type MemoryTransport struct {
	mu   sync.Mutex
	sent map[string][]schema.OutboundMessage
}

// NewMemoryTransport creates an empty in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{sent: make(map[string][]schema.OutboundMessage)}
}

// Send records the message.
func (t *MemoryTransport) Send(_ context.Context, chatID string, msg schema.OutboundMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent[chatID] = append(t.sent[chatID], msg)
	return nil
}

// Sent returns a copy of everything delivered to the chat, in order.
func (t *MemoryTransport) Sent(chatID string) []schema.OutboundMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]schema.OutboundMessage(nil), t.sent[chatID]...)
}

// Last returns the most recent message delivered to the chat.
func (t *MemoryTransport) Last(chatID string) (schema.OutboundMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := t.sent[chatID]
	if len(msgs) == 0 {
		return schema.OutboundMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

// Reset clears the recorded messages.
func (t *MemoryTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = make(map[string][]schema.OutboundMessage)
}

var _ Transport = (*MemoryTransport)(nil)
