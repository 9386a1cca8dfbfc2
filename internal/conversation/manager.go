package conversation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rendis/relay/internal/logging"
	"github.com/rendis/relay/pkg/schema"
)

const sweepInterval = 30 * time.Second

type key struct {
	chatID string
	action string
}

// entry pairs a State with its own mutex. All mutation of the State goes
// through this mutex, so each (chat, action) pair has a single writer while
// different pairs progress independently. terminal mirrors the status so it
// can be checked without the entry lock.
type entry struct {
	mu       sync.Mutex
	state    *State
	terminal atomic.Bool
}

// Manager owns every open conversation. It hands out per-key serialized
// access, routes free-form replies to the newest open conversation of a chat,
// and expires conversations that sit idle past the inactivity window.
type Manager struct {
	mu      sync.Mutex
	open    map[key]*entry
	seq     atomic.Uint64
	timeout time.Duration
	logger  *slog.Logger

	// onExpire runs outside all locks with the timed-out state.
	onExpire func(*State)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a conversation manager. A zero timeout disables
// inactivity expiry.
func NewManager(timeout time.Duration, logger *slog.Logger, onExpire func(*State)) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		open:     make(map[key]*entry),
		timeout:  timeout,
		logger:   logger,
		onExpire: onExpire,
	}
}

// Open creates a conversation for (chatID, action) or returns the existing
// open one. The boolean is true when a new conversation was created; false
// means the caller must resume the returned conversation instead of starting
// a duplicate.
func (m *Manager) Open(chatID, action, invocationID string, pending []Pending, answers map[string]any, handle any) (*State, bool) {
	k := key{chatID: chatID, action: action}

	m.mu.Lock()
	if e, ok := m.open[k]; ok && !e.terminal.Load() {
		m.mu.Unlock()
		return e.state, false
	}

	seeded := make(map[string]any, len(answers))
	for name, v := range answers {
		seeded[name] = v
	}

	st := &State{
		ChatID:       chatID,
		Action:       action,
		InvocationID: invocationID,
		Status:       schema.ConversationAwaiting,
		Pending:      pending,
		Answers:      seeded,
		LastActivity: time.Now(),
		Handle:       handle,
		seq:          m.seq.Add(1),
	}
	m.open[k] = &entry{state: st}
	m.mu.Unlock()

	m.logger.InfoContext(logging.WithIDs(context.Background(), chatID, action, invocationID),
		"conversation opened", slog.Int("questions", len(pending)))
	return st, true
}

// Update runs fn with exclusive access to the conversation's state. When fn
// leaves the state in a terminal status the conversation is removed from the
// open set before Update returns, so a subsequent Open starts fresh.
func (m *Manager) Update(chatID, action string, fn func(*State) error) error {
	k := key{chatID: chatID, action: action}

	m.mu.Lock()
	e, ok := m.open[k]
	m.mu.Unlock()
	if !ok || e.terminal.Load() {
		return schema.NewError(schema.ErrCodeNotFound, "no open conversation").
			WithAction(action).WithChat(chatID)
	}

	e.mu.Lock()
	if e.state.Status.Terminal() {
		e.mu.Unlock()
		return schema.NewError(schema.ErrCodeNotFound, "no open conversation").
			WithAction(action).WithChat(chatID)
	}
	e.state.LastActivity = time.Now()
	err := fn(e.state)
	if e.state.Status.Terminal() {
		e.terminal.Store(true)
	}
	e.mu.Unlock()

	if e.terminal.Load() {
		m.remove(k, e)
	}
	return err
}

// Route returns the action of the newest open conversation in the chat, for
// transports that cannot attribute a reply to a specific question.
func (m *Manager) Route(chatID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		best    string
		bestSeq uint64
		found   bool
	)
	for k, e := range m.open {
		if k.chatID != chatID || e.terminal.Load() {
			continue
		}
		if !found || e.state.seq > bestSeq {
			best, bestSeq, found = k.action, e.state.seq, true
		}
	}
	return best, found
}

// OpenCount returns the number of open conversations in the chat.
func (m *Manager) OpenCount(chatID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.open {
		if k.chatID == chatID && !e.terminal.Load() {
			n++
		}
	}
	return n
}

// Cancel moves the conversation to cancelled and removes it.
func (m *Manager) Cancel(chatID, action string) error {
	return m.Update(chatID, action, func(s *State) error {
		return s.Transition(schema.ConversationCancelled)
	})
}

// CancelAll cancels every open conversation in the chat and returns how many
// were cancelled.
func (m *Manager) CancelAll(chatID string) int {
	m.mu.Lock()
	actions := make([]string, 0, 2)
	for k, e := range m.open {
		if k.chatID == chatID && !e.terminal.Load() {
			actions = append(actions, k.action)
		}
	}
	m.mu.Unlock()

	n := 0
	for _, action := range actions {
		if err := m.Cancel(chatID, action); err == nil {
			n++
		}
	}
	return n
}

// Len returns the number of open conversations across all chats.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// Start launches the inactivity sweeper. No-op when expiry is disabled.
func (m *Manager) Start(ctx context.Context) {
	if m.timeout <= 0 || m.cancel != nil {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(time.Now())
			}
		}
	}()
}

// Stop halts the sweeper and waits for it to exit.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}

// sweep times out every conversation idle past the inactivity window.
func (m *Manager) sweep(now time.Time) {
	deadline := now.Add(-m.timeout)

	m.mu.Lock()
	candidates := make(map[key]*entry, len(m.open))
	for k, e := range m.open {
		candidates[k] = e
	}
	m.mu.Unlock()

	for k, e := range candidates {
		e.mu.Lock()
		expired := !e.state.Status.Terminal() && e.state.LastActivity.Before(deadline)
		if expired {
			if err := e.state.Transition(schema.ConversationTimedOut); err != nil {
				expired = false
			} else {
				e.terminal.Store(true)
			}
		}
		st := e.state
		e.mu.Unlock()

		if !expired {
			continue
		}
		m.remove(k, e)
		m.logger.InfoContext(logging.WithIDs(context.Background(), st.ChatID, st.Action, st.InvocationID),
			"conversation timed out", slog.Duration("timeout", m.timeout))
		if m.onExpire != nil {
			m.onExpire(st)
		}
	}
}

// remove deletes the entry from the open set, guarding against a newer entry
// having replaced it under the same key.
func (m *Manager) remove(k key, e *entry) {
	m.mu.Lock()
	if cur, ok := m.open[k]; ok && cur == e {
		delete(m.open, k)
	}
	m.mu.Unlock()
}
