package users

import (
	"context"
	"sync"

	"github.com/rendis/relay/pkg/schema"
)

// Directory resolves the users known to the engine. Command handling needs
// the user behind a chat; scheduled fan-out needs the full audience.
type Directory interface {
	// UserByChat returns the user owning the given chat.
	UserByChat(ctx context.Context, chatID string) (schema.User, error)
	// Users returns every registered user.
	Users(ctx context.Context) ([]schema.User, error)
}

// StaticDirectory is an in-memory Directory backed by a fixed user set.
// Suited to tests and to deployments whose audience is configured up front.
type StaticDirectory struct {
	mu     sync.RWMutex
	byChat map[string]schema.User
	order  []string
}

// NewStaticDirectory creates a directory with the given users.
func NewStaticDirectory(list ...schema.User) *StaticDirectory {
	d := &StaticDirectory{byChat: make(map[string]schema.User, len(list))}
	for _, u := range list {
		d.Add(u)
	}
	return d
}

// Add registers or replaces a user, keyed by chat.
func (d *StaticDirectory) Add(u schema.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byChat[u.ChatID]; !ok {
		d.order = append(d.order, u.ChatID)
	}
	d.byChat[u.ChatID] = u
}

// UserByChat returns the user owning the chat, or NOT_FOUND.
func (d *StaticDirectory) UserByChat(_ context.Context, chatID string) (schema.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byChat[chatID]
	if !ok {
		return schema.User{}, schema.NewErrorf(schema.ErrCodeNotFound,
			"no user for chat %q", chatID).WithChat(chatID)
	}
	return u, nil
}

// Users returns every registered user in insertion order.
func (d *StaticDirectory) Users(_ context.Context) ([]schema.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]schema.User, 0, len(d.order))
	for _, chatID := range d.order {
		out = append(out, d.byChat[chatID])
	}
	return out, nil
}

var _ Directory = (*StaticDirectory)(nil)
