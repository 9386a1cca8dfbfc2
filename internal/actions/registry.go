package actions

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/rendis/relay/pkg/schema"
)

// Registry holds the registered actions. Registration is append-only: there
// is no replacement or removal, and duplicate names or commands are rejected
// so two actions can never contend for the same trigger.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]*Spec
	byCommand map[string]*Spec
	logger    *slog.Logger
}

// NewRegistry creates an empty action registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName:    make(map[string]*Spec),
		byCommand: make(map[string]*Spec),
		logger:    logger,
	}
}

// Register validates and adds an action.
func (r *Registry) Register(spec *Spec) error {
	if spec == nil || spec.Name == "" {
		return schema.NewError(schema.ErrCodeRegistration, "action name is required")
	}
	if spec.Body == nil {
		return schema.NewErrorf(schema.ErrCodeRegistration,
			"action %q has no body", spec.Name).WithAction(spec.Name)
	}
	if err := spec.normalizeCommands(r.logger); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byName[spec.Name]; dup {
		return schema.NewErrorf(schema.ErrCodeRegistration,
			"action %q already registered", spec.Name).WithAction(spec.Name)
	}
	for _, cmd := range spec.Commands {
		if owner, dup := r.byCommand[cmd]; dup {
			return schema.NewErrorf(schema.ErrCodeRegistration,
				"command %q already registered by action %q", cmd, owner.Name).
				WithAction(spec.Name)
		}
	}

	r.byName[spec.Name] = spec
	for _, cmd := range spec.Commands {
		r.byCommand[cmd] = spec
	}

	r.logger.Info("action registered",
		slog.String("action", spec.Name),
		slog.Any("commands", spec.Commands))
	return nil
}

// Get returns the action by name.
func (r *Registry) Get(name string) (*Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.byName[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"action %q not registered", name).WithAction(name)
	}
	return spec, nil
}

// GetByCommand returns the action triggered by the command.
func (r *Registry) GetByCommand(cmd string) (*Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.byCommand[cmd]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"no action for command %q", cmd)
	}
	return spec, nil
}

// Has reports whether an action with the name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commands returns the registered commands, sorted.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmds := make([]string, 0, len(r.byCommand))
	for cmd := range r.byCommand {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)
	return cmds
}
