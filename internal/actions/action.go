package actions

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/rendis/relay/internal/connector"
	"github.com/rendis/relay/internal/questions"
	"github.com/rendis/relay/internal/templates"
	"github.com/rendis/relay/pkg/schema"
)

// commandPattern is the shape a chat command may take: short, lowercase,
// alphanumeric with underscores.
var commandPattern = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

// Body is the user-supplied handler. It receives the fully resolved
// parameters under their declared names and returns the result to send back:
// a string, a schema.OutboundMessage, or any value the caller renders.
type Body func(ctx context.Context, args map[string]any) (any, error)

// Spec declares an action: the commands that trigger it, the parameters its
// body expects, and the questions that gather the interactive ones.
type Spec struct {
	// Name uniquely identifies the action.
	Name string
	// Commands are the chat commands that trigger the action. Defaults to
	// the action name when empty.
	Commands []string
	// Description is shown in command listings.
	Description string
	// Folder holds the action's query files and templates on disk.
	Folder string
	// Params lists the body's parameter names in declaration order.
	// Reserved names (user, logger, data, template, ...) resolve from
	// context and configuration; the rest must have a question.
	Params []string
	// Questions maps parameter names to the question that gathers them.
	Questions map[string]questions.Question
	// Transforms maps data parameter names to an expression that reshapes
	// the query result before it reaches the body ("jq:", "cel:" or expr).
	Transforms map[string]string
	// Body runs once all parameters are resolved.
	Body Body

	// Populated at registration from Folder.
	Queries   []connector.QueryFile
	Templates *templates.Set
}

// normalizeCommands validates, lowercases nothing (commands are declared
// lowercase), deduplicates, and drops malformed commands with a warning.
// An action left with no valid command cannot be triggered, which is a
// registration error.
func (s *Spec) normalizeCommands(logger *slog.Logger) error {
	declared := s.Commands
	if len(declared) == 0 {
		declared = []string{s.Name}
	}

	seen := make(map[string]struct{}, len(declared))
	valid := make([]string, 0, len(declared))
	for _, cmd := range declared {
		if !commandPattern.MatchString(cmd) {
			logger.Warn("dropping invalid command",
				slog.String("action", s.Name), slog.String("command", cmd))
			continue
		}
		if _, dup := seen[cmd]; dup {
			continue
		}
		seen[cmd] = struct{}{}
		valid = append(valid, cmd)
	}

	if len(valid) == 0 {
		return schema.NewErrorf(schema.ErrCodeRegistration,
			"action %q has no valid command", s.Name).WithAction(s.Name)
	}
	s.Commands = valid
	return nil
}
