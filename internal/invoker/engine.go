package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rendis/relay/internal/actions"
	"github.com/rendis/relay/internal/connector"
	"github.com/rendis/relay/internal/conversation"
	"github.com/rendis/relay/internal/logging"
	"github.com/rendis/relay/internal/pagination"
	"github.com/rendis/relay/internal/questions"
	"github.com/rendis/relay/internal/resolver"
	"github.com/rendis/relay/internal/templates"
	"github.com/rendis/relay/internal/transform"
	"github.com/rendis/relay/internal/users"
	"github.com/rendis/relay/pkg/schema"
)

// Deps are the collaborators the engine is built from.
type Deps struct {
	Connectors *connector.Registry
	Transforms *transform.Set
	Transport  Transport
	Users      users.Directory
	Logger     *slog.Logger
}

// Engine orchestrates action invocations end to end: command dispatch,
// question conversations, parameter resolution, body execution, and result
// delivery. One Engine serves every chat; per-conversation serialization
// lives in the conversation manager.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	connectors *connector.Registry
	transforms *transform.Set
	transport  Transport
	directory  users.Directory

	registry      *actions.Registry
	conversations *conversation.Manager
	paginator     *pagination.Paginator
	resolver      *resolver.Resolver

	mu    sync.RWMutex
	plans map[string]*resolver.Plan
}

// pendingInvocation is the suspended remainder of an invocation parked in a
// conversation. Stored as the conversation's opaque handle and re-entered
// when the last answer lands.
type pendingInvocation struct {
	spec         *actions.Spec
	plan         *resolver.Plan
	user         schema.User
	audience     []schema.User
	update       any
	invocationID string
}

// New builds an engine. Transport is required; the remaining deps default to
// empty in-memory implementations.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Transport == nil {
		return nil, schema.NewError(schema.ErrCodeRegistration, "a transport is required")
	}
	cfg.withDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	connectors := deps.Connectors
	if connectors == nil {
		connectors = connector.NewRegistry()
	}
	transforms := deps.Transforms
	if transforms == nil {
		set, err := transform.NewSet()
		if err != nil {
			return nil, err
		}
		transforms = set
	}

	paginator, err := pagination.New(cfg.SessionCapacity, cfg.PageSize, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		connectors: connectors,
		transforms: transforms,
		transport:  deps.Transport,
		directory:  deps.Users,
		registry:   actions.NewRegistry(logger),
		paginator:  paginator,
		resolver:   resolver.New(connectors, transforms, logger),
		plans:      make(map[string]*resolver.Plan),
	}

	timeout := cfg.InactivityTimeout
	if timeout < 0 {
		timeout = 0
	}
	e.conversations = conversation.NewManager(timeout, logger, e.expireConversation)
	return e, nil
}

// Start launches the conversation expiry sweeper.
func (e *Engine) Start(ctx context.Context) { e.conversations.Start(ctx) }

// Stop halts background work.
func (e *Engine) Stop() { e.conversations.Stop() }

// Actions exposes the action registry for listings.
func (e *Engine) Actions() *actions.Registry { return e.registry }

// Register validates an action, loads its folder artifacts, and builds its
// resolution plan. Every binding error surfaces here, before any invocation.
func (e *Engine) Register(spec *actions.Spec) error {
	if spec == nil {
		return schema.NewError(schema.ErrCodeRegistration, "action spec is nil")
	}
	if spec.Folder != "" {
		if spec.Queries == nil {
			queries, err := connector.DiscoverQueryFiles(spec.Folder, e.connectors, e.logger)
			if err != nil {
				return err
			}
			spec.Queries = queries
		}
		if spec.Templates == nil {
			set, err := templates.Load(spec.Folder)
			if err != nil {
				return err
			}
			spec.Templates = set
		}
	}

	plan, err := resolver.BuildPlan(spec)
	if err != nil {
		return err
	}
	for _, name := range plan.Unbound() {
		e.logger.Warn("parameter matches no source and will resolve to nil",
			slog.String("action", spec.Name), slog.String("param", name))
	}
	if err := e.registry.Register(spec); err != nil {
		return err
	}

	e.mu.Lock()
	e.plans[spec.Name] = plan
	e.mu.Unlock()
	return nil
}

func (e *Engine) plan(action string) (*resolver.Plan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	plan, ok := e.plans[action]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"no plan for action %q", action).WithAction(action)
	}
	return plan, nil
}

// HandleCommand dispatches a chat command to its action. Unknown commands get
// a notice; everything else starts (or resumes) an invocation.
func (e *Engine) HandleCommand(ctx context.Context, chatID, command string, update any) error {
	spec, err := e.registry.GetByCommand(command)
	if err != nil {
		e.send(ctx, chatID, schema.TextMessage(e.cfg.UnknownCommandText))
		return err
	}

	user, err := e.userFor(ctx, chatID)
	if err != nil {
		return err
	}
	return e.invoke(ctx, spec, user, nil, update, nil)
}

// HandleReply routes a free-form reply to an open conversation and advances
// it: a valid answer moves to the next question or completes the invocation,
// an invalid one re-prompts the same question.
func (e *Engine) HandleReply(ctx context.Context, chatID string, reply schema.Reply) error {
	if e.cfg.ReplyRouting == RouteReject && e.conversations.OpenCount(chatID) > 1 {
		e.send(ctx, chatID, schema.TextMessage(e.cfg.BusyText))
		return schema.NewError(schema.ErrCodeConflict,
			"multiple open conversations").WithChat(chatID)
	}

	action, ok := e.conversations.Route(chatID)
	if !ok {
		return schema.NewError(schema.ErrCodeNotFound,
			"no open conversation").WithChat(chatID)
	}
	return e.advance(ctx, chatID, action, reply)
}

// advance applies one reply to the (chat, action) conversation.
func (e *Engine) advance(ctx context.Context, chatID, action string, reply schema.Reply) error {
	var (
		outbound  []schema.OutboundMessage
		completed *pendingInvocation
		answers   map[string]any
		fatal     error
	)

	err := e.conversations.Update(chatID, action, func(st *conversation.State) error {
		ctx := logging.WithIDs(ctx, chatID, action, st.InvocationID)
		pending, ok := st.Current()
		if !ok {
			return schema.NewError(schema.ErrCodeInvalidTransition,
				"conversation has no awaited question").WithAction(action).WithChat(chatID)
		}

		handle, _ := st.Handle.(*pendingInvocation)
		env := e.questionEnv(handle, st)

		value, verr := pending.Question.Validate(ctx, reply, env)
		if verr != nil {
			if schema.CodeOf(verr) != schema.ErrCodeValidation {
				// Infrastructure failure, not a bad answer. Abort.
				fatal = verr
				st.Transition(schema.ConversationCancelled)
				return nil
			}

			retries := st.Reject()
			e.logger.InfoContext(ctx, "answer rejected",
				slog.String("param", pending.Param), slog.Int("retries", retries))
			if e.cfg.MaxRetries > 0 && retries >= e.cfg.MaxRetries {
				st.Transition(schema.ConversationCancelled)
				outbound = append(outbound, schema.TextMessage(e.cfg.RetriesText))
				return nil
			}

			outbound = append(outbound, schema.TextMessage(userMessage(verr)))
			// Rich prompts leave their markup on screen; plain ones are
			// re-sent so the user still sees what is being asked.
			if !pending.Question.Rich() {
				prompt, perr := pending.Question.Prompt(ctx, env)
				if perr != nil {
					fatal = perr
					st.Transition(schema.ConversationCancelled)
					return nil
				}
				outbound = append(outbound, prompt)
			}
			return nil
		}

		if err := st.Accept(value); err != nil {
			return err
		}

		if st.Status == schema.ConversationCompleted {
			completed = handle
			answers = st.Answers
			return nil
		}

		next, _ := st.Current()
		prompt, perr := next.Question.Prompt(ctx, env)
		if perr != nil {
			fatal = perr
			st.Transition(schema.ConversationCancelled)
			return nil
		}
		outbound = append(outbound, prompt)
		return nil
	})
	if err != nil {
		return err
	}

	for _, msg := range outbound {
		e.send(ctx, chatID, msg)
	}
	if fatal != nil {
		e.send(ctx, chatID, schema.TextMessage(e.cfg.FailureText))
		return fatal
	}
	if completed != nil {
		return e.finish(ctx, completed, answers)
	}
	return nil
}

// HandleNavigation renders the page addressed by a pagination token.
func (e *Engine) HandleNavigation(ctx context.Context, chatID, token string) error {
	msg, err := e.paginator.Navigate(token)
	if err != nil {
		if schema.CodeOf(err) == schema.ErrCodeNotFound {
			e.send(ctx, chatID, schema.TextMessage(e.cfg.ExpiredViewText))
		}
		return err
	}
	e.send(ctx, chatID, msg)
	return nil
}

// HandleCancel cancels every open conversation in the chat.
func (e *Engine) HandleCancel(ctx context.Context, chatID string) error {
	if n := e.conversations.CancelAll(chatID); n > 0 {
		e.send(ctx, chatID, schema.TextMessage(e.cfg.CancelledText))
	}
	return nil
}

// InvokeScheduled runs an action without a chat conversation. A question
// parameter not covered by the supplied arguments resolves to nil under a
// logged warning since nobody is there to answer; the body must tolerate it.
func (e *Engine) InvokeScheduled(ctx context.Context, action string, user schema.User, audience []schema.User, supplied map[string]any) error {
	spec, err := e.registry.Get(action)
	if err != nil {
		return err
	}
	plan, err := e.plan(action)
	if err != nil {
		return err
	}

	invocationID := uuid.NewString()
	ctx = logging.WithIDs(ctx, user.ChatID, action, invocationID)

	answers, err := e.seedAnswers(ctx, spec, plan, user, supplied)
	if err != nil {
		return err
	}
	for _, b := range plan.Questions() {
		if _, ok := answers[b.Param]; !ok {
			e.logger.WarnContext(ctx, "scheduled invocation missing answer, passing nil",
				slog.String("param", b.Param))
			answers[b.Param] = nil
		}
	}

	return e.finish(ctx, &pendingInvocation{
		spec:         spec,
		plan:         plan,
		user:         user,
		audience:     audience,
		invocationID: invocationID,
	}, answers)
}

// invoke starts an interactive invocation: resolve immediately when no
// question is unanswered, otherwise open a conversation and ask the first one.
func (e *Engine) invoke(ctx context.Context, spec *actions.Spec, user schema.User, audience []schema.User, update any, supplied map[string]any) error {
	plan, err := e.plan(spec.Name)
	if err != nil {
		return err
	}

	invocationID := uuid.NewString()
	ctx = logging.WithIDs(ctx, user.ChatID, spec.Name, invocationID)

	answers, err := e.seedAnswers(ctx, spec, plan, user, supplied)
	if err != nil {
		return err
	}

	var pending []conversation.Pending
	for _, b := range plan.Questions() {
		if _, ok := answers[b.Param]; ok {
			continue
		}
		pending = append(pending, conversation.Pending{Param: b.Param, Question: b.Question})
	}

	handle := &pendingInvocation{
		spec:         spec,
		plan:         plan,
		user:         user,
		audience:     audience,
		update:       update,
		invocationID: invocationID,
	}

	if len(pending) == 0 {
		return e.finish(ctx, handle, answers)
	}

	st, created := e.conversations.Open(user.ChatID, spec.Name, invocationID, pending, answers, handle)
	if !created {
		// Same command again while a conversation is open: resume it by
		// repeating the awaited question instead of starting a duplicate.
		e.logger.InfoContext(ctx, "conversation resumed")
		return e.repeatPrompt(ctx, user.ChatID, spec.Name)
	}

	first := pending[0]
	prompt, err := first.Question.Prompt(ctx, e.questionEnv(handle, st))
	if err != nil {
		e.conversations.Cancel(user.ChatID, spec.Name)
		return err
	}
	e.send(ctx, user.ChatID, prompt)
	return nil
}

// repeatPrompt re-sends the currently awaited question of an open conversation.
func (e *Engine) repeatPrompt(ctx context.Context, chatID, action string) error {
	var outbound []schema.OutboundMessage
	err := e.conversations.Update(chatID, action, func(st *conversation.State) error {
		pending, ok := st.Current()
		if !ok {
			return nil
		}
		handle, _ := st.Handle.(*pendingInvocation)
		prompt, perr := pending.Question.Prompt(ctx, e.questionEnv(handle, st))
		if perr != nil {
			return perr
		}
		outbound = append(outbound, prompt)
		return nil
	})
	if err != nil {
		return err
	}
	for _, msg := range outbound {
		e.send(ctx, chatID, msg)
	}
	return nil
}

// finish resolves the remaining parameters, runs the body once, and delivers
// the result.
func (e *Engine) finish(ctx context.Context, handle *pendingInvocation, answers map[string]any) error {
	args, err := e.resolver.Resolve(ctx, handle.plan, &resolver.Invocation{
		InvocationID: handle.invocationID,
		User:         handle.user,
		Audience:     handle.audience,
		Update:       handle.update,
		Answers:      answers,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "parameter resolution failed", slog.Any("error", err))
		e.send(ctx, handle.user.ChatID, schema.TextMessage(e.cfg.FailureText))
		return err
	}

	result, err := handle.spec.Body(ctx, args)
	if err != nil {
		e.logger.ErrorContext(ctx, "action body failed", slog.Any("error", err))
		e.send(ctx, handle.user.ChatID, schema.TextMessage(e.cfg.FailureText))
		return schema.NewError(schema.ErrCodeExecution, "action body failed").
			WithAction(handle.spec.Name).WithChat(handle.user.ChatID).WithCause(err)
	}

	e.logger.InfoContext(ctx, "action completed")
	return e.deliver(ctx, handle.user.ChatID, result)
}

// deliver sends the body's result: nil sends nothing, pagination requests
// open a session, messages and strings go out as-is.
func (e *Engine) deliver(ctx context.Context, chatID string, result any) error {
	switch v := result.(type) {
	case nil:
		return nil
	case schema.OutboundMessage:
		return e.transport.Send(ctx, chatID, v)
	case *schema.OutboundMessage:
		return e.transport.Send(ctx, chatID, *v)
	case pagination.Request:
		msg, err := e.paginator.Open(v)
		if err != nil {
			return err
		}
		return e.transport.Send(ctx, chatID, msg)
	case *pagination.Request:
		msg, err := e.paginator.Open(*v)
		if err != nil {
			return err
		}
		return e.transport.Send(ctx, chatID, msg)
	case string:
		return e.transport.Send(ctx, chatID, schema.TextMessage(v))
	default:
		return e.transport.Send(ctx, chatID, schema.TextMessage(fmt.Sprintf("%v", v)))
	}
}

// seedAnswers converts pre-supplied arguments into conversation answers,
// optionally validating them through the parameter's question pipeline.
func (e *Engine) seedAnswers(ctx context.Context, spec *actions.Spec, plan *resolver.Plan, user schema.User, supplied map[string]any) (map[string]any, error) {
	answers := make(map[string]any, len(supplied))
	if len(supplied) == 0 {
		return answers, nil
	}

	env := &questions.Env{
		Connectors: e.connectors,
		Transforms: e.transforms,
		Queries:    spec.Queries,
		Answers:    answers,
		User:       resolver.UserMap(user),
	}

	for _, b := range plan.Questions() {
		raw, ok := supplied[b.Param]
		if !ok {
			continue
		}
		if !e.cfg.ValidateSuppliedArgs {
			answers[b.Param] = raw
			continue
		}
		value, err := b.Question.Validate(ctx, schema.Reply{Text: fmt.Sprintf("%v", raw)}, env)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeResolution,
				"supplied value for %q rejected: %s", b.Param, userMessage(err)).
				WithAction(spec.Name).WithCause(err)
		}
		answers[b.Param] = value
	}
	return answers, nil
}

// questionEnv builds the environment questions prompt and validate in.
func (e *Engine) questionEnv(handle *pendingInvocation, st *conversation.State) *questions.Env {
	env := &questions.Env{
		Connectors: e.connectors,
		Transforms: e.transforms,
		Answers:    st.Answers,
	}
	if handle != nil {
		env.Queries = handle.spec.Queries
		env.User = resolver.UserMap(handle.user)
	}
	return env
}

// expireConversation notifies the user when the inactivity sweeper times out
// their conversation.
func (e *Engine) expireConversation(st *conversation.State) {
	ctx := logging.WithIDs(context.Background(), st.ChatID, st.Action, st.InvocationID)
	e.send(ctx, st.ChatID, schema.TextMessage(e.cfg.TimedOutText))
}

// userFor resolves the user behind a chat, degrading to a bare identity when
// no directory is configured.
func (e *Engine) userFor(ctx context.Context, chatID string) (schema.User, error) {
	if e.directory == nil {
		return schema.User{ID: chatID, ChatID: chatID}, nil
	}
	return e.directory.UserByChat(ctx, chatID)
}

// send delivers a message, logging instead of failing the operation when the
// transport errors.
func (e *Engine) send(ctx context.Context, chatID string, msg schema.OutboundMessage) {
	if err := e.transport.Send(ctx, chatID, msg); err != nil {
		e.logger.ErrorContext(ctx, "transport send failed",
			slog.String("chat_id", chatID), slog.Any("error", err))
	}
}

// userMessage extracts the text shown to the user for a validation error.
func userMessage(err error) string {
	var re *schema.RelayError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}
