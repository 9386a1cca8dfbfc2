package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/rendis/relay/internal/users"
	"github.com/rendis/relay/pkg/schema"
)

// Invoker runs an action outside any chat conversation. Satisfied by the
// invocation engine (avoids import cycle).
type Invoker interface {
	InvokeScheduled(ctx context.Context, action string, user schema.User, audience []schema.User, supplied map[string]any) error
}

// defaultSendRate caps fan-out invocations per second so a large audience
// cannot flood the transport.
const defaultSendRate = 25

type scheduledJob struct {
	job      Job
	schedule cron.Schedule
	next     time.Time
}

// Scheduler triggers registered jobs on their cron schedule, fanning out over
// the audience when requested.
type Scheduler struct {
	invoker   Invoker
	directory users.Directory
	parser    cron.Parser
	limiter   *rate.Limiter
	logger    *slog.Logger

	mu     sync.Mutex
	jobs   map[string]*scheduledJob
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// NewScheduler creates a scheduler. A zero sendRate applies the default.
func NewScheduler(invoker Invoker, directory users.Directory, sendRate float64, logger *slog.Logger) *Scheduler {
	if sendRate <= 0 {
		sendRate = defaultSendRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		invoker:   invoker,
		directory: directory,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		limiter:   rate.NewLimiter(rate.Limit(sendRate), 1),
		logger:    logger,
		jobs:      make(map[string]*scheduledJob),
		inflight:  make(map[string]struct{}),
	}
}

// AddJob validates and registers a job.
func (s *Scheduler) AddJob(job Job) error {
	schedule, err := s.parser.Parse(job.Cron)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeRegistration,
			"job %q has invalid cron expression %q: %s", job.ID, job.Cron, err.Error()).
			WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.ID]; dup {
		return schema.NewErrorf(schema.ErrCodeRegistration,
			"job %q already registered", job.ID)
	}
	s.jobs[job.ID] = &scheduledJob{
		job:      job,
		schedule: schedule,
		next:     schedule.Next(time.Now().UTC()),
	}
	s.logger.Info("job registered",
		slog.String("job_id", job.ID),
		slog.String("action", job.Action),
		slog.String("cron", job.Cron))
	return nil
}

// AddJobs registers a batch, stopping at the first failure.
func (s *Scheduler) AddJobs(jobs []Job) error {
	for _, job := range jobs {
		if err := s.AddJob(job); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return schema.NewError(schema.ErrCodeConflict, "scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	s.Tick(ctx, time.Now().UTC())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick runs every job that is due at the given instant. Exported so tests
// and embedders can drive the scheduler without the background loop.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]*scheduledJob, 0, len(s.jobs))
	for _, sj := range s.jobs {
		if !sj.job.Disabled && !sj.next.After(now) {
			due = append(due, sj)
		}
	}
	s.mu.Unlock()

	for _, sj := range due {
		if !s.tryAcquire(sj.job.ID) {
			continue
		}
		if err := s.runJob(ctx, sj.job); err != nil {
			s.logger.Error("scheduled job failed",
				slog.String("job_id", sj.job.ID),
				slog.String("error", err.Error()))
		}
		s.release(sj.job.ID)

		s.mu.Lock()
		sj.next = sj.schedule.Next(now)
		s.mu.Unlock()
	}
}

// runJob performs one trigger: one invocation per audience member when
// fanning out, a single invocation carrying the whole audience otherwise.
// A fan-out over an empty audience invokes nothing.
func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	audience, err := s.resolveAudience(ctx, job)
	if err != nil {
		return err
	}

	s.logger.Info("running scheduled job",
		slog.String("job_id", job.ID),
		slog.String("action", job.Action),
		slog.Bool("fan_out", job.FanOut),
		slog.Int("audience", len(audience)))

	if !job.FanOut {
		return s.invoker.InvokeScheduled(ctx, job.Action, schema.User{}, audience, job.Args)
	}

	for _, user := range audience {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := s.invoker.InvokeScheduled(ctx, job.Action, user, audience, job.Args); err != nil {
			s.logger.Error("fan-out invocation failed",
				slog.String("job_id", job.ID),
				slog.String("chat_id", user.ChatID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// resolveAudience expands the job's audience: the listed chats, or every
// directory user when none are listed.
func (s *Scheduler) resolveAudience(ctx context.Context, job Job) ([]schema.User, error) {
	if s.directory == nil {
		return nil, nil
	}
	if len(job.Audience) == 0 {
		return s.directory.Users(ctx)
	}

	audience := make([]schema.User, 0, len(job.Audience))
	for _, chatID := range job.Audience {
		user, err := s.directory.UserByChat(ctx, chatID)
		if err != nil {
			s.logger.Warn("audience member not found, skipping",
				slog.String("job_id", job.ID),
				slog.String("chat_id", chatID))
			continue
		}
		audience = append(audience, user)
	}
	return audience, nil
}

func (s *Scheduler) tryAcquire(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

func (s *Scheduler) release(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// NextRun reports the next due time of a job, for introspection.
func (s *Scheduler) NextRun(jobID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sj, ok := s.jobs[jobID]
	if !ok {
		return time.Time{}, false
	}
	return sj.next, true
}
