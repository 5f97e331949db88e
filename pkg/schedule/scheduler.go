package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/evofitmeals/evoflow/pkg/protocol"
	"github.com/robfig/cron/v3"
)

var _ protocol.Lifecycle = (*Scheduler)(nil)

// Scheduler keeps at most one timer per workflow id.
type Scheduler struct {
	cron    *cron.Cron
	planner Planner
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduler(planner Planner, logger *slog.Logger) *Scheduler {
	cronLog := cronLogger{logger: logger}

	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLog),
			cron.Recover(cronLog),
		)),
		planner: planner,
		logger:  logger.With("component", "scheduler"),
		entries: make(map[string]cron.EntryID),
	}
}

// Schedule installs run for workflowID, replacing any timer the workflow
// already had.
func (s *Scheduler) Schedule(workflowID, expression, timezone string, run func()) error {
	schedule, err := s.planner.Plan(expression, timezone)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.entries[workflowID]; ok {
		s.cron.Remove(previous)
	}

	s.entries[workflowID] = s.cron.Schedule(schedule, cron.FuncJob(run))

	s.logger.Info("Scheduled workflow", "workflow_id", workflowID, "cron", expression, "timezone", timezone)

	return nil
}

// Unschedule removes the workflow's timer and reports whether one existed.
func (s *Scheduler) Unschedule(workflowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[workflowID]
	if !ok {
		return false
	}

	s.cron.Remove(id)
	delete(s.entries, workflowID)

	s.logger.Info("Unscheduled workflow", "workflow_id", workflowID)

	return true
}

// Next returns the next activation of the workflow's timer. It is zero until
// the scheduler has started.
func (s *Scheduler) Next(workflowID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[workflowID]
	if !ok {
		return time.Time{}, false
	}

	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

func (s *Scheduler) Start(_ context.Context) error {
	s.logger.Info("Starting scheduler")
	s.cron.Start()

	return nil
}

// Stop halts the timers and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scheduler")

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
