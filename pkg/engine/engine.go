// Package engine registers workflows, matches their triggers and runs them.
package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/evofitmeals/evoflow/pkg/conditions"
	"github.com/evofitmeals/evoflow/pkg/defaults"
	"github.com/evofitmeals/evoflow/pkg/eventbus"
	"github.com/evofitmeals/evoflow/pkg/events"
	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/otelhelper"
	"github.com/evofitmeals/evoflow/pkg/persistence"
	"github.com/evofitmeals/evoflow/pkg/protocol"
	"github.com/evofitmeals/evoflow/pkg/registry"
	"github.com/evofitmeals/evoflow/pkg/rules"
	"github.com/evofitmeals/evoflow/pkg/schedule"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxDepth bounds how deeply workflow actions may nest.
const DefaultMaxDepth = 8

// Dependencies are the collaborators every engine needs.
type Dependencies struct {
	Registry    *registry.Registry
	Persistence persistence.Persistence
	Logger      *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithMaxDepth sets the deepest allowed nesting of workflow actions.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithFailOnRetryExhausted fails the run when an action still fails after
// all its retries. By default the step is marked failed and the run goes on.
func WithFailOnRetryExhausted() Option {
	return func(e *Engine) {
		e.failOnRetryExhausted = true
	}
}

// WithPlanner selects how schedule expressions become timers.
func WithPlanner(planner schedule.Planner) Option {
	return func(e *Engine) {
		e.planner = planner
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithObservers adds lifecycle observers.
func WithObservers(observers ...Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, observers...)
	}
}

// WithFactMatcher replaces the JSON Schema rules engine used by condition triggers.
func WithFactMatcher(matcher protocol.FactMatcher) Option {
	return func(e *Engine) {
		e.facts = matcher
	}
}

func WithEvaluator(evaluator *conditions.Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = evaluator
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine owns the in-memory workflow index and drives every run. The index
// is written through to the workflow repository.
type Engine struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	registry  *registry.Registry
	workflows persistence.WorkflowRepository
	history   persistence.ExecutionRepository
	evaluator *conditions.Evaluator
	planner   schedule.Planner
	scheduler *schedule.Scheduler
	facts     protocol.FactMatcher
	observers []Observer
	now       func() time.Time

	maxDepth             int
	failOnRetryExhausted bool

	mu       sync.RWMutex
	index    map[string]*models.Workflow
	webhooks map[string]string

	locks    keyedMutex
	claims   claimLocks
	inflight sync.WaitGroup
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// New builds an engine and loads every stored workflow into it.
func New(ctx context.Context, deps Dependencies, opts ...Option) (*Engine, error) {
	if deps.Registry == nil || deps.Persistence == nil {
		return nil, errors.New("engine requires a registry and a persistence layer")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	e := &Engine{
		logger:    logger.With("component", "engine"),
		tracer:    otelhelper.NoopTracer(),
		registry:  deps.Registry,
		workflows: deps.Persistence.WorkflowRepository(),
		history:   deps.Persistence.ExecutionRepository(),
		evaluator: conditions.NewEvaluator(),
		planner:   schedule.IntervalPlanner{},
		now:       func() time.Time { return time.Now().UTC() },
		maxDepth:  DefaultMaxDepth,
		index:     make(map[string]*models.Workflow),
		webhooks:  make(map[string]string),
		baseCtx:   baseCtx,
		cancel:    cancel,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.facts == nil {
		e.facts = rules.NewEngine(logger)
	}

	e.scheduler = schedule.NewScheduler(e.planner, logger)
	e.facts.OnMatch(e.onFactMatch)

	stored, err := e.workflows.GetAll(ctx)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	for _, workflow := range stored {
		err = e.registerTriggerLocked(workflow)
		if err != nil {
			e.logger.Error("Skipping stored workflow with unusable trigger", "workflow_id", workflow.ID, "error", err)

			continue
		}

		e.index[workflow.ID] = workflow
	}

	e.logger.Info("Engine initialized", "workflows", len(e.index), "max_depth", e.maxDepth)

	return e, nil
}

// Start begins firing scheduled triggers.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.InfoContext(ctx, "Starting engine", "scheduled", e.scheduler.Len())

	return e.scheduler.Start(ctx)
}

// Close stops the scheduler, cancels backoff waits and waits for in-flight runs.
func (e *Engine) Close(ctx context.Context) error {
	e.logger.InfoContext(ctx, "Stopping engine")

	err := e.scheduler.Stop(ctx)

	e.cancel()

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
}

// AddWorkflow validates and registers a new workflow. A missing id is
// generated. Statistics start fresh regardless of what the caller sent.
func (e *Engine) AddWorkflow(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, newWorkflowError("add", "", fmt.Errorf("%w: workflow is nil", ErrInvalidWorkflow))
	}

	workflow = workflow.Clone()
	if workflow.ID == "" {
		workflow.ID = "wf-" + shortID()
	}

	normalizeTrigger(&workflow.Trigger)

	err := workflow.Validate()
	if err != nil {
		return nil, newWorkflowError("add", workflow.ID, fmt.Errorf("%w: %w", ErrInvalidWorkflow, err))
	}

	now := e.now()
	workflow.Metadata = models.WorkflowMetadata{CreatedAt: now, UpdatedAt: now, SuccessRate: 1.0}

	lock := e.locks.get(workflow.ID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	if _, exists := e.index[workflow.ID]; exists {
		e.mu.Unlock()

		return nil, newWorkflowError("add", workflow.ID, ErrWorkflowExists)
	}

	err = e.registerTriggerLocked(workflow)
	if err != nil {
		e.mu.Unlock()

		return nil, newWorkflowError("add", workflow.ID, err)
	}

	e.index[workflow.ID] = workflow
	e.mu.Unlock()

	err = e.workflows.Save(ctx, workflow)
	if err != nil {
		e.mu.Lock()
		delete(e.index, workflow.ID)
		e.unregisterTriggerLocked(workflow)
		e.mu.Unlock()

		return nil, newWorkflowError("add", workflow.ID, err)
	}

	e.logger.InfoContext(ctx, "Workflow added",
		"workflow_id", workflow.ID, "name", workflow.Name, "trigger", workflow.Trigger.Type, "enabled", workflow.Enabled)

	e.notify(ctx, &events.WorkflowAdded{
		BaseEvent:   events.NewBaseEvent(events.WorkflowAddedEvent, workflow.ID),
		Name:        workflow.Name,
		TriggerType: workflow.Trigger.Type,
		Enabled:     workflow.Enabled,
	})

	return workflow.Clone(), nil
}

// UpdateWorkflow replaces a definition, keeping its creation time and
// statistics, and re-registers its trigger.
func (e *Engine) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, newWorkflowError("update", "", fmt.Errorf("%w: workflow is nil", ErrInvalidWorkflow))
	}

	workflow = workflow.Clone()
	normalizeTrigger(&workflow.Trigger)

	err := workflow.Validate()
	if err != nil {
		return nil, newWorkflowError("update", workflow.ID, fmt.Errorf("%w: %w", ErrInvalidWorkflow, err))
	}

	lock := e.locks.get(workflow.ID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()

	previous, exists := e.index[workflow.ID]
	if !exists {
		e.mu.Unlock()

		return nil, newWorkflowError("update", workflow.ID, ErrWorkflowNotFound)
	}

	workflow.Metadata = previous.Metadata
	workflow.Metadata.UpdatedAt = e.now()

	e.unregisterTriggerLocked(previous)

	err = e.registerTriggerLocked(workflow)
	if err != nil {
		restoreErr := e.registerTriggerLocked(previous)
		e.mu.Unlock()

		return nil, newWorkflowError("update", workflow.ID, errors.Join(err, restoreErr))
	}

	e.index[workflow.ID] = workflow
	e.mu.Unlock()

	err = e.workflows.Save(ctx, workflow)
	if err != nil {
		return nil, newWorkflowError("update", workflow.ID, err)
	}

	e.logger.InfoContext(ctx, "Workflow updated", "workflow_id", workflow.ID)

	return workflow.Clone(), nil
}

// RemoveWorkflow unregisters a workflow and deletes it from the store.
// Its execution history is kept.
func (e *Engine) RemoveWorkflow(ctx context.Context, workflowID string) error {
	lock := e.locks.get(workflowID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()

	workflow, exists := e.index[workflowID]
	if !exists {
		e.mu.Unlock()

		return newWorkflowError("remove", workflowID, ErrWorkflowNotFound)
	}

	e.unregisterTriggerLocked(workflow)
	delete(e.index, workflowID)
	e.mu.Unlock()

	err := e.workflows.Delete(ctx, workflowID)
	if err != nil && !persistence.IsWorkflowNotFound(err) {
		return newWorkflowError("remove", workflowID, err)
	}

	e.logger.InfoContext(ctx, "Workflow removed", "workflow_id", workflowID)

	e.notify(ctx, &events.WorkflowRemoved{
		BaseEvent: events.NewBaseEvent(events.WorkflowRemovedEvent, workflowID),
	})

	return nil
}

// SetEnabled toggles a workflow. Triggers stay registered; a disabled
// workflow is refused when it would run.
func (e *Engine) SetEnabled(ctx context.Context, workflowID string, enabled bool) (*models.Workflow, error) {
	lock := e.locks.get(workflowID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()

	workflow, exists := e.index[workflowID]
	if !exists {
		e.mu.Unlock()

		return nil, newWorkflowError("set enabled", workflowID, ErrWorkflowNotFound)
	}

	workflow.Enabled = enabled
	workflow.Metadata.UpdatedAt = e.now()
	saved := workflow.Clone()
	e.mu.Unlock()

	err := e.workflows.Save(ctx, saved)
	if err != nil {
		return nil, newWorkflowError("set enabled", workflowID, err)
	}

	e.logger.InfoContext(ctx, "Workflow toggled", "workflow_id", workflowID, "enabled", enabled)

	return saved, nil
}

// GetWorkflow returns a copy of a registered workflow.
func (e *Engine) GetWorkflow(workflowID string) (*models.Workflow, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	workflow, exists := e.index[workflowID]
	if !exists {
		return nil, newWorkflowError("get", workflowID, ErrWorkflowNotFound)
	}

	return workflow.Clone(), nil
}

// ListWorkflows returns copies of every workflow, highest priority first.
func (e *Engine) ListWorkflows() []*models.Workflow {
	e.mu.RLock()

	workflows := make([]*models.Workflow, 0, len(e.index))
	for _, workflow := range e.index {
		workflows = append(workflows, workflow.Clone())
	}
	e.mu.RUnlock()

	slices.SortFunc(workflows, func(a, b *models.Workflow) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return workflows
}

// RegisterWorkflows adds every workflow whose id is not registered yet and
// returns how many were added.
func (e *Engine) RegisterWorkflows(ctx context.Context, workflows []*models.Workflow) (int, error) {
	added := 0

	for _, workflow := range workflows {
		_, err := e.AddWorkflow(ctx, workflow)
		if errors.Is(err, ErrWorkflowExists) {
			continue
		}

		if err != nil {
			return added, err
		}

		added++
	}

	return added, nil
}

// RegisterDefaultWorkflows adds the built-in meal planner workflows that
// are not registered yet.
func (e *Engine) RegisterDefaultWorkflows(ctx context.Context) error {
	added, err := e.RegisterWorkflows(ctx, defaults.Workflows())
	if err != nil {
		return fmt.Errorf("failed to register default workflows: %w", err)
	}

	e.logger.InfoContext(ctx, "Default workflows registered", "added", added)

	return nil
}

// Scheduler exposes the schedule registry for inspection.
func (e *Engine) Scheduler() *schedule.Scheduler {
	return e.scheduler
}

func (e *Engine) lookup(workflowID string) (*models.Workflow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	workflow, exists := e.index[workflowID]
	if !exists {
		return nil, false
	}

	return workflow.Clone(), true
}

func (e *Engine) notify(ctx context.Context, event eventbus.Event) {
	for _, observer := range e.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.ErrorContext(ctx, "Observer panicked", "type", event.GetType(), "panic", r)
				}
			}()

			observer.Notify(ctx, event)
		}()
	}
}

func normalizeTrigger(trigger *models.Trigger) {
	if trigger.Type == models.TriggerTypeWebhook {
		trigger.Path = NormalizePath(trigger.Path)
	}

	trigger.Event = strings.TrimSpace(trigger.Event)
	trigger.Cron = strings.TrimSpace(trigger.Cron)
}

// NormalizePath gives webhook paths a single leading slash and no trailing one.
func NormalizePath(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return ""
	}

	return "/" + path
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// keyedMutex hands out one mutex per workflow id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}

	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}

	return lock
}

// claimLocks serializes callers sharing a caller-supplied execution id.
// Entries are dropped once nobody holds or waits for them.
type claimLocks struct {
	mu    sync.Mutex
	locks map[string]*claimLock
}

type claimLock struct {
	sync.Mutex
	refs int
}

func (c *claimLocks) lock(key string) func() {
	c.mu.Lock()

	if c.locks == nil {
		c.locks = make(map[string]*claimLock)
	}

	lock, ok := c.locks[key]
	if !ok {
		lock = &claimLock{}
		c.locks[key] = lock
	}

	lock.refs++
	c.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		c.mu.Lock()
		lock.refs--

		if lock.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}
