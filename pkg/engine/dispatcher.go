package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/evofitmeals/evoflow/pkg/eventbus"
	"github.com/evofitmeals/evoflow/pkg/events"
	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/persistence"
	"github.com/evofitmeals/evoflow/pkg/rules"
)

// registerTriggerLocked installs the timer, webhook route or fact expression
// a workflow listens on. Event and manual triggers need no registration.
// Callers hold e.mu.
func (e *Engine) registerTriggerLocked(workflow *models.Workflow) error {
	trigger := workflow.Trigger

	switch trigger.Type {
	case models.TriggerTypeSchedule:
		workflowID := workflow.ID

		err := e.scheduler.Schedule(workflowID, trigger.Cron, trigger.Timezone, func() {
			e.runScheduled(workflowID)
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)
		}
	case models.TriggerTypeWebhook:
		owner, taken := e.webhooks[trigger.Path]
		if taken && owner != workflow.ID {
			return fmt.Errorf("%w: %s is used by workflow %s", ErrWebhookPathConflict, trigger.Path, owner)
		}

		e.webhooks[trigger.Path] = workflow.ID
	case models.TriggerTypeCondition:
		err := e.facts.Register(workflow.ID, trigger.Fact)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)
		}
	case models.TriggerTypeEvent, models.TriggerTypeManual:
	}

	return nil
}

func (e *Engine) unregisterTriggerLocked(workflow *models.Workflow) {
	switch workflow.Trigger.Type {
	case models.TriggerTypeSchedule:
		e.scheduler.Unschedule(workflow.ID)
	case models.TriggerTypeWebhook:
		if e.webhooks[workflow.Trigger.Path] == workflow.ID {
			delete(e.webhooks, workflow.Trigger.Path)
		}
	case models.TriggerTypeCondition:
		e.facts.Unregister(workflow.ID)
	case models.TriggerTypeEvent, models.TriggerTypeManual:
	}
}

// Publish runs every enabled workflow listening for the named event,
// concurrently, and returns their executions. Disabled workflows do not match.
func (e *Engine) Publish(ctx context.Context, event string, payload map[string]any) []*models.Execution {
	e.mu.RLock()

	var workflowIDs []string

	for id, workflow := range e.index {
		if workflow.Enabled && workflow.Trigger.Type == models.TriggerTypeEvent && workflow.Trigger.Event == event {
			workflowIDs = append(workflowIDs, id)
		}
	}
	e.mu.RUnlock()

	slices.Sort(workflowIDs)

	e.logger.DebugContext(ctx, "Publishing event", "event", event, "matched", len(workflowIDs))

	return e.runAll(ctx, workflowIDs, payload, models.TriggerTypeEvent)
}

// RunManual runs a workflow on demand. A non-empty executionID is used as
// the run id and acts as an idempotency key: if this workflow already
// recorded a run with that id it is returned instead of running again, and
// an id owned by another workflow is refused with ErrExecutionIDConflict.
// Calls sharing a key are serialized.
func (e *Engine) RunManual(ctx context.Context, workflowID string, input map[string]any, executionID string) (*models.Execution, error) {
	req := runRequest{
		workflowID:  workflowID,
		executionID: executionID,
		input:       input,
		trigger:     models.TriggerTypeManual,
	}

	if executionID == "" {
		return e.run(ctx, req)
	}

	workflow, ok := e.lookup(workflowID)
	if !ok {
		return nil, newWorkflowError("run", workflowID, ErrWorkflowNotFound)
	}

	if !workflow.Enabled {
		return nil, newWorkflowError("run", workflowID, ErrWorkflowDisabled)
	}

	release := e.claims.lock(executionID)
	defer release()

	existing, err := e.history.GetByID(ctx, executionID)

	switch {
	case err == nil && existing.WorkflowID == workflowID:
		e.logger.DebugContext(ctx, "Execution id already used, returning recorded run",
			"workflow_id", workflowID, "execution_id", executionID)

		return existing, nil
	case err == nil:
		return nil, newWorkflowError("run", workflowID,
			fmt.Errorf("%w: %s belongs to %s", ErrExecutionIDConflict, executionID, existing.WorkflowID))
	case !persistence.IsExecutionNotFound(err):
		return nil, newWorkflowError("run", workflowID, fmt.Errorf("failed to look up execution: %w", err))
	}

	return e.run(ctx, req)
}

// InvokeWebhook runs the workflow registered on path with body as its input.
// When the trigger declares a JSON Schema the body must satisfy it.
func (e *Engine) InvokeWebhook(ctx context.Context, path string, body map[string]any) (*models.Execution, error) {
	path = NormalizePath(path)

	e.mu.RLock()
	workflowID, ok := e.webhooks[path]
	e.mu.RUnlock()

	if !ok {
		return nil, newWorkflowError("webhook", "", fmt.Errorf("%w: %s", ErrWebhookNotFound, path))
	}

	workflow, ok := e.lookup(workflowID)
	if !ok {
		return nil, newWorkflowError("webhook", workflowID, ErrWorkflowNotFound)
	}

	if !workflow.Enabled {
		return nil, newWorkflowError("webhook", workflowID, ErrWorkflowDisabled)
	}

	if len(workflow.Trigger.Schema) > 0 {
		err := rules.Validate(workflow.Trigger.Schema, body)
		if err != nil {
			return nil, newWorkflowError("webhook", workflowID, fmt.Errorf("%w: %w", ErrInvalidPayload, err))
		}
	}

	return e.run(ctx, runRequest{
		workflowID: workflowID,
		input:      body,
		trigger:    models.TriggerTypeWebhook,
	})
}

// OnFactMatch runs a workflow whose condition trigger matched facts.
func (e *Engine) OnFactMatch(ctx context.Context, workflowID string, facts map[string]any) (*models.Execution, error) {
	return e.run(ctx, runRequest{
		workflowID: workflowID,
		input:      facts,
		trigger:    models.TriggerTypeCondition,
	})
}

// AssertFacts runs every enabled condition-triggered workflow the facts satisfy.
func (e *Engine) AssertFacts(ctx context.Context, facts map[string]any) ([]*models.Execution, error) {
	matched, err := e.facts.Match(facts)
	if err != nil {
		return nil, fmt.Errorf("failed to match facts: %w", err)
	}

	e.mu.RLock()
	matched = slices.DeleteFunc(matched, func(id string) bool {
		workflow, ok := e.index[id]

		return !ok || !workflow.Enabled
	})
	e.mu.RUnlock()

	return e.runAll(ctx, matched, facts, models.TriggerTypeCondition), nil
}

// SubscribeTriggers makes the engine publish named events that arrive on
// the bus as trigger.fired messages.
func (e *Engine) SubscribeTriggers(subscriber eventbus.EventSubscriber) error {
	return subscriber.Handle(events.TriggerFiredEvent, func(ctx context.Context, event any) error {
		fired, ok := event.(*events.TriggerFired)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		executions := e.Publish(ctx, fired.Event, fired.Payload)

		e.logger.InfoContext(ctx, "Dispatched bus event", "event", fired.Event, "executions", len(executions))

		return nil
	})
}

// onFactMatch serves callbacks from a matcher asserted outside the engine.
func (e *Engine) onFactMatch(ctx context.Context, workflowID string, facts map[string]any) {
	_, err := e.OnFactMatch(ctx, workflowID, facts)
	if err != nil {
		e.logRefusal(ctx, workflowID, models.TriggerTypeCondition, err)
	}
}

func (e *Engine) runScheduled(workflowID string) {
	_, err := e.run(e.baseCtx, runRequest{
		workflowID: workflowID,
		input:      models.ScheduledInput(),
		trigger:    models.TriggerTypeSchedule,
	})
	if err != nil {
		e.logRefusal(e.baseCtx, workflowID, models.TriggerTypeSchedule, err)
	}
}

func (e *Engine) runAll(ctx context.Context, workflowIDs []string, input map[string]any, trigger models.TriggerType) []*models.Execution {
	results := make([]*models.Execution, len(workflowIDs))

	var wg sync.WaitGroup

	for i, workflowID := range workflowIDs {
		wg.Add(1)

		go func() {
			defer wg.Done()

			execution, err := e.run(ctx, runRequest{workflowID: workflowID, input: input, trigger: trigger})
			if err != nil {
				e.logRefusal(ctx, workflowID, trigger, err)

				return
			}

			results[i] = execution
		}()
	}

	wg.Wait()

	return slices.DeleteFunc(results, func(execution *models.Execution) bool {
		return execution == nil
	})
}

func (e *Engine) logRefusal(ctx context.Context, workflowID string, trigger models.TriggerType, err error) {
	if errors.Is(err, ErrWorkflowDisabled) {
		e.logger.DebugContext(ctx, "Skipping disabled workflow", "workflow_id", workflowID, "trigger", trigger)

		return
	}

	e.logger.ErrorContext(ctx, "Workflow run refused", "workflow_id", workflowID, "trigger", trigger, "error", err)
}
