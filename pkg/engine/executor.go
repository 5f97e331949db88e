package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/evofitmeals/evoflow/pkg/events"
	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/otelhelper"
	"github.com/evofitmeals/evoflow/pkg/template"
	"go.opentelemetry.io/otel/attribute"
)

type runRequest struct {
	workflowID  string
	executionID string
	input       map[string]any
	trigger     models.TriggerType
	depth       int
	chain       []string
}

// runState is owned by the goroutine executing one run.
type runState struct {
	workflow  *models.Workflow
	execution *models.Execution
	chain     []string
	logger    *slog.Logger
}

func (r *runState) outputs() map[string]any {
	outputs := make(map[string]any)

	for _, step := range r.execution.Steps {
		if step.Status == models.StepStatusCompleted {
			outputs[step.ActionID] = step.Output
		}
	}

	return outputs
}

// run is the pipeline shared by every trigger: record the start, evaluate
// conditions, execute actions in order, record the outcome. Only definition
// errors are returned; everything that goes wrong inside the run ends up on
// the execution.
func (e *Engine) run(ctx context.Context, req runRequest) (*models.Execution, error) {
	workflow, ok := e.lookup(req.workflowID)
	if !ok {
		return nil, newWorkflowError("run", req.workflowID, ErrWorkflowNotFound)
	}

	if !workflow.Enabled {
		return nil, newWorkflowError("run", req.workflowID, ErrWorkflowDisabled)
	}

	e.inflight.Add(1)
	defer e.inflight.Done()

	executionID := req.executionID
	if executionID == "" {
		executionID = "exec-" + shortID()
	}

	input := req.input
	if input == nil {
		input = make(map[string]any)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.TriggerTypeKey, string(req.trigger)),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.Int(otelhelper.DepthKey, req.depth),
	)
	defer span.End()

	execution := &models.Execution{
		ID:         executionID,
		WorkflowID: workflow.ID,
		Trigger:    req.trigger,
		Depth:      req.depth,
		StartTime:  e.now(),
		Status:     models.ExecutionStatusRunning,
		Input:      input,
		Steps:      []*models.ExecutionStep{},
	}

	err := e.history.Save(ctx, execution.Snapshot())
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, newWorkflowError("run", workflow.ID, fmt.Errorf("failed to record execution: %w", err))
	}

	e.notify(ctx, &events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, workflow.ID),
		ExecutionID: executionID,
		Trigger:     req.trigger,
		Depth:       req.depth,
		Input:       input,
	})

	state := &runState{
		workflow:  workflow,
		execution: execution,
		chain:     append(slices.Clone(req.chain), workflow.ID),
		logger:    e.logger.With("workflow_id", workflow.ID, "execution_id", executionID),
	}

	skipped, runErr := e.execute(ctx, state)

	switch {
	case runErr != nil:
		execution.Finish(models.ExecutionStatusFailed, e.now())
		execution.Error = runErr.Error()
		otelhelper.SetError(span, runErr)
	case skipped:
		execution.Finish(models.ExecutionStatusSkipped, e.now())
	default:
		execution.Finish(models.ExecutionStatusCompleted, e.now())
		execution.Output = state.outputs()
	}

	span.SetAttributes(attribute.String(otelhelper.StatusKey, string(execution.Status)))

	err = e.history.Save(ctx, execution.Snapshot())
	if err != nil {
		state.logger.ErrorContext(ctx, "Failed to record execution outcome", "status", execution.Status, "error", err)
	}

	if execution.Status != models.ExecutionStatusSkipped {
		e.recordOutcome(ctx, workflow.ID, execution.Status == models.ExecutionStatusCompleted, *execution.EndTime)
	}

	e.notifyOutcome(ctx, execution)

	return execution.Snapshot(), nil
}

// execute evaluates conditions and runs the top-level actions. A panic in
// any collaborator fails the run.
func (e *Engine) execute(ctx context.Context, state *runState) (skipped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			state.logger.ErrorContext(ctx, "Recovered from panic during workflow run", "panic", r)
			err = fmt.Errorf("%w: %v", ErrRunPanicked, r)
		}
	}()

	if !e.evaluator.Evaluate(state.workflow.Conditions, state.execution.Input) {
		return true, nil
	}

	return false, e.executeActions(ctx, state, state.workflow.Actions)
}

func (e *Engine) executeActions(ctx context.Context, state *runState, actions []models.Action) error {
	for _, action := range actions {
		err := e.executeAction(ctx, state, action)
		if err != nil {
			return err
		}
	}

	return nil
}

// executeAction runs one action and its branches. The returned error fails
// the run.
func (e *Engine) executeAction(ctx context.Context, state *runState, action models.Action) error {
	step := &models.ExecutionStep{
		ActionID:   action.ID,
		ActionType: action.Type,
		StartTime:  e.now(),
		Status:     models.StepStatusRunning,
	}
	state.execution.Steps = append(state.execution.Steps, step)

	output, err := e.dispatch(ctx, state, action, step)
	if err == nil {
		e.completeStep(step, output)

		return e.executeActions(ctx, state, action.OnSuccess)
	}

	e.failStep(step, err)
	e.runFailureHandlers(ctx, state, action)

	policy := action.RetryPolicy
	if policy == nil {
		return err
	}

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		sleepErr := sleep(ctx, policy.Backoff(attempt))
		if sleepErr != nil {
			return sleepErr
		}

		output, err = e.dispatch(ctx, state, action, step)
		if err == nil {
			step.Error = ""
			e.completeStep(step, output)

			return e.executeActions(ctx, state, action.OnSuccess)
		}

		e.failStep(step, err)
	}

	state.logger.WarnContext(ctx, "Action failed after retries",
		"action_id", action.ID, "attempts", step.Attempts, "error", err)

	if e.failOnRetryExhausted {
		return err
	}

	return nil
}

// runFailureHandlers runs every OnFailure action in order. Their errors are
// logged and never fail the run.
func (e *Engine) runFailureHandlers(ctx context.Context, state *runState, action models.Action) {
	for _, handler := range action.OnFailure {
		err := e.executeAction(ctx, state, handler)
		if err != nil {
			state.logger.WarnContext(ctx, "Failure handler failed",
				"action_id", action.ID, "handler_id", handler.ID, "error", err)
		}
	}
}

// dispatch renders the action config and hands it to the collaborator for
// its type. Each call counts as one attempt on the step.
func (e *Engine) dispatch(ctx context.Context, state *runState, action models.Action, step *models.ExecutionStep) (any, error) {
	step.Attempts++

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "action."+string(action.Type),
		attribute.String(otelhelper.ActionIDKey, action.ID),
		attribute.String(otelhelper.ActionTypeKey, string(action.Type)),
		attribute.Int(otelhelper.AttemptKey, step.Attempts),
	)
	defer span.End()

	started := time.Now()
	data := template.Data(state.workflow.ID, state.execution.ID, state.execution.Input)

	config, err := template.RenderConfig(action.Config, data)

	var output any

	if err == nil {
		if action.Type == models.ActionTypeWorkflow {
			output, err = e.runNested(ctx, state, config)
		} else {
			output, err = e.invoke(ctx, state, action, config)
		}
	}

	if err != nil {
		otelhelper.SetError(span, err)
	}

	invoked := &events.ActionInvoked{
		BaseEvent:   events.NewBaseEvent(events.ActionInvokedEvent, state.workflow.ID),
		ExecutionID: state.execution.ID,
		ActionID:    action.ID,
		ActionType:  action.Type,
		Attempt:     step.Attempts,
		Config:      config,
		Succeeded:   err == nil,
		Duration:    time.Since(started),
	}
	if err != nil {
		invoked.Error = err.Error()
	}

	e.notify(ctx, invoked)

	return output, err
}

func (e *Engine) invoke(ctx context.Context, state *runState, action models.Action, config map[string]any) (any, error) {
	handler, err := e.registry.CreateAction(string(action.Type), config)
	if err != nil {
		return nil, err
	}

	logger := state.logger.With("action_id", action.ID, "action_type", action.Type)

	return handler.Execute(ctx, state.execution.Input, logger)
}

// runNested runs another workflow through the manual path one level deeper.
// The nested execution becomes the step output whatever its status.
func (e *Engine) runNested(ctx context.Context, state *runState, config map[string]any) (any, error) {
	var nested models.WorkflowConfig

	err := models.DecodeConfig(config, &nested)
	if err != nil {
		return nil, err
	}

	depth := state.execution.Depth + 1
	if depth > e.maxDepth {
		return nil, fmt.Errorf("%w: depth %d", ErrMaxDepthExceeded, depth)
	}

	if slices.Contains(state.chain, nested.WorkflowID) {
		return nil, fmt.Errorf("%w: %v -> %s", ErrWorkflowCycle, state.chain, nested.WorkflowID)
	}

	input := nested.Input
	if input == nil {
		input = state.execution.Input
	}

	execution, err := e.run(ctx, runRequest{
		workflowID: nested.WorkflowID,
		input:      input,
		trigger:    models.TriggerTypeManual,
		depth:      depth,
		chain:      state.chain,
	})
	if err != nil {
		return nil, err
	}

	return execution, nil
}

func (e *Engine) completeStep(step *models.ExecutionStep, output any) {
	end := e.now()
	step.Status = models.StepStatusCompleted
	step.Output = output
	step.EndTime = &end
}

func (e *Engine) failStep(step *models.ExecutionStep, err error) {
	end := e.now()
	step.Status = models.StepStatusFailed
	step.Error = err.Error()
	step.EndTime = &end
}

func (e *Engine) notifyOutcome(ctx context.Context, execution *models.Execution) {
	duration, _ := execution.Duration()

	switch execution.Status {
	case models.ExecutionStatusSkipped:
		e.notify(ctx, &events.ExecutionSkipped{
			BaseEvent:   events.NewBaseEvent(events.ExecutionSkippedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
		})
	case models.ExecutionStatusFailed:
		e.notify(ctx, &events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			Error:       execution.Error,
			Duration:    duration,
		})
	default:
		e.notify(ctx, &events.ExecutionCompleted{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			Steps:       len(execution.Steps),
			Duration:    duration,
		})
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
