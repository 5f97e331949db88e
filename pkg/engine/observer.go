package engine

import (
	"context"
	"log/slog"

	"github.com/evofitmeals/evoflow/pkg/eventbus"
	"github.com/evofitmeals/evoflow/pkg/events"
)

// Observer is notified of workflow lifecycle events. Notify is called
// synchronously from the run; observers must not block.
type Observer interface {
	Notify(ctx context.Context, event eventbus.Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(ctx context.Context, event eventbus.Event)

func (f ObserverFunc) Notify(ctx context.Context, event eventbus.Event) {
	f(ctx, event)
}

// LogObserver writes every event to a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger.With("component", "engine_events")}
}

func (o *LogObserver) Notify(ctx context.Context, event eventbus.Event) {
	switch e := event.(type) {
	case *events.ExecutionStarted:
		o.logger.InfoContext(ctx, "Execution started",
			"workflow_id", e.WorkflowID, "execution_id", e.ExecutionID, "trigger", e.Trigger, "depth", e.Depth)
	case *events.ExecutionSkipped:
		o.logger.InfoContext(ctx, "Execution skipped, conditions not met",
			"workflow_id", e.WorkflowID, "execution_id", e.ExecutionID)
	case *events.ExecutionCompleted:
		o.logger.InfoContext(ctx, "Execution completed",
			"workflow_id", e.WorkflowID, "execution_id", e.ExecutionID, "steps", e.Steps, "duration", e.Duration)
	case *events.ExecutionFailed:
		o.logger.WarnContext(ctx, "Execution failed",
			"workflow_id", e.WorkflowID, "execution_id", e.ExecutionID, "error", e.Error, "duration", e.Duration)
	case *events.ActionInvoked:
		o.logger.DebugContext(ctx, "Action invoked",
			"workflow_id", e.WorkflowID, "execution_id", e.ExecutionID,
			"action_id", e.ActionID, "action_type", e.ActionType,
			"attempt", e.Attempt, "succeeded", e.Succeeded, "error", e.Error)
	default:
		o.logger.DebugContext(ctx, "Engine event", "type", event.GetType())
	}
}

// BusObserver forwards events to an event bus, keyed by workflow id so a
// partitioned transport keeps one workflow's events in order.
type BusObserver struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewBusObserver(publisher eventbus.EventPublisher, logger *slog.Logger) *BusObserver {
	return &BusObserver{publisher: publisher, logger: logger.With("component", "engine_bus_observer")}
}

func (o *BusObserver) Notify(ctx context.Context, event eventbus.Event) {
	err := o.publisher.Publish(ctx, workflowKey(event), event)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to publish engine event", "type", event.GetType(), "error", err)
	}
}

func workflowKey(event eventbus.Event) string {
	switch e := event.(type) {
	case *events.WorkflowAdded:
		return e.WorkflowID
	case *events.WorkflowRemoved:
		return e.WorkflowID
	case *events.ExecutionStarted:
		return e.WorkflowID
	case *events.ExecutionSkipped:
		return e.WorkflowID
	case *events.ExecutionCompleted:
		return e.WorkflowID
	case *events.ExecutionFailed:
		return e.WorkflowID
	case *events.ActionInvoked:
		return e.WorkflowID
	default:
		return ""
	}
}
