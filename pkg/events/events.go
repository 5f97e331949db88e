// Package events defines the lifecycle notifications the engine emits.
package events

import (
	"time"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

const Topic = "evoflow.events"          // Engine lifecycle notifications
const TriggerTopic = "evoflow.triggers" // Inbound named events to dispatch

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowAddedEvent   EventType = "workflow.added"
	WorkflowRemovedEvent EventType = "workflow.removed"

	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionSkippedEvent   EventType = "execution.skipped"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"

	ActionInvokedEvent EventType = "action.invoked"

	TriggerFiredEvent EventType = "trigger.fired"
)

// TopicFor returns the topic an event type travels on.
func TopicFor(eventType EventType) string {
	if eventType == TriggerFiredEvent {
		return TriggerTopic
	}

	return Topic
}

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

type WorkflowAdded struct {
	BaseEvent

	Name        string             `json:"name"`
	TriggerType models.TriggerType `json:"trigger_type"`
	Enabled     bool               `json:"enabled"`
}

func (WorkflowAdded) GetType() EventType {
	return WorkflowAddedEvent
}

type WorkflowRemoved struct {
	BaseEvent
}

func (WorkflowRemoved) GetType() EventType {
	return WorkflowRemovedEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string             `json:"execution_id"`
	Trigger     models.TriggerType `json:"trigger"`
	Depth       int                `json:"depth"`
	Input       map[string]any     `json:"input,omitempty"`
}

func (ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionSkipped struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (ExecutionSkipped) GetType() EventType {
	return ExecutionSkippedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Steps       int           `json:"steps"`
	Duration    time.Duration `json:"duration"`
}

func (ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// ActionInvoked is emitted once per dispatch to a collaborator, retries included.
type ActionInvoked struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	ActionID    string            `json:"action_id"`
	ActionType  models.ActionType `json:"action_type"`
	Attempt     int               `json:"attempt"`
	Config      map[string]any    `json:"config,omitempty"`
	Succeeded   bool              `json:"succeeded"`
	Error       string            `json:"error,omitempty"`
	Duration    time.Duration     `json:"duration"`
}

func (ActionInvoked) GetType() EventType {
	return ActionInvokedEvent
}

// TriggerFired asks the engine to publish a named event to matching workflows.
type TriggerFired struct {
	BaseEvent

	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (TriggerFired) GetType() EventType {
	return TriggerFiredEvent
}

func NewTriggerFired(event string, payload map[string]any) TriggerFired {
	return TriggerFired{
		BaseEvent: NewBaseEvent(TriggerFiredEvent, ""),
		Event:     event,
		Payload:   payload,
	}
}
