package models

import "time"

// ActionType is the fixed set of capabilities an action can dispatch to.
type ActionType string

const (
	ActionTypeEmail         ActionType = "email"
	ActionTypeNotification  ActionType = "notification"
	ActionTypeUpdateData    ActionType = "updateData"
	ActionTypeAPICall       ActionType = "apiCall"
	ActionTypeAssignTask    ActionType = "assignTask"
	ActionTypeCreateContent ActionType = "createContent"
	ActionTypeAnalytics     ActionType = "analytics"
	ActionTypeWorkflow      ActionType = "workflow"
)

// ActionTypes lists every supported action type.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionTypeEmail,
		ActionTypeNotification,
		ActionTypeUpdateData,
		ActionTypeAPICall,
		ActionTypeAssignTask,
		ActionTypeCreateContent,
		ActionTypeAnalytics,
		ActionTypeWorkflow,
	}
}

// Action is one typed unit of work. Config is decoded by the collaborator
// that serves the action type.
type Action struct {
	ID          string         `json:"id"                     validate:"required"`
	Type        ActionType     `json:"type"                   validate:"required,oneof=email notification updateData apiCall assignTask createContent analytics workflow"`
	Config      map[string]any `json:"config,omitempty"`
	OnSuccess   []Action       `json:"on_success,omitempty"   validate:"dive"`
	OnFailure   []Action       `json:"on_failure,omitempty"   validate:"dive"`
	RetryPolicy *RetryPolicy   `json:"retry_policy,omitempty"`
}

// RetryPolicy retries a failed action up to MaxAttempts times,
// sleeping BackoffMs*attempt before each retry.
type RetryPolicy struct {
	MaxAttempts int `json:"max_attempts" validate:"min=1"`
	BackoffMs   int `json:"backoff_ms"   validate:"min=0"`
}

// Backoff returns the delay before the given retry attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(p.BackoffMs*attempt) * time.Millisecond
}
