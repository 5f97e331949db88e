// Package models defines the core domain models for workflow automation
package models

import "time"

// Workflow is a named automation rule: one trigger, optional conditions and an ordered action list.
type Workflow struct {
	ID          string           `json:"id"                    validate:"required"`
	Name        string           `json:"name"                  validate:"required,min=3"`
	Description string           `json:"description"`
	Trigger     Trigger          `json:"trigger"`
	Conditions  []Condition      `json:"conditions,omitempty"  validate:"dive"`
	Actions     []Action         `json:"actions"               validate:"required,min=1,dive"`
	Enabled     bool             `json:"enabled"`
	Priority    int              `json:"priority"`
	Metadata    WorkflowMetadata `json:"metadata"`
}

// WorkflowMetadata holds the bookkeeping fields of a workflow.
// The statistics fields are only written by the execution recorder.
type WorkflowMetadata struct {
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ExecutionCount int64      `json:"execution_count"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`
	SuccessRate    float64    `json:"success_rate"`
}

// RecordRun folds one finished run into the rolling statistics.
// The rate is updated from the previous rate and count, not from history.
func (m *WorkflowMetadata) RecordRun(succeeded bool, at time.Time) {
	previousSuccesses := float64(m.ExecutionCount) * m.SuccessRate
	if succeeded {
		previousSuccesses++
	}

	m.ExecutionCount++
	m.SuccessRate = previousSuccesses / float64(m.ExecutionCount)
	m.LastExecutedAt = &at
}

// Validate checks the structure of the definition. Action configs are
// checked when the action is dispatched.
func (w *Workflow) Validate() error {
	return configValidator.Struct(w)
}

// Clone returns a copy of the workflow that shares no slices with the receiver.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	clone := *w
	clone.Conditions = append([]Condition(nil), w.Conditions...)
	clone.Actions = cloneActions(w.Actions)

	if w.Metadata.LastExecutedAt != nil {
		last := *w.Metadata.LastExecutedAt
		clone.Metadata.LastExecutedAt = &last
	}

	return &clone
}

func cloneActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}

	cloned := make([]Action, len(actions))
	for i, action := range actions {
		cloned[i] = action
		cloned[i].OnSuccess = cloneActions(action.OnSuccess)
		cloned[i].OnFailure = cloneActions(action.OnFailure)

		if action.RetryPolicy != nil {
			policy := *action.RetryPolicy
			cloned[i].RetryPolicy = &policy
		}
	}

	return cloned
}
