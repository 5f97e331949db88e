package models

import "time"

// ExecutionStatus is the state of a workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
	ExecutionStatusSkipped   ExecutionStatus = "skipped"
)

// IsTerminal reports whether no further transition can happen from s.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled, ExecutionStatusSkipped:
		return true
	default:
		return false
	}
}

// StepStatus is the state of a single action attempt.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Execution is one run of a workflow.
type Execution struct {
	ID         string           `json:"id"`
	WorkflowID string           `json:"workflow_id"`
	Trigger    TriggerType      `json:"trigger"`
	Depth      int              `json:"depth"`
	StartTime  time.Time        `json:"start_time"`
	EndTime    *time.Time       `json:"end_time,omitempty"`
	Status     ExecutionStatus  `json:"status"`
	Input      map[string]any   `json:"input,omitempty"`
	Output     any              `json:"output,omitempty"`
	Error      string           `json:"error,omitempty"`
	Steps      []*ExecutionStep `json:"steps"`
}

// ExecutionStep records one action invocation. Retries update the same step.
type ExecutionStep struct {
	ActionID   string     `json:"action_id"`
	ActionType ActionType `json:"action_type"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Status     StepStatus `json:"status"`
	Attempts   int        `json:"attempts"`
	Output     any        `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Duration returns the run time of a finished execution.
func (e *Execution) Duration() (time.Duration, bool) {
	if e.EndTime == nil {
		return 0, false
	}

	return e.EndTime.Sub(e.StartTime), true
}

// Finish moves the execution into a terminal status.
func (e *Execution) Finish(status ExecutionStatus, at time.Time) {
	e.Status = status
	e.EndTime = &at
}

// Snapshot copies the execution so readers never observe a run in progress
// mutating its step list.
func (e *Execution) Snapshot() *Execution {
	if e == nil {
		return nil
	}

	clone := *e
	if e.EndTime != nil {
		end := *e.EndTime
		clone.EndTime = &end
	}

	clone.Steps = make([]*ExecutionStep, len(e.Steps))
	for i, step := range e.Steps {
		stepCopy := *step
		if step.EndTime != nil {
			end := *step.EndTime
			stepCopy.EndTime = &end
		}

		clone.Steps[i] = &stepCopy
	}

	return &clone
}
