package engine

import (
	"errors"
	"fmt"
)

// Definition errors are returned to the caller. Failures inside a run are
// recorded on the execution instead.
var (
	ErrWorkflowNotFound    = errors.New("workflow not found")
	ErrWorkflowDisabled    = errors.New("workflow is disabled")
	ErrWorkflowExists      = errors.New("workflow already exists")
	ErrInvalidWorkflow     = errors.New("invalid workflow")
	ErrWebhookNotFound     = errors.New("no workflow registered for webhook path")
	ErrWebhookPathConflict = errors.New("webhook path already registered")
	ErrInvalidPayload      = errors.New("invalid webhook payload")
	ErrExecutionIDConflict = errors.New("execution id already used by another workflow")

	// Nested workflow guards. Both surface as a failed workflow step.
	ErrMaxDepthExceeded = errors.New("maximum workflow nesting depth exceeded")
	ErrWorkflowCycle    = errors.New("workflow cycle detected")

	ErrRunPanicked = errors.New("workflow run panicked")
)

// WorkflowError wraps an engine error with the operation and workflow it
// concerns.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	if e.WorkflowID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func newWorkflowError(op, workflowID string, err error) error {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsNotFound reports whether err means the addressed workflow or webhook does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) || errors.Is(err, ErrWebhookNotFound)
}

// IsValidation reports whether err was caused by a bad definition or payload.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidWorkflow) || errors.Is(err, ErrInvalidPayload)
}

// IsConflict reports whether err was caused by a clash with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrWorkflowExists) ||
		errors.Is(err, ErrWebhookPathConflict) ||
		errors.Is(err, ErrExecutionIDConflict) ||
		errors.Is(err, ErrWorkflowDisabled)
}
