package engine

import (
	"context"
	"time"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/persistence"
)

// WorkflowStats summarises a workflow's execution history.
type WorkflowStats struct {
	WorkflowID      string     `json:"workflow_id"`
	TotalExecutions int        `json:"total_executions"`
	Successful      int        `json:"successful"`
	Failed          int        `json:"failed"`
	SuccessRate     float64    `json:"success_rate"`
	AvgDurationMs   float64    `json:"avg_duration_ms"`
	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
}

// recordOutcome folds a completed or failed run into the workflow metadata.
// Updates for one workflow are serialized so saves land in order.
func (e *Engine) recordOutcome(ctx context.Context, workflowID string, succeeded bool, at time.Time) {
	lock := e.locks.get(workflowID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()

	workflow, exists := e.index[workflowID]
	if !exists {
		e.mu.Unlock()
		e.logger.DebugContext(ctx, "Workflow removed before its run finished", "workflow_id", workflowID)

		return
	}

	workflow.Metadata.RecordRun(succeeded, at)
	saved := workflow.Clone()
	e.mu.Unlock()

	err := e.workflows.Save(ctx, saved)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to save workflow metadata", "workflow_id", workflowID, "error", err)
	}
}

// GetExecution returns one recorded run.
func (e *Engine) GetExecution(ctx context.Context, executionID string) (*models.Execution, error) {
	return e.history.GetByID(ctx, executionID)
}

// GetExecutionHistory returns the runs of a workflow, newest first. An
// empty id returns every run.
func (e *Engine) GetExecutionHistory(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	executions, err := e.history.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	persistence.SortNewestFirst(executions)

	return executions, nil
}

// GetWorkflowStats computes statistics from the recorded history. The rate
// is zero when nothing ran; the average covers finished runs only.
func (e *Engine) GetWorkflowStats(ctx context.Context, workflowID string) (*WorkflowStats, error) {
	workflow, ok := e.lookup(workflowID)
	if !ok {
		return nil, newWorkflowError("stats", workflowID, ErrWorkflowNotFound)
	}

	executions, err := e.history.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	stats := &WorkflowStats{
		WorkflowID:      workflowID,
		TotalExecutions: len(executions),
		LastExecutedAt:  workflow.Metadata.LastExecutedAt,
	}

	var (
		total    time.Duration
		finished int
	)

	for _, execution := range executions {
		switch execution.Status {
		case models.ExecutionStatusCompleted:
			stats.Successful++
		case models.ExecutionStatusFailed:
			stats.Failed++
		default:
		}

		if duration, ok := execution.Duration(); ok {
			total += duration
			finished++
		}
	}

	if stats.TotalExecutions > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.TotalExecutions)
	}

	if finished > 0 {
		stats.AvgDurationMs = float64(total.Milliseconds()) / float64(finished)
	}

	return stats, nil
}
