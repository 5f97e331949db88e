package persistence_test

import (
	"errors"
	"testing"
	"time"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "welcome-new-customer", persistence.ErrWorkflowNotFound)
		executionErr := persistence.NewExecutionError("GetByID", "exec-1", persistence.ErrExecutionNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsExecutionNotFound(executionErr))
		assert.False(t, persistence.IsWorkflowNotFound(executionErr))

		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
		assert.True(t, errors.Is(executionErr, persistence.ErrExecutionNotFound))
	})

	t.Run("errors contain context", func(t *testing.T) {
		err := persistence.NewWorkflowError("Delete", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.Contains(t, err.Error(), "Delete")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "workflow not found")

		execErr := persistence.NewExecutionError("Save", "exec-9", persistence.ErrInvalidID)
		assert.Contains(t, execErr.Error(), "exec-9")
		assert.Contains(t, execErr.Error(), "invalid identifier")
	})
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	executions := []*models.Execution{
		{ID: "b", StartTime: base},
		{ID: "c", StartTime: base.Add(time.Minute)},
		{ID: "a", StartTime: base},
	}

	persistence.SortNewestFirst(executions)

	ids := []string{executions[0].ID, executions[1].ID, executions[2].ID}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}
