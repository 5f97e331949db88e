package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWorkflowRepositoryContract exercises the behaviour every
// persistence.WorkflowRepository implementation must share.
func RunWorkflowRepositoryContract(t *testing.T, repo persistence.WorkflowRepository) {
	t.Helper()

	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		workflow := CreateTestWorkflow(WithID("contract-save"), WithConditions(models.Condition{
			Field: "user.role", Operator: models.OperatorEquals, Value: "customer",
		}))
		workflow.Actions[0].RetryPolicy = &models.RetryPolicy{MaxAttempts: 2, BackoffMs: 10}

		require.NoError(t, repo.Save(ctx, workflow))

		stored, err := repo.GetByID(ctx, "contract-save")
		require.NoError(t, err)
		assert.Equal(t, workflow.Name, stored.Name)
		assert.Equal(t, workflow.Trigger, stored.Trigger)
		assert.Equal(t, "customer", stored.Conditions[0].Value)
		assert.Equal(t, 2, stored.Actions[0].RetryPolicy.MaxAttempts)
		assert.InDelta(t, 1.0, stored.Metadata.SuccessRate, 1e-9)
	})

	t.Run("save replaces", func(t *testing.T) {
		workflow := CreateTestWorkflow(WithID("contract-replace"))
		require.NoError(t, repo.Save(ctx, workflow))

		now := time.Now().UTC().Truncate(time.Millisecond)
		workflow.Metadata.RecordRun(false, now)
		workflow.Enabled = false
		require.NoError(t, repo.Save(ctx, workflow))

		stored, err := repo.GetByID(ctx, "contract-replace")
		require.NoError(t, err)
		assert.False(t, stored.Enabled)
		assert.Equal(t, int64(1), stored.Metadata.ExecutionCount)
		assert.InDelta(t, 0.0, stored.Metadata.SuccessRate, 1e-9)
		require.NotNil(t, stored.Metadata.LastExecutedAt)
		assert.True(t, now.Equal(*stored.Metadata.LastExecutedAt))
	})

	t.Run("get all", func(t *testing.T) {
		all, err := repo.GetAll(ctx)
		require.NoError(t, err)

		ids := make([]string, 0, len(all))
		for _, workflow := range all {
			ids = append(ids, workflow.ID)
		}

		assert.Contains(t, ids, "contract-save")
		assert.Contains(t, ids, "contract-replace")
	})

	t.Run("missing workflow", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "contract-missing")
		assert.True(t, persistence.IsWorkflowNotFound(err))

		err = repo.Delete(ctx, "contract-missing")
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "contract-save"))

		_, err := repo.GetByID(ctx, "contract-save")
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})
}

// RunExecutionRepositoryContract exercises the behaviour every
// persistence.ExecutionRepository implementation must share.
func RunExecutionRepositoryContract(t *testing.T, repo persistence.ExecutionRepository) {
	t.Helper()

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("save and get", func(t *testing.T) {
		execution := CreateTestExecution("exec-contract1", "wf-a", models.ExecutionStatusCompleted, base, 250*time.Millisecond)
		execution.Output = map[string]any{"send-email": map[string]any{"queued": true}}

		require.NoError(t, repo.Save(ctx, execution))

		stored, err := repo.GetByID(ctx, "exec-contract1")
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
		assert.Equal(t, "wf-a", stored.WorkflowID)
		require.Len(t, stored.Steps, 1)
		assert.Equal(t, models.StepStatusCompleted, stored.Steps[0].Status)
		assert.Equal(t, 1, stored.Steps[0].Attempts)

		duration, ok := stored.Duration()
		assert.True(t, ok)
		assert.Equal(t, 250*time.Millisecond, duration)
	})

	t.Run("save updates a running record", func(t *testing.T) {
		execution := &models.Execution{
			ID:         "exec-contract2",
			WorkflowID: "wf-a",
			Trigger:    models.TriggerTypeEvent,
			StartTime:  base.Add(time.Minute),
			Status:     models.ExecutionStatusRunning,
			Steps:      []*models.ExecutionStep{},
		}
		require.NoError(t, repo.Save(ctx, execution))

		execution.Finish(models.ExecutionStatusFailed, base.Add(2*time.Minute))
		execution.Error = "payment api down"
		require.NoError(t, repo.Save(ctx, execution))

		stored, err := repo.GetByID(ctx, "exec-contract2")
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
		assert.Equal(t, "payment api down", stored.Error)
		assert.NotNil(t, stored.EndTime)
	})

	t.Run("list newest first", func(t *testing.T) {
		other := CreateTestExecution("exec-contract3", "wf-b", models.ExecutionStatusCompleted, base.Add(time.Hour), time.Second)
		require.NoError(t, repo.Save(ctx, other))

		forA, err := repo.ListByWorkflow(ctx, "wf-a")
		require.NoError(t, err)
		require.Len(t, forA, 2)
		assert.Equal(t, "exec-contract2", forA[0].ID)
		assert.Equal(t, "exec-contract1", forA[1].ID)

		all, err := repo.ListByWorkflow(ctx, "")
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(all), 3)
		assert.Equal(t, "exec-contract3", all[0].ID)

		none, err := repo.ListByWorkflow(ctx, "wf-none")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("missing execution", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "exec-missing")
		assert.True(t, persistence.IsExecutionNotFound(err))
	})
}
