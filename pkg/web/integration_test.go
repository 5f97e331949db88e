//go:build integration

package web_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/persistence/postgresql"
	"github.com/evofitmeals/evoflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupTestDB(t *testing.T) *postgresql.Persistence {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("evoflow_web"),
		postgres.WithUsername("evoflow"),
		postgres.WithPassword("evoflow"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	databaseURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := postgresql.NewPersistence(ctx, discardLogger(), databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	return store
}

func TestWorkflowLifecycle_Integration(t *testing.T) {
	store := setupTestDB(t)
	a := setupTestAppWith(t, store)

	status, body := a.do(t, http.MethodPost, "/workflows", testutil.CreateTestWorkflow(testutil.WithID("pg-plan")))
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = a.do(t, http.MethodPost, "/workflows/pg-plan/run", map[string]any{"input": map[string]any{"userId": "u-1"}})
	require.Equal(t, http.StatusOK, status, string(body))

	execution := decode[models.Execution](t, body)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	stored, err := store.ExecutionRepository().GetByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, "pg-plan", stored.WorkflowID)

	workflow, err := store.WorkflowRepository().GetByID(context.Background(), "pg-plan")
	require.NoError(t, err)
	assert.Equal(t, int64(1), workflow.Metadata.ExecutionCount)

	// A second app over the same database loads the stored definitions.
	reloaded := setupTestAppWith(t, store)

	status, body = reloaded.do(t, http.MethodGet, "/workflows/pg-plan/stats", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"total_executions":1`)

	status, _ = reloaded.do(t, http.MethodDelete, "/workflows/pg-plan", nil)
	assert.Equal(t, http.StatusNoContent, status)

	_, err = store.WorkflowRepository().GetByID(context.Background(), "pg-plan")
	assert.Error(t, err)
}
