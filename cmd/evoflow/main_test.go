package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, value any) string {
	t.Helper()

	data, err := json.Marshal(value)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "workflows.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	app := newApp()
	app.Writer = &out

	err := app.Run(context.Background(), append([]string{"evoflow", "--log-level", "error"}, args...))

	return out.String(), err
}

func TestPickWorkflow(t *testing.T) {
	workflows := []*models.Workflow{
		testutil.CreateTestWorkflow(testutil.WithID("a")),
		testutil.CreateTestWorkflow(testutil.WithID("b")),
	}

	id, err := pickWorkflow(workflows, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", id)

	_, err = pickWorkflow(workflows, "")
	require.Error(t, err)

	_, err = pickWorkflow(workflows, "c")
	require.Error(t, err)

	id, err = pickWorkflow(workflows[:1], "")
	require.NoError(t, err)
	assert.Equal(t, "a", id)
}

func TestValidateCommand(t *testing.T) {
	valid := writeJSON(t, []*models.Workflow{
		testutil.CreateTestWorkflow(testutil.WithID("ok-1")),
		testutil.CreateTestWorkflow(testutil.WithID("ok-2"),
			testutil.WithTrigger(models.Trigger{Type: models.TriggerTypeSchedule, Cron: "0 9 * * 1"})),
	})

	out, err := runApp(t, "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "OK   "+valid+" ok-1")
	assert.Contains(t, out, "OK   "+valid+" ok-2")

	invalid := writeJSON(t, testutil.CreateTestWorkflow(testutil.WithID("bad"), func(w *models.Workflow) {
		w.Actions = nil
	}))

	out, err = runApp(t, "validate", valid, invalid)
	require.ErrorIs(t, err, ErrInvalidDefinitions)
	assert.Contains(t, out, "FAIL "+invalid+" bad")
}

func TestRunCommand(t *testing.T) {
	path := writeJSON(t, testutil.CreateTestWorkflow(testutil.WithID("dry"), testutil.Disabled(),
		testutil.WithConditions(models.Condition{Field: "user.role", Operator: models.OperatorEquals, Value: "customer"})))

	out, err := runApp(t, "run", "--file", path, "--input", `{"user":{"role":"customer"}}`)
	require.NoError(t, err)

	var execution models.Execution
	require.NoError(t, json.Unmarshal([]byte(out), &execution))
	assert.Equal(t, "dry", execution.WorkflowID)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.Len(t, execution.Steps, 1)

	out, err = runApp(t, "run", "--file", path, "--input", `{"user":{"role":"trainer"}}`)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &execution))
	assert.Equal(t, models.ExecutionStatusSkipped, execution.Status)

	_, err = runApp(t, "run", "--file", path, "--input", `not json`)
	require.Error(t, err)
}

func TestRunCommand_NestedDefaults(t *testing.T) {
	path := writeJSON(t, testutil.CreateTestWorkflow(testutil.WithID("parent"), testutil.WithActions(
		testutil.CreateTestAction("setup", models.ActionTypeWorkflow,
			testutil.WithConfig(map[string]any{"workflow_id": "trainer-workspace-setup"})),
	)))

	out, err := runApp(t, "run", "--file", path, "--with-defaults", "--input", `{"user":{"id":"t-1"}}`)
	require.NoError(t, err)

	var execution models.Execution
	require.NoError(t, json.Unmarshal([]byte(out), &execution))
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.Len(t, execution.Steps, 1)
	assert.Equal(t, models.StepStatusCompleted, execution.Steps[0].Status)
}

func TestValidateCommand_Examples(t *testing.T) {
	out, err := runApp(t, "validate",
		filepath.Join("..", "..", "examples", "workflows", "customer-onboarding.yaml"),
		filepath.Join("..", "..", "examples", "workflows", "partner-sync.json"),
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "premium-customer-welcome")
	assert.Contains(t, out, "hydration-check")
	assert.Contains(t, out, "partner-plan-sync")
}
