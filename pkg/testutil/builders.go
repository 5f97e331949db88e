// Package testutil provides test data builders and shared contract tests.
package testutil

import (
	"time"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestWorkflow creates an enabled manual workflow with one email action.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:          "wf-" + uuid.New().String()[:8],
		Name:        "Test Workflow",
		Description: "A workflow built for tests",
		Trigger:     models.Trigger{Type: models.TriggerTypeManual},
		Actions: []models.Action{
			CreateTestAction("send-email", models.ActionTypeEmail),
		},
		Enabled: true,
		Metadata: models.WorkflowMetadata{
			CreatedAt:   now,
			UpdatedAt:   now,
			SuccessRate: 1.0,
		},
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// CreateTestAction creates an action whose config satisfies its type.
func CreateTestAction(id string, actionType models.ActionType, overrides ...func(*models.Action)) models.Action {
	action := models.Action{
		ID:     id,
		Type:   actionType,
		Config: defaultConfig(actionType),
	}

	for _, override := range overrides {
		override(&action)
	}

	return action
}

func defaultConfig(actionType models.ActionType) map[string]any {
	switch actionType {
	case models.ActionTypeEmail:
		return map[string]any{"to": "customer@example.com", "template": "welcome"}
	case models.ActionTypeNotification:
		return map[string]any{"recipient": "u-1", "message": "Your plan is ready"}
	case models.ActionTypeUpdateData:
		return map[string]any{"entity": "customer", "key": "u-1", "fields": map[string]any{"status": "active"}}
	case models.ActionTypeAPICall:
		return map[string]any{"method": "POST", "url": "https://api.example.com/hooks"}
	case models.ActionTypeAssignTask:
		return map[string]any{"assignee": "trainer-1", "task": "Review new client"}
	case models.ActionTypeCreateContent:
		return map[string]any{"content_type": "meal_plan", "title": "Starter plan"}
	case models.ActionTypeAnalytics:
		return map[string]any{"event": "workflow_test"}
	default:
		return map[string]any{}
	}
}

func WithID(id string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.ID = id
	}
}

func WithTrigger(trigger models.Trigger) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Trigger = trigger
	}
}

func WithConditions(conditions ...models.Condition) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Conditions = conditions
	}
}

func WithActions(actions ...models.Action) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Actions = actions
	}
}

func Disabled() func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Enabled = false
	}
}

// WithRetry attaches a retry policy to an action.
func WithRetry(maxAttempts, backoffMs int) func(*models.Action) {
	return func(a *models.Action) {
		a.RetryPolicy = &models.RetryPolicy{MaxAttempts: maxAttempts, BackoffMs: backoffMs}
	}
}

func WithOnSuccess(actions ...models.Action) func(*models.Action) {
	return func(a *models.Action) {
		a.OnSuccess = actions
	}
}

func WithOnFailure(actions ...models.Action) func(*models.Action) {
	return func(a *models.Action) {
		a.OnFailure = actions
	}
}

func WithConfig(config map[string]any) func(*models.Action) {
	return func(a *models.Action) {
		a.Config = config
	}
}

// CreateTestExecution creates a finished execution of workflowID.
func CreateTestExecution(id, workflowID string, status models.ExecutionStatus, start time.Time, duration time.Duration) *models.Execution {
	end := start.Add(duration)

	execution := &models.Execution{
		ID:         id,
		WorkflowID: workflowID,
		Trigger:    models.TriggerTypeManual,
		StartTime:  start,
		EndTime:    &end,
		Status:     status,
		Input:      map[string]any{"user": map[string]any{"role": "customer"}},
		Steps: []*models.ExecutionStep{{
			ActionID:   "send-email",
			ActionType: models.ActionTypeEmail,
			StartTime:  start,
			EndTime:    &end,
			Status:     models.StepStatusCompleted,
			Attempts:   1,
			Output:     map[string]any{"queued": true},
		}},
	}

	if status == models.ExecutionStatusFailed {
		execution.Error = "smtp unavailable"
		execution.Steps[0].Status = models.StepStatusFailed
		execution.Steps[0].Error = "smtp unavailable"
		execution.Steps[0].Output = nil
	}

	return execution
}
