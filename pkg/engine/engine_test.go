package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/evofitmeals/evoflow/pkg/conditions"
	"github.com/evofitmeals/evoflow/pkg/eventbus"
	"github.com/evofitmeals/evoflow/pkg/events"
	"github.com/evofitmeals/evoflow/pkg/mocks"
	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/persistence/memory"
	"github.com/evofitmeals/evoflow/pkg/registry"
	"github.com/evofitmeals/evoflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine    *Engine
	store     *memory.Persistence
	factories map[models.ActionType]*mocks.MockActionFactory
}

func (f *fixture) action(actionType models.ActionType) *mocks.MockActionFactory {
	return f.factories[actionType]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	reg := registry.NewRegistry(discardLogger())
	factories := make(map[models.ActionType]*mocks.MockActionFactory)

	for _, actionType := range models.ActionTypes() {
		if actionType == models.ActionTypeWorkflow {
			continue
		}

		factory := mocks.NewMockActionFactory(string(actionType))
		reg.RegisterAction(factory)
		factories[actionType] = factory
	}

	store := memory.NewPersistence()

	engine, err := New(context.Background(), Dependencies{
		Registry:    reg,
		Persistence: store,
		Logger:      discardLogger(),
	}, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = engine.Close(context.Background())
	})

	return &fixture{engine: engine, store: store, factories: factories}
}

func (f *fixture) add(t *testing.T, workflow *models.Workflow) *models.Workflow {
	t.Helper()

	added, err := f.engine.AddWorkflow(context.Background(), workflow)
	require.NoError(t, err)

	return added
}

func TestRun_DisabledWorkflowIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	manual := f.add(t, testutil.CreateTestWorkflow(testutil.WithID("manual"), testutil.Disabled()))
	webhook := f.add(t, testutil.CreateTestWorkflow(testutil.WithID("hook"), testutil.Disabled(),
		testutil.WithTrigger(models.Trigger{Type: models.TriggerTypeWebhook, Path: "/orders"})))
	f.add(t, testutil.CreateTestWorkflow(testutil.WithID("event"), testutil.Disabled(),
		testutil.WithTrigger(models.Trigger{Type: models.TriggerTypeEvent, Event: "user.registered"})))
	fact := f.add(t, testutil.CreateTestWorkflow(testutil.WithID("fact"), testutil.Disabled(),
		testutil.WithTrigger(models.Trigger{Type: models.TriggerTypeCondition, Fact: map[string]any{"type": "object"}})))

	_, err := f.engine.RunManual(ctx, manual.ID, nil, "")
	require.ErrorIs(t, err, ErrWorkflowDisabled)

	_, err = f.engine.InvokeWebhook(ctx, webhook.Trigger.Path, map[string]any{})
	require.ErrorIs(t, err, ErrWorkflowDisabled)

	_, err = f.engine.OnFactMatch(ctx, fact.ID, map[string]any{})
	require.ErrorIs(t, err, ErrWorkflowDisabled)

	assert.Empty(t, f.engine.Publish(ctx, "user.registered", map[string]any{}))

	executions, err := f.engine.AssertFacts(ctx, map[string]any{"role": "customer"})
	require.NoError(t, err)
	assert.Empty(t, executions)

	history, err := f.engine.GetExecutionHistory(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, history)

	f.action(models.ActionTypeEmail).AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRun_UnknownWorkflow(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.RunManual(context.Background(), "missing", nil, "")
	require.ErrorIs(t, err, ErrWorkflowNotFound)
	assert.True(t, IsNotFound(err))

	var workflowErr *WorkflowError
	require.ErrorAs(t, err, &workflowErr)
	assert.Equal(t, "missing", workflowErr.WorkflowID)
}

func TestRun_EmptyConditionsAlwaysProceed(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return("sent", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow())

	for _, input := range []map[string]any{nil, {}, {"user": map[string]any{"role": "anyone"}}} {
		execution, err := f.engine.RunManual(context.Background(), workflow.ID, input, "")
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
		assert.Len(t, execution.Steps, 1)
	}
}

func TestRun_AndShortCircuitSkipsRun(t *testing.T) {
	calls := make(map[string]int)
	evaluator := conditions.NewEvaluatorWithPredicate(func(condition models.Condition, _ any) bool {
		calls[condition.Field]++

		return condition.Field == "b"
	})

	f := newFixture(t, WithEvaluator(evaluator))

	workflow := f.add(t, testutil.CreateTestWorkflow(testutil.WithConditions(
		models.Condition{Field: "a", Operator: models.OperatorEquals},
		models.Condition{Field: "b", Operator: models.OperatorEquals},
	)))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSkipped, execution.Status)
	assert.Equal(t, 1, calls["a"])
	assert.Zero(t, calls["b"])
	f.action(models.ActionTypeEmail).AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRun_OrDisablesShortCircuit(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return("sent", nil)

	input := map[string]any{"a": 1, "b": 2}
	notA := models.Condition{Field: "a", Operator: models.OperatorEquals, Value: 0}
	isB := models.Condition{Field: "b", Operator: models.OperatorEquals, Value: 2, CombineWith: models.CombineOr}

	withOr := f.add(t, testutil.CreateTestWorkflow(testutil.WithConditions(notA, isB)))
	withoutOr := f.add(t, testutil.CreateTestWorkflow(testutil.WithConditions(notA)))

	execution, err := f.engine.RunManual(context.Background(), withOr.ID, input, "")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	execution, err = f.engine.RunManual(context.Background(), withoutOr.ID, input, "")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSkipped, execution.Status)
}

func TestRun_RetryExhaustionContinuesRun(t *testing.T) {
	f := newFixture(t)
	email := f.action(models.ActionTypeEmail)
	analytics := f.action(models.ActionTypeAnalytics)

	email.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("smtp unavailable"))
	analytics.On("Execute", mock.Anything, mock.Anything).Return("tracked", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow(testutil.WithActions(
		testutil.CreateTestAction("send-email", models.ActionTypeEmail, testutil.WithRetry(2, 10)),
		testutil.CreateTestAction("track", models.ActionTypeAnalytics),
	)))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)

	email.AssertNumberOfCalls(t, "Execute", 3)
	analytics.AssertNumberOfCalls(t, "Execute", 1)

	require.Len(t, execution.Steps, 2)
	assert.Equal(t, models.StepStatusFailed, execution.Steps[0].Status)
	assert.Equal(t, 3, execution.Steps[0].Attempts)
	assert.Equal(t, "smtp unavailable", execution.Steps[0].Error)
	assert.Equal(t, models.StepStatusCompleted, execution.Steps[1].Status)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, map[string]any{"track": "tracked"}, execution.Output)
}

func TestRun_RetryExhaustionFailsRunWhenConfigured(t *testing.T) {
	f := newFixture(t, WithFailOnRetryExhausted())
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("smtp unavailable"))

	workflow := f.add(t, testutil.CreateTestWorkflow(testutil.WithActions(
		testutil.CreateTestAction("send-email", models.ActionTypeEmail, testutil.WithRetry(1, 1)),
		testutil.CreateTestAction("track", models.ActionTypeAnalytics),
	)))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, "smtp unavailable", execution.Error)
	f.action(models.ActionTypeAnalytics).AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRun_RetryRecovers(t *testing.T) {
	f := newFixture(t)
	email := f.action(models.ActionTypeEmail)
	email.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()
	email.On("Execute", mock.Anything, mock.Anything).Return("sent", nil).Once()

	workflow := f.add(t, testutil.CreateTestWorkflow(testutil.WithActions(
		testutil.CreateTestAction("send-email", models.ActionTypeEmail, testutil.WithRetry(3, 1)),
	)))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)

	require.Len(t, execution.Steps, 1)
	assert.Equal(t, models.StepStatusCompleted, execution.Steps[0].Status)
	assert.Equal(t, 2, execution.Steps[0].Attempts)
	assert.Empty(t, execution.Steps[0].Error)
	assert.Equal(t, "sent", execution.Steps[0].Output)
}

func TestRun_FailFastWithoutRetryPolicy(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("mailbox full"))

	workflow := f.add(t, testutil.CreateTestWorkflow(testutil.WithActions(
		testutil.CreateTestAction("send-email", models.ActionTypeEmail),
		testutil.CreateTestAction("track", models.ActionTypeAnalytics),
	)))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, "mailbox full", execution.Error)
	assert.NotNil(t, execution.EndTime)
	assert.Len(t, execution.Steps, 1)
	assert.Nil(t, execution.Output)
	f.action(models.ActionTypeAnalytics).AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRun_Branches(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("bounced"))
	f.action(models.ActionTypeNotification).On("Execute", mock.Anything, mock.Anything).Return("pushed", nil)
	f.action(models.ActionTypeUpdateData).On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

	workflow := f.add(t, testutil.CreateTestWorkflow(testutil.WithActions(
		testutil.CreateTestAction("notify", models.ActionTypeNotification,
			testutil.WithOnSuccess(testutil.CreateTestAction("email-copy", models.ActionTypeEmail,
				testutil.WithOnFailure(testutil.CreateTestAction("flag-bounce", models.ActionTypeUpdateData)),
			)),
		),
	)))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)

	require.Len(t, execution.Steps, 3)
	assert.Equal(t, "notify", execution.Steps[0].ActionID)
	assert.Equal(t, models.StepStatusCompleted, execution.Steps[0].Status)
	assert.Equal(t, "email-copy", execution.Steps[1].ActionID)
	assert.Equal(t, models.StepStatusFailed, execution.Steps[1].Status)
	assert.Equal(t, "flag-bounce", execution.Steps[2].ActionID)
	assert.Equal(t, models.StepStatusFailed, execution.Steps[2].Status)

	// The failure handler's error is swallowed; the failing onSuccess action fails the run.
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, "bounced", execution.Error)
}

func TestRun_MetadataOnlyForFinishedRuns(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return("sent", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow(testutil.WithConditions(
		models.Condition{Field: "go", Operator: models.OperatorEquals, Value: true},
	)))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{"go": false}, "")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSkipped, execution.Status)

	stored, err := f.engine.GetWorkflow(workflow.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Metadata.ExecutionCount)
	assert.Nil(t, stored.Metadata.LastExecutedAt)

	_, err = f.engine.RunManual(context.Background(), workflow.ID, map[string]any{"go": true}, "")
	require.NoError(t, err)

	stored, err = f.engine.GetWorkflow(workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Metadata.ExecutionCount)
	assert.NotNil(t, stored.Metadata.LastExecutedAt)

	persisted, err := f.store.WorkflowRepository().GetByID(context.Background(), workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), persisted.Metadata.ExecutionCount)
}

func TestRun_SuccessRateRollingUpdate(t *testing.T) {
	f := newFixture(t)
	email := f.action(models.ActionTypeEmail)
	email.On("Execute", mock.Anything, mock.Anything).Return("sent", nil).Once()
	email.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("bounced")).Once()
	email.On("Execute", mock.Anything, mock.Anything).Return("sent", nil).Once()

	workflow := f.add(t, testutil.CreateTestWorkflow())

	expected := []float64{1.0, 0.5, 2.0 / 3.0}

	for i, want := range expected {
		_, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
		require.NoError(t, err)

		stored, err := f.engine.GetWorkflow(workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), stored.Metadata.ExecutionCount)
		assert.InDelta(t, want, stored.Metadata.SuccessRate, 0.001)
	}
}

func TestRun_NestedWorkflow(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeAnalytics).On("Execute", mock.Anything, mock.Anything).Return("tracked", nil)

	child := f.add(t, testutil.CreateTestWorkflow(testutil.WithID("child"), testutil.WithActions(
		testutil.CreateTestAction("track", models.ActionTypeAnalytics),
	)))
	parent := f.add(t, testutil.CreateTestWorkflow(testutil.WithID("parent"), testutil.WithActions(
		testutil.CreateTestAction("call-child", models.ActionTypeWorkflow,
			testutil.WithConfig(map[string]any{"workflow_id": child.ID})),
	)))

	input := map[string]any{"user": map[string]any{"id": "u-1"}}

	execution, err := f.engine.RunManual(context.Background(), parent.ID, input, "")
	require.NoError(t, err)
	require.Len(t, execution.Steps, 1)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	nested, ok := execution.Steps[0].Output.(*models.Execution)
	require.True(t, ok)
	assert.Equal(t, child.ID, nested.WorkflowID)
	assert.Equal(t, models.ExecutionStatusCompleted, nested.Status)
	assert.Equal(t, 1, nested.Depth)
	assert.Equal(t, input, nested.Input)
	assert.Len(t, nested.Steps, 1)

	for _, id := range []string{parent.ID, child.ID} {
		stored, err := f.engine.GetWorkflow(id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Metadata.ExecutionCount, id)
	}

	history, err := f.engine.GetExecutionHistory(context.Background(), child.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, nested.ID, history[0].ID)
}

func TestRun_NestedWorkflowInputOverride(t *testing.T) {
	f := newFixture(t)
	override := map[string]any{"plan": "keto"}
	f.action(models.ActionTypeAnalytics).On("Execute", mock.Anything, override).Return("tracked", nil)

	child := f.add(t, testutil.CreateTestWorkflow(testutil.WithActions(
		testutil.CreateTestAction("track", models.ActionTypeAnalytics),
	)))
	parent := f.add(t, testutil.CreateTestWorkflow(testutil.WithActions(
		testutil.CreateTestAction("call-child", models.ActionTypeWorkflow,
			testutil.WithConfig(map[string]any{"workflow_id": child.ID, "input": override})),
	)))

	execution, err := f.engine.RunManual(context.Background(), parent.ID, map[string]any{"plan": "paleo"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	f.action(models.ActionTypeAnalytics).AssertNumberOfCalls(t, "Execute", 1)
}

func TestRun_NestedCycleIsRejected(t *testing.T) {
	f := newFixture(t)

	workflow := f.add(t, testutil.CreateTestWorkflow(testutil.WithID("loop"), testutil.WithActions(
		testutil.CreateTestAction("self", models.ActionTypeWorkflow,
			testutil.WithConfig(map[string]any{"workflow_id": "loop"})),
	)))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, ErrWorkflowCycle.Error())
}

func TestRun_NestedDepthLimit(t *testing.T) {
	f := newFixture(t, WithMaxDepth(1))

	f.add(t, testutil.CreateTestWorkflow(testutil.WithID("c")))
	f.add(t, testutil.CreateTestWorkflow(testutil.WithID("b"), testutil.WithActions(
		testutil.CreateTestAction("call-c", models.ActionTypeWorkflow, testutil.WithConfig(map[string]any{"workflow_id": "c"})),
	)))
	f.add(t, testutil.CreateTestWorkflow(testutil.WithID("a"), testutil.WithActions(
		testutil.CreateTestAction("call-b", models.ActionTypeWorkflow, testutil.WithConfig(map[string]any{"workflow_id": "b"})),
	)))

	execution, err := f.engine.RunManual(context.Background(), "a", map[string]any{}, "")
	require.NoError(t, err)

	// a completes; the nested run of b failed when it tried to go one level deeper.
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	nested, ok := execution.Steps[0].Output.(*models.Execution)
	require.True(t, ok)
	assert.Equal(t, models.ExecutionStatusFailed, nested.Status)
	assert.Contains(t, nested.Error, ErrMaxDepthExceeded.Error())
	f.action(models.ActionTypeEmail).AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRun_NestedUnknownWorkflowFailsStep(t *testing.T) {
	f := newFixture(t)

	workflow := f.add(t, testutil.CreateTestWorkflow(testutil.WithActions(
		testutil.CreateTestAction("call", models.ActionTypeWorkflow, testutil.WithConfig(map[string]any{"workflow_id": "ghost"})),
	)))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, ErrWorkflowNotFound.Error())
}

func TestRun_CustomerScenario(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return("sent", nil)
	f.action(models.ActionTypeAnalytics).On("Execute", mock.Anything, mock.Anything).Return("tracked", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow(
		testutil.WithConditions(models.Condition{Field: "user.role", Operator: models.OperatorEquals, Value: "customer"}),
		testutil.WithActions(
			testutil.CreateTestAction("send-email", models.ActionTypeEmail),
			testutil.CreateTestAction("track", models.ActionTypeAnalytics),
		),
	))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID,
		map[string]any{"user": map[string]any{"role": "customer"}}, "")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.Len(t, execution.Steps, 2)

	for _, step := range execution.Steps {
		assert.Equal(t, models.StepStatusCompleted, step.Status)
	}

	before, err := f.engine.GetWorkflow(workflow.ID)
	require.NoError(t, err)

	execution, err = f.engine.RunManual(context.Background(), workflow.ID,
		map[string]any{"user": map[string]any{"role": "trainer"}}, "")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSkipped, execution.Status)
	assert.Empty(t, execution.Steps)
	assert.NotNil(t, execution.EndTime)

	after, err := f.engine.GetWorkflow(workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Metadata, after.Metadata)
}

func TestRun_PanicFailsRun(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("template exploded") })

	workflow := f.add(t, testutil.CreateTestWorkflow())

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "template exploded")

	stored, err := f.engine.GetWorkflow(workflow.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, stored.Metadata.SuccessRate, 0.0001)
}

func TestRun_RendersConfigTemplates(t *testing.T) {
	f := newFixture(t)
	rendered := map[string]any{"to": "ana@example.com", "template": "welcome"}
	f.action(models.ActionTypeEmail).On("Execute", rendered, mock.Anything).Return("sent", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow(testutil.WithActions(
		testutil.CreateTestAction("send-email", models.ActionTypeEmail, testutil.WithConfig(map[string]any{
			"to":       "{{ .input.user.email }}",
			"template": "welcome",
		})),
	)))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID,
		map[string]any{"user": map[string]any{"email": "ana@example.com"}}, "")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}

func TestRunManual_CallerSuppliedExecutionID(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return("sent", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow())

	first, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "order-42")
	require.NoError(t, err)
	assert.Equal(t, "order-42", first.ID)

	second, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "order-42")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	f.action(models.ActionTypeEmail).AssertNumberOfCalls(t, "Execute", 1)

	generated, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)
	assert.Regexp(t, `^exec-[0-9a-f]{8}$`, generated.ID)
}

func TestRunManual_ExecutionIDOwnedByAnotherWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return("sent", nil)

	first := f.add(t, testutil.CreateTestWorkflow(testutil.WithID("wf-a")))
	second := f.add(t, testutil.CreateTestWorkflow(testutil.WithID("wf-b")))

	_, err := f.engine.RunManual(ctx, first.ID, map[string]any{}, "key-1")
	require.NoError(t, err)

	_, err = f.engine.RunManual(ctx, second.ID, map[string]any{}, "key-1")
	require.ErrorIs(t, err, ErrExecutionIDConflict)
	assert.True(t, IsConflict(err))

	recorded, err := f.engine.GetExecution(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-a", recorded.WorkflowID)

	history, err := f.engine.GetExecutionHistory(ctx, "wf-a")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	history, err = f.engine.GetExecutionHistory(ctx, "wf-b")
	require.NoError(t, err)
	assert.Empty(t, history)
	f.action(models.ActionTypeEmail).AssertNumberOfCalls(t, "Execute", 1)
}

func TestRunManual_ExecutionIDDoesNotBypassWorkflowChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return("sent", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow())

	_, err := f.engine.RunManual(ctx, workflow.ID, map[string]any{}, "key-1")
	require.NoError(t, err)

	_, err = f.engine.SetEnabled(ctx, workflow.ID, false)
	require.NoError(t, err)

	execution, err := f.engine.RunManual(ctx, workflow.ID, map[string]any{}, "key-1")
	require.ErrorIs(t, err, ErrWorkflowDisabled)
	assert.Nil(t, execution)

	require.NoError(t, f.engine.RemoveWorkflow(ctx, workflow.ID))

	execution, err = f.engine.RunManual(ctx, workflow.ID, map[string]any{}, "key-1")
	require.ErrorIs(t, err, ErrWorkflowNotFound)
	assert.Nil(t, execution)
}

func TestRunManual_ConcurrentCallsWithOneExecutionID(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return("sent", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow())

	const callers = 8

	ids := make([]string, callers)

	var wg sync.WaitGroup

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "order-7")
			if assert.NoError(t, err) {
				ids[i] = execution.ID
			}
		}()
	}

	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, "order-7", id)
	}

	f.action(models.ActionTypeEmail).AssertNumberOfCalls(t, "Execute", 1)

	history, err := f.engine.GetExecutionHistory(context.Background(), workflow.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRun_EveryFailureHandlerRuns(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("bounced"))
	f.action(models.ActionTypeUpdateData).On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
	f.action(models.ActionTypeNotification).On("Execute", mock.Anything, mock.Anything).Return("pushed", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow(testutil.WithActions(
		testutil.CreateTestAction("send", models.ActionTypeEmail,
			testutil.WithOnFailure(
				testutil.CreateTestAction("flag", models.ActionTypeUpdateData),
				testutil.CreateTestAction("alert-coach", models.ActionTypeNotification),
			),
		),
	)))

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)

	require.Len(t, execution.Steps, 3)
	assert.Equal(t, "send", execution.Steps[0].ActionID)
	assert.Equal(t, models.StepStatusFailed, execution.Steps[0].Status)
	assert.Equal(t, "flag", execution.Steps[1].ActionID)
	assert.Equal(t, models.StepStatusFailed, execution.Steps[1].Status)
	assert.Equal(t, "alert-coach", execution.Steps[2].ActionID)
	assert.Equal(t, models.StepStatusCompleted, execution.Steps[2].Status)

	f.action(models.ActionTypeNotification).AssertNumberOfCalls(t, "Execute", 1)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, "bounced", execution.Error)
}

func TestRun_ConcurrentMetadataUpdates(t *testing.T) {
	f := newFixture(t)
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return("sent", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow())

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	stored, err := f.engine.GetWorkflow(workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), stored.Metadata.ExecutionCount)
	assert.InDelta(t, 1.0, stored.Metadata.SuccessRate, 0.0001)
}

func TestRun_ObserversSeeLifecycle(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []events.EventType
	)

	observer := ObserverFunc(func(_ context.Context, event eventbus.Event) {
		mu.Lock()
		defer mu.Unlock()

		seen = append(seen, event.GetType())
	})

	f := newFixture(t, WithObservers(observer))
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return("sent", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow())

	_, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)

	require.NoError(t, f.engine.RemoveWorkflow(context.Background(), workflow.ID))

	assert.Equal(t, []events.EventType{
		events.WorkflowAddedEvent,
		events.ExecutionStartedEvent,
		events.ActionInvokedEvent,
		events.ExecutionCompletedEvent,
		events.WorkflowRemovedEvent,
	}, seen)
}

func TestRun_ObserverPanicIsContained(t *testing.T) {
	observer := ObserverFunc(func(context.Context, eventbus.Event) { panic("observer bug") })

	f := newFixture(t, WithObservers(observer))
	f.action(models.ActionTypeEmail).On("Execute", mock.Anything, mock.Anything).Return("sent", nil)

	workflow := f.add(t, testutil.CreateTestWorkflow())

	execution, err := f.engine.RunManual(context.Background(), workflow.ID, map[string]any{}, "")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}
