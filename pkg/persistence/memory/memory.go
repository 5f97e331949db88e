// Package memory provides an in-process persistence implementation. It is the
// default for tests and for hosts that keep no state across restarts.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/persistence"
)

type Persistence struct {
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflowRepo:  NewWorkflowRepository(),
		executionRepo: NewExecutionRepository(),
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// WorkflowRepository stores copies so callers cannot mutate stored state.
type WorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[string]*models.Workflow
}

func NewWorkflowRepository() *WorkflowRepository {
	return &WorkflowRepository{workflows: make(map[string]*models.Workflow)}
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.workflows[workflow.ID] = workflow.Clone()

	return nil
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, ok := r.workflows[id]
	if !ok {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return workflow.Clone(), nil
}

// GetAll returns workflows ordered by id.
func (r *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(r.workflows))
	for _, workflow := range r.workflows {
		workflows = append(workflows, workflow.Clone())
	}

	slices.SortFunc(workflows, func(a, b *models.Workflow) int {
		return strings.Compare(a.ID, b.ID)
	})

	return workflows, nil
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[id]; !ok {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	delete(r.workflows, id)

	return nil
}

type ExecutionRepository struct {
	mu         sync.RWMutex
	executions map[string]*models.Execution
}

func NewExecutionRepository() *ExecutionRepository {
	return &ExecutionRepository{executions: make(map[string]*models.Execution)}
}

func (r *ExecutionRepository) Save(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.executions[execution.ID] = execution.Snapshot()

	return nil
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	execution, ok := r.executions[id]
	if !ok {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	return execution.Snapshot(), nil
}

func (r *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executions := make([]*models.Execution, 0)

	for _, execution := range r.executions {
		if workflowID == "" || execution.WorkflowID == workflowID {
			executions = append(executions, execution.Snapshot())
		}
	}

	persistence.SortNewestFirst(executions)

	return executions, nil
}
