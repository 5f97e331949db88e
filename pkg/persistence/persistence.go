// Package persistence declares the storage contracts for workflow definitions
// and execution records.
package persistence

import (
	"context"

	"github.com/evofitmeals/evoflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions keyed by id. Save inserts or
// replaces. GetByID and Delete fail with ErrWorkflowNotFound for unknown ids.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores execution records keyed by id. Records are never
// deleted. ListByWorkflow returns every execution when workflowID is empty,
// newest first.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
}
