package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/persistence"
)

// ExecutionRepository handles execution-related file operations.
type ExecutionRepository struct {
	root string
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) path(id string) string {
	return filepath.Join(er.root, executionsDir, id+".json")
}

func (er *ExecutionRepository) Save(_ context.Context, execution *models.Execution) error {
	if err := validateID(execution.ID); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if err := writeJSON(er.path(execution.ID), execution); err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) GetByID(_ context.Context, executionID string) (*models.Execution, error) {
	if err := validateID(executionID); err != nil {
		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	data, err := os.ReadFile(er.path(executionID)) // #nosec G304 -- executionID is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", executionID, err)
	}

	var execution models.Execution

	err = json.Unmarshal(data, &execution)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", executionID, err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	all, err := readJSONDir[models.Execution](filepath.Join(er.root, executionsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	executions := make([]*models.Execution, 0, len(all))

	for _, execution := range all {
		if workflowID == "" || execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	persistence.SortNewestFirst(executions)

	return executions, nil
}
