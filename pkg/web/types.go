// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/evofitmeals/evoflow/pkg/models"
)

// RunWorkflowRequest is the body of a manual run. ExecutionID is optional
// and makes the call idempotent.
type RunWorkflowRequest struct {
	Input       map[string]any `json:"input"`
	ExecutionID string         `json:"execution_id,omitempty" validate:"omitempty,max=128,excludesall=/"`
}

// AssertFactsRequest is the body of a fact assertion.
type AssertFactsRequest struct {
	Facts map[string]any `json:"facts" validate:"required"`
}

// ExecutionsResponse lists executions with the applied filter.
type ExecutionsResponse struct {
	Executions []*models.Execution `json:"executions"`
	TotalCount int                 `json:"total_count"`
	WorkflowID string              `json:"workflow_id,omitempty"`
	Limit      int                 `json:"limit,omitempty"`
}

// DispatchResponse reports the runs started by an event or fact assertion.
type DispatchResponse struct {
	Executions []*models.Execution `json:"executions"`
	Count      int                 `json:"count"`
}

func newDispatchResponse(executions []*models.Execution) DispatchResponse {
	if executions == nil {
		executions = []*models.Execution{}
	}

	return DispatchResponse{Executions: executions, Count: len(executions)}
}
