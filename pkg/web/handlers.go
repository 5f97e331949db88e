// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/evofitmeals/evoflow/pkg/engine"
	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/evofitmeals/evoflow/pkg/persistence"
	"github.com/evofitmeals/evoflow/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	engine      *engine.Engine
	persistence persistence.Persistence
	validator   *validator.Validate
	registry    *registry.Registry
}

func NewAPIHandlers(
	engine *engine.Engine,
	persistence persistence.Persistence,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		engine:      engine,
		persistence: persistence,
		validator:   validator,
		registry:    registry,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows := h.engine.ListWorkflows()

	if enabledStr := c.Query("enabled"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}

		filtered := make([]*models.Workflow, 0, len(workflows))

		for _, workflow := range workflows {
			if workflow.Enabled == enabled {
				filtered = append(filtered, workflow)
			}
		}

		workflows = filtered
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.engine.GetWorkflow(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.engine.AddWorkflow(c.Context(), &workflow)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if workflow.ID != "" && workflow.ID != id {
		return badRequest(c, "Workflow ID in body does not match the path")
	}

	workflow.ID = id

	updated, err := h.engine.UpdateWorkflow(c.Context(), &workflow)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.engine.RemoveWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnableWorkflow(c fiber.Ctx) error {
	return h.setEnabled(c, true)
}

func (h *APIHandlers) DisableWorkflow(c fiber.Ctx) error {
	return h.setEnabled(c, false)
}

func (h *APIHandlers) setEnabled(c fiber.Ctx, enabled bool) error {
	workflow, err := h.engine.SetEnabled(c.Context(), c.Params("id"), enabled)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	var req RunWorkflowRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.engine.RunManual(c.Context(), c.Params("id"), req.Input, req.ExecutionID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetWorkflowStats(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.engine.GetWorkflow(id); err != nil {
		return handleEngineError(c, err)
	}

	stats, err := h.engine.GetWorkflowStats(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	workflowID := c.Query("workflow_id")

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			return badRequest(c, "Invalid query parameters: limit must be a non-negative integer")
		}

		limit = parsed
	}

	executions, err := h.engine.GetExecutionHistory(c.Context(), workflowID)
	if err != nil {
		return handleEngineError(c, err)
	}

	total := len(executions)
	if limit > 0 && limit < total {
		executions = executions[:limit]
	}

	if executions == nil {
		executions = []*models.Execution{}
	}

	return c.JSON(ExecutionsResponse{
		Executions: executions,
		TotalCount: total,
		WorkflowID: workflowID,
		Limit:      limit,
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.engine.GetExecution(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

// PublishEvent dispatches a named event to every enabled workflow listening
// for it. The body is the event payload.
func (h *APIHandlers) PublishEvent(c fiber.Ctx) error {
	payload, err := bodyMap(c)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	executions := h.engine.Publish(c.Context(), c.Params("name"), payload)

	return c.Status(fiber.StatusAccepted).JSON(newDispatchResponse(executions))
}

func (h *APIHandlers) AssertFacts(c fiber.Ctx) error {
	var req AssertFactsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	executions, err := h.engine.AssertFacts(c.Context(), req.Facts)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(newDispatchResponse(executions))
}

// InvokeWebhook serves every path under /hooks.
func (h *APIHandlers) InvokeWebhook(c fiber.Ctx) error {
	body, err := bodyMap(c)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	execution, err := h.engine.InvokeWebhook(c.Context(), c.Params("*"), body)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "EvoFlow API is healthy"
	httpStatus := http.StatusOK
	repositoryCheck := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "EvoFlow API is unhealthy"
		httpStatus = http.StatusInternalServerError
		repositoryCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   h.registry.ActionTypes(),
			"repository": repositoryCheck,
			"workflows":  len(h.engine.ListWorkflows()),
		},
		"timestamp": time.Now().UTC(),
	})
}

func bodyMap(c fiber.Ctx) (map[string]any, error) {
	body := map[string]any{}
	if len(c.Body()) == 0 {
		return body, nil
	}

	if err := c.Bind().JSON(&body); err != nil {
		return nil, err
	}

	return body, nil
}
