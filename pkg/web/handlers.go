// Package web provides HTTP handlers and REST API endpoints for workflow
// and automation rule management.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/taskloom/taskloom/pkg/models"
	"github.com/taskloom/taskloom/pkg/services"
)

type APIHandlers struct {
	workflowService *services.Workflow
	ruleService     *services.Rule
	validator       *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	ruleService *services.Rule,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		ruleService:     ruleService,
		validator:       validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Taskloom API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Taskloom API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return badRequest(c, "organization_id query parameter is required")
	}

	workflows, err := h.workflowService.ListWorkflows(c.Context(), organizationID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.GetWorkflow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.CreateWorkflow(c.Context(), services.CreateWorkflowRequest{
		OrganizationID: req.OrganizationID,
		ProjectID:      req.ProjectID,
		Name:           req.Name,
		Description:    req.Description,
		IsDefault:      req.IsDefault,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.UpdateWorkflow(c.Context(), id, services.UpdateWorkflowRequest{
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.workflowService.DeleteWorkflow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DuplicateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req DuplicateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	copied, err := h.workflowService.DuplicateWorkflow(c.Context(), id, req.Name, req.CreatedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(copied)
}

// ValidateWorkflow reports the activation issues of a workflow's graph.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	issues, err := h.workflowService.ValidateWorkflow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if issues == nil {
		issues = []string{}
	}

	return c.JSON(fiber.Map{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}

func (h *APIHandlers) GetStates(c fiber.Ctx) error {
	states, err := h.workflowService.ListStates(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"states": states})
}

func (h *APIHandlers) CreateState(c fiber.Ctx) error {
	var req CreateStateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	state, err := h.workflowService.AddState(c.Context(), c.Params("id"), &models.WorkflowState{
		Name:         req.Name,
		Description:  req.Description,
		Category:     models.StateCategory(req.Category),
		Color:        req.Color,
		IsInitial:    req.IsInitial,
		IsFinal:      req.IsFinal,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *APIHandlers) UpdateState(c fiber.Ctx) error {
	var req UpdateStateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	update := services.UpdateStateRequest{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		IsInitial:   req.IsInitial,
		IsFinal:     req.IsFinal,
	}

	if req.Category != nil {
		category := models.StateCategory(*req.Category)
		update.Category = &category
	}

	state, err := h.workflowService.UpdateState(c.Context(), c.Params("id"), c.Params("stateId"), update)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) DeleteState(c fiber.Ctx) error {
	err := h.workflowService.DeleteState(c.Context(), c.Params("id"), c.Params("stateId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ReorderStates(c fiber.Ctx) error {
	var req ReorderStatesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.workflowService.ReorderStates(c.Context(), c.Params("id"), req.StateIDs)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetTransitions(c fiber.Ctx) error {
	transitions, err := h.workflowService.ListTransitions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"transitions": transitions})
}

func (h *APIHandlers) CreateTransition(c fiber.Ctx) error {
	var req CreateTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	transition, err := h.workflowService.AddTransition(c.Context(), c.Params("id"), &models.WorkflowTransition{
		FromStateID:     req.FromStateID,
		ToStateID:       req.ToStateID,
		Name:            req.Name,
		Description:     req.Description,
		Conditions:      req.Conditions,
		RequiresComment: req.RequiresComment,
		DisplayOrder:    req.DisplayOrder,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(transition)
}

func (h *APIHandlers) UpdateTransition(c fiber.Ctx) error {
	var req UpdateTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	transition, err := h.workflowService.UpdateTransition(c.Context(), c.Params("id"), c.Params("transitionId"), services.UpdateTransitionRequest{
		Name:            req.Name,
		Description:     req.Description,
		Conditions:      req.Conditions,
		RequiresComment: req.RequiresComment,
		DisplayOrder:    req.DisplayOrder,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(transition)
}

func (h *APIHandlers) DeleteTransition(c fiber.Ctx) error {
	err := h.workflowService.DeleteTransition(c.Context(), c.Params("id"), c.Params("transitionId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateTransition decides whether a state change is allowed for the task
// snapshot in the request. The decision is returned, never applied.
func (h *APIHandlers) ValidateTransition(c fiber.Ctx) error {
	var req ValidateTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	allowed, reason, err := h.workflowService.ValidateTransition(
		c.Context(), req.OrganizationID, req.ProjectID,
		req.FromStateID, req.ToStateID, req.Snapshot, req.Comment)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"allowed": allowed,
		"reason":  reason,
	})
}

func (h *APIHandlers) GetRules(c fiber.Ctx) error {
	activeOnly := false

	if activeStr := c.Query("active_only"); activeStr != "" {
		parsed, err := strconv.ParseBool(activeStr)
		if err != nil {
			return badRequest(c, "Invalid active_only parameter")
		}

		activeOnly = parsed
	}

	rules, err := h.ruleService.ListRules(c.Context(), c.Params("id"), activeOnly)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"rules": rules})
}

func (h *APIHandlers) GetRule(c fiber.Ctx) error {
	rule, err := h.ruleService.GetRule(c.Context(), c.Params("ruleId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	var req CreateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	rule, err := h.ruleService.CreateRule(c.Context(), c.Params("id"), &models.AutomationRule{
		Name:          req.Name,
		Description:   req.Description,
		TriggerType:   models.TriggerType(req.TriggerType),
		TriggerConfig: req.TriggerConfig,
		Conditions:    req.Conditions,
		Actions:       req.Actions,
		IsActive:      req.IsActive,
		Priority:      req.Priority,
		CreatedBy:     req.CreatedBy,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *APIHandlers) UpdateRule(c fiber.Ctx) error {
	var req UpdateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	update := services.UpdateRuleRequest{
		Name:          req.Name,
		Description:   req.Description,
		TriggerConfig: req.TriggerConfig,
		Conditions:    req.Conditions,
		Actions:       req.Actions,
		IsActive:      req.IsActive,
		Priority:      req.Priority,
	}

	if req.TriggerType != nil {
		trigger := models.TriggerType(*req.TriggerType)
		update.TriggerType = &trigger
	}

	rule, err := h.ruleService.UpdateRule(c.Context(), c.Params("ruleId"), update)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) DeleteRule(c fiber.Ctx) error {
	err := h.ruleService.DeleteRule(c.Context(), c.Params("ruleId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetRuleExecutions returns the execution log of a rule, newest first.
func (h *APIHandlers) GetRuleExecutions(c fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit parameter")
	}

	entries, err := h.ruleService.ListExecutions(c.Context(), c.Params("ruleId"), c.Query("status"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": entries})
}

// GetTaskExecutions returns the automation executions that touched a task.
func (h *APIHandlers) GetTaskExecutions(c fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit parameter")
	}

	entries, err := h.ruleService.ListTaskExecutions(c.Context(), c.Params("taskId"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": entries})
}

func parseLimit(c fiber.Ctx) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return 0, nil
	}

	return strconv.Atoi(limitStr)
}
