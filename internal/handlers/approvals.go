package handlers

import (
	"context"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/gofiber/fiber/v2"
)

// ApprovalHandler serves the approval queue and decisions. Routes are mounted
// behind middleware.RequireRoles(Owner, Manager); the service checks again.
type ApprovalHandler struct {
	workflow *services.WorkflowService
}

// NewApprovalHandler creates an ApprovalHandler over the workflow service.
func NewApprovalHandler(workflow *services.WorkflowService) *ApprovalHandler {
	return &ApprovalHandler{workflow: workflow}
}

type decisionRequest struct {
	Remarks string `json:"remarks"`
}

// ListPending returns pending approvals for tasks in the caller's scope.
func (h *ApprovalHandler) ListPending(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	approvals, err := h.workflow.ListPendingApprovals(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"approvals": approvals})
}

// Approve signs off a task awaiting approval. Remarks are optional.
func (h *ApprovalHandler) Approve(c *fiber.Ctx) error {
	return h.decide(c, h.workflow.ApproveTask)
}

// Reject sends a task back to in progress. Remarks are required.
func (h *ApprovalHandler) Reject(c *fiber.Ctx) error {
	return h.decide(c, h.workflow.RejectTask)
}

type decision func(ctx context.Context, id services.Identity, taskID int, remarks string) (*models.Approval, error)

func (h *ApprovalHandler) decide(c *fiber.Ctx, fn decision) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	taskID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req decisionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidInput("body", "request body must be JSON")
		}
	}

	approval, err := fn(c.UserContext(), id, taskID, req.Remarks)
	if err != nil {
		return err
	}
	return c.JSON(approval)
}
