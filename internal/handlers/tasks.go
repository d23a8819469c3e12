// Package handlers implements the JSON HTTP handlers for FirmDesk.
// This file contains the task endpoints and the dashboard.
package handlers

import (
	"time"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/gofiber/fiber/v2"
)

// TaskHandler serves task reads, creation and status changes.
type TaskHandler struct {
	workflow *services.WorkflowService
}

// NewTaskHandler creates a TaskHandler over the workflow service.
func NewTaskHandler(workflow *services.WorkflowService) *TaskHandler {
	return &TaskHandler{workflow: workflow}
}

type createTaskRequest struct {
	FirmID      int    `json:"firm_id"`
	AssignedTo  int    `json:"assigned_to"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// List returns the caller's visible tasks.
//
// Query Params: status, priority, firm_id, assigned_to, limit, offset
func (h *TaskHandler) List(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	var q services.TaskQuery
	if q.FirmID, err = queryID(c, "firm_id"); err != nil {
		return err
	}
	if q.AssignedTo, err = queryID(c, "assigned_to"); err != nil {
		return err
	}
	if q.Limit, err = queryInt(c, "limit"); err != nil {
		return err
	}
	if q.Offset, err = queryInt(c, "offset"); err != nil {
		return err
	}
	if raw := c.Query("status"); raw != "" {
		status := models.TaskStatus(raw)
		q.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority := models.Priority(raw)
		q.Priority = &priority
	}

	tasks, err := h.workflow.ListTasks(c.UserContext(), id, q)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tasks": tasks})
}

// Create adds a pending task.
//
// Request Body: firm_id, assigned_to, title, description, priority, due_date
//
// due_date accepts RFC 3339 or a plain date; a plain date is due at the end of
// that day, UTC.
func (h *TaskHandler) Create(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	var req createTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("body", "request body must be a JSON task")
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return err
	}

	task, err := h.workflow.CreateTask(c.UserContext(), id, services.CreateTaskInput{
		FirmID:      req.FirmID,
		AssignedTo:  req.AssignedTo,
		Title:       req.Title,
		Description: req.Description,
		Priority:    models.Priority(req.Priority),
		DueDate:     due,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// Get returns one task.
func (h *TaskHandler) Get(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	taskID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	task, err := h.workflow.GetTask(c.UserContext(), id, taskID)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// UpdateStatus moves a task to the requested status.
//
// Request Body: {"status": "in_progress"}
//
// Responses:
//   - 200: the task after the change
//   - 403 INVALID_TRANSITION: the move is not allowed for the caller's role
func (h *TaskHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	taskID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("body", "request body must be JSON with a status")
	}

	task, err := h.workflow.UpdateTaskStatus(c.UserContext(), id, taskID, models.TaskStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// Dashboard returns per-status counts of the caller's visible tasks.
func (h *TaskHandler) Dashboard(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	stats, err := h.workflow.Dashboard(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func parseDueDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, invalidInput("due_date", "due_date is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, invalidInput("due_date", "due_date must be YYYY-MM-DD or RFC 3339")
	}
	return day.Add(24*time.Hour - time.Second), nil
}
