// Package handlers implements the JSON HTTP handlers for FirmDesk.
// This file contains the organization endpoints: firms, clients, members,
// firm assignments and the reporting line.
package handlers

import (
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/gofiber/fiber/v2"
)

// TeamHandler serves the caller's organization.
type TeamHandler struct {
	team *services.TeamService
}

// NewTeamHandler creates a TeamHandler over the team service.
func NewTeamHandler(team *services.TeamService) *TeamHandler {
	return &TeamHandler{team: team}
}

type reportsToRequest struct {
	ManagerID int `json:"manager_id"`
}

// Firms returns the firms the caller can access.
func (h *TeamHandler) Firms(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	firms, err := h.team.ListFirms(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"firms": firms})
}

// Clients returns the clients owning the caller's accessible firms.
func (h *TeamHandler) Clients(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	clients, err := h.team.ListClients(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"clients": clients})
}

// Members returns every user of the caller's organization.
func (h *TeamHandler) Members(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	members, err := h.team.ListMembers(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"members": members})
}

// AssignFirm maps a member to a firm.
//
// URL Params: user_id, firm_id
//
// Responses:
//   - 201: the new mapping
//   - 422: the mapping already exists
func (h *TeamHandler) AssignFirm(c *fiber.Ctx) error {
	id, userID, firmID, err := assignmentParams(c)
	if err != nil {
		return err
	}

	mapping, err := h.team.AssignFirm(c.UserContext(), id, userID, firmID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(mapping)
}

// UnassignFirm removes a member's firm mapping.
func (h *TeamHandler) UnassignFirm(c *fiber.Ctx) error {
	id, userID, firmID, err := assignmentParams(c)
	if err != nil {
		return err
	}

	if err := h.team.UnassignFirm(c.UserContext(), id, userID, firmID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetReportsTo moves a member under another supervisor. Owner only.
//
// Request Body: {"manager_id": 2}
func (h *TeamHandler) SetReportsTo(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	userID, err := paramID(c, "user_id")
	if err != nil {
		return err
	}
	var req reportsToRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("body", "request body must be JSON with a manager_id")
	}
	if req.ManagerID <= 0 {
		return invalidInput("manager_id", "manager_id is required")
	}

	user, err := h.team.SetReportsTo(c.UserContext(), id, userID, req.ManagerID)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func assignmentParams(c *fiber.Ctx) (services.Identity, int, int, error) {
	id, err := identity(c)
	if err != nil {
		return id, 0, 0, err
	}
	userID, err := paramID(c, "user_id")
	if err != nil {
		return id, 0, 0, err
	}
	firmID, err := paramID(c, "firm_id")
	if err != nil {
		return id, 0, 0, err
	}
	return id, userID, firmID, nil
}
