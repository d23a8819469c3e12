// Package handlers implements the JSON HTTP handlers for FirmDesk.
// This file maps errors returned by handlers to the API error envelope.
package handlers

import (
	"errors"
	"strconv"

	"github.com/avissapr/firmdesk/internal/middleware"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/gofiber/fiber/v2"
)

// errorBody is the "error" member of every non-2xx response.
type errorBody struct {
	Code     services.Code     `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ErrorHandler returns the fiber.Config ErrorHandler for the API.
//
// Mapping:
//   - *services.Error: status from its code, message and metadata passed through
//   - *fiber.Error: routing and body errors (404 on unknown routes, 405, 413)
//   - anything else: logged and returned as 500 INTERNAL with a generic message
//
// Security Note:
//
//	Infrastructure error text (SQL, driver, I/O) never reaches the client.
func ErrorHandler(logger *security.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var domain *services.Error
		if errors.As(err, &domain) {
			return c.Status(domain.Code.HTTPStatus()).JSON(fiber.Map{
				"error": errorBody{Code: domain.Code, Message: domain.Message, Metadata: domain.Metadata},
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error": errorBody{Code: codeForStatus(fe.Code), Message: fe.Message},
			})
		}

		args := []any{"method", c.Method(), "path", c.Path()}
		if id, ok := c.Locals(middleware.LocalRequestID).(string); ok {
			args = append(args, "request_id", id)
		}
		logger.Error("request failed", err, args...)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": errorBody{Code: services.CodeInternal, Message: "internal server error"},
		})
	}
}

func codeForStatus(status int) services.Code {
	switch {
	case status == fiber.StatusNotFound:
		return services.CodeNotFound
	case status == fiber.StatusUnauthorized:
		return services.CodeUnauthenticated
	case status == fiber.StatusForbidden:
		return services.CodeForbidden
	case status >= 500:
		return services.CodeInternal
	default:
		return "BAD_REQUEST"
	}
}

// invalidInput reports a malformed request field the same way the services
// report failed validation.
func invalidInput(field, message string) error {
	return &services.Error{
		Code:     services.CodeValidationFailed,
		Message:  message,
		Metadata: map[string]string{"field": field},
	}
}

// identity returns the caller set by middleware.AuthRequired.
func identity(c *fiber.Ctx) (services.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return services.Identity{}, services.ErrUnauthenticated
	}
	return id, nil
}

// paramID parses a positive integer route parameter.
func paramID(c *fiber.Ctx, name string) (int, error) {
	id, err := strconv.Atoi(c.Params(name))
	if err != nil || id <= 0 {
		return 0, invalidInput(name, name+" must be a positive integer")
	}
	return id, nil
}

// queryID parses an optional positive integer query parameter.
func queryID(c *fiber.Ctx, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return nil, invalidInput(name, name+" must be a positive integer")
	}
	return &id, nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalidInput(name, name+" must be a non-negative integer")
	}
	return n, nil
}
