package handlers

import (
	"github.com/avissapr/firmdesk/internal/middleware"
	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/avissapr/firmdesk/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Deps carries everything Register needs. Limiters are owned by the caller,
// which stops them on shutdown.
type Deps struct {
	Store    *session.Store
	Users    store.UserStore
	Auth     *services.AuthService
	Workflow *services.WorkflowService
	Team     *services.TeamService
	Security *middleware.SecurityMiddleware
	Logger   *security.Logger

	APILimiter          *security.RateLimiter
	StatusChangeLimiter *security.RateLimiter
}

// Register mounts the login endpoints and the /api group on app.
//
// Every /api route requires authentication, is rate limited per user, and
// checks CSRF for session-authenticated state changes. Approval and team
// management routes are additionally gated by the caller's stored role.
func Register(app *fiber.App, d Deps) {
	authHandler := NewAuthHandler(d.Store, d.Auth, d.Security, d.Logger)
	taskHandler := NewTaskHandler(d.Workflow)
	approvalHandler := NewApprovalHandler(d.Workflow)
	teamHandler := NewTeamHandler(d.Team)

	authRequired := middleware.AuthRequired(d.Store, d.Auth, d.Logger)
	csrf := d.Security.CSRFProtection(d.Store)
	supervisors := middleware.RequireRoles(d.Users, models.RoleOwner, models.RoleManager)

	// Public; the handler applies per-IP limits and account lockout itself.
	app.Post("/login", authHandler.Login)
	app.Post("/logout", authRequired, csrf, authHandler.Logout)

	api := app.Group("/api",
		authRequired,
		d.Security.RateLimit(d.APILimiter, "api"),
		csrf,
	)

	api.Get("/firms", teamHandler.Firms)
	api.Get("/clients", teamHandler.Clients)

	api.Get("/tasks", taskHandler.List)
	api.Post("/tasks", taskHandler.Create)
	api.Get("/tasks/:id", taskHandler.Get)
	api.Patch("/tasks/:id/status",
		d.Security.RateLimit(d.StatusChangeLimiter, "status_change"),
		taskHandler.UpdateStatus,
	)
	api.Post("/tasks/:id/approve", supervisors, approvalHandler.Approve)
	api.Post("/tasks/:id/reject", supervisors, approvalHandler.Reject)
	api.Get("/approvals", supervisors, approvalHandler.ListPending)

	api.Get("/dashboard", taskHandler.Dashboard)

	api.Get("/team", teamHandler.Members)
	api.Put("/team/:user_id/reports-to", middleware.RequireRoles(d.Users, models.RoleOwner), teamHandler.SetReportsTo)
	api.Post("/team/:user_id/firms/:firm_id", supervisors, teamHandler.AssignFirm)
	api.Delete("/team/:user_id/firms/:firm_id", supervisors, teamHandler.UnassignFirm)
}
