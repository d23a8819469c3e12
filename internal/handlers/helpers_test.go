package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avissapr/firmdesk/internal/handlers"
	"github.com/avissapr/firmdesk/internal/middleware"
	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/avissapr/firmdesk/internal/testkit"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

const testPassword = "correct horse battery staple"

type server struct {
	app   *fiber.App
	store *testkit.MemStore
	org   testkit.Org
	auth  *services.AuthService
	logs  *bytes.Buffer
}

func newServer(t *testing.T) *server {
	t.Helper()

	st := testkit.NewMemStore()
	st.Clock = testkit.FixedClock(testNow)
	org := testkit.SeedOrg(st)

	config := security.DefaultSecurityConfig()
	config.BcryptCost = bcrypt.MinCost
	config.JWTSecret = "handler-test-secret"
	config.AccountLockoutThreshold = 2

	logs := &bytes.Buffer{}
	logger := security.NewLoggerWithWriter(logs)
	scope := services.NewAccessScope(logger, nil)

	workflow := services.NewWorkflowService(st, scope, security.NewValidationService(config), logger, nil)
	workflow.SetClock(testkit.FixedClock(testNow))
	auth := services.NewAuthService(st.Users(), config)

	sm := middleware.NewSecurityMiddleware(logger, config)
	apiLimiter := security.PerMinute(config.RateLimitAPI)
	statusLimiter := security.PerMinute(config.RateLimitStatusChange)
	t.Cleanup(func() {
		sm.Stop()
		apiLimiter.Stop()
		statusLimiter.Stop()
	})

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(logger)})
	handlers.Register(app, handlers.Deps{
		Store:               session.New(),
		Users:               st.Users(),
		Auth:                auth,
		Workflow:            workflow,
		Team:                services.NewTeamService(st, scope, logger),
		Security:            sm,
		Logger:              logger,
		APILimiter:          apiLimiter,
		StatusChangeLimiter: statusLimiter,
	})

	return &server{app: app, store: st, org: org, auth: auth, logs: logs}
}

// withPassword stores a login-capable copy of u.
func (s *server) withPassword(t *testing.T, u models.User) models.User {
	t.Helper()
	hash, err := s.auth.HashPassword(testPassword)
	require.NoError(t, err)
	u.PasswordHash = hash
	return s.store.AddUser(u)
}

func (s *server) token(t *testing.T, u models.User) string {
	t.Helper()
	token, _, err := s.auth.IssueToken(&u)
	require.NoError(t, err)
	return token
}

func newRequest(method, path string, body interface{}) *http.Request {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// call sends a bearer-authenticated request as u and decodes the JSON response.
func (s *server) call(t *testing.T, u models.User, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	req := newRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+s.token(t, u))
	return s.send(t, req)
}

func (s *server) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func errorCode(body map[string]interface{}) string {
	envelope, _ := body["error"].(map[string]interface{})
	code, _ := envelope["code"].(string)
	return code
}

func (s *server) addTask(firm models.Firm, assignee models.User, status models.TaskStatus) models.Task {
	return s.store.AddTask(models.Task{
		FirmID:     firm.ID,
		AssignedTo: assignee.ID,
		CreatedBy:  s.org.Owner.ID,
		DueDate:    testNow.Add(72 * time.Hour),
		Status:     status,
	})
}

func (s *server) addAwaitingTask(firm models.Firm, assignee models.User) models.Task {
	task := s.addTask(firm, assignee, models.TaskStatusAwaitingApproval)
	s.store.AddApproval(models.Approval{
		TaskID:      task.ID,
		Status:      models.ApprovalStatusPending,
		RequestedBy: assignee.ID,
	})
	return task
}
