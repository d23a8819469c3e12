package services_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/avissapr/firmdesk/internal/testkit"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *testkit.MemStore
	org      testkit.Org
	scope    *services.AccessScope
	workflow *services.WorkflowService
	team     *services.TeamService
	logs     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := testkit.NewMemStore()
	st.Clock = testkit.FixedClock(testNow)
	org := testkit.SeedOrg(st)

	logs := &bytes.Buffer{}
	logger := security.NewLoggerWithWriter(logs)
	scope := services.NewAccessScope(logger, nil)
	validator := security.NewValidationService(security.DefaultSecurityConfig())

	workflow := services.NewWorkflowService(st, scope, validator, logger, nil)
	workflow.SetClock(testkit.FixedClock(testNow))

	return &fixture{
		store:    st,
		org:      org,
		scope:    scope,
		workflow: workflow,
		team:     services.NewTeamService(st, scope, logger),
		logs:     logs,
	}
}

func as(u models.User) services.Identity {
	return services.Identity{UserID: u.ID, Role: u.Role}
}

// addTask stores a task on firm assigned to assignee, due three days out unless overridden.
func (f *fixture) addTask(firm models.Firm, assignee models.User, status models.TaskStatus) models.Task {
	return f.store.AddTask(models.Task{
		FirmID:     firm.ID,
		AssignedTo: assignee.ID,
		CreatedBy:  f.org.Owner.ID,
		DueDate:    testNow.Add(72 * time.Hour),
		Status:     status,
	})
}

// addAwaitingTask stores a task awaiting approval together with its pending approval.
func (f *fixture) addAwaitingTask(firm models.Firm, assignee models.User) models.Task {
	task := f.addTask(firm, assignee, models.TaskStatusAwaitingApproval)
	f.store.AddApproval(models.Approval{
		TaskID:      task.ID,
		Status:      models.ApprovalStatusPending,
		RequestedBy: assignee.ID,
	})
	return task
}

func (f *fixture) status(t *testing.T, taskID int) models.TaskStatus {
	t.Helper()
	task, ok := f.store.Task(taskID)
	require.True(t, ok)
	return task.Status
}

func pendingApprovals(approvals []models.Approval) int {
	n := 0
	for _, a := range approvals {
		if a.Status == models.ApprovalStatusPending {
			n++
		}
	}
	return n
}

func firmIDs(firms ...models.Firm) []int {
	ids := make([]int, 0, len(firms))
	for _, f := range firms {
		ids = append(ids, f.ID)
	}
	return ids
}
