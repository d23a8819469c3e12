// Package models_test provides unit tests for data model structures.
// Tests validate the enum helpers and the overdue rule without requiring
// database connections or external dependencies.
package models_test

import (
	"testing"
	"time"

	"github.com/avissapr/firmdesk/internal/models"
)

// TestRoleValid verifies only the four organization roles are accepted.
//
// Test Cases:
//   - Known roles: owner, manager, staff, individual
//   - Unknown roles: the legacy "admin" value and the empty string
func TestRoleValid(t *testing.T) {
	for _, role := range []models.Role{models.RoleOwner, models.RoleManager, models.RoleStaff, models.RoleIndividual} {
		if !role.Valid() {
			t.Errorf("Expected %q to be valid", role)
		}
	}

	for _, role := range []models.Role{"admin", ""} {
		if role.Valid() {
			t.Errorf("Expected %q to be invalid", role)
		}
	}
}

// TestRoleIsSupervisor verifies which roles may decide approvals.
// Individuals are organization roots but have nobody to supervise.
func TestRoleIsSupervisor(t *testing.T) {
	expected := map[models.Role]bool{
		models.RoleOwner:      true,
		models.RoleManager:    true,
		models.RoleStaff:      false,
		models.RoleIndividual: false,
	}

	for role, want := range expected {
		if got := role.IsSupervisor(); got != want {
			t.Errorf("IsSupervisor(%q) = %v, want %v", role, got, want)
		}
	}
}

// TestTaskStatusValid verifies every listed status is valid and nothing else is.
func TestTaskStatusValid(t *testing.T) {
	if len(models.TaskStatuses) != 6 {
		t.Fatalf("Expected 6 task statuses, got %d", len(models.TaskStatuses))
	}
	for _, status := range models.TaskStatuses {
		if !status.Valid() {
			t.Errorf("Expected %q to be valid", status)
		}
	}
	if models.TaskStatus("done").Valid() {
		t.Errorf("Expected \"done\" to be invalid")
	}
}

// TestPriorityValid verifies the priority enum.
func TestPriorityValid(t *testing.T) {
	if !models.PriorityUrgent.Valid() || !models.PriorityLow.Valid() {
		t.Errorf("Expected low and urgent to be valid")
	}
	if models.Priority("critical").Valid() {
		t.Errorf("Expected \"critical\" to be invalid")
	}
}

// TestTaskNeedsOverdueAt verifies the lazy overdue rule.
//
// Test Cases:
//   - Past due, pending or in progress: lapses
//   - Past due, awaiting approval: held for the reviewer
//   - Past due, completed/error/overdue: never lapses
//   - Due exactly now or later: does not lapse
func TestTaskNeedsOverdueAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	tests := []struct {
		status models.TaskStatus
		due    time.Time
		want   bool
	}{
		{models.TaskStatusPending, past, true},
		{models.TaskStatusInProgress, past, true},
		{models.TaskStatusAwaitingApproval, past, false},
		{models.TaskStatusCompleted, past, false},
		{models.TaskStatusError, past, false},
		{models.TaskStatusOverdue, past, false},
		{models.TaskStatusPending, now, false},
		{models.TaskStatusInProgress, now.Add(time.Hour), false},
	}

	for _, tt := range tests {
		task := models.Task{Status: tt.status, DueDate: tt.due}
		if got := task.NeedsOverdueAt(now); got != tt.want {
			t.Errorf("NeedsOverdueAt(status=%s, due=%s) = %v, want %v", tt.status, tt.due.Format(time.RFC3339), got, tt.want)
		}
	}
}

// TestUserIsActive verifies inactive accounts cannot act.
func TestUserIsActive(t *testing.T) {
	user := models.User{Email: "test@example.com", Role: models.RoleStaff, Status: models.UserStatusActive}
	if !user.IsActive() {
		t.Errorf("Expected active user to be active")
	}

	user.Status = models.UserStatusInactive
	if user.IsActive() {
		t.Errorf("Expected inactive user to be inactive")
	}
}
