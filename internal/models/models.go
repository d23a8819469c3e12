// Package models defines the domain entities for FirmDesk.
// It includes database models mapped to PostgreSQL tables and the categorical
// values (roles, task statuses, approval statuses) the workflow is built on.
package models

import "time"

// ============================================================================
// Categorical Values
// ============================================================================

// Role is the position a user holds inside an organization.
type Role string

const (
	RoleOwner      Role = "owner"      // Organization root, unrestricted task authority
	RoleManager    Role = "manager"    // Supervises direct reports
	RoleStaff      Role = "staff"      // Works on mapped firms
	RoleIndividual Role = "individual" // Single-person organization, own root
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleStaff, RoleIndividual:
		return true
	}
	return false
}

// IsSupervisor reports whether the role may decide approvals and manage firm assignments.
func (r Role) IsSupervisor() bool {
	return r == RoleOwner || r == RoleManager
}

// UserStatus marks whether an account may sign in.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending          TaskStatus = "pending"
	TaskStatusInProgress       TaskStatus = "in_progress"
	TaskStatusAwaitingApproval TaskStatus = "awaiting_approval"
	TaskStatusCompleted        TaskStatus = "completed"
	TaskStatusError            TaskStatus = "error"
	TaskStatusOverdue          TaskStatus = "overdue"
)

// TaskStatuses lists every task status in display order.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusAwaitingApproval,
	TaskStatusCompleted,
	TaskStatusError,
	TaskStatusOverdue,
}

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ApprovalStatus is the decision state of an approval request.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// ============================================================================
// Domain Models (Database Entities)
// ============================================================================

// User represents an account inside an organization.
// ReportsTo points at the user's supervisor; the chain of ReportsTo links
// ends at the organization's Owner.
//
// Database Table: users
// Security Note: PasswordHash should never be exposed in API responses or logs
type User struct {
	ID           int        `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Name         string     `db:"name" json:"name"`
	Role         Role       `db:"role" json:"role"`
	Status       UserStatus `db:"status" json:"status"`
	ReportsTo    *int       `db:"reports_to" json:"reports_to,omitempty"`
	PasswordHash string     `db:"password_hash" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// IsActive reports whether the account may act.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Client is a customer of the practice. A client owns one or more firms.
//
// Database Table: clients
type Client struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email,omitempty"`
	CreatedBy int       `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Firm is a client business the practice files compliance work for.
// The GST/TDS/ROC flags are consumed by the compliance calendar.
//
// Database Table: firms
type Firm struct {
	ID            int       `db:"id" json:"id"`
	ClientID      int       `db:"client_id" json:"client_id"`
	Name          string    `db:"name" json:"name"`
	EntityType    string    `db:"entity_type" json:"entity_type"`
	GSTRegistered bool      `db:"gst_registered" json:"gst_registered"`
	TDSApplicable bool      `db:"tds_applicable" json:"tds_applicable"`
	ROCApplicable bool      `db:"roc_applicable" json:"roc_applicable"`
	CreatedBy     int       `db:"created_by" json:"created_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// UserFirmMapping assigns a user to a firm.
//
// Database Table: user_firm_mappings
// Constraint: UNIQUE (user_id, firm_id)
type UserFirmMapping struct {
	ID         int       `db:"id" json:"id"`
	UserID     int       `db:"user_id" json:"user_id"`
	FirmID     int       `db:"firm_id" json:"firm_id"`
	AssignedBy int       `db:"assigned_by" json:"assigned_by"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}

// Task is a unit of work for a firm.
//
// Database Table: tasks
type Task struct {
	ID          int        `db:"id" json:"id"`
	FirmID      int        `db:"firm_id" json:"firm_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description,omitempty"`
	AssignedTo  int        `db:"assigned_to" json:"assigned_to"`
	CreatedBy   int        `db:"created_by" json:"created_by"`
	Priority    Priority   `db:"priority" json:"priority"`
	DueDate     time.Time  `db:"due_date" json:"due_date"`
	Status      TaskStatus `db:"status" json:"status"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// NeedsOverdueAt reports whether the task has lapsed at now and must be moved
// to overdue. Completed and errored tasks never lapse. A task awaiting approval
// is held until the approval is decided; the reviewer's decision moves it on.
func (t *Task) NeedsOverdueAt(now time.Time) bool {
	switch t.Status {
	case TaskStatusCompleted, TaskStatusError, TaskStatusOverdue, TaskStatusAwaitingApproval:
		return false
	}
	return t.DueDate.Before(now)
}

// Approval tracks the review of a task waiting for sign-off.
//
// Database Table: approvals
// Constraint: UNIQUE (task_id)
type Approval struct {
	ID          int            `db:"id" json:"id"`
	TaskID      int            `db:"task_id" json:"task_id"`
	Status      ApprovalStatus `db:"status" json:"status"`
	RequestedBy int            `db:"requested_by" json:"requested_by"`
	ApprovedBy  *int           `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt  *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt  *time.Time     `db:"rejected_at" json:"rejected_at,omitempty"`
	Remarks     *string        `db:"remarks" json:"remarks,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// AuditLog represents an audit trail entry for compliance and security monitoring.
// Workflow transitions, approval decisions, and firm assignments are logged here.
//
// Database Table: audit_logs
type AuditLog struct {
	ID         int       `json:"id"`
	ActorID    *int      `json:"actor_id,omitempty"` // Nullable for system actions (lazy overdue)
	Action     string    `json:"action"`             // e.g. "TASK_STATUS_CHANGE", "APPROVE_TASK"
	ObjectType string    `json:"object_type"`        // e.g. "task", "approval"
	ObjectID   *int      `json:"object_id,omitempty"`
	Detail     string    `json:"detail,omitempty"` // Free-form, e.g. "pending->in_progress"
	CreatedAt  time.Time `json:"created_at"`
}

// ============================================================================
// View Models
// ============================================================================

// TaskStats is a per-status count of the tasks a user can see.
type TaskStats struct {
	Total    int                `json:"total"`
	ByStatus map[TaskStatus]int `json:"by_status"`
}
