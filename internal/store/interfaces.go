// Package store declares the persistence contracts the workflow services depend on.
// Implementations live in the repository package (PostgreSQL via pgx) and in
// testkit (in-memory, for tests).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/avissapr/firmdesk/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type UserStore interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListByIDs(ctx context.Context, ids []int) ([]models.User, error)
	// ListReportsOf returns users whose reports_to is one of managerIDs.
	ListReportsOf(ctx context.Context, managerIDs []int) ([]models.User, error)
	SetReportsTo(ctx context.Context, userID int, managerID *int) error
}

type ClientStore interface {
	ListByIDs(ctx context.Context, ids []int) ([]models.Client, error)
}

type FirmStore interface {
	GetByID(ctx context.Context, id int) (*models.Firm, error)
	ListByIDs(ctx context.Context, ids []int) ([]models.Firm, error)
	// ListIDsByCreators returns the ids of firms created by any of creatorIDs.
	ListIDsByCreators(ctx context.Context, creatorIDs []int) ([]int, error)
}

type MappingStore interface {
	Create(ctx context.Context, mapping *models.UserFirmMapping) error // ErrAlreadyExists on (user, firm) conflict
	Delete(ctx context.Context, userID, firmID int) error               // ErrNotFound if absent
	ListFirmIDsByUsers(ctx context.Context, userIDs []int) ([]int, error)
}

// TaskFilter narrows a task listing. FirmIDs and VisibleTo together express
// "firm in scope OR assigned to the caller".
type TaskFilter struct {
	FirmIDs    []int
	VisibleTo  int // assigned_to override; zero disables it
	FirmID     *int
	AssignedTo *int
	Status     *models.TaskStatus
	Priority   *models.Priority
	Limit      int
	Offset     int
}

type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id int) (*models.Task, error)
	// GetForUpdate reads the task and locks its row until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, id int) (*models.Task, error)
	UpdateStatus(ctx context.Context, task *models.Task) error
	List(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	// MarkOverdue persists the overdue status for every lapsed task matching
	// filter and returns the ids it changed. Limit and Offset are ignored.
	MarkOverdue(ctx context.Context, filter TaskFilter, now time.Time) ([]int, error)
	// CountByStatus counts visible tasks, reporting lapsed tasks as overdue as of now.
	CountByStatus(ctx context.Context, filter TaskFilter, now time.Time) (map[models.TaskStatus]int, error)
}

type ApprovalStore interface {
	GetByTaskID(ctx context.Context, taskID int) (*models.Approval, error)
	// Reopen inserts a pending approval for the task or resets the existing row in place.
	Reopen(ctx context.Context, approval *models.Approval) error
	Update(ctx context.Context, approval *models.Approval) error
	// DeletePending removes the task's approval only while it is pending.
	DeletePending(ctx context.Context, taskID int) (bool, error)
	// ListPending returns the pending approvals of the tasks matching filter,
	// oldest first. Limit and Offset are ignored.
	ListPending(ctx context.Context, filter TaskFilter) ([]models.Approval, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry *models.AuditLog) error
}

// StoreProvider hands out stores bound to one connection or transaction.
type StoreProvider interface {
	Users() UserStore
	Clients() ClientStore
	Firms() FirmStore
	Mappings() MappingStore
	Tasks() TaskStore
	Approvals() ApprovalStore
	Audit() AuditStore
}

// TxRunner runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}
