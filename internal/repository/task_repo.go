// Package repository implements database access layer for FirmDesk.
// This file handles tasks, including the lazy overdue sweep over a visible task set.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avissapr/firmdesk/internal/database"
	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/store"
	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, firm_id, title, description, assigned_to, created_by, priority, due_date, status, completed_at, created_at, updated_at`

// lapsedCondition is the SQL form of models.Task.NeedsOverdueAt.
const lapsedCondition = `status IN ('pending', 'in_progress') AND due_date < `

// TaskRepository handles task persistence.
type TaskRepository struct {
	q database.Querier
}

// NewTaskRepository creates a TaskRepository on the global pool.
func NewTaskRepository() *TaskRepository {
	return &TaskRepository{}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(
		&t.ID, &t.FirmID, &t.Title, &t.Description, &t.AssignedTo, &t.CreatedBy,
		&t.Priority, &t.DueDate, &t.Status, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a new task.
//
// Side Effects: Populates task.ID, task.CreatedAt and task.UpdatedAt
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (firm_id, title, description, assigned_to, created_by, priority, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	return conn(r.q).QueryRow(ctx, query,
		task.FirmID, task.Title, task.Description, task.AssignedTo, task.CreatedBy,
		task.Priority, task.DueDate, task.Status,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

// GetByID retrieves a task by primary key.
func (r *TaskRepository) GetByID(ctx context.Context, id int) (*models.Task, error) {
	task, err := scanTask(conn(r.q).QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

// GetForUpdate retrieves a task and locks its row.
// Must run inside a transaction; outside one the lock is released immediately.
func (r *TaskRepository) GetForUpdate(ctx context.Context, id int) (*models.Task, error) {
	task, err := scanTask(conn(r.q).QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

// UpdateStatus writes task.Status and task.CompletedAt.
//
// Side Effects: Refreshes task.UpdatedAt
func (r *TaskRepository) UpdateStatus(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks
		SET status = $1, completed_at = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := conn(r.q).QueryRow(ctx, query, task.Status, task.CompletedAt, task.ID).Scan(&task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating task status: %w", notFound(err))
	}
	return nil
}

// List retrieves the tasks matching filter, soonest due first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - filter: Visibility (FirmIDs OR VisibleTo) plus optional narrowing and paging
//
// Returns:
//   - []models.Task: Matching tasks
//   - error: Database error if query fails
func (r *TaskRepository) List(ctx context.Context, filter store.TaskFilter) ([]models.Task, error) {
	where, args := taskWhere(filter)
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + where + ` ORDER BY due_date, id`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := conn(r.q).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// MarkOverdue moves every lapsed task matching filter to overdue in one statement.
// The Status filter is ignored so a caller asking for overdue tasks sees the
// ones that lapsed since the last read.
func (r *TaskRepository) MarkOverdue(ctx context.Context, filter store.TaskFilter, now time.Time) ([]int, error) {
	filter.Status = nil
	where, args := taskWhere(filter)
	args = append(args, now)

	query := fmt.Sprintf(`
		UPDATE tasks
		SET status = 'overdue', updated_at = NOW()
		WHERE %s AND %s$%d
		RETURNING id
	`, where, lapsedCondition, len(args))

	return collectIDs(ctx, r.q, query, args...)
}

// taskWhere renders the WHERE clause for filter. Arguments are numbered from $1.
func taskWhere(filter store.TaskFilter) (string, []interface{}) {
	firmIDs := filter.FirmIDs
	if firmIDs == nil {
		firmIDs = []int{}
	}
	args := []interface{}{firmIDs, filter.VisibleTo}
	clauses := []string{"(firm_id = ANY($1) OR assigned_to = $2)"}

	add := func(column string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.FirmID != nil {
		add("firm_id", *filter.FirmID)
	}
	if filter.AssignedTo != nil {
		add("assigned_to", *filter.AssignedTo)
	}
	if filter.Status != nil {
		add("status", *filter.Status)
	}
	if filter.Priority != nil {
		add("priority", *filter.Priority)
	}
	return strings.Join(clauses, " AND "), args
}
