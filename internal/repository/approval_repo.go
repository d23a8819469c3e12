package repository

import (
	"context"
	"fmt"

	"github.com/avissapr/firmdesk/internal/database"
	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/store"
	"github.com/jackc/pgx/v5"
)

const approvalColumns = `id, task_id, status, requested_by, approved_by, approved_at, rejected_at, remarks, created_at, updated_at`

// ApprovalRepository handles the approval row that accompanies a task while it
// waits for review. There is at most one row per task.
type ApprovalRepository struct {
	q database.Querier
}

// NewApprovalRepository creates an ApprovalRepository on the global pool.
func NewApprovalRepository() *ApprovalRepository {
	return &ApprovalRepository{}
}

func scanApproval(row pgx.Row) (*models.Approval, error) {
	var a models.Approval
	err := row.Scan(
		&a.ID, &a.TaskID, &a.Status, &a.RequestedBy, &a.ApprovedBy,
		&a.ApprovedAt, &a.RejectedAt, &a.Remarks, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByTaskID retrieves the approval for a task.
//
// Returns:
//   - *models.Approval: The approval in any status
//   - error: store.ErrNotFound if the task has no approval row
func (r *ApprovalRepository) GetByTaskID(ctx context.Context, taskID int) (*models.Approval, error) {
	approval, err := scanApproval(conn(r.q).QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE task_id = $1`, taskID))
	if err != nil {
		return nil, notFound(err)
	}
	return approval, nil
}

// Reopen opens a pending approval for approval.TaskID requested by
// approval.RequestedBy. An existing row, whatever its status, is reset in place
// and keeps its id.
//
// Side Effects: Overwrites every field of approval with the stored row
func (r *ApprovalRepository) Reopen(ctx context.Context, approval *models.Approval) error {
	query := `
		INSERT INTO approvals (task_id, status, requested_by)
		VALUES ($1, 'pending', $2)
		ON CONFLICT (task_id) DO UPDATE SET
			status = 'pending',
			requested_by = EXCLUDED.requested_by,
			approved_by = NULL,
			approved_at = NULL,
			rejected_at = NULL,
			remarks = NULL,
			updated_at = NOW()
		RETURNING ` + approvalColumns

	stored, err := scanApproval(conn(r.q).QueryRow(ctx, query, approval.TaskID, approval.RequestedBy))
	if err != nil {
		return fmt.Errorf("reopening approval: %w", err)
	}
	*approval = *stored
	return nil
}

// Update writes the decision fields of approval.
func (r *ApprovalRepository) Update(ctx context.Context, approval *models.Approval) error {
	query := `
		UPDATE approvals
		SET status = $1, approved_by = $2, approved_at = $3, rejected_at = $4, remarks = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	err := conn(r.q).QueryRow(ctx, query,
		approval.Status, approval.ApprovedBy, approval.ApprovedAt, approval.RejectedAt, approval.Remarks, approval.ID,
	).Scan(&approval.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating approval: %w", notFound(err))
	}
	return nil
}

// DeletePending removes the task's approval if it is still pending.
// Decided approvals are kept as history.
func (r *ApprovalRepository) DeletePending(ctx context.Context, taskID int) (bool, error) {
	tag, err := conn(r.q).Exec(ctx,
		`DELETE FROM approvals WHERE task_id = $1 AND status = 'pending'`, taskID)
	if err != nil {
		return false, fmt.Errorf("retracting approval: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListPending retrieves pending approvals for the tasks matching filter, oldest first.
// Task visibility uses the same WHERE clause as TaskRepository.List.
func (r *ApprovalRepository) ListPending(ctx context.Context, filter store.TaskFilter) ([]models.Approval, error) {
	where, args := taskWhere(filter)
	query := fmt.Sprintf(`
		SELECT a.id, a.task_id, a.status, a.requested_by, a.approved_by,
			a.approved_at, a.rejected_at, a.remarks, a.created_at, a.updated_at
		FROM approvals a
		WHERE a.status = 'pending' AND a.task_id IN (SELECT id FROM tasks WHERE %s)
		ORDER BY a.created_at, a.id
	`, where)

	rows, err := conn(r.q).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approvals []models.Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, *approval)
	}
	return approvals, rows.Err()
}
