// Package repository implements database access layer for FirmDesk.
// This file provides statistical aggregation queries for dashboard displays.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/store"
)

// CountByStatus counts the tasks visible under filter, grouped by status.
// Lapsed tasks that have not been read since their due date are counted as
// overdue, using the same rule as lazy overdue detection, without writing.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - filter: Visibility and optional narrowing; Status, Limit and Offset are ignored
//   - now: Reference time for the overdue rule
//
// Returns:
//   - map[models.TaskStatus]int: Count per status; statuses with no tasks are absent
//   - error: Database error if query fails
//
// Database: Single GROUP BY over tasks with a CASE projection
func (r *TaskRepository) CountByStatus(ctx context.Context, filter store.TaskFilter, now time.Time) (map[models.TaskStatus]int, error) {
	filter.Status = nil
	where, args := taskWhere(filter)
	args = append(args, now)

	query := fmt.Sprintf(`
		SELECT
			CASE WHEN %s$%d THEN 'overdue' ELSE status END AS effective_status,
			COUNT(*)
		FROM tasks
		WHERE %s
		GROUP BY effective_status
	`, lapsedCondition, len(args), where)

	rows, err := conn(r.q).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status models.TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
