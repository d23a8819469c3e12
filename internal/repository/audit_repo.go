// Package repository provides data access layer for FirmDesk.
// This file implements the audit repository for workflow and compliance logging.
package repository

import (
	"context"

	"github.com/avissapr/firmdesk/internal/database"
	"github.com/avissapr/firmdesk/internal/models"
)

// AuditRepository handles all database operations related to audit logging.
//
// Purpose:
//   - Trail of every task transition and approval decision
//   - Record of firm assignments and hierarchy changes
//
// Immutability Note:
//
//	Audit logs should NEVER be modified or deleted once created.
type AuditRepository struct {
	q database.Querier
}

// NewAuditRepository creates and returns a new AuditRepository instance.
//
// Example:
//
//	repo := repository.NewAuditRepository()
//	err := repo.Log(ctx, auditEntry)
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Log creates a new audit log entry.
// Workflow operations call it through the transaction's StoreProvider so the
// entry commits or rolls back with the change it describes.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - log: AuditLog entry to create (Action, ObjectType required)
//
// Side Effects:
//   - Sets log.ID to the generated audit log ID
//   - Sets log.CreatedAt to the server timestamp
//
// Common Action Types:
//   - "TASK_CREATE", "TASK_STATUS_CHANGE", "TASK_OVERDUE"
//   - "APPROVAL_OPEN", "APPROVAL_RETRACT", "APPROVE_TASK", "REJECT_TASK"
//   - "FIRM_ASSIGN", "FIRM_UNASSIGN", "SET_REPORTS_TO"
func (r *AuditRepository) Log(ctx context.Context, log *models.AuditLog) error {
	query := `
        INSERT INTO audit_logs (actor_id, action, object_type, object_id, detail)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at
    `

	return conn(r.q).QueryRow(ctx, query,
		log.ActorID, log.Action, log.ObjectType, log.ObjectID, log.Detail,
	).Scan(&log.ID, &log.CreatedAt)
}
