// Package services provides the business logic layer for FirmDesk.
// This file implements the task and approval workflow. Every mutation runs in a
// single transaction that also covers the approval record and the audit row.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avissapr/firmdesk/internal/metrics"
	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/store"
)

// Audit actions written by the workflow and team services.
const (
	AuditTaskCreate       = "TASK_CREATE"
	AuditTaskStatusChange = "TASK_STATUS_CHANGE"
	AuditTaskOverdue      = "TASK_OVERDUE"
	AuditApproveTask      = "APPROVE_TASK"
	AuditRejectTask       = "REJECT_TASK"
	AuditFirmAssign       = "FIRM_ASSIGN"
	AuditFirmUnassign     = "FIRM_UNASSIGN"
	AuditReportsToChange  = "REPORTS_TO_CHANGE"
)

// CreateTaskInput carries the caller-supplied fields of a new task.
type CreateTaskInput struct {
	FirmID      int
	AssignedTo  int
	Title       string
	Description string
	Priority    models.Priority
	DueDate     time.Time
}

// TaskQuery narrows ListTasks. Nil fields do not filter.
type TaskQuery struct {
	FirmID     *int
	AssignedTo *int
	Status     *models.TaskStatus
	Priority   *models.Priority
	Limit      int
	Offset     int
}

// WorkflowService owns the task lifecycle and the approval lifecycle.
//
// Dependencies:
//   - TxRunner: every operation, reads included, runs in one transaction
//   - AccessScope: recomputed per call, never cached
//   - ValidationService: input checks before any store access
type WorkflowService struct {
	tx        store.TxRunner
	scope     *AccessScope
	validator *security.ValidationService
	logger    *security.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
}

// NewWorkflowService creates a WorkflowService. rec may be nil.
func NewWorkflowService(
	tx store.TxRunner,
	scope *AccessScope,
	validator *security.ValidationService,
	logger *security.Logger,
	rec *metrics.Recorder,
) *WorkflowService {
	return &WorkflowService{
		tx:        tx,
		scope:     scope,
		validator: validator,
		logger:    logger,
		metrics:   rec,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests use it to pin overdue detection.
func (s *WorkflowService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateTask creates a pending task. The firm must belong to the caller's
// organization and the assignee must be an active member of it.
func (s *WorkflowService) CreateTask(ctx context.Context, id Identity, in CreateTaskInput) (*models.Task, error) {
	in.Title = s.validator.SanitizeString(in.Title)
	in.Description = s.validator.SanitizeString(in.Description)
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}

	if err := s.validator.ValidateTaskTitle(in.Title); err != nil {
		return nil, validationFailed("title", err.Error())
	}
	if err := s.validator.ValidateDescription(in.Description); err != nil {
		return nil, validationFailed("description", err.Error())
	}
	if err := s.validator.ValidatePriority(string(in.Priority)); err != nil {
		return nil, validationFailed("priority", err.Error())
	}
	if in.DueDate.IsZero() {
		return nil, validationFailed("due_date", "due_date is required")
	}

	var task *models.Task
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}

		if _, err := stores.Firms().GetByID(ctx, in.FirmID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound("firm")
			}
			return fmt.Errorf("loading firm: %w", err)
		}
		if !scope.OwnsFirm(in.FirmID) {
			return forbidden("firm is outside your organization")
		}

		if !scope.HasMember(in.AssignedTo) {
			return forbidden("assignee is outside your organization")
		}
		assignee, err := stores.Users().GetByID(ctx, in.AssignedTo)
		if err != nil {
			return fmt.Errorf("loading assignee: %w", err)
		}
		if !assignee.IsActive() {
			return validationFailed("assigned_to", "assignee account is inactive")
		}

		task = &models.Task{
			FirmID:      in.FirmID,
			Title:       in.Title,
			Description: in.Description,
			AssignedTo:  in.AssignedTo,
			CreatedBy:   scope.Identity.UserID,
			Priority:    in.Priority,
			DueDate:     in.DueDate,
			Status:      models.TaskStatusPending,
		}
		if err := stores.Tasks().Create(ctx, task); err != nil {
			return fmt.Errorf("creating task: %w", err)
		}
		return audit(ctx, stores, &scope.Identity.UserID, AuditTaskCreate, "task", task.ID,
			fmt.Sprintf("firm=%d assigned_to=%d", task.FirmID, task.AssignedTo))
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}

	s.logger.Event(security.EventTaskCreate, id.UserID, map[string]interface{}{
		"task_id": task.ID,
		"firm_id": task.FirmID,
	})
	return task, nil
}

// GetTask returns a visible task, moving it to overdue first when it has lapsed.
func (s *WorkflowService) GetTask(ctx context.Context, id Identity, taskID int) (*models.Task, error) {
	refresh := s.now()
	var (
		task   *models.Task
		lapsed bool
	)
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}
		task, err = loadVisibleTask(ctx, stores, scope, taskID, false)
		if err != nil {
			return err
		}
		lapsed, err = refreshOverdue(ctx, stores, task, refresh)
		return err
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}
	if lapsed {
		s.metrics.TasksOverdue(1)
	}
	return task, nil
}

// ListTasks returns the tasks visible to the caller: those whose firm is in the
// caller's scope, plus those assigned to the caller. Lapsed tasks in that set
// are persisted as overdue before the page is read.
func (s *WorkflowService) ListTasks(ctx context.Context, id Identity, q TaskQuery) ([]models.Task, error) {
	if q.Status != nil && !q.Status.Valid() {
		return nil, validationFailed("status", fmt.Sprintf("invalid status %q", *q.Status))
	}
	if q.Priority != nil && !q.Priority.Valid() {
		return nil, validationFailed("priority", fmt.Sprintf("invalid priority %q", *q.Priority))
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	var (
		tasks  []models.Task
		lapsed int
	)
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}

		filter := scope.TaskFilter()
		filter.FirmID = q.FirmID
		filter.AssignedTo = q.AssignedTo
		filter.Priority = q.Priority

		lapsed, err = sweepOverdue(ctx, stores, filter, s.now())
		if err != nil {
			return err
		}

		filter.Status = q.Status
		filter.Limit = s.validator.ClampPage(q.Limit)
		filter.Offset = q.Offset
		tasks, err = stores.Tasks().List(ctx, filter)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}
	s.metrics.TasksOverdue(lapsed)
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

// UpdateTaskStatus moves a task to a new status, applying the role's transition
// table and the approval side effects.
//
// A lapsed task is persisted as overdue before the transition is checked; that
// refresh is kept even when the transition itself is refused.
//
// Returns:
//   - *models.Task: The task after the change
//   - error: NotFound, Forbidden (task not visible), InvalidTransition, or
//     ValidationFailed for an unknown status
func (s *WorkflowService) UpdateTaskStatus(ctx context.Context, id Identity, taskID int, to models.TaskStatus) (*models.Task, error) {
	if err := s.validator.ValidateTaskStatus(string(to)); err != nil {
		return nil, validationFailed("status", err.Error())
	}

	now := s.now()
	var (
		task    *models.Task
		from    models.TaskStatus
		lapsed  bool
		changed bool
		refused error
	)
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}
		task, err = loadVisibleTask(ctx, stores, scope, taskID, true)
		if err != nil {
			return err
		}
		lapsed, err = refreshOverdue(ctx, stores, task, now)
		if err != nil {
			return err
		}

		from = task.Status
		if from == to {
			return nil
		}
		if !CanTransition(scope.Identity.Role, from, to) {
			// Commit so the overdue refresh above is not lost.
			refused = invalidTransition(scope.Identity.Role, from, to)
			return nil
		}

		changed = true
		return applyTransition(ctx, stores, scope.Identity.UserID, task, to, now)
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}
	if lapsed {
		s.metrics.TasksOverdue(1)
	}
	if refused != nil {
		return nil, s.scope.report(id, refused)
	}

	if changed {
		s.metrics.TaskTransition(string(from), string(to))
		s.logger.Event(security.EventTaskTransition, id.UserID, map[string]interface{}{
			"task_id": task.ID,
			"from":    string(from),
			"to":      string(to),
		})
	}
	return task, nil
}

// ApproveTask signs off a task awaiting approval. The approval becomes Approved
// and the task Completed.
func (s *WorkflowService) ApproveTask(ctx context.Context, id Identity, taskID int, remarks string) (*models.Approval, error) {
	remarks = s.validator.SanitizeString(remarks)
	if err := s.validator.ValidateRemarks(remarks, false); err != nil {
		return nil, validationFailed("remarks", err.Error())
	}
	return s.decide(ctx, id, taskID, models.ApprovalStatusApproved, remarks)
}

// RejectTask sends a task awaiting approval back to in-progress. Remarks are required.
func (s *WorkflowService) RejectTask(ctx context.Context, id Identity, taskID int, remarks string) (*models.Approval, error) {
	remarks = s.validator.SanitizeString(remarks)
	if err := s.validator.ValidateRemarks(remarks, true); err != nil {
		return nil, validationFailed("remarks", err.Error())
	}
	return s.decide(ctx, id, taskID, models.ApprovalStatusRejected, remarks)
}

func (s *WorkflowService) decide(
	ctx context.Context,
	id Identity,
	taskID int,
	decision models.ApprovalStatus,
	remarks string,
) (*models.Approval, error) {
	now := s.now()
	var (
		approval *models.Approval
		task     *models.Task
		lapsed   bool
		refused  error
	)
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}
		if !scope.Identity.Role.IsSupervisor() {
			return forbidden("only owners and managers can decide approvals")
		}
		task, err = loadVisibleTask(ctx, stores, scope, taskID, true)
		if err != nil {
			return err
		}
		lapsed, err = refreshOverdue(ctx, stores, task, now)
		if err != nil {
			return err
		}

		approval, err = stores.Approvals().GetByTaskID(ctx, taskID)
		if errors.Is(err, store.ErrNotFound) {
			// Commit so a lapsed task keeps its overdue status.
			refused = notFound("approval")
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading approval: %w", err)
		}
		if approval.Status != models.ApprovalStatusPending || task.Status != models.TaskStatusAwaitingApproval {
			refused = newError(CodeInvalidTransition, "approval is not pending",
				map[string]string{"approval_status": string(approval.Status), "status": string(task.Status)})
			return nil
		}

		actor := scope.Identity.UserID
		approval.Status = decision
		approval.Remarks = optionalString(remarks)
		action := AuditApproveTask
		if decision == models.ApprovalStatusApproved {
			approval.ApprovedBy = &actor
			approval.ApprovedAt = &now
			approval.RejectedAt = nil
			task.Status = models.TaskStatusCompleted
			task.CompletedAt = &now
		} else {
			action = AuditRejectTask
			approval.ApprovedBy = nil
			approval.ApprovedAt = nil
			approval.RejectedAt = &now
			task.Status = models.TaskStatusInProgress
			task.CompletedAt = nil
		}

		if err := stores.Approvals().Update(ctx, approval); err != nil {
			return fmt.Errorf("updating approval: %w", err)
		}
		if err := stores.Tasks().UpdateStatus(ctx, task); err != nil {
			return fmt.Errorf("updating task: %w", err)
		}
		return audit(ctx, stores, &actor, action, "task", task.ID,
			fmt.Sprintf("%s->%s", models.TaskStatusAwaitingApproval, task.Status))
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}
	if lapsed {
		s.metrics.TasksOverdue(1)
	}
	if refused != nil {
		return nil, s.scope.report(id, refused)
	}

	s.metrics.ApprovalDecision(string(decision))
	s.metrics.TaskTransition(string(models.TaskStatusAwaitingApproval), string(task.Status))
	s.logger.Event(security.EventApprovalDecision, id.UserID, map[string]interface{}{
		"task_id":  task.ID,
		"decision": string(decision),
	})
	return approval, nil
}

// ListPendingApprovals returns the pending approvals for the tasks the caller
// can see: firm in scope or assigned to the caller. Owners and managers only.
func (s *WorkflowService) ListPendingApprovals(ctx context.Context, id Identity) ([]models.Approval, error) {
	var (
		approvals []models.Approval
		lapsed    int
	)
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}
		if !scope.Identity.Role.IsSupervisor() {
			return forbidden("only owners and managers can review approvals")
		}

		filter := scope.TaskFilter()
		lapsed, err = sweepOverdue(ctx, stores, filter, s.now())
		if err != nil {
			return err
		}
		approvals, err = stores.Approvals().ListPending(ctx, filter)
		if err != nil {
			return fmt.Errorf("listing approvals: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}
	s.metrics.TasksOverdue(lapsed)
	if approvals == nil {
		approvals = []models.Approval{}
	}
	return approvals, nil
}

// Dashboard counts the caller's visible tasks per status. Lapsed tasks are
// counted as overdue without being written.
func (s *WorkflowService) Dashboard(ctx context.Context, id Identity) (*models.TaskStats, error) {
	stats := &models.TaskStats{ByStatus: make(map[models.TaskStatus]int, len(models.TaskStatuses))}
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}
		counts, err := stores.Tasks().CountByStatus(ctx, scope.TaskFilter(), s.now())
		if err != nil {
			return fmt.Errorf("counting tasks: %w", err)
		}
		for _, status := range models.TaskStatuses {
			stats.ByStatus[status] = counts[status]
			stats.Total += counts[status]
		}
		return nil
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}
	return stats, nil
}

// ============================================================================
// Transition helpers (run inside the caller's transaction)
// ============================================================================

// loadVisibleTask reads a task the caller may see, locking it when forUpdate is set.
func loadVisibleTask(ctx context.Context, stores store.StoreProvider, scope *Scope, taskID int, forUpdate bool) (*models.Task, error) {
	var (
		task *models.Task
		err  error
	)
	if forUpdate {
		task, err = stores.Tasks().GetForUpdate(ctx, taskID)
	} else {
		task, err = stores.Tasks().GetByID(ctx, taskID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("task")
	}
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if !scope.CanSeeTask(task) {
		return nil, forbidden("task is outside your access scope")
	}
	return task, nil
}

// refreshOverdue persists the overdue status of a single lapsed task.
func refreshOverdue(ctx context.Context, stores store.StoreProvider, task *models.Task, now time.Time) (bool, error) {
	if !task.NeedsOverdueAt(now) {
		return false, nil
	}
	from := task.Status
	task.Status = models.TaskStatusOverdue
	if err := stores.Tasks().UpdateStatus(ctx, task); err != nil {
		return false, fmt.Errorf("marking task overdue: %w", err)
	}
	if err := audit(ctx, stores, nil, AuditTaskOverdue, "task", task.ID, fmt.Sprintf("%s->%s", from, task.Status)); err != nil {
		return false, err
	}
	return true, nil
}

// sweepOverdue is refreshOverdue for every lapsed task matching filter.
func sweepOverdue(ctx context.Context, stores store.StoreProvider, filter store.TaskFilter, now time.Time) (int, error) {
	filter.Status = nil
	ids, err := stores.Tasks().MarkOverdue(ctx, filter, now)
	if err != nil {
		return 0, fmt.Errorf("marking tasks overdue: %w", err)
	}
	for _, taskID := range ids {
		if err := audit(ctx, stores, nil, AuditTaskOverdue, "task", taskID, "lapsed->overdue"); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// applyTransition writes a legal status change and keeps the approval record in
// step with it:
//   - entering AwaitingApproval opens or reopens the approval
//   - AwaitingApproval to Completed decides the pending approval as Approved by the actor
//   - any other exit from AwaitingApproval retracts the pending approval
func applyTransition(ctx context.Context, stores store.StoreProvider, actorID int, task *models.Task, to models.TaskStatus, now time.Time) error {
	from := task.Status
	task.Status = to
	switch {
	case to == models.TaskStatusCompleted:
		task.CompletedAt = &now
	case from == models.TaskStatusCompleted:
		task.CompletedAt = nil
	}
	if err := stores.Tasks().UpdateStatus(ctx, task); err != nil {
		return fmt.Errorf("updating task: %w", err)
	}

	approvals := stores.Approvals()
	switch {
	case to == models.TaskStatusAwaitingApproval:
		if err := approvals.Reopen(ctx, &models.Approval{TaskID: task.ID, RequestedBy: actorID}); err != nil {
			return fmt.Errorf("opening approval: %w", err)
		}
	case from == models.TaskStatusAwaitingApproval && to == models.TaskStatusCompleted:
		approval, err := approvals.GetByTaskID(ctx, task.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("loading approval: %w", err)
		}
		if approval != nil && approval.Status == models.ApprovalStatusPending {
			approval.Status = models.ApprovalStatusApproved
			approval.ApprovedBy = &actorID
			approval.ApprovedAt = &now
			if err := approvals.Update(ctx, approval); err != nil {
				return fmt.Errorf("approving approval: %w", err)
			}
		}
	case from == models.TaskStatusAwaitingApproval:
		if _, err := approvals.DeletePending(ctx, task.ID); err != nil {
			return fmt.Errorf("retracting approval: %w", err)
		}
	}

	return audit(ctx, stores, &actorID, AuditTaskStatusChange, "task", task.ID, fmt.Sprintf("%s->%s", from, to))
}

func invalidTransition(role models.Role, from, to models.TaskStatus) *Error {
	return newError(CodeInvalidTransition,
		fmt.Sprintf("role %s cannot move a task from %s to %s", role, from, to),
		map[string]string{"from": string(from), "to": string(to)})
}

func audit(ctx context.Context, stores store.StoreProvider, actorID *int, action, objectType string, objectID int, detail string) error {
	entry := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		ObjectType: objectType,
		ObjectID:   &objectID,
		Detail:     detail,
	}
	if err := stores.Audit().Log(ctx, entry); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
