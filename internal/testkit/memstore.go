// Package testkit provides an in-memory implementation of the store contracts.
// It behaves like the PostgreSQL repositories closely enough for service and
// handler tests: unique constraints, ordering, and transactional rollback.
package testkit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/store"
)

// MemStore is a StoreProvider and TxRunner backed by maps.
//
// WithTx serializes transactions and snapshots the data on entry; a callback
// error restores the snapshot.
type MemStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *memData

	// Clock stamps created_at and updated_at columns.
	Clock func() time.Time
}

type memData struct {
	nextID    int
	users     map[int]models.User
	clients   map[int]models.Client
	firms     map[int]models.Firm
	mappings  map[int]models.UserFirmMapping
	tasks     map[int]models.Task
	approvals map[int]models.Approval
	audit     []models.AuditLog
}

var (
	_ store.StoreProvider = (*MemStore)(nil)
	_ store.TxRunner      = (*MemStore)(nil)
)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		data: &memData{
			users:     make(map[int]models.User),
			clients:   make(map[int]models.Client),
			firms:     make(map[int]models.Firm),
			mappings:  make(map[int]models.UserFirmMapping),
			tasks:     make(map[int]models.Task),
			approvals: make(map[int]models.Approval),
		},
		Clock: func() time.Time { return time.Now().UTC() },
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		nextID:    d.nextID,
		users:     make(map[int]models.User, len(d.users)),
		clients:   make(map[int]models.Client, len(d.clients)),
		firms:     make(map[int]models.Firm, len(d.firms)),
		mappings:  make(map[int]models.UserFirmMapping, len(d.mappings)),
		tasks:     make(map[int]models.Task, len(d.tasks)),
		approvals: make(map[int]models.Approval, len(d.approvals)),
		audit:     append([]models.AuditLog(nil), d.audit...),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.clients {
		c.clients[k] = v
	}
	for k, v := range d.firms {
		c.firms[k] = v
	}
	for k, v := range d.mappings {
		c.mappings[k] = v
	}
	for k, v := range d.tasks {
		c.tasks[k] = v
	}
	for k, v := range d.approvals {
		c.approvals[k] = v
	}
	return c
}

func (m *MemStore) id() int {
	m.data.nextID++
	return m.data.nextID
}

// WithTx runs fn against this store and rolls every change back if fn fails.
func (m *MemStore) WithTx(ctx context.Context, fn func(stores store.StoreProvider) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.data.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MemStore) Users() store.UserStore         { return memUsers{m} }
func (m *MemStore) Clients() store.ClientStore     { return memClients{m} }
func (m *MemStore) Firms() store.FirmStore         { return memFirms{m} }
func (m *MemStore) Mappings() store.MappingStore   { return memMappings{m} }
func (m *MemStore) Tasks() store.TaskStore         { return memTasks{m} }
func (m *MemStore) Approvals() store.ApprovalStore { return memApprovals{m} }
func (m *MemStore) Audit() store.AuditStore        { return memAudit{m} }

// ============================================================================
// Users
// ============================================================================

type memUsers struct{ m *MemStore }

func (s memUsers) GetByID(ctx context.Context, id int) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memUsers) ListByIDs(ctx context.Context, ids []int) ([]models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var users []models.User
	for _, id := range dedupe(ids) {
		if u, ok := s.m.data.users[id]; ok {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (s memUsers) ListReportsOf(ctx context.Context, managerIDs []int) ([]models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	managers := toSet(managerIDs)
	var users []models.User
	for _, u := range s.m.data.users {
		if u.ReportsTo == nil {
			continue
		}
		if _, ok := managers[*u.ReportsTo]; ok {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s memUsers) SetReportsTo(ctx context.Context, userID int, managerID *int) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.data.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	if managerID != nil {
		id := *managerID
		managerID = &id
	}
	u.ReportsTo = managerID
	s.m.data.users[userID] = u
	return nil
}

// ============================================================================
// Clients and firms
// ============================================================================

type memClients struct{ m *MemStore }

func (s memClients) ListByIDs(ctx context.Context, ids []int) ([]models.Client, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var clients []models.Client
	for _, id := range dedupe(ids) {
		if c, ok := s.m.data.clients[id]; ok {
			clients = append(clients, c)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })
	return clients, nil
}

type memFirms struct{ m *MemStore }

func (s memFirms) GetByID(ctx context.Context, id int) (*models.Firm, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	f, ok := s.m.data.firms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &f, nil
}

func (s memFirms) ListByIDs(ctx context.Context, ids []int) ([]models.Firm, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var firms []models.Firm
	for _, id := range dedupe(ids) {
		if f, ok := s.m.data.firms[id]; ok {
			firms = append(firms, f)
		}
	}
	sort.Slice(firms, func(i, j int) bool { return firms[i].Name < firms[j].Name })
	return firms, nil
}

func (s memFirms) ListIDsByCreators(ctx context.Context, creatorIDs []int) ([]int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	creators := toSet(creatorIDs)
	var ids []int
	for _, f := range s.m.data.firms {
		if _, ok := creators[f.CreatedBy]; ok {
			ids = append(ids, f.ID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// ============================================================================
// Mappings
// ============================================================================

type memMappings struct{ m *MemStore }

func (s memMappings) Create(ctx context.Context, mapping *models.UserFirmMapping) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.data.mappings {
		if existing.UserID == mapping.UserID && existing.FirmID == mapping.FirmID {
			return store.ErrAlreadyExists
		}
	}
	mapping.ID = s.m.id()
	mapping.AssignedAt = s.m.Clock()
	s.m.data.mappings[mapping.ID] = *mapping
	return nil
}

func (s memMappings) Delete(ctx context.Context, userID, firmID int) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for id, existing := range s.m.data.mappings {
		if existing.UserID == userID && existing.FirmID == firmID {
			delete(s.m.data.mappings, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s memMappings) ListFirmIDsByUsers(ctx context.Context, userIDs []int) ([]int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	users := toSet(userIDs)
	firms := make(map[int]struct{})
	for _, mapping := range s.m.data.mappings {
		if _, ok := users[mapping.UserID]; ok {
			firms[mapping.FirmID] = struct{}{}
		}
	}
	return sortedKeys(firms), nil
}

// ============================================================================
// Tasks
// ============================================================================

type memTasks struct{ m *MemStore }

func (s memTasks) Create(ctx context.Context, task *models.Task) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	now := s.m.Clock()
	task.ID = s.m.id()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.m.data.tasks[task.ID] = *task
	return nil
}

func (s memTasks) GetByID(ctx context.Context, id int) (*models.Task, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.data.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

// GetForUpdate is GetByID; WithTx already serializes transactions.
func (s memTasks) GetForUpdate(ctx context.Context, id int) (*models.Task, error) {
	return s.GetByID(ctx, id)
}

func (s memTasks) UpdateStatus(ctx context.Context, task *models.Task) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	stored, ok := s.m.data.tasks[task.ID]
	if !ok {
		return store.ErrNotFound
	}
	stored.Status = task.Status
	stored.CompletedAt = task.CompletedAt
	stored.UpdatedAt = s.m.Clock()
	task.UpdatedAt = stored.UpdatedAt
	s.m.data.tasks[task.ID] = stored
	return nil
}

func (s memTasks) List(ctx context.Context, filter store.TaskFilter) ([]models.Task, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	tasks := s.matching(filter)
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].DueDate.Equal(tasks[j].DueDate) {
			return tasks[i].DueDate.Before(tasks[j].DueDate)
		}
		return tasks[i].ID < tasks[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(tasks) {
			return nil, nil
		}
		tasks = tasks[filter.Offset:]
	}
	if filter.Limit > 0 && len(tasks) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}
	return tasks, nil
}

func (s memTasks) MarkOverdue(ctx context.Context, filter store.TaskFilter, now time.Time) ([]int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	filter.Status = nil
	var ids []int
	for _, t := range s.matching(filter) {
		if !t.NeedsOverdueAt(now) {
			continue
		}
		t.Status = models.TaskStatusOverdue
		t.UpdatedAt = s.m.Clock()
		s.m.data.tasks[t.ID] = t
		ids = append(ids, t.ID)
	}
	sort.Ints(ids)
	return ids, nil
}

func (s memTasks) CountByStatus(ctx context.Context, filter store.TaskFilter, now time.Time) (map[models.TaskStatus]int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	counts := make(map[models.TaskStatus]int)
	for _, t := range s.matching(filter) {
		status := t.Status
		if t.NeedsOverdueAt(now) {
			status = models.TaskStatusOverdue
		}
		counts[status]++
	}
	return counts, nil
}

// matching mirrors the repository's WHERE clause. Callers hold mu.
func (s memTasks) matching(filter store.TaskFilter) []models.Task {
	firms := toSet(filter.FirmIDs)
	var tasks []models.Task
	for _, t := range s.m.data.tasks {
		_, inScope := firms[t.FirmID]
		if !inScope && (filter.VisibleTo == 0 || t.AssignedTo != filter.VisibleTo) {
			continue
		}
		if filter.FirmID != nil && t.FirmID != *filter.FirmID {
			continue
		}
		if filter.AssignedTo != nil && t.AssignedTo != *filter.AssignedTo {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// ============================================================================
// Approvals
// ============================================================================

type memApprovals struct{ m *MemStore }

func (s memApprovals) byTask(taskID int) (models.Approval, bool) {
	for _, a := range s.m.data.approvals {
		if a.TaskID == taskID {
			return a, true
		}
	}
	return models.Approval{}, false
}

func (s memApprovals) GetByTaskID(ctx context.Context, taskID int) (*models.Approval, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.byTask(taskID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s memApprovals) Reopen(ctx context.Context, approval *models.Approval) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	now := s.m.Clock()
	a, ok := s.byTask(approval.TaskID)
	if !ok {
		a = models.Approval{ID: s.m.id(), TaskID: approval.TaskID, CreatedAt: now}
	}
	a.Status = models.ApprovalStatusPending
	a.RequestedBy = approval.RequestedBy
	a.ApprovedBy = nil
	a.ApprovedAt = nil
	a.RejectedAt = nil
	a.Remarks = nil
	a.UpdatedAt = now
	s.m.data.approvals[a.ID] = a
	*approval = a
	return nil
}

func (s memApprovals) Update(ctx context.Context, approval *models.Approval) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	stored, ok := s.m.data.approvals[approval.ID]
	if !ok {
		return store.ErrNotFound
	}
	stored.Status = approval.Status
	stored.ApprovedBy = approval.ApprovedBy
	stored.ApprovedAt = approval.ApprovedAt
	stored.RejectedAt = approval.RejectedAt
	stored.Remarks = approval.Remarks
	stored.UpdatedAt = s.m.Clock()
	approval.UpdatedAt = stored.UpdatedAt
	s.m.data.approvals[stored.ID] = stored
	return nil
}

func (s memApprovals) DeletePending(ctx context.Context, taskID int) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.byTask(taskID)
	if !ok || a.Status != models.ApprovalStatusPending {
		return false, nil
	}
	delete(s.m.data.approvals, a.ID)
	return true, nil
}

func (s memApprovals) ListPending(ctx context.Context, filter store.TaskFilter) ([]models.Approval, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	visible := make(map[int]struct{})
	for _, t := range (memTasks{s.m}).matching(filter) {
		visible[t.ID] = struct{}{}
	}
	var approvals []models.Approval
	for _, a := range s.m.data.approvals {
		if a.Status != models.ApprovalStatusPending {
			continue
		}
		if _, ok := visible[a.TaskID]; ok {
			approvals = append(approvals, a)
		}
	}
	sort.Slice(approvals, func(i, j int) bool {
		if !approvals[i].CreatedAt.Equal(approvals[j].CreatedAt) {
			return approvals[i].CreatedAt.Before(approvals[j].CreatedAt)
		}
		return approvals[i].ID < approvals[j].ID
	})
	return approvals, nil
}

// ============================================================================
// Audit
// ============================================================================

type memAudit struct{ m *MemStore }

func (s memAudit) Log(ctx context.Context, entry *models.AuditLog) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	entry.ID = s.m.id()
	entry.CreatedAt = s.m.Clock()
	s.m.data.audit = append(s.m.data.audit, *entry)
	return nil
}

func toSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortedKeys(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func dedupe(ids []int) []int {
	return sortedKeys(toSet(ids))
}
