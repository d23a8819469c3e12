package testkit

import (
	"time"

	"github.com/avissapr/firmdesk/internal/models"
)

// AddUser stores u, assigning an id and defaults for empty fields.
func (m *MemStore) AddUser(u models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.id()
	} else if u.ID > m.data.nextID {
		m.data.nextID = u.ID
	}
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.Clock()
	}
	m.data.users[u.ID] = u
	return u
}

// AddClient stores a client created by createdBy.
func (m *MemStore) AddClient(name string, createdBy int) models.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := models.Client{ID: m.id(), Name: name, CreatedBy: createdBy, CreatedAt: m.Clock()}
	m.data.clients[c.ID] = c
	return c
}

// AddFirm stores a firm of clientID created by createdBy.
func (m *MemStore) AddFirm(name string, clientID, createdBy int) models.Firm {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := models.Firm{
		ID:         m.id(),
		ClientID:   clientID,
		Name:       name,
		EntityType: "company",
		CreatedBy:  createdBy,
		CreatedAt:  m.Clock(),
	}
	m.data.firms[f.ID] = f
	return f
}

// AddMapping assigns userID to firmID.
func (m *MemStore) AddMapping(userID, firmID int) models.UserFirmMapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping := models.UserFirmMapping{
		ID:         m.id(),
		UserID:     userID,
		FirmID:     firmID,
		AssignedBy: userID,
		AssignedAt: m.Clock(),
	}
	m.data.mappings[mapping.ID] = mapping
	return mapping
}

// AddTask stores t as-is apart from id and timestamps. Status defaults to
// pending and priority to medium.
func (m *MemStore) AddTask(t models.Task) models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Clock()
	t.ID = m.id()
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if t.Title == "" {
		t.Title = "GST return"
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	m.data.tasks[t.ID] = t
	return t
}

// AddApproval stores a for its task, bypassing the one-per-task check.
func (m *MemStore) AddApproval(a models.Approval) models.Approval {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Clock()
	a.ID = m.id()
	a.CreatedAt = now
	a.UpdatedAt = now
	m.data.approvals[a.ID] = a
	return a
}

// Task returns the stored task.
func (m *MemStore) Task(id int) (models.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.data.tasks[id]
	return t, ok
}

// User returns the stored user.
func (m *MemStore) User(id int) (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.data.users[id]
	return u, ok
}

// ApprovalsFor returns every approval row for the task.
func (m *MemStore) ApprovalsFor(taskID int) []models.Approval {
	m.mu.Lock()
	defer m.mu.Unlock()
	var approvals []models.Approval
	for _, a := range m.data.approvals {
		if a.TaskID == taskID {
			approvals = append(approvals, a)
		}
	}
	return approvals
}

// HasMapping reports whether userID is assigned to firmID.
func (m *MemStore) HasMapping(userID, firmID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mapping := range m.data.mappings {
		if mapping.UserID == userID && mapping.FirmID == firmID {
			return true
		}
	}
	return false
}

// AuditLogs returns the audit rows in insertion order.
func (m *MemStore) AuditLogs() []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditLog(nil), m.data.audit...)
}

// Org is a small organization used across tests:
//
//	Owner
//	└── Manager
//	    ├── Staff
//	    └── Staff2
//
// FirmA is mapped to Staff, FirmB to Staff2, FirmC to nobody. All three were
// created by Owner. Other is an unrelated owner with its own firm, OtherFirm.
type Org struct {
	Owner, Manager, Staff, Staff2, Other models.User
	FirmA, FirmB, FirmC, OtherFirm       models.Firm
}

// SeedOrg populates m with an Org.
func SeedOrg(m *MemStore) Org {
	var o Org
	o.Owner = m.AddUser(models.User{Name: "Asha Owner", Email: "owner@example.com", Role: models.RoleOwner})
	o.Manager = m.AddUser(models.User{Name: "Bala Manager", Email: "manager@example.com", Role: models.RoleManager, ReportsTo: &o.Owner.ID})
	o.Staff = m.AddUser(models.User{Name: "Chitra Staff", Email: "staff@example.com", Role: models.RoleStaff, ReportsTo: &o.Manager.ID})
	o.Staff2 = m.AddUser(models.User{Name: "Dev Staff", Email: "staff2@example.com", Role: models.RoleStaff, ReportsTo: &o.Manager.ID})
	o.Other = m.AddUser(models.User{Name: "Zed Owner", Email: "other@example.com", Role: models.RoleOwner})

	client := m.AddClient("Acme Holdings", o.Owner.ID)
	o.FirmA = m.AddFirm("Acme Trading", client.ID, o.Owner.ID)
	o.FirmB = m.AddFirm("Acme Exports", client.ID, o.Owner.ID)
	o.FirmC = m.AddFirm("Acme Realty", client.ID, o.Owner.ID)

	otherClient := m.AddClient("Zenith Group", o.Other.ID)
	o.OtherFirm = m.AddFirm("Zenith Foods", otherClient.ID, o.Other.ID)

	m.AddMapping(o.Staff.ID, o.FirmA.ID)
	m.AddMapping(o.Staff2.ID, o.FirmB.ID)
	return o
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
