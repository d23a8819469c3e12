package services

import "github.com/avissapr/firmdesk/internal/models"

// roleClass groups roles that share a transition table.
type roleClass int

const (
	classBypass roleClass = iota
	classManager
	classStaff
)

func classOf(role models.Role) roleClass {
	switch role {
	case models.RoleOwner, models.RoleIndividual:
		return classBypass
	case models.RoleManager:
		return classManager
	default:
		return classStaff
	}
}

type statusSet map[models.TaskStatus]struct{}

func statuses(ss ...models.TaskStatus) statusSet {
	set := make(statusSet, len(ss))
	for _, s := range ss {
		set[s] = struct{}{}
	}
	return set
}

// transitionTable lists, per role class and current status, the statuses a
// task may be moved to. Owners and Individuals are not in the table.
var transitionTable = map[roleClass]map[models.TaskStatus]statusSet{
	classStaff: {
		models.TaskStatusPending:          statuses(models.TaskStatusInProgress),
		models.TaskStatusInProgress:       statuses(models.TaskStatusAwaitingApproval, models.TaskStatusPending, models.TaskStatusError),
		models.TaskStatusAwaitingApproval: statuses(models.TaskStatusInProgress),
		models.TaskStatusCompleted:        statuses(),
		models.TaskStatusError:            statuses(models.TaskStatusInProgress, models.TaskStatusPending),
		models.TaskStatusOverdue:          statuses(models.TaskStatusInProgress, models.TaskStatusAwaitingApproval),
	},
	classManager: {
		models.TaskStatusPending:          statuses(models.TaskStatusInProgress, models.TaskStatusCompleted),
		models.TaskStatusInProgress:       statuses(models.TaskStatusAwaitingApproval, models.TaskStatusPending, models.TaskStatusCompleted, models.TaskStatusError),
		models.TaskStatusAwaitingApproval: statuses(models.TaskStatusCompleted, models.TaskStatusInProgress),
		models.TaskStatusCompleted:        statuses(models.TaskStatusInProgress),
		models.TaskStatusError:            statuses(models.TaskStatusInProgress, models.TaskStatusPending, models.TaskStatusCompleted),
		models.TaskStatusOverdue:          statuses(models.TaskStatusInProgress, models.TaskStatusAwaitingApproval, models.TaskStatusCompleted),
	},
}

// CanTransition reports whether role may move a task from one status to
// another. Setting a status to its current value is always allowed.
func CanTransition(role models.Role, from, to models.TaskStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	class := classOf(role)
	if class == classBypass {
		return true
	}
	_, ok := transitionTable[class][from][to]
	return ok
}

// AllowedTransitions returns the statuses role may move a task to from the
// given status, in display order.
func AllowedTransitions(role models.Role, from models.TaskStatus) []models.TaskStatus {
	var allowed []models.TaskStatus
	for _, to := range models.TaskStatuses {
		if to != from && CanTransition(role, from, to) {
			allowed = append(allowed, to)
		}
	}
	return allowed
}
