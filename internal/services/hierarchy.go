// Package services provides the business logic layer for FirmDesk.
// This file resolves organizations from the reports_to hierarchy.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/store"
)

// MaxHierarchyDepth bounds both the upward walk and the downward enumeration.
const MaxHierarchyDepth = 64

// RootOutcome says how a root owner lookup ended.
type RootOutcome int

const (
	RootFound RootOutcome = iota
	RootOrphaned
	RootCycleDetected
	RootDepthExceeded
)

func (o RootOutcome) String() string {
	switch o {
	case RootFound:
		return "found"
	case RootOrphaned:
		return "orphaned"
	case RootCycleDetected:
		return "cycle_detected"
	case RootDepthExceeded:
		return "depth_exceeded"
	default:
		return fmt.Sprintf("RootOutcome(%d)", int(o))
	}
}

// RootResult is the outcome of FindRootOwner. OwnerID is set only when Outcome is RootFound.
type RootResult struct {
	Outcome RootOutcome
	OwnerID int
}

// Found reports whether a root was resolved.
func (r RootResult) Found() bool {
	return r.Outcome == RootFound
}

// isRoot reports whether u anchors an organization: every Owner, and an
// Individual, who is a one-person organization.
func isRoot(u *models.User) bool {
	return u.Role == models.RoleOwner || u.Role == models.RoleIndividual
}

// FindRootOwner walks reports_to upward from userID to the organization root.
//
// Returns:
//   - RootResult: Found with the root id, or Orphaned (chain ends or points at a
//     missing user), CycleDetected (a user repeats), DepthExceeded
//   - error: Store failure only; every structural outcome is in RootResult
func FindRootOwner(ctx context.Context, users store.UserStore, userID int) (RootResult, error) {
	visited := make(map[int]struct{})
	current := userID

	for depth := 0; depth <= MaxHierarchyDepth; depth++ {
		if _, seen := visited[current]; seen {
			return RootResult{Outcome: RootCycleDetected}, nil
		}
		visited[current] = struct{}{}

		user, err := users.GetByID(ctx, current)
		if errors.Is(err, store.ErrNotFound) {
			return RootResult{Outcome: RootOrphaned}, nil
		}
		if err != nil {
			return RootResult{}, fmt.Errorf("loading user %d: %w", current, err)
		}

		if isRoot(user) {
			return RootResult{Outcome: RootFound, OwnerID: user.ID}, nil
		}
		if user.ReportsTo == nil {
			return RootResult{Outcome: RootOrphaned}, nil
		}
		current = *user.ReportsTo
	}
	return RootResult{Outcome: RootDepthExceeded}, nil
}

// OrganizationMembers returns the root and every user whose reports_to chain
// reaches it, in ascending id order. The walk is breadth-first, one store query
// per level, and stops descending after MaxHierarchyDepth levels.
func OrganizationMembers(ctx context.Context, users store.UserStore, ownerID int) ([]int, error) {
	members := map[int]struct{}{ownerID: {}}
	frontier := []int{ownerID}

	for depth := 0; depth < MaxHierarchyDepth && len(frontier) > 0; depth++ {
		reports, err := users.ListReportsOf(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("listing reports: %w", err)
		}

		var next []int
		for _, u := range reports {
			if _, seen := members[u.ID]; seen {
				continue
			}
			// Another root never belongs to this organization, even if corrupted
			// data points its reports_to here.
			if isRoot(&u) {
				continue
			}
			members[u.ID] = struct{}{}
			next = append(next, u.ID)
		}
		frontier = next
	}

	return sortedIDs(members), nil
}

func sortedIDs(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func idSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
