package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/avissapr/firmdesk/internal/metrics"
	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/store"
)

// Scope is everything a request may touch, derived fresh for each request.
type Scope struct {
	// Identity carries the role as stored, not as claimed by the credential.
	Identity Identity
	OwnerID  int
	Members  []int
	FirmIDs  []int

	members map[int]struct{}
	firms   map[int]struct{}
	orgFirm map[int]struct{}
}

// HasMember reports whether userID belongs to the caller's organization.
func (s *Scope) HasMember(userID int) bool {
	_, ok := s.members[userID]
	return ok
}

// HasFirm reports whether firmID is in the caller's access scope.
func (s *Scope) HasFirm(firmID int) bool {
	_, ok := s.firms[firmID]
	return ok
}

// OwnsFirm reports whether firmID was created by a member of the organization,
// regardless of the caller's own mappings.
func (s *Scope) OwnsFirm(firmID int) bool {
	_, ok := s.orgFirm[firmID]
	return ok
}

// CanSeeTask reports whether the task is visible: its firm is in scope, or it
// is assigned to the caller.
func (s *Scope) CanSeeTask(t *models.Task) bool {
	return s.HasFirm(t.FirmID) || t.AssignedTo == s.Identity.UserID
}

// TaskFilter returns the store filter for tasks visible to the caller.
func (s *Scope) TaskFilter() store.TaskFilter {
	return store.TaskFilter{
		FirmIDs:   s.FirmIDs,
		VisibleTo: s.Identity.UserID,
	}
}

// AccessScope computes Scopes. It is the only place the role policy and the
// organization intersection are applied.
type AccessScope struct {
	logger  *security.Logger
	metrics *metrics.Recorder
}

// NewAccessScope creates an AccessScope. metrics may be nil.
func NewAccessScope(logger *security.Logger, rec *metrics.Recorder) *AccessScope {
	return &AccessScope{logger: logger, metrics: rec}
}

// Resolve authenticates the caller against the store and computes their scope.
//
// Returns:
//   - *Scope: The caller's organization, members and accessible firms
//   - error: Unauthenticated for unknown or inactive users,
//     OrganizationUnresolvable when no root is found, store errors otherwise
func (a *AccessScope) Resolve(ctx context.Context, stores store.StoreProvider, id Identity) (*Scope, error) {
	users := stores.Users()

	user, err := users.GetByID(ctx, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, unauthenticated("unknown user")
	}
	if err != nil {
		return nil, fmt.Errorf("loading caller: %w", err)
	}
	if !user.IsActive() {
		a.logger.Event(security.EventInactiveActor, user.ID, nil)
		return nil, unauthenticated("account is inactive")
	}
	id.Role = user.Role

	root, err := FindRootOwner(ctx, users, user.ID)
	if err != nil {
		return nil, err
	}
	if !root.Found() {
		a.reportUnresolvable(user.ID, root.Outcome)
		return nil, newError(CodeOrganizationUnresolvable, "organization cannot be resolved",
			map[string]string{"outcome": root.Outcome.String()})
	}

	members, err := OrganizationMembers(ctx, users, root.OwnerID)
	if err != nil {
		return nil, err
	}
	orgFirms, err := stores.Firms().ListIDsByCreators(ctx, members)
	if err != nil {
		return nil, fmt.Errorf("listing organization firms: %w", err)
	}

	candidates, err := a.roleFirms(ctx, stores, id, orgFirms)
	if err != nil {
		return nil, err
	}

	scope := &Scope{
		Identity: id,
		OwnerID:  root.OwnerID,
		Members:  members,
		members:  idSet(members),
		orgFirm:  idSet(orgFirms),
		firms:    make(map[int]struct{}),
	}
	for _, firmID := range candidates {
		if scope.OwnsFirm(firmID) {
			scope.firms[firmID] = struct{}{}
		}
	}
	scope.FirmIDs = sortedIDs(scope.firms)
	return scope, nil
}

// roleFirms applies the role policy before the organization intersection.
func (a *AccessScope) roleFirms(ctx context.Context, stores store.StoreProvider, id Identity, orgFirms []int) ([]int, error) {
	switch id.Role {
	case models.RoleOwner:
		return orgFirms, nil
	case models.RoleManager:
		reports, err := stores.Users().ListReportsOf(ctx, []int{id.UserID})
		if err != nil {
			return nil, fmt.Errorf("listing direct reports: %w", err)
		}
		userIDs := []int{id.UserID}
		for _, u := range reports {
			userIDs = append(userIDs, u.ID)
		}
		return stores.Mappings().ListFirmIDsByUsers(ctx, userIDs)
	default:
		return stores.Mappings().ListFirmIDsByUsers(ctx, []int{id.UserID})
	}
}

func (a *AccessScope) reportUnresolvable(userID int, outcome RootOutcome) {
	event := security.EventHierarchyOrphaned
	switch outcome {
	case RootCycleDetected:
		event = security.EventHierarchyCycle
	case RootDepthExceeded:
		event = security.EventHierarchyTooDeep
	}
	a.logger.Event(event, userID, map[string]interface{}{"outcome": outcome.String()})
	a.metrics.HierarchyFailure(outcome.String())
}

// report records an authorization refusal and returns err unchanged. Errors
// other than Forbidden and InvalidTransition pass through silently.
func (a *AccessScope) report(id Identity, err error) error {
	code := CodeOf(err)
	if code != CodeForbidden && code != CodeInvalidTransition {
		return err
	}
	a.metrics.AccessDenied(string(code))

	extra := map[string]interface{}{
		"code":   string(code),
		"reason": err.Error(),
	}
	var e *Error
	if errors.As(err, &e) {
		for k, v := range e.Metadata {
			extra[k] = v
		}
	}
	event := security.EventUnauthorizedAccess
	if code == CodeInvalidTransition {
		event = security.EventTransitionDenied
	}
	a.logger.Event(event, id.UserID, extra)
	return err
}
