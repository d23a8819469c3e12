package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/store"
)

// TeamService manages organization membership, the reporting hierarchy and
// firm assignments, and exposes the records behind a caller's firm scope.
type TeamService struct {
	tx     store.TxRunner
	scope  *AccessScope
	logger *security.Logger
}

// NewTeamService creates a TeamService.
func NewTeamService(tx store.TxRunner, scope *AccessScope, logger *security.Logger) *TeamService {
	return &TeamService{tx: tx, scope: scope, logger: logger}
}

// ResolveAccessibleFirms returns the ids of every firm the caller may operate on.
func (s *TeamService) ResolveAccessibleFirms(ctx context.Context, id Identity) ([]int, error) {
	var firmIDs []int
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}
		firmIDs = scope.FirmIDs
		return nil
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}
	return firmIDs, nil
}

// ListFirms returns the firms in the caller's scope.
func (s *TeamService) ListFirms(ctx context.Context, id Identity) ([]models.Firm, error) {
	firms := []models.Firm{}
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}
		found, err := stores.Firms().ListByIDs(ctx, scope.FirmIDs)
		if err != nil {
			return fmt.Errorf("listing firms: %w", err)
		}
		firms = append(firms, found...)
		return nil
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}
	return firms, nil
}

// ListClients returns the clients owning at least one firm in the caller's scope.
func (s *TeamService) ListClients(ctx context.Context, id Identity) ([]models.Client, error) {
	clients := []models.Client{}
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}
		firms, err := stores.Firms().ListByIDs(ctx, scope.FirmIDs)
		if err != nil {
			return fmt.Errorf("listing firms: %w", err)
		}

		clientIDs := make(map[int]struct{}, len(firms))
		for _, f := range firms {
			clientIDs[f.ClientID] = struct{}{}
		}
		found, err := stores.Clients().ListByIDs(ctx, sortedIDs(clientIDs))
		if err != nil {
			return fmt.Errorf("listing clients: %w", err)
		}
		clients = append(clients, found...)
		return nil
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}
	return clients, nil
}

// ListMembers returns every user in the caller's organization, root included.
func (s *TeamService) ListMembers(ctx context.Context, id Identity) ([]models.User, error) {
	members := []models.User{}
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}
		found, err := stores.Users().ListByIDs(ctx, scope.Members)
		if err != nil {
			return fmt.Errorf("listing members: %w", err)
		}
		members = append(members, found...)
		return nil
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}
	return members, nil
}

// AssignFirm maps a member of the caller's organization to a firm.
//
// Owners and managers only. The target must be an organization member and the
// firm must be in the caller's own scope, so a manager cannot hand out (or take)
// access to firms they do not hold.
//
// Returns:
//   - *models.UserFirmMapping: The created mapping
//   - error: Forbidden, NotFound (firm), ValidationFailed if already assigned
func (s *TeamService) AssignFirm(ctx context.Context, id Identity, userID, firmID int) (*models.UserFirmMapping, error) {
	var mapping *models.UserFirmMapping
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.authorizeAssignment(ctx, stores, id, userID, firmID)
		if err != nil {
			return err
		}

		mapping = &models.UserFirmMapping{UserID: userID, FirmID: firmID, AssignedBy: scope.Identity.UserID}
		err = stores.Mappings().Create(ctx, mapping)
		if errors.Is(err, store.ErrAlreadyExists) {
			return validationFailed("firm_id", "user is already assigned to this firm")
		}
		if err != nil {
			return fmt.Errorf("creating mapping: %w", err)
		}
		return audit(ctx, stores, &scope.Identity.UserID, AuditFirmAssign, "user", userID, fmt.Sprintf("firm=%d", firmID))
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}

	s.logger.Event(security.EventFirmAssign, id.UserID, map[string]interface{}{
		"user_id": userID,
		"firm_id": firmID,
	})
	return mapping, nil
}

// UnassignFirm removes a user's mapping to a firm under the same rules as AssignFirm.
func (s *TeamService) UnassignFirm(ctx context.Context, id Identity, userID, firmID int) error {
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.authorizeAssignment(ctx, stores, id, userID, firmID)
		if err != nil {
			return err
		}

		err = stores.Mappings().Delete(ctx, userID, firmID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("assignment")
		}
		if err != nil {
			return fmt.Errorf("deleting mapping: %w", err)
		}
		return audit(ctx, stores, &scope.Identity.UserID, AuditFirmUnassign, "user", userID, fmt.Sprintf("firm=%d", firmID))
	})
	if err != nil {
		return s.scope.report(id, err)
	}

	s.logger.Event(security.EventFirmUnassign, id.UserID, map[string]interface{}{
		"user_id": userID,
		"firm_id": firmID,
	})
	return nil
}

func (s *TeamService) authorizeAssignment(ctx context.Context, stores store.StoreProvider, id Identity, userID, firmID int) (*Scope, error) {
	scope, err := s.scope.Resolve(ctx, stores, id)
	if err != nil {
		return nil, err
	}
	if !scope.Identity.Role.IsSupervisor() {
		return nil, forbidden("only owners and managers can manage firm assignments")
	}
	if !scope.HasMember(userID) {
		return nil, forbidden("user is outside your organization")
	}

	if _, err := stores.Firms().GetByID(ctx, firmID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("firm")
		}
		return nil, fmt.Errorf("loading firm: %w", err)
	}
	if !scope.HasFirm(firmID) {
		return nil, forbidden("firm is outside your access scope")
	}
	return scope, nil
}

// SetReportsTo moves a member under a new supervisor. Owners only.
//
// The manager must be an Owner or Manager in the same organization, and the
// move must not put the user above their new manager.
func (s *TeamService) SetReportsTo(ctx context.Context, id Identity, userID, managerID int) (*models.User, error) {
	if userID == managerID {
		return nil, validationFailed("manager_id", "a user cannot report to themselves")
	}

	var (
		user     *models.User
		previous *int
	)
	err := s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		scope, err := s.scope.Resolve(ctx, stores, id)
		if err != nil {
			return err
		}
		if scope.Identity.Role != models.RoleOwner {
			return forbidden("only owners can change the reporting hierarchy")
		}
		if !scope.HasMember(userID) || !scope.HasMember(managerID) {
			return forbidden("user is outside your organization")
		}

		users := stores.Users()
		user, err = users.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("loading user: %w", err)
		}
		if isRoot(user) {
			return forbidden("an organization root cannot report to anyone")
		}
		manager, err := users.GetByID(ctx, managerID)
		if err != nil {
			return fmt.Errorf("loading manager: %w", err)
		}
		if !manager.Role.IsSupervisor() {
			return validationFailed("manager_id", "users can only report to an owner or a manager")
		}

		above, err := reportsUpTo(ctx, users, managerID, userID)
		if err != nil {
			return err
		}
		if above {
			return validationFailed("manager_id", "the move would create a reporting cycle")
		}

		previous = user.ReportsTo
		if err := users.SetReportsTo(ctx, userID, &managerID); err != nil {
			return fmt.Errorf("updating reports_to: %w", err)
		}
		user.ReportsTo = &managerID
		return audit(ctx, stores, &scope.Identity.UserID, AuditReportsToChange, "user", userID,
			fmt.Sprintf("%s->%d", formatOptionalID(previous), managerID))
	})
	if err != nil {
		return nil, s.scope.report(id, err)
	}

	s.logger.Event(security.EventReportsToChange, id.UserID, map[string]interface{}{
		"user_id":    userID,
		"manager_id": managerID,
		"previous":   formatOptionalID(previous),
	})
	return user, nil
}

// reportsUpTo reports whether ancestorID appears on the reports_to chain above userID.
func reportsUpTo(ctx context.Context, users store.UserStore, userID, ancestorID int) (bool, error) {
	current := userID
	for depth := 0; depth <= MaxHierarchyDepth; depth++ {
		if current == ancestorID {
			return true, nil
		}
		u, err := users.GetByID(ctx, current)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("loading user %d: %w", current, err)
		}
		if u.ReportsTo == nil || isRoot(u) {
			return false, nil
		}
		current = *u.ReportsTo
	}
	// A chain this long is already broken; refuse rather than guess.
	return true, nil
}

func formatOptionalID(id *int) string {
	if id == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *id)
}
