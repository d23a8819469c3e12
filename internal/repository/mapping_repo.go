package repository

import (
	"context"
	"fmt"

	"github.com/avissapr/firmdesk/internal/database"
	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/store"
)

// MappingRepository manages user-to-firm assignments.
type MappingRepository struct {
	q database.Querier
}

// NewMappingRepository creates a MappingRepository on the global pool.
func NewMappingRepository() *MappingRepository {
	return &MappingRepository{}
}

// Create assigns a user to a firm.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - mapping: UserID, FirmID and AssignedBy must be set
//
// Returns:
//   - error: store.ErrAlreadyExists if the (user, firm) pair is already mapped
//
// Side Effects: Populates mapping.ID and mapping.AssignedAt
func (r *MappingRepository) Create(ctx context.Context, mapping *models.UserFirmMapping) error {
	query := `
		INSERT INTO user_firm_mappings (user_id, firm_id, assigned_by)
		VALUES ($1, $2, $3)
		RETURNING id, assigned_at
	`
	err := conn(r.q).QueryRow(ctx, query,
		mapping.UserID, mapping.FirmID, mapping.AssignedBy,
	).Scan(&mapping.ID, &mapping.AssignedAt)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// Delete removes the mapping between userID and firmID.
func (r *MappingRepository) Delete(ctx context.Context, userID, firmID int) error {
	tag, err := conn(r.q).Exec(ctx,
		`DELETE FROM user_firm_mappings WHERE user_id = $1 AND firm_id = $2`, userID, firmID)
	if err != nil {
		return fmt.Errorf("deleting firm mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListFirmIDsByUsers returns the distinct firm ids mapped to any of userIDs.
func (r *MappingRepository) ListFirmIDsByUsers(ctx context.Context, userIDs []int) ([]int, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT firm_id
		FROM user_firm_mappings
		WHERE user_id = ANY($1)
		ORDER BY firm_id
	`
	return collectIDs(ctx, r.q, query, userIDs)
}
