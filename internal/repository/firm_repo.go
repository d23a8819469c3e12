package repository

import (
	"context"

	"github.com/avissapr/firmdesk/internal/database"
	"github.com/avissapr/firmdesk/internal/models"
	"github.com/jackc/pgx/v5"
)

const firmColumns = `id, client_id, name, entity_type, gst_registered, tds_applicable, roc_applicable, created_by, created_at`

// FirmRepository handles firm lookups.
// Firms are owned by the organization of their created_by user, so the access
// scope calculator leans on ListIDsByCreators.
type FirmRepository struct {
	q database.Querier
}

// NewFirmRepository creates a FirmRepository on the global pool.
func NewFirmRepository() *FirmRepository {
	return &FirmRepository{}
}

func scanFirm(row pgx.Row) (*models.Firm, error) {
	var f models.Firm
	err := row.Scan(
		&f.ID, &f.ClientID, &f.Name, &f.EntityType,
		&f.GSTRegistered, &f.TDSApplicable, &f.ROCApplicable,
		&f.CreatedBy, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetByID retrieves a firm by primary key.
//
// Returns:
//   - *models.Firm: The firm
//   - error: store.ErrNotFound if no firm has this id
func (r *FirmRepository) GetByID(ctx context.Context, id int) (*models.Firm, error) {
	query := `SELECT ` + firmColumns + ` FROM firms WHERE id = $1`

	firm, err := scanFirm(conn(r.q).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return firm, nil
}

// ListByIDs retrieves the firms with the given ids, ordered by name.
func (r *FirmRepository) ListByIDs(ctx context.Context, ids []int) ([]models.Firm, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + firmColumns + ` FROM firms WHERE id = ANY($1) ORDER BY name`

	rows, err := conn(r.q).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var firms []models.Firm
	for rows.Next() {
		firm, err := scanFirm(rows)
		if err != nil {
			return nil, err
		}
		firms = append(firms, *firm)
	}
	return firms, rows.Err()
}

// ListIDsByCreators returns the ids of every firm created by one of creatorIDs.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - creatorIDs: Organization member ids
//
// Returns:
//   - []int: Firm ids in ascending order
//   - error: Database error if query fails
func (r *FirmRepository) ListIDsByCreators(ctx context.Context, creatorIDs []int) ([]int, error) {
	if len(creatorIDs) == 0 {
		return nil, nil
	}
	return collectIDs(ctx, r.q, `SELECT id FROM firms WHERE created_by = ANY($1) ORDER BY id`, creatorIDs)
}

// collectIDs runs a single-column integer query.
func collectIDs(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]int, error) {
	rows, err := conn(q).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
