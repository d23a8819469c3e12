package repository

import (
	"context"

	"github.com/avissapr/firmdesk/internal/database"
	"github.com/avissapr/firmdesk/internal/models"
)

// ClientRepository reads client records.
type ClientRepository struct {
	q database.Querier
}

// NewClientRepository creates a ClientRepository on the global pool.
func NewClientRepository() *ClientRepository {
	return &ClientRepository{}
}

// ListByIDs retrieves the clients with the given ids, ordered by name.
func (r *ClientRepository) ListByIDs(ctx context.Context, ids []int) ([]models.Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, name, email, created_by, created_at
		FROM clients
		WHERE id = ANY($1)
		ORDER BY name
	`

	rows, err := conn(r.q).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}
