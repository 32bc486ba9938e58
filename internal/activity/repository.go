package activity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktally/backend/internal/models"
)

// Store persists the stock activity log. Rows are append-only; the log
// keeps entries for deleted products.
type Store interface {
	Record(ctx context.Context, a *models.StockActivity) error
	ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]models.StockActivity, error)
}

// PostgresStore implements Store over a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates the Postgres-backed activity store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Record appends an activity row and fills the generated fields on a.
func (s *PostgresStore) Record(ctx context.Context, a *models.StockActivity) error {
	const q = `INSERT INTO stock_activities
			(organization_id, product_id, user_id, action, quantity_delta, quantity_after, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, recorded_at`
	return s.pool.QueryRow(ctx, q, a.OrganizationID, a.ProductID, a.UserID,
		a.Action, a.QuantityDelta, a.QuantityAfter, a.Detail).
		Scan(&a.ID, &a.RecordedAt)
}

// ListByOrganization returns the organization's most recent activity rows.
func (s *PostgresStore) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]models.StockActivity, error) {
	const q = `SELECT id, organization_id, product_id, user_id, action,
			quantity_delta, quantity_after, COALESCE(detail, ''), recorded_at
		FROM stock_activities
		WHERE organization_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, q, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.StockActivity
	for rows.Next() {
		var a models.StockActivity
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.ProductID, &a.UserID,
			&a.Action, &a.QuantityDelta, &a.QuantityAfter, &a.Detail, &a.RecordedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
