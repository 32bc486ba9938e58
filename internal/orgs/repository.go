package orgs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktally/backend/internal/models"
)

// ErrNotFound signals the organization does not exist.
var ErrNotFound = errors.New("organization not found")

// Store persists organizations. Organizations are created by the signup
// flow; this store only reads and updates them.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	// UpdateDefaultLowStockThreshold sets the org-wide fallback threshold
	// used by products that carry no threshold of their own.
	UpdateDefaultLowStockThreshold(ctx context.Context, id uuid.UUID, threshold int) (*models.Organization, error)
}

// PostgresStore implements Store over a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates the Postgres-backed organization store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const orgColumns = `id, name, default_low_stock_threshold, created_at, updated_at`

// GetByID returns an organization by id.
func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	const q = `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	var o models.Organization
	err := s.pool.QueryRow(ctx, q, id).
		Scan(&o.ID, &o.Name, &o.DefaultLowStockThreshold, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &o, nil
}

// UpdateDefaultLowStockThreshold updates the single settings column and
// returns the updated organization.
func (s *PostgresStore) UpdateDefaultLowStockThreshold(ctx context.Context, id uuid.UUID, threshold int) (*models.Organization, error) {
	const q = `UPDATE organizations
		SET default_low_stock_threshold = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + orgColumns
	var o models.Organization
	err := s.pool.QueryRow(ctx, q, id, threshold).
		Scan(&o.ID, &o.Name, &o.DefaultLowStockThreshold, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &o, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
