package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktally/backend/internal/models"
)

var (
	// ErrNotFound signals the product does not exist in the caller's
	// organization. Products in other organizations produce the same error.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateSKU signals another product in the same organization
	// already uses the SKU.
	ErrDuplicateSKU = errors.New("sku already in use")
)

// Update carries the partial fields of a product update. Nil means leave
// the column unchanged.
type Update struct {
	Name              *string
	SKU               *string
	QuantityOnHand    *int
	CostPrice         *float64
	SellingPrice      *float64
	LowStockThreshold *int
	Description       *string
}

// Summary aggregates an organization's inventory for the dashboard.
type Summary struct {
	TotalProducts int
	TotalQuantity int
	LowStock      []models.Product
}

// Store persists products. Every method takes the caller's organization id
// and only ever sees rows inside it.
type Store interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, orgID uuid.UUID) ([]models.Product, error)
	Update(ctx context.Context, orgID, id uuid.UUID, upd Update) (*models.Product, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	SetImageKey(ctx context.Context, orgID, id uuid.UUID, key string) (*models.Product, error)
	// Summary counts products and quantity and selects the low-stock rows,
	// using each product's own threshold when set and defaultThreshold
	// otherwise.
	Summary(ctx context.Context, orgID uuid.UUID, defaultThreshold int) (*Summary, error)
}

// PostgresStore implements Store over a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates the Postgres-backed product store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const productColumns = `id, organization_id, name, sku, quantity_on_hand,
	cost_price, selling_price, low_stock_threshold,
	COALESCE(description, ''), COALESCE(image_key, ''), created_at, updated_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.SKU, &p.QuantityOnHand,
		&p.CostPrice, &p.SellingPrice, &p.LowStockThreshold,
		&p.Description, &p.ImageKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new product and fills the generated fields on p.
func (s *PostgresStore) Create(ctx context.Context, p *models.Product) error {
	const q = `INSERT INTO products (organization_id, name, sku, quantity_on_hand,
			cost_price, selling_price, low_stock_threshold, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	err := s.pool.QueryRow(ctx, q, p.OrganizationID, p.Name, p.SKU, p.QuantityOnHand,
		p.CostPrice, p.SellingPrice, p.LowStockThreshold, nullIfEmpty(p.Description)).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

// GetByID returns a product by id inside the organization.
func (s *PostgresStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products
		WHERE organization_id = $1 AND id = $2`
	p, err := scanProduct(s.pool.QueryRow(ctx, q, orgID, id))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// List returns the organization's products, newest first.
func (s *PostgresStore) List(ctx context.Context, orgID uuid.UUID) ([]models.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products
		WHERE organization_id = $1
		ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// Update applies the non-nil fields of upd and returns the updated product.
func (s *PostgresStore) Update(ctx context.Context, orgID, id uuid.UUID, upd Update) (*models.Product, error) {
	const q = `UPDATE products SET
			name = COALESCE($3, name),
			sku = COALESCE($4, sku),
			quantity_on_hand = COALESCE($5, quantity_on_hand),
			cost_price = COALESCE($6, cost_price),
			selling_price = COALESCE($7, selling_price),
			low_stock_threshold = COALESCE($8, low_stock_threshold),
			description = COALESCE($9, description),
			updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
		RETURNING ` + productColumns
	p, err := scanProduct(s.pool.QueryRow(ctx, q, orgID, id,
		upd.Name, upd.SKU, upd.QuantityOnHand,
		upd.CostPrice, upd.SellingPrice, upd.LowStockThreshold, upd.Description))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// Delete removes a product inside the organization.
func (s *PostgresStore) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	const q = `DELETE FROM products WHERE organization_id = $1 AND id = $2`
	tag, err := s.pool.Exec(ctx, q, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetImageKey stores the object key of the product's uploaded image.
func (s *PostgresStore) SetImageKey(ctx context.Context, orgID, id uuid.UUID, key string) (*models.Product, error) {
	const q = `UPDATE products SET image_key = $3, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
		RETURNING ` + productColumns
	p, err := scanProduct(s.pool.QueryRow(ctx, q, orgID, id, key))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// Summary aggregates totals and low-stock rows for the organization.
func (s *PostgresStore) Summary(ctx context.Context, orgID uuid.UUID, defaultThreshold int) (*Summary, error) {
	const totalsQ = `SELECT COUNT(*), COALESCE(SUM(quantity_on_hand), 0)
		FROM products WHERE organization_id = $1`
	var sum Summary
	if err := s.pool.QueryRow(ctx, totalsQ, orgID).Scan(&sum.TotalProducts, &sum.TotalQuantity); err != nil {
		return nil, err
	}

	const lowQ = `SELECT ` + productColumns + ` FROM products
		WHERE organization_id = $1
		  AND quantity_on_hand <= COALESCE(low_stock_threshold, $2)
		ORDER BY quantity_on_hand ASC, created_at DESC`
	rows, err := s.pool.Query(ctx, lowQ, orgID, defaultThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		sum.LowStock = append(sum.LowStock, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sum, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// mapError converts driver-level errors to the package's sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrDuplicateSKU
	}
	return err
}
