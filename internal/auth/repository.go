package auth

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
	// ErrDuplicateEmail signals the email is already registered. The UNIQUE
	// constraint on users.email is the authoritative source of this error;
	// any pre-insert existence check is an optimization only.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUserNotFound signals no user exists with the given email or id.
	ErrUserNotFound = errors.New("user not found")
)

// Store persists users and the organizations created alongside them at
// signup.
type Store interface {
	// CreateAccount creates an organization and its first user as a single
	// atomic unit: a failure creating the user must not leave an orphan
	// organization behind.
	CreateAccount(ctx context.Context, email, passwordHash, organizationName string) (*models.User, *models.Organization, error)
	// GetUserByEmail looks up a user by exact, case-sensitive email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByID looks up a user by id.
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// PostgresStore implements Store over a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates the Postgres-backed account store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const userColumns = `id, email, password_hash, organization_id, created_at, updated_at`

// CreateAccount inserts the organization and user in one transaction so the
// tenant and its first member appear (or fail) together.
func (s *PostgresStore) CreateAccount(ctx context.Context, email, passwordHash, organizationName string) (*models.User, *models.Organization, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const orgQ = `INSERT INTO organizations (name)
		VALUES ($1)
		RETURNING id, name, default_low_stock_threshold, created_at, updated_at`
	var org models.Organization
	if err := tx.QueryRow(ctx, orgQ, organizationName).
		Scan(&org.ID, &org.Name, &org.DefaultLowStockThreshold, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, nil, mapError(err)
	}

	const userQ = `INSERT INTO users (email, password_hash, organization_id)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	var u models.User
	if err := tx.QueryRow(ctx, userQ, email, passwordHash, org.ID).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, nil, mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, mapError(err)
	}
	return &u, &org, nil
}

// GetUserByEmail returns the user with the exact stored email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	var u models.User
	err := s.pool.QueryRow(ctx, q, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// GetUserByID returns a user by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var u models.User
	err := s.pool.QueryRow(ctx, q, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// mapError converts driver-level errors to the package's sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}
