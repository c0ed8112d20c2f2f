package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billpay/backend/internal/models"
)

const accountColumns = `id, email, name, business_name, phone, api_key_hash, api_key_prefix,
	is_active, is_verified, key_expires_at, last_login_at, created_at, updated_at`

// Repository is the Postgres-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.BusinessName, &a.Phone, &a.APIKeyHash, &a.APIKeyPrefix,
		&a.IsActive, &a.IsVerified, &a.KeyExpiresAt, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a new account and returns the stored row.
func (r *Repository) Create(ctx context.Context, p CreateParams) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		INSERT INTO user_accounts (email, name, business_name, phone, api_key_hash, api_key_prefix,
			is_active, is_verified, key_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, FALSE, $7, $8, $8)
		RETURNING `+accountColumns,
		p.Email, p.Name, p.BusinessName, p.Phone, p.KeyHash, p.KeyPrefix, p.KeyExpiresAt, p.Now))
}

func (r *Repository) GetByKeyHash(ctx context.Context, keyHash string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM user_accounts WHERE api_key_hash = $1
	`, keyHash))
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM user_accounts WHERE id = $1
	`, id))
}

// RotateKey swaps in a new key digest and expiry. Concurrent rotations are
// last-write-wins.
func (r *Repository) RotateKey(ctx context.Context, id int64, keyHash, keyPrefix string, expiresAt, now time.Time) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		UPDATE user_accounts SET api_key_hash = $2, api_key_prefix = $3, key_expires_at = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+accountColumns,
		id, keyHash, keyPrefix, expiresAt, now))
}

func (r *Repository) SetActive(ctx context.Context, id int64, active bool, now time.Time) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		UPDATE user_accounts SET is_active = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+accountColumns,
		id, active, now))
}

func (r *Repository) SetVerified(ctx context.Context, id int64, now time.Time) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		UPDATE user_accounts SET is_verified = TRUE, updated_at = $2
		WHERE id = $1
		RETURNING `+accountColumns,
		id, now))
}

func (r *Repository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE user_accounts SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// List returns all accounts, optionally filtered by the active flag.
func (r *Repository) List(ctx context.Context, active *bool) ([]*models.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM user_accounts`
	var args []any
	if active != nil {
		q += ` WHERE is_active = $1`
		args = append(args, *active)
	}
	q += ` ORDER BY id`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
