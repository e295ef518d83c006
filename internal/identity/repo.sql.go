package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists API keys in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindKey loads an active API key by id.
func (r *Repository) FindKey(ctx context.Context, id string) (APIKey, error) {
	if r == nil {
		return APIKey{}, errors.New("identity repository not initialised")
	}
	var (
		key  APIKey
		addr string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, address, secret_hash, label, created_at
FROM api_keys WHERE id=$1 AND revoked_at IS NULL`, id).
		Scan(&key.ID, &addr, &key.SecretHash, &key.Label, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIKey{}, ErrKeyNotFound
		}
		return APIKey{}, err
	}
	key.Address, err = ParseAddress(addr)
	if err != nil {
		return APIKey{}, err
	}
	return key, nil
}

// InsertKey stores a new API key record.
func (r *Repository) InsertKey(ctx context.Context, key APIKey) error {
	if r == nil {
		return errors.New("identity repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO api_keys (id, address, secret_hash, label, created_at)
VALUES ($1,$2,$3,$4,NOW())`, key.ID, key.Address.String(), key.SecretHash, key.Label)
	return err
}

// RevokeKey marks a key as revoked. Revoking an unknown key is a no-op.
func (r *Repository) RevokeKey(ctx context.Context, id string) error {
	if r == nil {
		return errors.New("identity repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `UPDATE api_keys SET revoked_at=NOW() WHERE id=$1 AND revoked_at IS NULL`, id)
	return err
}
