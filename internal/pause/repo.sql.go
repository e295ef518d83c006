package pause

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the pause switch in PostgreSQL. The switch is a
// single row keyed by id=1, inserted ACTIVE by the schema.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Status reads the current switch state.
func (r *Repository) Status(ctx context.Context) (Status, error) {
	if r == nil {
		return Status{}, errors.New("pause repository not initialised")
	}
	var status Status
	err := r.pool.QueryRow(ctx, `SELECT state, changed_by, changed_at FROM pause_state WHERE id=1`).
		Scan(&status.State, &status.ChangedBy, &status.ChangedAt)
	return status, err
}

// Transition flips the switch with a guarded UPDATE. It returns
// pgx.ErrNoRows when the current state does not match from; the caller
// maps that to its domain error.
func (r *Repository) Transition(ctx context.Context, from, to State, actor string) error {
	if r == nil {
		return errors.New("pause repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE pause_state SET state=$1, changed_by=$2, changed_at=NOW()
WHERE id=1 AND state=$3`, string(to), actor, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
