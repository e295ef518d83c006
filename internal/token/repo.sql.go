package token

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokenvault/tokenvault/internal/identity"
	"github.com/tokenvault/tokenvault/internal/platform/db"
)

// ledgerLockKey is the advisory lock key serializing all ledger mutation.
// Role check, pause check and the paired balance/supply update run as one
// indivisible unit under this lock.
const ledgerLockKey int64 = 0x544b564c // "TKVL"

// Supplies, balances and amounts are stored as NUMERIC(20,0) and moved
// through text so the full uint64 range survives the round trip.
func numeric(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseNumeric(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// Repository persists the token ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LedgerTx exposes the transactional operations used by the service.
type LedgerTx interface {
	Paused(ctx context.Context) (bool, error)
	HasRole(ctx context.Context, role string, addr identity.Address) (bool, error)
	SupplyForUpdate(ctx context.Context, assetID uint64) (uint64, error)
	SetSupply(ctx context.Context, assetID, value uint64) error
	BalanceForUpdate(ctx context.Context, addr identity.Address, assetID uint64) (uint64, error)
	SetBalance(ctx context.Context, addr identity.Address, assetID, value uint64) error
	InsertMovement(ctx context.Context, m Movement) error
	SetTokenURI(ctx context.Context, assetID uint64, uri string) error
	SetSetting(ctx context.Context, key, value string) error
}

type ledgerTx struct {
	tx pgx.Tx
}

// WithLedgerTx runs fn inside a repeatable-read transaction holding the
// ledger advisory lock, so mutating calls execute strictly one at a time.
func (r *Repository) WithLedgerTx(ctx context.Context, fn func(context.Context, LedgerTx) error) error {
	if r == nil {
		return errors.New("token repository not initialised")
	}
	return db.WithLockedTx(ctx, r.pool, ledgerLockKey, func(tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

// TotalSupply returns the counter for an asset id, zero for never-minted
// ids.
func (r *Repository) TotalSupply(ctx context.Context, assetID uint64) (uint64, error) {
	if r == nil {
		return 0, errors.New("token repository not initialised")
	}
	var raw string
	err := r.pool.QueryRow(ctx, `SELECT supply::text FROM supplies WHERE asset_id=$1`, numeric(assetID)).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return parseNumeric(raw)
}

// BalanceOf returns the balance of addr for an asset id, zero when absent.
func (r *Repository) BalanceOf(ctx context.Context, addr identity.Address, assetID uint64) (uint64, error) {
	if r == nil {
		return 0, errors.New("token repository not initialised")
	}
	var raw string
	err := r.pool.QueryRow(ctx, `SELECT balance::text FROM balances WHERE address=$1 AND asset_id=$2`, addr.String(), numeric(assetID)).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return parseNumeric(raw)
}

// TokenURI returns the explicit per-id URI when one is set.
func (r *Repository) TokenURI(ctx context.Context, assetID uint64) (string, bool, error) {
	if r == nil {
		return "", false, errors.New("token repository not initialised")
	}
	var uri string
	err := r.pool.QueryRow(ctx, `SELECT uri FROM token_uris WHERE asset_id=$1`, numeric(assetID)).Scan(&uri)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return uri, true, nil
}

// Setting returns a collection-level setting value, empty when unset.
func (r *Repository) Setting(ctx context.Context, key string) (string, error) {
	if r == nil {
		return "", errors.New("token repository not initialised")
	}
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// ListSupplies returns every asset with non-zero supply.
func (r *Repository) ListSupplies(ctx context.Context) ([]SupplyRow, error) {
	if r == nil {
		return nil, errors.New("token repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT asset_id::text, supply::text, updated_at FROM supplies WHERE supply > 0 ORDER BY asset_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SupplyRow{}
	for rows.Next() {
		var (
			row          SupplyRow
			rawID, rawSu string
		)
		if err := rows.Scan(&rawID, &rawSu, &row.UpdatedAt); err != nil {
			return nil, err
		}
		if row.AssetID, err = parseNumeric(rawID); err != nil {
			return nil, err
		}
		if row.Supply, err = parseNumeric(rawSu); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListMovements returns the most recent movement lines for an asset id.
func (r *Repository) ListMovements(ctx context.Context, assetID uint64, limit int) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("token repository not initialised")
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, batch_id, op, actor, from_address, to_address, asset_id::text, amount::text, created_at
FROM token_movements WHERE asset_id=$1 ORDER BY id DESC LIMIT $2`, numeric(assetID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMovement(rows pgx.Rows) (Movement, error) {
	var (
		m                   Movement
		op, actor, from, to string
		rawID, rawAmount    string
	)
	if err := rows.Scan(&m.ID, &m.BatchID, &op, &actor, &from, &to, &rawID, &rawAmount, &m.At); err != nil {
		return Movement{}, err
	}
	m.Op = MovementOp(op)
	var err error
	if m.Actor, err = identity.ParseAddress(actor); err != nil {
		return Movement{}, err
	}
	if m.From, err = identity.ParseAddress(from); err != nil {
		return Movement{}, err
	}
	if m.To, err = identity.ParseAddress(to); err != nil {
		return Movement{}, err
	}
	if m.AssetID, err = parseNumeric(rawID); err != nil {
		return Movement{}, err
	}
	if m.Amount, err = parseNumeric(rawAmount); err != nil {
		return Movement{}, err
	}
	return m, nil
}

func (l *ledgerTx) Paused(ctx context.Context) (bool, error) {
	var state string
	if err := l.tx.QueryRow(ctx, `SELECT state FROM pause_state WHERE id=1`).Scan(&state); err != nil {
		return false, err
	}
	return state == "PAUSED", nil
}

func (l *ledgerTx) HasRole(ctx context.Context, role string, addr identity.Address) (bool, error) {
	var exists bool
	err := l.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_members WHERE role=$1 AND address=$2)`, role, addr.String()).Scan(&exists)
	return exists, err
}

func (l *ledgerTx) SupplyForUpdate(ctx context.Context, assetID uint64) (uint64, error) {
	var raw string
	err := l.tx.QueryRow(ctx, `SELECT supply::text FROM supplies WHERE asset_id=$1 FOR UPDATE`, numeric(assetID)).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return parseNumeric(raw)
}

func (l *ledgerTx) SetSupply(ctx context.Context, assetID, value uint64) error {
	_, err := l.tx.Exec(ctx, `INSERT INTO supplies (asset_id, supply, updated_at) VALUES ($1,$2,NOW())
ON CONFLICT (asset_id) DO UPDATE SET supply=EXCLUDED.supply, updated_at=NOW()`, numeric(assetID), numeric(value))
	return err
}

func (l *ledgerTx) BalanceForUpdate(ctx context.Context, addr identity.Address, assetID uint64) (uint64, error) {
	var raw string
	err := l.tx.QueryRow(ctx, `SELECT balance::text FROM balances WHERE address=$1 AND asset_id=$2 FOR UPDATE`, addr.String(), numeric(assetID)).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return parseNumeric(raw)
}

func (l *ledgerTx) SetBalance(ctx context.Context, addr identity.Address, assetID, value uint64) error {
	_, err := l.tx.Exec(ctx, `INSERT INTO balances (address, asset_id, balance, updated_at) VALUES ($1,$2,$3,NOW())
ON CONFLICT (address, asset_id) DO UPDATE SET balance=EXCLUDED.balance, updated_at=NOW()`, addr.String(), numeric(assetID), numeric(value))
	return err
}

func (l *ledgerTx) InsertMovement(ctx context.Context, m Movement) error {
	_, err := l.tx.Exec(ctx, `INSERT INTO token_movements (batch_id, op, actor, from_address, to_address, asset_id, amount, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`, m.BatchID, string(m.Op), m.Actor.String(), m.From.String(), m.To.String(), numeric(m.AssetID), numeric(m.Amount))
	return err
}

func (l *ledgerTx) SetTokenURI(ctx context.Context, assetID uint64, uri string) error {
	_, err := l.tx.Exec(ctx, `INSERT INTO token_uris (asset_id, uri) VALUES ($1,$2)
ON CONFLICT (asset_id) DO UPDATE SET uri=EXCLUDED.uri`, numeric(assetID), uri)
	return err
}

func (l *ledgerTx) SetSetting(ctx context.Context, key, value string) error {
	_, err := l.tx.Exec(ctx, `INSERT INTO settings (key, value) VALUES ($1,$2)
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value`, key, value)
	return err
}
