// Package token orchestrates mint, burn, transfer and URI administration
// over the multi-asset ledger. An asset exists exactly when its total
// supply is greater than zero; no creation step is required.
package token

import (
	"errors"
	"time"

	"github.com/tokenvault/tokenvault/internal/identity"
)

// MovementOp enumerates ledger movement kinds.
type MovementOp string

const (
	// OpMint credits balance out of the null identity.
	OpMint MovementOp = "MINT"
	// OpBurn debits balance into the null identity.
	OpBurn MovementOp = "BURN"
	// OpTransfer moves balance between two non-null identities.
	OpTransfer MovementOp = "TRANSFER"
)

// Movement is one id/amount line of a ledger mutation. Batch operations
// share a BatchID across their lines.
type Movement struct {
	ID      int64
	BatchID string
	Op      MovementOp
	Actor   identity.Address
	From    identity.Address
	To      identity.Address
	AssetID uint64
	Amount  uint64
	At      time.Time
}

// SupplyRow is one asset's total-issued counter.
type SupplyRow struct {
	AssetID   uint64
	Supply    uint64
	UpdatedAt time.Time
}

// MintInput describes a single mint request.
type MintInput struct {
	Actor          identity.Address
	Account        identity.Address
	AssetID        uint64
	Amount         uint64
	IdempotencyKey string
}

// BatchInput describes a batched mint or burn request. AssetIDs and
// Amounts are parallel sequences.
type BatchInput struct {
	Actor          identity.Address
	Account        identity.Address
	AssetIDs       []uint64
	Amounts        []uint64
	IdempotencyKey string
}

// BurnInput describes a single burn request.
type BurnInput struct {
	Actor          identity.Address
	Account        identity.Address
	AssetID        uint64
	Amount         uint64
	IdempotencyKey string
}

// TransferInput describes a self-service transfer from the resolved caller.
type TransferInput struct {
	Actor          identity.Address
	To             identity.Address
	AssetID        uint64
	Amount         uint64
	IdempotencyKey string
}

// ReceiptEntry reports the post-operation supply for one asset id.
type ReceiptEntry struct {
	AssetID uint64
	Amount  uint64
	Supply  uint64
}

// Receipt summarises a committed ledger mutation.
type Receipt struct {
	BatchID string
	Entries []ReceiptEntry
}

// Settings keys for collection-level strings.
const (
	SettingBaseURI     = "base_token_uri"
	SettingContractURI = "contract_uri"
)

// Error taxonomy. Every precondition is checked before any mutation; a
// failed call leaves no partial state behind.
var (
	ErrUnauthorized        = errors.New("token: unauthorized")
	ErrPaused              = errors.New("token: ledger paused")
	ErrLengthMismatch      = errors.New("token: ids and amounts length mismatch")
	ErrInsufficientSupply  = errors.New("token: insufficient supply")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrSupplyOverflow      = errors.New("token: supply overflow")
	ErrInvalidArgument     = errors.New("token: invalid argument")
)
