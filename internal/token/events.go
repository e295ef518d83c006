package token

import "context"

// Event names as they appear on the wire and in the audit trail.
const (
	EventMinted           = "Minted"
	EventBurned           = "Burned"
	EventAdminTransferred = "AdminTransferred"
	EventMintBatched      = "MintBatched"
	EventBurnBatched      = "BurnBatched"
)

// MintedEvent is emitted after a committed single mint.
type MintedEvent struct {
	Actor   string `json:"actor"`
	Account string `json:"account"`
	ID      uint64 `json:"id"`
	Amount  uint64 `json:"amount"`
}

// BurnedEvent is emitted after a committed single burn.
type BurnedEvent struct {
	Actor   string `json:"actor"`
	Account string `json:"account"`
	ID      uint64 `json:"id"`
	Amount  uint64 `json:"amount"`
}

// AdminTransferredEvent is emitted after a committed direct transfer.
type AdminTransferredEvent struct {
	Actor  string `json:"actor"`
	From   string `json:"from"`
	To     string `json:"to"`
	ID     uint64 `json:"id"`
	Amount uint64 `json:"amount"`
}

// MintBatchedEvent is emitted after a committed batch mint.
type MintBatchedEvent struct {
	Actor   string   `json:"actor"`
	Account string   `json:"account"`
	IDs     []uint64 `json:"ids"`
	Amounts []uint64 `json:"amounts"`
}

// BurnBatchedEvent is emitted after a committed batch burn.
type BurnBatchedEvent struct {
	Actor   string   `json:"actor"`
	Account string   `json:"account"`
	IDs     []uint64 `json:"ids"`
	Amounts []uint64 `json:"amounts"`
}

// IntegrationHandler receives committed ledger events. Implementations
// fan the event out (job queue, webhooks); failures are logged by the
// service but never roll back the already-committed mutation.
type IntegrationHandler interface {
	HandleMinted(ctx context.Context, evt MintedEvent) error
	HandleBurned(ctx context.Context, evt BurnedEvent) error
	HandleAdminTransferred(ctx context.Context, evt AdminTransferredEvent) error
	HandleMintBatched(ctx context.Context, evt MintBatchedEvent) error
	HandleBurnBatched(ctx context.Context, evt BurnBatchedEvent) error
}
