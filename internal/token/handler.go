package token

import (
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tokenvault/tokenvault/internal/identity"
	"github.com/tokenvault/tokenvault/internal/platform/httpx"
	"github.com/tokenvault/tokenvault/internal/shared"
)

// Handler wires HTTP endpoints for ledger operations.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs token handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers token routes. Role gating happens inside the
// service, within the same transaction as the mutation it protects.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/mint", h.handleMint)
	r.Post("/mint-batch", h.handleMintBatch)
	r.Post("/burn", h.handleBurn)
	r.Post("/burn-batch", h.handleBurnBatch)
	r.Post("/transfer", h.handleTransfer)
	r.Get("/export", h.handleExportCSV)
	r.Get("/{id}/supply", h.handleSupply)
	r.Get("/{id}/uri", h.handleURI)
	r.Get("/{id}/movements", h.handleMovements)
	r.Put("/{id}/uri", h.handleSetTokenURI)
	r.Put("/base-uri", h.handleSetBaseURI)
}

// MountContractRoutes registers the collection-level URI endpoints.
func (h *Handler) MountContractRoutes(r chi.Router) {
	r.Get("/", h.handleGetContractURI)
	r.Put("/", h.handleSetContractURI)
}

// Zero amounts are accepted: they move nothing but still record a
// movement line, mirroring the ledger semantics.
type amountPayload struct {
	Account string `json:"account" validate:"required"`
	ID      uint64 `json:"id"`
	Amount  uint64 `json:"amount"`
}

type batchPayload struct {
	Account string   `json:"account" validate:"required"`
	IDs     []uint64 `json:"ids"`
	Amounts []uint64 `json:"amounts"`
}

type transferPayload struct {
	To     string `json:"to" validate:"required"`
	ID     uint64 `json:"id"`
	Amount uint64 `json:"amount"`
}

type uriPayload struct {
	URI string `json:"uri"`
}

type receiptEntryResponse struct {
	ID     uint64 `json:"id"`
	Amount uint64 `json:"amount"`
	Supply uint64 `json:"supply"`
}

type receiptResponse struct {
	BatchID string                 `json:"batch_id"`
	Entries []receiptEntryResponse `json:"entries"`
}

func toReceiptResponse(receipt Receipt) receiptResponse {
	out := receiptResponse{BatchID: receipt.BatchID, Entries: make([]receiptEntryResponse, 0, len(receipt.Entries))}
	for _, e := range receipt.Entries {
		out.Entries = append(out.Entries, receiptEntryResponse{ID: e.AssetID, Amount: e.Amount, Supply: e.Supply})
	}
	return out
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	actor, payload, ok := h.decodeAmount(w, r)
	if !ok {
		return
	}
	account, err := identity.ParseAddress(payload.Account)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account address")
		return
	}
	receipt, err := h.service.Mint(r.Context(), MintInput{
		Actor:          actor,
		Account:        account,
		AssetID:        payload.ID,
		Amount:         payload.Amount,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReceiptResponse(receipt))
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	actor, payload, ok := h.decodeAmount(w, r)
	if !ok {
		return
	}
	account, err := identity.ParseAddress(payload.Account)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account address")
		return
	}
	receipt, err := h.service.Burn(r.Context(), BurnInput{
		Actor:          actor,
		Account:        account,
		AssetID:        payload.ID,
		Amount:         payload.Amount,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReceiptResponse(receipt))
}

func (h *Handler) handleMintBatch(w http.ResponseWriter, r *http.Request) {
	h.handleBatch(w, r, h.service.MintBatch)
}

func (h *Handler) handleBurnBatch(w http.ResponseWriter, r *http.Request) {
	h.handleBatch(w, r, h.service.BurnBatch)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, input BatchInput) (Receipt, error)) {
	actor, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload batchPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := identity.ParseAddress(payload.Account)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account address")
		return
	}
	receipt, err := run(r.Context(), BatchInput{
		Actor:          actor,
		Account:        account,
		AssetIDs:       payload.IDs,
		Amounts:        payload.Amounts,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReceiptResponse(receipt))
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload transferPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	to, err := identity.ParseAddress(payload.To)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid recipient address")
		return
	}
	receipt, err := h.service.Transfer(r.Context(), TransferInput{
		Actor:          actor,
		To:             to,
		AssetID:        payload.ID,
		Amount:         payload.Amount,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReceiptResponse(receipt))
}

func (h *Handler) handleSupply(w http.ResponseWriter, r *http.Request) {
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	supply, err := h.service.TotalSupply(r.Context(), assetID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": assetID, "total_supply": supply, "exists": supply > 0})
}

func (h *Handler) handleURI(w http.ResponseWriter, r *http.Request) {
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	uri, err := h.service.URI(r.Context(), assetID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": assetID, "uri": uri})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	movements, err := h.service.Movements(r.Context(), assetID, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	type movementResponse struct {
		BatchID string `json:"batch_id"`
		Op      string `json:"op"`
		Actor   string `json:"actor"`
		From    string `json:"from"`
		To      string `json:"to"`
		ID      uint64 `json:"id"`
		Amount  uint64 `json:"amount"`
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, movementResponse{
			BatchID: m.BatchID,
			Op:      string(m.Op),
			Actor:   m.Actor.String(),
			From:    m.From.String(),
			To:      m.To.String(),
			ID:      m.AssetID,
			Amount:  m.Amount,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": assetID, "movements": out})
}

// HandleBalance serves GET /api/accounts/{addr}/balances/{id}.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := identity.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid address")
		return
	}
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	balance, err := h.service.BalanceOf(r.Context(), addr, assetID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"address": addr.String(), "id": assetID, "balance": balance})
}

func (h *Handler) handleSetTokenURI(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.caller(w, r)
	if !ok {
		return
	}
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	var payload uriPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.service.SetTokenURI(r.Context(), actor, assetID, payload.URI); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": assetID, "uri": payload.URI})
}

func (h *Handler) handleSetBaseURI(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload uriPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.service.SetBaseTokenURI(r.Context(), actor, payload.URI); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"base_uri": payload.URI})
}

func (h *Handler) handleGetContractURI(w http.ResponseWriter, r *http.Request) {
	uri, err := h.service.ContractURI(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"contract_uri": uri})
}

func (h *Handler) handleSetContractURI(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload uriPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.service.SetContractURI(r.Context(), actor, payload.URI); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"contract_uri": payload.URI})
}

// handleExportCSV streams a supply snapshot. The human-readable column is
// grouped per English locale conventions.
func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	supplies, err := h.service.Supplies(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="supplies.csv"`)
	writer := csv.NewWriter(w)
	printer := message.NewPrinter(language.English)
	_ = writer.Write([]string{"asset_id", "total_supply", "total_supply_formatted", "updated_at"})
	for _, row := range supplies {
		_ = writer.Write([]string{
			strconv.FormatUint(row.AssetID, 10),
			strconv.FormatUint(row.Supply, 10),
			printer.Sprintf("%d", row.Supply),
			row.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writer.Flush()
}

func (h *Handler) decodeAmount(w http.ResponseWriter, r *http.Request) (identity.Address, amountPayload, bool) {
	actor, ok := h.caller(w, r)
	if !ok {
		return identity.ZeroAddress, amountPayload{}, false
	}
	var payload amountPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return identity.ZeroAddress, amountPayload{}, false
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return identity.ZeroAddress, amountPayload{}, false
	}
	return actor, payload, true
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (identity.Address, bool) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no resolved caller")
		return identity.ZeroAddress, false
	}
	return caller, true
}

func (h *Handler) assetID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	assetID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid asset id")
		return 0, false
	}
	return assetID, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		httpx.Problem(w, http.StatusForbidden, "Unauthorized", err.Error())
	case errors.Is(err, ErrPaused):
		httpx.Problem(w, http.StatusConflict, "Paused", err.Error())
	case errors.Is(err, ErrLengthMismatch), errors.Is(err, ErrInvalidArgument):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInsufficientSupply), errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrSupplyOverflow):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Precondition Failed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("token handler", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
