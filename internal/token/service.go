package token

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/google/uuid"

	"github.com/tokenvault/tokenvault/internal/identity"
	"github.com/tokenvault/tokenvault/internal/roles"
	"github.com/tokenvault/tokenvault/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithLedgerTx(ctx context.Context, fn func(context.Context, LedgerTx) error) error
	TotalSupply(ctx context.Context, assetID uint64) (uint64, error)
	BalanceOf(ctx context.Context, addr identity.Address, assetID uint64) (uint64, error)
	TokenURI(ctx context.Context, assetID uint64) (string, bool, error)
	Setting(ctx context.Context, key string) (string, error)
	ListSupplies(ctx context.Context) ([]SupplyRow, error)
	ListMovements(ctx context.Context, assetID uint64, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort reserves and releases request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates ledger operations. Every mutating entry point runs
// its pause check, role check and the paired balance/supply update inside
// one locked transaction; any precondition failure aborts the whole call
// with no partial state change.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	integration IntegrationHandler
	cache       *SupplyCache
	logger      *slog.Logger
}

// NewService builds Service. Audit, idempotency, integration and cache may
// be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, integration IntegrationHandler, cache *SupplyCache, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, integration: integration, cache: cache, logger: logger}
}

// Mint credits amount of assetID to account and increases total supply.
func (s *Service) Mint(ctx context.Context, input MintInput) (Receipt, error) {
	receipt, err := s.executeMint(ctx, input.Actor, input.Account, []uint64{input.AssetID}, []uint64{input.Amount}, input.IdempotencyKey, "token.mint")
	if err != nil {
		return Receipt{}, err
	}
	s.emit(ctx, EventMinted, func(h IntegrationHandler) error {
		return h.HandleMinted(ctx, MintedEvent{Actor: input.Actor.String(), Account: input.Account.String(), ID: input.AssetID, Amount: input.Amount})
	})
	return receipt, nil
}

// MintBatch credits every id/amount pair to account, all-or-nothing.
func (s *Service) MintBatch(ctx context.Context, input BatchInput) (Receipt, error) {
	receipt, err := s.executeMint(ctx, input.Actor, input.Account, input.AssetIDs, input.Amounts, input.IdempotencyKey, "token.mint_batch")
	if err != nil {
		return Receipt{}, err
	}
	s.emit(ctx, EventMintBatched, func(h IntegrationHandler) error {
		return h.HandleMintBatched(ctx, MintBatchedEvent{Actor: input.Actor.String(), Account: input.Account.String(), IDs: input.AssetIDs, Amounts: input.Amounts})
	})
	return receipt, nil
}

// Burn debits amount of assetID from account and decreases total supply.
func (s *Service) Burn(ctx context.Context, input BurnInput) (Receipt, error) {
	receipt, err := s.executeBurn(ctx, input.Actor, input.Account, []uint64{input.AssetID}, []uint64{input.Amount}, input.IdempotencyKey, "token.burn")
	if err != nil {
		return Receipt{}, err
	}
	s.emit(ctx, EventBurned, func(h IntegrationHandler) error {
		return h.HandleBurned(ctx, BurnedEvent{Actor: input.Actor.String(), Account: input.Account.String(), ID: input.AssetID, Amount: input.Amount})
	})
	return receipt, nil
}

// BurnBatch debits every id/amount pair from account, all-or-nothing.
func (s *Service) BurnBatch(ctx context.Context, input BatchInput) (Receipt, error) {
	receipt, err := s.executeBurn(ctx, input.Actor, input.Account, input.AssetIDs, input.Amounts, input.IdempotencyKey, "token.burn_batch")
	if err != nil {
		return Receipt{}, err
	}
	s.emit(ctx, EventBurnBatched, func(h IntegrationHandler) error {
		return h.HandleBurnBatched(ctx, BurnBatchedEvent{Actor: input.Actor.String(), Account: input.Account.String(), IDs: input.AssetIDs, Amounts: input.Amounts})
	})
	return receipt, nil
}

// Transfer moves balance from the resolved caller to another account.
// It requires no role and stays callable while paused; total supply is
// untouched.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (Receipt, error) {
	if input.To.IsZero() {
		return Receipt{}, fmt.Errorf("%w: transfer to the null identity", ErrInvalidArgument)
	}
	release, err := s.beginIdempotent(ctx, input.IdempotencyKey, "token")
	if err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{BatchID: uuid.NewString()}
	err = s.repo.WithLedgerTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		if err := s.debitBalance(ctx, tx, input.Actor, input.AssetID, input.Amount); err != nil {
			return err
		}
		if err := s.creditBalance(ctx, tx, input.To, input.AssetID, input.Amount); err != nil {
			return err
		}
		receipt.Entries = append(receipt.Entries, ReceiptEntry{AssetID: input.AssetID, Amount: input.Amount})
		return tx.InsertMovement(ctx, Movement{
			BatchID: receipt.BatchID,
			Op:      OpTransfer,
			Actor:   input.Actor,
			From:    input.Actor,
			To:      input.To,
			AssetID: input.AssetID,
			Amount:  input.Amount,
		})
	})
	if err != nil {
		release()
		return Receipt{}, err
	}
	s.recordAudit(ctx, input.Actor, "token.transfer", receipt.BatchID, map[string]any{
		"to": input.To.String(), "id": input.AssetID, "amount": input.Amount,
	})
	s.emit(ctx, EventAdminTransferred, func(h IntegrationHandler) error {
		return h.HandleAdminTransferred(ctx, AdminTransferredEvent{Actor: input.Actor.String(), From: input.Actor.String(), To: input.To.String(), ID: input.AssetID, Amount: input.Amount})
	})
	return receipt, nil
}

// SetTokenURI stores the explicit display URI for an asset id. Admin only,
// not pause-gated.
func (s *Service) SetTokenURI(ctx context.Context, actor identity.Address, assetID uint64, uri string) error {
	return s.adminWrite(ctx, actor, "token.set_uri", strconv.FormatUint(assetID, 10), func(ctx context.Context, tx LedgerTx) error {
		return tx.SetTokenURI(ctx, assetID, uri)
	})
}

// SetBaseTokenURI stores the fallback prefix used by ids without an
// explicit URI. Admin only, not pause-gated.
func (s *Service) SetBaseTokenURI(ctx context.Context, actor identity.Address, uri string) error {
	return s.adminWrite(ctx, actor, "token.set_base_uri", SettingBaseURI, func(ctx context.Context, tx LedgerTx) error {
		return tx.SetSetting(ctx, SettingBaseURI, uri)
	})
}

// SetContractURI stores the collection-level descriptive URI. Admin only,
// not pause-gated; the URI must be non-empty.
func (s *Service) SetContractURI(ctx context.Context, actor identity.Address, uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: contract uri must not be empty", ErrInvalidArgument)
	}
	return s.adminWrite(ctx, actor, "token.set_contract_uri", SettingContractURI, func(ctx context.Context, tx LedgerTx) error {
		return tx.SetSetting(ctx, SettingContractURI, uri)
	})
}

// EnsureBaseURI installs the configured base URI when none is stored yet.
// Runtime changes go through SetBaseTokenURI.
func (s *Service) EnsureBaseURI(ctx context.Context, uri string) error {
	if uri == "" {
		return nil
	}
	current, err := s.repo.Setting(ctx, SettingBaseURI)
	if err != nil {
		return err
	}
	if current != "" {
		return nil
	}
	return s.repo.WithLedgerTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		return tx.SetSetting(ctx, SettingBaseURI, uri)
	})
}

// TotalSupply returns the total-issued counter for an asset id, zero for
// never-minted ids. Reads go through the supply cache when one is wired.
func (s *Service) TotalSupply(ctx context.Context, assetID uint64) (uint64, error) {
	return s.cache.Supply(ctx, assetID, func() (uint64, error) {
		return s.repo.TotalSupply(ctx, assetID)
	})
}

// Exists reports whether an asset id has non-zero supply.
func (s *Service) Exists(ctx context.Context, assetID uint64) (bool, error) {
	supply, err := s.TotalSupply(ctx, assetID)
	if err != nil {
		return false, err
	}
	return supply > 0, nil
}

// BalanceOf returns the balance of addr for an asset id.
func (s *Service) BalanceOf(ctx context.Context, addr identity.Address, assetID uint64) (uint64, error) {
	return s.repo.BalanceOf(ctx, addr, assetID)
}

// URI resolves the display URI for an asset id: the explicit per-id URI
// when set, otherwise the base URI with the decimal id appended.
func (s *Service) URI(ctx context.Context, assetID uint64) (string, error) {
	uri, found, err := s.repo.TokenURI(ctx, assetID)
	if err != nil {
		return "", err
	}
	if found {
		return uri, nil
	}
	base, err := s.repo.Setting(ctx, SettingBaseURI)
	if err != nil {
		return "", err
	}
	if base == "" {
		return "", nil
	}
	return base + strconv.FormatUint(assetID, 10), nil
}

// ContractURI returns the collection-level descriptive URI.
func (s *Service) ContractURI(ctx context.Context) (string, error) {
	return s.repo.Setting(ctx, SettingContractURI)
}

// Supplies lists every asset with non-zero supply.
func (s *Service) Supplies(ctx context.Context) ([]SupplyRow, error) {
	return s.repo.ListSupplies(ctx)
}

// Movements lists recent movement lines for an asset id.
func (s *Service) Movements(ctx context.Context, assetID uint64, limit int) ([]Movement, error) {
	return s.repo.ListMovements(ctx, assetID, limit)
}

func (s *Service) executeMint(ctx context.Context, actor, account identity.Address, ids, amounts []uint64, idemKey, action string) (Receipt, error) {
	release, err := s.beginIdempotent(ctx, idemKey, "token")
	if err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{BatchID: uuid.NewString()}
	err = s.repo.WithLedgerTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		// Pause and role are checked before the arguments, so a paused
		// ledger reports ErrPaused even for malformed input.
		if err := s.guard(ctx, tx, roles.RoleMinter, actor); err != nil {
			return err
		}
		if account.IsZero() {
			return fmt.Errorf("%w: mint to the null identity", ErrInvalidArgument)
		}
		if len(ids) != len(amounts) {
			return ErrLengthMismatch
		}
		for i := range ids {
			supply, err := s.beforeTokenTransfer(ctx, tx, identity.ZeroAddress, account, ids[i], amounts[i])
			if err != nil {
				return err
			}
			if err := s.creditBalance(ctx, tx, account, ids[i], amounts[i]); err != nil {
				return err
			}
			if err := tx.InsertMovement(ctx, Movement{
				BatchID: receipt.BatchID,
				Op:      OpMint,
				Actor:   actor,
				From:    identity.ZeroAddress,
				To:      account,
				AssetID: ids[i],
				Amount:  amounts[i],
			}); err != nil {
				return err
			}
			receipt.Entries = append(receipt.Entries, ReceiptEntry{AssetID: ids[i], Amount: amounts[i], Supply: supply})
		}
		return nil
	})
	if err != nil {
		release()
		return Receipt{}, err
	}
	s.cache.Invalidate(ctx, ids...)
	s.recordAudit(ctx, actor, action, receipt.BatchID, map[string]any{
		"account": account.String(), "ids": ids, "amounts": amounts,
	})
	return receipt, nil
}

func (s *Service) executeBurn(ctx context.Context, actor, account identity.Address, ids, amounts []uint64, idemKey, action string) (Receipt, error) {
	release, err := s.beginIdempotent(ctx, idemKey, "token")
	if err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{BatchID: uuid.NewString()}
	err = s.repo.WithLedgerTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		if err := s.guard(ctx, tx, roles.RoleBurner, actor); err != nil {
			return err
		}
		if account.IsZero() {
			return fmt.Errorf("%w: burn from the null identity", ErrInvalidArgument)
		}
		if len(ids) != len(amounts) {
			return ErrLengthMismatch
		}
		for i := range ids {
			supply, err := s.beforeTokenTransfer(ctx, tx, account, identity.ZeroAddress, ids[i], amounts[i])
			if err != nil {
				return err
			}
			if err := s.debitBalance(ctx, tx, account, ids[i], amounts[i]); err != nil {
				return err
			}
			if err := tx.InsertMovement(ctx, Movement{
				BatchID: receipt.BatchID,
				Op:      OpBurn,
				Actor:   actor,
				From:    account,
				To:      identity.ZeroAddress,
				AssetID: ids[i],
				Amount:  amounts[i],
			}); err != nil {
				return err
			}
			receipt.Entries = append(receipt.Entries, ReceiptEntry{AssetID: ids[i], Amount: amounts[i], Supply: supply})
		}
		return nil
	})
	if err != nil {
		release()
		return Receipt{}, err
	}
	s.cache.Invalidate(ctx, ids...)
	s.recordAudit(ctx, actor, action, receipt.BatchID, map[string]any{
		"account": account.String(), "ids": ids, "amounts": amounts,
	})
	return receipt, nil
}

// guard enforces the pause and role preconditions inside the ledger
// transaction. The pause state is checked first.
func (s *Service) guard(ctx context.Context, tx LedgerTx, role string, actor identity.Address) error {
	paused, err := tx.Paused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	member, err := tx.HasRole(ctx, role, actor)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: %s requires role %s", ErrUnauthorized, actor, role)
	}
	return nil
}

// beforeTokenTransfer mirrors the balance ledger's pre-mutation hook:
// invoked once per id/amount pair before balances change, with the null
// identity as From signaling a mint and as To signaling a burn. It keeps
// the supply counter consistent with the mutation it precedes and returns
// the post-hook supply.
func (s *Service) beforeTokenTransfer(ctx context.Context, tx LedgerTx, from, to identity.Address, assetID, amount uint64) (uint64, error) {
	supply, err := tx.SupplyForUpdate(ctx, assetID)
	if err != nil {
		return 0, err
	}
	switch {
	case from.IsZero():
		if amount > math.MaxUint64-supply {
			return 0, fmt.Errorf("%w: asset %d", ErrSupplyOverflow, assetID)
		}
		supply += amount
	case to.IsZero():
		if amount > supply {
			return 0, fmt.Errorf("%w: asset %d has %d, burn of %d requested", ErrInsufficientSupply, assetID, supply, amount)
		}
		supply -= amount
	default:
		return supply, nil
	}
	if err := tx.SetSupply(ctx, assetID, supply); err != nil {
		return 0, err
	}
	return supply, nil
}

func (s *Service) creditBalance(ctx context.Context, tx LedgerTx, account identity.Address, assetID, amount uint64) error {
	balance, err := tx.BalanceForUpdate(ctx, account, assetID)
	if err != nil {
		return err
	}
	return tx.SetBalance(ctx, account, assetID, balance+amount)
}

func (s *Service) debitBalance(ctx context.Context, tx LedgerTx, account identity.Address, assetID, amount uint64) error {
	balance, err := tx.BalanceForUpdate(ctx, account, assetID)
	if err != nil {
		return err
	}
	if amount > balance {
		return fmt.Errorf("%w: %s holds %d of asset %d, %d requested", ErrInsufficientBalance, account, balance, assetID, amount)
	}
	return tx.SetBalance(ctx, account, assetID, balance-amount)
}

func (s *Service) adminWrite(ctx context.Context, actor identity.Address, action, entityID string, apply func(context.Context, LedgerTx) error) error {
	err := s.repo.WithLedgerTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		member, err := tx.HasRole(ctx, roles.RoleAdmin, actor)
		if err != nil {
			return err
		}
		if !member {
			return fmt.Errorf("%w: %s requires role %s", ErrUnauthorized, actor, roles.RoleAdmin)
		}
		return apply(ctx, tx)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, action, entityID, nil)
	return nil
}

// beginIdempotent reserves the idempotency key when one was supplied and
// returns a release func that frees it again should the operation fail.
func (s *Service) beginIdempotent(ctx context.Context, key, module string) (func(), error) {
	if key == "" || s.idempotency == nil {
		return func() {}, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, module); err != nil {
		return nil, err
	}
	return func() {
		if err := s.idempotency.Delete(ctx, key); err != nil && s.logger != nil {
			s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, actor identity.Address, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor.String(),
		Action:   action,
		Entity:   "token",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

// emit hands a committed event to the integration handler. Dispatch
// failures are logged, never propagated: the mutation is already durable.
func (s *Service) emit(ctx context.Context, name string, dispatch func(IntegrationHandler) error) {
	if s.integration == nil {
		return
	}
	if err := dispatch(s.integration); err != nil && s.logger != nil {
		s.logger.Warn("dispatch event", slog.String("event", name), slog.Any("error", err))
	}
}
