package token

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tokenvault/tokenvault/internal/identity"
	"github.com/tokenvault/tokenvault/internal/roles"
)

func newTestRouter(ledger *memoryLedger, caller identity.Address) http.Handler {
	handler := NewHandler(nil, newTestService(ledger))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.ContextWithCaller(req.Context(), caller)))
		})
	})
	r.Route("/tokens", handler.MountRoutes)
	r.Route("/contract-uri", handler.MountContractRoutes)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleMint(t *testing.T) {
	ledger := newMemoryLedger()
	minter, holder := testAddr(1), testAddr(2)
	ledger.grant(roles.RoleMinter, minter)
	router := newTestRouter(ledger, minter)

	rec := doJSON(t, router, http.MethodPost, "/tokens/mint", map[string]any{
		"account": holder.String(), "id": 7, "amount": 100,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		BatchID string `json:"batch_id"`
		Entries []struct {
			ID     uint64 `json:"id"`
			Supply uint64 `json:"supply"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.BatchID)
	require.Len(t, resp.Entries, 1)
	require.Equal(t, uint64(100), resp.Entries[0].Supply)
}

func TestHandleMintZeroAmount(t *testing.T) {
	ledger := newMemoryLedger()
	minter, holder := testAddr(1), testAddr(2)
	ledger.grant(roles.RoleMinter, minter)
	ledger.supplies[7] = 50
	router := newTestRouter(ledger, minter)

	rec := doJSON(t, router, http.MethodPost, "/tokens/mint", map[string]any{
		"account": holder.String(), "id": 7, "amount": 0,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(50), ledger.supplies[7])
}

func TestHandleMintUnauthorized(t *testing.T) {
	ledger := newMemoryLedger()
	router := newTestRouter(ledger, testAddr(1))

	rec := doJSON(t, router, http.MethodPost, "/tokens/mint", map[string]any{
		"account": testAddr(2).String(), "id": 1, "amount": 5,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleMintPaused(t *testing.T) {
	ledger := newMemoryLedger()
	minter := testAddr(1)
	ledger.grant(roles.RoleMinter, minter)
	ledger.paused = true
	router := newTestRouter(ledger, minter)

	rec := doJSON(t, router, http.MethodPost, "/tokens/mint", map[string]any{
		"account": testAddr(2).String(), "id": 1, "amount": 5,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleMintBatchLengthMismatch(t *testing.T) {
	ledger := newMemoryLedger()
	minter := testAddr(1)
	ledger.grant(roles.RoleMinter, minter)
	router := newTestRouter(ledger, minter)

	rec := doJSON(t, router, http.MethodPost, "/tokens/mint-batch", map[string]any{
		"account": testAddr(2).String(), "ids": []uint64{1, 2}, "amounts": []uint64{5},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBurnInsufficientBalance(t *testing.T) {
	ledger := newMemoryLedger()
	burner, holder := testAddr(1), testAddr(2)
	ledger.grant(roles.RoleBurner, burner)
	ledger.supplies[1] = 100
	ledger.balances[balKey(holder, 1)] = 10
	router := newTestRouter(ledger, burner)

	rec := doJSON(t, router, http.MethodPost, "/tokens/burn", map[string]any{
		"account": holder.String(), "id": 1, "amount": 50,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleMovements(t *testing.T) {
	ledger := newMemoryLedger()
	minter, holder := testAddr(1), testAddr(2)
	ledger.grant(roles.RoleMinter, minter)
	router := newTestRouter(ledger, minter)

	rec := doJSON(t, router, http.MethodPost, "/tokens/mint", map[string]any{
		"account": holder.String(), "id": 7, "amount": 100,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/tokens/7/movements?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Movements []struct {
			Op     string `json:"op"`
			Actor  string `json:"actor"`
			To     string `json:"to"`
			Amount uint64 `json:"amount"`
		} `json:"movements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Movements, 1)
	require.Equal(t, "MINT", resp.Movements[0].Op)
	require.Equal(t, minter.String(), resp.Movements[0].Actor)
	require.Equal(t, holder.String(), resp.Movements[0].To)
	require.Equal(t, uint64(100), resp.Movements[0].Amount)
}

func TestHandleSupplyAndURI(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.supplies[3] = 77
	ledger.settings[SettingBaseURI] = "https://assets.example/"
	router := newTestRouter(ledger, testAddr(1))

	rec := doJSON(t, router, http.MethodGet, "/tokens/3/supply", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var supplyResp struct {
		TotalSupply uint64 `json:"total_supply"`
		Exists      bool   `json:"exists"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &supplyResp))
	require.Equal(t, uint64(77), supplyResp.TotalSupply)
	require.True(t, supplyResp.Exists)

	rec = doJSON(t, router, http.MethodGet, "/tokens/3/uri", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var uriResp struct {
		URI string `json:"uri"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uriResp))
	require.Equal(t, "https://assets.example/3", uriResp.URI)

	rec = doJSON(t, router, http.MethodGet, "/tokens/abc/supply", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTransfer(t *testing.T) {
	ledger := newMemoryLedger()
	from, to := testAddr(1), testAddr(2)
	ledger.supplies[1] = 100
	ledger.balances[balKey(from, 1)] = 100
	router := newTestRouter(ledger, from)

	rec := doJSON(t, router, http.MethodPost, "/tokens/transfer", map[string]any{
		"to": to.String(), "id": 1, "amount": 40,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(40), ledger.balances[balKey(to, 1)])
}

func TestHandleContractURI(t *testing.T) {
	ledger := newMemoryLedger()
	admin := testAddr(1)
	ledger.grant(roles.RoleAdmin, admin)
	router := newTestRouter(ledger, admin)

	rec := doJSON(t, router, http.MethodPut, "/contract-uri/", map[string]any{"uri": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/contract-uri/", map[string]any{"uri": "ipfs://collection"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/contract-uri/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ContractURI string `json:"contract_uri"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ipfs://collection", resp.ContractURI)
}

func TestHandleExportCSV(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.supplies[1] = 1500000
	router := newTestRouter(ledger, testAddr(1))

	rec := doJSON(t, router, http.MethodGet, "/tokens/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "asset_id,total_supply")
	require.Contains(t, rec.Body.String(), "1,500,000")
}
