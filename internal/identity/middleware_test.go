package identity

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestMiddleware(t *testing.T, forwarder Address, repo *memoryKeyRepo) Middleware {
	t.Helper()
	return Middleware{
		Service:  NewService(repo),
		Resolver: NewResolver(forwarder),
	}
}

func TestResolveCallerDirect(t *testing.T) {
	direct := addrWithByte(0x05)
	mw := newTestMiddleware(t, addrWithByte(0xf0), newKeyRepo(t, "tv_app", "pw", direct))

	var got Address
	handler := mw.ResolveCaller(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CallerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/tokens/mint", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Bearer tv_app.pw")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, direct, got)
}

func TestResolveCallerForwarded(t *testing.T) {
	forwarder := addrWithByte(0xf0)
	user := addrWithByte(0x06)
	mw := newTestMiddleware(t, forwarder, newKeyRepo(t, "tv_fwd", "pw", forwarder))

	var (
		got  Address
		body []byte
	)
	handler := mw.ResolveCaller(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CallerFromContext(r.Context())
		body, _ = io.ReadAll(r.Body)
	}))

	payload := append([]byte(`{"amount":5}`), user[:]...)
	req := httptest.NewRequest(http.MethodPost, "/api/tokens/mint", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer tv_fwd.pw")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, user, got)
	require.Equal(t, []byte(`{"amount":5}`), body)
}

func TestResolveCallerForwardedOversizedBody(t *testing.T) {
	forwarder := addrWithByte(0xf0)
	user := addrWithByte(0x06)
	mw := newTestMiddleware(t, forwarder, newKeyRepo(t, "tv_fwd", "pw", forwarder))

	handler := mw.ResolveCaller(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on an oversized forwarded body")
	}))

	payload := append(bytes.Repeat([]byte{'A'}, maxBodyBytes+100), user[:]...)
	req := httptest.NewRequest(http.MethodPost, "/api/tokens/mint", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer tv_fwd.pw")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestResolveCallerForwardedBodyAtLimit(t *testing.T) {
	forwarder := addrWithByte(0xf0)
	user := addrWithByte(0x06)
	mw := newTestMiddleware(t, forwarder, newKeyRepo(t, "tv_fwd", "pw", forwarder))

	var got Address
	handler := mw.ResolveCaller(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CallerFromContext(r.Context())
	}))

	payload := append(bytes.Repeat([]byte{'A'}, maxBodyBytes-AddressLength), user[:]...)
	req := httptest.NewRequest(http.MethodPost, "/api/tokens/mint", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer tv_fwd.pw")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, user, got)
}

func TestResolveCallerMissingToken(t *testing.T) {
	mw := newTestMiddleware(t, addrWithByte(0xf0), newKeyRepo(t, "tv_app", "pw", addrWithByte(0x05)))

	handler := mw.ResolveCaller(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tokens/1/supply", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResolveCallerBadSecret(t *testing.T) {
	mw := newTestMiddleware(t, addrWithByte(0xf0), newKeyRepo(t, "tv_app", "pw", addrWithByte(0x05)))

	handler := mw.ResolveCaller(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with bad credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tokens/1/supply", nil)
	req.Header.Set("Authorization", "Bearer tv_app.nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
