package roles

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tokenvault/tokenvault/internal/identity"
)

func newRolesRouter(repo *memoryRoleRepo, caller identity.Address) http.Handler {
	svc := NewService(repo, nil, nil)
	handler := NewHandler(nil, svc)
	mw := Middleware{Service: svc}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.ContextWithCaller(req.Context(), caller)))
		})
	})
	r.Route("/roles", func(r chi.Router) {
		handler.MountRoutes(r, mw.Require(RoleAdmin))
	})
	return r
}

func TestHandleMembersRequiresAdmin(t *testing.T) {
	repo := newMemoryRoleRepo()
	repo.add(RoleMinter, testAddr(2))
	router := newRolesRouter(repo, testAddr(9))

	req := httptest.NewRequest(http.MethodGet, "/roles/MINTER/members", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleMembersAsAdmin(t *testing.T) {
	repo := newMemoryRoleRepo()
	admin := testAddr(1)
	repo.add(RoleAdmin, admin)
	repo.add(RoleMinter, testAddr(2))
	router := newRolesRouter(repo, admin)

	req := httptest.NewRequest(http.MethodGet, "/roles/MINTER/members", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), testAddr(2).String())
}

func TestHandleHasIsUngated(t *testing.T) {
	repo := newMemoryRoleRepo()
	member := testAddr(2)
	repo.add(RoleMinter, member)
	router := newRolesRouter(repo, testAddr(9))

	req := httptest.NewRequest(http.MethodGet, "/roles/MINTER/has/"+member.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"member":true`)
}
