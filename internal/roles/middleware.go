package roles

import (
	"log/slog"
	"net/http"

	"github.com/tokenvault/tokenvault/internal/identity"
)

// Middleware wires role authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require ensures the resolved caller holds the given role.
func (m Middleware) Require(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := identity.CallerFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			member, err := m.Service.HasRole(r.Context(), role, caller)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("roles require", slog.String("role", role), slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !member {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
