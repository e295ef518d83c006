package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tokenvault/tokenvault/internal/identity"
	"github.com/tokenvault/tokenvault/internal/observability"
	"github.com/tokenvault/tokenvault/internal/pause"
	"github.com/tokenvault/tokenvault/internal/roles"
	"github.com/tokenvault/tokenvault/internal/token"
	"github.com/tokenvault/tokenvault/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	IdentityMiddleware identity.Middleware
	RolesMiddleware    roles.Middleware
	TokenHandler       *token.Handler
	RolesHandler       *roles.Handler
	PauseHandler       *pause.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with tokenvault defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(params.IdentityMiddleware.ResolveCaller)

		r.Route("/tokens", func(r chi.Router) {
			params.TokenHandler.MountRoutes(r)
		})
		r.Route("/contract-uri", func(r chi.Router) {
			params.TokenHandler.MountContractRoutes(r)
		})
		r.Get("/accounts/{addr}/balances/{id}", params.TokenHandler.HandleBalance)

		r.Route("/roles", func(r chi.Router) {
			params.RolesHandler.MountRoutes(r, params.RolesMiddleware.Require(roles.RoleAdmin))
		})
		params.PauseHandler.MountRoutes(r)

		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RolesMiddleware.Require(roles.RoleAdmin))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
