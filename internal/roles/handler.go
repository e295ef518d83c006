package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tokenvault/tokenvault/internal/identity"
	"github.com/tokenvault/tokenvault/internal/platform/httpx"
)

// Handler wires HTTP endpoints for role administration.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs roles handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers role routes. Grant and revoke are gated by the
// service itself (the actor must hold the target role's admin role), so no
// role middleware wraps them here; listing members is admin-only.
func (h *Handler) MountRoutes(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	r.With(requireAdmin).Get("/{role}/members", h.handleMembers)
	r.Get("/{role}/has/{addr}", h.handleHas)
	r.Post("/{role}/grant", h.handleGrant)
	r.Post("/{role}/revoke", h.handleRevoke)
}

type memberPayload struct {
	Address string `json:"address" validate:"required"`
}

type memberResponse struct {
	Role      string    `json:"role"`
	Address   string    `json:"address"`
	GrantedAt time.Time `json:"granted_at"`
}

func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	members, err := h.service.Members(r.Context(), role)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{Role: m.Role, Address: m.Address.String(), GrantedAt: m.GrantedAt})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": role, "members": out})
}

func (h *Handler) handleHas(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	addr, err := identity.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid address")
		return
	}
	member, err := h.service.HasRole(r.Context(), role, addr)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": role, "address": addr.String(), "member": member})
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	h.handleChange(w, r, h.service.Grant)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.handleChange(w, r, h.service.Revoke)
}

type changeFunc func(ctx context.Context, actor identity.Address, role string, addr identity.Address) error

func (h *Handler) handleChange(w http.ResponseWriter, r *http.Request, change changeFunc) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no resolved caller")
		return
	}
	var payload memberPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	addr, err := identity.ParseAddress(payload.Address)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid address")
		return
	}
	role := chi.URLParam(r, "role")
	if err := change(r.Context(), caller, role, addr); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": role, "address": addr.String()})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRoleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnauthorized):
		httpx.Problem(w, http.StatusForbidden, "Unauthorized", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("roles handler", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
