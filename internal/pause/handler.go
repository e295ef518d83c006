package pause

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tokenvault/tokenvault/internal/identity"
	"github.com/tokenvault/tokenvault/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the pause switch.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs pause handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers pause routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pause", h.handleStatus)
	r.Post("/pause", h.handlePause)
	r.Post("/unpause", h.handleUnpause)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"state":      status.State,
		"changed_by": status.ChangedBy,
		"changed_at": status.ChangedAt,
	})
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Pause)
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Unpause)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actor identity.Address) error) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no resolved caller")
		return
	}
	if err := fn(r.Context(), caller); err != nil {
		h.respondError(w, err)
		return
	}
	status, err := h.service.Status(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"state": status.State})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAlreadyPaused), errors.Is(err, ErrNotPaused):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrUnauthorized):
		httpx.Problem(w, http.StatusForbidden, "Unauthorized", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("pause handler", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
