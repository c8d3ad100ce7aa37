// AngelaMos | 2026
// handler.go

package entitlement

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/postflowhq/postflow-api/internal/core"
	"github.com/postflowhq/postflow-api/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/entitlements", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetMySnapshot)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/subscribers/{userID}", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/entitlements", h.GetSnapshot)
		r.Post("/extend-window", h.ExtendWindow)
	})
}

// GetMySnapshot returns the caller's own entitlement snapshot. Snapshots
// are only readable by their owner on this route; admins use the admin
// route to inspect other subscribers.
func (h *Handler) GetMySnapshot(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	snapshot, err := h.service.GetSnapshot(r.Context(), userID, time.Now())
	if err != nil {
		h.writeSnapshotError(w, err)
		return
	}

	core.OK(w, snapshot)
}

func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	snapshot, err := h.service.GetSnapshot(r.Context(), userID, time.Now())
	if err != nil {
		h.writeSnapshotError(w, err)
		return
	}

	core.OK(w, snapshot)
}

// ExtendWindow resets a subscriber's creation window anchor (admin only).
func (h *Handler) ExtendWindow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	now := time.Now()

	extended, err := h.service.ExtendWindow(r.Context(), userID, now)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "subscriber")
		case errors.Is(err, core.ErrConflict):
			core.JSONError(w, core.ConflictError())
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	snapshot, err := h.service.ComputeSnapshot(r.Context(), userID, now)
	if err != nil {
		h.writeSnapshotError(w, err)
		return
	}

	core.OK(w, ExtendWindowResponse{
		Extended: extended,
		Window:   snapshot.Window,
	})
}

func (h *Handler) writeSnapshotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "subscriber")
	case core.IsStoreUnavailable(err):
		core.JSONError(w, core.StoreUnavailableError())
	default:
		core.InternalServerError(w, err)
	}
}
