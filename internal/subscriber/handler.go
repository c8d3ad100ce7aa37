// AngelaMos | 2026
// handler.go

package subscriber

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/postflowhq/postflow-api/internal/core"
	"github.com/postflowhq/postflow-api/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/users", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.GetMe)
		r.Put("/me", h.UpdateMe)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sub, err := h.service.GetMe(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "subscriber")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToSubscriberResponse(sub))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	sub, err := h.service.UpdateMe(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "subscriber")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToSubscriberResponse(sub))
}

// RegisterAdminRoutes registers admin-only subscriber management endpoints.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/subscribers", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListSubscribers)
		r.Get("/{userID}", h.GetSubscriber)
		r.Put("/{userID}/tier", h.OverrideTier)
	})
}

func (h *Handler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
		Tier:     r.URL.Query().Get("tier"),
	}

	if raw := r.URL.Query().Get("subscribed"); raw != "" {
		if subscribed, err := strconv.ParseBool(raw); err == nil {
			params.Subscribed = &subscribed
		}
	}

	subs, total, err := h.service.ListSubscribers(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToSubscriberResponseList(subs),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) GetSubscriber(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	sub, err := h.service.GetSubscriber(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "subscriber")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToSubscriberResponse(sub))
}

// OverrideTier changes a subscriber's tier (admin only).
func (h *Handler) OverrideTier(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req OverrideTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	sub, err := h.service.OverrideTier(r.Context(), userID, req, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "subscriber")
		case errors.Is(err, core.ErrInvalidInput):
			core.BadRequest(w, "invalid tier")
		case errors.Is(err, core.ErrConflict):
			core.JSONError(w, core.ConflictError())
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, ToSubscriberResponse(sub))
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
