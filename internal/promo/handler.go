// AngelaMos | 2026
// handler.go

package promo

import (
	"encoding/json"
	"errors"
	"net/http"
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
	r.Route("/promo", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/redeem", h.Redeem)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/promo-codes", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/", h.CreateCode)
		r.Get("/", h.ListCodes)
	})
}

// Redeem applies a promo code to the caller. Policy rejections come back as
// 422 with a stable machine-readable kind; only infrastructure trouble maps
// to 5xx.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.Redeem(r.Context(), userID, req.Code, time.Now())
	if err != nil {
		var policyErr *PolicyError
		switch {
		case errors.As(err, &policyErr):
			core.JSONError(w, &core.AppError{
				Err:     err,
				Message: policyErr.Error(),
				Status:  http.StatusUnprocessableEntity,
				Code:    string(policyErr.Kind),
			})
		case errors.Is(err, core.ErrConflict):
			core.JSONError(w, core.ConflictError())
		case core.IsStoreUnavailable(err):
			core.JSONError(w, core.StoreUnavailableError())
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, result)
}

func (h *Handler) CreateCode(w http.ResponseWriter, r *http.Request) {
	var req CreateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	code, err := h.service.CreateCode(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			core.BadRequest(w, "code must be uppercase alphanumeric of the configured length")
		case errors.Is(err, core.ErrDuplicateKey):
			core.JSONError(w, core.DuplicateError("promo code"))
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, ToCodeResponse(code))
}

func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.ListCodes(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToCodeResponseList(codes))
}
