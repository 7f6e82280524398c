package checkout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/snapstudio-api/internal/capacity"
	"github.com/noah-isme/snapstudio-api/internal/common"
	"github.com/noah-isme/snapstudio-api/internal/order"
)

type Handler struct {
	Svc *Service
}

// Quote handles POST /orders/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout service not configured", nil)
		return
	}
	var req order.Request
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Quote(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, out)
}

// Confirm handles POST /orders/{id}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout service not configured", nil)
		return
	}
	out, err := h.Svc.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *order.ValidationError
	switch {
	case errors.As(err, &verr):
		common.WriteError(w, common.ValidationFailed(verr.Fields))
	case errors.Is(err, capacity.ErrCapacityExhausted):
		common.JSONError(w, http.StatusConflict, "CAPACITY_EXHAUSTED", "no delivery slot left for this service class", nil)
	case errors.Is(err, ErrQuoteNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "quote not found or expired", nil)
	case errors.Is(err, ErrUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, common.CodeUnavailable, "service temporarily unavailable", nil)
	default:
		h.Svc.Logger.Error().Err(err).Msg("checkout")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
	}
}
