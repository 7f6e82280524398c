package discount

import (
	"errors"
	"net/http"

	"github.com/noah-isme/snapstudio-api/internal/common"
	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

// Handler exposes discount code validation.
type Handler struct {
	Svc *Service
}

type validateRequest struct {
	Code       string        `json:"code" validate:"required,max=64"`
	OrderValue pricing.Money `json:"orderValue"`
}

// Validate evaluates a code against an order value. Business failures are
// returned as feedback with status 200; an unreachable validator is a 503.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "discount service not configured", nil)
		return
	}
	var req validateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if req.OrderValue.IsNegative() {
		common.WriteError(w, common.ValidationFailed(map[string]string{"orderValue": "must not be negative"}))
		return
	}
	ev, err := h.Svc.Evaluate(r.Context(), req.Code, req.OrderValue)
	fb := NewFeedback(req.Code, ev, err)
	if errors.Is(err, ErrValidationUnreachable) {
		common.JSONError(w, http.StatusServiceUnavailable, fb.Error, fb.Message, fb)
		return
	}
	if err != nil && fb.Error == "ERROR" {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, fb)
}
