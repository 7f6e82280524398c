package capacity

import (
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/snapstudio-api/internal/common"
)

// Handler exposes capacity status and delivery estimates.
type Handler struct {
	Estimator *Estimator
}

// Status reports today's usage per class and the urgency indicator.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	at, ok := parseAt(w, r)
	if !ok {
		return
	}
	st, err := h.Estimator.Status(r.Context(), at)
	if err != nil {
		common.WriteError(w, common.NewAppError(common.CodeUnavailable, "capacity store unavailable", http.StatusServiceUnavailable, err))
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"status":  st,
		"urgency": UrgencyFor(st.Regular),
	})
}

// Estimate returns the delivery estimate for ?class= (default regular).
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	class, err := ParseClass(r.URL.Query().Get("class"))
	if err != nil {
		common.WriteError(w, common.ValidationFailed(map[string]string{"class": "must be one of standard regular rush24h rush12h"}))
		return
	}
	at, ok := parseAt(w, r)
	if !ok {
		return
	}
	est, err := h.Estimator.Estimate(r.Context(), class, at)
	if err != nil {
		common.WriteError(w, common.NewAppError(common.CodeUnavailable, "capacity store unavailable", http.StatusServiceUnavailable, err))
		return
	}
	common.Data(w, http.StatusOK, est)
}

func parseAt(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("at"))
	if raw == "" {
		return time.Time{}, true
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		common.WriteError(w, common.ValidationFailed(map[string]string{"at": "must be an RFC3339 timestamp"}))
		return time.Time{}, false
	}
	return at, true
}
