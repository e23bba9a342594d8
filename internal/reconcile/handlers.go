package reconcile

import (
	"net/http"
	"time"

	"github.com/noah-isme/pos-engine/internal/common"
)

// Handler exposes the reconciliation reports.
type Handler struct {
	Svc          *Service
	DefaultRange int
	Now          func() time.Time
}

func (h *Handler) parse(r *http.Request) (Range, error) {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	var loc *time.Location
	if h.Svc != nil {
		loc = h.Svc.Location
	}
	dr, err := common.ParseDateRange(r, now, h.DefaultRange, loc)
	if err != nil {
		return Range{}, err
	}
	return Range{From: dr.From, To: dr.To, IncludeVoided: common.QueryBool(r, "includeVoided")}, nil
}

// Items handles GET /reports/tax-reconciliation.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parse(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	report, err := h.Svc.Reconcile(r.Context(), rng)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":  report,
		"range": map[string]any{"from": rng.From, "to": rng.To, "include_voided": rng.IncludeVoided},
	})
}

// Daily handles GET /reports/tax-reconciliation/daily.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parse(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	days, err := h.Svc.Daily(r.Context(), rng)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": days})
}
