package analytics

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/pos-engine/internal/common"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

func (h *Handler) filter(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return Filter{}, false
	}
	rng, err := common.ParseDateRange(r, h.Svc.now(), h.Svc.DefaultRange, h.Svc.location())
	if err != nil {
		common.WriteError(w, err)
		return Filter{}, false
	}
	return Filter{From: rng.From, To: rng.To, IncludeVoided: common.QueryBool(r, "includeVoided")}, true
}

// Summary handles GET /reports/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	summary, err := h.Svc.SalesSummary(r.Context(), f)
	respond(w, summary, err)
}

// ByPayment handles GET /reports/by-payment.
func (h *Handler) ByPayment(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.SalesByPayment(r.Context(), f)
	respond(w, rows, err)
}

// TopProducts handles GET /reports/top-products.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.TopProducts(r.Context(), f, common.AtoiDefault(r.URL.Query().Get("limit"), 10))
	respond(w, rows, err)
}

// DailySales handles GET /reports/daily-sales.
func (h *Handler) DailySales(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.DailySales(r.Context(), f)
	respond(w, rows, err)
}

// ProductSales handles GET /reports/product-sales[?productId=].
func (h *Handler) ProductSales(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	var productID *uuid.UUID
	if raw := strings.TrimSpace(r.URL.Query().Get("productId")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.WriteError(w, common.InvalidRequest("invalid productId", err))
			return
		}
		productID = &id
	}
	rows, err := h.Svc.ProductSales(r.Context(), f, productID)
	respond(w, rows, err)
}

func respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": data})
}
