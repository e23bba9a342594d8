package payment

import (
	"net/http"

	"github.com/noah-isme/pos-engine/internal/common"
)

// Handler exposes payment method endpoints.
type Handler struct {
	Svc *Service
}

// List handles GET /payment-methods. Inactive methods are included with
// ?all=true.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	methods, err := h.Svc.List(r.Context(), !common.QueryBool(r, "all"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": methods})
}
