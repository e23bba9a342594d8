package sale

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-engine/internal/common"
	"github.com/noah-isme/pos-engine/internal/money"
)

// Handler exposes the sale engine over HTTP.
type Handler struct {
	Svc *Service
	// Location interprets calendar dates in list filters.
	Location *time.Location
}

type discountReq struct {
	Kind  string          `json:"kind" validate:"max=32"`
	Value decimal.Decimal `json:"value"`
}

type lineReq struct {
	ProductID   uuid.UUID       `json:"product_id" validate:"uuid_required"`
	ProductName string          `json:"product_name" validate:"max=200"`
	Barcode     string          `json:"barcode" validate:"max=64"`
	Quantity    int64           `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    *discountReq    `json:"discount"`
	Taxable     bool            `json:"is_taxable"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxExempt   bool            `json:"tax_exempt"`
}

type createReq struct {
	Items           []lineReq        `json:"items" validate:"required,min=1,dive"`
	PaymentMethodID uuid.UUID        `json:"payment_method_id" validate:"uuid_required"`
	AmountTendered  *decimal.Decimal `json:"amount_tendered"`
	Discount        *discountReq     `json:"discount"`
	Note            string           `json:"note" validate:"max=500"`
}

type returnReq struct {
	Items           []lineReq    `json:"items" validate:"required,min=1,dive"`
	PaymentMethodID uuid.UUID    `json:"payment_method_id" validate:"uuid_required"`
	Discount        *discountReq `json:"discount"`
	OriginalSaleID  *uuid.UUID   `json:"original_sale_id"`
	Note            string       `json:"note" validate:"max=500"`
}

func (d *discountReq) toDiscount() (money.Discount, error) {
	if d == nil {
		return money.Discount{Kind: money.DiscountNone}, nil
	}
	kind, err := money.ParseDiscountKind(d.Kind)
	if err != nil {
		return money.Discount{}, common.InvalidRequest("invalid discount", err)
	}
	return money.Discount{Kind: kind, Value: d.Value}, nil
}

func toLines(reqs []lineReq) ([]LineRequest, error) {
	lines := make([]LineRequest, len(reqs))
	for i, r := range reqs {
		disc, err := r.Discount.toDiscount()
		if err != nil {
			return nil, err
		}
		lines[i] = LineRequest{
			ProductID:   r.ProductID,
			ProductName: strings.TrimSpace(r.ProductName),
			Barcode:     strings.TrimSpace(r.Barcode),
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
			Discount:    disc,
			Taxable:     r.Taxable,
			TaxRate:     r.TaxRate,
			TaxExempt:   r.TaxExempt,
		}
	}
	return lines, nil
}

// Create handles POST /sales.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.Validate(req); err != nil {
		common.WriteError(w, err)
		return
	}
	lines, err := toLines(req.Items)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	order, err := req.Discount.toDiscount()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	sale, err := h.Svc.Create(r.Context(), CreateInput{
		Items:           lines,
		PaymentMethodID: req.PaymentMethodID,
		AmountTendered:  req.AmountTendered,
		OrderDiscount:   order,
		Note:            req.Note,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sale})
}

// CreateReturn handles POST /returns.
func (h *Handler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	var req returnReq
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.Validate(req); err != nil {
		common.WriteError(w, err)
		return
	}
	lines, err := toLines(req.Items)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	order, err := req.Discount.toDiscount()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	sale, err := h.Svc.CreateReturn(r.Context(), ReturnInput{
		Items:           lines,
		PaymentMethodID: req.PaymentMethodID,
		OrderDiscount:   order,
		OriginalSaleID:  req.OriginalSaleID,
		Note:            req.Note,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sale})
}

// Get handles GET /sales/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	sale, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sale})
}

// List handles GET /sales.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, defaultListLimit)
	filter := ListFilter{
		IncludeVoided: common.QueryBool(r, "includeVoided"),
		ReturnsOnly:   common.QueryBool(r, "returnsOnly"),
		Limit:         perPage,
	}
	pg := common.Pagination{Page: page, PerPage: perPage}
	filter.Offset = pg.Offset()

	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		rng, err := common.ParseDateRange(r, time.Now(), 0, h.Location)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		filter.From, filter.To = rng.From, rng.To
	}

	sales, total, err := h.Svc.List(r.Context(), filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	pg.TotalItems = total
	common.JSON(w, http.StatusOK, map[string]any{"data": sales, "pagination": pg})
}

// Void handles POST /sales/{id}/void.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	sale, err := h.Svc.Void(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sale})
}

// Unvoid handles POST /sales/{id}/unvoid.
func (h *Handler) Unvoid(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	sale, err := h.Svc.Unvoid(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sale})
}

func saleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.WriteError(w, common.InvalidRequest("invalid sale id", err))
		return uuid.Nil, false
	}
	return id, true
}
