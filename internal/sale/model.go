package sale

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-engine/internal/money"
)

// Discount is a discount descriptor as persisted: the requested kind and
// value plus the amount it resolved to.
type Discount struct {
	Kind   money.DiscountKind `json:"kind"`
	Value  decimal.Decimal    `json:"value"`
	Amount decimal.Decimal    `json:"amount"`
}

// Sale is one checkout transaction, or a return when IsReturn is set.
type Sale struct {
	ID              uuid.UUID       `json:"id"`
	Number          string          `json:"sale_number"`
	CreatedAt       time.Time       `json:"created_at"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        Discount        `json:"discount"`
	Tax             decimal.Decimal `json:"tax_amount"`
	Total           decimal.Decimal `json:"total_amount"`
	AmountTendered  decimal.Decimal `json:"amount_tendered"`
	Change          decimal.Decimal `json:"change_amount"`
	PaymentMethodID uuid.UUID       `json:"payment_method_id"`
	Note            string          `json:"note,omitempty"`
	Voided          bool            `json:"is_voided"`
	VoidedAt        *time.Time      `json:"voided_at,omitempty"`
	IsReturn        bool            `json:"is_return"`
	OriginalSaleID  *uuid.UUID      `json:"original_sale_id,omitempty"`
	Items           []Item          `json:"items,omitempty"`
}

// Item is a persisted sale line. Product name and barcode are snapshots taken
// at sale time.
type Item struct {
	ID          uuid.UUID       `json:"id"`
	SaleID      uuid.UUID       `json:"sale_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Barcode     string          `json:"barcode,omitempty"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    Discount        `json:"discount"`
	Taxable     bool            `json:"is_taxable"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxExempt   bool            `json:"tax_exempt"`
	// LineTotal is quantity*unitPrice minus the item discount, signed like
	// Quantity, before the order discount is prorated.
	LineTotal decimal.Decimal `json:"line_total"`
	// NetTotal is LineTotal after order discount proration.
	NetTotal decimal.Decimal `json:"net_total"`
	Tax      decimal.Decimal `json:"tax_amount"`
}

// Product is the slice of catalog state the engine reads and mutates.
type Product struct {
	ID      uuid.UUID
	Name    string
	Barcode string
	Price   decimal.Decimal
	Taxable bool
	TaxRate decimal.Decimal
	Stock   int64
}

// LineRequest is one requested cart line.
type LineRequest struct {
	ProductID   uuid.UUID
	ProductName string
	Barcode     string
	Quantity    int64
	UnitPrice   decimal.Decimal
	Discount    money.Discount
	Taxable     bool
	TaxRate     decimal.Decimal
	TaxExempt   bool
}

// CreateInput is the input of Service.Create.
type CreateInput struct {
	Items           []LineRequest
	PaymentMethodID uuid.UUID
	AmountTendered  *decimal.Decimal
	OrderDiscount   money.Discount
	Note            string
}

// ReturnInput is the input of Service.CreateReturn.
type ReturnInput struct {
	Items           []LineRequest
	PaymentMethodID uuid.UUID
	OrderDiscount   money.Discount
	OriginalSaleID  *uuid.UUID
	Note            string
}

// ListFilter narrows Service.List.
type ListFilter struct {
	From          time.Time
	To            time.Time
	IncludeVoided bool
	ReturnsOnly   bool
	Limit         int
	Offset        int
}
