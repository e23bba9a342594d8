// Package pricing allocates order-level discounts and tax across the lines of
// a cart.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-engine/internal/money"
)

var (
	ErrEmptyCart       = errors.New("pricing: cart has no items")
	ErrInvalidQuantity = errors.New("pricing: quantity must be positive")
	ErrNegativePrice   = errors.New("pricing: unit price must not be negative")
	ErrNegativeTaxRate = errors.New("pricing: tax rate must not be negative")
	ErrInvalidDiscount = errors.New("pricing: invalid discount")
	ErrPrecision       = errors.New("pricing: more than 4 decimal places")
)

// MaxScale is the number of decimal places stored for prices, rates and
// discount values.
const MaxScale = 4

func exceedsScale(d decimal.Decimal) bool {
	return !d.Equal(d.Round(MaxScale))
}

// Item is one requested cart line.
type Item struct {
	Qty       int64
	UnitPrice decimal.Decimal
	Discount  money.Discount
	Taxable   bool
	TaxRate   decimal.Decimal
	TaxExempt bool
}

// Line is the allocation result for a single Item, in request order.
type Line struct {
	Raw            decimal.Decimal // qty * unit price
	DiscountAmount decimal.Decimal // item discount resolved against Raw
	Discounted     decimal.Decimal // Raw - DiscountAmount
	OrderProration decimal.Decimal // share of the order discount
	Net            decimal.Decimal // Discounted - OrderProration
	Base           decimal.Decimal
	Tax            decimal.Decimal
	TaxApplied     bool
}

// Summary aggregates the order-level numbers.
type Summary struct {
	OrderBase decimal.Decimal
	Discount  decimal.Decimal
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
}

// Allocation is the output of Compute.
type Allocation struct {
	Lines   []Line
	Summary Summary
}

// Validate rejects carts that cannot be allocated.
func Validate(items []Item, order money.Discount) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	for i, it := range items {
		if it.Qty <= 0 {
			return fmt.Errorf("%w: line %d", ErrInvalidQuantity, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d", ErrNegativePrice, i)
		}
		if it.TaxRate.IsNegative() {
			return fmt.Errorf("%w: line %d", ErrNegativeTaxRate, i)
		}
		if err := it.Discount.Validate(); err != nil {
			return fmt.Errorf("%w: line %d: %w", ErrInvalidDiscount, i, err)
		}
		if exceedsScale(it.UnitPrice) || exceedsScale(it.TaxRate) || exceedsScale(it.Discount.Value) {
			return fmt.Errorf("%w: line %d", ErrPrecision, i)
		}
	}
	if err := order.Validate(); err != nil {
		return fmt.Errorf("%w: order: %w", ErrInvalidDiscount, err)
	}
	if exceedsScale(order.Value) {
		return fmt.Errorf("%w: order discount", ErrPrecision)
	}
	return nil
}

// Compute runs the allocation for a validated cart. Amounts are left
// unrounded; rounding happens when the sale is persisted.
func Compute(items []Item, order money.Discount) (Allocation, error) {
	if err := Validate(items, order); err != nil {
		return Allocation{}, err
	}

	lines := make([]Line, len(items))
	orderBase := decimal.Zero
	for i, it := range items {
		raw := it.UnitPrice.Mul(decimal.NewFromInt(it.Qty))
		disc := it.Discount.Resolve(raw)
		lines[i] = Line{Raw: raw, DiscountAmount: disc, Discounted: raw.Sub(disc)}
		orderBase = orderBase.Add(lines[i].Discounted)
	}

	orderDiscount := order.Resolve(orderBase)

	subtotal := decimal.Zero
	tax := decimal.Zero
	for i, it := range items {
		ln := &lines[i]
		ln.OrderProration = decimal.Zero
		if orderBase.IsPositive() {
			ln.OrderProration = orderDiscount.Mul(ln.Discounted).Div(orderBase)
		}
		ln.Net = ln.Discounted.Sub(ln.OrderProration)

		if it.Taxable && it.TaxRate.IsPositive() && !it.TaxExempt {
			ln.Base, ln.Tax = money.ExtractTax(ln.Net, it.TaxRate)
			ln.TaxApplied = true
		} else {
			ln.Base, ln.Tax = ln.Net, decimal.Zero
		}
		subtotal = subtotal.Add(ln.Base)
		tax = tax.Add(ln.Tax)
	}

	return Allocation{
		Lines: lines,
		Summary: Summary{
			OrderBase: orderBase,
			Discount:  orderDiscount,
			Subtotal:  subtotal,
			Tax:       tax,
			Total:     orderBase.Sub(orderDiscount),
		},
	}, nil
}
