// Package money holds the decimal arithmetic shared by the sale allocator and
// the tax reconciliation reports.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountKind selects how a discount value is interpreted.
type DiscountKind string

const (
	DiscountNone       DiscountKind = "none"
	DiscountPercentage DiscountKind = "percentage"
	DiscountAmount     DiscountKind = "amount"
)

var (
	ErrInvalidDiscountKind = errors.New("money: invalid discount kind")
	ErrNegativeDiscount    = errors.New("money: discount value must not be negative")
)

var hundred = decimal.NewFromInt(100)

// Discount describes a requested discount before it is resolved against a base.
type Discount struct {
	Kind  DiscountKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// ParseDiscountKind normalises user input. Empty input maps to DiscountNone.
func ParseDiscountKind(raw string) (DiscountKind, error) {
	switch DiscountKind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DiscountNone:
		return DiscountNone, nil
	case DiscountPercentage, "percent":
		return DiscountPercentage, nil
	case DiscountAmount, "fixed":
		return DiscountAmount, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDiscountKind, raw)
	}
}

// Validate reports whether the discount can be resolved.
func (d Discount) Validate() error {
	switch d.Kind {
	case "", DiscountNone, DiscountPercentage, DiscountAmount:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDiscountKind, d.Kind)
	}
	if d.Value.IsNegative() {
		return ErrNegativeDiscount
	}
	return nil
}

// IsZero reports whether the discount resolves to nothing regardless of base.
func (d Discount) IsZero() bool {
	return d.Kind == "" || d.Kind == DiscountNone || d.Value.IsZero()
}

// ResolveDiscount returns the amount taken off base. Percentage discounts are
// base*value/100; amount discounts are clamped to base so a discounted total
// never goes below zero. The result is never negative.
func ResolveDiscount(kind DiscountKind, value, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() || !value.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch kind {
	case DiscountPercentage:
		amount = base.Mul(value).Div(hundred)
	case DiscountAmount:
		amount = value
	default:
		return decimal.Zero
	}
	if amount.GreaterThan(base) {
		return base
	}
	return amount
}

// Resolve is ResolveDiscount applied to d.
func (d Discount) Resolve(base decimal.Decimal) decimal.Decimal {
	return ResolveDiscount(d.Kind, d.Value, base)
}

// ExtractTax splits a tax-inclusive amount into base and tax.
//
// Tax is taken as a straight percentage of the inclusive amount
// (inclusive*rate/100), not backed out with rate/(100+rate). Stored sales and
// the reconciliation reports both depend on this exact formula.
func ExtractTax(inclusive, ratePercent decimal.Decimal) (base, tax decimal.Decimal) {
	if !ratePercent.IsPositive() {
		return inclusive, decimal.Zero
	}
	tax = Percent(inclusive, ratePercent)
	return inclusive.Sub(tax), tax
}

// Percent returns amount*rate/100.
func Percent(amount, ratePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(ratePercent).Div(hundred)
}

// Round2 rounds half away from zero to two decimal places. Only the store
// boundary should call it.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Epsilon is one minor currency unit.
var Epsilon = decimal.New(1, -2)

// WithinEpsilon reports whether a and b differ by at most one minor unit.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}
