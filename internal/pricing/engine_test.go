package pricing

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-engine/internal/money"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func taxedLine(qty int64, price, rate string) Item {
	return Item{Qty: qty, UnitPrice: dec(price), Taxable: true, TaxRate: dec(rate)}
}

func TestComputeTaxedLineNoDiscount(t *testing.T) {
	alloc, err := Compute([]Item{taxedLine(2, "100", "15")}, money.Discount{})
	require.NoError(t, err)

	s := alloc.Summary
	require.True(t, s.Tax.Equal(dec("30")), "tax %s", s.Tax)
	require.True(t, s.Subtotal.Equal(dec("170")), "subtotal %s", s.Subtotal)
	require.True(t, s.Total.Equal(dec("200")), "total %s", s.Total)
	require.True(t, s.Discount.IsZero())
}

func TestComputeOrderPercentageDiscount(t *testing.T) {
	order := money.Discount{Kind: money.DiscountPercentage, Value: dec("10")}
	alloc, err := Compute([]Item{taxedLine(2, "100", "15")}, order)
	require.NoError(t, err)

	s := alloc.Summary
	require.True(t, s.OrderBase.Equal(dec("200")))
	require.True(t, s.Discount.Equal(dec("20")))
	require.True(t, alloc.Lines[0].OrderProration.Equal(dec("20")))
	require.True(t, alloc.Lines[0].Net.Equal(dec("180")))
	require.True(t, s.Tax.Equal(dec("27")))
	require.True(t, s.Subtotal.Equal(dec("153")))
	require.True(t, s.Total.Equal(dec("180")))
}

func TestComputeProratesByShare(t *testing.T) {
	items := []Item{
		{Qty: 1, UnitPrice: dec("300")},
		{Qty: 1, UnitPrice: dec("100"), Discount: money.Discount{Kind: money.DiscountAmount, Value: dec("100")}},
		{Qty: 2, UnitPrice: dec("50")},
	}
	order := money.Discount{Kind: money.DiscountAmount, Value: dec("40")}
	alloc, err := Compute(items, order)
	require.NoError(t, err)

	require.True(t, alloc.Summary.OrderBase.Equal(dec("400")))
	require.True(t, alloc.Lines[0].OrderProration.Equal(dec("30")))
	require.True(t, alloc.Lines[1].OrderProration.IsZero())
	require.True(t, alloc.Lines[2].OrderProration.Equal(dec("10")))
	require.True(t, alloc.Summary.Total.Equal(dec("360")))
}

func TestComputeZeroOrderBase(t *testing.T) {
	items := []Item{{Qty: 3, UnitPrice: decimal.Zero, Taxable: true, TaxRate: dec("15")}}
	order := money.Discount{Kind: money.DiscountAmount, Value: dec("5")}
	alloc, err := Compute(items, order)
	require.NoError(t, err)
	require.True(t, alloc.Summary.Discount.IsZero())
	require.True(t, alloc.Lines[0].OrderProration.IsZero())
	require.True(t, alloc.Summary.Total.IsZero())
}

func TestComputeTaxExemptAndUntaxed(t *testing.T) {
	items := []Item{
		{Qty: 1, UnitPrice: dec("100"), Taxable: true, TaxRate: dec("15"), TaxExempt: true},
		{Qty: 1, UnitPrice: dec("50"), Taxable: false, TaxRate: dec("15")},
		{Qty: 1, UnitPrice: dec("20"), Taxable: true, TaxRate: decimal.Zero},
	}
	alloc, err := Compute(items, money.Discount{})
	require.NoError(t, err)
	require.True(t, alloc.Summary.Tax.IsZero())
	require.True(t, alloc.Summary.Subtotal.Equal(dec("170")))
	for _, ln := range alloc.Lines {
		require.False(t, ln.TaxApplied)
	}
}

func TestComputeRejectsInvalidCarts(t *testing.T) {
	cases := []struct {
		name  string
		items []Item
		order money.Discount
		want  error
	}{
		{"empty", nil, money.Discount{}, ErrEmptyCart},
		{"zero qty", []Item{{Qty: 0, UnitPrice: dec("1")}}, money.Discount{}, ErrInvalidQuantity},
		{"negative qty", []Item{{Qty: -2, UnitPrice: dec("1")}}, money.Discount{}, ErrInvalidQuantity},
		{"negative price", []Item{{Qty: 1, UnitPrice: dec("-1")}}, money.Discount{}, ErrNegativePrice},
		{"negative rate", []Item{{Qty: 1, UnitPrice: dec("1"), TaxRate: dec("-1")}}, money.Discount{}, ErrNegativeTaxRate},
		{"negative item discount", []Item{{Qty: 1, UnitPrice: dec("1"), Discount: money.Discount{Kind: money.DiscountAmount, Value: dec("-1")}}}, money.Discount{}, ErrInvalidDiscount},
		{"bad order kind", []Item{{Qty: 1, UnitPrice: dec("1")}}, money.Discount{Kind: "bogus", Value: dec("1")}, ErrInvalidDiscount},
		{"price scale", []Item{{Qty: 3, UnitPrice: dec("0.33333")}}, money.Discount{}, ErrPrecision},
		{"rate scale", []Item{{Qty: 1, UnitPrice: dec("1"), TaxRate: dec("7.12345")}}, money.Discount{}, ErrPrecision},
		{"order discount scale", []Item{{Qty: 1, UnitPrice: dec("1")}}, money.Discount{Kind: money.DiscountAmount, Value: dec("0.00001")}, ErrPrecision},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute(tc.items, tc.order)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestValidateAcceptsTrailingZerosBeyondScale(t *testing.T) {
	require.NoError(t, Validate([]Item{{Qty: 1, UnitPrice: dec("1.250000"), TaxRate: dec("15.00000")}}, money.Discount{}))
	require.NoError(t, Validate([]Item{{Qty: 1, UnitPrice: dec("0.1234")}}, money.Discount{}))
}

func TestComputeUndiscountedUntaxedTotalsMatchRaw(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		items := make([]Item, 1+rng.Intn(6))
		want := decimal.Zero
		for i := range items {
			qty := int64(1 + rng.Intn(9))
			price := decimal.New(int64(rng.Intn(100000)), -2)
			items[i] = Item{Qty: qty, UnitPrice: price}
			want = want.Add(price.Mul(decimal.NewFromInt(qty)))
		}
		alloc, err := Compute(items, money.Discount{})
		require.NoError(t, err)
		require.True(t, alloc.Summary.Total.Equal(want))
	}
}

func TestComputeTotalsStayConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	kinds := []money.DiscountKind{money.DiscountNone, money.DiscountPercentage, money.DiscountAmount}
	for n := 0; n < 500; n++ {
		items := make([]Item, 1+rng.Intn(8))
		for i := range items {
			items[i] = Item{
				Qty:       int64(1 + rng.Intn(5)),
				UnitPrice: decimal.New(int64(rng.Intn(50000)), -2),
				Taxable:   rng.Intn(2) == 0,
				TaxRate:   decimal.NewFromInt(int64(rng.Intn(3) * 5)),
				TaxExempt: rng.Intn(5) == 0,
				Discount: money.Discount{
					Kind:  kinds[rng.Intn(len(kinds))],
					Value: decimal.New(int64(rng.Intn(3000)), -2),
				},
			}
		}
		order := money.Discount{Kind: kinds[rng.Intn(len(kinds))], Value: decimal.New(int64(rng.Intn(5000)), -2)}

		alloc, err := Compute(items, order)
		require.NoError(t, err)
		s := alloc.Summary
		require.True(t, money.WithinEpsilon(s.Total, s.Subtotal.Add(s.Tax)), "total %s subtotal %s tax %s", s.Total, s.Subtotal, s.Tax)
		require.False(t, s.Discount.IsNegative())
		require.True(t, s.Discount.LessThanOrEqual(s.OrderBase))
		for _, ln := range alloc.Lines {
			require.False(t, ln.DiscountAmount.IsNegative())
			require.True(t, ln.DiscountAmount.LessThanOrEqual(ln.Raw))
		}
		rounded := money.Round2(s.Total)
		require.True(t, money.WithinEpsilon(rounded, money.Round2(s.Subtotal).Add(money.Round2(s.Tax))))
	}
}
