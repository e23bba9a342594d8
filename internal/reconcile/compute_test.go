package reconcile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(saleID uuid.UUID, saleTax, lineTotal, rate string) ItemRow {
	return ItemRow{
		SaleItemID: uuid.New(),
		SaleID:     saleID,
		SaleTax:    dec(saleTax),
		SaleDate:   time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
		Quantity:   1,
		LineTotal:  dec(lineTotal),
		TaxRate:    dec(rate),
	}
}

func TestComputeFlagsUncollectedTax(t *testing.T) {
	report := Compute([]ItemRow{item(uuid.New(), "0", "200", "15")})

	require.Len(t, report.Details, 1)
	d := report.Details[0]
	require.True(t, d.ExpectedTax.Equal(dec("30")))
	require.True(t, d.ActualTax.IsZero())
	require.True(t, d.ExcludedTax.Equal(dec("30")))
	require.True(t, d.IsTaxExcluded)
	require.True(t, d.BasePrice.Equal(dec("170")))

	require.Equal(t, 1, report.Summary.TotalTaxItems)
	require.Equal(t, 1, report.Summary.ItemsExcluded)
	require.Equal(t, 0, report.Summary.ItemsIncluded)
	require.True(t, report.Summary.TotalExcludedTax.Equal(dec("30")))
}

func TestComputeAllocatesRecordedTaxProportionally(t *testing.T) {
	sale := uuid.New()
	rows := []ItemRow{
		item(sale, "45", "200", "15"), // expected 30
		item(sale, "45", "100", "15"), // expected 15
	}
	report := Compute(rows)

	require.True(t, report.Details[0].ActualTax.Equal(dec("30")))
	require.True(t, report.Details[1].ActualTax.Equal(dec("15")))
	for _, d := range report.Details {
		require.False(t, d.IsTaxExcluded)
		require.True(t, d.ExcludedTax.IsZero())
	}
	require.True(t, report.Summary.TotalActualTax.Equal(dec("45")))
	require.Equal(t, 2, report.Summary.ItemsIncluded)
}

func TestComputeToleranceBand(t *testing.T) {
	// 28.50 is exactly 95% of 30: not flagged. 28.49 is.
	require.False(t, Compute([]ItemRow{item(uuid.New(), "28.50", "200", "15")}).Details[0].IsTaxExcluded)

	flagged := Compute([]ItemRow{item(uuid.New(), "28.49", "200", "15")}).Details[0]
	require.True(t, flagged.IsTaxExcluded)
	require.True(t, flagged.ExcludedTax.Equal(dec("1.51")))
}

func TestComputeExcludedTaxInsideToleranceBand(t *testing.T) {
	report := Compute([]ItemRow{item(uuid.New(), "29", "200", "15")})
	d := report.Details[0]
	require.False(t, d.IsTaxExcluded)
	require.True(t, d.ExcludedTax.Equal(dec("1")))
	require.True(t, report.Summary.TotalExcludedTax.Equal(dec("1")))
	require.Equal(t, 0, report.Summary.ItemsExcluded)
}

func TestComputeOverCollectedTaxIsNegativeGap(t *testing.T) {
	report := Compute([]ItemRow{item(uuid.New(), "35", "200", "15")})
	d := report.Details[0]
	require.False(t, d.IsTaxExcluded)
	require.True(t, d.ActualTax.Equal(dec("35")))
	require.True(t, d.ExcludedTax.Equal(dec("-5")))
	require.True(t, report.Summary.TotalExcludedTax.Equal(dec("-5")))
}

func TestComputePartialExemptionWithinSale(t *testing.T) {
	sale := uuid.New()
	// the engine recorded 30 because the second line was exempt
	rows := []ItemRow{
		item(sale, "30", "200", "15"),
		item(sale, "30", "200", "15"),
	}
	rows[1].TaxExempt = true
	report := Compute(rows)

	for _, d := range report.Details {
		require.True(t, d.ActualTax.Equal(dec("15")))
		require.True(t, d.IsTaxExcluded)
		require.True(t, d.ExcludedTax.Equal(dec("15")))
	}
	require.True(t, report.Summary.TotalExcludedTax.Equal(dec("30")))
}

func TestComputeZeroExpectedForSale(t *testing.T) {
	report := Compute([]ItemRow{item(uuid.New(), "5", "0", "15")})
	d := report.Details[0]
	require.True(t, d.ActualTax.IsZero())
	require.True(t, d.IsTaxExcluded)
	require.True(t, d.ExcludedTax.IsZero())
}

func TestComputeReturnLinesCompareMagnitudes(t *testing.T) {
	report := Compute([]ItemRow{item(uuid.New(), "-30", "-200", "15")})
	d := report.Details[0]
	require.True(t, d.ExpectedTax.Equal(dec("-30")))
	require.True(t, d.ActualTax.Equal(dec("-30")))
	require.False(t, d.IsTaxExcluded)
}

func TestComputeEmpty(t *testing.T) {
	report := Compute(nil)
	require.Empty(t, report.Details)
	require.Equal(t, 0, report.Summary.TotalTaxItems)
	require.True(t, report.Summary.TotalExpectedTax.IsZero())
}

func TestComputeDaily(t *testing.T) {
	day1 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 4, 2, 23, 30, 0, 0, time.UTC)
	saleA, saleB, saleC := uuid.New(), uuid.New(), uuid.New()

	sales := []SaleRow{
		{SaleID: saleA, SaleDate: day1, Tax: dec("30")},
		{SaleID: saleB, SaleDate: day1, Tax: dec("0")},
		{SaleID: saleC, SaleDate: day2, Tax: dec("27")},
	}
	items := []ItemRow{
		{SaleID: saleA, SaleDate: day1, LineTotal: dec("200"), TaxRate: dec("15")},
		{SaleID: saleA, SaleDate: day1, LineTotal: dec("100"), TaxRate: dec("10"), TaxExempt: true},
		{SaleID: saleC, SaleDate: day2, LineTotal: dec("180"), TaxRate: dec("15")},
	}

	days := ComputeDaily(sales, items, time.UTC)
	require.Len(t, days, 2)

	require.Equal(t, "2026-04-02", days[0].Date)
	require.Equal(t, 1, days[0].SaleCount)
	require.True(t, days[0].TotalExpectedTax.Equal(dec("27")))
	require.True(t, days[0].TotalExcludedTax.IsZero())

	require.Equal(t, "2026-04-01", days[1].Date)
	require.Equal(t, 2, days[1].SaleCount)
	require.Equal(t, 2, days[1].TaxItemCount)
	require.True(t, days[1].TotalTaxCollected.Equal(dec("30")))
	require.True(t, days[1].TotalExpectedTax.Equal(dec("40")))
	require.True(t, days[1].TotalExcludedTax.Equal(dec("10")))
}

func TestComputeDailyUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	late := time.Date(2026, 4, 2, 20, 0, 0, 0, time.UTC) // 03:00 on the 3rd locally
	days := ComputeDaily([]SaleRow{{SaleID: uuid.New(), SaleDate: late, Tax: dec("1")}}, nil, loc)
	require.Len(t, days, 1)
	require.Equal(t, "2026-04-03", days[0].Date)
}
