package reconcile

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-engine/internal/money"
)

// toleranceRatio is the share of expected tax an item must carry to count as
// collected.
var toleranceRatio = decimal.RequireFromString("0.95")

// ItemRow is a taxable, positively rated sale line joined with its sale.
type ItemRow struct {
	SaleItemID  uuid.UUID
	SaleID      uuid.UUID
	SaleNumber  string
	SaleDate    time.Time
	SaleTax     decimal.Decimal
	IsReturn    bool
	ProductID   uuid.UUID
	ProductName string
	Barcode     string
	Quantity    int64
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	TaxRate     decimal.Decimal
	TaxExempt   bool
}

// SaleRow carries a sale's recorded tax for the daily report.
type SaleRow struct {
	SaleID   uuid.UUID
	SaleDate time.Time
	Tax      decimal.Decimal
}

// Detail is the per-item reconciliation result.
type Detail struct {
	SaleItemID    uuid.UUID       `json:"sale_item_id"`
	SaleID        uuid.UUID       `json:"sale_id"`
	SaleNumber    string          `json:"sale_number"`
	SaleDate      time.Time       `json:"sale_date"`
	IsReturn      bool            `json:"is_return"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Barcode       string          `json:"barcode,omitempty"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxExempt     bool            `json:"tax_exempt"`
	BasePrice     decimal.Decimal `json:"base_price"`
	ExpectedTax   decimal.Decimal `json:"expected_tax"`
	ActualTax     decimal.Decimal `json:"actual_tax"`
	ExcludedTax   decimal.Decimal `json:"excluded_tax"`
	IsTaxExcluded bool            `json:"is_tax_excluded"`
}

// Summary aggregates a Report.
type Summary struct {
	TotalTaxItems    int             `json:"total_tax_items"`
	TotalExpectedTax decimal.Decimal `json:"total_expected_tax"`
	TotalActualTax   decimal.Decimal `json:"total_actual_tax"`
	TotalExcludedTax decimal.Decimal `json:"total_excluded_tax"`
	ItemsExcluded    int             `json:"items_with_tax_excluded"`
	ItemsIncluded    int             `json:"items_with_tax_included"`
}

// Report is the per-item reconciliation for a date range.
type Report struct {
	Summary Summary  `json:"summary"`
	Details []Detail `json:"details"`
}

// Day is one row of the daily reconciliation.
type Day struct {
	Date              string          `json:"date"`
	SaleCount         int             `json:"sale_count"`
	TotalTaxCollected decimal.Decimal `json:"total_tax_collected"`
	TaxItemCount      int             `json:"tax_item_count"`
	TotalExpectedTax  decimal.Decimal `json:"total_expected_tax"`
	TotalExcludedTax  decimal.Decimal `json:"total_excluded_tax"`
}

// Compute reconciles item rows against their sales' recorded tax.
//
// Each item's expected tax is lineTotal*rate/100, the same straight
// percentage the engine uses. A sale's recorded tax is spread over its items
// in proportion to expected tax; an item whose share falls below 95% of its
// expected tax is flagged. Excluded tax is expected minus actual on every
// item, flagged or not. Magnitudes are compared so return lines, whose
// amounts are negative, are judged like their forward counterparts.
// Amounts in the output are rounded to two decimals.
func Compute(rows []ItemRow) Report {
	expectedBySale := make(map[uuid.UUID]decimal.Decimal)
	for _, row := range rows {
		expectedBySale[row.SaleID] = expectedBySale[row.SaleID].Add(money.Percent(row.LineTotal, row.TaxRate))
	}

	report := Report{
		Summary: Summary{
			TotalExpectedTax: decimal.Zero,
			TotalActualTax:   decimal.Zero,
			TotalExcludedTax: decimal.Zero,
		},
		Details: make([]Detail, 0, len(rows)),
	}
	for _, row := range rows {
		expected := money.Percent(row.LineTotal, row.TaxRate)
		saleExpected := expectedBySale[row.SaleID]

		actual := decimal.Zero
		excluded := true
		if !saleExpected.IsZero() {
			actual = row.SaleTax.Mul(expected).Div(saleExpected)
			excluded = actual.Abs().LessThan(expected.Abs().Mul(toleranceRatio))
		}
		// gap is reported for every item, negative when over-collected
		excludedTax := expected.Sub(actual)

		d := Detail{
			SaleItemID:    row.SaleItemID,
			SaleID:        row.SaleID,
			SaleNumber:    row.SaleNumber,
			SaleDate:      row.SaleDate,
			IsReturn:      row.IsReturn,
			ProductID:     row.ProductID,
			ProductName:   row.ProductName,
			Barcode:       row.Barcode,
			Quantity:      row.Quantity,
			UnitPrice:     row.UnitPrice,
			LineTotal:     row.LineTotal,
			TaxRate:       row.TaxRate,
			TaxExempt:     row.TaxExempt,
			BasePrice:     money.Round2(row.LineTotal.Sub(expected)),
			ExpectedTax:   money.Round2(expected),
			ActualTax:     money.Round2(actual),
			ExcludedTax:   money.Round2(excludedTax),
			IsTaxExcluded: excluded,
		}
		report.Details = append(report.Details, d)

		s := &report.Summary
		s.TotalTaxItems++
		s.TotalExpectedTax = s.TotalExpectedTax.Add(expected)
		s.TotalActualTax = s.TotalActualTax.Add(actual)
		s.TotalExcludedTax = s.TotalExcludedTax.Add(excludedTax)
		if excluded {
			s.ItemsExcluded++
		} else {
			s.ItemsIncluded++
		}
	}
	s := &report.Summary
	s.TotalExpectedTax = money.Round2(s.TotalExpectedTax)
	s.TotalActualTax = money.Round2(s.TotalActualTax)
	s.TotalExcludedTax = money.Round2(s.TotalExcludedTax)
	return report
}

// ComputeDaily buckets sales and taxable items by calendar day in loc and
// compares each day's expected tax with the tax recorded on its sales.
// Days are returned newest first; days without sales are omitted.
func ComputeDaily(sales []SaleRow, items []ItemRow, loc *time.Location) []Day {
	if loc == nil {
		loc = time.UTC
	}
	byDate := make(map[string]*Day)
	day := func(t time.Time) *Day {
		key := t.In(loc).Format(time.DateOnly)
		d, ok := byDate[key]
		if !ok {
			d = &Day{Date: key, TotalTaxCollected: decimal.Zero, TotalExpectedTax: decimal.Zero}
			byDate[key] = d
		}
		return d
	}
	for _, s := range sales {
		d := day(s.SaleDate)
		d.SaleCount++
		d.TotalTaxCollected = d.TotalTaxCollected.Add(s.Tax)
	}
	for _, it := range items {
		d := day(it.SaleDate)
		d.TaxItemCount++
		d.TotalExpectedTax = d.TotalExpectedTax.Add(money.Percent(it.LineTotal, it.TaxRate))
	}

	out := make([]Day, 0, len(byDate))
	for _, d := range byDate {
		gap := d.TotalExpectedTax.Sub(d.TotalTaxCollected)
		if gap.IsNegative() {
			gap = decimal.Zero
		}
		d.TotalExpectedTax = money.Round2(d.TotalExpectedTax)
		d.TotalTaxCollected = money.Round2(d.TotalTaxCollected)
		d.TotalExcludedTax = money.Round2(gap)
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}
