package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/pos-engine/internal/analytics"
	"github.com/noah-isme/pos-engine/internal/payment"
	"github.com/noah-isme/pos-engine/internal/reconcile"
)

var (
	_ reconcile.Querier = (*Queries)(nil)
	_ payment.Querier   = (*Queries)(nil)
	_ analytics.Querier = (*Queries)(nil)
)

// ListTaxableItems implements reconcile.Querier.
func (q *Queries) ListTaxableItems(ctx context.Context, rng reconcile.Range) ([]reconcile.ItemRow, error) {
	rows, err := q.db.Query(ctx, `SELECT si.id, s.id, s.sale_number, s.created_at, s.tax_amount, s.is_return,
  si.product_id, si.product_name, si.barcode, si.quantity, si.unit_price, si.line_total,
  si.tax_rate, si.tax_exempt
FROM sale_items si
JOIN sales s ON s.id = si.sale_id
WHERE `+windowClause+`
  AND si.is_taxable AND si.tax_rate > 0
ORDER BY s.created_at DESC, s.sale_number, si.line_no`, windowArgs(rng.From, rng.To, rng.IncludeVoided)...)
	if err != nil {
		return nil, fmt.Errorf("list taxable items: %w", classify(err))
	}
	defer rows.Close()
	out := make([]reconcile.ItemRow, 0)
	for rows.Next() {
		var r reconcile.ItemRow
		if err := rows.Scan(&r.SaleItemID, &r.SaleID, &r.SaleNumber, &r.SaleDate, &r.SaleTax, &r.IsReturn,
			&r.ProductID, &r.ProductName, &r.Barcode, &r.Quantity, &r.UnitPrice, &r.LineTotal,
			&r.TaxRate, &r.TaxExempt); err != nil {
			return nil, err
		}
		r.SaleDate = r.SaleDate.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListSaleTaxes implements reconcile.Querier.
func (q *Queries) ListSaleTaxes(ctx context.Context, rng reconcile.Range) ([]reconcile.SaleRow, error) {
	rows, err := q.db.Query(ctx, `SELECT s.id, s.created_at, s.tax_amount FROM sales s
WHERE `+windowClause+`
ORDER BY s.created_at DESC`, windowArgs(rng.From, rng.To, rng.IncludeVoided)...)
	if err != nil {
		return nil, fmt.Errorf("list sale taxes: %w", classify(err))
	}
	defer rows.Close()
	out := make([]reconcile.SaleRow, 0)
	for rows.Next() {
		var r reconcile.SaleRow
		if err := rows.Scan(&r.SaleID, &r.SaleDate, &r.Tax); err != nil {
			return nil, err
		}
		r.SaleDate = r.SaleDate.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListPaymentMethods implements payment.Querier.
func (q *Queries) ListPaymentMethods(ctx context.Context, activeOnly bool) ([]payment.Method, error) {
	rows, err := q.db.Query(ctx, `SELECT id, code, name, is_active FROM payment_methods
WHERE (NOT $1::boolean OR is_active)
ORDER BY name`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", classify(err))
	}
	defer rows.Close()
	out := make([]payment.Method, 0)
	for rows.Next() {
		var m payment.Method
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.Active); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SalesSummary implements analytics.Querier.
func (q *Queries) SalesSummary(ctx context.Context, f analytics.Filter) (analytics.Summary, error) {
	var out analytics.Summary
	err := q.db.QueryRow(ctx, `SELECT
  COUNT(*) FILTER (WHERE NOT s.is_return),
  COUNT(*) FILTER (WHERE s.is_return),
  COALESCE(SUM(s.total_amount), 0),
  COALESCE(SUM(s.subtotal), 0),
  COALESCE(SUM(s.tax_amount), 0),
  COALESCE(SUM(CASE WHEN s.is_return THEN -s.discount_amount ELSE s.discount_amount END), 0),
  COALESCE(SUM(s.amount_tendered), 0),
  COALESCE(SUM(s.change_amount), 0)
FROM sales s
WHERE `+windowClause, windowArgs(f.From, f.To, f.IncludeVoided)...).Scan(
		&out.SaleCount, &out.ReturnCount, &out.TotalAmount, &out.Subtotal, &out.TaxAmount,
		&out.DiscountAmount, &out.AmountTendered, &out.ChangeAmount,
	)
	if err != nil {
		return analytics.Summary{}, fmt.Errorf("sales summary: %w", classify(err))
	}
	return out, nil
}

// SalesByPayment implements analytics.Querier.
func (q *Queries) SalesByPayment(ctx context.Context, f analytics.Filter) ([]analytics.PaymentRow, error) {
	rows, err := q.db.Query(ctx, `SELECT pm.id, pm.name, COUNT(*), COALESCE(SUM(s.total_amount), 0)
FROM sales s
JOIN payment_methods pm ON pm.id = s.payment_method_id
WHERE `+windowClause+`
GROUP BY pm.id, pm.name
ORDER BY 4 DESC, pm.name`, windowArgs(f.From, f.To, f.IncludeVoided)...)
	if err != nil {
		return nil, fmt.Errorf("sales by payment: %w", classify(err))
	}
	defer rows.Close()
	out := make([]analytics.PaymentRow, 0)
	for rows.Next() {
		var r analytics.PaymentRow
		if err := rows.Scan(&r.PaymentMethodID, &r.Name, &r.SaleCount, &r.TotalAmount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const productSalesQuery = `SELECT si.product_id, MAX(si.product_name), MAX(si.barcode),
  SUM(si.quantity)::bigint, COALESCE(SUM(si.net_total), 0), COUNT(DISTINCT si.sale_id)
FROM sale_items si
JOIN sales s ON s.id = si.sale_id
WHERE ` + windowClause + `
  AND ($4::uuid IS NULL OR si.product_id = $4)
GROUP BY si.product_id`

// TopProducts implements analytics.Querier.
func (q *Queries) TopProducts(ctx context.Context, f analytics.Filter, limit int) ([]analytics.ProductRow, error) {
	args := append(windowArgs(f.From, f.To, f.IncludeVoided), uuidArg(nil), limit)
	return q.productRows(ctx, "top products", productSalesQuery+`
ORDER BY 4 DESC, 2
LIMIT $5`, args)
}

// ProductSales implements analytics.Querier.
func (q *Queries) ProductSales(ctx context.Context, f analytics.Filter, productID *uuid.UUID) ([]analytics.ProductRow, error) {
	args := append(windowArgs(f.From, f.To, f.IncludeVoided), uuidArg(productID))
	return q.productRows(ctx, "product sales", productSalesQuery+`
ORDER BY 5 DESC, 2`, args)
}

func (q *Queries) productRows(ctx context.Context, op, sql string, args []any) ([]analytics.ProductRow, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	defer rows.Close()
	out := make([]analytics.ProductRow, 0)
	for rows.Next() {
		var r analytics.ProductRow
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.Barcode, &r.Quantity, &r.Revenue, &r.SaleCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DailySales implements analytics.Querier.
func (q *Queries) DailySales(ctx context.Context, f analytics.Filter, loc *time.Location) ([]analytics.DailyRow, error) {
	if loc == nil {
		loc = time.UTC
	}
	args := append(windowArgs(f.From, f.To, f.IncludeVoided), loc.String())
	rows, err := q.db.Query(ctx, `SELECT to_char(s.created_at AT TIME ZONE $4::text, 'YYYY-MM-DD') AS day,
  COUNT(*),
  COALESCE(SUM(s.total_amount), 0),
  COALESCE(SUM(s.tax_amount), 0),
  COALESCE(SUM(CASE WHEN s.is_return THEN -s.discount_amount ELSE s.discount_amount END), 0)
FROM sales s
WHERE `+windowClause+`
GROUP BY day
ORDER BY day DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", classify(err))
	}
	defer rows.Close()
	out := make([]analytics.DailyRow, 0)
	for rows.Next() {
		var r analytics.DailyRow
		if err := rows.Scan(&r.Date, &r.SaleCount, &r.TotalAmount, &r.TaxAmount, &r.DiscountAmount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
