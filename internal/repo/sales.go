package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/pos-engine/internal/sale"
)

var _ sale.Tx = (*Queries)(nil)

const saleColumns = `s.id, s.sale_number, s.created_at, s.subtotal, s.discount_kind, s.discount_value,
  s.discount_amount, s.tax_amount, s.total_amount, s.amount_tendered, s.change_amount,
  s.payment_method_id, s.note, s.is_voided, s.voided_at, s.is_return, s.original_sale_id`

const itemColumns = `id, sale_id, product_id, product_name, barcode, quantity, unit_price,
  discount_kind, discount_value, discount_amount, is_taxable, tax_rate, tax_exempt,
  line_total, net_total, tax_amount`

func scanSale(row rowScanner) (sale.Sale, error) {
	var (
		s        sale.Sale
		voidedAt pgtype.Timestamptz
		original pgtype.UUID
	)
	err := row.Scan(
		&s.ID, &s.Number, &s.CreatedAt, &s.Subtotal, &s.Discount.Kind, &s.Discount.Value,
		&s.Discount.Amount, &s.Tax, &s.Total, &s.AmountTendered, &s.Change,
		&s.PaymentMethodID, &s.Note, &s.Voided, &voidedAt, &s.IsReturn, &original,
	)
	if err != nil {
		return sale.Sale{}, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.VoidedAt = timePtr(voidedAt)
	s.OriginalSaleID = uuidPtr(original)
	return s, nil
}

func scanItem(row rowScanner) (sale.Item, error) {
	var it sale.Item
	err := row.Scan(
		&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Barcode, &it.Quantity, &it.UnitPrice,
		&it.Discount.Kind, &it.Discount.Value, &it.Discount.Amount, &it.Taxable, &it.TaxRate, &it.TaxExempt,
		&it.LineTotal, &it.NetTotal, &it.Tax,
	)
	return it, err
}

// LockProduct reads a product and holds its row lock until the transaction ends.
func (q *Queries) LockProduct(ctx context.Context, id uuid.UUID) (sale.Product, error) {
	var p sale.Product
	err := q.db.QueryRow(ctx, `SELECT id, name, COALESCE(barcode, ''), price, is_taxable, tax_rate, stock_quantity
FROM products WHERE id = $1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Name, &p.Barcode, &p.Price, &p.Taxable, &p.TaxRate, &p.Stock)
	if err != nil {
		return sale.Product{}, fmt.Errorf("lock product %s: %w", id, classify(err))
	}
	return p, nil
}

// SetProductStock writes an absolute stock level.
func (q *Queries) SetProductStock(ctx context.Context, id uuid.UUID, stock int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE products SET stock_quantity = $2, updated_at = now() WHERE id = $1`, id, stock)
	if err != nil {
		return fmt.Errorf("update stock %s: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update stock %s: %w", id, sale.ErrNotFound)
	}
	return nil
}

// PaymentMethodExists reports whether a payment method row exists.
func (q *Queries) PaymentMethodExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_methods WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, classify(err)
	}
	return ok, nil
}

// InsertSale writes the sale header.
func (q *Queries) InsertSale(ctx context.Context, s sale.Sale) error {
	_, err := q.db.Exec(ctx, `INSERT INTO sales (
  id, sale_number, created_at, subtotal, discount_kind, discount_value, discount_amount,
  tax_amount, total_amount, amount_tendered, change_amount, payment_method_id, note,
  is_voided, voided_at, is_return, original_sale_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		s.ID, s.Number, s.CreatedAt, s.Subtotal, string(s.Discount.Kind), s.Discount.Value, s.Discount.Amount,
		s.Tax, s.Total, s.AmountTendered, s.Change, s.PaymentMethodID, s.Note,
		s.Voided, timeArg(s.VoidedAt), s.IsReturn, uuidArg(s.OriginalSaleID),
	)
	if err != nil {
		return fmt.Errorf("insert sale %s: %w", s.Number, classify(err))
	}
	return nil
}

// InsertItems writes sale lines in one batch, keeping their order.
func (q *Queries) InsertItems(ctx context.Context, items []sale.Item) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(`INSERT INTO sale_items (
  id, sale_id, line_no, product_id, product_name, barcode, quantity, unit_price,
  discount_kind, discount_value, discount_amount, is_taxable, tax_rate, tax_exempt,
  line_total, net_total, tax_amount
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			it.ID, it.SaleID, i+1, it.ProductID, it.ProductName, it.Barcode, it.Quantity, it.UnitPrice,
			string(it.Discount.Kind), it.Discount.Value, it.Discount.Amount, it.Taxable, it.TaxRate, it.TaxExempt,
			it.LineTotal, it.NetTotal, it.Tax,
		)
	}
	br := q.db.SendBatch(ctx, batch)
	for range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert sale item: %w", classify(err))
		}
	}
	return br.Close()
}

// LockSale reads a sale header and holds its row lock.
func (q *Queries) LockSale(ctx context.Context, id uuid.UUID) (sale.Sale, error) {
	s, err := scanSale(q.db.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales s WHERE s.id = $1 FOR UPDATE`, id))
	if err != nil {
		return sale.Sale{}, fmt.Errorf("lock sale %s: %w", id, classify(err))
	}
	return s, nil
}

// SetVoided sets or clears the void flag. A nil voidedAt clears it.
func (q *Queries) SetVoided(ctx context.Context, id uuid.UUID, voidedAt *time.Time) error {
	tag, err := q.db.Exec(ctx, `UPDATE sales SET is_voided = $2, voided_at = $3 WHERE id = $1`,
		id, voidedAt != nil, timeArg(voidedAt))
	if err != nil {
		return fmt.Errorf("update void flag %s: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update void flag %s: %w", id, sale.ErrNotFound)
	}
	return nil
}

// ListItems returns a sale's lines in entry order.
func (q *Queries) ListItems(ctx context.Context, saleID uuid.UUID) ([]sale.Item, error) {
	rows, err := q.db.Query(ctx, `SELECT `+itemColumns+` FROM sale_items WHERE sale_id = $1 ORDER BY line_no`, saleID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	items := make([]sale.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetSale returns a sale with its lines.
func (q *Queries) GetSale(ctx context.Context, id uuid.UUID) (sale.Sale, error) {
	s, err := scanSale(q.db.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales s WHERE s.id = $1`, id))
	if err != nil {
		return sale.Sale{}, fmt.Errorf("get sale %s: %w", id, classify(err))
	}
	items, err := q.ListItems(ctx, id)
	if err != nil {
		return sale.Sale{}, fmt.Errorf("list sale items %s: %w", id, err)
	}
	s.Items = items
	return s, nil
}

// ListSales returns one page of sale headers, newest first, and the total
// number of matches.
func (q *Queries) ListSales(ctx context.Context, f sale.ListFilter) ([]sale.Sale, int, error) {
	args := append(windowArgs(f.From, f.To, f.IncludeVoided), f.ReturnsOnly)
	where := windowClause + ` AND (NOT $4::boolean OR s.is_return)`

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM sales s WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", classify(err))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.Query(ctx, `SELECT `+saleColumns+` FROM sales s WHERE `+where+`
ORDER BY s.created_at DESC, s.sale_number DESC LIMIT $5 OFFSET $6`, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", classify(err))
	}
	defer rows.Close()
	out := make([]sale.Sale, 0, limit)
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}
