package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-engine/internal/analytics"
	"github.com/noah-isme/pos-engine/internal/reconcile"
	"github.com/noah-isme/pos-engine/internal/sale"
)

var _ analytics.Querier = (*Store)(nil)

func (s *Store) analyticsSales(f analytics.Filter) []sale.Sale {
	return s.salesInRange(reconcile.Range{From: f.From, To: f.To, IncludeVoided: f.IncludeVoided})
}

// SalesSummary implements analytics.Querier.
func (s *Store) SalesSummary(_ context.Context, f analytics.Filter) (analytics.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out analytics.Summary
	for _, sl := range s.analyticsSales(f) {
		discount := sl.Discount.Amount
		if sl.IsReturn {
			out.ReturnCount++
			discount = discount.Neg()
		} else {
			out.SaleCount++
		}
		out.TotalAmount = out.TotalAmount.Add(sl.Total)
		out.Subtotal = out.Subtotal.Add(sl.Subtotal)
		out.TaxAmount = out.TaxAmount.Add(sl.Tax)
		out.DiscountAmount = out.DiscountAmount.Add(discount)
		out.AmountTendered = out.AmountTendered.Add(sl.AmountTendered)
		out.ChangeAmount = out.ChangeAmount.Add(sl.Change)
	}
	return out, nil
}

// SalesByPayment implements analytics.Querier.
func (s *Store) SalesByPayment(_ context.Context, f analytics.Filter) ([]analytics.PaymentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[uuid.UUID]*analytics.PaymentRow)
	for _, sl := range s.analyticsSales(f) {
		row, ok := byID[sl.PaymentMethodID]
		if !ok {
			row = &analytics.PaymentRow{PaymentMethodID: sl.PaymentMethodID, Name: s.st.payments[sl.PaymentMethodID].Name}
			byID[sl.PaymentMethodID] = row
		}
		row.SaleCount++
		row.TotalAmount = row.TotalAmount.Add(sl.Total)
	}
	out := make([]analytics.PaymentRow, 0, len(byID))
	for _, row := range byID {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalAmount.Cmp(out[j].TotalAmount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// TopProducts implements analytics.Querier.
func (s *Store) TopProducts(ctx context.Context, f analytics.Filter, limit int) ([]analytics.ProductRow, error) {
	rows, err := s.ProductSales(ctx, f, nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Quantity > rows[j].Quantity })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// ProductSales implements analytics.Querier. Rows are ordered by revenue.
func (s *Store) ProductSales(_ context.Context, f analytics.Filter, productID *uuid.UUID) ([]analytics.ProductRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[uuid.UUID]*analytics.ProductRow)
	seen := make(map[uuid.UUID]map[uuid.UUID]bool)
	for _, sl := range s.analyticsSales(f) {
		for _, it := range s.st.items[sl.ID] {
			if productID != nil && it.ProductID != *productID {
				continue
			}
			row, ok := byID[it.ProductID]
			if !ok {
				row = &analytics.ProductRow{ProductID: it.ProductID, ProductName: it.ProductName, Barcode: it.Barcode}
				byID[it.ProductID] = row
				seen[it.ProductID] = make(map[uuid.UUID]bool)
			}
			row.Quantity += it.Quantity
			row.Revenue = row.Revenue.Add(it.NetTotal)
			if !seen[it.ProductID][sl.ID] {
				seen[it.ProductID][sl.ID] = true
				row.SaleCount++
			}
		}
	}
	out := make([]analytics.ProductRow, 0, len(byID))
	for _, row := range byID {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].ProductName < out[j].ProductName
	})
	return out, nil
}

// DailySales implements analytics.Querier. Days are ordered newest first.
func (s *Store) DailySales(_ context.Context, f analytics.Filter, loc *time.Location) ([]analytics.DailyRow, error) {
	if loc == nil {
		loc = time.UTC
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byDay := make(map[string]*analytics.DailyRow)
	for _, sl := range s.analyticsSales(f) {
		day := sl.CreatedAt.In(loc).Format(time.DateOnly)
		row, ok := byDay[day]
		if !ok {
			row = &analytics.DailyRow{Date: day, TotalAmount: decimal.Zero, TaxAmount: decimal.Zero, DiscountAmount: decimal.Zero}
			byDay[day] = row
		}
		discount := sl.Discount.Amount
		if sl.IsReturn {
			discount = discount.Neg()
		}
		row.SaleCount++
		row.TotalAmount = row.TotalAmount.Add(sl.Total)
		row.TaxAmount = row.TaxAmount.Add(sl.Tax)
		row.DiscountAmount = row.DiscountAmount.Add(discount)
	}
	out := make([]analytics.DailyRow, 0, len(byDay))
	for _, row := range byDay {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}
