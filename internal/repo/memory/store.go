// Package memory is an in-process store used by tests and the demo mode of
// the API. A single mutex is held for the whole of each transaction, so
// transactions are fully serialized.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-engine/internal/payment"
	"github.com/noah-isme/pos-engine/internal/reconcile"
	"github.com/noah-isme/pos-engine/internal/sale"
)

// ErrDuplicateSaleNumber mirrors the unique constraint on sale numbers.
var ErrDuplicateSaleNumber = errors.New("memory: duplicate sale number")

type state struct {
	products map[uuid.UUID]sale.Product
	payments map[uuid.UUID]payment.Method
	sales    map[uuid.UUID]sale.Sale
	items    map[uuid.UUID][]sale.Item
	numbers  map[string]uuid.UUID
}

func (s state) clone() state {
	return state{
		products: maps.Clone(s.products),
		payments: s.payments,
		sales:    maps.Clone(s.sales),
		items:    maps.Clone(s.items),
		numbers:  maps.Clone(s.numbers),
	}
}

// Store keeps sales, items, products and payment methods in maps.
type Store struct {
	mu sync.Mutex
	st state
}

var (
	_ sale.Store        = (*Store)(nil)
	_ reconcile.Querier = (*Store)(nil)
	_ payment.Querier   = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{st: state{
		products: make(map[uuid.UUID]sale.Product),
		payments: make(map[uuid.UUID]payment.Method),
		sales:    make(map[uuid.UUID]sale.Sale),
		items:    make(map[uuid.UUID][]sale.Item),
		numbers:  make(map[string]uuid.UUID),
	}}
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(p sale.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

// Product returns the current product row.
func (s *Store) Product(id uuid.UUID) (sale.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	return p, ok
}

// PutPaymentMethod inserts or replaces a payment method.
func (s *Store) PutPaymentMethod(m payment.Method) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.payments[m.ID] = m
}

// SaleCount returns the number of stored sales.
func (s *Store) SaleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.sales)
}

// InTx runs fn against a copy of the state and publishes the copy only when
// fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx sale.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{st: s.st.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// GetSale returns a sale with items.
func (s *Store) GetSale(_ context.Context, id uuid.UUID) (sale.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.st.sales[id]
	if !ok {
		return sale.Sale{}, sale.ErrNotFound
	}
	out.Items = append([]sale.Item(nil), s.st.items[id]...)
	return out, nil
}

// ListSales returns matching sales newest first, without items.
func (s *Store) ListSales(_ context.Context, f sale.ListFilter) ([]sale.Sale, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []sale.Sale
	for _, row := range s.st.sales {
		if !inWindow(row.CreatedAt, f.From, f.To) {
			continue
		}
		if row.Voided && !f.IncludeVoided {
			continue
		}
		if f.ReturnsOnly && !row.IsReturn {
			continue
		}
		matched = append(matched, row)
	}
	sortNewestFirst(matched)
	total := len(matched)
	if f.Offset >= total {
		return []sale.Sale{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}

// ListTaxableItems implements reconcile.Querier.
func (s *Store) ListTaxableItems(_ context.Context, rng reconcile.Range) ([]reconcile.ItemRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sales := s.salesInRange(rng)
	var rows []reconcile.ItemRow
	for _, sl := range sales {
		for _, it := range s.st.items[sl.ID] {
			if !it.Taxable || !it.TaxRate.IsPositive() {
				continue
			}
			rows = append(rows, reconcile.ItemRow{
				SaleItemID:  it.ID,
				SaleID:      sl.ID,
				SaleNumber:  sl.Number,
				SaleDate:    sl.CreatedAt,
				SaleTax:     sl.Tax,
				IsReturn:    sl.IsReturn,
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Barcode:     it.Barcode,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				LineTotal:   it.LineTotal,
				TaxRate:     it.TaxRate,
				TaxExempt:   it.TaxExempt,
			})
		}
	}
	return rows, nil
}

// ListSaleTaxes implements reconcile.Querier.
func (s *Store) ListSaleTaxes(_ context.Context, rng reconcile.Range) ([]reconcile.SaleRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sales := s.salesInRange(rng)
	rows := make([]reconcile.SaleRow, 0, len(sales))
	for _, sl := range sales {
		rows = append(rows, reconcile.SaleRow{SaleID: sl.ID, SaleDate: sl.CreatedAt, Tax: sl.Tax})
	}
	return rows, nil
}

// ListPaymentMethods implements payment.Querier.
func (s *Store) ListPaymentMethods(_ context.Context, activeOnly bool) ([]payment.Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]payment.Method, 0, len(s.st.payments))
	for _, m := range s.st.payments {
		if activeOnly && !m.Active {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) salesInRange(rng reconcile.Range) []sale.Sale {
	var out []sale.Sale
	for _, sl := range s.st.sales {
		if !inWindow(sl.CreatedAt, rng.From, rng.To) {
			continue
		}
		if sl.Voided && !rng.IncludeVoided {
			continue
		}
		out = append(out, sl)
	}
	sortNewestFirst(out)
	return out
}

type memTx struct {
	st state
}

func (t *memTx) LockProduct(_ context.Context, id uuid.UUID) (sale.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return sale.Product{}, fmt.Errorf("product %s: %w", id, sale.ErrNotFound)
	}
	return p, nil
}

func (t *memTx) SetProductStock(_ context.Context, id uuid.UUID, stock int64) error {
	p, ok := t.st.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, sale.ErrNotFound)
	}
	p.Stock = stock
	t.st.products[id] = p
	return nil
}

func (t *memTx) PaymentMethodExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := t.st.payments[id]
	return ok, nil
}

func (t *memTx) InsertSale(_ context.Context, s sale.Sale) error {
	if _, dup := t.st.numbers[s.Number]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateSaleNumber, s.Number)
	}
	if _, dup := t.st.sales[s.ID]; dup {
		return fmt.Errorf("memory: duplicate sale id %s", s.ID)
	}
	s.Items = nil
	t.st.sales[s.ID] = s
	t.st.numbers[s.Number] = s.ID
	return nil
}

func (t *memTx) InsertItems(_ context.Context, items []sale.Item) error {
	for _, it := range items {
		if _, ok := t.st.sales[it.SaleID]; !ok {
			return fmt.Errorf("sale item %s: parent %s missing", it.ID, it.SaleID)
		}
		t.st.items[it.SaleID] = append(append([]sale.Item(nil), t.st.items[it.SaleID]...), it)
	}
	return nil
}

func (t *memTx) LockSale(_ context.Context, id uuid.UUID) (sale.Sale, error) {
	s, ok := t.st.sales[id]
	if !ok {
		return sale.Sale{}, fmt.Errorf("sale %s: %w", id, sale.ErrNotFound)
	}
	return s, nil
}

func (t *memTx) SetVoided(_ context.Context, id uuid.UUID, voidedAt *time.Time) error {
	s, ok := t.st.sales[id]
	if !ok {
		return fmt.Errorf("sale %s: %w", id, sale.ErrNotFound)
	}
	s.Voided = voidedAt != nil
	s.VoidedAt = voidedAt
	t.st.sales[id] = s
	return nil
}

func (t *memTx) ListItems(_ context.Context, saleID uuid.UUID) ([]sale.Item, error) {
	return append([]sale.Item(nil), t.st.items[saleID]...), nil
}

func inWindow(at, from, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}

func sortNewestFirst(sales []sale.Sale) {
	sort.Slice(sales, func(i, j int) bool {
		if !sales[i].CreatedAt.Equal(sales[j].CreatedAt) {
			return sales[i].CreatedAt.After(sales[j].CreatedAt)
		}
		return strings.Compare(sales[i].Number, sales[j].Number) > 0
	})
}

// SeedDemo loads the demo catalog and the default payment methods.
func (s *Store) SeedDemo() {
	for _, m := range DefaultPaymentMethods() {
		s.PutPaymentMethod(m)
	}
	for _, p := range DemoProducts() {
		s.PutProduct(p)
	}
}

// DemoProducts is a small grocery catalog. IDs are derived from barcodes so
// every seeded environment agrees on them.
func DemoProducts() []sale.Product {
	products := []sale.Product{
		{Name: "Mineral Water 600ml", Barcode: "8991001000011", Price: decimal.RequireFromString("1.50"), Taxable: true, TaxRate: decimal.NewFromInt(15), Stock: 240},
		{Name: "Instant Noodles", Barcode: "8991001000028", Price: decimal.RequireFromString("0.90"), Taxable: true, TaxRate: decimal.NewFromInt(15), Stock: 500},
		{Name: "Fresh Bread", Barcode: "8991001000035", Price: decimal.RequireFromString("2.75"), Stock: 40},
		{Name: "Ground Coffee 250g", Barcode: "8991001000042", Price: decimal.RequireFromString("6.40"), Taxable: true, TaxRate: decimal.NewFromInt(15), Stock: 60},
		{Name: "Eggs (10 pack)", Barcode: "8991001000059", Price: decimal.RequireFromString("3.20"), Stock: 80},
	}
	for i := range products {
		products[i].ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(products[i].Barcode))
	}
	return products
}

// DefaultPaymentMethods are the tender types every store starts with.
func DefaultPaymentMethods() []payment.Method {
	return []payment.Method{
		{ID: uuid.MustParse("7b3c2f8e-0c5a-4d7e-9a51-000000000001"), Code: "CASH", Name: "Cash", Active: true},
		{ID: uuid.MustParse("7b3c2f8e-0c5a-4d7e-9a51-000000000002"), Code: "CARD", Name: "Card", Active: true},
	}
}
