// Package sale implements the sale transaction engine: creating sales and
// returns, and voiding or unvoiding them, each as one atomic store
// transaction that also moves product stock.
package sale

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-engine/internal/common"
	"github.com/noah-isme/pos-engine/internal/events"
	"github.com/noah-isme/pos-engine/internal/money"
	"github.com/noah-isme/pos-engine/internal/obs"
	"github.com/noah-isme/pos-engine/internal/pricing"
)

const defaultListLimit = 50

// Service coordinates sale state transitions.
type Service struct {
	Store  Store
	Bus    *events.Bus
	Logger *zerolog.Logger
	Now    func() time.Time
	// NewNumber overrides sale number generation.
	NewNumber func(prefix string, at time.Time) string
	// StrictStock rejects sales that would take a stock counter below zero.
	StrictStock bool
}

// Create validates and allocates the cart, then inserts the sale, its items
// and the stock decrements in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (Sale, error) {
	start := time.Now()
	sale, err := s.create(ctx, in)
	s.finish(ctx, "create", start, err, events.TopicSaleCreated, sale)
	return sale, err
}

// CreateReturn records a reversing sale with negated quantities and amounts
// and puts the returned quantities back into stock.
func (s *Service) CreateReturn(ctx context.Context, in ReturnInput) (Sale, error) {
	start := time.Now()
	sale, err := s.createReturn(ctx, in)
	s.finish(ctx, "return", start, err, events.TopicSaleReturned, sale)
	return sale, err
}

// Void flags a sale as voided. Amounts and stock are left untouched.
func (s *Service) Void(ctx context.Context, id uuid.UUID) (Sale, error) {
	start := time.Now()
	sale, err := s.setVoided(ctx, id, true)
	s.finish(ctx, "void", start, err, events.TopicSaleVoided, sale)
	return sale, err
}

// Unvoid clears the voided flag.
func (s *Service) Unvoid(ctx context.Context, id uuid.UUID) (Sale, error) {
	start := time.Now()
	sale, err := s.setVoided(ctx, id, false)
	s.finish(ctx, "unvoid", start, err, events.TopicSaleUnvoided, sale)
	return sale, err
}

// Get returns a sale with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	if err := s.ready(); err != nil {
		return Sale{}, err
	}
	sale, err := s.Store.GetSale(ctx, id)
	if err != nil {
		return Sale{}, storeError("load sale", err)
	}
	return sale, nil
}

// List returns sales in the filter window, newest first, and the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, 0, common.InvalidRequest("from must be before to", nil)
	}
	sales, total, err := s.Store.ListSales(ctx, filter)
	if err != nil {
		return nil, 0, storeError("list sales", err)
	}
	return sales, total, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (Sale, error) {
	if err := s.ready(); err != nil {
		return Sale{}, err
	}
	if in.PaymentMethodID == uuid.Nil {
		return Sale{}, common.InvalidRequest("payment method is required", nil)
	}
	if err := validateLines(in.Items); err != nil {
		return Sale{}, err
	}
	alloc, err := pricing.Compute(pricingItems(in.Items), in.OrderDiscount)
	if err != nil {
		return Sale{}, common.InvalidRequest("invalid cart", err)
	}

	now := s.now()
	sale := s.assemble(PrefixSale, now, in.Items, in.OrderDiscount, alloc)
	sale.PaymentMethodID = in.PaymentMethodID
	sale.Note = strings.TrimSpace(in.Note)

	sale.AmountTendered = sale.Total
	if in.AmountTendered != nil {
		tendered := money.Round2(*in.AmountTendered)
		if tendered.LessThan(sale.Total) {
			return Sale{}, common.InvalidRequest("amount tendered is less than total", nil).
				WithDetails(map[string]string{"total": sale.Total.StringFixed(2), "amount_tendered": tendered.StringFixed(2)})
		}
		sale.AmountTendered = tendered
	}
	sale.Change = sale.AmountTendered.Sub(sale.Total)

	err = s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := requirePaymentMethod(ctx, tx, sale.PaymentMethodID); err != nil {
			return err
		}
		if err := s.moveStock(ctx, tx, sale.Items, -1); err != nil {
			return err
		}
		return insertSale(ctx, tx, sale)
	})
	if err != nil {
		return Sale{}, storeError("create sale", err)
	}
	return sale, nil
}

func (s *Service) createReturn(ctx context.Context, in ReturnInput) (Sale, error) {
	if err := s.ready(); err != nil {
		return Sale{}, err
	}
	if in.PaymentMethodID == uuid.Nil {
		return Sale{}, common.InvalidRequest("payment method is required", nil)
	}
	if in.OriginalSaleID != nil && *in.OriginalSaleID == uuid.Nil {
		in.OriginalSaleID = nil
	}
	if err := validateLines(in.Items); err != nil {
		return Sale{}, err
	}
	alloc, err := pricing.Compute(pricingItems(in.Items), in.OrderDiscount)
	if err != nil {
		return Sale{}, common.InvalidRequest("invalid cart", err)
	}

	now := s.now()
	sale := s.assemble(PrefixReturn, now, in.Items, in.OrderDiscount, alloc)
	sale.PaymentMethodID = in.PaymentMethodID
	sale.Note = strings.TrimSpace(in.Note)
	sale.IsReturn = true
	sale.OriginalSaleID = in.OriginalSaleID
	negate(&sale)

	err = s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := requirePaymentMethod(ctx, tx, sale.PaymentMethodID); err != nil {
			return err
		}
		if sale.OriginalSaleID != nil {
			original, err := tx.LockSale(ctx, *sale.OriginalSaleID)
			if err != nil {
				return storeError("load original sale", err)
			}
			if original.Voided {
				return common.Conflict("original sale is voided", nil)
			}
			if original.IsReturn {
				return common.InvalidRequest("cannot return against a return", nil)
			}
		}
		if err := s.moveStock(ctx, tx, sale.Items, 1); err != nil {
			return err
		}
		return insertSale(ctx, tx, sale)
	})
	if err != nil {
		return Sale{}, storeError("create return", err)
	}
	return sale, nil
}

func (s *Service) setVoided(ctx context.Context, id uuid.UUID, voided bool) (Sale, error) {
	if err := s.ready(); err != nil {
		return Sale{}, err
	}
	if id == uuid.Nil {
		return Sale{}, common.InvalidRequest("sale id is required", nil)
	}
	var out Sale
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockSale(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case voided && current.Voided:
			return common.Conflict("sale is already voided", nil).
				WithDetails(map[string]any{"voided_at": current.VoidedAt})
		case !voided && !current.Voided:
			return common.Conflict("sale is not voided", nil)
		}
		var at *time.Time
		if voided {
			ts := s.now()
			at = &ts
		}
		if err := tx.SetVoided(ctx, id, at); err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		current.Voided = voided
		current.VoidedAt = at
		current.Items = items
		out = current
		return nil
	})
	if err != nil {
		return Sale{}, storeError("update void flag", err)
	}
	return out, nil
}

// assemble turns an allocation into a sale rounded for persistence. Tax and
// total are rounded independently and subtotal is derived from them, so
// total == subtotal + tax holds exactly on the stored row.
func (s *Service) assemble(prefix string, now time.Time, lines []LineRequest, order money.Discount, alloc pricing.Allocation) Sale {
	gen := s.NewNumber
	if gen == nil {
		gen = NewNumber
	}
	sale := Sale{
		ID:        uuid.New(),
		Number:    gen(prefix, now),
		CreatedAt: now,
		Discount: Discount{
			Kind:   discountKind(order.Kind),
			Value:  order.Value,
			Amount: money.Round2(alloc.Summary.Discount),
		},
		Tax:   money.Round2(alloc.Summary.Tax),
		Total: money.Round2(alloc.Summary.Total),
	}
	sale.Subtotal = sale.Total.Sub(sale.Tax)

	sale.Items = make([]Item, len(lines))
	for i, ln := range lines {
		res := alloc.Lines[i]
		rate := decimal.Zero
		if ln.Taxable {
			rate = ln.TaxRate
		}
		sale.Items[i] = Item{
			ID:          uuid.New(),
			SaleID:      sale.ID,
			ProductID:   ln.ProductID,
			ProductName: strings.TrimSpace(ln.ProductName),
			Barcode:     strings.TrimSpace(ln.Barcode),
			Quantity:    ln.Quantity,
			UnitPrice:   ln.UnitPrice,
			Discount: Discount{
				Kind:   discountKind(ln.Discount.Kind),
				Value:  ln.Discount.Value,
				Amount: money.Round2(res.DiscountAmount),
			},
			Taxable:   ln.Taxable,
			TaxRate:   rate,
			TaxExempt: ln.TaxExempt,
			LineTotal: money.Round2(res.Discounted),
			NetTotal:  money.Round2(res.Net),
			Tax:       money.Round2(res.Tax),
		}
	}
	return sale
}

// negate flips a forward sale into its return mirror. Discount amounts stay
// positive magnitudes.
func negate(sale *Sale) {
	sale.Subtotal = sale.Subtotal.Neg()
	sale.Tax = sale.Tax.Neg()
	sale.Total = sale.Total.Neg()
	sale.AmountTendered = sale.Total
	sale.Change = decimal.Zero
	for i := range sale.Items {
		it := &sale.Items[i]
		it.Quantity = -it.Quantity
		it.LineTotal = it.LineTotal.Neg()
		it.NetTotal = it.NetTotal.Neg()
		it.Tax = it.Tax.Neg()
	}
}

// moveStock locks every referenced product in a stable order, applies
// sign*|quantity| per product and fills missing name/barcode snapshots.
func (s *Service) moveStock(ctx context.Context, tx Tx, items []Item, sign int64) error {
	deltas := make(map[uuid.UUID]int64, len(items))
	for _, it := range items {
		qty := it.Quantity
		if qty < 0 {
			qty = -qty
		}
		deltas[it.ProductID] += sign * qty
	}
	ids := make([]uuid.UUID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })

	products := make(map[uuid.UUID]Product, len(ids))
	for _, id := range ids {
		p, err := tx.LockProduct(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return common.NotFound("product not found", err).WithDetails(map[string]string{"product_id": id.String()})
			}
			return err
		}
		next := p.Stock + deltas[id]
		if s.StrictStock && next < 0 {
			return common.Conflict("insufficient stock", nil).WithDetails(map[string]any{
				"product_id": id.String(),
				"available":  p.Stock,
				"requested":  -deltas[id],
			})
		}
		if err := tx.SetProductStock(ctx, id, next); err != nil {
			return err
		}
		products[id] = p
	}

	for i := range items {
		p := products[items[i].ProductID]
		if items[i].ProductName == "" {
			items[i].ProductName = p.Name
		}
		if items[i].Barcode == "" {
			items[i].Barcode = p.Barcode
		}
	}
	return nil
}

func requirePaymentMethod(ctx context.Context, tx Tx, id uuid.UUID) error {
	ok, err := tx.PaymentMethodExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return common.NotFound("payment method not found", nil).WithDetails(map[string]string{"payment_method_id": id.String()})
	}
	return nil
}

func insertSale(ctx context.Context, tx Tx, sale Sale) error {
	if err := tx.InsertSale(ctx, sale); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	if err := tx.InsertItems(ctx, sale.Items); err != nil {
		return fmt.Errorf("insert sale items: %w", err)
	}
	return nil
}

func pricingItems(lines []LineRequest) []pricing.Item {
	items := make([]pricing.Item, len(lines))
	for i, ln := range lines {
		items[i] = pricing.Item{
			Qty:       ln.Quantity,
			UnitPrice: ln.UnitPrice,
			Discount:  ln.Discount,
			Taxable:   ln.Taxable,
			TaxRate:   ln.TaxRate,
			TaxExempt: ln.TaxExempt,
		}
	}
	return items
}

func validateLines(lines []LineRequest) error {
	for i, ln := range lines {
		if ln.ProductID == uuid.Nil {
			return common.InvalidRequest(fmt.Sprintf("line %d: product id is required", i), nil)
		}
	}
	return nil
}

func discountKind(kind money.DiscountKind) money.DiscountKind {
	if kind == "" {
		return money.DiscountNone
	}
	return kind
}

// storeError keeps AppErrors as they are and classifies everything else.
func storeError(op string, err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return common.NotFound("sale not found", err)
	}
	return common.Persistence(op+" failed", err)
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return common.NewAppError(common.CodeInternal, "sale store not configured", http.StatusInternalServerError, nil)
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// finish records metrics and, on success, emits the domain event. Event
// delivery problems are logged and never fail the committed operation.
func (s *Service) finish(ctx context.Context, kind string, start time.Time, err error, topic string, sale Sale) {
	result := "ok"
	if err != nil {
		result = common.KindOf(err)
	}
	obs.ObserveSaleTransition(kind, result, obs.DurationMillis(time.Since(start)))

	log := s.logger()
	if err != nil {
		evt := log.Warn()
		if result == common.CodePersistenceFailure || result == common.CodeInternal {
			evt = log.Error()
		}
		evt.Err(err).Str("op", kind).Str("code", result).Msg("sale operation failed")
		return
	}
	if s.Bus == nil {
		return
	}
	payload := map[string]any{
		"sale_number":  sale.Number,
		"total_amount": sale.Total.StringFixed(2),
		"tax_amount":   sale.Tax.StringFixed(2),
		"is_return":    sale.IsReturn,
		"is_voided":    sale.Voided,
	}
	if _, emitErr := s.Bus.Emit(ctx, topic, sale.ID, payload); emitErr != nil {
		log.Warn().Err(emitErr).Str("topic", topic).Str("sale_id", sale.ID.String()).Msg("emit domain event")
	}
}
