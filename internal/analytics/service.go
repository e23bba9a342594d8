// Package analytics serves sales reports for the back office. Results are
// cached in Redis for a short TTL; the sale engine and the tax
// reconciliation never read through this cache.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-engine/internal/common"
)

// Filter selects sales created in [From, To).
type Filter struct {
	From          time.Time
	To            time.Time
	IncludeVoided bool
}

// Summary totals every sale in a window. Returns are included with their
// negative amounts, so totals are net of refunds.
type Summary struct {
	SaleCount      int64           `json:"sale_count"`
	ReturnCount    int64           `json:"return_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	AmountTendered decimal.Decimal `json:"amount_tendered"`
	ChangeAmount   decimal.Decimal `json:"change_amount"`
}

// PaymentRow aggregates sales per payment method.
type PaymentRow struct {
	PaymentMethodID uuid.UUID       `json:"payment_method_id"`
	Name            string          `json:"name"`
	SaleCount       int64           `json:"sale_count"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// ProductRow aggregates sold quantity and revenue per product.
type ProductRow struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Barcode     string          `json:"barcode,omitempty"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
	SaleCount   int64           `json:"sale_count"`
}

// DailyRow aggregates sales per calendar day.
type DailyRow struct {
	Date           string          `json:"date"`
	SaleCount      int64           `json:"sale_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// Querier defines the database access required for analytics operations.
type Querier interface {
	SalesSummary(ctx context.Context, f Filter) (Summary, error)
	SalesByPayment(ctx context.Context, f Filter) ([]PaymentRow, error)
	TopProducts(ctx context.Context, f Filter, limit int) ([]ProductRow, error)
	DailySales(ctx context.Context, f Filter, loc *time.Location) ([]DailyRow, error)
	ProductSales(ctx context.Context, f Filter, productID *uuid.UUID) ([]ProductRow, error)
}

// Service provides cached access to sales reports.
type Service struct {
	Q            Querier
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Location     *time.Location
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) location() *time.Location {
	if s != nil && s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case time.Time:
			formatted = append(formatted, v.UTC().Format(time.RFC3339))
		default:
			formatted = append(formatted, fmt.Sprint(part))
		}
	}
	return strings.Join(formatted, ":")
}

func filterKey(report string, f Filter, extra ...any) string {
	parts := append([]any{"pos", "an", report, f.From, f.To, f.IncludeVoided}, extra...)
	return cacheKey(parts...)
}

// SalesSummary returns sale totals for f.
func (s *Service) SalesSummary(ctx context.Context, f Filter) (Summary, error) {
	return cached(ctx, s, filterKey("summary", f), func() (Summary, error) {
		return s.Q.SalesSummary(ctx, f)
	})
}

// SalesByPayment returns totals per payment method for f.
func (s *Service) SalesByPayment(ctx context.Context, f Filter) ([]PaymentRow, error) {
	return cached(ctx, s, filterKey("payment", f), func() ([]PaymentRow, error) {
		return s.Q.SalesByPayment(ctx, f)
	})
}

// TopProducts returns the best sellers by quantity for f.
func (s *Service) TopProducts(ctx context.Context, f Filter, limit int) ([]ProductRow, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return cached(ctx, s, filterKey("top", f, limit), func() ([]ProductRow, error) {
		return s.Q.TopProducts(ctx, f, limit)
	})
}

// DailySales returns per-day totals for f in the service's location.
func (s *Service) DailySales(ctx context.Context, f Filter) ([]DailyRow, error) {
	loc := s.location()
	return cached(ctx, s, filterKey("daily", f, loc.String()), func() ([]DailyRow, error) {
		return s.Q.DailySales(ctx, f, loc)
	})
}

// ProductSales returns per-product totals for f, optionally for one product.
func (s *Service) ProductSales(ctx context.Context, f Filter, productID *uuid.UUID) ([]ProductRow, error) {
	product := "all"
	if productID != nil {
		product = productID.String()
	}
	return cached(ctx, s, filterKey("product", f, product), func() ([]ProductRow, error) {
		return s.Q.ProductSales(ctx, f, productID)
	})
}

func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	var zero T
	if s == nil || s.Q == nil {
		return zero, common.NewAppError("ANALYTICS_NOT_CONFIGURED", "analytics service not configured", http.StatusInternalServerError, nil)
	}
	if v, ok := getCached[T](ctx, s, key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return zero, common.Persistence("load report failed", err)
	}
	s.store(ctx, key, v)
	return v, nil
}

func getCached[T any](ctx context.Context, s *Service, key string) (T, bool) {
	var out T
	if s.R == nil || s.TTL <= 0 {
		return out, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false
	}
	return out, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
