// Package reconcile recomputes the tax that should have been collected on
// stored sales and compares it with what was recorded. It only reads.
package reconcile

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/noah-isme/pos-engine/internal/common"
	"github.com/noah-isme/pos-engine/internal/obs"
)

// Range selects sales created in [From, To).
type Range struct {
	From          time.Time
	To            time.Time
	IncludeVoided bool
}

// Querier loads the rows the reports are computed from.
type Querier interface {
	// ListTaxableItems returns sale lines with the taxable flag and a
	// positive rate, ordered by sale date descending.
	ListTaxableItems(ctx context.Context, rng Range) ([]ItemRow, error)
	// ListSaleTaxes returns every sale in range with its recorded tax.
	ListSaleTaxes(ctx context.Context, rng Range) ([]SaleRow, error)
}

// Service serves reconciliation reports straight from the store.
type Service struct {
	Q        Querier
	Location *time.Location
}

// Reconcile returns per-item detail and a summary for rng.
func (s *Service) Reconcile(ctx context.Context, rng Range) (Report, error) {
	if err := s.check(rng); err != nil {
		return Report{}, err
	}
	rows, err := s.Q.ListTaxableItems(ctx, rng)
	if err != nil {
		return Report{}, common.Persistence("load taxable items failed", err)
	}
	report := Compute(rows)
	obs.AddTaxExcludedItems(report.Summary.ItemsExcluded)
	return report, nil
}

// Daily returns one row per calendar day with sales in rng.
func (s *Service) Daily(ctx context.Context, rng Range) ([]Day, error) {
	if err := s.check(rng); err != nil {
		return nil, err
	}
	sales, err := s.Q.ListSaleTaxes(ctx, rng)
	if err != nil {
		return nil, common.Persistence("load sale taxes failed", err)
	}
	items, err := s.Q.ListTaxableItems(ctx, rng)
	if err != nil {
		return nil, common.Persistence("load taxable items failed", err)
	}
	return ComputeDaily(sales, items, s.Location), nil
}

func (s *Service) check(rng Range) error {
	if s == nil || s.Q == nil {
		return common.NewAppError(common.CodeInternal, "reconciliation not configured", http.StatusInternalServerError, errors.New("nil querier"))
	}
	if !rng.From.Before(rng.To) {
		return common.InvalidRequest("from must be before to", nil)
	}
	return nil
}
