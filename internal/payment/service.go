// Package payment exposes the tender types a sale can be settled with.
package payment

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/pos-engine/internal/common"
)

// Method is a tender type such as cash or card.
type Method struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Name   string    `json:"name"`
	Active bool      `json:"is_active"`
}

// Querier lists stored payment methods.
type Querier interface {
	ListPaymentMethods(ctx context.Context, activeOnly bool) ([]Method, error)
}

// Service provides read access to payment methods.
type Service struct {
	Q Querier
}

// List returns payment methods ordered by name.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Method, error) {
	if s == nil || s.Q == nil {
		return nil, common.NewAppError(common.CodeInternal, "payment service not configured", http.StatusInternalServerError, nil)
	}
	methods, err := s.Q.ListPaymentMethods(ctx, activeOnly)
	if err != nil {
		return nil, common.Persistence("list payment methods failed", err)
	}
	return methods, nil
}
