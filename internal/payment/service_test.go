package payment_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-engine/internal/common"
	"github.com/noah-isme/pos-engine/internal/payment"
)

type stubQueries struct {
	activeOnly bool
	methods    []payment.Method
	err        error
}

func (s *stubQueries) ListPaymentMethods(_ context.Context, activeOnly bool) ([]payment.Method, error) {
	s.activeOnly = activeOnly
	return s.methods, s.err
}

func TestListDefaultsToActive(t *testing.T) {
	q := &stubQueries{methods: []payment.Method{{ID: uuid.New(), Code: "CASH", Name: "Cash", Active: true}}}
	h := &payment.Handler{Svc: &payment.Service{Q: q}}

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/payment-methods", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, q.activeOnly)
	require.Contains(t, rr.Body.String(), `"code":"CASH"`)

	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/payment-methods?all=true", nil))
	require.False(t, q.activeOnly)
}

func TestListStoreFailure(t *testing.T) {
	svc := &payment.Service{Q: &stubQueries{err: errors.New("timeout")}}
	_, err := svc.List(context.Background(), true)
	require.Equal(t, common.CodePersistenceFailure, common.KindOf(err))

	var unset *payment.Service
	_, err = unset.List(context.Background(), true)
	require.Equal(t, common.CodeInternal, common.KindOf(err))
}
