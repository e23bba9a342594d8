package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-engine/internal/common"
)

func TestParseDateRangeCalendarDates(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?from=2026-03-01&to=2026-03-02", nil)
	rng, err := common.ParseDateRange(req, time.Now(), 30, time.UTC)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), rng.From)
	require.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), rng.To)
}

func TestParseDateRangeDefaults(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	req := httptest.NewRequest(http.MethodGet, "/x?days=7", nil)
	rng, err := common.ParseDateRange(req, now, 30, nil)
	require.NoError(t, err)
	require.Equal(t, now, rng.To)
	require.Equal(t, now.AddDate(0, 0, -7), rng.From)
}

func TestParseDateRangeRejectsInverted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?from=2026-03-05T00:00:00Z&to=2026-03-01T00:00:00Z", nil)
	_, err := common.ParseDateRange(req, time.Now(), 30, time.UTC)
	require.Equal(t, common.CodeInvalidRequest, common.KindOf(err))

	req = httptest.NewRequest(http.MethodGet, "/x?from=yesterday", nil)
	_, err = common.ParseDateRange(req, time.Now(), 30, time.UTC)
	require.Equal(t, common.CodeInvalidRequest, common.KindOf(err))
}
