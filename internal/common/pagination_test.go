package common

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	page, perPage := ParsePagination(httptest.NewRequest("GET", "/sales", nil), 50)
	require.Equal(t, 1, page)
	require.Equal(t, 50, perPage)

	page, perPage = ParsePagination(httptest.NewRequest("GET", "/sales?page=3&limit=20", nil), 50)
	require.Equal(t, 3, page)
	require.Equal(t, 20, perPage)
	require.Equal(t, 40, Pagination{Page: page, PerPage: perPage}.Offset())

	_, perPage = ParsePagination(httptest.NewRequest("GET", "/sales?page=-1&limit=5000", nil), 50)
	require.Equal(t, maxPerPage, perPage)
}

func TestAtoiDefault(t *testing.T) {
	require.Equal(t, 7, AtoiDefault("", 7))
	require.Equal(t, 7, AtoiDefault("x", 7))
	require.Equal(t, 12, AtoiDefault(" 12 ", 7))
}
