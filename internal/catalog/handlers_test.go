package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/catalog"
)

type stubReader struct {
	products map[int64]catalog.Product
}

func (s stubReader) ProductsByID(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := make(map[int64]catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s stubReader) Product(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (s stubReader) List(_ context.Context, limit, offset int) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s stubReader) Count(context.Context) (int64, error) {
	return int64(len(s.products)), nil
}

func newTestHandler(t *testing.T, products map[int64]catalog.Product) *catalog.Handler {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{Repo: stubReader{products: products}})
	require.NoError(t, err)
	return &catalog.Handler{Svc: svc}
}

func TestProductDetail(t *testing.T) {
	handler := newTestHandler(t, map[int64]catalog.Product{
		7: {ID: 7, Name: "Kopi Gayo 250g", BasePrice: decimal.NewFromInt(100)},
	})

	router := chi.NewRouter()
	router.Get("/products/{productID}", handler.ProductDetail)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/7", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Kopi Gayo 250g")
}

func TestProductDetailNotFound(t *testing.T) {
	handler := newTestHandler(t, nil)

	router := chi.NewRouter()
	router.Get("/products/{productID}", handler.ProductDetail)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/99", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "PRODUCT_NOT_FOUND")
}

func TestProductDetailInvalidID(t *testing.T) {
	handler := newTestHandler(t, nil)

	router := chi.NewRouter()
	router.Get("/products/{productID}", handler.ProductDetail)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/abc", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
