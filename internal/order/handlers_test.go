package order

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	orders map[uuid.UUID]Order
	byCust map[int64][]Order
}

func (s *stubStore) Get(_ context.Context, id uuid.UUID) (Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *stubStore) ListByCustomer(_ context.Context, customerID int64, limit, offset int) ([]Order, error) {
	all := s.byCust[customerID]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *stubStore) CountByCustomer(_ context.Context, customerID int64) (int64, error) {
	return int64(len(s.byCust[customerID])), nil
}

func newRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/orders", h.List)
	r.Get("/orders/{orderID}", h.Get)
	return r
}

func TestGetOrder(t *testing.T) {
	id := uuid.New()
	store := &stubStore{orders: map[uuid.UUID]Order{id: {
		ID:         id,
		CustomerID: 42,
		Status:     StatusCommitted,
		TotalPrice: decimal.NewFromInt(85),
	}}}
	router := newRouter(&Handler{Store: store})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), id.String())
	require.Contains(t, rec.Body.String(), StatusCommitted)
}

func TestGetOrderNotFound(t *testing.T) {
	router := newRouter(&Handler{Store: &stubStore{orders: map[uuid.UUID]Order{}}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "ORDER_NOT_FOUND")
}

func TestGetOrderInvalidID(t *testing.T) {
	router := newRouter(&Handler{Store: &stubStore{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrdersRequiresCustomer(t *testing.T) {
	router := newRouter(&Handler{Store: &stubStore{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrders(t *testing.T) {
	store := &stubStore{byCust: map[int64][]Order{42: {
		{ID: uuid.New(), CustomerID: 42, Status: StatusSettled},
		{ID: uuid.New(), CustomerID: 42, Status: StatusCommitted},
	}}}
	router := newRouter(&Handler{Store: store})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?customerId=42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-Total-Count"))
}
