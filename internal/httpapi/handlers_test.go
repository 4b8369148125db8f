package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vivero/backend/internal/domain"
	"vivero/backend/internal/metrics"
	"vivero/backend/internal/service"
	"vivero/backend/internal/store"
	"vivero/backend/internal/store/memory"
)

// newTestAPI builds a full API over the seeded in-memory store, a real
// AuthManager and a real Service with a fast retry policy.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	return newTestAPIWith(t, memory.NewSeeded())
}

func newTestAPIWith(t *testing.T, repo store.Repository) *API {
	t.Helper()
	svc := service.New(repo, service.WithRetryPolicy(service.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", repo)
	return New(svc, auth, metrics.New(), "*")
}

// contendedStore reports every sale write as lock contention.
type contendedStore struct {
	*memory.Store
}

func (contendedStore) CommitSale(context.Context, domain.Sale) (*domain.Sale, error) {
	return nil, &store.TransientError{Err: errors.New("database is locked")}
}

// brokenStore fails every sale write with a non-transient error.
type brokenStore struct {
	*memory.Store
}

func (brokenStore) CommitSale(context.Context, domain.Sale) (*domain.Sale, error) {
	return nil, errors.New("sales table is read-only")
}

func TestHealthIsOpenAndProductsNeedToken(t *testing.T) {
	api := newTestAPI(t)

	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, res.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])

	res = httptest.NewRecorder()
	api.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	cashier := newClient(t, api, "cajero", "cashier123")
	var listed struct {
		Products []domain.Product `json:"products"`
	}
	require.Equal(t, http.StatusOK, cashier.do(http.MethodGet, "/api/v1/products", nil, &listed))
	assert.NotEmpty(t, listed.Products)
}

func TestOpenSessionTwiceReturnsSameSession(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cajero", "cashier123")

	var first, second, active struct {
		Session domain.CashSession `json:"session"`
	}
	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/sessions/open", domain.SessionOpenRequest{RegisterID: "reg-1", OpeningFloat: 50000}, &first))
	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/sessions/open", domain.SessionOpenRequest{RegisterID: "reg-2", OpeningFloat: 999}, &second))
	assert.Equal(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, int64(50000), second.Session.OpeningFloat)

	require.Equal(t, http.StatusOK, cashier.do(http.MethodGet, "/api/v1/sessions/active", nil, &active))
	assert.Equal(t, first.Session.ID, active.Session.ID)

	assert.Equal(t, http.StatusBadRequest, cashier.do(http.MethodPost, "/api/v1/sessions/open", map[string]any{"register_id": "reg-3", "opening_float": -1}, nil))
}

func TestCloseSessionOwnershipAndCriticalVarianceNotes(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cajero", "cashier123")
	admin := newClient(t, api, "admin", "admin123")

	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/v1/users/cashiers", domain.CashierCreateRequest{Username: "cajera2", DisplayName: "Lucía", Password: "cashier456"}, nil))
	other := newClient(t, api, "cajera2", "cashier456")

	var opened struct {
		Session domain.CashSession `json:"session"`
	}
	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/sessions/open", domain.SessionOpenRequest{RegisterID: "reg-1", OpeningFloat: 100000}, &opened))

	closeReq := domain.SessionCloseRequest{SessionID: opened.Session.ID, DeclaredFloat: 50000}
	assert.Equal(t, http.StatusForbidden, other.do(http.MethodPost, "/api/v1/sessions/close", closeReq, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, cashier.do(http.MethodPost, "/api/v1/sessions/close", closeReq, nil))

	var still struct {
		Session domain.CashSession `json:"session"`
	}
	require.Equal(t, http.StatusOK, cashier.do(http.MethodGet, "/api/v1/sessions/active", nil, &still))
	assert.Equal(t, domain.SessionStatusOpen, still.Session.Status)

	closeReq.Notes = "faltante entregado a gerencia"
	var report domain.ClosingReport
	require.Equal(t, http.StatusOK, admin.do(http.MethodPost, "/api/v1/sessions/close", closeReq, &report))
	assert.Equal(t, domain.VarianceCritical, report.VarianceClass)
	assert.Equal(t, int64(-50000), report.Variance)
}

func TestCartItemPatchAndDelete(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cajero", "cashier123")

	var view domain.CartView
	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/cart/items", domain.CartAddRequest{RegisterID: "reg-1", ProductID: "PLT-ORQUIDEA", Quantity: 2}, &view))
	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/cart/items", domain.CartAddRequest{RegisterID: "reg-1", ProductID: "PLT-LAVANDA", Quantity: 1}, &view))

	// PLT-ORQUIDEA has 12 in stock.
	assert.Equal(t, http.StatusConflict, cashier.do(http.MethodPatch, "/api/v1/cart/items/PLT-ORQUIDEA", domain.CartQuantityRequest{RegisterID: "reg-1", Quantity: 13}, nil))
	assert.Equal(t, http.StatusConflict, cashier.do(http.MethodPost, "/api/v1/cart/items", domain.CartAddRequest{RegisterID: "reg-1", ProductID: "PLT-ORQUIDEA", Quantity: 11}, nil))
	assert.Equal(t, http.StatusBadRequest, cashier.do(http.MethodPost, "/api/v1/cart/items", domain.CartAddRequest{RegisterID: "reg-1", ProductID: "PLT-ORQUIDEA", Quantity: 1 << 40}, nil))
	assert.Equal(t, http.StatusBadRequest, cashier.do(http.MethodPatch, "/api/v1/cart/items/PLT-ORQUIDEA", domain.CartQuantityRequest{RegisterID: "reg-1", Quantity: 1 << 40}, nil))

	require.Equal(t, http.StatusOK, cashier.do(http.MethodPatch, "/api/v1/cart/items/PLT-ORQUIDEA", domain.CartQuantityRequest{RegisterID: "reg-1", Quantity: 3}, &view))
	require.Len(t, view.Items, 2)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, int64(3*120000+22000), view.Total)

	require.Equal(t, http.StatusOK, cashier.do(http.MethodPatch, "/api/v1/cart/items/PLT-LAVANDA", domain.CartQuantityRequest{RegisterID: "reg-1", Quantity: 0}, &view))
	require.Len(t, view.Items, 1)

	assert.Equal(t, http.StatusBadRequest, cashier.do(http.MethodDelete, "/api/v1/cart/items/PLT-ORQUIDEA", nil, nil))
	require.Equal(t, http.StatusOK, cashier.do(http.MethodDelete, "/api/v1/cart/items/PLT-ORQUIDEA?register_id=reg-1", nil, &view))
	assert.Empty(t, view.Items)
	assert.Zero(t, view.Total)

	// Carts are per register.
	require.Equal(t, http.StatusOK, cashier.do(http.MethodGet, "/api/v1/cart?register_id=reg-2", nil, &view))
	assert.Empty(t, view.Items)
}

func TestCheckoutFailsWhenStockSoldElsewhere(t *testing.T) {
	repo := memory.NewSeeded()
	api := newTestAPIWith(t, repo)
	cashier := newClient(t, api, "cajero", "cashier123")

	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/sessions/open", domain.SessionOpenRequest{RegisterID: "reg-1"}, nil))
	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/cart/items", domain.CartAddRequest{RegisterID: "reg-1", ProductID: "PLT-ORQUIDEA", Quantity: 2}, nil))
	require.NoError(t, repo.DecrementStock(context.Background(), "PLT-ORQUIDEA", 11))

	assert.Equal(t, http.StatusConflict, cashier.do(http.MethodPost, "/api/v1/checkout", domain.CheckoutRequest{RegisterID: "reg-1", AmountTendered: 240000}, nil))

	var view domain.CartView
	require.Equal(t, http.StatusOK, cashier.do(http.MethodGet, "/api/v1/cart?register_id=reg-1", nil, &view))
	assert.Len(t, view.Items, 1)
	stock, err := repo.GetStock(context.Background(), "PLT-ORQUIDEA")
	require.NoError(t, err)
	assert.Equal(t, 1, stock)
}

func TestCheckoutStorageFailuresAreRetryable(t *testing.T) {
	cases := []struct {
		name       string
		repo       store.Repository
		status     int
		retryAfter string
	}{
		{name: "contention exhausts retries", repo: contendedStore{memory.NewSeeded()}, status: http.StatusServiceUnavailable, retryAfter: "5"},
		{name: "permanent write failure", repo: brokenStore{memory.NewSeeded()}, status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPIWith(t, tc.repo)
			cashier := newClient(t, api, "cajero", "cashier123")
			require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/sessions/open", domain.SessionOpenRequest{RegisterID: "reg-1"}, nil))
			require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/cart/items", domain.CartAddRequest{RegisterID: "reg-1", ProductID: "PLT-ROMERO", Quantity: 1}, nil))

			res := cashier.raw(http.MethodPost, "/api/v1/checkout", domain.CheckoutRequest{RegisterID: "reg-1", AmountTendered: 15000})
			require.Equal(t, tc.status, res.Code)
			assert.Equal(t, tc.retryAfter, res.Header().Get("Retry-After"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
			assert.Equal(t, true, body["retryable"])
			assert.Contains(t, body["error"], "could not complete the sale")

			var view domain.CartView
			require.Equal(t, http.StatusOK, cashier.do(http.MethodGet, "/api/v1/cart?register_id=reg-1", nil, &view))
			assert.Len(t, view.Items, 1)
		})
	}
}
