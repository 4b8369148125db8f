package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vivero/backend/internal/domain"
)

// fetchCSRFToken calls the CSRF token endpoint and returns the token string.
func fetchCSRFToken(t *testing.T, api *API) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, "csrf-token endpoint")

	var payload map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	require.NotEmpty(t, strings.TrimSpace(payload["csrf_token"]))
	return payload["csrf_token"]
}

func loginAs(t *testing.T, api *API, username string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, "%s login: %s", username, res.Body.String())

	var payload domain.LoginResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	require.NotEmpty(t, strings.TrimSpace(payload.AccessToken))
	return payload.AccessToken
}

func TestCheckoutResponseCarriesSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cajero", "cashier123")
	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/sessions/open", domain.SessionOpenRequest{RegisterID: "reg-1"}, nil))
	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/cart/items", domain.CartAddRequest{RegisterID: "reg-1", ProductID: "PLT-CACTUS", Quantity: 1}, nil))

	res := cashier.raw(http.MethodPost, "/api/v1/checkout", domain.CheckoutRequest{RegisterID: "reg-1", AmountTendered: 20000})
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, res.Header().Get("Referrer-Policy"))
	assert.Contains(t, res.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "cajero", Password: "wrong-pass"})

	for i := 1; i <= 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		want := http.StatusUnauthorized
		if i == 6 {
			want = http.StatusTooManyRequests
		}
		require.Equal(t, want, res.Code, "attempt %d", i)
	}
}

func TestOversizedCartBodyRejected(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cajero", "cashier123")
	body := fmt.Sprintf(`{"register_id":"reg-1","product_id":"%s","quantity":1}`, strings.Repeat("P", (1<<20)+1024))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cashier.token)
	req.Header.Set("X-CSRF-Token", cashier.csrf)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCashierDiscountNeedsManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cajero", "cashier123")
	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/cart/items", domain.CartAddRequest{RegisterID: "reg-1", ProductID: "PLT-LAPACHO", Quantity: 2}, nil))

	assert.Equal(t, http.StatusForbidden, cashier.do(http.MethodPost, "/api/v1/cart/discount", domain.CartDiscountRequest{RegisterID: "reg-1", Discount: 5000, ManagerPIN: "654321"}, nil))

	var view domain.CartView
	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/cart/discount", domain.CartDiscountRequest{RegisterID: "reg-1", Discount: 5000, ManagerPIN: "123456"}, &view))
	assert.Equal(t, int64(85000), view.Total)

	admin := newClient(t, api, "admin", "admin123")
	require.Equal(t, http.StatusOK, admin.do(http.MethodPost, "/api/v1/cart/discount", domain.CartDiscountRequest{RegisterID: "reg-1", Discount: 10000}, &view))
	assert.Equal(t, int64(80000), view.Total)
}

func TestManagerPINRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cajero", "cashier123")
	body, _ := json.Marshal(domain.CartDiscountRequest{RegisterID: "reg-1", Discount: 5000, ManagerPIN: "000000"})

	for i := 1; i <= 9; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/discount", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+cashier.token)
		req.Header.Set("X-CSRF-Token", cashier.csrf)
		req.RemoteAddr = "127.0.0.1:5001"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		want := http.StatusForbidden
		if i == 9 {
			want = http.StatusTooManyRequests
		}
		require.Equal(t, want, res.Code, "attempt %d", i)
	}
}

func TestAuditLogLimitIsCapped(t *testing.T) {
	assert.Equal(t, 500, parsePositiveLimit("9999", 100, 500))
	assert.Equal(t, 100, parsePositiveLimit("", 100, 500))
	assert.Equal(t, 100, parsePositiveLimit("-3", 100, 500))
	assert.Equal(t, 100, parsePositiveLimit("diez", 100, 500))
	assert.Equal(t, 20, parsePositiveLimit("20", 100, 500))
}

func TestSessionCloseWithoutCSRFIsRejected(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cajero", "cashier123")
	var opened struct {
		Session domain.CashSession `json:"session"`
	}
	require.Equal(t, http.StatusOK, cashier.do(http.MethodPost, "/api/v1/sessions/open", domain.SessionOpenRequest{RegisterID: "reg-1"}, &opened))

	body, _ := json.Marshal(domain.SessionCloseRequest{SessionID: opened.Session.ID})
	for _, csrf := range []string{"", "forged-token"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/close", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+cashier.token)
		if csrf != "" {
			req.Header.Set("X-CSRF-Token", csrf)
		}
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)
		assert.Equal(t, http.StatusForbidden, res.Code, "csrf %q", csrf)
	}

	var active struct {
		Session domain.CashSession `json:"session"`
	}
	require.Equal(t, http.StatusOK, cashier.do(http.MethodGet, "/api/v1/sessions/active", nil, &active))
	assert.Equal(t, domain.SessionStatusOpen, active.Session.Status)
}

func TestCashierCannotReadAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cajero", "cashier123")

	for _, path := range []string{"/api/v1/audit-logs", "/api/v1/sales/daily", "/api/v1/users/cashiers"} {
		assert.Equal(t, http.StatusForbidden, cashier.do(http.MethodGet, path, nil, nil), path)
	}
}
