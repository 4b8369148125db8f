package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vivero/backend/internal/domain"
	"vivero/backend/internal/store"
)

func TestCartOperationsPerRegister(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	view, err := svc.AddToCart(ctx, "reg-1", "PLT-POTUS", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), view.Total)

	view, err = svc.AddToCart(ctx, "reg-1", "PLT-ROMERO", 1)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "PLT-POTUS", view.Items[0].ProductID)
	assert.Equal(t, "Potus en maceta 14", view.Items[0].Name)

	view, err = svc.SetCartDiscount(ctx, "reg-1", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(65000), view.Subtotal)
	assert.Equal(t, int64(60000), view.Total)

	view, err = svc.SetCartQuantity(ctx, "reg-1", "PLT-POTUS", 0)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	other, err := svc.ViewCart(ctx, "reg-2")
	require.NoError(t, err)
	assert.Empty(t, other.Items)

	view, err = svc.RemoveFromCart(ctx, "reg-1", "PLT-ROMERO")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, int64(-5000), view.Total)

	view, err = svc.ClearCart(ctx, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.Discount)
}

func TestAddToCartRejectsUnknownAndOverStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, "reg-1", "PLT-NOPE", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.AddToCart(ctx, "reg-1", "PLT-ORQUIDEA", 13)
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 12, stockErr.Available)

	_, err = svc.AddToCart(ctx, "", "PLT-ORQUIDEA", 1)
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}

func TestCheckoutClearsCartOnlyOnSuccess(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, "reg-1", "PLT-HELECHO", 2)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, CheckoutInput{RegisterID: "reg-1", CashierID: "ana", AmountTendered: 70000})
	require.ErrorIs(t, err, domain.ErrNoOpenSession)

	_, err = svc.OpenSession(ctx, "ana", "reg-1", 10000)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, CheckoutInput{RegisterID: "reg-1", CashierID: "ana", AmountTendered: 1000})
	var payErr *domain.InsufficientPaymentError
	require.ErrorAs(t, err, &payErr)

	view, err := svc.ViewCart(ctx, "reg-1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	sale, err := svc.Checkout(ctx, CheckoutInput{RegisterID: "reg-1", CashierID: "ana", AmountTendered: 100000, PaymentMethod: "cash"})
	require.NoError(t, err)
	assert.Equal(t, int64(70000), sale.Total)
	assert.Equal(t, int64(30000), sale.ChangeDue)
	assert.Equal(t, "reg-1", sale.RegisterID)
	require.Len(t, sale.Lines, 1)

	view, err = svc.ViewCart(ctx, "reg-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	got, err := svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.SaleNumber, got.SaleNumber)
}
