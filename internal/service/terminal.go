package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"vivero/backend/internal/cart"
	"vivero/backend/internal/domain"
	"vivero/backend/internal/store"
)

// terminal is the cart of one register. Its mutex serialises operations on
// that register only; registers never wait on each other.
type terminal struct {
	mu   sync.Mutex
	cart *cart.Cart
}

type terminals struct {
	mu    sync.Mutex
	byReg map[string]*terminal
}

func newTerminals() *terminals {
	return &terminals{byReg: make(map[string]*terminal)}
}

func (t *terminals) get(registerID string) *terminal {
	t.mu.Lock()
	defer t.mu.Unlock()
	term, ok := t.byReg[registerID]
	if !ok {
		term = &terminal{cart: cart.New()}
		t.byReg[registerID] = term
	}
	return term
}

func (s *Service) terminal(registerID string) (*terminal, error) {
	registerID = strings.TrimSpace(registerID)
	if registerID == "" {
		return nil, store.ErrInvalidTransaction
	}
	return s.terminals.get(registerID), nil
}

// lookupProduct serves soft stock feedback for the cart from the cache and
// falls back to the catalog, refreshing the cache.
func (s *Service) lookupProduct(ctx context.Context, productID string) (domain.Product, error) {
	if cached, ok, err := s.cache.Get(ctx, productID); err != nil {
		log.Warn().Err(err).Str("product_id", productID).Msg("product cache read failed")
	} else if ok {
		return *cached, nil
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.cache.Set(ctx, *product, s.stockTTL); err != nil {
		log.Warn().Err(err).Str("product_id", productID).Msg("product cache write failed")
	}
	return *product, nil
}

func (s *Service) AddToCart(ctx context.Context, registerID string, productID string, quantity int) (domain.CartView, error) {
	term, err := s.terminal(registerID)
	if err != nil {
		return domain.CartView{}, err
	}
	product, err := s.lookupProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.CartView{}, err
	}
	if !product.Active {
		return domain.CartView{}, store.ErrNotFound
	}

	term.mu.Lock()
	defer term.mu.Unlock()
	if err := term.cart.AddItem(product, quantity); err != nil {
		return domain.CartView{}, err
	}
	return view(registerID, term.cart), nil
}

func (s *Service) RemoveFromCart(_ context.Context, registerID string, productID string) (domain.CartView, error) {
	term, err := s.terminal(registerID)
	if err != nil {
		return domain.CartView{}, err
	}
	term.mu.Lock()
	defer term.mu.Unlock()
	term.cart.RemoveItem(strings.TrimSpace(productID))
	return view(registerID, term.cart), nil
}

func (s *Service) SetCartQuantity(_ context.Context, registerID string, productID string, quantity int) (domain.CartView, error) {
	term, err := s.terminal(registerID)
	if err != nil {
		return domain.CartView{}, err
	}
	term.mu.Lock()
	defer term.mu.Unlock()
	if err := term.cart.SetQuantity(strings.TrimSpace(productID), quantity); err != nil {
		return domain.CartView{}, err
	}
	return view(registerID, term.cart), nil
}

func (s *Service) SetCartDiscount(_ context.Context, registerID string, discount int64) (domain.CartView, error) {
	term, err := s.terminal(registerID)
	if err != nil {
		return domain.CartView{}, err
	}
	term.mu.Lock()
	defer term.mu.Unlock()
	term.cart.SetDiscount(discount)
	return view(registerID, term.cart), nil
}

func (s *Service) ViewCart(_ context.Context, registerID string) (domain.CartView, error) {
	term, err := s.terminal(registerID)
	if err != nil {
		return domain.CartView{}, err
	}
	term.mu.Lock()
	defer term.mu.Unlock()
	return view(registerID, term.cart), nil
}

func (s *Service) ClearCart(_ context.Context, registerID string) (domain.CartView, error) {
	term, err := s.terminal(registerID)
	if err != nil {
		return domain.CartView{}, err
	}
	term.mu.Lock()
	defer term.mu.Unlock()
	term.cart.Clear()
	return view(registerID, term.cart), nil
}

type CheckoutInput struct {
	RegisterID     string
	CashierID      string
	CashierName    string
	CustomerID     string
	AmountTendered int64
	PaymentMethod  string
}

// Checkout commits the register's cart against the cashier's open session.
// The cart is cleared only when the sale is committed; on any error it is
// left as it was so the operator can correct and retry.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (domain.Sale, error) {
	term, err := s.terminal(in.RegisterID)
	if err != nil {
		return domain.Sale{}, err
	}
	session, err := s.repo.GetOpenSessionByCashier(ctx, strings.TrimSpace(in.CashierID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Sale{}, domain.ErrNoOpenSession
		}
		return domain.Sale{}, err
	}

	term.mu.Lock()
	defer term.mu.Unlock()

	sale, err := s.CommitSale(ctx, CommitRequest{
		SessionID:      session.ID,
		Cart:           term.cart.Snapshot(),
		CustomerID:     in.CustomerID,
		AmountTendered: in.AmountTendered,
		PaymentMethod:  in.PaymentMethod,
		CashierName:    in.CashierName,
	})
	if err != nil {
		return domain.Sale{}, err
	}
	term.cart.Clear()
	return sale, nil
}

func view(registerID string, c *cart.Cart) domain.CartView {
	subtotal, discount, total := c.Totals()
	return domain.CartView{
		RegisterID: strings.TrimSpace(registerID),
		Items:      c.Items(),
		Subtotal:   subtotal,
		Discount:   discount,
		Total:      total,
	}
}
