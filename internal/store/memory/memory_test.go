package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"vivero/backend/internal/domain"
	"vivero/backend/internal/store"
)

func newStore() *Store {
	s := New()
	s.PutProduct(domain.Product{ID: "fern", Name: "Helecho", UnitPrice: 1000, Stock: 2, Active: true})
	s.PutProduct(domain.Product{ID: "pot", Name: "Maceta", UnitPrice: 500, Stock: 10, Active: true})
	return s
}

func openSession(t *testing.T, s *Store, cashier string) domain.CashSession {
	t.Helper()
	saved, created, err := s.OpenSession(context.Background(), domain.CashSession{
		ID:           "sess-" + cashier,
		RegisterID:   "reg-1",
		CashierID:    cashier,
		OpenedAt:     time.Now().UTC(),
		OpeningFloat: 1000,
	})
	if err != nil || !created {
		t.Fatalf("open session: created=%v err=%v", created, err)
	}
	return *saved
}

func TestOpenSessionReturnsExistingOpenSession(t *testing.T) {
	s := newStore()
	first := openSession(t, s, "ana")

	again, created, err := s.OpenSession(context.Background(), domain.CashSession{ID: "other", CashierID: "ana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("expected existing session %s, got %s (created=%v)", first.ID, again.ID, created)
	}
}

func TestCommitSaleInsufficientStockLeavesCatalogUntouched(t *testing.T) {
	s := newStore()
	session := openSession(t, s, "ana")

	_, err := s.CommitSale(context.Background(), domain.Sale{
		ID:         "sale-1",
		SaleNumber: "V1",
		SessionID:  session.ID,
		Status:     domain.SaleStatusCompleted,
		Lines: []domain.SaleLine{
			{ProductID: "pot", Quantity: 3, UnitPrice: 500, LineTotal: 1500},
			{ProductID: "fern", Quantity: 3, UnitPrice: 1000, LineTotal: 3000},
		},
	})
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.ProductID != "fern" || stockErr.Available != 2 {
		t.Fatalf("expected insufficient stock for fern, got %v", err)
	}

	if stock, _ := s.GetStock(context.Background(), "pot"); stock != 10 {
		t.Fatalf("expected pot stock untouched, got %d", stock)
	}
	if _, err := s.GetSale(context.Background(), "sale-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no sale written, got %v", err)
	}
}

func TestCommitSaleDuplicateNumberIsTransient(t *testing.T) {
	s := newStore()
	session := openSession(t, s, "ana")
	sale := domain.Sale{
		ID:         "sale-1",
		SaleNumber: "V1",
		SessionID:  session.ID,
		Total:      500,
		Status:     domain.SaleStatusCompleted,
		Lines:      []domain.SaleLine{{ProductID: "pot", Quantity: 1, UnitPrice: 500, LineTotal: 500}},
	}
	if _, err := s.CommitSale(context.Background(), sale); err != nil {
		t.Fatalf("commit: %v", err)
	}

	sale.ID = "sale-2"
	_, err := s.CommitSale(context.Background(), sale)
	if !store.IsTransient(err) || !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected transient conflict, got %v", err)
	}
	if stock, _ := s.GetStock(context.Background(), "pot"); stock != 9 {
		t.Fatalf("expected a single decrement, got stock %d", stock)
	}
}

func TestCloseSessionTwiceReturnsAlreadyClosed(t *testing.T) {
	s := newStore()
	session := openSession(t, s, "ana")

	closed, count, err := s.CloseSession(context.Background(), session.ID, 1000, "", time.Now().UTC(), nil)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if count != 0 || *closed.Variance != 0 || closed.Status != domain.SessionStatusClosed {
		t.Fatalf("unexpected closed session %+v", closed)
	}

	_, _, err = s.CloseSession(context.Background(), session.ID, 5000, "late", time.Now().UTC(), nil)
	if !errors.Is(err, domain.ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}
	after, _ := s.GetSession(context.Background(), session.ID)
	if *after.DeclaredClosingFloat != 1000 || after.Notes != "" {
		t.Fatalf("closed session was mutated: %+v", after)
	}
}

func TestCloseCheckErrorAbortsClose(t *testing.T) {
	s := newStore()
	session := openSession(t, s, "ana")
	boom := errors.New("rejected")

	_, _, err := s.CloseSession(context.Background(), session.ID, 0, "", time.Now().UTC(), func(*domain.CashSession) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected check error, got %v", err)
	}
	if current, _ := s.GetSession(context.Background(), session.ID); !current.IsOpen() {
		t.Fatalf("expected session to stay open")
	}
}
