package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"vivero/backend/internal/domain"
	"vivero/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	sessionsByID    map[string]domain.CashSession
	openByCashier   map[string]string
	salesByID       map[string]*domain.Sale
	saleNumbers     map[string]string
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		sessionsByID:    make(map[string]domain.CashSession),
		openByCashier:   make(map[string]string),
		salesByID:       make(map[string]*domain.Sale),
		saleNumbers:     make(map[string]string),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func NewSeeded() *Store {
	s := New()
	for _, p := range store.DemoProducts() {
		s.products[p.ID] = p
	}
	users, err := store.DemoUsers()
	if err != nil {
		log.Fatal().Err(err).Msg("memory store: seed users")
	}
	for _, u := range users {
		s.usersByUsername[u.Username] = u
	}
	return s
}

// PutProduct inserts or replaces a catalog entry.
func (s *Store) PutProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetPrice(ctx context.Context, productID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lockedCatalog{s}.GetPrice(ctx, productID)
}

func (s *Store) GetStock(ctx context.Context, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lockedCatalog{s}.GetStock(ctx, productID)
}

func (s *Store) DecrementStock(ctx context.Context, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lockedCatalog{s}.DecrementStock(ctx, productID, qty)
}

// lockedCatalog is the catalog view used while s.mu is already held.
type lockedCatalog struct {
	s *Store
}

func (c lockedCatalog) GetPrice(_ context.Context, productID string) (int64, error) {
	p, ok := c.s.products[productID]
	if !ok {
		return 0, store.ErrNotFound
	}
	return p.UnitPrice, nil
}

func (c lockedCatalog) GetStock(_ context.Context, productID string) (int, error) {
	p, ok := c.s.products[productID]
	if !ok {
		return 0, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	return p.Stock, nil
}

func (c lockedCatalog) DecrementStock(_ context.Context, productID string, qty int) error {
	p, ok := c.s.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	if qty < 1 {
		return store.ErrInvalidTransaction
	}
	if p.Stock < qty {
		return &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	c.s.products[productID] = p
	return nil
}

func (s *Store) OpenSession(_ context.Context, session domain.CashSession) (*domain.CashSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.openByCashier[session.CashierID]; ok {
		existing := cloneSession(s.sessionsByID[id])
		return &existing, false, nil
	}
	if _, exists := s.sessionsByID[session.ID]; exists {
		return nil, false, store.ErrInvalidTransaction
	}

	session.Status = domain.SessionStatusOpen
	s.sessionsByID[session.ID] = session
	s.openByCashier[session.CashierID] = session.ID
	saved := cloneSession(session)
	return &saved, true, nil
}

func (s *Store) GetSession(_ context.Context, id string) (*domain.CashSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSession(session)
	return &out, nil
}

func (s *Store) GetOpenSessionByCashier(_ context.Context, cashierID string) (*domain.CashSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.openByCashier[cashierID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSession(s.sessionsByID[id])
	return &out, nil
}

func (s *Store) CloseSession(_ context.Context, id string, declared int64, notes string, closedAt time.Time, check store.CloseCheck) (*domain.CashSession, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessionsByID[id]
	if !ok {
		return nil, 0, store.ErrNotFound
	}
	if !current.IsOpen() {
		return nil, 0, domain.ErrAlreadyClosed
	}

	var totalSales int64
	count := 0
	for _, sale := range s.salesByID {
		if sale.SessionID == id && sale.Status == domain.SaleStatusCompleted {
			totalSales += sale.Total
			count++
		}
	}

	closed := cloneSession(current)
	store.ApplyClosing(&closed, declared, totalSales, notes, closedAt)
	if check != nil {
		if err := check(&closed); err != nil {
			return nil, 0, err
		}
	}

	s.sessionsByID[id] = closed
	delete(s.openByCashier, closed.CashierID)
	out := cloneSession(closed)
	return &out, count, nil
}

func (s *Store) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessionsByID[sale.SessionID]
	if !ok || !session.IsOpen() {
		return nil, domain.ErrNoOpenSession
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrInvalidTransaction
	}
	if _, taken := s.saleNumbers[sale.SaleNumber]; taken {
		return nil, &store.TransientError{Err: fmt.Errorf("sale number %s: %w", sale.SaleNumber, store.ErrConflict)}
	}

	// Stock is checked for every line before the first decrement, so a
	// failure here leaves the catalog untouched.
	if err := store.ReserveStock(ctx, lockedCatalog{s}, sale.Lines); err != nil {
		return nil, err
	}

	saved := cloneSale(&sale)
	s.salesByID[saved.ID] = saved
	s.saleNumbers[saved.SaleNumber] = saved.ID
	return cloneSale(saved), nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSalesBySession(_ context.Context, sessionID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0)
	for _, sale := range s.salesByID {
		if sale.SessionID == sessionID {
			result = append(result, *cloneSale(sale))
		}
	}
	sortSales(result)
	return result, nil
}

func (s *Store) ListSalesBetween(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0)
	for _, sale := range s.salesByID {
		if sale.CommittedAt.Before(from) || !sale.CommittedAt.Before(to) {
			continue
		}
		result = append(result, *cloneSale(sale))
	}
	sortSales(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("username already exists")
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func sortSales(sales []domain.Sale) {
	sort.Slice(sales, func(i, j int) bool {
		if sales[i].CommittedAt.Equal(sales[j].CommittedAt) {
			return sales[i].SaleNumber < sales[j].SaleNumber
		}
		return sales[i].CommittedAt.Before(sales[j].CommittedAt)
	})
}

func cloneSession(src domain.CashSession) domain.CashSession {
	out := src
	if src.ClosedAt != nil {
		t := *src.ClosedAt
		out.ClosedAt = &t
	}
	out.DeclaredClosingFloat = cloneInt64(src.DeclaredClosingFloat)
	out.ExpectedClosingFloat = cloneInt64(src.ExpectedClosingFloat)
	out.TotalSales = cloneInt64(src.TotalSales)
	out.Variance = cloneInt64(src.Variance)
	return out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	out := *src
	out.Lines = append([]domain.SaleLine(nil), src.Lines...)
	return &out
}
