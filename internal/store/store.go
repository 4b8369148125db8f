package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vivero/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrConflict           = errors.New("conflict")
)

// TransientError marks a storage failure caused by contention with another
// transaction. The operation may succeed if repeated.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient storage error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// ProductCatalog is the narrow view of inventory a sale commit needs. SQL
// stores hand out a transaction-bound implementation inside CommitSale.
type ProductCatalog interface {
	GetPrice(ctx context.Context, productID string) (int64, error)
	GetStock(ctx context.Context, productID string) (int, error)
	DecrementStock(ctx context.Context, productID string, qty int) error
}

// CloseCheck inspects a session whose closing figures are computed but not
// yet written. It may annotate the session; an error aborts the close.
type CloseCheck func(session *domain.CashSession) error

type SessionStore interface {
	// OpenSession inserts session unless its cashier already has one open,
	// in which case the open one is returned with created=false.
	OpenSession(ctx context.Context, session domain.CashSession) (saved *domain.CashSession, created bool, err error)
	GetSession(ctx context.Context, id string) (*domain.CashSession, error)
	GetOpenSessionByCashier(ctx context.Context, cashierID string) (*domain.CashSession, error)
	CloseSession(ctx context.Context, id string, declared int64, notes string, closedAt time.Time, check CloseCheck) (*domain.CashSession, int, error)
}

type SaleStore interface {
	// CommitSale persists sale and its lines and decrements stock in one
	// transaction. Line names and unit prices are taken as given.
	CommitSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSalesBySession(ctx context.Context, sessionID string) ([]domain.Sale, error)
	ListSalesBetween(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error)
}

type Repository interface {
	ProductCatalog
	SessionStore
	SaleStore
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// ApplyClosing fills the closing figures of session: expected is the opening
// float plus totalSales and variance is declared minus expected.
func ApplyClosing(session *domain.CashSession, declared int64, totalSales int64, notes string, closedAt time.Time) {
	expected := session.OpeningFloat + totalSales
	variance := declared - expected
	session.ClosedAt = &closedAt
	session.DeclaredClosingFloat = &declared
	session.TotalSales = &totalSales
	session.ExpectedClosingFloat = &expected
	session.Variance = &variance
	session.Notes = notes
	session.Status = domain.SessionStatusClosed
}
