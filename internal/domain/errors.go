package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoOpenSession   = errors.New("no open cash session")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrAlreadyClosed   = errors.New("cash session already closed")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrInvalidAmount   = errors.New("amount must not be negative")
	ErrNegativeTotal   = errors.New("sale total must not be negative")
	ErrPaymentMethod   = errors.New("unsupported payment method")
	ErrNotesRequired   = errors.New("notes are required when the cash variance is critical")
)

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

type InsufficientPaymentError struct {
	Total    int64
	Tendered int64
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: total %d, tendered %d, short by %d", e.Total, e.Tendered, e.Shortfall())
}

func (e *InsufficientPaymentError) Shortfall() int64 {
	return e.Total - e.Tendered
}

// StorageUnavailableError is returned once the commit retry budget is spent
// on lock contention. Err is the last contention error seen.
type StorageUnavailableError struct {
	Attempts int
	Err      error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Err
}

type CommitFailedError struct {
	Err error
}

func (e *CommitFailedError) Error() string {
	return fmt.Sprintf("could not complete the sale: %v", e.Err)
}

func (e *CommitFailedError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is an operator-correctable error that
// must not be retried.
func IsValidation(err error) bool {
	var stockErr *InsufficientStockError
	var payErr *InsufficientPaymentError
	switch {
	case errors.As(err, &stockErr), errors.As(err, &payErr):
		return true
	case errors.Is(err, ErrNoOpenSession),
		errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrAlreadyClosed),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrNegativeTotal),
		errors.Is(err, ErrPaymentMethod),
		errors.Is(err, ErrNotesRequired):
		return true
	default:
		return false
	}
}
