package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"vivero/backend/internal/cart"
	"vivero/backend/internal/domain"
	"vivero/backend/internal/store"
	"vivero/backend/internal/ticket"
	"vivero/backend/internal/xid"
)

var supportedPaymentMethods = map[string]bool{
	"cash":     true,
	"card":     true,
	"transfer": true,
	"qr":       true,
}

type CommitRequest struct {
	SessionID      string
	Cart           cart.Snapshot
	CustomerID     string
	AmountTendered int64
	PaymentMethod  string
	// CashierName is printed on the ticket; the cashier id is used when empty.
	CashierName string
}

// CommitSale turns a cart snapshot into a finalized sale. Preconditions are
// checked first; the write itself is one storage transaction that re-checks
// the session and live stock, and is retried on transient contention.
func (s *Service) CommitSale(ctx context.Context, req CommitRequest) (domain.Sale, error) {
	started := time.Now()

	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Sale{}, domain.ErrNoOpenSession
		}
		return domain.Sale{}, &domain.CommitFailedError{Err: err}
	}
	if !session.IsOpen() {
		return domain.Sale{}, domain.ErrNoOpenSession
	}
	if req.Cart.Empty() {
		return domain.Sale{}, domain.ErrEmptyCart
	}
	subtotal, discount, total := req.Cart.Totals()
	if total < 0 {
		return domain.Sale{}, domain.ErrNegativeTotal
	}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = "cash"
	}
	if !supportedPaymentMethods[method] {
		return domain.Sale{}, domain.ErrPaymentMethod
	}
	if req.AmountTendered < total {
		return domain.Sale{}, &domain.InsufficientPaymentError{Total: total, Tendered: req.AmountTendered}
	}

	draft := domain.Sale{
		SessionID:      session.ID,
		CustomerID:     strings.TrimSpace(req.CustomerID),
		CashierID:      session.CashierID,
		RegisterID:     session.RegisterID,
		Subtotal:       subtotal,
		Discount:       discount,
		Total:          total,
		AmountTendered: req.AmountTendered,
		ChangeDue:      req.AmountTendered - total,
		PaymentMethod:  method,
		Status:         domain.SaleStatusCompleted,
		Lines:          make([]domain.SaleLine, 0, len(req.Cart.Items)),
	}
	for _, item := range req.Cart.Items {
		if item.Quantity <= 0 {
			return domain.Sale{}, domain.ErrInvalidQuantity
		}
		draft.Lines = append(draft.Lines, domain.SaleLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal(),
		})
	}

	saved, err := s.commitWithRetry(ctx, draft)
	if err != nil {
		s.metrics.ObserveCommit(commitOutcome(err), time.Since(started))
		return domain.Sale{}, err
	}
	s.metrics.ObserveCommit("success", time.Since(started))

	productIDs := make([]string, 0, len(saved.Lines))
	for _, line := range saved.Lines {
		productIDs = append(productIDs, line.ProductID)
	}
	if err := s.cache.Invalidate(ctx, productIDs...); err != nil {
		log.Warn().Err(err).Str("sale_id", saved.ID).Msg("failed to invalidate product cache")
	}

	s.logAudit(ctx, "sale_commit", "sale", saved.ID, fmt.Sprintf("number=%s,total=%d,method=%s", saved.SaleNumber, saved.Total, saved.PaymentMethod))
	s.dispatchTicket(ctx, ticket.Build(*saved, req.CashierName))

	return *saved, nil
}

// commitWithRetry runs the storage transaction until it succeeds, fails for
// a non-transient reason or the retry budget is spent. Each attempt gets a
// fresh id, sale number and timestamp. Cancellation of ctx is observed only
// while waiting between attempts; a started attempt always runs to commit or
// rollback.
func (s *Service) commitWithRetry(ctx context.Context, draft domain.Sale) (*domain.Sale, error) {
	txCtx := context.WithoutCancel(ctx)

	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if wait := s.retry.delay(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &domain.StorageUnavailableError{Attempts: attempt - 1, Err: lastErr}
			case <-timer.C:
			}
		}

		sale := draft
		sale.ID = xid.New("sale")
		sale.CommittedAt = s.now()
		sale.SaleNumber = xid.SaleNumber(sale.CommittedAt)
		sale.Lines = make([]domain.SaleLine, len(draft.Lines))
		for i, line := range draft.Lines {
			line.ID = xid.New("line")
			line.SaleID = sale.ID
			sale.Lines[i] = line
		}

		s.metrics.ObserveCommitAttempt()
		saved, err := s.repo.CommitSale(txCtx, sale)
		if err == nil {
			log.Info().
				Str("sale_id", saved.ID).
				Str("sale_number", saved.SaleNumber).
				Str("session_id", saved.SessionID).
				Int("attempt", attempt).
				Int64("total", saved.Total).
				Msg("sale committed")
			return saved, nil
		}
		if domain.IsValidation(err) {
			return nil, err
		}
		if !store.IsTransient(err) {
			log.Error().Err(err).Str("session_id", draft.SessionID).Int("attempt", attempt).Msg("sale commit failed")
			return nil, &domain.CommitFailedError{Err: err}
		}

		lastErr = err
		log.Warn().Err(err).Str("session_id", draft.SessionID).Int("attempt", attempt).Msg("sale commit hit contention")
	}

	log.Error().Err(lastErr).Str("session_id", draft.SessionID).Int("attempts", s.retry.MaxAttempts).Msg("sale commit gave up")
	return nil, &domain.StorageUnavailableError{Attempts: s.retry.MaxAttempts, Err: lastErr}
}

// dispatchTicket hands the ticket to the notifier without blocking the
// caller. Delivery errors are logged only.
func (s *Service) dispatchTicket(ctx context.Context, t ticket.Ticket) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyWait)
	go func() {
		defer cancel()
		if err := s.notifier.Notify(notifyCtx, t); err != nil {
			log.Warn().Err(err).Str("sale_number", t.SaleNumber).Msg("ticket notification failed")
		}
	}()
}

func commitOutcome(err error) string {
	var unavailable *domain.StorageUnavailableError
	switch {
	case errors.As(err, &unavailable):
		return "storage_unavailable"
	case domain.IsValidation(err):
		return "rejected"
	default:
		return "failed"
	}
}
