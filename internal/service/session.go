package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"vivero/backend/internal/domain"
	"vivero/backend/internal/store"
	"vivero/backend/internal/xid"
)

var (
	warningThreshold  = decimal.NewFromInt(1)
	criticalThreshold = decimal.NewFromInt(5)
	hundred           = decimal.NewFromInt(100)
)

// OpenSession returns the cashier's open session if there is one, otherwise
// it opens a new one on registerID.
func (s *Service) OpenSession(ctx context.Context, cashierID string, registerID string, openingFloat int64) (domain.CashSession, error) {
	cashierID = strings.TrimSpace(cashierID)
	registerID = strings.TrimSpace(registerID)
	if cashierID == "" || registerID == "" {
		return domain.CashSession{}, store.ErrInvalidTransaction
	}
	if openingFloat < 0 {
		return domain.CashSession{}, domain.ErrInvalidAmount
	}

	saved, created, err := s.repo.OpenSession(ctx, domain.CashSession{
		ID:           xid.New("ses"),
		RegisterID:   registerID,
		CashierID:    cashierID,
		OpenedAt:     s.now(),
		OpeningFloat: openingFloat,
		Status:       domain.SessionStatusOpen,
	})
	if err != nil {
		return domain.CashSession{}, err
	}
	if created {
		s.metrics.ObserveSession("open", "")
		s.logAudit(ctx, "session_open", "cash_session", saved.ID, fmt.Sprintf("register=%s,opening_float=%d", registerID, openingFloat))
		log.Info().Str("session_id", saved.ID).Str("cashier_id", cashierID).Str("register_id", registerID).Msg("cash session opened")
	}
	return *saved, nil
}

func (s *Service) GetActiveSession(ctx context.Context, cashierID string) (domain.CashSession, error) {
	session, err := s.repo.GetOpenSessionByCashier(ctx, strings.TrimSpace(cashierID))
	if err != nil {
		return domain.CashSession{}, err
	}
	return *session, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (domain.CashSession, error) {
	session, err := s.repo.GetSession(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CashSession{}, err
	}
	return *session, nil
}

func (s *Service) ListSessionSales(ctx context.Context, sessionID string) ([]domain.Sale, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListSalesBySession(ctx, sessionID)
}

// CloseSession reconciles the drawer: expected is the opening float plus
// the totals of the session's completed sales, variance is declared minus
// expected. A closed session cannot be closed again.
func (s *Service) CloseSession(ctx context.Context, sessionID string, declaredFloat int64, notes string) (domain.ClosingReport, error) {
	sessionID = strings.TrimSpace(sessionID)
	notes = strings.TrimSpace(notes)
	if sessionID == "" {
		return domain.ClosingReport{}, store.ErrInvalidTransaction
	}
	if declaredFloat < 0 {
		return domain.ClosingReport{}, domain.ErrInvalidAmount
	}

	var percent decimal.Decimal
	check := func(session *domain.CashSession) error {
		percent, session.VarianceClass = ClassifyVariance(*session.ExpectedClosingFloat, *session.Variance)
		if s.requireNotes && session.VarianceClass == domain.VarianceCritical && session.Notes == "" {
			return domain.ErrNotesRequired
		}
		return nil
	}

	closed, saleCount, err := s.repo.CloseSession(ctx, sessionID, declaredFloat, notes, s.now(), check)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyClosed) {
			log.Warn().Str("session_id", sessionID).Msg("close requested for a closed session")
		}
		return domain.ClosingReport{}, err
	}

	s.metrics.ObserveSession("close", closed.VarianceClass)
	s.logAudit(ctx, "session_close", "cash_session", closed.ID, fmt.Sprintf("declared=%d,variance=%d,class=%s", declaredFloat, *closed.Variance, closed.VarianceClass))
	log.Info().
		Str("session_id", closed.ID).
		Int64("expected", *closed.ExpectedClosingFloat).
		Int64("variance", *closed.Variance).
		Str("variance_class", closed.VarianceClass).
		Msg("cash session closed")

	return domain.ClosingReport{
		Session:              *closed,
		OpeningFloat:         closed.OpeningFloat,
		TotalSales:           *closed.TotalSales,
		SaleCount:            saleCount,
		ExpectedClosingFloat: *closed.ExpectedClosingFloat,
		DeclaredClosingFloat: *closed.DeclaredClosingFloat,
		Variance:             *closed.Variance,
		VariancePercent:      percent.StringFixed(2),
		VarianceClass:        closed.VarianceClass,
	}, nil
}

// ClassifyVariance returns |variance| as a percentage of expected and its
// class: normal up to 1%, warning up to 5%, critical above. With nothing
// expected, any variance is critical and the percentage is reported as 100.
func ClassifyVariance(expected int64, variance int64) (decimal.Decimal, string) {
	if variance == 0 {
		return decimal.Zero, domain.VarianceNormal
	}
	if expected == 0 {
		return hundred, domain.VarianceCritical
	}

	pct := decimal.NewFromInt(variance).Abs().
		Div(decimal.NewFromInt(expected).Abs()).
		Mul(hundred)
	switch {
	case pct.LessThanOrEqual(warningThreshold):
		return pct, domain.VarianceNormal
	case pct.LessThanOrEqual(criticalThreshold):
		return pct, domain.VarianceWarning
	default:
		return pct, domain.VarianceCritical
	}
}
