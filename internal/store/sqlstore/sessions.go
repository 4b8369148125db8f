package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vivero/backend/internal/domain"
	"vivero/backend/internal/store"
)

const sessionColumns = `id, register_id, cashier_id, opened_at, closed_at, opening_float,
	declared_closing_float, expected_closing_float, total_sales, variance,
	variance_class, notes, status`

func scanSession(row rowScanner) (*domain.CashSession, error) {
	var (
		session                                        domain.CashSession
		closedAt                                       sql.NullTime
		declared, expected, totalSales, varianceAmount sql.NullInt64
	)
	err := row.Scan(
		&session.ID,
		&session.RegisterID,
		&session.CashierID,
		&session.OpenedAt,
		&closedAt,
		&session.OpeningFloat,
		&declared,
		&expected,
		&totalSales,
		&varianceAmount,
		&session.VarianceClass,
		&session.Notes,
		&session.Status,
	)
	if err != nil {
		return nil, err
	}
	session.OpenedAt = session.OpenedAt.UTC()
	if closedAt.Valid {
		at := closedAt.Time.UTC()
		session.ClosedAt = &at
	}
	session.DeclaredClosingFloat = int64Ptr(declared)
	session.ExpectedClosingFloat = int64Ptr(expected)
	session.TotalSales = int64Ptr(totalSales)
	session.Variance = int64Ptr(varianceAmount)
	return &session, nil
}

// OpenSession returns the cashier's open session if there is one. Two
// concurrent opens for the same cashier are resolved by the partial unique
// index: the loser re-reads and returns the winner's session.
func (s *Store) OpenSession(ctx context.Context, session domain.CashSession) (*domain.CashSession, bool, error) {
	existing, err := s.GetOpenSessionByCashier(ctx, session.CashierID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	session.Status = domain.SessionStatusOpen
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO cash_sessions (id, register_id, cashier_id, opened_at, opening_float, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`), session.ID, session.RegisterID, session.CashierID, session.OpenedAt.UTC(), session.OpeningFloat, session.Status)
	if err != nil {
		if isUniqueViolation(err) {
			if winner, getErr := s.GetOpenSessionByCashier(ctx, session.CashierID); getErr == nil {
				return winner, false, nil
			}
			return nil, false, store.ErrInvalidTransaction
		}
		return nil, false, classify(err)
	}

	return &session, true, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.CashSession, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, s.q(`SELECT `+sessionColumns+` FROM cash_sessions WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *Store) GetOpenSessionByCashier(ctx context.Context, cashierID string) (*domain.CashSession, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, s.q(`
		SELECT `+sessionColumns+`
		FROM cash_sessions
		WHERE cashier_id = ? AND status = 'open'
		ORDER BY opened_at DESC
		LIMIT 1
	`), cashierID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

// CloseSession totals the session's completed sales and closes it in one
// transaction. The session row is locked first, so a sale commit holding a
// share lock on it finishes before the total is read, and later commits see
// the session closed.
func (s *Store) CloseSession(ctx context.Context, id string, declared int64, notes string, closedAt time.Time, check store.CloseCheck) (*domain.CashSession, int, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions(sql.LevelReadCommitted))
	if err != nil {
		return nil, 0, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	session, err := scanSession(tx.QueryRowContext(ctx, s.q(`SELECT `+sessionColumns+` FROM cash_sessions WHERE id = ?`+s.dialect.forUpdate()), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, store.ErrNotFound
		}
		return nil, 0, classify(err)
	}
	if !session.IsOpen() {
		return nil, 0, domain.ErrAlreadyClosed
	}

	var totalSales int64
	var count int
	err = tx.QueryRowContext(ctx, s.q(`
		SELECT CAST(COALESCE(SUM(total), 0) AS BIGINT), COUNT(*)
		FROM sales
		WHERE session_id = ? AND status = 'completed'
	`), id).Scan(&totalSales, &count)
	if err != nil {
		return nil, 0, classify(err)
	}

	store.ApplyClosing(session, declared, totalSales, notes, closedAt.UTC())
	if check != nil {
		if err := check(session); err != nil {
			return nil, 0, err
		}
	}

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE cash_sessions
		SET closed_at = ?, declared_closing_float = ?, expected_closing_float = ?,
			total_sales = ?, variance = ?, variance_class = ?, notes = ?, status = 'closed'
		WHERE id = ? AND status = 'open'
	`),
		nullTime(session.ClosedAt),
		nullInt64(session.DeclaredClosingFloat),
		nullInt64(session.ExpectedClosingFloat),
		nullInt64(session.TotalSales),
		nullInt64(session.Variance),
		session.VarianceClass,
		session.Notes,
		id,
	)
	if err != nil {
		return nil, 0, classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, 0, err
	}
	if affected == 0 {
		return nil, 0, domain.ErrAlreadyClosed
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, classify(err)
	}
	return session, count, nil
}
