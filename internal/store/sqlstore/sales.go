package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vivero/backend/internal/domain"
	"vivero/backend/internal/store"
)

// CommitSale writes the sale, its lines and the stock decrements in one
// transaction. On PostgreSQL it runs READ COMMITTED with row locks on the
// session (shared) and every product (exclusive), so a commit that waited on
// a product lock reads the stock the previous holder left instead of failing
// serialization. On SQLite the transaction holds the database write lock from
// BEGIN IMMEDIATE.
func (s *Store) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions(sql.LevelReadCommitted))
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, s.q(`SELECT status FROM cash_sessions WHERE id = ?`+s.dialect.forShare()), sale.SessionID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoOpenSession
		}
		return nil, classify(err)
	}
	if status != domain.SessionStatusOpen {
		return nil, domain.ErrNoOpenSession
	}

	if err := store.ReserveStock(ctx, catalog{q: tx, dialect: s.dialect, lock: true}, sale.Lines); err != nil {
		return nil, classify(err)
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO sales (
			id, sale_number, session_id, customer_id, cashier_id, register_id, committed_at,
			subtotal, discount, total, amount_tendered, change_due, payment_method, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		sale.ID,
		sale.SaleNumber,
		sale.SessionID,
		nullIfEmpty(sale.CustomerID),
		sale.CashierID,
		sale.RegisterID,
		sale.CommittedAt.UTC(),
		sale.Subtotal,
		sale.Discount,
		sale.Total,
		sale.AmountTendered,
		sale.ChangeDue,
		sale.PaymentMethod,
		sale.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &store.TransientError{Err: fmt.Errorf("sale number %s: %w", sale.SaleNumber, store.ErrConflict)}
		}
		return nil, classify(err)
	}

	for i, line := range sale.Lines {
		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO sale_lines (id, sale_id, line_no, product_id, name, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`), line.ID, sale.ID, i+1, line.ProductID, line.Name, line.Quantity, line.UnitPrice, line.LineTotal)
		if err != nil {
			return nil, classify(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}

	saved := sale
	saved.CommittedAt = sale.CommittedAt.UTC()
	saved.Lines = make([]domain.SaleLine, len(sale.Lines))
	for i, line := range sale.Lines {
		line.SaleID = sale.ID
		saved.Lines[i] = line
	}
	return &saved, nil
}

const saleColumns = `s.id, s.sale_number, s.session_id, s.customer_id, s.cashier_id, s.register_id,
	s.committed_at, s.subtotal, s.discount, s.total, s.amount_tendered, s.change_due,
	s.payment_method, s.status`

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullString
	err := row.Scan(
		&sale.ID,
		&sale.SaleNumber,
		&sale.SessionID,
		&customerID,
		&sale.CashierID,
		&sale.RegisterID,
		&sale.CommittedAt,
		&sale.Subtotal,
		&sale.Discount,
		&sale.Total,
		&sale.AmountTendered,
		&sale.ChangeDue,
		&sale.PaymentMethod,
		&sale.Status,
	)
	if err != nil {
		return nil, err
	}
	sale.CustomerID = customerID.String
	sale.CommittedAt = sale.CommittedAt.UTC()
	sale.Lines = []domain.SaleLine{}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, s.q(`SELECT `+saleColumns+` FROM sales s WHERE s.id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sales := []domain.Sale{*sale}
	if err := s.attachLines(ctx, sales, `s.id = ?`, id); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) ListSalesBySession(ctx context.Context, sessionID string) ([]domain.Sale, error) {
	return s.listSales(ctx, `s.session_id = ?`, 0, sessionID)
}

func (s *Store) ListSalesBetween(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	return s.listSales(ctx, `s.committed_at >= ? AND s.committed_at < ?`, limit, from.UTC(), to.UTC())
}

func (s *Store) listSales(ctx context.Context, where string, limit int, args ...any) ([]domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales s WHERE ` + where + ` ORDER BY s.committed_at, s.sale_number`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}
	if err := s.attachLines(ctx, sales, where, args...); err != nil {
		return nil, err
	}
	return sales, nil
}

// attachLines loads the lines of every sale matched by where in a single
// query and distributes them onto sales.
func (s *Store) attachLines(ctx context.Context, sales []domain.Sale, where string, args ...any) error {
	index := make(map[string]int, len(sales))
	for i := range sales {
		index[sales[i].ID] = i
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT l.id, l.sale_id, l.product_id, l.name, l.quantity, l.unit_price, l.line_total
		FROM sale_lines l
		JOIN sales s ON s.id = l.sale_id
		WHERE `+where+`
		ORDER BY l.sale_id, l.line_no
	`), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.Name, &line.Quantity, &line.UnitPrice, &line.LineTotal); err != nil {
			return err
		}
		if i, ok := index[line.SaleID]; ok {
			sales[i].Lines = append(sales[i].Lines, line)
		}
	}
	return rows.Err()
}
