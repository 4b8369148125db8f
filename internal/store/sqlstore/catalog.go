package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vivero/backend/internal/domain"
	"vivero/backend/internal/store"
)

// catalog implements store.ProductCatalog over either the pool or an open
// transaction. With lock set, stock reads take a row lock held until the
// transaction ends.
type catalog struct {
	q       queryer
	dialect Dialect
	lock    bool
}

func (c catalog) GetPrice(ctx context.Context, productID string) (int64, error) {
	var price int64
	err := c.q.QueryRowContext(ctx, c.dialect.rebind(`SELECT unit_price FROM products WHERE id = ?`), productID).Scan(&price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
		}
		return 0, classify(err)
	}
	return price, nil
}

func (c catalog) GetStock(ctx context.Context, productID string) (int, error) {
	query := `SELECT stock FROM products WHERE id = ?`
	if c.lock {
		query += c.dialect.forUpdate()
	}
	var stock int
	err := c.q.QueryRowContext(ctx, c.dialect.rebind(query), productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
		}
		return 0, classify(err)
	}
	return stock, nil
}

// DecrementStock never drives stock below zero: the guarded UPDATE touches
// no row when stock is short.
func (c catalog) DecrementStock(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidTransaction
	}
	res, err := c.q.ExecContext(ctx, c.dialect.rebind(`
		UPDATE products SET stock = stock - ?
		WHERE id = ? AND stock >= ?
	`), qty, productID, qty)
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	available, err := c.GetStock(ctx, productID)
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
}

func (s *Store) GetPrice(ctx context.Context, productID string) (int64, error) {
	return catalog{q: s.db, dialect: s.dialect}.GetPrice(ctx, productID)
}

func (s *Store) GetStock(ctx context.Context, productID string) (int, error) {
	return catalog{q: s.db, dialect: s.dialect}.GetStock(ctx, productID)
}

func (s *Store) DecrementStock(ctx context.Context, productID string, qty int) error {
	return catalog{q: s.db, dialect: s.dialect}.DecrementStock(ctx, productID, qty)
}

const productColumns = `id, name, category, unit_price, stock, active`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.UnitPrice, &p.Stock, &p.Active); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = TRUE
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, s.q(`SELECT `+productColumns+` FROM products WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// UpsertProduct writes a catalog row. Catalog editing belongs to another
// system; this exists for seeding and tests.
func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO products (id, name, category, unit_price, stock, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			unit_price = excluded.unit_price,
			stock = excluded.stock,
			active = excluded.active
	`), p.ID, p.Name, p.Category, p.UnitPrice, p.Stock, p.Active)
	return err
}
