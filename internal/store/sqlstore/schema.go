package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		unit_price BIGINT NOT NULL CHECK (unit_price >= 0),
		stock INTEGER NOT NULL CHECK (stock >= 0),
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS cash_sessions (
		id TEXT PRIMARY KEY,
		register_id TEXT NOT NULL,
		cashier_id TEXT NOT NULL,
		opened_at TIMESTAMPTZ NOT NULL,
		closed_at TIMESTAMPTZ,
		opening_float BIGINT NOT NULL CHECK (opening_float >= 0),
		declared_closing_float BIGINT,
		expected_closing_float BIGINT,
		total_sales BIGINT,
		variance BIGINT,
		variance_class TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK (status IN ('open', 'closed'))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS cash_sessions_one_open_per_cashier
		ON cash_sessions (cashier_id) WHERE status = 'open'`,
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		sale_number TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL REFERENCES cash_sessions (id),
		customer_id TEXT,
		cashier_id TEXT NOT NULL,
		register_id TEXT NOT NULL,
		committed_at TIMESTAMPTZ NOT NULL,
		subtotal BIGINT NOT NULL,
		discount BIGINT NOT NULL,
		total BIGINT NOT NULL CHECK (total >= 0),
		amount_tendered BIGINT NOT NULL,
		change_due BIGINT NOT NULL CHECK (change_due >= 0),
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('completed', 'voided'))
	)`,
	`CREATE INDEX IF NOT EXISTS sales_session_idx ON sales (session_id)`,
	`CREATE INDEX IF NOT EXISTS sales_committed_at_idx ON sales (committed_at)`,
	`CREATE TABLE IF NOT EXISTS sale_lines (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales (id) ON DELETE CASCADE,
		line_no INTEGER NOT NULL,
		product_id TEXT NOT NULL REFERENCES products (id),
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price BIGINT NOT NULL,
		line_total BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sale_lines_sale_idx ON sale_lines (sale_id)`,
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_username TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_created_at_idx ON audit_logs (created_at)`,
}

// Migrate creates the schema if it does not exist. It is safe to run on
// every start.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if s.dialect == SQLite {
			// modernc parses DATETIME columns back into time.Time.
			stmt = strings.ReplaceAll(stmt, "TIMESTAMPTZ", "DATETIME")
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
