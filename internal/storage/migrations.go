package storage

import "context"

// migrate applies forward-only, idempotent schema statements at startup.
func (db *DB) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			plan_type TEXT NOT NULL DEFAULT 'free',
			expires_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			parent_id INTEGER REFERENCES categories(id),
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_user ON categories(user_id)`,
		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			category_id INTEGER NOT NULL REFERENCES categories(id),
			name TEXT NOT NULL,
			price REAL NOT NULL CHECK (price >= 0),
			active BOOLEAN NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_user ON products(user_id)`,
		`CREATE TABLE IF NOT EXISTS transaction_headers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			code TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			status TEXT NOT NULL,
			subtotal REAL NOT NULL,
			discount_total REAL NOT NULL DEFAULT 0,
			tax_total REAL NOT NULL DEFAULT 0,
			total REAL NOT NULL,
			paid_amount REAL NOT NULL,
			change_amount REAL NOT NULL,
			payment_method TEXT NOT NULL,
			UNIQUE(user_id, code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_headers_user ON transaction_headers(user_id)`,
		`CREATE TABLE IF NOT EXISTS transaction_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			header_id INTEGER NOT NULL REFERENCES transaction_headers(id),
			product_id INTEGER REFERENCES products(id),
			item_name TEXT NOT NULL,
			unit_price REAL NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			subtotal REAL NOT NULL,
			line_total REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_items_header ON transaction_items(header_id)`,
		`CREATE TABLE IF NOT EXISTS cash_movements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			header_id INTEGER NOT NULL REFERENCES transaction_headers(id),
			amount REAL NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS stock_sales (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			header_id INTEGER NOT NULL REFERENCES transaction_headers(id),
			product_id INTEGER NOT NULL REFERENCES products(id),
			qty INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scan_audits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			device_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			frame_sequence INTEGER NOT NULL,
			detection_count INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_audits_user ON scan_audits(user_id)`,
		`CREATE TABLE IF NOT EXISTS transaction_audits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			header_id INTEGER NOT NULL REFERENCES transaction_headers(id),
			user_id INTEGER NOT NULL REFERENCES users(id),
			action TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_audits_header ON transaction_audits(header_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return db.seedDefaults(ctx)
}

// uncategorizedCategoryID is the well-known category id products fall back
// to when created without an explicit category, per the owner-scoped
// catalog's "default category id is 1" rule. It is owned by a reserved
// system user so the foreign key on categories.user_id is satisfied without
// granting any real account ownership of it.
const (
	systemUserID            = 1
	uncategorizedCategoryID = 1
)

// seedDefaults inserts the reserved system user and its "Uncategorized"
// category, idempotently, so category id 1 always exists once the schema is
// in place.
func (db *DB) seedDefaults(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, username, password_hash, plan_type) VALUES (?, '__system__', '', 'system')`,
		systemUserID); err != nil {
		return err
	}
	if _, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (id, user_id, name, active) VALUES (?, ?, 'Uncategorized', 1)`,
		uncategorizedCategoryID, systemUserID); err != nil {
		return err
	}
	return nil
}
