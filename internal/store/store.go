// Package store owns the SQLite persistence for transactions, validation
// decisions, categories and budgets. Amounts are stored in minor units
// (paise) so duplicate detection and match queries compare exactly.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	description TEXT NOT NULL,
	reference TEXT,
	kind TEXT NOT NULL CHECK(kind IN ('debit', 'credit')),
	amount_minor INTEGER NOT NULL DEFAULT 0,
	balance_minor INTEGER NOT NULL DEFAULT 0,
	category TEXT,
	tags TEXT,
	source TEXT NOT NULL DEFAULT 'manual',
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS validated_expenses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	manual_transaction_id INTEGER NOT NULL REFERENCES transactions(id),
	bank_transaction_id INTEGER REFERENCES transactions(id),
	accepted INTEGER NOT NULL,
	decided_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	type TEXT NOT NULL CHECK(type IN ('expense', 'income', 'transfer')),
	description TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS budgets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT NOT NULL,
	amount_minor INTEGER NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// Store wraps the SQLite database. Single-process, single-user access;
// SQLite's own transaction guarantees are the only locking.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY and keeps :memory: databases coherent in tests.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Setup creates the schema and seeds the default category taxonomy. Safe to
// call on every start.
func (s *Store) Setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return s.SeedCategories(ctx)
}

// defaultCategories is the income/expense/transfer taxonomy every new
// database starts with.
var defaultCategories = []struct {
	name, kind, description string
}{
	{"Salary", "income", "Regular salary income"},
	{"Sales Revenue", "income", "Income from sales"},
	{"Office Supplies", "expense", "Office supplies and stationery"},
	{"Utilities", "expense", "Electricity, water, internet, etc."},
	{"Marketing", "expense", "Marketing and advertising expenses"},
	{"Travel", "expense", "Business travel expenses"},
	{"Transfer", "transfer", "Internal transfers"},
	{"Other", "expense", "Miscellaneous expenses"},
}

// SeedCategories inserts the default categories, skipping any that already
// exist. Explicit so callers control when initialization happens.
func (s *Store) SeedCategories(ctx context.Context) error {
	for _, c := range defaultCategories {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories (name, type, description) VALUES (?, ?, ?)`,
			c.name, c.kind, c.description)
		if err != nil {
			return fmt.Errorf("seed category %q: %w", c.name, err)
		}
	}
	return nil
}

// toMinor converts a decimal amount to integer minor units.
func toMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// fromMinor converts integer minor units back to a decimal amount.
func fromMinor(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}

// parseStoredTime reads timestamps written by sqlite's datetime('now').
func parseStoredTime(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
