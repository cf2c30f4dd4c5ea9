package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/insightdelivered/budget-tracker/internal/models"
)

// ErrNotFound is returned when a transaction id does not exist.
var ErrNotFound = errors.New("transaction not found")

const transactionColumns = `id, date, description, COALESCE(reference, ''), kind,
	amount_minor, balance_minor, COALESCE(category, ''), COALESCE(tags, ''), source, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (models.Transaction, error) {
	var (
		t            models.Transaction
		date, kind   string
		amt, bal     int64
		src, created string
	)
	err := row.Scan(&t.ID, &date, &t.Description, &t.Reference, &kind,
		&amt, &bal, &t.Category, &t.Tags, &src, &created)
	if err != nil {
		return models.Transaction{}, err
	}
	t.Date, _ = time.Parse(dateLayout, date)
	t.Kind = models.TransactionKind(kind)
	t.Amount = fromMinor(amt)
	t.Balance = fromMinor(bal)
	t.Source = models.Source(src)
	t.CreatedAt = parseStoredTime(created)
	return t, nil
}

// InsertTransaction inserts a single transaction and returns its id.
func (s *Store) InsertTransaction(ctx context.Context, t models.Transaction) (int64, error) {
	return insertTransaction(ctx, s.db, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, db execer, t models.Transaction) (int64, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO transactions (date, description, reference, kind, amount_minor, balance_minor, category, tags, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date.Format(dateLayout), t.Description, t.Reference, string(t.Kind),
		toMinor(t.Amount), toMinor(t.Balance), t.Category, t.Tags, string(t.Source))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

// IngestBankTransactions persists parsed statement rows inside one scoped
// sql transaction, so a failed import never leaves partial inserts behind.
// A duplicate is an existing row with identical date, description, amount
// and kind, regardless of source; duplicates are counted and skipped.
func (s *Store) IngestBankTransactions(ctx context.Context, txns []models.Transaction) (models.IngestResult, error) {
	var result models.IngestResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin ingest: %w", err)
	}
	defer tx.Rollback()

	for _, t := range txns {
		var count int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM transactions
			WHERE date = ? AND description = ? AND amount_minor = ? AND kind = ?`,
			t.Date.Format(dateLayout), t.Description, toMinor(t.Amount), string(t.Kind),
		).Scan(&count)
		if err != nil {
			return models.IngestResult{}, fmt.Errorf("duplicate check: %w", err)
		}
		if count > 0 {
			result.Duplicates++
			continue
		}

		t.Source = models.SourceBankStatement
		if _, err := insertTransaction(ctx, tx, t); err != nil {
			return models.IngestResult{}, err
		}
		result.Added++
	}

	if err := tx.Commit(); err != nil {
		return models.IngestResult{}, fmt.Errorf("commit ingest: %w", err)
	}
	return result, nil
}

// GetTransaction fetches one transaction by id.
func (s *Store) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	From     time.Time
	To       time.Time
	Category string
	Kind     models.TransactionKind
}

// ListTransactions returns transactions matching the filter, newest first.
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	var (
		clauses []string
		args    []any
	)
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if !f.From.IsZero() {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To.Format(dateLayout))
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteManualCascade removes a manual transaction together with every
// validation record that references it, atomically. The source guard is
// repeated in SQL so a bank row can never be deleted even if the caller's
// check raced with something.
func (s *Store) DeleteManualCascade(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM validated_expenses WHERE manual_transaction_id = ?`, id); err != nil {
		return fmt.Errorf("delete validations for %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND source = 'manual'`, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	return tx.Commit()
}

// Summarize aggregates transactions between from and to inclusive. The
// closing balance is the balance on the latest bank row not after the period
// end.
func (s *Store) Summarize(ctx context.Context, from, to time.Time) (models.Summary, error) {
	var (
		sum          models.Summary
		debits       int64
		credits      int64
		closingMinor int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN kind = 'debit' THEN amount_minor ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'credit' THEN amount_minor ELSE 0 END), 0),
			COALESCE((SELECT balance_minor FROM transactions
				WHERE date <= ? ORDER BY date DESC, id DESC LIMIT 1), 0)
		FROM transactions
		WHERE date BETWEEN ? AND ?`,
		to.Format(dateLayout), from.Format(dateLayout), to.Format(dateLayout),
	).Scan(&sum.Count, &debits, &credits, &closingMinor)
	if err != nil {
		return models.Summary{}, fmt.Errorf("summarize: %w", err)
	}
	sum.TotalDebits = fromMinor(debits)
	sum.TotalCredits = fromMinor(credits)
	sum.ClosingBalance = fromMinor(closingMinor)
	return sum, nil
}

// SummarizeByCategory groups transaction totals per category over a period,
// largest total first. Uncategorized rows group under "Uncategorized".
func (s *Store) SummarizeByCategory(ctx context.Context, from, to time.Time, kind models.TransactionKind) ([]models.CategorySummary, error) {
	query := `
		SELECT COALESCE(NULLIF(category, ''), 'Uncategorized'), SUM(amount_minor), COUNT(*)
		FROM transactions
		WHERE date BETWEEN ? AND ?`
	args := []any{from.Format(dateLayout), to.Format(dateLayout)}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, string(kind))
	}
	query += " GROUP BY 1 ORDER BY 2 DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	defer rows.Close()

	var out []models.CategorySummary
	for rows.Next() {
		var (
			cs    models.CategorySummary
			minor int64
		)
		if err := rows.Scan(&cs.Category, &minor, &cs.Count); err != nil {
			return nil, fmt.Errorf("scan category summary: %w", err)
		}
		cs.Total = fromMinor(minor)
		out = append(out, cs)
	}
	return out, rows.Err()
}
