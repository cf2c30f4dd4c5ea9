package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/budget-tracker/internal/models"
)

// InsertValidation records a user decision. The bank transaction id is only
// stored when the match was accepted.
func (s *Store) InsertValidation(ctx context.Context, v models.ValidationRecord) (int64, error) {
	var bankID any
	if v.Accepted && v.BankTransactionID != nil {
		bankID = *v.BankTransactionID
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO validated_expenses (manual_transaction_id, bank_transaction_id, accepted)
		VALUES (?, ?, ?)`,
		v.ManualTransactionID, bankID, v.Accepted)
	if err != nil {
		return 0, fmt.Errorf("insert validation: %w", err)
	}
	return res.LastInsertId()
}

// BankIDConsumed reports whether an accepted validation already references
// the given bank transaction.
func (s *Store) BankIDConsumed(ctx context.Context, bankID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM validated_expenses
		WHERE bank_transaction_id = ?`, bankID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check consumed bank id %d: %w", bankID, err)
	}
	return count > 0, nil
}

// FindCandidates returns bank-sourced debit transactions with the exact
// amount whose date falls inside [from, to], excluding any already consumed
// by an accepted validation. The exclusion lives in the query itself so the
// at-most-one-consumption invariant cannot be bypassed.
func (s *Store) FindCandidates(ctx context.Context, amount decimal.Decimal, from, to time.Time) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE kind = 'debit'
		AND amount_minor = ?
		AND date BETWEEN ? AND ?
		AND source = 'bank_statement'
		AND id NOT IN (
			SELECT bank_transaction_id FROM validated_expenses
			WHERE bank_transaction_id IS NOT NULL
		)
		ORDER BY date ASC, id ASC`,
		toMinor(amount), from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
