// Package reconcile persists ingested and manual transactions and matches
// manual debit claims against bank-reported ones, so an expense entered by
// hand and later imported from a statement is not counted twice.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/budget-tracker/internal/models"
	"github.com/insightdelivered/budget-tracker/internal/store"
)

// DefaultToleranceDays is the ± day window within which a manual claim's
// date is considered a plausible match for a bank transaction's date.
const DefaultToleranceDays = 5

var (
	// ErrNotManual rejects deletion of anything but a manual transaction.
	// Bank-derived rows are immutable history.
	ErrNotManual = errors.New("only manually entered transactions can be deleted")

	// ErrBankIDRequired means an accepted validation arrived without the
	// bank transaction it accepts.
	ErrBankIDRequired = errors.New("accepted validation requires a bank transaction id")

	// ErrAlreadyMatched means the bank transaction is already consumed by
	// an accepted validation. FindMatches excludes consumed ids by query
	// construction, so hitting this means the caller went around it.
	ErrAlreadyMatched = errors.New("bank transaction is already matched to another expense")

	// ErrNotBankDebit means the referenced transaction is not a
	// bank-sourced debit and cannot be accepted as a match.
	ErrNotBankDebit = errors.New("matched transaction must be a bank-sourced debit")
)

// Engine is the reconciliation component. Ingestion-side dedup and
// manual-side matching live together so the consumed-id invariant is
// enforced in one place.
type Engine struct {
	store         *store.Store
	log           zerolog.Logger
	toleranceDays int
}

// New creates an Engine with the default tolerance window.
func New(st *store.Store, log zerolog.Logger) *Engine {
	return &Engine{store: st, log: log, toleranceDays: DefaultToleranceDays}
}

// Ingest persists parsed statement transactions with duplicate suppression.
// Duplicates (same date, description, amount and kind as any existing row)
// are skipped and counted, never an error.
func (e *Engine) Ingest(ctx context.Context, txns []models.Transaction) (models.IngestResult, error) {
	runID := uuid.NewString()
	result, err := e.store.IngestBankTransactions(ctx, txns)
	if err != nil {
		e.log.Error().Err(err).Str("run_id", runID).Msg("statement ingest failed")
		return models.IngestResult{}, fmt.Errorf("ingest statement: %w", err)
	}
	e.log.Info().
		Str("run_id", runID).
		Int("added", result.Added).
		Int("duplicates", result.Duplicates).
		Msg("statement ingested")
	return result, nil
}

// AddManual inserts a manually entered transaction. For debits it
// immediately searches for candidate bank matches inside the tolerance
// window; credits get no candidates.
func (e *Engine) AddManual(ctx context.Context, t models.Transaction) (int64, []models.Transaction, error) {
	t.Source = models.SourceManual
	id, err := e.store.InsertTransaction(ctx, t)
	if err != nil {
		return 0, nil, fmt.Errorf("add manual transaction: %w", err)
	}

	var matches []models.Transaction
	if t.Kind == models.KindDebit {
		matches, err = e.FindMatches(ctx, t.Amount, t.Date, e.toleranceDays)
		if err != nil {
			return 0, nil, err
		}
		e.log.Info().
			Int64("transaction_id", id).
			Int("candidates", len(matches)).
			Msg("manual debit recorded")
	}
	return id, matches, nil
}

// FindMatches returns unconsumed bank-sourced debit transactions with the
// exact amount dated within ±toleranceDays of date. The result is a set
// presented for user choice, not a ranking.
func (e *Engine) FindMatches(ctx context.Context, amount decimal.Decimal, date time.Time, toleranceDays int) ([]models.Transaction, error) {
	if toleranceDays <= 0 {
		toleranceDays = e.toleranceDays
	}
	from := date.AddDate(0, 0, -toleranceDays)
	to := date.AddDate(0, 0, toleranceDays)
	matches, err := e.store.FindCandidates(ctx, amount, from, to)
	if err != nil {
		return nil, fmt.Errorf("find matches: %w", err)
	}
	return matches, nil
}

// Validate records the user's decision on a candidate match. Accepting
// consumes the bank transaction permanently; declining records the decision
// without consuming anything.
func (e *Engine) Validate(ctx context.Context, manualID int64, bankID *int64, accepted bool) error {
	if accepted {
		if bankID == nil {
			return ErrBankIDRequired
		}
		bank, err := e.store.GetTransaction(ctx, *bankID)
		if err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		if bank.Source != models.SourceBankStatement || bank.Kind != models.KindDebit {
			return ErrNotBankDebit
		}
		// Query construction already keeps consumed ids out of the
		// candidate set; this check catches callers that bypass it.
		consumed, err := e.store.BankIDConsumed(ctx, *bankID)
		if err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		if consumed {
			return ErrAlreadyMatched
		}
	}

	_, err := e.store.InsertValidation(ctx, models.ValidationRecord{
		ManualTransactionID: manualID,
		BankTransactionID:   bankID,
		Accepted:            accepted,
	})
	if err != nil {
		return fmt.Errorf("record validation: %w", err)
	}
	e.log.Info().
		Int64("manual_id", manualID).
		Bool("accepted", accepted).
		Msg("validation recorded")
	return nil
}

// DeleteManual removes a manual transaction and, atomically, every
// validation record referencing it.
func (e *Engine) DeleteManual(ctx context.Context, id int64) error {
	t, err := e.store.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete manual: %w", err)
	}
	if t.Source != models.SourceManual {
		return ErrNotManual
	}
	if err := e.store.DeleteManualCascade(ctx, id); err != nil {
		return fmt.Errorf("delete manual %d: %w", id, err)
	}
	e.log.Info().Int64("transaction_id", id).Msg("manual transaction deleted")
	return nil
}
