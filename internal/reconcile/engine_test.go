package reconcile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/budget-tracker/internal/logger"
	"github.com/insightdelivered/budget-tracker/internal/models"
	"github.com/insightdelivered/budget-tracker/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Setup(context.Background()))

	log := logger.NewWithWriter(testWriter{t})
	return New(st, log), st
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func ingestRent(t *testing.T, e *Engine) models.Transaction {
	t.Helper()
	result, err := e.Ingest(context.Background(), []models.Transaction{{
		Date:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Description: "Rent",
		Kind:        models.KindDebit,
		Amount:      decimal.NewFromInt(1000),
		Balance:     decimal.NewFromInt(5000),
		Source:      models.SourceBankStatement,
	}})
	require.NoError(t, err)
	require.Equal(t, 1, result.Added)

	txns, err := e.store.ListTransactions(context.Background(), store.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	return txns[0]
}

func TestIngestReportsDuplicates(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	txn := models.Transaction{
		Date:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Description: "Rent",
		Kind:        models.KindDebit,
		Amount:      decimal.NewFromInt(1000),
	}

	first, err := e.Ingest(ctx, []models.Transaction{txn})
	require.NoError(t, err)
	assert.Equal(t, models.IngestResult{Added: 1}, first)

	second, err := e.Ingest(ctx, []models.Transaction{txn})
	require.NoError(t, err)
	assert.Equal(t, models.IngestResult{Duplicates: 1}, second)
}

func TestAddManualDebitReturnsCandidates(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	bank := ingestRent(t, e)

	// Manual claim two days later, inside the 5-day tolerance window.
	id, matches, err := e.AddManual(ctx, models.Transaction{
		Date:        time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		Description: "Rent paid to landlord",
		Kind:        models.KindDebit,
		Amount:      decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.NotZero(t, id)
	require.Len(t, matches, 1)
	assert.Equal(t, bank.ID, matches[0].ID)
}

func TestAddManualCreditSkipsMatching(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	ingestRent(t, e)

	_, matches, err := e.AddManual(ctx, models.Transaction{
		Date:        time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		Description: "Refund",
		Kind:        models.KindCredit,
		Amount:      decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestValidateConsumesBankTransaction(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	bank := ingestRent(t, e)

	manualID, matches, err := e.AddManual(ctx, models.Transaction{
		Date:        time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		Description: "Rent",
		Kind:        models.KindDebit,
		Amount:      decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, e.Validate(ctx, manualID, &bank.ID, true))

	// The consumed bank transaction never reappears.
	again, err := e.FindMatches(ctx, decimal.NewFromInt(1000),
		time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	assert.Empty(t, again)

	// And a second acceptance of the same bank transaction is rejected.
	otherID, _, err := e.AddManual(ctx, models.Transaction{
		Date:        time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC),
		Description: "Rent again",
		Kind:        models.KindDebit,
		Amount:      decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, e.Validate(ctx, otherID, &bank.ID, true), ErrAlreadyMatched)
}

func TestValidateDeclineLeavesCandidate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	bank := ingestRent(t, e)

	manualID, _, err := e.AddManual(ctx, models.Transaction{
		Date:        time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		Description: "Rent",
		Kind:        models.KindDebit,
		Amount:      decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	require.NoError(t, e.Validate(ctx, manualID, &bank.ID, false))

	matches, err := e.FindMatches(ctx, decimal.NewFromInt(1000),
		time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	assert.Len(t, matches, 1, "declining must not consume the bank transaction")
}

func TestValidateAcceptRequiresBankID(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.ErrorIs(t, e.Validate(context.Background(), 1, nil, true), ErrBankIDRequired)
}

func TestValidateRejectsNonBankDebit(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	manualID, _, err := e.AddManual(ctx, models.Transaction{
		Date:        time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		Description: "Lunch",
		Kind:        models.KindDebit,
		Amount:      decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	// A manual transaction cannot be the bank side of a match.
	assert.ErrorIs(t, e.Validate(ctx, manualID, &manualID, true), ErrNotBankDebit)
}

func TestFindMatchesToleranceWindow(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	ingestRent(t, e) // dated 2024-02-01

	inside, err := e.FindMatches(ctx, decimal.NewFromInt(1000),
		time.Date(2024, 2, 6, 0, 0, 0, 0, time.UTC), 5)
	require.NoError(t, err)
	assert.Len(t, inside, 1)

	outside, err := e.FindMatches(ctx, decimal.NewFromInt(1000),
		time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC), 5)
	require.NoError(t, err)
	assert.Empty(t, outside)
}

func TestDeleteManual(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()
	bank := ingestRent(t, e)

	manualID, _, err := e.AddManual(ctx, models.Transaction{
		Date:        time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		Description: "Rent",
		Kind:        models.KindDebit,
		Amount:      decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	require.NoError(t, e.Validate(ctx, manualID, &bank.ID, true))

	require.NoError(t, e.DeleteManual(ctx, manualID))

	_, err = st.GetTransaction(ctx, manualID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Deleting the manual side removes its validation, freeing the bank
	// transaction for future matches.
	matches, err := e.FindMatches(ctx, decimal.NewFromInt(1000),
		time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestDeleteManualRejectsBankRows(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()
	bank := ingestRent(t, e)

	assert.ErrorIs(t, e.DeleteManual(ctx, bank.ID), ErrNotManual)

	// No mutation happened.
	_, err := st.GetTransaction(ctx, bank.ID)
	assert.NoError(t, err)
}

func TestDeleteManualMissingID(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.ErrorIs(t, e.DeleteManual(context.Background(), 9999), store.ErrNotFound)
}
