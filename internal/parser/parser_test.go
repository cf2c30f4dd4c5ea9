package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/budget-tracker/internal/models"
)

func TestParseStatement(t *testing.T) {
	rows := [][]string{
		{"Date", "Narration", "Withdrawal", "Deposit", "Balance"},
		{"01/02/24", "Rent", "1000", "0", "5000"},
		{"", "(cont'd) paid late", "0", "0", "5000"},
	}

	stmt, err := Parse(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stmt.Transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(stmt.Transactions))
	}

	txn := stmt.Transactions[0]
	if want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC); !txn.Date.Equal(want) {
		t.Errorf("date: got %v, want %v", txn.Date, want)
	}
	if txn.Description != "Rent (cont'd) paid late" {
		t.Errorf("description: got %q, want %q", txn.Description, "Rent (cont'd) paid late")
	}
	if txn.Kind != models.KindDebit {
		t.Errorf("kind: got %q, want debit", txn.Kind)
	}
	if !txn.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("amount: got %s, want 1000", txn.Amount)
	}
	if !txn.Balance.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("balance: got %s, want 5000", txn.Balance)
	}
	if txn.Source != models.SourceBankStatement {
		t.Errorf("source: got %q, want bank_statement", txn.Source)
	}
	if stmt.Diagnostics.ContinuationRows != 1 {
		t.Errorf("continuation rows: got %d, want 1", stmt.Diagnostics.ContinuationRows)
	}
}

func TestParseCreditRow(t *testing.T) {
	rows := [][]string{
		{"Date", "Narration", "Withdrawal", "Deposit", "Balance"},
		{"05/02/24", "Client payment", "0", "2,500.00", "7,500.00"},
	}

	stmt, err := Parse(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	txn := stmt.Transactions[0]
	if txn.Kind != models.KindCredit {
		t.Errorf("kind: got %q, want credit", txn.Kind)
	}
	if !txn.Amount.Equal(decimal.NewFromFloat(2500.00)) {
		t.Errorf("amount: got %s, want 2500", txn.Amount)
	}
}

func TestParseSummaryTerminates(t *testing.T) {
	rows := [][]string{
		{"Date", "Narration", "Withdrawal", "Deposit", "Balance"},
		{"01/02/24", "Rent", "1000", "0", "5000"},
		{"02/02/24", "STATEMENT SUMMARY", "0", "0", "5000"},
		{"03/02/24", "Never reached", "50", "0", "4950"},
	}

	stmt, err := Parse(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmt.Transactions) != 1 {
		t.Errorf("got %d transactions, want 1 (summary row must stop processing)", len(stmt.Transactions))
	}
	if !stmt.Diagnostics.SummaryTerminated {
		t.Error("expected SummaryTerminated diagnostic")
	}
}

func TestParseSkipsBadDates(t *testing.T) {
	rows := [][]string{
		{"Date", "Narration", "Withdrawal", "Deposit", "Balance"},
		{"01/02/24", "Rent", "1000", "0", "5000"},
		{"garbage", "Corrupt row", "50", "0", "4950"},
		{"2024-02-03", "Wrong format", "25", "0", "4925"},
		{"04/02/24", "Groceries", "200", "0", "4725"},
	}

	stmt, err := Parse(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmt.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(stmt.Transactions))
	}
	if stmt.Diagnostics.SkippedRows != 2 {
		t.Errorf("skipped rows: got %d, want 2", stmt.Diagnostics.SkippedRows)
	}
}

func TestParseHeaderNotFound(t *testing.T) {
	rows := [][]string{
		{"Some", "Other", "Document"},
		{"01/02/24", "Rent", "1000"},
	}

	if _, err := Parse(rows); !errors.Is(err, ErrHeaderNotFound) {
		t.Errorf("expected ErrHeaderNotFound, got %v", err)
	}
}

func TestParseEmptyStatement(t *testing.T) {
	rows := [][]string{
		{"Date", "Narration", "Withdrawal", "Deposit", "Balance"},
		{"not-a-date", "Only corrupt rows", "10", "0", "100"},
	}

	if _, err := Parse(rows); !errors.Is(err, ErrEmptyStatement) {
		t.Errorf("expected ErrEmptyStatement, got %v", err)
	}
}

func TestParseTables(t *testing.T) {
	tables := [][][]string{
		{
			{"Page 1 preamble"},
			{"Date", "Narration", "Chq/Ref No", "Value Dt", "Withdrawal", "Deposit", "Balance"},
			{"01/02/24", "Rent", "REF001", "01/02/24", "1000", "0", "5000"},
		},
		{
			{"Date", "Narration", "Chq/Ref No", "Value Dt", "Withdrawal", "Deposit", "Balance"},
			{"05/02/24", "Salary", "REF002", "05/02/24", "0", "3000", "8000"},
		},
	}

	stmt, err := ParseTables(tables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmt.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(stmt.Transactions))
	}
	if stmt.Transactions[0].Reference != "REF001" {
		t.Errorf("reference: got %q, want REF001", stmt.Transactions[0].Reference)
	}
	if stmt.Transactions[1].Kind != models.KindCredit {
		t.Errorf("second transaction kind: got %q, want credit", stmt.Transactions[1].Kind)
	}
}

func TestParseTablesPositionalFallback(t *testing.T) {
	// The header qualifies (date/narration/withdrawal present) but its
	// labels are too mangled to resolve a balance column, so the fixed
	// positional layout applies.
	tables := [][][]string{
		{
			{"Date", "Narration", "Withdrawal", "Deposit"},
			{"01/02/24", "Rent", "REF001", "01/02/24", "1000", "0", "5000"},
		},
	}

	stmt, err := ParseTables(tables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmt.Transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(stmt.Transactions))
	}

	txn := stmt.Transactions[0]
	if !txn.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("amount: got %s, want 1000 (positional withdrawal column)", txn.Amount)
	}
	if !txn.Balance.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("balance: got %s, want 5000 (positional balance column)", txn.Balance)
	}
}

func TestParseTablesNoHeaderAnywhere(t *testing.T) {
	tables := [][][]string{
		{{"just", "noise"}},
		{{"more", "noise"}},
	}

	if _, err := ParseTables(tables); !errors.Is(err, ErrHeaderNotFound) {
		t.Errorf("expected ErrHeaderNotFound, got %v", err)
	}
}
