package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind says which side of the ledger a transaction sits on.
type TransactionKind string

const (
	KindDebit  TransactionKind = "debit"
	KindCredit TransactionKind = "credit"
)

// Source records where a transaction came from. Bank-derived rows are
// immutable history; only manual rows may ever be deleted.
type Source string

const (
	SourceManual        Source = "manual"
	SourceBankStatement Source = "bank_statement"
)

// Transaction represents a single transaction, either parsed out of a bank
// statement or entered by hand. Amount is always non-negative; Kind carries
// the direction.
type Transaction struct {
	ID          int64           `json:"id,omitempty"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
	Kind        TransactionKind `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
	Category    string          `json:"category,omitempty"`
	Tags        string          `json:"tags,omitempty"`
	Source      Source          `json:"source"`
	CreatedAt   time.Time       `json:"createdAt,omitempty"`
}

// ValidationRecord captures a user's decision on a candidate match between a
// manual expense and a bank-reported transaction. BankTransactionID is nil
// when the match was declined.
type ValidationRecord struct {
	ID                  int64     `json:"id"`
	ManualTransactionID int64     `json:"manualTransactionId"`
	BankTransactionID   *int64    `json:"bankTransactionId,omitempty"`
	Accepted            bool      `json:"accepted"`
	DecidedAt           time.Time `json:"decidedAt"`
}

// Category is one entry of the income/expense/transfer taxonomy.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"` // income, expense or transfer
	Description string `json:"description,omitempty"`
}

// Budget is a spending target for a category over a date range.
type Budget struct {
	ID        int64           `json:"id"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	StartDate time.Time       `json:"startDate"`
	EndDate   time.Time       `json:"endDate"`
}

// Diagnostics counts what the row pipeline did with the input besides
// producing transactions. The parser drops corrupt rows silently, so these
// counters are the only signal that something was skipped.
type Diagnostics struct {
	SkippedRows       int  `json:"skippedRows"`
	ContinuationRows  int  `json:"continuationRows"`
	SummaryTerminated bool `json:"summaryTerminated"`
}

// Statement is the result of parsing one uploaded document.
type Statement struct {
	Transactions []Transaction `json:"transactions"`
	Diagnostics  Diagnostics   `json:"diagnostics"`
}

// IngestResult reports what happened to a parsed statement on insert.
type IngestResult struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
}

// Summary aggregates transactions over a period.
type Summary struct {
	Count          int             `json:"count"`
	TotalDebits    decimal.Decimal `json:"totalDebits"`
	TotalCredits   decimal.Decimal `json:"totalCredits"`
	ClosingBalance decimal.Decimal `json:"closingBalance"`
}

// CategorySummary is one row of the per-category aggregation.
type CategorySummary struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}
