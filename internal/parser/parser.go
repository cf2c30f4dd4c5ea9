// Package parser turns raw tabular statement data into normalized
// transactions. The physical format (spreadsheet or PDF table grid) is the
// extractor's problem; everything here works on [][]string rows.
package parser

import (
	"errors"

	"github.com/insightdelivered/budget-tracker/internal/models"
)

var (
	// ErrHeaderNotFound means no row qualified as the transaction table
	// header. The whole parse aborts; there are no partial results.
	ErrHeaderNotFound = errors.New("transaction table header not found")

	// ErrColumnResolution means the header row was found but a required
	// logical column could not be resolved from its labels.
	ErrColumnResolution = errors.New("could not resolve statement columns")

	// ErrEmptyStatement means the document parsed cleanly but produced no
	// transactions at all.
	ErrEmptyStatement = errors.New("no valid transactions found in statement")
)

// Parse runs the full pipeline over a single table: locate the header,
// resolve its columns, then process every row below it.
func Parse(rows [][]string) (*models.Statement, error) {
	headerIdx, err := LocateHeader(rows)
	if err != nil {
		return nil, err
	}

	cols, err := ResolveColumns(rows[headerIdx])
	if err != nil {
		return nil, err
	}

	txns, diag := parseRows(rows[headerIdx+1:], cols)
	if len(txns) == 0 {
		return nil, ErrEmptyStatement
	}

	return &models.Statement{Transactions: txns, Diagnostics: diag}, nil
}

// ParseTables runs the shared row pipeline over a set of PDF-extracted
// tables. Each table carries its own header; when a table's header labels
// cannot be resolved (PDF extraction often mangles them) the fixed
// positional layout is used instead. Tables without any header row are
// ignored entirely.
func ParseTables(tables [][][]string) (*models.Statement, error) {
	var (
		txns        []models.Transaction
		diag        models.Diagnostics
		headerFound bool
	)

	for _, table := range tables {
		headerIdx, err := LocateHeader(table)
		if err != nil {
			continue
		}
		headerFound = true

		cols, err := ResolveColumns(table[headerIdx])
		if err != nil {
			cols = PositionalColumns
		}

		t, d := parseRows(table[headerIdx+1:], cols)
		txns = append(txns, t...)
		diag.SkippedRows += d.SkippedRows
		diag.ContinuationRows += d.ContinuationRows
		diag.SummaryTerminated = diag.SummaryTerminated || d.SummaryTerminated
	}

	if !headerFound {
		return nil, ErrHeaderNotFound
	}
	if len(txns) == 0 {
		return nil, ErrEmptyStatement
	}

	return &models.Statement{Transactions: txns, Diagnostics: diag}, nil
}
