package parser

import (
	"fmt"
	"strings"
)

// ColumnMap maps the logical statement fields to column indices in a table.
// Reference is optional and set to -1 when the statement has no reference
// column; everything else must resolve.
type ColumnMap struct {
	Date       int
	Narration  int
	Reference  int
	Withdrawal int
	Deposit    int
	Balance    int
}

// PositionalColumns is the fixed layout used for PDF-extracted tables whose
// own header row cannot be resolved. It mirrors the column order HDFC uses:
// date, narration, reference, value date, withdrawal, deposit, balance.
var PositionalColumns = ColumnMap{
	Date:       0,
	Narration:  1,
	Reference:  2,
	Withdrawal: 4,
	Deposit:    5,
	Balance:    6,
}

// IsHeaderRow reports whether a row looks like the transaction table header.
// A header must mention a date column, a narration/description column and at
// least one of withdrawal/debit, case-insensitively.
func IsHeaderRow(row []string) bool {
	text := strings.ToLower(strings.Join(row, " "))
	if !strings.Contains(text, "date") {
		return false
	}
	if !strings.Contains(text, "narration") && !strings.Contains(text, "description") {
		return false
	}
	return strings.Contains(text, "withdrawal") || strings.Contains(text, "debit")
}

// LocateHeader scans rows top to bottom and returns the index of the first
// row that qualifies as the transaction table header.
func LocateHeader(rows [][]string) (int, error) {
	for i, row := range rows {
		if IsHeaderRow(row) {
			return i, nil
		}
	}
	return -1, ErrHeaderNotFound
}

// ResolveColumns maps header labels to logical fields by substring match on
// the lower-cased, trimmed labels. It is a pure function of the header text,
// so spreadsheet and PDF tables share it. The date column must not be a
// "value date" column.
func ResolveColumns(header []string) (ColumnMap, error) {
	labels := make([]string, len(header))
	for i, h := range header {
		labels[i] = strings.ToLower(strings.TrimSpace(h))
	}

	find := func(match func(string) bool) int {
		for i, l := range labels {
			if match(l) {
				return i
			}
		}
		return -1
	}

	cols := ColumnMap{
		Date: find(func(l string) bool {
			return strings.Contains(l, "date") && !strings.Contains(l, "value")
		}),
		Narration: find(func(l string) bool {
			return strings.Contains(l, "narration") || strings.Contains(l, "description")
		}),
		Reference: find(func(l string) bool {
			return strings.Contains(l, "ref") || strings.Contains(l, "chq")
		}),
		Withdrawal: find(func(l string) bool {
			return strings.Contains(l, "withdrawal") || strings.Contains(l, "debit")
		}),
		Deposit: find(func(l string) bool {
			return strings.Contains(l, "deposit") || strings.Contains(l, "credit")
		}),
		Balance: find(func(l string) bool {
			return strings.Contains(l, "balance")
		}),
	}

	required := map[string]int{
		"date":       cols.Date,
		"narration":  cols.Narration,
		"withdrawal": cols.Withdrawal,
		"deposit":    cols.Deposit,
		"balance":    cols.Balance,
	}
	for name, idx := range required {
		if idx < 0 {
			return ColumnMap{}, fmt.Errorf("%w: no %s column in header", ErrColumnResolution, name)
		}
	}
	return cols, nil
}
