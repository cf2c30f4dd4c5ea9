package parser

import (
	"strings"

	"github.com/insightdelivered/budget-tracker/internal/models"
)

// summaryMarker in a narration cell means the transaction table is over and
// everything after it is statement totals.
const summaryMarker = "statement summary"

// parseRows processes every row below the header through the shared
// pipeline: summary rows terminate, dateless rows extend the neighbouring
// description, unparseable dates drop the row silently (counted in the
// diagnostics, never raised).
func parseRows(rows [][]string, cols ColumnMap) ([]models.Transaction, models.Diagnostics) {
	var (
		txns    []models.Transaction
		diag    models.Diagnostics
		pending string
	)

	for _, row := range rows {
		narration := strings.TrimSpace(cell(row, cols.Narration))

		if strings.Contains(strings.ToLower(narration), summaryMarker) {
			diag.SummaryTerminated = true
			break
		}

		dateCell := strings.TrimSpace(cell(row, cols.Date))
		if dateCell == "" {
			// Continuation row: the narration extends the prior dated
			// row's description. Before any dated row has been seen the
			// text is buffered and prepended to the next one.
			if narration != "" {
				if n := len(txns); n > 0 {
					txns[n-1].Description = strings.TrimSpace(txns[n-1].Description + " " + narration)
				} else {
					pending = strings.TrimSpace(pending + " " + narration)
				}
				diag.ContinuationRows++
			}
			continue
		}

		date, err := ParseDate(dateCell)
		if err != nil {
			diag.SkippedRows++
			continue
		}

		description := strings.TrimSpace(pending + " " + narration)
		pending = ""

		withdrawal := CleanAmount(cell(row, cols.Withdrawal))
		deposit := CleanAmount(cell(row, cols.Deposit))
		balance := CleanAmount(cell(row, cols.Balance))

		txn := models.Transaction{
			Date:        date,
			Description: description,
			Reference:   strings.TrimSpace(cell(row, cols.Reference)),
			Kind:        models.KindCredit,
			Amount:      deposit,
			Balance:     balance,
			Source:      models.SourceBankStatement,
		}
		if withdrawal.IsPositive() {
			txn.Kind = models.KindDebit
			txn.Amount = withdrawal
		}

		txns = append(txns, txn)
	}

	return txns, diag
}

// cell returns the value at idx, or "" when the row is short or the column
// was never resolved.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
