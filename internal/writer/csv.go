package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/insightdelivered/budget-tracker/internal/models"
)

// CSVWriter writes transactions to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes transactions to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, txns []models.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, txns)
}

// Write writes transactions in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, txns []models.Transaction) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	if w.IncludeHeader {
		header := []string{"Date", "Description", "Reference", "Kind", "Amount", "Balance", "Category", "Source"}
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	for _, txn := range txns {
		row := []string{
			txn.Date.Format("2006-01-02"),
			txn.Description,
			txn.Reference,
			string(txn.Kind),
			txn.Amount.StringFixed(2),
			txn.Balance.StringFixed(2),
			txn.Category,
			string(txn.Source),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}
