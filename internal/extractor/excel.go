package extractor

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExcelRows reads the first sheet of an xlsx workbook into a row grid.
// Statement headers sit at an arbitrary position, so every row is returned
// and header location is left to the parser.
func ExcelRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
