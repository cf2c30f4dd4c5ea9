package extractor

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Horizontal gap (in PDF points) between text spans that separates two
// table cells. Smaller gaps are treated as word spacing inside one cell.
const cellGap = 12.0

// PDFTables reads a PDF statement and returns one table grid per page,
// reconstructed from the positioned text objects: spans are grouped into
// rows by Y coordinate, then split into cells wherever a column-sized
// horizontal gap appears.
func PDFTables(filePath string) (tables [][][]string, err error) {
	// The pdf library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		spans := make([]textSpan, 0, len(content.Text))
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			spans = append(spans, textSpan{x: t.X, y: t.Y, s: t.S})
		}

		if grid := gridFromSpans(spans); len(grid) > 0 {
			tables = append(tables, grid)
		}
	}

	if len(tables) == 0 {
		return nil, fmt.Errorf("no text could be extracted from PDF; the file may be image-based or scanned")
	}
	if !readableGrids(tables) {
		return nil, fmt.Errorf("extracted PDF text is not readable; the file may use custom font encodings")
	}
	return tables, nil
}

type textSpan struct {
	x, y float64
	s    string
}

// gridFromSpans turns positioned text spans into a cell grid. Rows are
// keyed by rounded Y (PDF Y grows bottom-to-top, so rows sort descending);
// within a row, spans closer than cellGap merge into one cell.
func gridFromSpans(spans []textSpan) [][]string {
	rowMap := make(map[int][]textSpan)
	for _, sp := range spans {
		yKey := int(math.Round(sp.y))
		rowMap[yKey] = append(rowMap[yKey], sp)
	}

	yKeys := make([]int, 0, len(rowMap))
	for y := range rowMap {
		yKeys = append(yKeys, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

	var grid [][]string
	for _, y := range yKeys {
		items := rowMap[y]
		sort.Slice(items, func(a, b int) bool { return items[a].x < items[b].x })

		var (
			row  []string
			cur  strings.Builder
			prev textSpan
		)
		for j, item := range items {
			if j > 0 {
				if item.x-(prev.x+spanWidth(prev)) > cellGap {
					row = append(row, strings.TrimSpace(cur.String()))
					cur.Reset()
				} else if cur.Len() > 0 {
					cur.WriteByte(' ')
				}
			}
			cur.WriteString(item.s)
			prev = item
		}
		if cur.Len() > 0 {
			row = append(row, strings.TrimSpace(cur.String()))
		}
		if len(row) > 0 {
			grid = append(grid, row)
		}
	}
	return grid
}

// spanWidth estimates the rendered width of a span. The pdf library only
// gives the origin X, so approximate with an average glyph width.
func spanWidth(sp textSpan) float64 {
	return float64(len(sp.s)) * 5.0
}

// readableGrids checks that the extracted cells are mostly plain readable
// characters. Identity-encoded fonts decode into garbage that would
// otherwise flow straight into the parser.
func readableGrids(tables [][][]string) bool {
	total, readable := 0, 0
	for _, table := range tables {
		for _, row := range table {
			for _, c := range row {
				for _, r := range c {
					total++
					if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
						(r >= '0' && r <= '9') || r == ' ' || r == '.' ||
						r == ',' || r == '-' || r == '/' || r == ':' ||
						r == '(' || r == ')' || r == '\'' {
						readable++
					}
				}
			}
		}
	}
	if total == 0 {
		return false
	}
	return float64(readable)/float64(total) > 0.6
}
