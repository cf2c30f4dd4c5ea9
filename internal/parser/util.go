package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Statement dates come as day/month with either a 2- or 4-digit year.
// The first layout that parses wins.
var dateLayouts = []string{"02/01/06", "02/01/2006"}

// ParseDate parses a statement date cell. Anything outside the supported
// day/month/year formats is an error; the row pipeline drops such rows.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %q", s)
}

// CleanAmount converts an amount cell like "1,234.56 INR" or "-£250.00" to a
// decimal by stripping every character that is not a digit or decimal point.
// Empty or unparseable values become zero rather than an error, so one
// garbled cell never aborts a statement import.
func CleanAmount(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}
