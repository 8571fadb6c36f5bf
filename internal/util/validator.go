package util

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a decimal money string and checks it is positive
// and below the sanity cap.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive, got %s", d)
	}
	if d.GreaterThanOrEqual(decimal.NewFromInt(10000000)) { // cap at 10 million
		return decimal.Zero, fmt.Errorf("amount too large, got %s", d)
	}
	return d, nil
}

// ParseOccurredAt parses a transaction timestamp in the accepted
// layouts, most specific first.
func ParseOccurredAt(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,          // 2025-12-03T00:00:00+05:30
		"2006-01-02T15:04:05", // 2025-12-03T00:00:00
		"2006-01-02",          // 2025-12-03
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// ValidateCurrency checks an ISO-ish currency code.
func ValidateCurrency(code string) error {
	if len(code) < 3 || len(code) > 8 {
		return fmt.Errorf("invalid currency code %q", code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("invalid currency code %q", code)
		}
	}
	return nil
}
