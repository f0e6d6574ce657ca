package core

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount format")

	// MaxAmount is the largest amount a numeric(12,2) column holds.
	MaxAmount = decimal.RequireFromString("9999999999.99")
)

func init() {
	// amounts travel as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// FormatMoney renders an amount with two decimals, e.g. "$1000.00".
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// ParseAmount parses a user supplied amount ("1000", "99.5").
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, NewValidationError(ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !ValidAmount(d) {
		return decimal.Zero, NewValidationError(ErrInvalidAmount)
	}
	return d, nil
}

// ValidAmount reports whether d has at most two decimals and fits MaxAmount.
func ValidAmount(d decimal.Decimal) bool {
	return d.Equal(d.Round(2)) && d.Abs().LessThanOrEqual(MaxAmount)
}

// SumAmounts adds amounts.
func SumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
