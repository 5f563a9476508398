// Package moneypkg provides fixed-point money helpers shared by all layers.
package moneypkg

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidFormat indicates an amount written in exponent notation.
var ErrInvalidFormat = errors.New("invalid amount format")

// Scale is the number of decimal places every amount is kept with.
const Scale = 2

// FitsScale reports whether d has no more than Scale significant decimal places.
func FitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}

// IsPositiveAmount reports whether d is a valid amount for a balance-changing operation.
func IsPositiveAmount(d decimal.Decimal) bool {
	return d.IsPositive() && FitsScale(d)
}

// Parse parses a plain decimal string such as "3000.00".
//
// Exponent notation is rejected to keep the wire format unambiguous.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidFormat
	}

	return decimal.NewFromString(s)
}

// Format renders d with exactly Scale decimal places.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
