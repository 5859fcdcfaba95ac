// Package core holds the canonical transaction model and the parsing
// helpers shared by the normalizer, the HTTP layer and the CLI.
//
// This file contains amount parsing and formatting. Amounts are kept in
// signed cents; arithmetic never goes through floats.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseAmountToCents converts a bank-export amount string to signed cents.
//
// Both decimal separators are accepted (12.34 and 12,34), as well as
// thousands separators in either convention (1.234,56 / 1,234.56), a
// leading sign and a euro symbol. Rounding is half-up on the third
// decimal digit.
//
// Examples:
//
//	ParseAmountToCents("-12,34")    -> -1234, nil
//	ParseAmountToCents("1.234,56")  -> 123456, nil
//	ParseAmountToCents("+7")        -> 700, nil
func ParseAmountToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, ErrInvalidAmount
	}

	s = normalizeSeparators(s)

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}

	// First two fractional digits, half-up rounding on the third.
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}

	cents := iv*100 + fracCents
	if neg {
		cents = -cents
	}
	return cents, nil
}

// normalizeSeparators rewrites an unsigned numeric string so that '.' is
// the only decimal separator and thousands separators are removed.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// The rightmost separator is the decimal one.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			// Multiple commas can only be thousands separators.
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// Euros returns the euro value as a float64 for display purposes only.
// Use cents for every calculation.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount as a signed euro string with comma decimals,
// e.g. "-1.234,56 €".
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	euros := cents / 100
	rem := cents % 100

	intStr := strconv.FormatInt(euros, 10)
	// Group thousands with dots, Italian style.
	var b strings.Builder
	for i, r := range intStr {
		if i > 0 && (len(intStr)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := fmt.Sprintf("%s,%02d €", b.String(), rem)
	if neg {
		return "-" + out
	}
	return out
}
