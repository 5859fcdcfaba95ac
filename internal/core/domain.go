package core

import (
	"errors"
	"sort"
	"strings"
	"time"
)

type (
	// Money is a signed amount in euro cents. Negative values are expenses,
	// positive values are income.
	Money struct {
		Cents int64
	}

	// Transaction is a bank movement normalized to the canonical field set.
	// Date and Amount are mandatory; rows that fail to parse either never
	// become a Transaction.
	Transaction struct {
		Date        time.Time
		Description string
		Category    string
		Amount      Money
		OwnerID     string
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// Validate checks the canonical-record invariant: the date must be present.
// The amount is structurally always well-formed once parsed into cents.
func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsExpense reports whether the transaction counts as an expense.
// Zero amounts are neither expense nor income.
func (t Transaction) IsExpense() bool {
	return t.Amount.Cents < 0
}

// IsIncome reports whether the transaction counts as income.
func (t Transaction) IsIncome() bool {
	return t.Amount.Cents > 0
}

// CategoryContains reports whether the transaction category contains the
// keyword, case-insensitively. Used for the investment and savings filters.
func (t Transaction) CategoryContains(keyword string) bool {
	if keyword == "" {
		return false
	}
	return strings.Contains(strings.ToLower(t.Category), strings.ToLower(keyword))
}

// DateOnly truncates a time to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SortByDate sorts transactions ascending by date, in place. Ties keep
// their relative order.
func SortByDate(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.Before(txs[j].Date)
	})
}
