// Package periods implements the salary-anchored personal-month partitioning.
//
// A personal month is the interval between two consecutive salary deposits,
// used instead of the calendar month as the unit of budgeting. The anchor of
// a period is the earliest salary-category transaction date within one
// calendar month; every transaction belongs to the latest anchor at or
// before its own date.
package periods

import (
	"sort"
	"time"

	"bilancio/internal/core"
)

// PeriodNameLayout renders an anchor date as a stable display label,
// e.g. "2024-01Jan".
const PeriodNameLayout = "2006-01Jan"

type (
	// Period is one personal month, identified by its anchor date.
	Period struct {
		Anchor time.Time
		Name   string
	}

	// Assignment annotates one transaction with its personal month.
	// A transaction dated before the first anchor has no assignment:
	// Assigned is false and Anchor is the zero time.
	Assignment struct {
		Transaction core.Transaction
		Anchor      time.Time
		Name        string
		Assigned    bool
	}

	// Result is the full outcome of one assignment pass.
	Result struct {
		Assignments []Assignment
		Periods     []Period
	}
)

// Name returns the display label for an anchor date.
func Name(anchor time.Time) string {
	return anchor.Format(PeriodNameLayout)
}

// Anchors derives the ordered anchor sequence from a transaction set:
// transactions whose category exactly equals salaryCategory, grouped by
// calendar year-month, keeping the minimum date per group. The returned
// slice is strictly increasing and holds at most one anchor per month.
func Anchors(txs []core.Transaction, salaryCategory string) []time.Time {
	byMonth := make(map[string]time.Time)
	for _, t := range txs {
		if t.Category != salaryCategory {
			continue
		}
		d := core.DateOnly(t.Date)
		key := d.Format("2006-01")
		if cur, ok := byMonth[key]; !ok || d.Before(cur) {
			byMonth[key] = d
		}
	}
	anchors := make([]time.Time, 0, len(byMonth))
	for _, d := range byMonth {
		anchors = append(anchors, d)
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i].Before(anchors[j]) })
	return anchors
}

// Assign partitions a transaction set into personal months. Input order does
// not matter; the result is sorted ascending by transaction date.
//
// With zero salary events every transaction stays unassigned and the period
// list is empty; that is a normal state, not an error.
func Assign(txs []core.Transaction, salaryCategory string) Result {
	sorted := make([]core.Transaction, len(txs))
	copy(sorted, txs)
	core.SortByDate(sorted)

	anchors := Anchors(sorted, salaryCategory)

	res := Result{
		Assignments: make([]Assignment, 0, len(sorted)),
		Periods:     make([]Period, 0, len(anchors)),
	}
	for _, a := range anchors {
		res.Periods = append(res.Periods, Period{Anchor: a, Name: Name(a)})
	}

	for _, t := range sorted {
		a, ok := anchorFor(anchors, core.DateOnly(t.Date))
		asg := Assignment{Transaction: t, Assigned: ok}
		if ok {
			asg.Anchor = a
			asg.Name = Name(a)
		}
		res.Assignments = append(res.Assignments, asg)
	}
	return res
}

// anchorFor returns the greatest anchor ≤ date. The boundary is inclusive:
// a transaction dated exactly on an anchor opens that period.
func anchorFor(anchors []time.Time, date time.Time) (time.Time, bool) {
	// First anchor strictly after date; the one before it is ours.
	i := sort.Search(len(anchors), func(i int) bool {
		return anchors[i].After(date)
	})
	if i == 0 {
		return time.Time{}, false
	}
	return anchors[i-1], true
}

// PeriodNames returns the ordered label list, including periods with no
// transactions, for zero-filled trend series.
func (r Result) PeriodNames() []string {
	names := make([]string, len(r.Periods))
	for i, p := range r.Periods {
		names[i] = p.Name
	}
	return names
}
