// Package analytics computes spend/income aggregates over period-annotated
// transaction sets. All sums are in signed cents; zero amounts count as
// neither expense nor income.
package analytics

import (
	"sort"

	"bilancio/internal/core"
	"bilancio/internal/periods"
)

type (
	// PeriodRow is one personal month of the trend series.
	PeriodRow struct {
		Name              string
		Expenses          core.Money // sum of negative amounts
		Income            core.Money // sum of positive amounts
		Net               core.Money
		CumulativeBalance core.Money
	}

	// CategoryRow is one slice of the category breakdown: the absolute
	// expense total for a category.
	CategoryRow struct {
		Category string
		Amount   core.Money
	}

	// Summary holds the global scalars shown above the charts.
	Summary struct {
		Expenses    core.Money
		Income      core.Money
		Net         core.Money
		Investments core.Money
		Savings     core.Money
	}

	// Filters configures keyword matching for the flagged categories.
	// Matching is a case-insensitive substring test on the category text.
	Filters struct {
		InvestmentKeyword string
		SavingsKeyword    string
	}

	// Report is the full aggregation output for one recompute pass.
	Report struct {
		Summary    Summary
		Series     []PeriodRow
		Categories []CategoryRow
	}
)

// DefaultFilters matches the category labels of the supported bank exports.
func DefaultFilters() Filters {
	return Filters{InvestmentKeyword: "investimenti", SavingsKeyword: "risparmi"}
}

// FilterByPeriods keeps only assignments whose period label is in names.
// An empty name set keeps everything. Unassigned transactions are always
// excluded from period-based filtering.
func FilterByPeriods(asgs []periods.Assignment, names []string) []periods.Assignment {
	if len(names) == 0 {
		return asgs
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	out := make([]periods.Assignment, 0, len(asgs))
	for _, a := range asgs {
		if !a.Assigned {
			continue
		}
		if _, ok := wanted[a.Name]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Aggregate computes the full report. periodNames is the ordered label list
// of every known period, including ones with zero transactions: the series
// is zero-filled over it so trend charts have no gaps.
func Aggregate(asgs []periods.Assignment, periodNames []string, f Filters) Report {
	return Report{
		Summary:    Summarize(asgs, f),
		Series:     PeriodSeries(asgs, periodNames),
		Categories: CategoryBreakdown(asgs, f),
	}
}

// Summarize computes the global scalars over the given assignments.
// Investment and savings totals count negative amounts only; those
// transactions still contribute to total expenses. Unassigned
// transactions never contribute, even with no period filter in force.
func Summarize(asgs []periods.Assignment, f Filters) Summary {
	var s Summary
	for _, a := range asgs {
		if !a.Assigned {
			continue
		}
		t := a.Transaction
		switch {
		case t.IsExpense():
			s.Expenses.Cents += t.Amount.Cents
			if t.CategoryContains(f.InvestmentKeyword) {
				s.Investments.Cents += t.Amount.Cents
			}
			if t.CategoryContains(f.SavingsKeyword) {
				s.Savings.Cents += t.Amount.Cents
			}
		case t.IsIncome():
			s.Income.Cents += t.Amount.Cents
		}
	}
	s.Net.Cents = s.Expenses.Cents + s.Income.Cents
	return s
}

// PeriodSeries computes the per-period trend rows in anchor order.
// Unassigned transactions never contribute. Periods absent from the
// assignment set are emitted as zero rows, not omitted.
func PeriodSeries(asgs []periods.Assignment, periodNames []string) []PeriodRow {
	type bucket struct{ expenses, income int64 }
	buckets := make(map[string]*bucket, len(periodNames))
	for _, n := range periodNames {
		buckets[n] = &bucket{}
	}
	for _, a := range asgs {
		if !a.Assigned {
			continue
		}
		b, ok := buckets[a.Name]
		if !ok {
			// Assignment to a period outside the known list; the caller
			// passed a stale period list. Skip rather than invent a row.
			continue
		}
		switch {
		case a.Transaction.IsExpense():
			b.expenses += a.Transaction.Amount.Cents
		case a.Transaction.IsIncome():
			b.income += a.Transaction.Amount.Cents
		}
	}

	rows := make([]PeriodRow, 0, len(periodNames))
	var running int64
	for _, n := range periodNames {
		b := buckets[n]
		net := b.expenses + b.income
		running += net
		rows = append(rows, PeriodRow{
			Name:              n,
			Expenses:          core.Money{Cents: b.expenses},
			Income:            core.Money{Cents: b.income},
			Net:               core.Money{Cents: net},
			CumulativeBalance: core.Money{Cents: running},
		})
	}
	return rows
}

// CategoryBreakdown sums the absolute expense total per category, sorted
// descending. Categories matching the investment or savings keyword are
// excluded from the breakdown, even though they count as expenses in the
// summary. Only assigned transactions participate.
func CategoryBreakdown(asgs []periods.Assignment, f Filters) []CategoryRow {
	totals := make(map[string]int64)
	for _, a := range asgs {
		if !a.Assigned {
			continue
		}
		t := a.Transaction
		if !t.IsExpense() {
			continue
		}
		if t.CategoryContains(f.InvestmentKeyword) || t.CategoryContains(f.SavingsKeyword) {
			continue
		}
		totals[t.Category] += -t.Amount.Cents
	}

	rows := make([]CategoryRow, 0, len(totals))
	for cat, cents := range totals {
		rows = append(rows, CategoryRow{Category: cat, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Amount.Cents != rows[j].Amount.Cents {
			return rows[i].Amount.Cents > rows[j].Amount.Cents
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}
