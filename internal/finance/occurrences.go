// Package finance aggregates expanded occurrences and snapshot balances into
// the totals, averages and breakdowns the dashboard is built from.
//
// Every function here is a pure transform of its arguments. Expansion goes
// through a recurrence.Expander so a caching wrapper can be slotted in by the
// caller without the aggregation code knowing about it.
package finance

import (
	"sort"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
	"bilancio/internal/recurrence"
)

const (
	// initialHorizonDays is the first look-ahead window for upcoming occurrences.
	initialHorizonDays = 31
	// maxHorizonYears caps how far ahead upcoming occurrences are searched.
	maxHorizonYears = 5
)

// Totals are the per-kind sums of one period. Both sides are non-negative.
type Totals struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
}

// Net is income minus expense.
func (t Totals) Net() core.Money {
	return t.Income.Sub(t.Expense)
}

// MonthTotals are the Totals of one calendar month.
type MonthTotals struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Key   string `json:"month_key"`
	Totals
}

// Averages are trailing-window means in currency units, rounded to cents.
type Averages struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Window  int             `json:"window"`
}

// Aggregator computes occurrence based statistics.
type Aggregator struct {
	expander recurrence.Expander
}

// New returns an Aggregator that expands through exp. A nil exp selects the
// stateless recurrence.Rules.
func New(exp recurrence.Expander) *Aggregator {
	if exp == nil {
		exp = recurrence.Rules{}
	}
	return &Aggregator{expander: exp}
}

// ListOccurrencesInRange expands every entry within [start, end] and
// flattens the result. Each entry's own occurrences stay ascending; the
// order across entries follows the input order.
func (a *Aggregator) ListOccurrencesInRange(entries []core.Entry, start, end core.Date) []core.Occurrence {
	return a.list(entries, "", start, end)
}

// list expands entries; a non-empty kind overrides the entries' own tag.
func (a *Aggregator) list(entries []core.Entry, kind core.Kind, start, end core.Date) []core.Occurrence {
	var out []core.Occurrence
	for _, e := range entries {
		if kind != "" {
			e.Kind = kind
		}
		for _, date := range a.expander.OccurrencesInRange(e, start, end) {
			out = append(out, occurrenceOf(e, date))
		}
	}
	return out
}

// TotalsInRange sums occurrence amounts per kind within [start, end].
// Entries whose amount is outside (0, MaxCents] are left out of the sums.
func (a *Aggregator) TotalsInRange(income, expense []core.Entry, start, end core.Date) Totals {
	var t Totals
	for _, e := range income {
		if countable(e) {
			n := len(a.expander.OccurrencesInRange(e, start, end))
			t.Income = t.Income.Add(e.Amount.Times(n))
		}
	}
	for _, e := range expense {
		if countable(e) {
			n := len(a.expander.OccurrencesInRange(e, start, end))
			t.Expense = t.Expense.Add(e.Amount.Times(n))
		}
	}
	return t
}

// countable reports whether e's amount may enter a sum. Writes already
// reject such amounts; this guards rows stored before the bound existed.
func countable(e core.Entry) bool {
	return e.Amount.Validate() == nil
}

// TotalsForMonth sums occurrence amounts per kind for one calendar month.
func (a *Aggregator) TotalsForMonth(income, expense []core.Entry, year, month int) Totals {
	first, last := core.MonthBounds(year, month)
	return a.TotalsInRange(income, expense, first, last)
}

// MonthlySeries returns TotalsForMonth for window consecutive months ending
// at (year, month), oldest first.
func (a *Aggregator) MonthlySeries(income, expense []core.Entry, year, month, window int) []MonthTotals {
	if window < 1 {
		return nil
	}
	out := make([]MonthTotals, window)
	cursor := core.NewDate(year, month, 1)
	for i := window - 1; i >= 0; i-- {
		y, m := cursor.Year(), cursor.Month()
		out[i] = MonthTotals{
			Year:   y,
			Month:  m,
			Key:    core.MonthKey(y, m),
			Totals: a.TotalsForMonth(income, expense, y, m),
		}
		cursor = cursor.AddMonthsClamped(-1)
	}
	return out
}

// AverageMonthlyTotals averages TotalsForMonth over window months ending at
// (year, month). Months without occurrences count as zero: the divisor is
// always window.
func (a *Aggregator) AverageMonthlyTotals(income, expense []core.Entry, year, month, window int) Averages {
	if window < 1 {
		return Averages{Income: decimal.Zero, Expense: decimal.Zero, Net: decimal.Zero}
	}
	var sum Totals
	for _, mt := range a.MonthlySeries(income, expense, year, month, window) {
		sum.Income = sum.Income.Add(mt.Income)
		sum.Expense = sum.Expense.Add(mt.Expense)
	}
	return averagesOf(sum, window)
}

func averagesOf(sum Totals, window int) Averages {
	n := decimal.NewFromInt(int64(window))
	avgIncome := sum.Income.Decimal().DivRound(n, 2)
	avgExpense := sum.Expense.Decimal().DivRound(n, 2)
	return Averages{
		Income:  avgIncome,
		Expense: avgExpense,
		Net:     avgIncome.Sub(avgExpense),
		Window:  window,
	}
}

// UpcomingOccurrences returns the first limit occurrences on or after today
// across both kinds, ordered by date, then kind (income first), then entry
// id. The search horizon starts at one month and doubles until limit is
// reached or it would pass five years from today; in that case fewer than
// limit occurrences are returned.
func (a *Aggregator) UpcomingOccurrences(income, expense []core.Entry, today core.Date, limit int) []core.Occurrence {
	if limit <= 0 {
		return nil
	}
	ceiling := today.AddYearsClamped(maxHorizonYears)

	var found []core.Occurrence
	for horizon := initialHorizonDays; ; horizon *= 2 {
		end := today.AddDays(horizon)
		if end.After(ceiling) {
			end = ceiling
		}
		found = append(a.list(income, core.Income, today, end), a.list(expense, core.Expense, today, end)...)
		if len(found) >= limit || !end.Before(ceiling) {
			break
		}
	}

	SortOccurrences(found)
	if len(found) > limit {
		found = found[:limit]
	}
	return found
}

// SortOccurrences orders occurrences by date, kind (income before expense)
// and entry id.
func SortOccurrences(occ []core.Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		if c := occ[i].Date.Compare(occ[j].Date); c != 0 {
			return c < 0
		}
		if occ[i].Kind != occ[j].Kind {
			return occ[i].Kind == core.Income
		}
		return occ[i].EntryID < occ[j].EntryID
	})
}

func occurrenceOf(e core.Entry, date core.Date) core.Occurrence {
	o := core.Occurrence{
		EntryID: e.ID,
		Kind:    e.Kind,
		Name:    e.Name,
		Date:    date,
		Amount:  e.Amount,
	}
	if e.Kind == core.Expense {
		o.CategoryID = e.CategoryID
	}
	return o
}
