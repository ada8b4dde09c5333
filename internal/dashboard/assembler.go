// Package dashboard assembles the dashboard view-model from a store read.
//
// The assembler is pure orchestration over internal/finance: it performs no
// I/O, holds no mutable state and returns the same Data for the same Input
// and Options.
package dashboard

import (
	"fmt"
	"sort"

	"bilancio/internal/core"
	"bilancio/internal/finance"
	"bilancio/internal/recurrence"
)

const (
	DefaultCashflowWindow = 6
	MinCashflowWindow     = 3
	MaxCashflowWindow     = 12
	DefaultUpcomingLimit  = 8
	MaxUpcomingLimit      = 50
)

// Palette colours distribution and category rows by position.
var Palette = []string{"#9B7BFF", "#5C9DFF", "#F6C177", "#66D19E", "#C084FC", "#FF8FAB", "#6EE7B7", "#94A3B8"}

const (
	incomeLabel  = "Income"
	expenseLabel = "Expense"
)

// Options are the caller supplied parameters of one assembly.
type Options struct {
	Today          core.Date
	CashflowWindow int
	UpcomingLimit  int
}

// Normalize fills defaults and clamps the window to 3..12 months and the
// upcoming limit to 1..50.
func (o Options) Normalize() Options {
	switch {
	case o.CashflowWindow == 0:
		o.CashflowWindow = DefaultCashflowWindow
	case o.CashflowWindow < MinCashflowWindow:
		o.CashflowWindow = MinCashflowWindow
	case o.CashflowWindow > MaxCashflowWindow:
		o.CashflowWindow = MaxCashflowWindow
	}
	switch {
	case o.UpcomingLimit <= 0:
		o.UpcomingLimit = DefaultUpcomingLimit
	case o.UpcomingLimit > MaxUpcomingLimit:
		o.UpcomingLimit = MaxUpcomingLimit
	}
	return o
}

// Assembler builds Data through a finance.Aggregator.
type Assembler struct {
	agg *finance.Aggregator
}

// NewAssembler returns an Assembler expanding through exp (nil for the
// stateless expander).
func NewAssembler(exp recurrence.Expander) *Assembler {
	return &Assembler{agg: finance.New(exp)}
}

// Aggregator exposes the underlying aggregator for ad-hoc queries.
func (a *Assembler) Aggregator() *finance.Aggregator {
	return a.agg
}

// Build assembles the full view-model.
func (a *Assembler) Build(in Input, opts Options) Data {
	opts = opts.Normalize()
	wallets := finance.IndexWallets(in.Wallets)

	portfolio := buildPortfolioSeries(in.Snapshots, in.SnapshotLines, wallets)
	return Data{
		Today:           opts.Today,
		KPIs:            buildKPIs(in.LatestLines, portfolio, wallets),
		PortfolioSeries: portfolio,
		Distributions:   buildDistribution(in.LatestLines, wallets),
		Cashflow:        a.buildCashflow(in.Income, in.Expense, opts),
		Categories:      a.buildCategories(in.Expense, in.Categories, opts.Today),
		Recurrences:     a.buildRecurrences(in, opts),
		Issues:          CheckEntries(in.Income, in.Expense),
	}
}

// CheckEntries reports every active entry whose rule cannot be expanded or
// whose amount is out of range.
func CheckEntries(income, expense []core.Entry) []Issue {
	var issues []Issue
	check := func(kind core.Kind, entries []core.Entry) {
		for _, e := range entries {
			if !e.Active {
				continue
			}
			if err := e.ValidateRule(); err != nil {
				issues = append(issues, Issue{Kind: kind, EntryID: e.ID, Reason: err.Error()})
			} else if err := e.Amount.Validate(); err != nil {
				issues = append(issues, Issue{Kind: kind, EntryID: e.ID, Reason: err.Error()})
			}
		}
	}
	check(core.Income, income)
	check(core.Expense, expense)
	return issues
}

func buildPortfolioSeries(snapshots []core.Snapshot, lines map[int64][]core.SnapshotLine, wallets finance.WalletIndex) []PortfolioPoint {
	ordered := append([]core.Snapshot(nil), snapshots...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if c := ordered[i].Date.Compare(ordered[j].Date); c != 0 {
			return c < 0
		}
		return ordered[i].ID < ordered[j].ID
	})

	points := make([]PortfolioPoint, 0, len(ordered))
	for _, s := range ordered {
		t := finance.TotalsByWalletType(lines[s.ID], wallets)
		points = append(points, PortfolioPoint{
			Date:        s.Date,
			Total:       t.NetWorth,
			Liquidity:   t.Liquidity,
			Investments: t.Investments,
		})
	}
	return points
}

func buildKPIs(latest []core.SnapshotLine, portfolio []PortfolioPoint, wallets finance.WalletIndex) []KPI {
	totals := finance.TotalsByWalletType(latest, wallets)

	var last, prev PortfolioPoint
	hasPair := len(portfolio) >= 2
	if hasPair {
		last, prev = portfolio[len(portfolio)-1], portfolio[len(portfolio)-2]
	}
	change := func(cur, before core.Money) finance.Change {
		if !hasPair {
			return finance.Change{}
		}
		return finance.ChangeBetween(cur, before)
	}

	liquidity := change(last.Liquidity, prev.Liquidity)
	invest := change(last.Investments, prev.Investments)
	total := change(last.Total, prev.Total)

	return []KPI{
		{
			ID:         "liquidity",
			Label:      "Liquidity",
			Value:      totals.Liquidity,
			DeltaValue: liquidity.Delta,
			DeltaPct:   liquidity.Pct,
			Accent:     Palette[0],
			Breakdown:  finance.BreakdownByWallet(finance.LinesOfType(latest, wallets, core.Liquidity), wallets),
		},
		{
			ID:         "investments",
			Label:      "Investments",
			Value:      totals.Investments,
			DeltaValue: invest.Delta,
			DeltaPct:   invest.Pct,
			Accent:     Palette[1],
			Breakdown:  finance.BreakdownByWallet(finance.LinesOfType(latest, wallets, core.Invest), wallets),
		},
		{
			ID:         "netWorth",
			Label:      "Net worth",
			Value:      totals.NetWorth,
			DeltaValue: total.Delta,
			DeltaPct:   total.Pct,
			Accent:     Palette[3],
			Breakdown:  finance.BreakdownByWallet(latest, wallets),
		},
	}
}

func buildDistribution(latest []core.SnapshotLine, wallets finance.WalletIndex) []DistributionItem {
	groups := finance.BreakdownByWallet(latest, wallets)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Value.Cents > groups[j].Value.Cents
	})
	items := make([]DistributionItem, len(groups))
	for i, g := range groups {
		items[i] = DistributionItem{
			ID:    fmt.Sprintf("%s-%d", g.Label, i),
			Label: g.Label,
			Value: g.Value,
			Color: Palette[i%len(Palette)],
		}
	}
	return items
}

func (a *Assembler) buildCashflow(income, expense []core.Entry, opts Options) CashflowSummary {
	y, m := opts.Today.Year(), opts.Today.Month()
	series := a.agg.MonthlySeries(income, expense, y, m, opts.CashflowWindow)
	avg := a.agg.AverageMonthlyTotals(income, expense, y, m, opts.CashflowWindow)

	months := make([]CashflowMonth, len(series))
	for i, s := range series {
		months[i] = CashflowMonth{Month: s.Key, Income: s.Income, Expense: s.Expense}
	}
	return CashflowSummary{
		AvgIncome:  avg.Income,
		AvgExpense: avg.Expense,
		AvgSavings: avg.Net,
		Window:     avg.Window,
		Months:     months,
	}
}

func (a *Assembler) buildCategories(expense []core.Entry, categories []core.ExpenseCategory, today core.Date) []CategoryRow {
	first, last := core.MonthBounds(today.Year(), today.Month())
	buckets := a.agg.CategoryBreakdown(expense, categories, first, last)

	rows := make([]CategoryRow, len(buckets))
	for i, b := range buckets {
		color := b.Color
		if color == "" {
			color = Palette[i%len(Palette)]
		}
		rows[i] = CategoryRow{
			ID:    fmt.Sprintf("%s-%d", b.Label, i),
			Label: b.Label,
			Value: b.Value,
			Color: color,
			Pct:   b.Pct,
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Value.Cents > rows[j].Value.Cents
	})
	return rows
}

func (a *Assembler) buildRecurrences(in Input, opts Options) []RecurrenceRow {
	categories := make(map[int64]core.ExpenseCategory, len(in.Categories))
	for _, c := range in.Categories {
		categories[c.ID] = c
	}
	entries := make(map[core.Kind]map[int64]core.Entry, 2)
	entries[core.Income] = make(map[int64]core.Entry, len(in.Income))
	entries[core.Expense] = make(map[int64]core.Entry, len(in.Expense))
	for _, e := range in.Income {
		entries[core.Income][e.ID] = e
	}
	for _, e := range in.Expense {
		entries[core.Expense][e.ID] = e
	}

	upcoming := a.agg.UpcomingOccurrences(in.Income, in.Expense, opts.Today, opts.UpcomingLimit)
	rows := make([]RecurrenceRow, len(upcoming))
	for i, o := range upcoming {
		e := entries[o.Kind][o.EntryID]
		row := RecurrenceRow{
			ID:          fmt.Sprintf("%d-%d", o.EntryID, i),
			EntryID:     o.EntryID,
			Date:        o.Date,
			Type:        o.Kind,
			Category:    incomeLabel,
			Description: o.Name,
			Amount:      o.Amount,
			Recurring:   e.Recurring(),
		}
		if o.Kind == core.Expense {
			row.Category = expenseLabel
			if e.CategoryID != nil {
				if c, ok := categories[*e.CategoryID]; ok {
					row.Category = c.Name
					row.CategoryColor = c.Color
				}
			}
		}
		rows[i] = row
	}
	return rows
}
