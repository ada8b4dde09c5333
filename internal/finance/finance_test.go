package finance

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

func d(s string) core.Date { return core.MustDate(s) }

func int64p(v int64) *int64 { return &v }

func entry(id int64, kind core.Kind, cents int64, start string, f core.Frequency, interval int) core.Entry {
	return core.Entry{
		ID:        id,
		Kind:      kind,
		Name:      "entry",
		Amount:    core.Cents(cents),
		StartDate: d(start),
		Frequency: f,
		Interval:  interval,
		Active:    true,
	}
}

func oneShot(id int64, kind core.Kind, cents int64, on string) core.Entry {
	e := entry(id, kind, cents, on, "", 0)
	e.OneShot = true
	return e
}

func TestTotalsForMonth(t *testing.T) {
	agg := New(nil)
	income := []core.Entry{
		entry(1, core.Income, 250000, "2024-01-27", core.Monthly, 1),
		oneShot(2, core.Income, 50000, "2024-02-10"),
	}
	expense := []core.Entry{
		entry(3, core.Expense, 2000, "2024-01-01", core.Weekly, 1),  // Feb 2024: 5, 12, 19, 26
		entry(4, core.Expense, 85000, "2023-12-05", core.Monthly, 1), // Feb 5
	}
	inactive := entry(5, core.Expense, 99999, "2024-01-01", core.Weekly, 1)
	inactive.Active = false
	expense = append(expense, inactive)

	got := agg.TotalsForMonth(income, expense, 2024, 2)
	if got.Income.Cents != 300000 {
		t.Errorf("income = %d, want 300000", got.Income.Cents)
	}
	if got.Expense.Cents != 4*2000+85000 {
		t.Errorf("expense = %d, want %d", got.Expense.Cents, 4*2000+85000)
	}
	if got.Net().Cents != 300000-93000 {
		t.Errorf("net = %d", got.Net().Cents)
	}
}

func TestAverageMonthlyTotalsDivisorIsWindow(t *testing.T) {
	agg := New(nil)
	income := []core.Entry{oneShot(1, core.Income, 30000, "2024-03-15")}

	avg := agg.AverageMonthlyTotals(income, nil, 2024, 3, 3)
	if !avg.Income.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("average income = %s, want 100", avg.Income)
	}
	if !avg.Expense.IsZero() {
		t.Fatalf("average expense = %s, want 0", avg.Expense)
	}
	if !avg.Net.Equal(avg.Income.Sub(avg.Expense)) {
		t.Fatalf("net %s != income - expense", avg.Net)
	}
	if avg.Window != 3 {
		t.Fatalf("window = %d", avg.Window)
	}
}

func TestAverageMonthlyTotalsRoundsToCents(t *testing.T) {
	agg := New(nil)
	expense := []core.Entry{oneShot(1, core.Expense, 10000, "2024-01-10")}
	avg := agg.AverageMonthlyTotals(nil, expense, 2024, 3, 3)
	if !avg.Expense.Equal(decimal.RequireFromString("33.33")) {
		t.Fatalf("average expense = %s, want 33.33", avg.Expense)
	}
	if !avg.Net.Equal(decimal.RequireFromString("-33.33")) {
		t.Fatalf("net = %s, want -33.33", avg.Net)
	}
}

func TestMonthlySeriesCrossesYearBoundary(t *testing.T) {
	agg := New(nil)
	series := agg.MonthlySeries(nil, nil, 2024, 2, 4)
	want := []string{"2023-11", "2023-12", "2024-01", "2024-02"}
	if len(series) != len(want) {
		t.Fatalf("len = %d", len(series))
	}
	for i, k := range want {
		if series[i].Key != k {
			t.Errorf("series[%d] = %s, want %s", i, series[i].Key, k)
		}
	}
}

func TestUpcomingOccurrencesMergeOrder(t *testing.T) {
	agg := New(nil)
	income := []core.Entry{oneShot(1, core.Income, 100, "2024-03-01")}
	expense := []core.Entry{oneShot(2, core.Expense, 100, "2024-02-20")}

	got := agg.UpcomingOccurrences(income, expense, d("2024-02-01"), 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(got))
	}
	if got[0].Kind != core.Expense || got[0].Date != d("2024-02-20") {
		t.Errorf("first = %+v, want the Feb expense", got[0])
	}
	if got[1].Kind != core.Income || got[1].Date != d("2024-03-01") {
		t.Errorf("second = %+v, want the Mar income", got[1])
	}
}

func TestUpcomingOccurrencesTieBreak(t *testing.T) {
	agg := New(nil)
	income := []core.Entry{oneShot(9, core.Income, 100, "2024-02-20")}
	expense := []core.Entry{
		oneShot(5, core.Expense, 100, "2024-02-20"),
		oneShot(3, core.Expense, 100, "2024-02-20"),
	}
	got := agg.UpcomingOccurrences(income, expense, d("2024-02-01"), 10)
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	if got[0].EntryID != 9 || got[1].EntryID != 3 || got[2].EntryID != 5 {
		t.Fatalf("unexpected order: %d %d %d", got[0].EntryID, got[1].EntryID, got[2].EntryID)
	}
}

func TestUpcomingOccurrencesExtendsHorizon(t *testing.T) {
	agg := New(nil)
	income := []core.Entry{entry(1, core.Income, 100, "2024-06-15", core.Yearly, 1)}

	got := agg.UpcomingOccurrences(income, nil, d("2024-01-01"), 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 yearly occurrences, got %d", len(got))
	}
	if got[2].Date != d("2026-06-15") {
		t.Fatalf("third occurrence = %s", got[2].Date)
	}
}

func TestUpcomingOccurrencesStopsAtCeiling(t *testing.T) {
	agg := New(nil)
	income := []core.Entry{entry(1, core.Income, 100, "2024-06-15", core.Yearly, 2)}

	got := agg.UpcomingOccurrences(income, nil, d("2024-01-01"), 8)
	// 2024, 2026 and 2028 fit before 2029-01-01.
	if len(got) != 3 {
		t.Fatalf("expected 3 occurrences within five years, got %d", len(got))
	}
	if got := agg.UpcomingOccurrences(nil, nil, d("2024-01-01"), 8); len(got) != 0 {
		t.Fatalf("expected none, got %v", got)
	}
}

func TestUpcomingOccurrencesIncludesToday(t *testing.T) {
	agg := New(nil)
	expense := []core.Entry{entry(1, core.Expense, 100, "2024-01-10", core.Monthly, 1)}
	got := agg.UpcomingOccurrences(nil, expense, d("2024-03-10"), 1)
	if len(got) != 1 || got[0].Date != d("2024-03-10") {
		t.Fatalf("expected today's occurrence, got %v", got)
	}
}

func TestTotalsByWalletType(t *testing.T) {
	wallets := IndexWallets([]core.Wallet{
		{ID: 1, Name: "Bank", Type: core.Liquidity},
		{ID: 2, Name: "Cash", Type: core.Liquidity, Active: false},
		{ID: 3, Name: "Broker", Type: core.Invest},
	})
	lines := []core.SnapshotLine{
		{WalletID: 1, Amount: core.Cents(100000)},
		{WalletID: 2, Amount: core.Cents(-2500)},
		{WalletID: 3, Amount: core.Cents(500000)},
		{WalletID: 42, Amount: core.Cents(999999)}, // unknown wallet
	}

	got := TotalsByWalletType(lines, wallets)
	if got.Liquidity.Cents != 97500 || got.Investments.Cents != 500000 {
		t.Fatalf("unexpected totals %+v", got)
	}
	if got.NetWorth != got.Liquidity.Add(got.Investments) {
		t.Fatalf("net worth identity broken: %+v", got)
	}

	empty := TotalsByWalletType(nil, wallets)
	if empty.NetWorth != empty.Liquidity.Add(empty.Investments) {
		t.Fatalf("net worth identity broken on empty input")
	}
}

func TestBreakdownByWallet(t *testing.T) {
	wallets := IndexWallets([]core.Wallet{
		{ID: 1, Name: "Bank", Type: core.Liquidity},
		{ID: 2, Name: "Broker", Type: core.Invest},
		{ID: 3, Name: "Bank", Type: core.Liquidity},
	})
	lines := []core.SnapshotLine{
		{WalletID: 2, Amount: core.Cents(300)},
		{WalletID: 1, Amount: core.Cents(100)},
		{WalletID: 3, Amount: core.Cents(50)},
		{WalletID: 7, Amount: core.Cents(1)},
	}
	got := BreakdownByWallet(lines, wallets)
	if len(got) != 2 {
		t.Fatalf("expected 2 groups, got %v", got)
	}
	if got[0].Label != "Broker" || got[0].Value.Cents != 300 || got[1].Label != "Bank" || got[1].Value.Cents != 150 {
		t.Fatalf("unexpected breakdown %v", got)
	}

	invest := LinesOfType(lines, wallets, core.Invest)
	if len(invest) != 1 || invest[0].WalletID != 2 {
		t.Fatalf("unexpected invest lines %v", invest)
	}
}

func TestCategoryBreakdown(t *testing.T) {
	agg := New(nil)
	categories := []core.ExpenseCategory{
		{ID: 1, Name: "Home", Color: "#66D19E", Active: true},
		{ID: 2, Name: "Food", Color: "#C084FC", Active: true},
	}
	rent := entry(1, core.Expense, 80000, "2024-01-01", core.Monthly, 1)
	rent.CategoryID = int64p(1)
	groceries := entry(2, core.Expense, 5000, "2024-03-04", core.Weekly, 1) // 4, 11, 18, 25
	groceries.CategoryID = int64p(2)
	orphan := oneShot(3, core.Expense, 10000, "2024-03-09")
	orphan.CategoryID = int64p(99)
	loose := oneShot(4, core.Expense, 10000, "2024-03-10")
	outside := oneShot(5, core.Expense, 10000, "2024-04-01")
	outside.CategoryID = int64p(1)

	got := agg.CategoryBreakdown([]core.Entry{rent, groceries, orphan, loose, outside}, categories, d("2024-03-01"), d("2024-03-31"))
	if len(got) != 3 {
		t.Fatalf("expected 3 buckets, got %+v", got)
	}

	byLabel := map[string]CategoryBucket{}
	for _, b := range got {
		byLabel[b.Label] = b
	}
	if byLabel["Home"].Value.Cents != 80000 || byLabel["Home"].Color != "#66D19E" {
		t.Errorf("home bucket %+v", byLabel["Home"])
	}
	if byLabel["Food"].Value.Cents != 20000 {
		t.Errorf("food bucket %+v", byLabel["Food"])
	}
	if u := byLabel[UncategorizedLabel]; u.Value.Cents != 20000 || u.CategoryID != UncategorizedID {
		t.Errorf("uncategorized bucket %+v", u)
	}

	var sum float64
	for _, b := range got {
		sum += b.Pct
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("shares sum to %f, want 1", sum)
	}
}

func TestCategoryBreakdownCategoryZeroIsNotUncategorized(t *testing.T) {
	agg := New(nil)
	categories := []core.ExpenseCategory{{ID: 0, Name: "Legacy", Active: true}}
	legacy := oneShot(1, core.Expense, 3000, "2024-03-02")
	legacy.CategoryID = int64p(0)
	loose := oneShot(2, core.Expense, 1000, "2024-03-03")

	got := agg.CategoryBreakdown([]core.Entry{legacy, loose}, categories, d("2024-03-01"), d("2024-03-31"))
	if len(got) != 2 {
		t.Fatalf("expected 2 buckets, got %+v", got)
	}
	if got[0].Label != "Legacy" || got[0].CategoryID != 0 || got[0].Value.Cents != 3000 {
		t.Errorf("category 0 bucket %+v", got[0])
	}
	if got[1].Label != UncategorizedLabel || got[1].CategoryID != UncategorizedID || got[1].Value.Cents != 1000 {
		t.Errorf("uncategorized bucket %+v", got[1])
	}
}

func TestTotalsStayExactAtAmountBound(t *testing.T) {
	agg := New(nil)
	salary := entry(1, core.Income, core.MaxCents, "2024-01-01", core.Weekly, 1) // Jan 2024: 1, 8, 15, 22, 29
	oversized := entry(2, core.Income, 4_000_000_000_000_000_000, "2024-01-01", core.Weekly, 1)

	got := agg.TotalsForMonth([]core.Entry{salary, oversized}, nil, 2024, 1)
	if got.Income.Cents != 5*core.MaxCents {
		t.Fatalf("income = %d, want %d", got.Income.Cents, 5*core.MaxCents)
	}

	avg := agg.AverageMonthlyTotals([]core.Entry{salary, oversized}, nil, 2024, 12, 12)
	if !avg.Income.IsPositive() {
		t.Fatalf("average income wrapped: %s", avg.Income)
	}

	buckets := agg.CategoryBreakdown([]core.Entry{oversized}, nil, d("2024-01-01"), d("2024-01-31"))
	if len(buckets) != 0 {
		t.Fatalf("oversized entry counted: %+v", buckets)
	}
}

func TestCategoryBreakdownEmptyWindow(t *testing.T) {
	agg := New(nil)
	got := agg.CategoryBreakdown([]core.Entry{oneShot(1, core.Expense, 100, "2024-05-01")}, nil, d("2024-03-01"), d("2024-03-31"))
	if len(got) != 0 {
		t.Fatalf("expected no buckets, got %+v", got)
	}
	if share(0, 0) != 0 {
		t.Fatal("share with zero total must be 0")
	}
}

func TestChangeBetween(t *testing.T) {
	c := ChangeBetween(core.Cents(11000), core.Cents(10000))
	if c.Delta.Cents != 1000 || c.Pct != 0.1 {
		t.Fatalf("unexpected change %+v", c)
	}
	zero := ChangeBetween(core.Cents(500), core.Cents(0))
	if zero.Delta.Cents != 500 || zero.Pct != 0 {
		t.Fatalf("expected 0 pct on zero base, got %+v", zero)
	}
}

type countingExpander struct {
	calls int
}

func (c *countingExpander) OccurrencesInRange(e core.Entry, s, end core.Date) []core.Date {
	c.calls++
	return []core.Date{s}
}

func TestAggregatorUsesInjectedExpander(t *testing.T) {
	exp := &countingExpander{}
	agg := New(exp)
	got := agg.TotalsForMonth([]core.Entry{oneShot(1, core.Income, 700, "2000-01-01")}, nil, 2024, 1)
	if exp.calls != 1 || got.Income.Cents != 700 {
		t.Fatalf("calls=%d income=%d", exp.calls, got.Income.Cents)
	}
}
