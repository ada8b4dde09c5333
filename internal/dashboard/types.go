package dashboard

import (
	"github.com/shopspring/decimal"

	"bilancio/internal/core"
	"bilancio/internal/finance"
)

// Input is one consistent read of the store. The assembler never mutates it.
type Input struct {
	LatestLines   []core.SnapshotLine
	Snapshots     []core.Snapshot
	SnapshotLines map[int64][]core.SnapshotLine
	Wallets       []core.Wallet
	Income        []core.Entry
	Expense       []core.Entry
	Categories    []core.ExpenseCategory
}

type KPI struct {
	ID         string               `json:"id"`
	Label      string               `json:"label"`
	Value      core.Money           `json:"value"`
	DeltaValue core.Money           `json:"delta_value"`
	DeltaPct   float64              `json:"delta_pct"`
	Accent     string               `json:"accent,omitempty"`
	Breakdown  []finance.LabelValue `json:"breakdown,omitempty"`
}

type PortfolioPoint struct {
	Date        core.Date  `json:"date"`
	Total       core.Money `json:"total"`
	Liquidity   core.Money `json:"liquidity"`
	Investments core.Money `json:"investments"`
}

type DistributionItem struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Value core.Money `json:"value"`
	Color string     `json:"color"`
}

type CashflowMonth struct {
	Month   string     `json:"month"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
}

type CashflowSummary struct {
	AvgIncome  decimal.Decimal `json:"avg_income"`
	AvgExpense decimal.Decimal `json:"avg_expense"`
	AvgSavings decimal.Decimal `json:"avg_savings"`
	Window     int             `json:"window"`
	Months     []CashflowMonth `json:"months"`
}

type CategoryRow struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Value core.Money `json:"value"`
	Color string     `json:"color"`
	Pct   float64    `json:"pct"`
}

type RecurrenceRow struct {
	ID            string     `json:"id"`
	EntryID       int64      `json:"entry_id"`
	Date          core.Date  `json:"date"`
	Type          core.Kind  `json:"type"`
	Category      string     `json:"category"`
	CategoryColor string     `json:"category_color,omitempty"`
	Description   string     `json:"description"`
	Amount        core.Money `json:"amount"`
	Recurring     bool       `json:"recurring"`
}

// Issue flags an entry that was left out of every computation because its
// rule is malformed.
type Issue struct {
	Kind    core.Kind `json:"kind"`
	EntryID int64     `json:"entry_id"`
	Reason  string    `json:"reason"`
}

// Data is the complete view-model handed to presentation.
type Data struct {
	Today           core.Date          `json:"today"`
	KPIs            []KPI              `json:"kpis"`
	PortfolioSeries []PortfolioPoint   `json:"portfolio_series"`
	Distributions   []DistributionItem `json:"distributions"`
	Cashflow        CashflowSummary    `json:"cashflow"`
	Categories      []CategoryRow      `json:"categories"`
	Recurrences     []RecurrenceRow    `json:"recurrences"`
	Issues          []Issue            `json:"issues,omitempty"`
}
