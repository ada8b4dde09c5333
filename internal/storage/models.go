package storage

import "database/sql"

type Wallet struct {
	ID       int64
	Name     string
	Type     string
	Currency string
	Active   bool
}

type Snapshot struct {
	ID   int64
	Date string
}

type SnapshotLine struct {
	SnapshotID  int64
	WalletID    int64
	AmountCents int64
}

type ExpenseCategory struct {
	ID     int64
	Name   string
	Color  string
	Active bool
}

// EntryRow is a row of income_entries or expense_entries. CategoryID is
// always null for income.
type EntryRow struct {
	ID                  int64
	Name                string
	AmountCents         int64
	StartDate           string
	RecurrenceFrequency sql.NullString
	RecurrenceInterval  sql.NullInt64
	OneShot             bool
	Active              bool
	WalletID            sql.NullInt64
	CategoryID          sql.NullInt64
}

type EntryParams struct {
	ID                  int64
	Name                string
	AmountCents         int64
	StartDate           string
	RecurrenceFrequency sql.NullString
	RecurrenceInterval  sql.NullInt64
	OneShot             bool
	Active              bool
	WalletID            sql.NullInt64
	CategoryID          sql.NullInt64
}
