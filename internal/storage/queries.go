package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Wallets

const listWalletsQuery = `SELECT id, name, type, currency, active FROM wallets ORDER BY id`

func (q *Queries) ListWallets(ctx context.Context) ([]Wallet, error) {
	rows, err := q.db.QueryContext(ctx, listWalletsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Wallet
	for rows.Next() {
		var i Wallet
		if err := rows.Scan(&i.ID, &i.Name, &i.Type, &i.Currency, &i.Active); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const walletExists = `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = ?)`

func (q *Queries) WalletExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := q.db.QueryRowContext(ctx, walletExists, id).Scan(&ok)
	return ok, err
}

const createWallet = `INSERT INTO wallets (name, type, currency, active) VALUES (?, ?, ?, ?) RETURNING id`

func (q *Queries) CreateWallet(ctx context.Context, w Wallet) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createWallet, w.Name, w.Type, w.Currency, w.Active).Scan(&id)
	return id, err
}

const updateWallet = `UPDATE wallets SET name = ?, type = ?, currency = ?, active = ? WHERE id = ?`

func (q *Queries) UpdateWallet(ctx context.Context, w Wallet) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateWallet, w.Name, w.Type, w.Currency, w.Active, w.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteWallet = `DELETE FROM wallets WHERE id = ?`

func (q *Queries) DeleteWallet(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteWallet, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Snapshots

const listSnapshotsQuery = `SELECT id, date FROM snapshots ORDER BY date, id`

func (q *Queries) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := q.db.QueryContext(ctx, listSnapshotsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Snapshot
	for rows.Next() {
		var i Snapshot
		if err := rows.Scan(&i.ID, &i.Date); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const latestSnapshotID = `SELECT id FROM snapshots ORDER BY date DESC, id DESC LIMIT 1`

func (q *Queries) LatestSnapshotID(ctx context.Context) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, latestSnapshotID).Scan(&id)
	return id, err
}

const snapshotExists = `SELECT EXISTS(SELECT 1 FROM snapshots WHERE id = ?)`

func (q *Queries) SnapshotExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := q.db.QueryRowContext(ctx, snapshotExists, id).Scan(&ok)
	return ok, err
}

const createSnapshot = `INSERT INTO snapshots (date) VALUES (?) RETURNING id`

func (q *Queries) CreateSnapshot(ctx context.Context, date string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createSnapshot, date).Scan(&id)
	return id, err
}

const deleteSnapshot = `DELETE FROM snapshots WHERE id = ?`

func (q *Queries) DeleteSnapshot(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSnapshot, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createSnapshotLine = `INSERT INTO snapshot_lines (snapshot_id, wallet_id, amount_cents) VALUES (?, ?, ?)`

func (q *Queries) CreateSnapshotLine(ctx context.Context, l SnapshotLine) error {
	_, err := q.db.ExecContext(ctx, createSnapshotLine, l.SnapshotID, l.WalletID, l.AmountCents)
	return err
}

const listSnapshotLines = `SELECT snapshot_id, wallet_id, amount_cents FROM snapshot_lines WHERE snapshot_id = ? ORDER BY id`

func (q *Queries) ListSnapshotLines(ctx context.Context, snapshotID int64) ([]SnapshotLine, error) {
	return q.scanLines(q.db.QueryContext(ctx, listSnapshotLines, snapshotID))
}

const listAllSnapshotLines = `SELECT snapshot_id, wallet_id, amount_cents FROM snapshot_lines ORDER BY snapshot_id, id`

func (q *Queries) ListAllSnapshotLines(ctx context.Context) ([]SnapshotLine, error) {
	return q.scanLines(q.db.QueryContext(ctx, listAllSnapshotLines))
}

func (q *Queries) scanLines(rows *sql.Rows, err error) ([]SnapshotLine, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SnapshotLine
	for rows.Next() {
		var i SnapshotLine
		if err := rows.Scan(&i.SnapshotID, &i.WalletID, &i.AmountCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// Categories

const listCategoriesQuery = `SELECT id, name, COALESCE(color, '#9B7BFF'), active FROM expense_categories ORDER BY name, id`

func (q *Queries) ListCategories(ctx context.Context) ([]ExpenseCategory, error) {
	rows, err := q.db.QueryContext(ctx, listCategoriesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExpenseCategory
	for rows.Next() {
		var i ExpenseCategory
		if err := rows.Scan(&i.ID, &i.Name, &i.Color, &i.Active); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createCategory = `INSERT INTO expense_categories (name, color, active) VALUES (?, ?, ?) RETURNING id`

func (q *Queries) CreateCategory(ctx context.Context, c ExpenseCategory) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createCategory, c.Name, c.Color, c.Active).Scan(&id)
	return id, err
}

const updateCategory = `UPDATE expense_categories SET name = ?, color = ?, active = ? WHERE id = ?`

func (q *Queries) UpdateCategory(ctx context.Context, c ExpenseCategory) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateCategory, c.Name, c.Color, c.Active, c.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCategory = `DELETE FROM expense_categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Entries

const (
	incomeColumns  = `id, name, amount_cents, start_date, recurrence_frequency, recurrence_interval, one_shot, active, wallet_id, NULL`
	expenseColumns = `id, name, amount_cents, start_date, recurrence_frequency, recurrence_interval, one_shot, active, wallet_id, expense_category_id`
)

const listIncomeEntries = `SELECT ` + incomeColumns + ` FROM income_entries ORDER BY id`

func (q *Queries) ListIncomeEntries(ctx context.Context) ([]EntryRow, error) {
	return q.scanEntries(q.db.QueryContext(ctx, listIncomeEntries))
}

const listExpenseEntries = `SELECT ` + expenseColumns + ` FROM expense_entries ORDER BY id`

func (q *Queries) ListExpenseEntries(ctx context.Context) ([]EntryRow, error) {
	return q.scanEntries(q.db.QueryContext(ctx, listExpenseEntries))
}

const getIncomeEntry = `SELECT ` + incomeColumns + ` FROM income_entries WHERE id = ?`

func (q *Queries) GetIncomeEntry(ctx context.Context, id int64) (EntryRow, error) {
	return scanEntry(q.db.QueryRowContext(ctx, getIncomeEntry, id))
}

const getExpenseEntry = `SELECT ` + expenseColumns + ` FROM expense_entries WHERE id = ?`

func (q *Queries) GetExpenseEntry(ctx context.Context, id int64) (EntryRow, error) {
	return scanEntry(q.db.QueryRowContext(ctx, getExpenseEntry, id))
}

const createIncomeEntry = `INSERT INTO income_entries
    (name, amount_cents, start_date, recurrence_frequency, recurrence_interval, one_shot, active, wallet_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

func (q *Queries) CreateIncomeEntry(ctx context.Context, p EntryParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createIncomeEntry,
		p.Name, p.AmountCents, p.StartDate, p.RecurrenceFrequency, p.RecurrenceInterval,
		p.OneShot, p.Active, p.WalletID,
	).Scan(&id)
	return id, err
}

const createExpenseEntry = `INSERT INTO expense_entries
    (name, amount_cents, start_date, recurrence_frequency, recurrence_interval, one_shot, active, wallet_id, expense_category_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

func (q *Queries) CreateExpenseEntry(ctx context.Context, p EntryParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createExpenseEntry,
		p.Name, p.AmountCents, p.StartDate, p.RecurrenceFrequency, p.RecurrenceInterval,
		p.OneShot, p.Active, p.WalletID, p.CategoryID,
	).Scan(&id)
	return id, err
}

const updateIncomeEntry = `UPDATE income_entries SET
    name = ?, amount_cents = ?, start_date = ?, recurrence_frequency = ?, recurrence_interval = ?,
    one_shot = ?, active = ?, wallet_id = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdateIncomeEntry(ctx context.Context, p EntryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateIncomeEntry,
		p.Name, p.AmountCents, p.StartDate, p.RecurrenceFrequency, p.RecurrenceInterval,
		p.OneShot, p.Active, p.WalletID, p.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateExpenseEntry = `UPDATE expense_entries SET
    name = ?, amount_cents = ?, start_date = ?, recurrence_frequency = ?, recurrence_interval = ?,
    one_shot = ?, active = ?, wallet_id = ?, expense_category_id = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdateExpenseEntry(ctx context.Context, p EntryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateExpenseEntry,
		p.Name, p.AmountCents, p.StartDate, p.RecurrenceFrequency, p.RecurrenceInterval,
		p.OneShot, p.Active, p.WalletID, p.CategoryID, p.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteIncomeEntry = `DELETE FROM income_entries WHERE id = ?`

func (q *Queries) DeleteIncomeEntry(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteIncomeEntry, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpenseEntry = `DELETE FROM expense_entries WHERE id = ?`

func (q *Queries) DeleteExpenseEntry(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpenseEntry, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (EntryRow, error) {
	var i EntryRow
	err := row.Scan(
		&i.ID, &i.Name, &i.AmountCents, &i.StartDate,
		&i.RecurrenceFrequency, &i.RecurrenceInterval,
		&i.OneShot, &i.Active, &i.WalletID, &i.CategoryID,
	)
	return i, err
}

func (q *Queries) scanEntries(rows *sql.Rows, err error) ([]EntryRow, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EntryRow
	for rows.Next() {
		i, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// Notifications

const getLastNotified = `SELECT last_date FROM occurrence_notifications WHERE kind = ? AND entry_id = ?`

func (q *Queries) GetLastNotified(ctx context.Context, kind string, entryID int64) (string, error) {
	var date string
	err := q.db.QueryRowContext(ctx, getLastNotified, kind, entryID).Scan(&date)
	return date, err
}

const upsertNotified = `INSERT INTO occurrence_notifications (kind, entry_id, last_date) VALUES (?, ?, ?)
ON CONFLICT (kind, entry_id) DO UPDATE SET last_date = excluded.last_date`

func (q *Queries) UpsertNotified(ctx context.Context, kind string, entryID int64, date string) error {
	_, err := q.db.ExecContext(ctx, upsertNotified, kind, entryID, date)
	return err
}

const deleteNotified = `DELETE FROM occurrence_notifications WHERE kind = ? AND entry_id = ?`

func (q *Queries) DeleteNotified(ctx context.Context, kind string, entryID int64) error {
	_, err := q.db.ExecContext(ctx, deleteNotified, kind, entryID)
	return err
}

// resetTables lists every table in child-first order.
var resetTables = []string{
	"occurrence_notifications",
	"snapshot_lines",
	"snapshots",
	"expense_entries",
	"income_entries",
	"expense_categories",
	"wallets",
}

func (q *Queries) DeleteAll(ctx context.Context) error {
	for _, table := range resetTables {
		if _, err := q.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
