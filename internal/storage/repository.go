package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/ports"

	_ "modernc.org/sqlite"
)

var _ ports.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *applog.Logger
}

// dsn enables foreign keys so wallet and category deletes cascade.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; serializing here avoids SQLITE_BUSY on writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func notFound(affected int64, err error, what string, id int64) error {
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s %d: %w", what, id, core.ErrNotFound)
	}
	return nil
}

// ReadView runs every dashboard read inside one transaction so no write
// lands between them.
func (r *SQLiteRepository) ReadView(ctx context.Context) (ports.View, error) {
	var v ports.View
	err := r.withTx(ctx, func(q *Queries) (err error) {
		if v.Wallets, err = listWallets(ctx, q); err != nil {
			return err
		}
		if v.Snapshots, err = listSnapshots(ctx, q); err != nil {
			return err
		}
		if v.Lines, err = allSnapshotLines(ctx, q); err != nil {
			return err
		}
		if v.Latest, err = latestSnapshotLines(ctx, q); err != nil {
			return err
		}
		if v.Income, err = listEntries(ctx, q, core.Income); err != nil {
			return err
		}
		if v.Expense, err = listEntries(ctx, q, core.Expense); err != nil {
			return err
		}
		v.Categories, err = listCategories(ctx, q)
		return err
	})
	if err != nil {
		return ports.View{}, fmt.Errorf("read view: %w", err)
	}
	return v, nil
}

// Entries

func (r *SQLiteRepository) ListEntries(ctx context.Context, kind core.Kind) ([]core.Entry, error) {
	return listEntries(ctx, r.queries, kind)
}

func listEntries(ctx context.Context, q *Queries, kind core.Kind) ([]core.Entry, error) {
	var rows []EntryRow
	var err error
	switch kind {
	case core.Income:
		rows, err = q.ListIncomeEntries(ctx)
	case core.Expense:
		rows, err = q.ListExpenseEntries(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", kind, err)
	}
	out := make([]core.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := entryFromRow(kind, row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, kind core.Kind, id int64) (core.Entry, error) {
	var row EntryRow
	var err error
	switch kind {
	case core.Income:
		row, err = r.queries.GetIncomeEntry(ctx, id)
	case core.Expense:
		row, err = r.queries.GetExpenseEntry(ctx, id)
	default:
		return core.Entry{}, fmt.Errorf("%w: %q", core.ErrInvalidKind, kind)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get %s entry: %w", kind, err)
	}
	return entryFromRow(kind, row)
}

func (r *SQLiteRepository) CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	p := entryParams(e)
	var err error
	if e.Kind == core.Income {
		e.ID, err = r.queries.CreateIncomeEntry(ctx, p)
	} else {
		e.ID, err = r.queries.CreateExpenseEntry(ctx, p)
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("create %s entry: %w", e.Kind, err)
	}
	r.logger.DebugContext(ctx, "Entry saved to SQLite",
		applog.FieldKind, e.Kind, applog.FieldEntryID, e.ID, applog.FieldAmount, e.Amount.Cents)
	return e, nil
}

func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	p := entryParams(e)
	var n int64
	var err error
	if e.Kind == core.Income {
		n, err = r.queries.UpdateIncomeEntry(ctx, p)
	} else {
		n, err = r.queries.UpdateExpenseEntry(ctx, p)
	}
	if err != nil {
		return fmt.Errorf("update %s entry: %w", e.Kind, err)
	}
	return notFound(n, nil, string(e.Kind), e.ID)
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, kind core.Kind, id int64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidKind, kind)
	}
	return r.withTx(ctx, func(q *Queries) error {
		var n int64
		var err error
		if kind == core.Income {
			n, err = q.DeleteIncomeEntry(ctx, id)
		} else {
			n, err = q.DeleteExpenseEntry(ctx, id)
		}
		if err := notFound(n, err, string(kind), id); err != nil {
			return err
		}
		return q.DeleteNotified(ctx, string(kind), id)
	})
}

// Wallets

func (r *SQLiteRepository) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	return listWallets(ctx, r.queries)
}

func listWallets(ctx context.Context, q *Queries) ([]core.Wallet, error) {
	rows, err := q.ListWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	out := make([]core.Wallet, len(rows))
	for i, w := range rows {
		out[i] = core.Wallet{ID: w.ID, Name: w.Name, Type: core.WalletType(w.Type), Currency: w.Currency, Active: w.Active}
	}
	return out, nil
}

func (r *SQLiteRepository) CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	if err := w.Validate(); err != nil {
		return core.Wallet{}, err
	}
	id, err := r.queries.CreateWallet(ctx, walletRow(w))
	if err != nil {
		return core.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	w.ID = id
	return w, nil
}

func (r *SQLiteRepository) UpdateWallet(ctx context.Context, w core.Wallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	n, err := r.queries.UpdateWallet(ctx, walletRow(w))
	return notFound(n, err, "wallet", w.ID)
}

func (r *SQLiteRepository) DeleteWallet(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteWallet(ctx, id)
	return notFound(n, err, "wallet", id)
}

// Snapshots

func (r *SQLiteRepository) ListSnapshots(ctx context.Context) ([]core.Snapshot, error) {
	return listSnapshots(ctx, r.queries)
}

func listSnapshots(ctx context.Context, q *Queries) ([]core.Snapshot, error) {
	rows, err := q.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]core.Snapshot, len(rows))
	for i, s := range rows {
		d, err := core.ParseDate(s.Date)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", s.ID, err)
		}
		out[i] = core.Snapshot{ID: s.ID, Date: d}
	}
	return out, nil
}

func (r *SQLiteRepository) SnapshotLines(ctx context.Context, snapshotID int64) ([]core.SnapshotLine, error) {
	ok, err := r.queries.SnapshotExists(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("check snapshot: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("snapshot %d: %w", snapshotID, core.ErrNotFound)
	}
	rows, err := r.queries.ListSnapshotLines(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("list snapshot lines: %w", err)
	}
	return linesFromRows(rows), nil
}

func (r *SQLiteRepository) AllSnapshotLines(ctx context.Context) (map[int64][]core.SnapshotLine, error) {
	return allSnapshotLines(ctx, r.queries)
}

func allSnapshotLines(ctx context.Context, q *Queries) (map[int64][]core.SnapshotLine, error) {
	rows, err := q.ListAllSnapshotLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshot lines: %w", err)
	}
	out := make(map[int64][]core.SnapshotLine)
	for _, l := range linesFromRows(rows) {
		out[l.SnapshotID] = append(out[l.SnapshotID], l)
	}
	return out, nil
}

func (r *SQLiteRepository) LatestSnapshotLines(ctx context.Context) ([]core.SnapshotLine, error) {
	return latestSnapshotLines(ctx, r.queries)
}

func latestSnapshotLines(ctx context.Context, q *Queries) ([]core.SnapshotLine, error) {
	id, err := q.LatestSnapshotID(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	rows, err := q.ListSnapshotLines(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list snapshot lines: %w", err)
	}
	return linesFromRows(rows), nil
}

// CreateSnapshot stores the snapshot and its lines atomically.
func (r *SQLiteRepository) CreateSnapshot(ctx context.Context, date core.Date, lines []core.SnapshotLine) (core.Snapshot, error) {
	if err := core.ValidateSnapshot(core.Snapshot{Date: date}, lines); err != nil {
		return core.Snapshot{}, err
	}
	var sn core.Snapshot
	err := r.withTx(ctx, func(q *Queries) error {
		for _, l := range lines {
			ok, err := q.WalletExists(ctx, l.WalletID)
			if err != nil {
				return fmt.Errorf("check wallet: %w", err)
			}
			if !ok {
				return fmt.Errorf("wallet %d: %w", l.WalletID, core.ErrNotFound)
			}
		}
		id, err := q.CreateSnapshot(ctx, date.String())
		if err != nil {
			return fmt.Errorf("create snapshot: %w", err)
		}
		for _, l := range lines {
			if err := q.CreateSnapshotLine(ctx, SnapshotLine{SnapshotID: id, WalletID: l.WalletID, AmountCents: l.Amount.Cents}); err != nil {
				return fmt.Errorf("create snapshot line: %w", err)
			}
		}
		sn = core.Snapshot{ID: id, Date: date}
		return nil
	})
	if err != nil {
		return core.Snapshot{}, err
	}
	r.logger.DebugContext(ctx, "Snapshot saved to SQLite", applog.FieldSnapshotID, sn.ID, "lines", len(lines))
	return sn, nil
}

func (r *SQLiteRepository) DeleteSnapshot(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteSnapshot(ctx, id)
	return notFound(n, err, "snapshot", id)
}

// Categories

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.ExpenseCategory, error) {
	return listCategories(ctx, r.queries)
}

func listCategories(ctx context.Context, q *Queries) ([]core.ExpenseCategory, error) {
	rows, err := q.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.ExpenseCategory, len(rows))
	for i, c := range rows {
		out[i] = core.ExpenseCategory{ID: c.ID, Name: c.Name, Color: c.Color, Active: c.Active}
	}
	return out, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}
	if c.Color == "" {
		c.Color = core.DefaultCategoryColor
	}
	id, err := r.queries.CreateCategory(ctx, ExpenseCategory{Name: c.Name, Color: c.Color, Active: c.Active})
	if err != nil {
		return core.ExpenseCategory{}, fmt.Errorf("create category: %w", err)
	}
	c.ID = id
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.ExpenseCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Color == "" {
		c.Color = core.DefaultCategoryColor
	}
	n, err := r.queries.UpdateCategory(ctx, ExpenseCategory{ID: c.ID, Name: c.Name, Color: c.Color, Active: c.Active})
	return notFound(n, err, "category", c.ID)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteCategory(ctx, id)
	return notFound(n, err, "category", id)
}

// Notifications

func (r *SQLiteRepository) LastNotified(ctx context.Context, kind core.Kind, entryID int64) (core.Date, bool, error) {
	s, err := r.queries.GetLastNotified(ctx, string(kind), entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Date{}, false, nil
	}
	if err != nil {
		return core.Date{}, false, fmt.Errorf("get last notified: %w", err)
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, false, err
	}
	return d, true, nil
}

func (r *SQLiteRepository) MarkNotified(ctx context.Context, kind core.Kind, entryID int64, date core.Date) error {
	if err := r.queries.UpsertNotified(ctx, string(kind), entryID, date.String()); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Reset(ctx context.Context) error {
	err := r.withTx(ctx, func(q *Queries) error { return q.DeleteAll(ctx) })
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	r.logger.InfoContext(ctx, "All data deleted", applog.FieldOperation, applog.OpReset)
	return nil
}

func entryFromRow(kind core.Kind, row EntryRow) (core.Entry, error) {
	start, err := core.ParseDate(row.StartDate)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%s %d: %w", kind, row.ID, err)
	}
	e := core.Entry{
		ID:        row.ID,
		Kind:      kind,
		Name:      row.Name,
		Amount:    core.Cents(row.AmountCents),
		StartDate: start,
		Frequency: core.Frequency(row.RecurrenceFrequency.String),
		Interval:  int(row.RecurrenceInterval.Int64),
		OneShot:   row.OneShot,
		Active:    row.Active,
	}
	if row.WalletID.Valid {
		v := row.WalletID.Int64
		e.WalletID = &v
	}
	if kind == core.Expense && row.CategoryID.Valid {
		v := row.CategoryID.Int64
		e.CategoryID = &v
	}
	return e, nil
}

func entryParams(e core.Entry) EntryParams {
	p := EntryParams{
		ID:          e.ID,
		Name:        e.Name,
		AmountCents: e.Amount.Cents,
		StartDate:   e.StartDate.String(),
		OneShot:     e.OneShot,
		Active:      e.Active,
	}
	if e.Frequency != "" {
		p.RecurrenceFrequency = sql.NullString{String: string(e.Frequency), Valid: true}
	}
	if e.Interval != 0 {
		p.RecurrenceInterval = sql.NullInt64{Int64: int64(e.Interval), Valid: true}
	}
	if e.WalletID != nil {
		p.WalletID = sql.NullInt64{Int64: *e.WalletID, Valid: true}
	}
	if e.CategoryID != nil {
		p.CategoryID = sql.NullInt64{Int64: *e.CategoryID, Valid: true}
	}
	return p
}

func walletRow(w core.Wallet) Wallet {
	return Wallet{ID: w.ID, Name: w.Name, Type: string(w.Type), Currency: w.Currency, Active: w.Active}
}

func linesFromRows(rows []SnapshotLine) []core.SnapshotLine {
	out := make([]core.SnapshotLine, len(rows))
	for i, l := range rows {
		out[i] = core.SnapshotLine{SnapshotID: l.SnapshotID, WalletID: l.WalletID, Amount: core.Cents(l.AmountCents)}
	}
	return out
}
