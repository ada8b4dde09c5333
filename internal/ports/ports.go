// Package ports declares the persistence interfaces the services depend on.
// internal/memory and internal/storage both satisfy Store.
package ports

import (
	"context"

	"bilancio/internal/core"
)

type (
	// EntryStore persists income and expense entries. Both kinds share an id
	// space per kind: (kind, id) identifies an entry.
	EntryStore interface {
		ListEntries(ctx context.Context, kind core.Kind) ([]core.Entry, error)
		GetEntry(ctx context.Context, kind core.Kind, id int64) (core.Entry, error)
		// CreateEntry assigns an id and returns the stored entry.
		CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error)
		UpdateEntry(ctx context.Context, e core.Entry) error
		DeleteEntry(ctx context.Context, kind core.Kind, id int64) error
	}

	WalletStore interface {
		ListWallets(ctx context.Context) ([]core.Wallet, error)
		CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error)
		UpdateWallet(ctx context.Context, w core.Wallet) error
		DeleteWallet(ctx context.Context, id int64) error
	}

	// SnapshotStore persists dated balance snapshots with one line per wallet.
	SnapshotStore interface {
		// ListSnapshots returns snapshots ordered by date then id.
		ListSnapshots(ctx context.Context) ([]core.Snapshot, error)
		SnapshotLines(ctx context.Context, snapshotID int64) ([]core.SnapshotLine, error)
		// AllSnapshotLines returns every line grouped by snapshot id.
		AllSnapshotLines(ctx context.Context) (map[int64][]core.SnapshotLine, error)
		// LatestSnapshotLines returns the lines of the most recent snapshot,
		// or nil when there is none.
		LatestSnapshotLines(ctx context.Context) ([]core.SnapshotLine, error)
		CreateSnapshot(ctx context.Context, date core.Date, lines []core.SnapshotLine) (core.Snapshot, error)
		DeleteSnapshot(ctx context.Context, id int64) error
	}

	CategoryStore interface {
		// ListCategories returns categories ordered by name.
		ListCategories(ctx context.Context) ([]core.ExpenseCategory, error)
		CreateCategory(ctx context.Context, c core.ExpenseCategory) (core.ExpenseCategory, error)
		UpdateCategory(ctx context.Context, c core.ExpenseCategory) error
		DeleteCategory(ctx context.Context, id int64) error
	}

	// NotificationStore remembers the last occurrence date announced per
	// entry so the recurring worker never notifies twice.
	NotificationStore interface {
		LastNotified(ctx context.Context, kind core.Kind, entryID int64) (core.Date, bool, error)
		MarkNotified(ctx context.Context, kind core.Kind, entryID int64, date core.Date) error
	}

	// View is one consistent read of every table the dashboard needs.
	View struct {
		Wallets    []core.Wallet
		Snapshots  []core.Snapshot
		Lines      map[int64][]core.SnapshotLine
		Latest     []core.SnapshotLine
		Income     []core.Entry
		Expense    []core.Entry
		Categories []core.ExpenseCategory
	}

	// ViewReader reads a View without any write landing in between.
	ViewReader interface {
		ReadView(ctx context.Context) (View, error)
	}

	Store interface {
		ViewReader
		EntryStore
		WalletStore
		SnapshotStore
		CategoryStore
		NotificationStore
		// Reset deletes every record.
		Reset(ctx context.Context) error
		Close() error
	}
)
