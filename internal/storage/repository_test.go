package storage

import (
	"context"
	"path/filepath"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/ports"
	"bilancio/internal/ports/storetest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.Store { return newTestRepo(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bilancio.db")
	repo, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	repo.Close()

	if err := RunMigrations(path); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
	version, dirty, err := MigrationVersion(path)
	if err != nil || dirty || version != 1 {
		t.Fatalf("MigrationVersion = %d, %v, %v", version, dirty, err)
	}
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bilancio.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	e, err := repo.CreateEntry(ctx, core.Entry{
		Kind: core.Income, Name: "Salary", Amount: core.Cents(300000),
		StartDate: core.MustDate("2024-02-29"), Frequency: core.Yearly, Interval: 1, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	got, err := repo.GetEntry(ctx, core.Income, e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if !got.StartDate.Equal(core.MustDate("2024-02-29")) || got.Frequency != core.Yearly || got.WalletID != nil || got.CategoryID != nil {
		t.Fatalf("round trip lost data: %+v", got)
	}
}

func TestDeleteEntryClearsNotification(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e, err := repo.CreateEntry(ctx, core.Entry{
		Kind: core.Expense, Name: "Rent", Amount: core.Cents(90000),
		StartDate: core.MustDate("2025-01-05"), Frequency: core.Monthly, Interval: 1, Active: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkNotified(ctx, core.Expense, e.ID, core.MustDate("2025-02-05")); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteEntry(ctx, core.Expense, e.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := repo.LastNotified(ctx, core.Expense, e.ID); ok {
		t.Fatal("notification survived entry deletion")
	}
}
