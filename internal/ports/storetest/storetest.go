// Package storetest holds behavioural tests shared by every ports.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/ports"
)

// Run exercises s. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) ports.Store) {
	t.Run("entries", func(t *testing.T) { testEntries(t, newStore(t)) })
	t.Run("wallets and snapshots", func(t *testing.T) { testSnapshots(t, newStore(t)) })
	t.Run("categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("reset", func(t *testing.T) { testReset(t, newStore(t)) })
	t.Run("read view", func(t *testing.T) { testReadView(t, newStore(t)) })
}

func int64p(v int64) *int64 { return &v }

func testEntries(t *testing.T, s ports.Store) {
	ctx := context.Background()

	cat, err := s.CreateCategory(ctx, core.ExpenseCategory{Name: "Home", Active: true})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	rent, err := s.CreateEntry(ctx, core.Entry{
		Kind:       core.Expense,
		Name:       "Rent",
		Amount:     core.Cents(90000),
		StartDate:  core.MustDate("2024-01-31"),
		Frequency:  core.Monthly,
		Interval:   1,
		Active:     true,
		CategoryID: int64p(cat.ID),
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if rent.ID == 0 {
		t.Fatal("CreateEntry did not assign an id")
	}
	salary, err := s.CreateEntry(ctx, core.Entry{
		Kind:      core.Income,
		Name:      "Salary",
		Amount:    core.Cents(300000),
		StartDate: core.MustDate("2024-01-27"),
		Frequency: core.Monthly,
		Interval:  1,
		Active:    true,
	})
	if err != nil {
		t.Fatalf("CreateEntry income: %v", err)
	}

	got, err := s.GetEntry(ctx, core.Expense, rent.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Name != "Rent" || got.Amount.Cents != 90000 || !got.StartDate.Equal(rent.StartDate) ||
		got.Frequency != core.Monthly || got.CategoryID == nil || *got.CategoryID != cat.ID {
		t.Fatalf("GetEntry = %+v", got)
	}

	if _, err := s.CreateEntry(ctx, core.Entry{Kind: core.Expense, Name: "", Amount: core.Cents(1), StartDate: core.MustDate("2024-01-01"), OneShot: true}); err == nil {
		t.Fatal("expected validation error for empty name")
	}

	got.Amount = core.Cents(95000)
	got.Interval = 2
	if err := s.UpdateEntry(ctx, got); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	updated, _ := s.GetEntry(ctx, core.Expense, rent.ID)
	if updated.Amount.Cents != 95000 || updated.Interval != 2 {
		t.Fatalf("update not persisted: %+v", updated)
	}

	incomes, err := s.ListEntries(ctx, core.Income)
	if err != nil || len(incomes) != 1 || incomes[0].ID != salary.ID || incomes[0].Kind != core.Income {
		t.Fatalf("ListEntries(income) = %+v, %v", incomes, err)
	}

	if err := s.DeleteEntry(ctx, core.Expense, rent.ID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if _, err := s.GetEntry(ctx, core.Expense, rent.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetEntry after delete: %v", err)
	}
	if err := s.DeleteEntry(ctx, core.Expense, rent.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second DeleteEntry: %v", err)
	}
	if err := s.UpdateEntry(ctx, rent); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("UpdateEntry on missing entry: %v", err)
	}
}

func testSnapshots(t *testing.T, s ports.Store) {
	ctx := context.Background()

	if lines, err := s.LatestSnapshotLines(ctx); err != nil || len(lines) != 0 {
		t.Fatalf("LatestSnapshotLines on empty store = %v, %v", lines, err)
	}

	bank, err := s.CreateWallet(ctx, core.Wallet{Name: "Bank", Type: core.Liquidity, Currency: "EUR", Active: true})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	broker, err := s.CreateWallet(ctx, core.Wallet{Name: "Broker", Type: core.Invest, Currency: "EUR", Active: true})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	if _, err := s.CreateWallet(ctx, core.Wallet{Name: "Bad", Type: "SAVINGS", Currency: "EUR"}); err == nil {
		t.Fatal("expected wallet type validation error")
	}

	broker.Active = false
	if err := s.UpdateWallet(ctx, broker); err != nil {
		t.Fatalf("UpdateWallet: %v", err)
	}
	wallets, err := s.ListWallets(ctx)
	if err != nil || len(wallets) != 2 || wallets[1].Active {
		t.Fatalf("ListWallets = %+v, %v", wallets, err)
	}

	feb, err := s.CreateSnapshot(ctx, core.MustDate("2025-02-01"), []core.SnapshotLine{
		{WalletID: bank.ID, Amount: core.Cents(110000)},
		{WalletID: broker.ID, Amount: core.Cents(-500)},
	})
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	jan, err := s.CreateSnapshot(ctx, core.MustDate("2025-01-01"), []core.SnapshotLine{
		{WalletID: bank.ID, Amount: core.Cents(100000)},
	})
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	if _, err := s.CreateSnapshot(ctx, core.MustDate("2025-03-01"), []core.SnapshotLine{
		{WalletID: bank.ID, Amount: core.Cents(1)},
		{WalletID: bank.ID, Amount: core.Cents(2)},
	}); !errors.Is(err, core.ErrDuplicateWallet) {
		t.Fatalf("duplicate wallet error = %v", err)
	}
	if _, err := s.CreateSnapshot(ctx, core.MustDate("2025-03-01"), []core.SnapshotLine{
		{WalletID: 999, Amount: core.Cents(1)},
	}); err == nil {
		t.Fatal("expected error for unknown wallet")
	}

	snaps, err := s.ListSnapshots(ctx)
	if err != nil || len(snaps) != 2 || snaps[0].ID != jan.ID || snaps[1].ID != feb.ID {
		t.Fatalf("ListSnapshots = %+v, %v", snaps, err)
	}

	latest, err := s.LatestSnapshotLines(ctx)
	if err != nil || len(latest) != 2 {
		t.Fatalf("LatestSnapshotLines = %+v, %v", latest, err)
	}
	for _, l := range latest {
		if l.SnapshotID != feb.ID {
			t.Fatalf("latest line from snapshot %d", l.SnapshotID)
		}
		if l.WalletID == broker.ID && l.Amount.Cents != -500 {
			t.Fatalf("negative balance not preserved: %+v", l)
		}
	}

	all, err := s.AllSnapshotLines(ctx)
	if err != nil || len(all[jan.ID]) != 1 || len(all[feb.ID]) != 2 {
		t.Fatalf("AllSnapshotLines = %+v, %v", all, err)
	}

	if err := s.DeleteWallet(ctx, broker.ID); err != nil {
		t.Fatalf("DeleteWallet: %v", err)
	}
	lines, err := s.SnapshotLines(ctx, feb.ID)
	if err != nil || len(lines) != 1 || lines[0].WalletID != bank.ID {
		t.Fatalf("lines after wallet delete = %+v, %v", lines, err)
	}

	if err := s.DeleteSnapshot(ctx, feb.ID); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	latest, _ = s.LatestSnapshotLines(ctx)
	if len(latest) != 1 || latest[0].SnapshotID != jan.ID {
		t.Fatalf("latest after delete = %+v", latest)
	}
	if _, err := s.SnapshotLines(ctx, feb.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("SnapshotLines on deleted snapshot: %v", err)
	}
}

func testCategories(t *testing.T, s ports.Store) {
	ctx := context.Background()

	travel, err := s.CreateCategory(ctx, core.ExpenseCategory{Name: "Travel", Color: "#5C9DFF", Active: true})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	food, err := s.CreateCategory(ctx, core.ExpenseCategory{Name: "Food", Active: true})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if food.Color != core.DefaultCategoryColor {
		t.Fatalf("default colour = %q", food.Color)
	}
	if _, err := s.CreateCategory(ctx, core.ExpenseCategory{Name: "Bad", Color: "blue"}); !errors.Is(err, core.ErrInvalidColor) {
		t.Fatalf("colour validation = %v", err)
	}

	cats, err := s.ListCategories(ctx)
	if err != nil || len(cats) != 2 || cats[0].Name != "Food" || cats[1].Name != "Travel" {
		t.Fatalf("ListCategories = %+v, %v", cats, err)
	}

	travel.Active = false
	if err := s.UpdateCategory(ctx, travel); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}

	e, err := s.CreateEntry(ctx, core.Entry{
		Kind: core.Expense, Name: "Flight", Amount: core.Cents(20000),
		StartDate: core.MustDate("2025-06-01"), OneShot: true, Active: true,
		CategoryID: int64p(travel.ID),
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if err := s.DeleteCategory(ctx, travel.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	got, err := s.GetEntry(ctx, core.Expense, e.ID)
	if err != nil || got.CategoryID != nil {
		t.Fatalf("entry after category delete = %+v, %v", got, err)
	}
	if err := s.DeleteCategory(ctx, travel.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second DeleteCategory: %v", err)
	}
}

func testNotifications(t *testing.T, s ports.Store) {
	ctx := context.Background()

	if _, ok, err := s.LastNotified(ctx, core.Expense, 1); err != nil || ok {
		t.Fatalf("LastNotified on empty store = %v, %v", ok, err)
	}
	day := core.MustDate("2025-03-05")
	if err := s.MarkNotified(ctx, core.Expense, 1, day); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}
	next := core.MustDate("2025-04-05")
	if err := s.MarkNotified(ctx, core.Expense, 1, next); err != nil {
		t.Fatalf("MarkNotified again: %v", err)
	}
	got, ok, err := s.LastNotified(ctx, core.Expense, 1)
	if err != nil || !ok || !got.Equal(next) {
		t.Fatalf("LastNotified = %s, %v, %v", got, ok, err)
	}
	if _, ok, _ := s.LastNotified(ctx, core.Income, 1); ok {
		t.Fatal("notifications must be tracked per kind")
	}
}

func testReset(t *testing.T, s ports.Store) {
	ctx := context.Background()
	w, err := s.CreateWallet(ctx, core.Wallet{Name: "Bank", Type: core.Liquidity, Currency: "EUR", Active: true})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	if _, err := s.CreateSnapshot(ctx, core.MustDate("2025-01-01"), []core.SnapshotLine{{WalletID: w.ID, Amount: core.Cents(1)}}); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if _, err := s.CreateEntry(ctx, core.Entry{Kind: core.Income, Name: "Bonus", Amount: core.Cents(1), StartDate: core.MustDate("2025-01-01"), OneShot: true, Active: true}); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	wallets, _ := s.ListWallets(ctx)
	snaps, _ := s.ListSnapshots(ctx)
	income, _ := s.ListEntries(ctx, core.Income)
	if len(wallets) != 0 || len(snaps) != 0 || len(income) != 0 {
		t.Fatalf("store not empty after Reset: %d wallets, %d snapshots, %d incomes", len(wallets), len(snaps), len(income))
	}
}

func testReadView(t *testing.T, s ports.Store) {
	ctx := context.Background()

	empty, err := s.ReadView(ctx)
	if err != nil {
		t.Fatalf("ReadView on empty store: %v", err)
	}
	if len(empty.Wallets) != 0 || len(empty.Snapshots) != 0 || empty.Latest != nil {
		t.Fatalf("empty view = %+v", empty)
	}

	bank, err := s.CreateWallet(ctx, core.Wallet{Name: "Bank", Type: core.Liquidity, Currency: "EUR", Active: true})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	cat, err := s.CreateCategory(ctx, core.ExpenseCategory{Name: "Home", Active: true})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	older, err := s.CreateSnapshot(ctx, core.MustDate("2024-01-31"), []core.SnapshotLine{{WalletID: bank.ID, Amount: core.Cents(1000)}})
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	// Inserted later but dated earlier: Latest follows the date.
	if _, err := s.CreateSnapshot(ctx, core.MustDate("2023-12-31"), []core.SnapshotLine{{WalletID: bank.ID, Amount: core.Cents(500)}}); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if _, err := s.CreateEntry(ctx, core.Entry{Kind: core.Income, Name: "Salary", Amount: core.Cents(300000), StartDate: core.MustDate("2024-01-27"), Frequency: core.Monthly, Interval: 1, Active: true}); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if _, err := s.CreateEntry(ctx, core.Entry{Kind: core.Expense, Name: "Rent", Amount: core.Cents(90000), StartDate: core.MustDate("2024-01-05"), Frequency: core.Monthly, Interval: 1, Active: true, CategoryID: int64p(cat.ID)}); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	v, err := s.ReadView(ctx)
	if err != nil {
		t.Fatalf("ReadView: %v", err)
	}
	if len(v.Wallets) != 1 || len(v.Categories) != 1 || len(v.Income) != 1 || len(v.Expense) != 1 {
		t.Fatalf("view = %+v", v)
	}
	if len(v.Snapshots) != 2 || !v.Snapshots[1].Date.Equal(core.MustDate("2024-01-31")) {
		t.Fatalf("snapshots not ordered by date: %+v", v.Snapshots)
	}
	if len(v.Lines) != 2 || len(v.Lines[older.ID]) != 1 {
		t.Fatalf("lines = %+v", v.Lines)
	}
	if len(v.Latest) != 1 || v.Latest[0].Amount.Cents != 1000 {
		t.Fatalf("latest = %+v", v.Latest)
	}
}
