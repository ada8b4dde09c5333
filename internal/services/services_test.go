package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/memory"
)

func d(s string) core.Date { return core.MustDate(s) }

func int64p(v int64) *int64 { return &v }

type fakePublisher struct {
	mu      sync.Mutex
	changed []*amqp.DataChangedMessage
	due     []*amqp.OccurrenceDueMessage
	err     error
}

func (p *fakePublisher) PublishDataChanged(_ context.Context, msg *amqp.DataChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.changed = append(p.changed, msg)
	return nil
}

func (p *fakePublisher) PublishOccurrenceDue(_ context.Context, msg *amqp.OccurrenceDueMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.due = append(p.due, msg)
	return nil
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

// seeded holds one liquidity wallet with a snapshot, a monthly salary
// on the 27th and a monthly rent on the 5th filed under "Home".
type seeded struct {
	store  *memory.Store
	wallet core.Wallet
	home   core.ExpenseCategory
	salary core.Entry
	rent   core.Entry
}

func seedStore(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	s := seeded{store: memory.New()}

	var err error
	if s.wallet, err = s.store.CreateWallet(ctx, core.Wallet{Name: "Bank", Type: core.Liquidity, Currency: "EUR", Active: true}); err != nil {
		t.Fatal(err)
	}
	if s.home, err = s.store.CreateCategory(ctx, core.ExpenseCategory{Name: "Home", Color: "#66D19E", Active: true}); err != nil {
		t.Fatal(err)
	}
	if _, err = s.store.CreateSnapshot(ctx, d("2025-01-01"), []core.SnapshotLine{{WalletID: s.wallet.ID, Amount: core.Cents(100000)}}); err != nil {
		t.Fatal(err)
	}
	if s.salary, err = s.store.CreateEntry(ctx, core.Entry{
		Kind: core.Income, Name: "Salary", Amount: core.Cents(300000),
		StartDate: d("2025-01-27"), Frequency: core.Monthly, Interval: 1, Active: true,
	}); err != nil {
		t.Fatal(err)
	}
	if s.rent, err = s.store.CreateEntry(ctx, core.Entry{
		Kind: core.Expense, Name: "Rent", Amount: core.Cents(90000),
		StartDate: d("2025-01-05"), Frequency: core.Monthly, Interval: 1, Active: true,
		CategoryID: int64p(s.home.ID),
	}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestErrValidationWrapsCause(t *testing.T) {
	err := invalid(core.ErrEmptyName)
	if !errors.Is(err, ErrValidation) || !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected both sentinels in %v", err)
	}
}
