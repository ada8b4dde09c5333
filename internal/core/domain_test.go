package core

import (
	"errors"
	"testing"
)

func int64p(v int64) *int64 { return &v }

func TestEntryValidate(t *testing.T) {
	good := Entry{
		Kind:      Expense,
		Name:      "Rent",
		Amount:    Cents(85000),
		StartDate: NewDate(2025, 1, 1),
		Frequency: Monthly,
		Interval:  1,
		Active:    true,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	oneShot := Entry{Kind: Income, Name: "Bonus", Amount: Cents(1), StartDate: NewDate(2025, 6, 1), OneShot: true}
	if err := oneShot.Validate(); err != nil {
		t.Fatalf("one-shot without frequency should be valid, got %v", err)
	}

	bads := []struct {
		name string
		mod  func(e *Entry)
		want error
	}{
		{"bad kind", func(e *Entry) { e.Kind = "transfer" }, ErrInvalidKind},
		{"empty name", func(e *Entry) { e.Name = " " }, ErrEmptyName},
		{"zero amount", func(e *Entry) { e.Amount = Cents(0) }, ErrInvalidAmount},
		{"no frequency", func(e *Entry) { e.Frequency = "" }, ErrMissingFrequency},
		{"unknown frequency", func(e *Entry) { e.Frequency = "DAILY" }, ErrInvalidFrequency},
		{"zero interval", func(e *Entry) { e.Interval = 0 }, ErrInvalidInterval},
		{"negative interval", func(e *Entry) { e.Interval = -2 }, ErrInvalidInterval},
		{"interval above max", func(e *Entry) { e.Interval = MaxInterval + 1 }, ErrInvalidInterval},
		{"huge interval", func(e *Entry) { e.Interval = 1 << 60 }, ErrInvalidInterval},
		{"amount above max", func(e *Entry) { e.Amount = Cents(MaxCents + 1) }, ErrInvalidAmount},
		{"category on income", func(e *Entry) { e.Kind = Income; e.CategoryID = int64p(1) }, ErrCategoryOnIncome},
	}
	for _, tc := range bads {
		t.Run(tc.name, func(t *testing.T) {
			e := good
			tc.mod(&e)
			if err := e.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"income": Income, "Incomes": Income, "expenses": Expense} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("transfer"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestWalletAndCategoryValidate(t *testing.T) {
	if err := (Wallet{Name: "Bank", Type: Liquidity, Currency: "EUR"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Wallet{Name: "Bank", Type: "CRYPTO", Currency: "EUR"}).Validate(); !errors.Is(err, ErrInvalidWalletType) {
		t.Fatalf("expected ErrInvalidWalletType, got %v", err)
	}
	if err := (ExpenseCategory{Name: "Home", Color: "#66D19E"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (ExpenseCategory{Name: "Home", Color: "green"}).Validate(); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
}

func TestValidateSnapshot(t *testing.T) {
	s := Snapshot{Date: NewDate(2025, 2, 1)}
	lines := []SnapshotLine{{WalletID: 1, Amount: Cents(100)}, {WalletID: 2, Amount: Cents(-50)}}
	if err := ValidateSnapshot(s, lines); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := ValidateSnapshot(s, nil); !errors.Is(err, ErrEmptySnapshotLines) {
		t.Fatalf("expected ErrEmptySnapshotLines, got %v", err)
	}
	lines = append(lines, SnapshotLine{WalletID: 1})
	if err := ValidateSnapshot(s, lines); !errors.Is(err, ErrDuplicateWallet) {
		t.Fatalf("expected ErrDuplicateWallet, got %v", err)
	}
}
