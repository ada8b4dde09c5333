package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	Liquidity WalletType = "LIQUIDITY"
	Invest    WalletType = "INVEST"
)

// DefaultCategoryColor is used when a category has no colour of its own.
const DefaultCategoryColor = "#9B7BFF"

type (
	// Frequency is the recurrence step unit. The empty value means "absent".
	Frequency string

	// Kind tags an Entry as a credit (income) or a debit (expense).
	Kind string

	WalletType string

	// Entry is a one-shot or recurring income/expense rule. CategoryID is only
	// meaningful for expenses.
	Entry struct {
		ID         int64     `json:"id"`
		Kind       Kind      `json:"kind"`
		Name       string    `json:"name"`
		Amount     Money     `json:"amount"`
		StartDate  Date      `json:"start_date"`
		Frequency  Frequency `json:"recurrence_frequency,omitempty"`
		Interval   int       `json:"recurrence_interval,omitempty"`
		OneShot    bool      `json:"one_shot"`
		Active     bool      `json:"active"`
		WalletID   *int64    `json:"wallet_id,omitempty"`
		CategoryID *int64    `json:"expense_category_id,omitempty"`
	}

	// Occurrence is one dated instance of an Entry. Never persisted.
	Occurrence struct {
		EntryID    int64  `json:"entry_id"`
		Kind       Kind   `json:"kind"`
		Name       string `json:"name"`
		Date       Date   `json:"date"`
		Amount     Money  `json:"amount"`
		CategoryID *int64 `json:"expense_category_id,omitempty"`
	}

	Wallet struct {
		ID       int64      `json:"id"`
		Name     string     `json:"name"`
		Type     WalletType `json:"type"`
		Currency string     `json:"currency"`
		Active   bool       `json:"active"`
	}

	Snapshot struct {
		ID   int64 `json:"id"`
		Date Date  `json:"date"`
	}

	// SnapshotLine is one wallet's balance at a snapshot's date.
	SnapshotLine struct {
		SnapshotID int64 `json:"snapshot_id"`
		WalletID   int64 `json:"wallet_id"`
		Amount     Money `json:"amount"`
	}

	ExpenseCategory struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Color  string `json:"color"`
		Active bool   `json:"active"`
	}
)

var (
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidKind        = errors.New("invalid entry kind")
	ErrMissingFrequency   = errors.New("recurring entry without frequency")
	ErrInvalidFrequency   = errors.New("invalid recurrence frequency")
	ErrInvalidInterval    = errors.New("recurrence interval must be between 1 and 1000")
	ErrCategoryOnIncome   = errors.New("income entries cannot reference a category")
	ErrInvalidWalletType  = errors.New("invalid wallet type")
	ErrDuplicateWallet    = errors.New("wallet appears twice in snapshot")
	ErrNotFound           = errors.New("not found")
	ErrInvalidColor       = errors.New("invalid color")
	ErrEmptyCurrency      = errors.New("empty currency")
	ErrEmptySnapshotLines = errors.New("snapshot has no lines")
)

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// ParseKind accepts the singular and plural path forms ("expense", "expenses").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "incomes":
		return Income, nil
	case "expense", "expenses":
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (t WalletType) Valid() bool {
	return t == Liquidity || t == Invest
}

// Recurring reports whether the entry repeats.
func (e Entry) Recurring() bool {
	return !e.OneShot && e.Frequency != ""
}

// MaxInterval bounds the recurrence interval so k-th step arithmetic stays
// far from int overflow.
const MaxInterval = 1000

// ValidateRule checks only the recurrence shape of the entry: a one-shot
// entry is always valid; otherwise a known frequency and an interval in
// [1, MaxInterval] are required.
func (e Entry) ValidateRule() error {
	if e.OneShot {
		return nil
	}
	if e.Frequency == "" {
		return ErrMissingFrequency
	}
	if !e.Frequency.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidFrequency, e.Frequency)
	}
	if e.Interval < 1 || e.Interval > MaxInterval {
		return ErrInvalidInterval
	}
	return nil
}

func (e Entry) Validate() error {
	if !e.Kind.Valid() {
		return ErrInvalidKind
	}
	if len(strings.TrimSpace(e.Name)) == 0 {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if e.Kind == Income && e.CategoryID != nil {
		return ErrCategoryOnIncome
	}
	return e.ValidateRule()
}

func (w Wallet) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return ErrEmptyName
	}
	if !w.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidWalletType, w.Type)
	}
	if strings.TrimSpace(w.Currency) == "" {
		return ErrEmptyCurrency
	}
	return nil
}

func (c ExpenseCategory) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Color != "" && !validHexColor(c.Color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, c.Color)
	}
	return nil
}

// ValidateSnapshot checks a snapshot and its lines before they are stored.
func ValidateSnapshot(s Snapshot, lines []SnapshotLine) error {
	if err := s.Date.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot date: %w", err)
	}
	if len(lines) == 0 {
		return ErrEmptySnapshotLines
	}
	seen := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		if _, dup := seen[l.WalletID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateWallet, l.WalletID)
		}
		seen[l.WalletID] = struct{}{}
	}
	return nil
}

func validHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
