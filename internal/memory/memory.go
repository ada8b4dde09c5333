// Package memory is an in-process ports.Store. It backs the default
// DATA_BACKEND and the service tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/ports"
)

var _ ports.Store = (*Store)(nil)

type notificationKey struct {
	kind core.Kind
	id   int64
}

type Store struct {
	mu sync.RWMutex

	nextID map[string]int64

	entries    map[core.Kind]map[int64]core.Entry
	wallets    map[int64]core.Wallet
	snapshots  map[int64]core.Snapshot
	lines      map[int64][]core.SnapshotLine
	categories map[int64]core.ExpenseCategory
	notified   map[notificationKey]core.Date
}

func New() *Store {
	s := &Store{}
	s.clear()
	return s
}

// NewSeeded returns a Store holding the given wallets and categories. Ids
// are reassigned in order.
func NewSeeded(wallets []core.Wallet, categories []core.ExpenseCategory) (*Store, error) {
	s := New()
	ctx := context.Background()
	for _, w := range wallets {
		if _, err := s.CreateWallet(ctx, w); err != nil {
			return nil, fmt.Errorf("seed wallet %q: %w", w.Name, err)
		}
	}
	for _, c := range categories {
		if _, err := s.CreateCategory(ctx, c); err != nil {
			return nil, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
	}
	return s, nil
}

// NewFromFiles seeds a Store from seed_wallets.txt ("name;TYPE;CURRENCY")
// and seed_categories.txt ("name" or "name;#RRGGBB") under base. Missing
// files fall back to a small default set.
func NewFromFiles(base string) (*Store, error) {
	wallets, err := parseWallets(readLines(filepath.Join(base, "seed_wallets.txt")))
	if err != nil {
		return nil, err
	}
	if len(wallets) == 0 {
		wallets = []core.Wallet{
			{Name: "Conto corrente", Type: core.Liquidity, Currency: "EUR", Active: true},
			{Name: "Investimenti", Type: core.Invest, Currency: "EUR", Active: true},
		}
	}
	categories := parseCategories(readLines(filepath.Join(base, "seed_categories.txt")))
	if len(categories) == 0 {
		for _, name := range []string{"Casa", "Cibo", "Trasporti"} {
			categories = append(categories, core.ExpenseCategory{Name: name, Active: true})
		}
	}
	return NewSeeded(wallets, categories)
}

func (s *Store) clear() {
	s.nextID = make(map[string]int64)
	s.entries = map[core.Kind]map[int64]core.Entry{
		core.Income:  {},
		core.Expense: {},
	}
	s.wallets = make(map[int64]core.Wallet)
	s.snapshots = make(map[int64]core.Snapshot)
	s.lines = make(map[int64][]core.SnapshotLine)
	s.categories = make(map[int64]core.ExpenseCategory)
	s.notified = make(map[notificationKey]core.Date)
}

func (s *Store) next(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

func (s *Store) table(kind core.Kind) (map[int64]core.Entry, error) {
	t, ok := s.entries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidKind, kind)
	}
	return t, nil
}

// ReadView copies every table under a single read lock.
func (s *Store) ReadView(_ context.Context) (ports.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	income, err := s.listEntries(core.Income)
	if err != nil {
		return ports.View{}, err
	}
	expense, err := s.listEntries(core.Expense)
	if err != nil {
		return ports.View{}, err
	}
	ordered := s.orderedSnapshots()
	return ports.View{
		Wallets:    s.listWallets(),
		Snapshots:  ordered,
		Lines:      s.allLines(),
		Latest:     s.latestLines(ordered),
		Income:     income,
		Expense:    expense,
		Categories: s.listCategories(),
	}, nil
}

// Entries

func (s *Store) ListEntries(_ context.Context, kind core.Kind) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEntries(kind)
}

func (s *Store) listEntries(kind core.Kind) ([]core.Entry, error) {
	t, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	out := make([]core.Entry, 0, len(t))
	for _, e := range t {
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetEntry(_ context.Context, kind core.Kind, id int64) (core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(kind)
	if err != nil {
		return core.Entry{}, err
	}
	e, ok := t[id]
	if !ok {
		return core.Entry{}, fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	return cloneEntry(e), nil
}

func (s *Store) CreateEntry(_ context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(e.Kind)
	if err != nil {
		return core.Entry{}, err
	}
	e.ID = s.next(string(e.Kind))
	t[e.ID] = cloneEntry(e)
	return e, nil
}

func (s *Store) UpdateEntry(_ context.Context, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(e.Kind)
	if err != nil {
		return err
	}
	if _, ok := t[e.ID]; !ok {
		return fmt.Errorf("%s %d: %w", e.Kind, e.ID, core.ErrNotFound)
	}
	t[e.ID] = cloneEntry(e)
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, kind core.Kind, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(kind)
	if err != nil {
		return err
	}
	if _, ok := t[id]; !ok {
		return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	delete(t, id)
	delete(s.notified, notificationKey{kind, id})
	return nil
}

// Wallets

func (s *Store) ListWallets(_ context.Context) ([]core.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listWallets(), nil
}

func (s *Store) listWallets() []core.Wallet {
	out := make([]core.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) CreateWallet(_ context.Context, w core.Wallet) (core.Wallet, error) {
	if err := w.Validate(); err != nil {
		return core.Wallet{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w.ID = s.next("wallet")
	s.wallets[w.ID] = w
	return w, nil
}

func (s *Store) UpdateWallet(_ context.Context, w core.Wallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[w.ID]; !ok {
		return fmt.Errorf("wallet %d: %w", w.ID, core.ErrNotFound)
	}
	s.wallets[w.ID] = w
	return nil
}

// DeleteWallet removes the wallet, its snapshot lines and any entry
// reference to it.
func (s *Store) DeleteWallet(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[id]; !ok {
		return fmt.Errorf("wallet %d: %w", id, core.ErrNotFound)
	}
	delete(s.wallets, id)
	for sid, lines := range s.lines {
		kept := lines[:0]
		for _, l := range lines {
			if l.WalletID != id {
				kept = append(kept, l)
			}
		}
		s.lines[sid] = kept
	}
	for _, t := range s.entries {
		for eid, e := range t {
			if e.WalletID != nil && *e.WalletID == id {
				e.WalletID = nil
				t[eid] = e
			}
		}
	}
	return nil
}

// Snapshots

func (s *Store) ListSnapshots(_ context.Context) ([]core.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderedSnapshots(), nil
}

func (s *Store) orderedSnapshots() []core.Snapshot {
	out := make([]core.Snapshot, 0, len(s.snapshots))
	for _, sn := range s.snapshots {
		out = append(out, sn)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) SnapshotLines(_ context.Context, snapshotID int64) ([]core.SnapshotLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.snapshots[snapshotID]; !ok {
		return nil, fmt.Errorf("snapshot %d: %w", snapshotID, core.ErrNotFound)
	}
	return append([]core.SnapshotLine(nil), s.lines[snapshotID]...), nil
}

func (s *Store) AllSnapshotLines(_ context.Context) (map[int64][]core.SnapshotLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allLines(), nil
}

func (s *Store) allLines() map[int64][]core.SnapshotLine {
	out := make(map[int64][]core.SnapshotLine, len(s.lines))
	for id, lines := range s.lines {
		out[id] = append([]core.SnapshotLine(nil), lines...)
	}
	return out
}

func (s *Store) LatestSnapshotLines(_ context.Context) ([]core.SnapshotLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestLines(s.orderedSnapshots()), nil
}

func (s *Store) latestLines(ordered []core.Snapshot) []core.SnapshotLine {
	if len(ordered) == 0 {
		return nil
	}
	latest := ordered[len(ordered)-1]
	return append([]core.SnapshotLine(nil), s.lines[latest.ID]...)
}

func (s *Store) CreateSnapshot(_ context.Context, date core.Date, lines []core.SnapshotLine) (core.Snapshot, error) {
	if err := core.ValidateSnapshot(core.Snapshot{Date: date}, lines); err != nil {
		return core.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lines {
		if _, ok := s.wallets[l.WalletID]; !ok {
			return core.Snapshot{}, fmt.Errorf("wallet %d: %w", l.WalletID, core.ErrNotFound)
		}
	}
	sn := core.Snapshot{ID: s.next("snapshot"), Date: date}
	stored := make([]core.SnapshotLine, len(lines))
	for i, l := range lines {
		l.SnapshotID = sn.ID
		stored[i] = l
	}
	s.snapshots[sn.ID] = sn
	s.lines[sn.ID] = stored
	return sn, nil
}

func (s *Store) DeleteSnapshot(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[id]; !ok {
		return fmt.Errorf("snapshot %d: %w", id, core.ErrNotFound)
	}
	delete(s.snapshots, id)
	delete(s.lines, id)
	return nil
}

// Categories

func (s *Store) ListCategories(_ context.Context) ([]core.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCategories(), nil
}

func (s *Store) listCategories() []core.ExpenseCategory {
	out := make([]core.ExpenseCategory, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) CreateCategory(_ context.Context, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}
	if c.Color == "" {
		c.Color = core.DefaultCategoryColor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.next("category")
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.ExpenseCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Color == "" {
		c.Color = core.DefaultCategoryColor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; !ok {
		return fmt.Errorf("category %d: %w", c.ID, core.ErrNotFound)
	}
	s.categories[c.ID] = c
	return nil
}

// DeleteCategory removes the category; expenses pointing at it become
// uncategorized.
func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	delete(s.categories, id)
	t := s.entries[core.Expense]
	for eid, e := range t {
		if e.CategoryID != nil && *e.CategoryID == id {
			e.CategoryID = nil
			t[eid] = e
		}
	}
	return nil
}

// Notifications

func (s *Store) LastNotified(_ context.Context, kind core.Kind, entryID int64) (core.Date, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.notified[notificationKey{kind, entryID}]
	return d, ok, nil
}

func (s *Store) MarkNotified(_ context.Context, kind core.Kind, entryID int64, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified[notificationKey{kind, entryID}] = date
	return nil
}

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	return nil
}

func (s *Store) Close() error { return nil }

func cloneEntry(e core.Entry) core.Entry {
	if e.WalletID != nil {
		v := *e.WalletID
		e.WalletID = &v
	}
	if e.CategoryID != nil {
		v := *e.CategoryID
		e.CategoryID = &v
	}
	return e
}

func parseWallets(lines []string) ([]core.Wallet, error) {
	var out []core.Wallet
	for _, line := range lines {
		parts := strings.Split(line, ";")
		w := core.Wallet{Name: strings.TrimSpace(parts[0]), Type: core.Liquidity, Currency: "EUR", Active: true}
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			w.Type = core.WalletType(strings.ToUpper(strings.TrimSpace(parts[1])))
		}
		if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
			w.Currency = strings.ToUpper(strings.TrimSpace(parts[2]))
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("seed wallet %q: %w", line, err)
		}
		out = append(out, w)
	}
	return out, nil
}

func parseCategories(lines []string) []core.ExpenseCategory {
	var out []core.ExpenseCategory
	for _, line := range lines {
		name, color, _ := strings.Cut(line, ";")
		out = append(out, core.ExpenseCategory{
			Name:   strings.TrimSpace(name),
			Color:  strings.TrimSpace(color),
			Active: true,
		})
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
