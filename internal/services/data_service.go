package services

import (
	"context"
	"fmt"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/ports"
)

// Entity names carried by data change messages.
const (
	EntityWallet   = "wallet"
	EntitySnapshot = "snapshot"
	EntityCategory = "category"
)

// ChangePublisher announces store writes to other processes.
type ChangePublisher interface {
	PublishDataChanged(ctx context.Context, msg *amqp.DataChangedMessage) error
}

// Invalidator drops derived state after a write.
type Invalidator interface {
	Invalidate()
}

// DataService validates and applies writes, then invalidates the local
// dashboard caches and publishes a change notification. Publishing is best
// effort: the write has already succeeded when it runs.
type DataService struct {
	store     ports.Store
	caches    Invalidator
	publisher ChangePublisher
	logger    *applog.Logger
	events    *applog.StructuredLogger
}

// NewDataService wires the service. caches and publisher may be nil.
func NewDataService(store ports.Store, caches Invalidator, publisher ChangePublisher, logger *applog.Logger) *DataService {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentData)
	return &DataService{
		store:     store,
		caches:    caches,
		publisher: publisher,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
	}
}

func (s *DataService) changed(ctx context.Context, msg *amqp.DataChangedMessage) {
	if s.caches != nil {
		s.caches.Invalidate()
	}
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not available, skipping data change message")
		return
	}
	if err := s.publisher.PublishDataChanged(ctx, msg); err != nil {
		s.events.LogError(ctx, "Failed to publish data change message", err, applog.ComponentAMQP, msg.Operation,
			applog.NewFields().WithEntity(msg.Entity, msg.ID))
	}
}

// Entries

func (s *DataService) ListEntries(ctx context.Context, kind core.Kind) ([]core.Entry, error) {
	if !kind.Valid() {
		return nil, invalid(core.ErrInvalidKind)
	}
	return s.store.ListEntries(ctx, kind)
}

func (s *DataService) GetEntry(ctx context.Context, kind core.Kind, id int64) (core.Entry, error) {
	if !kind.Valid() {
		return core.Entry{}, invalid(core.ErrInvalidKind)
	}
	return s.store.GetEntry(ctx, kind, id)
}

// CreateEntry stores a new entry. A recurring entry without an interval gets
// interval 1.
func (s *DataService) CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	e = normalizeEntry(e)
	if err := e.Validate(); err != nil {
		return core.Entry{}, invalid(err)
	}
	created, err := s.store.CreateEntry(ctx, e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("create %s: %w", e.Kind, err)
	}
	s.events.LogEntryChanged(ctx, applog.OpCreate, string(created.Kind), created.ID, created.Name, created.Amount.Cents)
	s.changed(ctx, amqp.NewDataChangedMessage(string(created.Kind), applog.OpCreate, created.ID))
	return created, nil
}

func (s *DataService) UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	e = normalizeEntry(e)
	if err := e.Validate(); err != nil {
		return core.Entry{}, invalid(err)
	}
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		return core.Entry{}, fmt.Errorf("update %s %d: %w", e.Kind, e.ID, err)
	}
	s.events.LogEntryChanged(ctx, applog.OpUpdate, string(e.Kind), e.ID, e.Name, e.Amount.Cents)
	s.changed(ctx, amqp.NewDataChangedMessage(string(e.Kind), applog.OpUpdate, e.ID))
	return e, nil
}

func (s *DataService) DeleteEntry(ctx context.Context, kind core.Kind, id int64) error {
	if !kind.Valid() {
		return invalid(core.ErrInvalidKind)
	}
	if err := s.store.DeleteEntry(ctx, kind, id); err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	s.changed(ctx, amqp.NewDataChangedMessage(string(kind), applog.OpDelete, id))
	return nil
}

func normalizeEntry(e core.Entry) core.Entry {
	if e.OneShot {
		e.Frequency = ""
		e.Interval = 0
	} else if e.Frequency != "" && e.Interval == 0 {
		e.Interval = 1
	}
	return e
}

// Wallets

func (s *DataService) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	return s.store.ListWallets(ctx)
}

func (s *DataService) CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	if err := w.Validate(); err != nil {
		return core.Wallet{}, invalid(err)
	}
	created, err := s.store.CreateWallet(ctx, w)
	if err != nil {
		return core.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	s.changed(ctx, amqp.NewDataChangedMessage(EntityWallet, applog.OpCreate, created.ID))
	return created, nil
}

func (s *DataService) UpdateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	if err := w.Validate(); err != nil {
		return core.Wallet{}, invalid(err)
	}
	if err := s.store.UpdateWallet(ctx, w); err != nil {
		return core.Wallet{}, fmt.Errorf("update wallet %d: %w", w.ID, err)
	}
	s.changed(ctx, amqp.NewDataChangedMessage(EntityWallet, applog.OpUpdate, w.ID))
	return w, nil
}

// DeleteWallet removes the wallet together with its snapshot lines.
func (s *DataService) DeleteWallet(ctx context.Context, id int64) error {
	if err := s.store.DeleteWallet(ctx, id); err != nil {
		return fmt.Errorf("delete wallet %d: %w", id, err)
	}
	s.changed(ctx, amqp.NewDataChangedMessage(EntityWallet, applog.OpDelete, id))
	return nil
}

// Snapshots

// SnapshotWithLines is a snapshot together with its balances.
type SnapshotWithLines struct {
	core.Snapshot
	Lines []core.SnapshotLine `json:"lines"`
}

func (s *DataService) ListSnapshots(ctx context.Context) ([]core.Snapshot, error) {
	return s.store.ListSnapshots(ctx)
}

func (s *DataService) GetSnapshot(ctx context.Context, id int64) (SnapshotWithLines, error) {
	snapshots, err := s.store.ListSnapshots(ctx)
	if err != nil {
		return SnapshotWithLines{}, err
	}
	for _, sn := range snapshots {
		if sn.ID != id {
			continue
		}
		lines, err := s.store.SnapshotLines(ctx, id)
		if err != nil {
			return SnapshotWithLines{}, err
		}
		return SnapshotWithLines{Snapshot: sn, Lines: lines}, nil
	}
	return SnapshotWithLines{}, fmt.Errorf("snapshot %d: %w", id, core.ErrNotFound)
}

// CreateSnapshot stores a snapshot dated date with one line per wallet.
// Every referenced wallet must exist.
func (s *DataService) CreateSnapshot(ctx context.Context, date core.Date, lines []core.SnapshotLine) (SnapshotWithLines, error) {
	if err := core.ValidateSnapshot(core.Snapshot{Date: date}, lines); err != nil {
		return SnapshotWithLines{}, invalid(err)
	}
	sn, err := s.store.CreateSnapshot(ctx, date, lines)
	if err != nil {
		return SnapshotWithLines{}, fmt.Errorf("create snapshot: %w", err)
	}
	stored := make([]core.SnapshotLine, len(lines))
	for i, l := range lines {
		l.SnapshotID = sn.ID
		stored[i] = l
	}
	s.changed(ctx, amqp.NewDataChangedMessage(EntitySnapshot, applog.OpCreate, sn.ID))
	return SnapshotWithLines{Snapshot: sn, Lines: stored}, nil
}

func (s *DataService) DeleteSnapshot(ctx context.Context, id int64) error {
	if err := s.store.DeleteSnapshot(ctx, id); err != nil {
		return fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	s.changed(ctx, amqp.NewDataChangedMessage(EntitySnapshot, applog.OpDelete, id))
	return nil
}

// Categories

func (s *DataService) ListCategories(ctx context.Context) ([]core.ExpenseCategory, error) {
	return s.store.ListCategories(ctx)
}

func (s *DataService) CreateCategory(ctx context.Context, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, invalid(err)
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.ExpenseCategory{}, fmt.Errorf("create category: %w", err)
	}
	s.changed(ctx, amqp.NewDataChangedMessage(EntityCategory, applog.OpCreate, created.ID))
	return created, nil
}

func (s *DataService) UpdateCategory(ctx context.Context, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, invalid(err)
	}
	if c.Color == "" {
		c.Color = core.DefaultCategoryColor
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.ExpenseCategory{}, fmt.Errorf("update category %d: %w", c.ID, err)
	}
	s.changed(ctx, amqp.NewDataChangedMessage(EntityCategory, applog.OpUpdate, c.ID))
	return c, nil
}

// DeleteCategory removes the category. Expenses that used it become
// uncategorized.
func (s *DataService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	s.changed(ctx, amqp.NewDataChangedMessage(EntityCategory, applog.OpDelete, id))
	return nil
}

// Reset wipes the store.
func (s *DataService) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	s.logger.WarnContext(ctx, "Store reset", applog.FieldOperation, applog.OpReset)
	s.changed(ctx, amqp.NewDataResetMessage())
	return nil
}
