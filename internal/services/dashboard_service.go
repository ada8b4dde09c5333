package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/dashboard"
	"bilancio/internal/finance"
	applog "bilancio/internal/log"
	"bilancio/internal/ports"
)

// DashboardConfig tunes the dashboard service.
type DashboardConfig struct {
	CashflowWindow     int
	UpcomingLimit      int
	CacheTTL           time.Duration
	ExpansionCacheSize int
}

func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		CashflowWindow:     dashboard.DefaultCashflowWindow,
		UpcomingLimit:      dashboard.DefaultUpcomingLimit,
		CacheTTL:           5 * time.Minute,
		ExpansionCacheSize: 4096,
	}
}

const viewCacheSize = 64

// DashboardService reads the store and serves the dashboard view-model and
// the occurrence queries behind the JSON API. Results are cached until
// Invalidate is called or the TTL runs out.
type DashboardService struct {
	store     ports.Store
	expansion *cache.Expansion
	assembler *dashboard.Assembler
	views     *cache.LRUCache[dashboard.Data]

	// mu orders Invalidate against caching a freshly built view; a build
	// that started before the latest Invalidate is never cached.
	mu         sync.Mutex
	generation uint64

	defaults  dashboard.Options
	logger    *applog.Logger
	events    *applog.StructuredLogger
	now       func() time.Time
}

func NewDashboardService(store ports.Store, config DashboardConfig, logger *applog.Logger) *DashboardService {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentDashboard)
	expansion := cache.NewExpansion(nil, config.ExpansionCacheSize, config.CacheTTL)
	return &DashboardService{
		store:     store,
		expansion: expansion,
		assembler: dashboard.NewAssembler(expansion),
		views:     cache.NewLRUCache[dashboard.Data](viewCacheSize, config.CacheTTL),
		defaults: dashboard.Options{
			CashflowWindow: config.CashflowWindow,
			UpcomingLimit:  config.UpcomingLimit,
		},
		logger: logger,
		events: applog.NewStructuredLogger(logger),
		now:    time.Now,
	}
}

// Today is the current calendar date in local time.
func (s *DashboardService) Today() core.Date {
	return core.DateOf(s.now())
}

// Caches returns the caches owned by the service so a cache.Manager can
// sweep them.
func (s *DashboardService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.expansion, s.views}
}

// Invalidate drops every cached view and expansion.
func (s *DashboardService) Invalidate() {
	s.mu.Lock()
	s.generation++
	s.views.Purge()
	s.expansion.Purge()
	s.mu.Unlock()
	s.logger.Debug("Dashboard caches invalidated")
}

func (s *DashboardService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// cacheView stores data unless an Invalidate happened since gen was read.
func (s *DashboardService) cacheView(key string, gen uint64, data dashboard.Data) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.views.Set(key, data)
	return true
}

// Dashboard returns the view-model for opts. Zero fields of opts fall back
// to the configured defaults and a zero Today to the current date.
func (s *DashboardService) Dashboard(ctx context.Context, opts dashboard.Options) (dashboard.Data, error) {
	if opts.Today.IsZero() {
		opts.Today = s.Today()
	}
	if opts.CashflowWindow == 0 {
		opts.CashflowWindow = s.defaults.CashflowWindow
	}
	if opts.UpcomingLimit == 0 {
		opts.UpcomingLimit = s.defaults.UpcomingLimit
	}
	opts = opts.Normalize()

	key := fmt.Sprintf("%s:%d:%d", opts.Today, opts.CashflowWindow, opts.UpcomingLimit)
	if data, ok := s.views.Get(key); ok {
		s.logger.DebugContext(ctx, "Dashboard served from cache", applog.FieldCacheHit, true)
		return data, nil
	}

	gen := s.currentGeneration()
	in, err := s.loadInput(ctx)
	if err != nil {
		return dashboard.Data{}, err
	}

	start := time.Now()
	data := s.assembler.Build(in, opts)
	for _, issue := range data.Issues {
		s.events.LogIssue(ctx, string(issue.Kind), issue.EntryID, issue.Reason)
	}
	if !s.cacheView(key, gen, data) {
		s.logger.DebugContext(ctx, "Dashboard view built across a write, not cached")
	}

	s.logger.DebugContext(ctx, "Dashboard assembled",
		applog.FieldOperation, applog.OpAssemble,
		applog.FieldToday, opts.Today.String(),
		applog.FieldCacheHit, false,
		applog.FieldDuration, time.Since(start).Milliseconds())
	return data, nil
}

// loadInput takes one consistent view of the store.
func (s *DashboardService) loadInput(ctx context.Context) (dashboard.Input, error) {
	v, err := s.store.ReadView(ctx)
	if err != nil {
		return dashboard.Input{}, wrap("dashboard view", err)
	}
	return dashboard.Input{
		LatestLines:   v.Latest,
		Snapshots:     v.Snapshots,
		SnapshotLines: v.Lines,
		Wallets:       v.Wallets,
		Income:        v.Income,
		Expense:       v.Expense,
		Categories:    v.Categories,
	}, nil
}

// loadEntries reads both entry kinds concurrently for the query endpoints.
func (s *DashboardService) loadEntries(ctx context.Context) (income, expense []core.Entry, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		income, err = s.store.ListEntries(gctx, core.Income)
		return wrap("income", err)
	})
	g.Go(func() (err error) {
		expense, err = s.store.ListEntries(gctx, core.Expense)
		return wrap("expenses", err)
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return income, expense, nil
}

// Occurrences lists every occurrence of both kinds within [from, to], sorted
// by date, kind and entry id.
func (s *DashboardService) Occurrences(ctx context.Context, from, to core.Date) ([]core.Occurrence, error) {
	if from.IsZero() || to.IsZero() {
		return nil, invalid(errors.New("range bounds are required"))
	}
	if to.Before(from) {
		return nil, invalid(fmt.Errorf("range end %s is before start %s", to, from))
	}
	income, expense, err := s.loadEntries(ctx)
	if err != nil {
		return nil, err
	}
	agg := s.assembler.Aggregator()
	out := append(agg.ListOccurrencesInRange(income, from, to), agg.ListOccurrencesInRange(expense, from, to)...)
	finance.SortOccurrences(out)
	return out, nil
}

// CashflowReport is the monthly series ending at a month plus its averages.
type CashflowReport struct {
	Months   []finance.MonthTotals `json:"months"`
	Averages finance.Averages      `json:"averages"`
}

// MonthTotals returns window months of totals ending at (year, month). A
// zero window selects the configured default; the window is clamped like
// the dashboard's.
func (s *DashboardService) MonthTotals(ctx context.Context, year, month, window int) (CashflowReport, error) {
	if month < 1 || month > 12 {
		return CashflowReport{}, invalid(fmt.Errorf("month %d out of range", month))
	}
	if year < 1 {
		return CashflowReport{}, invalid(fmt.Errorf("year %d out of range", year))
	}
	if window == 0 {
		window = s.defaults.CashflowWindow
	}
	window = dashboard.Options{CashflowWindow: window}.Normalize().CashflowWindow

	income, expense, err := s.loadEntries(ctx)
	if err != nil {
		return CashflowReport{}, err
	}
	agg := s.assembler.Aggregator()
	return CashflowReport{
		Months:   agg.MonthlySeries(income, expense, year, month, window),
		Averages: agg.AverageMonthlyTotals(income, expense, year, month, window),
	}, nil
}

// Upcoming returns the next limit occurrences from today on.
func (s *DashboardService) Upcoming(ctx context.Context, limit int) ([]core.Occurrence, error) {
	if limit == 0 {
		limit = s.defaults.UpcomingLimit
	}
	limit = dashboard.Options{UpcomingLimit: limit}.Normalize().UpcomingLimit

	income, expense, err := s.loadEntries(ctx)
	if err != nil {
		return nil, err
	}
	return s.assembler.Aggregator().UpcomingOccurrences(income, expense, s.Today(), limit), nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}
