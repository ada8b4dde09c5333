package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/dashboard"
	applog "bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
)

// DashboardReader serves the computed, read-only views.
type DashboardReader interface {
	Today() core.Date
	Dashboard(ctx context.Context, opts dashboard.Options) (dashboard.Data, error)
	Occurrences(ctx context.Context, from, to core.Date) ([]core.Occurrence, error)
	MonthTotals(ctx context.Context, year, month, window int) (services.CashflowReport, error)
	Upcoming(ctx context.Context, limit int) ([]core.Occurrence, error)
}

// DataWriter manages the stored records.
type DataWriter interface {
	ListEntries(ctx context.Context, kind core.Kind) ([]core.Entry, error)
	GetEntry(ctx context.Context, kind core.Kind, id int64) (core.Entry, error)
	CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error)
	UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error)
	DeleteEntry(ctx context.Context, kind core.Kind, id int64) error

	ListWallets(ctx context.Context) ([]core.Wallet, error)
	CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error)
	UpdateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error)
	DeleteWallet(ctx context.Context, id int64) error

	ListSnapshots(ctx context.Context) ([]core.Snapshot, error)
	GetSnapshot(ctx context.Context, id int64) (services.SnapshotWithLines, error)
	CreateSnapshot(ctx context.Context, date core.Date, lines []core.SnapshotLine) (services.SnapshotWithLines, error)
	DeleteSnapshot(ctx context.Context, id int64) error

	ListCategories(ctx context.Context) ([]core.ExpenseCategory, error)
	CreateCategory(ctx context.Context, c core.ExpenseCategory) (core.ExpenseCategory, error)
	UpdateCategory(ctx context.Context, c core.ExpenseCategory) (core.ExpenseCategory, error)
	DeleteCategory(ctx context.Context, id int64) error

	Reset(ctx context.Context) error
}

// Options tunes the server around the handlers.
type Options struct {
	Logger *applog.Logger
	// Ready reports whether dependencies can serve traffic. Nil means
	// always ready.
	Ready func(ctx context.Context) error
	// RateLimit applies to /api routes only.
	RateLimit ratelimit.Config
	// BlockSuspicious answers scanner-like requests with 400 instead of
	// only logging them.
	BlockSuspicious bool
	TrustedProxies  []string
	// AllowReset enables POST /api/reset.
	AllowReset bool
}

type Server struct {
	http.Server
	dashboard DashboardReader
	data      DataWriter
	ready     func(ctx context.Context) error
	logger    *applog.Logger

	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	allowReset       bool
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. The handler chain is
// trace -> security headers -> detector -> mux, with the rate limiter in
// front of /api only.
func NewServer(addr string, dr DashboardReader, dw DataWriter, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err.Error())
		}
	}

	s := &Server{
		dashboard:        dr,
		data:             dw,
		ready:            opts.Ready,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		allowReset:       opts.AllowReset,
		started:          time.Now(),
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)
	api.HandleFunc("GET /api/occurrences", s.handleOccurrences)
	api.HandleFunc("GET /api/cashflow", s.handleCashflow)
	api.HandleFunc("GET /api/upcoming", s.handleUpcoming)

	api.HandleFunc("GET /api/entries/{kind}", s.handleListEntries)
	api.HandleFunc("POST /api/entries/{kind}", s.handleCreateEntry)
	api.HandleFunc("GET /api/entries/{kind}/{id}", s.handleGetEntry)
	api.HandleFunc("PUT /api/entries/{kind}/{id}", s.handleUpdateEntry)
	api.HandleFunc("DELETE /api/entries/{kind}/{id}", s.handleDeleteEntry)

	api.HandleFunc("GET /api/wallets", s.handleListWallets)
	api.HandleFunc("POST /api/wallets", s.handleCreateWallet)
	api.HandleFunc("PUT /api/wallets/{id}", s.handleUpdateWallet)
	api.HandleFunc("DELETE /api/wallets/{id}", s.handleDeleteWallet)

	api.HandleFunc("GET /api/snapshots", s.handleListSnapshots)
	api.HandleFunc("POST /api/snapshots", s.handleCreateSnapshot)
	api.HandleFunc("GET /api/snapshots/{id}", s.handleGetSnapshot)
	api.HandleFunc("DELETE /api/snapshots/{id}", s.handleDeleteSnapshot)

	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	api.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	api.HandleFunc("POST /api/reset", s.handleReset)

	api.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})

	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
		TooManyRequestsError().Write(w)
	})(api)

	mux := http.NewServeMux()
	mux.Handle("/api/", limited)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var handler http.Handler = mux
	handler = detector.Middleware(opts.BlockSuspicious)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops background work and gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(s.rateLimiter.Stop)
	return s.Server.Shutdown(ctx)
}
