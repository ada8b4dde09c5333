package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "bilancio/internal/log"
	"bilancio/internal/memory"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/services"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	store := memory.New()
	dash := services.NewDashboardService(store, services.DefaultDashboardConfig(), applog.Discard())
	data := services.NewDataService(store, dash, nil, applog.Discard())
	srv := NewServer(":0", dash, data, opts)
	t.Cleanup(srv.rateLimiter.Stop)
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

// data decodes the "data" member of a successful response into dst.
func data(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		OK   bool            `json:"ok"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	if !env.OK {
		t.Fatalf("response not ok: %s", rr.Body.String())
	}
	if dst != nil {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			t.Fatalf("decode data %s: %v", env.Data, err)
		}
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if !strings.Contains(rr.Body.String(), "http_requests_total") {
		t.Errorf("metrics body missing counters: %s", rr.Body.String())
	}
}

func TestReadyReportsStoreFailure(t *testing.T) {
	srv := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("db locked") }})

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestResponsesCarryTraceAndSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/wallets", "")
	for _, name := range []string{"X-Request-ID", "X-Content-Type-Options", "Content-Security-Policy"} {
		if rr.Header().Get(name) == "" {
			t.Errorf("missing %s", name)
		}
	}
}

func TestEntryLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/entries/income",
		`{"name":"Salary","amount":3000,"start_date":"2025-01-27","recurrence_frequency":"monthly","recurrence_interval":1}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		ID        int64  `json:"id"`
		Kind      string `json:"kind"`
		Frequency string `json:"recurrence_frequency"`
		Active    bool   `json:"active"`
	}
	data(t, rr, &created)
	if created.ID == 0 || created.Kind != "income" || created.Frequency != "MONTHLY" || !created.Active {
		t.Fatalf("created = %+v", created)
	}

	rr = do(t, srv, http.MethodGet, "/api/entries/incomes", "")
	var list []map[string]any
	data(t, rr, &list)
	if len(list) != 1 {
		t.Fatalf("list = %v", list)
	}

	rr = do(t, srv, http.MethodPut, "/api/entries/income/1",
		`{"name":"Salary","amount":"3200,50","start_date":"2025-01-27","recurrence_frequency":"MONTHLY","recurrence_interval":1,"active":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/entries/income/1", "")
	var got struct {
		Amount float64 `json:"amount"`
		Active bool    `json:"active"`
	}
	data(t, rr, &got)
	if got.Amount != 3200.50 || got.Active {
		t.Errorf("after update = %+v", got)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/entries/income/1", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/entries/income/1", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rr.Code)
	}
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"unknown kind", http.MethodGet, "/api/entries/transfers", "", http.StatusBadRequest},
		{"non numeric id", http.MethodGet, "/api/entries/expense/abc", "", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/wallets", `{"name":"Bank","type":"LIQUIDITY","owner":"me"}`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/categories", "", http.StatusBadRequest},
		{"trailing data", http.MethodPost, "/api/categories", `{"name":"A"}{"name":"B"}`, http.StatusBadRequest},
		{"zero amount", http.MethodPost, "/api/entries/expense", `{"name":"Rent","amount":0,"start_date":"2025-01-05","one_shot":true}`, http.StatusBadRequest},
		{"huge interval", http.MethodPost, "/api/entries/expense", `{"name":"Gym","amount":10,"start_date":"2025-01-05","recurrence_frequency":"WEEKLY","recurrence_interval":1152921504606846976}`, http.StatusBadRequest},
		{"oversized amount", http.MethodPost, "/api/entries/income", `{"name":"Prize","amount":40000000000000000,"start_date":"2025-01-05","one_shot":true}`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/entries/expense", `{"name":"Rent","amount":10,"start_date":"05/01/2025","one_shot":true}`, http.StatusBadRequest},
		{"missing range", http.MethodGet, "/api/occurrences?from=2025-01-01", "", http.StatusBadRequest},
		{"reversed range", http.MethodGet, "/api/occurrences?from=2025-02-01&to=2025-01-01", "", http.StatusBadRequest},
		{"bad month", http.MethodGet, "/api/cashflow?year=2025&month=13", "", http.StatusBadRequest},
		{"bad window", http.MethodGet, "/api/dashboard?window=six", "", http.StatusBadRequest},
		{"missing wallet", http.MethodDelete, "/api/wallets/42", "", http.StatusNotFound},
		{"unknown endpoint", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.target, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.status, rr.Body.String())
			}
			var env envelope
			if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil || env.OK || env.Error == "" {
				t.Errorf("body = %s", rr.Body.String())
			}
		})
	}
}

func TestWalletsSnapshotsAndCategories(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/wallets", `{"name":"Bank","type":"liquidity"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("wallet status = %d: %s", rr.Code, rr.Body.String())
	}
	var wallet struct {
		ID       int64  `json:"id"`
		Type     string `json:"type"`
		Currency string `json:"currency"`
	}
	data(t, rr, &wallet)
	if wallet.Type != "LIQUIDITY" || wallet.Currency != "EUR" {
		t.Errorf("wallet = %+v", wallet)
	}

	rr = do(t, srv, http.MethodPost, "/api/snapshots", `{"date":"2025-01-01","lines":[{"wallet_id":1,"amount":1000}]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("snapshot status = %d: %s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodGet, "/api/snapshots/1", "")
	var sn struct {
		Date  string `json:"date"`
		Lines []struct {
			SnapshotID int64   `json:"snapshot_id"`
			Amount     float64 `json:"amount"`
		} `json:"lines"`
	}
	data(t, rr, &sn)
	if sn.Date != "2025-01-01" || len(sn.Lines) != 1 || sn.Lines[0].SnapshotID != 1 || sn.Lines[0].Amount != 1000 {
		t.Errorf("snapshot = %+v", sn)
	}

	rr = do(t, srv, http.MethodPost, "/api/snapshots", `{"date":"2025-02-01","lines":[{"wallet_id":9,"amount":1}]}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("snapshot for unknown wallet status = %d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/api/categories", `{"name":"Home"}`)
	var cat struct {
		Color string `json:"color"`
	}
	data(t, rr, &cat)
	if cat.Color != "#9B7BFF" {
		t.Errorf("default color = %q", cat.Color)
	}
	if rr := do(t, srv, http.MethodPut, "/api/categories/1", `{"name":"Home","color":"teal"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad color status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/wallets/1", ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete wallet status = %d", rr.Code)
	}
}

func TestQueryRoutes(t *testing.T) {
	srv := newTestServer(t, Options{})
	do(t, srv, http.MethodPost, "/api/entries/income",
		`{"name":"Salary","amount":3000,"start_date":"2025-01-27","recurrence_frequency":"MONTHLY","recurrence_interval":1}`)
	do(t, srv, http.MethodPost, "/api/entries/expense",
		`{"name":"Rent","amount":900,"start_date":"2025-01-05","recurrence_frequency":"MONTHLY","recurrence_interval":1}`)

	rr := do(t, srv, http.MethodGet, "/api/occurrences?from=2025-01-01&to=2025-02-28", "")
	var occ []struct {
		Name string `json:"name"`
		Date string `json:"date"`
	}
	data(t, rr, &occ)
	want := []string{"2025-01-05 Rent", "2025-01-27 Salary", "2025-02-05 Rent", "2025-02-27 Salary"}
	if len(occ) != len(want) {
		t.Fatalf("occurrences = %+v", occ)
	}
	for i, o := range occ {
		if got := o.Date + " " + o.Name; got != want[i] {
			t.Errorf("occurrence %d = %q, want %q", i, got, want[i])
		}
	}

	rr = do(t, srv, http.MethodGet, "/api/cashflow?year=2025&month=3&window=3", "")
	var report struct {
		Months []struct {
			Key string `json:"month_key"`
		} `json:"months"`
	}
	data(t, rr, &report)
	if len(report.Months) != 3 || report.Months[0].Key != "2025-01" {
		t.Errorf("cashflow = %+v", report)
	}

	rr = do(t, srv, http.MethodGet, "/api/upcoming?limit=3", "")
	var upcoming []map[string]any
	data(t, rr, &upcoming)
	if len(upcoming) != 3 {
		t.Errorf("upcoming = %d items", len(upcoming))
	}

	rr = do(t, srv, http.MethodGet, "/api/dashboard?window=3&limit=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d: %s", rr.Code, rr.Body.String())
	}
	data(t, rr, nil)
}

func TestReset(t *testing.T) {
	disabled := newTestServer(t, Options{})
	if rr := do(t, disabled, http.MethodPost, "/api/reset?confirm=yes", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("disabled reset status = %d", rr.Code)
	}

	srv := newTestServer(t, Options{AllowReset: true})
	do(t, srv, http.MethodPost, "/api/wallets", `{"name":"Bank","type":"INVEST"}`)
	if rr := do(t, srv, http.MethodPost, "/api/reset", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("unconfirmed reset status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/reset?confirm=yes", ""); rr.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rr.Code)
	}
	var wallets []any
	data(t, do(t, srv, http.MethodGet, "/api/wallets", ""), &wallets)
	if len(wallets) != 0 {
		t.Errorf("wallets after reset = %v", wallets)
	}
}

func TestRateLimitAppliesToAPIOnly(t *testing.T) {
	srv := newTestServer(t, Options{RateLimit: ratelimit.Config{RequestsPerMinute: 1}})

	if rr := do(t, srv, http.MethodGet, "/api/wallets", ""); rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rr.Code)
	}
	rr := do(t, srv, http.MethodGet, "/api/wallets", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rr.Code)
	}
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil || env.OK {
		t.Errorf("rate limit body = %s", rr.Body.String())
	}
	if rr := do(t, srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Errorf("healthz must not be limited, status = %d", rr.Code)
	}
}
