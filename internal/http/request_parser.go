package http

// Helpers for reading query parameters, path values and JSON bodies. Every
// failure comes back as a *badRequest so handlers can hand it straight to
// writeError.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bilancio/internal/core"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// badRequest is a malformed request detected before reaching a service.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from the query, defaulting to
// today's month. Unlike a form helper it rejects unparsable values.
func ParseMonthParams(r *http.Request, today core.Date) (MonthParams, error) {
	year, err := queryInt(r, "year", today.Year())
	if err != nil {
		return MonthParams{}, err
	}
	month, err := queryInt(r, "month", today.Month())
	if err != nil {
		return MonthParams{}, err
	}
	return MonthParams{Year: year, Month: month}, nil
}

// queryInt returns the named integer query parameter or def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequestf("invalid %s %q", name, v)
	}
	return n, nil
}

// queryDate returns the named YYYY-MM-DD query parameter. It is required.
func queryDate(r *http.Request, name string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return core.Date{}, badRequestf("missing %s", name)
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequestf("invalid %s %q", name, v)
	}
	return d, nil
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	v := r.PathValue("id")
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequestf("invalid id %q", v)
	}
	return id, nil
}

// pathKind parses the {kind} path value ("income", "expenses", ...).
func pathKind(r *http.Request) (core.Kind, error) {
	k, err := core.ParseKind(r.PathValue("kind"))
	if err != nil {
		return "", &badRequest{msg: err.Error()}
	}
	return k, nil
}

// decodeJSON reads a single JSON object from the body into dst, refusing
// unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return badRequestf("empty request body")
		case errors.As(err, &tooLarge):
			return badRequestf("request body too large")
		default:
			return badRequestf("invalid request body: %v", err)
		}
	}
	if dec.More() {
		return badRequestf("invalid request body: trailing data")
	}
	return nil
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// entryRequest is the body of entry create and update calls. Active
// defaults to true when omitted.
type entryRequest struct {
	Name       string         `json:"name"`
	Amount     core.Money     `json:"amount"`
	StartDate  core.Date      `json:"start_date"`
	Frequency  core.Frequency `json:"recurrence_frequency"`
	Interval   int            `json:"recurrence_interval"`
	OneShot    bool           `json:"one_shot"`
	Active     *bool          `json:"active"`
	WalletID   *int64         `json:"wallet_id"`
	CategoryID *int64         `json:"expense_category_id"`
}

func (req entryRequest) entry(kind core.Kind, id int64) core.Entry {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return core.Entry{
		ID:         id,
		Kind:       kind,
		Name:       sanitizeInput(req.Name),
		Amount:     req.Amount,
		StartDate:  req.StartDate,
		Frequency:  core.Frequency(strings.ToUpper(strings.TrimSpace(string(req.Frequency)))),
		Interval:   req.Interval,
		OneShot:    req.OneShot,
		Active:     active,
		WalletID:   req.WalletID,
		CategoryID: req.CategoryID,
	}
}

type walletRequest struct {
	Name     string          `json:"name"`
	Type     core.WalletType `json:"type"`
	Currency string          `json:"currency"`
	Active   *bool           `json:"active"`
}

func (req walletRequest) wallet(id int64) core.Wallet {
	w := core.Wallet{
		ID:       id,
		Name:     sanitizeInput(req.Name),
		Type:     core.WalletType(strings.ToUpper(strings.TrimSpace(string(req.Type)))),
		Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
		Active:   true,
	}
	if w.Currency == "" {
		w.Currency = "EUR"
	}
	if req.Active != nil {
		w.Active = *req.Active
	}
	return w
}

type categoryRequest struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Active *bool  `json:"active"`
}

func (req categoryRequest) category(id int64) core.ExpenseCategory {
	c := core.ExpenseCategory{
		ID:     id,
		Name:   sanitizeInput(req.Name),
		Color:  strings.TrimSpace(req.Color),
		Active: true,
	}
	if req.Active != nil {
		c.Active = *req.Active
	}
	return c
}

type snapshotLineRequest struct {
	WalletID int64      `json:"wallet_id"`
	Amount   core.Money `json:"amount"`
}

type snapshotRequest struct {
	Date  core.Date             `json:"date"`
	Lines []snapshotLineRequest `json:"lines"`
}

func (req snapshotRequest) lines() []core.SnapshotLine {
	out := make([]core.SnapshotLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		out = append(out, core.SnapshotLine{WalletID: l.WalletID, Amount: l.Amount})
	}
	return out
}
