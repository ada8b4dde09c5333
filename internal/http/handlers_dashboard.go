package http

import (
	"net/http"

	"bilancio/internal/dashboard"
)

// handleDashboard serves the assembled view-model. window and limit are
// optional and clamped by the service.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window", 0)
	if err != nil {
		writeError(w, r, "dashboard", err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, "dashboard", err)
		return
	}

	data, err := s.dashboard.Dashboard(r.Context(), dashboard.Options{CashflowWindow: window, UpcomingLimit: limit})
	if err != nil {
		writeError(w, r, "dashboard", err)
		return
	}
	NewJSONResponse().Data(data).Write(w)
}

// handleOccurrences lists every occurrence dated within [from, to].
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, r, "occurrences", err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, r, "occurrences", err)
		return
	}

	occ, err := s.dashboard.Occurrences(r.Context(), from, to)
	if err != nil {
		writeError(w, r, "occurrences", err)
		return
	}
	NewJSONResponse().Data(occ).Write(w)
}

// handleCashflow returns per-month totals for the window ending at
// year/month (default: the current month).
func (s *Server) handleCashflow(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r, s.dashboard.Today())
	if err != nil {
		writeError(w, r, "cashflow", err)
		return
	}
	window, err := queryInt(r, "window", 0)
	if err != nil {
		writeError(w, r, "cashflow", err)
		return
	}

	report, err := s.dashboard.MonthTotals(r.Context(), params.Year, params.Month, window)
	if err != nil {
		writeError(w, r, "cashflow", err)
		return
	}
	NewJSONResponse().Data(report).Write(w)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, "upcoming", err)
		return
	}
	occ, err := s.dashboard.Upcoming(r.Context(), limit)
	if err != nil {
		writeError(w, r, "upcoming", err)
		return
	}
	NewJSONResponse().Data(occ).Write(w)
}
