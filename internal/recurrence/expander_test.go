package recurrence

import (
	"reflect"
	"testing"
	"time"

	"bilancio/internal/core"
)

func d(s string) core.Date { return core.MustDate(s) }

func dates(ss ...string) []core.Date {
	out := make([]core.Date, len(ss))
	for i, s := range ss {
		out[i] = d(s)
	}
	return out
}

func recurring(start string, f core.Frequency, interval int) core.Entry {
	return core.Entry{
		ID:        1,
		Kind:      core.Expense,
		Name:      "rule",
		Amount:    core.Cents(1000),
		StartDate: d(start),
		Frequency: f,
		Interval:  interval,
		Active:    true,
	}
}

func TestOccurrencesInRange(t *testing.T) {
	tests := []struct {
		name       string
		entry      core.Entry
		start, end string
		want       []core.Date
	}{
		{
			name:  "monthly clamps from the original start date",
			entry: recurring("2024-01-31", core.Monthly, 1),
			start: "2024-01-01", end: "2024-04-30",
			want: dates("2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"),
		},
		{
			name:  "weekly every two weeks",
			entry: recurring("2024-01-01", core.Weekly, 2),
			start: "2024-01-01", end: "2024-02-15",
			want: dates("2024-01-01", "2024-01-15", "2024-01-29", "2024-02-12"),
		},
		{
			name:  "monthly every two months",
			entry: recurring("2024-01-15", core.Monthly, 2),
			start: "2024-01-01", end: "2024-08-31",
			want: dates("2024-01-15", "2024-03-15", "2024-05-15", "2024-07-15"),
		},
		{
			name:  "yearly leap day clamps in non-leap years",
			entry: recurring("2024-02-29", core.Yearly, 1),
			start: "2024-01-01", end: "2028-12-31",
			want: dates("2024-02-29", "2025-02-28", "2026-02-28", "2027-02-28", "2028-02-29"),
		},
		{
			name:  "range starting long after the start date",
			entry: recurring("2020-01-31", core.Monthly, 1),
			start: "2025-02-01", end: "2025-03-31",
			want: dates("2025-02-28", "2025-03-31"),
		},
		{
			name:  "weekly range in the middle of the rule",
			entry: recurring("2024-01-03", core.Weekly, 1),
			start: "2024-03-01", end: "2024-03-20",
			want: dates("2024-03-06", "2024-03-13", "2024-03-20"),
		},
		{
			name:  "range ends before start",
			entry: recurring("2024-06-01", core.Monthly, 1),
			start: "2024-01-01", end: "2024-05-31",
			want: nil,
		},
		{
			name:  "reversed range",
			entry: recurring("2024-01-01", core.Weekly, 1),
			start: "2024-03-01", end: "2024-02-01",
			want: nil,
		},
		{
			name:  "single day range on an occurrence",
			entry: recurring("2024-01-10", core.Monthly, 1),
			start: "2024-04-10", end: "2024-04-10",
			want: dates("2024-04-10"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OccurrencesInRange(tt.entry, d(tt.start), d(tt.end))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("OccurrencesInRange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOneShotExclusivity(t *testing.T) {
	e := core.Entry{ID: 7, Kind: core.Income, Name: "bonus", Amount: core.Cents(100), StartDate: d("2024-06-01"), OneShot: true, Active: true,
		Frequency: core.Weekly, Interval: 1}

	if got := OccurrencesInRange(e, d("2000-01-01"), d("2099-12-31")); !reflect.DeepEqual(got, dates("2024-06-01")) {
		t.Fatalf("wide range: got %v", got)
	}
	if got := OccurrencesInRange(e, d("2024-06-01"), d("2024-06-01")); len(got) != 1 {
		t.Fatalf("exact range: got %v", got)
	}
	if got := OccurrencesInRange(e, d("2024-06-02"), d("2024-12-31")); got != nil {
		t.Fatalf("range after start: got %v", got)
	}
	if got := OccurrencesInRange(e, d("2024-01-01"), d("2024-05-31")); got != nil {
		t.Fatalf("range before start: got %v", got)
	}
}

func TestInactiveAndInvalidRulesYieldNothing(t *testing.T) {
	inactive := recurring("2024-01-01", core.Weekly, 1)
	inactive.Active = false

	noFrequency := recurring("2024-01-01", "", 1)
	zeroInterval := recurring("2024-01-01", core.Monthly, 0)
	negativeInterval := recurring("2024-01-01", core.Monthly, -1)
	unknown := recurring("2024-01-01", "DAILY", 1)

	for name, e := range map[string]core.Entry{
		"inactive":          inactive,
		"no frequency":      noFrequency,
		"zero interval":     zeroInterval,
		"negative interval": negativeInterval,
		"unknown frequency": unknown,
	} {
		t.Run(name, func(t *testing.T) {
			if got := OccurrencesInRange(e, d("2024-01-01"), d("2024-12-31")); got != nil {
				t.Fatalf("expected no occurrences, got %v", got)
			}
		})
	}
}

func TestDeterminismAndContainment(t *testing.T) {
	entries := []core.Entry{
		recurring("2023-11-30", core.Monthly, 1),
		recurring("2024-02-29", core.Yearly, 2),
		recurring("2024-01-05", core.Weekly, 3),
		recurring("2024-08-31", core.Monthly, 5),
	}
	ranges := [][2]string{
		{"2024-01-01", "2024-12-31"},
		{"2023-01-01", "2023-12-31"},
		{"2024-02-29", "2024-03-01"},
		{"2030-01-01", "2032-06-30"},
	}

	var rules Rules
	for _, e := range entries {
		for _, r := range ranges {
			s, end := d(r[0]), d(r[1])
			first := rules.OccurrencesInRange(e, s, end)
			second := rules.OccurrencesInRange(e, s, end)
			if !reflect.DeepEqual(first, second) {
				t.Fatalf("non deterministic expansion for %v in %v", e.StartDate, r)
			}

			lower := s
			if e.StartDate.After(lower) {
				lower = e.StartDate
			}
			for i, got := range first {
				if got.Before(lower) || got.After(end) {
					t.Fatalf("date %s outside [%s, %s]", got, lower, end)
				}
				if i > 0 && !first[i-1].Before(got) {
					t.Fatalf("dates not strictly ascending: %v", first)
				}
			}
		}
	}
}

func TestSkipAheadMatchesFullWalk(t *testing.T) {
	// Walking from the start date must give the same tail as a late range.
	e := recurring("2019-03-31", core.Monthly, 3)
	full := OccurrencesInRange(e, d("2019-01-01"), d("2026-12-31"))
	late := OccurrencesInRange(e, d("2025-01-01"), d("2026-12-31"))

	var tail []core.Date
	for _, x := range full {
		if !x.Before(d("2025-01-01")) {
			tail = append(tail, x)
		}
	}
	if !reflect.DeepEqual(tail, late) {
		t.Fatalf("late range %v differs from full walk tail %v", late, tail)
	}
}

func TestGetStepper(t *testing.T) {
	for _, f := range []core.Frequency{core.Weekly, core.Monthly, core.Yearly} {
		if _, err := GetStepper(f); err != nil {
			t.Errorf("GetStepper(%s) unexpected error: %v", f, err)
		}
	}
	if _, err := GetStepper("DAILY"); err == nil {
		t.Error("expected error for unsupported frequency")
	}
}

func TestHugeIntervalsTerminate(t *testing.T) {
	tests := []struct {
		name  string
		entry core.Entry
		want  []core.Date
	}{
		{"weekly 1<<60", recurring("2024-01-01", core.Weekly, 1<<60), nil},
		{"yearly 1<<60", recurring("2024-01-01", core.Yearly, 1<<60), nil},
		{"monthly 1<<40", recurring("2024-01-01", core.Monthly, 1<<40), nil},
		{"yearly at max", recurring("2024-01-01", core.Yearly, core.MaxInterval), dates("2024-01-01")},
		{"weekly at max", recurring("2024-01-01", core.Weekly, core.MaxInterval), dates("2024-01-01")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan []core.Date, 1)
			go func() { done <- OccurrencesInRange(tt.entry, d("2024-01-01"), d("2030-12-31")) }()
			select {
			case got := <-done:
				if !reflect.DeepEqual(got, tt.want) {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			case <-time.After(3 * time.Second):
				t.Fatal("expansion did not return")
			}
		})
	}
}

type stuckStepper struct{}

func (stuckStepper) Nth(start core.Date, k, interval int) core.Date { return start }

func TestNonAdvancingStepStops(t *testing.T) {
	orig := steppers[core.Weekly]
	steppers[core.Weekly] = stuckStepper{}
	defer func() { steppers[core.Weekly] = orig }()

	done := make(chan []core.Date, 1)
	go func() {
		done <- OccurrencesInRange(recurring("2024-01-01", core.Weekly, 1), d("2024-01-01"), d("2024-12-31"))
	}()
	select {
	case got := <-done:
		if !reflect.DeepEqual(got, dates("2024-01-01")) {
			t.Fatalf("got %v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expansion did not stop on a non-advancing step")
	}
}
