package finance

import (
	"bilancio/internal/core"
)

// UncategorizedID is the CategoryID reported on the bucket for expenses
// without a known category. Stores never issue negative ids.
const UncategorizedID int64 = -1

// UncategorizedLabel names that bucket.
const UncategorizedLabel = "Uncategorized"

// CategoryBucket is the expense total of one category within a window.
type CategoryBucket struct {
	CategoryID int64      `json:"category_id"`
	Label      string     `json:"label"`
	Color      string     `json:"color,omitempty"`
	Value      core.Money `json:"value"`
	// Share of the window's total, 0 when the total is 0.
	Pct float64 `json:"pct"`
}

// CategoryBreakdown expands active expense entries within [start, end] and
// sums occurrences per category. An entry with no category, or one pointing
// at a category that does not exist, lands in the uncategorized bucket.
// Entries with an out-of-range amount are skipped. Buckets are returned in
// order of first appearance.
func (a *Aggregator) CategoryBreakdown(expense []core.Entry, categories []core.ExpenseCategory, start, end core.Date) []CategoryBucket {
	known := make(map[int64]core.ExpenseCategory, len(categories))
	for _, c := range categories {
		known[c.ID] = c
	}

	type bucketKey struct {
		id            int64
		uncategorized bool
	}

	pos := make(map[bucketKey]int)
	var out []CategoryBucket
	var total int64
	for _, e := range expense {
		if !countable(e) {
			continue
		}
		n := len(a.expander.OccurrencesInRange(e, start, end))
		if n == 0 {
			continue
		}

		key := bucketKey{uncategorized: true}
		bucket := CategoryBucket{CategoryID: UncategorizedID, Label: UncategorizedLabel}
		if e.CategoryID != nil {
			if c, ok := known[*e.CategoryID]; ok {
				key = bucketKey{id: c.ID}
				bucket = CategoryBucket{CategoryID: c.ID, Label: c.Name, Color: c.Color}
			}
		}

		i, seen := pos[key]
		if !seen {
			i = len(out)
			pos[key] = i
			out = append(out, bucket)
		}
		amount := e.Amount.Times(n)
		out[i].Value = out[i].Value.Add(amount)
		total += amount.Cents
	}

	for i := range out {
		out[i].Pct = share(out[i].Value.Cents, total)
	}
	return out
}

// share returns part/total, or 0 for a zero total.
func share(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
