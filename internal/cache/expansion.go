package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/recurrence"
)

// Expansion memoizes recurrence expansion per (entry, range). The key
// includes every field that influences the result, so an edited entry never
// hits a stale value even before Purge is called.
type Expansion struct {
	inner  recurrence.Expander
	lru    *LRUCache[[]core.Date]
	hits   atomic.Int64
	misses atomic.Int64
}

var _ recurrence.Expander = (*Expansion)(nil)

// NewExpansion wraps inner (nil for recurrence.Rules) with an LRU of size
// items that expire after ttl.
func NewExpansion(inner recurrence.Expander, size int, ttl time.Duration) *Expansion {
	if inner == nil {
		inner = recurrence.Rules{}
	}
	return &Expansion{
		inner: inner,
		lru:   NewLRUCache[[]core.Date](size, ttl),
	}
}

// OccurrencesInRange returns the cached expansion or computes and stores it.
// Callers get their own copy of the slice.
func (x *Expansion) OccurrencesInRange(e core.Entry, rangeStart, rangeEnd core.Date) []core.Date {
	key := expansionKey(e, rangeStart, rangeEnd)
	if dates, ok := x.lru.Get(key); ok {
		x.hits.Add(1)
		return clone(dates)
	}
	x.misses.Add(1)
	dates := x.inner.OccurrencesInRange(e, rangeStart, rangeEnd)
	x.lru.Set(key, clone(dates))
	return dates
}

// Purge drops every memoized expansion.
func (x *Expansion) Purge() {
	x.lru.Purge()
}

// CleanExpired implements Cleaner.
func (x *Expansion) CleanExpired() int {
	return x.lru.CleanExpired()
}

// Size is the number of memoized expansions.
func (x *Expansion) Size() int {
	return x.lru.Size()
}

// Stats reports lookups served from and missed by the cache.
func (x *Expansion) Stats() (hits, misses int64) {
	return x.hits.Load(), x.misses.Load()
}

func expansionKey(e core.Entry, rangeStart, rangeEnd core.Date) string {
	return fmt.Sprintf("%s:%d:%s:%s:%s", e.Kind, e.ID, rangeStart, rangeEnd, ruleFingerprint(e))
}

// ruleFingerprint encodes the fields of e that the expander reads.
func ruleFingerprint(e core.Entry) string {
	return fmt.Sprintf("%s|%s|%d|%t|%t", e.StartDate, e.Frequency, e.Interval, e.OneShot, e.Active)
}

func clone(dates []core.Date) []core.Date {
	if dates == nil {
		return nil
	}
	return append([]core.Date(nil), dates...)
}
