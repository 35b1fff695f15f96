package http

import (
	"sync"
	"time"
)

// DefaultClickDedupTTL is how long a click token counts as already applied
const DefaultClickDedupTTL = 24 * time.Hour

// clickDeduper remembers recently applied click tokens so link prefetchers,
// mail scanners and reloads nudge a preference only once. A token is unique
// per user, article and issue time. State is per process.
type clickDeduper struct {
	ttl       time.Duration
	now       func() time.Time
	mu        sync.Mutex
	seen      map[string]time.Time
	nextSweep time.Time
}

func newClickDeduper(ttl time.Duration, now func() time.Time) *clickDeduper {
	return &clickDeduper{
		ttl:  ttl,
		now:  now,
		seen: make(map[string]time.Time),
	}
}

// First reports whether key has not been seen within the TTL, and marks it seen
func (d *clickDeduper) First(key string) bool {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if now.After(d.nextSweep) {
		for k, expiresAt := range d.seen {
			if !expiresAt.After(now) {
				delete(d.seen, k)
			}
		}
		d.nextSweep = now.Add(d.ttl)
	}

	if expiresAt, ok := d.seen[key]; ok && expiresAt.After(now) {
		return false
	}
	d.seen[key] = now.Add(d.ttl)
	return true
}
