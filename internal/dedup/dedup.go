// Package dedup suppresses re-processing of notifications already
// handled within a trailing time window.
package dedup

import "time"

// Gate is an in-memory sliding-window duplicate filter. Entries are
// purged lazily when their expiry has passed; nothing is scheduled.
// The map is volatile: a process restart forgets everything, which is
// an accepted limitation, not a bug.
//
// Gate is not safe for concurrent use; the orchestrator serializes
// notification processing.
type Gate struct {
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewGate creates a gate with the given window.
func NewGate(ttl time.Duration) *Gate {
	return &Gate{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[string]time.Time),
	}
}

// ShouldProcess reports whether a notification with this id should be
// processed. An empty id always processes: without an upstream
// identifier there is nothing to deduplicate on, and inventing a
// synthetic key would guess at the sender's retry-identity guarantees.
func (g *Gate) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}

	now := g.now()
	for seenID, expiresAt := range g.seen {
		if !expiresAt.After(now) {
			delete(g.seen, seenID)
		}
	}

	if _, dup := g.seen[id]; dup {
		// Duplicate within the window. The entry is deliberately not
		// refreshed: the window is anchored to the first delivery.
		return false
	}

	g.seen[id] = now.Add(g.ttl)
	return true
}
