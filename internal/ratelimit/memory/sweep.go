package memory

import (
	"sort"
)

// SweepResult counts what one sweep removed.
type SweepResult struct {
	Expired   int // idle longer than the entry lifetime
	Evicted   int // dropped to get back under MaxTrackedClients
	Remaining int
}

// Sweep prunes the store under a single lock acquisition: first every entry
// idle for longer than the entry lifetime, then, if the map is still over
// MaxTrackedClients, the least recently accessed entries until it is not.
// Ties on access time are broken by key so results are reproducible.
func (l *Limiter) Sweep() SweepResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var res SweepResult

	for key, b := range l.store.buckets {
		if now.Sub(b.LastAccess) > l.cfg.EntryLifetime {
			l.store.remove(key)
			res.Expired++
		}
	}

	if over := l.store.len() - l.cfg.MaxTrackedClients; over > 0 {
		entries := l.store.snapshot()
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].lastAccess.Equal(entries[j].lastAccess) {
				return entries[i].key < entries[j].key
			}
			return entries[i].lastAccess.Before(entries[j].lastAccess)
		})
		for _, e := range entries[:over] {
			l.store.remove(e.key)
		}
		res.Evicted = over
	}

	res.Remaining = l.store.len()
	return res
}
