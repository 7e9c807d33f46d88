package monitor

import (
	"sync"
	"time"
)

// SpikeTracker counts posts per entity over a trailing window and flags
// volume spikes. Timestamps outside the window are pruned on every access.
type SpikeTracker struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	hits      map[string][]time.Time
	now       func() time.Time
}

// NewSpikeTracker creates a tracker flagging entities whose post count over
// the window exceeds threshold.
func NewSpikeTracker(window time.Duration, threshold int) *SpikeTracker {
	if window <= 0 {
		window = 5 * time.Minute
	}
	if threshold <= 0 {
		threshold = 10
	}
	return &SpikeTracker{
		window:    window,
		threshold: threshold,
		hits:      map[string][]time.Time{},
		now:       time.Now,
	}
}

// Record registers one post for the entity and returns the in-window count
// and whether the entity is spiking.
func (t *SpikeTracker) Record(entity string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	hits := t.prune(entity, now)
	hits = append(hits, now)
	t.hits[entity] = hits
	return len(hits), len(hits) > t.threshold
}

// Count returns the in-window count for the entity without recording.
func (t *SpikeTracker) Count(entity string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	hits := t.prune(entity, t.now())
	t.hits[entity] = hits
	return len(hits)
}

// prune must be called with t.mu held.
func (t *SpikeTracker) prune(entity string, now time.Time) []time.Time {
	cutoff := now.Add(-t.window)
	hits := t.hits[entity]
	kept := hits[:0]
	for _, ts := range hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
