package monitor

import "sync"

// dedupSet remembers seen post IDs with a hard capacity. When full, the
// oldest half is evicted so long-running streams keep bounded memory.
type dedupSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	cap   int
}

func newDedupSet(capacity int) *dedupSet {
	if capacity <= 0 {
		capacity = 10000
	}
	return &dedupSet{
		ids:   make(map[string]struct{}, capacity),
		order: make([]string, 0, capacity),
		cap:   capacity,
	}
}

// Seen reports whether the ID was already recorded, recording it otherwise.
func (d *dedupSet) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.ids[id]; ok {
		return true
	}

	if len(d.order) >= d.cap {
		half := len(d.order) / 2
		for _, old := range d.order[:half] {
			delete(d.ids, old)
		}
		d.order = append(d.order[:0], d.order[half:]...)
	}

	d.ids[id] = struct{}{}
	d.order = append(d.order, id)
	return false
}

// Len returns the number of remembered IDs.
func (d *dedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ids)
}
