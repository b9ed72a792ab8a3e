package booking

import "sync"

// guideLocks serializes mutations per guide so bookings for different
// guides never contend. Entries are never evicted; the map is bounded by
// the guide population, which is small relative to booking traffic.
type guideLocks struct {
	mu   sync.Mutex
	held map[string]*sync.Mutex
}

func newGuideLocks() *guideLocks {
	return &guideLocks{held: make(map[string]*sync.Mutex)}
}

// lock acquires the guide's mutex and returns the unlock func.
func (g *guideLocks) lock(guideID string) func() {
	g.mu.Lock()
	m, ok := g.held[guideID]
	if !ok {
		m = &sync.Mutex{}
		g.held[guideID] = m
	}
	g.mu.Unlock()

	m.Lock()
	return m.Unlock
}
