package server

import (
	"sort"
	"sync"
)

// Tracker counts live connections per route.
type Tracker struct {
	mu       sync.Mutex
	active   map[string]int
	accepted map[string]int
}

// RouteStats is a point-in-time view of one route.
type RouteStats struct {
	Route    string `json:"route"`
	Active   int    `json:"active"`
	Accepted int    `json:"accepted"`
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		active:   make(map[string]int),
		accepted: make(map[string]int),
	}
}

// Acquire registers a new connection on route. The returned release must be
// called exactly once when the connection ends; extra calls are ignored.
func (t *Tracker) Acquire(route string) (release func()) {
	t.mu.Lock()
	t.active[route]++
	t.accepted[route]++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.active[route]--
			t.mu.Unlock()
		})
	}
}

// Active returns the number of open connections across all routes.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, n := range t.active {
		total += n
	}
	return total
}

// Snapshot returns per-route counters sorted by route name.
func (t *Tracker) Snapshot() []RouteStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]RouteStats, 0, len(t.accepted))
	for route, accepted := range t.accepted {
		out = append(out, RouteStats{Route: route, Active: t.active[route], Accepted: accepted})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}
