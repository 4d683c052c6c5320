package count

import "time"

// duplicateFilter decides whether a payload is reported again. It belongs to
// a single mode and is only touched on the processing goroutine.
type duplicateFilter struct {
	last map[string]time.Time
}

func newDuplicateFilter() *duplicateFilter {
	return &duplicateFilter{last: make(map[string]time.Time)}
}

// report records a sighting of key at time at and reports whether it should
// be announced under the given window.
func (d *duplicateFilter) report(key string, at time.Time, window time.Duration) bool {
	if !d.allows(key, at, window) {
		return false
	}
	d.record(key, at)
	return true
}

// allows reports whether key may be announced at time at without recording
// anything.
func (d *duplicateFilter) allows(key string, at time.Time, window time.Duration) bool {
	last, seen := d.last[key]
	switch {
	case window == 0, !seen:
		return true
	case window < 0:
		return false
	}
	return at.Sub(last) >= window
}

func (d *duplicateFilter) record(key string, at time.Time) {
	d.last[key] = at
}

func (d *duplicateFilter) reset() {
	clear(d.last)
}
