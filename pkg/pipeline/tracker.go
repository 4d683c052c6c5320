package pipeline

import (
	"math"
	"sort"

	"barcodecount/pkg/barcode"
)

// TrackerConfig controls association and dropout handling.
type TrackerConfig struct {
	// MaxMisses is the number of consecutive frames a track may go
	// unmatched before it is lost.
	MaxMisses int
	// GatingDistance is the largest centroid displacement, in pixels,
	// between two frames that still counts as the same barcode. Zero
	// disables gating.
	GatingDistance float64
	// MatchByContent associates scanned detections by payload alone,
	// ignoring the gate.
	MatchByContent bool
}

// DefaultTrackerConfig returns the configuration used by count modes.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{MaxMisses: 2, GatingDistance: 80}
}

// Delta is the outcome of a single Update.
type Delta struct {
	// Tracked holds every live track, including those coasting through
	// misses.
	Tracked map[int]*barcode.TrackedBarcode
	// Present lists the tracks matched or created in this frame, by id.
	Present []*barcode.TrackedBarcode
	// Lost lists the ids dropped in this frame, ascending.
	Lost []int
}

type track struct {
	item   *barcode.TrackedBarcode
	misses int
}

// Tracker assigns stable ids to detections across frames. It is not safe for
// concurrent use.
type Tracker struct {
	cfg    TrackerConfig
	tracks map[int]*track
	lastID int
}

func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{cfg: cfg, tracks: make(map[int]*track)}
}

// SetMatchByContent toggles payload-only association.
func (t *Tracker) SetMatchByContent(v bool) {
	t.cfg.MatchByContent = v
}

// Reset drops every track. Ids are never reused, even across resets.
func (t *Tracker) Reset() {
	t.tracks = make(map[int]*track)
}

// Len returns the number of live tracks.
func (t *Tracker) Len() int {
	return len(t.tracks)
}

type candidate struct {
	det, id int
	dist    float64
}

// Update associates the detections of one frame with the live tracks.
func (t *Tracker) Update(dets []barcode.Detection) Delta {
	var cands []candidate
	for i, det := range dets {
		c := det.Location.Center()
		for id, tr := range t.tracks {
			dist := c.Distance(tr.item.Location.Center())
			if t.matches(det, tr.item, dist) {
				cands = append(cands, candidate{det: i, id: id, dist: dist})
			}
		}
	}
	// Closest pairs first; ties broken on the older track.
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].dist != cands[b].dist {
			return cands[a].dist < cands[b].dist
		}
		if cands[a].id != cands[b].id {
			return cands[a].id < cands[b].id
		}
		return cands[a].det < cands[b].det
	})

	detTaken := make([]bool, len(dets))
	matched := make(map[int]bool)
	var present []*barcode.TrackedBarcode
	for _, c := range cands {
		if detTaken[c.det] || matched[c.id] {
			continue
		}
		detTaken[c.det] = true
		matched[c.id] = true
		tr := t.tracks[c.id]
		tr.misses = 0
		tr.item = refresh(tr.item, dets[c.det])
		present = append(present, tr.item)
	}

	for i, det := range dets {
		if detTaken[i] {
			continue
		}
		t.lastID++
		item := &barcode.TrackedBarcode{
			ID:       t.lastID,
			Barcode:  det.Barcode,
			Location: det.Location,
			Scanned:  det.Scanned,
		}
		t.tracks[item.ID] = &track{item: item}
		matched[item.ID] = true
		present = append(present, item)
	}

	var lost []int
	for id, tr := range t.tracks {
		if matched[id] {
			continue
		}
		tr.misses++
		if tr.misses > t.cfg.MaxMisses {
			delete(t.tracks, id)
			lost = append(lost, id)
		}
	}

	sort.Ints(lost)
	sort.Slice(present, func(a, b int) bool { return present[a].ID < present[b].ID })

	tracked := make(map[int]*barcode.TrackedBarcode, len(t.tracks))
	for id, tr := range t.tracks {
		tracked[id] = tr.item
	}
	return Delta{Tracked: tracked, Present: present, Lost: lost}
}

func (t *Tracker) matches(det barcode.Detection, item *barcode.TrackedBarcode, dist float64) bool {
	gated := dist <= t.gate()
	switch {
	case det.Scanned && item.Scanned:
		return det.Barcode == item.Barcode && (gated || t.cfg.MatchByContent)
	case !det.Scanned && !item.Scanned:
		return gated
	case det.Scanned && !item.Scanned:
		// A located barcode that decodes in a later frame keeps its id.
		return gated
	default:
		// A decoded barcode that is only located keeps its payload.
		return gated
	}
}

func (t *Tracker) gate() float64 {
	if t.cfg.GatingDistance <= 0 {
		return math.Inf(1)
	}
	return t.cfg.GatingDistance
}

// refresh returns the item to publish for a matched track. Published values
// are immutable, so a change yields a new value.
func refresh(item *barcode.TrackedBarcode, det barcode.Detection) *barcode.TrackedBarcode {
	scanned := item.Scanned || det.Scanned
	payload := item.Barcode
	if det.Scanned {
		payload = det.Barcode
	}
	if item.Location == det.Location && item.Scanned == scanned && item.Barcode == payload {
		return item
	}
	return &barcode.TrackedBarcode{
		ID:       item.ID,
		Barcode:  payload,
		Location: det.Location,
		Scanned:  scanned,
	}
}
