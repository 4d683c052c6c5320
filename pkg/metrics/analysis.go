package metrics

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Derived metric names reported alongside the per-type breakdown.
const (
	DerivedWallClock = "WallClock" // Inclusive time of the component.
	DerivedLogic     = "Logic"     // Inclusive time minus every non-logic descendant.
)

// StatSummary holds the statistics of one series of durations.
type StatSummary struct {
	Count int
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	Min   time.Duration
	Max   time.Duration
}

// TimeTotalsStats holds a StatSummary per clock.
type TimeTotalsStats struct {
	WallClock StatSummary
	User      StatSummary
	System    StatSummary
}

// ComponentResult holds the summaries of a single conceptual component
// (e.g. "ProcessFrame"), keyed by derived metric name.
type ComponentResult struct {
	ConceptualName string
	Summaries      map[string]TimeTotalsStats
}

// AnalysisResult is the output of the analyzer.
type AnalysisResult struct {
	Components map[string]ComponentResult
	Recorders  []*Recorder // Kept for writing the raw rows.
}

// Names returns the component names in sorted order.
func (r AnalysisResult) Names() []string {
	names := make([]string, 0, len(r.Components))
	for name := range r.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Analyzer aggregates the measurement trees of several runs.
type Analyzer struct {
	recorders []*Recorder
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Add collects the recorder of a single run.
func (a *Analyzer) Add(recorder *Recorder) {
	if recorder == nil {
		return
	}
	a.recorders = append(a.recorders, recorder)
}

// series collects raw samples of one derived metric.
type series struct {
	wall, user, system []time.Duration
}

func (s *series) add(t TimeTotals) {
	s.wall = append(s.wall, t.WallClock)
	s.user = append(s.user, t.UserTime)
	s.system = append(s.system, t.SystemTime)
}

func (s *series) stats() TimeTotalsStats {
	return TimeTotalsStats{
		WallClock: calculateStats(s.wall),
		User:      calculateStats(s.user),
		System:    calculateStats(s.system),
	}
}

// samples maps component name to derived metric name to its series.
type samples map[string]map[string]*series

func (s samples) get(component, derived string) *series {
	byMetric, ok := s[component]
	if !ok {
		byMetric = make(map[string]*series)
		s[component] = byMetric
	}
	ser, ok := byMetric[derived]
	if !ok {
		ser = &series{}
		byMetric[derived] = ser
	}
	return ser
}

// Analyze walks every collected tree and summarizes each MLogic component.
func (a *Analyzer) Analyze() AnalysisResult {
	collected := make(samples)
	for _, rec := range a.recorders {
		for _, root := range rec.RootMeasurements() {
			a.walk(root, collected)
		}
	}

	result := AnalysisResult{
		Components: make(map[string]ComponentResult, len(collected)),
		Recorders:  a.recorders,
	}
	for name, byMetric := range collected {
		comp := ComponentResult{
			ConceptualName: name,
			Summaries:      make(map[string]TimeTotalsStats, len(byMetric)),
		}
		for derived, ser := range byMetric {
			comp.Summaries[derived] = ser.stats()
		}
		result.Components[name] = comp
	}
	return result
}

// walk returns the time the subtree rooted at m contributes per measurement
// type, recording derived samples for MLogic nodes on the way.
func (a *Analyzer) walk(m *Measurement, collected samples) map[MeasurementType]TimeTotals {
	below := make(map[MeasurementType]TimeTotals)
	for _, child := range m.Children {
		for mType, totals := range a.walk(child, collected) {
			below[mType] = below[mType].plus(totals)
		}
	}

	if m.Type == MLogic {
		collected.get(m.ConceptualName, DerivedWallClock).add(m.Inclusive)

		var nonLogic TimeTotals
		for mType, totals := range below {
			if mType == MLogic || totals.isZero() {
				continue
			}
			nonLogic = nonLogic.plus(totals)
			collected.get(m.ConceptualName, mType.String()).add(totals)
		}
		collected.get(m.ConceptualName, DerivedLogic).add(m.Inclusive.minusFloor(nonLogic))
	}

	below[m.Type] = below[m.Type].plus(m.Inclusive)
	return below
}

func (t TimeTotals) plus(o TimeTotals) TimeTotals {
	return TimeTotals{
		WallClock:  t.WallClock + o.WallClock,
		UserTime:   t.UserTime + o.UserTime,
		SystemTime: t.SystemTime + o.SystemTime,
	}
}

// minusFloor subtracts o from t, clamping each clock at zero.
func (t TimeTotals) minusFloor(o TimeTotals) TimeTotals {
	return TimeTotals{
		WallClock:  max(0, t.WallClock-o.WallClock),
		UserTime:   max(0, t.UserTime-o.UserTime),
		SystemTime: max(0, t.SystemTime-o.SystemTime),
	}
}

func (t TimeTotals) isZero() bool {
	return t.WallClock <= 0 && t.UserTime <= 0 && t.SystemTime <= 0
}

// calculateStats computes summary statistics for a slice of durations.
func calculateStats(durations []time.Duration) StatSummary {
	if len(durations) == 0 {
		return StatSummary{}
	}

	floats := make([]float64, len(durations))
	mmin, mmax := durations[0], durations[0]
	for i, v := range durations {
		floats[i] = float64(v.Microseconds())
		mmin = min(mmin, v)
		mmax = max(mmax, v)
	}
	sort.Float64s(floats)

	return StatSummary{
		Count: len(durations),
		Mean:  time.Duration(stat.Mean(floats, nil)) * time.Microsecond,
		P50:   time.Duration(stat.Quantile(0.5, stat.Empirical, floats, nil)) * time.Microsecond,
		P95:   time.Duration(stat.Quantile(0.95, stat.Empirical, floats, nil)) * time.Microsecond,
		Min:   mmin,
		Max:   mmax,
	}
}
