package metrics

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderBuildsNestedTree(t *testing.T) {
	rec := NewRecorder()
	err := rec.Record("Run", MLogic, func() error {
		for i := 0; i < 2; i++ {
			if err := rec.Record("ProcessFrame", MLogic, func() error {
				return rec.Record("Decode", MDecode, func() error { return nil })
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	roots := rec.RootMeasurements()
	require.Len(t, roots, 1)
	run := roots[0]
	assert.Equal(t, 0, run.Depth)
	require.Len(t, run.Children, 2)
	assert.Equal(t, "ProcessFrame", run.Children[0].UniqueName)
	assert.Equal(t, "ProcessFrame_1", run.Children[1].UniqueName)
	assert.Equal(t, 2, run.Children[1].Children[0].Depth)
}

func TestRecorderPropagatesError(t *testing.T) {
	rec := NewRecorder()
	boom := errors.New("boom")
	err := rec.Record("Run", MLogic, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.RootMeasurements(), 1)
}

func TestNilRecorderRunsFunction(t *testing.T) {
	var rec *Recorder
	called := false
	require.NoError(t, rec.Record("x", MLogic, func() error { called = true; return nil }))
	assert.True(t, called)
	assert.Nil(t, rec.RootMeasurements())
}

func TestPrintTreeHidesDeepNodes(t *testing.T) {
	rec := NewRecorder()
	_ = rec.Record("Run", MLogic, func() error {
		return rec.Record("Inner", MDispatch, func() error { return nil })
	})
	var buf bytes.Buffer
	rec.PrintTree(&buf, 0, -1)
	assert.Contains(t, buf.String(), "Run (Logic)")
	assert.Contains(t, buf.String(), "[... 1 hidden ...]")
	assert.NotContains(t, buf.String(), "Inner")
}

func TestAnalyzerDerivesLogicTime(t *testing.T) {
	ms := func(d int) TimeTotals { return TimeTotals{WallClock: time.Duration(d) * time.Millisecond} }
	tree := &Measurement{
		ConceptualName: "ProcessFrame",
		Type:           MLogic,
		Inclusive:      ms(10),
		Children: []*Measurement{
			{ConceptualName: "Decode", Type: MDecode, Inclusive: ms(6), Depth: 1},
			{ConceptualName: "Dispatch", Type: MDispatch, Inclusive: ms(1), Depth: 1},
		},
	}
	rec := NewRecorder()
	rec.rootMeasurements = append(rec.rootMeasurements, tree)

	a := NewAnalyzer()
	a.Add(rec)
	a.Add(nil)
	res := a.Analyze()

	require.Equal(t, []string{"ProcessFrame"}, res.Names())
	comp := res.Components["ProcessFrame"]
	assert.Equal(t, 10*time.Millisecond, comp.Summaries[DerivedWallClock].WallClock.Mean)
	assert.Equal(t, 3*time.Millisecond, comp.Summaries[DerivedLogic].WallClock.Mean)
	assert.Equal(t, 6*time.Millisecond, comp.Summaries["Decode"].WallClock.Max)
	assert.Equal(t, 1, comp.Summaries["Dispatch"].WallClock.Count)
}

func TestCalculateStatsEmpty(t *testing.T) {
	assert.Equal(t, StatSummary{}, calculateStats(nil))
}
