package result

import (
	"encoding/csv"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/config"
	"barcodecount/pkg/ledger"
	"barcodecount/pkg/metrics"
	"barcodecount/pkg/timeutil"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func newTestWriter(t *testing.T) *Writer {
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
	return NewWriter(filepath.Join(t.TempDir(), "results"), config.SystemLinux, config.SourceCore, 2, clock)
}

func TestWriteAllResults(t *testing.T) {
	a := metrics.NewAnalyzer()
	for run := 0; run < 2; run++ {
		rec := metrics.NewRecorder()
		for i := 0; i < 3; i++ {
			require.NoError(t, rec.Record("ProcessFrame", metrics.MLogic, func() error {
				return rec.Record("Detect", metrics.MDecode, func() error {
					time.Sleep(time.Millisecond)
					return nil
				})
			}))
		}
		a.Add(rec)
	}

	w := newTestWriter(t)
	rawPath, statsPath, err := w.WriteAllResults(a.Analyze())
	require.NoError(t, err)
	assert.Equal(t, "RAW_SLinux_CCore_R2_T2024-03-01-09-30-00.csv", filepath.Base(rawPath))

	raw := readCSV(t, rawPath)
	require.Len(t, raw, 1+2*3*2)
	assert.Equal(t, []string{"Run", "Path", "MetricType", "WallClock_us", "UserTime_us", "SystemTime_us"}, raw[0])
	assert.Equal(t, []string{"0", "ProcessFrame", "Logic"}, raw[1][:3])
	assert.Equal(t, []string{"0", "ProcessFrame/Detect", "Decode"}, raw[2][:3])
	assert.Equal(t, "ProcessFrame_1", raw[3][1])
	assert.Equal(t, "1", raw[7][0])

	stats := readCSV(t, statsPath)
	var metricsSeen []string
	for _, row := range stats[1:] {
		assert.Equal(t, "ProcessFrame", row[0])
		assert.Equal(t, "6", row[3])
		if row[2] == "WallClock" {
			metricsSeen = append(metricsSeen, row[1])
		}
	}
	assert.Equal(t, []string{"Decode", metrics.DerivedLogic, metrics.DerivedWallClock}, metricsSeen)
}

func TestWriteAllResultsEmpty(t *testing.T) {
	w := newTestWriter(t)
	rawPath, statsPath, err := w.WriteAllResults(metrics.NewAnalyzer().Analyze())
	require.NoError(t, err)
	assert.Len(t, readCSV(t, rawPath), 1)
	assert.Len(t, readCSV(t, statsPath), 1)
}

func TestWriteCountReport(t *testing.T) {
	l := ledger.NewLedger()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, data := range []string{"ITEM-0002", "ITEM-0001", "ITEM-0001"} {
		l.Append(&ledger.Entry{
			RunID:     "run-1",
			TrackID:   i + 1,
			Symbology: barcode.SymbologyCode128,
			Data:      data,
			At:        at,
		})
	}
	root, err := l.Root()
	require.NoError(t, err)

	path, err := newTestWriter(t).WriteCountReport("run-1", l)
	require.NoError(t, err)
	rows := readCSV(t, path)
	assert.Equal(t, [][]string{
		{"Run", "Barcode", "Count"},
		{"run-1", "code128:ITEM-0001", "2"},
		{"run-1", "code128:ITEM-0002", "1"},
		{"run-1", "TOTAL", "3"},
		{"run-1", "ROOT", hex.EncodeToString(root)},
	}, rows)
}

func TestWriteCountReportEmptyLedger(t *testing.T) {
	path, err := newTestWriter(t).WriteCountReport("run-2", ledger.NewLedger())
	require.NoError(t, err)
	rows := readCSV(t, path)
	assert.Equal(t, []string{"run-2", "ROOT", ""}, rows[len(rows)-1])
}
