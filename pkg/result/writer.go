// Package result writes the CSV files produced by a simulation: raw and
// summarized timings, and the per-run count report.
package result

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"barcodecount/pkg/config"
	"barcodecount/pkg/ledger"
	"barcodecount/pkg/log"
	"barcodecount/pkg/metrics"
	"barcodecount/pkg/timeutil"
)

// Writer is responsible for creating and writing result files.
type Writer struct {
	resultsPath string
	system      config.SystemType
	source      config.SourceType
	runs        uint64
	clock       timeutil.Clock
}

// NewWriter creates a new writer for result files. A nil clock uses the
// wall clock for file names.
func NewWriter(resultsPath string, system config.SystemType, source config.SourceType, runs uint64, clock timeutil.Clock) *Writer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Writer{
		resultsPath: resultsPath,
		system:      system,
		source:      source,
		runs:        runs,
		clock:       clock,
	}
}

// WriteAllResults writes the RAW and STATS files and returns their paths.
func (w *Writer) WriteAllResults(res metrics.AnalysisResult) (rawPath, statsPath string, err error) {
	if err := os.MkdirAll(w.resultsPath, 0755); err != nil {
		return "", "", fmt.Errorf("could not create results directory %s: %w", w.resultsPath, err)
	}
	if rawPath, err = w.writeRawResults(res); err != nil {
		return "", "", fmt.Errorf("failed to write raw results: %w", err)
	}
	if statsPath, err = w.writeStatResults(res); err != nil {
		return "", "", fmt.Errorf("failed to write statistical results: %w", err)
	}
	return rawPath, statsPath, nil
}

// generateFilename creates a standardized filename for a result file.
// Example: RAW_SMac_CCore_R100_T2025-01-02-15-04-05.csv
func (w *Writer) generateFilename(fileType string) string {
	timestamp := w.clock.Now().Format("2006-01-02-15-04-05")
	base := fmt.Sprintf("%s_S%s_C%s_R%d_T%s.csv", fileType, w.system, w.source, w.runs, timestamp)
	return filepath.Join(w.resultsPath, base)
}

// writeCSV creates path and hands a csv writer to fill.
func writeCSV(path string, header []string, fill func(cw *csv.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header to %s: %w", path, err)
	}
	if err := fill(cw); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return file.Close()
}

// writeRawResults saves every measurement of every run.
func (w *Writer) writeRawResults(res metrics.AnalysisResult) (string, error) {
	path := w.generateFilename("RAW")
	header := []string{"Run", "Path", "MetricType", "WallClock_us", "UserTime_us", "SystemTime_us"}
	err := writeCSV(path, header, func(cw *csv.Writer) error {
		for run, rec := range res.Recorders {
			for _, root := range rec.RootMeasurements() {
				if err := writeRawNode(cw, run, nil, root); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	log.Info("Raw results written to %s", path)
	return path, nil
}

func writeRawNode(cw *csv.Writer, run int, parents []string, m *metrics.Measurement) error {
	path := append(slices.Clone(parents), m.UniqueName)
	row := []string{
		strconv.Itoa(run),
		strings.Join(path, "/"),
		m.Type.String(),
		micros(m.Inclusive.WallClock),
		micros(m.Inclusive.UserTime),
		micros(m.Inclusive.SystemTime),
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	for _, child := range m.Children {
		if err := writeRawNode(cw, run, path, child); err != nil {
			return err
		}
	}
	return nil
}

// writeStatResults saves the summary statistics of each component.
func (w *Writer) writeStatResults(res metrics.AnalysisResult) (string, error) {
	path := w.generateFilename("STATS")
	header := []string{"Component", "Metric", "Clock", "Count", "Mean_us", "Median_us", "Min_us", "Max_us", "P95_us"}
	err := writeCSV(path, header, func(cw *csv.Writer) error {
		for _, name := range res.Names() {
			comp := res.Components[name]
			derived := make([]string, 0, len(comp.Summaries))
			for d := range comp.Summaries {
				derived = append(derived, d)
			}
			sort.Strings(derived)
			for _, d := range derived {
				s := comp.Summaries[d]
				for _, clock := range []struct {
					name string
					sum  metrics.StatSummary
				}{{"WallClock", s.WallClock}, {"UserTime", s.User}, {"SystemTime", s.System}} {
					if err := writeStatsRow(cw, name, d, clock.name, clock.sum); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	log.Info("Statistical results written to %s", path)
	return path, nil
}

func writeStatsRow(cw *csv.Writer, component, metric, clock string, s metrics.StatSummary) error {
	if s.Count == 0 {
		return nil
	}
	row := []string{
		component, metric, clock,
		strconv.Itoa(s.Count),
		micros(s.Mean),
		micros(s.P50),
		micros(s.Min),
		micros(s.Max),
		micros(s.P95),
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("failed to write stats row for %s (%s/%s): %w", component, metric, clock, err)
	}
	return nil
}

// WriteCountReport writes how many distinct barcodes were counted per
// payload in one run, followed by the ledger total and Merkle root.
func (w *Writer) WriteCountReport(runID string, l *ledger.Ledger) (string, error) {
	if err := os.MkdirAll(w.resultsPath, 0755); err != nil {
		return "", fmt.Errorf("could not create results directory %s: %w", w.resultsPath, err)
	}
	root, err := l.Root()
	if err != nil {
		return "", fmt.Errorf("failed to compute ledger root: %w", err)
	}

	path := w.generateFilename("COUNT_" + runID)
	counts := l.Counts()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	err = writeCSV(path, []string{"Run", "Barcode", "Count"}, func(cw *csv.Writer) error {
		for _, k := range keys {
			if err := cw.Write([]string{runID, k, strconv.Itoa(counts[k])}); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{runID, "TOTAL", strconv.Itoa(l.Total())}); err != nil {
			return err
		}
		return cw.Write([]string{runID, "ROOT", hex.EncodeToString(root)})
	})
	if err != nil {
		return "", err
	}
	log.Info("Count report written to %s", path)
	return path, nil
}

func micros(d time.Duration) string {
	return strconv.FormatInt(d.Microseconds(), 10)
}
