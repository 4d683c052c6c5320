package main

import (
	"fmt"
	"hash/fnv"
	"maps"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/capture"
	"barcodecount/pkg/config"
	"barcodecount/pkg/context"
	"barcodecount/pkg/count"
	"barcodecount/pkg/dispatch"
	"barcodecount/pkg/frame"
	"barcodecount/pkg/hardware"
	"barcodecount/pkg/io"
	"barcodecount/pkg/ledger"
	"barcodecount/pkg/log"
	"barcodecount/pkg/metrics"
	"barcodecount/pkg/overlay"
	"barcodecount/pkg/overlay/termview"
	"barcodecount/pkg/result"
	"barcodecount/pkg/session"
	"barcodecount/pkg/settings"
	"barcodecount/pkg/store"
	"barcodecount/pkg/timeutil"
)

// Simulation runs one counting session over a frame source and records
// what was counted.
type Simulation struct {
	config   *config.Config
	metrics  *metrics.Recorder
	settings *settings.Settings
	runID    uuid.UUID
	rng      *rand.Rand
	clock    timeutil.Clock
	ledger   *ledger.Ledger
	scene    []barcode.Barcode
	stats    capture.Stats
	started  time.Time
	finished time.Time
}

func main() {
	// 1. Load configuration from flags.
	cfg := config.NewConfig()

	s, err := loadSettings(cfg)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	var db *store.DB
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
		if db, err = store.Open(cfg.DBPath); err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
	}

	analyzer := metrics.NewAnalyzer()
	resultsWriter := result.NewWriter(cfg.ResultsPath, cfg.System, cfg.SourceType, cfg.Runs, nil)
	var sims []*Simulation

	for run := uint64(0); run < cfg.Runs; run++ {
		log.Info("----- Starting run %d of %d -----", run+1, cfg.Runs)

		rec := metrics.NewRecorder()
		sim := NewSimulation(cfg, rec, s, run)

		if err := rec.Record("CountRun", metrics.MLogic, sim.Run); err != nil {
			log.Fatalf("Failed to run simulation: %v", err)
		}
		if cfg.PrintMetrics {
			rec.PrintTree(os.Stdout, cfg.MaxDepth, cfg.MaxChildren)
		}
		analyzer.Add(rec)

		if _, err := resultsWriter.WriteCountReport(sim.runID.String(), sim.ledger); err != nil {
			log.Fatalf("Failed to write count report: %v", err)
		}
		if db != nil {
			if err := sim.Persist(db); err != nil {
				log.Fatalf("Failed to persist run: %v", err)
			}
		}
		sims = append(sims, sim)
	}

	finalAnalysis := analyzer.Analyze()
	if _, _, err := resultsWriter.WriteAllResults(finalAnalysis); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}

	printConsoleSummary(finalAnalysis, sims)
}

// loadSettings builds the mode settings from the flags and the optional
// settings document.
func loadSettings(cfg *config.Config) (*settings.Settings, error) {
	syms, err := barcode.ParseSymbologies(cfg.Symbologies)
	if err != nil {
		return nil, err
	}
	s := settings.New()
	s.EnableSymbologies(syms...)
	s.DuplicateFilter = cfg.DuplicateFilter

	if cfg.SettingsPath == "" {
		return s, nil
	}
	data, err := os.ReadFile(cfg.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", cfg.SettingsPath, err)
	}
	d := settings.NewDeserializer()
	if s, err = d.UpdateSettingsFromJSON(s, data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", cfg.SettingsPath, err)
	}
	for _, w := range d.Warnings() {
		log.Info("%s: %s", cfg.SettingsPath, w)
	}
	return s, nil
}

// NewSimulation creates the state of a single run. Every run derives its
// scene from the configured seed and the run number.
func NewSimulation(cfg *config.Config, rec *metrics.Recorder, s *settings.Settings, run uint64) *Simulation {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s/%d", cfg.Seed, run)
	sim := &Simulation{
		config:   cfg,
		metrics:  rec,
		settings: s,
		runID:    uuid.New(),
		rng:      rand.New(rand.NewSource(int64(h.Sum64()))),
		clock:    timeutil.RealClock{},
		ledger:   ledger.NewLedger(),
	}
	sim.scene = sim.makeScene()
	return sim
}

// makeScene picks the payloads on the shelf, cycling through the enabled
// symbologies.
func (s *Simulation) makeScene() []barcode.Barcode {
	syms := s.settings.EnabledSymbologies()
	if s.config.SourceType != config.SourceCore {
		syms = filterSymbologies(syms, io.SupportsEncoding)
	}
	if len(syms) == 0 {
		syms = []barcode.Symbology{barcode.SymbologyCode128}
	}
	scene := make([]barcode.Barcode, s.config.Codes)
	for i := range scene {
		sym := syms[i%len(syms)]
		data := fmt.Sprintf("ITEM-%06d", s.rng.Intn(1_000_000))
		if sym == barcode.SymbologyQR || sym == barcode.SymbologyDataMatrix {
			data = fmt.Sprintf("LOC-%03d/%s", i, data)
		}
		scene[i] = barcode.Barcode{Symbology: sym, Data: data}
	}
	return scene
}

func filterSymbologies(syms []barcode.Symbology, keep func(barcode.Symbology) bool) []barcode.Symbology {
	var out []barcode.Symbology
	for _, sym := range syms {
		if keep(sym) {
			out = append(out, sym)
		}
	}
	return out
}

// Run counts the scene once.
func (s *Simulation) Run() error {
	log.Info("Counting %d codes on '%s' source (run %s)...", len(s.scene), s.config.SourceType, s.runID)
	s.started = s.clock.Now()
	defer func() { s.finished = s.clock.Now() }()

	op := context.NewContext(nil, s.config, s.metrics)

	src, feed, err := s.newSource(op)
	if err != nil {
		return err
	}
	if camera, ok := src.(hardware.Configurable); ok {
		if err := camera.ApplySettings(count.RecommendedCameraSettings()); err != nil {
			return fmt.Errorf("failed to configure camera: %w", err)
		}
	}

	queue := dispatch.NewQueue()
	captureCtx := capture.NewContext(op, src, queue)
	mode := count.New(captureCtx, s.settings)
	mode.AddListener(&ledgerListener{runID: s.runID.String(), ledger: s.ledger})

	var (
		renderer overlay.Renderer
		tv       *termview.Renderer
	)
	if s.config.TUI {
		if tv, err = termview.NewRenderer(); err != nil {
			return err
		}
		defer tv.Close()
		renderer = tv
	}
	ov := overlay.New(mode, renderer, overlay.StyleDot)
	ov.SetUIDelegate(&buttons{ctx: captureCtx, ledger: s.ledger})
	defer ov.Detach()

	mode.StartScanningPhase()
	if err := captureCtx.Start(); err != nil {
		return err
	}
	if feed != nil {
		go feed()
	}

	// The calling goroutine is the interaction context until the stream
	// ends.
	runCtx, cancel := op.WithCancel()
	defer cancel()
	go func() {
		<-captureCtx.Done()
		cancel()
	}()
	input := make(chan struct{})
	if tv != nil {
		go func() {
			defer close(input)
			tv.Run(runCtx, ov)
		}()
	} else {
		close(input)
	}
	_ = queue.Run(runCtx)
	<-input
	queue.Drain()
	captureCtx.RemoveMode(mode)

	s.stats = captureCtx.Stats()
	if err := s.ledger.Verify(); err != nil {
		return err
	}
	log.Info("Run %s: %d frames (%d failed), %d barcodes counted",
		s.runID, s.stats.Frames, s.stats.FrameFailures, s.ledger.Total())
	return nil
}

// newSource creates the frame source of the run. For the core source it
// also returns the function feeding the scripted frames.
func (s *Simulation) newSource(op *context.OperationContext) (hardware.FrameSource, func(), error) {
	switch s.config.SourceType {
	case config.SourceCore:
		core := hardware.NewCore(s.clock, int(s.config.Frames))
		frames := s.scriptFrames()
		return core, func() {
			for _, dets := range frames {
				core.Push(dets)
			}
			core.CloseInput()
		}, nil
	case config.SourceDisk:
		dir := filepath.Join(s.config.PicturePath, "run_"+s.runID.String())
		if err := s.metrics.Record("GenerateSheets", metrics.MLogic, func() error {
			return s.generateSheets(op, dir)
		}); err != nil {
			return nil, nil, fmt.Errorf("failed to generate sheets: %w", err)
		}
		return hardware.NewDisk(dir, s.clock), nil, nil
	default:
		src, err := hardware.New(s.config, s.clock)
		return src, nil, err
	}
}

const (
	shelfSpacing = 220.0 // Distance between neighbouring codes.
	viewWidth    = 1280.0
	viewHeight   = 720.0
	panStep      = 45.0 // Camera movement per frame.
	blurChance   = 0.1  // Chance a visible code is located but not decoded.
)

// scriptFrames simulates a camera panning along a shelf. Each frame lists
// the codes inside the view, in view coordinates.
func (s *Simulation) scriptFrames() [][]barcode.Detection {
	shelf := make([]barcode.Quadrilateral, len(s.scene))
	for i := range s.scene {
		y := 200 + float64(i%2)*260
		shelf[i] = barcode.Rect(float64(i)*shelfSpacing+40, y, 160, 60)
	}
	span := max(0, float64(len(s.scene))*shelfSpacing-viewWidth+80)

	frames := make([][]barcode.Detection, s.config.Frames)
	for f := range frames {
		offset := 0.0
		if len(frames) > 1 {
			offset = min(span, float64(f)*panStep)
		}
		dets := []barcode.Detection{}
		for i, loc := range shelf {
			c := loc.Center()
			if c.X < offset || c.X > offset+viewWidth || c.Y > viewHeight {
				continue
			}
			dets = append(dets, barcode.Detection{
				Barcode:  s.scene[i],
				Location: loc.Translate(-offset, 0),
				Scanned:  s.rng.Float64() >= blurChance,
			})
		}
		for i := range dets {
			if !dets[i].Scanned {
				dets[i].Barcode = barcode.Barcode{}
			}
		}
		frames[f] = dets
	}
	return frames
}

// generateSheets renders the scene onto printable sheets, several codes per
// sheet, and saves them for the disk source.
func (s *Simulation) generateSheets(op *context.OperationContext, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	w := io.NewSheetWriter(dir)
	const perSheet = 6
	sheets := max(1, min(int(s.config.Frames), (len(s.scene)+perSheet-1)/perSheet))
	for i := 0; i < sheets; i++ {
		lo := (i * perSheet) % len(s.scene)
		hi := min(lo+perSheet, len(s.scene))
		sheet, err := io.ComposeSheet(s.scene[lo:hi], 3)
		if err != nil {
			return err
		}
		if _, _, err := w.Write(op, fmt.Sprintf("sheet_%03d", i), sheet); err != nil {
			return err
		}
	}
	log.Debug("Generated %d sheets in %s", sheets, dir)
	return nil
}

// Persist stores the run and its ledger.
func (s *Simulation) Persist(db *store.DB) error {
	root, err := s.ledger.Root()
	if err != nil {
		return err
	}
	return s.metrics.Record("Persist", metrics.MStorage, func() error {
		if err := db.InsertRun(store.Run{
			ID:              s.runID,
			Source:          string(s.config.SourceType),
			StartedAt:       s.started,
			FinishedAt:      s.finished,
			Frames:          s.stats.Frames,
			FrameFailures:   s.stats.FrameFailures,
			DuplicateFilter: s.settings.DuplicateFilter,
			LedgerRoot:      root,
		}); err != nil {
			return err
		}
		return db.InsertScans(s.ledger.Entries())
	})
}

// ledgerListener records every reported barcode.
type ledgerListener struct {
	runID  string
	ledger *ledger.Ledger
}

func (l *ledgerListener) DidUpdateSession(_ *count.BarcodeCount, s *session.Session, f *frame.Frame) {
	added := s.AddedTrackedBarcodes()
	if len(added) == 0 {
		return
	}
	seq := s.FrameSequenceID()
	entries := make([]*ledger.Entry, len(added))
	for i, item := range added {
		entries[i] = &ledger.Entry{
			RunID:           l.runID,
			FrameSequenceID: seq,
			FrameIndex:      f.Index,
			TrackID:         item.ID,
			Symbology:       item.Barcode.Symbology,
			Data:            item.Barcode.Data,
			At:              f.Timestamp,
		}
	}
	l.ledger.Append(entries...)
}

// buttons handles the overlay buttons: the list button logs the counts so
// far and the exit button stops the capture.
type buttons struct {
	ctx    *capture.Context
	ledger *ledger.Ledger
}

func (b *buttons) ListButtonTapped(*overlay.BasicOverlay) {
	counts := b.ledger.Counts()
	keys := slices.Sorted(maps.Keys(counts))
	for _, key := range keys {
		log.Info("%s: %d", key, counts[key])
	}
	log.Info("%d barcodes counted so far", b.ledger.Total())
}

func (b *buttons) ExitButtonTapped(*overlay.BasicOverlay) {
	b.ctx.StopAsync()
}

func printConsoleSummary(res metrics.AnalysisResult, sims []*Simulation) {
	fmt.Println("\n-------------------------------------------------")
	fmt.Printf("--- Median Phase Times (Per Simulation Run) ---\n")
	fmt.Println("-------------------------------------------------")

	phases := []string{"CountRun", "GenerateSheets", "ProcessFrame"}
	for a, phase := range phases {
		if comp, ok := res.Components[phase]; ok {
			if summary, ok := comp.Summaries[metrics.DerivedWallClock]; ok {
				fmt.Printf("Median %-18s Time: %s\n", phase, summary.WallClock.P50)
				if a == 0 {
					fmt.Println("-------------------------------------------------")
				}
			}
		}
	}
	fmt.Println("-------------------------------------------------")
	for _, sim := range sims {
		fmt.Printf("Run %s: %d of %d codes counted over %d frames\n",
			sim.runID, sim.ledger.Total(), len(sim.scene), sim.stats.Frames)
	}
	fmt.Println("-------------------------------------------------")
}
