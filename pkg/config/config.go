package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"barcodecount/pkg/log"
)

const (
	// MaxSheetsToCapture is a safety limit to prevent accidentally triggering
	// thousands of camera captures during a large simulation run.
	MaxSheetsToCapture = 10
)

// SystemType defines the hardware platforms the simulation has been run on.
// Some platforms have specific logic to operate the camera, see
// GetImageCommand().
type SystemType string

const (
	SystemMac   SystemType = "Mac"
	SystemPi    SystemType = "Pi"
	SystemLinux SystemType = "Linux"
)

// SourceType defines the frame source implementation to use.
type SourceType string

const (
	SourceCore       SourceType = "Core"        // In-memory scripted frames, no I/O.
	SourceDisk       SourceType = "Disk"        // Frames decoded from image/PDF files.
	SourcePeripheral SourceType = "Peripherals" // Frames captured from a physical camera.
)

// Config holds all parameters for a simulation instance.
type Config struct {
	Runs        uint64
	Frames      uint64 // Frames (or sheets) fed per run.
	Codes       uint64 // Distinct barcodes placed in the scene.
	SourceType  SourceType
	System      SystemType
	Symbologies string // Comma separated, e.g. "code128,qr".

	// DuplicateFilter is the re-report window; negative suppresses repeats
	// until reset.
	DuplicateFilter time.Duration
	SettingsPath    string

	PicturePath string
	ResultsPath string
	DBPath      string

	Cores        int
	LogLevel     log.LogLevel
	PrintMetrics bool
	MaxDepth     int
	MaxChildren  int
	Seed         string
	TUI          bool
}

// NewConfig creates a new Config by parsing command-line flags.
func NewConfig() *Config {
	log.Debug("Parsing command-line flags...")
	cfg, err := Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	// Clean And Create Directory
	cfg.PicturePath = cleanAndCreateDirectory(cfg.PicturePath)
	cfg.ResultsPath = cleanAndCreateDirectory(cfg.ResultsPath)

	log.Debug("Config: %s", cfg)
	return cfg
}

// Parse populates a Config from args using fs. It has no filesystem side
// effects.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	runs := fs.Uint64("runs", 1, "Number of simulation runs.")
	frames := fs.Uint64("frames", 30, "Number of frames (Core) or sheets (Disk/Peripherals) per run.")
	codes := fs.Uint64("codes", 12, "Number of distinct barcodes in the scene.")
	source := fs.String("source", "Core", "Frame source implementation (Core, Disk, Peripherals).")
	system := fs.String("system", "Mac", "System tag for logging and camera command (Mac, Pi, Linux).")
	symbologies := fs.String("symbologies", "code128,qr", "Comma separated list of enabled symbologies.")
	dupFilter := fs.Duration("dup-filter", -1, "Duplicate filter window; negative reports each code once until reset.")
	settingsPath := fs.String("settings", "", "Optional JSON settings document applied on top of the flags.")
	picPath := fs.String("pics", "output/pics/", "Path for storing generated sheets and camera pictures.")
	resultsPath := fs.String("results", "output/results/", "Path for storing simulation results.")
	dbPath := fs.String("db", "output/count.db", "Path of the sqlite database for count runs; empty disables persistence.")
	cores := fs.Int("cores", 1, "Number of cores used for parallel image loading.")
	logLevel := fs.String("log-level", "info", "Set log level (trace, debug, info, error).")
	printMetrics := fs.Bool("print-metrics", false, "Whether to print the measurement tree after each run.")
	maxDepth := fs.Int("max-depth", 3, "Maximum depth of the printed measurement tree (-1 for all).")
	maxChildren := fs.Int("max-children", 20, "Maximum children per printed measurement node (-1 for all).")
	seed := fs.String("seed", "barcodecount", "Seed value for all randomly generated values.")
	tui := fs.Bool("tui", false, "Render the overlay in the terminal while scanning.")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	level, ok := log.ParseLevel(*logLevel)
	if !ok {
		log.Info("Unknown log level '%s', defaulting to 'info'", *logLevel)
	}
	log.SetLevel(level)

	cfg := &Config{
		Runs:            *runs,
		Frames:          *frames,
		Codes:           *codes,
		SourceType:      SourceType(*source),
		System:          SystemType(*system),
		Symbologies:     *symbologies,
		DuplicateFilter: *dupFilter,
		SettingsPath:    *settingsPath,
		PicturePath:     filepath.Clean(*picPath),
		ResultsPath:     filepath.Clean(*resultsPath),
		DBPath:          *dbPath,
		Cores:           *cores,
		LogLevel:        level,
		PrintMetrics:    *printMetrics,
		MaxDepth:        *maxDepth,
		MaxChildren:     *maxChildren,
		Seed:            *seed,
		TUI:             *tui,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the value ranges of the configuration.
func (c *Config) Validate() error {
	switch c.SourceType {
	case SourceCore, SourceDisk, SourcePeripheral:
	default:
		return fmt.Errorf("unknown source type specified: %s", c.SourceType)
	}
	if c.Runs == 0 {
		return fmt.Errorf("runs must be at least 1")
	}
	if c.Codes == 0 {
		return fmt.Errorf("codes must be at least 1")
	}
	if c.Cores < 1 {
		return fmt.Errorf("cores must be at least 1, got %d", c.Cores)
	}
	if c.SourceType == SourcePeripheral && c.Frames > MaxSheetsToCapture {
		return fmt.Errorf("peripheral runs are limited to %d frames, got %d", MaxSheetsToCapture, c.Frames)
	}
	return nil
}

// GetImageCommand returns the command to take a picture for the configured system.
// SystemType affects logic only if SourcePeripheral is chosen.
func (c *Config) GetImageCommand(outputPath string) (string, []string, error) {
	switch c.System {
	case SystemPi:
		return "libcamera-still", []string{"-o", outputPath, "--timeout", "1"}, nil
	case SystemMac:
		return "imagesnap", []string{outputPath}, nil
	case SystemLinux:
		return "fswebcam", []string{"--no-banner", outputPath}, nil
	default:
		return "", nil, fmt.Errorf("no camera command for system type %q", c.System)
	}
}

// String returns a string representation of the Config instance
func (c *Config) String() string {
	return fmt.Sprintf("Config{Runs:%d Frames:%d Codes:%d Source:%s System:%s "+
		"Symbologies:%s DupFilter:%s Settings:%q PicPath:%s ResultsPath:%s DB:%q "+
		"Cores:%d LogLevel:%s PrintMetrics:%t Seed:%s TUI:%t}",
		c.Runs, c.Frames, c.Codes, c.SourceType, c.System,
		c.Symbologies, c.DuplicateFilter, c.SettingsPath, c.PicturePath, c.ResultsPath, c.DBPath,
		c.Cores, c.LogLevel, c.PrintMetrics, c.Seed, c.TUI)
}

// --- Config Helpers ---

// cleanAndCreateDirectory ensures the specified directory exists by creating it if necessary.
// It returns the filepath.
func cleanAndCreateDirectory(path string) string {
	path = filepath.Clean(path)
	if err := os.MkdirAll(path, 0755); err != nil {
		log.Fatalf("Failed to create directory %s: %v", path, err)
	}

	return path
}
