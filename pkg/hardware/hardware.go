package hardware

import (
	"fmt"
	"image"
	"os/exec"
	"path/filepath"
	"sync"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/concurrency"
	"barcodecount/pkg/config"
	"barcodecount/pkg/context"
	"barcodecount/pkg/frame"
	"barcodecount/pkg/io"
	"barcodecount/pkg/log"
	"barcodecount/pkg/metrics"
	"barcodecount/pkg/timeutil"
)

// Core is an in-memory source fed with scripted frames. It performs no I/O,
// which keeps runs focused on the counting logic.
type Core struct {
	frames chan *frame.Frame
	clock  timeutil.Clock

	mu       sync.Mutex
	next     uint64
	closed   bool
	settings CameraSettings
}

// NewCore creates a core source buffering up to buffer frames.
func NewCore(clock timeutil.Clock, buffer int) *Core {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Core{frames: make(chan *frame.Frame, buffer), clock: clock}
}

func (c *Core) Name() string { return "Core" }

// Push enqueues a frame carrying the given detections, stamped with the
// source clock. It blocks while the buffer is full.
func (c *Core) Push(dets []barcode.Detection) {
	c.PushFrame(&frame.Frame{Detections: dets})
}

// PushFrame enqueues f, assigning its index and, if unset, its timestamp.
func (c *Core) PushFrame(f *frame.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		log.Debug("Dropping frame pushed after CloseInput")
		return
	}
	f.Index = c.next
	c.next++
	if f.Timestamp.IsZero() {
		f.Timestamp = c.clock.Now()
	}
	f.Source = c.Name()
	// Held across the send so CloseInput cannot close the channel under us.
	c.frames <- f
}

// CloseInput ends the stream once buffered frames are consumed.
func (c *Core) CloseInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.frames)
	}
}

func (c *Core) Next(ctx *context.OperationContext) (*frame.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f, ok := <-c.frames:
		if !ok {
			return nil, ErrEndOfStream
		}
		return f, nil
	}
}

func (c *Core) ApplySettings(s CameraSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
	return nil
}

// Disk replays the images found in a directory, in file name order.
type Disk struct {
	dir   string
	clock timeutil.Clock

	mu     sync.Mutex
	images []image.Image
	paths  []string
	loaded bool
	next   int
}

func NewDisk(dir string, clock timeutil.Clock) *Disk {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Disk{dir: dir, clock: clock}
}

func (d *Disk) Name() string { return "Disk" }

// Load reads every image in the directory up front, on ctx.Cores() workers.
// Next calls it lazily.
func (d *Disk) Load(ctx *context.OperationContext) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load(ctx)
}

func (d *Disk) load(ctx *context.OperationContext) error {
	if d.loaded {
		return nil
	}
	return ctx.Recorder.Record("LoadFrames", metrics.MDiskRead, func() error {
		paths, err := io.ListImageFiles(d.dir)
		if err != nil {
			return err
		}
		perFile, err := concurrency.Map(ctx, paths, io.LoadImages)
		if err != nil {
			return fmt.Errorf("failed to load frames from %s: %w", d.dir, err)
		}
		for i, imgs := range perFile {
			for range imgs {
				d.paths = append(d.paths, paths[i])
			}
			d.images = append(d.images, imgs...)
		}
		d.loaded = true
		log.Debug("Loaded %d frames from %d files in %s", len(d.images), len(paths), d.dir)
		return nil
	})
}

func (d *Disk) Next(ctx *context.OperationContext) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.load(ctx); err != nil {
		return nil, err
	}
	if d.next >= len(d.images) {
		return nil, ErrEndOfStream
	}
	f := &frame.Frame{
		Index:     uint64(d.next),
		Timestamp: d.clock.Now(),
		Image:     d.images[d.next],
		Source:    d.Name() + ":" + filepath.Base(d.paths[d.next]),
	}
	d.next++
	return f, nil
}

// Peripheral captures frames with the system camera command.
type Peripheral struct {
	cfg   *config.Config
	clock timeutil.Clock
	limit uint64

	mu       sync.Mutex
	next     uint64
	settings CameraSettings
}

func NewPeripheral(cfg *config.Config, clock timeutil.Clock) *Peripheral {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Peripheral{cfg: cfg, clock: clock, limit: min(cfg.Frames, config.MaxSheetsToCapture)}
}

func (p *Peripheral) Name() string { return "Peripheral" }

func (p *Peripheral) Next(ctx *context.OperationContext) (*frame.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= p.limit {
		return nil, ErrEndOfStream
	}

	var f *frame.Frame
	err := ctx.Recorder.Record("CapturePicture", metrics.MHardwareRead, func() error {
		path := filepath.Join(p.cfg.PicturePath, fmt.Sprintf("frame_%d.jpg", p.clock.Now().UnixNano()))
		cmdName, args, err := p.cfg.GetImageCommand(path)
		if err != nil {
			return err
		}
		cmd := exec.CommandContext(ctx, cmdName, args...)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to run camera command '%s': %w, output: %s", cmdName, err, string(output))
		}
		imgs, err := io.LoadImages(path)
		if err != nil {
			return err
		}
		f = &frame.Frame{Index: p.next, Timestamp: p.clock.Now(), Image: imgs[0], Source: p.Name()}
		return nil
	})
	// A failed capture still uses up one of the limited shots.
	p.next++
	return f, err
}

func (p *Peripheral) ApplySettings(s CameraSettings) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = s
	log.Debug("Camera settings: %+v", s)
	return nil
}

// New selects and creates the frame source configured in cfg.
func New(cfg *config.Config, clock timeutil.Clock) (FrameSource, error) {
	switch cfg.SourceType {
	case config.SourceCore:
		return NewCore(clock, int(cfg.Frames)), nil
	case config.SourceDisk:
		return NewDisk(cfg.PicturePath, clock), nil
	case config.SourcePeripheral:
		return NewPeripheral(cfg, clock), nil
	default:
		return nil, fmt.Errorf("unknown source type specified: %s", cfg.SourceType)
	}
}
