package hardware

import (
	stdctx "context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/config"
	"barcodecount/pkg/context"
	"barcodecount/pkg/io"
	"barcodecount/pkg/timeutil"
)

func opCtx() *context.OperationContext {
	return context.NewContext(stdctx.Background(), &config.Config{Cores: 2}, nil)
}

func TestCoreDeliversPushedFrames(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(100, 0))
	core := NewCore(clock, 4)
	det := barcode.Detection{Barcode: barcode.Barcode{Symbology: barcode.SymbologyCode128, Data: "ABC-12345"}, Scanned: true}

	core.Push([]barcode.Detection{det})
	clock.Advance(time.Second)
	core.Push(nil)
	core.CloseInput()
	core.Push(nil) // dropped

	ctx := opCtx()
	f, err := core.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.Index)
	assert.Equal(t, time.Unix(100, 0), f.Timestamp)
	assert.Equal(t, []barcode.Detection{det}, f.Detections)

	f, err = core.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Index)
	assert.Equal(t, time.Unix(101, 0), f.Timestamp)

	_, err = core.Next(ctx)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestCoreNextHonorsCancellation(t *testing.T) {
	core := NewCore(nil, 0)
	ctx, cancel := opCtx().WithCancel()
	cancel()
	_, err := core.Next(ctx)
	assert.ErrorIs(t, err, stdctx.Canceled)
}

func TestDiskReplaysDirectory(t *testing.T) {
	dir := t.TempDir()
	w := io.NewSheetWriter(dir)
	for i, data := range []string{"ABC-12345", "XYZ-67890"} {
		sheet, err := io.ComposeSheet([]barcode.Barcode{{Symbology: barcode.SymbologyCode128, Data: data}}, 1)
		require.NoError(t, err)
		_, _, err = w.Write(opCtx(), "sheet_"+string(rune('a'+i)), sheet)
		require.NoError(t, err)
	}

	disk := NewDisk(dir, nil)
	ctx := opCtx()
	var n int
	for {
		f, err := disk.Next(ctx)
		if err == ErrEndOfStream {
			break
		}
		require.NoError(t, err)
		assert.NotNil(t, f.Image)
		assert.Contains(t, f.Source, "Disk:sheet_")
		n++
	}
	// Each sheet is written as PNG and PDF.
	assert.Equal(t, 4, n)
}

func TestDiskMissingDirectory(t *testing.T) {
	_, err := NewDisk("/nonexistent/frames", nil).Next(opCtx())
	assert.Error(t, err)
}

func TestNewSelectsSource(t *testing.T) {
	tests := []struct {
		source config.SourceType
		want   string
	}{
		{config.SourceCore, "Core"},
		{config.SourceDisk, "Disk"},
		{config.SourcePeripheral, "Peripheral"},
	}
	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			src, err := New(&config.Config{SourceType: tt.source, Frames: 2}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, src.Name())
		})
	}
	_, err := New(&config.Config{SourceType: "Scanner"}, nil)
	assert.Error(t, err)
}

func TestPeripheralStopsAtLimit(t *testing.T) {
	p := NewPeripheral(&config.Config{Frames: 0}, nil)
	_, err := p.Next(opCtx())
	assert.ErrorIs(t, err, ErrEndOfStream)
}
