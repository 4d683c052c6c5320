package config

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(newFlagSet(), nil)
	require.NoError(t, err)
	assert.Equal(t, SourceCore, cfg.SourceType)
	assert.Equal(t, uint64(1), cfg.Runs)
	assert.Equal(t, time.Duration(-1), cfg.DuplicateFilter)
	assert.Equal(t, "code128,qr", cfg.Symbologies)
	assert.Equal(t, 1, cfg.Cores)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(newFlagSet(), []string{
		"-source", "Disk", "-frames", "4", "-dup-filter", "2s", "-cores", "3", "-tui",
	})
	require.NoError(t, err)
	assert.Equal(t, SourceDisk, cfg.SourceType)
	assert.Equal(t, uint64(4), cfg.Frames)
	assert.Equal(t, 2*time.Second, cfg.DuplicateFilter)
	assert.Equal(t, 3, cfg.Cores)
	assert.True(t, cfg.TUI)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown source", []string{"-source", "Scanner"}},
		{"zero runs", []string{"-runs", "0"}},
		{"zero cores", []string{"-cores", "0"}},
		{"too many peripheral frames", []string{"-source", "Peripherals", "-frames", "50"}},
		{"bad flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(newFlagSet(), tt.args)
			assert.Error(t, err)
		})
	}
}

func TestGetImageCommand(t *testing.T) {
	cfg := &Config{System: SystemPi}
	name, args, err := cfg.GetImageCommand("/tmp/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, "libcamera-still", name)
	assert.Contains(t, args, "/tmp/x.jpg")

	cfg.System = "Amiga"
	_, _, err = cfg.GetImageCommand("/tmp/x.jpg")
	assert.Error(t, err)
}
