package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/audiolibrelab/funnyvoice/internal/config"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypePipeWire BackendType = "pipewire"
	BackendTypeALSA     BackendType = "alsa"
	BackendTypeAuto     BackendType = "auto"
)

// captureTool is the command each backend records with
var captureTool = map[BackendType]string{
	BackendTypePipeWire: "pw-record",
	BackendTypeALSA:     "arecord",
}

// lookPath is replaced in tests
var lookPath = exec.LookPath

// NewCapturer creates a capturer using the appropriate backend based on configuration
func NewCapturer(cfg *config.Config, logWriter io.Writer) *ProcessCapturer {
	if logWriter == nil {
		logWriter = io.Discard
	}

	backend := determineBackend(cfg)
	audioCfg := cfg.Audio

	c := &ProcessCapturer{
		backend:     backend,
		directory:   cfg.Recording.Directory,
		sampleRate:  audioCfg.SampleRate,
		channels:    audioCfg.Channels,
		minSize:     cfg.Recording.MinFileSize,
		stopTimeout: cfg.Recording.StopTimeout,
		keepFiles:   cfg.Recording.KeepFiles,
		logWriter:   logWriter,
	}

	switch backend {
	case BackendTypeALSA:
		c.buildArgs = func(outputFile string) []string { return arecordArgs(audioCfg, outputFile) }
	default:
		c.buildArgs = func(outputFile string) []string { return pwRecordArgs(audioCfg, outputFile) }
	}

	slog.Debug("Capture backend selected", "backend", backend, "sample_rate", audioCfg.SampleRate, "channels", audioCfg.Channels)
	return c
}

// Backend returns the backend this capturer records with
func (c *ProcessCapturer) Backend() BackendType {
	return c.backend
}

// determineBackend determines which backend to use based on configuration
func determineBackend(cfg *config.Config) BackendType {
	switch strings.ToLower(cfg.Audio.Backend) {
	case "pipewire":
		return BackendTypePipeWire
	case "alsa":
		return BackendTypeALSA
	}

	// auto: prefer PipeWire, fall back to ALSA when pw-record is missing
	if _, err := lookPath(captureTool[BackendTypePipeWire]); err == nil {
		return BackendTypePipeWire
	}
	if _, err := lookPath(captureTool[BackendTypeALSA]); err == nil {
		return BackendTypeALSA
	}
	return BackendTypePipeWire
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	backends := []BackendType{}
	for _, b := range []BackendType{BackendTypePipeWire, BackendTypeALSA} {
		if _, err := lookPath(captureTool[b]); err == nil {
			backends = append(backends, b)
		}
	}
	return backends
}

func pwRecordArgs(cfg config.AudioConfig, outputFile string) []string {
	args := []string{
		"pw-record",
		"--rate", strconv.Itoa(cfg.SampleRate),
		"--channels", strconv.Itoa(cfg.Channels),
		"--format", "s16",
	}
	if cfg.Source != "" {
		args = append(args, "--target", cfg.Source)
	}
	return append(args, outputFile)
}

func arecordArgs(cfg config.AudioConfig, outputFile string) []string {
	args := []string{
		"arecord",
		"-q",
		"-f", "S16_LE",
		"-r", strconv.Itoa(cfg.SampleRate),
		"-c", strconv.Itoa(cfg.Channels),
		"-t", "wav",
	}
	if cfg.Source != "" {
		args = append(args, "-D", cfg.Source)
	}
	return append(args, outputFile)
}

// Probe checks that this backend can capture at all: the tool is installed
// and, for PipeWire, the configured source node exists.
func (c *ProcessCapturer) Probe(ctx context.Context, source string) error {
	tool := captureTool[c.backend]
	if _, err := lookPath(tool); err != nil {
		return fmt.Errorf("%s not found: %w", tool, err)
	}

	if c.backend == BackendTypePipeWire && source != "" {
		if err := NewPipeWire().ValidatePort(ctx, source); err != nil {
			return err
		}
	}

	return nil
}
