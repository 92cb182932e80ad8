package audio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProcessCapturer records by running a command-line capture tool
// (pw-record, arecord) that writes a WAV file until it receives SIGINT.
type ProcessCapturer struct {
	backend     BackendType
	directory   string
	sampleRate  int
	channels    int
	minSize     int64
	stopTimeout time.Duration
	keepFiles   bool
	logWriter   io.Writer

	// buildArgs returns the command line that records into outputFile
	buildArgs func(outputFile string) []string
}

// Open starts the capture tool
func (c *ProcessCapturer) Open(ctx context.Context) (Stream, error) {
	if err := os.MkdirAll(c.directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	outputFile := filepath.Join(c.directory, "rec-"+uuid.NewString()+".wav")
	args := c.buildArgs(outputFile)

	slog.Debug("Starting capture process", "backend", c.backend, "command", strings.Join(args, " "))

	cmd := exec.Command(args[0], args[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", args[0], err)
	}

	s := &processStream{
		capturer:   c,
		cmd:        cmd,
		outputFile: outputFile,
		done:       make(chan error, 1),
	}

	s.readers.Add(2)
	go s.readOutput(stdout, "stdout")
	go s.readOutput(stderr, "stderr")

	go func() {
		s.readers.Wait()
		s.done <- cmd.Wait()
	}()

	// A tool that dies right away (busy device, bad source) never produced audio
	select {
	case err := <-s.done:
		os.Remove(outputFile)
		return nil, fmt.Errorf("%s exited immediately: %v: %s", args[0], err, strings.TrimSpace(s.stderrText()))
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		s.kill()
		return nil, ctx.Err()
	}

	return s, nil
}

// Release removes the clip file unless files are kept
func (c *ProcessCapturer) Release(h MediaHandle) error {
	if c.keepFiles || h.Path == "" {
		return nil
	}
	if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove clip: %w", err)
	}
	slog.Debug("Released clip", "path", h.Path)
	return nil
}

type processStream struct {
	capturer   *ProcessCapturer
	cmd        *exec.Cmd
	outputFile string
	done       chan error
	readers    sync.WaitGroup

	mu        sync.Mutex
	stderrBuf strings.Builder
	finished  bool
}

// Finalize interrupts the capture tool and validates the produced file
func (s *processStream) Finalize(ctx context.Context) (MediaHandle, error) {
	if err := s.stop(ctx); err != nil {
		os.Remove(s.outputFile)
		return MediaHandle{}, err
	}

	size, err := s.validateOutputFile()
	if err != nil {
		os.Remove(s.outputFile)
		return MediaHandle{}, err
	}

	return MediaHandle{
		URI:        FileURI(s.outputFile),
		Path:       s.outputFile,
		SampleRate: s.capturer.sampleRate,
		Channels:   s.capturer.channels,
		Size:       size,
	}, nil
}

// Abort kills the capture tool and removes its output
func (s *processStream) Abort() error {
	s.kill()
	if err := os.Remove(s.outputFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove aborted capture: %w", err)
	}
	return nil
}

// stop sends SIGINT so the tool can finish the WAV header, then waits
func (s *processStream) stop(ctx context.Context) error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return fmt.Errorf("capture already stopped")
	}
	s.finished = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		slog.Debug("Sending SIGINT to capture process")
		if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
			slog.Debug("Failed to send interrupt to capture process", "error", err)
		}
	}

	select {
	case err := <-s.done:
		if err != nil {
			// Capture tools exit non-zero on SIGINT; the output file decides
			slog.Debug("Capture process exited", "error", err, "stderr", strings.TrimSpace(s.stderrText()))
		}
		return nil

	case <-time.After(s.capturer.stopTimeout):
		slog.Warn("Capture process did not exit within timeout, force killing")
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		<-s.done
		return fmt.Errorf("capture process did not stop within %s", s.capturer.stopTimeout)

	case <-ctx.Done():
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		<-s.done
		return ctx.Err()
	}
}

func (s *processStream) kill() {
	s.mu.Lock()
	already := s.finished
	s.finished = true
	s.mu.Unlock()

	if already {
		return
	}
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	<-s.done
}

// validateOutputFile checks that the tool wrote more than a bare header
func (s *processStream) validateOutputFile() (int64, error) {
	fileInfo, err := os.Stat(s.outputFile)
	if err != nil {
		return 0, fmt.Errorf("recording file not found: %s", s.outputFile)
	}

	if fileInfo.Size() <= s.capturer.minSize {
		return 0, fmt.Errorf("recording failed: file too small (%d bytes)", fileInfo.Size())
	}

	slog.Debug("Capture output file validated", "size", fileInfo.Size())
	return fileInfo.Size(), nil
}

// readOutput drains a pipe, mirroring it to the log writer
func (s *processStream) readOutput(pipe io.ReadCloser, label string) {
	defer s.readers.Done()

	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		if label == "stderr" {
			s.mu.Lock()
			s.stderrBuf.WriteString(line + "\n")
			s.mu.Unlock()
		}
		fmt.Fprintf(s.capturer.logWriter, "[%s] %s\n", s.capturer.backend, line)
	}
}

func (s *processStream) stderrText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stderrBuf.String()
}
