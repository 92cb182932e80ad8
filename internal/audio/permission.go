package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Gate asks for microphone access once and remembers the answer.
// There is no retry: a denied gate stays denied until the process restarts.
type Gate struct {
	mode  string
	probe func(ctx context.Context) error

	once    sync.Once
	mu      sync.RWMutex
	granted bool
	err     error
}

// NewGate creates a gate. mode is "granted", "denied" or "auto"; in auto
// mode probe decides.
func NewGate(mode string, probe func(ctx context.Context) error) *Gate {
	return &Gate{mode: strings.ToLower(mode), probe: probe}
}

// Request performs the permission request the first time it is called and
// returns the stored outcome afterwards.
func (g *Gate) Request(ctx context.Context) error {
	g.once.Do(func() {
		var err error
		switch g.mode {
		case "granted":
		case "denied":
			err = ErrPermissionDenied
		default:
			if g.probe != nil {
				if perr := g.probe(ctx); perr != nil {
					err = fmt.Errorf("%w: %v", ErrPermissionDenied, perr)
				}
			}
		}

		g.mu.Lock()
		g.granted = err == nil
		g.err = err
		g.mu.Unlock()

		if err != nil {
			slog.Error("Microphone permission denied", "mode", g.mode, "error", err)
		} else {
			slog.Debug("Microphone permission granted", "mode", g.mode)
		}
	})

	return g.Err()
}

// Granted reports whether capture is allowed. False before Request.
func (g *Gate) Granted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.granted
}

// Err returns the denial reason, if any
func (g *Gate) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.err
}
