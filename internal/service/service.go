package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/audiolibrelab/funnyvoice/internal/audio"
	"github.com/audiolibrelab/funnyvoice/internal/config"
	"github.com/audiolibrelab/funnyvoice/internal/effect"
	"github.com/audiolibrelab/funnyvoice/internal/metrics"
	"github.com/audiolibrelab/funnyvoice/internal/play"
	"github.com/audiolibrelab/funnyvoice/internal/session"
)

// Service represents the core FunnyVoice service interface
type Service interface {
	// Permission
	Start(ctx context.Context) error

	// Recording operations
	Press(ctx context.Context) error
	Release(ctx context.Context) error
	VoiceActivity() error

	// Effect operations
	Effects() []EffectInfo
	SelectEffect(id string) (effect.Effect, error)

	// Information operations
	Status() Status
	Subscribe(buffer int) (<-chan session.Event, func())
	GetConfig() *config.Config
	GetLastError() string
	Metrics() *metrics.Metrics

	Close() error
}

// Mode is the presentation state derived from the session
type Mode string

const (
	ModeIdle      Mode = "IDLE"
	ModeRecording Mode = "RECORDING"
	ModePlaying   Mode = "PLAYING"
)

const (
	instructionIdle      = "Press and hold to record"
	instructionRecording = "Talk now! Release to stop"
)

// Status is the session snapshot plus the display fields of the UI
type Status struct {
	session.Snapshot
	Mode        Mode   `json:"mode"`
	Instruction string `json:"instruction"`
	ElapsedText string `json:"elapsed_text"`
	SizeText    string `json:"size_text"`
	LastError   string `json:"last_error,omitempty"`
}

// EffectInfo is an effect with its selection flag
type EffectInfo struct {
	effect.Effect
	IsSelected bool `json:"is_selected"`
}

// Option customizes the service wiring
type Option func(*options)

type options struct {
	capturer audio.Capturer
	probe    func(ctx context.Context) error
	player   play.Player
	clock    session.Clock
}

// WithCapturer replaces the configured capture backend
func WithCapturer(c audio.Capturer) Option {
	return func(o *options) { o.capturer = c }
}

// WithProbe replaces the microphone permission probe
func WithProbe(probe func(ctx context.Context) error) Option {
	return func(o *options) { o.probe = probe }
}

// WithPlayer replaces the configured player
func WithPlayer(p play.Player) Option {
	return func(o *options) { o.player = p }
}

// WithClock replaces the system clock of the session
func WithClock(c session.Clock) Option {
	return func(o *options) { o.clock = c }
}

// FunnyVoiceService is the main service implementation
type FunnyVoiceService struct {
	cfg     *config.Config
	gate    *audio.Gate
	ctrl    *session.Controller
	metrics *metrics.Metrics

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

var _ Service = (*FunnyVoiceService)(nil)

// New creates a new FunnyVoice service instance
func New(cfg *config.Config, logWriter io.Writer, opts ...Option) (*FunnyVoiceService, error) {
	if logWriter == nil {
		logWriter = io.Discard
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.capturer == nil {
		pc := audio.NewCapturer(cfg, logWriter)
		slog.Debug("Capture backend selected", "backend", pc.Backend())
		o.capturer = pc
		if o.probe == nil {
			o.probe = func(ctx context.Context) error { return pc.Probe(ctx, cfg.Audio.Source) }
		}
	}

	if o.player == nil {
		p, err := play.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create player: %w", err)
		}
		o.player = p
	}

	selection, err := effect.NewSelection(cfg.Effects.Default)
	if err != nil {
		return nil, fmt.Errorf("effects.default: %w", err)
	}

	s := &FunnyVoiceService{
		cfg:     cfg,
		gate:    audio.NewGate(cfg.Permission.Microphone, o.probe),
		metrics: metrics.NewMetrics(),
	}

	ctrlOpts := []session.Option{session.WithObserver(s.observe)}
	if o.clock != nil {
		ctrlOpts = append(ctrlOpts, session.WithClock(o.clock))
	}

	s.ctrl = session.NewController(session.Config{
		TickInterval:  cfg.Recording.TickInterval,
		AutoStopAfter: cfg.Recording.AutoStopAfter,
		Volume:        cfg.Playback.Volume,
		CorrectPitch:  cfg.Playback.CorrectPitch,
	}, o.capturer, o.player, s.gate, selection, ctrlOpts...)

	return s, nil
}

// Start performs the one-time microphone permission request
func (s *FunnyVoiceService) Start(ctx context.Context) error {
	if err := s.gate.Request(ctx); err != nil {
		s.setLastError(fmt.Sprintf("Microphone unavailable: %v", err))
		return err
	}
	return nil
}

// Press starts a recording
func (s *FunnyVoiceService) Press(ctx context.Context) error {
	slog.Debug("Service.Press called")
	if err := s.ctrl.Press(ctx); err != nil {
		if !errors.Is(err, session.ErrAlreadyRecording) {
			s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		}
		return err
	}
	return nil
}

// Release stops the recording and plays it back
func (s *FunnyVoiceService) Release(ctx context.Context) error {
	slog.Debug("Service.Release called")
	if err := s.ctrl.Release(ctx); err != nil {
		if !errors.Is(err, session.ErrNotRecording) {
			s.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
		}
		return err
	}
	return nil
}

// VoiceActivity postpones the silence auto-stop
func (s *FunnyVoiceService) VoiceActivity() error {
	return s.ctrl.VoiceActivity()
}

// Effects returns the catalog in display order
func (s *FunnyVoiceService) Effects() []EffectInfo {
	current := s.ctrl.Status().Effect.ID

	all := effect.All()
	infos := make([]EffectInfo, 0, len(all))
	for _, e := range all {
		infos = append(infos, EffectInfo{Effect: e, IsSelected: e.ID == current})
	}
	return infos
}

// SelectEffect changes the effect of the next playback
func (s *FunnyVoiceService) SelectEffect(id string) (effect.Effect, error) {
	return s.ctrl.SelectEffect(id)
}

// Status returns the current session state with display fields
func (s *FunnyVoiceService) Status() Status {
	snap := s.ctrl.Status()

	st := Status{
		Snapshot:    snap,
		Mode:        ModeIdle,
		Instruction: instructionIdle,
		ElapsedText: FormatTime(snap.Recording.ElapsedSeconds),
		SizeText:    FormatSize(int64(snap.Recording.SimulatedBytes)),
		LastError:   s.GetLastError(),
	}

	switch {
	case snap.Recording.State == session.RecordingActive:
		st.Mode = ModeRecording
		st.Instruction = instructionRecording
	case snap.Playback != nil && snap.Playback.State == session.PlaybackPlaying:
		st.Mode = ModePlaying
	}

	return st
}

// Subscribe streams session events
func (s *FunnyVoiceService) Subscribe(buffer int) (<-chan session.Event, func()) {
	return s.ctrl.Subscribe(buffer)
}

// GetConfig returns the current configuration
func (s *FunnyVoiceService) GetConfig() *config.Config {
	return s.cfg
}

// Metrics returns the service metrics
func (s *FunnyVoiceService) Metrics() *metrics.Metrics {
	return s.metrics
}

// Close stops the session and releases the last clip
func (s *FunnyVoiceService) Close() error {
	return s.ctrl.Close()
}

// observe feeds metrics and the last error; it sees every event in order
func (s *FunnyVoiceService) observe(ev session.Event) {
	s.metrics.Observe(ev)

	switch ev.Kind {
	case session.EventRecordingStarted:
		s.clearLastError()
	case session.EventError:
		s.setLastError(ev.Error)
	case session.EventPlaybackFinished:
		if ev.Error != "" {
			s.setLastError(fmt.Sprintf("Playback failed: %s", ev.Error))
		}
	}
}

// GetLastError returns the last error message (thread-safe)
func (s *FunnyVoiceService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *FunnyVoiceService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *FunnyVoiceService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// FormatTime renders elapsed seconds as MM:SS
func FormatTime(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatSize renders a byte count as B, KB or MB
func FormatSize(bytes int64) string {
	const unit = 1024
	switch {
	case bytes < unit:
		return fmt.Sprintf("%d B", bytes)
	case bytes < unit*unit:
		return fmt.Sprintf("%.1f KB", float64(bytes)/unit)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(unit*unit))
	}
}
