// Package session owns the record/playback lifecycle: a press starts a
// capture, a release (or the silence auto-stop) finalizes it and the clip is
// replayed at the selected effect's rate.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/funnyvoice/internal/audio"
	"github.com/audiolibrelab/funnyvoice/internal/effect"
	"github.com/audiolibrelab/funnyvoice/internal/play"
)

// Config holds the timing and playback parameters of the controller
type Config struct {
	TickInterval  time.Duration
	AutoStopAfter time.Duration
	Volume        float64
	CorrectPitch  bool
}

// Permission reports the outcome of the microphone permission request
type Permission interface {
	Granted() bool
	Err() error
}

// Option customizes a Controller
type Option func(*Controller)

// WithClock replaces the system clock
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithSizeIncrement replaces the pseudo-random simulated size increment
func WithSizeIncrement(f func() int) Option {
	return func(c *Controller) { c.sizeIncrement = f }
}

// WithObserver registers f to receive every event synchronously, in order,
// before subscribers see it. f runs with the controller locked and must not
// call back into the controller.
func WithObserver(f func(Event)) Option {
	return func(c *Controller) { c.observers = append(c.observers, f) }
}

// Controller holds the one recording and the one playback of the process.
// Every mutation happens under mu; timer and playback callbacks carry the
// generation of the recording that scheduled them and are dropped when a
// newer recording has started.
type Controller struct {
	cfg           Config
	capturer      audio.Capturer
	player        play.Player
	permission    Permission
	effects       *effect.Selection
	clock         Clock
	sizeIncrement func() int
	observers     []func(Event)

	baseCtx context.Context
	cancel  context.CancelFunc
	closing chan struct{}
	wg      sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	gen       uint64
	rec       *Recording
	stream    audio.Stream
	tick      Timer
	autoStop  *autoStopTimer
	pb        *Playback
	playback  play.Playback
	lastMedia *audio.MediaHandle

	subsMu sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewController creates a controller
func NewController(cfg Config, capturer audio.Capturer, player play.Player, permission Permission, effects *effect.Selection, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		cfg:           cfg,
		capturer:      capturer,
		player:        player,
		permission:    permission,
		effects:       effects,
		clock:         RealClock{},
		sizeIncrement: func() int { return 5 + rand.IntN(10) },
		baseCtx:       ctx,
		cancel:        cancel,
		closing:       make(chan struct{}),
		subs:          make(map[int]chan Event),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.autoStop = newAutoStopTimer(c.clock, cfg.AutoStopAfter, c.onAutoStop)
	return c
}

// Press starts a new recording. A playback still running is stopped first.
func (c *Controller) Press(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if !c.permission.Granted() {
		err := ErrPermissionDenied
		if perr := c.permission.Err(); perr != nil {
			err = perr
		}
		c.publishError(err)
		return err
	}

	if c.rec != nil && c.rec.State == RecordingActive {
		return ErrAlreadyRecording
	}

	c.preemptPlaybackLocked()
	c.releaseMediaLocked()

	c.gen++
	gen := c.gen

	stream, err := c.capturer.Open(ctx)
	if err != nil {
		c.rec = nil
		err = fmt.Errorf("%w: %v", ErrCaptureStart, err)
		slog.Error("Failed to open capture stream", "error", err)
		c.publishError(err)
		return err
	}

	c.stream = stream
	c.rec = &Recording{
		ID:        uuid.NewString(),
		State:     RecordingActive,
		StartedAt: c.clock.Now(),
	}

	c.scheduleTickLocked(gen)
	c.autoStop.Arm()

	slog.Info("Recording started", "recording", c.rec.ID, "effect", c.effects.Current().ID)
	c.publish(Event{Kind: EventRecordingStarted})
	return nil
}

// Release ends the active recording and starts its playback
func (c *Controller) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if c.rec == nil || c.rec.State != RecordingActive {
		return ErrNotRecording
	}

	return c.stopLocked(ctx, StopManual)
}

// VoiceActivity re-arms the silence deadline of the active recording
func (c *Controller) VoiceActivity() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec == nil || c.rec.State != RecordingActive {
		return ErrNotRecording
	}

	c.autoStop.Arm()
	slog.Debug("Auto-stop re-armed", "deadline", c.autoStop.Deadline())
	return nil
}

// SelectEffect changes the effect used by the next playback. A running
// playback keeps its rate.
func (c *Controller) SelectEffect(id string) (effect.Effect, error) {
	e, err := c.effects.Select(id)
	if err != nil {
		return effect.Effect{}, err
	}

	c.mu.Lock()
	c.publish(Event{Kind: EventEffectSelected, EffectID: e.ID})
	c.mu.Unlock()

	slog.Debug("Effect selected", "effect", e.ID, "rate", e.Rate)
	return e, nil
}

// Status returns a snapshot of the current state
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Recording:         c.rec.clone(),
		Playback:          c.pb.clone(),
		Effect:            c.effects.Current(),
		PermissionGranted: c.permission.Granted(),
		AutoStopArmed:     c.autoStop.Armed(),
	}
}

// Subscribe returns a channel of events. Events are dropped for a subscriber
// whose buffer is full. The returned function unsubscribes.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
			c.subsMu.Unlock()
		})
	}
}

// Close cancels timers, aborts an active capture, stops playback and
// releases the last clip.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.gen++
	c.cancelTimersLocked()

	var errs []error
	if c.stream != nil {
		if err := c.stream.Abort(); err != nil {
			errs = append(errs, err)
		}
		c.stream = nil
	}
	if c.playback != nil {
		if err := c.playback.Stop(); err != nil {
			errs = append(errs, err)
		}
		c.playback = nil
	}
	c.releaseMediaLocked()
	c.mu.Unlock()

	close(c.closing)
	c.cancel()
	c.wg.Wait()

	c.subsMu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.subsMu.Unlock()

	return errors.Join(errs...)
}

// stopLocked finalizes the capture and hands the clip to playback
func (c *Controller) stopLocked(ctx context.Context, reason StopReason) error {
	c.cancelTimersLocked()
	c.catchUpLocked()

	stream := c.stream
	c.stream = nil

	h, err := stream.Finalize(ctx)
	if err == nil && !h.Valid() {
		err = errors.New("capture produced no audio")
	}
	if err != nil {
		c.rec = nil
		err = fmt.Errorf("%w: %v", ErrCaptureStop, err)
		slog.Error("Failed to finalize capture", "error", err)
		c.publishError(err)
		return err
	}

	c.rec.State = RecordingStopped
	c.rec.Media = &h
	c.lastMedia = &h

	slog.Info("Recording stopped", "recording", c.rec.ID, "reason", reason, "elapsed", c.rec.ElapsedSeconds, "clip", h.Path)
	c.publish(Event{Kind: EventRecordingStopped, Reason: reason})

	return c.startPlaybackLocked(ctx, h)
}

func (c *Controller) startPlaybackLocked(ctx context.Context, h audio.MediaHandle) error {
	e := c.effects.Current()

	pb, err := c.player.Play(ctx, h, play.Options{
		Rate:         e.Rate,
		Volume:       c.cfg.Volume,
		CorrectPitch: c.cfg.CorrectPitch,
	})
	if err != nil {
		c.pb = nil
		err = fmt.Errorf("%w: %v", ErrPlaybackStart, err)
		slog.Error("Failed to start playback", "error", err)
		c.publishError(err)
		return err
	}

	c.playback = pb
	c.pb = &Playback{
		ID:        uuid.NewString(),
		State:     PlaybackPlaying,
		Source:    h,
		Rate:      e.Rate,
		EffectID:  e.ID,
		StartedAt: c.clock.Now(),
	}

	slog.Info("Playback started", "playback", c.pb.ID, "effect", e.ID, "rate", e.Rate)
	c.publish(Event{Kind: EventPlaybackStarted, EffectID: e.ID})

	gen := c.gen
	c.wg.Add(1)
	go c.awaitPlayback(gen, pb)

	return nil
}

// awaitPlayback consumes the single completion of a playback
func (c *Controller) awaitPlayback(gen uint64, pb play.Playback) {
	defer c.wg.Done()

	select {
	case comp, ok := <-pb.Done():
		if !ok {
			comp = play.Completion{Finished: true}
		}
		c.onPlaybackDone(gen, comp)
	case <-c.closing:
		pb.Stop()
	}
}

func (c *Controller) onPlaybackDone(gen uint64, comp play.Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen || c.pb == nil || c.pb.State != PlaybackPlaying {
		slog.Debug("Ignoring completion of superseded playback")
		return
	}

	c.pb.State = PlaybackFinished
	c.playback = nil

	ev := Event{Kind: EventPlaybackFinished, EffectID: c.pb.EffectID}
	if comp.Err != nil {
		ev.Err = comp.Err
		ev.Error = comp.Err.Error()
		slog.Error("Playback ended with error", "playback", c.pb.ID, "error", comp.Err)
	} else {
		slog.Info("Playback finished", "playback", c.pb.ID)
	}
	c.publish(ev)
}

func (c *Controller) scheduleTickLocked(gen uint64) {
	c.tick = c.clock.AfterFunc(c.cfg.TickInterval, func() { c.onTick(gen) })
}

func (c *Controller) onTick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen || c.rec == nil || c.rec.State != RecordingActive {
		return
	}

	c.advanceCountersLocked()
	c.publish(Event{Kind: EventTick})
	c.scheduleTickLocked(gen)
}

func (c *Controller) onAutoStop(armID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.autoStop.Current(armID) || c.rec == nil || c.rec.State != RecordingActive {
		return
	}
	c.autoStop.Consume()

	c.catchUpLocked()
	if c.rec.ElapsedSeconds == 0 {
		slog.Debug("Auto-stop suppressed, recording has not completed a tick", "recording", c.rec.ID)
		c.publish(Event{Kind: EventAutoStopSuppressed})
		return
	}

	slog.Info("Silence deadline reached, stopping recording", "recording", c.rec.ID)
	c.stopLocked(c.baseCtx, StopAuto)
}

// catchUpLocked applies ticks that are due by the clock but not yet delivered
func (c *Controller) catchUpLocked() {
	due := int(c.clock.Now().Sub(c.rec.StartedAt) / c.cfg.TickInterval)
	for c.rec.ElapsedSeconds < due {
		c.advanceCountersLocked()
	}
}

func (c *Controller) advanceCountersLocked() {
	c.rec.ElapsedSeconds++
	c.rec.SimulatedBytes += c.sizeIncrement()
}

func (c *Controller) cancelTimersLocked() {
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
	c.autoStop.Cancel()
}

func (c *Controller) preemptPlaybackLocked() {
	if c.pb == nil {
		return
	}

	if c.pb.State == PlaybackPlaying && c.playback != nil {
		if err := c.playback.Stop(); err != nil {
			slog.Warn("Failed to stop preempted playback", "error", err)
		}
		slog.Info("New recording preempts running playback", "playback", c.pb.ID)
		c.publish(Event{Kind: EventPlaybackPreempted, EffectID: c.pb.EffectID})
	}

	c.pb = nil
	c.playback = nil
}

func (c *Controller) releaseMediaLocked() {
	if c.lastMedia == nil {
		return
	}
	if err := c.capturer.Release(*c.lastMedia); err != nil {
		slog.Warn("Failed to release clip", "path", c.lastMedia.Path, "error", err)
	}
	c.lastMedia = nil
}

func (c *Controller) publishError(err error) {
	c.publish(Event{Kind: EventError, Err: err, Error: err.Error()})
}

// publish fills in the snapshot fields and fans the event out. Called with mu held.
func (c *Controller) publish(ev Event) {
	ev.At = c.clock.Now()
	ev.Recording = c.rec.clone()
	ev.Playback = c.pb.clone()

	for _, observe := range c.observers {
		observe(ev)
	}

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("Dropping event for slow subscriber", "kind", ev.Kind)
		}
	}
}
