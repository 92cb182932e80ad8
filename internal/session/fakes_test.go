package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/funnyvoice/internal/audio"
	"github.com/audiolibrelab/funnyvoice/internal/effect"
	"github.com/audiolibrelab/funnyvoice/internal/play"
)

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeCapturer struct {
	mu          sync.Mutex
	opens       int
	released    []audio.MediaHandle
	streams     []*fakeStream
	openErr     error
	finalizeErr error
	emptyClip   bool
}

func (f *fakeCapturer) Open(ctx context.Context) (audio.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}

	s := &fakeStream{owner: f, n: f.opens}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeCapturer) Release(h audio.MediaHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, h)
	return nil
}

func (f *fakeCapturer) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeCapturer) releasedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.released)
}

type fakeStream struct {
	owner     *fakeCapturer
	n         int
	finalized bool
	aborted   bool
}

func (s *fakeStream) Finalize(ctx context.Context) (audio.MediaHandle, error) {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()

	s.finalized = true
	if s.owner.finalizeErr != nil {
		return audio.MediaHandle{}, s.owner.finalizeErr
	}

	path := fmt.Sprintf("/tmp/funnyvoice/rec-%d.wav", s.n)
	h := audio.MediaHandle{URI: audio.FileURI(path), Path: path, SampleRate: 48000, Channels: 1, Size: 4096}
	if s.owner.emptyClip {
		h.Size = 0
	}
	return h, nil
}

func (s *fakeStream) Abort() error {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.aborted = true
	return nil
}

type fakePlayer struct {
	mu        sync.Mutex
	plays     []playCall
	playbacks []*fakePlayback
	playErr   error
}

type playCall struct {
	handle audio.MediaHandle
	opts   play.Options
}

func (p *fakePlayer) Play(ctx context.Context, h audio.MediaHandle, opts play.Options) (play.Playback, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.plays = append(p.plays, playCall{handle: h, opts: opts})
	if p.playErr != nil {
		return nil, p.playErr
	}

	pb := &fakePlayback{done: make(chan play.Completion, 1)}
	p.playbacks = append(p.playbacks, pb)
	return pb, nil
}

func (p *fakePlayer) calls() []playCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]playCall, len(p.plays))
	copy(out, p.plays)
	return out
}

func (p *fakePlayer) last() *fakePlayback {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.playbacks) == 0 {
		return nil
	}
	return p.playbacks[len(p.playbacks)-1]
}

type fakePlayback struct {
	once    sync.Once
	done    chan play.Completion
	mu      sync.Mutex
	stopped bool
}

func (f *fakePlayback) Done() <-chan play.Completion { return f.done }

func (f *fakePlayback) Stop() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.complete(play.Completion{Interrupted: true})
	return nil
}

func (f *fakePlayback) finish(err error) {
	f.complete(play.Completion{Finished: err == nil, Err: err})
}

func (f *fakePlayback) complete(c play.Completion) {
	f.once.Do(func() {
		f.done <- c
		close(f.done)
	})
}

func (f *fakePlayback) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type fakePermission struct {
	granted bool
}

func (p fakePermission) Granted() bool { return p.granted }

func (p fakePermission) Err() error {
	if p.granted {
		return nil
	}
	return fmt.Errorf("%w: capture tool not installed", ErrPermissionDenied)
}

type harness struct {
	ctrl     *Controller
	clock    *ManualClock
	capturer *fakeCapturer
	player   *fakePlayer
	events   <-chan Event
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()

	cfg := Config{
		TickInterval:  time.Second,
		AutoStopAfter: 3 * time.Second,
		Volume:        1.0,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	h := &harness{
		clock:    NewManualClock(testEpoch),
		capturer: &fakeCapturer{},
		player:   &fakePlayer{},
	}

	sel, err := effect.NewSelection("")
	require.NoError(t, err)

	h.ctrl = NewController(cfg, h.capturer, h.player, fakePermission{granted: true}, sel,
		WithClock(h.clock),
		WithSizeIncrement(func() int { return 10 }),
	)
	h.events, _ = h.ctrl.Subscribe(256)

	t.Cleanup(func() { h.ctrl.Close() })
	return h
}

// drain returns the kinds of all events published so far
func (h *harness) drain() []EventKind {
	var kinds []EventKind
	for {
		select {
		case ev, ok := <-h.events:
			if !ok {
				return kinds
			}
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

// waitFor blocks until an event of the given kind arrives
func (h *harness) waitFor(t *testing.T, kind EventKind) Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-h.events:
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func count(kinds []EventKind, kind EventKind) int {
	n := 0
	for _, k := range kinds {
		if k == kind {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")
