package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/funnyvoice/internal/effect"
)

func TestController_ManualStopAfterTickYieldsClip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(1500 * time.Millisecond)
	require.NoError(t, h.ctrl.Release(ctx))

	st := h.ctrl.Status()
	assert.Equal(t, RecordingStopped, st.Recording.State)
	assert.Equal(t, 1, st.Recording.ElapsedSeconds)
	assert.Equal(t, 10, st.Recording.SimulatedBytes)
	require.NotNil(t, st.Recording.Media)
	assert.True(t, st.Recording.Media.Valid())

	calls := h.player.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, st.Recording.Media.Path, calls[0].handle.Path)
	assert.Equal(t, 2.0, calls[0].opts.Rate)
	assert.False(t, calls[0].opts.CorrectPitch)

	kinds := h.drain()
	assert.Equal(t, []EventKind{EventRecordingStarted, EventTick, EventRecordingStopped, EventPlaybackStarted}, kinds)
}

func TestController_ShortHoldStopsWithZeroElapsed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(500 * time.Millisecond)
	require.NoError(t, h.ctrl.Release(ctx))

	st := h.ctrl.Status()
	assert.Equal(t, RecordingStopped, st.Recording.State)
	assert.Equal(t, 0, st.Recording.ElapsedSeconds)
	assert.Equal(t, 0, st.Recording.SimulatedBytes)

	calls := h.player.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 2.0, calls[0].opts.Rate)

	require.NotNil(t, st.Playback)
	assert.Equal(t, PlaybackPlaying, st.Playback.State)
	assert.Equal(t, effect.DefaultID, st.Playback.EffectID)
}

func TestController_LongHoldAutoStopsOnceAtDeadline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.drain()

	h.clock.Advance(10 * time.Second)

	st := h.ctrl.Status()
	assert.Equal(t, RecordingStopped, st.Recording.State)
	assert.Equal(t, 3, st.Recording.ElapsedSeconds)
	assert.Equal(t, 30, st.Recording.SimulatedBytes)
	assert.False(t, st.AutoStopArmed)

	var stops []Event
	for {
		select {
		case ev := <-h.events:
			if ev.Kind == EventRecordingStopped {
				stops = append(stops, ev)
			}
			continue
		default:
		}
		break
	}
	require.Len(t, stops, 1)
	assert.Equal(t, StopAuto, stops[0].Reason)
	assert.Equal(t, testEpoch.Add(3*time.Second), stops[0].At)

	require.Len(t, h.player.calls(), 1)
	assert.Equal(t, 2.0, h.player.calls()[0].opts.Rate)
	assert.Zero(t, h.clock.Pending())

	// Releasing after the auto-stop is not an error path that stops twice
	assert.ErrorIs(t, h.ctrl.Release(ctx), ErrNotRecording)
}

func TestController_AutoStopSuppressedWithZeroElapsed(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.AutoStopAfter = 500 * time.Millisecond })
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(600 * time.Millisecond)

	st := h.ctrl.Status()
	assert.Equal(t, RecordingActive, st.Recording.State)
	assert.Equal(t, 0, st.Recording.ElapsedSeconds)
	assert.False(t, st.AutoStopArmed)
	assert.Equal(t, 1, count(h.drain(), EventAutoStopSuppressed))
	assert.Empty(t, h.player.calls())

	// The suppressed deadline is not re-armed
	h.clock.Advance(5 * time.Second)
	st = h.ctrl.Status()
	assert.Equal(t, RecordingActive, st.Recording.State)
	assert.Equal(t, 5, st.Recording.ElapsedSeconds)

	require.NoError(t, h.ctrl.Release(ctx))
	assert.Equal(t, RecordingStopped, h.ctrl.Status().Recording.State)
	assert.Len(t, h.player.calls(), 1)
}

func TestController_VoiceActivityRearmsDeadline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(2 * time.Second)
	require.NoError(t, h.ctrl.VoiceActivity())

	h.clock.Advance(2999 * time.Millisecond)
	assert.Equal(t, RecordingActive, h.ctrl.Status().Recording.State)

	h.clock.Advance(time.Millisecond)
	st := h.ctrl.Status()
	assert.Equal(t, RecordingStopped, st.Recording.State)
	assert.Equal(t, 5, st.Recording.ElapsedSeconds)

	h.clock.Advance(10 * time.Second)
	assert.Equal(t, 1, count(h.drain(), EventRecordingStopped))
	assert.Len(t, h.player.calls(), 1)
}

func TestController_ManualStopCancelsDeadline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(1200 * time.Millisecond)
	require.NoError(t, h.ctrl.Release(ctx))

	assert.Zero(t, h.clock.Pending())
	h.clock.Advance(5 * time.Second)

	kinds := h.drain()
	assert.Equal(t, 1, count(kinds, EventRecordingStopped))
	assert.Zero(t, count(kinds, EventAutoStopSuppressed))
}

func TestController_SelectedEffectRateIsUsed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ctrl.SelectEffect("monster-voice")
	require.NoError(t, err)

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(time.Second)
	require.NoError(t, h.ctrl.Release(ctx))

	calls := h.player.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 0.6, calls[0].opts.Rate)

	// A later selection leaves the running playback alone
	_, err = h.ctrl.SelectEffect("demon-voice")
	require.NoError(t, err)

	st := h.ctrl.Status()
	require.NotNil(t, st.Playback)
	assert.Equal(t, 0.6, st.Playback.Rate)
	assert.Equal(t, "monster-voice", st.Playback.EffectID)
	assert.Equal(t, PlaybackPlaying, st.Playback.State)
	assert.Equal(t, "demon-voice", st.Effect.ID)
	assert.Len(t, h.player.calls(), 1)
	assert.False(t, h.player.last().wasStopped())
}

func TestController_SelectUnknownEffect(t *testing.T) {
	h := newHarness(t)

	_, err := h.ctrl.SelectEffect("chipmunk")
	require.Error(t, err)
	assert.Equal(t, effect.DefaultID, h.ctrl.Status().Effect.ID)
}

func TestController_PermissionDeniedOpensNothing(t *testing.T) {
	capturer := &fakeCapturer{}
	sel, err := effect.NewSelection("")
	require.NoError(t, err)

	ctrl := NewController(Config{TickInterval: time.Second, AutoStopAfter: 3 * time.Second, Volume: 1},
		capturer, &fakePlayer{}, fakePermission{granted: false}, sel,
		WithClock(NewManualClock(testEpoch)))
	defer ctrl.Close()

	err = ctrl.Press(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Zero(t, capturer.openCount())

	st := ctrl.Status()
	assert.Equal(t, RecordingIdle, st.Recording.State)
	assert.False(t, st.PermissionGranted)
}

func TestController_PlaybackFinishes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(time.Second)
	require.NoError(t, h.ctrl.Release(ctx))

	h.player.last().finish(nil)
	ev := h.waitFor(t, EventPlaybackFinished)
	assert.Empty(t, ev.Error)
	require.NotNil(t, ev.Playback)
	assert.Equal(t, PlaybackFinished, ev.Playback.State)

	st := h.ctrl.Status()
	require.NotNil(t, st.Playback)
	assert.Equal(t, PlaybackFinished, st.Playback.State)
	assert.Equal(t, RecordingStopped, st.Recording.State)
}

func TestController_PlaybackErrorReportedOnFinish(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(time.Second)
	require.NoError(t, h.ctrl.Release(ctx))

	h.player.last().finish(errBoom)
	ev := h.waitFor(t, EventPlaybackFinished)
	assert.Equal(t, "boom", ev.Error)
}

func TestController_PressPreemptsPlayback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(time.Second)
	require.NoError(t, h.ctrl.Release(ctx))
	first := h.player.last()

	require.NoError(t, h.ctrl.Press(ctx))
	assert.True(t, first.wasStopped())
	assert.Equal(t, 1, h.capturer.releasedCount())

	st := h.ctrl.Status()
	assert.Equal(t, RecordingActive, st.Recording.State)
	assert.Nil(t, st.Playback)
	assert.Equal(t, 1, count(h.drain(), EventPlaybackPreempted))

	h.clock.Advance(time.Second)
	require.NoError(t, h.ctrl.Release(ctx))

	// The interrupted completion of the first playback must not finish the second
	assert.Never(t, func() bool {
		pb := h.ctrl.Status().Playback
		return pb == nil || pb.State != PlaybackPlaying
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestController_NewPressResetsCounters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(2 * time.Second)
	require.NoError(t, h.ctrl.Release(ctx))
	firstID := h.ctrl.Status().Recording.ID

	require.NoError(t, h.ctrl.Press(ctx))
	st := h.ctrl.Status()
	assert.NotEqual(t, firstID, st.Recording.ID)
	assert.Equal(t, 0, st.Recording.ElapsedSeconds)
	assert.Equal(t, 0, st.Recording.SimulatedBytes)
	assert.Nil(t, st.Recording.Media)
	assert.True(t, st.AutoStopArmed)
}

func TestController_CaptureStartFailure(t *testing.T) {
	h := newHarness(t)
	h.capturer.openErr = errBoom

	err := h.ctrl.Press(context.Background())
	assert.ErrorIs(t, err, ErrCaptureStart)
	assert.Contains(t, err.Error(), "boom")

	st := h.ctrl.Status()
	assert.Equal(t, RecordingIdle, st.Recording.State)
	assert.False(t, st.AutoStopArmed)
	assert.Zero(t, h.clock.Pending())
	assert.Equal(t, []EventKind{EventError}, h.drain())
}

func TestController_CaptureStopFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(time.Second)
	h.capturer.mu.Lock()
	h.capturer.finalizeErr = errBoom
	h.capturer.mu.Unlock()

	err := h.ctrl.Release(ctx)
	assert.ErrorIs(t, err, ErrCaptureStop)
	assert.Equal(t, RecordingIdle, h.ctrl.Status().Recording.State)
	assert.Empty(t, h.player.calls())
}

func TestController_EmptyClipIsStopFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.capturer.emptyClip = true

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(time.Second)

	assert.ErrorIs(t, h.ctrl.Release(ctx), ErrCaptureStop)
	assert.Empty(t, h.player.calls())
}

func TestController_PlaybackStartFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.player.playErr = errBoom

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(time.Second)

	err := h.ctrl.Release(ctx)
	assert.ErrorIs(t, err, ErrPlaybackStart)

	st := h.ctrl.Status()
	assert.Equal(t, RecordingStopped, st.Recording.State)
	assert.Nil(t, st.Playback)
}

func TestController_StateErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.ctrl.Release(ctx), ErrNotRecording)
	assert.ErrorIs(t, h.ctrl.VoiceActivity(), ErrNotRecording)

	require.NoError(t, h.ctrl.Press(ctx))
	assert.ErrorIs(t, h.ctrl.Press(ctx), ErrAlreadyRecording)
	assert.Equal(t, 1, h.capturer.openCount())
}

func TestController_CloseAbortsCapture(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	require.NoError(t, h.ctrl.Close())

	h.capturer.mu.Lock()
	aborted := h.capturer.streams[0].aborted
	h.capturer.mu.Unlock()
	assert.True(t, aborted)
	assert.Zero(t, h.clock.Pending())

	assert.ErrorIs(t, h.ctrl.Press(ctx), ErrClosed)
	assert.NoError(t, h.ctrl.Close())
}

func TestController_CloseStopsPlaybackAndReleasesClip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Press(ctx))
	h.clock.Advance(time.Second)
	require.NoError(t, h.ctrl.Release(ctx))

	require.NoError(t, h.ctrl.Close())
	assert.True(t, h.player.last().wasStopped())
	assert.Equal(t, 1, h.capturer.releasedCount())

	// Subscriber channels are closed
	for range h.events {
	}
}

func TestController_Unsubscribe(t *testing.T) {
	h := newHarness(t)

	ch, cancel := h.ctrl.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, h.ctrl.Press(context.Background()))
}

func TestController_DefaultSizeIncrementRange(t *testing.T) {
	clock := NewManualClock(testEpoch)
	sel, err := effect.NewSelection("")
	require.NoError(t, err)

	ctrl := NewController(Config{
		TickInterval:  time.Second,
		AutoStopAfter: time.Hour,
		Volume:        1.0,
	}, &fakeCapturer{}, &fakePlayer{}, fakePermission{granted: true}, sel, WithClock(clock))
	defer ctrl.Close()

	require.NoError(t, ctrl.Press(context.Background()))

	prev := 0
	for i := 1; i <= 50; i++ {
		clock.Advance(time.Second)

		st := ctrl.Status()
		require.Equal(t, i, st.Recording.ElapsedSeconds)
		delta := st.Recording.SimulatedBytes - prev
		assert.GreaterOrEqual(t, delta, 5, "tick %d", i)
		assert.Less(t, delta, 15, "tick %d", i)
		prev = st.Recording.SimulatedBytes
	}
}

func TestController_ObserverSeesEventsDroppedBySubscribers(t *testing.T) {
	clock := NewManualClock(testEpoch)
	sel, err := effect.NewSelection("")
	require.NoError(t, err)

	var kinds []EventKind
	ctrl := NewController(Config{
		TickInterval:  time.Second,
		AutoStopAfter: 3 * time.Second,
		Volume:        1.0,
	}, &fakeCapturer{}, &fakePlayer{}, fakePermission{granted: true}, sel,
		WithClock(clock),
		WithObserver(func(ev Event) { kinds = append(kinds, ev.Kind) }),
	)
	defer ctrl.Close()

	events, _ := ctrl.Subscribe(1)

	ctx := context.Background()
	require.NoError(t, ctrl.Press(ctx))
	clock.Advance(2 * time.Second)
	require.NoError(t, ctrl.Release(ctx))

	assert.Len(t, events, 1)
	assert.Equal(t, 1, count(kinds, EventRecordingStarted))
	assert.Equal(t, 2, count(kinds, EventTick))
	assert.Equal(t, 1, count(kinds, EventRecordingStopped))
	assert.Equal(t, 1, count(kinds, EventPlaybackStarted))
}
