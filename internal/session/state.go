package session

import (
	"time"

	"github.com/audiolibrelab/funnyvoice/internal/audio"
	"github.com/audiolibrelab/funnyvoice/internal/effect"
)

// RecordingState is the lifecycle state of a recording
type RecordingState string

const (
	RecordingIdle    RecordingState = "IDLE"
	RecordingActive  RecordingState = "ACTIVE"
	RecordingStopped RecordingState = "STOPPED"
)

// PlaybackState is the lifecycle state of a playback
type PlaybackState string

const (
	PlaybackIdle     PlaybackState = "IDLE"
	PlaybackPlaying  PlaybackState = "PLAYING"
	PlaybackFinished PlaybackState = "FINISHED"
)

// StopReason tells how a recording ended
type StopReason string

const (
	StopManual StopReason = "manual"
	StopAuto   StopReason = "auto"
)

// Recording is one capture. ElapsedSeconds and SimulatedBytes are display
// counters driven by the clock; they say nothing about the captured audio.
type Recording struct {
	ID             string             `json:"id,omitempty"`
	State          RecordingState     `json:"state"`
	StartedAt      time.Time          `json:"started_at,omitempty"`
	ElapsedSeconds int                `json:"elapsed_seconds"`
	SimulatedBytes int                `json:"simulated_bytes"`
	Media          *audio.MediaHandle `json:"media,omitempty"`
}

// Playback is one replay of a recording's clip
type Playback struct {
	ID        string            `json:"id"`
	State     PlaybackState     `json:"state"`
	Source    audio.MediaHandle `json:"source"`
	Rate      float64           `json:"rate"`
	EffectID  string            `json:"effect_id"`
	StartedAt time.Time         `json:"started_at"`
}

func (r *Recording) clone() Recording {
	if r == nil {
		return Recording{State: RecordingIdle}
	}
	out := *r
	if r.Media != nil {
		m := *r.Media
		out.Media = &m
	}
	return out
}

func (p *Playback) clone() *Playback {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

// Snapshot is a consistent view of the controller
type Snapshot struct {
	Recording         Recording     `json:"recording"`
	Playback          *Playback     `json:"playback,omitempty"`
	Effect            effect.Effect `json:"effect"`
	PermissionGranted bool          `json:"permission_granted"`
	AutoStopArmed     bool          `json:"auto_stop_armed"`
}

// EventKind identifies a lifecycle event
type EventKind string

const (
	EventRecordingStarted   EventKind = "recording_started"
	EventTick               EventKind = "tick"
	EventAutoStopSuppressed EventKind = "auto_stop_suppressed"
	EventRecordingStopped   EventKind = "recording_stopped"
	EventPlaybackStarted    EventKind = "playback_started"
	EventPlaybackFinished   EventKind = "playback_finished"
	EventPlaybackPreempted  EventKind = "playback_preempted"
	EventEffectSelected     EventKind = "effect_selected"
	EventError              EventKind = "error"
)

// Event is published on every state change
type Event struct {
	Kind      EventKind  `json:"kind"`
	At        time.Time  `json:"at"`
	Recording Recording  `json:"recording"`
	Playback  *Playback  `json:"playback,omitempty"`
	Reason    StopReason `json:"reason,omitempty"`
	EffectID  string     `json:"effect_id,omitempty"`
	Err       error      `json:"-"`
	Error     string     `json:"error,omitempty"`
}
