package session

import (
	"errors"

	"github.com/audiolibrelab/funnyvoice/internal/audio"
)

var (
	// ErrPermissionDenied blocks every recording attempt
	ErrPermissionDenied = audio.ErrPermissionDenied
	// ErrCaptureStart means the capture stream could not be opened
	ErrCaptureStart = errors.New("capture start failed")
	// ErrCaptureStop means the capture stream could not be finalized
	ErrCaptureStop = errors.New("capture stop failed")
	// ErrPlaybackStart means the clip could not be played
	ErrPlaybackStart = errors.New("playback start failed")

	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrClosed           = errors.New("session controller closed")
)
