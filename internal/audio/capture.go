package audio

import (
	"context"
	"errors"
	"net/url"
)

// ErrPermissionDenied is returned when microphone capture is not allowed
var ErrPermissionDenied = errors.New("microphone permission denied")

// MediaHandle references a captured clip. It stays valid until released.
type MediaHandle struct {
	URI        string `json:"uri"`
	Path       string `json:"path"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Size       int64  `json:"size"`
}

// Valid reports whether the handle points at captured audio
func (h MediaHandle) Valid() bool {
	return h.Path != "" && h.Size > 0
}

// FileURI builds the file:// URI for a local path
func FileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}

// Capturer opens capture streams on the platform audio subsystem
type Capturer interface {
	// Open starts capturing into a new ephemeral file
	Open(ctx context.Context) (Stream, error)

	// Release discards a clip produced by an earlier stream
	Release(h MediaHandle) error
}

// Stream is one running capture
type Stream interface {
	// Finalize stops the capture and returns the handle to the clip
	Finalize(ctx context.Context) (MediaHandle, error)

	// Abort stops the capture and throws the output away
	Abort() error
}
