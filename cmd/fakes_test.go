package cmd

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/audiolibrelab/funnyvoice/internal/audio"
	"github.com/audiolibrelab/funnyvoice/internal/play"
)

type nopCapturer struct{}

func (nopCapturer) Open(ctx context.Context) (audio.Stream, error) {
	return nil, errors.New("no capture in tests")
}

func (nopCapturer) Release(audio.MediaHandle) error { return nil }

type nopPlayer struct{}

func (nopPlayer) Play(ctx context.Context, h audio.MediaHandle, opts play.Options) (play.Playback, error) {
	return nil, errors.New("no playback in tests")
}

type countingCapturer struct {
	mu    sync.Mutex
	opens int
}

func (c *countingCapturer) Open(ctx context.Context) (audio.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	return nil, errors.New("no capture in tests")
}

func (c *countingCapturer) Release(audio.MediaHandle) error { return nil }

func (c *countingCapturer) openCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
