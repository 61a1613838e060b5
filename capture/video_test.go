package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/mediasession/media"
)

type fakeCamera struct {
	calls atomic.Int32
	// failAfter makes Frame return err once calls exceed it.
	failAfter int32
	err       error
	width     int
	height    int
}

func (c *fakeCamera) Frame(ctx context.Context) (image.Image, error) {
	n := c.calls.Add(1)
	if c.err != nil && n > c.failAfter {
		return nil, c.err
	}
	img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	for x := 0; x < c.width; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	return img, nil
}

type chunkSink struct {
	mu     sync.Mutex
	chunks []media.Chunk
}

func (s *chunkSink) add(c media.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, c)
}

func (s *chunkSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("video loop did not exit")
	}
}

func TestVideoLoop_EmitsScaledJPEG(t *testing.T) {
	cam := &fakeCamera{width: 640, height: 480}
	var sink chunkSink
	v := NewVideoLoop(VideoConfig{Source: cam, Interval: 10 * time.Millisecond, OnChunk: sink.add})

	require.True(t, v.Start())
	require.Eventually(t, func() bool { return sink.len() >= 2 }, 2*time.Second, 5*time.Millisecond)
	v.Stop()
	waitDone(t, v.Done())

	sink.mu.Lock()
	chunk := sink.chunks[0]
	sink.mu.Unlock()
	assert.Equal(t, media.MIMETypeJPEG, chunk.MIMEType)
	img, err := media.DecodeFrame(chunk.Data)
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dx())
	assert.Equal(t, 120, img.Bounds().Dy())
}

func TestVideoLoop_NoOpWithoutCameraOrSession(t *testing.T) {
	v := NewVideoLoop(VideoConfig{})
	assert.False(t, v.Start())
	assert.False(t, v.Running())

	v = NewVideoLoop(VideoConfig{Source: &fakeCamera{width: 8, height: 8}, Active: func() bool { return false }})
	assert.False(t, v.Start())
	assert.False(t, v.Running())
	assert.NotPanics(t, v.Stop)
}

func TestVideoLoop_StartIsIdempotent(t *testing.T) {
	v := NewVideoLoop(VideoConfig{Source: &fakeCamera{width: 8, height: 8}, Interval: time.Hour})
	require.True(t, v.Start())
	assert.False(t, v.Start())
	v.Stop()
	v.Stop()
	waitDone(t, v.Done())
	assert.False(t, v.Running())
}

func TestVideoLoop_StopsWhenSessionEnds(t *testing.T) {
	var active atomic.Bool
	active.Store(true)
	cam := &fakeCamera{width: 16, height: 16}
	var sink chunkSink
	v := NewVideoLoop(VideoConfig{
		Source:   cam,
		Interval: 10 * time.Millisecond,
		Active:   active.Load,
		OnChunk:  sink.add,
	})
	require.True(t, v.Start())
	require.Eventually(t, func() bool { return sink.len() >= 1 }, 2*time.Second, 5*time.Millisecond)

	active.Store(false)
	waitDone(t, v.Done())
	assert.False(t, v.Running())
}

func TestVideoLoop_StopsWhenCameraStops(t *testing.T) {
	for _, camErr := range []error{ErrCameraStopped, io.EOF} {
		cam := &fakeCamera{width: 16, height: 16, failAfter: 1, err: camErr}
		v := NewVideoLoop(VideoConfig{Source: cam, Interval: 10 * time.Millisecond})
		require.True(t, v.Start())
		waitDone(t, v.Done())
		assert.False(t, v.Running())
		assert.Equal(t, int32(2), cam.calls.Load())
	}
}

func TestVideoLoop_SkipsTransientErrors(t *testing.T) {
	cam := &fakeCamera{width: 16, height: 16, err: errors.New("busy")}
	v := NewVideoLoop(VideoConfig{Source: cam, Interval: 5 * time.Millisecond})
	require.True(t, v.Start())
	require.Eventually(t, func() bool { return cam.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, v.Running())
	v.Stop()
	waitDone(t, v.Done())
}
