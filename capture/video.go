package capture

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/AltairaLabs/mediasession/logger"
	"github.com/AltairaLabs/mediasession/media"
)

// DefaultFrameInterval is the period between captured camera frames.
const DefaultFrameInterval = 2 * time.Second

// ErrCameraStopped is returned by a FrameSource that has been released.
var ErrCameraStopped = errors.New("camera stopped")

// FrameSource produces camera frames on demand.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
}

// VideoConfig configures a VideoLoop.
type VideoConfig struct {
	// Source is the camera. A nil source makes Start a no-op.
	Source FrameSource

	// Interval defaults to DefaultFrameInterval.
	Interval time.Duration

	// Encoder defaults to media.NewFrameEncoder().
	Encoder *media.FrameEncoder

	// Active reports whether a session is connected. The loop stops itself
	// once it returns false.
	Active func() bool

	// OnChunk receives each encoded frame.
	OnChunk func(media.Chunk)
}

// VideoLoop periodically grabs a frame from the camera, downscales it and
// emits it as a JPEG chunk.
type VideoLoop struct {
	cfg VideoConfig
	log *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewVideoLoop creates a stopped loop.
func NewVideoLoop(cfg VideoConfig) *VideoLoop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultFrameInterval
	}
	if cfg.Encoder == nil {
		cfg.Encoder = media.NewFrameEncoder()
	}
	return &VideoLoop{cfg: cfg, log: logger.Component("capture.video")}
}

// Start launches the loop. It reports false and does nothing when there is
// no camera or no active session, or when the loop is already running.
func (v *VideoLoop) Start() bool {
	if v.cfg.Source == nil || !v.active() {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.done = make(chan struct{})
	go v.run(ctx, v.done)
	v.log.Info("video capture started", "interval", v.cfg.Interval)
	return true
}

// Stop ends the loop. Safe to repeat. An in-flight frame grab is cancelled;
// Done reports when the goroutine has exited.
func (v *VideoLoop) Stop() {
	v.mu.Lock()
	cancel := v.cancel
	v.cancel = nil
	v.mu.Unlock()
	if cancel != nil {
		cancel()
		v.log.Info("video capture stopped")
	}
}

// Running reports whether the loop is active.
func (v *VideoLoop) Running() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cancel != nil
}

// Done is closed when the most recent loop goroutine exits.
func (v *VideoLoop) Done() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.done
}

func (v *VideoLoop) active() bool {
	return v.cfg.Active == nil || v.cfg.Active()
}

func (v *VideoLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(v.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !v.active() {
			v.log.Debug("session inactive, stopping video capture")
			v.Stop()
			return
		}
		if !v.tick(ctx) {
			v.Stop()
			return
		}
	}
}

// tick captures and emits one frame. It returns false when the camera has
// gone away.
func (v *VideoLoop) tick(ctx context.Context) bool {
	img, err := v.cfg.Source.Frame(ctx)
	switch {
	case ctx.Err() != nil:
		return true
	case errors.Is(err, ErrCameraStopped), errors.Is(err, io.EOF):
		v.log.Info("camera stopped, ending video capture")
		return false
	case err != nil:
		v.log.Warn("failed to capture frame", "error", err)
		return true
	}

	chunk, err := v.cfg.Encoder.Encode(img)
	if err != nil {
		v.log.Warn("failed to encode frame", "error", err)
		return true
	}
	if v.cfg.OnChunk != nil {
		v.cfg.OnChunk(chunk)
	}
	return true
}
