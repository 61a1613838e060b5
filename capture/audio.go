// Package capture turns local devices into outbound media chunks: a
// microphone pipeline producing 100 ms PCM16 chunks with a volume metric,
// and a periodic camera frame loop producing downscaled JPEG chunks.
package capture

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/AltairaLabs/mediasession/audio"
	"github.com/AltairaLabs/mediasession/logger"
	"github.com/AltairaLabs/mediasession/media"
)

const component = "capture"

// logInterval limits periodic capture debug logs.
const logInterval = 5 * time.Second

// AudioConfig configures an AudioPipeline.
type AudioConfig struct {
	// Device is the microphone. Defaults to DefaultDevice().
	Device Device

	// SampleRate and FramesPerBuffer default to 16 kHz and 1600 frames.
	SampleRate      int
	FramesPerBuffer int

	// OnChunk receives every captured chunk while not muted.
	OnChunk func(media.Chunk)

	// OnLevel receives the smoothed RMS level (0..1) once per buffer.
	OnLevel func(float64)

	// OnError receives a failure of a running stream. The pipeline has
	// stopped by the time it is called.
	OnError func(error)
}

// AudioPipeline captures microphone audio. At most one device stream is
// open at a time.
type AudioPipeline struct {
	cfg   AudioConfig
	log   *slog.Logger
	muted atomic.Bool
	level atomic.Uint64

	mu     sync.Mutex
	stream Stream
	done   chan struct{}

	chunks    atomic.Int64
	sometimes rate.Sometimes
}

// NewAudioPipeline creates a stopped pipeline.
func NewAudioPipeline(cfg AudioConfig) *AudioPipeline {
	if cfg.Device == nil {
		cfg.Device = DefaultDevice()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.SampleRate16kHz
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = audio.ChunkFrames
	}
	return &AudioPipeline{
		cfg:       cfg,
		log:       logger.Component("capture.audio"),
		sometimes: rate.Sometimes{Interval: logInterval},
	}
}

// Start opens the device and begins emitting chunks. It is a no-op while
// running. Failures carry KindPermissionDenied or KindDeviceUnavailable.
func (p *AudioPipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return nil
	}

	stream, err := p.cfg.Device.Open(p.cfg.SampleRate, p.cfg.FramesPerBuffer)
	if err != nil {
		p.log.Error("failed to open microphone", "error", err)
		return deviceError(err, "start")
	}
	p.stream = stream
	p.done = make(chan struct{})
	p.level.Store(0)

	p.log.Info("microphone opened", "sample_rate", p.cfg.SampleRate, "frames_per_buffer", p.cfg.FramesPerBuffer)
	go p.loop(stream, p.done)
	return nil
}

// Stop closes the device stream. It is safe when never started and may be
// called repeatedly. It does not wait for the capture goroutine, which exits
// once its pending Read returns; Done reports when.
func (p *AudioPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release(p.stream)
}

// release closes stream if it is still the current one. Callers hold mu.
func (p *AudioPipeline) release(stream Stream) bool {
	if stream == nil || p.stream != stream {
		return false
	}
	if err := p.stream.Close(); err != nil {
		p.log.Warn("failed to close microphone", "error", err)
	}
	p.stream = nil
	p.level.Store(0)
	p.log.Info("microphone closed", "chunks", p.chunks.Load())
	return true
}

// Running reports whether a device stream is open.
func (p *AudioPipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}

// Done is closed when the most recent capture goroutine exits. It is nil
// before the first Start.
func (p *AudioPipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// SetMuted suppresses chunk emission while keeping the device open. The
// reported level is zero while muted.
func (p *AudioPipeline) SetMuted(muted bool) {
	p.muted.Store(muted)
}

// Muted reports whether chunk emission is suppressed.
func (p *AudioPipeline) Muted() bool {
	return p.muted.Load()
}

// Level returns the current smoothed input level.
func (p *AudioPipeline) Level() float64 {
	if p.muted.Load() {
		return 0
	}
	return math.Float64frombits(p.level.Load())
}

func (p *AudioPipeline) current(stream Stream) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream == stream
}

func (p *AudioPipeline) loop(stream Stream, done chan struct{}) {
	defer close(done)
	meter := audio.NewLevelMeter()
	for {
		samples, err := stream.Read()
		if !p.current(stream) {
			return
		}
		if err != nil {
			p.mu.Lock()
			released := p.release(stream)
			p.mu.Unlock()
			if !released {
				return
			}
			p.log.Error("microphone read failed", "error", err)
			if p.cfg.OnError != nil {
				p.cfg.OnError(deviceError(err, "read"))
			}
			return
		}

		pcm := audio.Int16ToBytes(samples)
		level := meter.Update(pcm)
		p.level.Store(math.Float64bits(level))
		muted := p.muted.Load()
		if muted {
			level = 0
		}
		if p.cfg.OnLevel != nil {
			p.cfg.OnLevel(level)
		}
		if muted {
			continue
		}
		n := p.chunks.Add(1)
		p.sometimes.Do(func() {
			p.log.Debug("capturing", "chunks", n, "level", level)
		})
		if p.cfg.OnChunk != nil {
			p.cfg.OnChunk(media.NewAudioChunk(pcm))
		}
	}
}
