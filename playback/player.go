package playback

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/AltairaLabs/mediasession/audio"
	"github.com/AltairaLabs/mediasession/logger"
)

const component = "playback"

// DefaultBufferDuration is the size of each device write. Interrupt takes
// effect at the next buffer boundary.
const DefaultBufferDuration = 40 * time.Millisecond

// ErrNotStarted is returned by Enqueue before Start or after Stop.
var ErrNotStarted = errors.New("playback is not started")

// Config configures a Player.
type Config struct {
	// Device is the speaker. Defaults to DefaultDevice().
	Device Device

	// SampleRate is the output rate. Input at other rates is resampled.
	// Defaults to 24 kHz.
	SampleRate int

	// BufferDuration defaults to DefaultBufferDuration.
	BufferDuration time.Duration

	// Clock drives the timeline. Defaults to the wall clock.
	Clock clock.PassiveClock
}

// Player schedules inbound PCM16 audio on a Timeline and writes it to its
// own output device in delivery order.
type Player struct {
	cfg    Config
	frames int
	log    *slog.Logger

	mu       sync.Mutex
	timeline *Timeline
	stream   OutputStream
	queue    []Segment
	gen      uint64
	disabled bool
	signal   chan struct{}
	quit     chan struct{}
	done     chan struct{}
}

// NewPlayer creates a stopped player.
func NewPlayer(cfg Config) *Player {
	if cfg.Device == nil {
		cfg.Device = DefaultDevice()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.SampleRate24kHz
	}
	if cfg.BufferDuration <= 0 {
		cfg.BufferDuration = DefaultBufferDuration
	}
	return &Player{
		cfg:      cfg,
		frames:   max(sampleCount(cfg.BufferDuration, cfg.SampleRate), 1),
		log:      logger.Component(component),
		timeline: NewTimeline(cfg.SampleRate, cfg.Clock),
	}
}

// Start opens the output device. It is a no-op while running.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return nil
	}
	stream, err := p.cfg.Device.Open(p.cfg.SampleRate, p.frames)
	if err != nil {
		p.log.Error("failed to open speaker", "error", err)
		return deviceError(err)
	}
	p.stream = stream
	p.timeline.Reset()
	p.queue = nil
	p.signal = make(chan struct{}, 1)
	p.quit = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(stream, p.signal, p.quit, p.done)
	p.log.Info("speaker opened", "sample_rate", p.cfg.SampleRate, "frames_per_buffer", p.frames)
	return nil
}

// Enqueue schedules PCM16 LE audio recorded at sampleRate. Audio is dropped
// without error while playback is disabled.
func (p *Player) Enqueue(pcm []byte, sampleRate int) error {
	if len(pcm) < audio.BytesPerSample {
		return nil
	}
	if sampleRate <= 0 {
		sampleRate = p.cfg.SampleRate
	}
	if sampleRate != p.cfg.SampleRate {
		resampled, err := audio.ResamplePCM16(pcm[:len(pcm)&^1], sampleRate, p.cfg.SampleRate)
		if err != nil {
			return err
		}
		pcm = resampled
	}
	samples := audio.PCM16ToFloat(pcm)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return ErrNotStarted
	}
	if p.disabled {
		return nil
	}
	seg := p.timeline.Schedule(samples)
	p.queue = append(p.queue, seg)
	select {
	case p.signal <- struct{}{}:
	default:
	}
	return nil
}

// Interrupt drops everything not yet played and resets the timeline to now.
func (p *Player) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	dropped := len(p.queue)
	p.flushLocked()
	p.log.Debug("playback interrupted", "dropped_segments", dropped)
}

func (p *Player) flushLocked() {
	p.queue = nil
	p.gen++
	p.timeline.Reset()
}

// Stop closes the output device and drops pending audio. Safe to repeat.
// It does not wait for the writer goroutine; Done reports when it exits.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release(p.stream)
}

// release closes stream if it is still the current one. Callers hold mu.
func (p *Player) release(stream OutputStream) {
	if stream == nil || p.stream != stream {
		return
	}
	p.flushLocked()
	close(p.quit)
	if err := p.stream.Close(); err != nil {
		p.log.Warn("failed to close speaker", "error", err)
	}
	p.stream = nil
	p.log.Info("speaker closed")
}

// Done is closed when the most recent writer goroutine exits. It is nil
// before the first Start.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Running reports whether the output device is open.
func (p *Player) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}

// SetEnabled toggles playback. Disabling flushes pending audio and drops
// later Enqueue calls until re-enabled.
func (p *Player) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled = !enabled
	if !enabled {
		p.flushLocked()
	}
}

// Enabled reports whether playback is enabled.
func (p *Player) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.disabled
}

// Level returns the output level of what is currently playing.
func (p *Player) Level() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeline.Level()
}

// Pending returns how much audio is scheduled beyond now.
func (p *Player) Pending() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeline.Pending()
}

// next pops the head of the queue with the generation it belongs to.
func (p *Player) next() (Segment, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return Segment{}, 0, false
	}
	seg := p.queue[0]
	p.queue = p.queue[1:]
	return seg, p.gen, true
}

func (p *Player) generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

func (p *Player) run(stream OutputStream, signal, quit, done chan struct{}) {
	defer close(done)
	for {
		seg, gen, ok := p.next()
		if !ok {
			select {
			case <-quit:
				return
			case <-signal:
				continue
			}
		}
		if !p.write(stream, seg.Samples, gen, quit) {
			p.mu.Lock()
			p.release(stream)
			p.mu.Unlock()
			return
		}
	}
}

// write plays samples one buffer at a time. It returns false when the
// stream is gone.
func (p *Player) write(stream OutputStream, samples []float32, gen uint64, quit chan struct{}) bool {
	for len(samples) > 0 {
		select {
		case <-quit:
			return false
		default:
		}
		if p.generation() != gen {
			return true
		}
		n := min(p.frames, len(samples))
		if err := stream.Write(samples[:n]); err != nil {
			select {
			case <-quit:
			default:
				p.log.Warn("speaker write failed", "error", err)
			}
			return false
		}
		samples = samples[n:]
	}
	return true
}
