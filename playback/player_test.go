package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/AltairaLabs/mediasession/audio"
	mserrors "github.com/AltairaLabs/mediasession/errors"
)

// gatedDevice records writes. Each write blocks until release is signalled,
// unless the device is ungated.
type gatedDevice struct {
	gated   bool
	openErr error

	mu      sync.Mutex
	opened  int
	open    int
	streams []*gatedStream
}

func (d *gatedDevice) Open(sampleRate, framesPerBuffer int) (OutputStream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened++
	d.open++
	s := &gatedStream{device: d, frames: framesPerBuffer, release: make(chan struct{}), quit: make(chan struct{})}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *gatedDevice) last() *gatedStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[len(d.streams)-1]
}

func (d *gatedDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

type gatedStream struct {
	device  *gatedDevice
	frames  int
	release chan struct{}
	quit    chan struct{}
	once    sync.Once
	failNow bool

	mu      sync.Mutex
	written []float32
	writes  int
}

func (s *gatedStream) Write(samples []float32) error {
	if s.device.gated {
		select {
		case <-s.quit:
			return ErrStreamClosed
		case <-s.release:
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNow {
		return errors.New("device unplugged")
	}
	s.written = append(s.written, samples...)
	s.writes++
	return nil
}

func (s *gatedStream) Close() error {
	s.once.Do(func() {
		s.device.mu.Lock()
		s.device.open--
		s.device.mu.Unlock()
		close(s.quit)
	})
	return nil
}

func (s *gatedStream) samples() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float32(nil), s.written...)
}

func pcmOf(n int, v int16) []byte {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = v
	}
	return audio.Int16ToBytes(samples)
}

func TestPlayer_PlaysInOrder(t *testing.T) {
	dev := &gatedDevice{}
	p := NewPlayer(Config{Device: dev})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.Enqueue(pcmOf(2400, 1000), audio.SampleRate24kHz))
	require.NoError(t, p.Enqueue(pcmOf(2400, 2000), audio.SampleRate24kHz))
	require.NoError(t, p.Enqueue(pcmOf(2400, 3000), audio.SampleRate24kHz))

	s := dev.last()
	assert.Equal(t, 960, s.frames)
	require.Eventually(t, func() bool { return len(s.samples()) == 7200 }, time.Second, 5*time.Millisecond)

	got := s.samples()
	assert.InDelta(t, 1000.0/32768, got[0], 1e-6)
	assert.InDelta(t, 2000.0/32768, got[2400], 1e-6)
	assert.InDelta(t, 3000.0/32768, got[7199], 1e-6)
}

func TestPlayer_ResamplesToOutputRate(t *testing.T) {
	dev := &gatedDevice{}
	p := NewPlayer(Config{Device: dev})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.Enqueue(pcmOf(800, 1000), audio.SampleRate8kHz))
	s := dev.last()
	require.Eventually(t, func() bool { return len(s.samples()) == 2400 }, time.Second, 5*time.Millisecond)
}

func TestPlayer_EnqueueBeforeStart(t *testing.T) {
	p := NewPlayer(Config{Device: &gatedDevice{}})
	assert.ErrorIs(t, p.Enqueue(pcmOf(10, 1), 0), ErrNotStarted)
}

func TestPlayer_InterruptResetsTimeline(t *testing.T) {
	clk := testingclock.NewFakePassiveClock(epoch)
	dev := &gatedDevice{gated: true}
	p := NewPlayer(Config{Device: dev, Clock: clk})
	require.NoError(t, p.Start())
	defer p.Stop()

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Enqueue(pcmOf(2400, 1000), audio.SampleRate24kHz))
	}
	assert.Equal(t, time.Second, p.Pending())
	assert.Greater(t, p.Level(), 0.0)

	s := dev.last()
	s.release <- struct{}{}
	require.Eventually(t, func() bool { return len(s.samples()) == 960 }, time.Second, 5*time.Millisecond)

	clk.SetTime(epoch.Add(40 * time.Millisecond))
	p.Interrupt()
	assert.Zero(t, p.Pending())
	assert.Zero(t, p.Level())

	// The writer finishes its in-flight buffer and then sees the new generation.
	s.release <- struct{}{}
	require.NoError(t, p.Enqueue(pcmOf(240, 3000), audio.SampleRate24kHz))
	assert.Equal(t, 10*time.Millisecond, p.Pending())

	go func() {
		for {
			select {
			case s.release <- struct{}{}:
			case <-s.quit:
				return
			}
		}
	}()
	require.Eventually(t, func() bool {
		got := s.samples()
		return len(got) > 0 && got[len(got)-1] > 2000.0/32768
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 960*2+240, len(s.samples()), "interrupted audio is not played")
}

func TestPlayer_StopIsRepeatable(t *testing.T) {
	dev := &gatedDevice{gated: true}
	p := NewPlayer(Config{Device: dev})
	assert.NotPanics(t, p.Stop)

	require.NoError(t, p.Start())
	require.NoError(t, p.Enqueue(pcmOf(2400, 1000), 0))
	p.Stop()
	p.Stop()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("writer did not exit")
	}
	assert.Equal(t, 0, dev.openCount())
	assert.False(t, p.Running())
	assert.ErrorIs(t, p.Enqueue(pcmOf(10, 1), 0), ErrNotStarted)

	require.NoError(t, p.Start())
	assert.True(t, p.Running())
	p.Stop()
	assert.Equal(t, 0, dev.openCount())
}

func TestPlayer_Disabled(t *testing.T) {
	dev := &gatedDevice{}
	p := NewPlayer(Config{Device: dev})
	require.NoError(t, p.Start())
	defer p.Stop()

	p.SetEnabled(false)
	assert.False(t, p.Enabled())
	require.NoError(t, p.Enqueue(pcmOf(2400, 1000), 0))
	assert.Zero(t, p.Pending())

	p.SetEnabled(true)
	require.NoError(t, p.Enqueue(pcmOf(2400, 1000), 0))
	s := dev.last()
	require.Eventually(t, func() bool { return len(s.samples()) == 2400 }, time.Second, 5*time.Millisecond)
}

func TestPlayer_OpenFailure(t *testing.T) {
	p := NewPlayer(Config{Device: &gatedDevice{openErr: errors.New("no output device")}})
	err := p.Start()
	require.Error(t, err)
	assert.True(t, mserrors.IsKind(err, mserrors.KindDeviceUnavailable))
	assert.False(t, p.Running())
}

func TestPlayer_WriteFailureReleasesDevice(t *testing.T) {
	dev := &gatedDevice{}
	p := NewPlayer(Config{Device: dev})
	require.NoError(t, p.Start())
	s := dev.last()
	s.mu.Lock()
	s.failNow = true
	s.mu.Unlock()

	require.NoError(t, p.Enqueue(pcmOf(240, 1), 0))
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("writer did not exit")
	}
	assert.False(t, p.Running())
	assert.Equal(t, 0, dev.openCount())
}

func TestNullDevice_PacesAndCloses(t *testing.T) {
	stream, err := NullDevice{}.Open(audio.SampleRate24kHz, 960)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, stream.Write(make([]float32, 480)))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
	assert.ErrorIs(t, stream.Write(make([]float32, 480)), ErrStreamClosed)
}
