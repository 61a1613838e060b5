//go:build portaudio

package playback

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	mserrors "github.com/AltairaLabs/mediasession/errors"
)

// Speaker plays through the default PortAudio output device.
type Speaker struct{}

// DefaultDevice returns the default PortAudio speaker.
func DefaultDevice() Device {
	return Speaker{}
}

// Open initializes PortAudio and starts a mono float32 output stream.
func (Speaker) Open(sampleRate, framesPerBuffer int) (OutputStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, mserrors.New(mserrors.KindDeviceUnavailable, component, "open",
			fmt.Errorf("failed to initialize PortAudio: %w", err))
	}

	buf := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, mserrors.New(mserrors.KindDeviceUnavailable, component, "open",
			fmt.Errorf("failed to open output stream: %w", err))
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, mserrors.New(mserrors.KindDeviceUnavailable, component, "open",
			fmt.Errorf("failed to start output stream: %w", err))
	}
	return &paStream{stream: stream, buf: buf}, nil
}

type paStream struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []float32
	closed bool
}

// Write copies samples through the stream buffer one buffer at a time,
// padding the final buffer with silence.
func (s *paStream) Write(samples []float32) error {
	for len(samples) > 0 {
		n := copy(s.buf, samples)
		clear(s.buf[n:])
		samples = samples[n:]

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return ErrStreamClosed
		}
		if err := s.stream.Write(); err != nil {
			return err
		}
	}
	return nil
}

func (s *paStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stream.Stop()
	err := s.stream.Close()
	_ = portaudio.Terminate()
	return err
}
