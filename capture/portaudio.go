//go:build portaudio

package capture

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	mserrors "github.com/AltairaLabs/mediasession/errors"
)

// Microphone captures from the default PortAudio input device.
type Microphone struct{}

// DefaultDevice returns the default PortAudio microphone.
func DefaultDevice() Device {
	return Microphone{}
}

// Open initializes PortAudio and starts a mono input stream.
func (Microphone) Open(sampleRate, framesPerBuffer int) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, mserrors.New(mserrors.KindDeviceUnavailable, component, "open",
			fmt.Errorf("failed to initialize PortAudio: %w", err))
	}

	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, classifyOpenError(fmt.Errorf("failed to open input stream: %w", err))
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, classifyOpenError(fmt.Errorf("failed to start input stream: %w", err))
	}
	return &paStream{stream: stream, buf: buf}, nil
}

func classifyOpenError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "not authorized") {
		return mserrors.New(mserrors.KindPermissionDenied, component, "open", err)
	}
	return mserrors.New(mserrors.KindDeviceUnavailable, component, "open", err)
}

type paStream struct {
	stream *portaudio.Stream
	buf    []int16

	closeOnce sync.Once
	closeErr  error
}

func (s *paStream) Read() ([]int16, error) {
	if err := s.stream.Read(); err != nil {
		return nil, err
	}
	out := make([]int16, len(s.buf))
	copy(out, s.buf)
	return out, nil
}

func (s *paStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stream.Stop()
		s.closeErr = s.stream.Close()
		_ = portaudio.Terminate()
	})
	return s.closeErr
}
