package playback

import (
	"errors"
	"sync"
	"time"

	mserrors "github.com/AltairaLabs/mediasession/errors"
)

// ErrNoAudioBackend is returned by the default device when the binary was
// built without an audio backend.
var ErrNoAudioBackend = errors.New("no audio output backend: build with -tags portaudio")

// ErrStreamClosed is returned by writes to a closed output stream.
var ErrStreamClosed = errors.New("output stream closed")

// Device is a speaker.
type Device interface {
	// Open starts a mono float32 output stream.
	Open(sampleRate, framesPerBuffer int) (OutputStream, error)
}

// OutputStream is an open speaker stream.
type OutputStream interface {
	// Write blocks until the samples have been handed to the device.
	Write(samples []float32) error
	// Close releases the device. A blocked Write returns an error.
	Close() error
}

// NullDevice discards audio, pacing writes in real time. It lets a session
// run without speakers.
type NullDevice struct{}

// Open returns a paced discarding stream.
func (NullDevice) Open(sampleRate, _ int) (OutputStream, error) {
	return &nullStream{rate: sampleRate, quit: make(chan struct{})}, nil
}

type nullStream struct {
	rate int
	once sync.Once
	quit chan struct{}
}

func (s *nullStream) Write(samples []float32) error {
	d := time.Duration(len(samples)) * time.Second / time.Duration(s.rate)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.quit:
		return ErrStreamClosed
	case <-t.C:
		return nil
	}
}

func (s *nullStream) Close() error {
	s.once.Do(func() { close(s.quit) })
	return nil
}

func deviceError(err error) error {
	return mserrors.Wrap(err, mserrors.KindDeviceUnavailable, component, "start")
}
