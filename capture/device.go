package capture

import (
	"errors"
	"sync"

	mserrors "github.com/AltairaLabs/mediasession/errors"
)

// ErrNoAudioBackend is returned by the default device when the binary was
// built without an audio backend.
var ErrNoAudioBackend = errors.New("no audio input backend: build with -tags portaudio")

// Device is a microphone.
type Device interface {
	// Open acquires the device and starts a mono PCM16 stream delivering
	// framesPerBuffer samples per Read. Errors should carry
	// KindPermissionDenied or KindDeviceUnavailable where known.
	Open(sampleRate, framesPerBuffer int) (Stream, error)
}

// Stream is an open device stream.
type Stream interface {
	// Read blocks until one buffer of samples is available.
	Read() ([]int16, error)
	// Close releases the device. A blocked Read returns an error.
	Close() error
}

// ErrStreamClosed is returned by Read on a closed NullDevice stream.
var ErrStreamClosed = errors.New("input stream closed")

// NullDevice is a microphone that never delivers audio. It lets a session
// run text-only.
type NullDevice struct{}

// Open returns a stream whose Read blocks until Close.
func (NullDevice) Open(int, int) (Stream, error) {
	return &nullStream{quit: make(chan struct{})}, nil
}

type nullStream struct {
	once sync.Once
	quit chan struct{}
}

func (s *nullStream) Read() ([]int16, error) {
	<-s.quit
	return nil, ErrStreamClosed
}

func (s *nullStream) Close() error {
	s.once.Do(func() { close(s.quit) })
	return nil
}

// deviceError classifies err, defaulting to KindDeviceUnavailable.
func deviceError(err error, op string) error {
	return mserrors.Wrap(err, mserrors.KindDeviceUnavailable, component, op)
}
