//go:build !portaudio

package playback

import mserrors "github.com/AltairaLabs/mediasession/errors"

// DefaultDevice returns a device whose Open fails with
// KindDeviceUnavailable. Build with -tags portaudio for a real speaker.
func DefaultDevice() Device {
	return unavailableDevice{}
}

type unavailableDevice struct{}

func (unavailableDevice) Open(int, int) (OutputStream, error) {
	return nil, mserrors.New(mserrors.KindDeviceUnavailable, component, "open", ErrNoAudioBackend)
}
