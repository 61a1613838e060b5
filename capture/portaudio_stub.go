//go:build !portaudio

package capture

import mserrors "github.com/AltairaLabs/mediasession/errors"

// DefaultDevice returns a device whose Open always fails with
// KindDeviceUnavailable. Build with -tags portaudio for a real microphone.
func DefaultDevice() Device {
	return unavailableDevice{}
}

type unavailableDevice struct{}

func (unavailableDevice) Open(int, int) (Stream, error) {
	return nil, mserrors.New(mserrors.KindDeviceUnavailable, component, "open", ErrNoAudioBackend)
}
