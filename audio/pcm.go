package audio

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// BytesPerSample is the size of one PCM16 mono frame.
	BytesPerSample = 2

	// ChunkFrames is the number of frames in one 100 ms capture chunk at 16 kHz.
	ChunkFrames = 1600
	// ChunkBytes is the size of one capture chunk.
	ChunkBytes = ChunkFrames * BytesPerSample
	// ChunkDuration is the duration of one capture chunk.
	ChunkDuration = 100 * time.Millisecond

	pcmMaxAmplitude = 32768.0

	// MIMETypePCM is the bare PCM MIME prefix; a rate parameter is appended.
	MIMETypePCM = "audio/pcm"
)

// FloatToPCM16 converts float samples in [-1, 1] to PCM16 LE. Samples scale
// by 32768 and round to the nearest step, so PCM16ToFloat recovers them within
// 1/32768. Values outside the range are clamped.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(floatToInt16(s))) //nolint:gosec // PCM16 bit pattern
	}
	return out
}

func floatToInt16(s float32) int16 {
	switch {
	case math.IsNaN(float64(s)):
		return 0
	case s <= -1:
		return math.MinInt16
	case s >= 1:
		return math.MaxInt16
	}
	v := math.Round(float64(s) * pcmMaxAmplitude)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(v)
}

// PCM16ToFloat decodes PCM16 LE into float samples by dividing by 32768.
// A trailing odd byte is ignored.
func PCM16ToFloat(data []byte) []float32 {
	n := len(data) / BytesPerSample
	out := make([]float32, n)
	for i := range n {
		// #nosec G115 -- overflow is intentional for signed PCM conversion
		s := int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
		out[i] = float32(float64(s) / pcmMaxAmplitude)
	}
	return out
}

// Int16ToBytes encodes int16 samples as PCM16 LE.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(s)) //nolint:gosec // PCM16 bit pattern
	}
	return out
}

// BytesToInt16 decodes PCM16 LE into int16 samples.
func BytesToInt16(data []byte) []int16 {
	n := len(data) / BytesPerSample
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:])) //nolint:gosec // PCM16 bit pattern
	}
	return out
}

// Duration returns the playback duration of n bytes of PCM16 mono at rate.
func Duration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	frames := n / BytesPerSample
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

// PCMMIMEType returns the MIME type for PCM16 at the given rate,
// e.g. "audio/pcm;rate=16000".
func PCMMIMEType(rate int) string {
	return MIMETypePCM + ";rate=" + strconv.Itoa(rate)
}

// IsPCMMIMEType reports whether mime names raw PCM audio.
func IsPCMMIMEType(mime string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mime)), MIMETypePCM)
}

// ParseRate extracts the rate parameter from a PCM MIME type. It returns
// fallback when the parameter is missing or malformed.
func ParseRate(mime string, fallback int) int {
	for _, param := range strings.Split(mime, ";")[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
			return rate
		}
	}
	return fallback
}
