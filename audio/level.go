package audio

import (
	"encoding/binary"
	"math"
)

const defaultSmoothingAlpha = 0.3

// LevelMeter tracks a smoothed RMS level of a PCM16 stream.
// It is not safe for concurrent use.
type LevelMeter struct {
	alpha float64
	level float64
}

// NewLevelMeter creates a meter with the default smoothing factor.
func NewLevelMeter() *LevelMeter {
	return &LevelMeter{alpha: defaultSmoothingAlpha}
}

// NewLevelMeterWithAlpha creates a meter with a custom smoothing factor in (0, 1].
// Out-of-range values fall back to the default.
func NewLevelMeterWithAlpha(alpha float64) *LevelMeter {
	if alpha <= 0 || alpha > 1 {
		alpha = defaultSmoothingAlpha
	}
	return &LevelMeter{alpha: alpha}
}

// Update folds the RMS of pcm into the smoothed level and returns it.
func (m *LevelMeter) Update(pcm []byte) float64 {
	m.level = m.alpha*RMS(pcm) + (1-m.alpha)*m.level
	return m.level
}

// Level returns the current smoothed level in [0, 1].
func (m *LevelMeter) Level() float64 {
	return m.level
}

// Reset returns the level to zero.
func (m *LevelMeter) Reset() {
	m.level = 0
}

// RMS computes the root mean square of PCM16 LE samples, normalized to [0, 1].
func RMS(pcm []byte) float64 {
	numSamples := len(pcm) / BytesPerSample
	if numSamples == 0 {
		return 0
	}

	var sumSquares float64
	for i := range numSamples {
		// #nosec G115 -- overflow is intentional for signed PCM conversion
		sample := int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))
		normalized := float64(sample) / pcmMaxAmplitude
		sumSquares += normalized * normalized
	}

	return math.Min(1, math.Sqrt(sumSquares/float64(numSamples)))
}

// RMSFloat computes the root mean square of float samples, clamped to [0, 1].
func RMSFloat(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
	}
	return math.Min(1, math.Sqrt(sumSquares/float64(len(samples))))
}
