package audio

import "fmt"

// Standard audio sample rates.
const (
	SampleRate48kHz = 48000 // Opus RTP clock
	SampleRate24kHz = 24000 // Provider audio output
	SampleRate16kHz = 16000 // Capture and Gemini input
	SampleRate8kHz  = 8000  // G.711 RTP clock
)

// ResamplePCM16 resamples PCM16 LE audio from one sample rate to another
// using linear interpolation.
func ResamplePCM16(input []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: from=%d, to=%d", fromRate, toRate)
	}

	if fromRate == toRate {
		result := make([]byte, len(input))
		copy(result, input)
		return result, nil
	}

	if len(input)%BytesPerSample != 0 {
		return nil, fmt.Errorf("input length %d is not a multiple of %d bytes per sample", len(input), BytesPerSample)
	}

	out := ResampleInt16(BytesToInt16(input), fromRate, toRate)
	return Int16ToBytes(out), nil
}

// ResampleInt16 resamples int16 samples using linear interpolation.
// Rates must be positive.
func ResampleInt16(in []int16, fromRate, toRate int) []int16 {
	n := len(in)
	if n == 0 || fromRate == toRate {
		return append([]int16(nil), in...)
	}

	numOut := int(float64(n) * float64(toRate) / float64(fromRate))
	out := make([]int16, numOut)
	ratio := float64(fromRate) / float64(toRate)

	for i := range numOut {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= n-1 {
			out[i] = in[n-1]
			continue
		}
		s0 := float64(in[srcIdx])
		s1 := float64(in[srcIdx+1])
		out[i] = int16(s0 + frac*(s1-s0))
	}
	return out
}

// Resample16kTo8k converts capture-rate audio to the G.711 clock rate.
func Resample16kTo8k(input []byte) ([]byte, error) {
	return ResamplePCM16(input, SampleRate16kHz, SampleRate8kHz)
}
