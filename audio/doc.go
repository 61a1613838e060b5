// Package audio provides the PCM16 audio primitives used by the capture,
// transport, and playback layers.
//
// All audio crossing package boundaries is 16-bit signed little-endian mono
// PCM. The package covers:
//   - Float and int16 sample conversion with clamping
//   - Linear-interpolation resampling between device and wire rates
//   - RMS level metering with exponential smoothing
//   - G.711 (mu-law and A-law) and, with the opus build tag, Opus codecs
//   - WAV container encoding
//
// # Usage Example
//
//	meter := audio.NewLevelMeter()
//	pcm := audio.FloatToPCM16(deviceSamples)
//	level := meter.Update(pcm)
//	wire, _ := audio.ResamplePCM16(pcm, audio.SampleRate16kHz, audio.SampleRate8kHz)
package audio
