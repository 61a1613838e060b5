package audio

import (
	"encoding/binary"
)

const wavHeaderSize = 44

// EncodeWAV wraps PCM16 LE samples in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	//nolint:gosec // header fields are bounded by realistic audio sizes
	var (
		dataSize   = uint32(len(pcm))
		blockAlign = uint16(channels * BytesPerSample)
		byteRate   = uint32(sampleRate) * uint32(blockAlign)
	)

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], 36+dataSize)
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:], uint16(channels)) //nolint:gosec // small
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate)) //nolint:gosec // positive rate
	binary.LittleEndian.PutUint32(out[28:], byteRate)
	binary.LittleEndian.PutUint16(out[32:], blockAlign)
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], dataSize)
	copy(out[wavHeaderSize:], pcm)
	return out
}
