package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodec_G711(t *testing.T) {
	for _, name := range []string{CodecPCMU, CodecPCMA, "PCMU"} {
		c, err := NewCodec(name)
		require.NoError(t, err, name)
		assert.Equal(t, SampleRate8kHz, c.ClockRate())

		pcm := make([]byte, 320) // 20 ms at 8 kHz
		payload, err := c.Encode(pcm)
		require.NoError(t, err)
		assert.Len(t, payload, 160)

		decoded, err := c.Decode(payload)
		require.NoError(t, err)
		assert.Len(t, decoded, 320)
	}
}

func TestNewCodec_Unknown(t *testing.T) {
	_, err := NewCodec("speex")
	assert.Error(t, err)
	assert.False(t, ValidCodec("speex"))
	assert.True(t, ValidCodec("opus"))
}

func TestG711Codec_RejectsOddLength(t *testing.T) {
	c, err := NewCodec(CodecPCMU)
	require.NoError(t, err)
	_, err = c.Encode([]byte{1, 2, 3})
	assert.Error(t, err)
}
