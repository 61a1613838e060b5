package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAudioChunk(t *testing.T) {
	c := NewAudioChunk([]byte{1, 2, 3, 4})

	assert.Equal(t, "audio/pcm;rate=16000", c.MIMEType)
	assert.True(t, c.IsAudio())
	assert.Equal(t, StreamAudio, c.Stream())
	assert.Equal(t, "AQIDBA==", c.Base64())
}

func TestNewImageChunk(t *testing.T) {
	c := NewImageChunk([]byte{0xFF, 0xD8})

	assert.False(t, c.IsAudio())
	assert.Equal(t, StreamVideo, c.Stream())
	assert.Equal(t, "video", c.Stream().String())
}
