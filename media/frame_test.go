package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func TestScaledSize(t *testing.T) {
	w, h := ScaledSize(640, 480, FrameScale)
	assert.Equal(t, 160, w)
	assert.Equal(t, 120, h)

	w, h = ScaledSize(2, 2, FrameScale)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
}

func TestFrameEncoder_RecomputesSizePerFrame(t *testing.T) {
	enc := NewFrameEncoder()

	for _, size := range [][2]int{{640, 480}, {320, 240}, {1280, 720}} {
		chunk, err := enc.Encode(solidImage(size[0], size[1]))
		require.NoError(t, err)
		assert.Equal(t, MIMETypeJPEG, chunk.MIMEType)
		assert.Equal(t, StreamVideo, chunk.Stream())

		img, err := DecodeFrame(chunk.Data)
		require.NoError(t, err)
		assert.Equal(t, size[0]/4, img.Bounds().Dx())
		assert.Equal(t, size[1]/4, img.Bounds().Dy())
	}
}

func TestScaleFrame_Empty(t *testing.T) {
	_, err := ScaleFrame(image.NewRGBA(image.Rect(0, 0, 0, 0)), FrameScale)
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestDecodeFrame(t *testing.T) {
	_, err := DecodeFrame(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	_, err = DecodeFrame([]byte("not an image"))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(8, 4)))
	img, err := DecodeFrame(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestEncodeJPEG_DefaultQuality(t *testing.T) {
	data, err := EncodeJPEG(solidImage(16, 16), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])
}
