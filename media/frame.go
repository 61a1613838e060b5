package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Video frame defaults.
const (
	// FrameScale is the factor applied to the source size of every frame.
	FrameScale = 0.25
	// DefaultJPEGQuality is the encoding quality for outbound frames.
	DefaultJPEGQuality = 80
)

// ErrEmptyFrame is returned for a frame with no pixels or no data.
var ErrEmptyFrame = errors.New("empty frame")

// ScaledSize returns the target dimensions for a source of w x h at scale.
// Both dimensions are at least 1.
func ScaledSize(w, h int, scale float64) (int, int) {
	tw := int(float64(w) * scale)
	th := int(float64(h) * scale)
	return max(tw, 1), max(th, 1)
}

// ScaleFrame resizes src by scale using CatmullRom interpolation.
func ScaleFrame(src image.Image, scale float64) (image.Image, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyFrame
	}
	w, h := ScaledSize(b.Dx(), b.Dy(), scale)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst, nil
}

// EncodeJPEG encodes img as JPEG. Non-positive quality uses the default.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeFrame decodes an encoded image (JPEG, PNG, GIF or WebP).
func DecodeFrame(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// FrameEncoder turns source frames into outbound image chunks. The target
// size is recomputed from each frame, so source resolution may change.
type FrameEncoder struct {
	Scale   float64
	Quality int
}

// NewFrameEncoder returns an encoder with FrameScale and DefaultJPEGQuality.
func NewFrameEncoder() *FrameEncoder {
	return &FrameEncoder{Scale: FrameScale, Quality: DefaultJPEGQuality}
}

// Encode scales img and encodes it as a JPEG chunk.
func (e *FrameEncoder) Encode(img image.Image) (Chunk, error) {
	scale := e.Scale
	if scale <= 0 {
		scale = FrameScale
	}
	scaled, err := ScaleFrame(img, scale)
	if err != nil {
		return Chunk{}, err
	}
	data, err := EncodeJPEG(scaled, e.Quality)
	if err != nil {
		return Chunk{}, err
	}
	return NewImageChunk(data), nil
}
