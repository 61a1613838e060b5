// Package media provides the outbound chunk envelope and video frame
// processing (downscaling and JPEG encoding).
package media

import (
	"encoding/base64"
	"strings"

	"github.com/AltairaLabs/mediasession/audio"
)

// MIME type constants.
const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeGIF  = "image/gif"
	MIMETypeWebP = "image/webp"
)

// CaptureAudioMIMEType is the MIME type of every captured audio chunk.
var CaptureAudioMIMEType = audio.PCMMIMEType(audio.SampleRate16kHz)

// Stream identifies which outbound stream a chunk belongs to. Order is
// preserved within a stream.
type Stream int

// Streams.
const (
	StreamAudio Stream = iota
	StreamVideo
)

func (s Stream) String() string {
	if s == StreamVideo {
		return "video"
	}
	return "audio"
}

// Chunk is one outbound media payload ready for a transport.
type Chunk struct {
	MIMEType string
	Data     []byte
}

// NewAudioChunk wraps 16 kHz PCM16 LE capture audio.
func NewAudioChunk(pcm []byte) Chunk {
	return Chunk{MIMEType: CaptureAudioMIMEType, Data: pcm}
}

// NewImageChunk wraps a JPEG-encoded video frame.
func NewImageChunk(jpeg []byte) Chunk {
	return Chunk{MIMEType: MIMETypeJPEG, Data: jpeg}
}

// Stream returns the stream the chunk belongs to.
func (c Chunk) Stream() Stream {
	if strings.HasPrefix(c.MIMEType, "image/") || strings.HasPrefix(c.MIMEType, "video/") {
		return StreamVideo
	}
	return StreamAudio
}

// IsAudio reports whether the chunk carries PCM audio.
func (c Chunk) IsAudio() bool {
	return audio.IsPCMMIMEType(c.MIMEType)
}

// Base64 returns the standard base64 encoding of the payload.
func (c Chunk) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Data)
}
