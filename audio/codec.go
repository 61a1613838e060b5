package audio

import (
	"errors"
	"fmt"
	"strings"
)

// Codec names accepted by NewCodec.
const (
	CodecOpus = "opus"
	CodecPCMU = "pcmu"
	CodecPCMA = "pcma"
)

// ErrOpusUnavailable is returned by NewCodec for opus when the binary was
// built without the opus tag.
var ErrOpusUnavailable = errors.New("opus codec requires building with -tags opus")

// Codec converts between PCM16 LE at ClockRate and an RTP payload.
type Codec interface {
	// Name returns the lower-case codec name.
	Name() string
	// ClockRate returns the RTP clock rate in Hz.
	ClockRate() int
	// Encode converts PCM16 LE at ClockRate to one RTP payload.
	Encode(pcm []byte) ([]byte, error)
	// Decode converts one RTP payload to PCM16 LE at ClockRate.
	Decode(payload []byte) ([]byte, error)
}

// ValidCodec reports whether name is a supported codec name.
func ValidCodec(name string) bool {
	switch strings.ToLower(name) {
	case CodecOpus, CodecPCMU, CodecPCMA:
		return true
	}
	return false
}

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case CodecPCMU:
		return &g711Codec{name: CodecPCMU, encode: EncodeMuLaw, decode: DecodeMuLaw}, nil
	case CodecPCMA:
		return &g711Codec{name: CodecPCMA, encode: EncodeALaw, decode: DecodeALaw}, nil
	case CodecOpus:
		return newOpusCodec()
	default:
		return nil, fmt.Errorf("unsupported codec %q", name)
	}
}

type g711Codec struct {
	name   string
	encode func([]byte) []byte
	decode func([]byte) []byte
}

func (c *g711Codec) Name() string   { return c.name }
func (c *g711Codec) ClockRate() int { return SampleRate8kHz }

func (c *g711Codec) Encode(pcm []byte) ([]byte, error) {
	if len(pcm)%BytesPerSample != 0 {
		return nil, fmt.Errorf("%s: pcm length %d not aligned to sample size", c.name, len(pcm))
	}
	return c.encode(pcm), nil
}

func (c *g711Codec) Decode(payload []byte) ([]byte, error) {
	return c.decode(payload), nil
}
