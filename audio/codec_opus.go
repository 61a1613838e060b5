//go:build opus

package audio

import (
	"fmt"
	"sync"

	"gopkg.in/hraban/opus.v2"
)

// opusMaxFrame is 120 ms at 48 kHz, the largest frame Opus produces.
const opusMaxFrame = 5760

type opusCodec struct {
	mu  sync.Mutex
	enc *opus.Encoder
	dec *opus.Decoder
}

func newOpusCodec() (Codec, error) {
	enc, err := opus.NewEncoder(SampleRate48kHz, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	dec, err := opus.NewDecoder(SampleRate48kHz, 1)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	return &opusCodec{enc: enc, dec: dec}, nil
}

func (c *opusCodec) Name() string   { return CodecOpus }
func (c *opusCodec) ClockRate() int { return SampleRate48kHz }

func (c *opusCodec) Encode(pcm []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, 4000)
	n, err := c.enc.Encode(BytesToInt16(pcm), buf)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	return buf[:n], nil
}

func (c *opusCodec) Decode(payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pcm := make([]int16, opusMaxFrame)
	n, err := c.dec.Decode(payload, pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	return Int16ToBytes(pcm[:n]), nil
}
