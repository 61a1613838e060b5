//go:build !opus

package audio

func newOpusCodec() (Codec, error) {
	return nil, ErrOpusUnavailable
}
