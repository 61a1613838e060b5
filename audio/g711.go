package audio

const (
	muLawBias = 0x84
	muLawClip = 32635

	aLawSegShift = 4
	aLawQuant    = 0x0F
	aLawSegMask  = 0x70
	aLawSignBit  = 0x80
)

var aLawSegEnd = [8]int{0x1F, 0x3F, 0x7F, 0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF}

// LinearToMuLaw encodes one PCM16 sample as G.711 mu-law.
func LinearToMuLaw(s int16) byte {
	sample := int(s)
	sign := 0
	if sample < 0 {
		sample = -sample
		sign = 0x80
	}
	if sample > muLawClip {
		sample = muLawClip
	}
	sample += muLawBias

	exponent := 7
	for mask := 0x4000; sample&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (sample >> (exponent + 3)) & 0x0F
	return ^byte(sign | exponent<<4 | mantissa)
}

// MuLawToLinear decodes one G.711 mu-law byte to PCM16.
func MuLawToLinear(u byte) int16 {
	u = ^u
	exponent := int(u>>4) & 0x07
	mantissa := int(u & 0x0F)
	sample := ((mantissa << 3) + muLawBias) << exponent
	sample -= muLawBias
	if u&0x80 != 0 {
		return int16(-sample)
	}
	return int16(sample)
}

// LinearToALaw encodes one PCM16 sample as G.711 A-law.
func LinearToALaw(s int16) byte {
	pcm := int(s) >> 3
	mask := 0xD5
	if pcm < 0 {
		mask = 0x55
		pcm = -pcm - 1
	}

	seg := 0
	for seg < len(aLawSegEnd) && pcm > aLawSegEnd[seg] {
		seg++
	}
	if seg >= len(aLawSegEnd) {
		return byte(0x7F ^ mask)
	}

	aval := seg << aLawSegShift
	if seg < 2 {
		aval |= (pcm >> 1) & aLawQuant
	} else {
		aval |= (pcm >> seg) & aLawQuant
	}
	return byte(aval ^ mask)
}

// ALawToLinear decodes one G.711 A-law byte to PCM16.
func ALawToLinear(a byte) int16 {
	a ^= 0x55
	t := int(a&aLawQuant) << 4
	seg := int(a&aLawSegMask) >> aLawSegShift
	switch seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if a&aLawSignBit != 0 {
		return int16(t)
	}
	return int16(-t)
}

// EncodeMuLaw converts PCM16 LE to mu-law, one byte per sample.
func EncodeMuLaw(pcm []byte) []byte {
	samples := BytesToInt16(pcm)
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = LinearToMuLaw(s)
	}
	return out
}

// DecodeMuLaw converts mu-law bytes to PCM16 LE.
func DecodeMuLaw(data []byte) []byte {
	samples := make([]int16, len(data))
	for i, b := range data {
		samples[i] = MuLawToLinear(b)
	}
	return Int16ToBytes(samples)
}

// EncodeALaw converts PCM16 LE to A-law, one byte per sample.
func EncodeALaw(pcm []byte) []byte {
	samples := BytesToInt16(pcm)
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = LinearToALaw(s)
	}
	return out
}

// DecodeALaw converts A-law bytes to PCM16 LE.
func DecodeALaw(data []byte) []byte {
	samples := make([]int16, len(data))
	for i, b := range data {
		samples[i] = ALawToLinear(b)
	}
	return Int16ToBytes(samples)
}
