package protocol

// Fixed-point float encoding: a non-negative float is multiplied by
// FloatPrecision, truncated, and stored little-end-first in two bytes,
// so decode(lo, hi) = (lo + 256*hi) / FloatPrecision. The representable
// range is 0 .. 6553.5 with a resolution of 0.1.

const (
	// FloatPrecision is the multiplier applied before truncating to 16 bits.
	FloatPrecision = 10.0

	// FloatEpsilon is how close two decoded floats must be to be considered
	// identical.
	FloatEpsilon = 0.1

	oneByte = 256

	// topBit marks inverted level parity in an encoded level byte.
	topBit = 1 << 7
)

// AppendFloat encodes f into two fixed-point bytes appended to out.
// f must be non-negative; negative values are clamped to zero.
func AppendFloat(out []byte, f float32) []byte {
	if f < 0 {
		f = 0
	}
	v := uint16(f * FloatPrecision)
	return append(out, byte(v%oneByte), byte(v/oneByte))
}

// DecodeFloat reverses AppendFloat given the two stored bytes.
func DecodeFloat(lo, hi byte) float32 {
	return float32(uint16(lo)+oneByte*uint16(hi)) / FloatPrecision
}

// EncodeLevel packs a level number and its parity into one byte. The level
// occupies the low seven bits; the top bit is set when parity is false.
func EncodeLevel(level uint8, parity bool) byte {
	if parity {
		return level
	}
	return level | topBit
}

// DecodeLevel reverses EncodeLevel.
func DecodeLevel(b byte) (level uint8, parity bool) {
	if b&topBit != 0 {
		return b ^ topBit, false
	}
	return b, true
}
