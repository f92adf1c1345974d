package eval

import (
	"math"
)

// Values are little-endian byte strings as long as their type's storage.

// Bytes encodes the low n bytes of x.
func Bytes(x uint64, n int) []byte {
	b := make([]byte, n)
	putUint(b, x)
	return b
}

// Uint decodes an unsigned integer of up to eight bytes.
func Uint(b []byte) uint64 {
	var x uint64
	for i := 0; i < len(b) && i < 8; i++ {
		x |= uint64(b[i]) << (8 * i)
	}
	return x
}

// Int decodes a signed integer, sign-extending from len(b) bytes.
func Int(b []byte) int64 {
	n := min(len(b), 8)
	if n == 0 {
		return 0
	}
	return signExtend(Uint(b), uint64(n)*8) //nolint:gosec // n <= 8
}

// Bool decodes an i1.
func Bool(b []byte) bool {
	return len(b) > 0 && b[0]&1 == 1
}

func Float32(b []byte) float32 { return math.Float32frombits(uint32(Uint(b))) } //nolint:gosec // 4-byte value

func Float64(b []byte) float64 { return math.Float64frombits(Uint(b)) }

func putUint(b []byte, x uint64) {
	for i := range b {
		if i < 8 {
			b[i] = byte(x >> (8 * i))
		} else {
			b[i] = 0
		}
	}
}

func mask(x, bits uint64) uint64 {
	if bits >= 64 {
		return x
	}
	return x & (1<<bits - 1)
}

func signExtend(x, bits uint64) int64 {
	if bits >= 64 {
		return int64(x) //nolint:gosec // reinterpretation
	}
	shift := 64 - bits
	return int64(x<<shift) >> shift //nolint:gosec // reinterpretation
}

// half <-> float32, round to nearest even on the way down.

func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h & 0x3ff)
	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		for frac&0x400 == 0 {
			frac <<= 1
			exp--
		}
		exp++
		frac &= 0x3ff
	case exp == 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | frac<<13)
	}
	return math.Float32frombits(sign | (exp+112)<<23 | frac<<13)
}

func float32ToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xff) - 127 + 15 //nolint:gosec // 8-bit field
	frac := bits & 0x7fffff
	switch {
	case bits&0x7fffffff >= 0x7f800000:
		if frac != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp >= 0x1f:
		return sign | 0x7c00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		frac |= 0x800000
		shift := uint32(14 - exp)     //nolint:gosec // exp in [-10, 0]
		half := uint16(frac >> shift) //nolint:gosec // fits 10 bits
		if frac>>(shift-1)&1 == 1 && (frac&(1<<(shift-1)-1) != 0 || half&1 == 1) {
			half++
		}
		return sign | half
	}
	h := sign | uint16(exp)<<10 | uint16(frac>>13) //nolint:gosec // exp in (0, 31)
	if frac&0x1000 != 0 && (frac&0xfff != 0 || h&1 == 1) {
		h++
	}
	return h
}
