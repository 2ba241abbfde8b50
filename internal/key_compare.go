package internal

import (
	"bytes"
	"cmp"
	"math"
)

func compareSegment(t DataType, a, b []byte) int {
	switch t {
	case Integer, AutoInc:
		if len(a) <= 8 {
			return cmp.Compare(DecodeSigned(a), DecodeSigned(b))
		}
		return compareUnsigned(a, b)
	case UnsignedBinary:
		return compareUnsigned(a, b)
	case Float:
		switch len(a) {
		case 4:
			return cmp.Compare(math.Float32frombits(le.Uint32(a)), math.Float32frombits(le.Uint32(b)))
		case 8:
			return cmp.Compare(math.Float64frombits(le.Uint64(a)), math.Float64frombits(le.Uint64(b)))
		}
	}
	return compareBytes(a, b)
}

func compareBytes(a, b []byte) int { return bytes.Compare(a, b) }

// compareUnsigned compares two little-endian unsigned integers of the same
// width.
func compareUnsigned(a, b []byte) int {
	for i := len(a) - 1; i >= 0; i-- {
		if c := cmp.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// DecodeSigned reads a little-endian two's complement integer of up to eight
// bytes.
func DecodeSigned(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	shift := uint(64 - 8*len(b))
	return int64(v<<shift) >> shift
}

// EncodeSigned writes v as a little-endian two's complement integer filling
// the whole of b.
func EncodeSigned(b []byte, v int64) {
	u := uint64(v)
	for i := range b {
		b[i] = byte(u)
		u >>= 8
	}
}
