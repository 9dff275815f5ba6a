// Package fixmath provides the deterministic fixed-point arithmetic used on
// every authoritative decision path. Values are signed Q47.16; all operations
// are exact integer arithmetic so results are identical on every replica
// regardless of platform or compiler. No float64 is permitted anywhere the
// simulation can observe.
package fixmath

import "math/bits"

// Scalar is a signed fixed-point number with 16 fractional bits.
type Scalar int64

const (
	// FracBits is the number of fractional bits in a Scalar.
	FracBits = 16

	// One is the Scalar representation of 1.
	One Scalar = 1 << FracBits

	// Zero is the Scalar representation of 0.
	Zero Scalar = 0

	// Half is the Scalar representation of 0.5.
	Half Scalar = One / 2
)

// FromInt converts an integer to a Scalar.
func FromInt(v int64) Scalar {
	return Scalar(v << FracBits)
}

// FromRatio builds the Scalar closest to num/den. A zero denominator yields
// zero; decision code treats that as a degraded input, not an error.
func FromRatio(num, den int64) Scalar {
	if den == 0 {
		return 0
	}
	return Div(FromInt(num), FromInt(den))
}

// FromMilli converts thousandths to a Scalar. Asset files author scalar
// values as integer milli units (1500 = 1.5) so no decimal parsing and no
// floats appear anywhere in the pipeline.
func FromMilli(v int64) Scalar {
	return FromRatio(v, 1000)
}

// Milli converts a Scalar to thousandths, truncating toward zero.
func (s Scalar) Milli() int64 {
	return Mul(s, FromInt(1000)).Int()
}

// Int truncates toward zero and returns the integer part.
func (s Scalar) Int() int64 {
	if s < 0 {
		return -int64(-s >> FracBits)
	}
	return int64(s >> FracBits)
}

// Mul multiplies two Scalars using a 128-bit intermediate; the result is the
// exact product truncated toward zero.
func Mul(a, b Scalar) Scalar {
	neg := false
	ua, ub := uint64(a), uint64(b)
	if a < 0 {
		ua = uint64(-a)
		neg = !neg
	}
	if b < 0 {
		ub = uint64(-b)
		neg = !neg
	}
	hi, lo := bits.Mul64(ua, ub)
	v := hi<<(64-FracBits) | lo>>FracBits
	if neg {
		return Scalar(-int64(v))
	}
	return Scalar(int64(v))
}

// Div divides a by b, truncating toward zero. Division by zero returns zero:
// decisions degrade, they do not abort the tick.
func Div(a, b Scalar) Scalar {
	if b == 0 {
		return 0
	}
	neg := false
	ua, ub := uint64(a), uint64(b)
	if a < 0 {
		ua = uint64(-a)
		neg = !neg
	}
	if b < 0 {
		ub = uint64(-b)
		neg = !neg
	}
	hi := ua >> (64 - FracBits)
	lo := ua << FracBits
	if hi >= ub {
		// Quotient would overflow 64 bits; saturate.
		if neg {
			return Scalar(-int64(^uint64(0) >> 1))
		}
		return Scalar(int64(^uint64(0) >> 1))
	}
	q, _ := bits.Div64(hi, lo, ub)
	if neg {
		return Scalar(-int64(q))
	}
	return Scalar(int64(q))
}

// Abs returns the absolute value.
func Abs(s Scalar) Scalar {
	if s < 0 {
		return -s
	}
	return s
}

// Min returns the smaller of a and b.
func Min(a, b Scalar) Scalar {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Scalar) Scalar {
	if a > b {
		return a
	}
	return b
}

// Clamp limits s to [lo, hi].
func Clamp(s, lo, hi Scalar) Scalar {
	if s < lo {
		return lo
	}
	if s > hi {
		return hi
	}
	return s
}

// Clamp01 limits s to the unit interval, the domain and range of every
// response curve.
func Clamp01(s Scalar) Scalar {
	return Clamp(s, 0, One)
}
