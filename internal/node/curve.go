package node

import (
	"fmt"

	"tickmind.ai/internal/fixmath"
)

// CurveKind enumerates the closed set of response curve shapes. All shapes
// are exact fixed-point maps [0,1] -> [0,1]; there is deliberately no
// transcendental curve here.
type CurveKind uint8

const (
	// CurveLinear is the identity.
	CurveLinear CurveKind = iota
	// CurveInverse is 1 - x.
	CurveInverse
	// CurvePolynomial is x^Exponent (Exponent >= 1).
	CurvePolynomial
	// CurveInversePolynomial is 1 - (1-x)^Exponent.
	CurveInversePolynomial
	// CurveStep is 0 below Threshold, 1 at or above.
	CurveStep
	// CurveSmoothstep is 3x^2 - 2x^3.
	CurveSmoothstep
)

var curveNames = map[string]CurveKind{
	"linear":             CurveLinear,
	"inverse":            CurveInverse,
	"polynomial":         CurvePolynomial,
	"inverse_polynomial": CurveInversePolynomial,
	"step":               CurveStep,
	"smoothstep":         CurveSmoothstep,
}

// ParseCurveKind maps an authoring name to a kind.
func ParseCurveKind(name string) (CurveKind, error) {
	k, ok := curveNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown response curve %q", name)
	}
	return k, nil
}

// Curve is a pure response curve. The zero value is the linear curve.
type Curve struct {
	Kind      CurveKind
	Exponent  int
	Threshold fixmath.Scalar
}

// Eval maps x through the curve. Inputs outside [0,1] are clamped first.
func (c Curve) Eval(x fixmath.Scalar) fixmath.Scalar {
	x = fixmath.Clamp01(x)
	switch c.Kind {
	case CurveInverse:
		return fixmath.One - x
	case CurvePolynomial:
		return pow01(x, c.Exponent)
	case CurveInversePolynomial:
		return fixmath.One - pow01(fixmath.One-x, c.Exponent)
	case CurveStep:
		if x >= c.Threshold {
			return fixmath.One
		}
		return 0
	case CurveSmoothstep:
		x2 := fixmath.Mul(x, x)
		x3 := fixmath.Mul(x2, x)
		return fixmath.Clamp01(fixmath.Mul(fixmath.FromInt(3), x2) - fixmath.Mul(fixmath.FromInt(2), x3))
	default:
		return x
	}
}

func pow01(x fixmath.Scalar, exp int) fixmath.Scalar {
	if exp <= 1 {
		return x
	}
	out := x
	for i := 1; i < exp; i++ {
		out = fixmath.Mul(out, x)
	}
	return out
}
