package fields

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// IsTensorContext reports whether n components of the given kind form a
// symmetric tensor ordered [xx, yy, zz, xy, yz, zx]
func IsTensorContext(n int, kind Kind) bool {
	return n == 6 && kind != KindDisplacement && kind != KindVector
}

// VonMises returns the equivalent stress of a symmetric tensor
// [xx, yy, zz, xy, yz, zx]
func VonMises(c []float64) float64 {
	var (
		sxx, syy, szz = c[0], c[1], c[2]
		sxy, syz, szx = c[3], c[4], c[5]
	)
	d1, d2, d3 := sxx-syy, syy-szz, szz-sxx
	return math.Sqrt(0.5*(d1*d1+d2*d2+d3*d3) + 3*(sxy*sxy+syz*syz+szx*szx))
}

// Magnitude is the Euclidean norm of the components
func Magnitude(c []float64) float64 {
	if len(c) == 0 {
		return 0
	}
	return floats.Norm(c, 2)
}

// Reduce collapses one node's components to a scalar:
// 1 -> the value, 3 -> magnitude, 6 in tensor context -> von Mises,
// otherwise the first component, or the magnitude when there is none.
func Reduce(c []float64, kind Kind) float64 {
	switch {
	case len(c) == 1:
		return c[0]
	case len(c) == 3:
		return Magnitude(c)
	case IsTensorContext(len(c), kind):
		return VonMises(c)
	case len(c) > 0:
		return c[0]
	default:
		return Magnitude(c)
	}
}

// Derive reduces every non-nil node value. Non-finite results are left nil.
// min and max cover the finite scalars and are 0 when there are none.
func Derive(values []*NodeValue, kind Kind) (scalars []*float64, min, max float64) {
	scalars = make([]*float64, len(values))
	finite := make([]float64, 0, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		s := Reduce(v.Components, kind)
		if math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		scalars[i] = &s
		finite = append(finite, s)
	}
	if len(finite) > 0 {
		min, max = floats.Min(finite), floats.Max(finite)
	}
	return
}

// DeriveField fills ScalarValues, Min and Max from PerNodeValues
func DeriveField(f *Field) {
	f.ScalarValues, f.Min, f.Max = Derive(f.PerNodeValues, f.Kind)
}

// MaxAbs returns the largest finite |s|, ok is false when there is none
func MaxAbs(scalars []*float64) (m float64, ok bool) {
	for _, s := range scalars {
		if s == nil {
			continue
		}
		if a := math.Abs(*s); !ok || a > m {
			m, ok = a, true
		}
	}
	return
}
