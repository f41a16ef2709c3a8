// Package dual implements the forward-mode AD engine's scalar type (§4.2,
// §9 "Dual-number arithmetic"). A Number carries a value and C tangent
// ("partial") components; arithmetic on it propagates derivatives
// alongside the primal computation with no separate symbolic pass.
//
// The residual kernel (package residual) is written once against the
// Scalar interface below and instantiated at either Real (plain float64,
// used for the convergence check in package newton) or Number (used by
// package jacobian to harvest a compressed Jacobian) -- this is what lets
// "no structural change" (§4.1) hold between the two call sites.
package dual

import "math"

// Scalar is the arithmetic surface the residual kernel is written
// against. Real and Number both implement it.
type Scalar[T any] interface {
	Add(T) T
	Sub(T) T
	Mul(T) T
	Div(T) T
	Neg() T
	Sin() T
	Cos() T
}

// Real is the float64 instantiation of Scalar, used when no derivatives
// are needed (plain residual evaluation for the convergence check).
type Real float64

func (a Real) Add(b Real) Real { return a + b }
func (a Real) Sub(b Real) Real { return a - b }
func (a Real) Mul(b Real) Real { return a * b }
func (a Real) Div(b Real) Real { return a / b }
func (a Real) Neg() Real       { return -a }
func (a Real) Sin() Real       { return Real(math.Sin(float64(a))) }
func (a Real) Cos() Real       { return Real(math.Cos(float64(a))) }

// Number is the dual-number instantiation of Scalar: a primal Val plus C
// tangent partials. Zero value is not usable directly; build one with
// Lift or Seed so Dot is sized to the coloring's color count.
type Number struct {
	Val float64
	Dot []float64
}

// Lift creates a Number with the given primal value and C zero partials
// ("lift x to a dual vector xₜ with zero tangents", §4.2 step 2).
func Lift(val float64, c int) Number {
	return Number{Val: val, Dot: make([]float64, c)}
}

// Seed returns a copy of n with partial `color` set to 1 and all others
// zero, implementing the seeding step (§4.2 step 3, §9 "Seed construction
// writes sparse identity columns into the tangent slots").
func (n Number) Seed(color int) Number {
	out := Number{Val: n.Val, Dot: make([]float64, len(n.Dot))}
	out.Dot[color] = 1
	return out
}

func (a Number) newDot() []float64 { return make([]float64, len(a.Dot)) }

func (a Number) Add(b Number) Number {
	out := Number{Val: a.Val + b.Val, Dot: a.newDot()}
	for i := range out.Dot {
		out.Dot[i] = a.Dot[i] + b.Dot[i]
	}
	return out
}

func (a Number) Sub(b Number) Number {
	out := Number{Val: a.Val - b.Val, Dot: a.newDot()}
	for i := range out.Dot {
		out.Dot[i] = a.Dot[i] - b.Dot[i]
	}
	return out
}

func (a Number) Mul(b Number) Number {
	out := Number{Val: a.Val * b.Val, Dot: a.newDot()}
	for i := range out.Dot {
		out.Dot[i] = a.Val*b.Dot[i] + b.Val*a.Dot[i]
	}
	return out
}

func (a Number) Div(b Number) Number {
	out := Number{Val: a.Val / b.Val, Dot: a.newDot()}
	inv := 1 / b.Val
	for i := range out.Dot {
		out.Dot[i] = (a.Dot[i] - out.Val*b.Dot[i]) * inv
	}
	return out
}

func (a Number) Neg() Number {
	out := Number{Val: -a.Val, Dot: a.newDot()}
	for i := range out.Dot {
		out.Dot[i] = -a.Dot[i]
	}
	return out
}

func (a Number) Sin() Number {
	s, c := math.Sin(a.Val), math.Cos(a.Val)
	out := Number{Val: s, Dot: a.newDot()}
	for i := range out.Dot {
		out.Dot[i] = c * a.Dot[i]
	}
	return out
}

func (a Number) Cos() Number {
	s, c := math.Sin(a.Val), math.Cos(a.Val)
	out := Number{Val: c, Dot: a.newDot()}
	for i := range out.Dot {
		out.Dot[i] = -s * a.Dot[i]
	}
	return out
}

// Sqrt and Exp round out §9's required operation set (not exercised by
// the polar-form residual in §4.1). They are methods of Number only: the
// Scalar interface and Real do not include them.
func (a Number) Sqrt() Number {
	r := math.Sqrt(a.Val)
	out := Number{Val: r, Dot: a.newDot()}
	for i := range out.Dot {
		out.Dot[i] = a.Dot[i] / (2 * r)
	}
	return out
}

func (a Number) Exp() Number {
	e := math.Exp(a.Val)
	out := Number{Val: e, Dot: a.newDot()}
	for i := range out.Dot {
		out.Dot[i] = e * a.Dot[i]
	}
	return out
}

// Const lifts a plain float64 into a Number with the same color count as
// an existing Number, all-zero partials -- used for constants appearing
// inside a kernel written against Number (e.g. injections Pinj/Qinj).
func Const(val float64, like Number) Number {
	return Number{Val: val, Dot: make([]float64, len(like.Dot))}
}
