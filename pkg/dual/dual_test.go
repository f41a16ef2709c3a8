package dual

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProductRuleMatchesFiniteDifference(t *testing.T) {
	f := func(x, y float64) float64 { return math.Sin(x)*y + x/y }

	x0, y0 := 0.7, 1.3
	const h = 1e-6
	wantDx := (f(x0+h, y0) - f(x0-h, y0)) / (2 * h)
	wantDy := (f(x0, y0+h) - f(x0, y0-h)) / (2 * h)

	x := Lift(x0, 2).Seed(0)
	y := Lift(y0, 2).Seed(1)
	out := x.Sin().Mul(y).Add(x.Div(y))

	require.InDelta(t, f(x0, y0), out.Val, 1e-12)
	require.InDelta(t, wantDx, out.Dot[0], 1e-6)
	require.InDelta(t, wantDy, out.Dot[1], 1e-6)
}

func TestSeedIsIdentityColumn(t *testing.T) {
	n := Lift(3.0, 4).Seed(2)
	require.Equal(t, []float64{0, 0, 1, 0}, n.Dot)
}

func TestRealMatchesMath(t *testing.T) {
	a, b := Real(2.0), Real(3.0)
	require.Equal(t, Real(5.0), a.Add(b))
	require.Equal(t, Real(6.0), a.Mul(b))
	require.InDelta(t, math.Sin(2.0), float64(a.Sin()), 1e-15)
}
