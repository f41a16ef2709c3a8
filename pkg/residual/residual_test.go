package residual

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltgrid/pflow/pkg/dual"
	"github.com/voltgrid/pflow/pkg/spmat"
)

// threeBus builds a tiny symmetric Ybus (bus 0 = ref, bus 1 = PV, bus 2 =
// PQ) with plausible per-unit line susceptances, used across residual and
// jacobian tests.
func threeBus() (yre, yim *spmat.Matrix, pinj, qinj []float64, ix Indexing) {
	entries := []spmat.Entry{
		{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2},
		{Row: 1, Col: 0}, {Row: 1, Col: 1}, {Row: 1, Col: 2},
		{Row: 2, Col: 0}, {Row: 2, Col: 1}, {Row: 2, Col: 2},
	}
	yre = spmat.New(spmat.CSC, 3, 3, entries)
	yim = spmat.New(spmat.CSC, 3, 3, entries)

	b12, b13, b23 := 10.0, 8.0, 12.0
	g := 0.01

	set := func(i, j int, gVal, bVal float64) {
		_ = yre.Add(i, j, gVal)
		_ = yim.Add(i, j, bVal)
	}
	set(0, 1, -g, b12)
	set(1, 0, -g, b12)
	set(0, 2, -g, b13)
	set(2, 0, -g, b13)
	set(1, 2, -g, b23)
	set(2, 1, -g, b23)
	set(0, 0, 2*g, -(b12 + b13))
	set(1, 1, 2*g, -(b12 + b23))
	set(2, 2, 2*g, -(b13 + b23))

	pinj = []float64{0, 0.5, -0.3}
	qinj = []float64{0, 0, -0.1}
	ix = Indexing{NBus: 3, PV: []int{1}, PQ: []int{2}}
	return
}

func toReal(xs []float64) []dual.Real {
	out := make([]dual.Real, len(xs))
	for i, x := range xs {
		out[i] = dual.Real(x)
	}
	return out
}

func TestEvaluateLength(t *testing.T) {
	yre, yim, pinj, qinj, ix := threeBus()
	require.Equal(t, 3, ix.Len())

	vm := []dual.Real{1, 1, 1}
	va := []dual.Real{0, 0, 0}
	dst := make([]dual.Real, ix.Len())
	lift := func(v float64) dual.Real { return dual.Real(v) }

	require.NoError(t, Evaluate(dst, vm, va, yre, yim, toReal(pinj), toReal(qinj), ix, lift))
}

func TestEvaluateMatchesHandComputedMismatch(t *testing.T) {
	yre, yim, pinj, qinj, ix := threeBus()

	vm := []dual.Real{1.0, 1.02, 0.98}
	va := []dual.Real{0.0, -0.02, -0.05}
	dst := make([]dual.Real, ix.Len())
	lift := func(v float64) dual.Real { return dual.Real(v) }
	require.NoError(t, Evaluate(dst, vm, va, yre, yim, toReal(pinj), toReal(qinj), ix, lift))

	// Hand-compute P at bus 1 (PV) directly from the polar formula.
	fr := 1
	var wantP float64
	colStart, colEnd := yre.Ptr[fr], yre.Ptr[fr+1]
	for k := colStart; k < colEnd; k++ {
		to := yre.Idx[k]
		gTo, bTo := yre.Data[k], yim.Data[k]
		dTheta := float64(va[fr]) - float64(va[to])
		wantP += float64(vm[fr]) * float64(vm[to]) * (gTo*math.Cos(dTheta) + bTo*math.Sin(dTheta))
	}
	wantP -= pinj[fr]

	require.InDelta(t, wantP, float64(dst[0]), 1e-12)
}

func TestEvaluateRejectsWrongLength(t *testing.T) {
	yre, yim, pinj, qinj, ix := threeBus()
	vm := []dual.Real{1, 1, 1}
	va := []dual.Real{0, 0, 0}
	dst := make([]dual.Real, ix.Len()+1)
	lift := func(v float64) dual.Real { return dual.Real(v) }
	require.Error(t, Evaluate(dst, vm, va, yre, yim, toReal(pinj), toReal(qinj), ix, lift))
}
