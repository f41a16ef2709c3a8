// Jacobian ties together map, rows, pattern and coloring into the AD
// pass described by §4.2: one dual-numbered residual evaluation per
// Newton iteration yields the full compressed Jacobian Jc, which is then
// scattered into the fixed sparse pattern.
package jacobian

import (
	"fmt"

	"github.com/voltgrid/pflow/pkg/dual"
	"github.com/voltgrid/pflow/pkg/residual"
	"github.com/voltgrid/pflow/pkg/spmat"
)

// Jacobian owns everything that is fixed for the lifetime of a Network
// (§3 "Lifecycle"): the reduced-state map, F's row layout, J's sparsity
// pattern and its coloring. Compute mutates only J.Data and internal
// scratch buffers across Newton iterations.
type Jacobian struct {
	Map    Map
	Rows   []Row
	Colors []int
	C      int
	J      *spmat.Matrix

	// scratch, sized once C is known; reused across Compute calls so the
	// AD pass does not allocate on the Newton hot path (§9).
	xExt       []dual.Number // [Vm(0..N-1) | Va(0..N-1) | Pinj(0..N-1)]
	qinjD      []dual.Number
	dst        []dual.Number
	sharedZero []float64
}

// New builds the Jacobian scaffolding for the given reduced-state map
// (state or design flavor, see StateMap/DesignMap) against the Ybus
// pattern yre, choosing layout for J (CSC on host, CSR on a SIMT device,
// §5).
func New(layout spmat.Layout, ix residual.Indexing, vars Map, yre *spmat.Matrix) *Jacobian {
	rows := Rows(ix)
	entries := Pattern(rows, vars.Vars, yre)
	colors := Color(entries, len(vars.Vars))
	c := NumColors(colors)

	j := spmat.New(layout, len(rows), len(vars.Vars), entries)

	jac := &Jacobian{Map: vars, Rows: rows, Colors: colors, C: c, J: j}
	jac.allocScratch()
	return jac
}

func (jac *Jacobian) allocScratch() {
	n, c := jac.Map.N, jac.C
	jac.xExt = make([]dual.Number, 3*n)
	for i := range jac.xExt {
		jac.xExt[i] = dual.Lift(0, c)
	}
	jac.qinjD = make([]dual.Number, n)
	for i := range jac.qinjD {
		jac.qinjD[i] = dual.Lift(0, c)
	}
	jac.dst = make([]dual.Number, len(jac.Rows))
	for i := range jac.dst {
		jac.dst[i] = dual.Lift(0, c)
	}
}

func zero(xs []float64) {
	for i := range xs {
		xs[i] = 0
	}
}

// Compute evaluates J at (vm, va, pinj) via one seeded dual-number pass
// over the residual kernel and scatters the result into jac.J (§4.2
// steps 2-6). qinj is never differentiated by either Jacobian flavor
// (§4.2), so it is always passed through as a constant.
func (jac *Jacobian) Compute(vm, va, pinj, qinj []float64, yre, yim *spmat.Matrix, ix residual.Indexing) error {
	n := jac.Map.N
	if len(vm) != n || len(va) != n || len(pinj) != n || len(qinj) != n {
		return fmt.Errorf("jacobian: state/injection vectors must have length %d", n)
	}

	for i := 0; i < n; i++ {
		jac.xExt[i].Val = vm[i]
		zero(jac.xExt[i].Dot)
		jac.xExt[n+i].Val = va[i]
		zero(jac.xExt[n+i].Dot)
		jac.xExt[2*n+i].Val = pinj[i]
		zero(jac.xExt[2*n+i].Dot)
		jac.qinjD[i].Val = qinj[i]
	}

	// Seeding (§4.2 step 3): every reduced-state variable writes a
	// one-hot partial at its assigned color. Two variables sharing a
	// color never share a row (that's what Color guarantees), so
	// overlapping seeds never corrupt each other's derivative.
	for m, v := range jac.Map.Vars {
		pos := jac.Map.Position(v)
		jac.xExt[pos].Dot[jac.Colors[m]] = 1
	}

	vmD := jac.xExt[0:n]
	vaD := jac.xExt[n : 2*n]
	pinjD := jac.xExt[2*n : 3*n]

	lift := func(x float64) dual.Number { return dual.Number{Val: x, Dot: jac.zeroDot()} }

	if err := residual.Evaluate(jac.dst, vmD, vaD, yre, yim, pinjD, jac.qinjD, ix, lift); err != nil {
		return fmt.Errorf("jacobian: residual evaluation: %w", err)
	}

	// Uncompression (§4.2 step 6): pure scatter from Jc into J's pattern.
	jac.J.Uncompress(jac.Colors, func(color, row int) float64 {
		return jac.dst[row].Dot[color]
	})
	return nil
}

// zeroDot returns a shared all-zero partial buffer for lifting numeric
// constants (Y entries) into dual.Number; arithmetic on a dual.Number
// never mutates its operands' Dot slices, so sharing one read-only
// buffer across every lifted constant in a pass is safe and avoids an
// allocation per nonzero.
func (jac *Jacobian) zeroDot() []float64 {
	if jac.sharedZero == nil || len(jac.sharedZero) != jac.C {
		jac.sharedZero = make([]float64, jac.C)
	}
	return jac.sharedZero
}
