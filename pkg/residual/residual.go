// Package residual evaluates the polar-form power-mismatch vector F(Vm,
// Va) (§4.1). It is written once, generic over dual.Scalar, so the exact
// same code path produces the plain float64 residual used by the Newton
// convergence check and the dual-number residual the AD engine
// differentiates (§4.1: "enabling substitution of a dual-number scalar
// without any structural change").
//
// Grounded on toy-spice's device-stamping loop (pkg/circuit/circuit.go's
// Stamp, pkg/analysis/op.go's doNRiter): there, every device contributes
// independently into a shared matrix/RHS each iteration; here every bus
// row is independent for the same reason (§5, "fully data-parallel
// across i").
package residual

import (
	"fmt"

	"github.com/voltgrid/pflow/pkg/dual"
	"github.com/voltgrid/pflow/pkg/spmat"
)

// Indexing describes the bus partition the residual and its Jacobian
// share (§3: ref, pv, pq index sets).
type Indexing struct {
	NBus int
	PV   []int
	PQ   []int
}

// Len returns |pv| + 2|pq|, the length of F (§3).
func (ix Indexing) Len() int { return len(ix.PV) + 2*len(ix.PQ) }

// Evaluate writes F into dst (len(dst) == ix.Len()) given the current
// state (vm, va), the split admittance Yre/Yim (CSC matrices so column
// iteration matches §4.1's "iteration over j confined to nonzeros in
// column fr"), and the bus injections pinj/qinj. Injections are typed T
// rather than float64 so the design Jacobian flavor (§4.2) can pass them
// in already seeded with AD partials w.r.t. Pinj_pv -- the state flavor
// passes the same injections with all-zero partials. lift converts a fixed
// numeric constant (an admittance entry) into T; for T=dual.Real it is a
// trivial cast, for T=dual.Number it pads with zero partials.
func Evaluate[T dual.Scalar[T]](dst []T, vm, va []T, yre, yim *spmat.Matrix, pinj, qinj []T, ix Indexing, lift func(float64) T) error {
	if len(dst) != ix.Len() {
		return fmt.Errorf("residual: dst has length %d, want %d", len(dst), ix.Len())
	}
	if yre.Layout != spmat.CSC || yim.Layout != spmat.CSC {
		return fmt.Errorf("residual: Yre/Yim must be CSC for column-wise accumulation")
	}

	nPV, nPQ := len(ix.PV), len(ix.PQ)

	for i := 0; i < nPV+nPQ; i++ {
		var fr int
		isPQ := i >= nPV
		if !isPQ {
			fr = ix.PV[i]
		} else {
			fr = ix.PQ[i-nPV]
		}

		p, q := busPower(vm, va, yre, yim, fr, lift)

		pMismatch := p.Sub(pinj[fr])
		if !isPQ {
			dst[i] = pMismatch
		} else {
			j := i - nPV
			dst[nPV+j] = pMismatch
			qMismatch := q.Sub(qinj[fr])
			dst[nPV+nPQ+j] = qMismatch
		}
	}
	return nil
}

// busPower computes the injected real/reactive power at bus fr (§4.1's
// Pᵢ, Qᵢ formulas) by walking the nonzeros of column fr of Yre/Yim.
func busPower[T dual.Scalar[T]](vm, va []T, yre, yim *spmat.Matrix, fr int, lift func(float64) T) (p, q T) {
	vmFr, vaFr := vm[fr], va[fr]

	var sumP, sumQ T
	first := true

	// Walk column fr's nonzeros directly (both Yre, Yim share Ybus's
	// pattern, §4.1: "same sparsity as Yim").
	colStart, colEnd := yre.Ptr[fr], yre.Ptr[fr+1]
	for k := colStart; k < colEnd; k++ {
		to := yre.Idx[k]
		gTo := yre.Data[k]
		bTo := yim.Data[k]

		dTheta := vaFr.Sub(va[to])
		cosT := dTheta.Cos()
		sinT := dTheta.Sin()

		vProd := vmFr.Mul(vm[to])

		pTerm := vProd.Mul(lift(gTo).Mul(cosT).Add(lift(bTo).Mul(sinT)))
		qTerm := vProd.Mul(lift(gTo).Mul(sinT).Sub(lift(bTo).Mul(cosT)))

		if first {
			sumP, sumQ = pTerm, qTerm
			first = false
		} else {
			sumP = sumP.Add(pTerm)
			sumQ = sumQ.Add(qTerm)
		}
	}
	if first {
		// Isolated bus: no nonzeros in its own column is a modeling error
		// the caller should have rejected at assembly time, but returning
		// zero keeps this kernel total and side-effect free.
		return lift(0), lift(0)
	}
	return sumP, sumQ
}
