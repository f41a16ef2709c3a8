// Package network is the problem-assembly layer (§2 row 7, §6 inbound
// interface): it builds an immutable Network from Ybus, bus
// classification, and injections, validating the preconditions of §6
// before any solver resource is allocated.
//
// Grounded on toy-spice's circuit.AssignNodeBranchMaps /
// circuit.CreateMatrix, which classify nodes and size the system matrix
// once from parsed netlist data and return a wrapped error on any
// structural problem; file parsing itself stays out of scope (§1) -- the
// caller is expected to have already turned a MATPOWER/PSS-E file into
// the arguments below.
package network

import (
	"fmt"
	"math/cmplx"

	"github.com/voltgrid/pflow/pkg/pferr"
	"github.com/voltgrid/pflow/pkg/residual"
	"github.com/voltgrid/pflow/pkg/spmat"
)

// YEntry is one structural nonzero of the complex nodal admittance
// matrix Ybus (§3), 0-based.
type YEntry struct {
	Row, Col int
	Value    complex128
}

// Network is the immutable description of a power system (§3). It is
// built once by New and never mutated afterward. The coloring, seeds, and
// sparsity derived from it (package jacobian) are not cached here:
// newton.Solve and newton.Sensitivity rebuild them on every call.
type Network struct {
	NBus int
	Yre  *spmat.Matrix // CSC, Re(Ybus)
	Yim  *spmat.Matrix // CSC, Im(Ybus)

	Ref []int
	PV  []int
	PQ  []int

	Pinj []float64 // Re(Sbus)
	Qinj []float64 // Im(Sbus)

	V0  []complex128
	Vm0 []float64
	Va0 []float64
}

// Indexing returns the residual kernel's view of this network's bus
// partition (§3).
func (n *Network) Indexing() residual.Indexing {
	return residual.Indexing{NBus: n.NBus, PV: n.PV, PQ: n.PQ}
}

// New builds and validates a Network (§6 "Inbound -- from problem
// assembly"). All of the following must hold or ErrInvalidNetwork is
// returned and no solver-side resources are allocated:
//   - ref, pv, pq partition [0, nbus) exactly, with |ref| >= 1;
//   - Ybus's pattern is symmetric: (i,j) nonzero implies (j,i) nonzero;
//   - every entry of sbus and v0 is finite.
func New(nbus int, yentries []YEntry, ref, pv, pq []int, sbus, v0 []complex128) (*Network, error) {
	if err := validatePartition(nbus, ref, pv, pq); err != nil {
		return nil, err
	}
	if len(sbus) != nbus || len(v0) != nbus {
		return nil, fmt.Errorf("%w: sbus/v0 must have length %d", pferr.ErrInvalidNetwork, nbus)
	}
	for i, s := range sbus {
		if cmplx.IsNaN(s) || cmplx.IsInf(s) {
			return nil, fmt.Errorf("%w: Sbus[%d] is not finite", pferr.ErrInvalidNetwork, i)
		}
	}
	for i, v := range v0 {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return nil, fmt.Errorf("%w: V0[%d] is not finite", pferr.ErrInvalidNetwork, i)
		}
	}

	yre, yim, err := splitYbus(nbus, yentries)
	if err != nil {
		return nil, err
	}
	if err := checkPatternSymmetric(yre); err != nil {
		return nil, err
	}

	pinj := make([]float64, nbus)
	qinj := make([]float64, nbus)
	vm0 := make([]float64, nbus)
	va0 := make([]float64, nbus)
	for i := 0; i < nbus; i++ {
		pinj[i] = real(sbus[i])
		qinj[i] = imag(sbus[i])
		vm0[i] = cmplx.Abs(v0[i])
		va0[i] = cmplx.Phase(v0[i])
	}

	return &Network{
		NBus: nbus,
		Yre:  yre,
		Yim:  yim,
		Ref:  append([]int(nil), ref...),
		PV:   append([]int(nil), pv...),
		PQ:   append([]int(nil), pq...),
		Pinj: pinj,
		Qinj: qinj,
		V0:   append([]complex128(nil), v0...),
		Vm0:  vm0,
		Va0:  va0,
	}, nil
}

func validatePartition(nbus int, ref, pv, pq []int) error {
	if len(ref) < 1 {
		return fmt.Errorf("%w: at least one ref bus is required", pferr.ErrInvalidNetwork)
	}
	seen := make([]int8, nbus)
	mark := func(set []int, tag string) error {
		for _, b := range set {
			if b < 0 || b >= nbus {
				return fmt.Errorf("%w: %s bus index %d out of range [0,%d)", pferr.ErrInvalidNetwork, tag, b, nbus)
			}
			if seen[b] != 0 {
				return fmt.Errorf("%w: bus %d appears in more than one of ref/pv/pq", pferr.ErrInvalidNetwork, b)
			}
			seen[b] = 1
		}
		return nil
	}
	if err := mark(ref, "ref"); err != nil {
		return err
	}
	if err := mark(pv, "pv"); err != nil {
		return err
	}
	if err := mark(pq, "pq"); err != nil {
		return err
	}
	for b, s := range seen {
		if s == 0 {
			return fmt.Errorf("%w: bus %d assigned to none of ref/pv/pq", pferr.ErrInvalidNetwork, b)
		}
	}
	return nil
}

func splitYbus(nbus int, yentries []YEntry) (yre, yim *spmat.Matrix, err error) {
	entries := make([]spmat.Entry, len(yentries))
	for i, e := range yentries {
		if e.Row < 0 || e.Row >= nbus || e.Col < 0 || e.Col >= nbus {
			return nil, nil, fmt.Errorf("%w: Ybus entry (%d,%d) out of range", pferr.ErrInvalidNetwork, e.Row, e.Col)
		}
		if cmplx.IsNaN(e.Value) || cmplx.IsInf(e.Value) {
			return nil, nil, fmt.Errorf("%w: Ybus entry (%d,%d) is not finite", pferr.ErrInvalidNetwork, e.Row, e.Col)
		}
		entries[i] = spmat.Entry{Row: e.Row, Col: e.Col}
	}
	yre = spmat.New(spmat.CSC, nbus, nbus, entries)
	yim = spmat.New(spmat.CSC, nbus, nbus, entries)
	for _, e := range yentries {
		if err := yre.Add(e.Row, e.Col, real(e.Value)); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", pferr.ErrInvalidNetwork, err)
		}
		if err := yim.Add(e.Row, e.Col, imag(e.Value)); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", pferr.ErrInvalidNetwork, err)
		}
	}
	return yre, yim, nil
}

func checkPatternSymmetric(y *spmat.Matrix) error {
	for c := 0; c < y.Cols; c++ {
		for k := y.Ptr[c]; k < y.Ptr[c+1]; k++ {
			r := y.Idx[k]
			if _, ok := y.Slot(c, r); !ok {
				return fmt.Errorf("%w: Ybus pattern is not symmetric at (%d,%d)", pferr.ErrInvalidNetwork, r, c)
			}
		}
	}
	return nil
}
