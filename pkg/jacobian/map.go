// Package jacobian implements the AD engine's Jacobian-specific machinery
// (§4.2): the reduced-state map, sparsity-pattern derivation, greedy
// distance-1 coloring, and the AD pass that turns a single dual-numbered
// residual evaluation into a fully uncompressed sparse Jacobian.
package jacobian

import "github.com/voltgrid/pflow/pkg/residual"

// Quantity identifies which primal quantity a reduced-state column (or,
// symmetrically, which mismatch equation a row) refers to.
type Quantity int

const (
	Vm Quantity = iota
	Va
	Pinj
)

// Var names one column of the reduced Jacobian: the quantity and the bus
// it is attached to.
type Var struct {
	Bus int
	Qty Quantity
}

// Map lists, in order, the reduced-state variables u that the Jacobian's
// columns correspond to, and where each one lives in the extended primal
// vector xExt = [Vm(0..N-1), Va(0..N-1), Pinj(0..N-1)] (§4.2 step 1: "pack
// (Vm, Va) into x"; extended here with a Pinj block so the design flavor
// can seed injections the same way the state flavor seeds angles).
type Map struct {
	Vars []Var
	N    int
}

// Position returns v's offset into xExt.
func (m Map) Position(v Var) int {
	switch v.Qty {
	case Vm:
		return v.Bus
	case Va:
		return m.N + v.Bus
	default: // Pinj
		return 2*m.N + v.Bus
	}
}

// StateMap builds the *state* Jacobian's reduced-state map, ∂F/∂x
// parameterized by (θ at PV+PQ, Vm at PQ), per §4.2's "state" flavor.
func StateMap(ix residual.Indexing) Map {
	var vars []Var
	for _, b := range ix.PV {
		vars = append(vars, Var{Bus: b, Qty: Va})
	}
	for _, b := range ix.PQ {
		vars = append(vars, Var{Bus: b, Qty: Va})
	}
	for _, b := range ix.PQ {
		vars = append(vars, Var{Bus: b, Qty: Vm})
	}
	return Map{Vars: vars, N: ix.NBus}
}

// DesignMap builds the *design* Jacobian's reduced-state map, ∂F/∂u
// parameterized by (θ_ref, Vm_pv, Pinj_pv). §9 records that the source's
// formula grouped this as "[ref; pv; pv]", which is a duplicated-column
// typo for "[ref; pv; pq]" reading too much into the wrong axis; the
// correct grouping is across *quantities* at a fixed bus set (ref, pv),
// not across bus sets, and that is what's implemented here: angle at
// ref, then magnitude at pv, then injection at pv.
func DesignMap(ix residual.Indexing, ref []int) Map {
	var vars []Var
	for _, b := range ref {
		vars = append(vars, Var{Bus: b, Qty: Va})
	}
	for _, b := range ix.PV {
		vars = append(vars, Var{Bus: b, Qty: Vm})
	}
	for _, b := range ix.PV {
		vars = append(vars, Var{Bus: b, Qty: Pinj})
	}
	return Map{Vars: vars, N: ix.NBus}
}
