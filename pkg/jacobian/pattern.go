// Pattern derives J's sparsity from the analytic Jacobian formula (§3,
// §4.2 "Failure modes": it must come from the symbolic formula, never a
// finite-difference probe, or silently-missing entries stall or diverge
// Newton).
package jacobian

import "github.com/voltgrid/pflow/pkg/spmat"

// Pattern returns the structural nonzeros of J given F's rows, u's
// columns, and Ybus's real part (whose pattern Yim shares, §4.1). A
// Vm/Va column is coupled to every row whose bus is electrically
// adjacent to (or equal to) the column's bus, since the polar power
// formula sums over Y's column nonzeros. A Pinj column only affects the
// single row holding that same bus's real-power mismatch, since
// injections enter F as a plain additive term (§4.1: "F[i] = Pᵢ −
// Pinj[fr]").
func Pattern(rows []Row, vars []Var, yre *spmat.Matrix) []spmat.Entry {
	var entries []spmat.Entry
	for col, v := range vars {
		if v.Qty == Pinj {
			for row, r := range rows {
				if r.Bus == v.Bus && r.Qty == P {
					entries = append(entries, spmat.Entry{Row: row, Col: col})
				}
			}
			continue
		}
		for row, r := range rows {
			if adjacent(yre, r.Bus, v.Bus) {
				entries = append(entries, spmat.Entry{Row: row, Col: col})
			}
		}
	}
	return entries
}

func adjacent(yre *spmat.Matrix, a, b int) bool {
	if a == b {
		return true
	}
	_, ok := yre.Slot(a, b)
	return ok
}
