package jacobian

import "github.com/voltgrid/pflow/pkg/residual"

// RowQuantity distinguishes the real- and reactive-mismatch rows of F.
type RowQuantity int

const (
	P RowQuantity = iota
	Q
)

// Row names one row of F: the bus its mismatch is attached to and
// whether it's the real- or reactive-power equation (§3: F concatenates
// P-mismatch at PV, P-mismatch at PQ, Q-mismatch at PQ).
type Row struct {
	Bus int
	Qty RowQuantity
}

// Rows lists F's rows in the order residual.Evaluate writes them.
func Rows(ix residual.Indexing) []Row {
	rows := make([]Row, 0, ix.Len())
	for _, b := range ix.PV {
		rows = append(rows, Row{Bus: b, Qty: P})
	}
	for _, b := range ix.PQ {
		rows = append(rows, Row{Bus: b, Qty: P})
	}
	for _, b := range ix.PQ {
		rows = append(rows, Row{Bus: b, Qty: Q})
	}
	return rows
}
