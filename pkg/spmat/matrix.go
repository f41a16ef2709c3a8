// Package spmat is the sparse-matrix / device abstraction (§2 row 1, §5
// "Device portability"). It provides one Matrix type compressed either by
// column (CSC, the CPU layout) or by row (CSR, the SIMT layout) over a
// fixed sparsity pattern, with element-wise and matvec kernels that are
// identical in semantics across the two layouts.
//
// Adapted from the element/stamping split in toy-spice's
// pkg/matrix/circuit.go: that package wraps a mutable linked sparse matrix
// behind AddElement/Solve; here the pattern is fixed up front (§3, "fixed
// for the lifetime of a Network") and only the nonzero values are mutated
// per Newton iteration, which is what lets uncompression (§4.2 step 6) be
// a pure scatter instead of a map lookup.
package spmat

import (
	"fmt"
	"sort"
)

// Layout selects which axis a Matrix is compressed along.
type Layout int

const (
	// CSC is compressed-sparse-column, the host/CPU layout.
	CSC Layout = iota
	// CSR is compressed-sparse-row, the SIMT/device layout.
	CSR
)

func (l Layout) String() string {
	if l == CSR {
		return "CSR"
	}
	return "CSC"
}

// Entry is one structural nonzero used to build a Matrix.
type Entry struct {
	Row, Col int
}

// Matrix is a square or rectangular sparse matrix with a pattern fixed at
// construction time. For CSC, Ptr has length Cols+1 and Idx holds row
// indices; for CSR, Ptr has length Rows+1 and Idx holds column indices.
// Data is aligned 1:1 with Idx and is the only field the solver mutates
// between Newton iterations.
type Matrix struct {
	Layout Layout
	Rows   int
	Cols   int
	Ptr    []int
	Idx    []int
	Data   []float64
}

// New builds a Matrix of the given layout from a set of structural
// entries. Duplicate (row, col) pairs are merged (their later Add calls
// accumulate into the same slot). Entries need not be pre-sorted.
func New(layout Layout, rows, cols int, entries []Entry) *Matrix {
	major, minor := rows, cols
	if layout == CSR {
		major, minor = cols, rows
	}
	_ = major
	_ = minor

	buckets := make([][]int, majorDim(layout, rows, cols))
	for _, e := range entries {
		m := majorIndex(layout, e)
		n := minorIndex(layout, e)
		buckets[m] = append(buckets[m], n)
	}

	nMajor := len(buckets)
	ptr := make([]int, nMajor+1)
	var idx []int
	for i, b := range buckets {
		sort.Ints(b)
		b = dedup(b)
		buckets[i] = b
		ptr[i+1] = ptr[i] + len(b)
		idx = append(idx, b...)
	}

	return &Matrix{
		Layout: layout,
		Rows:   rows,
		Cols:   cols,
		Ptr:    ptr,
		Idx:    idx,
		Data:   make([]float64, len(idx)),
	}
}

func dedup(sorted []int) []int {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func majorDim(layout Layout, rows, cols int) int {
	if layout == CSR {
		return rows
	}
	return cols
}

func majorIndex(layout Layout, e Entry) int {
	if layout == CSR {
		return e.Row
	}
	return e.Col
}

func minorIndex(layout Layout, e Entry) int {
	if layout == CSR {
		return e.Col
	}
	return e.Row
}

// NNZ returns the number of structural nonzeros.
func (m *Matrix) NNZ() int { return len(m.Idx) }

// Clear zeroes all nonzero values without touching the pattern.
func (m *Matrix) Clear() {
	for i := range m.Data {
		m.Data[i] = 0
	}
}

// Slot returns the index into Data/Idx for (row, col), and false if that
// pair is not part of the fixed pattern. Used by Add and by pattern
// derivation and validation (jacobian.Pattern, network's symmetry check);
// the Newton/AD hot path never needs it because Uncompress scatters by
// major-axis iteration instead.
func (m *Matrix) Slot(row, col int) (int, bool) {
	major, minor := col, row
	if m.Layout == CSR {
		major, minor = row, col
	}
	lo, hi := m.Ptr[major], m.Ptr[major+1]
	for k := lo; k < hi; k++ {
		if m.Idx[k] == minor {
			return k, true
		}
	}
	return 0, false
}

// Add accumulates value into (row, col); if that pair is not part of the
// pattern it leaves Data unchanged and returns an error (mirrors
// toy-spice's AddElement bounds check,
// but fails closed instead of printing a warning since the pattern here
// is derived analytically and is never expected to miss an entry).
func (m *Matrix) Add(row, col int, value float64) error {
	k, ok := m.Slot(row, col)
	if !ok {
		return fmt.Errorf("spmat: (%d,%d) not in pattern", row, col)
	}
	m.Data[k] += value
	return nil
}

// MatVec computes dst = m*src, iterating over rows (CSR) or columns
// (CSC). The loop runs sequentially on the calling goroutine; package
// linsolve calls it directly.
func (m *Matrix) MatVec(dst, src []float64) {
	for i := range dst {
		dst[i] = 0
	}
	switch m.Layout {
	case CSR:
		for r := 0; r < m.Rows; r++ {
			var sum float64
			for k := m.Ptr[r]; k < m.Ptr[r+1]; k++ {
				sum += m.Data[k] * src[m.Idx[k]]
			}
			dst[r] = sum
		}
	case CSC:
		for c := 0; c < m.Cols; c++ {
			sc := src[c]
			if sc == 0 {
				continue
			}
			for k := m.Ptr[c]; k < m.Ptr[c+1]; k++ {
				dst[m.Idx[k]] += m.Data[k] * sc
			}
		}
	}
}

// SameZero reports whether the pattern (Ptr, Idx, Layout, shape) of two
// matrices is identical, ignoring Data. Used to check §8's invariant that
// J's sparsity pattern is invariant across Newton iterations.
func SameZero(a, b *Matrix) bool {
	if a.Layout != b.Layout || a.Rows != b.Rows || a.Cols != b.Cols {
		return false
	}
	if len(a.Ptr) != len(b.Ptr) || len(a.Idx) != len(b.Idx) {
		return false
	}
	for i := range a.Ptr {
		if a.Ptr[i] != b.Ptr[i] {
			return false
		}
	}
	for i := range a.Idx {
		if a.Idx[i] != b.Idx[i] {
			return false
		}
	}
	return true
}

// RowNonzeros calls fn(col) for every structural nonzero in row r. For a
// CSR matrix this is a direct scan; for CSC it requires the transpose
// view, which callers should avoid on the hot path (residual evaluation
// iterates by column of Yre/Yim, see package residual).
func (m *Matrix) RowNonzeros(r int, fn func(col int)) {
	if m.Layout == CSR {
		for k := m.Ptr[r]; k < m.Ptr[r+1]; k++ {
			fn(m.Idx[k])
		}
		return
	}
	for c := 0; c < m.Cols; c++ {
		for k := m.Ptr[c]; k < m.Ptr[c+1]; k++ {
			if m.Idx[k] == r {
				fn(c)
				break
			}
		}
	}
}

// ColNonzeros calls fn(row) for every structural nonzero in column c.
// This is the iteration order the residual kernel uses (§4.1: "Iteration
// over j is confined to the nonzeros in column fr of Yre").
func (m *Matrix) ColNonzeros(c int, fn func(row int)) {
	if m.Layout == CSC {
		for k := m.Ptr[c]; k < m.Ptr[c+1]; k++ {
			fn(m.Idx[k])
		}
		return
	}
	for r := 0; r < m.Rows; r++ {
		for k := m.Ptr[r]; k < m.Ptr[r+1]; k++ {
			if m.Idx[k] == c {
				fn(r)
				break
			}
		}
	}
}

// Uncompress scatters the compressed Jacobian Jc (C colors x |F| rows)
// into J's fixed pattern using coloring, implementing §4.2 step 6. get(k,
// i) must return Jc[k][i] = ∂F_i/∂u · S[:,k].
func (m *Matrix) Uncompress(coloring []int, get func(color, row int) float64) {
	switch m.Layout {
	case CSR:
		for r := 0; r < m.Rows; r++ {
			for k := m.Ptr[r]; k < m.Ptr[r+1]; k++ {
				col := m.Idx[k]
				m.Data[k] = get(coloring[col], r)
			}
		}
	case CSC:
		for c := 0; c < m.Cols; c++ {
			for k := m.Ptr[c]; k < m.Ptr[c+1]; k++ {
				row := m.Idx[k]
				m.Data[k] = get(coloring[c], row)
			}
		}
	}
}

// Dense materializes the matrix into a row-major dense slice, used by the
// block-Jacobi extraction step (§4.3) and by tests comparing against a
// finite-difference Jacobian (§8).
func (m *Matrix) Dense() [][]float64 {
	out := make([][]float64, m.Rows)
	for i := range out {
		out[i] = make([]float64, m.Cols)
	}
	switch m.Layout {
	case CSR:
		for r := 0; r < m.Rows; r++ {
			for k := m.Ptr[r]; k < m.Ptr[r+1]; k++ {
				out[r][m.Idx[k]] = m.Data[k]
			}
		}
	case CSC:
		for c := 0; c < m.Cols; c++ {
			for k := m.Ptr[c]; k < m.Ptr[c+1]; k++ {
				out[m.Idx[k]][c] = m.Data[k]
			}
		}
	}
	return out
}
