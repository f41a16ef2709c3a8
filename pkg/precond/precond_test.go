package precond

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltgrid/pflow/pkg/spmat"
)

// diagDominant builds an n x n tridiagonal sparse matrix that is
// diagonally dominant (and hence invertible on any contiguous block),
// the same fixture as spd in the linsolve package tests.
func diagDominant(n int) *spmat.Matrix {
	entries := make([]spmat.Entry, 0, 3*n)
	for i := 0; i < n; i++ {
		entries = append(entries, spmat.Entry{Row: i, Col: i})
		if i+1 < n {
			entries = append(entries, spmat.Entry{Row: i, Col: i + 1})
			entries = append(entries, spmat.Entry{Row: i + 1, Col: i})
		}
	}
	m := spmat.New(spmat.CSC, n, n, entries)
	for i := 0; i < n; i++ {
		_ = m.Add(i, i, 4.0)
		if i+1 < n {
			_ = m.Add(i, i+1, -1.0)
			_ = m.Add(i+1, i, -1.0)
		}
	}
	return m
}

func TestBuildCoversEveryRowExactlyOnce(t *testing.T) {
	m := diagDominant(9)
	p, err := Build(m, 3)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, b := range p.Blocks {
		for _, r := range b.Rows {
			require.False(t, seen[r], "row %d covered by more than one block", r)
			seen[r] = true
		}
	}
	require.Len(t, seen, 9)
}

func TestBlockInverseRoundTrips(t *testing.T) {
	m := diagDominant(12)
	p, err := Build(m, 4)
	require.NoError(t, err)

	for _, b := range p.Blocks {
		n := len(b.Rows)
		dense := mat2D(m, b.Rows)
		// Pb * Pb^-1 == I to within 1e-9, per §8.
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				var sum float64
				for k := 0; k < n; k++ {
					sum += dense[i][k] * b.Inv.At(k, j)
				}
				want := 0.0
				if i == j {
					want = 1.0
				}
				require.InDelta(t, want, sum, 1e-9)
			}
		}
	}
}

func mat2D(m *spmat.Matrix, rows []int) [][]float64 {
	dj := m.Dense()
	n := len(rows)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range rows {
			out[i][j] = dj[rows[i]][rows[j]]
		}
	}
	return out
}

func TestApplyMatchesExactSolveWhenOneBlockCoversWholeMatrix(t *testing.T) {
	m := diagDominant(6)
	p, err := Build(m, 1)
	require.NoError(t, err)

	b := make([]float64, 6)
	for i := range b {
		b[i] = float64(i + 1)
	}
	x := make([]float64, 6)
	p.Apply(x, b)

	// Check J*x ~= b exactly, since the single block's inverse is J^-1.
	got := make([]float64, 6)
	m.MatVec(got, x)
	for i := range b {
		require.InDelta(t, b[i], got[i], 1e-9)
	}
}

func TestUpdateRefactorizesWithoutChangingPartition(t *testing.T) {
	m := diagDominant(8)
	p, err := Build(m, 2)
	require.NoError(t, err)
	before := make([][]int, len(p.Blocks))
	for i, b := range p.Blocks {
		before[i] = append([]int(nil), b.Rows...)
	}

	for i := 0; i < 8; i++ {
		_ = m.Add(i, i, 1.0) // perturb diagonal values, not the pattern
	}
	require.NoError(t, p.Update(m))

	for i, b := range p.Blocks {
		require.Equal(t, before[i], b.Rows)
	}
}

func TestBuildClampsBlockCountToMatrixSize(t *testing.T) {
	m := diagDominant(2)
	p, err := Build(m, 100)
	require.NoError(t, err)
	require.LessOrEqual(t, len(p.Blocks), 2)

	total := 0
	for _, b := range p.Blocks {
		total += len(b.Rows)
	}
	require.Equal(t, 2, total)
}

func TestBuildRejectsSingularBlock(t *testing.T) {
	entries := []spmat.Entry{{Row: 0, Col: 0}, {Row: 1, Col: 1}}
	m := spmat.New(spmat.CSC, 2, 2, entries)
	// Both diagonal entries left at zero: the single 2x2 block is the
	// zero matrix, which is singular.
	_, err := Build(m, 1)
	require.Error(t, err)
}

func TestBfsOrderCoversDisconnectedRows(t *testing.T) {
	// Four isolated rows (diagonal-only pattern); bfsOrder must still
	// visit every row even though rows 1-3 are unreachable from row 0.
	entries := []spmat.Entry{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	m := spmat.New(spmat.CSC, 4, 4, entries)
	for i := 0; i < 4; i++ {
		_ = m.Add(i, i, 1.0)
	}
	order := bfsOrder(m)
	require.Len(t, order, 4)
	seen := make(map[int]bool)
	for _, r := range order {
		seen[r] = true
	}
	for i := 0; i < 4; i++ {
		require.True(t, seen[i])
	}
}
