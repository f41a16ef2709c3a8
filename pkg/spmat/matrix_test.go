package spmat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleEntries() []Entry {
	// [2 1 0]
	// [1 2 1]
	// [0 1 2]
	return []Entry{
		{0, 0}, {0, 1},
		{1, 0}, {1, 1}, {1, 2},
		{2, 1}, {2, 2},
	}
}

func TestMatVecAgreesAcrossLayouts(t *testing.T) {
	entries := sampleEntries()
	csc := New(CSC, 3, 3, entries)
	csr := New(CSR, 3, 3, entries)

	vals := map[[2]int]float64{
		{0, 0}: 2, {0, 1}: 1,
		{1, 0}: 1, {1, 1}: 2, {1, 2}: 1,
		{2, 1}: 1, {2, 2}: 2,
	}
	for rc, v := range vals {
		require.NoError(t, csc.Add(rc[0], rc[1], v))
		require.NoError(t, csr.Add(rc[0], rc[1], v))
	}

	src := []float64{1, 2, 3}
	var dstCSC, dstCSR [3]float64
	csc.MatVec(dstCSC[:], src)
	csr.MatVec(dstCSR[:], src)

	require.InDeltaSlice(t, dstCSC[:], dstCSR[:], 1e-12)
	require.Equal(t, []float64{4, 8, 8}, dstCSC[:])
}

func TestSameZeroDetectsPatternChange(t *testing.T) {
	a := New(CSC, 3, 3, sampleEntries())
	b := New(CSC, 3, 3, sampleEntries())
	require.True(t, SameZero(a, b))

	a.Data[0] = 42 // value-only mutation must not affect pattern equality
	require.True(t, SameZero(a, b))

	c := New(CSC, 3, 3, append(sampleEntries(), Entry{0, 2}))
	require.False(t, SameZero(a, c))
}

func TestAddRejectsOutsidePattern(t *testing.T) {
	m := New(CSC, 3, 3, sampleEntries())
	require.Error(t, m.Add(0, 2, 1))
}

func TestUncompressScatter(t *testing.T) {
	// Column 0 and column 2 share color 0 (disjoint row supports in this
	// pattern is not actually true here, but Uncompress itself doesn't
	// verify coloring validity -- that's jacobian.Color's job).
	m := New(CSC, 3, 3, sampleEntries())
	coloring := []int{0, 1, 0}
	jc := [][]float64{
		{10, 20, 30}, // color 0
		{40, 50, 60}, // color 1
	}
	m.Uncompress(coloring, func(color, row int) float64 { return jc[color][row] })

	dense := m.Dense()
	require.Equal(t, 10.0, dense[0][0])
	require.Equal(t, 50.0, dense[1][1])
	require.Equal(t, 30.0, dense[2][2])
}

func TestRowColNonzeros(t *testing.T) {
	m := New(CSC, 3, 3, sampleEntries())
	var cols []int
	m.RowNonzeros(1, func(c int) { cols = append(cols, c) })
	require.ElementsMatch(t, []int{0, 1, 2}, cols)

	var rows []int
	m.ColNonzeros(1, func(r int) { rows = append(rows, r) })
	require.ElementsMatch(t, []int{0, 1, 2}, rows)
}
