package network

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"
)

func threeBusYbus() []YEntry {
	b12, b13, b23 := 10.0, 8.0, 12.0
	g := 0.01
	return []YEntry{
		{0, 0, complex(2*g, -(b12 + b13))},
		{0, 1, complex(-g, b12)},
		{0, 2, complex(-g, b13)},
		{1, 0, complex(-g, b12)},
		{1, 1, complex(2*g, -(b12 + b23))},
		{1, 2, complex(-g, b23)},
		{2, 0, complex(-g, b13)},
		{2, 1, complex(-g, b23)},
		{2, 2, complex(2*g, -(b13 + b23))},
	}
}

func TestNewBuildsValidNetwork(t *testing.T) {
	sbus := []complex128{0, 0.5, complex(-0.3, -0.1)}
	v0 := []complex128{1, 1, 1}

	net, err := New(3, threeBusYbus(), []int{0}, []int{1}, []int{2}, sbus, v0)
	require.NoError(t, err)
	require.Equal(t, 3, net.NBus)
	require.InDelta(t, 0.5, net.Pinj[1], 1e-15)
	require.InDelta(t, -0.1, net.Qinj[2], 1e-15)
	require.InDelta(t, 1.0, net.Vm0[0], 1e-15)
}

func TestYreYimRecombineToYbus(t *testing.T) {
	sbus := []complex128{0, 0, 0}
	v0 := []complex128{1, 1, 1}
	net, err := New(3, threeBusYbus(), []int{0}, []int{1}, []int{2}, sbus, v0)
	require.NoError(t, err)

	dense := net.Yre.Dense()
	denseIm := net.Yim.Dense()
	for _, e := range threeBusYbus() {
		got := complex(dense[e.Row][e.Col], denseIm[e.Row][e.Col])
		require.InDelta(t, real(e.Value), real(got), 1e-12)
		require.InDelta(t, imag(e.Value), imag(got), 1e-12)
	}
}

func TestNewRejectsOverlappingPartition(t *testing.T) {
	sbus := []complex128{0, 0, 0}
	v0 := []complex128{1, 1, 1}
	_, err := New(3, threeBusYbus(), []int{0}, []int{0}, []int{2}, sbus, v0)
	require.Error(t, err)
}

func TestNewRejectsIncompletePartition(t *testing.T) {
	sbus := []complex128{0, 0, 0}
	v0 := []complex128{1, 1, 1}
	_, err := New(3, threeBusYbus(), []int{0}, []int{1}, nil, sbus, v0)
	require.Error(t, err)
}

func TestNewRejectsAsymmetricPattern(t *testing.T) {
	sbus := []complex128{0, 0, 0}
	v0 := []complex128{1, 1, 1}
	entries := threeBusYbus()
	// Drop the (1,0) entry so the pattern is no longer symmetric.
	asym := make([]YEntry, 0, len(entries))
	for _, e := range entries {
		if e.Row == 1 && e.Col == 0 {
			continue
		}
		asym = append(asym, e)
	}
	_, err := New(3, asym, []int{0}, []int{1}, []int{2}, sbus, v0)
	require.Error(t, err)
}

func TestNewRejectsNonFiniteInjection(t *testing.T) {
	sbus := []complex128{0, complex(math.Inf(1), 0), 0}
	v0 := []complex128{1, 1, 1}
	_, err := New(3, threeBusYbus(), []int{0}, []int{1}, []int{2}, sbus, v0)
	require.Error(t, err)
}

func TestNewRejectsNonFiniteVoltage(t *testing.T) {
	sbus := []complex128{0, 0, 0}
	v0 := []complex128{1, cmplx.NaN(), 1}
	_, err := New(3, threeBusYbus(), []int{0}, []int{1}, []int{2}, sbus, v0)
	require.Error(t, err)
}
