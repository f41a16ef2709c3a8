package linsolve

import (
	"fmt"

	"github.com/edp1096/sparse"

	"github.com/voltgrid/pflow/pkg/spmat"
)

// solveDirect is the "default" solver_kind (§6): a sparse direct LU
// factorization of J via edp1096/sparse, the same backend toy-spice's
// CircuitMatrix wraps for its MNA system. J's nonzero pattern is
// restamped into a fresh sparse.Matrix on every call because §4.4
// never promises the pattern is shared across calls to Solve with
// different J instances.
func solveDirect(j *spmat.Matrix, b []float64) (Result, error) {
	n := j.Rows
	if n != j.Cols {
		return Result{}, fmt.Errorf("linsolve: direct solver requires a square matrix, got %dx%d", j.Rows, j.Cols)
	}
	if len(b) != n {
		return Result{}, fmt.Errorf("linsolve: rhs length %d does not match matrix size %d", len(b), n)
	}

	config := &sparse.Configuration{
		Real:           true,
		Complex:        false,
		Expandable:     true,
		Translate:      false,
		ModifiedNodal:  false,
		TiesMultiplier: 5,
		PrinterWidth:   140,
	}
	m, err := sparse.Create(int64(n), config)
	if err != nil {
		return Result{}, fmt.Errorf("linsolve: create: %w", err)
	}

	dense := j.Dense()
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if v := dense[r][c]; v != 0 {
				m.GetElement(int64(r+1), int64(c+1)).Real += v
			}
		}
	}

	if err := m.Factor(); err != nil {
		return Result{}, fmt.Errorf("linsolve: factor: %w", err)
	}

	rhs := make([]float64, n+1) // 1-based
	for i := 0; i < n; i++ {
		rhs[i+1] = b[i]
	}
	sol, err := m.Solve(rhs)
	if err != nil {
		return Result{}, fmt.Errorf("linsolve: solve: %w", err)
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = sol[i+1]
	}
	return Result{X: x, Iters: 1}, nil
}
