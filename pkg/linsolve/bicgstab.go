package linsolve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/voltgrid/pflow/internal/consts"
	"github.com/voltgrid/pflow/pkg/pferr"
	"github.com/voltgrid/pflow/pkg/precond"
	"github.com/voltgrid/pflow/pkg/spmat"
)

// bicgstab is van der Vorst's BiConjugate Gradient Stabilized method
// with right preconditioning (§4.4), grounded on the recurrence in
// vladimir-ch-iterative's BiCGStab.Iterate but written as a direct
// imperative loop rather than that package's reverse-communication
// state machine, since this solver only ever needs to drive one kind
// of matrix operator (a fixed-pattern spmat.Matrix). A nil
// preconditioner behaves as the identity, giving the unpreconditioned
// bicgstab_ref cross-check variant for free.
func bicgstab(j *spmat.Matrix, b []float64, p *precond.Preconditioner, tol float64, maxIters int) (Result, error) {
	n := j.Rows
	if maxIters <= 0 {
		maxIters = 2 * n
	}
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		bnorm = 1
	}

	x := make([]float64, n)
	r := append([]float64(nil), b...) // r = b - J*x0, x0 = 0
	rTilde := append([]float64(nil), r...)

	if floats.Norm(r, 2)/bnorm < tol {
		return Result{X: x, Iters: 0}, nil
	}

	p_ := make([]float64, n)
	v := make([]float64, n)
	var rho, rhoPrev, alpha, omega float64

	pHat := make([]float64, n)
	sHat := make([]float64, n)
	s := make([]float64, n)
	t := make([]float64, n)

	apply := func(dst, src []float64) {
		if p == nil {
			copy(dst, src)
			return
		}
		p.Apply(dst, src)
	}

	for iter := 1; iter <= maxIters; iter++ {
		rho = floats.Dot(rTilde, r)
		if math.Abs(rho) < consts.BreakdownEps*(floats.Norm(rTilde, 2)*floats.Norm(r, 2)+consts.BreakdownEps) {
			return Result{}, fmt.Errorf("%w: rho breakdown at iteration %d", pferr.ErrLinearSolverBreakdown, iter)
		}
		if iter == 1 {
			copy(p_, r)
		} else {
			beta := (rho / rhoPrev) * (alpha / omega)
			floats.AddScaled(p_, -omega, v) // p -= omega*v
			floats.Scale(beta, p_)
			floats.Add(p_, r)
		}

		apply(pHat, p_)
		j.MatVec(v, pHat)

		alpha = rho / floats.Dot(rTilde, v)
		copy(s, r)
		floats.AddScaled(s, -alpha, v)

		if floats.Norm(s, 2)/bnorm < tol {
			floats.AddScaled(x, alpha, pHat)
			return Result{X: x, Iters: iter}, nil
		}

		apply(sHat, s)
		j.MatVec(t, sHat)

		tt := floats.Dot(t, t)
		if tt == 0 {
			return Result{}, fmt.Errorf("%w: omega breakdown at iteration %d", pferr.ErrLinearSolverBreakdown, iter)
		}
		omega = floats.Dot(t, s) / tt

		floats.AddScaled(x, alpha, pHat)
		floats.AddScaled(x, omega, sHat)

		copy(r, s)
		floats.AddScaled(r, -omega, t)

		if floats.Norm(r, 2)/bnorm < tol {
			return Result{X: x, Iters: iter}, nil
		}
		if math.Abs(omega) < consts.BreakdownEps {
			return Result{}, fmt.Errorf("%w: omega breakdown at iteration %d", pferr.ErrLinearSolverBreakdown, iter)
		}
		rhoPrev = rho
	}
	return Result{}, fmt.Errorf("%w: iteration limit %d reached", pferr.ErrLinearSolverBreakdown, maxIters)
}
