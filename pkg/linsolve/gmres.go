package linsolve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"

	"github.com/voltgrid/pflow/internal/consts"
	"github.com/voltgrid/pflow/pkg/pferr"
	"github.com/voltgrid/pflow/pkg/precond"
	"github.com/voltgrid/pflow/pkg/spmat"
)

// givens is one Givens rotation applied to the upper Hessenberg matrix
// built by Arnoldi iteration.
type givens struct{ c, s float64 }

func drotg(a, b float64) givens {
	if b == 0 {
		return givens{c: 1, s: 0}
	}
	if math.Abs(b) > math.Abs(a) {
		tmp := -a / b
		s := 1 / math.Sqrt(1+tmp*tmp)
		return givens{c: tmp * s, s: s}
	}
	tmp := -b / a
	c := 1 / math.Sqrt(1+tmp*tmp)
	return givens{c: c, s: tmp * c}
}

func (g givens) rotate(x, y float64) (rx, ry float64) {
	return g.c*x - g.s*y, g.s*x + g.c*y
}

// gmres is restarted GMRES(m) with modified Gram-Schmidt and Givens
// rotations (§4.4), grounded on vladimir-ch-iterative's GMRES.Iterate
// but unrolled into a direct loop instead of that package's
// resume-state machine.
func gmres(j *spmat.Matrix, b []float64, p *precond.Preconditioner, tol float64, maxIters, restart int) (Result, error) {
	n := j.Rows
	if maxIters <= 0 {
		maxIters = 2 * n
	}
	if restart <= 0 || restart > n {
		restart = n
		if restart > 30 {
			restart = 30
		}
	}
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		bnorm = 1
	}

	apply := func(dst, src []float64) {
		if p == nil {
			copy(dst, src)
			return
		}
		p.Apply(dst, src)
	}

	x := make([]float64, n)
	totalIters := 0

	for cycle := 0; ; cycle++ {
		r := make([]float64, n)
		j.MatVec(r, x)
		floats.AddScaledTo(r, b, -1, r) // r = b - J*x

		rnorm := floats.Norm(r, 2)
		if rnorm/bnorm < tol {
			return Result{X: x, Iters: totalIters}, nil
		}
		if totalIters >= maxIters {
			return Result{}, fmt.Errorf("%w: iteration limit %d reached", pferr.ErrLinearSolverBreakdown, maxIters)
		}

		v := make([][]float64, restart+1)
		for i := range v {
			v[i] = make([]float64, n)
		}
		copy(v[0], r)
		floats.Scale(1/rnorm, v[0])

		h := make([][]float64, restart+1)
		for i := range h {
			h[i] = make([]float64, restart)
		}
		givs := make([]givens, restart)
		s := make([]float64, restart+1)
		s[0] = rnorm

		var m int
		for m = 0; m < restart; m++ {
			totalIters++

			var w, av []float64
			av = make([]float64, n)
			apply(av, v[m])
			w = make([]float64, n)
			j.MatVec(w, av)

			for k := 0; k <= m; k++ {
				h[k][m] = floats.Dot(v[k], w)
				floats.AddScaled(w, -h[k][m], v[k])
			}
			wnorm := floats.Norm(w, 2)
			h[m+1][m] = wnorm
			if wnorm > consts.BreakdownEps {
				copy(v[m+1], w)
				floats.Scale(1/wnorm, v[m+1])
			}

			for k := 0; k < m; k++ {
				h[k][m], h[k+1][m] = givs[k].rotate(h[k][m], h[k+1][m])
			}
			givs[m] = drotg(h[m][m], h[m+1][m])
			h[m][m], h[m+1][m] = givs[m].rotate(h[m][m], h[m+1][m])
			s[m], s[m+1] = givs[m].rotate(s[m], s[m+1])

			if math.Abs(s[m+1])/bnorm < tol || totalIters >= maxIters {
				m++
				break
			}
		}

		// Back-substitute H*y = s for the upper-triangular part built so
		// far via blas64's Dtrsv (as vladimir-ch-iterative's GMRES does),
		// then correct x by the Krylov-space combination, applying the
		// preconditioner once more per accumulated direction.
		y := make([]float64, m)
		copy(y, s[:m])
		hFlat := make([]float64, m*m)
		for i := 0; i < m; i++ {
			for k := i; k < m; k++ {
				hFlat[i*m+k] = h[i][k]
			}
		}
		blas64.Implementation().Dtrsv(blas.Upper, blas.NoTrans, blas.NonUnit, m, hFlat, m, y, 1)
		for i := 0; i < m; i++ {
			z := make([]float64, n)
			apply(z, v[i])
			floats.AddScaled(x, y[i], z)
		}

		final := make([]float64, n)
		j.MatVec(final, x)
		floats.AddScaledTo(final, b, -1, final)
		if floats.Norm(final, 2)/bnorm < tol {
			return Result{X: x, Iters: totalIters}, nil
		}
		if totalIters >= maxIters {
			return Result{}, fmt.Errorf("%w: iteration limit %d reached", pferr.ErrLinearSolverBreakdown, maxIters)
		}
	}
}
