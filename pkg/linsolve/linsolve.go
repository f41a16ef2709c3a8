// Package linsolve is the iterative/direct linear-solver layer of §4.4:
// given J·x = b it returns x and the iteration count, or an
// iteration-limit / breakdown error. A solver_kind string selects
// among a direct LU backend and two Krylov methods, matching the
// outbound contract of §6.
package linsolve

import (
	"fmt"

	"github.com/voltgrid/pflow/pkg/pferr"
	"github.com/voltgrid/pflow/pkg/precond"
	"github.com/voltgrid/pflow/pkg/spmat"
)

// Result mirrors the (x, iters) pair §4.4 asks solve() to return.
type Result struct {
	X     []float64
	Iters int
}

// Options configures a single linear solve. Tol and MaxIters follow
// §4.5's tolerance policy (the Newton driver sets Tol to
// max(1e-8, 0.1*outerTol)); Preconditioner may be nil, in which case
// bicgstab/gmres run unpreconditioned.
type Options struct {
	Tol           float64
	MaxIters      int
	Preconditioner *precond.Preconditioner
}

// Solve dispatches to the named method (§6 solver_kind): "default"
// wraps the direct LU backend, "bicgstab" and "gmres" are the two
// preconditioned Krylov methods of §4.4, and "bicgstab_ref" is an
// unpreconditioned BiCGSTAB kept as a cross-check variant (it never
// consults opts.Preconditioner even if one is supplied). Any other
// string is rejected with pferr.ErrUnknownSolverKind.
func Solve(kind string, j *spmat.Matrix, b []float64, opts Options) (Result, error) {
	switch kind {
	case "default", "":
		return solveDirect(j, b)
	case "bicgstab":
		return bicgstab(j, b, opts.Preconditioner, opts.Tol, opts.MaxIters)
	case "bicgstab_ref":
		return bicgstab(j, b, nil, opts.Tol, opts.MaxIters)
	case "gmres":
		return gmres(j, b, opts.Preconditioner, opts.Tol, opts.MaxIters, 0)
	default:
		return Result{}, fmt.Errorf("%w: %q", pferr.ErrUnknownSolverKind, kind)
	}
}
