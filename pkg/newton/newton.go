// Package newton implements the outer nonlinear loop of §4.5: evaluate
// F, evaluate J by AD, solve the linear correction, update the state,
// and renormalize, until ‖F‖∞ falls below tolerance or the iteration
// budget is exhausted.
//
// Grounded on toy-spice's pkg/analysis/op.go doNRiter, which drives
// the same evaluate-solve-update-check loop around a device-stamped
// matrix; here the matrix comes from package jacobian instead of
// device stamps, and the linear solve is pluggable (package linsolve)
// instead of always being the direct backend.
package newton

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/voltgrid/pflow/internal/consts"
	"github.com/voltgrid/pflow/pkg/dual"
	"github.com/voltgrid/pflow/pkg/jacobian"
	"github.com/voltgrid/pflow/pkg/linsolve"
	"github.com/voltgrid/pflow/pkg/network"
	"github.com/voltgrid/pflow/pkg/pferr"
	"github.com/voltgrid/pflow/pkg/precond"
	"github.com/voltgrid/pflow/pkg/residual"
	"github.com/voltgrid/pflow/pkg/spmat"
	"github.com/voltgrid/pflow/pkg/util"
)

// Observer is an optional per-iteration callback (§9 allows the
// caller to inspect intermediate state without changing the solve).
type Observer func(iter int, residualNorm float64)

// Options configures a single solve() call (§6's outbound operation).
type Options struct {
	Tol         float64 // default consts.DefaultTol
	MaxIters    int     // default consts.DefaultMaxIter
	NPartitions int     // default consts.DefaultPartitions
	SolverKind  string  // default "default"
	Observer    Observer
}

func (o Options) withDefaults() Options {
	if o.Tol <= 0 {
		o.Tol = consts.DefaultTol
	}
	if o.MaxIters <= 0 {
		o.MaxIters = consts.DefaultMaxIter
	}
	if o.NPartitions <= 0 {
		o.NPartitions = consts.DefaultPartitions
	}
	if o.SolverKind == "" {
		o.SolverKind = "default"
	}
	return o
}

// Result is the outbound record of §6: V, converged, residual_norm,
// first_linsolve_iters, total_linsolve_iters. Diverged is a field, not
// an error (§7).
type Result struct {
	V                  []complex128
	Converged          bool
	Diverged           bool
	ResidualNorm       float64
	Iterations         int
	FirstLinsolveIters int
	TotalLinsolveIters int
}

// Solve runs the Newton loop of §4.5 to find a power-flow solution for
// net, using the state Jacobian flavor and the solver named by
// opts.SolverKind.
func Solve(net *network.Network, opts Options) (Result, error) {
	opts = opts.withDefaults()
	switch opts.SolverKind {
	case "default", "bicgstab", "bicgstab_ref", "gmres":
	default:
		return Result{}, fmt.Errorf("newton: %w: %q", pferr.ErrUnknownSolverKind, opts.SolverKind)
	}
	ix := net.Indexing()

	vm := append([]float64(nil), net.Vm0...)
	va := append([]float64(nil), net.Va0...)

	vars := jacobian.StateMap(ix)
	jac := jacobian.New(spmat.CSC, ix, vars, net.Yre)

	var prec *precond.Preconditioner
	needsPrecond := opts.SolverKind == "bicgstab" || opts.SolverKind == "gmres"

	result := Result{}
	dst := make([]dual.Real, ix.Len())
	lift := func(v float64) dual.Real { return dual.Real(v) }
	pinjR := toReal(net.Pinj)
	qinjR := toReal(net.Qinj)

	for iter := 0; ; iter++ {
		vmR, vaR := toReal(vm), toReal(va)
		if err := residual.Evaluate(dst, vmR, vaR, net.Yre, net.Yim, pinjR, qinjR, ix, lift); err != nil {
			return Result{}, fmt.Errorf("newton: residual evaluation: %w", err)
		}
		fnorm := infNorm(dst)
		if opts.Observer != nil {
			opts.Observer(iter, fnorm)
		}
		if !isFinite(fnorm) {
			return Result{}, pferr.ErrNonFiniteState
		}

		if fnorm < opts.Tol {
			result.Converged = true
			result.ResidualNorm = fnorm
			result.Iterations = iter
			result.V = reconstitute(vm, va)
			return result, nil
		}

		if iter >= opts.MaxIters {
			result.Diverged = true
			result.ResidualNorm = fnorm
			result.Iterations = iter
			result.V = reconstitute(vm, va)
			return result, nil
		}

		pinjF := make([]float64, ix.NBus)
		qinjF := make([]float64, ix.NBus)
		copy(pinjF, net.Pinj)
		copy(qinjF, net.Qinj)
		if err := jac.Compute(vm, va, pinjF, qinjF, net.Yre, net.Yim, ix); err != nil {
			return Result{}, fmt.Errorf("newton: jacobian evaluation: %w", err)
		}

		if needsPrecond {
			var err error
			if prec == nil {
				prec, err = precond.Build(jac.J, opts.NPartitions)
			} else {
				err = prec.Update(jac.J)
			}
			if err != nil {
				return Result{}, err
			}
		}

		rhs := make([]float64, len(dst))
		for i, d := range dst {
			rhs[i] = float64(d)
		}

		innerTol := math.Max(consts.MinInnerTol, consts.InnerTolFactor*opts.Tol)
		linRes, err := linsolve.Solve(opts.SolverKind, jac.J, rhs, linsolve.Options{
			Tol:            innerTol,
			MaxIters:       2 * len(rhs),
			Preconditioner: prec,
		})
		if err != nil {
			result.Diverged = true
			result.ResidualNorm = fnorm
			result.Iterations = iter
			result.V = reconstitute(vm, va)
			return result, nil
		}

		if iter == 0 {
			result.FirstLinsolveIters = linRes.Iters
		}
		result.TotalLinsolveIters += linRes.Iters

		// Negate dx (§4.4 "Ordering": solver returns x s.t. J*x = F, the
		// driver negates before updating).
		dx := linRes.X
		for i := range dx {
			dx[i] = -dx[i]
		}

		applyUpdate(vars, dx, vm, va)

		var rerr error
		vm, va, rerr = renormalize(vm, va)
		if rerr != nil {
			return Result{}, pferr.ErrNonFiniteState
		}
	}
}

// applyUpdate writes dx back into (vm, va) following the reduced-state
// map's column order (§4.5 step 4): Va[pv], Va[pq], then Vm[pq].
func applyUpdate(vars jacobian.Map, dx, vm, va []float64) {
	for col, v := range vars.Vars {
		switch v.Qty {
		case jacobian.Va:
			va[v.Bus] += dx[col]
		case jacobian.Vm:
			vm[v.Bus] += dx[col]
		}
	}
}

// renormalize reconstitutes V = Vm*exp(j*Va), then recomputes Vm, Va
// from V (§4.5 step 5) -- idempotent in exact arithmetic, it stabilizes
// round-off in iterated polar/rectangular conversions.
func renormalize(vm, va []float64) (newVm, newVa []float64, err error) {
	n := len(vm)
	newVm = make([]float64, n)
	newVa = make([]float64, n)
	for i := 0; i < n; i++ {
		v := cmplx.Rect(vm[i], va[i])
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return nil, nil, fmt.Errorf("newton: state became non-finite at bus %d", i)
		}
		newVm[i] = cmplx.Abs(v)
		newVa[i] = cmplx.Phase(v)
	}
	return newVm, newVa, nil
}

func reconstitute(vm, va []float64) []complex128 {
	v := make([]complex128, len(vm))
	for i := range v {
		v[i] = cmplx.Rect(vm[i], va[i])
	}
	return v
}

func toReal(xs []float64) []dual.Real {
	out := make([]dual.Real, len(xs))
	for i, x := range xs {
		out[i] = dual.Real(x)
	}
	return out
}

func infNorm(xs []dual.Real) float64 {
	var m float64
	for _, x := range xs {
		v := math.Abs(float64(x))
		if v > m {
			m = v
		}
	}
	return m
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Sensitivity exposes the design Jacobian ∂F/∂u at the given converged
// state V, for the outer optimizer (§6: "may also request ∂F/∂u").
func Sensitivity(net *network.Network, v []complex128) (*spmat.Matrix, error) {
	if len(v) != net.NBus {
		return nil, fmt.Errorf("newton: V has length %d, want %d", len(v), net.NBus)
	}
	ix := net.Indexing()
	vars := jacobian.DesignMap(ix, net.Ref)
	jac := jacobian.New(spmat.CSC, ix, vars, net.Yre)

	vm := make([]float64, net.NBus)
	va := make([]float64, net.NBus)
	for i, c := range v {
		vm[i] = cmplx.Abs(c)
		va[i] = cmplx.Phase(c)
	}

	if err := jac.Compute(vm, va, net.Pinj, net.Qinj, net.Yre, net.Yim, ix); err != nil {
		return nil, fmt.Errorf("newton: design jacobian evaluation: %w", err)
	}
	return jac.J, nil
}

// Report renders each bus voltage of a Result as "busN=vm<vadeg"
// (package util), for callers that want a quick human-readable dump
// without wiring up a logger.
func (r Result) Report() []string {
	lines := make([]string, len(r.V))
	for i, v := range r.V {
		lines[i] = util.BusVoltage(i, cmplx.Abs(v), cmplx.Phase(v))
	}
	return lines
}
