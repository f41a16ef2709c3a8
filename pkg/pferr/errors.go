// Package pferr names the error kinds of §7 as sentinel values, following
// the package-prefixed sentinel convention in
// katalvlaran/lvlath's gridgraph/errors.go and flow/types.go
// (ErrEmptyGrid, ErrSourceNotFound, ...). `diverged` is deliberately not
// here: §7 makes it a field on the Newton result record, never an error
// value, so it has no sentinel.
package pferr

import "errors"

var (
	// ErrInvalidNetwork: a structural precondition was violated at
	// assembly time (§7). No resources are allocated past this point.
	ErrInvalidNetwork = errors.New("pflow: invalid network")

	// ErrSingularBlock: a block-Jacobi block could not be inverted;
	// preconditioner construction fails and the caller must retry with a
	// different partition count (§7).
	ErrSingularBlock = errors.New("pflow: singular block")

	// ErrLinearSolverBreakdown: BiCGSTAB/GMRES detected loss of
	// biorthogonality or exhausted its iteration budget (§7). The Newton
	// driver turns this into a diverged result; it is not surfaced to
	// the outer caller as an error by itself.
	ErrLinearSolverBreakdown = errors.New("pflow: linear solver breakdown")

	// ErrNonFiniteState: V became NaN/Inf mid-iteration (§7).
	ErrNonFiniteState = errors.New("pflow: non-finite state")

	// ErrUnknownSolverKind: solve() was asked for a solver_kind string
	// not listed in §6.
	ErrUnknownSolverKind = errors.New("pflow: unknown solver kind")
)
