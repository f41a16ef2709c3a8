// Package consts holds the numeric defaults shared across the solver
// packages. Keeping them in one place avoids every package inventing its
// own idea of "tight enough".
package consts

const (
	// DefaultTol is the outer Newton tolerance on ||F||∞ (§4.5).
	DefaultTol = 1e-6

	// DefaultMaxIter bounds the outer Newton loop.
	DefaultMaxIter = 30

	// MinInnerTol is the floor applied to the inner linear-solver
	// tolerance regardless of how tight the outer tolerance is.
	MinInnerTol = 1e-8

	// InnerTolFactor scales the outer tolerance down to an inner one:
	// innerTol = max(MinInnerTol, InnerTolFactor*outerTol).
	InnerTolFactor = 0.1

	// DefaultPartitions is the block count used by the block-Jacobi
	// preconditioner when the caller does not pick one.
	DefaultPartitions = 8

	// BreakdownEps gates BiCGSTAB's rho/omega breakdown checks.
	BreakdownEps = 1e-30
)
