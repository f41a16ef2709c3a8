// Package precond builds the block-Jacobi preconditioner of §4.3: a
// graph partition of J's symmetric adjacency, dense diagonal blocks
// extracted from J and inverted by LU, and a linear operator applying
// the block inverses to a vector.
//
// The partitioner is grounded on katalvlaran/lvlath's graph.BFS --
// layering a BFS traversal of (J+Jᵀ)'s adjacency into B contiguous
// bands is the "simple contiguous partition for tests" §4.3 explicitly
// allows in place of a Metis-style recursive bisection.
package precond

import (
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/voltgrid/pflow/pkg/pferr"
	"github.com/voltgrid/pflow/pkg/spmat"

	"github.com/katalvlaran/lvlath/graph"
)

// Block is one diagonal block of the preconditioner: the row indices
// it covers (into J's row space) and the dense inverse of J restricted
// to those rows and columns.
type Block struct {
	Rows []int
	Inv  *mat.Dense
}

// Preconditioner is the block-Jacobi operator P⁻¹ (§4.3). It is built
// once per linear solver instance from J's pattern and may be
// refactorized against later J values sharing that pattern (Update).
type Preconditioner struct {
	Blocks []Block
}

// Build partitions J's symmetric adjacency into nBlocks contiguous
// bands via BFS layering, extracts each diagonal block, and inverts it
// by LU. Returns pferr.ErrSingularBlock if a block is numerically
// singular, per §7's retry-with-different-partition-count contract.
func Build(j *spmat.Matrix, nBlocks int) (*Preconditioner, error) {
	if nBlocks < 1 {
		nBlocks = 1
	}
	if nBlocks > j.Rows {
		nBlocks = j.Rows
	}

	order := bfsOrder(j)
	blocks := layer(order, nBlocks)

	p := &Preconditioner{Blocks: make([]Block, 0, len(blocks))}
	for _, rows := range blocks {
		dense := extractBlock(j, rows)
		inv := mat.NewDense(len(rows), len(rows), nil)
		if err := inv.Inverse(dense); err != nil {
			return nil, fmt.Errorf("%w: block of size %d: %v", pferr.ErrSingularBlock, len(rows), err)
		}
		p.Blocks = append(p.Blocks, Block{Rows: rows, Inv: inv})
	}
	return p, nil
}

// Update refactorizes every block against the latest numeric values of
// j without changing the partition (§4.3 "Update" -- pattern is
// assumed unchanged). Returns pferr.ErrSingularBlock on the first
// block that fails to invert.
func (p *Preconditioner) Update(j *spmat.Matrix) error {
	for i, b := range p.Blocks {
		dense := extractBlock(j, b.Rows)
		if err := p.Blocks[i].Inv.Inverse(dense); err != nil {
			return fmt.Errorf("%w: block of size %d: %v", pferr.ErrSingularBlock, len(b.Rows), err)
		}
	}
	return nil
}

// Apply computes dst = P⁻¹·src block by block (§4.3 "Application",
// §5 "Block-Jacobi application: independent over blocks"). Each
// block's GEMV runs in its own goroutine via errgroup, since distinct
// blocks touch disjoint rows of dst and never need to synchronize.
func (p *Preconditioner) Apply(dst, src []float64) {
	var g errgroup.Group
	for bi := range p.Blocks {
		b := p.Blocks[bi]
		g.Go(func() error {
			n := len(b.Rows)
			sub := mat.NewVecDense(n, nil)
			for i, r := range b.Rows {
				sub.SetVec(i, src[r])
			}
			out := mat.NewVecDense(n, nil)
			out.MulVec(b.Inv, sub)
			for i, r := range b.Rows {
				dst[r] = out.AtVec(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// extractBlock builds the dense submatrix J[rows, rows]. Blocks are
// small by construction, so going through the layout-agnostic Dense
// accessor rather than walking Ptr/Idx directly keeps this correct for
// both CSC and CSR without duplicating the traversal.
func extractBlock(j *spmat.Matrix, rows []int) *mat.Dense {
	n := len(rows)
	dj := j.Dense()
	dense := mat.NewDense(n, n, nil)
	for li, r := range rows {
		for lj, c := range rows {
			dense.Set(li, lj, dj[r][c])
		}
	}
	return dense
}

// bfsOrder returns a visitation order over J's row set, found by
// breadth-first search of the symmetric adjacency A = (J+Jᵀ) built
// with lvlath's graph package. Rows unreached from vertex 0 (the
// matrix is block-diagonal after a prior partition, or just
// disconnected) are appended afterward in index order so every row is
// covered exactly once.
func bfsOrder(j *spmat.Matrix) []int {
	g := graph.NewGraph(false, false)
	for i := 0; i < j.Rows; i++ {
		g.AddVertex(&graph.Vertex{ID: strconv.Itoa(i)})
	}
	addAdjacency(g, j)

	visited := make([]bool, j.Rows)
	order := make([]int, 0, j.Rows)
	if j.Rows > 0 {
		res, err := g.BFS("0", nil)
		if err == nil {
			for _, v := range res.Order {
				idx, convErr := strconv.Atoi(v.ID)
				if convErr == nil {
					order = append(order, idx)
					visited[idx] = true
				}
			}
		}
	}
	for i := 0; i < j.Rows; i++ {
		if !visited[i] {
			order = append(order, i)
		}
	}
	return order
}

func addAdjacency(g *graph.Graph, j *spmat.Matrix) {
	seen := make(map[[2]int]bool)
	add := func(a, b int) {
		if a == b {
			return
		}
		lo, hi := a, b
		if lo > hi {
			lo, hi = hi, lo
		}
		key := [2]int{lo, hi}
		if seen[key] {
			return
		}
		seen[key] = true
		g.AddEdge(strconv.Itoa(lo), strconv.Itoa(hi), 1)
	}
	n := j.Rows
	if j.Cols < n {
		n = j.Cols
	}
	for c := 0; c < j.Cols; c++ {
		j.ColNonzeros(c, func(row int) {
			if row < n && c < n {
				add(row, c)
			}
		})
	}
}

// layer splits order into nBlocks contiguous bands of approximately
// equal size (§4.3 step 2).
func layer(order []int, nBlocks int) [][]int {
	n := len(order)
	if nBlocks > n {
		nBlocks = n
	}
	if nBlocks < 1 {
		nBlocks = 1
	}
	blocks := make([][]int, 0, nBlocks)
	base := n / nBlocks
	rem := n % nBlocks
	start := 0
	for b := 0; b < nBlocks; b++ {
		size := base
		if b < rem {
			size++
		}
		blocks = append(blocks, append([]int(nil), order[start:start+size]...))
		start += size
	}
	return blocks
}
