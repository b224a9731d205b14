package codec

import (
	"github.com/ppopth/fountain/gf256"
)

// The solver accumulates received equations and resolves source rows in
// two phases. Peeling substitutes any equation whose unresolved support
// drops to a single row, propagating eagerly through per-column
// reference lists. When peeling stalls, dense Gaussian elimination runs
// over the residual unresolved columns only, which keeps the cubic work
// bounded by the small residual instead of the full n x n system.
//
// Equations live in a flat arena and reference columns by index; the
// column-to-equation lists hold arena indices. No pointers cross the
// records, which keeps the layout friendly to the row-combination loop.

type equation struct {
	cols   []int  // still-unresolved columns, insertion order
	coeffs []byte // coefficient per column, aligned with cols
	data   []byte // right-hand side, mutated as columns resolve
	live   bool
}

type solver struct {
	n         int
	blockSize int

	solved      [][]byte // resolved source rows, nil while unknown
	solvedCount int

	eqs       []equation // arena of pending equations
	colRefs   [][]int32  // per column, arena indices of equations touching it
	liveCount int        // equations still carrying >= 2 unresolved columns
}

func newSolver(n, blockSize int) *solver {
	return &solver{
		n:         n,
		blockSize: blockSize,
		solved:    make([][]byte, n),
		colRefs:   make([][]int32, n),
	}
}

// eqOutcome classifies what addEquation did with a received row.
type eqOutcome int

const (
	eqStored eqOutcome = iota
	eqSolved           // triggered at least one column resolution
	eqDependent
	eqInconsistent
)

// addEquation reduces the received row by already-solved columns and
// either resolves a column immediately, stores the equation as pending,
// or discards it as dependent. data is owned by the solver afterwards.
func (s *solver) addEquation(row generatorRow, data []byte) eqOutcome {
	cols := make([]int, 0, len(row.cols))
	coeffs := make([]byte, 0, len(row.cols))
	for k, c := range row.cols {
		if s.solved[c] != nil {
			gf256.MulAddRow(data, s.solved[c], row.coeffs[k])
		} else {
			cols = append(cols, c)
			coeffs = append(coeffs, row.coeffs[k])
		}
	}

	switch len(cols) {
	case 0:
		for _, b := range data {
			if b != 0 {
				return eqInconsistent
			}
		}
		return eqDependent
	case 1:
		value := make([]byte, s.blockSize)
		gf256.MulAddRow(value, data, gf256.Inv(coeffs[0]))
		s.resolveColumn(cols[0], value)
		return eqSolved
	default:
		idx := int32(len(s.eqs))
		s.eqs = append(s.eqs, equation{cols: cols, coeffs: coeffs, data: data, live: true})
		s.liveCount++
		for _, c := range cols {
			s.colRefs[c] = append(s.colRefs[c], idx)
		}
		return eqStored
	}
}

type resolution struct {
	col   int
	value []byte
}

// resolveColumn records a solved source row and peels eagerly: every
// pending equation referencing the column absorbs the value, and any
// equation left with a single unresolved column resolves in turn.
func (s *solver) resolveColumn(col int, value []byte) {
	work := []resolution{{col: col, value: value}}
	for len(work) > 0 {
		r := work[len(work)-1]
		work = work[:len(work)-1]
		if s.solved[r.col] != nil {
			continue
		}
		s.solved[r.col] = r.value
		s.solvedCount++

		for _, ei := range s.colRefs[r.col] {
			eq := &s.eqs[ei]
			if !eq.live {
				continue
			}
			for k, c := range eq.cols {
				if c == r.col {
					gf256.MulAddRow(eq.data, r.value, eq.coeffs[k])
					last := len(eq.cols) - 1
					eq.cols[k] = eq.cols[last]
					eq.coeffs[k] = eq.coeffs[last]
					eq.cols = eq.cols[:last]
					eq.coeffs = eq.coeffs[:last]
					break
				}
			}
			switch len(eq.cols) {
			case 1:
				next := make([]byte, s.blockSize)
				gf256.MulAddRow(next, eq.data, gf256.Inv(eq.coeffs[0]))
				eq.live = false
				s.liveCount--
				work = append(work, resolution{col: eq.cols[0], value: next})
			case 0:
				eq.live = false
				s.liveCount--
			}
		}
		s.colRefs[r.col] = nil
	}
}

// denseAttempt runs Gaussian elimination over the residual unresolved
// columns using copies of the pending equations. On full residual rank
// it back-substitutes, installs every remaining source row and retires
// the pending set; otherwise solver state is untouched.
func (s *solver) denseAttempt() bool {
	r := s.n - s.solvedCount
	if r == 0 {
		return true
	}
	if s.liveCount < r {
		return false
	}

	// Map the unresolved columns onto a compact index space. A column
	// with no live reference cannot be resolved by elimination.
	unCols := make([]int, 0, r)
	colIdx := make([]int, s.n)
	for c := 0; c < s.n; c++ {
		if s.solved[c] != nil {
			continue
		}
		referenced := false
		for _, ei := range s.colRefs[c] {
			if s.eqs[ei].live {
				referenced = true
				break
			}
		}
		if !referenced {
			return false
		}
		colIdx[c] = len(unCols)
		unCols = append(unCols, c)
	}

	// Copy the live equations into a dense residual matrix.
	var vecs [][]byte
	var rhs [][]byte
	for i := range s.eqs {
		eq := &s.eqs[i]
		if !eq.live {
			continue
		}
		v := make([]byte, r)
		for k, c := range eq.cols {
			v[colIdx[c]] = eq.coeffs[k]
		}
		vecs = append(vecs, v)
		rhs = append(rhs, append([]byte(nil), eq.data...))
	}

	// Forward elimination with the pivot search restricted to the
	// residual; a pivotless column means the system is still singular.
	m := len(vecs)
	rank := 0
	for col := 0; col < r; col++ {
		pivot := -1
		for i := rank; i < m; i++ {
			if vecs[i][col] != 0 {
				pivot = i
				break
			}
		}
		if pivot < 0 {
			return false
		}
		vecs[rank], vecs[pivot] = vecs[pivot], vecs[rank]
		rhs[rank], rhs[pivot] = rhs[pivot], rhs[rank]
		for i := rank + 1; i < m; i++ {
			if vecs[i][col] != 0 {
				factor := gf256.Div(vecs[i][col], vecs[rank][col])
				for j := col; j < r; j++ {
					vecs[i][j] = gf256.Add(vecs[i][j], gf256.Mul(factor, vecs[rank][j]))
				}
				gf256.MulAddRow(rhs[i], rhs[rank], factor)
			}
		}
		rank++
	}

	log.Debugf("dense elimination solved residual of %d columns from %d pending rows", r, m)

	// Back substitution. Pivot row for residual column col is row col.
	values := make([][]byte, r)
	for col := r - 1; col >= 0; col-- {
		acc := append([]byte(nil), rhs[col]...)
		for j := col + 1; j < r; j++ {
			gf256.MulAddRow(acc, values[j], vecs[col][j])
		}
		value := make([]byte, s.blockSize)
		gf256.MulAddRow(value, acc, gf256.Inv(vecs[col][col]))
		values[col] = value
	}
	for i, c := range unCols {
		s.solved[c] = values[i]
		s.colRefs[c] = nil
	}
	s.solvedCount = s.n
	for i := range s.eqs {
		s.eqs[i].live = false
	}
	s.liveCount = 0
	return true
}
