package codec

import (
	"bytes"
	"os"
	"testing"

	"github.com/ppopth/fountain/gf256"
)

func TestMain(m *testing.M) {
	if err := gf256.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// combine returns the linear combination of rows under the given
// generator row, i.e. what an encoder would emit for it.
func combine(row generatorRow, rows [][]byte, blockSize int) []byte {
	out := make([]byte, blockSize)
	for k, c := range row.cols {
		gf256.MulAddRow(out, rows[c], row.coeffs[k])
	}
	return out
}

func testRows(n, blockSize int) [][]byte {
	rows := make([][]byte, n)
	for i := range rows {
		rows[i] = make([]byte, blockSize)
		for j := range rows[i] {
			rows[i][j] = byte(i*83 + j*29 + 7)
		}
	}
	return rows
}

func TestSolverPeelingCascade(t *testing.T) {
	const n, bs = 3, 8
	rows := testRows(n, bs)

	sv := newSolver(n, bs)

	// Two weight-two equations stall until the singleton arrives, then
	// the whole chain peels in one cascade.
	eqA := generatorRow{cols: []int{0, 1}, coeffs: []byte{1, 1}}
	eqB := generatorRow{cols: []int{1, 2}, coeffs: []byte{3, 5}}
	eqC := generatorRow{cols: []int{2}, coeffs: []byte{7}}

	if got := sv.addEquation(eqA, combine(eqA, rows, bs)); got != eqStored {
		t.Fatalf("eqA outcome = %v, want stored", got)
	}
	if got := sv.addEquation(eqB, combine(eqB, rows, bs)); got != eqStored {
		t.Fatalf("eqB outcome = %v, want stored", got)
	}
	if sv.solvedCount != 0 || sv.liveCount != 2 {
		t.Fatalf("premature peeling: solved=%d live=%d", sv.solvedCount, sv.liveCount)
	}

	if got := sv.addEquation(eqC, combine(eqC, rows, bs)); got != eqSolved {
		t.Fatalf("eqC outcome = %v, want solved", got)
	}
	if sv.solvedCount != n {
		t.Fatalf("cascade stopped at %d of %d rows", sv.solvedCount, n)
	}
	for i := range rows {
		if !bytes.Equal(sv.solved[i], rows[i]) {
			t.Fatalf("row %d recovered incorrectly", i)
		}
	}
}

func TestSolverDenseFallback(t *testing.T) {
	const n, bs = 2, 8
	rows := testRows(n, bs)

	sv := newSolver(n, bs)

	// Neither equation has a singleton, so peeling never fires; the
	// dense residual solve must crack the 2x2 system.
	eqA := generatorRow{cols: []int{0, 1}, coeffs: []byte{1, 1}}
	eqB := generatorRow{cols: []int{0, 1}, coeffs: []byte{1, 2}}
	sv.addEquation(eqA, combine(eqA, rows, bs))
	sv.addEquation(eqB, combine(eqB, rows, bs))

	if !sv.denseAttempt() {
		t.Fatal("dense attempt failed on a full-rank residual")
	}
	for i := range rows {
		if !bytes.Equal(sv.solved[i], rows[i]) {
			t.Fatalf("row %d recovered incorrectly", i)
		}
	}
	if sv.liveCount != 0 {
		t.Fatalf("pending equations not retired, live=%d", sv.liveCount)
	}
}

func TestSolverDenseAttemptSingular(t *testing.T) {
	const n, bs = 2, 8
	rows := testRows(n, bs)

	sv := newSolver(n, bs)

	// Proportional equations: rank one, residual stays singular and
	// solver state must survive untouched for later rows.
	eqA := generatorRow{cols: []int{0, 1}, coeffs: []byte{1, 2}}
	eqB := generatorRow{cols: []int{0, 1}, coeffs: []byte{gf256.Mul(3, 1), gf256.Mul(3, 2)}}
	sv.addEquation(eqA, combine(eqA, rows, bs))
	sv.addEquation(eqB, combine(eqB, rows, bs))

	if sv.denseAttempt() {
		t.Fatal("dense attempt succeeded on a singular residual")
	}
	if sv.solvedCount != 0 || sv.liveCount != 2 {
		t.Fatalf("failed attempt mutated state: solved=%d live=%d", sv.solvedCount, sv.liveCount)
	}

	// An independent third row makes the residual solvable.
	eqC := generatorRow{cols: []int{0, 1}, coeffs: []byte{5, 1}}
	sv.addEquation(eqC, combine(eqC, rows, bs))
	if !sv.denseAttempt() {
		t.Fatal("dense attempt failed after an independent row arrived")
	}
	for i := range rows {
		if !bytes.Equal(sv.solved[i], rows[i]) {
			t.Fatalf("row %d recovered incorrectly", i)
		}
	}
}

func TestSolverDependentAndInconsistent(t *testing.T) {
	const n, bs = 2, 8
	rows := testRows(n, bs)

	sv := newSolver(n, bs)

	eqA := generatorRow{cols: []int{0}, coeffs: []byte{1}}
	eqB := generatorRow{cols: []int{1}, coeffs: []byte{9}}
	sv.addEquation(eqA, combine(eqA, rows, bs))
	sv.addEquation(eqB, combine(eqB, rows, bs))
	if sv.solvedCount != n {
		t.Fatalf("singletons did not resolve, solved=%d", sv.solvedCount)
	}

	// A redundant row reduces to the zero equation.
	eqDup := generatorRow{cols: []int{0, 1}, coeffs: []byte{4, 4}}
	if got := sv.addEquation(eqDup, combine(eqDup, rows, bs)); got != eqDependent {
		t.Fatalf("redundant row outcome = %v, want dependent", got)
	}

	// The same row with tampered bytes reduces to 0 = nonzero.
	tampered := combine(eqDup, rows, bs)
	tampered[0] = gf256.Add(tampered[0], 0xff)
	if got := sv.addEquation(eqDup, tampered); got != eqInconsistent {
		t.Fatalf("tampered row outcome = %v, want inconsistent", got)
	}
}
