package codec

import (
	"github.com/ppopth/fountain/gf256"
)

// Seed selection. A session seed is accepted or rejected analytically
// at creation time, never by trial decoding: the dense rows must form
// an invertible leading minor and the peel rows must reference every
// source row within a bounded index window. Encoder and decoder run the
// identical selection loop for a given n, so both converge on the same
// seed without exchanging it.

const (
	// seedRetryBudget bounds the number of seed candidates tried before
	// creation fails. The acceptance probability per candidate is high,
	// so the budget is generous rather than tight.
	seedRetryBudget = 16

	// coverWindowMult scales the peel index window inspected by the
	// coverage check to coverWindowMult*n rows past the dense range.
	// With mean row weight 3 the chance of an untouched column is about
	// n*exp(-3*coverWindowMult), negligible across the supported n
	// range at 8.
	coverWindowMult = 8
)

// selectSeed returns the first accepted seed for n source rows.
func selectSeed(n int) (uint32, error) {
	denseBad := false
	for attempt := 0; attempt < seedRetryBudget; attempt++ {
		seed := seedCandidate(n, attempt)
		if !denseMinorInvertible(seed, n) {
			denseBad = true
			log.Debugf("seed %#x rejected for n=%d: singular dense minor", seed, n)
			continue
		}
		if !peelRowsCover(seed, n) {
			denseBad = false
			log.Debugf("seed %#x rejected for n=%d: peel coverage gap", seed, n)
			continue
		}
		if attempt > 0 {
			log.Debugf("accepted seed %#x for n=%d after %d retries", seed, n, attempt)
		}
		return seed, nil
	}
	if denseBad {
		return 0, ErrBadDenseSeed
	}
	return 0, ErrBadPeelSeed
}

// denseMinorInvertible checks that the leading d x d minor of the dense
// rows is invertible, which implies the d dense rows are linearly
// independent. Restricting to the minor keeps validation at O(d^3)
// instead of O(d^2 n).
func denseMinorInvertible(seed uint32, n int) bool {
	d := denseRowCount(n)
	rows := make([][]byte, d)
	for i := 0; i < d; i++ {
		row := rowFor(uint64(i), seed, n)
		vec := make([]byte, d)
		for k, c := range row.cols {
			if c < d {
				vec[c] = row.coeffs[k]
			}
		}
		rows[i] = vec
	}

	// Forward elimination; a pivotless column means a singular minor.
	rank := 0
	for col := 0; col < d; col++ {
		pivot := -1
		for r := rank; r < d; r++ {
			if rows[r][col] != 0 {
				pivot = r
				break
			}
		}
		if pivot < 0 {
			return false
		}
		rows[rank], rows[pivot] = rows[pivot], rows[rank]
		for r := rank + 1; r < d; r++ {
			if rows[r][col] != 0 {
				factor := gf256.Div(rows[r][col], rows[rank][col])
				for j := col; j < d; j++ {
					rows[r][j] = gf256.Add(rows[r][j], gf256.Mul(factor, rows[rank][j]))
				}
			}
		}
		rank++
	}
	return true
}

// peelRowsCover checks that every source row is referenced by at least
// one peel row within the coverage window. A row no peel row ever
// touches would force the decoder to wait for dense blocks only.
func peelRowsCover(seed uint32, n int) bool {
	d := denseRowCount(n)
	covered := make([]bool, n)
	count := 0
	for id := uint64(d); id < uint64(d+coverWindowMult*n); id++ {
		row := rowFor(id, seed, n)
		for _, c := range row.cols {
			if !covered[c] {
				covered[c] = true
				count++
			}
		}
		if count == n {
			return true
		}
	}
	return count == n
}
