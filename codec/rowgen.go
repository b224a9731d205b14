package codec

// The block generator maps a block index to its coefficient row over
// GF(256). Indices below the dense range bound expand to fully dense
// rows that guarantee rank; every higher index expands to a sparse peel
// row with a small pseudo-random support. The mapping is a pure
// function of (blockID, seed, n): both sides of a transfer derive the
// coefficients independently instead of transmitting them.

const (
	// peelMinWeight and peelMaxWeight bound the support size of sparse
	// rows. Light rows keep the peeling phase cheap; the dense range
	// patches the rank they cannot provide on their own.
	peelMinWeight = 2
	peelMaxWeight = 4
)

// generatorRow is the sparse-or-dense coefficient vector of one block.
// Columns and coefficients are stored pairwise; dense rows simply carry
// all n columns in order. Peel rows never materialize the full vector.
type generatorRow struct {
	cols   []int
	coeffs []byte
}

// denseRowCount returns the number of leading block indices that expand
// to dense rows, roughly sqrt(n) plus a safety margin, capped at n.
func denseRowCount(n int) int {
	d := 2
	for d*d < n {
		d++
	}
	d++
	if d > n {
		d = n
	}
	return d
}

// rowFor expands blockID into its generator row for a session with n
// source rows under the given seed.
func rowFor(blockID uint64, seed uint32, n int) generatorRow {
	rng := rowRNG(seed, blockID)
	if blockID < uint64(denseRowCount(n)) {
		return denseRowFor(&rng, n)
	}
	return peelRowFor(&rng, n)
}

func denseRowFor(rng *splitmix64, n int) generatorRow {
	cols := make([]int, n)
	coeffs := make([]byte, n)
	for j := 0; j < n; j++ {
		cols[j] = j
		coeffs[j] = nonzeroCoeff(rng)
	}
	return generatorRow{cols: cols, coeffs: coeffs}
}

func peelRowFor(rng *splitmix64, n int) generatorRow {
	w := peelMinWeight + int(rng.next()%(peelMaxWeight-peelMinWeight+1))
	if w > n {
		w = n
	}
	cols := make([]int, 0, w)
	for len(cols) < w {
		c := int(rng.next() % uint64(n))
		if containsCol(cols, c) {
			continue
		}
		cols = append(cols, c)
	}
	coeffs := make([]byte, w)
	for i := range coeffs {
		coeffs[i] = nonzeroCoeff(rng)
	}
	return generatorRow{cols: cols, coeffs: coeffs}
}

// nonzeroCoeff draws a uniformly random element of GF(256)*. Zero is
// excluded so every listed column genuinely participates in the row.
func nonzeroCoeff(rng *splitmix64) byte {
	return byte(1 + rng.next()%255)
}

func containsCol(cols []int, c int) bool {
	for _, v := range cols {
		if v == c {
			return true
		}
	}
	return false
}
