package codec

// Deterministic pseudo-random generation for coefficient rows. Each row
// derivation owns its own generator state, so parallel sessions never
// contend on shared random state and a (seed, blockID) pair always
// expands to the same byte stream on both sides of a transfer.

// splitmix64 is the sequence from Steele, Lea and Flood's "Fast
// splittable pseudorandom number generators".
type splitmix64 struct {
	state uint64
}

func (s *splitmix64) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// rowRNG returns the generator that expands the coefficient row of one
// block. The state mixes the session seed and the block index with two
// odd multipliers so neighbouring ids land far apart.
func rowRNG(seed uint32, blockID uint64) splitmix64 {
	return splitmix64{state: uint64(seed)*0xda942042e4dd58b5 ^ blockID*0x9e3779b97f4a7c15}
}

// seedCandidate derives the attempt-th seed candidate for a session
// with n source rows. Encoder and decoder run the same sequence, so
// they converge on the same accepted seed without ever exchanging it.
func seedCandidate(n, attempt int) uint32 {
	r := splitmix64{state: uint64(n)*0x9e3779b97f4a7c15 + uint64(attempt)}
	return uint32(r.next())
}
