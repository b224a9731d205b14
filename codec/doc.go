// Package codec implements a rateless erasure code over GF(256). An
// encoder session turns a message into an unbounded stream of
// fixed-size blocks; a decoder session reconstructs the message from
// any sufficiently large subset of them, tolerating loss, reordering
// and duplication in transit.
//
// Block ids below a small dense range expand to fully dense coefficient
// rows that guarantee rank; all higher ids expand to sparse rows that
// keep decoding cheap through peeling elimination, with a dense
// Gaussian fallback over the small residual the peeling cannot resolve.
// Coefficient rows are derived deterministically from the session
// dimensions on both sides, so only (blockID, row bytes) ever crosses
// the wire.
//
// gf256.Init must be called once before the first session is created;
// the session constructors call it on the caller's behalf.
package codec
