package codec

import (
	"fmt"
	"sync"

	"github.com/ppopth/fountain/gf256"
)

type decoderState int

const (
	stateCollecting decoderState = iota
	stateRecoverable
	stateRecovered
	stateConverted
	stateFailed
)

// Decoder is one decoding session. Blocks may arrive in any order, with
// arbitrary repeats and gaps; the session reaches Success once the
// accumulated rows span all source rows. Decode mutates solver state
// and is serialized internally; distinct sessions are fully
// independent.
type Decoder struct {
	mu sync.Mutex

	messageLen uint64
	blockSize  int
	n          int
	seed       uint32

	sv       *solver
	seen     map[uint64]struct{}
	accepted int // non-duplicate blocks consumed, dependent ones included
	state    decoderState
}

// extraRowSlack is the number of accepted rows beyond n the decoder
// consumes before giving up with ErrExtraInsufficient. A healthy
// session solves within a few rows of n; needing more than n/2 extra
// means the seed or the loss pattern is degenerate.
func extraRowSlack(n int) int {
	return 2 + n/2
}

// NewDecoder creates a decoding session for a message of messageLen
// bytes split into blocks of blockSize bytes. It derives the same
// session seed the encoder selected for the same dimensions.
func NewDecoder(messageLen uint64, blockSize int) (*Decoder, error) {
	if err := gf256.Init(); err != nil {
		return nil, err
	}
	if messageLen == 0 || blockSize <= 0 {
		return nil, fmt.Errorf("%w: message of %d bytes with block size %d",
			ErrInvalidInput, messageLen, blockSize)
	}
	n := int((messageLen + uint64(blockSize) - 1) / uint64(blockSize))
	if n < MinSourceRows {
		return nil, fmt.Errorf("%w: n=%d, reduce the block size or use a larger message",
			ErrBadInputSmallN, n)
	}
	if n > MaxSourceRows {
		return nil, fmt.Errorf("%w: n=%d, increase the block size or use a smaller message",
			ErrBadInputLargeN, n)
	}
	seed, err := selectSeed(n)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		messageLen: messageLen,
		blockSize:  blockSize,
		n:          n,
		seed:       seed,
		sv:         newSolver(n, blockSize),
		seen:       make(map[uint64]struct{}),
	}, nil
}

// Decode feeds one received block into the solver. It returns NeedMore
// until the rows reach full rank and Success from then on; Success is
// sticky. Duplicate ids and linearly dependent rows are harmless and
// leave the independent-row count unchanged. After consuming
// extraRowSlack(n) rows beyond n without reaching full rank the session
// fails with ErrExtraInsufficient.
func (d *Decoder) Decode(blockID uint64, row []byte) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case stateFailed:
		return NeedMore, ErrExtraInsufficient
	case stateConverted:
		return NeedMore, fmt.Errorf("%w: session was converted to an encoder", ErrInvalidInput)
	case stateRecoverable, stateRecovered:
		return Success, nil
	}
	if len(row) != d.blockSize {
		return NeedMore, fmt.Errorf("%w: row of %d bytes, session block size is %d",
			ErrInvalidInput, len(row), d.blockSize)
	}
	if _, ok := d.seen[blockID]; ok {
		return NeedMore, nil
	}
	d.seen[blockID] = struct{}{}
	d.accepted++

	gen := rowFor(blockID, d.seed, d.n)
	data := append([]byte(nil), row...)
	switch d.sv.addEquation(gen, data) {
	case eqInconsistent:
		// A zero coefficient row with a nonzero right-hand side cannot
		// come from the session's encoder; the block was corrupted in
		// transit. Drop it, the bytes carry no usable information.
		log.Warnf("discarding corrupted block %d", blockID)
	case eqDependent:
		log.Debugf("block %d is linearly dependent, ignored", blockID)
	}

	if d.sv.solvedCount == d.n {
		d.state = stateRecoverable
		return Success, nil
	}
	if d.sv.solvedCount+d.sv.liveCount >= d.n && d.sv.denseAttempt() {
		d.state = stateRecoverable
		return Success, nil
	}
	if d.accepted >= d.n+extraRowSlack(d.n) {
		d.state = stateFailed
		return NeedMore, fmt.Errorf("%w: %d rows consumed for n=%d",
			ErrExtraInsufficient, d.accepted, d.n)
	}
	return NeedMore, nil
}

// Recover reconstructs the original message into out and returns the
// number of bytes written, trimming the final row's padding. It is
// valid only once Decode has returned Success, and is idempotent.
func (d *Decoder) Recover(out []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case stateRecoverable, stateRecovered:
	default:
		return 0, fmt.Errorf("%w: recover before the rows reached full rank", ErrInvalidInput)
	}
	if uint64(len(out)) < d.messageLen {
		return 0, fmt.Errorf("%w: output buffer of %d bytes, need %d",
			ErrInvalidInput, len(out), d.messageLen)
	}

	written := 0
	remaining := int(d.messageLen)
	for _, rowData := range d.sv.solved {
		c := remaining
		if c > d.blockSize {
			c = d.blockSize
		}
		copy(out[written:], rowData[:c])
		written += c
		remaining -= c
		if remaining == 0 {
			break
		}
	}
	d.state = stateRecovered
	return written, nil
}

// BecomeEncoder converts a fully recovered decoder into an encoder in
// place, reusing the solved source rows and the session seed. The
// conversion consumes the decoder: further Decode or Recover calls fail
// with ErrInvalidInput. The returned encoder emits byte-identical
// output to the original sender's encoder for every block id.
func (d *Decoder) BecomeEncoder() (*Encoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateRecovered {
		return nil, fmt.Errorf("%w: conversion requires a recovered session", ErrInvalidInput)
	}
	d.state = stateConverted
	return &Encoder{
		messageLen: d.messageLen,
		blockSize:  d.blockSize,
		n:          d.n,
		seed:       d.seed,
		rows:       d.sv.solved,
	}, nil
}

// RowCount returns n, the number of source rows.
func (d *Decoder) RowCount() int { return d.n }

// MessageLen returns the length in bytes of the message being recovered.
func (d *Decoder) MessageLen() uint64 { return d.messageLen }

// BlockSize returns the fixed block size in bytes.
func (d *Decoder) BlockSize() int { return d.blockSize }

// ReceivedCount returns the number of distinct blocks consumed so far.
func (d *Decoder) ReceivedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted
}

// IndependentCount returns the number of rows currently contributing
// to the solve, counting solved rows and pending equations. Pending
// equations are not reduced against each other until the dense phase,
// so this is an upper bound on the true rank.
func (d *Decoder) IndependentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sv.solvedCount + d.sv.liveCount
}

// Remaining returns a lower bound on the number of further blocks the
// session needs before recovery is possible, and zero once it reached
// Success. Pending rows may still turn out mutually dependent, so the
// true need can be higher.
func (d *Decoder) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == stateRecoverable || d.state == stateRecovered {
		return 0
	}
	r := d.n - d.sv.solvedCount - d.sv.liveCount
	if r < 0 {
		r = 0
	}
	return r
}
