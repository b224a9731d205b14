package codec

import (
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/ppopth/fountain/gf256"
)

var log = logging.Logger("codec")

const (
	// MinSourceRows and MaxSourceRows bound the supported number of
	// source rows per session. Outside this range creation fails with
	// ErrBadInputSmallN or ErrBadInputLargeN.
	MinSourceRows = 2
	MaxSourceRows = 64000
)

// Encoder is one encoding session over a fixed message. After creation
// it is immutable: Encode never mutates session state, so concurrent
// Encode calls need no synchronization.
type Encoder struct {
	messageLen uint64
	blockSize  int
	n          int
	seed       uint32
	rows       [][]byte // n source rows, last one zero-padded
}

// NewEncoder partitions message into ceil(len/blockSize) fixed-size
// source rows and selects the session seed. The same message and block
// size always produce an identical session on every host.
func NewEncoder(message []byte, blockSize int) (*Encoder, error) {
	if err := gf256.Init(); err != nil {
		return nil, err
	}
	if len(message) == 0 || blockSize <= 0 {
		return nil, fmt.Errorf("%w: message of %d bytes with block size %d",
			ErrInvalidInput, len(message), blockSize)
	}
	n := (len(message) + blockSize - 1) / blockSize
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

	rows := make([][]byte, n)
	backing := make([]byte, n*blockSize)
	copy(backing, message)
	for i := range rows {
		rows[i] = backing[i*blockSize : (i+1)*blockSize]
	}
	return &Encoder{
		messageLen: uint64(len(message)),
		blockSize:  blockSize,
		n:          n,
		seed:       seed,
		rows:       rows,
	}, nil
}

// Encode writes the redundancy block for blockID into out and returns
// the number of bytes written, always the session block size. Any
// non-negative blockID is valid; the same id always yields byte
// identical output.
func (e *Encoder) Encode(blockID uint64, out []byte) (int, error) {
	if len(out) < e.blockSize {
		return 0, fmt.Errorf("%w: output buffer of %d bytes, need %d",
			ErrInvalidInput, len(out), e.blockSize)
	}
	out = out[:e.blockSize]
	clear(out)
	row := rowFor(blockID, e.seed, e.n)
	for k, c := range row.cols {
		gf256.MulAddRow(out, e.rows[c], row.coeffs[k])
	}
	return e.blockSize, nil
}

// RowCount returns n, the number of source rows.
func (e *Encoder) RowCount() int { return e.n }

// BlockSize returns the fixed block size in bytes.
func (e *Encoder) BlockSize() int { return e.blockSize }

// MessageLen returns the exact length of the original message.
func (e *Encoder) MessageLen() uint64 { return e.messageLen }
