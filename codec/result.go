package codec

import (
	"errors"

	"github.com/ppopth/fountain/gf256"
)

// Result is the success-channel outcome of a decode step. Needing more
// blocks is a normal outcome, not an error.
type Result int

const (
	// NeedMore means the decoder does not yet hold enough independent
	// rows to recover the message.
	NeedMore Result = iota
	// Success means the accumulated rows reached full rank and the
	// message can be recovered.
	Success
)

func (r Result) String() string {
	switch r {
	case NeedMore:
		return "NeedMore"
	case Success:
		return "Success"
	default:
		return "Unknown"
	}
}

// Error taxonomy. Every fallible operation returns exactly one of these
// (possibly wrapped); callers can distinguish outcomes with errors.Is.
var (
	// ErrInvalidInput reports an unworkable caller-supplied parameter or
	// an operation called in the wrong session state.
	ErrInvalidInput = errors.New("codec: invalid input")
	// ErrBadDenseSeed reports that no seed with an invertible dense
	// submatrix was found within the retry budget.
	ErrBadDenseSeed = errors.New("codec: no acceptable dense seed")
	// ErrBadPeelSeed reports that no seed whose peel rows cover every
	// source row was found within the retry budget.
	ErrBadPeelSeed = errors.New("codec: no acceptable peel seed")
	// ErrBadInputSmallN reports too few source rows; reduce the block
	// size or use a larger message.
	ErrBadInputSmallN = errors.New("codec: too few source rows")
	// ErrBadInputLargeN reports too many source rows; increase the block
	// size or use a smaller message.
	ErrBadInputLargeN = errors.New("codec: too many source rows")
	// ErrExtraInsufficient reports that a generous slack of rows beyond
	// the minimum still left the system singular; the session must be
	// abandoned and rebuilt with different blocks.
	ErrExtraInsufficient = errors.New("codec: extra rows insufficient to solve")
	// ErrOOM reports that row storage could not be allocated.
	ErrOOM = errors.New("codec: out of memory")
)

// ResultCode is a stable numeric encoding of operation outcomes for
// embedders that surface the codec across an FFI boundary, where a
// wrapped Go error cannot cross.
type ResultCode int32

const (
	CodeSuccess ResultCode = iota
	CodeNeedMore
	CodeInvalidInput
	CodeBadDenseSeed
	CodeBadPeelSeed
	CodeBadInputSmallN
	CodeBadInputLargeN
	CodeExtraInsufficient
	CodeError
	CodeOOM
	CodeUnsupportedPlatform
)

// CodeOf translates an error from this package (or nil) into its
// numeric result code. Unknown errors map to CodeError.
func CodeOf(err error) ResultCode {
	switch {
	case err == nil:
		return CodeSuccess
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrBadDenseSeed):
		return CodeBadDenseSeed
	case errors.Is(err, ErrBadPeelSeed):
		return CodeBadPeelSeed
	case errors.Is(err, ErrBadInputSmallN):
		return CodeBadInputSmallN
	case errors.Is(err, ErrBadInputLargeN):
		return CodeBadInputLargeN
	case errors.Is(err, ErrExtraInsufficient):
		return CodeExtraInsufficient
	case errors.Is(err, ErrOOM):
		return CodeOOM
	case errors.Is(err, gf256.ErrUnsupportedPlatform):
		return CodeUnsupportedPlatform
	default:
		return CodeError
	}
}
