// Package gf256 implements arithmetic over the Galois field GF(2^8)
// with the irreducible polynomial x^8 + x^4 + x^3 + x^2 + 1 (0x11d) and
// generator 0x02. Every row combination in the codec goes through this
// package; nothing else touches raw byte arithmetic.
package gf256

import (
	"errors"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Polynomial is the irreducible polynomial used for reduction.
const Polynomial = 0x11d

// ErrUnsupportedPlatform is returned by Init when the CPU lacks the
// baseline capability the table kernels assume.
var ErrUnsupportedPlatform = errors.New("gf256: platform is not supported")

var (
	initOnce sync.Once
	initErr  error

	// expTable[i] = generator^i. Doubled so Mul can index by the sum of
	// two logs without reducing mod 255.
	expTable [512]byte
	logTable [256]byte

	// mulTable[c] is the full 256-entry product row for coefficient c.
	// MulAddRow resolves a coefficient's row once and then runs a
	// single-lookup inner loop.
	mulTable [256][256]byte
)

// Init builds the lookup tables and checks CPU support. It must be
// called once before any codec session is created. Calling it again is
// a no-op returning the first result.
func Init() error {
	initOnce.Do(func() {
		if !platformSupported() {
			initErr = ErrUnsupportedPlatform
			return
		}
		buildTables()
	})
	return initErr
}

func platformSupported() bool {
	// The table kernels only assume unaligned byte loads, which every
	// target Go supports. On x86 we additionally insist on SSE2 (part of
	// the amd64 baseline, absent only on ancient 386 parts).
	if runtime.GOARCH == "386" {
		return cpuid.CPU.Supports(cpuid.SSE2)
	}
	return true
}

func buildTables() {
	x := 1
	for i := 0; i < 255; i++ {
		expTable[i] = byte(x)
		logTable[byte(x)] = byte(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= Polynomial
		}
	}
	for i := 255; i < 512; i++ {
		expTable[i] = expTable[i-255]
	}
	for c := 0; c < 256; c++ {
		for b := 0; b < 256; b++ {
			mulTable[c][b] = mulSlow(byte(c), byte(b))
		}
	}
}

func mulSlow(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return expTable[int(logTable[a])+int(logTable[b])]
}

// Add returns a + b. Addition and subtraction coincide in GF(2^8).
func Add(a, b byte) byte {
	return a ^ b
}

// Mul returns a * b.
func Mul(a, b byte) byte {
	return mulTable[a][b]
}

// Inv returns the multiplicative inverse of a. a must be nonzero;
// callers guarantee nonzero pivot coefficients.
func Inv(a byte) byte {
	if a == 0 {
		panic("gf256: inverse of zero")
	}
	return expTable[255-int(logTable[a])]
}

// Div returns a / b. b must be nonzero.
func Div(a, b byte) byte {
	if b == 0 {
		panic("gf256: division by zero")
	}
	if a == 0 {
		return 0
	}
	return expTable[int(logTable[a])+255-int(logTable[b])]
}

// Exp returns generator^e with e reduced mod 255.
func Exp(e int) byte {
	e %= 255
	if e < 0 {
		e += 255
	}
	return expTable[e]
}

// MulAddRow computes dst[i] ^= src[i] * c over the common length of dst
// and src. This is the hottest loop in the codec.
func MulAddRow(dst, src []byte, c byte) {
	if len(src) > len(dst) {
		src = src[:len(dst)]
	}
	switch c {
	case 0:
		return
	case 1:
		AddRow(dst, src)
		return
	}
	row := &mulTable[c]
	for i, s := range src {
		dst[i] ^= row[s]
	}
}

// AddRow computes dst[i] ^= src[i], the coefficient-one special case.
func AddRow(dst, src []byte) {
	if len(src) > len(dst) {
		src = src[:len(dst)]
	}
	for i, s := range src {
		dst[i] ^= s
	}
}
