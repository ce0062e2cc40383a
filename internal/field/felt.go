package field

import (
	"fmt"

	"github.com/consensys/gnark-crypto/field/goldilocks"
)

const (
	// Modulus is the Goldilocks prime 2^64 - 2^32 + 1.
	Modulus uint64 = 0xFFFFFFFF00000001

	// StackTopSize is the number of stack slots compared by tests and
	// committed to by proofs.
	StackTopSize = 16

	// WordSize is the number of elements in a Word.
	WordSize = 4
)

// Felt is a Goldilocks field element.
// The zero value is the field's zero. Felt values are comparable with ==.
type Felt struct {
	e goldilocks.Element
}

// Word is a group of four field elements, the unit of memory addressing.
type Word [WordSize]Felt

// Zero returns the additive identity.
func Zero() Felt {
	return Felt{}
}

// One returns the multiplicative identity.
func One() Felt {
	return New(1)
}

// New returns the field representative of v (v mod p).
func New(v uint64) Felt {
	var f Felt
	f.e.SetUint64(v)
	return f
}

// FromBool returns One for true and Zero for false.
func FromBool(b bool) Felt {
	if b {
		return One()
	}
	return Zero()
}

// Slice converts values to field elements, preserving order.
func Slice(values []uint64) []Felt {
	out := make([]Felt, len(values))
	for i, v := range values {
		out[i] = New(v)
	}
	return out
}

// Uint64s converts field elements back to their canonical integers.
func Uint64s(values []Felt) []uint64 {
	out := make([]uint64, len(values))
	for i, v := range values {
		out[i] = v.Uint64()
	}
	return out
}

// Uint64 returns the canonical representative in [0, p).
func (f Felt) Uint64() uint64 {
	return f.e.Uint64()
}

// IsZero reports whether f is the additive identity.
func (f Felt) IsZero() bool {
	return f.e.IsZero()
}

// IsOne reports whether f is the multiplicative identity.
func (f Felt) IsOne() bool {
	return f.Uint64() == 1
}

// Add returns f + g.
func (f Felt) Add(g Felt) Felt {
	var r Felt
	r.e.Add(&f.e, &g.e)
	return r
}

// Sub returns f - g.
func (f Felt) Sub(g Felt) Felt {
	var r Felt
	r.e.Sub(&f.e, &g.e)
	return r
}

// Mul returns f * g.
func (f Felt) Mul(g Felt) Felt {
	var r Felt
	r.e.Mul(&f.e, &g.e)
	return r
}

// Neg returns -f.
func (f Felt) Neg() Felt {
	var r Felt
	r.e.Neg(&f.e)
	return r
}

// Inv returns the multiplicative inverse of f.
// Callers must reject zero first; the inverse of zero is reported as zero.
func (f Felt) Inv() Felt {
	var r Felt
	r.e.Inverse(&f.e)
	return r
}

// Div returns f / g. g must be non-zero.
func (f Felt) Div(g Felt) Felt {
	return f.Mul(g.Inv())
}

// Less compares canonical representatives.
func (f Felt) Less(g Felt) bool {
	return f.Uint64() < g.Uint64()
}

// IsU32 reports whether the canonical value fits in 32 bits.
func (f Felt) IsU32() bool {
	return f.Uint64() < 1<<32
}

// String renders the canonical integer.
func (f Felt) String() string {
	return fmt.Sprintf("%d", f.Uint64())
}

// Bytes returns the canonical value as 8 little-endian bytes.
func (f Felt) Bytes() []byte {
	v := f.Uint64()
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// Pow2 returns 2^n for n < 64.
func Pow2(n uint64) (Felt, error) {
	if n >= 64 {
		return Felt{}, fmt.Errorf("exponent %d exceeds 63", n)
	}
	return New(1 << n), nil
}

// NewWord builds a Word from up to four values; missing slots are zero.
func NewWord(values ...uint64) Word {
	var w Word
	for i := 0; i < len(values) && i < WordSize; i++ {
		w[i] = New(values[i])
	}
	return w
}

// Uint64s returns the canonical integers of the word.
func (w Word) Uint64s() []uint64 {
	return Uint64s(w[:])
}

// IsZero reports whether every element is zero.
func (w Word) IsZero() bool {
	for _, f := range w {
		if !f.IsZero() {
			return false
		}
	}
	return true
}
