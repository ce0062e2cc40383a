package harness

import (
	"pgregory.net/rapid"

	"github.com/roach88/stackvm/internal/field"
)

// U32Bound is 2^32, the exclusive upper bound of u32 values.
const U32Bound uint64 = 1 << 32

// PropRandW generates words: exactly field.WordSize values drawn from elem.
func PropRandW[T any](elem *rapid.Generator[T]) *rapid.Generator[[]T] {
	return rapid.SliceOfN(elem, field.WordSize, field.WordSize)
}

// RandFeltWord generates words of canonical field elements.
func RandFeltWord() *rapid.Generator[[]uint64] {
	return PropRandW(rapid.Uint64Range(0, field.Modulus-1))
}

// RandU32Word generates words of u32 values.
func RandU32Word() *rapid.Generator[[]uint64] {
	return PropRandW(rapid.Uint64Range(0, U32Bound-1))
}
