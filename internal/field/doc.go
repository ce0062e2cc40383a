// Package field provides the VM's native numeric type.
//
// Every stack slot and memory cell holds a Felt, an element of the Goldilocks
// prime field (p = 2^64 - 2^32 + 1). Arithmetic is delegated to gnark-crypto;
// this package adds the VM-facing conventions on top of it:
//
//   - Values are built from uint64 and reduced modulo p (New).
//   - Comparisons (Less, Uint64) use the canonical representative in [0, p).
//   - A Word is four consecutive elements, the unit of memory access.
//   - StackTopSize is the number of stack slots visible to tests and proofs.
package field
