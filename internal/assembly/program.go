package assembly

import (
	"bytes"
	"slices"

	"github.com/roach88/stackvm/internal/canonical"
)

// Program is a compiled, executable code block tree.
type Program struct {
	root   CodeBlock
	kernel Kernel
}

// NewProgram wraps a root block and the kernel it was compiled against.
func NewProgram(root CodeBlock, kernel Kernel) *Program {
	return &Program{root: root, kernel: kernel}
}

// Hash returns the digest of the program's root block.
// Two compilations of the same source yield the same hash regardless of
// debug mode.
func (p *Program) Hash() canonical.Digest {
	return p.root.Hash()
}

// Root returns the root block of the program tree.
func (p *Program) Root() CodeBlock {
	return p.root
}

// Kernel returns the kernel the program was compiled against.
func (p *Program) Kernel() Kernel {
	return p.kernel
}

// NumBlocks counts every block reachable from the root.
func (p *Program) NumBlocks() int {
	n := 0
	Walk(p.root, func(CodeBlock) bool {
		n++
		return true
	})
	return n
}

// Kernel is the set of procedures a program may invoke through syscall.
// The zero value is the empty kernel.
type Kernel struct {
	procs []canonical.Digest
}

// NewKernel builds a kernel from procedure digests; order and duplicates
// are normalized.
func NewKernel(procs ...canonical.Digest) Kernel {
	sorted := slices.Clone(procs)
	slices.SortFunc(sorted, func(a, b canonical.Digest) int {
		return bytes.Compare(a[:], b[:])
	})
	return Kernel{procs: slices.Compact(sorted)}
}

// ProcHashes returns the sorted procedure digests.
func (k Kernel) ProcHashes() []canonical.Digest {
	return slices.Clone(k.procs)
}

// IsEmpty reports whether the kernel exports no procedures.
func (k Kernel) IsEmpty() bool {
	return len(k.procs) == 0
}

// Contains reports whether d is the digest of a kernel procedure.
func (k Kernel) Contains(d canonical.Digest) bool {
	_, found := slices.BinarySearchFunc(k.procs, d, func(a, b canonical.Digest) int {
		return bytes.Compare(a[:], b[:])
	})
	return found
}

// Hash commits to the kernel's procedure set.
func (k Kernel) Hash() canonical.Digest {
	h := canonical.NewHasher(DomainKernel).WriteUint64(uint64(len(k.procs)))
	for _, d := range k.procs {
		h.WriteDigest(d)
	}
	return h.Sum()
}
