package prover

import (
	"github.com/roach88/stackvm/internal/canonical"
)

const (
	domainLeaf = "stackvm/trace-row/v1"
	domainNode = "stackvm/merkle-node/v1"
)

// MerkleTree is a binary BLAKE2b tree over row digests. Leaves are padded
// with zero digests up to a power of two.
type MerkleTree struct {
	// levels[0] holds the padded leaves, the last level the root.
	levels [][]canonical.Digest
}

// NewMerkleTree builds a tree over leaves. leaves must not be empty.
func NewMerkleTree(leaves []canonical.Digest) *MerkleTree {
	size := 1
	for size < len(leaves) {
		size <<= 1
	}
	level := make([]canonical.Digest, size)
	copy(level, leaves)

	t := &MerkleTree{levels: [][]canonical.Digest{level}}
	for len(level) > 1 {
		next := make([]canonical.Digest, len(level)/2)
		for i := range next {
			next[i] = canonical.Merge(domainNode, level[2*i], level[2*i+1])
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t
}

// Root returns the tree root.
func (t *MerkleTree) Root() canonical.Digest {
	return t.levels[len(t.levels)-1][0]
}

// Depth returns the length of every authentication path.
func (t *MerkleTree) Depth() int {
	return len(t.levels) - 1
}

// Path returns the sibling digests from leaf index up to the root.
func (t *MerkleTree) Path(index int) []canonical.Digest {
	path := make([]canonical.Digest, 0, t.Depth())
	for _, level := range t.levels[:len(t.levels)-1] {
		path = append(path, level[index^1])
		index >>= 1
	}
	return path
}

// VerifyPath reports whether leaf sits at index under root.
func VerifyPath(root, leaf canonical.Digest, index int, path []canonical.Digest) bool {
	node := leaf
	for _, sibling := range path {
		if index&1 == 0 {
			node = canonical.Merge(domainNode, node, sibling)
		} else {
			node = canonical.Merge(domainNode, sibling, node)
		}
		index >>= 1
	}
	return index == 0 && node == root
}

// depthFor returns the path length of a tree with n leaves.
func depthFor(n int) int {
	depth := 0
	for size := 1; size < n; size <<= 1 {
		depth++
	}
	return depth
}
