package assembly

import (
	"github.com/roach88/stackvm/internal/canonical"
)

// Domain prefixes for block digests. Version suffix enables future encoding
// migration.
const (
	DomainSpan    = "stackvm/span/v1"
	DomainJoin    = "stackvm/join/v1"
	DomainSplit   = "stackvm/split/v1"
	DomainLoop    = "stackvm/loop/v1"
	DomainCall    = "stackvm/call/v1"
	DomainSyscall = "stackvm/syscall/v1"
	DomainKernel  = "stackvm/kernel/v1"
)

// CodeBlock is a node of a compiled program tree.
// Span, Join, Split, Loop and Call implement it.
type CodeBlock interface {
	// Hash is the digest of the block; it commits to every operation and
	// child but never to debug information.
	Hash() canonical.Digest

	codeBlock()
}

// Span is a straight-line sequence of operations.
type Span struct {
	Ops []Operation

	// AsmOps is parallel to Ops and populated only in debug mode.
	AsmOps []*AsmOp

	// Decorators maps an operation index to the decorators that precede it.
	// Populated only in debug mode.
	Decorators map[int][]Decorator

	hash canonical.Digest
}

func (*Span) codeBlock() {}

// Hash implements CodeBlock.
func (s *Span) Hash() canonical.Digest {
	return s.hash
}

// Join executes its children in order.
type Join struct {
	Children []CodeBlock
	hash     canonical.Digest
}

func (*Join) codeBlock() {}

// Hash implements CodeBlock.
func (j *Join) Hash() canonical.Digest {
	return j.hash
}

// Split pops a binary condition and executes one of two branches.
type Split struct {
	OnTrue  CodeBlock
	OnFalse CodeBlock
	hash    canonical.Digest
}

func (*Split) codeBlock() {}

// Hash implements CodeBlock.
func (s *Split) Hash() canonical.Digest {
	return s.hash
}

// Loop pops a binary condition and executes Body while it is 1.
// The body must leave the next condition on top of the stack.
type Loop struct {
	Body CodeBlock
	hash canonical.Digest
}

func (*Loop) codeBlock() {}

// Hash implements CodeBlock.
func (l *Loop) Hash() canonical.Digest {
	return l.hash
}

// Call executes a procedure in a new memory context. When Syscall is set the
// procedure must belong to the program's kernel and runs in the root context.
type Call struct {
	// Name is the procedure name as written at the call site.
	Name    string
	Target  CodeBlock
	Syscall bool
	hash    canonical.Digest
}

func (*Call) codeBlock() {}

// Hash implements CodeBlock.
func (c *Call) Hash() canonical.Digest {
	return c.hash
}

func newSpan(ops []Operation, asmOps []*AsmOp, decorators map[int][]Decorator) *Span {
	if len(ops) == 0 {
		ops = []Operation{op(OpNoop)}
		if asmOps != nil {
			asmOps = []*AsmOp{nil}
		}
	}
	buf := make([]byte, 0, len(ops)*17)
	for _, o := range ops {
		buf = o.encode(buf)
	}
	return &Span{
		Ops:        ops,
		AsmOps:     asmOps,
		Decorators: decorators,
		hash:       canonical.Hash(DomainSpan, buf),
	}
}

func newJoin(children []CodeBlock) *Join {
	h := canonical.NewHasher(DomainJoin).WriteUint64(uint64(len(children)))
	for _, c := range children {
		h.WriteDigest(c.Hash())
	}
	return &Join{Children: children, hash: h.Sum()}
}

func newSplit(onTrue, onFalse CodeBlock) *Split {
	return &Split{
		OnTrue:  onTrue,
		OnFalse: onFalse,
		hash:    canonical.Merge(DomainSplit, onTrue.Hash(), onFalse.Hash()),
	}
}

func newLoop(body CodeBlock) *Loop {
	return &Loop{
		Body: body,
		hash: canonical.NewHasher(DomainLoop).WriteDigest(body.Hash()).Sum(),
	}
}

func newCall(name string, target CodeBlock, syscall bool) *Call {
	domain := DomainCall
	if syscall {
		domain = DomainSyscall
	}
	return &Call{
		Name:    name,
		Target:  target,
		Syscall: syscall,
		hash:    canonical.NewHasher(domain).WriteDigest(target.Hash()).Sum(),
	}
}

// Walk visits every block in depth-first order, parents before children.
// Returning false from fn skips the children of that block.
func Walk(b CodeBlock, fn func(CodeBlock) bool) {
	if !fn(b) {
		return
	}
	switch blk := b.(type) {
	case *Join:
		for _, c := range blk.Children {
			Walk(c, fn)
		}
	case *Split:
		Walk(blk.OnTrue, fn)
		Walk(blk.OnFalse, fn)
	case *Loop:
		Walk(blk.Body, fn)
	case *Call:
		Walk(blk.Target, fn)
	}
}
