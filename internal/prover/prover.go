package prover

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/bits"
	"slices"

	"github.com/roach88/stackvm/internal/assembly"
	"github.com/roach88/stackvm/internal/canonical"
	"github.com/roach88/stackvm/internal/field"
	"github.com/roach88/stackvm/internal/processor"
)

const (
	domainSeed     = "stackvm/fiat-shamir/v1"
	domainGrinding = "stackvm/grinding/v1"
	domainQuery    = "stackvm/query/v1"
)

// W is the number of stack elements committed per row.
const W = field.StackTopSize

const (
	maxQueries        = 255
	maxGrindingFactor = 32
)

// Options configures proof generation.
type Options struct {
	// NumQueries is the number of pseudo-random rows opened in addition to
	// the first and last rows.
	NumQueries int

	// GrindingFactor is the number of leading zero bits the proof-of-work
	// hash must have.
	GrindingFactor int
}

// DefaultOptions returns 27 queries and 16 bits of grinding.
func DefaultOptions() Options {
	return Options{NumQueries: 27, GrindingFactor: 16}
}

// Validate checks the options are within supported bounds.
func (o Options) Validate() error {
	if o.NumQueries < 1 || o.NumQueries > maxQueries {
		return fmt.Errorf("number of queries must be between 1 and %d, got %d", maxQueries, o.NumQueries)
	}
	if o.GrindingFactor < 0 || o.GrindingFactor > maxGrindingFactor {
		return fmt.Errorf("grinding factor must be between 0 and %d, got %d", maxGrindingFactor, o.GrindingFactor)
	}
	return nil
}

// ProgramOutputs is the visible stack a proof attests to, top first.
type ProgramOutputs struct {
	stack []uint64
}

// NewProgramOutputs wraps a stack, top first.
func NewProgramOutputs(stack []uint64) ProgramOutputs {
	return ProgramOutputs{stack: slices.Clone(stack)}
}

// Stack returns a copy of the output stack, top first.
func (o ProgramOutputs) Stack() []uint64 {
	return slices.Clone(o.stack)
}

// TamperFirst increments the first output element. It exists to build
// outputs a proof was not generated for.
func (o *ProgramOutputs) TamperFirst() {
	if len(o.stack) == 0 {
		o.stack = []uint64{1}
		return
	}
	o.stack[0] = field.New(o.stack[0]).Add(field.One()).Uint64()
}

// RowOpening reveals one committed row with its authentication path.
type RowOpening struct {
	Index int
	Row   [W]uint64
	Path  []canonical.Digest
}

// StarkProof is the proof artifact returned by Prove.
type StarkProof struct {
	Options     Options
	TraceLength int
	TraceRoot   canonical.Digest
	Nonce       uint64
	Openings    []RowOpening
}

// Bytes returns a deterministic binary encoding of the proof.
func (p *StarkProof) Bytes() []byte {
	buf := make([]byte, 0, 64+len(p.Openings)*(8+8*W+32*8))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.Options.NumQueries))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.Options.GrindingFactor))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.TraceLength))
	buf = append(buf, p.TraceRoot[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, p.Nonce)
	for _, o := range p.Openings {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(o.Index))
		for _, v := range o.Row {
			buf = binary.LittleEndian.AppendUint64(buf, v)
		}
		for _, d := range o.Path {
			buf = append(buf, d[:]...)
		}
	}
	return buf
}

// Size returns the encoded size in bytes.
func (p *StarkProof) Size() int {
	return len(p.Bytes())
}

// Prove executes program and produces outputs plus a proof of the run.
func Prove(program *assembly.Program, inputs processor.ProgramInputs, opts Options) (ProgramOutputs, *StarkProof, error) {
	if err := opts.Validate(); err != nil {
		return ProgramOutputs{}, nil, fmt.Errorf("invalid proof options: %w", err)
	}

	trace, err := processor.Execute(program, inputs)
	if err != nil {
		return ProgramOutputs{}, nil, err
	}

	rows := trace.Rows()
	leaves := make([]canonical.Digest, len(rows))
	encoded := make([][W]uint64, len(rows))
	for i, row := range rows {
		for j, v := range row {
			encoded[i][j] = v.Uint64()
		}
		leaves[i] = hashRow(i, encoded[i])
	}
	tree := NewMerkleTree(leaves)
	outputs := NewProgramOutputs(trace.StackOutputs())

	seed := deriveSeed(program.Hash(), inputs.Stack, outputs.stack, tree.Root(), len(rows))
	nonce := grind(seed, opts.GrindingFactor)

	proof := &StarkProof{
		Options:     opts,
		TraceLength: len(rows),
		TraceRoot:   tree.Root(),
		Nonce:       nonce,
	}
	for _, idx := range queryIndices(seed, nonce, opts.NumQueries, len(rows)) {
		proof.Openings = append(proof.Openings, RowOpening{
			Index: idx,
			Row:   encoded[idx],
			Path:  tree.Path(idx),
		})
	}

	slog.Debug("proof generated",
		"program_hash", program.Hash().Short(),
		"trace_length", len(rows),
		"nonce", nonce,
		"openings", len(proof.Openings),
	)
	return outputs, proof, nil
}

// Verify checks that proof attests to a run of the program identified by
// programHash which started from publicInputs (push order) and ended with
// outputs.
func Verify(programHash canonical.Digest, publicInputs []uint64, outputs ProgramOutputs, proof *StarkProof) error {
	if proof == nil {
		return verifyErr(ErrCodeMalformedProof, "proof is missing")
	}
	if err := proof.Options.Validate(); err != nil {
		return verifyErr(ErrCodeMalformedProof, "%v", err)
	}
	if proof.TraceLength < 2 {
		return verifyErr(ErrCodeMalformedProof, "trace length %d is too short", proof.TraceLength)
	}
	if len(publicInputs) > W {
		return verifyErr(ErrCodeInputMismatch, "%d public inputs exceed the limit of %d", len(publicInputs), W)
	}
	if len(outputs.stack) != W {
		return verifyErr(ErrCodeOutputMismatch, "expected %d outputs, got %d", W, len(outputs.stack))
	}

	seed := deriveSeed(programHash, publicInputs, outputs.stack, proof.TraceRoot, proof.TraceLength)
	if leadingZeros(grindingHash(seed, proof.Nonce)) < proof.Options.GrindingFactor {
		return verifyErr(ErrCodeInsufficientWork, "proof-of-work nonce does not satisfy %d bits of grinding", proof.Options.GrindingFactor)
	}

	indices := queryIndices(seed, proof.Nonce, proof.Options.NumQueries, proof.TraceLength)
	if len(indices) != len(proof.Openings) {
		return verifyErr(ErrCodeQueryMismatch, "expected %d openings, got %d", len(indices), len(proof.Openings))
	}
	depth := depthFor(proof.TraceLength)
	for i, o := range proof.Openings {
		if o.Index != indices[i] {
			return verifyErr(ErrCodeQueryMismatch, "opening %d is for row %d, expected row %d", i, o.Index, indices[i])
		}
		if len(o.Path) != depth || !VerifyPath(proof.TraceRoot, hashRow(o.Index, o.Row), o.Index, o.Path) {
			return verifyErr(ErrCodeMerklePath, "invalid authentication path for row %d", o.Index)
		}
	}

	first, last := proof.Openings[0], proof.Openings[1]
	if first.Row != initialRow(publicInputs) {
		return verifyErr(ErrCodeInputMismatch, "first trace row does not match public inputs")
	}
	var want [W]uint64
	copy(want[:], outputs.stack)
	if last.Row != want {
		return verifyErr(ErrCodeOutputMismatch, "last trace row does not match program outputs")
	}
	return nil
}

// initialRow lays out public inputs the way the processor seeds the stack:
// the last input on top.
func initialRow(inputs []uint64) [W]uint64 {
	var row [W]uint64
	for i, v := range inputs {
		row[len(inputs)-1-i] = field.New(v).Uint64()
	}
	return row
}

func hashRow(index int, row [W]uint64) canonical.Digest {
	h := canonical.NewHasher(domainLeaf).WriteUint64(uint64(index))
	for _, v := range row {
		h.WriteUint64(v)
	}
	return h.Sum()
}

func deriveSeed(programHash canonical.Digest, inputs, outputs []uint64, root canonical.Digest, traceLength int) canonical.Digest {
	h := canonical.NewHasher(domainSeed).WriteDigest(programHash)
	h.WriteUint64(uint64(len(inputs)))
	for _, v := range inputs {
		h.WriteUint64(v)
	}
	h.WriteUint64(uint64(len(outputs)))
	for _, v := range outputs {
		h.WriteUint64(v)
	}
	return h.WriteDigest(root).WriteUint64(uint64(traceLength)).Sum()
}

func grindingHash(seed canonical.Digest, nonce uint64) canonical.Digest {
	return canonical.NewHasher(domainGrinding).WriteDigest(seed).WriteUint64(nonce).Sum()
}

func leadingZeros(d canonical.Digest) int {
	n := 0
	for i := 0; i < len(d); i += 8 {
		word := binary.BigEndian.Uint64(d[i : i+8])
		n += bits.LeadingZeros64(word)
		if word != 0 {
			break
		}
	}
	return n
}

// grind finds the smallest nonce whose grinding hash has at least factor
// leading zero bits.
func grind(seed canonical.Digest, factor int) uint64 {
	var nonce uint64
	for leadingZeros(grindingHash(seed, nonce)) < factor {
		nonce++
	}
	return nonce
}

// queryIndices returns the rows to open: the first, the last, then n
// pseudo-random rows.
func queryIndices(seed canonical.Digest, nonce uint64, n, traceLength int) []int {
	indices := make([]int, 0, n+2)
	indices = append(indices, 0, traceLength-1)
	for i := 0; i < n; i++ {
		d := canonical.NewHasher(domainQuery).WriteDigest(seed).WriteUint64(nonce).WriteUint64(uint64(i)).Sum()
		indices = append(indices, int(binary.LittleEndian.Uint64(d[:8])%uint64(traceLength)))
	}
	return indices
}
