package processor

import (
	"errors"
	"iter"
	"log/slog"
	"slices"

	"github.com/roach88/stackvm/internal/assembly"
	"github.com/roach88/stackvm/internal/canonical"
	"github.com/roach88/stackvm/internal/field"
)

// ExecutionTrace is the record of a completed run.
type ExecutionTrace struct {
	programHash canonical.Digest
	rows        [][W]field.Felt
	stack       []field.Felt
	memory      map[uint32]map[uint64]field.Word
}

// Execute runs program against inputs with default options.
func Execute(program *assembly.Program, inputs ProgramInputs) (*ExecutionTrace, error) {
	return ExecuteWithOptions(program, inputs, DefaultExecutionOptions())
}

// ExecuteWithOptions runs program against inputs.
func ExecuteWithOptions(program *assembly.Program, inputs ProgramInputs, opts ExecutionOptions) (*ExecutionTrace, error) {
	p, err := newProcess(program, inputs, opts)
	if err != nil {
		return nil, err
	}
	if err := p.run(); err != nil {
		slog.Debug("execution failed", "program_hash", program.Hash().Short(), "cycles", p.clk, "error", err)
		return nil, err
	}
	slog.Debug("execution finished", "program_hash", program.Hash().Short(), "cycles", p.clk)

	return &ExecutionTrace{
		programHash: program.Hash(),
		rows:        p.rows,
		stack:       p.stack,
		memory:      p.memory,
	}, nil
}

// ProgramHash identifies the executed program.
func (t *ExecutionTrace) ProgramHash() canonical.Digest {
	return t.programHash
}

// Cycles returns the number of clock cycles the run took.
func (t *ExecutionTrace) Cycles() int {
	return len(t.rows) - 1
}

// LastStackState returns the visible stack after the last cycle; index 0
// is the top.
func (t *ExecutionTrace) LastStackState() [W]field.Felt {
	return t.rows[len(t.rows)-1]
}

// StackOutputs returns the visible stack after the last cycle as integers,
// top first.
func (t *ExecutionTrace) StackOutputs() []uint64 {
	last := t.LastStackState()
	return field.Uint64s(last[:])
}

// StackDepth returns the final stack depth, never less than W.
func (t *ExecutionTrace) StackDepth() int {
	return len(t.stack)
}

// Rows returns the visible stack after every cycle. Row 0 is the initial
// stack and row i the stack after cycle i.
func (t *ExecutionTrace) Rows() [][W]field.Felt {
	return slices.Clone(t.rows)
}

// MemoryValue returns the word stored at addr in context ctx.
func (t *ExecutionTrace) MemoryValue(ctx uint32, addr uint64) (field.Word, bool) {
	w, ok := t.memory[ctx][addr]
	return w, ok
}

// MemoryEntry is one populated memory word.
type MemoryEntry struct {
	Addr uint64
	Word field.Word
}

// VmState is the machine state after one clock cycle.
type VmState struct {
	// Clk is the cycle just completed; 0 is the initial state.
	Clk int

	// Ctx is the active memory context.
	Ctx uint32

	// Op is the executed operation, nil on control cycles.
	Op *assembly.Operation

	// Control names the block marker of a control cycle ("span", "join",
	// "end", ...); empty when Op is set or for the initial state.
	Control string

	// AsmOp is the source instruction Op came from. Debug mode only.
	AsmOp *assembly.AsmOp

	// FMP is the free memory pointer of the active context.
	FMP uint64

	// Stack is the visible stack, top first.
	Stack []field.Felt

	// Memory holds the populated words of the active context, by address.
	Memory []MemoryEntry
}

// VmStateIterator yields machine states one cycle at a time. It is single
// pass and cannot be restarted.
type VmStateIterator struct {
	next func() (VmState, bool)
	stop func()
	err  error
	done bool
}

// ExecuteIter runs program lazily: each call to Next advances execution by
// one cycle. Input validation errors are reported by Err before any state
// is produced.
func ExecuteIter(program *assembly.Program, inputs ProgramInputs) *VmStateIterator {
	it := &VmStateIterator{}
	p, err := newProcess(program, inputs, DefaultExecutionOptions())
	if err != nil {
		it.err = err
		it.done = true
		return it
	}

	seq := func(yield func(VmState) bool) {
		p.observe = yield
		if err := p.run(); err != nil && !errors.Is(err, errStopped) {
			it.err = err
		}
	}
	it.next, it.stop = iter.Pull(iter.Seq[VmState](seq))
	return it
}

// Next returns the next state, or false once execution has finished or
// failed. After false, Err reports the failure if any.
func (it *VmStateIterator) Next() (VmState, bool) {
	if it.done {
		return VmState{}, false
	}
	s, ok := it.next()
	if !ok {
		it.Close()
	}
	return s, ok
}

// Err returns the execution error that ended iteration, if any.
func (it *VmStateIterator) Err() error {
	return it.err
}

// Close stops execution early. It is safe to call more than once.
func (it *VmStateIterator) Close() {
	if it.done {
		return
	}
	it.done = true
	it.stop()
}

// All returns the remaining states as a range-over-func sequence.
func (it *VmStateIterator) All() iter.Seq[VmState] {
	return func(yield func(VmState) bool) {
		for {
			s, ok := it.Next()
			if !ok || !yield(s) {
				return
			}
		}
	}
}
