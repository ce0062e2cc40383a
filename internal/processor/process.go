package processor

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/stackvm/internal/assembly"
	"github.com/roach88/stackvm/internal/field"
)

// W is the width of the visible stack.
const W = field.StackTopSize

// FmpMin is the initial free memory pointer of every context.
// Procedure locals are allocated upward from here.
const FmpMin uint64 = 1 << 30

// fmpMax is the exclusive upper bound of the free memory pointer.
const fmpMax uint64 = 1 << 32

// Control markers reported for cycles that do not execute an operation.
const (
	ControlSpan    = "span"
	ControlJoin    = "join"
	ControlSplit   = "split"
	ControlLoop    = "loop"
	ControlRepeat  = "repeat"
	ControlCall    = "call"
	ControlSyscall = "syscall"
	ControlEnd     = "end"
)

// errStopped aborts execution when an iterator consumer stops early.
var errStopped = errors.New("execution stopped by caller")

type process struct {
	program *assembly.Program
	opts    ExecutionOptions

	// stack is stored bottom first; s0 is the last element.
	stack  []field.Felt
	advice []field.Felt

	memory  map[uint32]map[uint64]field.Word
	fmp     map[uint32]uint64
	ctx     uint32
	nextCtx uint32
	clk     int
	rows    [][W]field.Felt

	// observe receives a snapshot after every cycle. Returning false stops
	// execution.
	observe func(VmState) bool
}

func newProcess(program *assembly.Program, inputs ProgramInputs, opts ExecutionOptions) (*process, error) {
	if err := inputs.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxCycles <= 0 {
		opts.MaxCycles = DefaultMaxCycles
	}

	p := &process{
		program: program,
		opts:    opts,
		stack:   make([]field.Felt, W-len(inputs.Stack), W+8),
		advice:  field.Slice(inputs.Advice),
		memory:  map[uint32]map[uint64]field.Word{0: {}},
		fmp:     map[uint32]uint64{0: FmpMin},
		nextCtx: 1,
	}
	p.stack = append(p.stack, field.Slice(inputs.Stack)...)
	p.rows = append(p.rows, p.top())
	return p, nil
}

func (p *process) run() error {
	if p.observe != nil && !p.observe(p.snapshot(nil, nil, "")) {
		return errStopped
	}
	return p.execute(p.program.Root())
}

func (p *process) execute(b assembly.CodeBlock) error {
	switch blk := b.(type) {
	case *assembly.Span:
		return p.executeSpan(blk)

	case *assembly.Join:
		if err := p.control(ControlJoin); err != nil {
			return err
		}
		for _, child := range blk.Children {
			if err := p.execute(child); err != nil {
				return err
			}
		}
		return p.control(ControlEnd)

	case *assembly.Split:
		cond, err := p.popBinary("split condition")
		if err != nil {
			return err
		}
		if err := p.control(ControlSplit); err != nil {
			return err
		}
		branch := blk.OnFalse
		if cond {
			branch = blk.OnTrue
		}
		if err := p.execute(branch); err != nil {
			return err
		}
		return p.control(ControlEnd)

	case *assembly.Loop:
		cond, err := p.popBinary("loop condition")
		if err != nil {
			return err
		}
		if err := p.control(ControlLoop); err != nil {
			return err
		}
		for cond {
			if err := p.execute(blk.Body); err != nil {
				return err
			}
			if cond, err = p.popBinary("loop condition"); err != nil {
				return err
			}
			if cond {
				if err := p.control(ControlRepeat); err != nil {
					return err
				}
			}
		}
		return p.control(ControlEnd)

	case *assembly.Call:
		return p.executeCall(blk)

	default:
		return fmt.Errorf("unsupported code block %T", b)
	}
}

func (p *process) executeSpan(span *assembly.Span) error {
	if err := p.control(ControlSpan); err != nil {
		return err
	}
	for i := range span.Ops {
		p.decorate(span.Decorators[i])
		o := &span.Ops[i]
		if err := p.apply(*o); err != nil {
			return err
		}
		var asmOp *assembly.AsmOp
		if span.AsmOps != nil {
			asmOp = span.AsmOps[i]
		}
		if err := p.tick(o, asmOp, ""); err != nil {
			return err
		}
	}
	p.decorate(span.Decorators[len(span.Ops)])
	return p.control(ControlEnd)
}

func (p *process) executeCall(call *assembly.Call) error {
	marker := ControlCall
	if call.Syscall {
		marker = ControlSyscall
		if !p.program.Kernel().Contains(call.Target.Hash()) {
			return p.fail(ErrCodeSyscallTarget, "syscall target %q (%s) not in kernel", call.Name, call.Target.Hash().Short())
		}
	}
	if err := p.control(marker); err != nil {
		return err
	}

	saved := p.ctx
	if call.Syscall {
		p.ctx = 0
	} else {
		p.ctx = p.nextCtx
		p.nextCtx++
		p.memory[p.ctx] = make(map[uint64]field.Word)
		p.fmp[p.ctx] = FmpMin
	}
	if err := p.execute(call.Target); err != nil {
		return err
	}
	p.ctx = saved
	return p.control(ControlEnd)
}

func (p *process) control(marker string) error {
	return p.tick(nil, nil, marker)
}

// tick completes one clock cycle.
func (p *process) tick(o *assembly.Operation, asmOp *assembly.AsmOp, marker string) error {
	if p.clk >= p.opts.MaxCycles {
		return p.fail(ErrCodeCycleLimit, "cycle limit of %d exceeded", p.opts.MaxCycles)
	}
	p.clk++
	p.rows = append(p.rows, p.top())
	if p.observe != nil && !p.observe(p.snapshot(o, asmOp, marker)) {
		return errStopped
	}
	return nil
}

func (p *process) decorate(decorators []assembly.Decorator) {
	for _, d := range decorators {
		if d.Kind == assembly.DecoratorDebugStack {
			slog.Debug("debug.stack",
				"clk", p.clk,
				"ctx", p.ctx,
				"line", d.Line,
				"stack", formatStack(p.top()),
			)
		}
	}
}

func (p *process) snapshot(o *assembly.Operation, asmOp *assembly.AsmOp, marker string) VmState {
	mem := p.memory[p.ctx]
	entries := make([]MemoryEntry, 0, len(mem))
	for addr, w := range mem {
		entries = append(entries, MemoryEntry{Addr: addr, Word: w})
	}
	slices.SortFunc(entries, func(a, b MemoryEntry) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})

	var opCopy *assembly.Operation
	if o != nil {
		c := *o
		opCopy = &c
	}
	top := p.top()
	return VmState{
		Clk:     p.clk,
		Ctx:     p.ctx,
		Op:      opCopy,
		Control: marker,
		AsmOp:   asmOp,
		FMP:     p.fmp[p.ctx],
		Stack:   top[:],
		Memory:  entries,
	}
}

func (p *process) fail(code ExecutionErrorCode, format string, args ...any) *ExecutionError {
	return &ExecutionError{Code: code, Message: fmt.Sprintf(format, args...), Clk: p.clk + 1}
}

// Stack primitives. Index 0 is the top of the stack.

func (p *process) top() [W]field.Felt {
	var out [W]field.Felt
	n := len(p.stack)
	for i := range out {
		out[i] = p.stack[n-1-i]
	}
	return out
}

func (p *process) get(i int) field.Felt {
	return p.stack[len(p.stack)-1-i]
}

func (p *process) set(i int, v field.Felt) {
	p.stack[len(p.stack)-1-i] = v
}

func (p *process) push(v field.Felt) {
	p.stack = append(p.stack, v)
}

func (p *process) pop() field.Felt {
	n := len(p.stack)
	v := p.stack[n-1]
	p.stack = p.stack[:n-1]
	if len(p.stack) < W {
		p.stack = slices.Insert(p.stack, 0, field.Zero())
	}
	return v
}

func (p *process) popBinary(what string) (bool, error) {
	v := p.pop()
	switch v.Uint64() {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, p.fail(ErrCodeNotBinary, "%s is not a binary value: %s", what, v)
}

func formatStack(top [W]field.Felt) string {
	parts := make([]string, len(top))
	for i, v := range top {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
