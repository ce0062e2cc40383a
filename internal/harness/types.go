package harness

import (
	"github.com/roach88/stackvm/internal/processor"
)

// TraceEvent is one machine state of a scenario run.
type TraceEvent struct {
	Clk    int      `json:"clk"`
	Ctx    uint32   `json:"ctx"`
	Op     string   `json:"op,omitempty"`     // executed operation, empty on control cycles
	Marker string   `json:"marker,omitempty"` // block marker on control cycles
	Asm    string   `json:"asm,omitempty"`    // source instruction, debug mode only
	FMP    uint64   `json:"fmp"`
	Stack  []uint64 `json:"stack"` // visible stack, top first
}

// NewTraceEvent converts a machine state into a trace event.
func NewTraceEvent(s processor.VmState) TraceEvent {
	ev := TraceEvent{
		Clk:    s.Clk,
		Ctx:    s.Ctx,
		Marker: s.Control,
		FMP:    s.FMP,
		Stack:  trimZeros(s.Stack),
	}
	if s.Op != nil {
		ev.Op = s.Op.String()
	}
	if s.AsmOp != nil {
		ev.Asm = s.AsmOp.Instruction
	}
	return ev
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation held.
	Pass bool `json:"pass"`

	// Errors holds one message per failed expectation.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// ProgramHash is the hex program hash; empty if compilation failed.
	ProgramHash string `json:"program_hash,omitempty"`

	// Cycles is the number of cycles the run took; 0 if it did not complete.
	Cycles int `json:"cycles"`

	// Trace holds every machine state from the initial one onwards, up to
	// the failing cycle for runs that fail.
	Trace []TraceEvent `json:"trace"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Trace:  []TraceEvent{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
