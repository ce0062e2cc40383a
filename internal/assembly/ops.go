package assembly

import (
	"encoding/binary"
	"fmt"

	"github.com/roach88/stackvm/internal/field"
)

// Opcode identifies a primitive VM operation.
// Source instructions expand into one or more operations.
type Opcode uint8

const (
	OpNoop Opcode = iota

	// Stack manipulation
	OpPush
	OpPad
	OpDrop
	OpDup
	OpSwap
	OpSwapW
	OpMovUp
	OpMovDn

	// Field arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpInv
	OpIncr
	OpPow2

	// Comparison and boolean
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpEqW
	OpIsOdd
	OpNot
	OpAnd
	OpOr
	OpXor
	OpAssert
	OpAssertz
	OpAssertEq

	// u32
	OpU32Assert
	OpU32WrappingAdd
	OpU32OverflowingAdd
	OpU32WrappingSub
	OpU32OverflowingSub
	OpU32WrappingMul
	OpU32CheckedDiv
	OpU32CheckedMod

	// Memory
	OpMemLoad
	OpMemStore
	OpMemLoadW
	OpMemStoreW
	OpFmpUpdate
	OpLocAddr

	// Advice
	OpAdvPush
	OpAdvLoadW
)

var opcodeNames = map[Opcode]string{
	OpNoop:              "noop",
	OpPush:              "push",
	OpPad:               "pad",
	OpDrop:              "drop",
	OpDup:               "dup",
	OpSwap:              "swap",
	OpSwapW:             "swapw",
	OpMovUp:             "movup",
	OpMovDn:             "movdn",
	OpAdd:               "add",
	OpSub:               "sub",
	OpMul:               "mul",
	OpDiv:               "div",
	OpNeg:               "neg",
	OpInv:               "inv",
	OpIncr:              "incr",
	OpPow2:              "pow2",
	OpEq:                "eq",
	OpNeq:               "neq",
	OpLt:                "lt",
	OpLte:               "lte",
	OpGt:                "gt",
	OpGte:               "gte",
	OpEqW:               "eqw",
	OpIsOdd:             "is_odd",
	OpNot:               "not",
	OpAnd:               "and",
	OpOr:                "or",
	OpXor:               "xor",
	OpAssert:            "assert",
	OpAssertz:           "assertz",
	OpAssertEq:          "assert_eq",
	OpU32Assert:         "u32assert",
	OpU32WrappingAdd:    "u32wrapping_add",
	OpU32OverflowingAdd: "u32overflowing_add",
	OpU32WrappingSub:    "u32wrapping_sub",
	OpU32OverflowingSub: "u32overflowing_sub",
	OpU32WrappingMul:    "u32wrapping_mul",
	OpU32CheckedDiv:     "u32checked_div",
	OpU32CheckedMod:     "u32checked_mod",
	OpMemLoad:           "mem_load",
	OpMemStore:          "mem_store",
	OpMemLoadW:          "mem_loadw",
	OpMemStoreW:         "mem_storew",
	OpFmpUpdate:         "fmpupdate",
	OpLocAddr:           "locaddr",
	OpAdvPush:           "adv_push",
	OpAdvLoadW:          "adv_loadw",
}

// String returns the mnemonic of the opcode.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

// Operation is a single primitive step executed in one clock cycle.
//
// Value carries the pushed element for OpPush. Param carries the stack index
// for dup/swap/movup/movdn/swapw, the signed delta for fmpupdate and the
// distance below the frame pointer for locaddr.
type Operation struct {
	Op    Opcode
	Value field.Felt
	Param int64
}

// String renders the operation the way the trace printer shows it.
func (o Operation) String() string {
	switch o.Op {
	case OpPush:
		return fmt.Sprintf("push(%s)", o.Value)
	case OpDup, OpSwap, OpSwapW, OpMovUp, OpMovDn, OpFmpUpdate, OpLocAddr:
		return fmt.Sprintf("%s(%d)", o.Op, o.Param)
	default:
		return o.Op.String()
	}
}

// encode appends the hash encoding of the operation.
func (o Operation) encode(buf []byte) []byte {
	buf = append(buf, byte(o.Op))
	buf = binary.LittleEndian.AppendUint64(buf, o.Value.Uint64())
	buf = binary.LittleEndian.AppendUint64(buf, uint64(o.Param))
	return buf
}

func op(code Opcode) Operation {
	return Operation{Op: code}
}

func push(v field.Felt) Operation {
	return Operation{Op: OpPush, Value: v}
}

func withParam(code Opcode, p int64) Operation {
	return Operation{Op: code, Param: p}
}

// AsmOp links an operation back to the source instruction it was expanded
// from. It is recorded only when the assembler runs in debug mode.
type AsmOp struct {
	// Instruction is the source text, e.g. "mem_load.4".
	Instruction string

	// Line is the 1-based source line.
	Line int

	// NumCycles is the number of operations the instruction expanded into.
	NumCycles int

	// CycleIdx is the 1-based position of this operation within the expansion.
	CycleIdx int
}

// DecoratorKind identifies a debug decorator.
type DecoratorKind uint8

const (
	// DecoratorDebugStack asks the processor to log the visible stack.
	DecoratorDebugStack DecoratorKind = iota + 1
)

// Decorator is attached to the operation that follows it in a span.
// Decorators never consume cycles and never affect hashes.
type Decorator struct {
	Kind DecoratorKind
	Line int
}
