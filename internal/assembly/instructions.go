package assembly

import (
	"strings"

	"github.com/roach88/stackvm/internal/field"
)

// simpleInstruction maps a mnemonic to a single opcode. When operand is set
// the instruction accepts one optional immediate that is pushed before the
// operation runs (add.5 is push.5 add, mem_load.8 is push.8 mem_load).
type simpleInstruction struct {
	op      Opcode
	operand bool
}

var simpleInstructions = map[string]simpleInstruction{
	"noop":   {op: OpNoop},
	"pad":    {op: OpPad},
	"drop":   {op: OpDrop},
	"add":    {op: OpAdd, operand: true},
	"sub":    {op: OpSub, operand: true},
	"mul":    {op: OpMul, operand: true},
	"div":    {op: OpDiv, operand: true},
	"neg":    {op: OpNeg},
	"inv":    {op: OpInv},
	"incr":   {op: OpIncr},
	"pow2":   {op: OpPow2},
	"eq":     {op: OpEq, operand: true},
	"neq":    {op: OpNeq, operand: true},
	"lt":     {op: OpLt},
	"lte":    {op: OpLte},
	"gt":     {op: OpGt},
	"gte":    {op: OpGte},
	"eqw":    {op: OpEqW},
	"is_odd": {op: OpIsOdd},
	"not":    {op: OpNot},
	"and":    {op: OpAnd},
	"or":     {op: OpOr},
	"xor":    {op: OpXor},

	"assert":    {op: OpAssert},
	"assertz":   {op: OpAssertz},
	"assert_eq": {op: OpAssertEq},

	"u32assert":          {op: OpU32Assert},
	"u32wrapping_add":    {op: OpU32WrappingAdd},
	"u32overflowing_add": {op: OpU32OverflowingAdd},
	"u32wrapping_sub":    {op: OpU32WrappingSub},
	"u32overflowing_sub": {op: OpU32OverflowingSub},
	"u32wrapping_mul":    {op: OpU32WrappingMul},
	"u32checked_div":     {op: OpU32CheckedDiv},
	"u32checked_mod":     {op: OpU32CheckedMod},

	"mem_load":   {op: OpMemLoad, operand: true},
	"mem_store":  {op: OpMemStore, operand: true},
	"mem_loadw":  {op: OpMemLoadW, operand: true},
	"mem_storew": {op: OpMemStoreW, operand: true},

	"adv_loadw": {op: OpAdvLoadW},
}

var localInstructions = map[string]Opcode{
	"loc_load":   OpMemLoad,
	"loc_store":  OpMemStore,
	"loc_loadw":  OpMemLoadW,
	"loc_storew": OpMemStoreW,
}

// expandInstruction turns one source instruction into primitive operations.
// locals is the number of locals of the enclosing procedure.
func expandInstruction(tok token, locals int) ([]Operation, error) {
	parts := strings.Split(tok.Text, ".")
	name, params := parts[0], parts[1:]

	if si, ok := simpleInstructions[name]; ok {
		switch {
		case len(params) == 0:
			return []Operation{op(si.op)}, nil
		case si.operand && len(params) == 1:
			v, err := parseValue(params[0])
			if err != nil {
				return nil, invalidParam(tok, err)
			}
			if isMemoryOp(si.op) && v >= 1<<32 {
				return nil, newError(ErrCodeInvalidParameter, tok.Line,
					"memory address %d in %q exceeds u32 range", v, tok.Text)
			}
			return []Operation{push(field.New(v)), op(si.op)}, nil
		default:
			return nil, newError(ErrCodeInvalidParameter, tok.Line, "too many parameters for %q", tok.Text)
		}
	}

	if memOp, ok := localInstructions[name]; ok {
		idx, err := singleParam(tok, params, 0, 1<<16)
		if err != nil {
			return nil, err
		}
		if int(idx) >= locals {
			return nil, newError(ErrCodeInvalidParameter, tok.Line,
				"local index %d in %q out of range for procedure with %d locals", idx, tok.Text, locals)
		}
		return []Operation{withParam(OpLocAddr, int64(locals)-int64(idx)), op(memOp)}, nil
	}

	switch name {
	case "push":
		if len(params) == 0 || len(params) > field.StackTopSize {
			return nil, newError(ErrCodeInvalidParameter, tok.Line,
				"push expects between 1 and %d values, got %d", field.StackTopSize, len(params))
		}
		ops := make([]Operation, 0, len(params))
		for _, p := range params {
			v, err := parseValue(p)
			if err != nil {
				return nil, invalidParam(tok, err)
			}
			ops = append(ops, push(field.New(v)))
		}
		return ops, nil

	case "padw":
		if err := noParams(tok, params); err != nil {
			return nil, err
		}
		return repeatOp(op(OpPad), field.WordSize), nil

	case "dropw":
		if err := noParams(tok, params); err != nil {
			return nil, err
		}
		return repeatOp(op(OpDrop), field.WordSize), nil

	case "dup":
		n, err := optionalParam(tok, params, 0, 0, field.StackTopSize-1)
		if err != nil {
			return nil, err
		}
		return []Operation{withParam(OpDup, int64(n))}, nil

	case "dupw":
		n, err := optionalParam(tok, params, 0, 0, 3)
		if err != nil {
			return nil, err
		}
		return repeatOp(withParam(OpDup, int64(4*n+3)), field.WordSize), nil

	case "swap":
		n, err := optionalParam(tok, params, 1, 1, field.StackTopSize-1)
		if err != nil {
			return nil, err
		}
		return []Operation{withParam(OpSwap, int64(n))}, nil

	case "swapw":
		n, err := optionalParam(tok, params, 1, 1, 3)
		if err != nil {
			return nil, err
		}
		return []Operation{withParam(OpSwapW, int64(n))}, nil

	case "movup", "movdn":
		n, err := singleParam(tok, params, 2, field.StackTopSize-1)
		if err != nil {
			return nil, err
		}
		code := OpMovUp
		if name == "movdn" {
			code = OpMovDn
		}
		return []Operation{withParam(code, int64(n))}, nil

	case "locaddr":
		idx, err := singleParam(tok, params, 0, 1<<16)
		if err != nil {
			return nil, err
		}
		if int(idx) >= locals {
			return nil, newError(ErrCodeInvalidParameter, tok.Line,
				"local index %d in %q out of range for procedure with %d locals", idx, tok.Text, locals)
		}
		return []Operation{withParam(OpLocAddr, int64(locals)-int64(idx))}, nil

	case "adv_push":
		n, err := singleParam(tok, params, 1, field.StackTopSize)
		if err != nil {
			return nil, err
		}
		return repeatOp(op(OpAdvPush), int(n)), nil
	}

	return nil, newError(ErrCodeUndefinedInstruction, tok.Line, "undefined instruction %q", tok.Text)
}

func isMemoryOp(code Opcode) bool {
	switch code {
	case OpMemLoad, OpMemStore, OpMemLoadW, OpMemStoreW:
		return true
	}
	return false
}

func repeatOp(o Operation, n int) []Operation {
	ops := make([]Operation, n)
	for i := range ops {
		ops[i] = o
	}
	return ops
}

func invalidParam(tok token, err error) *AssemblyError {
	return newError(ErrCodeInvalidParameter, tok.Line, "invalid parameter in %q: %v", tok.Text, err)
}

func noParams(tok token, params []string) error {
	if len(params) != 0 {
		return newError(ErrCodeInvalidParameter, tok.Line, "instruction %q takes no parameters", tok.Text)
	}
	return nil
}

func singleParam(tok token, params []string, lo, hi uint64) (uint64, error) {
	if len(params) != 1 {
		return 0, newError(ErrCodeInvalidParameter, tok.Line, "instruction %q expects exactly one parameter", tok.Text)
	}
	v, err := parseBounded(params[0], lo, hi)
	if err != nil {
		return 0, invalidParam(tok, err)
	}
	return v, nil
}

func optionalParam(tok token, params []string, def, lo, hi uint64) (uint64, error) {
	if len(params) == 0 {
		return def, nil
	}
	return singleParam(tok, params, lo, hi)
}
