package processor

import (
	"github.com/roach88/stackvm/internal/assembly"
	"github.com/roach88/stackvm/internal/field"
)

const u32Bound uint64 = 1 << 32

// apply executes one operation against the stack, memory and advice tape.
// For binary operations b is the top of the stack and a the element below.
func (p *process) apply(o assembly.Operation) error {
	switch o.Op {
	case assembly.OpNoop:

	// Stack manipulation
	case assembly.OpPush:
		p.push(o.Value)
	case assembly.OpPad:
		p.push(field.Zero())
	case assembly.OpDrop:
		p.pop()
	case assembly.OpDup:
		p.push(p.get(int(o.Param)))
	case assembly.OpSwap:
		n := int(o.Param)
		a, b := p.get(0), p.get(n)
		p.set(0, b)
		p.set(n, a)
	case assembly.OpSwapW:
		n := int(o.Param) * field.WordSize
		for i := 0; i < field.WordSize; i++ {
			a, b := p.get(i), p.get(n+i)
			p.set(i, b)
			p.set(n+i, a)
		}
	case assembly.OpMovUp:
		n := int(o.Param)
		v := p.get(n)
		for i := n; i > 0; i-- {
			p.set(i, p.get(i-1))
		}
		p.set(0, v)
	case assembly.OpMovDn:
		n := int(o.Param)
		v := p.get(0)
		for i := 0; i < n; i++ {
			p.set(i, p.get(i+1))
		}
		p.set(n, v)

	// Field arithmetic
	case assembly.OpAdd:
		b, a := p.pop(), p.pop()
		p.push(a.Add(b))
	case assembly.OpSub:
		b, a := p.pop(), p.pop()
		p.push(a.Sub(b))
	case assembly.OpMul:
		b, a := p.pop(), p.pop()
		p.push(a.Mul(b))
	case assembly.OpDiv:
		b, a := p.pop(), p.pop()
		if b.IsZero() {
			return p.fail(ErrCodeDivisionByZero, "division by zero")
		}
		p.push(a.Div(b))
	case assembly.OpNeg:
		p.push(p.pop().Neg())
	case assembly.OpInv:
		a := p.pop()
		if a.IsZero() {
			return p.fail(ErrCodeDivisionByZero, "division by zero: inverse of 0")
		}
		p.push(a.Inv())
	case assembly.OpIncr:
		p.push(p.pop().Add(field.One()))
	case assembly.OpPow2:
		a := p.pop()
		r, err := field.Pow2(a.Uint64())
		if err != nil {
			return p.fail(ErrCodeInvalidPow2, "pow2 exponent %s exceeds 63", a)
		}
		p.push(r)

	// Comparison and boolean
	case assembly.OpEq:
		b, a := p.pop(), p.pop()
		p.push(field.FromBool(a == b))
	case assembly.OpNeq:
		b, a := p.pop(), p.pop()
		p.push(field.FromBool(a != b))
	case assembly.OpLt:
		b, a := p.pop(), p.pop()
		p.push(field.FromBool(a.Less(b)))
	case assembly.OpLte:
		b, a := p.pop(), p.pop()
		p.push(field.FromBool(!b.Less(a)))
	case assembly.OpGt:
		b, a := p.pop(), p.pop()
		p.push(field.FromBool(b.Less(a)))
	case assembly.OpGte:
		b, a := p.pop(), p.pop()
		p.push(field.FromBool(!a.Less(b)))
	case assembly.OpEqW:
		eq := true
		for i := 0; i < field.WordSize; i++ {
			if p.get(i) != p.get(field.WordSize+i) {
				eq = false
			}
		}
		p.push(field.FromBool(eq))
	case assembly.OpIsOdd:
		p.push(field.New(p.pop().Uint64() & 1))
	case assembly.OpNot:
		a, err := p.popBool()
		if err != nil {
			return err
		}
		p.push(field.FromBool(!a))
	case assembly.OpAnd, assembly.OpOr, assembly.OpXor:
		b, err := p.popBool()
		if err != nil {
			return err
		}
		a, err := p.popBool()
		if err != nil {
			return err
		}
		var r bool
		switch o.Op {
		case assembly.OpAnd:
			r = a && b
		case assembly.OpOr:
			r = a || b
		default:
			r = a != b
		}
		p.push(field.FromBool(r))
	case assembly.OpAssert:
		if a := p.pop(); !a.IsOne() {
			return p.fail(ErrCodeFailedAssertion, "failed assertion: expected 1, got %s", a)
		}
	case assembly.OpAssertz:
		if a := p.pop(); !a.IsZero() {
			return p.fail(ErrCodeFailedAssertion, "failed assertion: expected 0, got %s", a)
		}
	case assembly.OpAssertEq:
		b, a := p.pop(), p.pop()
		if a != b {
			return p.fail(ErrCodeFailedAssertion, "failed assertion: %s != %s", a, b)
		}

	// u32
	case assembly.OpU32Assert:
		if a := p.get(0); !a.IsU32() {
			return p.fail(ErrCodeNotU32, "not a u32 value: %s", a)
		}
	case assembly.OpU32WrappingAdd, assembly.OpU32OverflowingAdd,
		assembly.OpU32WrappingSub, assembly.OpU32OverflowingSub,
		assembly.OpU32WrappingMul, assembly.OpU32CheckedDiv, assembly.OpU32CheckedMod:
		return p.applyU32(o.Op)

	// Memory
	case assembly.OpMemLoad:
		addr, err := p.popAddress()
		if err != nil {
			return err
		}
		w := p.memory[p.ctx][addr]
		p.push(w[0])
	case assembly.OpMemStore:
		addr, err := p.popAddress()
		if err != nil {
			return err
		}
		v := p.pop()
		p.memory[p.ctx][addr] = field.Word{v}
	case assembly.OpMemLoadW:
		addr, err := p.popAddress()
		if err != nil {
			return err
		}
		w := p.memory[p.ctx][addr]
		for i, v := range w {
			p.set(i, v)
		}
	case assembly.OpMemStoreW:
		addr, err := p.popAddress()
		if err != nil {
			return err
		}
		var w field.Word
		for i := range w {
			w[i] = p.get(i)
		}
		p.memory[p.ctx][addr] = w
	case assembly.OpFmpUpdate:
		next := int64(p.fmp[p.ctx]) + o.Param
		if next < int64(FmpMin) || uint64(next) >= fmpMax {
			return p.fail(ErrCodeInvalidFmp, "free memory pointer %d out of bounds", next)
		}
		p.fmp[p.ctx] = uint64(next)
	case assembly.OpLocAddr:
		p.push(field.New(p.fmp[p.ctx] - uint64(o.Param)))

	// Advice
	case assembly.OpAdvPush:
		v, err := p.popAdvice()
		if err != nil {
			return err
		}
		p.push(v)
	case assembly.OpAdvLoadW:
		if len(p.advice) < field.WordSize {
			return p.fail(ErrCodeAdviceEmpty, "advice tape is empty: need %d values, have %d", field.WordSize, len(p.advice))
		}
		for i := 0; i < field.WordSize; i++ {
			v, _ := p.popAdvice()
			p.set(i, v)
		}

	default:
		return p.fail(ErrCodeInvalidInputs, "unknown operation %s", o.Op)
	}
	return nil
}

func (p *process) applyU32(code assembly.Opcode) error {
	bf, af := p.pop(), p.pop()
	if !af.IsU32() {
		return p.fail(ErrCodeNotU32, "not a u32 value: %s", af)
	}
	if !bf.IsU32() {
		return p.fail(ErrCodeNotU32, "not a u32 value: %s", bf)
	}
	a, b := af.Uint64(), bf.Uint64()

	switch code {
	case assembly.OpU32WrappingAdd:
		p.push(field.New((a + b) % u32Bound))
	case assembly.OpU32OverflowingAdd:
		sum := a + b
		p.push(field.New(sum % u32Bound))
		p.push(field.New(sum / u32Bound))
	case assembly.OpU32WrappingSub:
		p.push(field.New((a - b) % u32Bound))
	case assembly.OpU32OverflowingSub:
		p.push(field.New((a - b) % u32Bound))
		p.push(field.FromBool(a < b))
	case assembly.OpU32WrappingMul:
		p.push(field.New((a * b) % u32Bound))
	case assembly.OpU32CheckedDiv:
		if b == 0 {
			return p.fail(ErrCodeDivisionByZero, "division by zero")
		}
		p.push(field.New(a / b))
	case assembly.OpU32CheckedMod:
		if b == 0 {
			return p.fail(ErrCodeDivisionByZero, "division by zero")
		}
		p.push(field.New(a % b))
	}
	return nil
}

func (p *process) popBool() (bool, error) {
	v := p.pop()
	switch v.Uint64() {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, p.fail(ErrCodeNotBinary, "not a binary value: %s", v)
}

func (p *process) popAddress() (uint64, error) {
	a := p.pop()
	if !a.IsU32() {
		return 0, p.fail(ErrCodeInvalidAddress, "memory address %s exceeds u32 range", a)
	}
	return a.Uint64(), nil
}

func (p *process) popAdvice() (field.Felt, error) {
	if len(p.advice) == 0 {
		return field.Felt{}, p.fail(ErrCodeAdviceEmpty, "advice tape is empty")
	}
	v := p.advice[0]
	p.advice = p.advice[1:]
	return v, nil
}
