package assembly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stackvm/internal/field"
)

type mapProvider map[string]string

func (m mapProvider) Module(path string) (string, bool) {
	src, ok := m[path]
	return src, ok
}

func mustCompile(t *testing.T, a *Assembler, src string) *Program {
	t.Helper()
	p, err := a.Compile(src)
	require.NoError(t, err)
	return p
}

func TestCompile_SimpleSpan(t *testing.T) {
	p := mustCompile(t, New(nil), "begin push.5 push.7 add end")

	span, ok := p.Root().(*Span)
	require.True(t, ok, "expected root to be a span, got %T", p.Root())
	require.Len(t, span.Ops, 3)
	assert.Equal(t, OpPush, span.Ops[0].Op)
	assert.Equal(t, field.New(5), span.Ops[0].Value)
	assert.Equal(t, OpAdd, span.Ops[2].Op)
	assert.Nil(t, span.AsmOps, "asm ops are only recorded in debug mode")
	assert.Equal(t, 1, p.NumBlocks())
}

func TestCompile_HashIsDeterministic(t *testing.T) {
	src := `
proc.double
    dup add
end
begin
    push.3 exec.double
    repeat.2 push.1 add end
    if.true push.1 else push.2 end
    debug.stack
end`
	p1 := mustCompile(t, New(nil), src)
	p2 := mustCompile(t, New(nil), src)
	p3 := mustCompile(t, New(nil).WithDebugMode(true), src)

	assert.Equal(t, p1.Hash(), p2.Hash())
	assert.Equal(t, p1.Hash(), p3.Hash(), "debug mode must not change the hash")
	assert.False(t, p1.Hash().IsZero())
}

func TestCompile_DifferentProgramsDifferentHashes(t *testing.T) {
	p1 := mustCompile(t, New(nil), "begin push.1 end")
	p2 := mustCompile(t, New(nil), "begin push.2 end")
	p3 := mustCompile(t, New(nil), "begin push.1 if.true noop end end")

	assert.NotEqual(t, p1.Hash(), p2.Hash())
	assert.NotEqual(t, p1.Hash(), p3.Hash())
}

func TestCompile_CommentsAndHex(t *testing.T) {
	p := mustCompile(t, New(nil), "# comment\nbegin\n  push.0x10 # trailing\nend\n")
	span := p.Root().(*Span)
	assert.Equal(t, field.New(16), span.Ops[0].Value)
}

func TestCompile_DebugModeRecordsAsmOps(t *testing.T) {
	p := mustCompile(t, New(nil).WithDebugMode(true), "begin\npush.1\nmem_load.4\nend")

	span := p.Root().(*Span)
	require.Len(t, span.AsmOps, 3)
	assert.Equal(t, &AsmOp{Instruction: "push.1", Line: 2, NumCycles: 1, CycleIdx: 1}, span.AsmOps[0])
	assert.Equal(t, &AsmOp{Instruction: "mem_load.4", Line: 3, NumCycles: 2, CycleIdx: 1}, span.AsmOps[1])
	assert.Equal(t, &AsmOp{Instruction: "mem_load.4", Line: 3, NumCycles: 2, CycleIdx: 2}, span.AsmOps[2])
}

func TestCompile_DebugDecorators(t *testing.T) {
	src := "begin push.1 debug.stack push.2 debug.stack end"

	p := mustCompile(t, New(nil).WithDebugMode(true), src)
	span := p.Root().(*Span)
	assert.Equal(t, []Decorator{{Kind: DecoratorDebugStack, Line: 1}}, span.Decorators[1])
	assert.Equal(t, []Decorator{{Kind: DecoratorDebugStack, Line: 1}}, span.Decorators[2])

	p = mustCompile(t, New(nil), src)
	assert.Empty(t, p.Root().(*Span).Decorators)
}

func TestCompile_ControlFlowBlocks(t *testing.T) {
	p := mustCompile(t, New(nil), `
begin
    push.1
    if.true push.2 else push.3 end
    push.0
    while.true push.0 end
end`)

	join, ok := p.Root().(*Join)
	require.True(t, ok, "expected join, got %T", p.Root())
	require.Len(t, join.Children, 4)
	assert.IsType(t, &Span{}, join.Children[0])
	assert.IsType(t, &Split{}, join.Children[1])
	assert.IsType(t, &Span{}, join.Children[2])
	assert.IsType(t, &Loop{}, join.Children[3])

	split := join.Children[1].(*Split)
	assert.Equal(t, field.New(2), split.OnTrue.(*Span).Ops[0].Value)
	assert.Equal(t, field.New(3), split.OnFalse.(*Span).Ops[0].Value)
}

func TestCompile_IfWithoutElseHasNoopBranch(t *testing.T) {
	p := mustCompile(t, New(nil), "begin push.1 if.true push.2 end end")
	join := p.Root().(*Join)
	split := join.Children[1].(*Split)
	assert.Equal(t, []Operation{op(OpNoop)}, split.OnFalse.(*Span).Ops)
}

func TestCompile_RepeatUnrolls(t *testing.T) {
	p := mustCompile(t, New(nil), "begin push.0 repeat.3 incr end end")
	span := p.Root().(*Span)
	require.Len(t, span.Ops, 4)
	for _, o := range span.Ops[1:] {
		assert.Equal(t, OpIncr, o.Op)
	}
}

func TestCompile_ProcedureLocals(t *testing.T) {
	p := mustCompile(t, New(nil), `
proc.keep.2
    loc_store.1
    loc_load.1
end
begin
    push.9 exec.keep
end`)

	join := p.Root().(*Join)
	body := join.Children[1].(*Span)
	assert.Equal(t, []Operation{
		withParam(OpFmpUpdate, 2),
		withParam(OpLocAddr, 1), op(OpMemStore),
		withParam(OpLocAddr, 1), op(OpMemLoad),
		withParam(OpFmpUpdate, -2),
	}, body.Ops)
}

func TestCompile_CallWrapsTarget(t *testing.T) {
	p := mustCompile(t, New(nil), `
proc.foo
    push.1
end
begin
    call.foo
    exec.foo
end`)

	join := p.Root().(*Join)
	call, ok := join.Children[0].(*Call)
	require.True(t, ok)
	assert.Equal(t, "foo", call.Name)
	assert.False(t, call.Syscall)
	assert.Equal(t, join.Children[1].Hash(), call.Target.Hash())
	assert.NotEqual(t, call.Hash(), call.Target.Hash())
}

func TestCompile_Imports(t *testing.T) {
	provider := mapProvider{
		"std::math::ext": "export.triple dup dup add add end",
	}
	p := mustCompile(t, New(provider), "use.std::math::ext\nbegin push.2 exec.ext::triple end")
	assert.Equal(t, 3, p.NumBlocks())
}

func TestCompile_Errors(t *testing.T) {
	provider := mapProvider{
		"std::a":    "use.std::b\nexport.f push.1 end",
		"std::b":    "use.std::a\nexport.g push.1 end",
		"std::priv": "proc.hidden push.1 end",
		"std::bad":  "export.f foo end",
	}

	tests := []struct {
		name string
		src  string
		code AssemblyErrorCode
		msg  string
	}{
		{"undefined instruction", "begin\npush.1\nfoo\nend", ErrCodeUndefinedInstruction, `undefined instruction "foo" (line 3)`},
		{"undefined procedure", "begin exec.nope end", ErrCodeUndefinedProcedure, `undefined procedure "nope"`},
		{"undefined module", "use.std::missing\nbegin push.1 end", ErrCodeUndefinedModule, `undefined module "std::missing"`},
		{"unknown alias", "begin exec.other::f end", ErrCodeUndefinedModule, `undefined module "other"`},
		{"private procedure", "use.std::priv\nbegin exec.priv::hidden end", ErrCodeUndefinedProcedure, "undefined procedure"},
		{"error in library", "use.std::bad\nbegin push.1 end", ErrCodeUndefinedInstruction, "module std::bad"},
		{"circular import", "use.std::a\nbegin push.1 end", ErrCodeCircularImport, "std::a -> std::b -> std::a"},
		{"missing end", "begin push.1", ErrCodeMalformedBlock, "missing end"},
		{"stray else", "begin else end", ErrCodeMalformedBlock, `unexpected "else"`},
		{"missing begin", "proc.foo push.1 end", ErrCodeMissingProgram, "no begin block"},
		{"duplicate procedure", "proc.a push.1 end\nproc.a push.2 end\nbegin push.1 end", ErrCodeDuplicateProcedure, "duplicate procedure"},
		{"invalid name", "proc.1bad push.1 end\nbegin push.1 end", ErrCodeInvalidProcedureName, "invalid procedure name"},
		{"bad value", "begin push.abc end", ErrCodeInvalidParameter, "invalid parameter"},
		{"too many pushes", "begin push.1.2.3.4.5.6.7.8.9.10.11.12.13.14.15.16.17 end", ErrCodeInvalidParameter, "between 1 and 16"},
		{"movup range", "begin movup.1 end", ErrCodeInvalidParameter, "not in range"},
		{"local out of range", "proc.f.1 loc_load.1 end\nbegin push.1 end", ErrCodeInvalidParameter, "out of range"},
		{"params on plain op", "begin neg.1 end", ErrCodeInvalidParameter, "too many parameters"},
		{"syscall without kernel", "begin syscall.foo end", ErrCodeUndefinedKernelProcedure, "not an exported kernel procedure"},
		{"repeat zero", "begin repeat.0 push.1 end end", ErrCodeInvalidParameter, "repeat count"},
		{"trailing token", "begin push.1 end push.2", ErrCodeUnexpectedToken, "unexpected token"},
		{"memory address range", "begin mem_load.4294967296 end", ErrCodeInvalidParameter, "exceeds u32 range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(provider).Compile(tt.src)
			require.Error(t, err)
			assert.True(t, HasCode(err, tt.code), "expected code %s, got %v", tt.code, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCompile_UndefinedInstructionInDebugMode(t *testing.T) {
	_, err := New(nil).WithDebugMode(true).Compile("begin u32unknown end")
	require.Error(t, err)
	assert.True(t, IsAssemblyError(err))
	assert.Contains(t, err.Error(), "undefined")
}

func TestWithKernel(t *testing.T) {
	kernelSrc := `
proc.helper
    push.2
end
export.get_two
    exec.helper
end
export.add_one
    push.1 add
end`

	a, err := New(nil).WithKernel(kernelSrc)
	require.NoError(t, err)
	require.Len(t, a.Kernel().ProcHashes(), 2)

	p := mustCompile(t, a, "begin syscall.get_two syscall.add_one end")
	join := p.Root().(*Join)
	for _, child := range join.Children {
		call := child.(*Call)
		assert.True(t, call.Syscall)
		assert.True(t, p.Kernel().Contains(call.Target.Hash()))
	}

	plain := mustCompile(t, New(nil), "begin push.1 end")
	withKernel := mustCompile(t, a, "begin push.1 end")
	assert.Equal(t, plain.Hash(), withKernel.Hash(), "kernel is not part of the program hash")
	assert.True(t, plain.Kernel().IsEmpty())
}

func TestWithKernel_Errors(t *testing.T) {
	_, err := New(nil).WithKernel("begin push.1 end")
	assert.True(t, HasCode(err, ErrCodeInvalidKernel))

	_, err = New(nil).WithKernel("proc.internal push.1 end")
	assert.True(t, HasCode(err, ErrCodeInvalidKernel))

	_, err = New(nil).WithKernel("export.f undefined_op end")
	assert.True(t, HasCode(err, ErrCodeUndefinedInstruction))

	a, err := New(nil).WithKernel("proc.internal push.1 end\nexport.f exec.internal end")
	require.NoError(t, err)
	_, err = a.Compile("begin syscall.internal end")
	assert.True(t, HasCode(err, ErrCodeUndefinedKernelProcedure))
}

func TestKernel_NormalizesOrder(t *testing.T) {
	d1 := mustCompile(t, New(nil), "begin push.1 end").Hash()
	d2 := mustCompile(t, New(nil), "begin push.2 end").Hash()

	k1 := NewKernel(d1, d2)
	k2 := NewKernel(d2, d1, d2)
	assert.Equal(t, k1.ProcHashes(), k2.ProcHashes())
	assert.Equal(t, k1.Hash(), k2.Hash())
	assert.True(t, k1.Contains(d1))
	assert.False(t, NewKernel(d1).Contains(d2))
}

func TestWalk_SkipsChildren(t *testing.T) {
	p := mustCompile(t, New(nil), "begin push.1 if.true push.2 end end")

	var visited []string
	Walk(p.Root(), func(b CodeBlock) bool {
		switch b.(type) {
		case *Join:
			visited = append(visited, "join")
		case *Split:
			visited = append(visited, "split")
			return false
		case *Span:
			visited = append(visited, "span")
		}
		return true
	})
	assert.Equal(t, []string{"join", "span", "split"}, visited)
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "push(7)", push(field.New(7)).String())
	assert.Equal(t, "dup(3)", withParam(OpDup, 3).String())
	assert.Equal(t, "u32overflowing_add", op(OpU32OverflowingAdd).String())
	assert.Equal(t, "opcode(250)", Opcode(250).String())
}
