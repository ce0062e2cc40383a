package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stackvm/internal/field"
	"github.com/roach88/stackvm/internal/processor"
)

func TestNewTest_Defaults(t *testing.T) {
	test := NewTest("begin push.1 end", true)

	assert.Equal(t, "begin push.1 end", test.Source)
	assert.Empty(t, test.Kernel)
	assert.Empty(t, test.Inputs.Stack)
	assert.Empty(t, test.Inputs.Advice)
	assert.True(t, test.InDebugMode)
}

func TestWithMethods_ReturnCopies(t *testing.T) {
	base := BuildTest("begin add end", 1, 2)
	withAdvice := base.WithAdvice(9)
	withKernel := base.WithKernel("export.foo push.1 end")

	assert.Equal(t, []uint64{1, 2}, base.Inputs.Stack)
	assert.Empty(t, base.Inputs.Advice)
	assert.Empty(t, base.Kernel)
	assert.Equal(t, []uint64{9}, withAdvice.Inputs.Advice)
	assert.Equal(t, []uint64{1, 2}, withAdvice.Inputs.Stack)
	assert.Equal(t, "export.foo push.1 end", withKernel.Kernel)

	stack := []uint64{5, 6}
	test := base.WithStack(stack...)
	stack[0] = 99
	assert.Equal(t, []uint64{5, 6}, test.Inputs.Stack)
}

func TestCompile_IsIdempotent(t *testing.T) {
	test := BuildTest("begin push.1 if.true push.2 else push.3 end end")

	p1, err := test.Compile()
	require.NoError(t, err)
	p2, err := test.Compile()
	require.NoError(t, err)
	assert.Equal(t, p1.Hash(), p2.Hash())

	debug, err := BuildDebugTest(test.Source).Compile()
	require.NoError(t, err)
	assert.Equal(t, p1.Hash(), debug.Hash())
}

func TestCompile_WithKernel(t *testing.T) {
	test := BuildTest("begin syscall.foo end", 4).WithKernel("export.foo push.3 add end")

	program, err := test.Compile()
	require.NoError(t, err)
	assert.Len(t, program.Kernel().ProcHashes(), 1)

	test.ExpectStack(t, []uint64{7})
}

func TestCompile_KernelFailure(t *testing.T) {
	test := BuildTest("begin push.1 end").WithKernel("begin push.1 end")

	_, err := test.Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel compilation failed")
	assert.Contains(t, err.Error(), "begin block")
}

func TestCompile_SourceFailure(t *testing.T) {
	_, err := BuildTest("begin push.1").Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile test source")
}

func TestExecute_ReturnsTrace(t *testing.T) {
	trace, err := BuildTest("begin push.5 push.7 add end").Execute()
	require.NoError(t, err)
	assert.Equal(t, 5, trace.Cycles())
	assert.Equal(t, uint64(12), trace.StackOutputs()[0])
}

func TestExecute_ReturnsExecutionError(t *testing.T) {
	_, err := BuildTest("begin push.0 assert end").Execute()
	require.Error(t, err)
	assert.True(t, processor.HasCode(err, processor.ErrCodeFailedAssertion))
}

func TestLastStackState(t *testing.T) {
	state, err := BuildTest("begin push.3 push.4 end").LastStackState()
	require.NoError(t, err)
	assert.Equal(t, ConvertToStack([]uint64{4, 3}), state)

	_, err = BuildTest("begin push.1 push.0 div end").LastStackState()
	assert.Error(t, err)
}

func TestExecuteIter_WalksEveryCycle(t *testing.T) {
	it, err := BuildDebugTest("begin push.5 push.7 add end").ExecuteIter()
	require.NoError(t, err)

	var states []processor.VmState
	for s := range it.All() {
		states = append(states, s)
	}
	require.NoError(t, it.Err())
	require.Len(t, states, 6)

	for i, s := range states {
		assert.Equal(t, i, s.Clk)
	}
	assert.Equal(t, processor.ControlSpan, states[1].Control)
	require.NotNil(t, states[2].AsmOp)
	assert.Equal(t, "push.5", states[2].AsmOp.Instruction)
	assert.Equal(t, field.New(12), states[4].Stack[0])
	assert.Equal(t, processor.ControlEnd, states[5].Control)

	_, ok := it.Next()
	assert.False(t, ok, "iterator is single pass")
}

func TestExecuteIter_ReportsFailureAfterExhaustion(t *testing.T) {
	it, err := BuildTest("begin push.1 push.0 div end").ExecuteIter()
	require.NoError(t, err)

	n := 0
	for range it.All() {
		n++
	}
	assert.Equal(t, 4, n, "initial state, span, push, push")
	require.Error(t, it.Err())
	assert.Contains(t, it.Err().Error(), "division by zero")
}

func TestExecuteIter_CompileError(t *testing.T) {
	_, err := BuildTest("begin nope end").ExecuteIter()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined instruction")
}

func TestProveAndVerify(t *testing.T) {
	test := BuildTest("begin push.5 push.7 add end")
	test.ProveAndVerify(t, nil, false)
	test.ProveAndVerify(t, nil, true)
}

func TestProveAndVerify_WithPublicInputs(t *testing.T) {
	test := BuildTest("begin mul end", 6, 7)
	test.ProveAndVerify(t, []uint64{6, 7}, false)

	err := test.CheckProveAndVerify([]uint64{7, 6}, false)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "prove_and_verify", ae.Type)
	assert.Contains(t, ae.Actual, "error:")
}

func TestProveAndVerify_PropagatesExecutionError(t *testing.T) {
	err := BuildTest("begin push.0 assert end").CheckProveAndVerify(nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proof generation failed")
	assert.True(t, processor.IsExecutionError(err))
}
