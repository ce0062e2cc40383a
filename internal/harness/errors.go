package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stackvm/internal/processor"
)

// TestErrorKind selects the stage a TestError is expected from.
type TestErrorKind string

const (
	// KindAssembly expects compilation to fail.
	KindAssembly TestErrorKind = "assembly"

	// KindExecution expects compilation to succeed and execution to fail.
	KindExecution TestErrorKind = "execution"
)

// TestError is an expected failure: the stage it must come from and a
// substring its message must contain. Matching is a plain, case-sensitive
// substring test.
type TestError struct {
	Kind      TestErrorKind
	Substring string
}

// AssemblyError expects compilation to fail with a message containing sub.
func AssemblyError(sub string) TestError {
	return TestError{Kind: KindAssembly, Substring: sub}
}

// ExecutionError expects execution to fail with a message containing sub.
func ExecutionError(sub string) TestError {
	return TestError{Kind: KindExecution, Substring: sub}
}

func (e TestError) String() string {
	return fmt.Sprintf("%s error containing %q", e.Kind, e.Substring)
}

// CheckError runs the test up to the stage named by expected and checks it
// fails there with a matching message.
func (t *Test) CheckError(expected TestError) error {
	var err error
	switch expected.Kind {
	case KindAssembly:
		err = recoverFailure(func() error {
			_, err := t.Compile()
			return err
		})
	case KindExecution:
		program, compileErr := t.Compile()
		if compileErr != nil {
			return &AssertionError{
				Type:     "expect_error",
				Expected: expected.String(),
				Actual:   fmt.Sprintf("compilation failed: %v", compileErr),
			}
		}
		err = recoverFailure(func() error {
			_, err := processor.Execute(program, t.Inputs)
			return err
		})
	default:
		return fmt.Errorf("unknown test error kind %q", expected.Kind)
	}

	if err == nil {
		return &AssertionError{
			Type:     "expect_error",
			Expected: expected.String(),
			Actual:   fmt.Sprintf("%s succeeded", stageName(expected.Kind)),
		}
	}
	if !strings.Contains(err.Error(), expected.Substring) {
		return &AssertionError{
			Type:     "expect_error",
			Expected: expected.String(),
			Actual:   err.Error(),
		}
	}
	return nil
}

// ExpectError is CheckError failing tb on mismatch.
func (t *Test) ExpectError(tb testing.TB, expected TestError) {
	tb.Helper()
	require.NoError(tb, t.CheckError(expected))
}

func stageName(kind TestErrorKind) string {
	if kind == KindAssembly {
		return "compilation"
	}
	return "execution"
}

// recoverFailure calls fn and turns a panic into an error carrying the panic
// message, so collaborators that abort instead of returning are matched the
// same way.
func recoverFailure(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
