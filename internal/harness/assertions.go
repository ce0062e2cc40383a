package harness

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stackvm/internal/field"
)

// AssertionError is returned when an observed outcome differs from the
// expected one.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// CheckStack runs the test and compares the visible stack after the last
// cycle with finalStack (top first, zero padded to W).
func (t *Test) CheckStack(finalStack []uint64) error {
	expected := ConvertToStack(finalStack)
	actual, err := t.LastStackState()
	if err != nil {
		return err
	}
	return compareStack(expected, actual)
}

// ExpectStack is CheckStack failing tb on mismatch or on any compile or
// execution error.
func (t *Test) ExpectStack(tb testing.TB, finalStack []uint64) {
	tb.Helper()
	require.NoError(tb, t.CheckStack(finalStack))
}

// PropExpectStack is the property-test form of CheckStack. It never aborts;
// a rapid driver reports the returned error with rt.Fatal so that the
// failing input is shrunk.
func (t *Test) PropExpectStack(finalStack []uint64) error {
	return t.CheckStack(finalStack)
}

// CheckStackAndMemory runs the test once and compares the word stored at
// memAddr in the root context with expectedMem, then checks the final
// stack. Both must match.
func (t *Test) CheckStackAndMemory(finalStack []uint64, memAddr uint64, expectedMem []uint64) error {
	trace, err := t.Execute()
	if err != nil {
		return err
	}

	word, ok := trace.MemoryValue(0, memAddr)
	if !ok {
		return &AssertionError{
			Type:     "memory",
			Expected: fmt.Sprintf("word %v at address %d", expectedMem, memAddr),
			Actual:   fmt.Sprintf("address %d was never written", memAddr),
		}
	}
	actualMem := word.Uint64s()
	if !slices.Equal(field.Slice(expectedMem), word[:]) {
		return &AssertionError{
			Type:     "memory",
			Expected: fmt.Sprintf("word %v at address %d", field.Uint64s(field.Slice(expectedMem)), memAddr),
			Actual:   fmt.Sprintf("word %v", actualMem),
		}
	}

	return t.CheckStack(finalStack)
}

// ExpectStackAndMemory is CheckStackAndMemory failing tb on mismatch.
func (t *Test) ExpectStackAndMemory(tb testing.TB, finalStack []uint64, memAddr uint64, expectedMem []uint64) {
	tb.Helper()
	require.NoError(tb, t.CheckStackAndMemory(finalStack, memAddr, expectedMem))
}

func compareStack(expected, actual [W]field.Felt) error {
	if expected == actual {
		return nil
	}
	return &AssertionError{
		Type:     "stack",
		Expected: formatStack(expected),
		Actual:   formatStack(actual),
	}
}
