package harness

import (
	"fmt"

	"github.com/roach88/stackvm/internal/field"
)

// W is the number of visible stack slots compared by stack assertions.
const W = field.StackTopSize

// ConvertToStack builds a visible stack from values, top first. Slots past
// len(values) are zero. It panics when more than W values are given.
func ConvertToStack(values []uint64) [W]field.Felt {
	if len(values) > W {
		panic(fmt.Sprintf("harness: %d stack values exceed the visible stack of %d", len(values), W))
	}
	var result [W]field.Felt
	for i, v := range values {
		result[i] = field.New(v)
	}
	return result
}

// formatStack renders a visible stack as integers, top first.
func formatStack(s [W]field.Felt) string {
	return fmt.Sprint(field.Uint64s(s[:]))
}
