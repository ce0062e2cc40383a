// Package processor executes compiled programs on the stack machine.
//
// The operand stack always exposes at least field.StackTopSize elements;
// popping below that depth shifts in zeros. Memory is word addressed and
// separate per context: the root program runs in context 0, every call
// opens a fresh context and syscall runs kernel procedures in context 0.
//
// Each executed operation costs one clock cycle, as does entering and
// leaving every code block. Execute records the visible stack after every
// cycle; ExecuteIter additionally exposes per-cycle machine state for
// step-level inspection.
package processor
