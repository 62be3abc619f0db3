package vm

import (
	"github.com/dr8co/augo/code"
)

// Frame represents an execution frame used to track the state of function
// calls in the virtual machine. Unlike the teacher's closure-carrying
// frame, augo has no free variables (spec.md §9 excludes closures), so a
// Frame holds a plain *code.Function instead of an object.Closure.
type Frame struct {
	// fn is the compiled function this frame is executing.
	fn *code.Function

	// ip is the instruction pointer that tracks the current instruction
	// being executed within the frame.
	ip int

	// basePointer is the index in the VM's stack marking the beginning of
	// the current frame's local variable slots.
	basePointer int
}

// NewFrame creates a new execution frame for a given function and base
// pointer in the virtual machine's stack.
func NewFrame(fn *code.Function, basePointer int) *Frame {
	return &Frame{fn: fn, ip: -1, basePointer: basePointer}
}

// Instructions retrieves the bytecode instructions of the compiled function
// associated with the current frame.
func (f *Frame) Instructions() code.Instructions {
	return f.fn.Instructions
}
