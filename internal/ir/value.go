package ir

import "github.com/michaelmelanson/omjit/internal/sysfunc"

// Value is the sum type bound in scopes (spec §3). Go lacks sum types,
// so this is an interface with one concrete type per variant, matching
// the Rust original's `Value` enum one arm at a time.
type Value interface {
	isValue()
}

// StackVariable is a local slot at a fixed byte offset within the
// current frame's local area.
type StackVariable struct {
	Offset int
}

func (StackVariable) isValue() {}

// FunctionParameter is the nth incoming argument, bound by the platform
// calling convention.
type FunctionParameter struct {
	Index int
}

func (FunctionParameter) isValue() {}

// Function is a user-defined function whose body is a basic block.
type Function struct {
	Name   string // empty for anonymous functions
	Params []string
	Body   BasicBlockID
}

func (Function) isValue() {}

// SystemFunctionValue is a host-provided call target bound into scope.
type SystemFunctionValue struct {
	Descriptor *sysfunc.SystemFunction
}

func (SystemFunctionValue) isValue() {}
