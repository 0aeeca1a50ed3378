// Package omjit is the root of the lazy, block-at-a-time x86-64 JIT:
// internal/ast trees go in, internal/ir.FlowGraph is built from them,
// internal/runtime.Environment compiles and runs it. This file holds
// the error type the flow graph builder reports lowering failures
// through; codegen and runtime failures are plain wrapped errors.
package omjit

import (
	"fmt"

	"github.com/michaelmelanson/omjit/internal/source"
)

// CompileError is a fatal lowering- or codegen-time failure, carrying
// the offending node's source location so diagnostics can name the
// construct (spec §7: fail fast, loud, name the construct).
type CompileError struct {
	Location source.Location
	Message  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Location, e.Message)
}

// NewCompileError builds a CompileError with a formatted message.
func NewCompileError(loc source.Location, format string, args ...interface{}) *CompileError {
	return &CompileError{Location: loc, Message: fmt.Sprintf(format, args...)}
}
