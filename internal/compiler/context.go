// Package compiler is the native code generator (spec §4.2): it walks
// one basic block's FlowInstruction/TailInstruction sequence and emits
// x86-64 machine code via internal/asmx64, maintaining a codegen stack
// that mirrors the IR's abstract operand stack.
//
// Grounded directly on original_source/src/codegen.rs's CodegenContext
// (current_stack_register/push/pop/argument_register and the 7-register,
// 4-argument-register pools), re-expressed against internal/asmx64
// instead of iced-x86's CodeAssembler.
package compiler

import (
	"fmt"

	"github.com/michaelmelanson/omjit/internal/asmx64"
	"github.com/michaelmelanson/omjit/internal/sysfunc"
)

// registerStack is the fixed pool of general-purpose registers the
// codegen stack draws from, in depth order. RAX is reserved for return
// values, RCX/RDX/R8/R9 for outbound arguments, RSP/RBP for the stack
// and frame pointers (spec §4.2).
var registerStack = [7]asmx64.Register{
	asmx64.RBX,
	asmx64.R10, asmx64.R11, asmx64.R12, asmx64.R13, asmx64.R14, asmx64.R15,
}

// argumentRegisters are the platform calling convention's four integer
// argument registers, in order (spec §4.2, §6).
var argumentRegisters = [4]asmx64.Register{
	asmx64.RCX, asmx64.RDX, asmx64.R8, asmx64.R9,
}

// stackEntry is one live value on the codegen stack: its compile-time
// category and the register currently holding it.
type stackEntry struct {
	category sysfunc.Category
	register asmx64.Register
}

// codegenContext mirrors the IR's abstract operand stack, one register
// per depth (spec §4.2 "register-stack allocation").
type codegenContext struct {
	stack []stackEntry
}

// currentRegister returns the register the next push will occupy,
// failing fatally once depth exceeds the pool (spec §7 "register stack
// overflow").
func (c *codegenContext) currentRegister() (asmx64.Register, error) {
	if len(c.stack) >= len(registerStack) {
		return 0, fmt.Errorf("register stack overflow: depth %d exceeds the %d-register pool", len(c.stack), len(registerStack))
	}
	return registerStack[len(c.stack)], nil
}

// push reserves the next register-stack slot for a value of the given
// category and returns the register to emit code into.
func (c *codegenContext) push(category sysfunc.Category) (asmx64.Register, error) {
	reg, err := c.currentRegister()
	if err != nil {
		return 0, err
	}
	c.stack = append(c.stack, stackEntry{category: category, register: reg})
	return reg, nil
}

// pop releases the top register-stack slot, returning the entry that
// occupied it.
func (c *codegenContext) pop() (stackEntry, error) {
	if len(c.stack) == 0 {
		return stackEntry{}, fmt.Errorf("codegen stack underflow")
	}
	entry := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return entry, nil
}

func argumentRegister(index int) (asmx64.Register, error) {
	if index < 0 || index >= len(argumentRegisters) {
		return 0, fmt.Errorf("argument register overflow: index %d exceeds the %d-register pool", index, len(argumentRegisters))
	}
	return argumentRegisters[index], nil
}
