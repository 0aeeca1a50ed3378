package compiler

import (
	"github.com/michaelmelanson/omjit/internal/asmx64"
	"github.com/michaelmelanson/omjit/internal/ir"
)

// CompileTrampoline emits the first-call stub for a not-yet-compiled
// block (spec §4.3). It preserves the caller's four argument registers
// across a call into bridgeAddr — the runtime's compile-on-demand
// callback — then falls through into whatever function pointer the
// callback returns in RAX, with the original arguments restored.
//
// Grounded on original_source/src/codegen.rs's codegen_trampoline,
// simplified to a two-argument win64 callback (envPtr, blockID) since
// this port's compile callback returns the resolved address directly
// rather than patching the call site in place.
func CompileTrampoline(bridgeAddr uintptr, envPtr uintptr, blockID ir.BasicBlockID) []byte {
	asm := asmx64.New()

	asm.Push(asmx64.RCX)
	asm.Push(asmx64.RDX)
	asm.Push(asmx64.R8)
	asm.Push(asmx64.R9)

	asm.MovRegImm64(asmx64.RCX, uint64(envPtr))
	asm.MovRegImm64(asmx64.RDX, uint64(blockID))

	asm.SubRegImm32(asmx64.RSP, 0x28)
	asm.MovRegImm64(asmx64.RAX, uint64(bridgeAddr))
	asm.CallReg(asmx64.RAX)
	asm.AddRegImm32(asmx64.RSP, 0x28)

	asm.Pop(asmx64.R9)
	asm.Pop(asmx64.R8)
	asm.Pop(asmx64.RDX)
	asm.Pop(asmx64.RCX)

	asm.JmpReg(asmx64.RAX)

	return asm.Bytes()
}
