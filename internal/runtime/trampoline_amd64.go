package runtime

import (
	"reflect"
	"unsafe"

	"github.com/michaelmelanson/omjit/internal/ir"
)

// trampolineBridge is the assembly entry point a trampoline's CALL
// lands on: win64 arguments arrive in CX (the Environment pointer) and
// DX (the BasicBlockID), and it returns the resolved function pointer
// in AX. It is implemented in trampoline_amd64.s, which stages those
// two registers onto the stack and calls goTrampolineBridge using the
// ordinary Go assembly calling convention, per spec §4.3's
// compile-on-first-call contract.
func trampolineBridge()

// trampolineBridgeAddr resolves the address CompileTrampoline should
// call into. reflect.ValueOf(fn).Pointer() is how Go exposes a function
// value's code address without cgo.
func trampolineBridgeAddr() uintptr {
	return reflect.ValueOf(trampolineBridge).Pointer()
}

// selfPtr exposes e's address as a uintptr for embedding into compiled
// trampoline code. Safe for the lifetime of e because the Environment
// that owns the compiled pages is always kept alive by its caller for
// at least as long as those pages can run.
func (e *Environment) selfPtr() uintptr {
	return uintptr(unsafe.Pointer(e))
}

//go:nosplit
func goTrampolineBridge(envPtr uintptr, blockID uintptr) uintptr {
	env := (*Environment)(unsafe.Pointer(envPtr))
	addr, err := env.compileBasicBlock(cacheKey{block: ir.BasicBlockID(blockID)})
	if err != nil {
		panic(err)
	}
	return addr
}
