// Package gdbjit implements the GDB JIT Compilation Interface (spec
// §4.4, §6): a process-wide doubly-linked list of descriptors for every
// live compiled image, guarded by a single mutex for the whole
// register/unregister transaction. The descriptor and the notification
// function are not exported under the well-known symbol names a
// debugger looks for (see below).
//
// Ported directly from original_source/src/codegen/gdb_jit.rs, which
// built the same structure around memmap::Mmap and a lazy_static
// Mutex. A real deployment would need the two descriptor/function
// symbols exported under their literal C names (`__jit_debug_descriptor`,
// `__jit_debug_register_code`) via cgo or a //go:linkname directive so
// gdb/lldb's well-known-symbol lookup finds them; this package models
// the data structure and transaction faithfully and leaves that binding
// step to the host binary (see DESIGN.md).
package gdbjit

import (
	"sync"
	"unsafe"
)

// action mirrors the C enum JIT_NOACTION/JIT_REGISTER_FN/JIT_UNREGISTER_FN.
type action uint32

const (
	actionNone       action = 0
	actionRegister   action = 1
	actionUnregister action = 2
)

// codeEntry is one node of the descriptor's doubly-linked list,
// matching the Rust JITCodeEntry layout field-for-field.
type codeEntry struct {
	next, prev  *codeEntry
	symFileAddr uintptr
	symFileSize uint64
}

// descriptor is the process-global state a debugger reads. version is
// fixed at 1 per the GDB JIT interface.
type descriptor struct {
	version       uint32
	actionFlag    action
	relevantEntry *codeEntry
	firstEntry    *codeEntry
}

var (
	registrationMu sync.Mutex
	debugDescriptor = descriptor{version: 1}
)

// debugRegisterCode is the conceptual equivalent of
// __jit_debug_register_code: an empty function a debugger breakpoints
// on. The volatile-style read below keeps the Go compiler from
// eliding the call entirely.
//
//go:noinline
func debugRegisterCode() {
	x := 3
	_ = *(*int)(unsafe.Pointer(&x))
}

// Registration owns one registered code image. Closing it unregisters
// and unlinks the entry; the backing executable memory is owned by the
// caller (internal/codepage), not by Registration.
type Registration struct {
	entry *codeEntry
}

// Register links a new entry describing the image at [addr, addr+size)
// into the global list and notifies the debugger, per spec §4.4 steps
// 1-4.
func Register(addr uintptr, size uint64) *Registration {
	entry := &codeEntry{symFileAddr: addr, symFileSize: size}

	registrationMu.Lock()
	defer registrationMu.Unlock()

	entry.next = debugDescriptor.firstEntry
	if debugDescriptor.firstEntry != nil {
		debugDescriptor.firstEntry.prev = entry
	}
	debugDescriptor.firstEntry = entry

	debugDescriptor.relevantEntry = entry
	debugDescriptor.actionFlag = actionRegister
	debugRegisterCode()

	debugDescriptor.actionFlag = actionNone
	debugDescriptor.relevantEntry = nil

	return &Registration{entry: entry}
}

// Close unregisters and unlinks the entry, the symmetric inverse of
// Register (spec §4.4's unregistration transaction).
func (r *Registration) Close() {
	registrationMu.Lock()
	defer registrationMu.Unlock()

	entry := r.entry
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		debugDescriptor.firstEntry = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	}

	debugDescriptor.relevantEntry = entry
	debugDescriptor.actionFlag = actionUnregister
	debugRegisterCode()

	debugDescriptor.actionFlag = actionNone
	debugDescriptor.relevantEntry = nil
}
