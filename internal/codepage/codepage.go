// Package codepage manages the write-once, execute-forever memory
// pages backing compiled blocks and trampolines (spec §4.2, §9
// "Executable memory lifecycle"). The lifecycle is always: allocate an
// anonymous read-write page, write machine code into it exactly once,
// flip it to read-execute, and never write to it again.
//
// Grounded on the raw syscall.Mmap/Mprotect technique in the
// launix-de-memcp scm-jit example, ported to golang.org/x/sys/unix
// (already a transitive dependency of the rest of the corpus via
// wazero's golang-asm backend and go-interpreter/wagon).
package codepage

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Page is one anonymous, page-aligned memory region holding exactly one
// compiled image. Its Close releases the mapping; after Close, Addr and
// Bytes must not be used.
type Page struct {
	addr    uintptr
	data    []byte
	codeLen int
	ready   bool // true once Finalize has flipped the page to RX
}

// Alloc reserves a fresh read-write anonymous page sized to hold at
// least size bytes, rounded up to the system page size.
func Alloc(size int) (*Page, error) {
	if size <= 0 {
		return nil, fmt.Errorf("codepage: size must be positive, got %d", size)
	}
	pageSize := unix.Getpagesize()
	n := (size + pageSize - 1) &^ (pageSize - 1)

	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("codepage: mmap %d bytes: %w", n, err)
	}
	return &Page{addr: uintptr(unsafe.Pointer(&data[0])), data: data}, nil
}

// Addr is the page's base address, stable for the page's lifetime:
// the code generator assembles against this address up front so every
// absolute reference inside the emitted bytes is already correct by
// the time Write is called.
func (p *Page) Addr() uintptr { return p.addr }

// Write copies code into the page. It must be called at most once, and
// only before Finalize.
func (p *Page) Write(code []byte) error {
	if p.ready {
		return fmt.Errorf("codepage: page already finalized, cannot write")
	}
	if len(code) > len(p.data) {
		return fmt.Errorf("codepage: code (%d bytes) does not fit in page (%d bytes)", len(code), len(p.data))
	}
	copy(p.data, code)
	p.codeLen = len(code)
	return nil
}

// Bytes returns the written machine code (not the whole page), for
// disassembly or debugger registration. Valid after Write.
func (p *Page) Bytes() []byte { return p.data[:p.codeLen] }

// Finalize flips the page from read-write to read-execute. After this
// call the page's bytes are immutable for its remaining lifetime (no
// W^X violation).
func (p *Page) Finalize() error {
	if p.ready {
		return nil
	}
	if err := unix.Mprotect(p.data, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("codepage: mprotect to RX: %w", err)
	}
	p.ready = true
	return nil
}

// Close releases the page's backing memory. Safe to call once the page
// is no longer reachable, i.e. when the owning cache entry is dropped
// (spec §5 resource policy). The Environment calls this from its Close,
// and during operation only for a freshly compiled page it discards
// because the same block was already in the compiled cache.
func (p *Page) Close() error {
	return unix.Munmap(p.data)
}
