// Package disasm renders a compiled block or trampoline's machine code
// as a GNU-syntax instruction listing, the Go equivalent of
// original_source/src/codegen.rs's print_disassembled_code (which used
// iced-x86's NasmFormatter). Out of the JIT core per spec.md §1, but
// wired as the CLI's --disassemble collaborator per the domain stack.
package disasm

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Line is one decoded instruction: its byte offset within the image,
// its raw bytes, and its rendered GNU-syntax text.
type Line struct {
	Offset int
	Bytes  []byte
	Text   string
}

// Listing decodes code from offset 0, stopping at the first byte
// sequence x86asm cannot decode (padding or the end of the buffer).
// mode is the instruction-set width in bits; the CLI always calls it
// with 64 since the core targets x86-64 exclusively (spec.md §1
// non-goals rule out cross-platform codegen).
func Listing(code []byte, mode int) ([]Line, error) {
	var lines []Line
	offset := 0
	for offset < len(code) {
		inst, err := x86asm.Decode(code[offset:], mode)
		if err != nil {
			return lines, fmt.Errorf("decoding at offset %d: %w", offset, err)
		}
		text := x86asm.GNUSyntax(inst, uint64(offset), nil)
		lines = append(lines, Line{
			Offset: offset,
			Bytes:  append([]byte(nil), code[offset:offset+inst.Len]...),
			Text:   text,
		})
		offset += inst.Len
	}
	return lines, nil
}

// Format renders a listing the way the CLI's --disassemble flag prints
// it: one line per instruction, offset, hex bytes, then mnemonic text.
func Format(lines []Line) string {
	var b strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&b, "%08x  %-24s  %s\n", line.Offset, hexBytes(line.Bytes), line.Text)
	}
	return b.String()
}

func hexBytes(b []byte) string {
	var sb strings.Builder
	for _, by := range b {
		fmt.Fprintf(&sb, "%02x", by)
	}
	return sb.String()
}
