package ir

import "github.com/michaelmelanson/omjit/internal/source"

// BasicBlockID identifies a block within a FlowGraph. IDs are allocated
// densely starting at 0, so a []*BasicBlock slice indexed by ID is a
// valid block table (spec §4.1).
type BasicBlockID int

// BasicBlock is a single-entry sequence of straight-line FlowInstruction
// operations, optionally ended by a TailInstruction that says where
// control goes next (spec §4). Tail is nil unless lowering set one.
type BasicBlock struct {
	ID       BasicBlockID
	Scope    *Scope
	Body     []FlowInstruction
	Tail     TailInstruction
	Location source.Location
}

// Push appends a body instruction to the block.
func (b *BasicBlock) Push(instr FlowInstruction) {
	b.Body = append(b.Body, instr)
}
