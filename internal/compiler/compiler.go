package compiler

import (
	"fmt"

	"github.com/michaelmelanson/omjit/internal/asmx64"
	"github.com/michaelmelanson/omjit/internal/ir"
	"github.com/michaelmelanson/omjit/internal/sysfunc"
	"github.com/michaelmelanson/omjit/internal/typeinfo"
)

// shadowSpace is the fixed region at the bottom of a block's frame
// reserved for saving the seven register-stack registers (spec §4.2).
const shadowSpace = 7 * 8

// BlockResolver looks up (or lazily compiles) the runtime entry point
// for another block, used for CallFunction and Jump targets. Decouples
// this package from internal/runtime so the dependency runs one way:
// runtime imports compiler, not the reverse.
type BlockResolver interface {
	BasicBlockFn(id ir.BasicBlockID, t typeinfo.Info) (uintptr, error)
}

// CompileBasicBlock emits machine code for one block (spec §4.2): it
// walks the block's body and tail, maintaining a codegen stack, and
// returns the assembled bytes.
func CompileBasicBlock(block *ir.BasicBlock, resolver BlockResolver) ([]byte, error) {
	asm := asmx64.New()
	ctx := &codegenContext{}
	frameSize := frameSizeFor(block)

	for _, instr := range block.Body {
		if err := emitFlowInstruction(asm, ctx, instr, resolver, frameSize); err != nil {
			return nil, fmt.Errorf("block %d: %w", block.ID, err)
		}
	}

	if block.Tail != nil {
		if err := emitTail(asm, block.Tail, resolver); err != nil {
			return nil, fmt.Errorf("block %d tail: %w", block.ID, err)
		}
	}

	return asm.Bytes(), nil
}

func frameSizeFor(block *ir.BasicBlock) int32 {
	raw := shadowSpace + block.Scope.StackAllocation()
	aligned := (raw + 15) &^ 15
	return int32(aligned + 8) // return-address adjustment, spec §4.2
}

func emitFlowInstruction(asm *asmx64.Assembler, ctx *codegenContext, instr ir.FlowInstruction, resolver BlockResolver, frameSize int32) error {
	switch v := instr.(type) {
	case ir.FunctionPrologue:
		asm.SubRegImm32(asmx64.RSP, frameSize)
		asm.MovRegReg(asmx64.RBP, asmx64.RSP)
		for i, reg := range registerStack {
			asm.MovMemReg(asmx64.RBP, int32(i*8), reg)
		}
		return nil

	case ir.FunctionEpilogue:
		for i, reg := range registerStack {
			asm.MovRegMem(reg, asmx64.RBP, int32(i*8))
		}
		asm.AddRegImm32(asmx64.RSP, frameSize)
		asm.Ret()
		return nil

	case ir.PushLiteralNumber:
		reg, err := ctx.push(sysfunc.CategoryNumber)
		if err != nil {
			return err
		}
		asm.MovRegImm64(reg, floatBitsAsInt(v.Value))
		return nil

	case ir.PushLiteralBoolean, ir.PushLiteralString, ir.PushLiteralNull:
		return fmt.Errorf("unimplemented literal kind %T", instr)

	case ir.PushFunctionParameter:
		reg, err := ctx.push(sysfunc.CategoryNumber)
		if err != nil {
			return err
		}
		argReg, err := argumentRegister(v.Index)
		if err != nil {
			return err
		}
		asm.MovRegReg(reg, argReg)
		return nil

	case ir.PushStackVariable:
		reg, err := ctx.push(sysfunc.CategoryNumber)
		if err != nil {
			return err
		}
		asm.MovRegMem(reg, asmx64.RBP, int32(shadowSpace+v.Offset))
		return nil

	case ir.Assign:
		entry, err := ctx.pop()
		if err != nil {
			return err
		}
		asm.MovMemReg(asmx64.RBP, int32(shadowSpace+v.Offset), entry.register)
		return nil

	case ir.ApplyBinaryOperator:
		right, err := ctx.pop()
		if err != nil {
			return err
		}
		left, err := ctx.pop()
		if err != nil {
			return err
		}
		if left.category != sysfunc.CategoryNumber {
			return fmt.Errorf("binary operator on non-number left operand (%s)", left.category)
		}
		if right.category != sysfunc.CategoryNumber {
			return fmt.Errorf("binary operator on non-number right operand (%s)", right.category)
		}
		if v.Operator != ir.OpPlus {
			return fmt.Errorf("unimplemented binary operator %s", v.Operator)
		}
		asm.AddRegReg(left.register, right.register)
		if _, err := ctx.push(sysfunc.CategoryNumber); err != nil {
			return err
		}
		return nil

	case ir.CallFunction:
		return emitCall(asm, ctx, resolver, v.Target, v.Arity)

	case ir.CallSystemFunction:
		return emitSystemCall(asm, ctx, v.Descriptor, v.Arity)

	case ir.ReturnValue:
		entry, err := ctx.pop()
		if err != nil {
			return err
		}
		asm.MovRegReg(asmx64.RAX, entry.register)
		return nil

	case ir.Return:
		asm.MovRegImm64(asmx64.RAX, 0)
		return nil

	case ir.DiscardValue:
		_, err := ctx.pop()
		return err

	case ir.GoToBlock:
		return fmt.Errorf("GoToBlock is reserved and must not be emitted")

	default:
		return fmt.Errorf("unhandled flow instruction %T", instr)
	}
}

func emitCall(asm *asmx64.Assembler, ctx *codegenContext, resolver BlockResolver, target ir.BasicBlockID, arity int) error {
	args := make([]stackEntry, arity)
	for i := arity - 1; i >= 0; i-- {
		entry, err := ctx.pop()
		if err != nil {
			return err
		}
		if entry.category != sysfunc.CategoryNumber {
			return fmt.Errorf("non-number argument to user function call")
		}
		args[i] = entry
	}
	for i, entry := range args {
		argReg, err := argumentRegister(i)
		if err != nil {
			return err
		}
		asm.MovRegReg(argReg, entry.register)
	}

	addr, err := resolver.BasicBlockFn(target, typeinfo.New())
	if err != nil {
		return fmt.Errorf("resolving block %d: %w", target, err)
	}

	asm.SubRegImm32(asmx64.RSP, 0x28)
	asm.MovRegImm64(asmx64.RAX, uint64(addr))
	asm.CallReg(asmx64.RAX)
	asm.AddRegImm32(asmx64.RSP, 0x28)

	reg, err := ctx.push(sysfunc.CategoryNumber)
	if err != nil {
		return err
	}
	asm.MovRegReg(reg, asmx64.RAX)
	return nil
}

func emitSystemCall(asm *asmx64.Assembler, ctx *codegenContext, descriptor *sysfunc.SystemFunction, arity int) error {
	categories := make([]sysfunc.Category, arity)
	args := make([]stackEntry, arity)
	for i := arity - 1; i >= 0; i-- {
		entry, err := ctx.pop()
		if err != nil {
			return err
		}
		categories[i] = entry.category
		args[i] = entry
	}

	handler := descriptor.HandlerFor(categories)
	if handler == nil {
		return fmt.Errorf("system function %q declined argument categories %v", descriptor.Name(), categories)
	}

	for i, entry := range args {
		argReg, err := argumentRegister(i)
		if err != nil {
			return err
		}
		asm.MovRegReg(argReg, entry.register)
	}

	asm.SubRegImm32(asmx64.RSP, 0x28)
	asm.MovRegImm64(asmx64.RAX, uint64(uintptr(handler)))
	asm.CallReg(asmx64.RAX)
	asm.AddRegImm32(asmx64.RSP, 0x28)

	reg, err := ctx.push(sysfunc.CategoryNumber)
	if err != nil {
		return err
	}
	asm.MovRegReg(reg, asmx64.RAX)
	return nil
}

func emitTail(asm *asmx64.Assembler, tail ir.TailInstruction, resolver BlockResolver) error {
	switch v := tail.(type) {
	case ir.Jump:
		addr, err := resolver.BasicBlockFn(v.Target, typeinfo.New())
		if err != nil {
			return fmt.Errorf("resolving block %d: %w", v.Target, err)
		}
		asm.MovRegImm64(asmx64.RAX, uint64(addr))
		asm.JmpReg(asmx64.RAX)
		return nil

	case ir.ConditionalJump:
		return fmt.Errorf("ConditionalJump is reserved and not implemented")

	default:
		return fmt.Errorf("unhandled tail instruction %T", tail)
	}
}

// floatBitsAsInt materializes a PushLiteralNumber operand as a 64-bit
// integer immediate, matching the original's `literal as u64` integer
// truncation (spec's core has no float representation; §1 scopes the
// language to integer arithmetic in practice).
func floatBitsAsInt(n float64) uint64 {
	return uint64(int64(n))
}
