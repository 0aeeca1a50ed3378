package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelmelanson/omjit/internal/ir"
	"github.com/michaelmelanson/omjit/internal/sysfunc"
	"github.com/michaelmelanson/omjit/internal/typeinfo"
)

type stubResolver struct {
	addr uintptr
	err  error
}

func (s stubResolver) BasicBlockFn(id ir.BasicBlockID, t typeinfo.Info) (uintptr, error) {
	return s.addr, s.err
}

func TestCompileBasicBlockEmitsPrologueAndEpilogue(t *testing.T) {
	scope := ir.NewRootScope()
	block := &ir.BasicBlock{
		ID:    0,
		Scope: scope,
		Body: []ir.FlowInstruction{
			ir.FunctionPrologue{},
			ir.PushLiteralNumber{Value: 42},
			ir.ReturnValue{},
			ir.FunctionEpilogue{},
		},
	}

	code, err := CompileBasicBlock(block, stubResolver{})
	require.NoError(t, err)
	assert.NotEmpty(t, code)
	assert.Equal(t, byte(0xC3), code[len(code)-1], "the epilogue must end in a ret")
}

func TestCompileBasicBlockBinaryOperatorAddsRegisters(t *testing.T) {
	scope := ir.NewRootScope()
	block := &ir.BasicBlock{
		ID:    0,
		Scope: scope,
		Body: []ir.FlowInstruction{
			ir.PushLiteralNumber{Value: 2},
			ir.PushLiteralNumber{Value: 3},
			ir.ApplyBinaryOperator{Operator: ir.OpPlus},
			ir.ReturnValue{},
			ir.FunctionEpilogue{},
		},
	}

	code, err := CompileBasicBlock(block, stubResolver{})
	require.NoError(t, err)
	assert.NotEmpty(t, code)
}

func TestCompileBasicBlockUnimplementedOperatorFails(t *testing.T) {
	scope := ir.NewRootScope()
	block := &ir.BasicBlock{
		ID:    0,
		Scope: scope,
		Body: []ir.FlowInstruction{
			ir.PushLiteralNumber{Value: 2},
			ir.PushLiteralNumber{Value: 3},
			ir.ApplyBinaryOperator{Operator: ir.OpMinus},
		},
	}

	_, err := CompileBasicBlock(block, stubResolver{})
	require.Error(t, err)
}

func TestCompileBasicBlockRegisterStackOverflowIsFatal(t *testing.T) {
	scope := ir.NewRootScope()
	body := make([]ir.FlowInstruction, 0, 9)
	for i := 0; i < 8; i++ {
		body = append(body, ir.PushLiteralNumber{Value: float64(i)})
	}
	block := &ir.BasicBlock{ID: 0, Scope: scope, Body: body}

	_, err := CompileBasicBlock(block, stubResolver{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register stack overflow")
}

func TestCompileBasicBlockCallFunctionResolvesTarget(t *testing.T) {
	scope := ir.NewRootScope()
	block := &ir.BasicBlock{
		ID:    0,
		Scope: scope,
		Body: []ir.FlowInstruction{
			ir.PushLiteralNumber{Value: 2},
			ir.PushLiteralNumber{Value: 3},
			ir.CallFunction{Target: 1, Arity: 2},
			ir.DiscardValue{},
			ir.Return{},
			ir.FunctionEpilogue{},
		},
	}

	code, err := CompileBasicBlock(block, stubResolver{addr: 0xdeadbeef})
	require.NoError(t, err)
	assert.NotEmpty(t, code)
}

func TestCompileBasicBlockSystemFunctionDeclinedIsFatal(t *testing.T) {
	descriptor := sysfunc.New("console.log", 1, func(cats []sysfunc.Category) sysfunc.Handler {
		return nil
	})

	scope := ir.NewRootScope()
	block := &ir.BasicBlock{
		ID:    0,
		Scope: scope,
		Body: []ir.FlowInstruction{
			ir.PushLiteralNumber{Value: 1},
			ir.CallSystemFunction{Descriptor: descriptor, Arity: 1},
		},
	}

	_, err := CompileBasicBlock(block, stubResolver{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declined")
}

func TestCompileBasicBlockJumpTailResolvesTarget(t *testing.T) {
	scope := ir.NewRootScope()
	block := &ir.BasicBlock{
		ID:    0,
		Scope: scope,
		Tail:  ir.Jump{Target: 1},
	}

	code, err := CompileBasicBlock(block, stubResolver{addr: 0x1000})
	require.NoError(t, err)
	assert.NotEmpty(t, code)
}

func TestCompileBasicBlockResolverErrorPropagates(t *testing.T) {
	scope := ir.NewRootScope()
	block := &ir.BasicBlock{
		ID:    0,
		Scope: scope,
		Tail:  ir.Jump{Target: 1},
	}

	_, err := CompileBasicBlock(block, stubResolver{err: assertError{"boom"}})
	require.Error(t, err)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

func TestCompileTrampolineProducesNonEmptyCode(t *testing.T) {
	code := CompileTrampoline(0xfeedface, 0x1000, 7)
	assert.NotEmpty(t, code)
	assert.Equal(t, byte(0x51), code[0], "trampoline opens by pushing rcx")
}
