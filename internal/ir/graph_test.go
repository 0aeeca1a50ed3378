package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelmelanson/omjit"
	"github.com/michaelmelanson/omjit/internal/ast"
	"github.com/michaelmelanson/omjit/internal/sysfunc"
)

func num(n float64) *ast.Literal { return &ast.Literal{Kind: ast.LiteralNumber, Number: n} }
func ident(name string) *ast.Identifier { return &ast.Identifier{Name: name} }

// stackEffect mirrors the per-opcode stack deltas in spec §3's
// FlowInstruction table, used to check invariant 1 (stack balance).
func stackEffect(instr FlowInstruction) int {
	switch v := instr.(type) {
	case FunctionPrologue, FunctionEpilogue, Return, GoToBlock:
		return 0
	case PushLiteralNumber, PushLiteralBoolean, PushLiteralString, PushLiteralNull:
		return 1
	case PushFunctionParameter, PushStackVariable:
		return 1
	case ApplyBinaryOperator:
		return -1
	case Assign:
		return -1
	case CallFunction:
		return -v.Arity + 1
	case CallSystemFunction:
		return -v.Arity + 1
	case ReturnValue:
		return -1
	case DiscardValue:
		return -1
	default:
		panic("unhandled instruction in stackEffect")
	}
}

func netEffect(body []FlowInstruction) int {
	total := 0
	for _, instr := range body {
		total += stackEffect(instr)
	}
	return total
}

// TestAddFunctionLowersAndBalances covers spec §8's E1 scenario at the
// lowering level: `function add(a, b) { return a + b; } add(2, 3);`.
func TestAddFunctionLowersAndBalances(t *testing.T) {
	program := &ast.Program{
		Body: []ast.Stmt{
			&ast.FunctionDeclaration{
				Name:   "add",
				Params: []string{"a", "b"},
				Body: &ast.BlockStatement{
					Body: []ast.Stmt{
						&ast.ReturnStatement{Argument: &ast.BinaryExpression{
							Operator: ast.Plus,
							Left:     ident("a"),
							Right:    ident("b"),
						}},
					},
				},
			},
			&ast.ExpressionStatement{Expression: &ast.CallExpression{
				Callee:    "add",
				Arguments: []ast.Expr{num(2), num(3)},
			}},
		},
	}

	graph, err := FromRoot(program, NewRootScope())
	require.NoError(t, err)
	require.Len(t, graph.Blocks(), 2, "one block for add's body, one for the entry")

	entry := graph.Block(graph.EntryBlock())
	assert.Equal(t, 0, netEffect(entry.Body), "entry block must be stack-balanced")

	var addBody *BasicBlock
	for _, b := range graph.Blocks() {
		if b.ID != graph.EntryBlock() {
			addBody = b
		}
	}
	require.NotNil(t, addBody)
	assert.Equal(t, 0, netEffect(addBody.Body), "add's body must be stack-balanced")
	assert.IsType(t, FunctionEpilogue{}, addBody.Body[len(addBody.Body)-1], "add's body closes with its epilogue")
	assert.IsType(t, ReturnValue{}, addBody.Body[len(addBody.Body)-2], "add falls straight into ReturnValue, no implicit Return appended")

	found := false
	for _, instr := range entry.Body {
		if call, ok := instr.(CallFunction); ok {
			assert.Equal(t, 2, call.Arity)
			found = true
		}
	}
	assert.True(t, found, "entry block must call add")
}

func TestReturnWithoutArgumentIsCompileError(t *testing.T) {
	program := &ast.Program{
		Body: []ast.Stmt{
			&ast.FunctionDeclaration{
				Name: "f",
				Body: &ast.BlockStatement{
					Body: []ast.Stmt{&ast.ReturnStatement{}},
				},
			},
		},
	}
	_, err := FromRoot(program, NewRootScope())
	require.Error(t, err)
	var ce *omjit.CompileError
	require.ErrorAs(t, err, &ce)
}

func TestUndefinedIdentifierIsCompileError(t *testing.T) {
	program := &ast.Program{
		Body: []ast.Stmt{
			&ast.ExpressionStatement{Expression: ident("nope")},
		},
	}
	_, err := FromRoot(program, NewRootScope())
	assert.Error(t, err)
}

// TestForLoopWithClausesIsRejected is spec §9's explicit instruction:
// any `for` with a non-empty test/update clause is an unsupported
// construct, not an invented back-edge.
func TestForLoopWithClausesIsRejected(t *testing.T) {
	program := &ast.Program{
		Body: []ast.Stmt{
			&ast.ForStatement{
				Test: ident("x"),
				Body: &ast.BlockStatement{},
			},
		},
	}
	_, err := FromRoot(program, NewRootScope())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported for-loop clause")
}

// TestBareForLoopLowersToSingleJump is spec §8's E6 scenario:
// `function loop() { for (var i = 0;;) { } }` — the containing block's
// tail is exactly one Jump to a body block chained to loop's scope.
func TestBareForLoopLowersToSingleJump(t *testing.T) {
	program := &ast.Program{
		Body: []ast.Stmt{
			&ast.FunctionDeclaration{
				Name: "loop",
				Body: &ast.BlockStatement{
					Body: []ast.Stmt{
						&ast.ForStatement{
							Init: &ast.VariableDeclaration{Declarations: []*ast.VariableDeclarator{
								{Name: "i", Init: num(0)},
							}},
							Body: &ast.BlockStatement{},
						},
					},
				},
			},
		},
	}

	graph, err := FromRoot(program, NewRootScope())
	require.NoError(t, err)

	// loop's body block is the first non-entry block; the for-loop body
	// block is created after it.
	var loopBody *BasicBlock
	for _, b := range graph.Blocks() {
		if b.ID != graph.EntryBlock() {
			loopBody = b
			break
		}
	}
	require.NotNil(t, loopBody)

	jump, ok := loopBody.Tail.(Jump)
	require.True(t, ok, "the loop function's body block must end in a Jump tail")

	forBody := graph.Block(jump.Target)
	assert.NotNil(t, forBody.Scope)
	assert.Same(t, loopBody.Scope, parentOf(forBody.Scope), "the for-loop body scope must chain to loop's own scope")
}

func parentOf(s *Scope) *Scope { return s.parent }

func TestSystemFunctionCallLowers(t *testing.T) {
	logFn := sysfunc.New("console.log", 1, func(cats []sysfunc.Category) sysfunc.Handler {
		if len(cats) == 1 && cats[0] == sysfunc.CategoryNumber {
			return sysfunc.Handler(nil) // stand-in; lowering never consults the generator
		}
		return nil
	})

	root := NewRootScope()
	root.Insert("log", SystemFunctionValue{Descriptor: logFn})

	program := &ast.Program{
		Body: []ast.Stmt{
			&ast.ExpressionStatement{Expression: &ast.CallExpression{
				Callee:    "log",
				Arguments: []ast.Expr{num(42)},
			}},
		},
	}

	graph, err := FromRoot(program, root)
	require.NoError(t, err)

	entry := graph.Block(graph.EntryBlock())
	var call CallSystemFunction
	found := false
	for _, instr := range entry.Body {
		if c, ok := instr.(CallSystemFunction); ok {
			call = c
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, 1, call.Arity)
	assert.Equal(t, logFn, call.Descriptor)
}
