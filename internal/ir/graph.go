package ir

import (
	"github.com/michaelmelanson/omjit"
	"github.com/michaelmelanson/omjit/internal/ast"
)

// FlowGraph is the set of basic blocks produced by lowering a program,
// keyed by dense BasicBlockID, plus the entry block's ID (spec §3).
type FlowGraph struct {
	blocks []*BasicBlock
	entry  BasicBlockID
}

// Block returns the block with the given ID. It panics on an
// out-of-range ID, since IDs are only ever handed out by this package.
func (g *FlowGraph) Block(id BasicBlockID) *BasicBlock { return g.blocks[id] }

// Blocks returns every block in the graph, indexed by BasicBlockID.
func (g *FlowGraph) Blocks() []*BasicBlock { return g.blocks }

// EntryBlock is the ID of the program's top-level block.
func (g *FlowGraph) EntryBlock() BasicBlockID { return g.entry }

// builder carries the in-progress block arena across the recursive
// descent. Nothing here outlives FromRoot.
type builder struct {
	graph *FlowGraph
}

// FromRoot lowers a parsed program into a FlowGraph, per spec §4.1:
// creates the entry block scoped to rootScope (already populated with
// any host-injected bindings such as system functions), emits a
// prologue/epilogue pair around the program body.
func FromRoot(program *ast.Program, rootScope *Scope) (*FlowGraph, error) {
	b := &builder{graph: &FlowGraph{}}
	entry, err := b.createBasicBlock(rootScope, program.Body, true)
	if err != nil {
		return nil, err
	}
	b.graph.entry = entry
	return b.graph, nil
}

// createBasicBlock allocates a fresh ID, constructs the block bound to
// scope, optionally brackets it in FunctionPrologue/FunctionEpilogue,
// and lowers each statement in nodes into its body in order.
func (b *builder) createBasicBlock(scope *Scope, nodes []ast.Stmt, includePrologueEpilogue bool) (BasicBlockID, error) {
	id := BasicBlockID(len(b.graph.blocks))
	block := &BasicBlock{ID: id, Scope: scope}
	b.graph.blocks = append(b.graph.blocks, block)

	if includePrologueEpilogue {
		block.Push(FunctionPrologue{})
	}

	for _, stmt := range nodes {
		if err := b.addNodeToBlock(block, stmt); err != nil {
			return 0, err
		}
		// A tail instruction (currently only emitted by ForStatement,
		// spec §9) ends the block; anything lexically after it is
		// unreachable and not lowered.
		if block.Tail != nil {
			break
		}
	}

	// A block whose last statement set a Jump tail (currently only
	// ForStatement, spec §9) hands control to another block within the
	// same frame; it never falls through to a return, so neither an
	// implicit Return nor an epilogue belongs here.
	if block.Tail == nil {
		if !endsInReturn(block.Body) {
			block.Push(Return{})
		}
		if includePrologueEpilogue {
			block.Push(FunctionEpilogue{})
		}
	}

	return id, nil
}

func endsInReturn(body []FlowInstruction) bool {
	if len(body) == 0 {
		return false
	}
	switch body[len(body)-1].(type) {
	case ReturnValue, Return:
		return true
	default:
		return false
	}
}

// addNodeToBlock dispatches on AST statement kind, per spec §4.1.
func (b *builder) addNodeToBlock(block *BasicBlock, stmt ast.Stmt) error {
	switch n := stmt.(type) {
	case *ast.FunctionDeclaration:
		childScope := NewChildScope(block.Scope)
		for i, p := range n.Params {
			childScope.Insert(p, FunctionParameter{Index: i})
		}
		bodyID, err := b.createBasicBlock(childScope, n.Body.Body, true)
		if err != nil {
			return err
		}
		block.Scope.Insert(n.Name, Function{Name: n.Name, Params: n.Params, Body: bodyID})
		return nil

	case *ast.ExpressionStatement:
		if err := b.lowerExpr(block, n.Expression); err != nil {
			return err
		}
		block.Push(DiscardValue{})
		return nil

	case *ast.ReturnStatement:
		if n.Argument == nil {
			return omjit.NewCompileError(n.Loc, "return without a value is not supported")
		}
		if err := b.lowerExpr(block, n.Argument); err != nil {
			return err
		}
		block.Push(ReturnValue{})
		return nil

	case *ast.VariableDeclaration:
		for _, d := range n.Declarations {
			offset := block.Scope.AllocateStack(8)
			block.Scope.Insert(d.Name, StackVariable{Offset: offset})
			if d.Init != nil {
				if err := b.lowerExpr(block, d.Init); err != nil {
					return err
				}
			} else {
				block.Push(PushLiteralNull{})
			}
			block.Push(Assign{Offset: offset})
		}
		return nil

	case *ast.ForStatement:
		if n.Init != nil {
			if err := b.addNodeToBlock(block, n.Init); err != nil {
				return err
			}
		}
		if n.Test != nil || n.Update != nil {
			return omjit.NewCompileError(n.Loc, "unsupported for-loop clause: test/update are not implemented")
		}
		bodyScope := NewChildScope(block.Scope)
		bodyID, err := b.createBasicBlock(bodyScope, n.Body.Body, false)
		if err != nil {
			return err
		}
		block.Tail = Jump{Target: bodyID}
		return nil

	default:
		return omjit.NewCompileError(stmt.Location(), "unsupported statement kind")
	}
}

// lowerExpr is a recursive post-order walk emitting stack-effect
// preserving instructions, per spec §4.1.
func (b *builder) lowerExpr(block *BasicBlock, expr ast.Expr) error {
	switch n := expr.(type) {
	case *ast.Literal:
		switch n.Kind {
		case ast.LiteralNumber:
			block.Push(PushLiteralNumber{Value: n.Number})
			return nil
		case ast.LiteralBoolean:
			block.Push(PushLiteralBoolean{Value: n.Boolean})
			return nil
		case ast.LiteralString:
			block.Push(PushLiteralString{Value: n.String})
			return nil
		case ast.LiteralNull:
			block.Push(PushLiteralNull{})
			return nil
		default:
			return omjit.NewCompileError(n.Loc, "unsupported literal kind")
		}

	case *ast.Identifier:
		value, ok := block.Scope.Lookup(n.Name)
		if !ok {
			return omjit.NewCompileError(n.Loc, "undefined identifier %q", n.Name)
		}
		switch v := value.(type) {
		case FunctionParameter:
			block.Push(PushFunctionParameter{Index: v.Index})
		case StackVariable:
			block.Push(PushStackVariable{Offset: v.Offset})
		default:
			return omjit.NewCompileError(n.Loc, "identifier %q is not a value expression", n.Name)
		}
		return nil

	case *ast.BinaryExpression:
		if err := b.lowerExpr(block, n.Left); err != nil {
			return err
		}
		if err := b.lowerExpr(block, n.Right); err != nil {
			return err
		}
		block.Push(ApplyBinaryOperator{Operator: toIROperator(n.Operator)})
		return nil

	case *ast.CallExpression:
		value, ok := block.Scope.Lookup(n.Callee)
		if !ok {
			return omjit.NewCompileError(n.Loc, "undefined function %q", n.Callee)
		}
		switch callee := value.(type) {
		case Function:
			if len(callee.Params) != len(n.Arguments) {
				return omjit.NewCompileError(n.Loc, "function %q expects %d arguments, got %d", n.Callee, len(callee.Params), len(n.Arguments))
			}
			for _, arg := range n.Arguments {
				if err := b.lowerExpr(block, arg); err != nil {
					return err
				}
			}
			block.Push(CallFunction{Target: callee.Body, Arity: len(n.Arguments)})
			return nil

		case SystemFunctionValue:
			if callee.Descriptor.Arity() != len(n.Arguments) {
				return omjit.NewCompileError(n.Loc, "system function %q expects %d arguments, got %d", n.Callee, callee.Descriptor.Arity(), len(n.Arguments))
			}
			for _, arg := range n.Arguments {
				if err := b.lowerExpr(block, arg); err != nil {
					return err
				}
			}
			block.Push(CallSystemFunction{Descriptor: callee.Descriptor, Arity: len(n.Arguments)})
			return nil

		default:
			return omjit.NewCompileError(n.Loc, "%q is not callable", n.Callee)
		}

	default:
		return omjit.NewCompileError(expr.Location(), "unsupported expression kind")
	}
}

func toIROperator(op ast.BinaryOperator) BinaryOperator {
	switch op {
	case ast.Minus:
		return OpMinus
	case ast.Multiply:
		return OpMultiply
	case ast.Divide:
		return OpDivide
	default:
		return OpPlus
	}
}
