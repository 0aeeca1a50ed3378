package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelmelanson/omjit/internal/ast"
)

func TestParseAddFunctionAndCall(t *testing.T) {
	program, err := New(`
		function add(a, b) { return a + b; }
		add(2, 3);
	`, "add.js").Parse()
	require.NoError(t, err)
	require.Len(t, program.Body, 2)

	fn, ok := program.Body[0].(*ast.FunctionDeclaration)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
	require.Len(t, fn.Body.Body, 1)

	ret, ok := fn.Body.Body[0].(*ast.ReturnStatement)
	require.True(t, ok)
	bin, ok := ret.Argument.(*ast.BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, ast.Plus, bin.Operator)

	call, ok := program.Body[1].(*ast.ExpressionStatement)
	require.True(t, ok)
	callExpr, ok := call.Expression.(*ast.CallExpression)
	require.True(t, ok)
	assert.Equal(t, "add", callExpr.Callee)
	assert.Len(t, callExpr.Arguments, 2)
}

func TestParseVariableDeclarationWithMultipleDeclarators(t *testing.T) {
	program, err := New(`var a = 1, b;`, "vars.js").Parse()
	require.NoError(t, err)
	require.Len(t, program.Body, 1)

	decl, ok := program.Body[0].(*ast.VariableDeclaration)
	require.True(t, ok)
	require.Len(t, decl.Declarations, 2)
	assert.Equal(t, "a", decl.Declarations[0].Name)
	assert.NotNil(t, decl.Declarations[0].Init)
	assert.Equal(t, "b", decl.Declarations[1].Name)
	assert.Nil(t, decl.Declarations[1].Init)
}

// TestParseBareForLoop covers spec §8's E6 scenario at the syntax level:
// `for (var i = 0;;) { }` with both test and update omitted.
func TestParseBareForLoop(t *testing.T) {
	program, err := New(`
		function loop() {
			for (var i = 0;;) { }
		}
	`, "loop.js").Parse()
	require.NoError(t, err)

	fn := program.Body[0].(*ast.FunctionDeclaration)
	forStmt, ok := fn.Body.Body[0].(*ast.ForStatement)
	require.True(t, ok)
	assert.NotNil(t, forStmt.Init)
	assert.Nil(t, forStmt.Test)
	assert.Nil(t, forStmt.Update)
}

func TestParseForLoopWithTestClause(t *testing.T) {
	program, err := New(`
		function loop() {
			for (var i = 0; i; ) { }
		}
	`, "loop.js").Parse()
	require.NoError(t, err)

	fn := program.Body[0].(*ast.FunctionDeclaration)
	forStmt := fn.Body.Body[0].(*ast.ForStatement)
	assert.NotNil(t, forStmt.Test)
}

func TestParseUnexpectedTokenIsError(t *testing.T) {
	_, err := New(`function;`, "bad.js").Parse()
	assert.Error(t, err)
}
