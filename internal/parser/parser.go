// Package parser is a small hand-written recursive-descent parser over
// a text/scanner tokenizer, producing internal/ast trees for the subset
// the core's flow graph builder understands: function declarations,
// var declarations with multiple declarators, for loops, return and
// expression statements, binary `+`, `-`, `*` and `/`, call expressions,
// identifiers and number literals.
//
// spec.md places the parser out of the core's scope; this package
// exists only so the end-to-end scenarios the spec describes have
// something to run against. text/scanner stands in for
// modernc.org/scanner (named in the reference corpus but not
// retrievable in source form, so its API could not be grounded — see
// DESIGN.md).
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/michaelmelanson/omjit/internal/ast"
	"github.com/michaelmelanson/omjit/internal/source"
)

// Parser holds the tokenizer and one token of lookahead.
type Parser struct {
	scan scanner.Scanner
	tok  rune
	lit  string
}

// New creates a Parser reading src, labeled name for error messages.
func New(src string, name string) *Parser {
	p := &Parser{}
	p.scan.Init(strings.NewReader(src))
	p.scan.Filename = name
	p.scan.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanComments | scanner.SkipComments
	p.next()
	return p
}

func (p *Parser) next() {
	p.tok = p.scan.Scan()
	p.lit = p.scan.TokenText()
}

func (p *Parser) loc() source.Location {
	pos := p.scan.Position
	return source.Location{Start: pos.Offset, End: pos.Offset + len(p.lit)}
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s", p.scan.Position, fmt.Sprintf(format, args...))
}

func (p *Parser) expect(lit string) error {
	if p.lit != lit {
		return p.errorf("expected %q, got %q", lit, p.lit)
	}
	p.next()
	return nil
}

// Parse reads the whole input as a Program.
func (p *Parser) Parse() (*ast.Program, error) {
	program := &ast.Program{}
	for p.tok != scanner.EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		program.Body = append(program.Body, stmt)
	}
	return program, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch {
	case p.lit == "function":
		return p.parseFunctionDeclaration()
	case p.lit == "return":
		return p.parseReturnStatement()
	case p.lit == "var":
		return p.parseVariableDeclaration()
	case p.lit == "for":
		return p.parseForStatement()
	case p.lit == "{":
		return p.parseBlockStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseFunctionDeclaration() (*ast.FunctionDeclaration, error) {
	loc := p.loc()
	p.next() // "function"
	name := p.lit
	p.next()
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var params []string
	for p.lit != ")" {
		params = append(params, p.lit)
		p.next()
		if p.lit == "," {
			p.next()
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	body, err := p.parseBlockStatement()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDeclaration{Loc: loc, Name: name, Params: params, Body: body}, nil
}

func (p *Parser) parseBlockStatement() (*ast.BlockStatement, error) {
	loc := p.loc()
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	block := &ast.BlockStatement{Loc: loc}
	for p.lit != "}" {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Body = append(block.Body, stmt)
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseReturnStatement() (*ast.ReturnStatement, error) {
	loc := p.loc()
	p.next() // "return"
	stmt := &ast.ReturnStatement{Loc: loc}
	if p.lit != ";" {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Argument = arg
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseVariableDeclaration() (*ast.VariableDeclaration, error) {
	loc := p.loc()
	p.next() // "var"
	decl := &ast.VariableDeclaration{Loc: loc}
	for {
		dloc := p.loc()
		name := p.lit
		p.next()
		d := &ast.VariableDeclarator{Loc: dloc, Name: name}
		if p.lit == "=" {
			p.next()
			init, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			d.Init = init
		}
		decl.Declarations = append(decl.Declarations, d)
		if p.lit == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseForStatement() (*ast.ForStatement, error) {
	loc := p.loc()
	p.next() // "for"
	if err := p.expect("("); err != nil {
		return nil, err
	}

	stmt := &ast.ForStatement{Loc: loc}
	if p.lit != ";" {
		switch p.lit {
		case "var":
			init, err := p.parseVariableDeclaration()
			if err != nil {
				return nil, err
			}
			stmt.Init = init
		default:
			init, err := p.parseExpressionStatement()
			if err != nil {
				return nil, err
			}
			stmt.Init = init
		}
	} else {
		if err := p.expect(";"); err != nil {
			return nil, err
		}
	}

	if p.lit != ";" {
		test, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Test = test
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}

	if p.lit != ")" {
		update, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Update = update
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}

	body, err := p.parseBlockStatement()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) parseExpressionStatement() (*ast.ExpressionStatement, error) {
	loc := p.loc()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	return &ast.ExpressionStatement{Loc: loc, Expression: expr}, nil
}

// parseExpression handles the binary operators `+`, `-`, `*` and `/`,
// left-associative at a single precedence level above primary/call
// expressions. Only `+` has codegen support.
func (p *Parser) parseExpression() (ast.Expr, error) {
	left, err := p.parseCallOrPrimary()
	if err != nil {
		return nil, err
	}
	for p.lit == "+" || p.lit == "-" || p.lit == "*" || p.lit == "/" {
		loc := p.loc()
		op := toOperator(p.lit)
		p.next()
		right, err := p.parseCallOrPrimary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpression{Loc: loc, Operator: op, Left: left, Right: right}
	}
	return left, nil
}

func toOperator(lit string) ast.BinaryOperator {
	switch lit {
	case "-":
		return ast.Minus
	case "*":
		return ast.Multiply
	case "/":
		return ast.Divide
	default:
		return ast.Plus
	}
}

func (p *Parser) parseCallOrPrimary() (ast.Expr, error) {
	loc := p.loc()
	if p.tok == scanner.Ident {
		name := p.lit
		p.next()
		if p.lit == "(" {
			p.next()
			var args []ast.Expr
			for p.lit != ")" {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.lit == "," {
					p.next()
				}
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return &ast.CallExpression{Loc: loc, Callee: name, Arguments: args}, nil
		}
		return &ast.Identifier{Loc: loc, Name: name}, nil
	}

	if p.tok == scanner.Int || p.tok == scanner.Float {
		n, err := strconv.ParseFloat(p.lit, 64)
		if err != nil {
			return nil, p.errorf("invalid number literal %q", p.lit)
		}
		p.next()
		return &ast.Literal{Loc: loc, Kind: ast.LiteralNumber, Number: n}, nil
	}

	if p.lit == "(" {
		p.next()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	return nil, p.errorf("unexpected token %q", p.lit)
}
