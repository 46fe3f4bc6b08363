// Package parser builds an ast.Program from a token stream.
package parser

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/eugenenazirov/oxido/internal/ast"
	"github.com/eugenenazirov/oxido/internal/diag"
	"github.com/eugenenazirov/oxido/internal/lexer"
	"github.com/eugenenazirov/oxido/internal/token"
	"github.com/eugenenazirov/oxido/internal/value"
)

// binding powers, loosest first
const (
	precLowest = iota
	precCompare
	precSum
	precProduct
	precPower
)

var infix = map[token.Kind]int{
	token.Eq:    precCompare,
	token.NotEq: precCompare,
	token.Gt:    precCompare,
	token.Lt:    precCompare,
	token.GtEq:  precCompare,
	token.LtEq:  precCompare,
	token.Plus:  precSum,
	token.Minus: precSum,
	token.Star:  precProduct,
	token.Slash: precProduct,
	token.Caret: precPower,
}

// Parser consumes tokens produced by the lexer package.
type Parser struct {
	tokens    []token.Token
	pos       int
	loopDepth int
	// enclosing function declarations, innermost last
	fns []*ast.FnDecl
}

// New creates a parser over a copy of tokens. A missing trailing EOF token is
// added.
func New(tokens []token.Token) *Parser {
	tokens = slices.Clone(tokens)
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != token.EOF {
		end := 0
		if len(tokens) > 0 {
			end = tokens[len(tokens)-1].Span.End
		}
		tokens = append(tokens, token.Token{Kind: token.EOF, Span: token.Span{Start: end, End: end}})
	}
	return &Parser{tokens: tokens}
}

// Parse parses a complete token stream.
func Parse(tokens []token.Token) (*ast.Program, error) {
	return New(tokens).Run()
}

// ParseSource lexes and parses src in one step.
func ParseSource(src string) (*ast.Program, error) {
	tokens, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Run parses statements until EOF. The first syntax error is returned as a
// *diag.Diagnostic.
func (p *Parser) Run() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.at(token.EOF) {
		if p.at(token.Semicolon) {
			p.advance()
			continue
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog, nil
}

func (p *Parser) cur() token.Token {
	return p.tokens[p.pos]
}

func (p *Parser) peekKind(offset int) token.Kind {
	if p.pos+offset >= len(p.tokens) {
		return token.EOF
	}
	return p.tokens[p.pos+offset].Kind
}

func (p *Parser) at(kind token.Kind) bool {
	return p.cur().Kind == kind
}

func (p *Parser) advance() token.Token {
	tok := p.cur()
	if tok.Kind != token.EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(kind token.Kind) (token.Token, error) {
	if !p.at(kind) {
		return token.Token{}, p.unexpected(kind.String())
	}
	return p.advance(), nil
}

func (p *Parser) unexpected(want string) *diag.Diagnostic {
	tok := p.cur()
	return diag.New(diag.CodeSyntax,
		fmt.Sprintf("expected %s, found %s", want, describe(tok)),
		"expected "+want+" here",
		tok.Span)
}

func describe(tok token.Token) string {
	switch tok.Kind {
	case token.Ident:
		return "`" + tok.Literal + "`"
	case token.Int:
		return "integer `" + tok.Literal + "`"
	case token.String:
		return "string " + strconv.Quote(tok.Literal)
	case token.EOF:
		return "end of file"
	default:
		return "`" + tok.Kind.String() + "`"
	}
}

func (p *Parser) statement() (ast.Stmt, error) {
	switch p.cur().Kind {
	case token.Let:
		return p.letStatement()
	case token.Ident:
		return p.identStatement()
	case token.If:
		return p.ifStatement()
	case token.Loop:
		return p.loopStatement()
	case token.Break:
		return p.breakStatement()
	case token.Return:
		return p.returnStatement()
	case token.Exit:
		return p.exitStatement()
	case token.Fn:
		return p.fnDeclaration()
	}
	return nil, p.unexpected("a statement")
}

func (p *Parser) endStatement(start token.Span) (token.Span, error) {
	semi, err := p.expect(token.Semicolon)
	if err != nil {
		return token.Span{}, err
	}
	return start.Join(semi.Span), nil
}

func (p *Parser) letStatement() (ast.Stmt, error) {
	let := p.advance()
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}

	stmt := &ast.LetStmt{Name: name.Literal, NameSpan: name.Span}
	if p.at(token.Colon) {
		p.advance()
		typ, err := p.typeRef()
		if err != nil {
			return nil, err
		}
		stmt.Type = &typ
	}

	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	if stmt.Value, err = p.expression(precLowest); err != nil {
		return nil, err
	}
	if stmt.Span, err = p.endStatement(let.Span); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) identStatement() (ast.Stmt, error) {
	name := p.cur()
	switch p.peekKind(1) {
	case token.Assign:
		p.advance()
		p.advance()
		val, err := p.expression(precLowest)
		if err != nil {
			return nil, err
		}
		span, err := p.endStatement(name.Span)
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{Name: name.Literal, Value: val, Span: span}, nil

	case token.LBracket:
		p.advance()
		p.advance()
		index, err := p.expression(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Assign); err != nil {
			return nil, err
		}
		val, err := p.expression(precLowest)
		if err != nil {
			return nil, err
		}
		span, err := p.endStatement(name.Span)
		if err != nil {
			return nil, err
		}
		return &ast.IndexAssignStmt{Name: name.Literal, Index: index, Value: val, Span: span}, nil

	case token.LParen:
		call, err := p.call()
		if err != nil {
			return nil, err
		}
		span, err := p.endStatement(call.Span)
		if err != nil {
			return nil, err
		}
		return &ast.CallStmt{Call: call, Span: span}, nil
	}

	p.advance()
	return nil, p.unexpected("`=`, `[` or `(` after `" + name.Literal + "`")
}

func (p *Parser) ifStatement() (ast.Stmt, error) {
	start := p.advance()
	cond, err := p.expression(precLowest)
	if err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}

	stmt := &ast.IfStmt{Cond: cond, Then: then, Span: start.Span.Join(then.Span)}
	if !p.at(token.Else) {
		return stmt, nil
	}
	p.advance()

	if p.at(token.If) {
		nested, err := p.ifStatement()
		if err != nil {
			return nil, err
		}
		stmt.Else = &ast.Block{Statements: []ast.Stmt{nested}, Span: nested.Pos()}
	} else if stmt.Else, err = p.block(); err != nil {
		return nil, err
	}
	stmt.Span = stmt.Span.Join(stmt.Else.Span)
	return stmt, nil
}

func (p *Parser) loopStatement() (ast.Stmt, error) {
	start := p.advance()
	p.loopDepth++
	body, err := p.block()
	p.loopDepth--
	if err != nil {
		return nil, err
	}
	return &ast.LoopStmt{Body: body, Span: start.Span.Join(body.Span)}, nil
}

func (p *Parser) breakStatement() (ast.Stmt, error) {
	tok := p.advance()
	if p.loopDepth == 0 {
		return nil, diag.New(diag.CodeSyntax, "`break` outside of a loop", "`break` can only be used inside `loop`", tok.Span)
	}
	span, err := p.endStatement(tok.Span)
	if err != nil {
		return nil, err
	}
	return &ast.BreakStmt{Span: span}, nil
}

func (p *Parser) returnStatement() (ast.Stmt, error) {
	tok := p.advance()
	if len(p.fns) == 0 {
		return nil, diag.New(diag.CodeSyntax, "`return` outside of a function", "`return` can only be used inside `fn`", tok.Span)
	}
	fn := p.fns[len(p.fns)-1]
	stmt := &ast.ReturnStmt{}
	if !p.at(token.Semicolon) {
		val, err := p.expression(precLowest)
		if err != nil {
			return nil, err
		}
		stmt.Value = val
	}
	span, err := p.endStatement(tok.Span)
	if err != nil {
		return nil, err
	}
	stmt.Span = span

	switch {
	case fn.Result == nil && stmt.Value != nil:
		return nil, diag.New(diag.CodeSyntax,
			"function `"+fn.Name+"` does not declare a return type",
			"add `-> type` to the signature or return without a value", span)
	case fn.Result != nil && stmt.Value == nil:
		return nil, diag.New(diag.CodeSyntax,
			"function `"+fn.Name+"` must return a value of type "+fn.Result.String(),
			"expected a value after `return`", span)
	}
	return stmt, nil
}

func (p *Parser) exitStatement() (ast.Stmt, error) {
	tok := p.advance()
	val, err := p.expression(precLowest)
	if err != nil {
		return nil, err
	}
	span, err := p.endStatement(tok.Span)
	if err != nil {
		return nil, err
	}
	return &ast.ExitStmt{Value: val, Span: span}, nil
}

func (p *Parser) fnDeclaration() (ast.Stmt, error) {
	start := p.advance()
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	decl := &ast.FnDecl{Name: name.Literal}
	seen := make(map[string]bool)
	for !p.at(token.RParen) {
		paramName, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if seen[paramName.Literal] {
			return nil, diag.New(diag.CodeSyntax,
				"duplicate parameter `"+paramName.Literal+"`",
				"parameter names must be unique", paramName.Span)
		}
		seen[paramName.Literal] = true
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		typ, err := p.typeRef()
		if err != nil {
			return nil, err
		}
		decl.Params = append(decl.Params, ast.Param{Name: paramName.Literal, Type: typ, Span: paramName.Span})
		if !p.at(token.Comma) {
			break
		}
		p.advance()
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	if p.at(token.Arrow) {
		p.advance()
		typ, err := p.typeRef()
		if err != nil {
			return nil, err
		}
		decl.Result = &typ
	}

	// loops in the caller do not extend into the function body
	outerLoops := p.loopDepth
	p.loopDepth = 0
	p.fns = append(p.fns, decl)
	body, err := p.block()
	p.fns = p.fns[:len(p.fns)-1]
	p.loopDepth = outerLoops
	if err != nil {
		return nil, err
	}

	decl.Body = body
	decl.Span = start.Span.Join(body.Span)
	return decl, nil
}

func (p *Parser) block() (*ast.Block, error) {
	open, err := p.expect(token.LCurly)
	if err != nil {
		return nil, err
	}
	b := &ast.Block{}
	for !p.at(token.RCurly) {
		if p.at(token.EOF) {
			return nil, diag.New(diag.CodeSyntax, "unclosed block", "this `{` is never closed", open.Span)
		}
		if p.at(token.Semicolon) {
			p.advance()
			continue
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		b.Statements = append(b.Statements, stmt)
	}
	closing := p.advance()
	b.Span = open.Span.Join(closing.Span)
	return b, nil
}

// typeRef parses int, str, bool or vec<T>.
func (p *Parser) typeRef() (value.Type, error) {
	tok, err := p.expect(token.Ident)
	if err != nil {
		return value.Type{}, err
	}
	if typ, ok := value.ParseScalar(tok.Literal); ok {
		return typ, nil
	}
	if tok.Literal != "vec" {
		return value.Type{}, diag.New(diag.CodeSyntax,
			"unknown type `"+tok.Literal+"`",
			"expected one of int, str, bool or vec<T>", tok.Span)
	}
	if _, err := p.expect(token.Lt); err != nil {
		return value.Type{}, err
	}
	elem, err := p.typeRef()
	if err != nil {
		return value.Type{}, err
	}
	if p.at(token.GtEq) {
		// `vec<int>= ...` lexes the closing bracket and the assignment together
		cur := p.cur()
		p.tokens[p.pos] = token.Token{Kind: token.Assign, Span: token.Span{Start: cur.Span.Start + 1, End: cur.Span.End}}
		return value.VecOf(elem), nil
	}
	if _, err := p.expect(token.Gt); err != nil {
		return value.Type{}, err
	}
	return value.VecOf(elem), nil
}

func (p *Parser) expression(minPrec int) (ast.Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.cur().Kind
		prec, ok := infix[op]
		if !ok || prec <= minPrec {
			return left, nil
		}
		p.advance()

		// ^ is right associative; everything else binds to the left
		next := prec
		if op == token.Caret {
			next = prec - 1
		}
		right, err := p.expression(next)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: left.Pos().Join(right.Pos())}
	}
}

func (p *Parser) unary() (ast.Expr, error) {
	if !p.at(token.Minus) {
		return p.postfix()
	}
	minus := p.advance()
	// -a^b is -(a^b)
	operand, err := p.expression(precProduct)
	if err != nil {
		return nil, err
	}
	return &ast.UnaryExpr{Op: token.Minus, Operand: operand, Span: minus.Span.Join(operand.Pos())}, nil
}

func (p *Parser) postfix() (ast.Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.at(token.LBracket) {
		p.advance()
		index, err := p.expression(precLowest)
		if err != nil {
			return nil, err
		}
		closing, err := p.expect(token.RBracket)
		if err != nil {
			return nil, err
		}
		expr = &ast.IndexExpr{Target: expr, Index: index, Span: expr.Pos().Join(closing.Span)}
	}
	return expr, nil
}

func (p *Parser) primary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case token.Int:
		p.advance()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, diag.New(diag.CodeSyntax, "invalid integer literal", "", tok.Span)
		}
		return &ast.IntLit{Value: n, Span: tok.Span}, nil
	case token.String:
		p.advance()
		return &ast.StrLit{Value: tok.Literal, Span: tok.Span}, nil
	case token.True, token.False:
		p.advance()
		return &ast.BoolLit{Value: tok.Kind == token.True, Span: tok.Span}, nil
	case token.Ident:
		if p.peekKind(1) == token.LParen {
			return p.call()
		}
		p.advance()
		return &ast.Ident{Name: tok.Literal, Span: tok.Span}, nil
	case token.LParen:
		p.advance()
		inner, err := p.expression(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return inner, nil
	case token.LBracket:
		return p.vector()
	}
	return nil, p.unexpected("an expression")
}

func (p *Parser) vector() (ast.Expr, error) {
	open := p.advance()
	vec := &ast.VecLit{}
	for !p.at(token.RBracket) {
		elem, err := p.expression(precLowest)
		if err != nil {
			return nil, err
		}
		vec.Elems = append(vec.Elems, elem)
		if !p.at(token.Comma) {
			break
		}
		p.advance()
	}
	closing, err := p.expect(token.RBracket)
	if err != nil {
		return nil, err
	}
	vec.Span = open.Span.Join(closing.Span)
	return vec, nil
}

func (p *Parser) call() (*ast.CallExpr, error) {
	name := p.advance()
	p.advance() // (
	call := &ast.CallExpr{Name: name.Literal, NameSpan: name.Span}
	for !p.at(token.RParen) {
		arg, err := p.expression(precLowest)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.at(token.Comma) {
			break
		}
		p.advance()
	}
	closing, err := p.expect(token.RParen)
	if err != nil {
		return nil, err
	}
	call.Span = name.Span.Join(closing.Span)
	return call, nil
}
