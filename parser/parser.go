// Package parser implements the syntactic analyzer for the monke-script
// scripting language.
//
// The parser takes a token stream from the lexer and constructs an Abstract
// Syntax Tree. Statements are parsed by straightforward recursive descent;
// expressions are parsed by a Pratt (precedence-climbing) loop driven by the
// parser's own precedence levels (see precedenceOf).
//
// The main entry point is [New], which creates a [Parser], and
// [Parser.ParseRoot], which parses a complete script and returns its AST.
package parser

import (
	"fmt"
	"strconv"

	"github.com/dr8co/augo/ast"
	"github.com/dr8co/augo/lexer"
	"github.com/dr8co/augo/token"
)

// Expression precedence levels, assigned to operator tokens by precedenceOf
// (the parser does not use token.Precedence); Call/Index/Field sit above
// every operator so postfix "(", "[", and "." always bind tighter.
const (
	Lowest int = iota
	Assign
	LogicOr
	LogicAnd
	Equals
	LessGreater
	Sum
	Product
	Prefix
	CallOrIndex
)

func precedenceOf(k token.Kind) int {
	if token.IsAssignOp(k) {
		return Assign
	}
	switch k {
	case token.OR:
		return LogicOr
	case token.AND:
		return LogicAnd
	case token.EQ, token.NOT_EQ, token.APPROX_EQ:
		return Equals
	case token.LT, token.GT, token.LT_EQ, token.GT_EQ:
		return LessGreater
	case token.ADD, token.SUB:
		return Sum
	case token.MUL, token.DIV, token.MOD, token.POW:
		return Product
	case token.LPAREN, token.LBRACKET, token.DOT:
		return CallOrIndex
	default:
		return Lowest
	}
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser builds an AST from the token stream produced by a [lexer.Lexer].
type Parser struct {
	l      *lexer.Lexer
	errors []string

	currentToken token.Token
	peekToken    token.Token

	prefixParseFns map[token.Kind]prefixParseFn
	infixParseFns  map[token.Kind]infixParseFn
}

// New creates a Parser reading tokens from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[token.Kind]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseVariable)
	p.registerPrefix(token.INT, p.parseIntLiteral)
	p.registerPrefix(token.HEX, p.parseHexLiteral)
	p.registerPrefix(token.BINARY, p.parseBinaryLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.CHAR, p.parseCharLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TRUE, p.parseBoolLiteral)
	p.registerPrefix(token.FALSE, p.parseBoolLiteral)
	p.registerPrefix(token.NONE, p.parseNoneLiteral)
	p.registerPrefix(token.NOT, p.parseUnaryExpression)
	p.registerPrefix(token.SUB, p.parseUnaryExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.IF, p.parseIfExpression)
	p.registerPrefix(token.FUNC, p.parseFuncDef)
	p.registerPrefix(token.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(token.LBRACE, p.parseMapLiteral)

	p.infixParseFns = make(map[token.Kind]infixParseFn)
	for _, k := range []token.Kind{
		token.ADD, token.SUB, token.MUL, token.DIV, token.POW, token.MOD,
		token.AND, token.OR, token.EQ, token.NOT_EQ, token.APPROX_EQ,
		token.LT, token.GT, token.LT_EQ, token.GT_EQ,
		token.ASSIGN, token.ADD_ASSIGN, token.SUB_ASSIGN, token.MUL_ASSIGN,
		token.DIV_ASSIGN, token.MOD_ASSIGN, token.POW_ASSIGN,
	} {
		p.registerInfix(k, p.parseBinaryExpression)
	}
	p.registerInfix(token.DOT, p.parseFieldAccess)
	p.registerInfix(token.LPAREN, p.parseFuncCall)
	p.registerInfix(token.LBRACKET, p.parseElementIndex)

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(k token.Kind, fn prefixParseFn) { p.prefixParseFns[k] = fn }
func (p *Parser) registerInfix(k token.Kind, fn infixParseFn)   { p.infixParseFns[k] = fn }

// Errors returns the parse errors accumulated so far.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) nextToken() {
	p.currentToken = p.peekToken
	tok, err := p.l.Next()
	if err != nil {
		p.errors = append(p.errors, err.Error())
		tok = token.Token{Kind: token.EOF}
	}
	p.peekToken = tok
}

func (p *Parser) currentIs(k token.Kind) bool { return p.currentToken.Kind == k }
func (p *Parser) peekIs(k token.Kind) bool    { return p.peekToken.Kind == k }

func (p *Parser) peekPrecedence() int { return precedenceOf(p.peekToken.Kind) }
func (p *Parser) curPrecedence() int  { return precedenceOf(p.currentToken.Kind) }

func (p *Parser) expectPeek(k token.Kind) bool {
	if p.peekIs(k) {
		p.nextToken()
		return true
	}
	p.peekError(k)
	return false
}

func (p *Parser) peekError(k token.Kind) {
	p.errors = append(p.errors, fmt.Sprintf(
		"expected next token to be %s, got %s (%q) instead",
		k, p.peekToken.Kind, p.peekToken.Literal))
}

func (p *Parser) noPrefixParseFnError(k token.Kind) {
	p.errors = append(p.errors, fmt.Sprintf("no prefix parse function for %s found", k))
}

// ParseRoot parses a complete script and returns its AST. Check [Parser.Errors]
// afterward for any accumulated syntax errors.
func (p *Parser) ParseRoot() *ast.Root {
	root := &ast.Root{}
	for !p.currentIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			root.Statements = append(root.Statements, stmt)
		}
		p.nextToken()
	}
	return root
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.currentToken.Kind {
	case token.VAR:
		return p.parseVarDefine()
	case token.RETURN:
		return p.parseReturn()
	case token.BREAK:
		stmt := &ast.Break{Token: p.currentToken}
		if p.peekIs(token.SEMICOLON) {
			p.nextToken()
		}
		return stmt
	case token.CONTINUE:
		stmt := &ast.Continue{Token: p.currentToken}
		if p.peekIs(token.SEMICOLON) {
			p.nextToken()
		}
		return stmt
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseFor()
	case token.IMPORT:
		return p.parseImport()
	case token.LBRACE:
		// "{" followed by a literal key opens a map literal used as an
		// expression statement; anything else opens a block.
		switch p.peekToken.Kind {
		case token.STRING, token.INT, token.HEX, token.BINARY, token.FLOAT,
			token.CHAR, token.TRUE, token.FALSE:
			return p.parseExpressionStatement()
		}
		return p.parseBlock()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseVarDefine() *ast.VarDefine {
	stmt := &ast.VarDefine{Token: p.currentToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Variable{Token: p.currentToken, Name: p.currentToken.Literal}

	if p.peekIs(token.ASSIGN) {
		p.nextToken()
		p.nextToken()
		stmt.Value = p.parseExpression(Lowest)
		if fd, ok := stmt.Value.(*ast.FuncDef); ok && fd.Name == "" {
			fd.Name = stmt.Name.Name
		}
	}

	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseReturn() *ast.Return {
	stmt := &ast.Return{Token: p.currentToken}

	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
		return stmt
	}

	p.nextToken()
	stmt.Value = p.parseExpression(Lowest)

	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseWhile() *ast.While {
	stmt := &ast.While{Token: p.currentToken}

	p.nextToken()
	stmt.Condition = p.parseExpression(Lowest)
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlock()
	return stmt
}

func (p *Parser) parseFor() *ast.For {
	stmt := &ast.For{Token: p.currentToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	// a "_" discard loop variable lexes as a plain IDENT; leave Iter nil so
	// the ir package never binds it to a symbol.
	if p.currentToken.Literal != "_" {
		stmt.Iter = &ast.Variable{Token: p.currentToken, Name: p.currentToken.Literal}
	}

	if !p.expectPeek(token.IN) {
		return nil
	}
	p.nextToken()
	lower := p.parseExpression(Lowest)

	// "from : to" (spec.md §4.3) is only meaningful here, as a for-loop
	// iterable, not a general infix operator, so it is recognized directly
	// rather than through the infixParseFns table.
	if p.peekIs(token.COLON) {
		tok := p.peekToken
		p.nextToken()
		p.nextToken()
		upper := p.parseExpression(Lowest)
		stmt.Iterable = &ast.Range{Token: tok, Lower: lower, Upper: upper}
	} else {
		stmt.Iterable = lower
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlock()
	return stmt
}

func (p *Parser) parseImport() ast.Statement {
	tok := p.currentToken
	if p.peekIs(token.STRING) {
		p.nextToken()
		stmt := &ast.ImportScript{Token: tok, Path: p.currentToken.Literal}
		if p.peekIs(token.SEMICOLON) {
			p.nextToken()
		}
		return stmt
	}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt := &ast.ImportLib{Token: tok, Name: p.currentToken.Literal}
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{Token: p.currentToken}
	p.nextToken()

	for !p.currentIs(token.RBRACE) && !p.currentIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	stmt := &ast.ExpressionStatement{Token: p.currentToken}
	stmt.Expression = p.parseExpression(Lowest)

	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.currentToken.Kind]
	if prefix == nil {
		p.noPrefixParseFnError(p.currentToken.Kind)
		return nil
	}
	left := prefix()

	for !p.peekIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Kind]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseVariable() ast.Expression {
	if p.currentToken.Literal == "_" {
		return &ast.Discard{Token: p.currentToken}
	}
	return &ast.Variable{Token: p.currentToken, Name: p.currentToken.Literal}
}

func (p *Parser) parseIntLiteral() ast.Expression {
	v, err := strconv.ParseInt(p.currentToken.Literal, 10, 64)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("could not parse %q as int", p.currentToken.Literal))
		return nil
	}
	return &ast.Literal{Token: p.currentToken, Kind: ast.IntLiteral, IntValue: v}
}

func (p *Parser) parseHexLiteral() ast.Expression {
	v, err := strconv.ParseInt(p.currentToken.Literal[2:], 16, 64)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("could not parse %q as hex int", p.currentToken.Literal))
		return nil
	}
	return &ast.Literal{Token: p.currentToken, Kind: ast.IntLiteral, IntValue: v}
}

func (p *Parser) parseBinaryLiteral() ast.Expression {
	v, err := strconv.ParseInt(p.currentToken.Literal[2:], 2, 64)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("could not parse %q as binary int", p.currentToken.Literal))
		return nil
	}
	return &ast.Literal{Token: p.currentToken, Kind: ast.IntLiteral, IntValue: v}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	v, err := strconv.ParseFloat(p.currentToken.Literal, 64)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("could not parse %q as float", p.currentToken.Literal))
		return nil
	}
	return &ast.Literal{Token: p.currentToken, Kind: ast.FloatLiteral, FloatValue: v}
}

func (p *Parser) parseCharLiteral() ast.Expression {
	lit := p.currentToken.Literal
	var c byte
	if len(lit) > 0 {
		c = lit[0]
	}
	return &ast.Literal{Token: p.currentToken, Kind: ast.CharLiteral, CharValue: c}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.Literal{Token: p.currentToken, Kind: ast.StringLiteral, StringValue: p.currentToken.Literal}
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	return &ast.Literal{Token: p.currentToken, Kind: ast.BoolLiteral, BoolValue: p.currentIs(token.TRUE)}
}

func (p *Parser) parseNoneLiteral() ast.Expression {
	return &ast.Literal{Token: p.currentToken, Kind: ast.NoneLiteral}
}

func (p *Parser) parseUnaryExpression() ast.Expression {
	expr := &ast.UnaryOp{Token: p.currentToken, Operator: p.currentToken.Kind}
	p.nextToken()
	expr.Right = p.parseExpression(Prefix)
	return expr
}

func (p *Parser) parseBinaryExpression(left ast.Expression) ast.Expression {
	expr := &ast.BinaryOp{Token: p.currentToken, Operator: p.currentToken.Kind, Left: left}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	expr := p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parseIfExpression() ast.Expression {
	expr := &ast.If{Token: p.currentToken}

	p.nextToken()
	expr.Condition = p.parseExpression(Lowest)
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	expr.Consequence = p.parseBlock()

	if p.peekIs(token.ELSE) {
		p.nextToken()
		if p.peekIs(token.IF) {
			p.nextToken()
			nested := p.parseIfExpression()
			expr.Alternative = &ast.Block{
				Token:      p.currentToken,
				Statements: []ast.Statement{&ast.ExpressionStatement{Token: p.currentToken, Expression: nested}},
			}
			return expr
		}
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		expr.Alternative = p.parseBlock()
	}
	return expr
}

func (p *Parser) parseFuncDef() ast.Expression {
	fn := &ast.FuncDef{Token: p.currentToken}

	if p.peekIs(token.IDENT) {
		p.nextToken()
		fn.Name = p.currentToken.Literal
	}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	fn.Params = p.parseParamList()

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseParamList() *ast.ParamList {
	list := &ast.ParamList{Token: p.currentToken}

	if p.peekIs(token.RPAREN) {
		p.nextToken()
		return list
	}
	p.nextToken()
	list.Params = append(list.Params, &ast.Param{Token: p.currentToken, Name: p.currentToken.Literal})

	for p.peekIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list.Params = append(list.Params, &ast.Param{Token: p.currentToken, Name: p.currentToken.Literal})
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return list
}

func (p *Parser) parseFuncCall(callee ast.Expression) ast.Expression {
	call := &ast.FuncCall{Token: p.currentToken, Callee: callee}
	if v, ok := callee.(*ast.Variable); ok {
		call.Named = true
		_ = v
	}
	call.Arguments = p.parseExpressionList(token.RPAREN)
	return call
}

func (p *Parser) parseExpressionList(end token.Kind) []ast.Expression {
	var list []ast.Expression

	if p.peekIs(end) {
		p.nextToken()
		return list
	}
	p.nextToken()
	list = append(list, p.parseExpression(Lowest))

	for p.peekIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(Lowest))
	}

	if !p.expectPeek(end) {
		return nil
	}
	return list
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	arr := &ast.ArrayLiteral{Token: p.currentToken}
	arr.Elements = p.parseExpressionList(token.RBRACKET)
	return arr
}

func (p *Parser) parseElementIndex(left ast.Expression) ast.Expression {
	expr := &ast.ElementIndex{Token: p.currentToken, Left: left}
	p.nextToken()
	expr.Index = p.parseExpression(Lowest)
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return expr
}

func (p *Parser) parseMapLiteral() ast.Expression {
	m := &ast.MapLiteral{Token: p.currentToken}

	for !p.peekIs(token.RBRACE) {
		p.nextToken()
		key := p.parseExpression(Lowest)

		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(Lowest)
		m.Pairs = append(m.Pairs, &ast.MapPair{Key: key, Value: value})

		if !p.peekIs(token.RBRACE) && !p.expectPeek(token.COMMA) {
			return nil
		}
	}

	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return m
}

// parseFieldAccess handles the infix "." token: "a.field" member access.
func (p *Parser) parseFieldAccess(left ast.Expression) ast.Expression {
	tok := p.currentToken
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	return &ast.FieldAccess{Token: tok, Left: left, Field: p.currentToken.Literal}
}
