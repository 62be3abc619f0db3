// Package lexer implements the lexical analyzer for the monke-script
// scripting language.
//
// The lexer reads characters from an input.Input and produces a stream of
// tokens for the parser. Tokens are buffered in a small ring so the parser
// can look one token ahead and undo a single Next call — mirroring the
// 4-slot token ring the engine's original lexer keeps so the parser never
// has to re-tokenize on backtrack.
package lexer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dr8co/augo/input"
	"github.com/dr8co/augo/token"
)

// ringSize is the number of tokens retained for lookahead/undo.
const ringSize = 4

// Lexer tokenizes a single input.Input.
type Lexer struct {
	in *input.Input

	ring     [ringSize]token.Token
	size     int // number of valid tokens currently buffered
	curr     int // index of the last token returned by Next, within ring
	undoable int // how many Undo calls can currently be satisfied
}

// New creates a Lexer reading from in.
func New(in *input.Input) *Lexer {
	return &Lexer{in: in, curr: -1}
}

// Next returns the next token, advancing past any previously undone tokens
// before reading fresh ones from the input.
func (l *Lexer) Next() (token.Token, error) {
	if l.undoable > 0 {
		l.undoable--
		l.curr = (l.curr + 1) % ringSize
		return l.ring[l.curr], nil
	}

	tok, err := l.scan()
	if err != nil {
		return token.Token{}, err
	}

	l.curr = (l.curr + 1) % ringSize
	l.ring[l.curr] = tok
	if l.size < ringSize {
		l.size++
	}
	return tok, nil
}

// Undo rewinds the lexer by one token: the next Next call returns the token
// that was just returned, instead of reading a new one. Only one level of
// undo is guaranteed to be available at a time, matching the parser's single
// token of lookahead.
func (l *Lexer) Undo() {
	if l.undoable >= l.size-1 {
		return
	}
	l.undoable++
	l.curr = ((l.curr - 1) % ringSize + ringSize) % ringSize
}

// scan reads and classifies the next raw token from the input.
func (l *Lexer) scan() (token.Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		if errors.Is(err, io.EOF) {
			return token.Token{Kind: token.EOF, Pos: l.in.Pos()}, nil
		}
		return token.Token{}, err
	}

	pos := l.in.Pos()
	b, err := l.in.Get()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return token.Token{Kind: token.EOF, Pos: pos}, nil
		}
		return token.Token{}, err
	}

	switch {
	case isLetter(b):
		return l.scanIdentifier(b, pos)
	case isDigit(b):
		return l.scanNumber(b, pos)
	}

	switch b {
	case '"':
		return l.scanString(pos)
	case '\'':
		return l.scanChar(pos)
	case '.':
		return token.Token{Kind: token.DOT, Literal: ".", Pos: pos}, nil
	case ',':
		return token.Token{Kind: token.COMMA, Literal: ",", Pos: pos}, nil
	case ':':
		return token.Token{Kind: token.COLON, Literal: ":", Pos: pos}, nil
	case ';':
		return token.Token{Kind: token.SEMICOLON, Literal: ";", Pos: pos}, nil
	case '(':
		return token.Token{Kind: token.LPAREN, Literal: "(", Pos: pos}, nil
	case ')':
		return token.Token{Kind: token.RPAREN, Literal: ")", Pos: pos}, nil
	case '[':
		return token.Token{Kind: token.LBRACKET, Literal: "[", Pos: pos}, nil
	case ']':
		return token.Token{Kind: token.RBRACKET, Literal: "]", Pos: pos}, nil
	case '{':
		return token.Token{Kind: token.LBRACE, Literal: "{", Pos: pos}, nil
	case '}':
		return token.Token{Kind: token.RBRACE, Literal: "}", Pos: pos}, nil
	case '+':
		return l.scanOneOrAssign(b, pos, token.ADD, token.ADD_ASSIGN)
	case '-':
		return l.scanOneOrAssign(b, pos, token.SUB, token.SUB_ASSIGN)
	case '*':
		return l.scanOneOrAssign(b, pos, token.MUL, token.MUL_ASSIGN)
	case '/':
		return l.scanOneOrAssign(b, pos, token.DIV, token.DIV_ASSIGN)
	case '%':
		return l.scanOneOrAssign(b, pos, token.MOD, token.MOD_ASSIGN)
	case '^':
		return l.scanOneOrAssign(b, pos, token.POW, token.POW_ASSIGN)
	case '=':
		if next, _ := l.in.Peek(); next == '=' {
			_, _ = l.in.Get()
			return token.Token{Kind: token.EQ, Literal: "==", Pos: pos}, nil
		}
		return token.Token{Kind: token.ASSIGN, Literal: "=", Pos: pos}, nil
	case '~':
		if next, _ := l.in.Peek(); next == '=' {
			_, _ = l.in.Get()
			return token.Token{Kind: token.APPROX_EQ, Literal: "~=", Pos: pos}, nil
		}
		return token.Token{Kind: token.ILLEGAL, Literal: "~", Pos: pos}, nil
	case '!':
		if next, _ := l.in.Peek(); next == '=' {
			_, _ = l.in.Get()
			return token.Token{Kind: token.NOT_EQ, Literal: "!=", Pos: pos}, nil
		}
		return token.Token{Kind: token.NOT, Literal: "!", Pos: pos}, nil
	case '<':
		if next, _ := l.in.Peek(); next == '=' {
			_, _ = l.in.Get()
			return token.Token{Kind: token.LT_EQ, Literal: "<=", Pos: pos}, nil
		}
		return token.Token{Kind: token.LT, Literal: "<", Pos: pos}, nil
	case '>':
		if next, _ := l.in.Peek(); next == '=' {
			_, _ = l.in.Get()
			return token.Token{Kind: token.GT_EQ, Literal: ">=", Pos: pos}, nil
		}
		return token.Token{Kind: token.GT, Literal: ">", Pos: pos}, nil
	}

	return token.Token{Kind: token.ILLEGAL, Literal: string(b), Pos: pos},
		fmt.Errorf("lexer: illegal character %q at %d:%d", b, pos.Line, pos.Col)
}

// scanOneOrAssign handles an operator that may be followed by '=' to form
// its compound-assignment kind (e.g. "+" vs "+=").
func (l *Lexer) scanOneOrAssign(b byte, pos token.Position, plain, assign token.Kind) (token.Token, error) {
	if next, _ := l.in.Peek(); next == '=' {
		_, _ = l.in.Get()
		return token.Token{Kind: assign, Literal: string(b) + "=", Pos: pos}, nil
	}
	return token.Token{Kind: plain, Literal: string(b), Pos: pos}, nil
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		b, err := l.in.Peek()
		if err != nil {
			return err
		}
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			_, _ = l.in.Get()
		case b == '#':
			for {
				c, err := l.in.Get()
				if err != nil || c == '\n' {
					break
				}
			}
		default:
			return nil
		}
	}
}

func isLetter(b byte) bool {
	return 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z' || b == '_'
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || 'a' <= b && b <= 'f' || 'A' <= b && b <= 'F'
}

func (l *Lexer) scanIdentifier(first byte, pos token.Position) (token.Token, error) {
	var b strings.Builder
	b.WriteByte(first)
	for {
		c, err := l.in.Peek()
		if err != nil || !(isLetter(c) || isDigit(c)) {
			break
		}
		_, _ = l.in.Get()
		b.WriteByte(c)
	}
	lit := b.String()
	return token.Token{Kind: token.LookupIdent(lit), Literal: lit, Pos: pos}, nil
}

// scanNumber reads INT, HEX, BINARY, or FLOAT literals. "0x"/"0b" prefixes
// switch to hex/binary; a single '.' after a decimal run switches it to
// FLOAT, whether or not digits follow the '.'.
func (l *Lexer) scanNumber(first byte, pos token.Position) (token.Token, error) {
	var b strings.Builder
	b.WriteByte(first)

	if first == '0' {
		if next, _ := l.in.Peek(); next == 'x' || next == 'X' {
			_, _ = l.in.Get()
			b.WriteByte(next)
			for {
				c, err := l.in.Peek()
				if err != nil || !isHexDigit(c) {
					break
				}
				_, _ = l.in.Get()
				b.WriteByte(c)
			}
			return token.Token{Kind: token.HEX, Literal: b.String(), Pos: pos}, nil
		}
		if next, _ := l.in.Peek(); next == 'b' || next == 'B' {
			_, _ = l.in.Get()
			b.WriteByte(next)
			for {
				c, err := l.in.Peek()
				if err != nil || (c != '0' && c != '1') {
					break
				}
				_, _ = l.in.Get()
				b.WriteByte(c)
			}
			return token.Token{Kind: token.BINARY, Literal: b.String(), Pos: pos}, nil
		}
	}

	for {
		c, err := l.in.Peek()
		if err != nil || !isDigit(c) {
			break
		}
		_, _ = l.in.Get()
		b.WriteByte(c)
	}

	kind := token.INT
	if next, _ := l.in.Peek(); next == '.' {
		_, _ = l.in.Get()
		b.WriteByte('.')
		kind = token.FLOAT
		for {
			c, err := l.in.Peek()
			if err != nil || !isDigit(c) {
				break
			}
			_, _ = l.in.Get()
			b.WriteByte(c)
		}
	}
	return token.Token{Kind: kind, Literal: b.String(), Pos: pos}, nil
}

func (l *Lexer) scanString(pos token.Position) (token.Token, error) {
	var b strings.Builder
	for {
		c, err := l.in.Get()
		if err != nil {
			return token.Token{}, fmt.Errorf("lexer: unterminated string starting at %d:%d", pos.Line, pos.Col)
		}
		if c == '"' {
			return token.Token{Kind: token.STRING, Literal: b.String(), Pos: pos}, nil
		}
		if c == '\\' {
			esc, err := l.in.Get()
			if err != nil {
				return token.Token{}, fmt.Errorf("lexer: unterminated string starting at %d:%d", pos.Line, pos.Col)
			}
			b.WriteByte(unescape(esc))
			continue
		}
		b.WriteByte(c)
	}
}

// scanChar reads a CHAR literal. An empty pair of quotes ('') yields the
// zero byte, matching the original lexer's handling of an empty char token.
func (l *Lexer) scanChar(pos token.Position) (token.Token, error) {
	c, err := l.in.Get()
	if err != nil {
		return token.Token{}, fmt.Errorf("lexer: unterminated char literal at %d:%d", pos.Line, pos.Col)
	}

	var value byte
	switch {
	case c == '\'':
		value = 0
		return token.Token{Kind: token.CHAR, Literal: string(value), Pos: pos}, nil
	case c == '\\':
		esc, err := l.in.Get()
		if err != nil {
			return token.Token{}, fmt.Errorf("lexer: unterminated char literal at %d:%d", pos.Line, pos.Col)
		}
		value = unescape(esc)
	default:
		value = c
	}

	closing, err := l.in.Get()
	if err != nil || closing != '\'' {
		return token.Token{}, fmt.Errorf("lexer: unterminated char literal at %d:%d", pos.Line, pos.Col)
	}
	return token.Token{Kind: token.CHAR, Literal: string(value), Pos: pos}, nil
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	case '\'':
		return '\''
	case '"':
		return '"'
	case '\\':
		return '\\'
	default:
		return c
	}
}
