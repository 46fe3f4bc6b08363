// Package lexer turns program text into a flat token stream.
package lexer

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/eugenenazirov/oxido/internal/diag"
	"github.com/eugenenazirov/oxido/internal/token"
)

// Lexer scans a single source text. It is not safe for concurrent use.
type Lexer struct {
	src string
	pos int
}

// New creates a lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: src}
}

// Tokenize is a convenience wrapper around New(src).Run().
func Tokenize(src string) ([]token.Token, error) {
	return New(src).Run()
}

// Run scans the whole input. The returned slice always ends with an EOF token.
// The first lexical error stops scanning and is returned as a *diag.Diagnostic.
func (l *Lexer) Run() ([]token.Token, error) {
	tokens := make([]token.Token, 0, len(l.src)/3+1)
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	return r
}

func (l *Lexer) skipTrivia() {
	for l.pos < len(l.src) {
		r := l.peek()
		switch {
		case r == '#':
			end := strings.IndexByte(l.src[l.pos:], '\n')
			if end < 0 {
				l.pos = len(l.src)
				return
			}
			l.pos += end
		case unicode.IsSpace(r):
			l.advance()
		default:
			return
		}
	}
}

var twoCharOps = map[string]token.Kind{
	"==": token.Eq,
	"!=": token.NotEq,
	">=": token.GtEq,
	"<=": token.LtEq,
	"->": token.Arrow,
	"**": token.Caret,
}

var oneCharOps = map[byte]token.Kind{
	'(': token.LParen,
	')': token.RParen,
	'{': token.LCurly,
	'}': token.RCurly,
	'[': token.LBracket,
	']': token.RBracket,
	',': token.Comma,
	';': token.Semicolon,
	':': token.Colon,
	'=': token.Assign,
	'+': token.Plus,
	'-': token.Minus,
	'*': token.Star,
	'/': token.Slash,
	'^': token.Caret,
	'>': token.Gt,
	'<': token.Lt,
}

func (l *Lexer) next() (token.Token, error) {
	l.skipTrivia()
	start := l.pos
	if start >= len(l.src) {
		return token.Token{Kind: token.EOF, Span: token.Span{Start: start, End: start}}, nil
	}

	if kind, ok := twoCharOps[l.src[start:min(start+2, len(l.src))]]; ok {
		l.pos += 2
		return l.emit(kind, "", start), nil
	}
	if kind, ok := oneCharOps[l.src[start]]; ok {
		l.pos++
		return l.emit(kind, "", start), nil
	}

	r := l.peek()
	switch {
	case r == '"':
		return l.readString()
	case isDigit(r):
		return l.readNumber()
	case isIdentStart(r):
		for l.pos < len(l.src) && isIdentPart(l.peek()) {
			l.advance()
		}
		word := l.src[start:l.pos]
		kind := token.Lookup(word)
		if kind != token.Ident {
			word = ""
		}
		return l.emit(kind, word, start), nil
	}

	l.advance()
	return token.Token{}, diag.New(diag.CodeSyntax,
		"unexpected character "+strconv.QuoteRune(r),
		"this character is not part of the language",
		token.Span{Start: start, End: l.pos})
}

func (l *Lexer) emit(kind token.Kind, literal string, start int) token.Token {
	return token.Token{Kind: kind, Literal: literal, Span: token.Span{Start: start, End: l.pos}}
}

func (l *Lexer) readNumber() (token.Token, error) {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	text := l.src[start:l.pos]
	if _, err := strconv.ParseInt(text, 10, 64); err != nil {
		return token.Token{}, diag.New(diag.CodeSyntax,
			"integer literal is too large",
			"integers must fit in 64 bits",
			token.Span{Start: start, End: l.pos})
	}
	return l.emit(token.Int, text, start), nil
}

func (l *Lexer) readString() (token.Token, error) {
	start := l.pos
	l.advance() // opening quote

	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token.Token{}, diag.New(diag.CodeSyntax,
				"unterminated string literal",
				"missing closing quote",
				token.Span{Start: start, End: l.pos})
		}
		r := l.advance()
		switch r {
		case '"':
			return l.emit(token.String, b.String(), start), nil
		case '\\':
			escStart := l.pos - 1
			if l.pos >= len(l.src) {
				continue
			}
			esc := l.advance()
			decoded, ok := escapes[esc]
			if !ok {
				return token.Token{}, diag.New(diag.CodeSyntax,
					"unknown escape sequence",
					"supported escapes are \\t \\b \\n \\r \\f \\\" and \\\\",
					token.Span{Start: escStart, End: l.pos})
			}
			b.WriteRune(decoded)
		default:
			b.WriteRune(r)
		}
	}
}

var escapes = map[rune]rune{
	't':  '\t',
	'b':  '\b',
	'n':  '\n',
	'r':  '\r',
	'f':  '\f',
	'"':  '"',
	'\\': '\\',
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
