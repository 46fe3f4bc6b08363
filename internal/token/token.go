// Package token defines the lexical tokens of the language.
package token

import (
	"fmt"
	"strings"
)

// Kind identifies the lexical class of a token.
type Kind int

const (
	EOF Kind = iota

	Ident
	Int
	String

	// keywords
	Let
	If
	Else
	Loop
	Break
	Return
	Exit
	Fn
	True
	False

	// punctuation
	LParen
	RParen
	LCurly
	RCurly
	LBracket
	RBracket
	Comma
	Semicolon
	Colon
	Arrow
	Assign

	// operators
	Plus
	Minus
	Star
	Slash
	Caret
	Eq
	NotEq
	Gt
	Lt
	GtEq
	LtEq
)

var kindNames = map[Kind]string{
	EOF:       "end of file",
	Ident:     "identifier",
	Int:       "integer",
	String:    "string",
	Let:       "let",
	If:        "if",
	Else:      "else",
	Loop:      "loop",
	Break:     "break",
	Return:    "return",
	Exit:      "exit",
	Fn:        "fn",
	True:      "true",
	False:     "false",
	LParen:    "(",
	RParen:    ")",
	LCurly:    "{",
	RCurly:    "}",
	LBracket:  "[",
	RBracket:  "]",
	Comma:     ",",
	Semicolon: ";",
	Colon:     ":",
	Arrow:     "->",
	Assign:    "=",
	Plus:      "+",
	Minus:     "-",
	Star:      "*",
	Slash:     "/",
	Caret:     "^",
	Eq:        "==",
	NotEq:     "!=",
	Gt:        ">",
	Lt:        "<",
	GtEq:      ">=",
	LtEq:      "<=",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

var keywords = map[string]Kind{
	"let":    Let,
	"if":     If,
	"else":   Else,
	"loop":   Loop,
	"break":  Break,
	"return": Return,
	"exit":   Exit,
	"fn":     Fn,
	"true":   True,
	"false":  False,
}

// Lookup returns the keyword kind for ident, or Ident when it is not reserved.
func Lookup(ident string) Kind {
	if kind, ok := keywords[ident]; ok {
		return kind
	}
	return Ident
}

// Span is a half-open byte range into the source text.
type Span struct {
	Start int
	End   int
}

// Join returns the smallest span covering both s and other.
func (s Span) Join(other Span) Span {
	out := s
	if other.Start < out.Start {
		out.Start = other.Start
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

// Token is a lexeme with its kind and location. Literal holds the decoded
// value for identifiers, integers and strings.
type Token struct {
	Kind    Kind
	Literal string
	Span    Span
}

func (t Token) String() string {
	switch t.Kind {
	case Ident:
		return "ident(" + t.Literal + ")"
	case Int:
		return "int(" + t.Literal + ")"
	case String:
		return fmt.Sprintf("str(%q)", t.Literal)
	default:
		return t.Kind.String()
	}
}

// Format renders a token slice the way debug output prints it.
func Format(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Kind == EOF {
			continue
		}
		parts = append(parts, tok.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
