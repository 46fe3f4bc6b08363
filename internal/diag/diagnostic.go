// Package diag describes language errors and renders them against the source
// text they point into.
package diag

import (
	"strings"
	"unicode/utf8"

	"github.com/agilira/go-errors"

	"github.com/eugenenazirov/oxido/internal/token"
)

// Diagnostic codes. The numbering follows the language's historic error keys.
const (
	CodeSyntax            = "E0001"
	CodeMismatchedTypes   = "E0002"
	CodeInvalidConversion = "E0003"
	CodeFunction          = "E0004"
	CodeUndeclared        = "E0005"
	CodeIndex             = "E0006"
	CodeArithmetic        = "E0007"
	CodeLimit             = "E0008"
	CodeIO                = "E0009"
	CodeIncorrectType     = "E0011"
)

// Diagnostic is an error anchored to a span of the program source.
type Diagnostic struct {
	Code    string
	Message string
	Note    string
	Span    token.Span
}

// New builds a diagnostic. An empty note falls back to the message.
func New(code, message, note string, span token.Span) *Diagnostic {
	if note == "" {
		note = message
	}
	return &Diagnostic{
		Code:    code,
		Message: message,
		Note:    note,
		Span:    span,
	}
}

func (d *Diagnostic) Error() string {
	return "error[" + d.Code + "]: " + d.Message
}

// ErrorCode exposes the diagnostic code to go-errors aware callers.
func (d *Diagnostic) ErrorCode() errors.ErrorCode {
	return errors.ErrorCode(d.Code)
}

// Location is a 1-based line/column position resolved from a byte offset.
type Location struct {
	Line     int
	Column   int
	LineText string
	// lineStart is the byte offset where LineText begins.
	lineStart int
}

// Locate resolves offset inside source. Offsets past the end clamp to the
// last position.
func Locate(source string, offset int) Location {
	if offset < 0 {
		offset = 0
	}
	if offset > len(source) {
		offset = len(source)
	}

	line := 1 + strings.Count(source[:offset], "\n")
	start := strings.LastIndexByte(source[:offset], '\n') + 1
	end := strings.IndexByte(source[start:], '\n')
	if end < 0 {
		end = len(source)
	} else {
		end += start
	}
	text := strings.TrimSuffix(source[start:end], "\r")

	return Location{
		Line:      line,
		Column:    utf8.RuneCountInString(source[start:offset]) + 1,
		LineText:  text,
		lineStart: start,
	}
}
