package interpreter

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/eugenenazirov/oxido/internal/ast"
	"github.com/eugenenazirov/oxido/internal/diag"
	"github.com/eugenenazirov/oxido/internal/value"
)

type builtin struct {
	// arity is -1 for variadic functions.
	arity int
	call  func(it *Interpreter, c *ast.CallExpr, args []value.Value) (value.Value, error)
}

var builtins = map[string]builtin{
	"print":   {arity: -1, call: builtinPrint},
	"println": {arity: -1, call: builtinPrintln},
	"read":    {arity: 0, call: builtinRead},
	"int":     {arity: 1, call: builtinInt},
	"bool":    {arity: 1, call: builtinBool},
	"str":     {arity: 1, call: builtinStr},
	"len":     {arity: 1, call: builtinLen},
}

// IsBuiltin reports whether name is a standard library function.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func builtinPrint(it *Interpreter, c *ast.CallExpr, args []value.Value) (value.Value, error) {
	var b strings.Builder
	for _, arg := range args {
		b.WriteString(arg.String())
	}
	return nil, it.write(c, b.String())
}

func builtinPrintln(it *Interpreter, c *ast.CallExpr, args []value.Value) (value.Value, error) {
	var b strings.Builder
	for _, arg := range args {
		b.WriteString(arg.String())
	}
	b.WriteByte('\n')
	return nil, it.write(c, b.String())
}

func (it *Interpreter) write(c *ast.CallExpr, s string) error {
	if _, err := io.WriteString(it.out, s); err != nil {
		return diag.New(diag.CodeIO, "failed to write output", err.Error(), c.Span)
	}
	return nil
}

// builtinRead returns the next input line without its line terminator. At end
// of input it returns whatever was left, possibly the empty string.
func builtinRead(it *Interpreter, c *ast.CallExpr, _ []value.Value) (value.Value, error) {
	line, err := it.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, diag.New(diag.CodeIO, "failed to read input", err.Error(), c.Span)
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return value.StrValue(line), nil
}

func builtinInt(_ *Interpreter, c *ast.CallExpr, args []value.Value) (value.Value, error) {
	switch v := args[0].(type) {
	case value.IntValue:
		return v, nil
	case value.BoolValue:
		if v {
			return value.IntValue(1), nil
		}
		return value.IntValue(0), nil
	case value.StrValue:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return nil, conversionError(args[0], "int", c)
		}
		return value.IntValue(n), nil
	}
	return nil, conversionError(args[0], "int", c)
}

func builtinBool(_ *Interpreter, c *ast.CallExpr, args []value.Value) (value.Value, error) {
	switch v := args[0].(type) {
	case value.IntValue:
		return value.BoolValue(v != 0), nil
	case value.BoolValue:
		return v, nil
	case value.StrValue:
		switch v {
		case "true":
			return value.BoolValue(true), nil
		case "false":
			return value.BoolValue(false), nil
		}
	}
	return nil, conversionError(args[0], "bool", c)
}

func builtinStr(_ *Interpreter, _ *ast.CallExpr, args []value.Value) (value.Value, error) {
	if s, ok := args[0].(value.StrValue); ok {
		return s, nil
	}
	return value.StrValue(args[0].String()), nil
}

// builtinLen counts vector elements or string characters.
func builtinLen(_ *Interpreter, c *ast.CallExpr, args []value.Value) (value.Value, error) {
	switch v := args[0].(type) {
	case value.VecValue:
		return value.IntValue(v.Len()), nil
	case value.StrValue:
		return value.IntValue(len([]rune(string(v)))), nil
	}
	return nil, expected("str` or `vector", args[0], c.Args[0].Pos())
}

func conversionError(v value.Value, target string, c *ast.CallExpr) *diag.Diagnostic {
	var source string
	if s, ok := v.(value.StrValue); ok {
		source = strconv.Quote(string(s))
	} else {
		source = v.Type().String()
	}
	return diag.New(diag.CodeInvalidConversion,
		"cannot convert "+source+" to "+target,
		"invalid conversion to `"+target+"`", c.Span)
}
