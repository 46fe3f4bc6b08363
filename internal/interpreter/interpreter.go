// Package interpreter executes parsed programs by walking the syntax tree.
package interpreter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/oxido/internal/ast"
	"github.com/eugenenazirov/oxido/internal/diag"
	"github.com/eugenenazirov/oxido/internal/token"
	"github.com/eugenenazirov/oxido/internal/value"
)

const (
	defaultMaxCallDepth = 512
	cancelCheckInterval = 64
)

// ExitError reports that the program ran an `exit` statement.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("program exited with code %d", e.Code)
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithOutput sets where print and println write. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(it *Interpreter) {
		it.out = w
	}
}

// WithInput sets where read takes lines from. Defaults to an empty reader.
func WithInput(r io.Reader) Option {
	return func(it *Interpreter) {
		it.in = bufio.NewReader(r)
	}
}

// WithLogger attaches a logger for execution events.
func WithLogger(logger *zap.Logger) Option {
	return func(it *Interpreter) {
		if logger != nil {
			it.logger = logger
		}
	}
}

// WithMaxSteps bounds the number of executed statements and loop iterations.
// Zero means unlimited.
func WithMaxSteps(n int64) Option {
	return func(it *Interpreter) {
		it.maxSteps = n
	}
}

// WithMaxCallDepth bounds function call nesting.
func WithMaxCallDepth(n int) Option {
	return func(it *Interpreter) {
		if n > 0 {
			it.maxDepth = n
		}
	}
}

// Interpreter holds the state of one program execution. It is not safe for
// concurrent use; the tree it runs may be shared.
type Interpreter struct {
	out    io.Writer
	in     *bufio.Reader
	logger *zap.Logger

	globals   *scope
	functions map[string]*ast.FnDecl

	ctx      context.Context
	steps    int64
	maxSteps int64
	depth    int
	maxDepth int
}

// New creates an interpreter with empty global state.
func New(opts ...Option) *Interpreter {
	it := &Interpreter{
		out:       io.Discard,
		in:        bufio.NewReader(strings.NewReader("")),
		logger:    zap.NewNop(),
		globals:   newScope(nil),
		functions: make(map[string]*ast.FnDecl),
		maxDepth:  defaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// Steps returns how many statements and loop iterations have run so far.
func (it *Interpreter) Steps() int64 {
	return it.steps
}

// Run executes prog. Errors are *diag.Diagnostic for language errors and
// *ExitError when the program calls exit.
func (it *Interpreter) Run(ctx context.Context, prog *ast.Program) error {
	it.ctx = ctx
	if err := ctx.Err(); err != nil {
		return cancelled(token.Span{}, err)
	}

	_, _, err := it.execBlock(prog.Statements, it.globals)
	it.logger.Debug("execution finished",
		zap.Int64("steps", it.steps),
		zap.Bool("failed", err != nil),
	)
	return err
}

type flow int

const (
	flowNext flow = iota
	flowBreak
	flowReturn
)

func (it *Interpreter) tick(span token.Span) error {
	it.steps++
	if it.maxSteps > 0 && it.steps > it.maxSteps {
		return diag.New(diag.CodeLimit,
			"step limit exceeded",
			fmt.Sprintf("execution stopped after %d steps", it.maxSteps),
			span)
	}
	if it.steps%cancelCheckInterval == 0 {
		if err := it.ctx.Err(); err != nil {
			return cancelled(span, err)
		}
	}
	return nil
}

func cancelled(span token.Span, cause error) *diag.Diagnostic {
	return diag.New(diag.CodeLimit, "execution cancelled", cause.Error(), span)
}

func (it *Interpreter) execBlock(stmts []ast.Stmt, env *scope) (flow, value.Value, error) {
	for _, stmt := range stmts {
		f, ret, err := it.exec(stmt, env)
		if err != nil || f != flowNext {
			return f, ret, err
		}
	}
	return flowNext, nil, nil
}

func (it *Interpreter) exec(stmt ast.Stmt, env *scope) (flow, value.Value, error) {
	if err := it.tick(stmt.Pos()); err != nil {
		return flowNext, nil, err
	}

	switch s := stmt.(type) {
	case *ast.LetStmt:
		return flowNext, nil, it.execLet(s, env)
	case *ast.AssignStmt:
		return flowNext, nil, it.execAssign(s, env)
	case *ast.IndexAssignStmt:
		return flowNext, nil, it.execIndexAssign(s, env)
	case *ast.CallStmt:
		_, err := it.call(s.Call, env, false)
		return flowNext, nil, err
	case *ast.IfStmt:
		return it.execIf(s, env)
	case *ast.LoopStmt:
		return it.execLoop(s, env)
	case *ast.BreakStmt:
		return flowBreak, nil, nil
	case *ast.ReturnStmt:
		if s.Value == nil {
			return flowReturn, nil, nil
		}
		v, err := it.eval(s.Value, env, nil)
		return flowReturn, v, err
	case *ast.ExitStmt:
		return flowNext, nil, it.execExit(s, env)
	case *ast.FnDecl:
		return flowNext, nil, it.declareFunction(s)
	}
	return flowNext, nil, diag.New(diag.CodeSyntax, "unsupported statement", "", stmt.Pos())
}

func (it *Interpreter) execLet(s *ast.LetStmt, env *scope) error {
	v, err := it.eval(s.Value, env, s.Type)
	if err != nil {
		return err
	}
	typ := v.Type()
	if s.Type != nil {
		if *s.Type != typ {
			return typeMismatch(*s.Type, typ, s.Value.Pos())
		}
	}
	env.declare(s.Name, typ, v)
	return nil
}

func (it *Interpreter) execAssign(s *ast.AssignStmt, env *scope) error {
	slot, ok := env.lookup(s.Name)
	if !ok {
		return undeclared(s.Name, s.Span)
	}
	v, err := it.eval(s.Value, env, &slot.typ)
	if err != nil {
		return err
	}
	if v.Type() != slot.typ {
		return typeMismatch(slot.typ, v.Type(), s.Value.Pos())
	}
	slot.val = v
	return nil
}

func (it *Interpreter) execIndexAssign(s *ast.IndexAssignStmt, env *scope) error {
	slot, ok := env.lookup(s.Name)
	if !ok {
		return undeclared(s.Name, s.Span)
	}
	vec, ok := slot.val.(value.VecValue)
	if !ok {
		return expected("vector", slot.val, s.Span)
	}

	idxVal, err := it.eval(s.Index, env, nil)
	if err != nil {
		return err
	}
	idx, ok := idxVal.(value.IntValue)
	if !ok {
		return expected("int", idxVal, s.Index.Pos())
	}

	elemType := vec.ElemType
	v, err := it.eval(s.Value, env, &elemType)
	if err != nil {
		return err
	}
	if idx < 0 || int64(idx) > int64(vec.Len()) {
		return diag.New(diag.CodeIndex,
			"index out of bounds",
			fmt.Sprintf("index %d is out of bounds for vector of length %d", idx, vec.Len()),
			s.Index.Pos())
	}
	if v.Type() != elemType {
		return typeMismatch(elemType, v.Type(), s.Value.Pos())
	}

	if int(idx) == vec.Len() {
		slot.val = vec.Append(v)
	} else {
		slot.val = vec.With(int(idx), v)
	}
	return nil
}

func (it *Interpreter) execIf(s *ast.IfStmt, env *scope) (flow, value.Value, error) {
	cond, err := it.eval(s.Cond, env, nil)
	if err != nil {
		return flowNext, nil, err
	}
	b, ok := cond.(value.BoolValue)
	if !ok {
		return flowNext, nil, expected("bool", cond, s.Cond.Pos())
	}
	if b {
		return it.execBlock(s.Then.Statements, env)
	}
	if s.Else != nil {
		return it.execBlock(s.Else.Statements, env)
	}
	return flowNext, nil, nil
}

func (it *Interpreter) execLoop(s *ast.LoopStmt, env *scope) (flow, value.Value, error) {
	for {
		f, ret, err := it.execBlock(s.Body.Statements, env)
		if err != nil {
			return flowNext, nil, err
		}
		switch f {
		case flowBreak:
			return flowNext, nil, nil
		case flowReturn:
			return f, ret, nil
		}
		// empty bodies still consume the step budget
		if err := it.tick(s.Span); err != nil {
			return flowNext, nil, err
		}
	}
}

func (it *Interpreter) execExit(s *ast.ExitStmt, env *scope) error {
	v, err := it.eval(s.Value, env, nil)
	if err != nil {
		return err
	}
	code, ok := v.(value.IntValue)
	if !ok {
		return expected("int", v, s.Value.Pos())
	}
	it.logger.Debug("program exit", zap.Int64("code", int64(code)))
	return &ExitError{Code: int(code)}
}

func (it *Interpreter) declareFunction(s *ast.FnDecl) error {
	if _, ok := builtins[s.Name]; ok {
		return diag.New(diag.CodeFunction,
			"cannot redefine builtin function `"+s.Name+"`",
			"choose a different function name", s.Span)
	}
	it.functions[s.Name] = s
	return nil
}

func (it *Interpreter) call(c *ast.CallExpr, env *scope, wantValue bool) (value.Value, error) {
	if fn, ok := builtins[c.Name]; ok {
		args, err := it.evalArgs(c.Args, env, nil)
		if err != nil {
			return nil, err
		}
		if fn.arity >= 0 && len(args) != fn.arity {
			return nil, arityMismatch(fn.arity, len(args), c.Span)
		}
		v, err := fn.call(it, c, args)
		if err != nil {
			return nil, err
		}
		if wantValue && v == nil {
			return nil, noValue(c.Name, c.Span)
		}
		return v, nil
	}

	decl, ok := it.functions[c.Name]
	if !ok {
		return nil, diag.New(diag.CodeFunction,
			"function `"+c.Name+"` does not exist",
			"tried to call a function which does not exist", c.NameSpan)
	}
	if wantValue && decl.Result == nil {
		return nil, noValue(c.Name, c.Span)
	}
	if len(c.Args) != len(decl.Params) {
		return nil, arityMismatch(len(decl.Params), len(c.Args), c.Span)
	}

	hints := make([]*value.Type, len(decl.Params))
	for i := range decl.Params {
		hints[i] = &decl.Params[i].Type
	}
	args, err := it.evalArgs(c.Args, env, hints)
	if err != nil {
		return nil, err
	}

	local := newScope(it.globals)
	for i, param := range decl.Params {
		if args[i].Type() != param.Type {
			return nil, typeMismatch(param.Type, args[i].Type(), c.Args[i].Pos())
		}
		local.declare(param.Name, param.Type, args[i])
	}

	if it.depth >= it.maxDepth {
		return nil, diag.New(diag.CodeLimit,
			"call stack exhausted",
			fmt.Sprintf("more than %d nested calls", it.maxDepth), c.Span)
	}
	it.depth++
	_, ret, err := it.execBlock(decl.Body.Statements, local)
	it.depth--
	if err != nil {
		return nil, err
	}

	if ret == nil {
		if wantValue {
			return nil, diag.New(diag.CodeFunction,
				"function `"+c.Name+"` did not return a value",
				"expected function to return a value", c.Span)
		}
		return nil, nil
	}
	if ret.Type() != *decl.Result {
		return nil, diag.New(diag.CodeFunction,
			fmt.Sprintf("mismatched data types expected %s found %s", decl.Result, ret.Type()),
			"incorrect return type", c.Span)
	}
	return ret, nil
}

func (it *Interpreter) evalArgs(exprs []ast.Expr, env *scope, hints []*value.Type) ([]value.Value, error) {
	args := make([]value.Value, len(exprs))
	for i, expr := range exprs {
		var hint *value.Type
		if i < len(hints) {
			hint = hints[i]
		}
		v, err := it.eval(expr, env, hint)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func undeclared(name string, span token.Span) *diag.Diagnostic {
	return diag.New(diag.CodeUndeclared,
		"undeclared variable `"+name+"`",
		"attempted to access value of undeclared variable", span)
}

func typeMismatch(want, got value.Type, span token.Span) *diag.Diagnostic {
	return diag.New(diag.CodeIncorrectType,
		"incorrect data type",
		fmt.Sprintf("mismatched data types expected %s found %s", want, got), span)
}

func expected(want string, got value.Value, span token.Span) *diag.Diagnostic {
	return diag.New(diag.CodeMismatchedTypes,
		fmt.Sprintf("mismatched data types, expected `%s` found %s", want, got.Type()),
		fmt.Sprintf("a value of type `%s` was expected", want), span)
}

func arityMismatch(want, got int, span token.Span) *diag.Diagnostic {
	return diag.New(diag.CodeFunction,
		"wrong number of arguments",
		fmt.Sprintf("%d arguments were expected but %d were passed", want, got), span)
}

func noValue(name string, span token.Span) *diag.Diagnostic {
	return diag.New(diag.CodeFunction,
		"function `"+name+"` does not return a value",
		"this call is used as a value", span)
}
