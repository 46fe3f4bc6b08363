package oxido

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/oxido/internal/ast"
	"github.com/eugenenazirov/oxido/internal/diag"
	"github.com/eugenenazirov/oxido/internal/interpreter"
	"github.com/eugenenazirov/oxido/internal/lexer"
	"github.com/eugenenazirov/oxido/internal/parser"
	"github.com/eugenenazirov/oxido/internal/token"
)

// Program is a lexed and parsed source text. It is never modified after
// parsing and may be executed concurrently.
type Program struct {
	Tokens []token.Token
	AST    *ast.Program
}

// ProgramCache stores parsed programs keyed by CacheKey of their source.
type ProgramCache interface {
	Get(key string) (*Program, bool)
	Add(key string, program *Program)
}

// CacheKey returns the cache key for a source text.
func CacheKey(contents string) string {
	sum := sha256.Sum256([]byte(contents))
	return hex.EncodeToString(sum[:])
}

// Report describes one Engine.Run call.
type Report struct {
	Name       string
	Tokens     int
	Statements int

	Lex   time.Duration
	Parse time.Duration
	Exec  time.Duration
	Total time.Duration

	// Executed is false for dry runs and programs that failed to parse.
	Executed bool
	// Cached is true when the parsed program came from the ProgramCache.
	Cached   bool
	ExitCode int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithStdout(w io.Writer) EngineOption {
	return func(e *Engine) {
		if w != nil {
			e.stdout = w
		}
	}
}

func WithStderr(w io.Writer) EngineOption {
	return func(e *Engine) {
		if w != nil {
			e.stderr = w
		}
	}
}

func WithStdin(r io.Reader) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.stdin = r
		}
	}
}

func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithColor toggles ANSI styling of rendered diagnostics.
func WithColor(enabled bool) EngineOption {
	return func(e *Engine) {
		e.color = enabled
	}
}

// WithMaxSteps bounds statements and loop iterations per run. Zero disables
// the limit.
func WithMaxSteps(n int64) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.maxSteps = n
		}
	}
}

func WithMaxCallDepth(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxCallDepth = n
		}
	}
}

// WithProgramCache reuses parsed programs across runs of identical source.
func WithProgramCache(cache ProgramCache) EngineOption {
	return func(e *Engine) {
		e.cache = cache
	}
}

// Engine runs programs. An Engine holds no per-run state and is safe for
// concurrent use when its writers and reader are.
type Engine struct {
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	logger *zap.Logger

	color        bool
	maxSteps     int64
	maxCallDepth int
	cache        ProgramCache
}

// NewEngine creates an engine. Without options output is discarded and input
// is empty.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		stdout: io.Discard,
		stderr: io.Discard,
		stdin:  strings.NewReader(""),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run lexes, parses and, unless cfg selects a dry run, executes contents.
// Language errors are rendered to the engine's stderr and returned as
// *diag.Diagnostic. An exit statement is not an error; its code is in
// Report.ExitCode.
func (e *Engine) Run(ctx context.Context, name, contents string, cfg *Config) (*Report, error) {
	if err := cfg.usable(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{Name: name}
	logger := e.logger.With(zap.String("program", name))

	prog, err := e.load(contents, report, cfg, start)
	if err != nil {
		report.Total = time.Since(start)
		return report, e.fail(name, contents, err)
	}
	report.Tokens = len(prog.Tokens)
	report.Statements = len(prog.AST.Statements)

	logger.Debug("program parsed",
		zap.Int("tokens", report.Tokens),
		zap.Int("statements", report.Statements),
		zap.Bool("cached", report.Cached),
		zap.Duration("lex", report.Lex),
		zap.Duration("parse", report.Parse),
	)

	if cfg.DryRun() {
		report.Total = time.Since(start)
		return report, nil
	}

	it := interpreter.New(
		interpreter.WithOutput(e.stdout),
		interpreter.WithInput(e.stdin),
		interpreter.WithLogger(logger),
		interpreter.WithMaxSteps(e.maxSteps),
		interpreter.WithMaxCallDepth(e.maxCallDepth),
	)
	execStart := time.Now()
	err = it.Run(ctx, prog.AST)
	report.Exec = time.Since(execStart)
	report.Executed = true

	var exit *interpreter.ExitError
	switch {
	case errors.As(err, &exit):
		report.ExitCode = exit.Code
	case err != nil:
		report.Total = time.Since(start)
		return report, e.fail(name, contents, err)
	}

	report.Total = time.Since(start)
	// exit ends the program on the spot; nothing follows its output
	if exit == nil {
		if err := e.trailer(cfg, report.Total); err != nil {
			return report, e.fail(name, contents, err)
		}
	}

	logger.Debug("program finished",
		zap.Int64("steps", it.Steps()),
		zap.Int("exit_code", report.ExitCode),
		zap.Duration("exec", report.Exec),
		zap.Duration("total", report.Total),
	)
	return report, nil
}

// load returns the parsed program, from the cache when possible, and writes
// the debug dumps.
func (e *Engine) load(contents string, report *Report, cfg *Config, start time.Time) (*Program, error) {
	var key string
	if e.cache != nil {
		key = CacheKey(contents)
		if prog, ok := e.cache.Get(key); ok {
			report.Cached = true
			if err := e.debugDump(cfg, prog, start); err != nil {
				return nil, err
			}
			return prog, nil
		}
	}

	phase := time.Now()
	tokens, err := lexer.Tokenize(contents)
	report.Lex = time.Since(phase)
	if err != nil {
		return nil, err
	}
	if cfg.Debug() {
		if err := e.emit("LEXER: %s\n\nTIME: %s\n\n", token.Format(tokens), time.Since(start)); err != nil {
			return nil, err
		}
	}

	phase = time.Now()
	tree, err := parser.Parse(tokens)
	report.Parse = time.Since(phase)
	if err != nil {
		return nil, err
	}
	if cfg.Debug() {
		if err := e.emit("AST: %s\n\nTIME: %s\n\n", ast.Dump(tree), time.Since(start)); err != nil {
			return nil, err
		}
	}

	prog := &Program{Tokens: tokens, AST: tree}
	if e.cache != nil {
		e.cache.Add(key, prog)
	}
	return prog, nil
}

func (e *Engine) debugDump(cfg *Config, prog *Program, start time.Time) error {
	if !cfg.Debug() {
		return nil
	}
	if err := e.emit("LEXER: %s\n\nTIME: %s\n\n", token.Format(prog.Tokens), time.Since(start)); err != nil {
		return err
	}
	return e.emit("AST: %s\n\nTIME: %s\n\n", ast.Dump(prog.AST), time.Since(start))
}

// trailer ends a completed run: the elapsed time when requested, then a
// blank line.
func (e *Engine) trailer(cfg *Config, total time.Duration) error {
	if cfg.Debug() || cfg.Time() {
		if err := e.emit("\nTIME: %s\n", total); err != nil {
			return err
		}
	}
	return e.emit("\n")
}

// emit writes engine output to stdout. Write failures surface as E0009 like
// failed writes from the program itself.
func (e *Engine) emit(format string, args ...any) error {
	if _, err := fmt.Fprintf(e.stdout, format, args...); err != nil {
		return diag.New(diag.CodeIO, "failed to write output", err.Error(), token.Span{})
	}
	return nil
}

// fail renders language errors and passes everything else through.
func (e *Engine) fail(name, contents string, err error) error {
	var d *diag.Diagnostic
	if !errors.As(err, &d) {
		return err
	}
	if rerr := diag.NewRenderer(e.color).Render(e.stderr, name, contents, d); rerr != nil {
		e.logger.Warn("failed to render diagnostic", zap.Error(rerr))
	}
	return err
}
