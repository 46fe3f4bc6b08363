package interpreter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/oxido/internal/diag"
	"github.com/eugenenazirov/oxido/internal/parser"
)

func runProgram(t *testing.T, src, stdin string, opts ...Option) (string, error) {
	t.Helper()
	prog, err := parser.ParseSource(src)
	require.NoError(t, err)

	var out bytes.Buffer
	opts = append([]Option{WithOutput(&out), WithInput(strings.NewReader(stdin))}, opts...)
	err = New(opts...).Run(context.Background(), prog)
	return out.String(), err
}

func requireCode(t *testing.T, err error, code string) *diag.Diagnostic {
	t.Helper()
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, code, d.Code, d.Message)
	return d
}

func TestRunOutput(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		stdin string
		want  string
	}{
		{"print concatenates", `print("a", 1, true); println();`, "", "a1true\n"},
		{"arithmetic precedence", `println(1 + 2 * 3 - 4 / 2);`, "", "5\n"},
		{"power is right associative", `println(2 ^ 3 ^ 2);`, "", "512\n"},
		{"double star alias", `println(2 ** 10);`, "", "1024\n"},
		{"unary minus binds looser than power", `println(-2 ^ 2);`, "", "-4\n"},
		{"string concatenation", `let s = "foo" + "bar"; println(s);`, "", "foobar\n"},
		{"comparison", `println(1 < 2, " ", "b" > "a", " ", true == false);`, "", "true true false\n"},
		{"vector display", `let v = [1, 2, 3]; println(v);`, "", "[1, 2, 3]\n"},
		{"nested vectors", `let v: vec<vec<int>> = [[1], []]; println(v);`, "", "[[1], []]\n"},
		{"vector compare", `println([1, 2] == [1, 2], [1] < [1, 0]);`, "", "truetrue\n"},
		{"index assignment", `let v = [1, 2]; v[0] = 5; v[2] = 9; println(v, len(v));`, "", "[5, 2, 9]3\n"},
		{"empty vector with annotation", `let v: vec<str> = []; v[0] = "x"; println(v);`, "", "[x]\n"},
		{"index expression", `let v = [[1, 2], [3, 4]]; println(v[1][0]);`, "", "3\n"},
		{"if else chain", `let x = 5; if x > 10 { println("big"); } else if x > 3 { println("mid"); } else { println("small"); }`, "", "mid\n"},
		{"loop with break", `let i = 0; loop { if i == 3 { break; } print(i); i = i + 1; } println();`, "", "012\n"},
		{"function with return", `fn add(a: int, b: int) -> int { return a + b; } println(add(2, 3));`, "", "5\n"},
		{"recursion", `fn fib(n: int) -> int { if n < 2 { return n; } return fib(n - 1) + fib(n - 2); } println(fib(15));`, "", "610\n"},
		{"void function", `fn greet(n: str) { println("hi ", n); return; } greet("bob");`, "", "hi bob\n"},
		{"conversions", `println(int("42") + 1, bool(0), str(7) + "!", int(true));`, "", "43false7!1\n"},
		{"read strips line endings", `let a = read(); let b = read(); println(a, "|", b, "|", read());`, "x\r\ny\n", "x|y|\n"},
		{"len counts characters", `println(len("héllo"));`, "", "5\n"},
		{"block let rebinds outer variable", `let x = 1; if true { let x = "inner"; println(x); } println(x);`, "", "inner\ninner\n"},
		{"if branch locals stay visible", `let c = false; if c { let r = 1; } else { let r = 2; } println(r);`, "", "2\n"},
		{"loop locals stay visible", `let i = 0; loop { let last = i * 10; i = i + 1; if i == 3 { break; } } println(last);`, "", "20\n"},
		{"outer assignment from block", `let x = 1; if true { x = 2; } println(x);`, "", "2\n"},
		{"function sees globals", `let g = 7; fn get() -> int { return g; } println(get());`, "", "7\n"},
		{"return from loop", `fn first() -> int { loop { return 4; } } println(first());`, "", "4\n"},
		{"vector value semantics", `let a = [1]; let b = a; b[0] = 2; println(a, b);`, "", "[1][2]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runProgram(t, tt.src, tt.stdin)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"undeclared variable", `println(x);`, diag.CodeUndeclared},
		{"assign undeclared", `x = 1;`, diag.CodeUndeclared},
		{"let type mismatch", `let x: int = "a";`, diag.CodeIncorrectType},
		{"assign changes type", `let x = 1; x = true;`, diag.CodeIncorrectType},
		{"mixed vector", `let v = [1, "a"];`, diag.CodeIncorrectType},
		{"empty vector without type", `let v = [];`, diag.CodeIncorrectType},
		{"adding int and str", `let x = 1 + "a";`, diag.CodeMismatchedTypes},
		{"subtracting strings", `let x = "a" - "b";`, diag.CodeMismatchedTypes},
		{"non bool condition", `if 1 { }`, diag.CodeMismatchedTypes},
		{"comparing different types", `let b = 1 == "1";`, diag.CodeMismatchedTypes},
		{"negating a string", `let x = -"a";`, diag.CodeMismatchedTypes},
		{"index out of bounds", `let v = [1]; println(v[1]);`, diag.CodeIndex},
		{"negative index", `let v = [1]; println(v[-1]);`, diag.CodeIndex},
		{"assign past end", `let v = [1]; v[2] = 3;`, diag.CodeIndex},
		{"indexing a scalar", `let x = 1; println(x[0]);`, diag.CodeMismatchedTypes},
		{"division by zero", `println(1 / 0);`, diag.CodeArithmetic},
		{"negative exponent", `println(2 ^ -1);`, diag.CodeArithmetic},
		{"unknown function", `foo();`, diag.CodeFunction},
		{"wrong arity", `fn f(a: int) { } f();`, diag.CodeFunction},
		{"wrong argument type", `fn f(a: int) { } f("x");`, diag.CodeIncorrectType},
		{"void used as value", `fn f() { } let x = f();`, diag.CodeFunction},
		{"print used as value", `let x = print();`, diag.CodeFunction},
		{"missing return value", `fn f() -> int { } let x = f();`, diag.CodeFunction},
		{"wrong return type", `fn f() -> int { return "s"; } let x = f();`, diag.CodeFunction},
		{"redefining builtin", `fn print() { }`, diag.CodeFunction},
		{"bad int conversion", `let x = int("abc");`, diag.CodeInvalidConversion},
		{"bad bool conversion", `let x = bool("yes");`, diag.CodeInvalidConversion},
		{"vector to int", `let x = int([1]);`, diag.CodeInvalidConversion},
		{"function scope hides caller locals", `fn f() -> int { return y; } fn g() { let y = 1; println(f()); } g();`, diag.CodeUndeclared},
		{"function locals do not leak", `fn g() { let y = 1; } g(); println(y);`, diag.CodeUndeclared},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runProgram(t, tt.src, "")
			requireCode(t, err, tt.code)
		})
	}
}

func TestRunExit(t *testing.T) {
	out, err := runProgram(t, `println("before"); exit 3; println("after");`, "")

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "before\n", out)
}

func TestRunExitRequiresInt(t *testing.T) {
	_, err := runProgram(t, `exit "no";`, "")
	requireCode(t, err, diag.CodeMismatchedTypes)
}

func TestRunStepLimit(t *testing.T) {
	_, err := runProgram(t, `loop { }`, "", WithMaxSteps(1000))
	d := requireCode(t, err, diag.CodeLimit)
	assert.Contains(t, d.Message, "step limit")
}

func TestRunCallDepth(t *testing.T) {
	_, err := runProgram(t, `fn f(n: int) -> int { return f(n + 1); } let x = f(0);`, "", WithMaxCallDepth(50))
	d := requireCode(t, err, diag.CodeLimit)
	assert.Contains(t, d.Message, "call stack")
}

func TestRunCancelled(t *testing.T) {
	prog, err := parser.ParseSource(`loop { }`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = New().Run(ctx, prog)
	d := requireCode(t, err, diag.CodeLimit)
	assert.Equal(t, "execution cancelled", d.Message)
}

func TestRunCancelledMidway(t *testing.T) {
	prog, err := parser.ParseSource(`loop { }`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	it := New()
	done := make(chan error, 1)
	go func() { done <- it.Run(ctx, prog) }()
	cancel()

	err = <-done
	requireCode(t, err, diag.CodeLimit)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRunWriteFailure(t *testing.T) {
	prog, err := parser.ParseSource(`println("x");`)
	require.NoError(t, err)

	err = New(WithOutput(failingWriter{})).Run(context.Background(), prog)
	d := requireCode(t, err, diag.CodeIO)
	assert.Equal(t, "disk full", d.Note)
}

func TestStepsCounted(t *testing.T) {
	prog, err := parser.ParseSource(`let a = 1; let b = 2;`)
	require.NoError(t, err)

	it := New()
	require.NoError(t, it.Run(context.Background(), prog))
	assert.Equal(t, int64(2), it.Steps())
}

func TestIsBuiltin(t *testing.T) {
	for _, name := range []string{"print", "println", "read", "int", "bool", "str", "len"} {
		assert.True(t, IsBuiltin(name), name)
	}
	assert.False(t, IsBuiltin("main"))
}
