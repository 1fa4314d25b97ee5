package compiler

import (
	"reflect"
	"strings"
	"testing"

	"github.com/arkanis/lisp.c/diag"
	"github.com/arkanis/lisp.c/reader"
	"github.com/arkanis/lisp.c/vm"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func testEnv() *vm.Env {
	env := vm.NewEnv(nil)
	special := map[string]vm.CompileFunc{
		"quote":  Quote,
		"if":     If,
		"define": Define,
		"set!":   Set,
		"lambda": Lambda,
		"begin":  Begin,
	}
	for name, c := range special {
		env.Bind(name, &vm.Builtin{Name: name, Special: true, Compile: c})
	}
	ops := map[string]vm.CompileFunc{
		"+":     Arith("+", vm.OpAdd),
		"-":     Arith("-", vm.OpSub),
		"*":     Arith("*", vm.OpMul),
		"/":     Arith("/", vm.OpDiv),
		"=":     Eq,
		"cons":  Cons,
		"first": First,
		"rest":  Rest,
	}
	for name, c := range ops {
		env.Bind(name, &vm.Builtin{Name: name, Compile: c})
	}
	return env
}

func compileString(t *testing.T, env *vm.Env, src string) *vm.CompiledLambda {
	t.Helper()
	form, err := reader.ReadString(src)
	if err != nil {
		t.Fatalf("ReadString(%q): %v", src, err)
	}
	return CompileUnit(form, env)
}

func listing(cl *vm.CompiledLambda) []string {
	out := make([]string, len(cl.Code))
	for i, in := range cl.Code {
		out[i] = in.String()
	}
	return out
}

func expectListing(t *testing.T, cl *vm.CompiledLambda, want ...string) {
	t.Helper()
	if got := listing(cl); !reflect.DeepEqual(got, want) {
		t.Errorf("code =\n  %s\nwant\n  %s", strings.Join(got, "\n  "), strings.Join(want, "\n  "))
	}
}

func nested(t *testing.T, cl *vm.CompiledLambda, i int) *vm.CompiledLambda {
	t.Helper()
	if i >= len(cl.Literals) {
		t.Fatalf("literal %d missing, table = %v", i, cl.Literals)
	}
	child, ok := cl.Literals[i].(*vm.CompiledLambda)
	if !ok {
		t.Fatalf("literal %d is %s, want compiled-lambda", i, vm.TypeName(cl.Literals[i]))
	}
	return child
}

func run(t *testing.T, env *vm.Env, src string) vm.Atom {
	t.Helper()
	m := vm.New(0)
	result := m.Run(compileString(t, env, src), env)
	if m.Depth() != 0 {
		t.Errorf("%s: stack depth after run = %d, want 0", src, m.Depth())
	}
	return result
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

func TestCompileConstants(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"42", []string{"PUSH_NUM 42", "RETURN"}},
		{"-5", []string{"PUSH_NUM -5", "RETURN"}},
		{"nil", []string{"PUSH_NIL", "RETURN"}},
		{"true", []string{"PUSH_TRUE", "RETURN"}},
		{"false", []string{"PUSH_FALSE", "RETURN"}},
		{`"text"`, []string{"PUSH_LITERAL 0 0", "RETURN"}},
		{"'sym", []string{"PUSH_LITERAL 0 0", "RETURN"}},
		{"2432902008176640000", []string{"PUSH_LITERAL 0 0", "RETURN"}},
	}

	env := testEnv()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expectListing(t, compileString(t, env, tt.src), tt.want...)
		})
	}
}

func TestCompileLargeNumberLiteral(t *testing.T) {
	cl := compileString(t, testEnv(), "2432902008176640000")
	if got := cl.Literals[0]; got != vm.Num(2432902008176640000) {
		t.Errorf("literal = %v, want 2432902008176640000", got)
	}
}

// ---------------------------------------------------------------------------
// Addressing
// ---------------------------------------------------------------------------

func TestCompileOuterArgument(t *testing.T) {
	unit := compileString(t, testEnv(), "(lambda (x) (lambda (y) x))")
	expectListing(t, unit, "LAMBDA 0 0", "RETURN")

	outer := nested(t, unit, 0)
	if outer.Parent != unit || outer.ArgCount != 1 {
		t.Errorf("outer: parent %p args %d, want %p 1", outer.Parent, outer.ArgCount, unit)
	}
	expectListing(t, outer, "LAMBDA 0 0", "RETURN")

	inner := nested(t, outer, 0)
	expectListing(t, inner, "PUSH_ARG 1 0", "RETURN")
}

func TestCompileShadowing(t *testing.T) {
	unit := compileString(t, testEnv(), "(lambda (x) (lambda (x) x))")
	inner := nested(t, nested(t, unit, 0), 0)
	expectListing(t, inner, "PUSH_ARG 0 0", "RETURN")
}

func TestCompileDynamicFallback(t *testing.T) {
	unit := compileString(t, testEnv(), "(lambda (a) (+ a y))")
	fn := nested(t, unit, 0)
	expectListing(t, fn, "PUSH_ARG 0 0", "PUSH_FROM_ENV 0", "ADD", "RETURN")
	if fn.Literals[0] != vm.Sym("y") {
		t.Errorf("literal = %v, want y", fn.Literals[0])
	}
}

func TestCompileLocalDefines(t *testing.T) {
	unit := compileString(t, testEnv(), "(lambda () (define a 1) (define b a) b)")
	fn := nested(t, unit, 0)
	expectListing(t, fn,
		"PUSH_NUM 1", "STORE_LOCAL 0 0", "DROP",
		"PUSH_LOCAL 0 0", "STORE_LOCAL 0 1", "DROP",
		"PUSH_LOCAL 0 1",
		"RETURN")
	if fn.VarCount != 2 || !reflect.DeepEqual(fn.Names, []string{"a", "b"}) {
		t.Errorf("vars = %d names = %v, want 2 [a b]", fn.VarCount, fn.Names)
	}
}

func TestCompileRecursiveLocalDefine(t *testing.T) {
	// The name is declared before its value is compiled.
	unit := compileString(t, testEnv(), "(lambda () (define f (lambda () f)) f)")
	inner := nested(t, nested(t, unit, 0), 0)
	expectListing(t, inner, "PUSH_LOCAL 1 0", "RETURN")
}

func TestCompileTopLevelDefine(t *testing.T) {
	unit := compileString(t, testEnv(), "(define g 5)")
	expectListing(t, unit, "PUSH_NUM 5", "STORE_TO_ENV 0", "RETURN")
	if unit.VarCount != 0 || !reflect.DeepEqual(unit.Globals, []string{"g"}) {
		t.Errorf("vars = %d globals = %v, want 0 [g]", unit.VarCount, unit.Globals)
	}
}

func TestCompileDefineSugar(t *testing.T) {
	unit := compileString(t, testEnv(), "(define (twice x) (+ x x))")
	expectListing(t, unit, "LAMBDA 0 0", "STORE_TO_ENV 1", "RETURN")
	fn := nested(t, unit, 0)
	expectListing(t, fn, "PUSH_ARG 0 0", "PUSH_ARG 0 0", "ADD", "RETURN")
}

func TestCompileLexicalHidesSpecialForm(t *testing.T) {
	unit := compileString(t, testEnv(), "(lambda (if) (if 1 2 3))")
	fn := nested(t, unit, 0)
	expectListing(t, fn, "PUSH_ARG 0 0", "PUSH_NUM 1", "PUSH_NUM 2", "PUSH_NUM 3", "CALL 3", "RETURN")
}

// ---------------------------------------------------------------------------
// Control flow and primitives
// ---------------------------------------------------------------------------

func TestCompileIf(t *testing.T) {
	unit := compileString(t, testEnv(), "(if true 1 2)")
	expectListing(t, unit,
		"PUSH_TRUE",
		"JUMP_IF_FALSE 2",
		"PUSH_NUM 1",
		"JUMP 1",
		"PUSH_NUM 2",
		"RETURN")
}

func TestCompileArithFold(t *testing.T) {
	unit := compileString(t, testEnv(), "(- 10 1 2)")
	expectListing(t, unit, "PUSH_NUM 10", "PUSH_NUM 1", "SUB", "PUSH_NUM 2", "SUB", "RETURN")
}

func TestCompileBegin(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"(begin)", []string{"PUSH_NIL", "RETURN"}},
		{"(begin 1)", []string{"PUSH_NUM 1", "RETURN"}},
		{"(begin 1 2)", []string{"PUSH_NUM 1", "DROP", "PUSH_NUM 2", "RETURN"}},
	}
	env := testEnv()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expectListing(t, compileString(t, env, tt.src), tt.want...)
		})
	}
}

func TestCompileCall(t *testing.T) {
	unit := compileString(t, testEnv(), "(f 1 2)")
	expectListing(t, unit, "PUSH_FROM_ENV 0", "PUSH_NUM 1", "PUSH_NUM 2", "CALL 2", "RETURN")
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestCompileDiagnostics(t *testing.T) {
	tests := []struct {
		src     string
		message string
	}{
		{"(if true 1)", "if: expected 3 arguments"},
		{"(quote)", "quote: expected 1 arguments"},
		{"(lambda (x))", "lambda: expected at least 2 arguments"},
		{"(lambda (1) 1)", "parameters must be a list of symbols"},
		{`(+ 1 "x")`, "argument 2 is str"},
		{"(* 'a 2)", "argument 1 is sym"},
		{"(+ 1)", "+: expected at least 2 arguments"},
		{"(first 1)", "first: argument is num"},
		{"(= 1 2 3)", "=: expected 2 arguments"},
		{"(lambda (x) (set! x 1))", "cannot assign argument x"},
		{"(set! unknown 1)", "unknown is not bound"},
		{"(define 1 2)", "name must be a symbol"},
		{"(f . 1)", "improper argument list"},
	}

	env := testEnv()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			var cl *vm.CompiledLambda
			got := diag.Collect(func() {
				cl = compileString(t, env, tt.src)
			})
			if len(got) != 1 {
				t.Fatalf("diagnostics = %v, want one", got)
			}
			if !strings.Contains(got[0].Message, tt.message) {
				t.Errorf("message = %q, want it to contain %q", got[0].Message, tt.message)
			}
			if cl.Code[len(cl.Code)-1].Op != vm.OpReturn {
				t.Errorf("code does not end in RETURN: %v", listing(cl))
			}
		})
	}
}

func TestCompileDiagnosticPushesNil(t *testing.T) {
	var cl *vm.CompiledLambda
	diag.Collect(func() {
		cl = compileString(t, testEnv(), "(if true 1)")
	})
	expectListing(t, cl, "PUSH_NIL", "RETURN")
}

// ---------------------------------------------------------------------------
// Compile and run
// ---------------------------------------------------------------------------

func TestCompileAndRun(t *testing.T) {
	tests := []struct {
		src  string
		want vm.Atom
	}{
		{"((lambda (x) (+ x 1)) 41)", vm.Num(42)},
		{"(if false 1 2)", vm.Num(2)},
		{"(if nil 1 2)", vm.Num(1)},
		{"(= 'a 'a)", vm.True},
		{"(first (rest (cons 1 (cons 2 nil))))", vm.Num(2)},
		{"(((lambda (x) (lambda (y) (+ x y))) 5) 7)", vm.Num(12)},
		{"((lambda () (define n 0) ((lambda () (set! n 5))) n))", vm.Num(5)},
		{"(begin (define g 1) (set! g 2) g)", vm.Num(2)},
		{"((lambda (a b) (define c (* a b)) (- c a b)) 3 4)", vm.Num(5)},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if got := run(t, testEnv(), tt.src); !vm.Equal(got, tt.want) {
				t.Errorf("result = %s, want %s", vm.Sprint(got), vm.Sprint(tt.want))
			}
		})
	}
}

func TestCompileRecursiveGlobal(t *testing.T) {
	env := testEnv()
	run(t, env, "(define fac (lambda (n) (if (= n 0) 1 (* n (fac (- n 1))))))")
	tests := []struct {
		src  string
		want vm.Num
	}{
		{"(fac 7)", 5040},
		{"(fac 20)", 2432902008176640000},
	}
	for _, tt := range tests {
		if got := run(t, env, tt.src); got != tt.want {
			t.Errorf("%s = %s, want %d", tt.src, vm.Sprint(got), tt.want)
		}
	}
}
