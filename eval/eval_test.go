package eval

import (
	"bytes"
	"strings"
	"testing"

	"github.com/arkanis/lisp.c/compiler"
	"github.com/arkanis/lisp.c/diag"
	"github.com/arkanis/lisp.c/reader"
	"github.com/arkanis/lisp.c/vm"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestEnv(e *Evaluator, compile bool) *vm.Env {
	builtins := []*vm.Builtin{
		{Name: "quote", Special: true, Eval: e.Quote, Compile: compiler.Quote},
		{Name: "if", Special: true, Eval: e.If, Compile: compiler.If},
		{Name: "define", Special: true, Eval: e.Define, Compile: compiler.Define},
		{Name: "set!", Special: true, Eval: e.Set, Compile: compiler.Set},
		{Name: "lambda", Special: true, Eval: e.Lambda, Compile: compiler.Lambda},
		{Name: "lambda_compile", Special: true, Eval: e.LambdaCompile, Compile: compiler.Lambda},
		{Name: "begin", Special: true, Eval: e.Begin, Compile: compiler.Begin},
		{Name: "cons", Eval: Cons, Compile: compiler.Cons},
		{Name: "first", Eval: First, Compile: compiler.First},
		{Name: "rest", Eval: Rest, Compile: compiler.Rest},
		{Name: "+", Eval: Arith("+", Add), Compile: compiler.Arith("+", vm.OpAdd)},
		{Name: "-", Eval: Arith("-", Sub), Compile: compiler.Arith("-", vm.OpSub)},
		{Name: "*", Eval: Arith("*", Mul), Compile: compiler.Arith("*", vm.OpMul)},
		{Name: "/", Eval: Arith("/", Div), Compile: compiler.Arith("/", vm.OpDiv)},
		{Name: "=", Eval: Eq, Compile: compiler.Eq},
		{Name: "list", Eval: List},
		{Name: "<", Eval: Compare("<", true)},
		{Name: ">", Eval: Compare(">", false)},
		{Name: "not", Eval: Not},
		{Name: "pair?", Eval: PairP},
		{Name: "nil?", Eval: NilP},
		{Name: "print", Eval: e.Print},
	}
	env := vm.NewEnv(nil)
	for _, b := range builtins {
		env.Bind(b.Name, b)
	}
	env.Bind(CompileLambdas, vm.Bool(compile))
	return env
}

func evalString(t *testing.T, e *Evaluator, env *vm.Env, src string) vm.Atom {
	t.Helper()
	form, err := reader.ReadString(src)
	if err != nil {
		t.Fatalf("ReadString(%q): %v", src, err)
	}
	return e.Eval(form, env)
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

func TestEvalSelfEvaluating(t *testing.T) {
	e := New(vm.New(0))
	env := vm.NewEnv(nil)
	for _, a := range []vm.Atom{vm.Nil, vm.True, vm.False, vm.Num(123), vm.Str("hello world")} {
		if got := e.Eval(a, env); got != a {
			t.Errorf("Eval(%s) = %s, want itself", vm.Sprint(a), vm.Sprint(got))
		}
	}
}

func TestEvalSymbol(t *testing.T) {
	e := New(vm.New(0))
	env := vm.NewEnv(nil)
	env.Bind("test", vm.True)
	if got := e.Eval(vm.Sym("test"), vm.NewEnv(env)); got != vm.True {
		t.Errorf("Eval(test) = %s, want true", vm.Sprint(got))
	}

	d := diag.Collect(func() {
		if got := e.Eval(vm.Sym("missing"), env); got != vm.Nil {
			t.Errorf("Eval(missing) = %s, want nil", vm.Sprint(got))
		}
	})
	if len(d) != 1 || !strings.Contains(d[0].Message, "unbound symbol missing") {
		t.Errorf("diagnostics = %v, want one unbound symbol", d)
	}
}

func TestEvalBuiltinReceivesEvaluatedArgs(t *testing.T) {
	e := New(vm.New(0))
	env := vm.NewEnv(nil)
	env.Bind("x", vm.Num(1))
	var got vm.Atom
	env.Bind("probe", &vm.Builtin{Name: "probe", Eval: func(args vm.Atom, env *vm.Env) vm.Atom {
		got = args
		return vm.True
	}})

	if r := evalString(t, e, env, "(probe x 2)"); r != vm.True {
		t.Errorf("result = %s, want true", vm.Sprint(r))
	}
	if s := vm.Sprint(got); s != "(1 2)" {
		t.Errorf("args = %s, want (1 2)", s)
	}
}

// The original interpreter's language samples, evaluated in order in one
// environment.
func TestEvalSamples(t *testing.T) {
	samples := []struct {
		src  string
		want string
	}{
		{"(define var 1234)", "1234"},
		{"var", "1234"},

		{"(if true 1 2)", "1"},
		{"(if false 1 2)", "2"},
		{"(if nil 1 2)", "1"},

		{"(define true_case_evaled false)", "false"},
		{"(define false_case_evaled false)", "false"},
		{"(if true (define true_case_evaled true) (define false_case_evaled true))", "true"},
		{"true_case_evaled", "true"},
		{"false_case_evaled", "false"},

		{"(define foo (lambda (a b) b))", "(lambda (a b) b)"},
		{"(foo 1 2)", "2"},
		{"(define implicit_begin_foo (lambda (a b) a a b))", "(lambda (a b) (begin a a b))"},
		{"(implicit_begin_foo 1 2)", "2"},

		{"(quote (foo 1 2))", "(foo 1 2)"},
		{"'(foo 1 2)", "(foo 1 2)"},

		{"(define expression_evaled false)", "false"},
		{"(begin 1 (define expression_evaled true) 3)", "3"},
		{"expression_evaled", "true"},

		{"(cons 1 2)", "(1 . 2)"},
		{"(cons 1 (cons 2 nil))", "(1 2)"},
		{"(first (cons 1 2))", "1"},
		{"(rest (cons 1 2))", "2"},
		{"(define pair (cons 1 2))", "(1 . 2)"},
		{"(first pair)", "1"},
		{"(rest pair)", "2"},

		{`"hello"`, `"hello"`},
		{"(+ 1 2)", "3"},
		{"(- 10 1 2)", "7"},
		{"(* 2 3 4)", "24"},
		{"(/ 9 2)", "4"},
		{"(= 1 1)", "true"},
		{"(= 1 2)", "false"},
		{"(< 1 2)", "true"},
		{"(> 1 2)", "false"},
		{"(list 1 2 3)", "(1 2 3)"},
		{"(not false)", "true"},
		{"(not nil)", "false"},
		{"(pair? pair)", "true"},
		{"(nil? nil)", "true"},

		{"(define (twice x) (* 2 x))", "(lambda (x) (* 2 x))"},
		{"(twice 21)", "42"},
		{"(define counter 0)", "0"},
		{"(set! counter (+ counter 1))", "1"},
		{"counter", "1"},
	}

	e := New(vm.New(0))
	env := newTestEnv(e, false)
	for _, s := range samples {
		if got := vm.Sprint(evalString(t, e, env, s.src)); got != s.want {
			t.Errorf("%s = %s, want %s", s.src, got, s.want)
		}
	}
}

func TestEvalLexicalClosure(t *testing.T) {
	e := New(vm.New(0))
	env := newTestEnv(e, false)
	evalString(t, e, env, "(define make_adder (lambda (n) (lambda (x) (+ x n))))")
	evalString(t, e, env, "(define add5 (make_adder 5))")
	if got := evalString(t, e, env, "(add5 7)"); got != vm.Num(12) {
		t.Errorf("(add5 7) = %s, want 12", vm.Sprint(got))
	}
	if _, ok := env.Get("n"); ok {
		t.Error("lambda parameter leaked into the global environment")
	}
}

// ---------------------------------------------------------------------------
// Compiled lambdas
// ---------------------------------------------------------------------------

func TestEvalCompileLambdas(t *testing.T) {
	tests := []struct {
		compile bool
		want    vm.Kind
	}{
		{false, vm.KindLambda},
		{true, vm.KindRuntimeLambda},
	}
	for _, tt := range tests {
		e := New(vm.New(0))
		env := newTestEnv(e, tt.compile)
		fn := evalString(t, e, env, "(lambda (x) (* x x))")
		if fn.Kind() != tt.want {
			t.Errorf("compile=%v: lambda kind = %s, want %s", tt.compile, fn.Kind(), tt.want)
		}
		env.Bind("sq", fn)
		if got := evalString(t, e, env, "(sq 9)"); got != vm.Num(81) {
			t.Errorf("compile=%v: (sq 9) = %s, want 81", tt.compile, vm.Sprint(got))
		}
	}
}

func TestEvalLambdaCompile(t *testing.T) {
	e := New(vm.New(0))
	env := newTestEnv(e, false)
	evalString(t, e, env, "(define fac (lambda_compile (n) (if (= n 0) 1 (* n (fac (- n 1))))))")

	fac, _ := env.Get("fac")
	if _, ok := fac.(*vm.RuntimeLambda); !ok {
		t.Fatalf("fac is %s, want runtime-lambda", vm.TypeName(fac))
	}
	if got := evalString(t, e, env, "(fac 7)"); got != vm.Num(5040) {
		t.Errorf("(fac 7) = %s, want 5040", vm.Sprint(got))
	}
	if d := e.VM.Depth(); d != 0 {
		t.Errorf("stack depth = %d, want 0", d)
	}
}

func TestEvalCompiledCallsInterpreted(t *testing.T) {
	e := New(vm.New(0))
	env := newTestEnv(e, false)
	evalString(t, e, env, "(define inc (lambda (x) (+ x 1)))")
	evalString(t, e, env, "(define apply_twice (lambda_compile (f x) (f (f x))))")
	if got := evalString(t, e, env, "(apply_twice inc 40)"); got != vm.Num(42) {
		t.Errorf("(apply_twice inc 40) = %s, want 42", vm.Sprint(got))
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestEvalDiagnostics(t *testing.T) {
	tests := []struct {
		src     string
		message string
	}{
		{"(if true 1)", "if: expected 3 arguments"},
		{"(/ 1 0)", "division by zero"},
		{`(+ 1 "a")`, "argument 2 is str"},
		{"(first 1)", "not a pair"},
		{"(set! unknown 1)", "unknown is not bound"},
		{"((lambda (a) a))", "lambda expects 1 arguments, got 0"},
		{"(1 2)", "num is not callable"},
		{"(lambda (1) 1)", "parameters must be a list of symbols"},
		{"(+ 1)", "expected at least 2 arguments"},
	}

	e := New(vm.New(0))
	env := newTestEnv(e, false)
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			var got vm.Atom
			d := diag.Collect(func() {
				got = evalString(t, e, env, tt.src)
			})
			if got != vm.Nil {
				t.Errorf("result = %s, want nil", vm.Sprint(got))
			}
			if len(d) != 1 || !strings.Contains(d[0].Message, tt.message) {
				t.Errorf("diagnostics = %v, want one containing %q", d, tt.message)
			}
		})
	}
}

func TestEvalPrint(t *testing.T) {
	e := New(vm.New(0))
	var out bytes.Buffer
	e.Out = &out
	env := newTestEnv(e, false)

	got := evalString(t, e, env, `(print "n =" 42 '(a b))`)
	if s := out.String(); s != "n = 42 (a b)\n" {
		t.Errorf("output = %q, want %q", s, "n = 42 (a b)\n")
	}
	if vm.Sprint(got) != "(a b)" {
		t.Errorf("result = %s, want (a b)", vm.Sprint(got))
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		a    vm.Atom
		want bool
	}{
		{vm.False, false},
		{vm.True, true},
		{vm.Nil, true},
		{vm.Num(0), true},
		{vm.Str(""), true},
	}
	for _, tt := range tests {
		if got := Truthy(tt.a); got != tt.want {
			t.Errorf("Truthy(%s) = %v, want %v", vm.Sprint(tt.a), got, tt.want)
		}
	}
}
