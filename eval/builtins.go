package eval

import (
	"fmt"
	"strings"

	"github.com/arkanis/lisp.c/compiler"
	"github.com/arkanis/lisp.c/diag"
	"github.com/arkanis/lisp.c/vm"
)

// atLeast marks a minimum argument count.
const atLeast = -1

// args checks an argument list for a builtin: exactly n arguments, or at
// least min when called as args(name, list, atLeast, min).
func args(name string, list vm.Atom, n int, min ...int) ([]vm.Atom, bool) {
	atoms, ok := vm.ListToSlice(list)
	switch {
	case !ok:
		diag.Warnf(source, "%s: improper argument list", name)
		return nil, false
	case n == atLeast && len(atoms) < min[0]:
		diag.Warnf(source, "%s: expected at least %d arguments, got %d", name, min[0], len(atoms))
		return nil, false
	case n != atLeast && len(atoms) != n:
		diag.Warnf(source, "%s: expected %d arguments, got %d", name, n, len(atoms))
		return nil, false
	}
	return atoms, true
}

// ---------------------------------------------------------------------------
// Special forms
// ---------------------------------------------------------------------------

// Quote returns its argument unevaluated.
func (e *Evaluator) Quote(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("quote", list, 1)
	if !ok {
		return vm.Nil
	}
	return a[0]
}

// If evaluates the second or third argument depending on the first.
func (e *Evaluator) If(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("if", list, 3)
	if !ok {
		return vm.Nil
	}
	if Truthy(e.Eval(a[0], env)) {
		return e.Eval(a[1], env)
	}
	return e.Eval(a[2], env)
}

// Begin evaluates its arguments in order and returns the last value.
func (e *Evaluator) Begin(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("begin", list, atLeast, 0)
	if !ok {
		return vm.Nil
	}
	var result vm.Atom = vm.Nil
	for _, x := range a {
		result = e.Eval(x, env)
	}
	return result
}

// Define binds a name in env, overwriting an existing binding of env
// itself, and returns the value.
func (e *Evaluator) Define(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("define", list, atLeast, 2)
	if !ok {
		return vm.Nil
	}

	var name vm.Sym
	var value vm.Atom
	switch target := a[0].(type) {
	case vm.Sym:
		if len(a) != 2 {
			diag.Warnf(source, "define: expected 2 arguments, got %d", len(a))
			return vm.Nil
		}
		name = target
		value = e.Eval(a[1], env)

	case *vm.Pair:
		sym, ok := target.First.(vm.Sym)
		if !ok {
			diag.Warnf(source, "define: function name must be a symbol, got %s", vm.TypeName(target.First))
			return vm.Nil
		}
		name = sym
		value = e.lambda(string(sym), target.Rest, a[1:], env, compileEnabled(env))

	default:
		diag.Warnf(source, "define: name must be a symbol, got %s", vm.TypeName(target))
		return vm.Nil
	}

	env.Bind(string(name), value)
	return value
}

// Set assigns to the nearest existing binding of a name.
func (e *Evaluator) Set(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("set!", list, 2)
	if !ok {
		return vm.Nil
	}
	name, ok := a[0].(vm.Sym)
	if !ok {
		diag.Warnf(source, "set!: name must be a symbol, got %s", vm.TypeName(a[0]))
		return vm.Nil
	}
	value := e.Eval(a[1], env)
	if !env.Set(string(name), value) {
		diag.Warnf(source, "set!: %s is not bound", name)
		return vm.Nil
	}
	return value
}

// Lambda creates a closure over env. It is compiled when the global
// __compile_lambdas binding is true.
func (e *Evaluator) Lambda(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("lambda", list, atLeast, 2)
	if !ok {
		return vm.Nil
	}
	return e.lambda("lambda", a[0], a[1:], env, compileEnabled(env))
}

// LambdaCompile creates a compiled closure over env.
func (e *Evaluator) LambdaCompile(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("lambda_compile", list, atLeast, 2)
	if !ok {
		return vm.Nil
	}
	return e.lambda("lambda_compile", a[0], a[1:], env, true)
}

func (e *Evaluator) lambda(name string, params vm.Atom, body []vm.Atom, env *vm.Env, compile bool) vm.Atom {
	names, ok := compiler.ParamNames(params)
	if !ok {
		diag.Warnf(source, "%s: parameters must be a list of symbols, got %s", name, vm.Sprint(params))
		return vm.Nil
	}
	expr := compiler.BodyExpr(body)

	if compile {
		cl := compiler.CompileToLambda(names, expr, env, nil)
		return vm.NewRuntimeLambda(cl, vm.NewEnvScope(env))
	}
	return &vm.Lambda{Params: params, Body: expr, Env: env}
}

func compileEnabled(env *vm.Env) bool {
	flag, ok := env.Get(CompileLambdas)
	return ok && flag == vm.True
}

// ---------------------------------------------------------------------------
// Pairs and lists
// ---------------------------------------------------------------------------

// Cons builds a pair.
func Cons(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("cons", list, 2)
	if !ok {
		return vm.Nil
	}
	return vm.Cons(a[0], a[1])
}

// First returns the first half of a pair.
func First(list vm.Atom, env *vm.Env) vm.Atom {
	p, ok := pairArg("first", list)
	if !ok {
		return vm.Nil
	}
	return p.First
}

// Rest returns the second half of a pair.
func Rest(list vm.Atom, env *vm.Env) vm.Atom {
	p, ok := pairArg("rest", list)
	if !ok {
		return vm.Nil
	}
	return p.Rest
}

func pairArg(name string, list vm.Atom) (*vm.Pair, bool) {
	a, ok := args(name, list, 1)
	if !ok {
		return nil, false
	}
	p, ok := a[0].(*vm.Pair)
	if !ok {
		diag.Warnf(source, "%s: argument is %s, not a pair", name, vm.TypeName(a[0]))
		return nil, false
	}
	return p, true
}

// List returns its arguments as a list.
func List(list vm.Atom, env *vm.Env) vm.Atom {
	return list
}

// ---------------------------------------------------------------------------
// Numbers and predicates
// ---------------------------------------------------------------------------

func numbers(name string, list vm.Atom, n int, min ...int) ([]vm.Num, bool) {
	a, ok := args(name, list, n, min...)
	if !ok {
		return nil, false
	}
	nums := make([]vm.Num, len(a))
	for i, x := range a {
		num, ok := x.(vm.Num)
		if !ok {
			diag.Warnf(source, "%s: argument %d is %s, not a number", name, i+1, vm.TypeName(x))
			return nil, false
		}
		nums[i] = num
	}
	return nums, true
}

// Arith returns a left-folding arithmetic builtin over two or more numbers.
func Arith(name string, op func(a, b vm.Num) (vm.Num, bool)) vm.EvalFunc {
	return func(list vm.Atom, env *vm.Env) vm.Atom {
		nums, ok := numbers(name, list, atLeast, 2)
		if !ok {
			return vm.Nil
		}
		result := nums[0]
		for _, n := range nums[1:] {
			if result, ok = op(result, n); !ok {
				diag.Warnf(source, "%s: division by zero", name)
				return vm.Nil
			}
		}
		return result
	}
}

func Add(a, b vm.Num) (vm.Num, bool) { return a + b, true }
func Sub(a, b vm.Num) (vm.Num, bool) { return a - b, true }
func Mul(a, b vm.Num) (vm.Num, bool) { return a * b, true }

func Div(a, b vm.Num) (vm.Num, bool) {
	if b == 0 {
		return 0, false
	}
	return a / b, true
}

// Eq compares two atoms the way the EQ instruction does.
func Eq(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("=", list, 2)
	if !ok {
		return vm.Nil
	}
	return vm.Bool(vm.Equal(a[0], a[1]))
}

// Compare returns a builtin ordering two numbers.
func Compare(name string, less bool) vm.EvalFunc {
	return func(list vm.Atom, env *vm.Env) vm.Atom {
		nums, ok := numbers(name, list, 2)
		if !ok {
			return vm.Nil
		}
		if less {
			return vm.Bool(nums[0] < nums[1])
		}
		return vm.Bool(nums[0] > nums[1])
	}
}

// Not negates a condition.
func Not(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("not", list, 1)
	if !ok {
		return vm.Nil
	}
	return vm.Bool(!Truthy(a[0]))
}

// PairP reports whether its argument is a pair.
func PairP(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("pair?", list, 1)
	if !ok {
		return vm.Nil
	}
	_, isPair := a[0].(*vm.Pair)
	return vm.Bool(isPair)
}

// NilP reports whether its argument is nil.
func NilP(list vm.Atom, env *vm.Env) vm.Atom {
	a, ok := args("nil?", list, 1)
	if !ok {
		return vm.Nil
	}
	return vm.Bool(a[0] == vm.Nil)
}

// Print writes its arguments separated by spaces and a newline. Strings
// are written without quotes. It returns the last argument.
func (e *Evaluator) Print(list vm.Atom, env *vm.Env) vm.Atom {
	a, _ := vm.ListToSlice(list)
	parts := make([]string, len(a))
	for i, x := range a {
		if s, ok := x.(vm.Str); ok {
			parts[i] = string(s)
		} else {
			parts[i] = vm.Sprint(x)
		}
	}
	fmt.Fprintln(e.Out, strings.Join(parts, " "))
	if len(a) == 0 {
		return vm.Nil
	}
	return a[len(a)-1]
}
