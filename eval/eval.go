// Package eval implements the tree-walking evaluator and the evaluation
// functions of the builtins.
//
// The evaluator interprets atoms directly without compiling them. It
// shares atoms and environments with the VM: compiled closures can be
// called from interpreted code and interpreted lambdas from compiled code.
package eval

import (
	"io"
	"os"

	"github.com/arkanis/lisp.c/diag"
	"github.com/arkanis/lisp.c/vm"
)

const source = "eval"

// CompileLambdas is the global binding that decides whether lambda
// produces compiled closures.
const CompileLambdas = "__compile_lambdas"

// Evaluator evaluates atoms by walking them.
type Evaluator struct {
	VM  *vm.VM
	Out io.Writer // destination of print
}

// New creates an evaluator that calls compiled closures on m and
// registers itself as m's applier for interpreted lambdas.
func New(m *vm.VM) *Evaluator {
	e := &Evaluator{VM: m, Out: os.Stdout}
	m.SetApplier(e)
	return e
}

// Eval returns the value of a in env.
func (e *Evaluator) Eval(a vm.Atom, env *vm.Env) vm.Atom {
	switch v := a.(type) {
	case vm.Sym:
		value, ok := env.Get(string(v))
		if !ok {
			diag.Warnf(source, "unbound symbol %s", v)
			return vm.Nil
		}
		return value

	case *vm.Pair:
		return e.evalForm(v, env)

	default:
		return a
	}
}

func (e *Evaluator) evalForm(form *vm.Pair, env *vm.Env) vm.Atom {
	fn := e.Eval(form.First, env)

	if b, ok := fn.(*vm.Builtin); ok && b.Special {
		return b.Eval(form.Rest, env)
	}

	exprs, ok := vm.ListToSlice(form.Rest)
	if !ok {
		diag.Warnf(source, "call with an improper argument list: %s", vm.Sprint(form))
		return vm.Nil
	}
	args := make([]vm.Atom, len(exprs))
	for i, x := range exprs {
		args[i] = e.Eval(x, env)
	}
	return e.Apply(fn, args, env)
}

// Apply calls fn with already evaluated arguments.
func (e *Evaluator) Apply(fn vm.Atom, args []vm.Atom, env *vm.Env) vm.Atom {
	switch f := fn.(type) {
	case *vm.Builtin:
		if f.Special {
			diag.Warnf(source, "special form %s cannot be applied to evaluated arguments", f.Name)
			return vm.Nil
		}
		return f.Eval(vm.List(args...), env)

	case *vm.Lambda:
		return e.ApplyLambda(f, args)

	case *vm.RuntimeLambda:
		return e.VM.Call(f, args)

	case *vm.Custom:
		if f.Dispatch != nil {
			return f.Dispatch(vm.Cons(f, vm.List(args...)), env)
		}
	}

	diag.Warnf(source, "%s is not callable", vm.TypeName(fn))
	return vm.Nil
}

// ApplyLambda binds args to the parameters of l in a new environment
// below l's defining environment and evaluates the body there.
func (e *Evaluator) ApplyLambda(l *vm.Lambda, args []vm.Atom) vm.Atom {
	params, _ := vm.ListToSlice(l.Params)
	if len(params) != len(args) {
		diag.Warnf(source, "lambda expects %d arguments, got %d", len(params), len(args))
		return vm.Nil
	}

	env := vm.NewEnv(l.Env)
	for i, p := range params {
		env.Bind(string(p.(vm.Sym)), args[i])
	}
	return e.Eval(l.Body, env)
}

// Truthy reports whether a counts as true in a condition. Only false is
// false.
func Truthy(a vm.Atom) bool {
	return a != vm.False
}
