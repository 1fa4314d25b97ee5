// Package lisp wires the reader, compiler, VM and evaluator into a
// runtime with a global environment of builtins.
package lisp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/arkanis/lisp.c/compiler"
	"github.com/arkanis/lisp.c/eval"
	"github.com/arkanis/lisp.c/reader"
	"github.com/arkanis/lisp.c/vm"
)

var log = commonlog.GetLogger("lisp.runtime")

// Options configure a runtime.
type Options struct {
	// Compile runs top-level forms through the compiler and VM. When
	// false every form is interpreted by the tree-walker.
	Compile bool

	// StackSize is the initial operand stack capacity; 0 selects the default.
	StackSize int

	// Output receives the output of print. Defaults to os.Stdout.
	Output io.Writer

	// Disasm, if set, receives the listing of every compiled top-level form.
	Disasm io.Writer
}

// Runtime is a global environment together with the machinery to
// evaluate forms in it. It is not safe for concurrent use.
type Runtime struct {
	Env  *vm.Env
	VM   *vm.VM
	Eval *eval.Evaluator

	opts Options
}

// New creates a runtime with all builtins bound.
func New(opts Options) *Runtime {
	m := vm.New(opts.StackSize)
	e := eval.New(m)
	if opts.Output != nil {
		e.Out = opts.Output
	}

	env := vm.NewEnv(nil)
	for _, b := range builtins(e) {
		env.Bind(b.Name, b)
	}
	env.Bind(eval.CompileLambdas, vm.Bool(opts.Compile))

	return &Runtime{Env: env, VM: m, Eval: e, opts: opts}
}

// Compiling reports whether top-level forms are compiled.
func (rt *Runtime) Compiling() bool {
	return rt.opts.Compile
}

// Compile compiles form as a top-level compile unit without running it.
func (rt *Runtime) Compile(form vm.Atom) *vm.CompiledLambda {
	return compiler.CompileUnit(form, rt.Env)
}

// EvalForm evaluates one top-level form.
func (rt *Runtime) EvalForm(form vm.Atom) vm.Atom {
	if !rt.opts.Compile {
		return rt.Eval.Eval(form, rt.Env)
	}

	unit := rt.Compile(form)
	if rt.opts.Disasm != nil {
		fmt.Fprint(rt.opts.Disasm, vm.Disassemble(unit))
	}
	return rt.VM.Run(unit, rt.Env)
}

// EvalString evaluates every form of src in order and returns the value
// of the last one, or nil if src holds no forms. A read error stops
// evaluation after the forms before it have run.
func (rt *Runtime) EvalString(src string) (vm.Atom, error) {
	r := reader.New(src)
	r.SkipHashBang()

	var result vm.Atom = vm.Nil
	for {
		form, err := r.Read()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, err
		}
		result = rt.EvalForm(form)
	}
}

// EvalFile evaluates the forms of the file at path.
func (rt *Runtime) EvalFile(path string) (vm.Atom, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return vm.Nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	log.Debugf("evaluating %s", path)

	result, err := rt.EvalString(string(src))
	if err != nil {
		return result, fmt.Errorf("%s:%w", path, err)
	}
	return result, nil
}

// Lookup returns the global binding of name.
func (rt *Runtime) Lookup(name string) (vm.Atom, bool) {
	return rt.Env.Get(name)
}

// Names returns the names bound in the global environment, sorted.
func (rt *Runtime) Names() []string {
	names := rt.Env.Names()
	sort.Strings(names)
	return names
}

// Describe classifies a binding for display.
func Describe(a vm.Atom) string {
	switch v := a.(type) {
	case *vm.Builtin:
		if v.Special {
			return "special form"
		}
		return "builtin"
	case *vm.Lambda, *vm.RuntimeLambda:
		return "lambda"
	default:
		return "value"
	}
}
