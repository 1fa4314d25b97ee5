// Package compiler lowers atoms to compiled lambdas.
//
// Every symbol is given a static address when an enclosing compiled
// lambda declares it (an argument or local, some number of scopes
// outward). Symbols no compiled lambda declares are looked up in the
// dynamic environment at run time.
package compiler

import (
	"github.com/arkanis/lisp.c/diag"
	"github.com/arkanis/lisp.c/vm"
)

const source = "compiler"

// ---------------------------------------------------------------------------
// Codegen: compile atoms to bytecode
// ---------------------------------------------------------------------------

// CompileToLambda compiles body as the single expression of a lambda
// taking argNames. Multi-expression bodies must already be wrapped in
// begin. parent is the lexically enclosing compiled lambda, or nil for a
// top-level compile unit.
func CompileToLambda(argNames []string, body vm.Atom, env *vm.Env, parent *vm.CompiledLambda) *vm.CompiledLambda {
	return compileBody(vm.NewCompiledLambda(argNames, parent), body, env)
}

// CompileUnit compiles a top-level form into a parentless compile unit.
// Defines in the unit itself bind names in the dynamic environment.
func CompileUnit(form vm.Atom, env *vm.Env) *vm.CompiledLambda {
	cl := vm.NewCompiledLambda(nil, nil)
	cl.Unit = true
	return compileBody(cl, form, env)
}

func compileBody(cl *vm.CompiledLambda, body vm.Atom, env *vm.Env) *vm.CompiledLambda {
	CompileExpr(cl, body, env)
	cl.EmitOp(vm.OpReturn)
	return cl
}

// CompileExpr appends code that leaves the value of expr on the stack.
func CompileExpr(cl *vm.CompiledLambda, expr vm.Atom, env *vm.Env) {
	switch e := expr.(type) {
	case *vm.Singleton:
		switch e {
		case vm.Nil:
			cl.EmitOp(vm.OpPushNil)
		case vm.True:
			cl.EmitOp(vm.OpPushTrue)
		default:
			cl.EmitOp(vm.OpPushFalse)
		}

	case vm.Num:
		if vm.FitsImmediate(int64(e)) {
			cl.EmitIndex(vm.OpPushNum, int(e))
		} else {
			cl.EmitAddressed(vm.OpPushLiteral, 0, cl.AddLiteral(e))
		}

	case vm.Sym:
		compileSymbol(cl, e)

	case *vm.Pair:
		compileForm(cl, e, env)

	default:
		// Strings and host values embedded in code evaluate to themselves.
		cl.EmitAddressed(vm.OpPushLiteral, 0, cl.AddLiteral(e))
	}
}

// compileSequence compiles exprs, keeping only the last value.
func compileSequence(cl *vm.CompiledLambda, exprs []vm.Atom, env *vm.Env) {
	if len(exprs) == 0 {
		cl.EmitOp(vm.OpPushNil)
		return
	}
	for i, e := range exprs {
		if i > 0 {
			cl.EmitOp(vm.OpDrop)
		}
		CompileExpr(cl, e, env)
	}
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// address is the static location of a lexically bound name.
type address struct {
	offset int // scopes walked outward from the compiling lambda
	index  int // index into owner.Names
	owner  *vm.CompiledLambda
}

func (a address) isArg() bool {
	return a.index < a.owner.ArgCount
}

func (a address) local() int {
	return a.index - a.owner.ArgCount
}

// resolve finds the nearest compiled lambda declaring name.
func resolve(cl *vm.CompiledLambda, name string) (address, bool) {
	offset := 0
	for l := cl; l != nil; l = l.Parent {
		if i, ok := l.Lookup(name); ok {
			return address{offset: offset, index: i, owner: l}, true
		}
		offset++
	}
	return address{}, false
}

func compileSymbol(cl *vm.CompiledLambda, sym vm.Sym) {
	addr, ok := resolve(cl, string(sym))
	switch {
	case !ok:
		cl.EmitIndex(vm.OpPushEnv, cl.AddLiteral(sym))
	case addr.isArg():
		cl.EmitAddressed(vm.OpPushArg, addr.offset, addr.index)
	default:
		cl.EmitAddressed(vm.OpPushLocal, addr.offset, addr.local())
	}
}

// ---------------------------------------------------------------------------
// Forms
// ---------------------------------------------------------------------------

// specialForm returns the compile function bound to the operator of a
// form. A lexical binding of the operator name hides any special form.
func specialForm(cl *vm.CompiledLambda, op vm.Atom, env *vm.Env) vm.CompileFunc {
	sym, ok := op.(vm.Sym)
	if !ok {
		return nil
	}
	if _, lexical := resolve(cl, string(sym)); lexical {
		return nil
	}
	value, ok := env.Get(string(sym))
	if !ok {
		return nil
	}
	if b, ok := value.(*vm.Builtin); ok {
		return b.Compile
	}
	return nil
}

func compileForm(cl *vm.CompiledLambda, form *vm.Pair, env *vm.Env) {
	if compile := specialForm(cl, form.First, env); compile != nil {
		compile(cl, form.Rest, env)
		return
	}

	args, ok := vm.ListToSlice(form.Rest)
	if !ok {
		diag.Warnf(source, "call with an improper argument list: %s", vm.Sprint(form))
		cl.EmitOp(vm.OpPushNil)
		return
	}

	CompileExpr(cl, form.First, env)
	for _, a := range args {
		CompileExpr(cl, a, env)
	}
	cl.EmitIndex(vm.OpCall, len(args))
}
