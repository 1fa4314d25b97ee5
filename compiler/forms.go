package compiler

import (
	"github.com/arkanis/lisp.c/diag"
	"github.com/arkanis/lisp.c/vm"
)

// ---------------------------------------------------------------------------
// Special forms
//
// Each compile function checks its own arguments. A malformed form is
// reported and compiled to a single PUSH_NIL so the rest of the program
// still compiles.
// ---------------------------------------------------------------------------

// arguments splits a form's argument tail, checking that it is a proper
// list of min to max elements (max < 0: unbounded).
func arguments(name string, args vm.Atom, min, max int) ([]vm.Atom, bool) {
	list, ok := vm.ListToSlice(args)
	switch {
	case !ok:
		diag.Warnf(source, "%s: improper argument list", name)
		return nil, false
	case len(list) < min || (max >= 0 && len(list) > max):
		switch {
		case min == max:
			diag.Warnf(source, "%s: expected %d arguments, got %d", name, min, len(list))
		case max < 0:
			diag.Warnf(source, "%s: expected at least %d arguments, got %d", name, min, len(list))
		default:
			diag.Warnf(source, "%s: expected %d to %d arguments, got %d", name, min, max, len(list))
		}
		return nil, false
	}
	return list, true
}

func poison(cl *vm.CompiledLambda) {
	cl.EmitOp(vm.OpPushNil)
}

// Quote compiles (quote x) to a literal push of x.
func Quote(cl *vm.CompiledLambda, args vm.Atom, env *vm.Env) {
	list, ok := arguments("quote", args, 1, 1)
	if !ok {
		poison(cl)
		return
	}
	cl.EmitAddressed(vm.OpPushLiteral, 0, cl.AddLiteral(list[0]))
}

// If compiles (if cond then else).
func If(cl *vm.CompiledLambda, args vm.Atom, env *vm.Env) {
	list, ok := arguments("if", args, 3, 3)
	if !ok {
		poison(cl)
		return
	}

	CompileExpr(cl, list[0], env)
	elseJump := cl.EmitOp(vm.OpJumpIfFalse)
	CompileExpr(cl, list[1], env)
	endJump := cl.EmitOp(vm.OpJump)
	cl.BackpatchJump(elseJump)
	CompileExpr(cl, list[2], env)
	cl.BackpatchJump(endJump)
}

// Begin compiles (begin e...). The value is that of the last expression,
// or nil when there is none.
func Begin(cl *vm.CompiledLambda, args vm.Atom, env *vm.Env) {
	list, ok := arguments("begin", args, 0, -1)
	if !ok {
		poison(cl)
		return
	}
	compileSequence(cl, list, env)
}

// Define compiles (define name value) and (define (name params...) body...).
//
// Inside a lambda the name becomes a new local of that lambda, declared
// before the value is compiled so the value can refer to it. In a compile
// unit the name is defined in the dynamic environment. Either way the
// value stays on the stack as the result.
func Define(cl *vm.CompiledLambda, args vm.Atom, env *vm.Env) {
	list, ok := arguments("define", args, 2, -1)
	if !ok {
		poison(cl)
		return
	}

	var name vm.Sym
	var compileValue func()

	switch target := list[0].(type) {
	case vm.Sym:
		if len(list) != 2 {
			diag.Warnf(source, "define: expected 2 arguments, got %d", len(list))
			poison(cl)
			return
		}
		name = target
		compileValue = func() { CompileExpr(cl, list[1], env) }

	case *vm.Pair:
		sym, ok := target.First.(vm.Sym)
		if !ok {
			diag.Warnf(source, "define: function name must be a symbol, got %s", vm.TypeName(target.First))
			poison(cl)
			return
		}
		name = sym
		compileValue = func() { compileLambda(cl, string(sym), target.Rest, list[1:], env) }

	default:
		diag.Warnf(source, "define: name must be a symbol, got %s", vm.TypeName(target))
		poison(cl)
		return
	}

	if cl.IsUnit() {
		cl.Globals = append(cl.Globals, string(name))
		compileValue()
		cl.EmitIndex(vm.OpStoreEnv, cl.AddLiteral(name))
		return
	}

	local := cl.AddLocal(string(name))
	compileValue()
	cl.EmitAddressed(vm.OpStoreLocal, 0, local)
}

// Set compiles (set! name value). Locals of any enclosing lambda and
// existing dynamic bindings can be assigned; arguments cannot.
func Set(cl *vm.CompiledLambda, args vm.Atom, env *vm.Env) {
	list, ok := arguments("set!", args, 2, 2)
	if !ok {
		poison(cl)
		return
	}
	sym, ok := list[0].(vm.Sym)
	if !ok {
		diag.Warnf(source, "set!: name must be a symbol, got %s", vm.TypeName(list[0]))
		poison(cl)
		return
	}

	addr, lexical := resolve(cl, string(sym))
	switch {
	case lexical && addr.isArg():
		diag.Warnf(source, "set!: cannot assign argument %s", sym)
		poison(cl)

	case lexical:
		CompileExpr(cl, list[1], env)
		cl.EmitAddressed(vm.OpStoreLocal, addr.offset, addr.local())

	case globallyBound(cl, string(sym), env):
		CompileExpr(cl, list[1], env)
		cl.EmitIndex(vm.OpSetEnv, cl.AddLiteral(sym))

	default:
		diag.Warnf(source, "set!: %s is not bound", sym)
		poison(cl)
	}
}

// globallyBound reports whether name is bound in env or defined earlier
// by the compile unit enclosing cl.
func globallyBound(cl *vm.CompiledLambda, name string, env *vm.Env) bool {
	if _, ok := env.Get(name); ok {
		return true
	}
	unit := cl
	for unit.Parent != nil {
		unit = unit.Parent
	}
	for _, g := range unit.Globals {
		if g == name {
			return true
		}
	}
	return false
}

// Lambda compiles (lambda (params...) body...) into a child compiled
// lambda and an instruction that instantiates it at run time.
func Lambda(cl *vm.CompiledLambda, args vm.Atom, env *vm.Env) {
	list, ok := arguments("lambda", args, 2, -1)
	if !ok {
		poison(cl)
		return
	}
	compileLambda(cl, "lambda", list[0], list[1:], env)
}

func compileLambda(cl *vm.CompiledLambda, name string, params vm.Atom, body []vm.Atom, env *vm.Env) {
	names, ok := ParamNames(params)
	if !ok {
		diag.Warnf(source, "%s: parameters must be a list of symbols, got %s", name, vm.Sprint(params))
		poison(cl)
		return
	}
	if len(body) == 0 {
		diag.Warnf(source, "%s: missing body", name)
		poison(cl)
		return
	}

	child := CompileToLambda(names, BodyExpr(body), env, cl)
	cl.EmitAddressed(vm.OpLambda, 0, cl.AddLiteral(child))
}

// ParamNames converts a parameter list to names.
func ParamNames(params vm.Atom) ([]string, bool) {
	list, ok := vm.ListToSlice(params)
	if !ok {
		return nil, false
	}
	names := make([]string, len(list))
	for i, p := range list {
		sym, ok := p.(vm.Sym)
		if !ok {
			return nil, false
		}
		names[i] = string(sym)
	}
	return names, true
}

// BodyExpr wraps a multi-expression body in an implicit begin.
func BodyExpr(body []vm.Atom) vm.Atom {
	if len(body) == 1 {
		return body[0]
	}
	return vm.Cons(vm.Sym("begin"), vm.List(body...))
}

// ---------------------------------------------------------------------------
// Primitive operators
// ---------------------------------------------------------------------------

// literalKind returns the type of expr when it is a literal, so operand
// type errors can be reported at compile time.
func literalKind(expr vm.Atom) (vm.Kind, bool) {
	switch e := expr.(type) {
	case vm.Num, vm.Str, *vm.Singleton:
		return e.Kind(), true
	case *vm.Pair:
		if e.First == vm.Sym("quote") {
			if rest, ok := e.Rest.(*vm.Pair); ok {
				return rest.First.Kind(), true
			}
		}
	}
	return 0, false
}

// Arith returns the compile function of a left-folded arithmetic operator.
func Arith(name string, op vm.Opcode) vm.CompileFunc {
	return func(cl *vm.CompiledLambda, args vm.Atom, env *vm.Env) {
		list, ok := arguments(name, args, 2, -1)
		if !ok {
			poison(cl)
			return
		}
		for i, a := range list {
			if kind, known := literalKind(a); known && kind != vm.KindNum {
				diag.Warnf(source, "%s: argument %d is %s, not a number", name, i+1, kind)
				poison(cl)
				return
			}
		}

		CompileExpr(cl, list[0], env)
		for _, a := range list[1:] {
			CompileExpr(cl, a, env)
			cl.EmitOp(op)
		}
	}
}

// Eq compiles (= a b).
func Eq(cl *vm.CompiledLambda, args vm.Atom, env *vm.Env) {
	list, ok := arguments("=", args, 2, 2)
	if !ok {
		poison(cl)
		return
	}
	CompileExpr(cl, list[0], env)
	CompileExpr(cl, list[1], env)
	cl.EmitOp(vm.OpEq)
}

// Cons compiles (cons first rest).
func Cons(cl *vm.CompiledLambda, args vm.Atom, env *vm.Env) {
	list, ok := arguments("cons", args, 2, 2)
	if !ok {
		poison(cl)
		return
	}
	CompileExpr(cl, list[0], env)
	CompileExpr(cl, list[1], env)
	cl.EmitOp(vm.OpCons)
}

// First compiles (first pair).
func First(cl *vm.CompiledLambda, args vm.Atom, env *vm.Env) {
	pairOp(cl, "first", vm.OpFirst, args, env)
}

// Rest compiles (rest pair).
func Rest(cl *vm.CompiledLambda, args vm.Atom, env *vm.Env) {
	pairOp(cl, "rest", vm.OpRest, args, env)
}

func pairOp(cl *vm.CompiledLambda, name string, op vm.Opcode, args vm.Atom, env *vm.Env) {
	list, ok := arguments(name, args, 1, 1)
	if !ok {
		poison(cl)
		return
	}
	if kind, known := literalKind(list[0]); known && kind != vm.KindPair {
		diag.Warnf(source, "%s: argument is %s, not a pair", name, kind)
		poison(cl)
		return
	}
	CompileExpr(cl, list[0], env)
	cl.EmitOp(op)
}
