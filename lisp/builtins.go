package lisp

import (
	"github.com/arkanis/lisp.c/compiler"
	"github.com/arkanis/lisp.c/eval"
	"github.com/arkanis/lisp.c/vm"
)

// builtins returns the primitive table. Entries with a compile function
// get custom code; the others compile as ordinary calls.
func builtins(e *eval.Evaluator) []*vm.Builtin {
	return []*vm.Builtin{
		// special forms
		{Name: "quote", Special: true, Eval: e.Quote, Compile: compiler.Quote},
		{Name: "if", Special: true, Eval: e.If, Compile: compiler.If},
		{Name: "define", Special: true, Eval: e.Define, Compile: compiler.Define},
		{Name: "set!", Special: true, Eval: e.Set, Compile: compiler.Set},
		{Name: "lambda", Special: true, Eval: e.Lambda, Compile: compiler.Lambda},
		{Name: "lambda_compile", Special: true, Eval: e.LambdaCompile, Compile: compiler.Lambda},
		{Name: "begin", Special: true, Eval: e.Begin, Compile: compiler.Begin},

		// primitives with their own instructions
		{Name: "cons", Eval: eval.Cons, Compile: compiler.Cons},
		{Name: "first", Eval: eval.First, Compile: compiler.First},
		{Name: "rest", Eval: eval.Rest, Compile: compiler.Rest},
		{Name: "+", Eval: eval.Arith("+", eval.Add), Compile: compiler.Arith("+", vm.OpAdd)},
		{Name: "-", Eval: eval.Arith("-", eval.Sub), Compile: compiler.Arith("-", vm.OpSub)},
		{Name: "*", Eval: eval.Arith("*", eval.Mul), Compile: compiler.Arith("*", vm.OpMul)},
		{Name: "/", Eval: eval.Arith("/", eval.Div), Compile: compiler.Arith("/", vm.OpDiv)},
		{Name: "=", Eval: eval.Eq, Compile: compiler.Eq},

		// called through CALL
		{Name: "<", Eval: eval.Compare("<", true)},
		{Name: ">", Eval: eval.Compare(">", false)},
		{Name: "list", Eval: eval.List},
		{Name: "not", Eval: eval.Not},
		{Name: "pair?", Eval: eval.PairP},
		{Name: "nil?", Eval: eval.NilP},
		{Name: "print", Eval: e.Print},
	}
}
