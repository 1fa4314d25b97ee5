// Package vm implements the atom model and the bytecode virtual machine.
//
// The VM executes compiled lambdas on a single explicit operand stack.
// A call frame occupies consecutive stack slots:
//
//	[fp+0]              the callee's *RuntimeLambda
//	[fp+1 .. fp+a]      a arguments
//	[fp+a+1 .. fp+a+v]  v locals, initialized to nil
//	[fp+a+v+1]          *ContinuationState of the caller, or nil
//
// Closures reference their defining frames through a scope chain. A
// frame stays on the stack while it runs and is copied to the heap on
// return only if a closure that references it outlives the call.
package vm

import (
	"github.com/tliron/commonlog"

	"github.com/arkanis/lisp.c/diag"
)

var log = commonlog.GetLogger("lisp.vm")

// LambdaApplier runs tree-walked lambdas called from compiled code.
type LambdaApplier interface {
	ApplyLambda(l *Lambda, args []Atom) Atom
}

// Stats counts VM events.
type Stats struct {
	Calls      int64 // runtime lambda calls, including top-level entries
	Closures   int64 // runtime lambdas instantiated
	Promotions int64 // frames copied from the stack to the heap
	PeakDepth  int   // highest operand stack length seen
}

// VM is a single-threaded bytecode interpreter.
type VM struct {
	stack   *Stack
	applier LambdaApplier
	stats   Stats
}

// New creates a VM whose operand stack starts with the given capacity.
func New(stackSize int) *VM {
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	return &VM{stack: NewStack(stackSize)}
}

// SetApplier installs the evaluator used to call tree-walked lambdas.
func (m *VM) SetApplier(a LambdaApplier) {
	m.applier = a
}

// Depth returns the current operand stack length.
func (m *VM) Depth() int {
	return m.stack.Len()
}

// Reset empties the operand stack after a fault abandoned a run. Frames
// still on the stack are dropped without promotion, so closures created
// by the abandoned run must not be called afterwards.
func (m *VM) Reset() {
	m.stack.Truncate(0)
}

// StackCap returns the current operand stack capacity.
func (m *VM) StackCap() int {
	return m.stack.Cap()
}

// Stats returns a snapshot of the VM counters.
func (m *VM) Stats() Stats {
	s := m.stats
	s.PeakDepth = m.stack.Peak()
	return s
}

// ResetStats zeroes the VM counters.
func (m *VM) ResetStats() {
	m.stats = Stats{}
	m.stack.ResetPeak()
}

// Call runs fn with args and returns its result. A wrong argument count
// is reported and yields nil. Call may be re-entered from builtins.
func (m *VM) Call(fn *RuntimeLambda, args []Atom) Atom {
	cl := fn.Compiled
	if len(args) != cl.ArgCount {
		diag.Warnf("vm", "lambda expects %d arguments, got %d", cl.ArgCount, len(args))
		return Nil
	}

	base := m.stack.Len()
	m.stack.Push(fn)
	for _, a := range args {
		m.stack.Push(a)
	}
	for i := 0; i < cl.VarCount; i++ {
		m.stack.Push(Nil)
	}
	m.stack.Push(Nil) // no caller: the outermost return ends run
	m.stats.Calls++

	return m.run(frame{index: base, argCount: len(args)})
}

// Run executes a compile unit as a closure over env, without arguments.
func (m *VM) Run(unit *CompiledLambda, env *Env) Atom {
	return m.Call(NewRuntimeLambda(unit, NewEnvScope(env)), nil)
}
