package vm

import (
	"github.com/arkanis/lisp.c/diag"
)

// frame is the execution state of the running call.
type frame struct {
	index    int // stack index of slot 0
	argCount int
	ip       int
	scope    *Scope // created on the first closure instantiated in this frame
	escaped  bool

	self Scope // transient description of this frame for offset-0 access
}

// ---------------------------------------------------------------------------
// Execution loop
// ---------------------------------------------------------------------------

func (m *VM) run(f frame) Atom {
	for {
		fn, ok := m.stack.At(f.index).(*RuntimeLambda)
		if !ok {
			panic(faultf(OpInvalid, f.ip, "frame slot 0 holds %s, not a runtime lambda", TypeName(m.stack.At(f.index))))
		}
		code := fn.Compiled.Code
		if f.ip >= len(code) {
			panic(faultf(OpInvalid, f.ip, "instruction pointer past end of code (len=%d)", len(code)))
		}
		pc := f.ip
		in := code[pc]
		f.ip++

		switch in.Op {
		// --- constants ---
		case OpPushNil:
			m.stack.Push(Nil)

		case OpPushTrue:
			m.stack.Push(True)

		case OpPushFalse:
			m.stack.Push(False)

		case OpPushNum:
			m.stack.Push(Num(in.Index))

		case OpPushLiteral:
			s := m.scopeAt(&f, fn, in, pc)
			m.stack.Push(m.literal(s, in, pc))

		// --- variables ---
		case OpPushArg:
			s := m.scopeAt(&f, fn, in, pc)
			if in.Index < 0 || int(in.Index) >= s.ArgCount {
				panic(faultf(in.Op, pc, "argument index %d out of bounds (args=%d)", in.Index, s.ArgCount))
			}
			m.stack.Push(m.slot(s, 1+int(in.Index), in, pc))

		case OpPushLocal:
			s := m.scopeAt(&f, fn, in, pc)
			m.stack.Push(m.slot(s, m.localSlot(s, in, pc), in, pc))

		case OpStoreLocal:
			s := m.scopeAt(&f, fn, in, pc)
			value := m.stack.Top()
			if in.FrameOffset > 0 {
				pin(value)
			}
			m.setSlot(s, m.localSlot(s, in, pc), value, in, pc)

		case OpPushEnv:
			name := m.symbolLiteral(fn, in, pc)
			value, ok := fn.Scope.Terminal().Get(name)
			if !ok {
				diag.Warnf("vm", "unbound symbol %s", name)
				value = Nil
			}
			m.stack.Push(value)

		case OpStoreEnv:
			name := m.symbolLiteral(fn, in, pc)
			value := m.stack.Top()
			pin(value)
			fn.Scope.Terminal().Bind(name, value)

		case OpSetEnv:
			name := m.symbolLiteral(fn, in, pc)
			value := m.stack.Top()
			if !fn.Scope.Terminal().Set(name, value) {
				diag.Warnf("vm", "set!: %s is not bound", name)
				m.stack.Pop()
				m.stack.Push(Nil)
				break
			}
			pin(value)

		// --- stack and control flow ---
		case OpDrop:
			m.stack.Pop()

		case OpJump:
			f.ip += int(in.Index)

		case OpJumpIfFalse:
			if m.stack.Pop() == False {
				f.ip += int(in.Index)
			}

		case OpCall:
			f = m.call(f, fn, int(in.Index), pc)

		case OpReturn:
			result, state := m.ret(&f, fn, pc)
			cs, ok := state.(*ContinuationState)
			if !ok {
				return result
			}
			f = frame{
				index:    cs.FrameIndex,
				argCount: cs.ArgCount,
				ip:       cs.IP,
				scope:    cs.FrameScope,
				escaped:  cs.Escaped,
			}
			m.stack.Push(result)

		case OpLambda:
			s := m.scopeAt(&f, fn, in, pc)
			child, ok := m.literal(s, in, pc).(*CompiledLambda)
			if !ok {
				panic(faultf(in.Op, pc, "literal %d is not a compiled lambda", in.Index))
			}
			if f.scope == nil {
				f.scope = &Scope{Kind: ScopeStack, FrameIndex: f.index, ArgCount: f.argCount, Next: fn.Scope}
			}
			m.stack.Push(NewRuntimeLambda(child, f.scope))
			m.stats.Closures++

		// --- primitives ---
		case OpAdd, OpSub, OpMul, OpDiv:
			b := m.number(m.stack.Pop(), in, pc)
			a := m.number(m.stack.Pop(), in, pc)
			m.stack.Push(arith(in, pc, a, b))

		case OpEq:
			b := m.stack.Pop()
			a := m.stack.Pop()
			m.stack.Push(Bool(Equal(a, b)))

		case OpCons:
			rest := m.stack.Pop()
			first := m.stack.Pop()
			m.stack.Push(Cons(first, rest))

		case OpFirst:
			m.stack.Push(m.pair(m.stack.Pop(), in, pc).First)

		case OpRest:
			m.stack.Push(m.pair(m.stack.Pop(), in, pc).Rest)

		default:
			panic(faultf(in.Op, pc, "invalid opcode %d", byte(in.Op)))
		}
	}
}

// ---------------------------------------------------------------------------
// Calls and returns
// ---------------------------------------------------------------------------

// call performs OpCall and returns the frame to continue in.
func (m *VM) call(f frame, fn *RuntimeLambda, argc int, pc int) frame {
	calleeIndex := m.stack.Len() - argc - 1
	if argc < 0 || calleeIndex < f.index {
		panic(faultf(OpCall, pc, "call with %d arguments underflows the frame", argc))
	}

	switch callee := m.stack.At(calleeIndex).(type) {
	case *RuntimeLambda:
		cl := callee.Compiled
		if argc != cl.ArgCount {
			diag.Warnf("vm", "lambda expects %d arguments, got %d", cl.ArgCount, argc)
			m.stack.Truncate(calleeIndex)
			m.stack.Push(Nil)
			return f
		}
		for i := 0; i < cl.VarCount; i++ {
			m.stack.Push(Nil)
		}
		m.stack.Push(&ContinuationState{
			FrameIndex: f.index,
			IP:         f.ip,
			ArgCount:   f.argCount,
			Escaped:    f.escaped,
			FrameScope: f.scope,
		})
		m.stats.Calls++
		return frame{index: calleeIndex, argCount: argc}

	case *Builtin:
		args := m.popCall(calleeIndex, argc)
		if callee.Special {
			diag.Warnf("vm", "special form %s cannot be called as a function", callee.Name)
			m.stack.Push(Nil)
			return f
		}
		m.stack.Push(callee.Eval(List(args...), fn.Scope.Terminal()))

	case *Lambda:
		args := m.popCall(calleeIndex, argc)
		if m.applier == nil {
			diag.Warnf("vm", "no evaluator installed for interpreted lambdas")
			m.stack.Push(Nil)
			return f
		}
		m.stack.Push(m.applier.ApplyLambda(callee, args))

	case *Custom:
		args := m.popCall(calleeIndex, argc)
		if callee.Dispatch == nil {
			diag.Warnf("vm", "%s is not callable", callee.Tag)
			m.stack.Push(Nil)
			return f
		}
		m.stack.Push(callee.Dispatch(Cons(callee, List(args...)), fn.Scope.Terminal()))

	default:
		diag.Warnf("vm", "%s is not callable", TypeName(callee))
		m.stack.Truncate(calleeIndex)
		m.stack.Push(Nil)
	}
	return f
}

// popCall removes a host call's callee and arguments from the stack. The
// arguments are handed to code that may retain them.
func (m *VM) popCall(calleeIndex, argc int) []Atom {
	args := m.stack.Slice(calleeIndex+1, calleeIndex+1+argc)
	m.stack.Truncate(calleeIndex)
	for _, a := range args {
		pin(a)
	}
	return args
}

// ret pops the current frame and returns the result and the saved
// caller state. The frame is promoted to the heap first if a closure
// referencing it survives the call.
func (m *VM) ret(f *frame, fn *RuntimeLambda, pc int) (Atom, Atom) {
	stateIndex := f.index + 1 + f.argCount + fn.Compiled.VarCount
	if m.stack.Len() != stateIndex+2 {
		panic(faultf(OpReturn, pc, "unbalanced stack at return: depth %d, want %d", m.stack.Len(), stateIndex+2))
	}

	result := m.stack.Pop()
	state := m.stack.Pop()

	if f.scope != nil {
		if !f.escaped && references(result, f.scope) {
			f.escaped = true
		}
		if f.escaped || f.scope.pinned {
			m.promote(f.scope, stateIndex-f.index)
		}
	}

	m.stack.Truncate(f.index)
	return result, state
}

// ---------------------------------------------------------------------------
// Addressing
// ---------------------------------------------------------------------------

// scopeAt returns the scope in.FrameOffset links outward from the
// current frame.
func (m *VM) scopeAt(f *frame, fn *RuntimeLambda, in Instruction, pc int) *Scope {
	if in.FrameOffset == 0 {
		f.self = Scope{Kind: ScopeStack, FrameIndex: f.index, ArgCount: f.argCount}
		return &f.self
	}
	if in.FrameOffset < 0 {
		panic(faultf(in.Op, pc, "negative frame offset %d", in.FrameOffset))
	}
	s := fn.Scope
	for i := 1; i < int(in.FrameOffset) && s != nil; i++ {
		s = s.Next
	}
	if s == nil || s.Kind == ScopeEnv {
		panic(faultf(in.Op, pc, "frame offset %d walks past the lexical scopes", in.FrameOffset))
	}
	return s
}

func (m *VM) slot(s *Scope, i int, in Instruction, pc int) Atom {
	switch s.Kind {
	case ScopeStack:
		return m.stack.At(s.FrameIndex + i)
	case ScopeHeap:
		if i < 0 || i >= len(s.Atoms) {
			panic(faultf(in.Op, pc, "slot %d out of bounds (len=%d)", i, len(s.Atoms)))
		}
		return s.Atoms[i]
	}
	panic(faultf(in.Op, pc, "%s scope has no slots", s.Kind))
}

func (m *VM) setSlot(s *Scope, i int, value Atom, in Instruction, pc int) {
	switch s.Kind {
	case ScopeStack:
		m.stack.SetAt(s.FrameIndex+i, value)
		return
	case ScopeHeap:
		if i < 0 || i >= len(s.Atoms) {
			panic(faultf(in.Op, pc, "slot %d out of bounds (len=%d)", i, len(s.Atoms)))
		}
		s.Atoms[i] = value
		return
	}
	panic(faultf(in.Op, pc, "%s scope has no slots", s.Kind))
}

// owner returns the runtime lambda executing in scope s.
func (m *VM) owner(s *Scope, in Instruction, pc int) *RuntimeLambda {
	fn, ok := m.slot(s, 0, in, pc).(*RuntimeLambda)
	if !ok {
		panic(faultf(in.Op, pc, "scope slot 0 is not a runtime lambda"))
	}
	return fn
}

func (m *VM) localSlot(s *Scope, in Instruction, pc int) int {
	vars := m.owner(s, in, pc).Compiled.VarCount
	if in.Index < 0 || int(in.Index) >= vars {
		panic(faultf(in.Op, pc, "local index %d out of bounds (vars=%d)", in.Index, vars))
	}
	return 1 + s.ArgCount + int(in.Index)
}

func (m *VM) literal(s *Scope, in Instruction, pc int) Atom {
	literals := m.owner(s, in, pc).Compiled.Literals
	if in.Index < 0 || int(in.Index) >= len(literals) {
		panic(faultf(in.Op, pc, "literal index %d out of bounds (len=%d)", in.Index, len(literals)))
	}
	return literals[in.Index]
}

func (m *VM) symbolLiteral(fn *RuntimeLambda, in Instruction, pc int) string {
	literals := fn.Compiled.Literals
	if in.Index < 0 || int(in.Index) >= len(literals) {
		panic(faultf(in.Op, pc, "literal index %d out of bounds (len=%d)", in.Index, len(literals)))
	}
	sym, ok := literals[in.Index].(Sym)
	if !ok {
		panic(faultf(in.Op, pc, "literal %d is %s, not a symbol", in.Index, TypeName(literals[in.Index])))
	}
	return string(sym)
}

// ---------------------------------------------------------------------------
// Primitive operands
// ---------------------------------------------------------------------------

func (m *VM) number(a Atom, in Instruction, pc int) Num {
	n, ok := a.(Num)
	if !ok {
		panic(faultf(in.Op, pc, "operand is %s, not a number", TypeName(a)))
	}
	return n
}

func (m *VM) pair(a Atom, in Instruction, pc int) *Pair {
	p, ok := a.(*Pair)
	if !ok {
		panic(faultf(in.Op, pc, "operand is %s, not a pair", TypeName(a)))
	}
	return p
}

func arith(in Instruction, pc int, a, b Num) Num {
	switch in.Op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	}
	if b == 0 {
		panic(faultf(in.Op, pc, "division by zero"))
	}
	return a / b
}

// Equal compares atoms of the same type: numbers, symbols and strings by
// value, everything else by identity. Atoms of different types are never
// equal.
func Equal(a, b Atom) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Num:
		return x == b.(Num)
	case Sym:
		return x == b.(Sym)
	case Str:
		return x == b.(Str)
	}
	return a == b
}
