package vm

// Atom is any runtime value of the language.
//
// The set of atom types is closed: Num, Sym, Str, *Pair, *Singleton,
// *Builtin, *Lambda, *CompiledLambda, *RuntimeLambda, *Env, *Custom and
// *ContinuationState. Switch on the concrete type to inspect an atom.
type Atom interface {
	Kind() Kind
}

// Kind identifies the variant of an atom.
type Kind uint8

const (
	KindNum Kind = iota
	KindSym
	KindStr
	KindPair
	KindNil
	KindTrue
	KindFalse
	KindBuiltin
	KindLambda
	KindCompiledLambda
	KindRuntimeLambda
	KindEnv
	KindCustom
	KindContinuation
)

var kindNames = [...]string{
	KindNum:            "num",
	KindSym:            "sym",
	KindStr:            "str",
	KindPair:           "pair",
	KindNil:            "nil",
	KindTrue:           "true",
	KindFalse:          "false",
	KindBuiltin:        "builtin",
	KindLambda:         "lambda",
	KindCompiledLambda: "compiled-lambda",
	KindRuntimeLambda:  "runtime-lambda",
	KindEnv:            "env",
	KindCustom:         "custom",
	KindContinuation:   "continuation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ---------------------------------------------------------------------------
// Self-evaluating and structural atoms
// ---------------------------------------------------------------------------

// Num is a 64-bit signed integer.
type Num int64

// Sym is a symbol.
type Sym string

// Str is a string.
type Str string

func (Num) Kind() Kind { return KindNum }
func (Sym) Kind() Kind { return KindSym }
func (Str) Kind() Kind { return KindStr }

// Pair is a cons cell. Neither half is ever a nil Go reference.
type Pair struct {
	First Atom
	Rest  Atom
}

func (*Pair) Kind() Kind { return KindPair }

// Cons allocates a pair. A nil Go reference in either half is a fault.
func Cons(first, rest Atom) *Pair {
	if first == nil || rest == nil {
		panic(faultf(OpCons, -1, "pair allocated with a missing member"))
	}
	return &Pair{First: first, Rest: rest}
}

// Singleton is the type of Nil, True and False. They are compared by identity.
type Singleton struct {
	kind Kind
}

func (s *Singleton) Kind() Kind { return s.kind }

var (
	Nil   = &Singleton{kind: KindNil}
	True  = &Singleton{kind: KindTrue}
	False = &Singleton{kind: KindFalse}
)

// Bool returns True or False.
func Bool(b bool) Atom {
	if b {
		return True
	}
	return False
}

// List builds a proper list from atoms.
func List(atoms ...Atom) Atom {
	var result Atom = Nil
	for i := len(atoms) - 1; i >= 0; i-- {
		result = Cons(atoms[i], result)
	}
	return result
}

// ListToSlice converts a proper list into a slice. ok is false when the
// list is improper.
func ListToSlice(list Atom) (atoms []Atom, ok bool) {
	for {
		switch l := list.(type) {
		case *Pair:
			atoms = append(atoms, l.First)
			list = l.Rest
		default:
			return atoms, list == Nil
		}
	}
}

// ListLen returns the number of elements in a proper list, or -1 if the
// list is improper.
func ListLen(list Atom) int {
	n := 0
	for {
		p, ok := list.(*Pair)
		if !ok {
			if list != Nil {
				return -1
			}
			return n
		}
		n++
		list = p.Rest
	}
}

// ---------------------------------------------------------------------------
// Callables
// ---------------------------------------------------------------------------

// EvalFunc implements a builtin. Special forms receive their argument list
// unevaluated; ordinary builtins receive evaluated arguments.
type EvalFunc func(args Atom, env *Env) Atom

// CompileFunc generates custom bytecode for a special form into cl.
// args is the raw argument tail of the form.
type CompileFunc func(cl *CompiledLambda, args Atom, env *Env)

// Builtin is a primitive implemented in Go.
type Builtin struct {
	Name    string
	Special bool        // arguments are passed unevaluated
	Eval    EvalFunc    // tree-walking implementation
	Compile CompileFunc // optional custom code generation
}

func (*Builtin) Kind() Kind { return KindBuiltin }

// Lambda is a closure executed by the tree-walking evaluator.
type Lambda struct {
	Params Atom // proper list of symbols
	Body   Atom
	Env    *Env
}

func (*Lambda) Kind() Kind { return KindLambda }

// RuntimeLambda is a compiled closure: a compiled lambda plus the scope
// chain captured when it was instantiated.
type RuntimeLambda struct {
	Compiled *CompiledLambda
	Scope    *Scope
}

func (*RuntimeLambda) Kind() Kind { return KindRuntimeLambda }

// NewRuntimeLambda pairs cl with a scope chain that must end in an env scope.
func NewRuntimeLambda(cl *CompiledLambda, scope *Scope) *RuntimeLambda {
	if scope == nil {
		panic(faultf(OpLambda, -1, "runtime lambda without a scope chain"))
	}
	return &RuntimeLambda{Compiled: cl, Scope: scope}
}

// Custom is a host-provided value. If Dispatch is set the value is callable:
// it receives the list of the custom atom itself followed by the evaluated
// arguments, so (c 1 2) dispatches with (c 1 2).
type Custom struct {
	Tag      string
	Data     any
	Dispatch EvalFunc
}

func (*Custom) Kind() Kind { return KindCustom }

// ContinuationState is a suspended caller saved on the operand stack
// between a call and its return. It never reaches user code.
type ContinuationState struct {
	FrameIndex int
	IP         int
	ArgCount   int
	Escaped    bool
	FrameScope *Scope
}

func (*ContinuationState) Kind() Kind { return KindContinuation }

// TypeName returns a short name of the atom's type for messages.
func TypeName(a Atom) string {
	if a == nil {
		return "<nil>"
	}
	return a.Kind().String()
}
