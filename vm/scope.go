package vm

// ScopeKind tells where a scope's slots live.
type ScopeKind uint8

const (
	// ScopeStack is a frame still live on the operand stack.
	ScopeStack ScopeKind = iota
	// ScopeHeap is a frame copied off the stack because a closure outlived it.
	ScopeHeap
	// ScopeEnv terminates every chain and holds the dynamic environment.
	ScopeEnv
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeStack:
		return "stack"
	case ScopeHeap:
		return "heap"
	case ScopeEnv:
		return "env"
	}
	return "unknown"
}

// Scope is one link of a lexical scope chain.
//
// All closures created in the same frame share one *Scope, so promoting
// the frame to the heap is a change of Kind behind that pointer.
type Scope struct {
	Kind       ScopeKind
	FrameIndex int    // ScopeStack: stack index of the frame's slot 0
	Atoms      []Atom // ScopeHeap: copy of lambda, args and locals
	ArgCount   int
	Env        *Env // ScopeEnv
	Next       *Scope

	// pinned marks a stack scope that is reachable from a place which
	// outlives the frame. The frame is promoted when it returns.
	pinned bool
}

// NewEnvScope returns the terminal scope for env.
func NewEnvScope(env *Env) *Scope {
	return &Scope{Kind: ScopeEnv, Env: env}
}

// Terminal returns the environment at the end of the chain.
func (s *Scope) Terminal() *Env {
	for sc := s; sc != nil; sc = sc.Next {
		if sc.Kind == ScopeEnv {
			return sc.Env
		}
	}
	panic(faultf(OpPushEnv, -1, "scope chain does not end in an environment"))
}

// Depth returns the number of links in the chain, including the env scope.
func (s *Scope) Depth() int {
	n := 0
	for sc := s; sc != nil; sc = sc.Next {
		n++
	}
	return n
}
