package vm

// Env is a chained, insertion-ordered table of dynamic bindings.
// Bindings are only ever appended or overwritten in place.
type Env struct {
	parent   *Env
	bindings []binding
}

type binding struct {
	key   string
	value Atom
}

func (*Env) Kind() Kind { return KindEnv }

// NewEnv creates an empty environment below parent (which may be nil).
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent}
}

// Parent returns the enclosing environment, or nil for the root.
func (e *Env) Parent() *Env {
	return e.parent
}

func (e *Env) find(key string) int {
	for i := range e.bindings {
		if e.bindings[i].key == key {
			return i
		}
	}
	return -1
}

// Get returns the nearest binding of key along the parent chain.
func (e *Env) Get(key string) (Atom, bool) {
	for env := e; env != nil; env = env.parent {
		if i := env.find(key); i >= 0 {
			return env.bindings[i].value, true
		}
	}
	return nil, false
}

// Define binds key in e only if e does not bind it yet. It reports whether
// the binding was created.
func (e *Env) Define(key string, value Atom) bool {
	if e.find(key) >= 0 {
		return false
	}
	e.bindings = append(e.bindings, binding{key: key, value: value})
	return true
}

// Bind defines key in e, overwriting an existing binding in e itself.
func (e *Env) Bind(key string, value Atom) {
	if i := e.find(key); i >= 0 {
		e.bindings[i].value = value
		return
	}
	e.bindings = append(e.bindings, binding{key: key, value: value})
}

// Set mutates the nearest binding of key along the parent chain. It
// returns false if no environment in the chain binds key.
func (e *Env) Set(key string, value Atom) bool {
	for env := e; env != nil; env = env.parent {
		if i := env.find(key); i >= 0 {
			env.bindings[i].value = value
			return true
		}
	}
	return false
}

// Len returns the number of bindings in e itself.
func (e *Env) Len() int {
	return len(e.bindings)
}

// Names returns the names bound in e and its parents, nearest first,
// each name once, in insertion order within an environment.
func (e *Env) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for env := e; env != nil; env = env.parent {
		for _, b := range env.bindings {
			if !seen[b.key] {
				seen[b.key] = true
				names = append(names, b.key)
			}
		}
	}
	return names
}
