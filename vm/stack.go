package vm

// DefaultStackSize is the initial capacity of the operand stack.
const DefaultStackSize = 1024

// minStackSize bounds how far the stack shrinks.
const minStackSize = 16

// Stack is the operand and frame stack of the VM.
//
// Capacity doubles when the stack is full and halves when usage drops
// below a third of capacity. The backing array may move on any push or
// pop, so callers keep indices into the stack, never slices of it.
type Stack struct {
	atoms []Atom
	sp    int
	min   int
	peak  int
}

// NewStack creates a stack with the given initial capacity.
func NewStack(capacity int) *Stack {
	if capacity < minStackSize {
		capacity = minStackSize
	}
	return &Stack{atoms: make([]Atom, capacity), min: capacity}
}

// Len returns the number of atoms on the stack.
func (s *Stack) Len() int { return s.sp }

// Cap returns the current capacity.
func (s *Stack) Cap() int { return len(s.atoms) }

func (s *Stack) resize(capacity int) {
	atoms := make([]Atom, capacity)
	copy(atoms, s.atoms[:s.sp])
	s.atoms = atoms
}

func (s *Stack) shrink() {
	for len(s.atoms) > s.min && s.sp < len(s.atoms)/3 {
		s.resize(len(s.atoms) / 2)
	}
}

// Push pushes a onto the stack.
func (s *Stack) Push(a Atom) {
	if s.sp >= len(s.atoms) {
		s.resize(len(s.atoms) * 2)
	}
	s.atoms[s.sp] = a
	s.sp++
	if s.sp > s.peak {
		s.peak = s.sp
	}
}

// Peak returns the highest length reached since the last ResetPeak.
func (s *Stack) Peak() int { return s.peak }

// ResetPeak restarts peak tracking from the current length.
func (s *Stack) ResetPeak() { s.peak = s.sp }

// Pop removes and returns the top atom.
func (s *Stack) Pop() Atom {
	if s.sp <= 0 {
		panic(faultf(OpInvalid, -1, "stack underflow"))
	}
	s.sp--
	a := s.atoms[s.sp]
	s.atoms[s.sp] = nil
	s.shrink()
	return a
}

// Top returns the top atom without removing it.
func (s *Stack) Top() Atom {
	if s.sp <= 0 {
		panic(faultf(OpInvalid, -1, "stack underflow"))
	}
	return s.atoms[s.sp-1]
}

// PopN removes the top n atoms and returns them in push order.
func (s *Stack) PopN(n int) []Atom {
	if s.sp < n {
		panic(faultf(OpInvalid, -1, "stack underflow"))
	}
	result := make([]Atom, n)
	copy(result, s.atoms[s.sp-n:s.sp])
	s.Truncate(s.sp - n)
	return result
}

// At returns the atom at index i.
func (s *Stack) At(i int) Atom {
	if i < 0 || i >= s.sp {
		panic(faultf(OpInvalid, -1, "stack index %d out of bounds (len=%d)", i, s.sp))
	}
	return s.atoms[i]
}

// SetAt replaces the atom at index i.
func (s *Stack) SetAt(i int, a Atom) {
	if i < 0 || i >= s.sp {
		panic(faultf(OpInvalid, -1, "stack index %d out of bounds (len=%d)", i, s.sp))
	}
	s.atoms[i] = a
}

// Slice copies the atoms in [from, to).
func (s *Stack) Slice(from, to int) []Atom {
	result := make([]Atom, to-from)
	copy(result, s.atoms[from:to])
	return result
}

// Truncate drops everything above index n.
func (s *Stack) Truncate(n int) {
	if n < 0 || n > s.sp {
		panic(faultf(OpInvalid, -1, "stack underflow"))
	}
	clear(s.atoms[n:s.sp])
	s.sp = n
	s.shrink()
}
