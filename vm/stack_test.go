package vm

import "testing"

func TestStackGrowsByDoubling(t *testing.T) {
	s := NewStack(16)
	for i := 0; i < 17; i++ {
		s.Push(Num(i))
	}
	if s.Cap() != 32 {
		t.Errorf("Cap() = %d, want 32", s.Cap())
	}
	for i := 0; i < 17; i++ {
		if s.At(i) != Num(i) {
			t.Fatalf("At(%d) = %v after growth", i, s.At(i))
		}
	}
}

func TestStackShrinksBelowThird(t *testing.T) {
	s := NewStack(16)
	for i := 0; i < 64; i++ {
		s.Push(Num(i))
	}
	if s.Cap() != 64 {
		t.Fatalf("Cap() = %d, want 64", s.Cap())
	}

	// 21 of 64 is not below a third.
	s.Truncate(21)
	if s.Cap() != 64 {
		t.Errorf("Cap() at 21 = %d, want 64", s.Cap())
	}
	s.Pop()
	if s.Cap() != 32 {
		t.Errorf("Cap() at 20 = %d, want 32", s.Cap())
	}
	if s.Top() != Num(19) {
		t.Errorf("Top() after shrink = %v, want 19", s.Top())
	}
	s.Truncate(0)
	if s.Cap() != 16 {
		t.Errorf("Cap() when empty = %d, want the initial 16", s.Cap())
	}
}

func TestStackPopN(t *testing.T) {
	s := NewStack(0)
	s.Push(Num(1))
	s.Push(Num(2))
	s.Push(Num(3))
	got := s.PopN(2)
	if len(got) != 2 || got[0] != Num(2) || got[1] != Num(3) {
		t.Errorf("PopN(2) = %v, want [2 3]", got)
	}
	if s.Len() != 1 || s.Top() != Num(1) {
		t.Errorf("remaining = %d atoms, top %v", s.Len(), s.Top())
	}
}

func TestStackUnderflowFaults(t *testing.T) {
	tests := []struct {
		name string
		fn   func(s *Stack)
	}{
		{"pop", func(s *Stack) { s.Pop() }},
		{"top", func(s *Stack) { s.Top() }},
		{"popn", func(s *Stack) { s.PopN(2) }},
		{"truncate", func(s *Stack) { s.Truncate(3) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStack(0)
			defer func() {
				f, ok := recover().(*Fault)
				if !ok {
					t.Fatal("underflow did not raise a *Fault")
				}
				if f.Message != "stack underflow" {
					t.Errorf("fault message = %q, want stack underflow", f.Message)
				}
			}()
			tt.fn(s)
		})
	}
}

func TestStackOutOfBoundsFaults(t *testing.T) {
	s := NewStack(0)
	s.Push(Nil)
	defer func() {
		if _, ok := recover().(*Fault); !ok {
			t.Error("At(5) did not raise a *Fault")
		}
	}()
	s.At(5)
}

func TestStackPeak(t *testing.T) {
	s := NewStack(0)
	s.Push(Nil)
	s.Push(Nil)
	s.Pop()
	if s.Peak() != 2 {
		t.Errorf("Peak() = %d, want 2", s.Peak())
	}
	s.ResetPeak()
	if s.Peak() != 1 {
		t.Errorf("Peak() after reset = %d, want 1", s.Peak())
	}
}
