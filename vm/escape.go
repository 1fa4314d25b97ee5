package vm

// references reports whether a can reach target: through both halves of
// pairs and through the scope chain of a runtime lambda. Other atoms
// cannot hold a scope and are not inspected.
func references(a Atom, target *Scope) bool {
	for {
		switch v := a.(type) {
		case *Pair:
			if references(v.First, target) {
				return true
			}
			a = v.Rest
			continue
		case *RuntimeLambda:
			for s := v.Scope; s != nil; s = s.Next {
				if s == target {
					return true
				}
			}
		}
		return false
	}
}

// pin marks every stack scope reachable from a as outliving its frame.
// It is applied to values stored where a frame return cannot see them.
func pin(a Atom) {
	for {
		switch v := a.(type) {
		case *Pair:
			pin(v.First)
			a = v.Rest
			continue
		case *RuntimeLambda:
			for s := v.Scope; s != nil; s = s.Next {
				if s.Kind == ScopeStack {
					s.pinned = true
				}
			}
		}
		return
	}
}

// promote copies the size slots of the frame behind s off the stack and
// turns s into a heap scope. Closures sharing s see the copy from now on.
func (m *VM) promote(s *Scope, size int) {
	s.Atoms = m.stack.Slice(s.FrameIndex, s.FrameIndex+size)
	s.Kind = ScopeHeap
	s.FrameIndex = -1
	s.pinned = false
	m.stats.Promotions++
	log.Debugf("promoted frame of %d slots to the heap", size)

	// The copy outlives the frame, and so does everything it holds.
	for _, a := range s.Atoms {
		pin(a)
	}
}
