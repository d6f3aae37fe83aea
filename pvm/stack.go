package pvm

// Stack is the pickle machine's value stack. Slots hold categories only.
type Stack struct {
	items []Kind
}

// Len returns the number of slots, MARK sentinels included.
func (s *Stack) Len() int {
	return len(s.items)
}

// Push appends a value.
func (s *Stack) Push(k Kind) {
	s.items = append(s.items, k)
}

// Pop removes and returns the top value.
func (s *Stack) Pop() (Kind, bool) {
	if len(s.items) == 0 {
		return 0, false
	}
	k := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return k, true
}

// Peek returns the top value without removing it.
func (s *Stack) Peek() (Kind, bool) {
	return s.PeekAt(0)
}

// PeekAt returns the value depth slots below the top. Depth 0 is the top.
func (s *Stack) PeekAt(depth int) (Kind, bool) {
	i := len(s.items) - 1 - depth
	if i < 0 {
		return 0, false
	}
	return s.items[i], true
}

// Set overwrites the value depth slots below the top.
func (s *Stack) Set(depth int, k Kind) bool {
	i := len(s.items) - 1 - depth
	if i < 0 {
		return false
	}
	s.items[i] = k
	return true
}

// HasMark reports whether a MARK sentinel is anywhere on the stack.
func (s *Stack) HasMark() bool {
	_, ok := s.markIndex()
	return ok
}

// CountToMark returns the number of values above the topmost MARK.
func (s *Stack) CountToMark() (int, bool) {
	i, ok := s.markIndex()
	if !ok {
		return 0, false
	}
	return len(s.items) - 1 - i, true
}

// BelowMark returns the value directly beneath the topmost MARK.
func (s *Stack) BelowMark() (Kind, bool) {
	i, ok := s.markIndex()
	if !ok || i == 0 {
		return 0, false
	}
	return s.items[i-1], true
}

// PopToMark removes every value above the topmost MARK plus the MARK
// itself, returning the removed values bottom-first.
func (s *Stack) PopToMark() ([]Kind, bool) {
	i, ok := s.markIndex()
	if !ok {
		return nil, false
	}
	popped := append([]Kind(nil), s.items[i+1:]...)
	s.items = s.items[:i]
	return popped, true
}

// Reset empties the stack.
func (s *Stack) Reset() {
	s.items = s.items[:0]
}

func (s *Stack) markIndex() (int, bool) {
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i] == KindMark {
			return i, true
		}
	}
	return 0, false
}
