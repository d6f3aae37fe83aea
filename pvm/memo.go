package pvm

import (
	"fmt"
	"sort"
)

// ErrUnknownMemoIndex is returned when a GET references a memo slot that
// no PUT or MEMOIZE has populated.
var ErrUnknownMemoIndex = fmt.Errorf("pvm: unknown memo index")

// Memo is the pickle machine's memo table.
type Memo struct {
	slots map[uint64]Kind
	next  uint64 // one past the highest index ever stored
}

// NewMemo creates an empty memo table.
func NewMemo() *Memo {
	return &Memo{slots: make(map[uint64]Kind)}
}

// Len returns the number of populated slots.
func (m *Memo) Len() int {
	return len(m.slots)
}

// Next returns the index MEMOIZE would store into.
func (m *Memo) Next() uint64 {
	return m.next
}

// Put stores a category at an explicit index.
func (m *Memo) Put(index uint64, k Kind) {
	m.slots[index] = k
	if index >= m.next {
		m.next = index + 1
	}
}

// Get looks up a stored category.
func (m *Memo) Get(index uint64) (Kind, error) {
	k, ok := m.slots[index]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownMemoIndex, index)
	}
	return k, nil
}

// Indices returns every populated index in ascending order. When max is
// non-negative, indices at or above it are excluded.
func (m *Memo) Indices(max int64) []uint64 {
	out := make([]uint64, 0, len(m.slots))
	for i := range m.slots {
		if max >= 0 && i >= uint64(max) {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Reset empties the table.
func (m *Memo) Reset() {
	m.slots = make(map[uint64]Kind)
	m.next = 0
}
