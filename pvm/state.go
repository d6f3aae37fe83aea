package pvm

import (
	"fmt"

	"github.com/chazu/brine/pickle"
)

// Sentinel errors for simulation failures.
var (
	ErrStackUnderflow = fmt.Errorf("pvm: stack underflow")
	ErrNoMark         = fmt.Errorf("pvm: no mark on stack")
	ErrBadOperand     = fmt.Errorf("pvm: operand category mismatch")
)

// State holds the simulated machine: stack, memo, and protocol version.
type State struct {
	Version pickle.Version
	Stack   Stack
	Memo    *Memo

	// Unsafe relaxes the simulation: unknown memo reads push an opaque
	// value and operand categories are not enforced.
	Unsafe bool

	protoSeen bool
}

// New creates a machine state for the given protocol version.
func New(v pickle.Version) *State {
	return &State{Version: v, Memo: NewMemo()}
}

// ProtoSeen reports whether a PROTO opcode has been applied.
func (s *State) ProtoSeen() bool {
	return s.protoSeen
}

// Reset clears the stack and memo for reuse.
func (s *State) Reset() {
	s.Stack.Reset()
	s.Memo.Reset()
	s.protoSeen = false
}
