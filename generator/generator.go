// Package generator produces random, structurally valid pickle byte
// streams by simulating the pickle machine while emitting and only
// choosing opcodes whose preconditions hold.
package generator

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/chazu/brine/pickle"
	"github.com/chazu/brine/pvm"
)

// ErrGenerationExhausted is returned when the close-out phase cannot
// reduce the stack to a single value within its step budget.
var ErrGenerationExhausted = errors.New("generator: close-out step budget exhausted")

// closeoutBudget bounds the number of reduction steps when closing a stream.
const closeoutBudget = 10000

// Result is one generated stream plus its instruction trace.
type Result struct {
	Bytes []byte
	Trace Trace
}

// Generator produces valid pickle streams for one protocol version.
type Generator struct {
	version pickle.Version
	cfg     config
	rng     *rand.Rand
	state   *pvm.State
	out     *pickle.Builder
	trace   Trace
}

// New creates a generator for the given protocol version.
func New(protocol int, opts ...Option) (*Generator, error) {
	version, err := pickle.ParseVersion(protocol)
	if err != nil {
		return nil, err
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	seed := cfg.seed
	if !cfg.seedSet {
		seed = rand.Uint64()
	}
	return &Generator{
		version: version,
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15)),
		state:   pvm.New(version),
	}, nil
}

// Generate produces one stream. Repeated calls continue the generator's
// random sequence, so each call yields a fresh sample.
func (g *Generator) Generate() (*Result, error) {
	g.state.Reset()
	g.out = pickle.NewBuilder()
	g.trace = g.trace[:0]

	if g.version >= pickle.V2 {
		g.emitProto()
	}
	framePos := -1
	if g.version >= pickle.V4 && g.framed() {
		framePos = g.out.ReserveFrame()
		g.trace = append(g.trace, Entry{
			Offset: framePos, Op: pickle.OpFrame, ArgLen: 8, MemoIndex: -1,
		})
	}

	target := g.cfg.minOps + g.rng.IntN(g.cfg.maxOps-g.cfg.minOps+1)
	for i := 0; i < target; i++ {
		op := g.chooseOpcode()
		if err := g.emit(op); err != nil {
			return nil, fmt.Errorf("generator: emit %s: %w", op, err)
		}
	}

	if err := g.closeOut(); err != nil {
		return nil, err
	}
	if err := g.emit(pickle.OpStop); err != nil {
		return nil, fmt.Errorf("generator: emit STOP: %w", err)
	}
	if framePos >= 0 {
		g.out.PatchFrame(framePos)
	}

	return &Result{
		Bytes: append([]byte(nil), g.out.Bytes()...),
		Trace: append(Trace(nil), g.trace...),
	}, nil
}

// framed decides whether this stream carries a FRAME header.
func (g *Generator) framed() bool {
	switch g.cfg.framing {
	case FramingAlways:
		return true
	case FramingNever:
		return false
	}
	return g.rng.IntN(2) == 0
}

// chooseOpcode picks uniformly among the opcodes whose preconditions
// hold in the current state. Value-producing opcodes are always
// available, so the candidate set is never empty.
func (g *Generator) chooseOpcode() pickle.Opcode {
	var candidates []pickle.Opcode
	for _, op := range pickle.OpcodesFor(g.version) {
		if g.canEmit(op) {
			candidates = append(candidates, op)
		}
	}
	return candidates[g.rng.IntN(len(candidates))]
}

// closeOut reduces the stack to a single value so STOP is legal:
// open MARKs become tuples, leftover values are folded into tuples
// (popped below protocol 2, where TUPLE2/TUPLE3 do not exist yet),
// and an empty stack gets a NONE.
func (g *Generator) closeOut() error {
	for steps := 0; steps < closeoutBudget; steps++ {
		var op pickle.Opcode
		switch {
		case g.state.Stack.Len() == 1 && !g.state.Stack.HasMark():
			return nil
		case g.state.Stack.HasMark():
			op = pickle.OpTuple
		case g.version < pickle.V2 && g.state.Stack.Len() >= 2:
			op = pickle.OpPop
		case g.state.Stack.Len() >= 3:
			op = pickle.OpTuple3
		case g.state.Stack.Len() == 2:
			op = pickle.OpTuple2
		default: // empty stack
			op = pickle.OpNone
		}
		if err := g.emit(op); err != nil {
			return fmt.Errorf("generator: close out with %s: %w", op, err)
		}
	}
	return ErrGenerationExhausted
}

// emitProto writes the PROTO prologue.
func (g *Generator) emitProto() {
	pos := g.out.Emit(pickle.OpProto)
	g.out.EmitByte(byte(g.version))
	_ = g.state.Apply(pickle.OpProto, g.out.Bytes()[pos+1:])
	g.trace = append(g.trace, Entry{
		Offset: pos, Op: pickle.OpProto, ArgLen: 1, MemoIndex: -1,
	})
}
