package mutate

import (
	"encoding/binary"

	"github.com/chazu/brine/generator"
	"github.com/chazu/brine/pickle"
)

// Stream is an editable instruction-level view of a pickle byte stream.
// Strategies rewrite instruction arguments (or whole instructions) and
// Encode re-serializes the result.
type Stream struct {
	instrs []instr
	rest   []byte // unscannable tail of a broken input, carried verbatim
	trace  generator.Trace
}

type instr struct {
	op  pickle.Opcode
	arg []byte
}

func newStream(decoded []pickle.Instruction, rest []byte, trace generator.Trace) *Stream {
	st := &Stream{
		instrs: make([]instr, len(decoded)),
		rest:   append([]byte(nil), rest...),
		trace:  trace,
	}
	for i, in := range decoded {
		st.instrs[i] = instr{op: in.Op, arg: append([]byte(nil), in.Arg...)}
	}
	// A trace that no longer matches the instruction sequence is stale;
	// drop it rather than let strategies act on wrong offsets.
	if len(trace) != len(decoded) {
		st.trace = nil
	} else {
		for i, e := range trace {
			if e.Op != decoded[i].Op {
				st.trace = nil
				break
			}
		}
	}
	return st
}

// Len returns the instruction count.
func (st *Stream) Len() int {
	return len(st.instrs)
}

// Op returns the opcode at index i.
func (st *Stream) Op(i int) pickle.Opcode {
	return st.instrs[i].op
}

// Arg returns the raw argument bytes at index i, prefix included. The
// slice is owned by the stream and may be edited in place when the
// length does not change.
func (st *Stream) Arg(i int) []byte {
	return st.instrs[i].arg
}

// SetArg replaces the argument at index i.
func (st *Stream) SetArg(i int, arg []byte) {
	st.instrs[i].arg = arg
}

// Replace swaps the instruction at index i for a different opcode.
func (st *Stream) Replace(i int, op pickle.Opcode, arg []byte) {
	st.instrs[i] = instr{op: op, arg: arg}
}

// Instruction returns a read-only decoded view of index i. The Pos field
// is the instruction's index, not a byte offset; byte offsets shift as
// strategies resize arguments.
func (st *Stream) Instruction(i int) pickle.Instruction {
	return pickle.Instruction{Pos: i, Op: st.instrs[i].op, Arg: st.instrs[i].arg}
}

// Version returns the stream's protocol claim: the argument of a leading
// PROTO, or V1 for the PROTO-less text protocols.
func (st *Stream) Version() pickle.Version {
	if len(st.instrs) > 0 && st.instrs[0].op == pickle.OpProto && len(st.instrs[0].arg) == 1 {
		if v, err := pickle.ParseVersion(int(st.instrs[0].arg[0])); err == nil {
			return v
		}
	}
	return pickle.V1
}

// MemoIndicesBefore returns the memo indices populated by instructions
// strictly before index i, ascending, filtered to indices below max when
// max is non-negative.
func (st *Stream) MemoIndicesBefore(i int, max int64) []uint64 {
	if st.trace != nil {
		return st.memoFromTrace(i, max)
	}
	seen := map[uint64]bool{}
	var next uint64
	for j := 0; j < i && j < len(st.instrs); j++ {
		in := st.Instruction(j)
		switch in.Op {
		case pickle.OpPut, pickle.OpBinPut, pickle.OpLongBinPut:
			if index, ok := in.UintArg(); ok {
				seen[index] = true
				if index >= next {
					next = index + 1
				}
			}
		case pickle.OpMemoize:
			seen[next] = true
			next++
		}
	}
	return sortedIndices(seen, max)
}

func (st *Stream) memoFromTrace(i int, max int64) []uint64 {
	seen := map[uint64]bool{}
	for j := 0; j < i && j < len(st.trace); j++ {
		e := st.trace[j]
		switch e.Op {
		case pickle.OpPut, pickle.OpBinPut, pickle.OpLongBinPut, pickle.OpMemoize:
			if e.MemoIndex >= 0 {
				seen[uint64(e.MemoIndex)] = true
			}
		}
	}
	return sortedIndices(seen, max)
}

func sortedIndices(seen map[uint64]bool, max int64) []uint64 {
	var out []uint64
	for index := range seen {
		if max >= 0 && index >= uint64(max) {
			continue
		}
		out = append(out, index)
	}
	for a := 1; a < len(out); a++ {
		for b := a; b > 0 && out[b] < out[b-1]; b-- {
			out[b], out[b-1] = out[b-1], out[b]
		}
	}
	return out
}

// Encode serializes the stream. With repairFrames set, every FRAME
// length is recomputed to cover its span, so size-changing safe
// mutations keep framed streams consistent.
func (st *Stream) Encode(repairFrames bool) []byte {
	if repairFrames {
		st.fixFrames()
	}
	var out []byte
	for _, in := range st.instrs {
		out = append(out, byte(in.op))
		out = append(out, in.arg...)
	}
	return append(out, st.rest...)
}

func (st *Stream) fixFrames() {
	// Sizes first, then spans between consecutive FRAMEs.
	total := 0
	starts := make([]int, len(st.instrs))
	for i, in := range st.instrs {
		starts[i] = total
		total += 1 + len(in.arg)
	}
	for i, in := range st.instrs {
		if in.op != pickle.OpFrame || len(in.arg) != 8 {
			continue
		}
		end := total
		for j := i + 1; j < len(st.instrs); j++ {
			if st.instrs[j].op == pickle.OpFrame {
				end = starts[j]
				break
			}
		}
		span := uint64(end - (starts[i] + 9))
		binary.LittleEndian.PutUint64(in.arg, span)
	}
}
