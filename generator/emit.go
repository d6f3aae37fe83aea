package generator

import (
	"math"
	"strconv"

	"github.com/chazu/brine/pickle"
)

// emit writes one instruction, synthesizing a random argument where the
// opcode takes one, then applies its effect and records it in the trace.
func (g *Generator) emit(op pickle.Opcode) error {
	pos := g.out.Emit(op)
	memoIndex := g.emitArg(op)

	arg := g.out.Bytes()[pos+1:]
	if err := g.state.Apply(op, arg); err != nil {
		return err
	}
	g.trace = append(g.trace, Entry{
		Offset:    pos,
		Op:        op,
		ArgLen:    len(arg),
		MemoIndex: memoIndex,
	})
	return nil
}

// emitArg synthesizes and writes the argument for op. It returns the
// memo index involved, or -1 for non-memo opcodes.
func (g *Generator) emitArg(op pickle.Opcode) int64 {
	b := g.out
	switch op {

	// ----- integers -----
	case pickle.OpInt:
		b.EmitLine(strconv.FormatInt(g.randInt(), 10))
	case pickle.OpLong:
		b.EmitLine(strconv.FormatInt(g.randInt(), 10) + "L")
	case pickle.OpLong1:
		b.EmitByte(4)
		b.EmitInt32(g.rng.Int32())
	case pickle.OpLong4:
		b.EmitUint32(4)
		b.EmitInt32(g.rng.Int32())
	case pickle.OpBinInt:
		b.EmitInt32(g.rng.Int32())
	case pickle.OpBinInt1:
		b.EmitByte(byte(g.rng.UintN(256)))
	case pickle.OpBinInt2:
		b.EmitUint16(uint16(g.rng.UintN(1 << 16)))

	// ----- floats -----
	case pickle.OpFloat:
		b.EmitLine(strconv.FormatFloat(g.randFloat(), 'g', -1, 64))
	case pickle.OpBinFloat:
		b.EmitFloat64(g.randFloat())

	// ----- strings and bytes -----
	case pickle.OpString:
		// Text decoders reject non-ASCII STRING payloads, so only the
		// binary bytes opcodes get raw payloads.
		b.EmitLine(pickle.EscapeString(g.randText()))
	case pickle.OpUnicode:
		b.EmitLine(pickle.EscapeUnicode(string(g.randText())))
	case pickle.OpShortBinString, pickle.OpShortBinBytes:
		p := g.randPayload()
		b.EmitByte(byte(len(p)))
		b.EmitBytes(p)
	case pickle.OpShortBinUnicode:
		p := g.randText()
		b.EmitByte(byte(len(p)))
		b.EmitBytes(p)
	case pickle.OpBinString:
		p := g.randPayload()
		b.EmitInt32(int32(len(p)))
		b.EmitBytes(p)
	case pickle.OpBinBytes:
		p := g.randPayload()
		b.EmitUint32(uint32(len(p)))
		b.EmitBytes(p)
	case pickle.OpBinUnicode:
		p := g.randText()
		b.EmitUint32(uint32(len(p)))
		b.EmitBytes(p)
	case pickle.OpBinBytes8, pickle.OpByteArray8:
		p := g.randPayload()
		b.EmitUint64(uint64(len(p)))
		b.EmitBytes(p)
	case pickle.OpBinUnicode8:
		p := g.randText()
		b.EmitUint64(uint64(len(p)))
		b.EmitBytes(p)

	// ----- globals and persistence -----
	case pickle.OpGlobal, pickle.OpInst:
		pair := g.cfg.globals[g.rng.IntN(len(g.cfg.globals))]
		b.EmitLine(pair[0])
		b.EmitLine(pair[1])
	case pickle.OpPersID:
		b.EmitLine(string(g.randText()))

	// ----- memo -----
	case pickle.OpGet:
		index := g.chooseMemoIndex(-1)
		b.EmitLine(strconv.FormatUint(index, 10))
		return int64(index)
	case pickle.OpBinGet:
		index := g.chooseMemoIndex(256)
		b.EmitByte(byte(index))
		return int64(index)
	case pickle.OpLongBinGet:
		index := g.chooseMemoIndex(-1)
		b.EmitUint32(uint32(index))
		return int64(index)
	case pickle.OpPut:
		index := g.state.Memo.Next()
		b.EmitLine(strconv.FormatUint(index, 10))
		return int64(index)
	case pickle.OpBinPut:
		index := g.state.Memo.Next()
		b.EmitByte(byte(index))
		return int64(index)
	case pickle.OpLongBinPut:
		index := g.state.Memo.Next()
		b.EmitUint32(uint32(index))
		return int64(index)
	case pickle.OpMemoize:
		return int64(g.state.Memo.Next())

	// ----- extensions -----
	case pickle.OpExt1:
		b.EmitByte(byte(g.chooseExtCode(1<<8 - 1)))
	case pickle.OpExt2:
		b.EmitUint16(uint16(g.chooseExtCode(1<<16 - 1)))
	case pickle.OpExt4:
		b.EmitUint32(g.chooseExtCode(math.MaxUint32))
	}
	return -1
}

// randInt skews small: most values fit in a machine word's friendly
// range, with occasional large magnitudes.
func (g *Generator) randInt() int64 {
	switch g.rng.IntN(4) {
	case 0:
		return int64(g.rng.IntN(256)) - 128
	case 1:
		return int64(g.rng.Int32())
	default:
		return g.rng.Int64() - math.MaxInt64/2
	}
}

func (g *Generator) randFloat() float64 {
	switch g.rng.IntN(4) {
	case 0:
		return float64(g.rng.IntN(1000)) / 10
	default:
		return g.rng.NormFloat64() * 1e6
	}
}

// randPayload produces a bounded random byte string.
func (g *Generator) randPayload() []byte {
	n := g.rng.IntN(g.cfg.maxString + 1)
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(g.rng.UintN(256))
	}
	return p
}

// randText produces bounded printable ASCII, safe for every text encoding.
func (g *Generator) randText() []byte {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_"
	n := g.rng.IntN(g.cfg.maxString + 1)
	p := make([]byte, n)
	for i := range p {
		p[i] = alphabet[g.rng.IntN(len(alphabet))]
	}
	return p
}

// chooseMemoIndex picks a populated memo slot, restricted to indices
// below max when max is non-negative. Callers gate on availability.
func (g *Generator) chooseMemoIndex(max int64) uint64 {
	indices := g.state.Memo.Indices(max)
	return indices[g.rng.IntN(len(indices))]
}

// chooseExtCode picks a configured extension code that fits in max.
func (g *Generator) chooseExtCode(max uint32) uint32 {
	var fits []uint32
	for _, code := range g.cfg.extCodes {
		if code <= max {
			fits = append(fits, code)
		}
	}
	return fits[g.rng.IntN(len(fits))]
}
