package mutate

import (
	"math/rand/v2"
	"strconv"

	"github.com/chazu/brine/pickle"
	"github.com/chazu/brine/validate"
)

// typeconfusion swaps a value-pushing opcode for one that pushes a
// different category. Safe swaps stay within the push-one-value shape
// and are verified to keep the stream structurally valid; unsafe swaps
// may change arity or protocol legality.
type typeconfusion struct{}

func (typeconfusion) Name() string     { return "typeconfusion" }
func (typeconfusion) UnsafeOnly() bool { return false }

// scalarClasses groups the no-precondition value producers by the
// category they push.
var scalarClasses = [][]pickle.Opcode{
	{pickle.OpInt, pickle.OpBinInt, pickle.OpBinInt1, pickle.OpBinInt2,
		pickle.OpLong, pickle.OpLong1, pickle.OpLong4},
	{pickle.OpFloat, pickle.OpBinFloat},
	{pickle.OpString, pickle.OpBinString, pickle.OpShortBinString,
		pickle.OpUnicode, pickle.OpShortBinUnicode, pickle.OpBinUnicode,
		pickle.OpBinUnicode8},
	{pickle.OpBinBytes, pickle.OpShortBinBytes, pickle.OpBinBytes8},
	{pickle.OpNone, pickle.OpNewTrue, pickle.OpNewFalse},
	{pickle.OpEmptyList, pickle.OpEmptyTuple, pickle.OpEmptyDict, pickle.OpEmptySet},
}

func scalarClass(op pickle.Opcode) int {
	for class, ops := range scalarClasses {
		for _, candidate := range ops {
			if candidate == op {
				return class
			}
		}
	}
	return -1
}

func (typeconfusion) Mutate(st *Stream, rng *rand.Rand, pol Policy) {
	version := st.Version()
	for i := 0; i < st.Len(); i++ {
		if rng.Float64() >= pol.Rate {
			continue
		}
		if pol.Unsafe {
			ops := pickle.OpcodesFor(pickle.MaxVersion)
			op := ops[rng.IntN(len(ops))]
			st.Replace(i, op, synthArg(op, rng))
			continue
		}
		class := scalarClass(st.Op(i))
		if class < 0 {
			continue
		}
		replacement, ok := pickReplacement(class, version, rng)
		if !ok {
			continue
		}
		savedOp, savedArg := st.Op(i), st.Arg(i)
		st.Replace(i, replacement, synthArg(replacement, rng))
		// Category changes can break downstream consumers (an APPEND
		// whose list became an int, a REDUCE whose args became a
		// string). Keep the swap only if the stream still validates.
		valid := validate.Stream(st.Encode(true), validate.Options{
			Protocol: -1, AllowExt: true, AllowBuffers: true,
		}) == nil
		if !valid {
			st.Replace(i, savedOp, savedArg)
		}
	}
}

// pickReplacement chooses an opcode from a different scalar class that
// the stream's protocol permits.
func pickReplacement(class int, version pickle.Version, rng *rand.Rand) (pickle.Opcode, bool) {
	var candidates []pickle.Opcode
	for other, ops := range scalarClasses {
		if other == class {
			continue
		}
		for _, op := range ops {
			if op.LegalAt(version) {
				candidates = append(candidates, op)
			}
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[rng.IntN(len(candidates))], true
}

// synthArg produces a well-formed argument for any opcode.
func synthArg(op pickle.Opcode, rng *rand.Rand) []byte {
	b := pickle.NewBuilder()
	switch op {
	case pickle.OpInt, pickle.OpGet, pickle.OpPut:
		return []byte(strconv.Itoa(rng.IntN(1000)) + "\n")
	case pickle.OpLong:
		return []byte(strconv.Itoa(rng.IntN(1000)) + "L\n")
	case pickle.OpFloat:
		return []byte(strconv.FormatFloat(float64(rng.IntN(1000))/10, 'g', -1, 64) + "\n")
	case pickle.OpString:
		return []byte(pickle.EscapeString([]byte("swap")) + "\n")
	case pickle.OpUnicode, pickle.OpPersID:
		return []byte("swap\n")
	case pickle.OpGlobal, pickle.OpInst:
		return []byte("builtins\nobject\n")
	case pickle.OpLong1:
		b.EmitByte(4)
		b.EmitInt32(rng.Int32())
	case pickle.OpLong4:
		b.EmitUint32(4)
		b.EmitInt32(rng.Int32())
	default:
		info, ok := op.Info()
		if !ok {
			return nil
		}
		switch info.Arg {
		case pickle.ArgU8:
			b.EmitByte(byte(rng.UintN(256)))
		case pickle.ArgU16:
			b.EmitUint16(uint16(rng.UintN(1 << 16)))
		case pickle.ArgU32:
			b.EmitUint32(rng.Uint32())
		case pickle.ArgU64:
			b.EmitUint64(uint64(rng.IntN(1 << 20)))
		case pickle.ArgI32:
			b.EmitInt32(rng.Int32())
		case pickle.ArgF64BE:
			b.EmitFloat64(rng.NormFloat64())
		case pickle.ArgLine:
			return []byte("0\n")
		case pickle.ArgPair:
			return []byte("builtins\nobject\n")
		case pickle.ArgBytes1, pickle.ArgBytes4, pickle.ArgBytesI4, pickle.ArgBytes8:
			arg, _ := encodePrefixed(op, []byte("swap"))
			return arg
		case pickle.ArgLong1:
			b.EmitByte(4)
			b.EmitInt32(rng.Int32())
		case pickle.ArgLong4:
			b.EmitUint32(4)
			b.EmitInt32(rng.Int32())
		}
	}
	return b.Bytes()
}
