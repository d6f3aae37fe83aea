package generator

import (
	"github.com/chazu/brine/pickle"
	"github.com/chazu/brine/pvm"
)

// canEmit reports whether the opcode's preconditions hold in the current
// machine state, so that emitting it keeps the stream sound.
func (g *Generator) canEmit(op pickle.Opcode) bool {
	st := &g.state.Stack
	switch op {

	// stream control never appears in the random phase
	case pickle.OpProto, pickle.OpStop, pickle.OpFrame:
		return false

	// value producers have no preconditions
	case pickle.OpInt, pickle.OpBinInt, pickle.OpBinInt1, pickle.OpBinInt2,
		pickle.OpLong, pickle.OpLong1, pickle.OpLong4,
		pickle.OpString, pickle.OpBinString, pickle.OpShortBinString,
		pickle.OpUnicode, pickle.OpShortBinUnicode, pickle.OpBinUnicode,
		pickle.OpBinUnicode8,
		pickle.OpFloat, pickle.OpBinFloat,
		pickle.OpNone, pickle.OpNewTrue, pickle.OpNewFalse,
		pickle.OpBinBytes, pickle.OpShortBinBytes, pickle.OpBinBytes8,
		pickle.OpByteArray8,
		pickle.OpEmptyList, pickle.OpEmptyTuple, pickle.OpEmptyDict,
		pickle.OpEmptySet,
		pickle.OpGlobal, pickle.OpMark, pickle.OpPersID:
		return true

	case pickle.OpNextBuffer:
		return g.cfg.buffers
	case pickle.OpReadOnlyBuffer:
		return g.cfg.buffers && g.kindAt(0) == pvm.KindBytes

	// container closers need a MARK
	case pickle.OpList, pickle.OpTuple, pickle.OpFrozenSet:
		return st.HasMark()
	case pickle.OpDict:
		n, ok := st.CountToMark()
		return ok && n%2 == 0
	case pickle.OpTuple1:
		return g.valuesOnTop(1)
	case pickle.OpTuple2:
		return g.valuesOnTop(2)
	case pickle.OpTuple3:
		return g.valuesOnTop(3)

	// container updates need the container in place
	case pickle.OpAppend:
		return g.valuesOnTop(1) && g.kindAt(1) == pvm.KindList
	case pickle.OpAppends:
		below, ok := st.BelowMark()
		return ok && below == pvm.KindList
	case pickle.OpSetItem:
		return g.valuesOnTop(2) && g.kindAt(2) == pvm.KindDict
	case pickle.OpSetItems:
		n, ok := st.CountToMark()
		if !ok || n%2 != 0 {
			return false
		}
		below, ok := st.BelowMark()
		return ok && below == pvm.KindDict
	case pickle.OpAddItems:
		below, ok := st.BelowMark()
		return ok && below == pvm.KindSet

	// stack management
	case pickle.OpPop:
		return st.Len() > 0
	case pickle.OpPopMark:
		return st.HasMark()
	case pickle.OpDup:
		return g.valuesOnTop(1)

	// memo
	case pickle.OpGet, pickle.OpLongBinGet:
		return g.state.Memo.Len() > 0
	case pickle.OpBinGet:
		return len(g.state.Memo.Indices(256)) > 0
	case pickle.OpPut, pickle.OpLongBinPut, pickle.OpMemoize:
		return g.valuesOnTop(1)
	case pickle.OpBinPut:
		return g.valuesOnTop(1) && g.state.Memo.Next() < 256

	// globals, objects, extensions
	case pickle.OpStackGlobal:
		return g.kindAt(0) == pvm.KindString && g.kindAt(1) == pvm.KindString
	case pickle.OpExt1:
		return g.hasExtCode(1<<8 - 1)
	case pickle.OpExt2:
		return g.hasExtCode(1<<16 - 1)
	case pickle.OpExt4:
		return len(g.cfg.extCodes) > 0
	case pickle.OpReduce, pickle.OpNewObj:
		return g.kindAt(0) == pvm.KindTuple && callable(g.kindAt(1))
	case pickle.OpNewObjEx:
		return g.kindAt(0) == pvm.KindDict && g.kindAt(1) == pvm.KindTuple &&
			callable(g.kindAt(2))
	case pickle.OpObj:
		n, ok := st.CountToMark()
		if !ok || n < 1 {
			return false
		}
		k, _ := st.PeekAt(n - 1)
		return callable(k)
	case pickle.OpInst:
		return st.HasMark()
	case pickle.OpBuild:
		return g.valuesOnTop(1) && g.kindAt(1) == pvm.KindInstance
	case pickle.OpBinPersID:
		return g.kindAt(0) == pvm.KindString
	}
	return false
}

// valuesOnTop reports whether the top n slots exist and are real values.
func (g *Generator) valuesOnTop(n int) bool {
	for i := 0; i < n; i++ {
		k, ok := g.state.Stack.PeekAt(i)
		if !ok || k == pvm.KindMark {
			return false
		}
	}
	return true
}

// kindAt returns the category at the given depth, or KindMark when the
// slot does not exist (MARK never satisfies an operand check).
func (g *Generator) kindAt(depth int) pvm.Kind {
	k, ok := g.state.Stack.PeekAt(depth)
	if !ok {
		return pvm.KindMark
	}
	return k
}

// hasExtCode reports whether any configured extension code fits in max.
func (g *Generator) hasExtCode(max uint32) bool {
	for _, code := range g.cfg.extCodes {
		if code <= max {
			return true
		}
	}
	return false
}

func callable(k pvm.Kind) bool {
	return k == pvm.KindCallable || k == pvm.KindInstance
}
