package pvm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/brine/pickle"
)

// Apply executes one instruction's effect on the machine state. The arg
// is the raw wire argument, length prefix included. Errors describe why
// the instruction cannot execute; the state is left unchanged on error
// except where noted.
func (s *State) Apply(op pickle.Opcode, arg []byte) error {
	in := pickle.Instruction{Op: op, Arg: arg}
	switch op {

	// ----- scalars -----
	case pickle.OpInt:
		s.Stack.Push(s.intTextKind(in))
	case pickle.OpBinInt, pickle.OpBinInt1, pickle.OpBinInt2,
		pickle.OpLong, pickle.OpLong1, pickle.OpLong4:
		s.Stack.Push(KindInt)
	case pickle.OpFloat, pickle.OpBinFloat:
		s.Stack.Push(KindFloat)
	case pickle.OpNone:
		s.Stack.Push(KindNone)
	case pickle.OpNewTrue, pickle.OpNewFalse:
		s.Stack.Push(KindBool)
	case pickle.OpString, pickle.OpBinString, pickle.OpShortBinString,
		pickle.OpUnicode, pickle.OpShortBinUnicode,
		pickle.OpBinUnicode, pickle.OpBinUnicode8:
		s.Stack.Push(KindString)
	case pickle.OpBinBytes, pickle.OpShortBinBytes, pickle.OpBinBytes8:
		s.Stack.Push(KindBytes)
	case pickle.OpByteArray8:
		s.Stack.Push(KindByteArray)
	case pickle.OpNextBuffer:
		s.Stack.Push(KindBytes)
	case pickle.OpReadOnlyBuffer:
		if _, ok := s.Stack.Peek(); !ok {
			return ErrStackUnderflow
		}

	// ----- containers -----
	case pickle.OpEmptyList:
		s.Stack.Push(KindList)
	case pickle.OpEmptyTuple:
		s.Stack.Push(KindTuple)
	case pickle.OpEmptyDict:
		s.Stack.Push(KindDict)
	case pickle.OpEmptySet:
		s.Stack.Push(KindSet)
	case pickle.OpList:
		if _, ok := s.Stack.PopToMark(); !ok {
			return ErrNoMark
		}
		s.Stack.Push(KindList)
	case pickle.OpTuple:
		if _, ok := s.Stack.PopToMark(); !ok {
			return ErrNoMark
		}
		s.Stack.Push(KindTuple)
	case pickle.OpTuple1:
		return s.popPush(1, KindTuple)
	case pickle.OpTuple2:
		return s.popPush(2, KindTuple)
	case pickle.OpTuple3:
		return s.popPush(3, KindTuple)
	case pickle.OpDict:
		items, ok := s.Stack.PopToMark()
		if !ok {
			return ErrNoMark
		}
		if len(items)%2 != 0 && !s.Unsafe {
			return fmt.Errorf("%w: DICT wants key/value pairs, got %d items",
				ErrBadOperand, len(items))
		}
		s.Stack.Push(KindDict)
	case pickle.OpFrozenSet:
		if _, ok := s.Stack.PopToMark(); !ok {
			return ErrNoMark
		}
		s.Stack.Push(KindFrozenSet)

	// ----- container updates -----
	case pickle.OpAppend:
		if err := s.popValues(1); err != nil {
			return err
		}
		return s.requireTop(KindList, "APPEND")
	case pickle.OpAppends:
		if _, ok := s.Stack.PopToMark(); !ok {
			return ErrNoMark
		}
		return s.requireTop(KindList, "APPENDS")
	case pickle.OpSetItem:
		if err := s.popValues(2); err != nil {
			return err
		}
		return s.requireTop(KindDict, "SETITEM")
	case pickle.OpSetItems:
		items, ok := s.Stack.PopToMark()
		if !ok {
			return ErrNoMark
		}
		if len(items)%2 != 0 && !s.Unsafe {
			return fmt.Errorf("%w: SETITEMS wants key/value pairs, got %d items",
				ErrBadOperand, len(items))
		}
		return s.requireTop(KindDict, "SETITEMS")
	case pickle.OpAddItems:
		if _, ok := s.Stack.PopToMark(); !ok {
			return ErrNoMark
		}
		return s.requireTop(KindSet, "ADDITEMS")

	// ----- stack management -----
	case pickle.OpPop:
		if _, ok := s.Stack.Pop(); !ok {
			return ErrStackUnderflow
		}
	case pickle.OpPopMark:
		if _, ok := s.Stack.PopToMark(); !ok {
			return ErrNoMark
		}
	case pickle.OpDup:
		k, ok := s.Stack.Peek()
		if !ok {
			return ErrStackUnderflow
		}
		s.Stack.Push(k)
	case pickle.OpMark:
		s.Stack.Push(KindMark)

	// ----- memo -----
	case pickle.OpGet, pickle.OpBinGet, pickle.OpLongBinGet:
		index, ok := in.UintArg()
		if !ok {
			return fmt.Errorf("%w: unreadable memo index", ErrBadOperand)
		}
		k, err := s.Memo.Get(index)
		if err != nil {
			if !s.Unsafe {
				return err
			}
			k = KindOpaque
		}
		s.Stack.Push(k)
	case pickle.OpPut, pickle.OpBinPut, pickle.OpLongBinPut:
		index, ok := in.UintArg()
		if !ok {
			return fmt.Errorf("%w: unreadable memo index", ErrBadOperand)
		}
		k, ok := s.Stack.Peek()
		if !ok {
			return ErrStackUnderflow
		}
		if k == KindMark {
			return fmt.Errorf("%w: PUT on a mark", ErrBadOperand)
		}
		s.Memo.Put(index, k)
	case pickle.OpMemoize:
		k, ok := s.Stack.Peek()
		if !ok {
			return ErrStackUnderflow
		}
		if k == KindMark {
			return fmt.Errorf("%w: MEMOIZE on a mark", ErrBadOperand)
		}
		s.Memo.Put(s.Memo.Next(), k)

	// ----- globals, objects, extensions -----
	case pickle.OpGlobal:
		s.Stack.Push(KindCallable)
	case pickle.OpStackGlobal:
		for i := 0; i < 2; i++ {
			k, ok := s.Stack.Pop()
			if !ok {
				return ErrStackUnderflow
			}
			if k != KindString && k != KindOpaque && !s.Unsafe {
				return fmt.Errorf("%w: STACK_GLOBAL wants strings, got %s",
					ErrBadOperand, k)
			}
		}
		s.Stack.Push(KindCallable)
	case pickle.OpExt1, pickle.OpExt2, pickle.OpExt4:
		s.Stack.Push(KindCallable)
	case pickle.OpReduce:
		return s.construct("REDUCE", KindTuple, KindCallable)
	case pickle.OpNewObj:
		return s.construct("NEWOBJ", KindTuple, KindCallable)
	case pickle.OpNewObjEx:
		return s.construct("NEWOBJ_EX", KindDict, KindTuple, KindCallable)
	case pickle.OpObj:
		items, ok := s.Stack.PopToMark()
		if !ok {
			return ErrNoMark
		}
		if !s.Unsafe {
			if len(items) == 0 || !callableLike(items[0]) {
				return fmt.Errorf("%w: OBJ wants a callable below the args",
					ErrBadOperand)
			}
		}
		s.Stack.Push(KindInstance)
	case pickle.OpInst:
		if _, ok := s.Stack.PopToMark(); !ok {
			return ErrNoMark
		}
		s.Stack.Push(KindInstance)
	case pickle.OpBuild:
		if err := s.popValues(1); err != nil { // state argument
			return err
		}
		k, ok := s.Stack.Peek()
		if !ok {
			return ErrStackUnderflow
		}
		if k != KindInstance && k != KindOpaque && !s.Unsafe {
			return fmt.Errorf("%w: BUILD wants an instance, got %s", ErrBadOperand, k)
		}

	// ----- persistence -----
	case pickle.OpPersID:
		s.Stack.Push(KindString)
	case pickle.OpBinPersID:
		if err := s.popValues(1); err != nil {
			return err
		}
		s.Stack.Push(KindString)

	// ----- stream control -----
	case pickle.OpProto:
		if len(arg) == 1 && int(arg[0]) <= int(pickle.MaxVersion) {
			s.Version = pickle.Version(arg[0])
		}
		s.protoSeen = true
	case pickle.OpFrame:
		// framing is transparent to the machine
	case pickle.OpStop:
		return s.popValues(1)

	default:
		return fmt.Errorf("pvm: unhandled opcode %s", op)
	}
	return nil
}

// intTextKind classifies a text INT argument. Protocols 0 and 1 spell
// booleans as the integers 00 and 01.
func (s *State) intTextKind(in pickle.Instruction) Kind {
	text, ok := in.Line()
	if !ok {
		return KindInt
	}
	if text == "00" || text == "01" {
		return KindBool
	}
	if v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
		if s.Version <= pickle.V1 && (v == 0 || v == 1) {
			return KindBool
		}
	}
	return KindInt
}

// popValues pops n values, rejecting MARK sentinels.
func (s *State) popValues(n int) error {
	for i := 0; i < n; i++ {
		k, ok := s.Stack.Pop()
		if !ok {
			return ErrStackUnderflow
		}
		if k == KindMark && !s.Unsafe {
			return fmt.Errorf("%w: mark where a value was expected", ErrBadOperand)
		}
	}
	return nil
}

// popPush pops n values and pushes a single result.
func (s *State) popPush(n int, result Kind) error {
	if err := s.popValues(n); err != nil {
		return err
	}
	s.Stack.Push(result)
	return nil
}

// requireTop checks that the value left on top after an update opcode
// has the expected container category.
func (s *State) requireTop(want Kind, opName string) error {
	k, ok := s.Stack.Peek()
	if !ok {
		return ErrStackUnderflow
	}
	if k != want && k != KindOpaque && !s.Unsafe {
		return fmt.Errorf("%w: %s wants a %s, got %s", ErrBadOperand, opName, want, k)
	}
	return nil
}

// construct pops operands top-first with the given expected categories
// and pushes an instance.
func (s *State) construct(opName string, operands ...Kind) error {
	for _, want := range operands {
		k, ok := s.Stack.Pop()
		if !ok {
			return ErrStackUnderflow
		}
		if s.Unsafe || k == KindOpaque {
			continue
		}
		if want == KindCallable && !callableLike(k) {
			return fmt.Errorf("%w: %s wants a callable, got %s", ErrBadOperand, opName, k)
		}
		if want != KindCallable && k != want {
			return fmt.Errorf("%w: %s wants a %s, got %s", ErrBadOperand, opName, want, k)
		}
	}
	s.Stack.Push(KindInstance)
	return nil
}

func callableLike(k Kind) bool {
	return k == KindCallable || k == KindInstance || k == KindOpaque
}
