package pickle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// ---------------------------------------------------------------------------
// Instruction scanner
// ---------------------------------------------------------------------------

// Instruction is one decoded opcode with its raw argument bytes.
type Instruction struct {
	Pos int    // byte offset of the tag in the stream
	Op  Opcode // the tag
	Arg []byte // raw argument bytes, including any length prefix
}

// Len returns the encoded size of the instruction in bytes.
func (in Instruction) Len() int {
	return 1 + len(in.Arg)
}

// Payload returns the variable-length portion of a length-prefixed
// argument, or nil for every other argument kind.
func (in Instruction) Payload() []byte {
	info, ok := in.Op.Info()
	if !ok {
		return nil
	}
	if p := info.Arg.PrefixLen(); p > 0 && len(in.Arg) >= p {
		return in.Arg[p:]
	}
	return nil
}

// Line returns the text of a newline-terminated argument without the
// terminator. The second result is false for other argument kinds.
func (in Instruction) Line() (string, bool) {
	info, ok := in.Op.Info()
	if !ok || info.Arg != ArgLine || len(in.Arg) == 0 {
		return "", false
	}
	return string(in.Arg[:len(in.Arg)-1]), true
}

// UintArg decodes a fixed-width unsigned argument (ArgU8, ArgU16, ArgU32,
// ArgU64) or the decimal text of an ArgLine argument.
func (in Instruction) UintArg() (uint64, bool) {
	info, ok := in.Op.Info()
	if !ok {
		return 0, false
	}
	switch info.Arg {
	case ArgU8:
		if len(in.Arg) == 1 {
			return uint64(in.Arg[0]), true
		}
	case ArgU16:
		if len(in.Arg) == 2 {
			return uint64(binary.LittleEndian.Uint16(in.Arg)), true
		}
	case ArgU32:
		if len(in.Arg) == 4 {
			return uint64(binary.LittleEndian.Uint32(in.Arg)), true
		}
	case ArgU64:
		if len(in.Arg) == 8 {
			return binary.LittleEndian.Uint64(in.Arg), true
		}
	case ArgLine:
		if text, ok := in.Line(); ok {
			if v, err := strconv.ParseUint(text, 10, 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

// Encode appends the instruction's wire form to dst.
func (in Instruction) Encode(dst []byte) []byte {
	dst = append(dst, byte(in.Op))
	return append(dst, in.Arg...)
}

// ScanError reports a malformed stream encountered during scanning.
type ScanError struct {
	Offset  int
	Op      Opcode // tag being decoded; zero when the tag itself is unknown
	Unknown bool   // true when the tag byte is not a pickle opcode
	msg     string
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	return fmt.Sprintf("pickle: %s at offset %d", e.msg, e.Offset)
}

// Scan decodes an entire byte stream into instructions. It does not stop
// at STOP: trailing instructions are decoded too, so callers can detect
// trailing data. A truncated argument or an unknown tag byte yields a
// *ScanError along with the instructions decoded so far.
func Scan(data []byte) ([]Instruction, error) {
	var instrs []Instruction
	pos := 0
	for pos < len(data) {
		op := Opcode(data[pos])
		info, ok := op.Info()
		if !ok {
			return instrs, &ScanError{Offset: pos, Unknown: true,
				msg: fmt.Sprintf("unknown opcode 0x%02x", byte(op))}
		}
		arg, n, err := scanArg(data[pos+1:], info.Arg)
		if err != nil {
			return instrs, &ScanError{Offset: pos, Op: op,
				msg: fmt.Sprintf("truncated %s argument", op.Name())}
		}
		instrs = append(instrs, Instruction{Pos: pos, Op: op, Arg: arg})
		pos += 1 + n
	}
	return instrs, nil
}

var errShort = fmt.Errorf("pickle: short argument")

// scanArg decodes one argument of the given kind from the front of data,
// returning the raw bytes consumed.
func scanArg(data []byte, kind ArgKind) ([]byte, int, error) {
	fixed := func(n int) ([]byte, int, error) {
		if len(data) < n {
			return nil, 0, errShort
		}
		return data[:n], n, nil
	}
	switch kind {
	case ArgNone:
		return nil, 0, nil
	case ArgU8:
		return fixed(1)
	case ArgU16:
		return fixed(2)
	case ArgU32, ArgI32:
		return fixed(4)
	case ArgU64, ArgF64BE:
		return fixed(8)
	case ArgLine:
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return nil, 0, errShort
		}
		return data[:i+1], i + 1, nil
	case ArgPair:
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return nil, 0, errShort
		}
		j := bytes.IndexByte(data[i+1:], '\n')
		if j < 0 {
			return nil, 0, errShort
		}
		n := i + 1 + j + 1
		return data[:n], n, nil
	case ArgBytes1, ArgLong1:
		if len(data) < 1 {
			return nil, 0, errShort
		}
		n := 1 + int(data[0])
		if len(data) < n {
			return nil, 0, errShort
		}
		return data[:n], n, nil
	case ArgBytes4, ArgLong4:
		if len(data) < 4 {
			return nil, 0, errShort
		}
		size := binary.LittleEndian.Uint32(data)
		if uint64(size) > uint64(len(data)-4) {
			return nil, 0, errShort
		}
		n := 4 + int(size)
		return data[:n], n, nil
	case ArgBytesI4:
		if len(data) < 4 {
			return nil, 0, errShort
		}
		size := int32(binary.LittleEndian.Uint32(data))
		if size < 0 || int64(size) > int64(len(data)-4) {
			return nil, 0, errShort
		}
		n := 4 + int(size)
		return data[:n], n, nil
	case ArgBytes8:
		if len(data) < 8 {
			return nil, 0, errShort
		}
		size := binary.LittleEndian.Uint64(data)
		if size > uint64(len(data)-8) || size > math.MaxInt32 {
			return nil, 0, errShort
		}
		n := 8 + int(size)
		return data[:n], n, nil
	}
	return nil, 0, fmt.Errorf("pickle: unhandled argument kind %d", kind)
}
