// Package pickle models the pickle bytecode format: opcode tags,
// argument encodings, and per-protocol opcode availability.
package pickle

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single pickle instruction tag byte.
type Opcode byte

// Integers
const (
	OpInt     Opcode = 0x49 // 'I' decimal int, newline-terminated
	OpBinInt  Opcode = 0x4a // 'J' 4-byte signed little-endian
	OpBinInt1 Opcode = 0x4b // 'K' 1-byte unsigned
	OpBinInt2 Opcode = 0x4d // 'M' 2-byte unsigned little-endian
	OpLong    Opcode = 0x4c // 'L' decimal long with 'L' suffix
	OpLong1   Opcode = 0x8a // 1-byte count + little-endian two's complement
	OpLong4   Opcode = 0x8b // 4-byte count + little-endian two's complement
)

// Strings and bytes
const (
	OpString         Opcode = 0x53 // 'S' quoted string literal, newline-terminated
	OpBinString      Opcode = 0x54 // 'T' 4-byte signed length + bytes
	OpShortBinString Opcode = 0x55 // 'U' 1-byte length + bytes
	OpBinBytes       Opcode = 0x42 // 'B' 4-byte unsigned length + bytes
	OpShortBinBytes  Opcode = 0x43 // 'C' 1-byte length + bytes
	OpBinBytes8      Opcode = 0x8e // 8-byte unsigned length + bytes
	OpByteArray8     Opcode = 0x96 // 8-byte unsigned length + bytes (bytearray)
	OpNextBuffer     Opcode = 0x97 // push next out-of-band buffer
	OpReadOnlyBuffer Opcode = 0x98 // make top buffer read-only
)

// None and booleans
const (
	OpNone     Opcode = 0x4e // 'N'
	OpNewTrue  Opcode = 0x88
	OpNewFalse Opcode = 0x89
)

// Unicode
const (
	OpUnicode         Opcode = 0x56 // 'V' raw-unicode-escape text, newline-terminated
	OpShortBinUnicode Opcode = 0x8c // 1-byte length + UTF-8 bytes
	OpBinUnicode      Opcode = 0x58 // 'X' 4-byte unsigned length + UTF-8 bytes
	OpBinUnicode8     Opcode = 0x8d // 8-byte unsigned length + UTF-8 bytes
)

// Floats
const (
	OpFloat    Opcode = 0x46 // 'F' decimal float, newline-terminated
	OpBinFloat Opcode = 0x47 // 'G' 8-byte big-endian IEEE 754
)

// Containers
const (
	OpEmptyList  Opcode = 0x5d // ']'
	OpAppend     Opcode = 0x61 // 'a'
	OpAppends    Opcode = 0x65 // 'e'
	OpList       Opcode = 0x6c // 'l'
	OpEmptyTuple Opcode = 0x29 // ')'
	OpTuple      Opcode = 0x74 // 't'
	OpTuple1     Opcode = 0x85
	OpTuple2     Opcode = 0x86
	OpTuple3     Opcode = 0x87
	OpEmptyDict  Opcode = 0x7d // '}'
	OpDict       Opcode = 0x64 // 'd'
	OpSetItem    Opcode = 0x73 // 's'
	OpSetItems   Opcode = 0x75 // 'u'
	OpEmptySet   Opcode = 0x8f
	OpAddItems   Opcode = 0x90
	OpFrozenSet  Opcode = 0x91
)

// Stack and memo
const (
	OpPop        Opcode = 0x30 // '0'
	OpPopMark    Opcode = 0x31 // '1'
	OpDup        Opcode = 0x32 // '2'
	OpMark       Opcode = 0x28 // '('
	OpGet        Opcode = 0x67 // 'g' decimal index, newline-terminated
	OpBinGet     Opcode = 0x68 // 'h' 1-byte index
	OpLongBinGet Opcode = 0x6a // 'j' 4-byte index
	OpPut        Opcode = 0x70 // 'p' decimal index, newline-terminated
	OpBinPut     Opcode = 0x71 // 'q' 1-byte index
	OpLongBinPut Opcode = 0x72 // 'r' 4-byte index
	OpMemoize    Opcode = 0x94
)

// Objects, extensions, and framing
const (
	OpExt1        Opcode = 0x82
	OpExt2        Opcode = 0x83
	OpExt4        Opcode = 0x84
	OpGlobal      Opcode = 0x63 // 'c' module + name, two newline-terminated lines
	OpStackGlobal Opcode = 0x93
	OpReduce      Opcode = 0x52 // 'R'
	OpBuild       Opcode = 0x62 // 'b'
	OpInst        Opcode = 0x69 // 'i' module + name, two newline-terminated lines
	OpObj         Opcode = 0x6f // 'o'
	OpNewObj      Opcode = 0x81
	OpNewObjEx    Opcode = 0x92
	OpProto       Opcode = 0x80 // 1-byte protocol version
	OpStop        Opcode = 0x2e // '.'
	OpFrame       Opcode = 0x95 // 8-byte unsigned span length
	OpPersID      Opcode = 0x50 // 'P' persistent id, newline-terminated
	OpBinPersID   Opcode = 0x51 // 'Q'
)

// ---------------------------------------------------------------------------
// Argument shapes
// ---------------------------------------------------------------------------

// ArgKind describes how an opcode's argument is encoded on the wire.
type ArgKind uint8

const (
	ArgNone    ArgKind = iota // no argument
	ArgU8                     // 1-byte unsigned
	ArgU16                    // 2-byte unsigned little-endian
	ArgU32                    // 4-byte unsigned little-endian
	ArgU64                    // 8-byte unsigned little-endian
	ArgI32                    // 4-byte signed little-endian
	ArgF64BE                  // 8-byte big-endian IEEE 754
	ArgLine                   // text terminated by '\n'
	ArgPair                   // two '\n'-terminated lines
	ArgBytes1                 // 1-byte length prefix + payload
	ArgBytes4                 // 4-byte unsigned length prefix + payload
	ArgBytesI4                // 4-byte signed length prefix + payload
	ArgBytes8                 // 8-byte unsigned length prefix + payload
	ArgLong1                  // 1-byte count prefix + count bytes
	ArgLong4                  // 4-byte count prefix + count bytes
)

// PrefixLen returns the width of the length/count prefix for prefixed
// argument kinds, or 0 for every other kind.
func (k ArgKind) PrefixLen() int {
	switch k {
	case ArgBytes1, ArgLong1:
		return 1
	case ArgBytes4, ArgBytesI4, ArgLong4:
		return 4
	case ArgBytes8:
		return 8
	}
	return 0
}

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name string  // pickletools-style name
	Arg  ArgKind // wire encoding of the argument
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpInt:     {"INT", ArgLine},
	OpBinInt:  {"BININT", ArgI32},
	OpBinInt1: {"BININT1", ArgU8},
	OpBinInt2: {"BININT2", ArgU16},
	OpLong:    {"LONG", ArgLine},
	OpLong1:   {"LONG1", ArgLong1},
	OpLong4:   {"LONG4", ArgLong4},

	OpString:         {"STRING", ArgLine},
	OpBinString:      {"BINSTRING", ArgBytesI4},
	OpShortBinString: {"SHORT_BINSTRING", ArgBytes1},
	OpBinBytes:       {"BINBYTES", ArgBytes4},
	OpShortBinBytes:  {"SHORT_BINBYTES", ArgBytes1},
	OpBinBytes8:      {"BINBYTES8", ArgBytes8},
	OpByteArray8:     {"BYTEARRAY8", ArgBytes8},
	OpNextBuffer:     {"NEXT_BUFFER", ArgNone},
	OpReadOnlyBuffer: {"READONLY_BUFFER", ArgNone},

	OpNone:     {"NONE", ArgNone},
	OpNewTrue:  {"NEWTRUE", ArgNone},
	OpNewFalse: {"NEWFALSE", ArgNone},

	OpUnicode:         {"UNICODE", ArgLine},
	OpShortBinUnicode: {"SHORT_BINUNICODE", ArgBytes1},
	OpBinUnicode:      {"BINUNICODE", ArgBytes4},
	OpBinUnicode8:     {"BINUNICODE8", ArgBytes8},

	OpFloat:    {"FLOAT", ArgLine},
	OpBinFloat: {"BINFLOAT", ArgF64BE},

	OpEmptyList:  {"EMPTY_LIST", ArgNone},
	OpAppend:     {"APPEND", ArgNone},
	OpAppends:    {"APPENDS", ArgNone},
	OpList:       {"LIST", ArgNone},
	OpEmptyTuple: {"EMPTY_TUPLE", ArgNone},
	OpTuple:      {"TUPLE", ArgNone},
	OpTuple1:     {"TUPLE1", ArgNone},
	OpTuple2:     {"TUPLE2", ArgNone},
	OpTuple3:     {"TUPLE3", ArgNone},
	OpEmptyDict:  {"EMPTY_DICT", ArgNone},
	OpDict:       {"DICT", ArgNone},
	OpSetItem:    {"SETITEM", ArgNone},
	OpSetItems:   {"SETITEMS", ArgNone},
	OpEmptySet:   {"EMPTY_SET", ArgNone},
	OpAddItems:   {"ADDITEMS", ArgNone},
	OpFrozenSet:  {"FROZENSET", ArgNone},

	OpPop:        {"POP", ArgNone},
	OpPopMark:    {"POP_MARK", ArgNone},
	OpDup:        {"DUP", ArgNone},
	OpMark:       {"MARK", ArgNone},
	OpGet:        {"GET", ArgLine},
	OpBinGet:     {"BINGET", ArgU8},
	OpLongBinGet: {"LONG_BINGET", ArgU32},
	OpPut:        {"PUT", ArgLine},
	OpBinPut:     {"BINPUT", ArgU8},
	OpLongBinPut: {"LONG_BINPUT", ArgU32},
	OpMemoize:    {"MEMOIZE", ArgNone},

	OpExt1:        {"EXT1", ArgU8},
	OpExt2:        {"EXT2", ArgU16},
	OpExt4:        {"EXT4", ArgU32},
	OpGlobal:      {"GLOBAL", ArgPair},
	OpStackGlobal: {"STACK_GLOBAL", ArgNone},
	OpReduce:      {"REDUCE", ArgNone},
	OpBuild:       {"BUILD", ArgNone},
	OpInst:        {"INST", ArgPair},
	OpObj:         {"OBJ", ArgNone},
	OpNewObj:      {"NEWOBJ", ArgNone},
	OpNewObjEx:    {"NEWOBJ_EX", ArgNone},
	OpProto:       {"PROTO", ArgU8},
	OpStop:        {"STOP", ArgNone},
	OpFrame:       {"FRAME", ArgU64},
	OpPersID:      {"PERSID", ArgLine},
	OpBinPersID:   {"BINPERSID", ArgNone},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() (OpcodeInfo, bool) {
	info, ok := opcodeTable[op]
	return info, ok
}

// Name returns the pickletools-style name for an opcode.
func (op Opcode) Name() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN_%02X", byte(op))
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// IsValueProducing reports whether the opcode pushes a freshly synthesized
// value with no stack preconditions.
func (op Opcode) IsValueProducing() bool {
	switch op {
	case OpInt, OpBinInt, OpBinInt1, OpBinInt2, OpLong, OpLong1, OpLong4,
		OpString, OpBinString, OpShortBinString, OpBinBytes, OpShortBinBytes,
		OpBinBytes8, OpByteArray8, OpNone, OpNewTrue, OpNewFalse,
		OpUnicode, OpShortBinUnicode, OpBinUnicode, OpBinUnicode8,
		OpFloat, OpBinFloat, OpEmptyList, OpEmptyTuple, OpEmptyDict,
		OpEmptySet, OpGlobal, OpPersID, OpMark:
		return true
	}
	return false
}
