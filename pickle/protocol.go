package pickle

import "fmt"

// ---------------------------------------------------------------------------
// Protocol versions
// ---------------------------------------------------------------------------

// Version identifies a pickle protocol version.
type Version int

const (
	V0 Version = iota // text protocol
	V1                // binary opcodes
	V2                // PROTO, NEWOBJ, extension registry
	V3                // bytes objects
	V4                // framing, 8-byte lengths, qualified names
	V5                // bytearray, out-of-band buffers

	// MaxVersion is the highest protocol version supported.
	MaxVersion = V5
)

// ErrUnsupportedProtocol is returned when a protocol version outside
// the supported range is requested.
var ErrUnsupportedProtocol = fmt.Errorf("pickle: unsupported protocol version")

// ParseVersion validates and converts a raw protocol number.
func ParseVersion(n int) (Version, error) {
	if n < 0 || n > int(MaxVersion) {
		return 0, fmt.Errorf("%w: %d (want 0-%d)", ErrUnsupportedProtocol, n, MaxVersion)
	}
	return Version(n), nil
}

// String implements the Stringer interface.
func (v Version) String() string {
	return fmt.Sprintf("protocol %d", int(v))
}

// opcodesV0 holds the opcodes available from the original text protocol.
var opcodesV0 = []Opcode{
	OpInt, OpLong, OpString, OpUnicode, OpFloat,
	OpNone, OpList, OpTuple, OpDict,
	OpAppend, OpSetItem,
	OpPop, OpDup, OpMark,
	OpGet, OpPut,
	OpGlobal, OpReduce, OpBuild, OpInst,
	OpPersID,
	OpStop,
}

// additions holds the opcodes each later protocol introduces.
var additions = map[Version][]Opcode{
	V1: {
		OpBinInt, OpBinInt1, OpBinInt2,
		OpBinString, OpShortBinString, OpBinUnicode, OpBinFloat,
		OpEmptyList, OpEmptyTuple, OpEmptyDict,
		OpAppends, OpSetItems,
		OpPopMark,
		OpBinGet, OpLongBinGet, OpBinPut, OpLongBinPut,
		OpObj, OpBinPersID,
	},
	V2: {
		OpProto, OpNewObj,
		OpExt1, OpExt2, OpExt4,
		OpTuple1, OpTuple2, OpTuple3,
		OpNewTrue, OpNewFalse,
		OpLong1, OpLong4,
	},
	V3: {
		OpBinBytes, OpShortBinBytes,
	},
	V4: {
		OpShortBinUnicode, OpBinUnicode8, OpBinBytes8,
		OpEmptySet, OpFrozenSet, OpAddItems,
		OpNewObjEx, OpStackGlobal,
		OpMemoize, OpFrame,
	},
	V5: {
		OpByteArray8, OpNextBuffer, OpReadOnlyBuffer,
	},
}

// versionOpcodes[v] is the full cumulative opcode set at version v.
var versionOpcodes [MaxVersion + 1][]Opcode

// versionSets[v] is the same set as a membership table.
var versionSets [MaxVersion + 1]map[Opcode]bool

func init() {
	cumulative := append([]Opcode(nil), opcodesV0...)
	for v := V0; v <= MaxVersion; v++ {
		if v > V0 {
			cumulative = append(cumulative, additions[v]...)
		}
		versionOpcodes[v] = append([]Opcode(nil), cumulative...)
		set := make(map[Opcode]bool, len(cumulative))
		for _, op := range cumulative {
			set[op] = true
		}
		versionSets[v] = set
	}
}

// OpcodesFor returns every opcode legal at the given protocol version.
// The returned slice must not be modified.
func OpcodesFor(v Version) []Opcode {
	return versionOpcodes[v]
}

// LegalAt reports whether the opcode is part of the protocol's opcode set.
func (op Opcode) LegalAt(v Version) bool {
	return versionSets[v][op]
}

// MinVersion returns the lowest protocol version that includes the opcode.
func (op Opcode) MinVersion() (Version, bool) {
	for v := V0; v <= MaxVersion; v++ {
		if versionSets[v][op] {
			return v, true
		}
	}
	return 0, false
}
