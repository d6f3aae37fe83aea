// Package pvm simulates the pickle virtual machine at the category level:
// a value stack and memo table that track what KIND of object each slot
// holds, without materializing the objects themselves.
package pvm

// Kind is the category of a simulated value.
type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindByteArray
	KindList
	KindTuple
	KindDict
	KindSet
	KindFrozenSet
	KindMark     // the MARK sentinel, never a real value
	KindCallable // a global or extension-registry object
	KindInstance // the result of REDUCE / NEWOBJ / OBJ / INST
	KindOpaque   // unknown category, used when simulating unsound streams
)

var kindNames = [...]string{
	KindNone:      "none",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindBytes:     "bytes",
	KindByteArray: "bytearray",
	KindList:      "list",
	KindTuple:     "tuple",
	KindDict:      "dict",
	KindSet:       "set",
	KindFrozenSet: "frozenset",
	KindMark:      "mark",
	KindCallable:  "callable",
	KindInstance:  "instance",
	KindOpaque:    "opaque",
}

// String implements the Stringer interface.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}
