package generator

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/brine/pickle"
)

// Entry describes one emitted instruction.
type Entry struct {
	Offset    int           `cbor:"o"`
	Op        pickle.Opcode `cbor:"op"`
	ArgLen    int           `cbor:"n"`
	MemoIndex int64         `cbor:"m"` // -1 for non-memo opcodes
}

// Trace is the instruction-by-instruction record of a generated stream.
type Trace []Entry

// End returns the offset one past the entry's encoded bytes.
func (e Entry) End() int {
	return e.Offset + 1 + e.ArgLen
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("generator: cbor encode mode: %v", err))
	}
	cborEncMode = em
}

// MarshalTrace serializes a trace for storage alongside its stream.
func MarshalTrace(t Trace) ([]byte, error) {
	data, err := cborEncMode.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("generator: marshal trace: %w", err)
	}
	return data, nil
}

// UnmarshalTrace deserializes a trace produced by MarshalTrace.
func UnmarshalTrace(data []byte) (Trace, error) {
	var t Trace
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("generator: unmarshal trace: %w", err)
	}
	return t, nil
}
