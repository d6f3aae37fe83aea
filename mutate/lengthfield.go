package mutate

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/chazu/brine/pickle"
)

// lengthfield corrupts length prefixes and FRAME lengths without
// touching the payload they describe, desynchronizing the reader from
// the byte stream. It can never preserve validity.
type lengthfield struct{}

func (lengthfield) Name() string     { return "lengthfield" }
func (lengthfield) UnsafeOnly() bool { return true }

func (lengthfield) Mutate(st *Stream, rng *rand.Rand, pol Policy) {
	for i := 0; i < st.Len(); i++ {
		if rng.Float64() >= pol.Rate {
			continue
		}
		op := st.Op(i)
		arg := st.Arg(i)
		if op == pickle.OpFrame && len(arg) == 8 {
			binary.LittleEndian.PutUint64(arg, corruptU64(binary.LittleEndian.Uint64(arg), rng))
			continue
		}
		info, ok := op.Info()
		if !ok {
			continue
		}
		switch prefix := info.Arg.PrefixLen(); prefix {
		case 1:
			if len(arg) >= 1 {
				arg[0] = byte(corruptU64(uint64(arg[0]), rng))
			}
		case 4:
			if len(arg) >= 4 {
				v := binary.LittleEndian.Uint32(arg)
				binary.LittleEndian.PutUint32(arg, uint32(corruptU64(uint64(v), rng)))
			}
		case 8:
			if len(arg) >= 8 {
				v := binary.LittleEndian.Uint64(arg)
				binary.LittleEndian.PutUint64(arg, corruptU64(v, rng))
			}
		}
	}
}

// corruptU64 picks a corrupt replacement for a length value.
func corruptU64(v uint64, rng *rand.Rand) uint64 {
	switch rng.IntN(4) {
	case 0:
		return 0
	case 1:
		return v + 1
	case 2:
		return v - 1 // wraps to the maximum at zero
	default:
		return uint64(rng.IntN(1 << 24))
	}
}
