package mutate

import (
	"encoding/binary"
	"math"
	"math/rand/v2"

	"github.com/chazu/brine/pickle"
)

// offbyone nudges numeric arguments by plus or minus one, wrapping
// within the argument's width.
type offbyone struct{}

func (offbyone) Name() string     { return "offbyone" }
func (offbyone) UnsafeOnly() bool { return false }

func (offbyone) Mutate(st *Stream, rng *rand.Rand, pol Policy) {
	for i := 0; i < st.Len(); i++ {
		if rng.Float64() >= pol.Rate {
			continue
		}
		delta := int64(1)
		if rng.IntN(2) == 0 {
			delta = -1
		}
		op := st.Op(i)
		arg := st.Arg(i)
		switch {
		case op == pickle.OpBinInt && len(arg) == 4:
			v := int32(binary.LittleEndian.Uint32(arg))
			binary.LittleEndian.PutUint32(arg, uint32(v+int32(delta)))
		case op == pickle.OpBinInt1 && len(arg) == 1:
			arg[0] += byte(delta)
		case op == pickle.OpBinInt2 && len(arg) == 2:
			v := binary.LittleEndian.Uint16(arg)
			binary.LittleEndian.PutUint16(arg, uint16(int32(v)+int32(delta)))
		case op == pickle.OpBinFloat && len(arg) == 8:
			v := math.Float64frombits(binary.BigEndian.Uint64(arg))
			binary.BigEndian.PutUint64(arg, math.Float64bits(v+float64(delta)))
		case isTextNumber(op):
			v, suffix, ok := textIntParts(op, arg)
			if !ok {
				continue
			}
			st.SetArg(i, encodeTextInt(v+delta, suffix))
		}
	}
}
