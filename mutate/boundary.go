package mutate

import (
	"math"
	"math/rand/v2"

	"github.com/chazu/brine/pickle"
)

// boundary replaces numeric arguments with edge-case values: zero, one,
// minus one, type extremes, and for floats the infinities and NaN.
type boundary struct{}

func (boundary) Name() string     { return "boundary" }
func (boundary) UnsafeOnly() bool { return false }

var (
	boundaryI64   = []int64{0, 1, -1, math.MaxInt64, math.MinInt64}
	boundaryI32   = []int32{0, 1, -1, math.MaxInt32, math.MinInt32}
	boundaryU16   = []uint16{0, 1, math.MaxUint16}
	boundaryU8    = []byte{0, 1, math.MaxUint8}
	boundaryFloat = []float64{
		0, 1, -1,
		math.MaxFloat64, math.SmallestNonzeroFloat64,
		math.Inf(1), math.Inf(-1), math.NaN(),
	}
)

func (boundary) Mutate(st *Stream, rng *rand.Rand, pol Policy) {
	for i := 0; i < st.Len(); i++ {
		if rng.Float64() >= pol.Rate {
			continue
		}
		op := st.Op(i)
		b := pickle.NewBuilder()
		switch {
		case op == pickle.OpBinInt:
			b.EmitInt32(boundaryI32[rng.IntN(len(boundaryI32))])
		case op == pickle.OpBinInt1:
			b.EmitByte(boundaryU8[rng.IntN(len(boundaryU8))])
		case op == pickle.OpBinInt2:
			b.EmitUint16(boundaryU16[rng.IntN(len(boundaryU16))])
		case op == pickle.OpBinFloat:
			b.EmitFloat64(boundaryFloat[rng.IntN(len(boundaryFloat))])
		case isTextNumber(op):
			_, suffix, ok := textIntParts(op, st.Arg(i))
			if !ok {
				continue
			}
			v := boundaryI64[rng.IntN(len(boundaryI64))]
			st.SetArg(i, encodeTextInt(v, suffix))
			continue
		default:
			continue
		}
		st.SetArg(i, b.Bytes())
	}
}
