package mutate

import (
	"math/rand/v2"
	"strconv"

	"github.com/chazu/brine/pickle"
	"github.com/chazu/brine/validate"
)

// memoindex retargets memo reads. Safely a GET is pointed at a
// different slot that earlier instructions really populated; unsafely
// it is pointed anywhere, including slots that do not exist.
type memoindex struct{}

func (memoindex) Name() string     { return "memoindex" }
func (memoindex) UnsafeOnly() bool { return false }

func (m memoindex) Mutate(st *Stream, rng *rand.Rand, pol Policy) {
	for i := 0; i < st.Len(); i++ {
		if !isMemoGet(st.Op(i)) || rng.Float64() >= pol.Rate {
			continue
		}
		var index uint64
		if pol.Unsafe {
			index = uint64(rng.IntN(1000))
			if st.Op(i) == pickle.OpBinGet {
				index &= 0xff
			}
		} else {
			max := int64(-1)
			if st.Op(i) == pickle.OpBinGet {
				max = 256
			}
			populated := st.MemoIndicesBefore(i, max)
			if len(populated) == 0 {
				continue
			}
			index = populated[rng.IntN(len(populated))]
		}
		saved := st.Arg(i)
		st.SetArg(i, encodeGetIndex(st.Op(i), index))
		if pol.Unsafe {
			continue
		}
		// The retargeted slot holds a different category; revert when a
		// downstream consumer needed the original one.
		valid := validate.Stream(st.Encode(true), validate.Options{
			Protocol: -1, AllowExt: true, AllowBuffers: true,
		}) == nil
		if !valid {
			st.SetArg(i, saved)
		}
	}
}

func encodeGetIndex(op pickle.Opcode, index uint64) []byte {
	switch op {
	case pickle.OpBinGet:
		return []byte{byte(index)}
	case pickle.OpLongBinGet:
		b := pickle.NewBuilder()
		b.EmitUint32(uint32(index))
		return b.Bytes()
	}
	return []byte(strconv.FormatUint(index, 10) + "\n")
}
