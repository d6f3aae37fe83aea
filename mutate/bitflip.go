package mutate

import "math/rand/v2"

// bitflip flips single bits. Safely it touches only fixed-width numeric
// arguments, where every bit pattern is still a value; unsafely it flips
// bits anywhere, opcode tags included.
type bitflip struct{}

func (bitflip) Name() string     { return "bitflip" }
func (bitflip) UnsafeOnly() bool { return false }

func (bitflip) Mutate(st *Stream, rng *rand.Rand, pol Policy) {
	for i := 0; i < st.Len(); i++ {
		if rng.Float64() >= pol.Rate {
			continue
		}
		arg := st.Arg(i)
		if pol.Unsafe {
			// Tag or any argument byte.
			if len(arg) == 0 || rng.IntN(4) == 0 {
				st.Replace(i, st.Op(i)^(1<<rng.IntN(8)), arg)
			} else {
				arg[rng.IntN(len(arg))] ^= 1 << rng.IntN(8)
			}
			continue
		}
		if !isFixedNumeric(st.Op(i)) || len(arg) == 0 {
			continue
		}
		arg[rng.IntN(len(arg))] ^= 1 << rng.IntN(8)
	}
}
