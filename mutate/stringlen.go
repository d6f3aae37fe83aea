package mutate

import (
	"math/rand/v2"

	"github.com/chazu/brine/pickle"
)

// stringlen rewrites string and bytes payloads to different lengths:
// truncated, extended, or doubled. The length prefix is re-encoded to
// match, so the mutation is structure-preserving.
type stringlen struct{}

func (stringlen) Name() string     { return "stringlen" }
func (stringlen) UnsafeOnly() bool { return false }

func (stringlen) Mutate(st *Stream, rng *rand.Rand, pol Policy) {
	for i := 0; i < st.Len(); i++ {
		if rng.Float64() >= pol.Rate {
			continue
		}
		op := st.Op(i)
		switch {
		case isStringPayload(op):
			in := st.Instruction(i)
			payload := in.Payload()
			if isUnicodePayload(op) && !pol.Unsafe && !asciiOnly(payload) {
				continue
			}
			mutated := resize(payload, rng)
			if arg, ok := encodePrefixed(op, mutated); ok {
				st.SetArg(i, arg)
			}
		case op == pickle.OpString:
			text, ok := st.Instruction(i).Line()
			if !ok {
				continue
			}
			raw, err := pickle.UnescapeString(text)
			if err != nil {
				continue
			}
			st.SetArg(i, []byte(pickle.EscapeString(resize(raw, rng))+"\n"))
		case op == pickle.OpUnicode:
			text, ok := st.Instruction(i).Line()
			if !ok {
				continue
			}
			raw, err := pickle.UnescapeUnicode(text)
			if err != nil || !asciiOnly([]byte(raw)) {
				continue
			}
			resized := string(resize([]byte(raw), rng))
			st.SetArg(i, []byte(pickle.EscapeUnicode(resized)+"\n"))
		}
	}
}

func resize(payload []byte, rng *rand.Rand) []byte {
	switch rng.IntN(3) {
	case 0: // truncate
		return append([]byte(nil), payload[:len(payload)/2]...)
	case 1: // extend
		out := append([]byte(nil), payload...)
		for n := rng.IntN(16) + 1; n > 0; n-- {
			out = append(out, 'a')
		}
		return out
	default: // double
		out := append([]byte(nil), payload...)
		return append(out, payload...)
	}
}
