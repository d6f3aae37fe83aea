package mutate

import (
	"math/rand/v2"

	"github.com/chazu/brine/pickle"
)

// character replaces single payload bytes. Bytes payloads take any
// value; text payloads stay printable ASCII so the encoding holds.
type character struct{}

func (character) Name() string     { return "character" }
func (character) UnsafeOnly() bool { return false }

func (character) Mutate(st *Stream, rng *rand.Rand, pol Policy) {
	for i := 0; i < st.Len(); i++ {
		if rng.Float64() >= pol.Rate {
			continue
		}
		op := st.Op(i)
		switch {
		case isStringPayload(op):
			payload := st.Instruction(i).Payload()
			if len(payload) == 0 {
				continue
			}
			if isUnicodePayload(op) {
				if !pol.Unsafe && !asciiOnly(payload) {
					continue
				}
				payload[rng.IntN(len(payload))] = randPrintable(rng)
			} else {
				payload[rng.IntN(len(payload))] = byte(rng.UintN(256))
			}
		case op == pickle.OpString:
			text, ok := st.Instruction(i).Line()
			if !ok {
				continue
			}
			raw, err := pickle.UnescapeString(text)
			if err != nil || len(raw) == 0 {
				continue
			}
			raw[rng.IntN(len(raw))] = byte(rng.UintN(256))
			st.SetArg(i, []byte(pickle.EscapeString(raw)+"\n"))
		case op == pickle.OpUnicode:
			text, ok := st.Instruction(i).Line()
			if !ok {
				continue
			}
			raw, err := pickle.UnescapeUnicode(text)
			if err != nil || len(raw) == 0 || !asciiOnly([]byte(raw)) {
				continue
			}
			mutated := []byte(raw)
			mutated[rng.IntN(len(mutated))] = randPrintable(rng)
			st.SetArg(i, []byte(pickle.EscapeUnicode(string(mutated))+"\n"))
		}
	}
}
