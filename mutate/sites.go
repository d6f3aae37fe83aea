package mutate

import (
	"math/rand/v2"
	"strconv"

	"github.com/chazu/brine/pickle"
)

// ---------------------------------------------------------------------------
// Site classification and argument synthesis shared by the strategies
// ---------------------------------------------------------------------------

// isFixedNumeric reports opcodes whose argument is a fixed-width number,
// where any bit pattern is still a decodable value.
func isFixedNumeric(op pickle.Opcode) bool {
	switch op {
	case pickle.OpBinInt, pickle.OpBinInt1, pickle.OpBinInt2, pickle.OpBinFloat:
		return true
	}
	return false
}

// isTextNumber reports opcodes carrying a decimal number as text.
func isTextNumber(op pickle.Opcode) bool {
	return op == pickle.OpInt || op == pickle.OpLong
}

// isStringPayload reports opcodes with a length-prefixed byte payload
// that is free-form data rather than an encoded number.
func isStringPayload(op pickle.Opcode) bool {
	switch op {
	case pickle.OpShortBinString, pickle.OpBinString,
		pickle.OpShortBinBytes, pickle.OpBinBytes, pickle.OpBinBytes8,
		pickle.OpByteArray8,
		pickle.OpShortBinUnicode, pickle.OpBinUnicode, pickle.OpBinUnicode8:
		return true
	}
	return false
}

// isUnicodePayload reports payload opcodes whose bytes must stay valid text.
func isUnicodePayload(op pickle.Opcode) bool {
	switch op {
	case pickle.OpShortBinUnicode, pickle.OpBinUnicode, pickle.OpBinUnicode8:
		return true
	}
	return false
}

// isMemoGet reports the memo-read opcodes.
func isMemoGet(op pickle.Opcode) bool {
	return op == pickle.OpGet || op == pickle.OpBinGet || op == pickle.OpLongBinGet
}

// textIntParts splits a decimal text argument into its value and suffix
// ("L" for LONG), so a rewritten value keeps the spelling.
func textIntParts(op pickle.Opcode, arg []byte) (int64, string, bool) {
	if len(arg) == 0 || arg[len(arg)-1] != '\n' {
		return 0, "", false
	}
	text := string(arg[:len(arg)-1])
	suffix := ""
	if op == pickle.OpLong && len(text) > 0 && text[len(text)-1] == 'L' {
		suffix = "L"
		text = text[:len(text)-1]
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return v, suffix, true
}

func encodeTextInt(v int64, suffix string) []byte {
	return []byte(strconv.FormatInt(v, 10) + suffix + "\n")
}

// encodePrefixed builds a length-prefixed argument for a payload opcode.
// The second result is false when the payload cannot fit the prefix width.
func encodePrefixed(op pickle.Opcode, payload []byte) ([]byte, bool) {
	info, _ := op.Info()
	b := pickle.NewBuilder()
	switch info.Arg {
	case pickle.ArgBytes1:
		if len(payload) > 0xff {
			return nil, false
		}
		b.EmitByte(byte(len(payload)))
	case pickle.ArgBytes4:
		b.EmitUint32(uint32(len(payload)))
	case pickle.ArgBytesI4:
		b.EmitInt32(int32(len(payload)))
	case pickle.ArgBytes8:
		b.EmitUint64(uint64(len(payload)))
	default:
		return nil, false
	}
	b.EmitBytes(payload)
	return b.Bytes(), true
}

// asciiOnly reports whether every byte is printable ASCII.
func asciiOnly(p []byte) bool {
	for _, c := range p {
		if c < 0x20 || c >= 0x7f {
			return false
		}
	}
	return true
}

const printable = " !\"#$%&'()*+,-./0123456789:;<=>?@ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"[\\]^_`abcdefghijklmnopqrstuvwxyz{|}~"

func randPrintable(rng *rand.Rand) byte {
	return printable[rng.IntN(len(printable))]
}
