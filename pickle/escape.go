package pickle

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Text-protocol argument escaping
// ---------------------------------------------------------------------------

// EscapeString renders a byte string as a quoted STRING argument. The
// result is wrapped in single quotes with backslash escapes for the quote
// character, backslashes, and non-printable bytes, so that
// UnescapeString(EscapeString(s)) == s for every input.
func EscapeString(s []byte) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for _, c := range s {
		switch {
		case c == '\'':
			sb.WriteString(`\'`)
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// UnescapeString decodes a quoted STRING argument produced by
// EscapeString or by a Python string repr using single quotes.
func UnescapeString(s string) ([]byte, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return nil, fmt.Errorf("pickle: string argument not quoted: %q", s)
	}
	body := s[1 : len(s)-1]
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(body) {
			return nil, fmt.Errorf("pickle: dangling escape in string argument")
		}
		switch body[i] {
		case '\'':
			out = append(out, '\'')
		case '\\':
			out = append(out, '\\')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'x':
			if i+2 >= len(body) {
				return nil, fmt.Errorf("pickle: truncated hex escape in string argument")
			}
			hi, ok1 := hexVal(body[i+1])
			lo, ok2 := hexVal(body[i+2])
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("pickle: bad hex escape %q", body[i-1:i+3])
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			return nil, fmt.Errorf("pickle: unknown escape \\%c", body[i])
		}
	}
	return out, nil
}

// EscapeUnicode renders text as a UNICODE argument in raw-unicode-escape
// form: backslash, newline, carriage return, NUL, and 0x1a become \uXXXX
// sequences so the line terminator stays unambiguous. The codec treats
// unescaped bytes as latin-1, one codepoint per byte, so every rune
// above 0x7f is escaped too instead of being written in UTF-8.
func EscapeUnicode(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\u005c`)
		case '\n':
			sb.WriteString(`\u000a`)
		case '\r':
			sb.WriteString(`\u000d`)
		case 0x00:
			sb.WriteString(`\u0000`)
		case 0x1a:
			sb.WriteString(`\u001a`)
		default:
			switch {
			case r > 0xffff:
				fmt.Fprintf(&sb, `\U%08x`, r)
			case r > 0x7f:
				fmt.Fprintf(&sb, `\u%04x`, r)
			default:
				sb.WriteRune(r)
			}
		}
	}
	return sb.String()
}

// UnescapeUnicode decodes a raw-unicode-escape UNICODE argument.
func UnescapeUnicode(s string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		digits := 0
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'u':
				digits = 4
			case 'U':
				digits = 8
			}
		}
		if digits == 0 || i+1+digits >= len(s) {
			sb.WriteByte(c)
			continue
		}
		var r rune
		ok := true
		for _, h := range []byte(s[i+2 : i+2+digits]) {
			v, hok := hexVal(h)
			if !hok {
				ok = false
				break
			}
			r = r<<4 | rune(v)
		}
		if !ok {
			// raw-unicode-escape leaves malformed sequences alone
			sb.WriteByte(c)
			continue
		}
		sb.WriteRune(r)
		i += 1 + digits
	}
	return sb.String(), nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
