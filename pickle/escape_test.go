package pickle

import (
	"bytes"
	"testing"
)

func TestEscapeStringRoundTrip(t *testing.T) {
	tests := [][]byte{
		[]byte(""),
		[]byte("plain"),
		[]byte("with 'quotes'"),
		[]byte(`back\slash`),
		[]byte("line\nbreak\r\ttab"),
		{0x00, 0x01, 0x7f, 0x80, 0xff},
		[]byte("mixed \\' \n \x00 end"),
	}

	for _, in := range tests {
		escaped := EscapeString(in)
		got, err := UnescapeString(escaped)
		if err != nil {
			t.Errorf("UnescapeString(%q): %v", escaped, err)
			continue
		}
		if !bytes.Equal(got, in) {
			t.Errorf("round trip of %q via %q = %q", in, escaped, got)
		}
	}
}

func TestEscapeStringForm(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte("abc"), `'abc'`},
		{[]byte("a'b"), `'a\'b'`},
		{[]byte("a\nb"), `'a\nb'`},
		{[]byte{0x00}, `'\x00'`},
		{[]byte{0xfe}, `'\xfe'`},
	}

	for _, tt := range tests {
		if got := EscapeString(tt.in); got != tt.want {
			t.Errorf("EscapeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnescapeStringErrors(t *testing.T) {
	tests := []string{
		"",
		"unquoted",
		"'dangling\\",
		"'bad hex \\xzz'",
		"'unknown \\q'",
	}

	for _, in := range tests {
		if _, err := UnescapeString(in); err == nil {
			t.Errorf("UnescapeString(%q) accepted malformed input", in)
		}
	}
}

func TestEscapeUnicodeRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"plain text",
		"back\\slash",
		"line\nbreak",
		"cr\rnul\x00sub\x1a",
		"ünïcøde ☃",
	}

	for _, in := range tests {
		escaped := EscapeUnicode(in)
		got, err := UnescapeUnicode(escaped)
		if err != nil {
			t.Errorf("UnescapeUnicode(%q): %v", escaped, err)
			continue
		}
		if got != in {
			t.Errorf("round trip of %q via %q = %q", in, escaped, got)
		}
	}
}

func TestEscapeUnicodeLatin1(t *testing.T) {
	// The codec decodes unescaped bytes as latin-1, one codepoint per
	// byte, so U+0080..U+00FF must come out escaped rather than in UTF-8.
	for r := rune(0x80); r <= 0xff; r++ {
		in := string(r)
		escaped := EscapeUnicode(in)
		for _, b := range []byte(escaped) {
			if b > 0x7f {
				t.Fatalf("EscapeUnicode(%q) = %q contains byte %#x", in, escaped, b)
			}
		}
		got, err := UnescapeUnicode(escaped)
		if err != nil {
			t.Fatalf("UnescapeUnicode(%q): %v", escaped, err)
		}
		if got != in {
			t.Errorf("round trip of U+%04X via %q = %q", r, escaped, got)
		}
	}
}

func TestEscapeUnicodeSupplementary(t *testing.T) {
	in := "beyond \U0001f600 the basic plane"
	escaped := EscapeUnicode(in)
	got, err := UnescapeUnicode(escaped)
	if err != nil {
		t.Fatalf("UnescapeUnicode(%q): %v", escaped, err)
	}
	if got != in {
		t.Errorf("round trip of %q via %q = %q", in, escaped, got)
	}
}

func TestEscapeUnicodeNoNewline(t *testing.T) {
	// The escaped form terminates a line, so it can never contain one.
	for _, in := range []string{"a\nb", "\r", "\\", "x\n\n\ny"} {
		escaped := EscapeUnicode(in)
		if bytes.ContainsAny([]byte(escaped), "\n\r") {
			t.Errorf("EscapeUnicode(%q) = %q still contains a line break", in, escaped)
		}
	}
}
