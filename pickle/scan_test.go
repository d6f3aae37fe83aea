package pickle

import (
	"bytes"
	"errors"
	"testing"
)

func TestScanRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Emit(OpProto)
	b.EmitByte(2)
	b.Emit(OpMark)
	b.Emit(OpBinInt)
	b.EmitInt32(-1234)
	b.Emit(OpShortBinString)
	b.EmitByte(3)
	b.EmitBytes([]byte("abc"))
	b.Emit(OpTuple)
	b.Emit(OpStop)
	data := b.Bytes()

	instrs, err := Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	wantOps := []Opcode{OpProto, OpMark, OpBinInt, OpShortBinString, OpTuple, OpStop}
	if len(instrs) != len(wantOps) {
		t.Fatalf("Scan decoded %d instructions, want %d", len(instrs), len(wantOps))
	}
	for i, in := range instrs {
		if in.Op != wantOps[i] {
			t.Errorf("instruction %d = %s, want %s", i, in.Op, wantOps[i])
		}
	}

	// Re-encoding reproduces the input byte for byte.
	var out []byte
	for _, in := range instrs {
		out = in.Encode(out)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("re-encoded stream differs:\n got %x\nwant %x", out, data)
	}
}

func TestScanTextArguments(t *testing.T) {
	data := []byte("I42\ncbuiltins\nobject\n.")
	instrs, err := Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(instrs) != 3 {
		t.Fatalf("Scan decoded %d instructions, want 3", len(instrs))
	}
	if text, ok := instrs[0].Line(); !ok || text != "42" {
		t.Errorf("INT argument = %q, %v, want \"42\"", text, ok)
	}
	if got := string(instrs[1].Arg); got != "builtins\nobject\n" {
		t.Errorf("GLOBAL argument = %q", got)
	}
}

func TestScanPayload(t *testing.T) {
	b := NewBuilder()
	b.Emit(OpBinUnicode)
	b.EmitUint32(5)
	b.EmitBytes([]byte("hello"))
	instrs, err := Scan(b.Bytes())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := string(instrs[0].Payload()); got != "hello" {
		t.Errorf("Payload() = %q, want \"hello\"", got)
	}
}

func TestScanTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"proto missing arg", []byte{byte(OpProto)}},
		{"binint short", []byte{byte(OpBinInt), 0x01, 0x02}},
		{"short string past end", []byte{byte(OpShortBinString), 10, 'a', 'b'}},
		{"line without newline", []byte("I42")},
		{"frame short length", []byte{byte(OpFrame), 1, 2, 3}},
		{"bytes8 huge length", append([]byte{byte(OpBinBytes8)}, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f)},
	}

	for _, tt := range tests {
		_, err := Scan(tt.data)
		var scanErr *ScanError
		if !errors.As(err, &scanErr) {
			t.Errorf("%s: error = %v, want *ScanError", tt.name, err)
			continue
		}
		if scanErr.Unknown {
			t.Errorf("%s: reported unknown opcode, want truncation", tt.name)
		}
	}
}

func TestScanUnknownOpcode(t *testing.T) {
	_, err := Scan([]byte{byte(OpNone), 0xff})
	var scanErr *ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("error = %v, want *ScanError", err)
	}
	if !scanErr.Unknown || scanErr.Offset != 1 {
		t.Errorf("ScanError = %+v, want unknown at offset 1", scanErr)
	}
}

func TestBuilderFramePatch(t *testing.T) {
	b := NewBuilder()
	b.Emit(OpProto)
	b.EmitByte(4)
	pos := b.ReserveFrame()
	b.Emit(OpNone)
	b.Emit(OpStop)
	b.PatchFrame(pos)

	instrs, err := Scan(b.Bytes())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if instrs[1].Op != OpFrame {
		t.Fatalf("instruction 1 = %s, want FRAME", instrs[1].Op)
	}
	length, ok := instrs[1].UintArg()
	if !ok || length != 2 {
		t.Errorf("FRAME length = %d, %v, want 2 (NONE + STOP)", length, ok)
	}
}
