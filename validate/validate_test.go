package validate

import (
	"testing"

	"github.com/chazu/brine/pickle"
)

func check(t *testing.T, data []byte, opts Options, want Kind) {
	t.Helper()
	v := Stream(data, opts)
	if v == nil {
		t.Fatalf("Stream(% x) = valid, want %s", data, want)
	}
	if v.Kind != want {
		t.Errorf("Stream(% x) = %v, want kind %s", data, v, want)
	}
}

func TestStreamValid(t *testing.T) {
	streams := [][]byte{
		[]byte("N."),     // NONE STOP
		[]byte("I42\n."), // INT STOP
		{ // nested tuples
			byte(pickle.OpMark), byte(pickle.OpNone),
			byte(pickle.OpMark), byte(pickle.OpNone), byte(pickle.OpTuple),
			byte(pickle.OpTuple), byte(pickle.OpStop),
		},
		{byte(pickle.OpProto), 2, byte(pickle.OpNewTrue), byte(pickle.OpStop)},
	}

	for _, data := range streams {
		if v := Stream(data, DefaultOptions()); v != nil {
			t.Errorf("Stream(% x): %v, want valid", data, v)
		}
	}
}

func TestStreamMissingStop(t *testing.T) {
	check(t, []byte("N"), DefaultOptions(), KindMissingStop)
	check(t, nil, DefaultOptions(), KindMissingStop)
}

func TestStreamTrailingData(t *testing.T) {
	v := Stream([]byte("N.N"), DefaultOptions())
	if v == nil || v.Kind != KindTrailingData {
		t.Fatalf("got %v, want trailing data", v)
	}
	if v.Offset != 2 {
		t.Errorf("offset = %d, want 2", v.Offset)
	}
}

func TestStreamNonSingletonStack(t *testing.T) {
	check(t, []byte("NN."), DefaultOptions(), KindNonSingletonStack)
}

func TestStreamUnmatchedMark(t *testing.T) {
	// Open mark at STOP.
	check(t, []byte("(N."), DefaultOptions(), KindUnmatchedMark)
	// TUPLE with no mark anywhere.
	check(t, []byte("Nt."), DefaultOptions(), KindUnmatchedMark)
}

func TestStreamStackUnderflow(t *testing.T) {
	data := []byte{byte(pickle.OpProto), 2, byte(pickle.OpTuple2), byte(pickle.OpStop)}
	check(t, data, DefaultOptions(), KindStackUnderflow)
}

func TestStreamUnknownMemo(t *testing.T) {
	v := Stream([]byte("g0\n."), DefaultOptions())
	if v == nil || v.Kind != KindUnknownMemo {
		t.Fatalf("got %v, want unknown memo", v)
	}
	if v.Offset != 0 {
		t.Errorf("offset = %d, want 0", v.Offset)
	}

	// A populated slot reads back fine.
	if v := Stream([]byte("Np0\n0g0\n."), DefaultOptions()); v != nil {
		t.Errorf("put-then-get stream: %v, want valid", v)
	}
}

func TestStreamTruncated(t *testing.T) {
	check(t, []byte{byte(pickle.OpProto)}, DefaultOptions(), KindTruncated)
	check(t, []byte{byte(pickle.OpShortBinString), 9, 'a'}, DefaultOptions(), KindTruncated)
}

func TestStreamIllegalOpcode(t *testing.T) {
	// An unknown tag byte.
	check(t, []byte{0x01}, DefaultOptions(), KindIllegalOpcode)

	// MEMOIZE is a protocol 4 opcode; a PROTO 2 stream may not use it.
	data := []byte{
		byte(pickle.OpProto), 2, byte(pickle.OpNone),
		byte(pickle.OpMemoize), byte(pickle.OpStop),
	}
	check(t, data, DefaultOptions(), KindIllegalOpcode)

	// The same stream without a protocol claim passes.
	if v := Stream(data[2:], DefaultOptions()); v != nil {
		t.Errorf("PROTO-less stream: %v, want valid", v)
	}

	// Forcing the protocol restores the check.
	opts := DefaultOptions()
	opts.Protocol = 2
	check(t, data[2:], opts, KindIllegalOpcode)
}

func TestStreamGatedOpcode(t *testing.T) {
	data := []byte{
		byte(pickle.OpProto), 2,
		byte(pickle.OpExt1), 1,
		byte(pickle.OpStop),
	}
	check(t, data, DefaultOptions(), KindGatedOpcode)

	opts := DefaultOptions()
	opts.AllowExt = true
	if v := Stream(data, opts); v != nil {
		t.Errorf("EXT1 with extensions allowed: %v, want valid", v)
	}
}

func TestStreamFrameLength(t *testing.T) {
	b := pickle.NewBuilder()
	b.Emit(pickle.OpProto)
	b.EmitByte(4)
	pos := b.ReserveFrame()
	b.Emit(pickle.OpNone)
	b.Emit(pickle.OpStop)
	b.PatchFrame(pos)
	good := b.Bytes()

	if v := Stream(good, DefaultOptions()); v != nil {
		t.Fatalf("well-framed stream: %v, want valid", v)
	}

	bad := append([]byte(nil), good...)
	bad[pos+1]++ // off-by-one frame length
	v := Stream(bad, DefaultOptions())
	if v == nil || v.Kind != KindFrameLength {
		t.Fatalf("got %v, want frame length mismatch", v)
	}
	if v.Offset != pos {
		t.Errorf("offset = %d, want %d", v.Offset, pos)
	}
}

func TestStreamBadOperand(t *testing.T) {
	// REDUCE with a non-callable.
	data := []byte{
		byte(pickle.OpProto), 2, byte(pickle.OpNone),
		byte(pickle.OpEmptyTuple), byte(pickle.OpReduce), byte(pickle.OpStop),
	}
	check(t, data, DefaultOptions(), KindBadOperand)

	// DICT closing over an odd item count.
	odd := []byte{byte(pickle.OpMark), byte(pickle.OpNone), byte(pickle.OpDict), byte(pickle.OpStop)}
	check(t, odd, DefaultOptions(), KindBadOperand)
}

func TestViolationError(t *testing.T) {
	v := &Violation{Kind: KindTrailingData, Offset: 7}
	want := "validate: trailing data at offset 7"
	if got := v.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
