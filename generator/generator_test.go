package generator

import (
	"bytes"
	"testing"

	"github.com/chazu/brine/pickle"
	"github.com/chazu/brine/validate"
)

func generate(t *testing.T, protocol int, opts ...Option) *Result {
	t.Helper()
	gen, err := New(protocol, opts...)
	if err != nil {
		t.Fatalf("New(%d): %v", protocol, err)
	}
	res, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate(protocol %d): %v", protocol, err)
	}
	return res
}

func TestGenerateDeterministic(t *testing.T) {
	// Same protocol, options, and seed: identical bytes and trace.
	opts := []Option{WithSeed(42), WithOpcodeRange(10, 10)}
	a := generate(t, 3, opts...)
	b := generate(t, 3, opts...)

	if !bytes.Equal(a.Bytes, b.Bytes) {
		t.Errorf("same seed produced different streams:\n a %x\n b %x", a.Bytes, b.Bytes)
	}
	if len(a.Trace) != len(b.Trace) {
		t.Fatalf("trace lengths differ: %d vs %d", len(a.Trace), len(b.Trace))
	}
	for i := range a.Trace {
		if a.Trace[i] != b.Trace[i] {
			t.Errorf("trace entry %d differs: %+v vs %+v", i, a.Trace[i], b.Trace[i])
		}
	}
}

func TestGenerateSeedsDiffer(t *testing.T) {
	a := generate(t, 3, WithSeed(1))
	b := generate(t, 3, WithSeed(2))
	if bytes.Equal(a.Bytes, b.Bytes) {
		t.Error("different seeds produced identical streams")
	}
}

func TestGenerateAllProtocolsValid(t *testing.T) {
	for protocol := 0; protocol <= 5; protocol++ {
		for seed := uint64(0); seed < 20; seed++ {
			res := generate(t, protocol, WithSeed(seed))
			if v := validate.Stream(res.Bytes, validate.DefaultOptions()); v != nil {
				t.Errorf("protocol %d seed %d: %v", protocol, seed, v)
			}
		}
	}
}

func TestGenerateTermination(t *testing.T) {
	res := generate(t, 4, WithSeed(7))
	instrs, err := pickle.Scan(res.Bytes)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	stops := 0
	for _, in := range instrs {
		if in.Op == pickle.OpStop {
			stops++
		}
	}
	if stops != 1 {
		t.Errorf("stream has %d STOPs, want 1", stops)
	}
	if last := instrs[len(instrs)-1]; last.Op != pickle.OpStop {
		t.Errorf("final instruction = %s, want STOP", last.Op)
	}
}

func TestGenerateProtocolGating(t *testing.T) {
	for protocol := 0; protocol <= 5; protocol++ {
		version := pickle.Version(protocol)
		for seed := uint64(100); seed < 110; seed++ {
			res := generate(t, protocol, WithSeed(seed))
			instrs, err := pickle.Scan(res.Bytes)
			if err != nil {
				t.Fatalf("protocol %d: Scan: %v", protocol, err)
			}
			for _, in := range instrs {
				if !in.Op.LegalAt(version) {
					t.Errorf("protocol %d stream contains %s", protocol, in.Op)
				}
			}
		}
	}
}

func TestGenerateEarlyProtocolCloseOut(t *testing.T) {
	// Protocols 0 and 1 predate TUPLE2/TUPLE3, so close-out must fold
	// surplus values with POP instead.
	for protocol := 0; protocol <= 1; protocol++ {
		version := pickle.Version(protocol)
		for seed := uint64(0); seed < 50; seed++ {
			res := generate(t, protocol, WithSeed(seed))
			for _, in := range mustScan(t, res.Bytes) {
				if !in.Op.LegalAt(version) {
					t.Fatalf("protocol %d seed %d: %s at %d predates the protocol",
						protocol, seed, in.Op, in.Pos)
				}
			}
			if v := validate.Stream(res.Bytes, validate.DefaultOptions()); v != nil {
				t.Errorf("protocol %d seed %d: %v", protocol, seed, v)
			}
		}
	}
}

func TestGenerateStringArgsASCII(t *testing.T) {
	// STRING carries escaped text and decoders reject high bytes in it,
	// so the synthesized payloads stay ASCII. Raw bytes belong to the
	// binary bytes opcodes only.
	seen := 0
	for seed := uint64(0); seed < 40; seed++ {
		res := generate(t, 1, WithSeed(seed))
		for _, in := range mustScan(t, res.Bytes) {
			if in.Op != pickle.OpString {
				continue
			}
			seen++
			line, ok := in.Line()
			if !ok {
				t.Fatalf("seed %d: STRING at %d has no line argument", seed, in.Pos)
			}
			text, err := pickle.UnescapeString(line)
			if err != nil {
				t.Fatalf("seed %d: UnescapeString(%q): %v", seed, line, err)
			}
			for _, b := range text {
				if b > 0x7f {
					t.Errorf("seed %d: STRING at %d decodes to non-ASCII byte %#x",
						seed, in.Pos, b)
				}
			}
		}
	}
	if seen == 0 {
		t.Fatal("no STRING opcodes generated across 40 seeds")
	}
}

func TestGenerateProtoPrologue(t *testing.T) {
	for protocol := 2; protocol <= 5; protocol++ {
		res := generate(t, protocol, WithSeed(3))
		if len(res.Bytes) < 2 || res.Bytes[0] != byte(pickle.OpProto) ||
			res.Bytes[1] != byte(protocol) {
			t.Errorf("protocol %d stream does not start with PROTO %d: % x",
				protocol, protocol, res.Bytes[:2])
		}
	}
	res := generate(t, 1, WithSeed(3))
	if res.Bytes[0] == byte(pickle.OpProto) {
		t.Error("protocol 1 stream starts with PROTO")
	}
}

func TestGenerateFraming(t *testing.T) {
	res := generate(t, 4, WithSeed(9), WithFraming(FramingAlways))
	instrs, err := pickle.Scan(res.Bytes)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(instrs) < 2 || instrs[1].Op != pickle.OpFrame {
		t.Fatal("framed stream has no FRAME after PROTO")
	}
	// The claimed length covers everything after the header, STOP included.
	length, _ := instrs[1].UintArg()
	want := uint64(len(res.Bytes) - (instrs[1].Pos + 9))
	if length != want {
		t.Errorf("FRAME length = %d, want %d", length, want)
	}
	if v := validate.Stream(res.Bytes, validate.DefaultOptions()); v != nil {
		t.Errorf("framed stream invalid: %v", v)
	}

	res = generate(t, 5, WithSeed(9), WithFraming(FramingNever))
	for _, in := range mustScan(t, res.Bytes) {
		if in.Op == pickle.OpFrame {
			t.Error("FramingNever stream contains FRAME")
		}
	}
}

func TestGenerateExtAndBuffers(t *testing.T) {
	opts := validate.DefaultOptions()
	opts.AllowExt = true
	opts.AllowBuffers = true
	for seed := uint64(0); seed < 10; seed++ {
		res := generate(t, 5, WithSeed(seed), WithExtCodes(1, 300, 70000), WithBuffers(true))
		if v := validate.Stream(res.Bytes, opts); v != nil {
			t.Errorf("seed %d: %v", seed, v)
		}
	}
}

func TestGenerateOpcodeRange(t *testing.T) {
	// PROTO, FRAME, close-out, and STOP sit outside the random budget,
	// so the trace is at least min+1 entries and bounded above by
	// max plus the bookkeeping.
	res := generate(t, 2, WithSeed(5), WithOpcodeRange(30, 30))
	if len(res.Trace) < 31 {
		t.Errorf("trace has %d entries, want at least 31", len(res.Trace))
	}
}

func TestGenerateRepeatedCallsFresh(t *testing.T) {
	gen, err := New(3, WithSeed(11))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if bytes.Equal(a.Bytes, b.Bytes) {
		t.Error("consecutive samples from one generator are identical")
	}
	for _, res := range []*Result{a, b} {
		if v := validate.Stream(res.Bytes, validate.DefaultOptions()); v != nil {
			t.Errorf("%v", v)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(6); err == nil {
		t.Error("New(6) accepted an unsupported protocol")
	}
	if _, err := New(-1); err == nil {
		t.Error("New(-1) accepted an unsupported protocol")
	}
	if _, err := New(2, WithOpcodeRange(10, 5)); err == nil {
		t.Error("inverted opcode range accepted")
	}
	if _, err := New(2, WithOpcodeRange(0, 5)); err == nil {
		t.Error("zero minimum accepted")
	}
	if _, err := New(2, WithExtCodes(0)); err == nil {
		t.Error("zero extension code accepted")
	}
}

func TestTraceRoundTrip(t *testing.T) {
	res := generate(t, 4, WithSeed(21))
	data, err := MarshalTrace(res.Trace)
	if err != nil {
		t.Fatalf("MarshalTrace: %v", err)
	}
	back, err := UnmarshalTrace(data)
	if err != nil {
		t.Fatalf("UnmarshalTrace: %v", err)
	}
	if len(back) != len(res.Trace) {
		t.Fatalf("round trip has %d entries, want %d", len(back), len(res.Trace))
	}
	for i := range back {
		if back[i] != res.Trace[i] {
			t.Errorf("entry %d = %+v, want %+v", i, back[i], res.Trace[i])
		}
	}
}

func TestTraceCoversStream(t *testing.T) {
	res := generate(t, 4, WithSeed(33))
	instrs := mustScan(t, res.Bytes)
	if len(instrs) != len(res.Trace) {
		t.Fatalf("trace has %d entries for %d instructions", len(res.Trace), len(instrs))
	}
	for i, in := range instrs {
		e := res.Trace[i]
		if e.Offset != in.Pos || e.Op != in.Op || e.ArgLen != len(in.Arg) {
			t.Errorf("trace entry %d = %+v, instruction = %s at %d (%d arg bytes)",
				i, e, in.Op, in.Pos, len(in.Arg))
		}
	}
}

func mustScan(t *testing.T, data []byte) []pickle.Instruction {
	t.Helper()
	instrs, err := pickle.Scan(data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return instrs
}
