package mutate

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chazu/brine/generator"
	"github.com/chazu/brine/pickle"
	"github.com/chazu/brine/validate"
)

func TestNames(t *testing.T) {
	want := []string{
		"bitflip", "boundary", "character", "lengthfield",
		"memoindex", "offbyone", "stringlen", "typeconfusion",
	}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("does-not-exist"); !errors.Is(err, ErrUnknownMutator) {
		t.Errorf("Lookup of unknown name: %v, want ErrUnknownMutator", err)
	}
	_, err := Apply([]byte("N."), nil, []string{"nope"}, DefaultPolicy())
	if !errors.Is(err, ErrUnknownMutator) {
		t.Errorf("Apply with unknown name: %v, want ErrUnknownMutator", err)
	}
}

func TestUnsafeRequired(t *testing.T) {
	_, err := Apply([]byte("N."), nil, []string{"lengthfield"}, DefaultPolicy())
	if !errors.Is(err, ErrUnsafeRequired) {
		t.Errorf("lengthfield under safe policy: %v, want ErrUnsafeRequired", err)
	}

	pol := DefaultPolicy()
	pol.Unsafe = true
	if _, err := Apply([]byte("N."), nil, []string{"lengthfield"}, pol); err != nil {
		t.Errorf("lengthfield under unsafe policy: %v", err)
	}
}

func TestAllExcludesUnsafeOnly(t *testing.T) {
	safe, err := expand([]string{"all"}, DefaultPolicy())
	if err != nil {
		t.Fatalf("expand(all, safe): %v", err)
	}
	for _, m := range safe {
		if m.UnsafeOnly() {
			t.Errorf("safe expansion includes unsafe-only %q", m.Name())
		}
	}

	pol := DefaultPolicy()
	pol.Unsafe = true
	unsafe, err := expand([]string{"all"}, pol)
	if err != nil {
		t.Fatalf("expand(all, unsafe): %v", err)
	}
	if len(unsafe) != len(safe)+1 {
		t.Errorf("unsafe expansion has %d strategies, want %d", len(unsafe), len(safe)+1)
	}
}

func TestApplyDeterministic(t *testing.T) {
	data := sample(t, 4, 17)
	pol := Policy{Rate: 0.5, Seed: 99}
	a, err := Apply(data, nil, []string{"all"}, pol)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	b, err := Apply(data, nil, []string{"all"}, pol)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("same policy seed produced different mutations")
	}
}

func TestSafeMutationsPreserveValidity(t *testing.T) {
	// The load-bearing property: a valid stream stays valid under every
	// safe strategy at full rate.
	for protocol := 0; protocol <= 5; protocol++ {
		for seed := uint64(0); seed < 10; seed++ {
			data := sample(t, protocol, seed)
			pol := Policy{Rate: 1.0, Seed: seed + 1}
			mutated, err := Apply(data, nil, []string{"all"}, pol)
			if err != nil {
				t.Fatalf("protocol %d seed %d: Apply: %v", protocol, seed, err)
			}
			if v := validate.Stream(mutated, validate.DefaultOptions()); v != nil {
				t.Errorf("protocol %d seed %d: mutated stream invalid: %v",
					protocol, seed, v)
			}
		}
	}
}

func TestSafeMutationsWithTrace(t *testing.T) {
	gen, err := generator.New(4, generator.WithSeed(55))
	if err != nil {
		t.Fatalf("generator.New: %v", err)
	}
	res, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pol := Policy{Rate: 1.0, Seed: 3}
	mutated, err := Apply(res.Bytes, res.Trace, []string{"memoindex", "stringlen"}, pol)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if v := validate.Stream(mutated, validate.DefaultOptions()); v != nil {
		t.Errorf("trace-guided mutation broke the stream: %v", v)
	}
}

func TestMemoIndexSafeTargetsPopulatedSlots(t *testing.T) {
	// NONE PUT 0, TRUE PUT 1, POP, GET 1, STOP. Retargeting the GET can
	// only land on slot 0 or 1; both exist.
	data := []byte("Np0\n0\x88p1\n0g1\n.")
	for seed := uint64(0); seed < 30; seed++ {
		mutated, err := Apply(data, nil, []string{"memoindex"}, Policy{Rate: 1.0, Seed: seed})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if v := validate.Stream(mutated, validate.DefaultOptions()); v != nil {
			t.Errorf("seed %d: %v", seed, v)
		}
	}
}

func TestLengthFieldCorrupts(t *testing.T) {
	b := pickle.NewBuilder()
	b.Emit(pickle.OpShortBinString)
	b.EmitByte(5)
	b.EmitBytes([]byte("hello"))
	b.Emit(pickle.OpStop)
	data := b.Bytes()

	pol := Policy{Rate: 1.0, Unsafe: true, Seed: 4}
	mutated, err := Apply(data, nil, []string{"lengthfield"}, pol)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if bytes.Equal(mutated, data) {
		t.Fatal("lengthfield at rate 1.0 left the stream untouched")
	}
	// The payload bytes survive even though the prefix lies about them.
	if !bytes.Contains(mutated, []byte("hello")) {
		t.Error("lengthfield rewrote the payload")
	}
}

func TestUnsafeMutationOfBrokenInput(t *testing.T) {
	// A stream whose tail does not scan still mutates under an unsafe
	// policy, and the tail is carried through.
	data := []byte{byte(pickle.OpNone), byte(pickle.OpStop), 0x01, 0x02}
	pol := Policy{Rate: 0, Unsafe: true, Seed: 1}
	mutated, err := Apply(data, nil, []string{"bitflip"}, pol)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(mutated, data) {
		t.Errorf("rate 0 mutation changed the stream: % x -> % x", data, mutated)
	}

	if _, err := Apply(data, nil, []string{"bitflip"}, Policy{Rate: 0.5, Seed: 1}); err == nil {
		t.Error("safe policy accepted an unscannable stream")
	}
}

func TestStringlenReencodesPrefix(t *testing.T) {
	b := pickle.NewBuilder()
	b.Emit(pickle.OpBinUnicode)
	b.EmitUint32(4)
	b.EmitBytes([]byte("abcd"))
	b.Emit(pickle.OpStop)

	for seed := uint64(0); seed < 10; seed++ {
		mutated, err := Apply(b.Bytes(), nil, []string{"stringlen"}, Policy{Rate: 1.0, Seed: seed})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		instrs, err := pickle.Scan(mutated)
		if err != nil {
			t.Fatalf("seed %d: mutated stream does not scan: %v", seed, err)
		}
		in := instrs[0]
		if bytes.Equal(in.Payload(), []byte("abcd")) {
			t.Errorf("seed %d: payload unchanged at rate 1.0", seed)
		}
	}
}

func sample(t *testing.T, protocol int, seed uint64) []byte {
	t.Helper()
	gen, err := generator.New(protocol, generator.WithSeed(seed))
	if err != nil {
		t.Fatalf("generator.New(%d): %v", protocol, err)
	}
	res, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return res.Bytes
}
