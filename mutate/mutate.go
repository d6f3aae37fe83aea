// Package mutate corrupts pickle byte streams in controlled ways. Safe
// strategies preserve structural validity so the result still decodes;
// unsafe strategies deliberately break framing, lengths, and machine
// invariants for negative testing.
package mutate

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/chazu/brine/generator"
	"github.com/chazu/brine/pickle"
)

// Sentinel errors for mutator selection.
var (
	ErrUnknownMutator = errors.New("mutate: unknown mutator")
	ErrUnsafeRequired = errors.New("mutate: strategy requires the unsafe policy")
)

// Policy controls how aggressively and how destructively mutation runs.
type Policy struct {
	// Rate is the per-site mutation probability in [0, 1].
	Rate float64
	// Unsafe permits structure-breaking mutations.
	Unsafe bool
	// Seed fixes the random sequence.
	Seed uint64
}

// DefaultPolicy mutates one site in ten, safely.
func DefaultPolicy() Policy {
	return Policy{Rate: 0.1}
}

// Mutator is one named corruption strategy.
type Mutator interface {
	// Name is the identifier used on the command line and in manifests.
	Name() string
	// UnsafeOnly marks strategies that cannot preserve validity.
	UnsafeOnly() bool
	// Mutate edits the stream in place.
	Mutate(st *Stream, rng *rand.Rand, pol Policy)
}

// registry holds every known strategy by name.
var registry = map[string]Mutator{}

func register(m Mutator) {
	registry[m.Name()] = m
}

func init() {
	register(bitflip{})
	register(boundary{})
	register(offbyone{})
	register(stringlen{})
	register(character{})
	register(memoindex{})
	register(typeconfusion{})
	register(lengthfield{})
}

// Names returns every registered strategy name, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup resolves one strategy by name.
func Lookup(name string) (Mutator, error) {
	m, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMutator, name)
	}
	return m, nil
}

// expand resolves a selection. The name "all" selects every strategy the
// policy permits; naming an unsafe-only strategy under a safe policy is
// an error.
func expand(selection []string, pol Policy) ([]Mutator, error) {
	var out []Mutator
	for _, name := range selection {
		if name == "all" {
			for _, n := range Names() {
				m := registry[n]
				if m.UnsafeOnly() && !pol.Unsafe {
					continue
				}
				out = append(out, m)
			}
			continue
		}
		m, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if m.UnsafeOnly() && !pol.Unsafe {
			return nil, fmt.Errorf("%w: %q", ErrUnsafeRequired, name)
		}
		out = append(out, m)
	}
	return out, nil
}

// Apply runs the selected strategies over a stream and returns the
// mutated bytes. The trace, when non-nil, lets strategies reuse
// generation-time facts (memo indices, argument spans) instead of
// re-deriving them. Under a safe policy the output of a structurally
// valid input remains structurally valid.
func Apply(data []byte, trace generator.Trace, selection []string, pol Policy) ([]byte, error) {
	mutators, err := expand(selection, pol)
	if err != nil {
		return nil, err
	}
	instrs, err := pickle.Scan(data)
	if err != nil {
		if !pol.Unsafe {
			return nil, fmt.Errorf("mutate: cannot scan input: %w", err)
		}
		// An already-broken stream under an unsafe policy still gets
		// mutated over whatever prefix did scan; the tail is kept as is.
	}
	var rest []byte
	if parsed := scannedLen(instrs); parsed < len(data) {
		rest = data[parsed:]
	}
	st := newStream(instrs, rest, trace)
	rng := rand.New(rand.NewPCG(pol.Seed, 0xda3e39cb94b95bdb))
	for _, m := range mutators {
		m.Mutate(st, rng, pol)
	}
	return st.Encode(!pol.Unsafe), nil
}

// scannedLen returns how many bytes the decoded instructions cover.
func scannedLen(instrs []pickle.Instruction) int {
	if len(instrs) == 0 {
		return 0
	}
	last := instrs[len(instrs)-1]
	return last.Pos + last.Len()
}
