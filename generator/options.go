package generator

import "fmt"

// FramingMode controls whether protocol 4+ streams carry a FRAME header.
type FramingMode int

const (
	FramingAuto   FramingMode = iota // coin flip per stream
	FramingAlways                    // every 4+ stream is framed
	FramingNever                     // framing disabled
)

type config struct {
	seed      uint64
	seedSet   bool
	minOps    int
	maxOps    int
	framing   FramingMode
	extCodes  []uint32
	buffers   bool
	globals   [][2]string
	maxString int
}

// Option configures a Generator.
type Option func(*config)

// WithSeed fixes the random seed. Two generators built with the same
// protocol, options, and seed produce identical streams.
func WithSeed(seed uint64) Option {
	return func(c *config) {
		c.seed = seed
		c.seedSet = true
	}
}

// WithOpcodeRange sets the inclusive bounds on how many opcodes the
// random emission phase produces before the stream is closed.
func WithOpcodeRange(min, max int) Option {
	return func(c *config) {
		c.minOps = min
		c.maxOps = max
	}
}

// WithFraming sets the framing mode for protocol 4+ streams.
func WithFraming(mode FramingMode) Option {
	return func(c *config) {
		c.framing = mode
	}
}

// WithExtCodes enables the EXT1/EXT2/EXT4 opcodes, drawing codes from
// the given extension-registry pool. Codes must be positive.
func WithExtCodes(codes ...uint32) Option {
	return func(c *config) {
		c.extCodes = append(c.extCodes[:0], codes...)
	}
}

// WithBuffers enables the protocol 5 out-of-band buffer opcodes.
func WithBuffers(enabled bool) Option {
	return func(c *config) {
		c.buffers = enabled
	}
}

// WithGlobals replaces the module/name pool used by GLOBAL and INST.
func WithGlobals(pairs ...[2]string) Option {
	return func(c *config) {
		c.globals = append(c.globals[:0], pairs...)
	}
}

// defaultGlobals is the module/name pool used when WithGlobals is not given.
var defaultGlobals = [][2]string{
	{"builtins", "object"},
	{"builtins", "list"},
	{"builtins", "dict"},
	{"builtins", "set"},
	{"builtins", "frozenset"},
	{"collections", "OrderedDict"},
}

func defaultConfig() config {
	return config{
		minOps:    60,
		maxOps:    300,
		framing:   FramingAuto,
		globals:   defaultGlobals,
		maxString: 24,
	}
}

func (c *config) validate() error {
	if c.minOps < 1 {
		return fmt.Errorf("generator: opcode range minimum %d must be at least 1", c.minOps)
	}
	if c.maxOps < c.minOps {
		return fmt.Errorf("generator: opcode range [%d, %d] is inverted", c.minOps, c.maxOps)
	}
	for _, code := range c.extCodes {
		if code == 0 {
			return fmt.Errorf("generator: extension codes must be positive")
		}
	}
	return nil
}
