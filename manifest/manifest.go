// Package manifest handles brine.toml campaign configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a brine.toml campaign configuration.
type Manifest struct {
	Generation Generation `toml:"generation"`
	Mutation   Mutation   `toml:"mutation"`
	Output     Output     `toml:"output"`
	Features   Features   `toml:"features"`

	// Dir is the directory containing the brine.toml file (set at load time).
	Dir string `toml:"-"`
}

// Generation configures the stream generator.
type Generation struct {
	Protocol   int    `toml:"protocol"`
	MinOpcodes int    `toml:"min-opcodes"`
	MaxOpcodes int    `toml:"max-opcodes"`
	Seed       uint64 `toml:"seed"`
	Framing    string `toml:"framing"` // auto, always, never
}

// Mutation configures the mutation pass.
type Mutation struct {
	Mutators []string `toml:"mutators"`
	Rate     float64  `toml:"rate"`
	Unsafe   bool     `toml:"unsafe"`
}

// Output configures where samples go.
type Output struct {
	Dir     string `toml:"dir"`
	Samples int    `toml:"samples"`
	Corpus  string `toml:"corpus"` // sqlite database path, empty to disable
	Traces  bool   `toml:"traces"`
	Workers int    `toml:"workers"`
}

// Features gates the optional opcode families.
type Features struct {
	ExtCodes []uint32 `toml:"ext-codes"`
	Buffers  bool     `toml:"buffers"`
}

// Load parses a brine.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "brine.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a brine.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "brine.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.Generation.MinOpcodes == 0 {
		m.Generation.MinOpcodes = 60
	}
	if m.Generation.MaxOpcodes == 0 {
		m.Generation.MaxOpcodes = 300
	}
	if m.Generation.Framing == "" {
		m.Generation.Framing = "auto"
	}
	if m.Mutation.Rate == 0 {
		m.Mutation.Rate = 0.1
	}
	if len(m.Mutation.Mutators) == 0 {
		m.Mutation.Mutators = []string{"all"}
	}
	if m.Output.Samples == 0 {
		m.Output.Samples = 10000
	}
	if m.Output.Dir == "" {
		m.Output.Dir = "samples"
	}
}

// OutputDirPath returns the absolute path for the sample directory.
func (m *Manifest) OutputDirPath() string {
	if filepath.IsAbs(m.Output.Dir) {
		return m.Output.Dir
	}
	return filepath.Join(m.Dir, m.Output.Dir)
}

// CorpusPath returns the absolute path for the corpus database, or the
// empty string when the corpus is disabled.
func (m *Manifest) CorpusPath() string {
	if m.Output.Corpus == "" || filepath.IsAbs(m.Output.Corpus) {
		return m.Output.Corpus
	}
	return filepath.Join(m.Dir, m.Output.Corpus)
}
