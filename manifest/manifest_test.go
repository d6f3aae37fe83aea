package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleManifest = `
[generation]
protocol = 4
min-opcodes = 20
max-opcodes = 40
seed = 42
framing = "always"

[mutation]
mutators = ["bitflip", "boundary"]
rate = 0.25
unsafe = true

[output]
dir = "out"
samples = 500
corpus = "corpus.db"
traces = true

[features]
ext-codes = [1, 300]
buffers = true
`

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "brine.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, sampleManifest)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Generation.Protocol != 4 || m.Generation.Seed != 42 {
		t.Errorf("generation = %+v", m.Generation)
	}
	if m.Generation.Framing != "always" {
		t.Errorf("framing = %q, want always", m.Generation.Framing)
	}
	if len(m.Mutation.Mutators) != 2 || m.Mutation.Rate != 0.25 || !m.Mutation.Unsafe {
		t.Errorf("mutation = %+v", m.Mutation)
	}
	if m.Output.Samples != 500 || !m.Output.Traces {
		t.Errorf("output = %+v", m.Output)
	}
	if len(m.Features.ExtCodes) != 2 || !m.Features.Buffers {
		t.Errorf("features = %+v", m.Features)
	}
	if m.Dir == "" {
		t.Error("Dir not set at load time")
	}
	if got := m.OutputDirPath(); got != filepath.Join(m.Dir, "out") {
		t.Errorf("OutputDirPath() = %q", got)
	}
	if got := m.CorpusPath(); got != filepath.Join(m.Dir, "corpus.db") {
		t.Errorf("CorpusPath() = %q", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[generation]\nprotocol = 2\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Generation.MinOpcodes != 60 || m.Generation.MaxOpcodes != 300 {
		t.Errorf("opcode range defaults = [%d, %d], want [60, 300]",
			m.Generation.MinOpcodes, m.Generation.MaxOpcodes)
	}
	if m.Generation.Framing != "auto" {
		t.Errorf("framing default = %q, want auto", m.Generation.Framing)
	}
	if m.Mutation.Rate != 0.1 {
		t.Errorf("rate default = %v, want 0.1", m.Mutation.Rate)
	}
	if len(m.Mutation.Mutators) != 1 || m.Mutation.Mutators[0] != "all" {
		t.Errorf("mutators default = %v, want [all]", m.Mutation.Mutators)
	}
	if m.Output.Samples != 10000 {
		t.Errorf("samples default = %d, want 10000", m.Output.Samples)
	}
	if m.CorpusPath() != "" {
		t.Errorf("CorpusPath() = %q, want empty", m.CorpusPath())
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of empty directory succeeded")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[generation]\nprotocol = 3\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m == nil || m.Generation.Protocol != 3 {
		t.Errorf("FindAndLoad = %+v, want the root manifest", m)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m != nil {
		t.Errorf("FindAndLoad = %+v, want nil", m)
	}
}
