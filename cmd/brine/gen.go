package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/chazu/brine/corpus"
	"github.com/chazu/brine/generator"
	"github.com/chazu/brine/manifest"
	"github.com/chazu/brine/validate"
)

// genSettings collects everything the gen command needs, from the
// manifest first and explicit flags second.
type genSettings struct {
	protocol int
	out      string
	dir      string
	samples  int
	seed     uint64
	seedSet  bool
	minOps   int
	maxOps   int
	framing  string
	extCodes []uint32
	buffers  bool
	traces   bool
	corpus   string
	workers  int
}

func runGen(args []string) error {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	configDir := fs.String("config", "", "Directory containing brine.toml (default: search upward from the working directory)")
	protocol := fs.Int("protocol", 2, "Pickle protocol version (0-5)")
	out := fs.String("o", "", "Output file for a single stream")
	dir := fs.String("dir", "", "Output directory for a batch")
	samples := fs.Int("samples", 10000, "Batch size (used with -dir)")
	seed := fs.Uint64("seed", 0, "Random seed (0 picks one)")
	minOps := fs.Int("min-opcodes", 60, "Minimum opcodes per stream")
	maxOps := fs.Int("max-opcodes", 300, "Maximum opcodes per stream")
	framing := fs.String("framing", "auto", "Framing for protocol 4+: auto, always, never")
	extCodes := fs.String("ext-codes", "", "Comma-separated extension codes to enable EXT opcodes")
	buffers := fs.Bool("buffers", false, "Enable protocol 5 out-of-band buffer opcodes")
	traces := fs.Bool("traces", false, "Write a .trace file next to each stream")
	corpusPath := fs.String("corpus", "", "SQLite corpus database to record samples in")
	workers := fs.Int("workers", 0, "Parallel workers for a batch (0 = GOMAXPROCS)")
	verbose := fs.Bool("v", false, "Verbose output")
	fs.Parse(args)

	log := setupLogging(*verbose)

	s := genSettings{
		protocol: *protocol,
		out:      *out,
		dir:      *dir,
		samples:  *samples,
		seed:     *seed,
		minOps:   *minOps,
		maxOps:   *maxOps,
		framing:  *framing,
		buffers:  *buffers,
		traces:   *traces,
		corpus:   *corpusPath,
		workers:  *workers,
	}
	if *extCodes != "" {
		codes, err := parseExtCodes(*extCodes)
		if err != nil {
			return err
		}
		s.extCodes = codes
	}
	var m *manifest.Manifest
	var err error
	if *configDir != "" {
		m, err = manifest.Load(*configDir)
	} else {
		m, err = manifest.FindAndLoad(".")
	}
	if err != nil {
		return err
	}
	if m != nil {
		s.applyManifest(m, fs)
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			s.seedSet = true
		}
	})
	if !s.seedSet && s.seed == 0 {
		s.seed = rand.Uint64()
		s.seedSet = true
	}

	if s.dir != "" {
		return genBatch(s, log)
	}
	return genSingle(s, log)
}

// applyManifest fills settings from a manifest for every flag the user
// did not set explicitly.
func (s *genSettings) applyManifest(m *manifest.Manifest, fs *flag.FlagSet) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["protocol"] {
		s.protocol = m.Generation.Protocol
	}
	if !set["min-opcodes"] {
		s.minOps = m.Generation.MinOpcodes
	}
	if !set["max-opcodes"] {
		s.maxOps = m.Generation.MaxOpcodes
	}
	if !set["framing"] {
		s.framing = m.Generation.Framing
	}
	if !set["seed"] && m.Generation.Seed != 0 {
		s.seed = m.Generation.Seed
		s.seedSet = true
	}
	if !set["dir"] && s.out == "" {
		s.dir = m.OutputDirPath()
	}
	if !set["samples"] {
		s.samples = m.Output.Samples
	}
	if !set["traces"] {
		s.traces = m.Output.Traces
	}
	if !set["corpus"] {
		s.corpus = m.CorpusPath()
	}
	if !set["workers"] {
		s.workers = m.Output.Workers
	}
	if !set["ext-codes"] {
		s.extCodes = m.Features.ExtCodes
	}
	if !set["buffers"] {
		s.buffers = m.Features.Buffers
	}
}

func (s *genSettings) options(seed uint64) []generator.Option {
	opts := []generator.Option{
		generator.WithSeed(seed),
		generator.WithOpcodeRange(s.minOps, s.maxOps),
	}
	switch s.framing {
	case "always":
		opts = append(opts, generator.WithFraming(generator.FramingAlways))
	case "never":
		opts = append(opts, generator.WithFraming(generator.FramingNever))
	}
	if len(s.extCodes) > 0 {
		opts = append(opts, generator.WithExtCodes(s.extCodes...))
	}
	if s.buffers {
		opts = append(opts, generator.WithBuffers(true))
	}
	return opts
}

func genSingle(s genSettings, log logLike) error {
	gen, err := generator.New(s.protocol, s.options(s.seed)...)
	if err != nil {
		return err
	}
	res, err := gen.Generate()
	if err != nil {
		return err
	}
	out := s.out
	if out == "" {
		out = "sample.pkl"
	}
	if err := writeSample(out, res, s.traces); err != nil {
		return err
	}
	log.Infof("wrote %s (%d bytes, %d instructions, seed %d)",
		out, len(res.Bytes), len(res.Trace), s.seed)
	return recordSamples(s, []*generator.Result{res}, []uint64{s.seed})
}

func genBatch(s genSettings, log logLike) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	workers := s.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*generator.Result, s.samples)
	seeds := make([]uint64, s.samples)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Derive a per-sample seed so the batch is reproducible
				// regardless of scheduling.
				seed := s.seed + uint64(i)
				gen, err := generator.New(s.protocol, s.options(seed)...)
				if err == nil {
					var res *generator.Result
					res, err = gen.Generate()
					if err == nil {
						err = writeSample(samplePath(s.dir, i), res, s.traces)
						results[i] = res
						seeds[i] = seed
					}
				}
				if err != nil {
					mu.Lock()
					failures = append(failures, fmt.Errorf("sample %d: %w", i, err))
					mu.Unlock()
				}
			}
		}()
	}
	for i := 0; i < s.samples; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range failures {
		log.Errorf("%v", err)
	}
	log.Infof("generated %d/%d samples in %s (base seed %d)",
		s.samples-len(failures), s.samples, s.dir, s.seed)

	if err := recordSamples(s, results, seeds); err != nil {
		return err
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d samples failed", len(failures), s.samples)
	}
	return nil
}

// recordSamples stores the batch in the corpus database when one is
// configured. Each sample is validated on the way in.
func recordSamples(s genSettings, results []*generator.Result, seeds []uint64) error {
	if s.corpus == "" {
		return nil
	}
	store, err := corpus.Open(s.corpus)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := validate.DefaultOptions()
	opts.AllowExt = len(s.extCodes) > 0
	opts.AllowBuffers = s.buffers
	for i, res := range results {
		if res == nil {
			continue
		}
		sample := &corpus.Sample{
			Protocol: s.protocol,
			Seed:     seeds[i],
			Valid:    true,
			Data:     res.Bytes,
		}
		if v := validate.Stream(res.Bytes, opts); v != nil {
			sample.Valid = false
			sample.Violation = v.Error()
		}
		if s.traces {
			if trace, err := generator.MarshalTrace(res.Trace); err == nil {
				sample.Trace = trace
			}
		}
		if _, err := store.Save(sample); err != nil {
			return err
		}
	}
	return nil
}

func writeSample(path string, res *generator.Result, traces bool) error {
	if err := os.WriteFile(path, res.Bytes, 0o644); err != nil {
		return err
	}
	if !traces {
		return nil
	}
	data, err := generator.MarshalTrace(res.Trace)
	if err != nil {
		return err
	}
	return os.WriteFile(tracePath(path), data, 0o644)
}

func samplePath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("sample_%06d.pkl", i))
}

func tracePath(samplePath string) string {
	return strings.TrimSuffix(samplePath, ".pkl") + ".trace"
}

func parseExtCodes(list string) ([]uint32, error) {
	var codes []uint32
	for _, part := range strings.Split(list, ",") {
		var code uint32
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &code); err != nil || code == 0 {
			return nil, fmt.Errorf("bad extension code %q", part)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// logLike is the subset of commonlog.Logger the commands use.
type logLike interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}
