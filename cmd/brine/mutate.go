package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/chazu/brine/generator"
	"github.com/chazu/brine/mutate"
)

func runMutate(args []string) error {
	fs := flag.NewFlagSet("mutate", flag.ExitOnError)
	in := fs.String("in", "", "Input stream (required)")
	tracePath := fs.String("trace", "", "Trace file for the input stream, if one exists")
	out := fs.String("o", "", "Output file (default: <in>.mut)")
	mutators := fs.String("mutators", "all", "Comma-separated strategies, or 'all'")
	rate := fs.Float64("rate", 0.1, "Per-site mutation probability")
	unsafe := fs.Bool("unsafe", false, "Permit structure-breaking mutations")
	seed := fs.Uint64("seed", 0, "Random seed (0 picks one)")
	verbose := fs.Bool("v", false, "Verbose output")
	fs.Parse(args)

	log := setupLogging(*verbose)

	if *in == "" {
		return fmt.Errorf("mutate: -in is required")
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		return err
	}

	var trace generator.Trace
	if *tracePath != "" {
		raw, err := os.ReadFile(*tracePath)
		if err != nil {
			return err
		}
		trace, err = generator.UnmarshalTrace(raw)
		if err != nil {
			return err
		}
	}

	pol := mutate.Policy{Rate: *rate, Unsafe: *unsafe, Seed: *seed}
	if pol.Seed == 0 {
		pol.Seed = rand.Uint64()
	}
	selection := strings.Split(*mutators, ",")
	for i := range selection {
		selection[i] = strings.TrimSpace(selection[i])
	}

	mutated, err := mutate.Apply(data, trace, selection, pol)
	if err != nil {
		return err
	}

	dest := *out
	if dest == "" {
		dest = *in + ".mut"
	}
	if err := os.WriteFile(dest, mutated, 0o644); err != nil {
		return err
	}
	log.Infof("wrote %s (%d -> %d bytes, seed %d)", dest, len(data), len(mutated), pol.Seed)
	return nil
}
