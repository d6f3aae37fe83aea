package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chazu/brine/corpus"
)

func runCorpus(args []string) error {
	fs := flag.NewFlagSet("corpus", flag.ExitOnError)
	db := fs.String("db", "", "SQLite corpus database (required)")
	invalid := fs.Bool("invalid", false, "List the ids of samples that failed validation")
	dump := fs.Int64("dump", 0, "Write the stream of the sample with this id")
	out := fs.String("o", "", "Output file for -dump (default: sample_<id>.pkl)")
	verbose := fs.Bool("v", false, "Verbose output")
	fs.Parse(args)

	log := setupLogging(*verbose)

	if *db == "" {
		return fmt.Errorf("corpus: -db is required")
	}
	store, err := corpus.Open(*db)
	if err != nil {
		return err
	}
	defer store.Close()

	switch {
	case *dump != 0:
		sample, err := store.Load(*dump)
		if err != nil {
			return err
		}
		dest := *out
		if dest == "" {
			dest = fmt.Sprintf("sample_%d.pkl", sample.ID)
		}
		if err := os.WriteFile(dest, sample.Data, 0o644); err != nil {
			return err
		}
		log.Infof("wrote %s (%d bytes, protocol %d, seed %d)",
			dest, len(sample.Data), sample.Protocol, sample.Seed)
	case *invalid:
		ids, err := store.FindInvalid()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	default:
		n, err := store.Count()
		if err != nil {
			return err
		}
		fmt.Printf("%d samples\n", n)
	}
	return nil
}
