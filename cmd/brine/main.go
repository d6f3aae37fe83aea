// Brine CLI - generates, mutates, and validates pickle byte streams
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "gen":
		err = runGen(args[1:])
	case "mutate":
		err = runMutate(args[1:])
	case "validate":
		err = runValidate(args[1:])
	case "corpus":
		err = runCorpus(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log := commonlog.GetLogger("brine")
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: brine <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  gen       Generate structurally valid pickle streams\n")
	fmt.Fprintf(os.Stderr, "  mutate    Mutate an existing stream\n")
	fmt.Fprintf(os.Stderr, "  validate  Check streams against the structural rules\n")
	fmt.Fprintf(os.Stderr, "  corpus    Query a sample database\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  brine gen -protocol 4 -o sample.pkl\n")
	fmt.Fprintf(os.Stderr, "  brine gen -protocol 3 -dir out -samples 10000 -seed 42\n")
	fmt.Fprintf(os.Stderr, "  brine mutate -in sample.pkl -mutators bitflip,boundary -o mutated.pkl\n")
	fmt.Fprintf(os.Stderr, "  brine validate sample.pkl mutated.pkl\n")
	fmt.Fprintf(os.Stderr, "  brine corpus -db corpus.db -invalid\n")
	fmt.Fprintf(os.Stderr, "\nRun 'brine <command> -h' for command options.\n")
}

// setupLogging wires the verbosity flag into commonlog.
func setupLogging(verbose bool) commonlog.Logger {
	verbosity := 0
	if verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)
	return commonlog.GetLogger("brine")
}
