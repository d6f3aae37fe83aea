package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chazu/brine/validate"
)

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	protocol := fs.Int("protocol", -1, "Force a protocol for the legality check (-1 infers from PROTO)")
	allowExt := fs.Bool("allow-ext", false, "Permit extension-registry opcodes")
	allowBuffers := fs.Bool("allow-buffers", false, "Permit out-of-band buffer opcodes")
	verbose := fs.Bool("v", false, "Verbose output")
	fs.Parse(args)

	log := setupLogging(*verbose)

	files := fs.Args()
	if len(files) == 0 {
		return fmt.Errorf("validate: no input files")
	}
	opts := validate.Options{
		Protocol:     *protocol,
		AllowExt:     *allowExt,
		AllowBuffers: *allowBuffers,
	}

	bad := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if v := validate.Stream(data, opts); v != nil {
			bad++
			fmt.Printf("%s: %v\n", path, v)
		} else {
			log.Infof("%s: ok", path)
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d streams invalid", bad, len(files))
	}
	return nil
}
