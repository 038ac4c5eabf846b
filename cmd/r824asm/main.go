// Copyright 2025, Robin Cores <robincores@gmail.com>

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/robincores/r824/asm"
)

// fileLoader resolves .arch/.include/.module names against the directory
// of the input file.
type fileLoader struct {
	dir string
}

func (l *fileLoader) Arch(name string) (*asm.Spec, error) {
	return asm.LoadSpec(filepath.Join(l.dir, name+".star"), nil)
}

func (l *fileLoader) Include(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	return string(data), err
}

func (l *fileLoader) Module(name string) (string, error) {
	return l.Include(name)
}

func main() {
	var arch string
	var verbose bool

	flag.StringVar(&arch, "arch", "", "Architecture description (.star); default is the built-in R824 table")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %v [-v] [-arch file.star] <input.asm> <output.bin>\n", os.Args[0])
		os.Exit(1)
	}
	input := flag.Arg(0)
	output := flag.Arg(1)

	var spec *asm.Spec
	var err error
	if arch != "" {
		spec, err = asm.LoadSpec(arch, nil)
	} else {
		spec, err = asm.R824()
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	a, err := asm.New(spec)
	if err != nil {
		log.Fatalf("%v", err)
	}
	a.Verbose = verbose
	a.Loader = &fileLoader{dir: filepath.Dir(input)}

	inf, err := os.Open(input)
	if err != nil {
		log.Fatalf("%v: %v", input, err)
	}
	defer inf.Close()

	state := a.Parse(inf)

	if len(state.Errors) != 0 {
		for _, diag := range state.Errors {
			fmt.Fprintf(os.Stderr, "%v(%v): %v\n", input, diag.Line, diag.Msg)
		}
		os.Exit(2)
	}

	err = os.WriteFile(output, state.Binary(), 0o644)
	if err != nil {
		log.Fatalf("%v: %v", output, err)
	}
}
