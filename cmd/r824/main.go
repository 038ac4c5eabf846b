// Copyright 2025, Robin Cores <robincores@gmail.com>

package main

import (
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/robincores/r824/system"
)

func main() {
	var org uint
	var verbose bool

	flag.UintVar(&org, "org", 0, "Load address of the binary image")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("Usage: %v [-v] [-org N] <image.bin>", os.Args[0])
	}
	image := flag.Arg(0)

	data, err := os.ReadFile(image)
	if err != nil {
		log.Fatalf("%v: %v", image, err)
	}

	sys := system.New()
	sys.CPU.Verbose = verbose

	err = sys.LoadImage(uint32(org), data)
	if err != nil {
		log.Fatalf("%v: %v", image, err)
	}
	sys.CPU.IPtr = uint32(org)

	// SIGINT stops the run loop at the next instruction boundary.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		sys.Stop()
	}()

	err = sys.Run()
	if err != nil {
		log.Fatalf("%v", err)
	}
}
