// Copyright 2025, Robin Cores <robincores@gmail.com>

package system

import (
	"sync/atomic"

	"github.com/robincores/r824/cpu"
)

// Default memory layout.
const (
	RAMBase  = uint32(0x00_0000)
	RAMSize  = uint32(10 * 1024 * 1024)
	VRAMBase = uint32(0xE0_0000)
	VRAMSize = uint32(1 * 1024 * 1024)

	TimerBase = uint32(0xF0_0000)
	TimerSize = uint32(8)
)

// System wires the default R824 machine: system RAM at 0x000000, VRAM at
// 0xE00000, and the timer at 0xF00000, with a console environment.
//
// The CPU and memory have no internal synchronization; Run owns them for
// its duration. Stop is the only method safe to call from another
// goroutine while Run is active.
type System struct {
	Bus     *MemoryMap
	CPU     *cpu.R824
	Timer   *Timer
	Console *Console

	Cycles uint64 // Total cycles executed since construction.

	stop atomic.Bool
}

// New builds a system with the default memory map.
func New() (sys *System) {
	sys = &System{
		Bus:     &MemoryMap{},
		Console: &Console{},
	}

	sys.CPU = cpu.New(sys.Bus, sys.Console)
	sys.Timer = NewTimer(sys.CPU)
	sys.Console.OnExit = sys.Stop

	sys.Bus.Map(RAMBase, RAMSize, NewRAM(RAMSize))
	sys.Bus.Map(VRAMBase, VRAMSize, NewRAM(VRAMSize))
	sys.Bus.Map(TimerBase, TimerSize, sys.Timer)

	return
}

// LoadImage copies a binary image into memory at the given address.
func (sys *System) LoadImage(addr uint32, data []byte) error {
	for n, b := range data {
		sys.Bus.Write((addr+uint32(n))&cpu.AddrMask, b)
	}
	return sys.Bus.Fault()
}

// Run interprets instructions until the CPU halts, the guest exits, the
// host calls Stop, or the bus faults. One instruction is indivisible;
// stop and interrupt delivery are observed only between instructions.
func (sys *System) Run() error {
	for !sys.stop.Load() {
		cycles := sys.CPU.Step()
		if cycles == 0 {
			// Halted; nothing further will execute.
			break
		}
		sys.Cycles += uint64(cycles)
		sys.Timer.Advance(cycles)

		if err := sys.Bus.Fault(); err != nil {
			return err
		}
	}
	return nil
}

// Stop requests a cooperative exit at the next instruction boundary. Safe
// from any goroutine.
func (sys *System) Stop() {
	sys.stop.Store(true)
}
