// Package system assembles a runnable R824 machine: a memory map with
// RAM, ROM and the timer device, a console environment, and the
// cycle-accounted run loop.
package system

import (
	"log"

	"github.com/robincores/r824/cpu"
)

// region is one (start, size, device) mapping.
type region struct {
	start uint32
	size  uint32
	dev   cpu.Memory
}

func (r *region) contains(addr uint32) bool {
	return addr >= r.start && addr < r.start+r.size
}

// MemoryMap dispatches byte accesses to a set of non-overlapping regions.
// An access outside every region is a hard fault; the fault is latched
// and surfaced to the run loop, which terminates on the next boundary.
type MemoryMap struct {
	regions []region
	fault   error
}

var _ cpu.Memory = (*MemoryMap)(nil)

// Map registers a device over [start, start+size).
func (m *MemoryMap) Map(start, size uint32, dev cpu.Memory) {
	m.regions = append(m.regions, region{start: start, size: size, dev: dev})
}

func (m *MemoryMap) find(addr uint32) *region {
	for n := range m.regions {
		if m.regions[n].contains(addr) {
			return &m.regions[n]
		}
	}
	return nil
}

// Fault returns the first unmapped access recorded since the last Reset,
// or nil.
func (m *MemoryMap) Fault() error {
	return m.fault
}

// Reset clears a latched fault.
func (m *MemoryMap) Reset() {
	m.fault = nil
}

func (m *MemoryMap) Read(addr uint32) byte {
	r := m.find(addr)
	if r == nil {
		if m.fault == nil {
			m.fault = ErrUnmapped(addr)
		}
		return 0
	}
	return r.dev.Read(addr - r.start)
}

func (m *MemoryMap) Write(addr uint32, value byte) {
	r := m.find(addr)
	if r == nil {
		if m.fault == nil {
			m.fault = ErrUnmapped(addr)
		}
		return
	}
	r.dev.Write(addr-r.start, value)
}

// RAM is plain byte-addressed storage.
type RAM []byte

var _ cpu.Memory = (RAM)(nil)

// NewRAM allocates zeroed storage of the given size.
func NewRAM(size uint32) RAM {
	return make(RAM, size)
}

func (r RAM) Read(addr uint32) byte {
	return r[addr]
}

func (r RAM) Write(addr uint32, value byte) {
	r[addr] = value
}

// ROM is read-only storage. Writes are ignored with a diagnostic.
type ROM struct {
	data []byte
}

var _ cpu.Memory = (*ROM)(nil)

// NewROM wraps the given image.
func NewROM(data []byte) *ROM {
	return &ROM{data: data}
}

func (r *ROM) Read(addr uint32) byte {
	return r.data[addr]
}

func (r *ROM) Write(addr uint32, value byte) {
	log.Printf("rom: ignored write of %02x to %06x", value, addr)
}
