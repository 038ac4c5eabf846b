package system

import (
	"github.com/robincores/r824/cpu"
)

// Timer counts CPU cycles against a 24-bit comparison register and raises
// the timer interrupt when the count reaches it.
//
// The guest sees three bytes of mtimecmp at offsets 0..2, little-endian.
// Writing the high byte resets the count. After firing, the timer disables
// itself by setting bit 31 of mtimecmp, so comparisons fail until the
// guest rewrites the high byte.
type Timer struct {
	cpu      *cpu.R824
	mtime    uint32
	mtimecmp uint32
}

var _ cpu.Memory = (*Timer)(nil)

// NewTimer creates a disabled timer wired to the given CPU.
func NewTimer(c *cpu.R824) *Timer {
	return &Timer{
		cpu:      c,
		mtimecmp: 0xFFFF_FFFF,
	}
}

func (t *Timer) Read(addr uint32) byte {
	switch addr {
	case 0x00:
		return byte(t.mtimecmp)
	case 0x01:
		return byte(t.mtimecmp >> 8)
	case 0x02:
		return byte(t.mtimecmp >> 16)
	}
	return 0
}

func (t *Timer) Write(addr uint32, value byte) {
	switch addr {
	case 0x00:
		t.mtimecmp = t.mtimecmp&0xFFFF_FF00 | uint32(value)
	case 0x01:
		t.mtimecmp = t.mtimecmp&0xFFFF_00FF | uint32(value)<<8
	case 0x02:
		t.mtimecmp = t.mtimecmp&0x0000_FFFF | uint32(value)<<16
		t.mtime = 0
	}
}

// Advance feeds executed cycles to the timer. While enabled, reaching
// mtimecmp raises the timer interrupt, disables the timer, and resets the
// count.
func (t *Timer) Advance(cycles int) {
	if int32(t.mtimecmp) <= 0 {
		return
	}

	t.mtime += uint32(cycles)
	if t.mtime >= t.mtimecmp {
		t.cpu.Raise(cpu.IntTimer)
		t.mtimecmp |= 0x8000_0000
		t.mtime = 0
	}
}
