// Package cpu implements the R824 interpreter: a 24-bit stack machine
// with a three-register stack cache (A, B, C), a 16-slot workspace, a
// memory-mapped bus, prioritized interrupts, and environment calls.
//
// All arithmetic happens in the 24-bit domain; values held in the stack
// cache and workspace are kept sign-extended to 32 bits. The instruction
// pointer is truncated to 24 bits on every advance.
package cpu

import (
	"log"
)

// Memory is the byte-addressed read/write contract of the bus. Addresses
// handed to a Memory are already masked to the 24-bit space.
type Memory interface {
	Read(addr uint32) byte
	Write(addr uint32, value byte)
}

// Interrupt cause masks, highest priority first.
const (
	IntSoftware = uint8(0x01)
	IntTimer    = uint8(0x02)
	IntExternal = uint8(0x04)
	IntDivZero  = uint8(0x08)
	IntSyscall  = uint8(0x10)
)

// TrapVector is the Machine Trap-Vector Base Address: the fixed address
// the interpreter branches to on interrupt service.
const TrapVector = uint32(0x00_0002)

// AddrMask bounds the 24-bit address space.
const AddrMask = uint32(0xFF_FFFF)

// Cycle costs. Every instruction charges fetch plus decode, then one
// cycle per byte-sized memory access it performs.
const (
	cycleFetch    = 1
	cycleDecode   = 1
	cycleMemRead  = 1
	cycleMemWrite = 1
)

// R824 is the interpreter state. It is owned by a single goroutine; the
// host must not touch it while Step is running.
type R824 struct {
	Verbose bool

	A, B, C int32       // Stack cache: top three operand stack entries.
	Wksp    [16]int32   // Workspace slots; slot 15 is the stack pointer.
	IPtr    uint32      // Instruction pointer, 24-bit.
	Halted  bool

	MIE     bool  // Global machine-interrupt enable.
	Pending uint8 // mip: pending interrupt mask.
	Enabled uint8 // mie: per-cause interrupt enable mask.

	// Breakpoint is invoked for EBREAK and the software interrupt.
	Breakpoint func(c *R824)

	mem     Memory
	env     Environment
	current uint8 // Cause being serviced; 0 when none.
}

// New creates a CPU on the given bus. The environment may be nil, in
// which case environment calls have no effect: no side effect and no
// register shuffling.
func New(mem Memory, env Environment) *R824 {
	return &R824{
		mem:     mem,
		env:     env,
		Enabled: IntTimer | IntSyscall,
	}
}

// Raise marks an interrupt cause pending. Safe to call from device
// callbacks running on the interpreter goroutine.
func (c *R824) Raise(mask uint8) {
	c.Pending |= mask
}

// sext24 masks a value to 24 bits and sign-extends it to 32.
func sext24(v int32) int32 {
	v &= int32(AddrMask)
	if v&0x80_0000 != 0 {
		v |= ^int32(AddrMask)
	}
	return v
}

// sext8 masks a value to 8 bits and sign-extends it to 32.
func sext8(v int32) int32 {
	v &= 0xFF
	if v&0x80 != 0 {
		v |= ^int32(0xFF)
	}
	return v
}

// fetch8 reads one byte at IPtr and advances it.
func (c *R824) fetch8() byte {
	v := c.mem.Read(c.IPtr)
	c.IPtr = (c.IPtr + 1) & AddrMask
	return v
}

// fetch24 reads a little-endian 24-bit operand at IPtr and advances it.
func (c *R824) fetch24() uint32 {
	v := uint32(c.fetch8())
	v |= uint32(c.fetch8()) << 8
	v |= uint32(c.fetch8()) << 16
	return v
}

// read24 reads a little-endian 24-bit value from memory.
func (c *R824) read24(addr uint32) uint32 {
	v := uint32(c.mem.Read(addr))
	v |= uint32(c.mem.Read((addr+1)&AddrMask)) << 8
	v |= uint32(c.mem.Read((addr+2)&AddrMask)) << 16
	return v
}

// write24 writes a little-endian 24-bit value to memory.
func (c *R824) write24(addr uint32, v int32) {
	c.mem.Write(addr, byte(v))
	c.mem.Write((addr+1)&AddrMask, byte(v>>8))
	c.mem.Write((addr+2)&AddrMask, byte(v>>16))
}

// push makes room on the stack cache: C takes B, B takes A. The caller
// overwrites A.
func (c *R824) push() {
	c.C = c.B
	c.B = c.A
}

// pop discards A: A takes B, B takes C.
func (c *R824) pop() {
	c.A = c.B
	c.B = c.C
}

// binary folds a two-operand ALU result: masked to 24 bits,
// sign-extended, with C shifting into B.
func (c *R824) binary(result int32) {
	c.A = sext24(result)
	c.B = c.C
}

// branch fetches the 8-bit signed displacement and applies it when taken.
// A takes C whether or not the branch is taken.
func (c *R824) branch(taken bool) {
	offset := sext8(int32(c.fetch8()))
	if taken {
		c.IPtr = uint32(int32(c.IPtr)+offset) & AddrMask
	}
	c.A = c.C
}

// Step fetches, decodes and executes one instruction, services at most
// one pending interrupt at the boundary, and returns the cycles consumed.
// A halted CPU consumes nothing.
func (c *R824) Step() int {
	if c.Halted {
		return 0
	}

	op := c.fetch8()
	cycles := c.execute(op)

	if c.MIE && c.Pending&c.Enabled != 0 {
		c.service()
	}

	return cycles
}

func (c *R824) execute(op byte) (cycles int) {
	cycles = cycleFetch + cycleDecode

	if c.Verbose {
		log.Printf("%06x: %02x A=%08x B=%08x C=%08x", (c.IPtr-1)&AddrMask, op, uint32(c.A), uint32(c.B), uint32(c.C))
	}

	// Workspace block: LDL @k / STL @k occupy the low half of column 3.
	if op&0x03 == 0x03 && op < 0x80 {
		k := int(op>>2) & 0x0F
		if op < 0x40 { // LDL @k
			c.push()
			c.A = c.Wksp[k]
		} else { // STL @k
			c.Wksp[k] = c.A
			c.pop()
		}
		return
	}

	switch op {
	case OpNOP:

	case OpDUP:
		c.C = c.B
		c.B = c.A
	case OpSWAP:
		c.A, c.B = c.B, c.A
	case OpPOP1:
		c.A = c.B
		c.B = c.C
	case OpPOP2:
		c.A = c.C
		c.B = c.C

	case OpADD:
		c.binary(c.B + c.A)
	case OpSUB:
		c.binary(c.B - c.A)
	case OpMUL:
		c.binary(c.B * c.A)
	case OpDIV:
		if c.A == 0 {
			c.Raise(IntDivZero)
			c.binary(0)
		} else {
			c.binary(c.B / c.A)
		}
	case OpREM:
		if c.A == 0 {
			c.Raise(IntDivZero)
			c.binary(0)
		} else {
			c.binary(c.B % c.A)
		}
	case OpAND:
		c.binary(c.B & c.A)
	case OpOR:
		c.binary(c.B | c.A)
	case OpXOR:
		c.binary(c.B ^ c.A)

	case OpSLL1, OpSLL1 + 4, OpSLL1 + 8, OpSLL1 + 12:
		k := int(op>>2)&0x03 + 1
		c.A = sext24(c.A << k)
	case OpSRL1, OpSRL1 + 4, OpSRL1 + 8, OpSRL1 + 12:
		k := int(op>>2)&0x03 + 1
		c.A = sext24(int32(uint32(c.A) & AddrMask >> k))
	case OpSRA1, OpSRA1 + 4, OpSRA1 + 8, OpSRA1 + 12:
		k := int(op>>2)&0x03 + 1
		c.A = sext24(c.A>>k | c.A&0x80_0000)

	case OpINC:
		c.A = sext24(c.A + 1)
	case OpDEC:
		c.A = sext24(c.A - 1)
	case OpNEG:
		c.A = sext24(-c.A)
	case OpINV:
		c.A = sext24(^c.A)
	case OpI2B:
		c.A = sext8(c.A)

	case OpSLT:
		taken := c.B < c.A
		c.A = 0
		if taken {
			c.A = 1
		}
		c.B = c.C
	case OpSLTU:
		taken := uint32(c.B) < uint32(c.A)
		c.A = 0
		if taken {
			c.A = 1
		}
		c.B = c.C

	case OpLD:
		cycles += 3 * cycleMemRead
		addr := uint32(c.A) & AddrMask
		c.push()
		c.A = sext24(int32(c.read24(addr)))
	case OpLB:
		cycles += cycleMemRead
		addr := uint32(c.A) & AddrMask
		c.push()
		c.A = sext8(int32(c.mem.Read(addr)))
	case OpLU:
		cycles += cycleMemRead
		addr := uint32(c.A) & AddrMask
		c.push()
		c.A = int32(c.mem.Read(addr))
	case OpST:
		cycles += 3 * cycleMemWrite
		c.write24(uint32(c.B)&AddrMask, c.A)
		c.pop()
	case OpSB:
		cycles += cycleMemWrite
		c.mem.Write(uint32(c.B)&AddrMask, byte(c.A))
		c.pop()
	case OpPOP:
		cycles += 3 * cycleMemRead
		sp := uint32(c.Wksp[15]) & AddrMask
		c.push()
		c.A = sext24(int32(c.read24(sp)))
		c.Wksp[15] = int32((sp + 3) & AddrMask)
	case OpPUSH:
		cycles += 3 * cycleMemWrite
		sp := (uint32(c.Wksp[15]) - 3) & AddrMask
		c.Wksp[15] = int32(sp)
		c.write24(sp, c.A)
		c.pop()

	case OpBEQ:
		cycles += cycleMemRead
		c.branch(c.B == c.A)
	case OpBNE:
		cycles += cycleMemRead
		c.branch(c.B != c.A)
	case OpBLT:
		cycles += cycleMemRead
		c.branch(c.B < c.A)
	case OpBLTU:
		cycles += cycleMemRead
		c.branch(uint32(c.B) < uint32(c.A))
	case OpBGE:
		cycles += cycleMemRead
		c.branch(c.B >= c.A)
	case OpBGEU:
		cycles += cycleMemRead
		c.branch(uint32(c.B) >= uint32(c.A))

	case OpJ:
		cycles += cycleMemRead
		offset := sext8(int32(c.fetch8()))
		c.IPtr = uint32(int32(c.IPtr)+offset) & AddrMask
	case OpJAL:
		cycles += cycleMemRead
		offset := sext8(int32(c.fetch8()))
		c.A = int32(c.IPtr)
		c.IPtr = uint32(int32(c.IPtr)+offset) & AddrMask
	case OpJR:
		c.IPtr = uint32(c.A) & AddrMask
		c.pop()
	case OpJALR:
		ret := int32(c.IPtr)
		c.IPtr = uint32(c.A) & AddrMask
		c.A = ret

	case OpI0:
		c.push()
		c.A = 0
	case OpI1:
		c.push()
		c.A = 1
	case OpI:
		cycles += 3 * cycleMemRead
		c.push()
		c.A = sext24(int32(c.fetch24()))
	case OpU:
		cycles += cycleMemRead
		c.push()
		c.A = int32(c.fetch8())
	case OpB:
		cycles += cycleMemRead
		c.push()
		c.A = sext8(int32(c.fetch8()))
	case OpAIIP:
		cycles += 3 * cycleMemRead
		c.push()
		imm := sext24(int32(c.fetch24()))
		c.A = sext24(int32(uint32(int32(c.IPtr)+imm) & AddrMask))

	case OpSETI:
		cycles += cycleMemRead
		c.Enabled |= c.fetch8() & 0x07
	case OpCLRI:
		cycles += cycleMemRead
		c.Enabled &^= c.fetch8() & 0x07
	case OpEI:
		c.MIE = true
	case OpDI:
		c.MIE = false
	case OpIRET:
		if c.current != 0 {
			cause := c.current
			c.Pending &^= cause
			c.current = 0
			if cause != IntSoftware {
				c.IPtr = uint32(c.Wksp[14]) & AddrMask
				c.A = c.Wksp[13]
				c.B = c.Wksp[12]
				c.C = c.Wksp[11]
			}
			c.MIE = true
		}

	case OpECALL:
		c.ecall()
	case OpEBREAK:
		if c.Breakpoint != nil {
			c.Breakpoint(c)
		}
	case OpHLT:
		c.Halted = true

	default:
		// Unassigned slot: charge fetch and decode only.
	}

	return
}

// service enters interrupt handling: global enable drops, the highest
// priority pending cause is chosen, state is saved to workspace slots
// 11..14, and control transfers to the trap vector. The software
// interrupt only invokes the breakpoint hook.
func (c *R824) service() {
	c.MIE = false

	cause := c.prioritize()
	if cause == 0 {
		return
	}
	c.current = cause

	if cause == IntSoftware {
		if c.Breakpoint != nil {
			c.Breakpoint(c)
		}
		return
	}

	c.Wksp[11] = c.C
	c.Wksp[12] = c.B
	c.Wksp[13] = c.A
	c.Wksp[14] = int32(c.IPtr)

	if cause == IntSyscall {
		c.ecall()
	}

	c.IPtr = TrapVector
}

// prioritize picks the highest priority pending cause.
func (c *R824) prioritize() uint8 {
	for _, mask := range [...]uint8{IntSoftware, IntTimer, IntExternal, IntDivZero, IntSyscall} {
		if c.Pending&mask != 0 {
			return mask
		}
	}
	return 0
}
