package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEnv struct {
	exited   bool
	ints     []int32
	chars    []byte
	strs     []string
	dumps    int
	memBase  uint32
	memData  []byte
	input    []byte
	lines    []string
	readErr  error
}

func (env *fakeEnv) Exit() {
	env.exited = true
}

func (env *fakeEnv) RegisterDump(a, b, c int32, wksp [16]int32) {
	env.dumps++
}

func (env *fakeEnv) MemoryDump(base uint32, data []byte) {
	env.memBase = base
	env.memData = data
}

func (env *fakeEnv) PrintInt(value int32) {
	env.ints = append(env.ints, value)
}

func (env *fakeEnv) PrintChar(ch byte) {
	env.chars = append(env.chars, ch)
}

func (env *fakeEnv) ReadChar() (ch byte, err error) {
	if env.readErr != nil {
		return 0, env.readErr
	}
	ch = env.input[0]
	env.input = env.input[1:]
	return
}

func (env *fakeEnv) PrintString(s []byte) {
	env.strs = append(env.strs, string(s))
}

func (env *fakeEnv) ReadLine() (line string, err error) {
	if env.readErr != nil {
		return "", env.readErr
	}
	line = env.lines[0]
	env.lines = env.lines[1:]
	return
}

func newEnvCPU(env Environment, program ...byte) (*R824, testMem) {
	mem := testMem{}
	for n, b := range program {
		mem[uint32(n)] = b
	}
	return New(mem, env), mem
}

func TestEcallPrintInt(t *testing.T) {
	assert := assert.New(t)

	env := &fakeEnv{}
	c, _ := newEnvCPU(env, OpECALL)
	c.A, c.B, c.C = EcallPrintInt, 42, 7

	cycles := c.Step()

	assert.Equal(2, cycles)
	assert.Equal([]int32{42}, env.ints)
	// A is discarded after the call.
	assert.Equal(int32(42), c.A)
	assert.Equal(int32(7), c.B)
}

func TestEcallPrintChar(t *testing.T) {
	assert := assert.New(t)

	env := &fakeEnv{}
	c, _ := newEnvCPU(env, OpECALL)
	c.A, c.B = EcallPrintChar, 0x141 // only the low byte prints

	c.Step()
	assert.Equal([]byte{0x41}, env.chars)
	assert.Equal(int32(0x141), c.A)
}

func TestEcallReadChar(t *testing.T) {
	assert := assert.New(t)

	env := &fakeEnv{input: []byte{'x'}}
	c, _ := newEnvCPU(env, OpECALL)
	c.A, c.B = EcallReadChar, 99

	c.Step()
	assert.Equal(int32('x'), c.A)
	assert.Equal(int32(99), c.B) // no shift on result calls

	env = &fakeEnv{readErr: errors.New("eof")}
	c, _ = newEnvCPU(env, OpECALL)
	c.A = EcallReadChar

	c.Step()
	assert.Equal(int32(-1), c.A)
}

func TestEcallPrintString(t *testing.T) {
	assert := assert.New(t)

	env := &fakeEnv{}
	c, mem := newEnvCPU(env, OpECALL)
	mem[0x50], mem[0x51] = 'h', 'i'
	c.A, c.B, c.C = EcallPrintString, 0x50, 3

	c.Step()
	assert.Equal([]string{"hi"}, env.strs)
	assert.Equal(int32(0x50), c.A)
	assert.Equal(int32(3), c.B)
}

func TestEcallReadString(t *testing.T) {
	assert := assert.New(t)

	env := &fakeEnv{lines: []string{"hello"}}
	c, mem := newEnvCPU(env, OpECALL)
	c.A, c.B, c.C = EcallReadString, 4, 0x100

	c.Step()
	assert.Equal(int32(3), c.A) // truncated to maxlen-1
	assert.Equal(byte('h'), mem[0x100])
	assert.Equal(byte('e'), mem[0x101])
	assert.Equal(byte('l'), mem[0x102])
	assert.Equal(byte(0), mem[0x103])
}

func TestEcallReadStringErrors(t *testing.T) {
	assert := assert.New(t)

	env := &fakeEnv{readErr: errors.New("eof")}
	c, _ := newEnvCPU(env, OpECALL)
	c.A, c.B, c.C = EcallReadString, 16, 0x100

	c.Step()
	assert.Equal(int32(-1), c.A)

	// A zero-length buffer cannot hold even the terminator.
	env = &fakeEnv{lines: []string{"hello"}}
	c, _ = newEnvCPU(env, OpECALL)
	c.A, c.B, c.C = EcallReadString, 0, 0x100

	c.Step()
	assert.Equal(int32(-1), c.A)
}

func TestEcallRegisterDump(t *testing.T) {
	assert := assert.New(t)

	env := &fakeEnv{}
	c, _ := newEnvCPU(env, OpECALL)
	c.A, c.B, c.C = EcallRegisterDump, 5, 9

	c.Step()
	assert.Equal(1, env.dumps)
	assert.Equal(int32(5), c.A)
	assert.Equal(int32(9), c.B)
}

func TestEcallMemoryDump(t *testing.T) {
	assert := assert.New(t)

	env := &fakeEnv{}
	c, mem := newEnvCPU(env, OpECALL)
	mem[0x100] = 0xAA
	c.A, c.B, c.C = EcallMemoryDump, 0x105, 2

	c.Step()
	// 16 rows of 16 bytes from the row-aligned base.
	assert.Equal(uint32(0x100), env.memBase)
	assert.Len(env.memData, 256)
	assert.Equal(byte(0xAA), env.memData[0])
	assert.Equal(int32(0x105), c.A)
}

func TestEcallExit(t *testing.T) {
	assert := assert.New(t)

	env := &fakeEnv{}
	c, _ := newEnvCPU(env, OpECALL)
	c.A = EcallExit

	c.Step()
	assert.True(env.exited)
	assert.True(c.Halted)
}

func TestEcallNilEnvironment(t *testing.T) {
	assert := assert.New(t)

	c, _ := newCPU(OpECALL)
	c.A, c.B, c.C = EcallPrintInt, 42, 7

	cycles := c.Step()
	assert.Equal(2, cycles)
	assert.Equal(EcallPrintInt, c.A) // no shuffle without an environment
}

func TestSyscallInterrupt(t *testing.T) {
	assert := assert.New(t)

	env := &fakeEnv{}
	c, _ := newEnvCPU(env, OpNOP)
	c.MIE = true
	c.A, c.B, c.C = EcallPrintInt, 42, 9
	c.Raise(IntSyscall)

	c.Step()
	assert.Equal([]int32{42}, env.ints)
	assert.Equal(TrapVector, c.IPtr)
	// State was saved before the handler shuffled the stack cache.
	assert.Equal(int32(EcallPrintInt), c.Wksp[13])
	assert.Equal(int32(42), c.Wksp[12])
}
