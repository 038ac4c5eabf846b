package system

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robincores/r824/asm"
	"github.com/robincores/r824/cpu"
)

// build assembles a program with the built-in R824 table.
func build(t *testing.T, text string) []byte {
	spec, err := asm.R824()
	require.NoError(t, err)
	a, err := asm.New(spec)
	require.NoError(t, err)

	state := a.Parse(strings.NewReader(text))
	for _, diag := range state.Errors {
		t.Logf("asm(%v): %v", diag.Line, diag.Msg)
	}
	return state.Binary()
}

func TestSystemDefaults(t *testing.T) {
	assert := assert.New(t)

	sys := New()

	assert.NotNil(sys.CPU)
	assert.NotNil(sys.Timer)

	// RAM and VRAM respond; the hole between them faults.
	sys.Bus.Write(0x000000, 1)
	sys.Bus.Write(0x9FFFFF, 1)
	sys.Bus.Write(0xE00000, 1)
	assert.NoError(sys.Bus.Fault())

	sys.Bus.Read(0xA00000)
	assert.Error(sys.Bus.Fault())
}

func TestLoadImage(t *testing.T) {
	assert := assert.New(t)

	sys := New()
	require.NoError(t, sys.LoadImage(0x40, []byte{1, 2, 3}))

	assert.Equal(byte(1), sys.Bus.Read(0x40))
	assert.Equal(byte(3), sys.Bus.Read(0x42))
}

func TestRunStoreProgram(t *testing.T) {
	assert := assert.New(t)

	// Push 5 and 7, add, store the sum at 0x1000.
	image := build(t, "ldl #0x05\nldl #0x07\nadd\nst #0x1000\nhlt\n")

	sys := New()
	require.NoError(t, sys.LoadImage(0, image))
	require.NoError(t, sys.Run())

	assert.True(sys.CPU.Halted)
	assert.Equal(byte(0x0C), sys.Bus.Read(0x1000))
	assert.Equal(byte(0x00), sys.Bus.Read(0x1001))
	assert.Equal(byte(0x00), sys.Bus.Read(0x1002))
}

func TestRunJumpLoop(t *testing.T) {
	assert := assert.New(t)

	image := build(t, "start:\nj start\n")
	assert.Equal([]byte{0x62, 0xFE}, image)

	sys := New()
	require.NoError(t, sys.LoadImage(0, image))

	for i := 0; i < 4; i++ {
		cycles := sys.CPU.Step()
		assert.Equal(3, cycles)
		assert.Equal(uint32(0), sys.CPU.IPtr)
	}
}

func TestRunTimerInterrupt(t *testing.T) {
	assert := assert.New(t)

	image := build(t, strings.Join([]string{
		"ei",
		"i $f00000",
		"i 2",
		"st",
		"nop", "nop", "nop", "nop",
		"nop", "nop", "nop", "nop",
		"",
	}, "\n"))

	sys := New()
	require.NoError(t, sys.LoadImage(0, image))

	reached := false
	for i := 0; i < 16; i++ {
		cycles := sys.CPU.Step()
		sys.Cycles += uint64(cycles)
		sys.Timer.Advance(cycles)
		if sys.CPU.IPtr == cpu.TrapVector {
			reached = true
			break
		}
	}

	assert.True(reached)
	assert.NotZero(sys.CPU.Pending & cpu.IntTimer)
	assert.False(sys.CPU.MIE)
	// Well before the eighth NOP completes.
	assert.Less(sys.Cycles, uint64(17+16))
}

func TestRunUnmappedFault(t *testing.T) {
	assert := assert.New(t)

	image := build(t, "i $a00000\nld\n")

	sys := New()
	require.NoError(t, sys.LoadImage(0, image))

	err := sys.Run()
	assert.Error(err)
	assert.Equal(ErrUnmapped(0xA00000), err)
}

func TestRunStops(t *testing.T) {
	assert := assert.New(t)

	image := build(t, "start:\nj start\n")

	sys := New()
	require.NoError(t, sys.LoadImage(0, image))
	sys.Stop()

	assert.NoError(sys.Run())
	assert.Zero(sys.Cycles)
}

func TestRunGuestExit(t *testing.T) {
	assert := assert.New(t)

	// EXIT ends the run without HLT.
	image := build(t, "i #0\necall\nj 0\n")

	sys := New()
	require.NoError(t, sys.LoadImage(0, image))

	assert.NoError(sys.Run())
	assert.True(sys.CPU.Halted)
}

func TestRunPrintChar(t *testing.T) {
	assert := assert.New(t)

	image := build(t, "ldl #$48\nldl #4\necall\nhlt\n")

	sys := New()
	output := &bytes.Buffer{}
	sys.Console.Output = output

	require.NoError(t, sys.LoadImage(0, image))
	require.NoError(t, sys.Run())

	assert.Equal("H", output.String())
}
