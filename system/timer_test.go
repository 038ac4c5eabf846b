package system

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robincores/r824/cpu"
)

func newTimer() (*Timer, *cpu.R824) {
	c := cpu.New(RAM(make([]byte, 16)), nil)
	return NewTimer(c), c
}

// setCompare writes a 24-bit compare value, low byte first, the way a
// guest 24-bit store reaches the device.
func setCompare(t *Timer, value uint32) {
	t.Write(0, byte(value))
	t.Write(1, byte(value>>8))
	t.Write(2, byte(value>>16))
}

func TestTimerDisabledByDefault(t *testing.T) {
	assert := assert.New(t)

	timer, c := newTimer()
	timer.Advance(1 << 20)

	assert.Zero(c.Pending & cpu.IntTimer)
}

func TestTimerFires(t *testing.T) {
	assert := assert.New(t)

	timer, c := newTimer()
	setCompare(timer, 2)

	timer.Advance(1)
	assert.Zero(c.Pending & cpu.IntTimer)

	timer.Advance(1)
	assert.NotZero(c.Pending & cpu.IntTimer)

	// After firing the timer disables itself until the high byte is
	// rewritten.
	c.Pending = 0
	timer.Advance(100)
	assert.Zero(c.Pending & cpu.IntTimer)

	timer.Write(2, 0)
	timer.Advance(2)
	assert.NotZero(c.Pending & cpu.IntTimer)
}

func TestTimerCompareReadback(t *testing.T) {
	assert := assert.New(t)

	timer, _ := newTimer()
	setCompare(timer, 0x123456)

	assert.Equal(byte(0x56), timer.Read(0))
	assert.Equal(byte(0x34), timer.Read(1))
	assert.Equal(byte(0x12), timer.Read(2))
	assert.Equal(byte(0), timer.Read(7))
}

func TestTimerHighByteResetsCount(t *testing.T) {
	assert := assert.New(t)

	timer, c := newTimer()
	setCompare(timer, 10)

	timer.Advance(9)
	timer.Write(2, 0) // resets the count
	timer.Advance(9)
	assert.Zero(c.Pending & cpu.IntTimer)

	timer.Advance(1)
	assert.NotZero(c.Pending & cpu.IntTimer)
}
