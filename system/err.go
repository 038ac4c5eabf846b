package system

import (
	"github.com/robincores/r824/translate"
)

var f = translate.From

// ErrUnmapped reports a byte access outside every mapped region.
type ErrUnmapped uint32

func (err ErrUnmapped) Error() string {
	return f("no memory region mapped for address 0x%06x", uint32(err))
}
