package system

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robincores/r824/cpu"
)

// Console is the default environment-call host: guest output goes to
// Output, guest input comes from Input.
type Console struct {
	Input  io.Reader // Defaults to stdin.
	Output io.Writer // Defaults to stdout.

	// OnExit, when set, is invoked by the EXIT call.
	OnExit func()

	reader *bufio.Reader
}

var _ cpu.Environment = (*Console)(nil)

func (con *Console) in() *bufio.Reader {
	if con.reader == nil {
		input := con.Input
		if input == nil {
			input = os.Stdin
		}
		con.reader = bufio.NewReader(input)
	}
	return con.reader
}

func (con *Console) out() io.Writer {
	if con.Output == nil {
		return os.Stdout
	}
	return con.Output
}

func (con *Console) Exit() {
	if con.OnExit != nil {
		con.OnExit()
	}
}

func (con *Console) RegisterDump(a, b, c int32, wksp [16]int32) {
	w := con.out()
	fmt.Fprintln(w, "------------")
	fmt.Fprintf(w, "AReg: %06x\n", uint32(a)&cpu.AddrMask)
	fmt.Fprintf(w, "BReg: %06x\n", uint32(b)&cpu.AddrMask)
	fmt.Fprintf(w, "CReg: %06x\n", uint32(c)&cpu.AddrMask)
	fmt.Fprintln(w, "------------")
	for n, slot := range wksp {
		fmt.Fprintf(w, " @%x : %06x\n", n, uint32(slot)&cpu.AddrMask)
	}
	fmt.Fprintln(w, "------------")
}

func (con *Console) MemoryDump(base uint32, data []byte) {
	w := con.out()
	fmt.Fprintln(w)
	for row := 0; row < len(data); row += 16 {
		fmt.Fprintf(w, "%06x", (base+uint32(row))&cpu.AddrMask)
		for _, b := range data[row : row+16] {
			fmt.Fprintf(w, " | %02x", b)
		}
		fmt.Fprintln(w)
	}
}

func (con *Console) PrintInt(value int32) {
	fmt.Fprintf(con.out(), "%d", value)
}

func (con *Console) PrintChar(ch byte) {
	fmt.Fprintf(con.out(), "%c", ch)
}

func (con *Console) ReadChar() (byte, error) {
	return con.in().ReadByte()
}

func (con *Console) PrintString(s []byte) {
	fmt.Fprintf(con.out(), "%s\n", s)
}

func (con *Console) ReadLine() (line string, err error) {
	line, err = con.in().ReadString('\n')
	if err != nil && line == "" {
		return
	}
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"), nil
}
