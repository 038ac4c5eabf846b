// Copyright 2025, Robin Cores <robincores@gmail.com>

// Package asm implements the table-driven assembler of the R824 toolchain.
//
// An architecture description (Spec) declares operand variables and an
// ordered list of instruction rules. Each rule's format string compiles to
// an anchored regular expression; the first rule whose pattern matches an
// input line emits the instruction bits. Symbols referenced before their
// definition are deferred as fixups and patched after the whole file has
// been processed.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Diagnostic is an assembler message bound to a source line.
type Diagnostic struct {
	Msg  string
	Line int
}

// Line records the emission footprint of one source line.
type Line struct {
	LineNo int
	Offset int    // Emission offset (IP) of the first word.
	NBits  int    // Emitted bit length.
	Insns  string // Rendered hex words, filled in by Finish.
}

// Fixup defers the resolution of a symbol reference until all symbols are
// known.
type Fixup struct {
	Sym    string
	Ofs    int // Emission offset of the instruction.
	Size   int // Total bit width of the variable.
	SrcOfs int // Right-shift applied to the source value.
	DstOfs int // Bit offset within the instruction encoding.
	DstLen int // Bit length of the destination field.
	Line   int
	IPRel  bool
	IPOfs  int
	IPMul  int
	Endian string
}

// State is a snapshot of the assembler after Finish.
type State struct {
	IP      int
	LineNo  int
	Origin  int
	CodeLen int
	Width   int
	Output  []int
	Lines   []Line
	Errors  []Diagnostic
	Fixups  []Fixup
}

// Binary serializes the output stream as one byte per word, each holding
// the low eight bits of the emitted integer. That is the whole word for
// word widths up to 8; the higher bits of wider words are not kept.
func (st *State) Binary() (data []byte) {
	data = make([]byte, len(st.Output))
	for n, word := range st.Output {
		data[n] = byte(word)
	}
	return
}

// Loader resolves the directives that reach outside the current file.
type Loader interface {
	// Arch loads a named architecture description.
	Arch(name string) (*Spec, error)
	// Include returns the source text of an include file.
	Include(name string) (string, error)
	// Module returns the source text of a named module.
	Module(name string) (string, error)
}

// Assembler converts assembly text into an output word stream using the
// rules of its architecture spec. It is strictly single-pass over the
// source; fixups are resolved once by Finish.
type Assembler struct {
	Verbose bool
	Spec    *Spec
	Loader  Loader // Optional; required by .arch/.include/.module.

	ip      int
	origin  int
	linenum int
	width   int
	codelen int
	aborted bool

	symbols  map[string]int
	errors   []Diagnostic
	outwords []int
	lines    []Line
	fixups   []Fixup
}

// New creates an assembler for the given spec. The spec may be nil, in
// which case the source must select one with .arch before the first
// instruction.
func New(spec *Spec) (a *Assembler, err error) {
	a = &Assembler{
		Spec:    spec,
		width:   8,
		symbols: make(map[string]int, 16),
	}

	if spec != nil {
		err = spec.Compile()
		if err != nil {
			return nil, err
		}
		if spec.Width != 0 {
			a.width = spec.Width
		}
	}

	return
}

// Aborted reports whether a fatal error has stopped line processing.
func (a *Assembler) Aborted() bool {
	return a.aborted
}

func (a *Assembler) warningAt(msg string, line int) {
	a.errors = append(a.errors, Diagnostic{Msg: msg, Line: line})
}

func (a *Assembler) warning(msg string) {
	a.warningAt(msg, a.linenum)
}

func (a *Assembler) fatal(msg string) {
	a.warning(msg)
	a.aborted = true
}

// parseConst parses a numeric literal: decimal, 0x-prefixed hex, or
// $-prefixed hex.
func parseConst(s string) (value int, ok bool) {
	var v int64
	var err error

	switch {
	case strings.HasPrefix(s, "0x"):
		v, err = strconv.ParseInt(s[2:], 16, 64)
	case strings.HasPrefix(s, "$"):
		v, err = strconv.ParseInt(s[1:], 16, 64)
	default:
		v, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		return 0, false
	}

	return int(v), true
}

// swapEndian reverses the word-width groups of a value's low nbits.
func swapEndian(value, nbits, width int) (y int) {
	for nbits > 0 {
		n := min(nbits, width)
		y = y<<n | value&(1<<n-1)
		value >>= n
		nbits -= n
	}
	return
}

// buildInstruction walks the rule's emission list against the regex
// submatches, accumulating the opcode left to right. Fixups for symbolic
// operands are returned alongside and recorded only if the whole rule
// assembles.
func (a *Assembler) buildInstruction(rule *Rule, m []string) (opcode, nbits int, fixes []Fixup, err error) {
	for _, bit := range rule.Bits {
		var n, x int

		if bit.Kind == BitLiteral {
			n = len(bit.Lit)
			v, perr := strconv.ParseInt(bit.Lit, 2, 64)
			if perr != nil {
				err = errors.New(f("bad bit literal '%v'", bit.Lit))
				return
			}
			x = int(v)
		} else {
			index := bit.A
			if index >= len(rule.vars) || index >= len(m)-1 {
				err = errors.New(f("no matching identifier for '%v' index %v", m[0], index))
				return
			}
			id := m[index+1]
			v := a.Spec.Vars[rule.vars[index]]
			if v == nil {
				err = errors.New(f("no matching identifier for '%v' index %v", m[0], index))
				return
			}

			n = v.Bits
			shift := 0
			if bit.Kind == BitSlice {
				n = bit.N
				shift = bit.B
			}

			if v.Toks != nil {
				x = slices.Index(v.Toks, id)
				if x < 0 {
					err = errors.New(f("can't use '%v' here, only one of: %v", id, v.Toks))
					return
				}
			} else {
				var ok bool
				x, ok = parseConst(id)
				if !ok {
					// Symbolic operand; patch after all symbols are known.
					ipmul := v.IPMul
					if ipmul == 0 {
						ipmul = 1
					}
					fixes = append(fixes, Fixup{
						Sym:    id,
						Ofs:    a.ip,
						Size:   v.Bits,
						DstOfs: nbits,
						DstLen: n,
						Line:   a.linenum,
						IPRel:  v.IPRel,
						IPOfs:  v.IPOfs,
						IPMul:  ipmul,
						Endian: v.Endian,
					})
					x = 0
				} else {
					mask := 1<<v.Bits - 1
					if x&mask != x {
						err = errors.New(f("value %v does not fit in %v bits", x, v.Bits))
						return
					}
				}
			}

			if v.Endian == EndianLittle {
				x = swapEndian(x, v.Bits, a.width)
			}

			if bit.Kind == BitSlice {
				x = x >> shift & (1<<n - 1)
			}
		}

		opcode = opcode<<n | x
		nbits += n
	}

	switch {
	case nbits == 0:
		a.warning(f("opcode had zero length"))
	case nbits > 32:
		a.warning(f("opcode wider than 32 bits (%v bits)", nbits))
	case nbits%a.width != 0:
		a.warning(f("opcode was not word-aligned (%v bits)", nbits))
	}

	return
}

// addBytes emits an assembled opcode as nbits/width words, most
// significant word first.
func (a *Assembler) addBytes(opcode, nbits int) {
	a.lines = append(a.lines, Line{LineNo: a.linenum, Offset: a.ip, NBits: nbits})

	nb := nbits / a.width
	for i := 0; i < nb; i++ {
		if a.width < 32 {
			a.outwords = append(a.outwords, opcode>>((nb-1-i)*a.width)&(1<<a.width-1))
		} else {
			a.outwords = append(a.outwords, opcode)
		}
		a.ip++
	}
}

// addWords emits raw data words, masked to the word width.
func (a *Assembler) addWords(data []int) {
	a.lines = append(a.lines, Line{LineNo: a.linenum, Offset: a.ip, NBits: a.width * len(data)})

	for _, d := range data {
		if a.width < 32 {
			a.outwords = append(a.outwords, d&(1<<a.width-1))
		} else {
			a.outwords = append(a.outwords, d)
		}
		a.ip++
	}
}

func (a *Assembler) parseData(toks []string) (data []int) {
	data = make([]int, len(toks))
	for n, tok := range toks {
		v, ok := parseConst(tok)
		if !ok {
			a.warning(f("'%v' is not a constant", tok))
		}
		data[n] = v
	}
	return
}

func (a *Assembler) alignIP(align int) {
	if align < 1 || align > a.codelen {
		a.fatal(f("invalid alignment value"))
		return
	}
	a.ip = (a.ip + align - 1) / align * align
}

// constArg parses the numeric argument of a directive, flagging a fatal
// error when missing or malformed.
func (a *Assembler) constArg(tokens []string) (value int, ok bool) {
	if len(tokens) < 2 {
		a.fatal(ErrDirectiveArgs.Error())
		return
	}
	value, ok = parseConst(tokens[1])
	if !ok {
		a.fatal(f("'%v' is not a constant", tokens[1]))
	}
	return
}

func (a *Assembler) parseDirective(tokens []string) {
	cmd := strings.ToLower(tokens[0])

	switch cmd {
	case ".define":
		if len(tokens) < 3 {
			a.fatal(ErrDirectiveArgs.Error())
			return
		}
		value, ok := parseConst(tokens[2])
		if !ok {
			a.fatal(f("'%v' is not a constant", tokens[2]))
			return
		}
		a.symbols[strings.ToLower(tokens[1])] = value

	case ".org":
		value, ok := a.constArg(tokens)
		if ok {
			a.ip = value
			a.origin = value
		}

	case ".len":
		value, ok := a.constArg(tokens)
		if ok {
			a.codelen = value
		}

	case ".width":
		value, ok := a.constArg(tokens)
		if ok {
			if value < 1 || value > 32 {
				a.fatal(f("unsupported word width %v", value))
				return
			}
			a.width = value
		}

	case ".arch":
		if len(tokens) < 2 {
			a.fatal(ErrDirectiveArgs.Error())
			return
		}
		if a.Loader == nil {
			a.fatal(ErrNoLoader.Error())
			return
		}
		spec, err := a.Loader.Arch(tokens[1])
		if err != nil {
			a.fatal(err.Error())
			return
		}
		if err = spec.Compile(); err != nil {
			a.fatal(err.Error())
			return
		}
		a.Spec = spec
		if spec.Width != 0 {
			a.width = spec.Width
		}

	case ".include", ".module":
		if len(tokens) < 2 {
			a.fatal(ErrDirectiveArgs.Error())
			return
		}
		if a.Loader == nil {
			a.fatal(ErrNoLoader.Error())
			return
		}
		var text string
		var err error
		if cmd == ".include" {
			text, err = a.Loader.Include(tokens[1])
		} else {
			text, err = a.Loader.Module(tokens[1])
		}
		if err != nil {
			a.fatal(err.Error())
			return
		}
		saved := a.linenum
		textLines := strings.SplitAfter(text, "\n")
		if n := len(textLines); n > 0 && textLines[n-1] == "" {
			textLines = textLines[:n-1]
		}
		for _, line := range textLines {
			if a.aborted {
				break
			}
			a.assembleLine(strings.TrimSuffix(line, "\n"))
		}
		a.linenum = saved

	case ".data":
		a.addWords(a.parseData(tokens[1:]))

	case ".string":
		rest := strings.Join(tokens[1:], " ")
		data := make([]int, 0, len(rest))
		for _, r := range rest {
			data = append(data, int(r))
		}
		a.addWords(data)

	case ".align":
		value, ok := a.constArg(tokens)
		if ok {
			a.alignIP(value)
		}

	default:
		a.warning(f("unrecognized directive: %v", strings.Join(tokens, " ")))
	}
}

var labelRe = regexp.MustCompile(`(\w+):`)

// assembleLine processes one source line: comment stripping, directives,
// label bindings, then first-match rule assembly.
func (a *Assembler) assembleLine(text string) {
	a.linenum++

	if a.Verbose {
		log.Printf("%v: %v", a.linenum, text)
	}

	line := text
	if n := strings.Index(line, ";"); n >= 0 {
		line = line[:n]
	}
	line = strings.TrimSpace(line)

	if line == "" {
		return
	}

	if line[0] == '.' {
		a.parseDirective(strings.Fields(line))
		return
	}

	line = strings.ToLower(line)

	for _, m := range labelRe.FindAllStringSubmatch(line, -1) {
		a.symbols[m[1]] = a.ip
	}
	line = strings.TrimSpace(labelRe.ReplaceAllString(line, ""))
	if line == "" {
		return
	}

	if a.Spec == nil {
		a.fatal(f("need to load .arch first"))
		return
	}

	var lastErr error
	for _, rule := range a.Spec.Rules {
		m := rule.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		opcode, nbits, fixes, err := a.buildInstruction(rule, m)
		if err != nil {
			lastErr = err
			continue
		}
		a.fixups = append(a.fixups, fixes...)
		a.addBytes(opcode, nbits)
		return
	}

	if lastErr != nil {
		a.warning(lastErr.Error())
	} else {
		a.warning(f("could not decode instruction: %v", line))
	}
}

// word reads an output word by stream index, treating unwritten space as
// zero.
func (a *Assembler) word(index int) int {
	if index < 0 || index >= len(a.outwords) {
		return 0
	}
	return a.outwords[index]
}

// setWord stores an output word by stream index, growing the stream as
// needed for forward references into not-yet-padded space.
func (a *Assembler) setWord(index, value int) {
	for index >= len(a.outwords) {
		a.outwords = append(a.outwords, 0)
	}
	a.outwords[index] = value
}

// applyFixup patches a resolved symbol into the output stream.
func (a *Assembler) applyFixup(fix Fixup, symval int) {
	ofs := fix.Ofs + fix.DstOfs/a.width
	mask := 1<<fix.Size - 1
	value := symval

	if fix.IPRel {
		value = (value-fix.Ofs)*fix.IPMul - fix.IPOfs
	}

	if fix.SrcOfs == 0 && (value > mask || value < -mask) {
		a.warningAt(f("symbol %v (%v) does not fit in %v bits", fix.Sym, value, fix.DstLen), fix.Line)
	}

	if fix.SrcOfs > 0 {
		value >>= fix.SrcOfs
	}
	value &= 1<<fix.DstLen - 1

	if a.width == 32 {
		value <<= 32 - fix.DstOfs - fix.DstLen
	}

	index := ofs - a.origin
	if index < 0 {
		a.warningAt(f("symbol %v patched before origin", fix.Sym), fix.Line)
		return
	}

	if fix.Size <= a.width {
		a.setWord(index, a.word(index)^value)
		return
	}

	if fix.Endian != EndianLittle {
		value = swapEndian(value, fix.Size, a.width)
	}

	for value != 0 {
		index = ofs - a.origin
		cur := a.word(index)
		if value&cur != 0 {
			a.warningAt(f("instruction bits overlapped: %08X %08X", cur, value), fix.Line)
		} else {
			a.setWord(index, cur^value&(1<<a.width-1))
		}
		value >>= a.width
		ofs++
	}
}

// Finish resolves every pending fixup, renders the per-line hex listing,
// and zero-pads the output up to the declared code length.
func (a *Assembler) Finish() State {
	for _, fix := range a.fixups {
		if symval, ok := a.symbols[fix.Sym]; ok {
			a.applyFixup(fix, symval)
		} else {
			a.warningAt(f("symbol '%v' not found", fix.Sym), fix.Line)
		}
	}

	for n := range a.lines {
		al := &a.lines[n]
		words := make([]string, 0, al.NBits/a.width)
		for j := 0; j < al.NBits/a.width; j++ {
			words = append(words, fmt.Sprintf("%0*X", max(a.width/4, 1), a.word(al.Offset+j-a.origin)))
		}
		al.Insns = strings.Join(words, " ")
	}

	for len(a.outwords) < a.codelen {
		a.outwords = append(a.outwords, 0)
	}

	a.fixups = a.fixups[:0]
	return a.State()
}

// State snapshots the assembler.
func (a *Assembler) State() State {
	return State{
		IP:      a.ip,
		LineNo:  a.linenum,
		Origin:  a.origin,
		CodeLen: a.codelen,
		Width:   a.width,
		Output:  slices.Clone(a.outwords),
		Lines:   slices.Clone(a.lines),
		Errors:  slices.Clone(a.errors),
		Fixups:  slices.Clone(a.fixups),
	}
}

// Parse assembles an input stream line by line and finalizes the result.
// Errors are collected in the returned state rather than returned; a fatal
// error stops line processing but fixups and padding still run so the
// diagnostics refer to a complete stream.
func (a *Assembler) Parse(input io.Reader) State {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		if a.aborted {
			break
		}
		a.assembleLine(scanner.Text())
	}
	return a.Finish()
}
