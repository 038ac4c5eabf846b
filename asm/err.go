package asm

import (
	"errors"

	"github.com/robincores/r824/translate"
)

var f = translate.From

var (
	// Spec errors
	ErrRuleFormat = errors.New(f("rule needs a 'fmt' string"))
	ErrRuleBits   = errors.New(f("rule needs a 'bits' list"))
	ErrArchValue  = errors.New(f("integer value expected"))

	// Directive errors
	ErrDirectiveArgs = errors.New(f("directive argument missing"))
	ErrNoLoader      = errors.New(f("no loader installed"))
)

// ErrVarUnknown reports a rule referencing a variable the spec does not
// define.
type ErrVarUnknown string

func (err ErrVarUnknown) Error() string {
	return f("no variable definition for '~%v'", string(err))
}

// ErrRuleRegex reports a format string whose generated pattern failed to
// compile.
type ErrRuleRegex struct {
	Fmt     string
	Pattern string
	Err     error
}

func (err *ErrRuleRegex) Error() string {
	return f("bad regex for rule '%v': %v -- %v", err.Fmt, err.Pattern, err.Err)
}

func (err *ErrRuleRegex) Unwrap() error {
	return err.Err
}

// ErrArch reports a malformed architecture description.
type ErrArch struct {
	Path string
	Err  error
}

func (err *ErrArch) Error() string {
	return f("arch '%v': %v", err.Path, err.Err)
}

func (err *ErrArch) Unwrap() error {
	return err.Err
}
