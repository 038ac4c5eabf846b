package asm

import (
	_ "embed"
	"errors"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Architecture descriptions are Starlark documents. Evaluating one must
// produce the globals:
//
//	name  = "R824"                 # string
//	width = 8                      # int, optional, default 8
//	vars  = {"imm24": {...}, ...}  # dict of variable descriptors
//	rules = [{"fmt": ..., "bits": [...]}, ...]
//
// A variable descriptor carries "bits" plus the optional keys "toks",
// "endian", "iprel", "ipofs" and "ipmul". A bits entry is a binary literal
// string, a bare variable index, or a slice dict {"a", "b", "n"}.

//go:embed r824.star
var r824Star string

// R824 loads the embedded canonical R824 instruction table.
func R824() (*Spec, error) {
	return LoadSpec("r824.star", r824Star)
}

// LoadSpec evaluates a Starlark architecture description. The src argument
// follows starlark.ExecFileOptions: nil to read the named file, or the
// document text.
func LoadSpec(path string, src any) (spec *Spec, err error) {
	defer func() {
		if err != nil {
			err = &ErrArch{Path: path, Err: err}
		}
	}()

	thread := &starlark.Thread{Name: "arch"}
	opts := &syntax.FileOptions{}
	globals, err := starlark.ExecFileOptions(opts, thread, path, src, nil)
	if err != nil {
		return
	}

	spec = &Spec{
		Width: 8,
		Vars:  make(map[string]*Var),
	}

	name, ok := globals["name"].(starlark.String)
	if !ok {
		return nil, errors.New(f("'name' must be a string"))
	}
	spec.Name = string(name)

	if wv, found := globals["width"]; found {
		spec.Width, err = starInt(wv)
		if err != nil {
			return nil, errors.New(f("'width' must be an int"))
		}
	}

	vars, ok := globals["vars"].(*starlark.Dict)
	if !ok {
		return nil, errors.New(f("'vars' must be a dict"))
	}
	for _, item := range vars.Items() {
		key, kok := item[0].(starlark.String)
		desc, dok := item[1].(*starlark.Dict)
		if !kok || !dok {
			return nil, errors.New(f("variable entries must map a name to a dict"))
		}
		var v *Var
		v, err = starVar(desc)
		if err != nil {
			return nil, errors.New(f("variable '%v': %v", string(key), err))
		}
		spec.Vars[string(key)] = v
	}

	rules, ok := globals["rules"].(*starlark.List)
	if !ok {
		return nil, errors.New(f("'rules' must be a list"))
	}
	for n := 0; n < rules.Len(); n++ {
		desc, dok := rules.Index(n).(*starlark.Dict)
		if !dok {
			return nil, errors.New(f("rule %v must be a dict", n))
		}
		var rule *Rule
		rule, err = starRule(desc)
		if err != nil {
			return nil, errors.New(f("rule %v: %v", n, err))
		}
		spec.Rules = append(spec.Rules, rule)
	}

	err = spec.Compile()
	if err != nil {
		return nil, err
	}

	return
}

func starInt(v starlark.Value) (value int, err error) {
	i, ok := v.(starlark.Int)
	if !ok {
		return 0, ErrArchValue
	}
	i64, ok := i.Int64()
	if !ok {
		return 0, ErrArchValue
	}
	return int(i64), nil
}

// dictInt fetches an optional integer key, with a default of 0.
func dictInt(d *starlark.Dict, key string) (value int, err error) {
	v, found, err := d.Get(starlark.String(key))
	if err != nil || !found {
		return
	}
	return starInt(v)
}

func starVar(d *starlark.Dict) (v *Var, err error) {
	v = &Var{}

	v.Bits, err = dictInt(d, "bits")
	if err != nil {
		return
	}
	if v.Bits < 1 || v.Bits > 32 {
		return nil, errors.New(f("'bits' must be 1..32"))
	}

	if tv, found, _ := d.Get(starlark.String("toks")); found {
		list, ok := tv.(*starlark.List)
		if !ok {
			return nil, errors.New(f("'toks' must be a list of strings"))
		}
		v.Toks = make([]string, 0, list.Len())
		for n := 0; n < list.Len(); n++ {
			tok, ok := list.Index(n).(starlark.String)
			if !ok {
				return nil, errors.New(f("'toks' must be a list of strings"))
			}
			v.Toks = append(v.Toks, string(tok))
		}
	}

	if ev, found, _ := d.Get(starlark.String("endian")); found {
		endian, ok := ev.(starlark.String)
		if !ok || (string(endian) != EndianBig && string(endian) != EndianLittle) {
			return nil, errors.New(f("'endian' must be \"big\" or \"little\""))
		}
		v.Endian = string(endian)
	}

	if iv, found, _ := d.Get(starlark.String("iprel")); found {
		v.IPRel = bool(iv.Truth())
	}
	v.IPOfs, err = dictInt(d, "ipofs")
	if err != nil {
		return
	}
	v.IPMul, err = dictInt(d, "ipmul")
	if err != nil {
		return
	}

	return
}

func starRule(d *starlark.Dict) (rule *Rule, err error) {
	rule = &Rule{}

	fv, found, _ := d.Get(starlark.String("fmt"))
	fs, ok := fv.(starlark.String)
	if !found || !ok {
		return nil, ErrRuleFormat
	}
	rule.Fmt = string(fs)

	bv, found, _ := d.Get(starlark.String("bits"))
	bits, ok := bv.(*starlark.List)
	if !found || !ok {
		return nil, ErrRuleBits
	}

	for n := 0; n < bits.Len(); n++ {
		var bit Bit
		switch entry := bits.Index(n).(type) {
		case starlark.String:
			bit = Bit{Kind: BitLiteral, Lit: string(entry)}
			for _, ch := range bit.Lit {
				if ch != '0' && ch != '1' {
					return nil, errors.New(f("bit literal '%v' must be binary", bit.Lit))
				}
			}
			if bit.Lit == "" {
				return nil, errors.New(f("bit literal must not be empty"))
			}
		case starlark.Int:
			var index int
			index, err = starInt(entry)
			if err != nil {
				return
			}
			bit = Bit{Kind: BitVar, A: index}
		case *starlark.Dict:
			bit = Bit{Kind: BitSlice}
			bit.A, err = dictInt(entry, "a")
			if err != nil {
				return
			}
			bit.B, err = dictInt(entry, "b")
			if err != nil {
				return
			}
			bit.N, err = dictInt(entry, "n")
			if err != nil {
				return
			}
			if bit.N < 1 {
				return nil, errors.New(f("slice 'n' must be positive"))
			}
		default:
			return nil, errors.New(f("bits entries must be strings, ints, or slice dicts"))
		}
		rule.Bits = append(rule.Bits, bit)
	}

	return
}
