package llvm

import (
	"github.com/llir/llvm/ir/value"

	"lowir/internal/types"
)

// RuntimeProc is a routine of the runtime support library, reached only by
// name. A diverging routine never returns to its caller.
type RuntimeProc struct {
	Name     string
	Sig      ProcSig
	Diverges bool
}

// RuntimeProcs lists the runtime routines this layer calls.
func RuntimeProcs(in *types.Interner) []RuntimeProc {
	b := in.Builtins()
	return []RuntimeProc{
		{
			Name: "type_assertion_check2",
			Sig: ProcSig{Params: []Param{
				{Name: "ok", Type: b.Bool},
				{Name: "file", Type: b.String},
				{Name: "line", Type: b.I32},
				{Name: "column", Type: b.I32},
				{Name: "from", Type: b.Typeid},
				{Name: "to", Type: b.Typeid},
				{Name: "data", Type: b.Rawptr},
			}},
			Diverges: true,
		},
		{
			Name: "cstring_len",
			Sig: ProcSig{
				Params:  []Param{{Name: "s", Type: b.Cstring}},
				Results: []Result{{Type: b.Int}},
			},
		},
	}
}

func (m *Module) runtimeProc(name string) (RuntimeProc, bool) {
	for _, rp := range RuntimeProcs(m.Types) {
		if rp.Name == name {
			return rp, true
		}
	}
	return RuntimeProc{}, false
}

// RuntimeCall calls a runtime routine, converting args to its parameter
// types. After a diverging routine the block ends in unreachable and the
// returned Value is invalid.
func (p *Proc) RuntimeCall(name string, args ...Value) (Value, error) {
	rp, ok := p.m.runtimeProc(name)
	if !ok {
		return Value{}, p.m.internalf("runtime call", nil, "unknown runtime routine %s", name)
	}
	if len(args) != len(rp.Sig.Params) {
		return Value{}, p.m.internalf("runtime call", nil, "%s takes %d arguments, got %d", name, len(rp.Sig.Params), len(args))
	}
	fn, err := p.m.DeclareProc(name, rp.Sig)
	if err != nil {
		return Value{}, err
	}
	vals := make([]value.Value, len(args))
	for i, a := range args {
		conv, err := p.Conv(a, rp.Sig.Params[i].Type)
		if err != nil {
			return Value{}, err
		}
		vals[i] = conv.V
	}
	call := p.cur.NewCall(fn, vals...)
	p.clobber()
	if rp.Diverges {
		p.Unreachable()
		return Value{}, nil
	}
	res := Value{V: call}
	if len(rp.Sig.Results) == 1 {
		res.Type = rp.Sig.Results[0].Type
	}
	return res, nil
}
