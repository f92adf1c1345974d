package llvm

import (
	"lowir/internal/source"
	"lowir/internal/types"
)

// AnyCastAddr checks that the any value v holds a t and returns the address
// of a private copy of the payload. A mismatch calls the runtime assertion
// reporter with the stored type id and data pointer.
func (p *Proc) AnyCastAddr(v Value, t types.TypeID, pos source.Pos) (Value, error) {
	v, err := p.anyOperand(v)
	if err != nil {
		return Value{}, err
	}
	stored, err := p.StructEV(v, 1)
	if err != nil {
		return Value{}, err
	}
	data, err := p.StructEV(v, 0)
	if err != nil {
		return Value{}, err
	}
	want := p.m.TypeIDOf(t)
	cond, err := p.Cmp(CmpEq, stored, want)
	if err != nil {
		return Value{}, err
	}
	res, err := p.Local(t, false)
	if err != nil {
		return Value{}, err
	}

	okBlock := p.NewBlock("any_cast.ok")
	failBlock := p.NewBlock("any_cast.fail")
	p.CondBr(cond, okBlock, failBlock)

	p.StartBlock(failBlock)
	if err := p.reportAssertion(pos, stored, want, data); err != nil {
		return Value{}, err
	}

	p.StartBlock(okBlock)
	if err := p.copyAnyPayload(res, data, t); err != nil {
		return Value{}, err
	}
	return res, nil
}

// AnyCast is AnyCastAddr followed by a load.
func (p *Proc) AnyCast(v Value, t types.TypeID, pos source.Pos) (Value, error) {
	addr, err := p.AnyCastAddr(v, t, pos)
	if err != nil {
		return Value{}, err
	}
	return p.Load(addr)
}

// AnyCastOK is the comma-ok form yielding a (t, bool) tuple. The payload is
// read only when the type ids match; otherwise the tuple stays zero.
func (p *Proc) AnyCastOK(v Value, t types.TypeID, pos source.Pos) (Value, error) {
	v, err := p.anyOperand(v)
	if err != nil {
		return Value{}, err
	}
	res, err := p.Local(p.m.Types.OptionalOK(t), true)
	if err != nil {
		return Value{}, err
	}
	stored, err := p.StructEV(v, 1)
	if err != nil {
		return Value{}, err
	}
	data, err := p.StructEV(v, 0)
	if err != nil {
		return Value{}, err
	}
	cond, err := p.Cmp(CmpEq, stored, p.m.TypeIDOf(t))
	if err != nil {
		return Value{}, err
	}

	okBlock := p.NewBlock("any_cast.ok")
	endBlock := p.NewBlock("any_cast.end")
	p.CondBr(cond, okBlock, endBlock)

	p.StartBlock(okBlock)
	gep0, err := p.StructEP(res, 0)
	if err != nil {
		return Value{}, err
	}
	if err := p.copyAnyPayload(gep0, data, t); err != nil {
		return Value{}, err
	}
	gep1, err := p.StructEP(res, 1)
	if err != nil {
		return Value{}, err
	}
	if err := p.Store(gep1, p.ConstBool(true)); err != nil {
		return Value{}, err
	}
	p.Br(endBlock)

	p.StartBlock(endBlock)
	return p.Load(res)
}

func (p *Proc) copyAnyPayload(dst, data Value, t types.TypeID) error {
	src, err := p.Conv(data, p.m.Types.Pointer(t))
	if err != nil {
		return err
	}
	payload, err := p.Load(src)
	if err != nil {
		return err
	}
	return p.Store(dst, payload)
}

func (p *Proc) anyOperand(v Value) (Value, error) {
	in := p.m.Types
	if in.KindOf(v.Type) == types.KindPointer {
		loaded, err := p.Load(v)
		if err != nil {
			return Value{}, err
		}
		v = loaded
	}
	if !in.IsAny(v.Type) {
		return Value{}, p.m.internalf("any cast", tys(v.Type), "not an any")
	}
	return v, nil
}

// ConvToAny boxes v: the value is copied to a fresh local and the any
// records that local's address with the type id of v.
func (p *Proc) ConvToAny(v Value) (Value, error) {
	in := p.m.Types
	b := in.Builtins()
	switch {
	case in.IsAny(v.Type):
		return v, nil
	case v.Type == b.UntypedNil:
		return p.Zero(b.Any)
	}
	box, err := p.Local(v.Type, false)
	if err != nil {
		return Value{}, err
	}
	if err := p.Store(box, v); err != nil {
		return Value{}, err
	}
	res, err := p.Local(b.Any, false)
	if err != nil {
		return Value{}, err
	}
	if err := p.fillPair(res, box, p.m.TypeIDOf(v.Type)); err != nil {
		return Value{}, err
	}
	return p.Load(res)
}
