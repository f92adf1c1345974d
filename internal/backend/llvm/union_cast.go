package llvm

import (
	"fortio.org/safecast"

	"lowir/internal/source"
	"lowir/internal/types"
)

// UnionCast unwraps variant t from a union value, or from the union a
// pointer points at. A mismatch calls the runtime assertion reporter,
// which does not return. The report names the operand's own type, which
// is the pointer type for a pointer operand.
func (p *Proc) UnionCast(v Value, t types.TypeID, pos source.Pos) (Value, error) {
	src := v.Type
	v, union, err := p.unionOperand(v)
	if err != nil {
		return Value{}, err
	}
	addr, err := p.AddressFromLoadOrGenerateLocal(v)
	if err != nil {
		return Value{}, err
	}
	cond, err := p.unionHolds(addr, union, t)
	if err != nil {
		return Value{}, err
	}
	okBlock := p.NewBlock("union_cast.ok")
	failBlock := p.NewBlock("union_cast.fail")
	p.CondBr(cond, okBlock, failBlock)

	p.StartBlock(failBlock)
	if err := p.reportAssertion(pos, p.m.TypeIDOf(src), p.m.TypeIDOf(t), addr); err != nil {
		return Value{}, err
	}

	p.StartBlock(okBlock)
	payload, err := p.retypePtr(addr, t)
	if err != nil {
		return Value{}, err
	}
	return p.Load(payload)
}

// UnionCastOK is the comma-ok form: it yields a (t, bool) tuple. The
// payload slot is copied from the union's storage before the tag test, so
// on failure it holds meaningless but initialised bytes.
func (p *Proc) UnionCastOK(v Value, t types.TypeID, pos source.Pos) (Value, error) {
	v, union, err := p.unionOperand(v)
	if err != nil {
		return Value{}, err
	}
	tuple := p.m.Types.OptionalOK(t)
	res, err := p.Local(tuple, true)
	if err != nil {
		return Value{}, err
	}
	addr, err := p.AddressFromLoadOrGenerateLocal(v)
	if err != nil {
		return Value{}, err
	}
	gep0, err := p.StructEP(res, 0)
	if err != nil {
		return Value{}, err
	}
	gep1, err := p.StructEP(res, 1)
	if err != nil {
		return Value{}, err
	}

	payload, err := p.retypePtr(addr, t)
	if err != nil {
		return Value{}, err
	}
	data, err := p.Load(payload)
	if err != nil {
		return Value{}, err
	}
	if err := p.Store(gep0, data); err != nil {
		return Value{}, err
	}

	cond, err := p.unionHolds(addr, union, t)
	if err != nil {
		return Value{}, err
	}
	okBlock := p.NewBlock("union_cast.ok")
	endBlock := p.NewBlock("union_cast.end")
	p.CondBr(cond, okBlock, endBlock)

	p.StartBlock(okBlock)
	if err := p.Store(gep1, p.ConstBool(true)); err != nil {
		return Value{}, err
	}
	p.Br(endBlock)

	p.StartBlock(endBlock)
	return p.Load(res)
}

// UnionCastOnlyOK serves `_, ok := u.(T)`. Only the flag is computed; the
// result is a (bool, bool) tuple whose first slot stays false.
func (p *Proc) UnionCastOnlyOK(v Value, tuple types.TypeID, pos source.Pos) (Value, error) {
	in := p.m.Types
	elems := in.TupleElems(tuple)
	if len(elems) != 2 {
		return Value{}, p.m.internalf("union cast ok", tys(tuple), "want a (T, ok) tuple")
	}
	v, union, err := p.unionOperand(v)
	if err != nil {
		return Value{}, err
	}
	flags := in.Tuple(elems[1], elems[1])
	res, err := p.Local(flags, true)
	if err != nil {
		return Value{}, err
	}
	addr, err := p.AddressFromLoadOrGenerateLocal(v)
	if err != nil {
		return Value{}, err
	}
	cond, err := p.unionHolds(addr, union, elems[0])
	if err != nil {
		return Value{}, err
	}
	gep1, err := p.StructEP(res, 1)
	if err != nil {
		return Value{}, err
	}
	if err := p.Store(gep1, cond); err != nil {
		return Value{}, err
	}
	return p.Load(res)
}

// StoreUnionVariant stores v into the union addr points at and sets the
// tag of v's variant.
func (p *Proc) StoreUnionVariant(addr, v Value) error {
	in := p.m.Types
	union := in.Elem(addr.Type)
	if in.KindOf(union) != types.KindUnion {
		return p.m.internalf("store union", tys(addr.Type), "not a pointer to a union")
	}
	tag, ok := in.UnionVariantTag(union, v.Type)
	if !ok {
		return p.m.internalf("store union", tys(union, v.Type), "not a variant")
	}
	payload, err := p.retypePtr(addr, v.Type)
	if err != nil {
		return err
	}
	if err := p.Store(payload, v); err != nil {
		return err
	}
	if in.UnionMaybePointer(union) {
		return nil
	}
	tagPtr, err := p.unionTagPtr(addr)
	if err != nil {
		return err
	}
	signed, err := safecast.Conv[int64](tag)
	if err != nil {
		return err
	}
	c, err := p.ConstInt(in.Elem(tagPtr.Type), signed)
	if err != nil {
		return err
	}
	return p.Store(tagPtr, c)
}

// unionOperand loads through a pointer operand and returns the union type.
func (p *Proc) unionOperand(v Value) (Value, types.TypeID, error) {
	in := p.m.Types
	if in.KindOf(v.Type) == types.KindPointer {
		loaded, err := p.Load(v)
		if err != nil {
			return Value{}, types.NoTypeID, err
		}
		v = loaded
	}
	if in.KindOf(v.Type) != types.KindUnion {
		return Value{}, types.NoTypeID, p.m.internalf("union cast", tys(v.Type), "not a union")
	}
	return v, v.Type, nil
}

// unionHolds tests whether the union at addr currently holds variant t: a
// nil check for maybe-pointer unions, a tag comparison otherwise.
func (p *Proc) unionHolds(addr Value, union, t types.TypeID) (Value, error) {
	in := p.m.Types
	tag, ok := in.UnionVariantTag(union, t)
	if !ok {
		return Value{}, p.m.internalf("union cast", tys(union, t), "not a variant")
	}
	if in.UnionMaybePointer(union) {
		ptr, err := p.retypePtr(addr, t)
		if err != nil {
			return Value{}, err
		}
		data, err := p.Load(ptr)
		if err != nil {
			return Value{}, err
		}
		return p.CompareNil(CmpNe, data)
	}
	tagPtr, err := p.unionTagPtr(addr)
	if err != nil {
		return Value{}, err
	}
	stored, err := p.Load(tagPtr)
	if err != nil {
		return Value{}, err
	}
	signed, err := safecast.Conv[int64](tag)
	if err != nil {
		return Value{}, err
	}
	want, err := p.ConstInt(stored.Type, signed)
	if err != nil {
		return Value{}, err
	}
	return p.Cmp(CmpEq, stored, want)
}

// reportAssertion calls the runtime reporter for a failed cast and closes
// the block.
func (p *Proc) reportAssertion(pos source.Pos, from, to, data Value) error {
	b := p.m.Types.Builtins()
	file, err := p.m.ConstString(p.m.FilePath(pos))
	if err != nil {
		return err
	}
	line, err := p.ConstInt(b.I32, int64(pos.Line))
	if err != nil {
		return err
	}
	col, err := p.ConstInt(b.I32, int64(pos.Column))
	if err != nil {
		return err
	}
	_, err = p.RuntimeCall("type_assertion_check2", p.ConstBool(false), file, line, col, from, to, data)
	return err
}
