package llvm

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"

	"lowir/internal/types"
)

// Transmute reinterprets the bits of v as t. Both types must occupy the
// same storage. Integer and pointer conversions keep the bit pattern;
// aggregates go through memory.
func (p *Proc) Transmute(v Value, t types.TypeID) (Value, error) {
	if types.Identical(v.Type, t) {
		return v, nil
	}
	in := p.m.Types
	src, dst := in.Base(v.Type), in.Base(t)

	sz, err := p.m.Layout.SizeOf(src)
	if err != nil {
		return Value{}, err
	}
	dz, err := p.m.Layout.SizeOf(dst)
	if err != nil {
		return Value{}, err
	}
	if sz != dz {
		if err := p.storageSizesAgree(src, dst); err != nil {
			return Value{}, err
		}
		return Value{}, p.m.internalf("transmute", tys(v.Type, t), "size %d versus %d", sz, dz)
	}

	dstLL, err := p.m.LLVMType(t)
	if err != nil {
		return Value{}, err
	}
	res := func(x Value) Value { return Value{V: x.V, Type: t} }

	if isBit(dstLL) != isBit(v.V.Type()) {
		return p.transmuteBool(v, t, dstLL)
	}

	switch {
	case in.IsIntegerSized(src) && (in.IsPointer(dst) || in.IsProc(dst)),
		in.IsInteger(src) && (in.IsPointer(dst) || in.IsCstring(dst)):
		return res(Value{V: p.intToPtr(v.V, dstLL)}), nil

	case (in.IsPointer(src) || in.IsProc(src)) && in.IsIntegerSized(dst),
		(in.IsPointer(src) || in.IsCstring(src)) && in.IsInteger(dst):
		return res(Value{V: p.ptrToInt(v.V, dstLL)}), nil

	case in.IsPointer(src) && in.IsPointer(dst):
		return res(Value{V: p.bitcast(v.V, dstLL)}), nil
	}

	if IsAggregate(in, src) || IsAggregate(in, dst) {
		addr, err := p.AddressFromLoadOrGenerateLocal(v)
		if err != nil {
			return Value{}, err
		}
		cast, err := p.retypePtr(addr, t)
		if err != nil {
			return Value{}, err
		}
		return p.Load(cast)
	}
	return res(Value{V: p.bitcast(v.V, dstLL)}), nil
}

// transmuteBool moves between a bool, which is an i1 in registers and a
// byte in memory, and another one-byte scalar. A bool widens with zext; a
// byte becomes true when any bit is set, as it would when branched on.
func (p *Proc) transmuteBool(v Value, t types.TypeID, dstLL irtypes.Type) (Value, error) {
	if isBit(dstLL) {
		it, ok := v.V.Type().(*irtypes.IntType)
		if !ok {
			return Value{}, p.m.internalf("transmute", tys(v.Type, t), "%s is not an integer", v.V.Type())
		}
		return Value{V: p.cur.NewICmp(enum.IPredNE, v.V, constant.NewInt(it, 0)), Type: t}, nil
	}
	if _, ok := dstLL.(*irtypes.IntType); !ok {
		return Value{}, p.m.internalf("transmute", tys(v.Type, t), "%s is not an integer", dstLL)
	}
	return Value{V: p.cur.NewZExt(v.V, dstLL), Type: t}, nil
}

func isBit(t irtypes.Type) bool {
	it, ok := t.(*irtypes.IntType)
	return ok && it.BitSize == 1
}

// storageSizesAgree reports an internal error when the IR representations
// of src and dst differ in size, which would mean the layout engine and the
// type mapping disagree.
func (p *Proc) storageSizesAgree(src, dst types.TypeID) error {
	s, err := p.m.LLVMType(src)
	if err != nil {
		return err
	}
	d, err := p.m.LLVMType(dst)
	if err != nil {
		return err
	}
	ss, err := p.m.Layout.StorageSize(s)
	if err != nil {
		return err
	}
	ds, err := p.m.Layout.StorageSize(d)
	if err != nil {
		return err
	}
	if ss != ds {
		return p.m.internalf("transmute", tys(src, dst), "storage %s is %d bytes, %s is %d bytes", s, ss, d, ds)
	}
	return nil
}
