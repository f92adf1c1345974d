package llvm

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/types"
)

// CmpOp is a comparison operator.
type CmpOp uint8

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

func (p *Proc) bitcast(v value.Value, to irtypes.Type) value.Value {
	if irtypes.Equal(v.Type(), to) {
		return v
	}
	if c, ok := v.(constant.Constant); ok {
		return constant.NewBitCast(c, to)
	}
	return p.cur.NewBitCast(v, to)
}

func (p *Proc) ptrToInt(v value.Value, to irtypes.Type) value.Value {
	if c, ok := v.(constant.Constant); ok {
		return constant.NewPtrToInt(c, to)
	}
	return p.cur.NewPtrToInt(v, to)
}

func (p *Proc) intToPtr(v value.Value, to irtypes.Type) value.Value {
	if c, ok := v.(constant.Constant); ok {
		return constant.NewIntToPtr(c, to)
	}
	return p.cur.NewIntToPtr(v, to)
}

func (p *Proc) isIntLike(t types.TypeID) bool {
	in := p.m.Types
	return in.IsInteger(t) || in.IsBoolean(t) || in.IsTypeid(t) || in.KindOf(t) == types.KindBitSet
}

func (p *Proc) isSigned(t types.TypeID) bool {
	in := p.m.Types
	return in.IsInteger(t) && !in.IsUnsigned(t)
}

// resize changes the width of an integer value, extending by the
// signedness of the source type.
func (p *Proc) resize(v Value, to *irtypes.IntType) value.Value {
	from, ok := v.V.Type().(*irtypes.IntType)
	if !ok || from.BitSize == to.BitSize {
		return p.bitcast(v.V, to)
	}
	if from.BitSize > to.BitSize {
		return p.cur.NewTrunc(v.V, to)
	}
	if p.isSigned(v.Type) {
		return p.cur.NewSExt(v.V, to)
	}
	return p.cur.NewZExt(v.V, to)
}

// Conv converts v to t with the value-preserving rules of the source
// language: numeric widening and narrowing, pointer casts, wrapping into a
// union or an any. Anything else is reinterpreted through Transmute.
func (p *Proc) Conv(v Value, t types.TypeID) (Value, error) {
	if v.Type == t {
		return v, nil
	}
	in := p.m.Types
	if v.Type == in.Builtins().UntypedNil {
		return p.Zero(t)
	}
	src, err := p.m.LLVMType(v.Type)
	if err != nil {
		return Value{}, err
	}
	dst, err := p.m.LLVMType(t)
	if err != nil {
		return Value{}, err
	}
	if irtypes.Equal(src, dst) && in.KindOf(t) != types.KindUnion && !in.IsAny(t) {
		return Value{V: v.V, Type: t}, nil
	}

	switch {
	case p.isIntLike(v.Type) && in.IsBoolean(t):
		return p.CompareNil(CmpNe, v)

	case p.isIntLike(v.Type) && p.isIntLike(t):
		return Value{V: p.resize(v, dst.(*irtypes.IntType)), Type: t}, nil

	case p.isIntLike(v.Type) && in.IsFloat(t):
		if p.isSigned(v.Type) {
			return Value{V: p.cur.NewSIToFP(v.V, dst), Type: t}, nil
		}
		return Value{V: p.cur.NewUIToFP(v.V, dst), Type: t}, nil

	case in.IsFloat(v.Type) && p.isIntLike(t):
		if p.isSigned(t) {
			return Value{V: p.cur.NewFPToSI(v.V, dst), Type: t}, nil
		}
		return Value{V: p.cur.NewFPToUI(v.V, dst), Type: t}, nil

	case in.IsFloat(v.Type) && in.IsFloat(t):
		srcSize, _ := p.m.Layout.SizeOf(v.Type)
		dstSize, _ := p.m.Layout.SizeOf(t)
		if srcSize < dstSize {
			return Value{V: p.cur.NewFPExt(v.V, dst), Type: t}, nil
		}
		return Value{V: p.cur.NewFPTrunc(v.V, dst), Type: t}, nil

	case in.IsPointerLike(v.Type) && in.IsPointerLike(t):
		return Value{V: p.bitcast(v.V, dst), Type: t}, nil

	case in.IsPointerLike(v.Type) && p.isIntLike(t):
		return Value{V: p.ptrToInt(v.V, dst), Type: t}, nil

	case p.isIntLike(v.Type) && in.IsPointerLike(t):
		return Value{V: p.intToPtr(v.V, dst), Type: t}, nil

	case in.KindOf(t) == types.KindUnion:
		if _, ok := in.UnionVariantTag(t, v.Type); ok {
			return p.wrapUnion(v, t)
		}

	case in.IsAny(t):
		return p.ConvToAny(v)
	}
	return p.Transmute(v, t)
}

func (p *Proc) wrapUnion(v Value, union types.TypeID) (Value, error) {
	local, err := p.Local(union, true)
	if err != nil {
		return Value{}, err
	}
	if err := p.StoreUnionVariant(local, v); err != nil {
		return Value{}, err
	}
	return p.Load(local)
}

// Cmp compares two scalars of the same type.
func (p *Proc) Cmp(op CmpOp, x, y Value) (Value, error) {
	in := p.m.Types
	b := in.Builtins().Bool
	if x.Type != y.Type {
		conv, err := p.Conv(y, x.Type)
		if err != nil {
			return Value{}, err
		}
		y = conv
	}
	if in.KindOf(x.Type) == types.KindRelativePointer {
		// A relative pointer compares as its base integer offset.
		rel, _ := in.Underlying(x.Type)
		x, y = x.withType(rel.Aux), y.withType(rel.Aux)
	}
	switch {
	case in.IsFloat(x.Type):
		pred := map[CmpOp]enum.FPred{
			CmpEq: enum.FPredOEQ, CmpNe: enum.FPredUNE,
			CmpLt: enum.FPredOLT, CmpLe: enum.FPredOLE,
			CmpGt: enum.FPredOGT, CmpGe: enum.FPredOGE,
		}[op]
		return Value{V: p.cur.NewFCmp(pred, x.V, y.V), Type: b}, nil

	case p.isIntLike(x.Type) || in.IsPointerLike(x.Type):
		var pred enum.IPred
		signed := p.isSigned(x.Type)
		switch op {
		case CmpEq:
			pred = enum.IPredEQ
		case CmpNe:
			pred = enum.IPredNE
		case CmpLt:
			pred = pick(signed, enum.IPredSLT, enum.IPredULT)
		case CmpLe:
			pred = pick(signed, enum.IPredSLE, enum.IPredULE)
		case CmpGt:
			pred = pick(signed, enum.IPredSGT, enum.IPredUGT)
		case CmpGe:
			pred = pick(signed, enum.IPredSGE, enum.IPredUGE)
		}
		return Value{V: p.cur.NewICmp(pred, x.V, y.V), Type: b}, nil
	}
	return Value{}, p.m.internalf("compare", tys(x.Type), "operands are not scalar")
}

func pick[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

// CompareNil compares x against its type's nil value. Integers compare
// against zero, which is how error enumerations encode "no error".
func (p *Proc) CompareNil(op CmpOp, x Value) (Value, error) {
	in := p.m.Types
	if op != CmpEq && op != CmpNe {
		return Value{}, p.m.internalf("compare nil", tys(x.Type), "ordered comparison against nil")
	}
	switch {
	case p.isIntLike(x.Type) || in.IsPointerLike(x.Type) || in.KindOf(x.Type) == types.KindRelativePointer:
		zero, err := p.Zero(x.Type)
		if err != nil {
			return Value{}, err
		}
		return p.Cmp(op, x, zero)
	}

	switch in.KindOf(x.Type) {
	case types.KindSlice, types.KindDynamicArray:
		data, err := p.StructEV(x, 0)
		if err != nil {
			return Value{}, err
		}
		return p.CompareNil(op, data)

	case types.KindMap:
		entries, err := p.StructEV(x, 1)
		if err != nil {
			return Value{}, err
		}
		return p.CompareNil(op, entries)

	case types.KindUnion:
		if in.UnionMaybePointer(x.Type) {
			info, _ := in.UnionInfo(in.Base(x.Type))
			return p.CompareNil(op, Value{V: x.V, Type: info.Variants[0]})
		}
		addr, err := p.AddressFromLoadOrGenerateLocal(x)
		if err != nil {
			return Value{}, err
		}
		tagPtr, err := p.StructEP(addr, UnionTagIndex)
		if err != nil {
			return Value{}, err
		}
		tag, err := p.Load(tagPtr)
		if err != nil {
			return Value{}, err
		}
		return p.CompareNil(op, tag)
	}

	if in.IsAny(x.Type) {
		data, err := p.StructEV(x, 0)
		if err != nil {
			return Value{}, err
		}
		id, err := p.StructEV(x, 1)
		if err != nil {
			return Value{}, err
		}
		dataNil, err := p.CompareNil(op, data)
		if err != nil {
			return Value{}, err
		}
		idNil, err := p.CompareNil(op, id)
		if err != nil {
			return Value{}, err
		}
		if op == CmpEq {
			return Value{V: p.cur.NewAnd(dataNil.V, idNil.V), Type: dataNil.Type}, nil
		}
		return Value{V: p.cur.NewOr(dataNil.V, idNil.V), Type: dataNil.Type}, nil
	}
	return Value{}, p.m.internalf("compare nil", tys(x.Type), "type has no nil value")
}

// Add returns x + y.
func (p *Proc) Add(x, y Value) (Value, error) {
	if p.m.Types.IsFloat(x.Type) {
		return Value{V: p.cur.NewFAdd(x.V, y.V), Type: x.Type}, nil
	}
	if !p.isIntLike(x.Type) {
		return Value{}, p.m.internalf("add", tys(x.Type), "not a number")
	}
	return Value{V: p.cur.NewAdd(x.V, y.V), Type: x.Type}, nil
}

// Sub returns x - y.
func (p *Proc) Sub(x, y Value) (Value, error) {
	if p.m.Types.IsFloat(x.Type) {
		return Value{V: p.cur.NewFSub(x.V, y.V), Type: x.Type}, nil
	}
	if !p.isIntLike(x.Type) {
		return Value{}, p.m.internalf("sub", tys(x.Type), "not a number")
	}
	return Value{V: p.cur.NewSub(x.V, y.V), Type: x.Type}, nil
}
