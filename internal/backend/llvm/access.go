package llvm

import (
	"fortio.org/safecast"
	"github.com/llir/llvm/ir/constant"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/types"
)

// StructEP returns the address of the index-th logical field of the
// composite base points at. Custom-aligned structs skip the hidden padding
// slot; unions accept only UnionTagIndex and yield the tag; arrays delegate
// to ArrayEPI. A constant base yields a constant address.
func (p *Proc) StructEP(base Value, index int32) (Value, error) {
	in := p.m.Types
	if in.KindOf(base.Type) != types.KindPointer {
		return Value{}, p.m.internalf("struct gep", tys(base.Type), "base is not a pointer")
	}
	target := in.Elem(base.Type)
	if in.KindOf(target) == types.KindRelativePointer {
		resolved, err := p.resolveRelative(base)
		if err != nil {
			return Value{}, err
		}
		base, target = resolved, in.Elem(resolved.Type)
	}

	bt := in.Base(target)
	tt, ok := in.Lookup(bt)
	if !ok {
		return Value{}, p.m.internalf("struct gep", tys(target), "unknown type")
	}
	var (
		result = types.NoTypeID
		phys   = index
		b      = in.Builtins()
	)
	switch tt.Kind {
	case types.KindStruct:
		info, _ := in.StructInfo(bt)
		if index < 0 || int(index) >= len(info.Fields) {
			break
		}
		result = info.Fields[index].Type
		if info.RawUnion {
			return p.retypePtr(base, result)
		}
		if info.CustomAlign > 0 {
			phys++
		}

	case types.KindUnion:
		if index != UnionTagIndex {
			return Value{}, p.m.internalf("struct gep", tys(target), "union field %d, only the tag is addressable", index)
		}
		return p.unionTagPtr(base)

	case types.KindTuple:
		elems := in.TupleElems(bt)
		if index < 0 || int(index) >= len(elems) {
			break
		}
		result = elems[index]
		if len(elems) == 1 {
			return Value{V: base.V, Type: in.Pointer(result)}, nil
		}

	case types.KindBasic:
		result = basicFieldType(in, tt.Basic, index)

	case types.KindSlice:
		result = pick2(index, in.Pointer(tt.Elem), b.Int)

	case types.KindDynamicArray:
		result = dynamicArrayFieldType(in, tt.Elem, index)

	case types.KindMap:
		internal := in.MapInternal(bt)
		cast, err := p.retypePtr(base, internal)
		if err != nil {
			return Value{}, err
		}
		base, target = cast, internal
		if index == 0 || index == 1 {
			result, _ = in.StructFieldType(internal, int(index))
		}

	case types.KindArray, types.KindEnumeratedArray:
		return p.ArrayEPI(base, int(index))

	case types.KindRelativeSlice:
		result = pick2(index, tt.Aux, tt.Aux)

	default:
		return Value{}, p.m.internalf("struct gep", tys(target), "%s has no fields", tt.Kind)
	}
	if result == types.NoTypeID {
		return Value{}, p.m.internalf("struct gep", tys(target), "field %d out of range", index)
	}
	return p.fieldGEP(base, target, phys, result)
}

// fieldGEP emits gep {0, phys} on base whose pointee is target.
func (p *Proc) fieldGEP(base Value, target types.TypeID, phys int32, result types.TypeID) (Value, error) {
	elem, err := p.m.LLVMType(target)
	if err != nil {
		return Value{}, err
	}
	zero, idx := i32Const(0), i32Const(int64(phys))
	var v value.Value
	if c, ok := base.constant(); ok {
		v = constant.NewGetElementPtr(elem, c, zero, idx)
	} else {
		v = p.cur.NewGetElementPtr(elem, base.V, zero, idx)
	}
	return Value{V: v, Type: p.m.Types.Pointer(result)}, nil
}

// retypePtr reinterprets an address as pointing at t.
func (p *Proc) retypePtr(addr Value, t types.TypeID) (Value, error) {
	lt, err := p.m.LLVMType(t)
	if err != nil {
		return Value{}, err
	}
	return Value{V: p.bitcast(addr.V, irtypes.NewPointer(lt)), Type: p.m.Types.Pointer(t)}, nil
}

func (p *Proc) unionTagPtr(addr Value) (Value, error) {
	in := p.m.Types
	union := in.Elem(addr.Type)
	info, ok := in.UnionInfo(in.Base(union))
	switch {
	case !ok:
		return Value{}, p.m.internalf("union tag", tys(union), "not a union")
	case in.UnionMaybePointer(union):
		return Value{}, p.m.internalf("union tag", tys(union), "maybe-pointer union has no tag")
	case len(info.Variants) == 0:
		return Value{}, p.m.internalf("union tag", tys(union), "empty union has no tag")
	}
	return p.fieldGEP(addr, union, 1, in.UnionTagType(union))
}

// resolveRelative turns the address of a relative pointer into the absolute
// pointer it designates: the slot's own address plus the stored offset, or
// nil when the offset is zero.
func (p *Proc) resolveRelative(addr Value) (Value, error) {
	in := p.m.Types
	rel, _ := in.Underlying(in.Elem(addr.Type))
	ptrType, baseInt := rel.Elem, rel.Aux

	stored, err := p.Load(addr)
	if err != nil {
		return Value{}, err
	}
	offset := Value{V: stored.V, Type: baseInt}
	word, err := p.Conv(offset, in.Builtins().Uintptr)
	if err != nil {
		return Value{}, err
	}
	here := Value{V: p.ptrToInt(addr.V, p.m.wordType()), Type: in.Builtins().Uintptr}
	sum, err := p.Add(here, word)
	if err != nil {
		return Value{}, err
	}
	lt, err := p.m.LLVMType(ptrType)
	if err != nil {
		return Value{}, err
	}
	abs := Value{V: p.intToPtr(sum.V, lt), Type: ptrType}
	isNil, err := p.CompareNil(CmpEq, offset)
	if err != nil {
		return Value{}, err
	}
	null, err := p.Zero(ptrType)
	if err != nil {
		return Value{}, err
	}
	return p.Select(isNil, null, abs)
}

func basicFieldType(in *types.Interner, k types.BasicKind, index int32) types.TypeID {
	b := in.Builtins()
	switch k {
	case types.BasicString:
		return pick2(index, b.U8Ptr, b.Int)
	case types.BasicAny:
		return pick2(index, b.Rawptr, b.Typeid)
	}
	ft, n := in.ComplexElem(in.Basic(k))
	if n == 0 || index < 0 || int(index) >= n {
		return types.NoTypeID
	}
	return ft
}

func dynamicArrayFieldType(in *types.Interner, elem types.TypeID, index int32) types.TypeID {
	b := in.Builtins()
	switch index {
	case 0:
		return in.Pointer(elem)
	case 1, 2:
		return b.Int
	case 3:
		return b.Allocator
	}
	return types.NoTypeID
}

func pick2(index int32, first, second types.TypeID) types.TypeID {
	switch index {
	case 0:
		return first
	case 1:
		return second
	}
	return types.NoTypeID
}

// StructEV extracts the index-th logical field of an aggregate value. A
// value produced by Load is projected through its source address instead.
func (p *Proc) StructEV(v Value, index int32) (Value, error) {
	if addr, ok := p.AddressOfLoad(v); ok {
		field, err := p.StructEP(addr, index)
		if err != nil {
			return Value{}, err
		}
		return p.Load(field)
	}

	in := p.m.Types
	bt := in.Base(v.Type)
	tt, ok := in.Lookup(bt)
	if !ok {
		return Value{}, p.m.internalf("struct ev", tys(v.Type), "unknown type")
	}
	var (
		result = types.NoTypeID
		phys   = index
	)
	switch tt.Kind {
	case types.KindBasic:
		result = basicFieldType(in, tt.Basic, index)

	case types.KindStruct:
		info, _ := in.StructInfo(bt)
		if index < 0 || int(index) >= len(info.Fields) {
			break
		}
		if info.RawUnion {
			return p.spillField(v, index)
		}
		result = info.Fields[index].Type
		if info.CustomAlign > 0 {
			phys++
		}

	case types.KindUnion:
		if index != UnionTagIndex {
			return Value{}, p.m.internalf("struct ev", tys(v.Type), "union field %d, only the tag is extractable", index)
		}
		return p.spillField(v, index)

	case types.KindTuple:
		elems := in.TupleElems(bt)
		if index < 0 || int(index) >= len(elems) {
			break
		}
		if len(elems) == 1 {
			return Value{V: v.V, Type: elems[0]}, nil
		}
		result = elems[index]

	case types.KindSlice:
		result = pick2(index, in.Pointer(tt.Elem), in.Builtins().Int)

	case types.KindDynamicArray:
		result = dynamicArrayFieldType(in, tt.Elem, index)

	case types.KindMap:
		internal := in.MapInternal(bt)
		if index == 0 || index == 1 {
			result, _ = in.StructFieldType(internal, int(index))
		}

	case types.KindArray, types.KindEnumeratedArray:
		if index >= 0 && uint64(index) < tt.Count {
			result = tt.Elem
		}

	case types.KindRelativeSlice:
		result = pick2(index, tt.Aux, tt.Aux)

	default:
		return Value{}, p.m.internalf("struct ev", tys(v.Type), "%s has no fields", tt.Kind)
	}
	if result == types.NoTypeID || phys < 0 {
		return Value{}, p.m.internalf("struct ev", tys(v.Type), "field %d out of range", index)
	}
	return Value{V: p.cur.NewExtractValue(v.V, uint64(phys)), Type: result}, nil
}

func (p *Proc) spillField(v Value, index int32) (Value, error) {
	addr, err := p.AddressFromLoadOrGenerateLocal(v)
	if err != nil {
		return Value{}, err
	}
	field, err := p.StructEP(addr, index)
	if err != nil {
		return Value{}, err
	}
	return p.Load(field)
}

// DeepFieldGEP follows sel from the address e, loading through every
// pointer met on the way.
func (p *Proc) DeepFieldGEP(e Value, sel Selection) (Value, error) {
	in := p.m.Types
	if len(sel) == 0 {
		return Value{}, p.m.internalf("deep field gep", tys(e.Type), "empty selection")
	}
	for _, index := range sel {
		if in.KindOf(in.Elem(e.Type)) == types.KindPointer {
			loaded, err := p.Load(e)
			if err != nil {
				return Value{}, err
			}
			e = loaded
		}
		target := in.Elem(e.Type)
		switch in.KindOf(target) {
		case types.KindStruct, types.KindUnion, types.KindTuple, types.KindSlice,
			types.KindDynamicArray, types.KindArray, types.KindEnumeratedArray,
			types.KindMap, types.KindRelativePointer, types.KindRelativeSlice:
		case types.KindBasic:
			if !IsAggregate(in, target) {
				return Value{}, p.m.internalf("deep field gep", tys(target), "scalar has no fields")
			}
		default:
			return Value{}, p.m.internalf("deep field gep", tys(target), "%s has no fields", in.KindOf(target))
		}
		next, err := p.StructEP(e, index)
		if err != nil {
			return Value{}, err
		}
		e = next
	}
	return e, nil
}

// DeepFieldEV is DeepFieldGEP on the address of v followed by a load.
func (p *Proc) DeepFieldEV(v Value, sel Selection) (Value, error) {
	addr, err := p.AddressFromLoadOrGenerateLocal(v)
	if err != nil {
		return Value{}, err
	}
	field, err := p.DeepFieldGEP(addr, sel)
	if err != nil {
		return Value{}, err
	}
	return p.Load(field)
}

// ArrayEP addresses element index of the array base points at. The index is
// widened or narrowed to int first.
func (p *Proc) ArrayEP(base, index Value) (Value, error) {
	in := p.m.Types
	target := in.Elem(base.Type)
	if k := in.KindOf(target); in.KindOf(base.Type) != types.KindPointer || (k != types.KindArray && k != types.KindEnumeratedArray) {
		return Value{}, p.m.internalf("array gep", tys(base.Type), "base is not a pointer to an array")
	}
	if !p.isIntLike(index.Type) {
		return Value{}, p.m.internalf("array gep", tys(index.Type), "index is not an integer")
	}
	idx, err := p.Conv(index, in.Builtins().Int)
	if err != nil {
		return Value{}, err
	}
	return p.elemGEP(base, target, idx.V)
}

// ArrayEPI is ArrayEP with a compile-time index.
func (p *Proc) ArrayEPI(base Value, index int) (Value, error) {
	in := p.m.Types
	target := in.Elem(base.Type)
	if k := in.KindOf(target); in.KindOf(base.Type) != types.KindPointer || (k != types.KindArray && k != types.KindEnumeratedArray) {
		return Value{}, p.m.internalf("array gep", tys(base.Type), "base is not a pointer to an array")
	}
	if index < 0 {
		return Value{}, p.m.internalf("array gep", tys(target), "negative index %d", index)
	}
	i64, err := safecast.Conv[int64](index)
	if err != nil {
		return Value{}, err
	}
	return p.elemGEP(base, target, p.wordConst(i64))
}

func (p *Proc) elemGEP(base Value, array types.TypeID, idx value.Value) (Value, error) {
	in := p.m.Types
	elem := in.Elem(array)
	lt, err := p.m.LLVMType(array)
	if err != nil {
		return Value{}, err
	}
	zero := p.wordConst(0)
	var v value.Value
	c, baseConst := base.constant()
	ci, idxConst := idx.(constant.Constant)
	if baseConst && idxConst {
		v = constant.NewGetElementPtr(lt, c, zero, ci)
	} else {
		v = p.cur.NewGetElementPtr(lt, base.V, zero, idx)
	}
	return Value{V: v, Type: in.Pointer(elem)}, nil
}

// PtrOffset advances ptr by offset elements of its pointee.
func (p *Proc) PtrOffset(ptr, offset Value) (Value, error) {
	in := p.m.Types
	var elem irtypes.Type = irtypes.I8
	if e := in.Elem(ptr.Type); e != types.NoTypeID {
		lt, err := p.m.LLVMType(e)
		if err != nil {
			return Value{}, err
		}
		elem = lt
	} else if !in.IsPointerLike(ptr.Type) {
		return Value{}, p.m.internalf("ptr offset", tys(ptr.Type), "not a pointer")
	}
	c, ptrConst := ptr.constant()
	off, offConst := offset.constant()
	if ptrConst && offConst {
		return Value{V: constant.NewGetElementPtr(elem, c, off), Type: ptr.Type}, nil
	}
	return Value{V: p.cur.NewGetElementPtr(elem, ptr.V, offset.V), Type: ptr.Type}, nil
}
