package layout

import (
	"math/bits"

	"fortio.org/safecast"

	"lowir/internal/types"
)

func (e *LayoutEngine) computeLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	typesIn := e.Types
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsupported, Type: id, Detail: "unknown type"}
	}

	switch tt.Kind {
	case types.KindBasic:
		return e.basicLayout(id, tt.Basic)

	case types.KindPointer, types.KindProc:
		return e.ptrLayout(), nil

	case types.KindSlice:
		return structOf(e.ptrLayout(), e.ptrLayout()), nil

	case types.KindDynamicArray:
		alloc, err := e.layoutOf(typesIn.Builtins().Allocator, state)
		if err != nil {
			return alloc, err
		}
		return structOf(e.ptrLayout(), e.ptrLayout(), e.ptrLayout(), alloc), nil

	case types.KindMap:
		internal := typesIn.MapInternal(id)
		if internal == types.NoTypeID {
			return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsupported, Type: id, Detail: "map without internal type"}
		}
		return e.layoutOf(internal, state)

	case types.KindArray, types.KindEnumeratedArray:
		return e.arrayFixedLayout(id, tt.Elem, tt.Count, state)

	case types.KindSimdVector:
		elem, err := e.layoutOf(tt.Elem, state)
		if err != nil {
			return elem, err
		}
		n, convErr := safecast.Conv[int](tt.Count)
		if convErr != nil {
			return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrLengthConversion, Type: id, Err: convErr}
		}
		return vectorLayout(elem.Size * n), nil

	case types.KindTuple:
		elems := typesIn.TupleElems(id)
		parts := make([]TypeLayout, 0, len(elems))
		for _, el := range elems {
			l, err := e.layoutOf(el, state)
			if err != nil {
				return l, err
			}
			parts = append(parts, l)
		}
		return structOf(parts...), nil

	case types.KindStruct:
		return e.structLayout(id, state)

	case types.KindUnion:
		return e.unionLayout(id, state)

	case types.KindBitSet, types.KindRelativePointer:
		return e.layoutOf(tt.Aux, state)

	case types.KindRelativeSlice:
		base, err := e.layoutOf(tt.Aux, state)
		if err != nil {
			return base, err
		}
		return structOf(base, base), nil

	default:
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsupported, Type: id, Detail: tt.Kind.String()}
	}
}

func (e *LayoutEngine) basicLayout(id types.TypeID, k types.BasicKind) (TypeLayout, *LayoutError) {
	switch k {
	case types.BasicBool, types.BasicI8, types.BasicU8:
		return scalarLayoutBytes(1), nil
	case types.BasicI16, types.BasicU16, types.BasicF16:
		return scalarLayoutBytes(2), nil
	case types.BasicI32, types.BasicU32, types.BasicF32:
		return scalarLayoutBytes(4), nil
	case types.BasicI64, types.BasicU64, types.BasicF64, types.BasicTypeid:
		return scalarLayoutBytes(8), nil
	case types.BasicInt, types.BasicUint, types.BasicUintptr,
		types.BasicRawptr, types.BasicCstring, types.BasicUntypedNil:
		return e.ptrLayout(), nil
	case types.BasicString:
		return structOf(e.ptrLayout(), e.ptrLayout()), nil
	case types.BasicAny:
		return structOf(e.ptrLayout(), scalarLayoutBytes(8)), nil
	case types.BasicComplex32:
		return repeatLayout(scalarLayoutBytes(2), 2), nil
	case types.BasicComplex64:
		return repeatLayout(scalarLayoutBytes(4), 2), nil
	case types.BasicComplex128:
		return repeatLayout(scalarLayoutBytes(8), 2), nil
	case types.BasicQuaternion64:
		return repeatLayout(scalarLayoutBytes(2), 4), nil
	case types.BasicQuaternion128:
		return repeatLayout(scalarLayoutBytes(4), 4), nil
	case types.BasicQuaternion256:
		return repeatLayout(scalarLayoutBytes(8), 4), nil
	default:
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsupported, Type: id, Detail: k.String()}
	}
}

func (e *LayoutEngine) ptrLayout() TypeLayout {
	ptrSize := e.Target.PtrSize
	ptrAlign := e.Target.PtrAlign
	if ptrSize <= 0 {
		ptrSize = 8
	}
	if ptrAlign <= 0 {
		ptrAlign = ptrSize
	}
	return TypeLayout{Size: ptrSize, Align: ptrAlign}
}

func scalarLayoutBytes(size int) TypeLayout {
	if size <= 0 {
		return TypeLayout{Size: 0, Align: 1}
	}
	return TypeLayout{Size: size, Align: size}
}

// vectorLayout aligns SIMD vectors to the next power of two of their size.
func vectorLayout(bytes int) TypeLayout {
	if bytes <= 0 {
		return TypeLayout{Size: 0, Align: 1}
	}
	align := nextPow2(bytes)
	return TypeLayout{Size: roundUp(bytes, align), Align: align}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

// structOf lays parts out in order with natural alignment.
func structOf(parts ...TypeLayout) TypeLayout {
	size := 0
	align := 1
	offsets := make([]int, len(parts))
	aligns := make([]int, len(parts))
	for i, p := range parts {
		a := max(p.Align, 1)
		size = roundUp(size, a)
		offsets[i] = size
		aligns[i] = a
		size += p.Size
		align = max(align, a)
	}
	return TypeLayout{
		Size:         roundUp(size, align),
		Align:        align,
		FieldOffsets: offsets,
		FieldAligns:  aligns,
	}
}

func repeatLayout(part TypeLayout, n int) TypeLayout {
	parts := make([]TypeLayout, n)
	for i := range parts {
		parts[i] = part
	}
	return structOf(parts...)
}

func (e *LayoutEngine) arrayFixedLayout(id, elem types.TypeID, length uint64, state *layoutState) (TypeLayout, *LayoutError) {
	elemLayout, err := e.layoutOf(elem, state)
	if err != nil {
		return elemLayout, err
	}
	elemAlign := max(elemLayout.Align, 1)
	stride := roundUp(elemLayout.Size, elemAlign)
	n, convErr := safecast.Conv[int](length)
	if convErr != nil {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrLengthConversion, Type: id, Err: convErr}
	}
	return TypeLayout{
		Size:  stride * n,
		Align: elemAlign,
	}, nil
}

func (e *LayoutEngine) structLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	info, ok := e.Types.StructInfo(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsupported, Type: id, Detail: "struct info missing"}
	}
	if info.CustomAlign != 0 && !isPow2(info.CustomAlign) {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrBadAlign, Type: id, Value: int64(info.CustomAlign)}
	}
	fields := make([]TypeLayout, len(info.Fields))
	for i, f := range info.Fields {
		fl, err := e.layoutOf(f.Type, state)
		if err != nil {
			return fl, err
		}
		fields[i] = fl
	}

	switch {
	case info.Packed:
		size := 0
		offsets := make([]int, len(fields))
		aligns := make([]int, len(fields))
		for i, fl := range fields {
			offsets[i] = size
			aligns[i] = 1
			size += fl.Size
		}
		return TypeLayout{
			Size:         size,
			Align:        1,
			FieldOffsets: offsets,
			FieldAligns:  aligns,
		}, nil

	case info.RawUnion:
		size := 0
		align := max(info.CustomAlign, 1)
		offsets := make([]int, len(fields))
		aligns := make([]int, len(fields))
		for i, fl := range fields {
			aligns[i] = max(fl.Align, 1)
			size = max(size, fl.Size)
			align = max(align, aligns[i])
		}
		return TypeLayout{
			Size:         roundUp(size, align),
			Align:        align,
			FieldOffsets: offsets,
			FieldAligns:  aligns,
		}, nil
	}

	l := structOf(fields...)
	if info.CustomAlign > l.Align {
		l.Align = info.CustomAlign
		l.Size = roundUp(l.Size, l.Align)
	}
	return l, nil
}

func (e *LayoutEngine) unionLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	info, ok := e.Types.UnionInfo(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsupported, Type: id, Detail: "union info missing"}
	}
	if info.CustomAlign != 0 && !isPow2(info.CustomAlign) {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrBadAlign, Type: id, Value: int64(info.CustomAlign)}
	}
	if len(info.Variants) == 0 {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	if e.Types.UnionMaybePointer(id) {
		l := e.ptrLayout()
		l.PayloadSize = l.Size
		l.PayloadAlign = l.Align
		return l, nil
	}

	maxSize := 0
	payloadAlign := max(info.CustomAlign, 1)
	for _, v := range info.Variants {
		vl, err := e.layoutOf(v, state)
		if err != nil {
			return vl, err
		}
		maxSize = max(maxSize, vl.Size)
		payloadAlign = max(payloadAlign, vl.Align)
	}
	tag, err := e.layoutOf(e.Types.UnionTagType(id), state)
	if err != nil {
		return tag, err
	}
	payloadSize := roundUp(maxSize, payloadAlign)
	tagOffset := roundUp(payloadSize, tag.Align)
	align := max(payloadAlign, tag.Align)
	return TypeLayout{
		Size:         roundUp(tagOffset+tag.Size, align),
		Align:        align,
		PayloadSize:  payloadSize,
		PayloadAlign: payloadAlign,
		TagOffset:    tagOffset,
		TagSize:      tag.Size,
	}, nil
}
