package types

import (
	"fmt"
	"strings"
)

// Base strips Named wrappers.
func (in *Interner) Base(id TypeID) TypeID {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.baseLocked(id)
}

func (in *Interner) baseLocked(id TypeID) TypeID {
	for range 64 {
		info := in.namedInfoLocked(id)
		if info == nil || info.Base == NoTypeID {
			return id
		}
		id = info.Base
	}
	return id
}

// Underlying returns the descriptor of the Named-stripped type.
func (in *Interner) Underlying(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.lookupLocked(in.baseLocked(id))
}

// Identical reports type identity. Interning makes this handle equality.
func Identical(a, b TypeID) bool {
	return a == b
}

// Elem returns the element of a pointer, slice, array or dynamic array type.
func (in *Interner) Elem(id TypeID) TypeID {
	tt, ok := in.Underlying(id)
	if !ok {
		return NoTypeID
	}
	switch tt.Kind {
	case KindPointer, KindSlice, KindArray, KindEnumeratedArray, KindDynamicArray, KindSimdVector:
		return tt.Elem
	}
	return NoTypeID
}

func (in *Interner) basicOf(id TypeID) BasicKind {
	tt, ok := in.Underlying(id)
	if !ok || tt.Kind != KindBasic {
		return BasicInvalid
	}
	return tt.Basic
}

func (in *Interner) kindOf(id TypeID) Kind {
	tt, ok := in.Underlying(id)
	if !ok {
		return KindInvalid
	}
	return tt.Kind
}

// KindOf returns the kind of the Named-stripped type.
func (in *Interner) KindOf(id TypeID) Kind { return in.kindOf(id) }

// BasicOf returns the basic kind of the Named-stripped type, or BasicInvalid.
func (in *Interner) BasicOf(id TypeID) BasicKind { return in.basicOf(id) }

func (in *Interner) IsBoolean(id TypeID) bool { return in.basicOf(id) == BasicBool }
func (in *Interner) IsString(id TypeID) bool  { return in.basicOf(id) == BasicString }
func (in *Interner) IsCstring(id TypeID) bool { return in.basicOf(id) == BasicCstring }
func (in *Interner) IsAny(id TypeID) bool     { return in.basicOf(id) == BasicAny }
func (in *Interner) IsTypeid(id TypeID) bool  { return in.basicOf(id) == BasicTypeid }
func (in *Interner) IsRawptr(id TypeID) bool  { return in.basicOf(id) == BasicRawptr }

// IsInteger covers sized and word-sized integers.
func (in *Interner) IsInteger(id TypeID) bool {
	switch in.basicOf(id) {
	case BasicI8, BasicI16, BasicI32, BasicI64,
		BasicU8, BasicU16, BasicU32, BasicU64,
		BasicInt, BasicUint, BasicUintptr:
		return true
	}
	return false
}

// IsUnsigned reports unsigned integer kinds.
func (in *Interner) IsUnsigned(id TypeID) bool {
	switch in.basicOf(id) {
	case BasicU8, BasicU16, BasicU32, BasicU64, BasicUint, BasicUintptr:
		return true
	}
	return false
}

// IsFloat reports f16/f32/f64.
func (in *Interner) IsFloat(id TypeID) bool {
	switch in.basicOf(id) {
	case BasicF16, BasicF32, BasicF64:
		return true
	}
	return false
}

// IsComplex reports complex kinds.
func (in *Interner) IsComplex(id TypeID) bool {
	switch in.basicOf(id) {
	case BasicComplex32, BasicComplex64, BasicComplex128:
		return true
	}
	return false
}

// IsQuaternion reports quaternion kinds.
func (in *Interner) IsQuaternion(id TypeID) bool {
	switch in.basicOf(id) {
	case BasicQuaternion64, BasicQuaternion128, BasicQuaternion256:
		return true
	}
	return false
}

// IsPointer reports typed pointers and rawptr.
func (in *Interner) IsPointer(id TypeID) bool {
	return in.kindOf(id) == KindPointer || in.basicOf(id) == BasicRawptr
}

// IsProc reports procedure types.
func (in *Interner) IsProc(id TypeID) bool { return in.kindOf(id) == KindProc }

// IsPointerLike reports types represented as a single machine pointer.
func (in *Interner) IsPointerLike(id TypeID) bool {
	switch in.kindOf(id) {
	case KindPointer, KindProc:
		return true
	}
	switch in.basicOf(id) {
	case BasicRawptr, BasicCstring:
		return true
	}
	return false
}

// IsIntegerSized reports integers whose size equals the machine word.
func (in *Interner) IsIntegerSized(id TypeID) bool {
	switch in.basicOf(id) {
	case BasicInt, BasicUint, BasicUintptr:
		return true
	}
	return false
}

// HasNil reports whether the type admits a nil value.
func (in *Interner) HasNil(id TypeID) bool {
	switch in.kindOf(id) {
	case KindPointer, KindSlice, KindDynamicArray, KindMap, KindProc, KindRelativePointer:
		return true
	case KindUnion:
		info, ok := in.UnionInfo(in.Base(id))
		return ok && !info.NoNil
	case KindBasic:
		switch in.basicOf(id) {
		case BasicRawptr, BasicCstring, BasicAny, BasicTypeid:
			return true
		}
	}
	return false
}

// ComplexElem returns the float component type of a complex or quaternion
// type and the component count.
func (in *Interner) ComplexElem(id TypeID) (TypeID, int) {
	switch in.basicOf(id) {
	case BasicComplex32:
		return in.basics[BasicF16], 2
	case BasicComplex64:
		return in.basics[BasicF32], 2
	case BasicComplex128:
		return in.basics[BasicF64], 2
	case BasicQuaternion64:
		return in.basics[BasicF16], 4
	case BasicQuaternion128:
		return in.basics[BasicF32], 4
	case BasicQuaternion256:
		return in.basics[BasicF64], 4
	}
	return NoTypeID, 0
}

// BitSetUnderlying returns the integer backing a bit set.
func (in *Interner) BitSetUnderlying(id TypeID) TypeID {
	tt, ok := in.Underlying(id)
	if !ok || tt.Kind != KindBitSet {
		return NoTypeID
	}
	return tt.Aux
}

// TypeString renders a type for diagnostics and type tables.
func (in *Interner) TypeString(id TypeID) string {
	var sb strings.Builder
	in.writeType(&sb, id, 0)
	return sb.String()
}

func (in *Interner) writeType(sb *strings.Builder, id TypeID, depth int) {
	if depth > 16 {
		sb.WriteString("...")
		return
	}
	tt, ok := in.Lookup(id)
	if !ok {
		sb.WriteString("<invalid>")
		return
	}
	elem := func(e TypeID) { in.writeType(sb, e, depth+1) }
	list := func(ids []TypeID) {
		for i, e := range ids {
			if i > 0 {
				sb.WriteString(", ")
			}
			elem(e)
		}
	}
	switch tt.Kind {
	case KindBasic:
		sb.WriteString(tt.Basic.String())
	case KindPointer:
		sb.WriteByte('^')
		elem(tt.Elem)
	case KindSlice:
		sb.WriteString("[]")
		elem(tt.Elem)
	case KindArray:
		fmt.Fprintf(sb, "[%d]", tt.Count)
		elem(tt.Elem)
	case KindEnumeratedArray:
		sb.WriteByte('[')
		elem(tt.Aux)
		sb.WriteByte(']')
		elem(tt.Elem)
	case KindDynamicArray:
		sb.WriteString("[dynamic]")
		elem(tt.Elem)
	case KindSimdVector:
		fmt.Fprintf(sb, "#simd[%d]", tt.Count)
		elem(tt.Elem)
	case KindMap:
		sb.WriteString("map[")
		elem(tt.Aux)
		sb.WriteByte(']')
		elem(tt.Elem)
	case KindRelativePointer, KindRelativeSlice:
		sb.WriteString("#relative(")
		elem(tt.Aux)
		sb.WriteString(") ")
		elem(tt.Elem)
	case KindProc:
		sb.WriteString("proc(")
		list(in.TupleElems(tt.Elem))
		sb.WriteByte(')')
		if res := in.TupleElems(tt.Aux); len(res) > 0 {
			sb.WriteString(" -> (")
			list(res)
			sb.WriteByte(')')
		}
	case KindBitSet:
		sb.WriteString("bit_set[")
		elem(tt.Elem)
		sb.WriteString("; ")
		elem(tt.Aux)
		sb.WriteByte(']')
	case KindTuple:
		sb.WriteByte('(')
		list(in.TupleElems(id))
		sb.WriteByte(')')
	case KindNamed:
		if info, ok := in.NamedInfo(id); ok {
			sb.WriteString(info.Name)
		}
	case KindStruct:
		info, _ := in.StructInfo(id)
		sb.WriteString("struct")
		switch {
		case info.RawUnion:
			sb.WriteString(" #raw_union")
		case info.Packed:
			sb.WriteString(" #packed")
		}
		if info.CustomAlign != 0 {
			fmt.Fprintf(sb, " #align(%d)", info.CustomAlign)
		}
		if info.Soa != SoaNone {
			fmt.Fprintf(sb, " #soa(%s)", info.Soa)
		}
		sb.WriteString(" {")
		for i, f := range info.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(": ")
			elem(f.Type)
		}
		sb.WriteByte('}')
	case KindUnion:
		info, _ := in.UnionInfo(id)
		sb.WriteString("union")
		if info.NoNil {
			sb.WriteString(" #no_nil")
		}
		sb.WriteString(" {")
		list(info.Variants)
		sb.WriteByte('}')
	default:
		sb.WriteString(tt.Kind.String())
	}
}
