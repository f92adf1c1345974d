package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBasic
	KindPointer
	KindArray
	KindEnumeratedArray
	KindSlice
	KindStruct
	KindUnion
	KindTuple
	KindDynamicArray
	KindMap
	KindSimdVector
	KindNamed
	KindRelativePointer
	KindRelativeSlice
	KindProc
	KindBitSet
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBasic:
		return "basic"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindEnumeratedArray:
		return "enumerated array"
	case KindSlice:
		return "slice"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindTuple:
		return "tuple"
	case KindDynamicArray:
		return "dynamic array"
	case KindMap:
		return "map"
	case KindSimdVector:
		return "simd vector"
	case KindNamed:
		return "named"
	case KindRelativePointer:
		return "relative pointer"
	case KindRelativeSlice:
		return "relative slice"
	case KindProc:
		return "proc"
	case KindBitSet:
		return "bit set"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// BasicKind enumerates the scalar and built-in multi-word types.
type BasicKind uint8

const (
	BasicInvalid BasicKind = iota
	BasicBool
	BasicI8
	BasicI16
	BasicI32
	BasicI64
	BasicU8
	BasicU16
	BasicU32
	BasicU64
	BasicInt
	BasicUint
	BasicUintptr
	BasicF16
	BasicF32
	BasicF64
	BasicComplex32
	BasicComplex64
	BasicComplex128
	BasicQuaternion64
	BasicQuaternion128
	BasicQuaternion256
	BasicRawptr
	BasicString
	BasicCstring
	BasicAny
	BasicTypeid
	BasicUntypedNil

	basicKindCount
)

var basicNames = [...]string{
	BasicInvalid:       "invalid",
	BasicBool:          "bool",
	BasicI8:            "i8",
	BasicI16:           "i16",
	BasicI32:           "i32",
	BasicI64:           "i64",
	BasicU8:            "u8",
	BasicU16:           "u16",
	BasicU32:           "u32",
	BasicU64:           "u64",
	BasicInt:           "int",
	BasicUint:          "uint",
	BasicUintptr:       "uintptr",
	BasicF16:           "f16",
	BasicF32:           "f32",
	BasicF64:           "f64",
	BasicComplex32:     "complex32",
	BasicComplex64:     "complex64",
	BasicComplex128:    "complex128",
	BasicQuaternion64:  "quaternion64",
	BasicQuaternion128: "quaternion128",
	BasicQuaternion256: "quaternion256",
	BasicRawptr:        "rawptr",
	BasicString:        "string",
	BasicCstring:       "cstring",
	BasicAny:           "any",
	BasicTypeid:        "typeid",
	BasicUntypedNil:    "untyped nil",
}

func (b BasicKind) String() string {
	if int(b) < len(basicNames) {
		return basicNames[b]
	}
	return fmt.Sprintf("BasicKind(%d)", b)
}

// ParseBasicKind maps a basic type name back to its kind.
func ParseBasicKind(name string) (BasicKind, bool) {
	for k, n := range basicNames {
		if k == int(BasicInvalid) {
			continue
		}
		if n == name {
			return BasicKind(k), true
		}
	}
	return BasicInvalid, false
}

// SoaKind describes the struct-of-arrays flavour of a struct.
type SoaKind uint8

const (
	SoaNone SoaKind = iota
	SoaFixed
	SoaSlice
	SoaDynamic
)

func (s SoaKind) String() string {
	switch s {
	case SoaNone:
		return "none"
	case SoaFixed:
		return "fixed"
	case SoaSlice:
		return "slice"
	case SoaDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("SoaKind(%d)", s)
	}
}

// Type is a compact descriptor for any supported type.
//
// Field use per kind:
//
//	Pointer, Slice, DynamicArray   Elem = element
//	Array, SimdVector              Elem = element, Count = length
//	EnumeratedArray                Elem = element, Aux = index type, Count = length
//	Map                            Elem = value, Aux = key, Payload = map slot
//	RelativePointer                Elem = pointer type, Aux = base integer
//	RelativeSlice                  Elem = slice type, Aux = base integer
//	Proc                           Elem = params tuple, Aux = results tuple
//	BitSet                         Elem = element, Aux = underlying integer, Count = bits
//	Struct, Union, Tuple, Named    Payload = side-table slot
type Type struct {
	Kind    Kind
	Basic   BasicKind
	Elem    TypeID
	Aux     TypeID
	Count   uint64
	Payload uint32
}
