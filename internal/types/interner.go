package types

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for the basic types and a few derived types the
// backend needs by name.
type Builtins struct {
	Bool          TypeID
	I8            TypeID
	I16           TypeID
	I32           TypeID
	I64           TypeID
	U8            TypeID
	U16           TypeID
	U32           TypeID
	U64           TypeID
	Int           TypeID
	Uint          TypeID
	Uintptr       TypeID
	F16           TypeID
	F32           TypeID
	F64           TypeID
	Complex32     TypeID
	Complex64     TypeID
	Complex128    TypeID
	Quaternion64  TypeID
	Quaternion128 TypeID
	Quaternion256 TypeID
	Rawptr        TypeID
	String        TypeID
	Cstring       TypeID
	Any           TypeID
	Typeid        TypeID
	UntypedNil    TypeID

	U8Ptr     TypeID
	Allocator TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
//
// The graph is produced by the front end and is read-only afterwards, except
// for structural types the backend derives on demand (pointers, tuples) and
// the lazily materialised map internals. All access goes through mu.
type Interner struct {
	mu sync.RWMutex

	types    []Type
	index    map[typeKey]TypeID
	tuples   []TupleInfo
	tupleIdx map[string]TypeID
	structs  []StructInfo
	unions   []UnionInfo
	nameds   []NamedInfo
	maps     []MapInfo
	mapIDs   []TypeID
	basics   [basicKindCount]TypeID
	builtins Builtins
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		types:    []Type{{Kind: KindInvalid}},
		index:    make(map[typeKey]TypeID, 128),
		tuples:   []TupleInfo{{}},
		tupleIdx: make(map[string]TypeID, 32),
		structs:  []StructInfo{{}}, // reserve 0 as invalid sentinel
		unions:   []UnionInfo{{}},
		nameds:   []NamedInfo{{}},
		maps:     []MapInfo{{}},
		mapIDs:   []TypeID{NoTypeID},
	}
	for k := BasicBool; k < basicKindCount; k++ {
		in.basics[k] = in.internLocked(Type{Kind: KindBasic, Basic: k})
	}
	b := &in.builtins
	b.Bool = in.basics[BasicBool]
	b.I8 = in.basics[BasicI8]
	b.I16 = in.basics[BasicI16]
	b.I32 = in.basics[BasicI32]
	b.I64 = in.basics[BasicI64]
	b.U8 = in.basics[BasicU8]
	b.U16 = in.basics[BasicU16]
	b.U32 = in.basics[BasicU32]
	b.U64 = in.basics[BasicU64]
	b.Int = in.basics[BasicInt]
	b.Uint = in.basics[BasicUint]
	b.Uintptr = in.basics[BasicUintptr]
	b.F16 = in.basics[BasicF16]
	b.F32 = in.basics[BasicF32]
	b.F64 = in.basics[BasicF64]
	b.Complex32 = in.basics[BasicComplex32]
	b.Complex64 = in.basics[BasicComplex64]
	b.Complex128 = in.basics[BasicComplex128]
	b.Quaternion64 = in.basics[BasicQuaternion64]
	b.Quaternion128 = in.basics[BasicQuaternion128]
	b.Quaternion256 = in.basics[BasicQuaternion256]
	b.Rawptr = in.basics[BasicRawptr]
	b.String = in.basics[BasicString]
	b.Cstring = in.basics[BasicCstring]
	b.Any = in.basics[BasicAny]
	b.Typeid = in.basics[BasicTypeid]
	b.UntypedNil = in.basics[BasicUntypedNil]

	b.U8Ptr = in.internLocked(Type{Kind: KindPointer, Elem: b.U8})
	allocator := in.registerStructLocked(StructInfo{Fields: []Field{
		{Name: "procedure", Type: b.Rawptr},
		{Name: "data", Type: b.Rawptr},
	}})
	b.Allocator = in.registerNamedLocked("Allocator", allocator)
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Basic returns the TypeID of a basic kind.
func (in *Interner) Basic(k BasicKind) TypeID {
	if k == BasicInvalid || k >= basicKindCount {
		return NoTypeID
	}
	return in.basics[k]
}

// Intern ensures the provided structural descriptor has a stable TypeID.
// Nominal kinds (struct, union, named, tuple, map) have dedicated constructors.
func (in *Interner) Intern(t Type) TypeID {
	switch t.Kind {
	case KindInvalid:
		return NoTypeID
	case KindStruct, KindUnion, KindNamed, KindTuple, KindMap:
		panic(fmt.Sprintf("types: %s must be registered through its constructor", t.Kind))
	}
	key := typeKey(t)
	in.mu.RLock()
	id, ok := in.index[key]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.internLocked(t)
}

func (in *Interner) internLocked(t Type) TypeID {
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.appendLocked(t, true)
}

func (in *Interner) appendLocked(t Type, indexed bool) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	if indexed {
		in.index[typeKey(t)] = id
	}
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.lookupLocked(id)
}

func (in *Interner) lookupLocked(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: invalid TypeID %d", id))
	}
	return tt
}

// Len returns the number of interned types, including the invalid slot.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.types)
}

// Descriptor helpers ---------------------------------------------------------

// Pointer describes ^elem.
func (in *Interner) Pointer(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindPointer, Elem: elem})
}

// Slice describes []elem.
func (in *Interner) Slice(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindSlice, Elem: elem})
}

// Array describes [count]elem.
func (in *Interner) Array(elem TypeID, count uint64) TypeID {
	return in.Intern(Type{Kind: KindArray, Elem: elem, Count: count})
}

// EnumeratedArray describes [index]elem where index is an enumeration of
// count values.
func (in *Interner) EnumeratedArray(elem, index TypeID, count uint64) TypeID {
	return in.Intern(Type{Kind: KindEnumeratedArray, Elem: elem, Aux: index, Count: count})
}

// DynamicArray describes [dynamic]elem.
func (in *Interner) DynamicArray(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindDynamicArray, Elem: elem})
}

// SimdVector describes #simd[count]elem.
func (in *Interner) SimdVector(elem TypeID, count uint64) TypeID {
	return in.Intern(Type{Kind: KindSimdVector, Elem: elem, Count: count})
}

// RelativePointer describes #relative(base) ptr.
func (in *Interner) RelativePointer(ptr, base TypeID) TypeID {
	return in.Intern(Type{Kind: KindRelativePointer, Elem: ptr, Aux: base})
}

// RelativeSlice describes #relative(base) slice.
func (in *Interner) RelativeSlice(slice, base TypeID) TypeID {
	return in.Intern(Type{Kind: KindRelativeSlice, Elem: slice, Aux: base})
}

// Proc describes a procedure type with the given parameter and result tuples.
func (in *Interner) Proc(params, results TypeID) TypeID {
	return in.Intern(Type{Kind: KindProc, Elem: params, Aux: results})
}

// BitSet describes bit_set[elem; underlying] holding bits elements. When
// underlying is NoTypeID the smallest unsigned integer holding bits is used.
func (in *Interner) BitSet(elem TypeID, bits uint64, underlying TypeID) TypeID {
	if underlying == NoTypeID {
		switch {
		case bits <= 8:
			underlying = in.basics[BasicU8]
		case bits <= 16:
			underlying = in.basics[BasicU16]
		case bits <= 32:
			underlying = in.basics[BasicU32]
		default:
			underlying = in.basics[BasicU64]
		}
	}
	return in.Intern(Type{Kind: KindBitSet, Elem: elem, Aux: underlying, Count: bits})
}

type typeKey struct {
	Kind    Kind
	Basic   BasicKind
	Elem    TypeID
	Aux     TypeID
	Count   uint64
	Payload uint32
}

func tupleKey(elems []TypeID) string {
	var sb strings.Builder
	for i, e := range elems {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(e), 10))
	}
	return sb.String()
}

func cloneTypeIDs(ids []TypeID) []TypeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]TypeID, len(ids))
	copy(out, ids)
	return out
}
