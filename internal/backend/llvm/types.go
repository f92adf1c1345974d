package llvm

import (
	"fmt"

	irtypes "github.com/llir/llvm/ir/types"

	"lowir/internal/types"
)

// LLVMType maps a Type to its IR type. Struct and union types become
// identified struct types so recursive declarations through pointers resolve.
func (m *Module) LLVMType(id types.TypeID) (irtypes.Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.llvmTypeLocked(id, "")
}

func (m *Module) llvmTypeLocked(id types.TypeID, hint string) (irtypes.Type, error) {
	if t, ok := m.llvmTypes[id]; ok {
		return t, nil
	}
	in := m.Types
	tt, ok := in.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("no llvm type for type#%d", id)
	}
	word := m.wordType()

	var (
		out irtypes.Type
		err error
	)
	switch tt.Kind {
	case types.KindNamed:
		info, ok := in.NamedInfo(id)
		if !ok || info.Base == types.NoTypeID {
			return nil, fmt.Errorf("named type#%d has no base", id)
		}
		out, err = m.llvmTypeLocked(info.Base, info.Name)

	case types.KindBasic:
		out, err = m.basicLLVMType(tt.Basic, word)

	case types.KindPointer:
		var elem irtypes.Type
		elem, err = m.llvmTypeLocked(tt.Elem, "")
		if err == nil {
			out = irtypes.NewPointer(elem)
		}

	case types.KindProc:
		out, err = m.procLLVMTypeLocked(tt)

	case types.KindSlice:
		var elem irtypes.Type
		elem, err = m.llvmTypeLocked(tt.Elem, "")
		if err == nil {
			out = irtypes.NewStruct(irtypes.NewPointer(elem), word)
		}

	case types.KindDynamicArray:
		var elem, alloc irtypes.Type
		if elem, err = m.llvmTypeLocked(tt.Elem, ""); err != nil {
			break
		}
		if alloc, err = m.llvmTypeLocked(in.Builtins().Allocator, ""); err != nil {
			break
		}
		out = irtypes.NewStruct(irtypes.NewPointer(elem), word, word, alloc)

	case types.KindMap:
		internal := in.MapInternal(id)
		if internal == types.NoTypeID {
			return nil, fmt.Errorf("map type#%d has no internal type", id)
		}
		out, err = m.llvmTypeLocked(internal, "")

	case types.KindArray, types.KindEnumeratedArray:
		var elem irtypes.Type
		elem, err = m.llvmTypeLocked(tt.Elem, "")
		if err == nil {
			out = irtypes.NewArray(tt.Count, elem)
		}

	case types.KindSimdVector:
		var elem irtypes.Type
		elem, err = m.llvmTypeLocked(tt.Elem, "")
		if err == nil {
			out = irtypes.NewVector(tt.Count, elem)
		}

	case types.KindTuple:
		elems := in.TupleElems(id)
		if len(elems) == 1 {
			// A one-element tuple is its element.
			out, err = m.llvmTypeLocked(elems[0], "")
			break
		}
		fields := make([]irtypes.Type, 0, len(elems))
		for _, e := range elems {
			var ft irtypes.Type
			if ft, err = m.llvmTypeLocked(e, ""); err != nil {
				break
			}
			fields = append(fields, ft)
		}
		if err == nil {
			out = irtypes.NewStruct(fields...)
		}

	case types.KindStruct:
		return m.structLLVMTypeLocked(id, hint)

	case types.KindUnion:
		return m.unionLLVMTypeLocked(id, hint)

	case types.KindBitSet, types.KindRelativePointer:
		out, err = m.llvmTypeLocked(tt.Aux, "")

	case types.KindRelativeSlice:
		var base irtypes.Type
		base, err = m.llvmTypeLocked(tt.Aux, "")
		if err == nil {
			out = irtypes.NewStruct(base, base)
		}

	default:
		return nil, fmt.Errorf("no llvm type for %s", tt.Kind)
	}
	if err != nil {
		return nil, err
	}
	m.llvmTypes[id] = out
	return out, nil
}

func (m *Module) basicLLVMType(k types.BasicKind, word *irtypes.IntType) (irtypes.Type, error) {
	switch k {
	case types.BasicBool:
		return irtypes.I1, nil
	case types.BasicI8, types.BasicU8:
		return irtypes.I8, nil
	case types.BasicI16, types.BasicU16:
		return irtypes.I16, nil
	case types.BasicI32, types.BasicU32:
		return irtypes.I32, nil
	case types.BasicI64, types.BasicU64, types.BasicTypeid:
		return irtypes.I64, nil
	case types.BasicInt, types.BasicUint, types.BasicUintptr:
		return word, nil
	case types.BasicF16:
		return irtypes.Half, nil
	case types.BasicF32:
		return irtypes.Float, nil
	case types.BasicF64:
		return irtypes.Double, nil
	case types.BasicComplex32:
		return irtypes.NewStruct(irtypes.Half, irtypes.Half), nil
	case types.BasicComplex64:
		return irtypes.NewStruct(irtypes.Float, irtypes.Float), nil
	case types.BasicComplex128:
		return irtypes.NewStruct(irtypes.Double, irtypes.Double), nil
	case types.BasicQuaternion64:
		return irtypes.NewStruct(irtypes.Half, irtypes.Half, irtypes.Half, irtypes.Half), nil
	case types.BasicQuaternion128:
		return irtypes.NewStruct(irtypes.Float, irtypes.Float, irtypes.Float, irtypes.Float), nil
	case types.BasicQuaternion256:
		return irtypes.NewStruct(irtypes.Double, irtypes.Double, irtypes.Double, irtypes.Double), nil
	case types.BasicRawptr, types.BasicCstring, types.BasicUntypedNil:
		return irtypes.I8Ptr, nil
	case types.BasicString:
		return irtypes.NewStruct(irtypes.I8Ptr, word), nil
	case types.BasicAny:
		return irtypes.NewStruct(irtypes.I8Ptr, irtypes.I64), nil
	default:
		return nil, fmt.Errorf("no llvm type for basic %s", k)
	}
}

func (m *Module) procLLVMTypeLocked(tt types.Type) (irtypes.Type, error) {
	params := m.Types.TupleElems(tt.Elem)
	results := m.Types.TupleElems(tt.Aux)
	ps := make([]irtypes.Type, 0, len(params))
	for _, p := range params {
		pt, err := m.llvmTypeLocked(p, "")
		if err != nil {
			return nil, err
		}
		ps = append(ps, pt)
	}
	var ret irtypes.Type = irtypes.Void
	if len(results) > 0 {
		var err error
		if ret, err = m.llvmTypeLocked(tt.Aux, ""); err != nil {
			return nil, err
		}
	}
	return irtypes.NewPointer(irtypes.NewFunc(ret, ps...)), nil
}

// newIdentified registers an empty identified struct under a unique name.
func (m *Module) newIdentified(id types.TypeID, hint, prefix string) *irtypes.StructType {
	name := hint
	if name == "" {
		name = fmt.Sprintf("%s.%d", prefix, id)
	}
	if _, taken := m.typeNames[name]; taken {
		name = fmt.Sprintf("%s.%d", name, id)
	}
	m.typeNames[name] = struct{}{}
	st := &irtypes.StructType{}
	st.SetName(name)
	m.IR.TypeDefs = append(m.IR.TypeDefs, st)
	m.llvmTypes[id] = st
	return st
}

func (m *Module) structLLVMTypeLocked(id types.TypeID, hint string) (irtypes.Type, error) {
	info, ok := m.Types.StructInfo(id)
	if !ok {
		return nil, fmt.Errorf("struct type#%d has no info", id)
	}
	st := m.newIdentified(id, hint, "struct")

	if info.RawUnion {
		l, err := m.Layout.LayoutOf(id)
		if err != nil {
			return nil, err
		}
		st.Fields = []irtypes.Type{blobType(l.Size, l.Align)}
		return st, nil
	}

	fields := make([]irtypes.Type, 0, len(info.Fields)+1)
	if info.CustomAlign > 0 {
		fields = append(fields, irtypes.NewArray(0, alignCarrier(info.CustomAlign)))
	}
	for _, f := range info.Fields {
		ft, err := m.llvmTypeLocked(f.Type, "")
		if err != nil {
			delete(m.llvmTypes, id)
			return nil, err
		}
		fields = append(fields, ft)
	}
	st.Fields = fields
	st.Packed = info.Packed
	return st, nil
}

func (m *Module) unionLLVMTypeLocked(id types.TypeID, hint string) (irtypes.Type, error) {
	info, ok := m.Types.UnionInfo(id)
	if !ok {
		return nil, fmt.Errorf("union type#%d has no info", id)
	}
	if m.Types.UnionMaybePointer(id) {
		t, err := m.llvmTypeLocked(info.Variants[0], "")
		if err != nil {
			return nil, err
		}
		m.llvmTypes[id] = t
		return t, nil
	}
	st := m.newIdentified(id, hint, "union")
	if len(info.Variants) == 0 {
		return st, nil
	}
	l, err := m.Layout.LayoutOf(id)
	if err != nil {
		delete(m.llvmTypes, id)
		return nil, err
	}
	tag, err := m.llvmTypeLocked(m.Types.UnionTagType(id), "")
	if err != nil {
		delete(m.llvmTypes, id)
		return nil, err
	}
	st.Fields = []irtypes.Type{blobType(l.PayloadSize, l.PayloadAlign), tag}
	return st, nil
}

// alignCarrier is a type whose alignment is exactly align bytes.
func alignCarrier(align int) irtypes.Type {
	switch align {
	case 1:
		return irtypes.I8
	case 2:
		return irtypes.I16
	case 4:
		return irtypes.I32
	case 8:
		return irtypes.I64
	default:
		return irtypes.NewVector(uint64(align), irtypes.I8) //nolint:gosec // alignments are small powers of two
	}
}

// blobType is an opaque byte area of size bytes aligned to align.
func blobType(size, align int) irtypes.Type {
	align = max(align, 1)
	return irtypes.NewArray(uint64(size/align), alignCarrier(align)) //nolint:gosec // sizes are non-negative
}
