package llvm

import (
	"lowir/internal/types"
)

func (p *Proc) expectKind(op string, v types.TypeID, kinds ...types.Kind) error {
	k := p.m.Types.KindOf(v)
	for _, want := range kinds {
		if k == want {
			return nil
		}
	}
	return p.m.internalf(op, tys(v), "unexpected %s", k)
}

// StringElem is the data pointer of a string.
func (p *Proc) StringElem(s Value) (Value, error) {
	if !p.m.Types.IsString(s.Type) {
		return Value{}, p.m.internalf("string elem", tys(s.Type), "not a string")
	}
	return p.StructEV(s, 0)
}

// StringLen is the byte length of a string.
func (p *Proc) StringLen(s Value) (Value, error) {
	if !p.m.Types.IsString(s.Type) {
		return Value{}, p.m.internalf("string len", tys(s.Type), "not a string")
	}
	return p.StructEV(s, 1)
}

func (p *Proc) SliceElem(s Value) (Value, error) {
	if err := p.expectKind("slice elem", s.Type, types.KindSlice); err != nil {
		return Value{}, err
	}
	return p.StructEV(s, 0)
}

func (p *Proc) SliceLen(s Value) (Value, error) {
	if err := p.expectKind("slice len", s.Type, types.KindSlice); err != nil {
		return Value{}, err
	}
	return p.StructEV(s, 1)
}

func (p *Proc) DynamicArrayElem(da Value) (Value, error) {
	return p.dynamicArrayField("dynamic array elem", da, 0)
}

func (p *Proc) DynamicArrayLen(da Value) (Value, error) {
	return p.dynamicArrayField("dynamic array len", da, 1)
}

func (p *Proc) DynamicArrayCap(da Value) (Value, error) {
	return p.dynamicArrayField("dynamic array cap", da, 2)
}

func (p *Proc) DynamicArrayAllocator(da Value) (Value, error) {
	return p.dynamicArrayField("dynamic array allocator", da, 3)
}

func (p *Proc) dynamicArrayField(op string, da Value, index int32) (Value, error) {
	if err := p.expectKind(op, da.Type, types.KindDynamicArray); err != nil {
		return Value{}, err
	}
	return p.StructEV(da, index)
}

// MapEntries is the entries dynamic array of a map value.
func (p *Proc) MapEntries(m Value) (Value, error) {
	if err := p.expectKind("map entries", m.Type, types.KindMap); err != nil {
		return Value{}, err
	}
	return p.StructEV(m, 1)
}

// MapEntriesPtr addresses the entries of the map addr points at.
func (p *Proc) MapEntriesPtr(addr Value) (Value, error) {
	if err := p.expectKind("map entries", p.m.Types.Elem(addr.Type), types.KindMap); err != nil {
		return Value{}, err
	}
	return p.StructEP(addr, 1)
}

// MapLen is the number of live entries.
func (p *Proc) MapLen(m Value) (Value, error) {
	entries, err := p.MapEntries(m)
	if err != nil {
		return Value{}, err
	}
	return p.DynamicArrayLen(entries)
}

func (p *Proc) MapCap(m Value) (Value, error) {
	entries, err := p.MapEntries(m)
	if err != nil {
		return Value{}, err
	}
	return p.DynamicArrayCap(entries)
}

// ArrayElem addresses the first element of the array addr points at.
func (p *Proc) ArrayElem(addr Value) (Value, error) {
	return p.ArrayEPI(addr, 0)
}

// FillSlice stores elem and length into the slice addr points at.
func (p *Proc) FillSlice(addr, elem, length Value) error {
	if err := p.expectKind("fill slice", p.m.Types.Elem(addr.Type), types.KindSlice); err != nil {
		return err
	}
	return p.fillPair(addr, elem, length)
}

// FillString stores data and length into the string addr points at.
func (p *Proc) FillString(addr, elem, length Value) error {
	if !p.m.Types.IsString(p.m.Types.Elem(addr.Type)) {
		return p.m.internalf("fill string", tys(addr.Type), "not a pointer to string")
	}
	return p.fillPair(addr, elem, length)
}

func (p *Proc) fillPair(addr, first, second Value) error {
	f0, err := p.StructEP(addr, 0)
	if err != nil {
		return err
	}
	if err := p.Store(f0, first); err != nil {
		return err
	}
	f1, err := p.StructEP(addr, 1)
	if err != nil {
		return err
	}
	return p.Store(f1, second)
}

// EmitString builds a string value from a data pointer and a length.
func (p *Proc) EmitString(elem, length Value) (Value, error) {
	local, err := p.Local(p.m.Types.Builtins().String, false)
	if err != nil {
		return Value{}, err
	}
	if err := p.FillString(local, elem, length); err != nil {
		return Value{}, err
	}
	return p.Load(local)
}

// CStringLen measures a NUL-terminated string through the runtime.
func (p *Proc) CStringLen(s Value) (Value, error) {
	if !p.m.Types.IsCstring(s.Type) {
		return Value{}, p.m.internalf("cstring len", tys(s.Type), "not a cstring")
	}
	return p.RuntimeCall("cstring_len", s)
}

// SoaStructLen is the length of a struct-of-arrays value, or of the one v
// points at. Fixed layouts have a constant length.
func (p *Proc) SoaStructLen(v Value) (Value, error) {
	return p.soaCounter(v, false)
}

// SoaStructCap is the capacity of a struct-of-arrays value. Only fixed and
// dynamic layouts have one.
func (p *Proc) SoaStructCap(v Value) (Value, error) {
	return p.soaCounter(v, true)
}

func (p *Proc) soaCounter(v Value, capacity bool) (Value, error) {
	in := p.m.Types
	t := v.Type
	isPtr := in.KindOf(t) == types.KindPointer
	if isPtr {
		t = in.Elem(t)
	}
	info, ok := in.StructInfo(in.Base(t))
	if !ok || info.Soa == types.SoaNone {
		return Value{}, p.m.internalf("soa len", tys(t), "not a struct-of-arrays")
	}
	if info.Soa == types.SoaFixed {
		return p.ConstInt(in.Builtins().Int, info.SoaCount)
	}
	if capacity && info.Soa != types.SoaDynamic {
		return Value{}, p.m.internalf("soa cap", tys(t), "%s layout has no capacity", info.Soa)
	}

	var n int
	elem, _ := in.Underlying(info.SoaElem)
	switch elem.Kind {
	case types.KindStruct:
		ei, _ := in.StructInfo(in.Base(info.SoaElem))
		n = len(ei.Fields)
	case types.KindArray:
		n = int(elem.Count) //nolint:gosec // soa arrays are small
	default:
		return Value{}, p.m.internalf("soa len", tys(info.SoaElem), "element is neither struct nor array")
	}
	if capacity {
		n++
	}
	index := int32(n) //nolint:gosec // field counts fit
	if isPtr {
		field, err := p.StructEP(v, index)
		if err != nil {
			return Value{}, err
		}
		return p.Load(field)
	}
	return p.StructEV(v, index)
}
