package llvm

import (
	"fortio.org/safecast"

	"lowir/internal/types"
)

// SoaZip builds a slice-backed struct-of-arrays of type soa from slices.
// Field i takes the data pointer of slices[i]; the length is the shortest
// slice length.
func (p *Proc) SoaZip(slices []Value, soa types.TypeID) (Value, error) {
	in := p.m.Types
	if len(slices) == 0 {
		return Value{}, p.m.internalf("soa zip", tys(soa), "no slices")
	}
	info, ok := in.StructInfo(in.Base(soa))
	if !ok || info.Soa != types.SoaSlice {
		return Value{}, p.m.internalf("soa zip", tys(soa), "not a slice struct-of-arrays")
	}
	length, err := p.SliceLen(slices[0])
	if err != nil {
		return Value{}, err
	}
	for _, s := range slices[1:] {
		other, err := p.SliceLen(s)
		if err != nil {
			return Value{}, err
		}
		if length, err = p.Min(in.Builtins().Int, length, other); err != nil {
			return Value{}, err
		}
	}

	res, err := p.Local(soa, true)
	if err != nil {
		return Value{}, err
	}
	for i, s := range slices {
		idx, err := safecast.Conv[int32](i)
		if err != nil {
			return Value{}, err
		}
		elem, err := p.SliceElem(s)
		if err != nil {
			return Value{}, err
		}
		dst, err := p.StructEP(res, idx)
		if err != nil {
			return Value{}, err
		}
		if err := p.Store(dst, elem); err != nil {
			return Value{}, err
		}
	}
	n, err := safecast.Conv[int32](len(slices))
	if err != nil {
		return Value{}, err
	}
	lenPtr, err := p.StructEP(res, n)
	if err != nil {
		return Value{}, err
	}
	if err := p.Store(lenPtr, length); err != nil {
		return Value{}, err
	}
	return p.Load(res)
}

// SoaUnzip splits a slice struct-of-arrays back into slices. result is
// either one slice type or a tuple of slice types, one per field.
func (p *Proc) SoaUnzip(v Value, result types.TypeID) (Value, error) {
	in := p.m.Types
	info, ok := in.StructInfo(in.Base(v.Type))
	if !ok || info.Soa != types.SoaSlice {
		return Value{}, p.m.internalf("soa unzip", tys(v.Type), "not a slice struct-of-arrays")
	}
	length, err := p.SoaStructLen(v)
	if err != nil {
		return Value{}, err
	}
	res, err := p.Local(result, true)
	if err != nil {
		return Value{}, err
	}

	if in.KindOf(result) != types.KindTuple {
		ptr, err := p.StructEV(v, 0)
		if err != nil {
			return Value{}, err
		}
		if err := p.FillSlice(res, ptr, length); err != nil {
			return Value{}, err
		}
		return p.Load(res)
	}

	for i := range len(info.Fields) - 1 {
		idx, err := safecast.Conv[int32](i)
		if err != nil {
			return Value{}, err
		}
		ptr, err := p.StructEV(v, idx)
		if err != nil {
			return Value{}, err
		}
		dst, err := p.StructEP(res, idx)
		if err != nil {
			return Value{}, err
		}
		if err := p.FillSlice(dst, ptr, length); err != nil {
			return Value{}, err
		}
	}
	return p.Load(res)
}
