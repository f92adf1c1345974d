package eval

import (
	irtypes "github.com/llir/llvm/ir/types"
)

// gep computes a getelementptr address. The first index steps over whole
// objects of elem; later ones select fields and elements inside it.
func (vm *VM) gep(elem irtypes.Type, base uint64, indices []int64) (uint64, error) {
	if len(indices) == 0 {
		return base, nil
	}
	size, err := vm.size(elem)
	if err != nil {
		return 0, err
	}
	addr := base + uint64(indices[0]*int64(size)) //nolint:gosec // wrapping address arithmetic
	t := elem
	for _, idx := range indices[1:] {
		off, next, err := vm.step1(t, idx)
		if err != nil {
			return 0, err
		}
		addr += uint64(off) //nolint:gosec // wrapping address arithmetic
		t = next
	}
	return addr, nil
}

// step1 descends one level into an aggregate type.
func (vm *VM) step1(t irtypes.Type, idx int64) (int64, irtypes.Type, error) {
	switch t := t.(type) {
	case *irtypes.StructType:
		if idx < 0 || idx >= int64(len(t.Fields)) {
			return 0, nil, trapf(TrapOutOfBounds, "field %d of %s", idx, t)
		}
		off, err := vm.Layout.StorageFieldOffset(t, int(idx))
		if err != nil {
			return 0, nil, err
		}
		return int64(off), t.Fields[idx], nil
	case *irtypes.ArrayType:
		size, err := vm.size(t.ElemType)
		if err != nil {
			return 0, nil, err
		}
		return idx * int64(size), t.ElemType, nil
	case *irtypes.VectorType:
		size, err := vm.size(t.ElemType)
		if err != nil {
			return 0, nil, err
		}
		return idx * int64(size), t.ElemType, nil
	}
	return 0, nil, trapf(TrapUnsupported, "index into %s", t)
}

// aggregateOffset locates an extractvalue/insertvalue path inside a value of
// type t and returns its byte offset and size.
func (vm *VM) aggregateOffset(t irtypes.Type, indices []uint64) (int, int, error) {
	var off int64
	for _, idx := range indices {
		o, next, err := vm.step1(t, int64(idx)) //nolint:gosec // indices are small
		if err != nil {
			return 0, 0, err
		}
		off += o
		t = next
	}
	n, err := vm.size(t)
	if err != nil {
		return 0, 0, err
	}
	return int(off), n, nil
}
