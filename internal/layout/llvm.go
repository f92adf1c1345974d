package layout

import (
	"fmt"

	"fortio.org/safecast"
	irtypes "github.com/llir/llvm/ir/types"
)

// StorageOf returns the allocation size and alignment of an LLVM type as the
// backend lays it out. It agrees with LayoutOf for every lowered Type.
func (e *LayoutEngine) StorageOf(t irtypes.Type) (TypeLayout, error) {
	l, err := e.storageOf(t, 0)
	if err != nil {
		return l, err
	}
	return l, nil
}

func (e *LayoutEngine) storageOf(t irtypes.Type, depth int) (TypeLayout, *LayoutError) {
	if depth > 64 {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsized, Detail: "nesting too deep: " + t.String()}
	}
	switch t := t.(type) {
	case *irtypes.IntType:
		bytes := int((t.BitSize + 7) / 8) //nolint:gosec // bit sizes are bounded by LLVM
		align := min(nextPow2(bytes), 16)
		return TypeLayout{Size: roundUp(bytes, align), Align: align}, nil

	case *irtypes.FloatType:
		switch t.Kind {
		case irtypes.FloatKindHalf:
			return scalarLayoutBytes(2), nil
		case irtypes.FloatKindFloat:
			return scalarLayoutBytes(4), nil
		case irtypes.FloatKindDouble:
			return scalarLayoutBytes(8), nil
		default:
			return scalarLayoutBytes(16), nil
		}

	case *irtypes.PointerType:
		return e.ptrLayout(), nil

	case *irtypes.ArrayType:
		elem, err := e.storageOf(t.ElemType, depth+1)
		if err != nil {
			return elem, err
		}
		n, convErr := safecast.Conv[int](t.Len)
		if convErr != nil {
			return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrLengthConversion, Err: convErr}
		}
		return TypeLayout{Size: roundUp(elem.Size, elem.Align) * n, Align: elem.Align}, nil

	case *irtypes.VectorType:
		elem, err := e.storageOf(t.ElemType, depth+1)
		if err != nil {
			return elem, err
		}
		n, convErr := safecast.Conv[int](t.Len)
		if convErr != nil {
			return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrLengthConversion, Err: convErr}
		}
		return vectorLayout(elem.Size * n), nil

	case *irtypes.StructType:
		if t.Opaque {
			return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsized, Detail: "opaque struct " + t.String()}
		}
		parts := make([]TypeLayout, len(t.Fields))
		for i, f := range t.Fields {
			fl, err := e.storageOf(f, depth+1)
			if err != nil {
				return fl, err
			}
			if t.Packed {
				fl.Align = 1
			}
			parts[i] = fl
		}
		return structOf(parts...), nil

	default:
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsized, Detail: fmt.Sprint(t)}
	}
}

// StorageSize is StorageOf(t).Size.
func (e *LayoutEngine) StorageSize(t irtypes.Type) (int, error) {
	l, err := e.StorageOf(t)
	return l.Size, err
}

// StorageFieldOffset returns the byte offset of field i of an LLVM struct.
func (e *LayoutEngine) StorageFieldOffset(st *irtypes.StructType, i int) (int, error) {
	l, err := e.StorageOf(st)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(l.FieldOffsets) {
		return 0, fmt.Errorf("field %d out of range for %s", i, st)
	}
	return l.FieldOffsets[i], nil
}
