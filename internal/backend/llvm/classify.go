package llvm

import "lowir/internal/types"

// IsAggregate reports whether values of id live in memory as multi-word
// blocks rather than in a single register. Named types classify as their
// base. Aggregates are zeroed with a block fill and transmuted through
// memory.
func IsAggregate(in *types.Interner, id types.TypeID) bool {
	tt, ok := in.Underlying(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case types.KindBasic:
		switch tt.Basic {
		case types.BasicString, types.BasicAny,
			types.BasicComplex32, types.BasicComplex64, types.BasicComplex128,
			types.BasicQuaternion64, types.BasicQuaternion128, types.BasicQuaternion256:
			return true
		}
		return false
	case types.KindPointer:
		return false
	case types.KindArray, types.KindEnumeratedArray, types.KindSlice, types.KindStruct,
		types.KindUnion, types.KindTuple, types.KindDynamicArray, types.KindMap,
		types.KindSimdVector:
		return true
	}
	return false
}
