package types

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// UnionInfo stores metadata for a tagged union type.
type UnionInfo struct {
	Variants    []TypeID
	NoNil       bool // #no_nil: tag 0 is the first variant instead of nil
	CustomAlign int
}

// RegisterUnion allocates a union type.
func (in *Interner) RegisterUnion(info UnionInfo) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.unions = append(in.unions, UnionInfo{
		Variants:    slices.Clone(info.Variants),
		NoNil:       info.NoNil,
		CustomAlign: info.CustomAlign,
	})
	slot, err := safecast.Conv[uint32](len(in.unions) - 1)
	if err != nil {
		panic(fmt.Errorf("union info overflow: %w", err))
	}
	return in.appendLocked(Type{Kind: KindUnion, Payload: slot}, false)
}

// UnionInfo returns metadata for the provided union TypeID.
func (in *Interner) UnionInfo(id TypeID) (*UnionInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	info := in.unionInfoLocked(id)
	return info, info != nil
}

func (in *Interner) unionInfoLocked(id TypeID) *UnionInfo {
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindUnion {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.unions) {
		return nil
	}
	return &in.unions[tt.Payload]
}

// UnionMaybePointer reports whether the union is {nil, pointer-shaped T}: it
// is then stored as the bare pointer and tested with a nil check.
func (in *Interner) UnionMaybePointer(id TypeID) bool {
	info, ok := in.UnionInfo(in.Base(id))
	if !ok || info.NoNil || len(info.Variants) != 1 {
		return false
	}
	return in.IsPointerLike(info.Variants[0])
}

// UnionTagType returns the integer type of the stored discriminant.
func (in *Interner) UnionTagType(id TypeID) TypeID {
	info, ok := in.UnionInfo(in.Base(id))
	if !ok {
		return NoTypeID
	}
	n := len(info.Variants)
	if !info.NoNil {
		n++
	}
	switch {
	case n <= 0xff:
		return in.basics[BasicU8]
	case n <= 0xffff:
		return in.basics[BasicU16]
	default:
		return in.basics[BasicU32]
	}
}

// UnionVariantTag returns the runtime tag value that marks variant as active.
// Tag 0 is reserved for nil unless the union is #no_nil.
func (in *Interner) UnionVariantTag(union, variant TypeID) (uint64, bool) {
	info, ok := in.UnionInfo(in.Base(union))
	if !ok {
		return 0, false
	}
	for i, v := range info.Variants {
		if v != variant {
			continue
		}
		tag, err := safecast.Conv[uint64](i)
		if err != nil {
			return 0, false
		}
		if !info.NoNil {
			tag++
		}
		return tag, true
	}
	return 0, false
}
