package types //nolint:revive

import (
	"fmt"

	"fortio.org/safecast"
)

// MapInfo stores metadata for a map type. Internal is materialised on first
// request by MapInternal.
type MapInfo struct {
	Key      TypeID
	Value    TypeID
	Internal TypeID
}

// Map creates or finds map[key]value.
func (in *Interner) Map(key, value TypeID) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	for slot := 1; slot < len(in.maps); slot++ {
		info := in.maps[slot]
		if info.Key == key && info.Value == value {
			return in.mapIDs[slot]
		}
	}
	in.maps = append(in.maps, MapInfo{Key: key, Value: value})
	slot, err := safecast.Conv[uint32](len(in.maps) - 1)
	if err != nil {
		panic(fmt.Errorf("map info overflow: %w", err))
	}
	id := in.appendLocked(Type{Kind: KindMap, Elem: value, Aux: key, Payload: slot}, false)
	in.mapIDs = append(in.mapIDs, id)
	return id
}

// MapInfo returns a copy of the metadata for a map TypeID.
func (in *Interner) MapInfo(id TypeID) (MapInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	info := in.mapInfoLocked(id)
	if info == nil {
		return MapInfo{}, false
	}
	return *info, true
}

func (in *Interner) mapInfoLocked(id TypeID) *MapInfo {
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindMap {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.maps) {
		return nil
	}
	return &in.maps[tt.Payload]
}

// MapInternal returns the hidden struct backing a map type, building it on
// first use:
//
//	struct {
//		hashes:  []int,
//		entries: [dynamic]struct{hash: uintptr, next: int, key: K, value: V},
//	}
//
// Safe for concurrent first use; every caller observes the same TypeID.
func (in *Interner) MapInternal(id TypeID) TypeID {
	id = in.Base(id)
	in.mu.RLock()
	if info := in.mapInfoLocked(id); info != nil && info.Internal != NoTypeID {
		in.mu.RUnlock()
		return info.Internal
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()
	info := in.mapInfoLocked(id)
	if info == nil {
		return NoTypeID
	}
	if info.Internal != NoTypeID {
		return info.Internal
	}
	key, value := info.Key, info.Value
	entry := in.registerStructLocked(StructInfo{Fields: []Field{
		{Name: "hash", Type: in.basics[BasicUintptr]},
		{Name: "next", Type: in.basics[BasicInt]},
		{Name: "key", Type: key},
		{Name: "value", Type: value},
	}})
	hashes := in.internLocked(Type{Kind: KindSlice, Elem: in.basics[BasicInt]})
	entries := in.internLocked(Type{Kind: KindDynamicArray, Elem: entry})
	internal := in.registerStructLocked(StructInfo{Fields: []Field{
		{Name: "hashes", Type: hashes},
		{Name: "entries", Type: entries},
	}})
	// registerStructLocked may grow other tables, not maps; info stays valid.
	info.Internal = internal
	return internal
}
