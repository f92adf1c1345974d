package types

import (
	"fmt"

	"fortio.org/safecast"
)

// TupleInfo stores the element types for a tuple type.
type TupleInfo struct {
	Elems []TypeID
}

// Tuple creates or finds the tuple type with the given elements.
func (in *Interner) Tuple(elems ...TypeID) TypeID {
	key := tupleKey(elems)
	in.mu.RLock()
	id, ok := in.tupleIdx[key]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.tupleLocked(elems)
}

func (in *Interner) tupleLocked(elems []TypeID) TypeID {
	key := tupleKey(elems)
	if id, ok := in.tupleIdx[key]; ok {
		return id
	}
	in.tuples = append(in.tuples, TupleInfo{Elems: cloneTypeIDs(elems)})
	slot, err := safecast.Conv[uint32](len(in.tuples) - 1)
	if err != nil {
		panic(fmt.Errorf("tuple info overflow: %w", err))
	}
	id := in.appendLocked(Type{Kind: KindTuple, Payload: slot}, false)
	in.tupleIdx[key] = id
	return id
}

// TupleInfo returns the element types for a tuple TypeID.
func (in *Interner) TupleInfo(id TypeID) (*TupleInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindTuple {
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.tuples) {
		return nil, false
	}
	return &in.tuples[tt.Payload], true
}

// TupleElems returns the element list of a tuple, or nil.
func (in *Interner) TupleElems(id TypeID) []TypeID {
	info, ok := in.TupleInfo(id)
	if !ok {
		return nil
	}
	return info.Elems
}

// OptionalOK returns the (t, bool) tuple used by comma-ok expressions.
func (in *Interner) OptionalOK(t TypeID) TypeID {
	return in.Tuple(t, in.basics[BasicBool])
}
