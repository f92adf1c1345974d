package types

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// Field describes a single field inside a struct type.
type Field struct {
	Name string
	Type TypeID
}

// StructInfo stores metadata for a struct type.
type StructInfo struct {
	Fields      []Field
	CustomAlign int  // 0 when the struct has no #align
	Packed      bool // #packed
	RawUnion    bool // #raw_union: every field starts at offset 0

	// Struct-of-arrays layouts.
	Soa      SoaKind
	SoaElem  TypeID
	SoaCount int64 // SoaFixed only
}

// NamedInfo stores metadata for a nominal alias type.
type NamedInfo struct {
	Name string
	Base TypeID
}

// RegisterStruct allocates a struct type. Every registration is a distinct
// type, even for identical field lists.
func (in *Interner) RegisterStruct(info StructInfo) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.registerStructLocked(info)
}

func (in *Interner) registerStructLocked(info StructInfo) TypeID {
	if info.Packed && info.CustomAlign != 0 {
		panic("types: #packed conflicts with #align")
	}
	in.structs = append(in.structs, StructInfo{
		Fields:      slices.Clone(info.Fields),
		CustomAlign: info.CustomAlign,
		Packed:      info.Packed,
		RawUnion:    info.RawUnion,
		Soa:         info.Soa,
		SoaElem:     info.SoaElem,
		SoaCount:    info.SoaCount,
	})
	slot, err := safecast.Conv[uint32](len(in.structs) - 1)
	if err != nil {
		panic(fmt.Errorf("struct info overflow: %w", err))
	}
	return in.appendLocked(Type{Kind: KindStruct, Payload: slot}, false)
}

// StructInfo returns metadata for the provided struct TypeID. Named wrappers
// are not resolved.
func (in *Interner) StructInfo(id TypeID) (*StructInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	info := in.structInfoLocked(id)
	return info, info != nil
}

func (in *Interner) structInfoLocked(id TypeID) *StructInfo {
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindStruct {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		return nil
	}
	return &in.structs[tt.Payload]
}

// StructFieldType returns the type of field index of a struct.
func (in *Interner) StructFieldType(id TypeID, index int) (TypeID, bool) {
	info, ok := in.StructInfo(id)
	if !ok || index < 0 || index >= len(info.Fields) {
		return NoTypeID, false
	}
	return info.Fields[index].Type, true
}

// RegisterNamed allocates a nominal type. base may be NoTypeID and set later
// through SetNamedBase for recursive declarations.
func (in *Interner) RegisterNamed(name string, base TypeID) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.registerNamedLocked(name, base)
}

func (in *Interner) registerNamedLocked(name string, base TypeID) TypeID {
	in.nameds = append(in.nameds, NamedInfo{Name: name, Base: base})
	slot, err := safecast.Conv[uint32](len(in.nameds) - 1)
	if err != nil {
		panic(fmt.Errorf("named info overflow: %w", err))
	}
	return in.appendLocked(Type{Kind: KindNamed, Payload: slot}, false)
}

// SetNamedBase sets the base type of a named type registered without one.
func (in *Interner) SetNamedBase(id, base TypeID) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if info := in.namedInfoLocked(id); info != nil {
		info.Base = base
	}
}

// NamedInfo returns metadata for a named TypeID.
func (in *Interner) NamedInfo(id TypeID) (*NamedInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	info := in.namedInfoLocked(id)
	return info, info != nil
}

func (in *Interner) namedInfoLocked(id TypeID) *NamedInfo {
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindNamed {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.nameds) {
		return nil
	}
	return &in.nameds[tt.Payload]
}
