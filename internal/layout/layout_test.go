package layout

import (
	"errors"
	"testing"

	"lowir/internal/types"
)

func newEngine() (*LayoutEngine, *types.Interner) {
	in := types.NewInterner()
	return New(X86_64LinuxGNU(), in), in
}

func mustLayout(t *testing.T, e *LayoutEngine, id types.TypeID) TypeLayout {
	t.Helper()
	l, err := e.LayoutOf(id)
	if err != nil {
		t.Fatalf("LayoutOf(%s): %v", e.Types.TypeString(id), err)
	}
	return l
}

func TestBasicLayouts(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	cases := []struct {
		id          types.TypeID
		size, align int
	}{
		{b.Bool, 1, 1},
		{b.I16, 2, 2},
		{b.Int, 8, 8},
		{b.F16, 2, 2},
		{b.String, 16, 8},
		{b.Any, 16, 8},
		{b.Typeid, 8, 8},
		{b.Complex32, 4, 2},
		{b.Complex128, 16, 8},
		{b.Quaternion256, 32, 8},
		{in.Slice(b.I32), 16, 8},
		{in.DynamicArray(b.I32), 40, 8},
		{in.Array(b.I16, 3), 6, 2},
		{in.SimdVector(b.F32, 4), 16, 16},
		{in.BitSet(b.U8, 20, types.NoTypeID), 4, 4},
		{in.RelativeSlice(in.Slice(b.Int), b.I32), 8, 4},
	}
	for _, tc := range cases {
		l := mustLayout(t, e, tc.id)
		if l.Size != tc.size || l.Align != tc.align {
			t.Errorf("%s: got %d/%d, want %d/%d", in.TypeString(tc.id), l.Size, l.Align, tc.size, tc.align)
		}
	}
}

func TestStructAttrs(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	fields := []types.Field{{Name: "a", Type: b.U8}, {Name: "b", Type: b.I32}, {Name: "c", Type: b.U8}}

	plain := mustLayout(t, e, in.RegisterStruct(types.StructInfo{Fields: fields}))
	if plain.Size != 12 || plain.FieldOffsets[1] != 4 || plain.FieldOffsets[2] != 8 {
		t.Fatalf("plain: %+v", plain)
	}
	packed := mustLayout(t, e, in.RegisterStruct(types.StructInfo{Fields: fields, Packed: true}))
	if packed.Size != 6 || packed.Align != 1 || packed.FieldOffsets[2] != 5 {
		t.Fatalf("packed: %+v", packed)
	}
	aligned := mustLayout(t, e, in.RegisterStruct(types.StructInfo{Fields: fields, CustomAlign: 16}))
	if aligned.Size != 16 || aligned.Align != 16 || aligned.FieldOffsets[1] != 4 {
		t.Fatalf("aligned: %+v", aligned)
	}
	raw := mustLayout(t, e, in.RegisterStruct(types.StructInfo{Fields: fields, RawUnion: true}))
	if raw.Size != 4 || raw.FieldOffsets[1] != 0 {
		t.Fatalf("raw union: %+v", raw)
	}

	_, err := e.LayoutOf(in.RegisterStruct(types.StructInfo{Fields: fields, CustomAlign: 3}))
	var le *LayoutError
	if !errors.As(err, &le) || le.Kind != LayoutErrBadAlign {
		t.Fatalf("expected bad align, got %v", err)
	}
}

func TestUnionLayout(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	u := in.RegisterUnion(types.UnionInfo{Variants: []types.TypeID{b.I32, b.String, b.U8}})
	l := mustLayout(t, e, u)
	if l.PayloadSize != 16 || l.TagOffset != 16 || l.TagSize != 1 || l.Size != 24 || l.Align != 8 {
		t.Fatalf("union: %+v", l)
	}
	maybe := in.RegisterUnion(types.UnionInfo{Variants: []types.TypeID{in.Pointer(b.I32)}})
	if got := mustLayout(t, e, maybe); got.Size != 8 || got.TagSize != 0 {
		t.Fatalf("maybe-pointer union: %+v", got)
	}
}

func TestMapLayoutMatchesInternal(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	m := in.Map(b.String, b.Int)
	got := mustLayout(t, e, m)
	want := mustLayout(t, e, in.MapInternal(m))
	if got.Size != want.Size || got.Size != 56 {
		t.Fatalf("map size %d, internal %d", got.Size, want.Size)
	}
}

func TestRecursiveValueTypeReportsCycle(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	node := in.RegisterNamed("Node", types.NoTypeID)
	st := in.RegisterStruct(types.StructInfo{Fields: []types.Field{
		{Name: "value", Type: b.Int},
		{Name: "next", Type: node},
	}})
	in.SetNamedBase(node, st)

	_, err := e.LayoutOf(node)
	var le *LayoutError
	if !errors.As(err, &le) || le.Kind != LayoutErrRecursiveUnsized {
		t.Fatalf("expected recursive error, got %v", err)
	}

	list := in.RegisterNamed("List", types.NoTypeID)
	in.SetNamedBase(list, in.RegisterStruct(types.StructInfo{Fields: []types.Field{
		{Name: "next", Type: in.Pointer(list)},
	}}))
	if l := mustLayout(t, e, list); l.Size != 8 {
		t.Fatalf("pointer recursion: %+v", l)
	}
}

func TestNarrowTarget(t *testing.T) {
	in := types.NewInterner()
	e := New(I386LinuxGNU(), in)
	b := in.Builtins()
	if l := mustLayout(t, e, b.Any); l.Size != 16 || l.FieldOffsets[1] != 8 {
		t.Fatalf("any on i386: %+v", l)
	}
	if l := mustLayout(t, e, in.DynamicArray(b.U8)); l.Size != 20 {
		t.Fatalf("dynamic array on i386: %+v", l)
	}
	if _, err := TargetByTriple("sparc"); err == nil {
		t.Fatalf("unknown triple accepted")
	}
}
