package types

import (
	"sync"
	"testing"
)

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Int == NoTypeID || b.String == NoTypeID || b.Any == NoTypeID {
		t.Fatalf("builtins missing: %+v", b)
	}
	if got := in.MustLookup(b.U8).Basic; got != BasicU8 {
		t.Fatalf("u8 kind: %s", got)
	}
	if in.Pointer(b.U8) != b.U8Ptr {
		t.Fatalf("^u8 not shared with builtin")
	}
	if k, ok := ParseBasicKind("quaternion128"); !ok || k != BasicQuaternion128 {
		t.Fatalf("ParseBasicKind: %v %v", k, ok)
	}
}

func TestInternerStructuralSharing(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if in.Slice(b.Int) != in.Slice(b.Int) {
		t.Fatalf("slice not hash-consed")
	}
	if in.Array(b.Int, 3) == in.Array(b.Int, 4) {
		t.Fatalf("array counts must differ")
	}
	if in.Tuple(b.Int, b.Bool) != in.OptionalOK(b.Int) {
		t.Fatalf("tuple not hash-consed")
	}
	if in.Map(b.String, b.Int) != in.Map(b.String, b.Int) {
		t.Fatalf("map not hash-consed")
	}
	s1 := in.RegisterStruct(StructInfo{Fields: []Field{{Name: "x", Type: b.Int}}})
	s2 := in.RegisterStruct(StructInfo{Fields: []Field{{Name: "x", Type: b.Int}}})
	if s1 == s2 {
		t.Fatalf("structs are nominal")
	}
}

func TestNamedBase(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	node := in.RegisterNamed("Node", NoTypeID)
	st := in.RegisterStruct(StructInfo{Fields: []Field{
		{Name: "next", Type: in.Pointer(node)},
		{Name: "value", Type: b.I32},
	}})
	in.SetNamedBase(node, st)
	if in.Base(node) != st {
		t.Fatalf("base not resolved")
	}
	if in.KindOf(node) != KindStruct {
		t.Fatalf("kind through named: %s", in.KindOf(node))
	}
	if got := in.TypeString(node); got != "Node" {
		t.Fatalf("TypeString = %q", got)
	}
	if got := in.TypeString(st); got != "struct {next: ^Node, value: i32}" {
		t.Fatalf("TypeString = %q", got)
	}
}

func TestUnionTags(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	u := in.RegisterUnion(UnionInfo{Variants: []TypeID{b.Int, b.F64, b.String}})
	if tag, ok := in.UnionVariantTag(u, b.F64); !ok || tag != 2 {
		t.Fatalf("f64 tag = %d %v", tag, ok)
	}
	nn := in.RegisterUnion(UnionInfo{Variants: []TypeID{b.Int, b.F64}, NoNil: true})
	if tag, _ := in.UnionVariantTag(nn, b.Int); tag != 0 {
		t.Fatalf("no_nil first tag = %d", tag)
	}
	if _, ok := in.UnionVariantTag(u, b.Bool); ok {
		t.Fatalf("bool is not a variant")
	}
	if in.UnionTagType(u) != b.U8 {
		t.Fatalf("tag type")
	}
	maybe := in.RegisterUnion(UnionInfo{Variants: []TypeID{in.Pointer(b.Int)}})
	if !in.UnionMaybePointer(maybe) || in.UnionMaybePointer(u) {
		t.Fatalf("maybe-pointer detection")
	}
	if !in.HasNil(u) || in.HasNil(nn) {
		t.Fatalf("HasNil for unions")
	}
}

func TestMapInternalConcurrentFirstUse(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	m := in.Map(b.String, b.F64)
	named := in.RegisterNamed("Table", m)

	const workers = 16
	got := make([]TypeID, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				got[i] = in.MapInternal(m)
			} else {
				got[i] = in.MapInternal(named)
			}
		}()
	}
	wg.Wait()
	for i := 1; i < workers; i++ {
		if got[i] != got[0] {
			t.Fatalf("worker %d got %d, want %d", i, got[i], got[0])
		}
	}
	info, ok := in.StructInfo(got[0])
	if !ok || len(info.Fields) != 2 {
		t.Fatalf("internal struct malformed: %+v", info)
	}
	if in.KindOf(info.Fields[1].Type) != KindDynamicArray {
		t.Fatalf("entries must be a dynamic array")
	}
	entry, _ := in.StructInfo(in.Elem(info.Fields[1].Type))
	if entry.Fields[2].Type != b.String || entry.Fields[3].Type != b.F64 {
		t.Fatalf("entry key/value: %+v", entry.Fields)
	}
}

func TestComplexElem(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if e, n := in.ComplexElem(b.Quaternion128); e != b.F32 || n != 4 {
		t.Fatalf("quaternion128 elem = %d x%d", e, n)
	}
	if e, n := in.ComplexElem(b.Complex128); e != b.F64 || n != 2 {
		t.Fatalf("complex128 elem = %d x%d", e, n)
	}
	if e, _ := in.ComplexElem(b.Int); e != NoTypeID {
		t.Fatalf("int has no complex elem")
	}
}

func TestBitSetUnderlyingDefault(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if got := in.BitSetUnderlying(in.BitSet(b.U8, 12, NoTypeID)); got != b.U16 {
		t.Fatalf("12-bit set backed by %s", in.TypeString(got))
	}
}
