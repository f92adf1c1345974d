package llvm

import (
	"bytes"
	"testing"

	"github.com/llir/llvm/ir"

	"lowir/internal/types"
)

func zeroedLocal(h *harness, name string, t types.TypeID) {
	p := h.proc(name, nil, t)
	local := h.must(p.Local(t, true))
	h.ret(p, h.must(p.Load(local)))
	h.finish(p)
}

func TestZeroedLocalsClearPadding(t *testing.T) {
	h := newHarness(t)
	b := h.b
	fields := []types.Field{{Name: "a", Type: b.U8}, {Name: "b", Type: b.I32}, {Name: "c", Type: b.U8}}
	plain := h.in.RegisterStruct(types.StructInfo{Fields: fields})
	aligned := h.in.RegisterStruct(types.StructInfo{Fields: fields, CustomAlign: 16})
	union := h.in.RegisterUnion(types.UnionInfo{Variants: []types.TypeID{b.U8, b.F64}})

	cases := []struct {
		name string
		id   types.TypeID
		size int
	}{
		{"plain", plain, 12},
		{"aligned", aligned, 16},
		{"union", union, 16},
		{"string", b.String, 16},
		{"array", h.in.Array(b.U16, 5), 10},
		{"scalar", b.I64, 8},
	}
	for _, tc := range cases {
		zeroedLocal(h, "zero_"+tc.name, tc.id)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := h.mustCall("zero_" + tc.name)
			if !bytes.Equal(out, make([]byte, tc.size)) {
				t.Fatalf("got % x, want %d zero bytes", out, tc.size)
			}
		})
	}
}

func TestUnzeroedLocalKeepsGarbage(t *testing.T) {
	h := newHarness(t)
	p := h.proc("raw", nil, h.b.I32)
	local := h.must(p.Local(h.b.I32, false))
	h.ret(p, h.must(p.Load(local)))
	h.finish(p)

	out := h.mustCall("raw")
	h.r.NotEqual(make([]byte, 4), out)
}

func TestCopyValueToPtrRaisesAlignment(t *testing.T) {
	h := newHarness(t)
	p := h.proc("copy", []types.TypeID{h.b.I8}, h.b.I16)
	addr := h.must(p.CopyValueToPtr(p.Param(0), h.b.I16, 32))
	alloca, ok := addr.V.(*ir.InstAlloca)
	h.r.True(ok)
	h.r.EqualValues(32, alloca.Align)
	h.ret(p, h.must(p.Load(addr)))
	h.finish(p)

	h.r.Equal(i32(-3)[:2], h.mustCall("copy", []byte{0xFD}))
}
