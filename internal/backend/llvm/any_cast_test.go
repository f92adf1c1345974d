package llvm

import (
	"testing"

	"lowir/internal/eval"
	"lowir/internal/types"
)

func TestAnyBoxAndUnbox(t *testing.T) {
	h := newHarness(t)
	b := h.b
	pair := h.in.RegisterStruct(types.StructInfo{Fields: []types.Field{{Name: "x", Type: b.I64}, {Name: "y", Type: b.I8}}})

	p := h.proc("unbox", []types.TypeID{pair}, pair)
	boxed := h.must(p.Conv(p.Param(0), b.Any))
	h.ret(p, h.must(p.AnyCast(boxed, pair, h.pos)))
	h.finish(p)

	id := h.proc("typeid_of", []types.TypeID{b.I32}, b.Typeid)
	boxed = h.must(id.ConvToAny(id.Param(0)))
	h.ret(id, h.must(id.StructEV(boxed, 1)))
	h.finish(id)

	raw := concat(16, at(0, i64(-5)), at(8, u8(9)))
	out := h.mustCall("unbox", raw)
	h.r.Equal(raw[:9], out[:9])
	h.r.Equal(u64(uint64(b.I32)), h.mustCall("typeid_of", i32(0)))
}

func TestAnyCastAddrIsPrivateCopy(t *testing.T) {
	h := newHarness(t)
	b := h.b

	// Writing through the address returned by the cast must not disturb
	// the boxed value.
	p := h.proc("copy", []types.TypeID{b.I32}, b.I32)
	boxed := h.must(p.ConvToAny(p.Param(0)))
	addr := h.must(p.AnyCastAddr(boxed, b.I32, h.pos))
	h.r.NoError(p.Store(addr, h.must(p.ConstInt(b.I32, 0))))
	h.ret(p, h.must(p.AnyCast(boxed, b.I32, h.pos)))
	h.finish(p)

	h.r.Equal(i32(44), h.mustCall("copy", i32(44)))
}

func TestAnyCastMismatchPanics(t *testing.T) {
	h := newHarness(t)
	b := h.b

	p := h.proc("wrong", []types.TypeID{b.I32}, b.F32)
	boxed := h.must(p.ConvToAny(p.Param(0)))
	h.ret(p, h.must(p.AnyCast(boxed, b.F32, h.pos)))
	h.finish(p)

	_, err := h.call("wrong", i32(1))
	var perr *eval.PanicError
	h.r.ErrorAs(err, &perr)
	h.r.Equal(uint64(b.I32), perr.From)
	h.r.Equal(uint64(b.F32), perr.To)
	h.r.Equal("lowir/test.src", perr.File)
}

func TestAnyCastOK(t *testing.T) {
	h := newHarness(t)
	b := h.b

	hit := h.proc("hit", []types.TypeID{b.I16}, h.in.OptionalOK(b.I16))
	h.ret(hit, h.must(hit.AnyCastOK(h.must(hit.ConvToAny(hit.Param(0))), b.I16, h.pos)))
	h.finish(hit)

	miss := h.proc("miss", []types.TypeID{b.I16}, h.in.OptionalOK(b.U16))
	h.ret(miss, h.must(miss.AnyCastOK(h.must(miss.ConvToAny(miss.Param(0))), b.U16, h.pos)))
	h.finish(miss)

	nilAny := h.proc("nil_any", nil, h.in.OptionalOK(b.I16))
	h.ret(nilAny, h.must(nilAny.AnyCastOK(h.must(nilAny.Zero(b.Any)), b.I16, h.pos)))
	h.finish(nilAny)

	h.r.Equal([]byte{0x34, 0x12, 1, 0}, h.mustCall("hit", eval.Bytes(0x1234, 2)))
	// The payload stays zero when the ids differ.
	h.r.Equal([]byte{0, 0, 0, 0}, h.mustCall("miss", eval.Bytes(0x1234, 2)))
	h.r.Equal([]byte{0, 0, 0, 0}, h.mustCall("nil_any"))
}

func TestAnyCompareNil(t *testing.T) {
	h := newHarness(t)
	b := h.b

	p := h.proc("is_nil", []types.TypeID{b.Any}, b.Bool)
	h.ret(p, h.must(p.CompareNil(CmpEq, p.Param(0))))
	h.finish(p)

	h.r.Equal(boolean(true), h.mustCall("is_nil", make([]byte, 16)))
	h.r.Equal(boolean(false), h.mustCall("is_nil", concat(16, at(8, u64(7)))))
}
