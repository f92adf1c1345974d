package llvm

import (
	"math"
	"testing"

	irtypes "github.com/llir/llvm/ir/types"

	"lowir/internal/eval"
	"lowir/internal/types"
)

func unary(h *harness, name string, t, result types.TypeID, op func(p *Proc, x Value) (Value, error)) {
	p := h.proc(name, []types.TypeID{t}, result)
	h.ret(p, h.must(op(p, p.Param(0))))
	h.finish(p)
}

func TestByteSwap(t *testing.T) {
	h := newHarness(t)
	b := h.b
	unary(h, "swap32", b.U32, b.U32, func(p *Proc, x Value) (Value, error) { return p.ByteSwap(x, b.U32) })
	unary(h, "swap_f32", b.F32, b.F32, func(p *Proc, x Value) (Value, error) {
		once, err := p.ByteSwap(x, b.F32)
		if err != nil {
			return Value{}, err
		}
		return p.ByteSwap(once, b.F32)
	})
	unary(h, "swap_f64_bits", b.F64, b.U64, func(p *Proc, x Value) (Value, error) {
		swapped, err := p.ByteSwap(x, b.F64)
		if err != nil {
			return Value{}, err
		}
		return p.Transmute(swapped, b.U64)
	})
	unary(h, "swap8", b.U8, b.I8, func(p *Proc, x Value) (Value, error) { return p.ByteSwap(x, b.I8) })

	h.r.Equal(u32(0x44332211), h.mustCall("swap32", u32(0x11223344)))
	bits := u32(math.Float32bits(-3.75))
	h.r.Equal(bits, h.mustCall("swap_f32", bits))
	h.r.Equal(u64(0x0807060504030201), h.mustCall("swap_f64_bits", u64(0x0102030405060708)))
	h.r.Equal(u8(0xAB), h.mustCall("swap8", u8(0xAB)))
	_, declared := h.m.intrinsics["llvm.bswap.i8"]
	h.r.False(declared)

	p := h.proc("bad_swap", []types.TypeID{b.U32})
	_, err := p.ByteSwap(p.Param(0), b.U16)
	var ie *InternalError
	h.r.ErrorAs(err, &ie)
}

func TestBitCounting(t *testing.T) {
	h := newHarness(t)
	b := h.b
	unary(h, "ones", b.U16, b.U16, func(p *Proc, x Value) (Value, error) { return p.CountOnes(x, b.U16) })
	unary(h, "zeros", b.U16, b.U16, func(p *Proc, x Value) (Value, error) { return p.CountZeros(x, b.U16) })
	unary(h, "clz", b.U32, b.U32, func(p *Proc, x Value) (Value, error) { return p.CountLeadingZeros(x, b.U32) })
	unary(h, "ctz", b.U32, b.U32, func(p *Proc, x Value) (Value, error) { return p.CountTrailingZeros(x, b.U32) })
	unary(h, "rev2", b.U32, b.U32, func(p *Proc, x Value) (Value, error) {
		once, err := p.ReverseBits(x, b.U32)
		if err != nil {
			return Value{}, err
		}
		return p.ReverseBits(once, b.U32)
	})
	unary(h, "rev", b.U8, b.U8, func(p *Proc, x Value) (Value, error) { return p.ReverseBits(x, b.U8) })

	for _, x := range []uint64{0, 1, 0x8000, 0xFFFF, 0x5A5A} {
		ones := eval.Uint(h.mustCall("ones", eval.Bytes(x, 2)))
		zeros := eval.Uint(h.mustCall("zeros", eval.Bytes(x, 2)))
		h.r.Equal(uint64(16), ones+zeros, "x=%#x", x)
	}
	h.r.Equal(u32(32), h.mustCall("clz", u32(0)))
	h.r.Equal(u32(32), h.mustCall("ctz", u32(0)))
	h.r.Equal(u32(27), h.mustCall("clz", u32(16)))
	h.r.Equal(u32(4), h.mustCall("ctz", u32(16)))
	h.r.Equal(u32(0xC0FFEE), h.mustCall("rev2", u32(0xC0FFEE)))
	h.r.Equal(u8(0x80), h.mustCall("rev", u8(1)))
}

func TestCountsCoverEveryWidth(t *testing.T) {
	h := newHarness(t)
	b := h.b
	widths := []struct {
		t     types.TypeID
		bytes int
	}{{b.U8, 1}, {b.U16, 2}, {b.U32, 4}, {b.U64, 8}}
	for _, w := range widths {
		ft := w.t
		name := h.in.TypeString(ft)
		unary(h, "ones_"+name, ft, ft, func(p *Proc, x Value) (Value, error) { return p.CountOnes(x, ft) })
		unary(h, "zeros_"+name, ft, ft, func(p *Proc, x Value) (Value, error) { return p.CountZeros(x, ft) })
		unary(h, "swap2_"+name, ft, ft, func(p *Proc, x Value) (Value, error) {
			once, err := p.ByteSwap(x, ft)
			if err != nil {
				return Value{}, err
			}
			return p.ByteSwap(once, ft)
		})
	}
	for _, w := range widths {
		name := h.in.TypeString(w.t)
		bits := uint64(w.bytes) * 8
		for _, x := range []uint64{0, 1, 0x80, 0xA5A5_5A5A_0F0F_F0F0, math.MaxUint64} {
			arg := eval.Bytes(x, w.bytes)
			ones := eval.Uint(h.mustCall("ones_"+name, arg))
			zeros := eval.Uint(h.mustCall("zeros_"+name, arg))
			h.r.Equal(bits, ones+zeros, "%s x=%#x", name, x)
			h.r.Equal(arg, h.mustCall("swap2_"+name, arg), "%s x=%#x", name, x)
		}
	}
}

func TestBitSetCard(t *testing.T) {
	h := newHarness(t)
	b := h.b
	set := h.in.BitSet(b.U8, 20, types.NoTypeID)
	unary(h, "card", set, b.Int, func(p *Proc, x Value) (Value, error) { return p.BitSetCard(x) })

	h.r.Equal(i64(5), h.mustCall("card", u32(0b1011_0000_0000_0101)))

	p := h.proc("not_a_set", []types.TypeID{b.U32})
	_, err := p.BitSetCard(p.Param(0))
	var ie *InternalError
	h.r.ErrorAs(err, &ie)
}

func TestIncrement(t *testing.T) {
	h := newHarness(t)
	b := h.b
	p := h.proc("inc", []types.TypeID{b.I8}, b.I8)
	slot := h.must(p.CopyValueToPtr(p.Param(0), b.I8, 0))
	h.r.NoError(p.Increment(slot))
	h.r.NoError(p.Increment(slot))
	h.ret(p, h.must(p.Load(slot)))
	h.finish(p)

	h.r.Equal(u8(1), h.mustCall("inc", u8(0xFF)))
}

func TestIntrinsicDeclarations(t *testing.T) {
	h := newHarness(t)
	v4 := irtypes.NewVector(4, irtypes.I32)

	first, err := h.m.Intrinsic("ctpop", irtypes.I32)
	h.r.NoError(err)
	again, err := h.m.Intrinsic("ctpop", irtypes.I32)
	h.r.NoError(err)
	h.r.Same(first, again)
	h.r.Equal("llvm.ctpop.i32", first.Name())

	vec, err := h.m.Intrinsic("bswap", v4)
	h.r.NoError(err)
	h.r.Equal("llvm.bswap.v4i32", vec.Name())

	set, err := h.m.Intrinsic("memset.inline", irtypes.I8Ptr, irtypes.I64)
	h.r.NoError(err)
	h.r.Equal("llvm.memset.inline.p0i8.i64", set.Name())
	h.r.Len(set.Params, 4)

	clz, err := h.m.Intrinsic("ctlz", irtypes.I16)
	h.r.NoError(err)
	h.r.Len(clz.Params, 2)

	for _, bad := range []struct {
		name string
		ops  []irtypes.Type
	}{
		{"bswap", []irtypes.Type{irtypes.I8}},
		{"bswap", []irtypes.Type{irtypes.NewInt(24)}},
		{"ctpop", []irtypes.Type{irtypes.Float}},
		{"ctpop", []irtypes.Type{irtypes.I32, irtypes.I32}},
		{"memset", []irtypes.Type{irtypes.I64, irtypes.I64}},
		{"sqrt", []irtypes.Type{irtypes.Double}},
	} {
		_, err := h.m.Intrinsic(bad.name, bad.ops...)
		var ie *InternalError
		h.r.ErrorAs(err, &ie, "%s%v", bad.name, bad.ops)
	}
}
