package llvm

import (
	"testing"

	"lowir/internal/types"
)

func TestOrElseWithBoolIndicator(t *testing.T) {
	h := newHarness(t)
	b := h.b
	opt := h.in.Tuple(b.I32, b.Bool)

	p := h.proc("or_else", []types.TypeID{opt}, b.I64)
	res := h.must(p.OrElse(
		func() (Value, error) { return p.Param(0), nil },
		func() (Value, error) { return p.ConstInt(b.I32, -1) },
		b.I64,
	))
	h.ret(p, res)
	h.finish(p)

	h.r.Equal(i64(41), h.mustCall("or_else", concat(8, at(0, i32(41)), at(4, boolean(true)))))
	h.r.Equal(i64(-1), h.mustCall("or_else", concat(8, at(0, i32(41)), at(4, boolean(false)))))
}

func TestOrElseFallbackIsLazy(t *testing.T) {
	h := newHarness(t)
	b := h.b
	opt := h.in.Tuple(b.I32, b.Bool)

	// The fallback loads through a nil pointer; it must only run when the
	// value is missing.
	p := h.proc("lazy", []types.TypeID{opt}, b.I32)
	var fallbackBlock string
	res := h.must(p.OrElse(
		func() (Value, error) { return p.Param(0), nil },
		func() (Value, error) {
			fallbackBlock = p.Current().Name()
			null := h.must(p.Zero(h.in.Pointer(b.I32)))
			return p.Load(null)
		},
		b.I32,
	))
	h.ret(p, res)
	h.finish(p)

	h.r.Equal("or_else.else", fallbackBlock)
	h.r.Equal(i32(5), h.mustCall("lazy", concat(8, at(0, i32(5)), at(4, boolean(true)))))
	_, err := h.call("lazy", concat(8, at(0, i32(5))))
	h.r.Error(err)
}

func TestOrElseWithErrorEnum(t *testing.T) {
	h := newHarness(t)
	b := h.b
	errEnum := h.in.RegisterNamed("Error", b.U8)
	res := h.in.Tuple(b.I64, errEnum)

	p := h.proc("or_else_err", []types.TypeID{res}, b.I64)
	v := h.must(p.OrElse(
		func() (Value, error) { return p.Param(0), nil },
		func() (Value, error) { return p.ConstInt(b.I64, 100) },
		b.I64,
	))
	h.ret(p, v)
	h.finish(p)

	// Zero is "no error".
	h.r.Equal(i64(7), h.mustCall("or_else_err", concat(16, at(0, i64(7)), at(8, u8(0)))))
	h.r.Equal(i64(100), h.mustCall("or_else_err", concat(16, at(0, i64(7)), at(8, u8(2)))))
}

func TestOrElsePacksLeadingValues(t *testing.T) {
	h := newHarness(t)
	b := h.b
	triple := h.in.Tuple(b.I32, b.I32, b.Bool)
	pair := h.in.Tuple(b.I32, b.I32)

	p := h.proc("packed", []types.TypeID{triple}, b.I32)
	v := h.must(p.OrElse(
		func() (Value, error) { return p.Param(0), nil },
		func() (Value, error) { return p.Zero(pair) },
		pair,
	))
	h.ret(p, h.must(p.StructEV(v, 1)))
	h.finish(p)

	h.r.Equal(i32(8), h.mustCall("packed", concat(12, at(0, i32(3)), at(4, i32(8)), at(8, boolean(true)))))
	h.r.Equal(i32(0), h.mustCall("packed", concat(12, at(0, i32(3)), at(4, i32(8)))))
}

func TestOrReturnSingleResult(t *testing.T) {
	h := newHarness(t)
	b := h.b
	errEnum := h.in.RegisterNamed("Error", b.I32)
	res := h.in.Tuple(b.Int, errEnum)

	p := h.proc("early", []types.TypeID{res}, errEnum)
	v := h.must(p.OrReturn(func() (Value, error) { return p.Param(0), nil }, b.I32))
	h.ret(p, h.must(p.Conv(v, errEnum)))
	h.finish(p)

	h.r.Equal(i32(7), h.mustCall("early", concat(16, at(0, i64(7)))))
	h.r.Equal(i32(5), h.mustCall("early", concat(16, at(0, i64(7)), at(8, i32(5)))))
}

func TestOrReturnNamedResults(t *testing.T) {
	h := newHarness(t)
	b := h.b
	errEnum := h.in.RegisterNamed("Error", b.I32)
	res := h.in.Tuple(b.Int, errEnum)

	p, err := h.m.NewProc("named", ProcSig{
		Params:  []Param{{Name: "r", Type: res}},
		Results: []Result{{Name: "value", Type: b.Int}, {Name: "err", Type: errEnum}},
	})
	h.r.NoError(err)
	v := h.must(p.OrReturn(func() (Value, error) { return p.Param(0), nil }, b.Int))
	slot, ok := p.ResultSlot(0)
	h.r.True(ok)
	h.r.NoError(p.Store(slot, v))
	h.finish(p)

	// Trailing padding of the packed results is unspecified.
	out := h.mustCall("named", concat(16, at(0, i64(9))))
	h.r.Equal(concat(12, at(0, i64(9))), out[:12])
	out = h.mustCall("named", concat(16, at(0, i64(9)), at(8, i32(4))))
	h.r.Equal(concat(12, at(8, i32(4))), out[:12])
}

func TestOrReturnWithoutValue(t *testing.T) {
	h := newHarness(t)
	b := h.b

	p := h.proc("check", []types.TypeID{b.Bool}, b.Bool)
	v := h.must(p.OrReturn(func() (Value, error) { return p.Param(0), nil }, types.NoTypeID))
	h.r.False(v.IsValid())
	h.ret(p, p.ConstBool(true))
	h.finish(p)

	h.r.Equal(boolean(true), h.mustCall("check", boolean(true)))
	h.r.Equal(boolean(false), h.mustCall("check", boolean(false)))
}

func TestTryRejectsIndicatorWithoutNil(t *testing.T) {
	h := newHarness(t)
	b := h.b
	p := h.proc("bad", []types.TypeID{h.in.Tuple(b.I32, b.F32)}, b.I32)

	_, err := p.OrReturn(func() (Value, error) { return p.Param(0), nil }, b.I32)
	var ie *InternalError
	h.r.ErrorAs(err, &ie)

	q := h.proc("no_results", []types.TypeID{h.in.Tuple(b.I32, b.Bool)})
	_, err = q.OrReturn(func() (Value, error) { return q.Param(0), nil }, b.I32)
	h.r.ErrorAs(err, &ie)
}
