package eval_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"lowir/internal/eval"
	"lowir/internal/layout"
	"lowir/internal/types"
)

func newVM(t *testing.T, mod *ir.Module) *eval.VM {
	t.Helper()
	eng := layout.New(layout.X86_64LinuxGNU(), types.NewInterner())
	return eval.New(mod, eng, nil, slogt.New(t))
}

// sumTo builds: sum(n) = 0 + 1 + ... + (n-1) with a phi loop.
func sumTo(mod *ir.Module) {
	n := ir.NewParam("n", irtypes.I64)
	f := mod.NewFunc("sum", irtypes.I64, n)
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	done := f.NewBlock("done")
	entry.NewBr(loop)

	zero := constant.NewInt(irtypes.I64, 0)
	i := loop.NewPhi(ir.NewIncoming(zero, entry))
	acc := loop.NewPhi(ir.NewIncoming(zero, entry))
	nextAcc := loop.NewAdd(acc, i)
	nextI := loop.NewAdd(i, constant.NewInt(irtypes.I64, 1))
	i.Incs = append(i.Incs, ir.NewIncoming(nextI, loop))
	acc.Incs = append(acc.Incs, ir.NewIncoming(nextAcc, loop))
	cont := loop.NewICmp(enum.IPredSLT, nextI, n)
	loop.NewCondBr(cont, loop, done)
	done.NewRet(nextAcc)
}

func TestLoopWithPhis(t *testing.T) {
	r := require.New(t)
	mod := ir.NewModule()
	sumTo(mod)
	vm := newVM(t, mod)

	out, err := vm.Call(context.Background(), "sum", eval.Bytes(10, 8))
	r.NoError(err)
	r.Equal(int64(45), eval.Int(out))
}

func TestStepLimit(t *testing.T) {
	r := require.New(t)
	mod := ir.NewModule()
	sumTo(mod)
	vm := newVM(t, mod)
	vm.StepLimit = 50

	_, err := vm.Call(context.Background(), "sum", eval.Bytes(1000, 8))
	var trap *eval.TrapError
	r.ErrorAs(err, &trap)
	r.Equal(eval.TrapStepLimit, trap.Code)
	r.Equal("sum", trap.Func)
}

func TestAllocaIsPoisonedAndStoresStick(t *testing.T) {
	r := require.New(t)
	mod := ir.NewModule()
	f := mod.NewFunc("slot", irtypes.I32)
	b := f.NewBlock("entry")
	slot := b.NewAlloca(irtypes.NewArray(2, irtypes.I32))
	zero := constant.NewInt(irtypes.I32, 0)
	one := constant.NewInt(irtypes.I32, 1)
	second := b.NewGetElementPtr(slot.ElemType, slot, zero, one)
	b.NewStore(constant.NewInt(irtypes.I32, -7), second)
	first := b.NewGetElementPtr(slot.ElemType, slot, zero, zero)
	x := b.NewLoad(irtypes.I32, first)
	y := b.NewLoad(irtypes.I32, second)
	b.NewRet(b.NewAdd(x, y))
	vm := newVM(t, mod)

	out, err := vm.Call(context.Background(), "slot")
	r.NoError(err)
	// The untouched element still holds the poison pattern.
	r.Equal(int64(int32(-0x55555556)-7), eval.Int(out))
}

func TestNilLoadTraps(t *testing.T) {
	r := require.New(t)
	mod := ir.NewModule()
	f := mod.NewFunc("deref", irtypes.I8)
	b := f.NewBlock("entry")
	b.NewRet(b.NewLoad(irtypes.I8, constant.NewNull(irtypes.I8Ptr)))
	vm := newVM(t, mod)

	_, err := vm.Call(context.Background(), "deref")
	var trap *eval.TrapError
	r.ErrorAs(err, &trap)
	r.Equal(eval.TrapNullAccess, trap.Code)
}

func TestNullPageAccessTraps(t *testing.T) {
	r := require.New(t)
	mod := ir.NewModule()
	f := mod.NewFunc("field", irtypes.I32)
	b := f.NewBlock("entry")
	rec := irtypes.NewStruct(irtypes.I32, irtypes.I32)
	base := constant.NewNull(irtypes.NewPointer(rec))
	second := b.NewGetElementPtr(rec, base, constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 1))
	b.NewRet(b.NewLoad(irtypes.I32, second))
	vm := newVM(t, mod)

	_, err := vm.Call(context.Background(), "field")
	var trap *eval.TrapError
	r.ErrorAs(err, &trap)
	r.Equal(eval.TrapNullAccess, trap.Code)
}

func TestBitCastMustKeepWidth(t *testing.T) {
	cases := map[string]struct {
		from, to irtypes.Type
		arg      []byte
		ok       bool
	}{
		"f32 to i32": {irtypes.Float, irtypes.I32, eval.Bytes(uint64(math.Float32bits(1.5)), 4), true},
		"i16 to f16": {irtypes.I16, irtypes.Half, eval.Bytes(0x3c00, 2), true},
		"i8 to i1":   {irtypes.I8, irtypes.I1, []byte{2}, false},
		"i64 to f32": {irtypes.I64, irtypes.Float, eval.Bytes(1, 8), false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := require.New(t)
			mod := ir.NewModule()
			x := ir.NewParam("x", tc.from)
			f := mod.NewFunc("cast", tc.to, x)
			b := f.NewBlock("entry")
			b.NewRet(b.NewBitCast(x, tc.to))
			vm := newVM(t, mod)

			out, err := vm.Call(context.Background(), "cast", tc.arg)
			if tc.ok {
				r.NoError(err)
				r.Equal(tc.arg, out)
				return
			}
			var trap *eval.TrapError
			r.ErrorAs(err, &trap)
			r.Equal(eval.TrapUnsupported, trap.Code)
		})
	}
}

func TestGlobalStringAndExtern(t *testing.T) {
	r := require.New(t)
	mod := ir.NewModule()
	g := mod.NewGlobalDef("msg", constant.NewCharArrayFromString("hello\x00"))
	cstrlen := mod.NewFunc("cstring_len", irtypes.I64, ir.NewParam("s", irtypes.I8Ptr))
	f := mod.NewFunc("measure", irtypes.I64)
	b := f.NewBlock("entry")
	zero := constant.NewInt(irtypes.I32, 0)
	ptr := constant.NewGetElementPtr(g.ContentType, g, zero, zero)
	b.NewRet(b.NewCall(cstrlen, ptr))
	vm := newVM(t, mod)

	out, err := vm.Call(context.Background(), "measure")
	r.NoError(err)
	r.Equal(int64(5), eval.Int(out))
}

func TestFailedAssertionSurfacesAsPanic(t *testing.T) {
	r := require.New(t)
	mod := ir.NewModule()
	str := irtypes.NewStruct(irtypes.I8Ptr, irtypes.I64)
	check := mod.NewFunc("type_assertion_check2", irtypes.Void,
		ir.NewParam("ok", irtypes.I1), ir.NewParam("file", str),
		ir.NewParam("line", irtypes.I32), ir.NewParam("column", irtypes.I32),
		ir.NewParam("from", irtypes.I64), ir.NewParam("to", irtypes.I64),
		ir.NewParam("data", irtypes.I8Ptr))
	g := mod.NewGlobalDef("file", constant.NewCharArrayFromString("a.src"))
	zero := constant.NewInt(irtypes.I32, 0)
	file := constant.NewStruct(str, constant.NewGetElementPtr(g.ContentType, g, zero, zero), constant.NewInt(irtypes.I64, 5))

	f := mod.NewFunc("fail", irtypes.Void)
	b := f.NewBlock("entry")
	b.NewCall(check, constant.NewBool(false), file, constant.NewInt(irtypes.I32, 3), constant.NewInt(irtypes.I32, 9),
		constant.NewInt(irtypes.I64, 11), constant.NewInt(irtypes.I64, 12), constant.NewNull(irtypes.I8Ptr))
	b.NewUnreachable()
	vm := newVM(t, mod)

	_, err := vm.Call(context.Background(), "fail")
	var perr *eval.PanicError
	r.True(errors.As(err, &perr))
	r.Equal(eval.PanicError{File: "a.src", Line: 3, Column: 9, From: 11, To: 12}, *perr)
}

func TestBitIntrinsics(t *testing.T) {
	cases := []struct {
		name string
		args int
		in   uint64
		want uint64
	}{
		{"llvm.ctpop.i32", 1, 0xF0F0, 8},
		{"llvm.ctlz.i32", 2, 1, 31},
		{"llvm.ctlz.i32", 2, 0, 32},
		{"llvm.cttz.i32", 2, 0x100, 8},
		{"llvm.bitreverse.i32", 1, 1, 0x80000000},
		{"llvm.bswap.i32", 1, 0x11223344, 0x44332211},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := require.New(t)
			mod := ir.NewModule()
			params := []*ir.Param{ir.NewParam("x", irtypes.I32)}
			if tc.args == 2 {
				params = append(params, ir.NewParam("poison", irtypes.I1))
			}
			intr := mod.NewFunc(tc.name, irtypes.I32, params...)
			x := ir.NewParam("x", irtypes.I32)
			f := mod.NewFunc("run", irtypes.I32, x)
			b := f.NewBlock("entry")
			if tc.args == 2 {
				b.NewRet(b.NewCall(intr, x, constant.NewBool(false)))
			} else {
				b.NewRet(b.NewCall(intr, x))
			}
			vm := newVM(t, mod)

			out, err := vm.Call(context.Background(), "run", eval.Bytes(tc.in, 4))
			r.NoError(err)
			r.Equal(tc.want, eval.Uint(out))
		})
	}
}

func TestMemset(t *testing.T) {
	r := require.New(t)
	mod := ir.NewModule()
	memset := mod.NewFunc("llvm.memset.p0i8.i64", irtypes.Void,
		ir.NewParam("p", irtypes.I8Ptr), ir.NewParam("v", irtypes.I8),
		ir.NewParam("n", irtypes.I64), ir.NewParam("volatile", irtypes.I1))
	f := mod.NewFunc("clear", irtypes.I64)
	b := f.NewBlock("entry")
	slot := b.NewAlloca(irtypes.I64)
	raw := b.NewBitCast(slot, irtypes.I8Ptr)
	b.NewCall(memset, raw, constant.NewInt(irtypes.I8, 0), constant.NewInt(irtypes.I64, 8), constant.NewBool(false))
	b.NewRet(b.NewLoad(irtypes.I64, slot))
	vm := newVM(t, mod)

	out, err := vm.Call(context.Background(), "clear")
	r.NoError(err)
	r.Equal(uint64(0), eval.Uint(out))
}

func TestHalfFloatRoundTrip(t *testing.T) {
	r := require.New(t)
	mod := ir.NewModule()
	x := ir.NewParam("x", irtypes.Float)
	f := mod.NewFunc("roundtrip", irtypes.Float, x)
	b := f.NewBlock("entry")
	h := b.NewFPTrunc(x, irtypes.Half)
	b.NewRet(b.NewFPExt(h, irtypes.Float))
	vm := newVM(t, mod)

	for _, v := range []float32{0, 1, -2.5, 65504, 0.5} {
		out, err := vm.Call(context.Background(), "roundtrip", eval.Bytes(uint64(math.Float32bits(v)), 4))
		r.NoError(err)
		r.Equal(v, eval.Float32(out))
	}
}
