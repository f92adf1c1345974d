package eval

import (
	"context"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

func (vm *VM) call(ctx context.Context, f *ir.Func, args [][]byte) ([]byte, error) {
	if len(args) != len(f.Params) {
		return nil, trapf(TrapBadCall, "%s takes %d arguments, got %d", f.Name(), len(f.Params), len(args))
	}
	if len(f.Blocks) == 0 {
		return vm.callExternal(ctx, f, args)
	}
	fr := newFrame(f, args)
	for {
		if err := vm.enter(fr); err != nil {
			return nil, err
		}
		for _, inst := range fr.Block.Insts {
			if _, ok := inst.(*ir.InstPhi); ok {
				continue
			}
			if err := vm.step(ctx, fr); err != nil {
				return nil, err
			}
			if err := vm.exec(ctx, fr, inst); err != nil {
				return nil, err
			}
		}
		next, ret, done, err := vm.terminate(fr)
		if err != nil {
			return nil, err
		}
		if done {
			return ret, nil
		}
		fr.Prev, fr.Block = fr.Block, next
	}
}

func (vm *VM) step(ctx context.Context, fr *Frame) error {
	vm.steps++
	if vm.StepLimit > 0 && vm.steps > vm.StepLimit {
		return fr.trap(trapf(TrapStepLimit, "more than %d steps", vm.StepLimit))
	}
	if vm.steps%1024 == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// enter resolves the phis of the current block. All incoming values are
// read before any phi is assigned.
func (vm *VM) enter(fr *Frame) error {
	type pending struct {
		phi *ir.InstPhi
		val []byte
	}
	var phis []pending
	for _, inst := range fr.Block.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			continue
		}
		var found bool
		for _, inc := range phi.Incs {
			if fr.Prev == nil || any(inc.Pred) != any(fr.Prev) {
				continue
			}
			v, err := vm.operand(fr, inc.X)
			if err != nil {
				return err
			}
			phis = append(phis, pending{phi: phi, val: v})
			found = true
			break
		}
		if !found {
			return fr.trap(trapf(TrapBadCall, "phi %s has no incoming value for this predecessor", phi.Ident()))
		}
	}
	for _, p := range phis {
		fr.vals[p.phi] = p.val
	}
	return nil
}

func (vm *VM) terminate(fr *Frame) (next *ir.Block, ret []byte, done bool, err error) {
	switch term := fr.Block.Term.(type) {
	case *ir.TermRet:
		if term.X == nil {
			return nil, nil, true, nil
		}
		v, err := vm.operand(fr, term.X)
		return nil, v, true, err

	case *ir.TermBr:
		b, ok := any(term.Target).(*ir.Block)
		if !ok {
			return nil, nil, false, fr.trap(trapf(TrapUnsupported, "branch to %v", term.Target))
		}
		return b, nil, false, nil

	case *ir.TermCondBr:
		c, err := vm.operand(fr, term.Cond)
		if err != nil {
			return nil, nil, false, err
		}
		target := term.TargetFalse
		if Bool(c) {
			target = term.TargetTrue
		}
		b, ok := any(target).(*ir.Block)
		if !ok {
			return nil, nil, false, fr.trap(trapf(TrapUnsupported, "branch to %v", target))
		}
		return b, nil, false, nil

	case *ir.TermUnreachable:
		return nil, nil, false, fr.trap(trapf(TrapUnreachable, "unreachable executed"))

	case nil:
		return nil, nil, false, fr.trap(trapf(TrapUnreachable, "block has no terminator"))

	default:
		return nil, nil, false, fr.trap(trapf(TrapUnsupported, "terminator %T", term))
	}
}

func (vm *VM) operand(fr *Frame, v value.Value) ([]byte, error) {
	if c, ok := v.(constant.Constant); ok {
		b, err := vm.constant(c)
		if err != nil {
			return nil, fr.trapErr(err)
		}
		return b, nil
	}
	b, ok := fr.vals[v]
	if !ok {
		return nil, fr.trap(trapf(TrapUnsupported, "value %s used before definition", v.Ident()))
	}
	return b, nil
}

func (fr *Frame) trapErr(err error) error {
	if t, ok := err.(*TrapError); ok {
		return fr.trap(t)
	}
	return err
}

func (vm *VM) operands(fr *Frame, vs ...value.Value) ([][]byte, error) {
	out := make([][]byte, len(vs))
	for i, v := range vs {
		b, err := vm.operand(fr, v)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func (vm *VM) exec(ctx context.Context, fr *Frame, inst ir.Instruction) error {
	res, err := vm.eval(ctx, fr, inst)
	if err != nil {
		return fr.trapErr(err)
	}
	if v, ok := inst.(value.Value); ok && res != nil {
		fr.vals[v] = res
	}
	return nil
}

func (vm *VM) eval(ctx context.Context, fr *Frame, inst ir.Instruction) ([]byte, error) {
	switch inst := inst.(type) {
	case *ir.InstAlloca:
		l, err := vm.storage(inst.ElemType)
		if err != nil {
			return nil, err
		}
		n := 1
		if inst.NElems != nil {
			c, err := vm.operand(fr, inst.NElems)
			if err != nil {
				return nil, err
			}
			n = int(Int(c))
		}
		align := max(int(inst.Align), l.Align)
		return vm.addr(vm.mem.alloc(l.Size*n, align, poison)), nil

	case *ir.InstLoad:
		src, err := vm.operand(fr, inst.Src)
		if err != nil {
			return nil, err
		}
		n, err := vm.size(inst.ElemType)
		if err != nil {
			return nil, err
		}
		b, trap := vm.mem.read(Uint(src), n)
		if trap != nil {
			return nil, trap
		}
		return b, nil

	case *ir.InstStore:
		ops, err := vm.operands(fr, inst.Src, inst.Dst)
		if err != nil {
			return nil, err
		}
		if trap := vm.mem.write(Uint(ops[1]), ops[0]); trap != nil {
			return nil, trap
		}
		return nil, nil

	case *ir.InstGetElementPtr:
		ops, err := vm.operands(fr, append([]value.Value{inst.Src}, inst.Indices...)...)
		if err != nil {
			return nil, err
		}
		idx := make([]int64, len(inst.Indices))
		for i := range idx {
			idx[i] = Int(ops[i+1])
		}
		a, err := vm.gep(inst.ElemType, Uint(ops[0]), idx)
		if err != nil {
			return nil, err
		}
		return vm.addr(a), nil

	case *ir.InstExtractValue:
		x, err := vm.operand(fr, inst.X)
		if err != nil {
			return nil, err
		}
		off, n, err := vm.aggregateOffset(inst.X.Type(), inst.Indices)
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		copy(out, x[off:off+n])
		return out, nil

	case *ir.InstInsertValue:
		ops, err := vm.operands(fr, inst.X, inst.Elem)
		if err != nil {
			return nil, err
		}
		off, n, err := vm.aggregateOffset(inst.X.Type(), inst.Indices)
		if err != nil {
			return nil, err
		}
		out := append([]byte(nil), ops[0]...)
		copy(out[off:off+n], ops[1])
		return out, nil

	case *ir.InstICmp:
		ops, err := vm.operands(fr, inst.X, inst.Y)
		if err != nil {
			return nil, err
		}
		bits := vm.bitsOf(inst.X.Type())
		return boolBytes(icmp(inst.Pred, mask(Uint(ops[0]), bits), mask(Uint(ops[1]), bits), bits)), nil

	case *ir.InstFCmp:
		ops, err := vm.operands(fr, inst.X, inst.Y)
		if err != nil {
			return nil, err
		}
		t := inst.X.Type()
		return boolBytes(fcmp(inst.Pred, decodeFloat(t, ops[0]), decodeFloat(t, ops[1]))), nil

	case *ir.InstSelect:
		ops, err := vm.operands(fr, inst.Cond, inst.ValueTrue, inst.ValueFalse)
		if err != nil {
			return nil, err
		}
		if Bool(ops[0]) {
			return ops[1], nil
		}
		return ops[2], nil

	case *ir.InstCall:
		return vm.evalCall(ctx, fr, inst)

	case *ir.InstTrunc:
		return vm.intCast(fr, inst.From, inst.To, false)
	case *ir.InstZExt:
		return vm.intCast(fr, inst.From, inst.To, false)
	case *ir.InstSExt:
		return vm.intCast(fr, inst.From, inst.To, true)
	case *ir.InstPtrToInt:
		return vm.intCast(fr, inst.From, inst.To, false)
	case *ir.InstIntToPtr:
		return vm.intCast(fr, inst.From, inst.To, false)
	case *ir.InstBitCast:
		x, err := vm.operand(fr, inst.From)
		if err != nil {
			return nil, err
		}
		from, to := inst.From.Type(), inst.To
		if !sameWidth(from, to) {
			return nil, trapf(TrapUnsupported, "bitcast from %s to %s changes width", from, to)
		}
		return vm.resized(x, to)

	case *ir.InstFPExt:
		return vm.floatCast(fr, inst.From, inst.To)
	case *ir.InstFPTrunc:
		return vm.floatCast(fr, inst.From, inst.To)
	case *ir.InstSIToFP:
		x, err := vm.operand(fr, inst.From)
		if err != nil {
			return nil, err
		}
		v := signExtend(Uint(x), vm.bitsOf(inst.From.Type()))
		return vm.encodeFloat(inst.To, float64(v))
	case *ir.InstUIToFP:
		x, err := vm.operand(fr, inst.From)
		if err != nil {
			return nil, err
		}
		v := mask(Uint(x), vm.bitsOf(inst.From.Type()))
		return vm.encodeFloat(inst.To, float64(v))
	case *ir.InstFPToSI:
		x, err := vm.operand(fr, inst.From)
		if err != nil {
			return nil, err
		}
		return vm.encodeInt(inst.To, uint64(int64(decodeFloat(inst.From.Type(), x)))) //nolint:gosec // two's complement
	case *ir.InstFPToUI:
		x, err := vm.operand(fr, inst.From)
		if err != nil {
			return nil, err
		}
		return vm.encodeInt(inst.To, uint64(decodeFloat(inst.From.Type(), x)))

	case *ir.InstAdd:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, _ uint64) (uint64, bool) { return x + y, true })
	case *ir.InstSub:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, _ uint64) (uint64, bool) { return x - y, true })
	case *ir.InstMul:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, _ uint64) (uint64, bool) { return x * y, true })
	case *ir.InstAnd:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, _ uint64) (uint64, bool) { return x & y, true })
	case *ir.InstOr:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, _ uint64) (uint64, bool) { return x | y, true })
	case *ir.InstXor:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, _ uint64) (uint64, bool) { return x ^ y, true })
	case *ir.InstShl:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, _ uint64) (uint64, bool) { return x << y, y < 64 })
	case *ir.InstLShr:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, _ uint64) (uint64, bool) { return x >> y, y < 64 })
	case *ir.InstAShr:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, bits uint64) (uint64, bool) {
			return uint64(signExtend(x, bits) >> min(y, 63)), true //nolint:gosec // two's complement
		})
	case *ir.InstUDiv:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, _ uint64) (uint64, bool) {
			if y == 0 {
				return 0, false
			}
			return x / y, true
		})
	case *ir.InstURem:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, _ uint64) (uint64, bool) {
			if y == 0 {
				return 0, false
			}
			return x % y, true
		})
	case *ir.InstSDiv:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, bits uint64) (uint64, bool) {
			sx, sy := signExtend(x, bits), signExtend(y, bits)
			if sy == 0 {
				return 0, false
			}
			return uint64(sx / sy), true //nolint:gosec // two's complement
		})
	case *ir.InstSRem:
		return vm.intBinary(fr, inst.X, inst.Y, func(x, y uint64, bits uint64) (uint64, bool) {
			sx, sy := signExtend(x, bits), signExtend(y, bits)
			if sy == 0 {
				return 0, false
			}
			return uint64(sx % sy), true //nolint:gosec // two's complement
		})

	case *ir.InstFAdd:
		return vm.floatBinary(fr, inst.X, inst.Y, func(x, y float64) float64 { return x + y })
	case *ir.InstFSub:
		return vm.floatBinary(fr, inst.X, inst.Y, func(x, y float64) float64 { return x - y })
	case *ir.InstFMul:
		return vm.floatBinary(fr, inst.X, inst.Y, func(x, y float64) float64 { return x * y })
	case *ir.InstFDiv:
		return vm.floatBinary(fr, inst.X, inst.Y, func(x, y float64) float64 { return x / y })
	}
	return nil, trapf(TrapUnsupported, "instruction %T", inst)
}

func (vm *VM) addr(a uint64) []byte {
	return Bytes(a, vm.WordSize())
}

func boolBytes(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}

// bitsOf is the value width of an integer or pointer type.
func (vm *VM) bitsOf(t irtypes.Type) uint64 {
	switch t := t.(type) {
	case *irtypes.IntType:
		return t.BitSize
	case *irtypes.PointerType:
		return vm.Layout.Target.WordBits()
	}
	return 64
}

func (vm *VM) encodeInt(t irtypes.Type, x uint64) ([]byte, error) {
	n, err := vm.size(t)
	if err != nil {
		return nil, err
	}
	return Bytes(mask(x, vm.bitsOf(t)), n), nil
}

// resized reinterprets x as t, truncating or zero-padding to its storage.
func (vm *VM) resized(x []byte, t irtypes.Type) ([]byte, error) {
	n, err := vm.size(t)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, x)
	return out, nil
}

func (vm *VM) intCast(fr *Frame, from value.Value, to irtypes.Type, signed bool) ([]byte, error) {
	x, err := vm.operand(fr, from)
	if err != nil {
		return nil, err
	}
	bits := vm.bitsOf(from.Type())
	v := mask(Uint(x), bits)
	if signed {
		v = uint64(signExtend(v, bits)) //nolint:gosec // two's complement
	}
	return vm.encodeInt(to, v)
}

func (vm *VM) intBinary(fr *Frame, xv, yv value.Value, op func(x, y, bits uint64) (uint64, bool)) ([]byte, error) {
	ops, err := vm.operands(fr, xv, yv)
	if err != nil {
		return nil, err
	}
	t := xv.Type()
	bits := vm.bitsOf(t)
	r, ok := op(mask(Uint(ops[0]), bits), mask(Uint(ops[1]), bits), bits)
	if !ok {
		return nil, trapf(TrapUnsupported, "undefined integer operation")
	}
	return vm.encodeInt(t, r)
}

func (vm *VM) floatBinary(fr *Frame, xv, yv value.Value, op func(x, y float64) float64) ([]byte, error) {
	ops, err := vm.operands(fr, xv, yv)
	if err != nil {
		return nil, err
	}
	t := xv.Type()
	return vm.encodeFloat(t, op(decodeFloat(t, ops[0]), decodeFloat(t, ops[1])))
}

func (vm *VM) floatCast(fr *Frame, from value.Value, to irtypes.Type) ([]byte, error) {
	x, err := vm.operand(fr, from)
	if err != nil {
		return nil, err
	}
	return vm.encodeFloat(to, decodeFloat(from.Type(), x))
}

func decodeFloat(t irtypes.Type, b []byte) float64 {
	ft, ok := t.(*irtypes.FloatType)
	if !ok {
		return math.NaN()
	}
	switch ft.Kind {
	case irtypes.FloatKindHalf:
		return float64(halfToFloat32(uint16(Uint(b)))) //nolint:gosec // 2-byte value
	case irtypes.FloatKindFloat:
		return float64(Float32(b))
	default:
		return Float64(b)
	}
}

func (vm *VM) encodeFloat(t irtypes.Type, f float64) ([]byte, error) {
	ft, ok := t.(*irtypes.FloatType)
	if !ok {
		return nil, trapf(TrapUnsupported, "float operation on %s", t)
	}
	switch ft.Kind {
	case irtypes.FloatKindHalf:
		return Bytes(uint64(float32ToHalf(float32(f))), 2), nil
	case irtypes.FloatKindFloat:
		return Bytes(uint64(math.Float32bits(float32(f))), 4), nil
	case irtypes.FloatKindDouble:
		return Bytes(math.Float64bits(f), 8), nil
	}
	return nil, trapf(TrapUnsupported, "float kind %s", t)
}

func icmp(pred enum.IPred, x, y, bits uint64) bool {
	sx, sy := signExtend(x, bits), signExtend(y, bits)
	switch pred {
	case enum.IPredEQ:
		return x == y
	case enum.IPredNE:
		return x != y
	case enum.IPredULT:
		return x < y
	case enum.IPredULE:
		return x <= y
	case enum.IPredUGT:
		return x > y
	case enum.IPredUGE:
		return x >= y
	case enum.IPredSLT:
		return sx < sy
	case enum.IPredSLE:
		return sx <= sy
	case enum.IPredSGT:
		return sx > sy
	case enum.IPredSGE:
		return sx >= sy
	}
	return false
}

func fcmp(pred enum.FPred, x, y float64) bool {
	unordered := math.IsNaN(x) || math.IsNaN(y)
	switch pred {
	case enum.FPredFalse:
		return false
	case enum.FPredTrue:
		return true
	case enum.FPredOEQ:
		return !unordered && x == y
	case enum.FPredONE:
		return !unordered && x != y
	case enum.FPredOLT:
		return !unordered && x < y
	case enum.FPredOLE:
		return !unordered && x <= y
	case enum.FPredOGT:
		return !unordered && x > y
	case enum.FPredOGE:
		return !unordered && x >= y
	case enum.FPredORD:
		return !unordered
	case enum.FPredUNO:
		return unordered
	case enum.FPredUEQ:
		return unordered || x == y
	case enum.FPredUNE:
		return unordered || x != y
	case enum.FPredULT:
		return unordered || x < y
	case enum.FPredULE:
		return unordered || x <= y
	case enum.FPredUGT:
		return unordered || x > y
	case enum.FPredUGE:
		return unordered || x >= y
	}
	return false
}

// sameWidth reports whether a bitcast between from and to keeps its bit
// width. Pointers only cast to pointers, and scalars must match bit for bit.
func sameWidth(from, to irtypes.Type) bool {
	_, fp := from.(*irtypes.PointerType)
	_, tp := to.(*irtypes.PointerType)
	if fp || tp {
		return fp && tp
	}
	fb, fok := scalarBits(from)
	tb, tok := scalarBits(to)
	if !fok || !tok {
		return irtypes.Equal(from, to)
	}
	return fb == tb
}

func scalarBits(t irtypes.Type) (uint64, bool) {
	switch t := t.(type) {
	case *irtypes.IntType:
		return t.BitSize, true
	case *irtypes.FloatType:
		switch t.Kind {
		case irtypes.FloatKindHalf:
			return 16, true
		case irtypes.FloatKindFloat:
			return 32, true
		case irtypes.FloatKindDouble:
			return 64, true
		}
	case *irtypes.VectorType:
		if b, ok := scalarBits(t.ElemType); ok {
			return b * t.Len, true
		}
	}
	return 0, false
}
