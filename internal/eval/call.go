package eval

import (
	"context"
	"math/bits"
	"strings"

	"github.com/llir/llvm/ir"
	irtypes "github.com/llir/llvm/ir/types"
)

func (vm *VM) evalCall(ctx context.Context, fr *Frame, inst *ir.InstCall) ([]byte, error) {
	args, err := vm.operands(fr, inst.Args...)
	if err != nil {
		return nil, err
	}
	f, ok := inst.Callee.(*ir.Func)
	if !ok {
		target, err := vm.operand(fr, inst.Callee)
		if err != nil {
			return nil, err
		}
		if f, ok = vm.funcs[Uint(target)]; !ok {
			return nil, trapf(TrapBadCall, "indirect call to %#x", Uint(target))
		}
	}
	return vm.call(ctx, f, args)
}

func (vm *VM) callExternal(ctx context.Context, f *ir.Func, args [][]byte) ([]byte, error) {
	name := f.Name()
	if strings.HasPrefix(name, "llvm.") {
		return vm.intrinsic(f, args)
	}
	ext, ok := vm.Externs[name]
	if !ok {
		return nil, trapf(TrapBadCall, "no body or extern for %s", name)
	}
	vm.Logger.DebugContext(ctx, "extern call", "func", name, "args", len(args))
	return ext(vm, args)
}

// intrinsic interprets the target intrinsics the lowering declares.
func (vm *VM) intrinsic(f *ir.Func, args [][]byte) ([]byte, error) {
	name := strings.TrimPrefix(f.Name(), "llvm.")
	base, _, _ := strings.Cut(name, ".")
	if strings.HasPrefix(name, "memset.") {
		base = "memset"
	}
	params := f.Sig.Params

	if base == "memset" {
		if len(args) != 4 {
			return nil, trapf(TrapBadCall, "%s takes 4 arguments", f.Name())
		}
		n := Uint(args[2])
		if n == 0 {
			return nil, nil
		}
		if trap := vm.mem.fill(Uint(args[0]), int(n), args[1][0]); trap != nil { //nolint:gosec // sizes are bounded by memory
			return nil, trap
		}
		return nil, nil
	}

	var op func(x, width uint64) uint64
	switch base {
	case "ctpop":
		op = func(x, _ uint64) uint64 { return uint64(bits.OnesCount64(x)) }
	case "ctlz":
		op = func(x, w uint64) uint64 {
			if x == 0 {
				return w
			}
			return uint64(bits.LeadingZeros64(x)) - (64 - w)
		}
	case "cttz":
		op = func(x, w uint64) uint64 {
			if x == 0 {
				return w
			}
			return uint64(bits.TrailingZeros64(x))
		}
	case "bitreverse":
		op = func(x, w uint64) uint64 { return bits.Reverse64(x) >> (64 - w) }
	case "bswap":
		op = func(x, w uint64) uint64 { return bits.ReverseBytes64(x) >> (64 - w) }
	default:
		return nil, trapf(TrapUnsupported, "intrinsic %s", f.Name())
	}
	if len(args) == 0 || len(params) == 0 {
		return nil, trapf(TrapBadCall, "%s without operand", f.Name())
	}
	return vm.lanewise(params[0], args[0], op)
}

// lanewise applies op to every integer lane of x.
func (vm *VM) lanewise(t irtypes.Type, x []byte, op func(x, width uint64) uint64) ([]byte, error) {
	lanes := uint64(1)
	elem := t
	if vt, ok := t.(*irtypes.VectorType); ok {
		lanes, elem = vt.Len, vt.ElemType
	}
	it, ok := elem.(*irtypes.IntType)
	if !ok || it.BitSize > 64 {
		return nil, trapf(TrapUnsupported, "bit intrinsic on %s", t)
	}
	stride, err := vm.size(it)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(x))
	for i := range int(lanes) { //nolint:gosec // vector lengths are small
		lane := x[i*stride : (i+1)*stride]
		putUint(out[i*stride:(i+1)*stride], mask(op(mask(Uint(lane), it.BitSize), it.BitSize), it.BitSize))
	}
	return out, nil
}
