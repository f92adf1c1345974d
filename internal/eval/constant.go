package eval

import (
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	irtypes "github.com/llir/llvm/ir/types"
)

// constant encodes c. Globals are materialised on first use.
func (vm *VM) constant(c constant.Constant) ([]byte, error) {
	switch c := c.(type) {
	case *ir.Global:
		a, err := vm.global(c)
		if err != nil {
			return nil, err
		}
		return vm.addr(a), nil

	case *ir.Func:
		return vm.addr(vm.funcAddress(c)), nil

	case *constant.Int:
		var x uint64
		if c.X.Sign() < 0 {
			x = uint64(c.X.Int64()) //nolint:gosec // two's complement
		} else {
			x = c.X.Uint64()
		}
		return vm.encodeInt(c.Typ, x)

	case *constant.Float:
		if c.NaN {
			return vm.encodeFloat(c.Typ, math.NaN())
		}
		f, _ := c.X.Float64()
		return vm.encodeFloat(c.Typ, f)

	case *constant.Null:
		return vm.addr(0), nil

	case *constant.ZeroInitializer:
		return vm.zeroed(c.Typ)

	case *constant.Undef:
		return vm.zeroed(c.Typ)

	case *constant.CharArray:
		out, err := vm.zeroed(c.Typ)
		if err != nil {
			return nil, err
		}
		copy(out, c.X)
		return out, nil

	case *constant.Struct:
		out, err := vm.zeroed(c.Typ)
		if err != nil {
			return nil, err
		}
		for i, f := range c.Fields {
			off, err := vm.Layout.StorageFieldOffset(c.Typ, i)
			if err != nil {
				return nil, err
			}
			if err := vm.place(out, off, f); err != nil {
				return nil, err
			}
		}
		return out, nil

	case *constant.Array:
		return vm.elements(c.Typ, c.Typ.ElemType, c.Elems)

	case *constant.Vector:
		vt, ok := c.Type().(*irtypes.VectorType)
		if !ok {
			return nil, trapf(TrapUnsupported, "vector constant of %s", c.Type())
		}
		return vm.elements(vt, vt.ElemType, c.Elems)

	case *constant.ExprGetElementPtr:
		src, err := vm.constant(c.Src)
		if err != nil {
			return nil, err
		}
		idx := make([]int64, len(c.Indices))
		for i, ic := range c.Indices {
			b, err := vm.constant(ic)
			if err != nil {
				return nil, err
			}
			idx[i] = Int(b)
		}
		a, err := vm.gep(c.ElemType, Uint(src), idx)
		if err != nil {
			return nil, err
		}
		return vm.addr(a), nil

	case *constant.ExprBitCast:
		x, err := vm.constant(c.From)
		if err != nil {
			return nil, err
		}
		if !sameWidth(c.From.Type(), c.To) {
			return nil, trapf(TrapUnsupported, "bitcast from %s to %s changes width", c.From.Type(), c.To)
		}
		return vm.resized(x, c.To)

	case *constant.ExprPtrToInt:
		x, err := vm.constant(c.From)
		if err != nil {
			return nil, err
		}
		return vm.encodeInt(c.To, Uint(x))

	case *constant.ExprIntToPtr:
		x, err := vm.constant(c.From)
		if err != nil {
			return nil, err
		}
		return vm.encodeInt(c.To, mask(Uint(x), vm.bitsOf(c.From.Type())))
	}
	return nil, trapf(TrapUnsupported, "constant %T", c)
}

func (vm *VM) zeroed(t irtypes.Type) ([]byte, error) {
	n, err := vm.size(t)
	if err != nil {
		return nil, err
	}
	return make([]byte, n), nil
}

func (vm *VM) place(out []byte, off int, c constant.Constant) error {
	b, err := vm.constant(c)
	if err != nil {
		return err
	}
	copy(out[off:], b)
	return nil
}

func (vm *VM) elements(t, elem irtypes.Type, elems []constant.Constant) ([]byte, error) {
	out, err := vm.zeroed(t)
	if err != nil {
		return nil, err
	}
	stride, err := vm.size(elem)
	if err != nil {
		return nil, err
	}
	for i, e := range elems {
		if err := vm.place(out, i*stride, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// global returns the address of g, allocating and initialising it once.
// The address is recorded before the initialiser runs so self references
// resolve.
func (vm *VM) global(g *ir.Global) (uint64, error) {
	if a, ok := vm.globals[g]; ok {
		return a, nil
	}
	l, err := vm.storage(g.ContentType)
	if err != nil {
		return 0, err
	}
	a := vm.mem.alloc(l.Size, l.Align, 0)
	vm.globals[g] = a
	if g.Init == nil {
		return a, nil
	}
	init, err := vm.constant(g.Init)
	if err != nil {
		return 0, err
	}
	if trap := vm.mem.write(a, init); trap != nil {
		return 0, trap
	}
	return a, nil
}

// funcAddress gives every routine a distinct address so routine values
// can be compared and called indirectly.
func (vm *VM) funcAddress(f *ir.Func) uint64 {
	if a, ok := vm.funcAddr[f]; ok {
		return a
	}
	a := vm.mem.alloc(1, 1, 0)
	vm.funcAddr[f] = a
	vm.funcs[a] = f
	return a
}
