package llvm

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	irtypes "github.com/llir/llvm/ir/types"

	"lowir/internal/types"
)

// MemZeroPtr clears the object addr points at. Aggregates are filled byte
// by byte so padding is zero too; scalars get a single zero store.
func (p *Proc) MemZeroPtr(addr Value) error {
	elem := p.m.Types.Elem(addr.Type)
	if elem == types.NoTypeID {
		return p.m.internalf("mem zero", tys(addr.Type), "not a typed pointer")
	}
	if !IsAggregate(p.m.Types, elem) {
		zero, err := p.Zero(elem)
		if err != nil {
			return err
		}
		p.cur.NewStore(zero.V, addr.V)
		p.clobber()
		return nil
	}
	size, err := p.m.Layout.SizeOf(elem)
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	return p.MemZero(addr, int64(size))
}

// MemZero emits memset(ptr, 0, size). Small constant sizes use the inline
// variant so the optimizer never turns them into a libc call.
func (p *Proc) MemZero(ptr Value, size int64) error {
	name := "memset"
	if size <= 4*int64(p.m.Layout.WordSize()) {
		name = "memset.inline"
	}
	word := p.m.wordType()
	fn, err := p.m.Intrinsic(name, irtypes.I8Ptr, word)
	if err != nil {
		return err
	}
	raw := p.bitcast(ptr.V, irtypes.I8Ptr)
	p.cur.NewCall(fn, raw, constant.NewInt(irtypes.I8, 0), constant.NewInt(word, size), constant.NewBool(false))
	p.clobber()
	return nil
}

// CopyValueToPtr stores v converted to t in a fresh local aligned to at
// least alignment bytes and returns its address.
func (p *Proc) CopyValueToPtr(v Value, t types.TypeID, alignment int) (Value, error) {
	local, err := p.Local(t, false)
	if err != nil {
		return Value{}, err
	}
	if a, ok := local.V.(*ir.InstAlloca); ok && alignment > 0 && ir.Align(alignment) > a.Align {
		a.Align = ir.Align(alignment)
	}
	conv, err := p.Conv(v, t)
	if err != nil {
		return Value{}, err
	}
	if err := p.Store(local, conv); err != nil {
		return Value{}, err
	}
	return local, nil
}
