package llvm

import (
	"github.com/llir/llvm/ir"

	"lowir/internal/types"
)

// Thunk emits a sub-expression at the current insertion point. Fallback
// expressions are passed as thunks so they are built only inside the block
// that needs them.
type Thunk func() (Value, error)

// splitTry separates a fallible value into its useful part and its
// indicator. The indicator is the last tuple element; two or more leading
// elements are packed into one tuple value. A lone value is its own
// indicator and has no useful part.
func (p *Proc) splitTry(v Value) (lhs, rhs Value, err error) {
	in := p.m.Types
	if in.KindOf(v.Type) != types.KindTuple {
		return Value{}, v, nil
	}
	elems := in.TupleElems(in.Base(v.Type))
	n := len(elems) - 1
	switch {
	case n < 0:
		return Value{}, Value{}, p.m.internalf("try", tys(v.Type), "empty tuple")
	case n == 0:
		return Value{}, Value{V: v.V, Type: elems[0]}, nil
	case n == 1:
		if lhs, err = p.StructEV(v, 0); err != nil {
			return Value{}, Value{}, err
		}
	default:
		packed, err := p.Local(in.Tuple(elems[:n]...), false)
		if err != nil {
			return Value{}, Value{}, err
		}
		for i := range n {
			idx := int32(i) //nolint:gosec // tuple arity is small
			field, err := p.StructEP(packed, idx)
			if err != nil {
				return Value{}, Value{}, err
			}
			elem, err := p.StructEV(v, idx)
			if err != nil {
				return Value{}, Value{}, err
			}
			if err := p.Store(field, elem); err != nil {
				return Value{}, Value{}, err
			}
		}
		if lhs, err = p.Load(packed); err != nil {
			return Value{}, Value{}, err
		}
	}
	rhs, err = p.StructEV(v, int32(n)) //nolint:gosec // tuple arity is small
	return lhs, rhs, err
}

// hasValue turns an indicator into the success condition. A bool is used
// as is. Any other indicator must admit nil, and nil means success: an
// error value of nil or an error enumeration of zero.
func (p *Proc) hasValue(rhs Value) (Value, error) {
	in := p.m.Types
	if in.IsBoolean(rhs.Type) {
		return rhs, nil
	}
	if !in.HasNil(rhs.Type) && !in.IsInteger(rhs.Type) {
		return Value{}, p.m.internalf("try", tys(rhs.Type), "indicator has no nil value")
	}
	return p.CompareNil(CmpEq, rhs)
}

// OrElse lowers `expr or_else fallback`: the useful part of expr when it
// succeeded, otherwise fallback, both converted to resultType and merged by
// a phi.
func (p *Proc) OrElse(expr, fallback Thunk, resultType types.TypeID) (Value, error) {
	v, err := expr()
	if err != nil {
		return Value{}, err
	}
	lhs, rhs, err := p.splitTry(v)
	if err != nil {
		return Value{}, err
	}
	cond, err := p.hasValue(rhs)
	if err != nil {
		return Value{}, err
	}

	then := p.NewBlock("or_else.then")
	done := p.NewBlock("or_else.done")
	els := p.NewBlock("or_else.else")
	p.CondBr(cond, then, els)

	p.StartBlock(then)
	thenVal, err := p.Conv(lhs, resultType)
	if err != nil {
		return Value{}, err
	}
	p.Br(done)

	p.StartBlock(els)
	fb, err := fallback()
	if err != nil {
		return Value{}, err
	}
	elseVal, err := p.Conv(fb, resultType)
	if err != nil {
		return Value{}, err
	}
	p.Br(done)

	p.StartBlock(done)
	preds := p.Preds(done)
	if len(preds) != 2 {
		return Value{}, p.m.internalf("or_else", tys(resultType), "merge block has %d incoming edges", len(preds))
	}
	phi := p.cur.NewPhi(ir.NewIncoming(thenVal.V, preds[0]), ir.NewIncoming(elseVal.V, preds[1]))
	return Value{V: phi, Type: resultType}, nil
}

// OrReturn lowers `expr or_return`. On failure the indicator is converted
// to the routine's last result and returned: through the named result slot
// followed by a bare return, or as the sole result. On success the useful
// part is converted to resultType; NoTypeID yields no value.
func (p *Proc) OrReturn(expr Thunk, resultType types.TypeID) (Value, error) {
	v, err := expr()
	if err != nil {
		return Value{}, err
	}
	lhs, rhs, err := p.splitTry(v)
	if err != nil {
		return Value{}, err
	}
	cond, err := p.hasValue(rhs)
	if err != nil {
		return Value{}, err
	}

	ret := p.NewBlock("or_return.return")
	cont := p.NewBlock("or_return.continue")
	p.CondBr(cond, cont, ret)

	p.StartBlock(ret)
	if err := p.returnIndicator(rhs); err != nil {
		return Value{}, err
	}

	p.StartBlock(cont)
	if resultType == types.NoTypeID {
		return Value{}, nil
	}
	return p.Conv(lhs, resultType)
}

func (p *Proc) returnIndicator(rhs Value) error {
	results := p.Sig.Results
	if len(results) == 0 {
		return p.m.internalf("or_return", tys(rhs.Type), "routine has no results")
	}
	last := results[len(results)-1]
	ind, err := p.Conv(rhs, last.Type)
	if err != nil {
		return err
	}
	if p.Sig.NamedResults() {
		slot, _ := p.ResultSlot(len(results) - 1)
		if err := p.Store(slot, ind); err != nil {
			return err
		}
		return p.ReturnNamed()
	}
	if len(results) != 1 {
		return p.m.internalf("or_return", tys(rhs.Type), "unnamed results must be exactly one, have %d", len(results))
	}
	return p.Return(ind)
}
