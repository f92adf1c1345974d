package llvm

import (
	"github.com/llir/llvm/ir/constant"

	"lowir/internal/types"
)

// Select picks x when cond holds and y otherwise, without branching.
func (p *Proc) Select(cond, x, y Value) (Value, error) {
	cond, err := p.Conv(cond, p.m.Types.Builtins().Bool)
	if err != nil {
		return Value{}, err
	}
	if y.Type != x.Type {
		if y, err = p.Conv(y, x.Type); err != nil {
			return Value{}, err
		}
	}
	if c, ok := cond.V.(*constant.Int); ok {
		if c.X.Sign() != 0 {
			return x, nil
		}
		return y, nil
	}
	return Value{V: p.cur.NewSelect(cond.V, x.V, y.V), Type: x.Type}, nil
}

// Min converts both operands to t and selects the smaller.
func (p *Proc) Min(t types.TypeID, x, y Value) (Value, error) {
	return p.pickBy(CmpLt, t, x, y)
}

// Max converts both operands to t and selects the larger.
func (p *Proc) Max(t types.TypeID, x, y Value) (Value, error) {
	return p.pickBy(CmpGt, t, x, y)
}

func (p *Proc) pickBy(op CmpOp, t types.TypeID, x, y Value) (Value, error) {
	x, err := p.Conv(x, t)
	if err != nil {
		return Value{}, err
	}
	if y, err = p.Conv(y, t); err != nil {
		return Value{}, err
	}
	cond, err := p.Cmp(op, x, y)
	if err != nil {
		return Value{}, err
	}
	return p.Select(cond, x, y)
}

// Clamp is min(max(x, lo), hi).
func (p *Proc) Clamp(t types.TypeID, x, lo, hi Value) (Value, error) {
	z, err := p.Max(t, x, lo)
	if err != nil {
		return Value{}, err
	}
	return p.Min(t, z, hi)
}
