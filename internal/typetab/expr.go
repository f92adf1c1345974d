package typetab

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"lowir/internal/types"
)

// ParseExpr resolves a type expression against in. Names that are not basic
// types are looked up through named. The grammar mirrors Interner.TypeString:
//
//	^T  []T  [N]T  [dynamic]T  #simd[N]T  map[K]V  #relative(I) ^T
//	bit_set[N; U]  (A, B)  proc(A, B) -> (R)
func ParseExpr(in *types.Interner, expr string, named func(string) (types.TypeID, bool)) (types.TypeID, error) {
	p := &exprParser{in: in, src: expr, named: named}
	id, err := p.parse()
	if err != nil {
		return types.NoTypeID, fmt.Errorf("type %q: %w", expr, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return types.NoTypeID, fmt.Errorf("type %q: trailing %q", expr, p.src[p.pos:])
	}
	return id, nil
}

type exprParser struct {
	in    *types.Interner
	src   string
	pos   int
	named func(string) (types.TypeID, bool)
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *exprParser) expect(tok string) error {
	if !p.accept(tok) {
		return fmt.Errorf("expected %q at offset %d", tok, p.pos)
	}
	return nil
}

func (p *exprParser) word() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if r != '_' && r != '.' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *exprParser) count() (uint64, error) {
	w := p.word()
	n, err := strconv.ParseUint(w, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad length %q", w)
	}
	return n, nil
}

func (p *exprParser) list(close string) ([]types.TypeID, error) {
	var ids []types.TypeID
	if p.accept(close) {
		return ids, nil
	}
	for {
		id, err := p.parse()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		if p.accept(close) {
			return ids, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

// elem parses the element type of a constructor and applies mk to it.
func (p *exprParser) elem(mk func(types.TypeID) types.TypeID) (types.TypeID, error) {
	e, err := p.parse()
	if err != nil {
		return types.NoTypeID, err
	}
	return mk(e), nil
}

func (p *exprParser) parse() (types.TypeID, error) {
	in := p.in
	switch {
	case p.accept("^"):
		return p.elem(in.Pointer)

	case p.accept("[]"):
		return p.elem(in.Slice)

	case p.accept("[dynamic]"):
		return p.elem(in.DynamicArray)

	case p.accept("["):
		n, err := p.count()
		if err != nil {
			return types.NoTypeID, err
		}
		if err := p.expect("]"); err != nil {
			return types.NoTypeID, err
		}
		return p.elem(func(e types.TypeID) types.TypeID { return in.Array(e, n) })

	case p.accept("#simd["):
		n, err := p.count()
		if err != nil {
			return types.NoTypeID, err
		}
		if err := p.expect("]"); err != nil {
			return types.NoTypeID, err
		}
		return p.elem(func(e types.TypeID) types.TypeID { return in.SimdVector(e, n) })

	case p.accept("#relative("):
		base, err := p.parse()
		if err != nil {
			return types.NoTypeID, err
		}
		if err := p.expect(")"); err != nil {
			return types.NoTypeID, err
		}
		target, err := p.parse()
		if err != nil {
			return types.NoTypeID, err
		}
		switch in.KindOf(target) {
		case types.KindPointer:
			return in.RelativePointer(target, base), nil
		case types.KindSlice:
			return in.RelativeSlice(target, base), nil
		}
		return types.NoTypeID, fmt.Errorf("#relative applies to pointers and slices, not %s", in.TypeString(target))

	case p.accept("("):
		elems, err := p.list(")")
		if err != nil {
			return types.NoTypeID, err
		}
		return in.Tuple(elems...), nil
	}

	name := p.word()
	switch name {
	case "":
		return types.NoTypeID, fmt.Errorf("expected a type at offset %d", p.pos)

	case "map":
		if err := p.expect("["); err != nil {
			return types.NoTypeID, err
		}
		key, err := p.parse()
		if err != nil {
			return types.NoTypeID, err
		}
		if err := p.expect("]"); err != nil {
			return types.NoTypeID, err
		}
		return p.elem(func(v types.TypeID) types.TypeID { return in.Map(key, v) })

	case "bit_set":
		if err := p.expect("["); err != nil {
			return types.NoTypeID, err
		}
		bits, err := p.count()
		if err != nil {
			return types.NoTypeID, err
		}
		if err := p.expect(";"); err != nil {
			return types.NoTypeID, err
		}
		under, err := p.parse()
		if err != nil {
			return types.NoTypeID, err
		}
		if !in.IsInteger(under) {
			return types.NoTypeID, fmt.Errorf("bit_set backing %s is not an integer", in.TypeString(under))
		}
		if err := p.expect("]"); err != nil {
			return types.NoTypeID, err
		}
		return in.BitSet(under, bits, under), nil

	case "proc":
		if err := p.expect("("); err != nil {
			return types.NoTypeID, err
		}
		params, err := p.list(")")
		if err != nil {
			return types.NoTypeID, err
		}
		var results []types.TypeID
		if p.accept("->") {
			if err := p.expect("("); err != nil {
				return types.NoTypeID, err
			}
			if results, err = p.list(")"); err != nil {
				return types.NoTypeID, err
			}
		}
		return in.ProcOf(params, results), nil
	}

	if k, ok := types.ParseBasicKind(name); ok && k != types.BasicUntypedNil {
		return in.Basic(k), nil
	}
	if p.named != nil {
		if id, ok := p.named(name); ok {
			return id, nil
		}
	}
	return types.NoTypeID, fmt.Errorf("unknown type %s", name)
}
