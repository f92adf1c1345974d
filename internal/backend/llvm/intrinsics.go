package llvm

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/types"
)

// intrinsicSpec describes one overloadable target intrinsic: which operand
// types it accepts and the signature it takes for them.
type intrinsicSpec struct {
	accepts func(overloads []irtypes.Type) bool
	sig     func(overloads []irtypes.Type) (irtypes.Type, []irtypes.Type)
}

func unaryInt(minBits uint64) intrinsicSpec {
	return intrinsicSpec{
		accepts: func(o []irtypes.Type) bool {
			return len(o) == 1 && intOrIntVector(o[0], minBits)
		},
		sig: func(o []irtypes.Type) (irtypes.Type, []irtypes.Type) {
			return o[0], []irtypes.Type{o[0]}
		},
	}
}

func zeroCount() intrinsicSpec {
	return intrinsicSpec{
		accepts: func(o []irtypes.Type) bool {
			return len(o) == 1 && intOrIntVector(o[0], 1)
		},
		sig: func(o []irtypes.Type) (irtypes.Type, []irtypes.Type) {
			return o[0], []irtypes.Type{o[0], irtypes.I1}
		},
	}
}

func memsetSpec() intrinsicSpec {
	return intrinsicSpec{
		accepts: func(o []irtypes.Type) bool {
			if len(o) != 2 {
				return false
			}
			_, ptr := o[0].(*irtypes.PointerType)
			_, n := o[1].(*irtypes.IntType)
			return ptr && n
		},
		sig: func(o []irtypes.Type) (irtypes.Type, []irtypes.Type) {
			return irtypes.Void, []irtypes.Type{o[0], irtypes.I8, o[1], irtypes.I1}
		},
	}
}

var intrinsicCatalog = map[string]intrinsicSpec{
	"bswap":         unaryInt(16),
	"ctpop":         unaryInt(1),
	"bitreverse":    unaryInt(1),
	"ctlz":          zeroCount(),
	"cttz":          zeroCount(),
	"memset":        memsetSpec(),
	"memset.inline": memsetSpec(),
}

func intOrIntVector(t irtypes.Type, minBits uint64) bool {
	if v, ok := t.(*irtypes.VectorType); ok {
		t = v.ElemType
	}
	it, ok := t.(*irtypes.IntType)
	if !ok || it.BitSize < minBits {
		return false
	}
	return minBits < 16 || it.BitSize%16 == 0
}

// overloadSuffix mangles an operand type the way LLVM names overloaded
// intrinsics: i32, v4i32, p0i8.
func overloadSuffix(t irtypes.Type) string {
	switch t := t.(type) {
	case *irtypes.IntType:
		return fmt.Sprintf("i%d", t.BitSize)
	case *irtypes.FloatType:
		switch t.Kind {
		case irtypes.FloatKindHalf:
			return "f16"
		case irtypes.FloatKindFloat:
			return "f32"
		case irtypes.FloatKindDouble:
			return "f64"
		}
	case *irtypes.VectorType:
		return fmt.Sprintf("v%d%s", t.Len, overloadSuffix(t.ElemType))
	case *irtypes.PointerType:
		return "p0" + overloadSuffix(t.ElemType)
	}
	return strings.ReplaceAll(t.String(), " ", "")
}

// Intrinsic declares llvm.<name> specialised to overloads, once per module.
// Asking for an intrinsic the catalog does not carry for these operand
// types is an internal error.
func (m *Module) Intrinsic(name string, overloads ...irtypes.Type) (*ir.Func, error) {
	spec, ok := intrinsicCatalog[name]
	if !ok || !spec.accepts(overloads) {
		names := make([]string, len(overloads))
		for i, o := range overloads {
			names[i] = o.String()
		}
		return nil, m.internalf("intrinsic", nil, "llvm.%s has no overload for (%s)", name, strings.Join(names, ", "))
	}
	var sb strings.Builder
	sb.WriteString("llvm.")
	sb.WriteString(name)
	for _, o := range overloads {
		sb.WriteByte('.')
		sb.WriteString(overloadSuffix(o))
	}
	full := sb.String()

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.intrinsics[full]; ok {
		return f, nil
	}
	ret, params := spec.sig(overloads)
	irParams := make([]*ir.Param, len(params))
	for i, pt := range params {
		irParams[i] = ir.NewParam("", pt)
	}
	f := m.IR.NewFunc(full, ret, irParams...)
	m.intrinsics[full] = f
	return f, nil
}

func (p *Proc) callIntrinsic(name string, x Value, extra ...value.Value) (Value, error) {
	fn, err := p.m.Intrinsic(name, x.V.Type())
	if err != nil {
		return Value{}, err
	}
	args := append([]value.Value{x.V}, extra...)
	return Value{V: p.cur.NewCall(fn, args...), Type: x.Type}, nil
}

// ByteSwap reverses the byte order of x and retypes the result as end,
// which must have the same size. Single bytes are returned unchanged; floats
// are swapped through the unsigned integer of their width.
func (p *Proc) ByteSwap(x Value, end types.TypeID) (Value, error) {
	in := p.m.Types
	size, err := p.m.Layout.SizeOf(x.Type)
	if err != nil {
		return Value{}, err
	}
	endSize, err := p.m.Layout.SizeOf(end)
	if err != nil {
		return Value{}, err
	}
	if size != endSize {
		return Value{}, p.m.internalf("byte swap", tys(x.Type, end), "size %d versus %d", size, endSize)
	}
	if size < 2 {
		return Value{V: x.V, Type: end}, nil
	}
	original := x.Type
	if in.IsFloat(original) {
		var bits types.TypeID
		switch size {
		case 2:
			bits = in.Builtins().U16
		case 4:
			bits = in.Builtins().U32
		case 8:
			bits = in.Builtins().U64
		default:
			return Value{}, p.m.internalf("byte swap", tys(original), "no integer of %d bytes", size)
		}
		if x, err = p.Transmute(x, bits); err != nil {
			return Value{}, err
		}
	}
	res, err := p.callIntrinsic("bswap", x)
	if err != nil {
		return Value{}, err
	}
	if in.IsFloat(original) {
		if res, err = p.Transmute(res, original); err != nil {
			return Value{}, err
		}
	}
	res.Type = end
	return res, nil
}

// CountOnes is the population count of x converted to t.
func (p *Proc) CountOnes(x Value, t types.TypeID) (Value, error) {
	x, err := p.Conv(x, t)
	if err != nil {
		return Value{}, err
	}
	return p.callIntrinsic("ctpop", x)
}

// CountZeros is the bit width of t minus CountOnes.
func (p *Proc) CountZeros(x Value, t types.TypeID) (Value, error) {
	size, err := p.m.Layout.SizeOf(t)
	if err != nil {
		return Value{}, err
	}
	width, err := p.ConstInt(t, 8*int64(size))
	if err != nil {
		return Value{}, err
	}
	ones, err := p.CountOnes(x, t)
	if err != nil {
		return Value{}, err
	}
	return p.Sub(width, ones)
}

// CountTrailingZeros is defined for zero input: it yields the bit width.
func (p *Proc) CountTrailingZeros(x Value, t types.TypeID) (Value, error) {
	x, err := p.Conv(x, t)
	if err != nil {
		return Value{}, err
	}
	return p.callIntrinsic("cttz", x, constant.NewBool(false))
}

// CountLeadingZeros is defined for zero input: it yields the bit width.
func (p *Proc) CountLeadingZeros(x Value, t types.TypeID) (Value, error) {
	x, err := p.Conv(x, t)
	if err != nil {
		return Value{}, err
	}
	return p.callIntrinsic("ctlz", x, constant.NewBool(false))
}

// ReverseBits mirrors the bits of x converted to t.
func (p *Proc) ReverseBits(x Value, t types.TypeID) (Value, error) {
	x, err := p.Conv(x, t)
	if err != nil {
		return Value{}, err
	}
	return p.callIntrinsic("bitreverse", x)
}

// BitSetCard counts the members of a bit set as an int.
func (p *Proc) BitSetCard(x Value) (Value, error) {
	in := p.m.Types
	underlying := in.BitSetUnderlying(x.Type)
	if underlying == types.NoTypeID {
		return Value{}, p.m.internalf("bit set card", tys(x.Type), "not a bit set")
	}
	card, err := p.CountOnes(x, underlying)
	if err != nil {
		return Value{}, err
	}
	return p.Conv(card, in.Builtins().Int)
}

// Increment adds one to the integer addr points at.
func (p *Proc) Increment(addr Value) error {
	v, err := p.Load(addr)
	if err != nil {
		return err
	}
	one, err := p.ConstInt(v.Type, 1)
	if err != nil {
		return err
	}
	sum, err := p.Add(v, one)
	if err != nil {
		return err
	}
	return p.Store(addr, sum)
}
