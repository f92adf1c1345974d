package llvm

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/types"
)

// Param is a routine parameter.
type Param struct {
	Name string
	Type types.TypeID
}

// Result is a routine result. Results are named either all or none.
type Result struct {
	Name string
	Type types.TypeID
}

// ProcSig is the source-level signature of a routine.
type ProcSig struct {
	Params  []Param
	Results []Result
}

// NamedResults reports whether the results carry names.
func (s ProcSig) NamedResults() bool {
	return len(s.Results) > 0 && s.Results[0].Name != ""
}

// Proc is the private lowering context of one routine. It is not safe for
// concurrent use; each worker owns its own.
type Proc struct {
	m   *Module
	Fn  *ir.Func
	Sig ProcSig

	decls  *ir.Block // allocas only, branches to the body on Finish
	body   *ir.Block
	cur    *ir.Block
	params []Value
	slots  []Value // named result slots

	loads      map[value.Value]Value // loads since the last write or block switch
	preds      map[*ir.Block][]*ir.Block
	blockNames map[string]int
}

// NewProc starts lowering the body of name. The routine is declared if it
// was not declared before.
func (m *Module) NewProc(name string, sig ProcSig) (*Proc, error) {
	f, err := m.DeclareProc(name, sig)
	if err != nil {
		return nil, err
	}
	if len(f.Blocks) > 0 {
		return nil, m.internalf("new proc", nil, "%s already has a body", name)
	}
	p := &Proc{
		m:          m,
		Fn:         f,
		Sig:        sig,
		loads:      make(map[value.Value]Value, 32),
		preds:      make(map[*ir.Block][]*ir.Block, 8),
		blockNames: make(map[string]int, 8),
	}
	p.decls = p.NewBlock("decls")
	p.body = p.NewBlock("entry")
	p.cur = p.body
	for i, prm := range sig.Params {
		p.params = append(p.params, Value{V: f.Params[i], Type: prm.Type})
	}
	if sig.NamedResults() {
		for _, r := range sig.Results {
			slot, err := p.Local(r.Type, true)
			if err != nil {
				return nil, err
			}
			p.slots = append(p.slots, slot)
		}
	}
	return p, nil
}

// Module returns the owning module.
func (p *Proc) Module() *Module { return p.m }

// Types is a shorthand for the module's interner.
func (p *Proc) Types() *types.Interner { return p.m.Types }

// Param returns the i-th parameter value.
func (p *Proc) Param(i int) Value { return p.params[i] }

// ResultSlot returns the address of the i-th named result.
func (p *Proc) ResultSlot(i int) (Value, bool) {
	if i < 0 || i >= len(p.slots) {
		return Value{}, false
	}
	return p.slots[i], true
}

// Blocks --------------------------------------------------------------------

// NewBlock appends a block with a unique name derived from name.
func (p *Proc) NewBlock(name string) *ir.Block {
	n := p.blockNames[name]
	p.blockNames[name] = n + 1
	if n > 0 {
		name = fmt.Sprintf("%s.%d", name, n)
	}
	return p.Fn.NewBlock(name)
}

// StartBlock makes b the insertion point.
func (p *Proc) StartBlock(b *ir.Block) {
	p.cur = b
	p.clobber()
}

// clobber forgets every remembered load. It runs whenever memory may have
// changed since those loads: stores, calls and block switches.
func (p *Proc) clobber() { clear(p.loads) }

// Current returns the insertion block.
func (p *Proc) Current() *ir.Block { return p.cur }

// Terminated reports whether the insertion block already ends.
func (p *Proc) Terminated() bool { return p.cur.Term != nil }

// Preds returns the recorded predecessors of b in branch order.
func (p *Proc) Preds(b *ir.Block) []*ir.Block { return p.preds[b] }

// Br jumps to target unless the current block is already terminated.
func (p *Proc) Br(target *ir.Block) {
	if p.Terminated() {
		return
	}
	p.cur.NewBr(target)
	p.preds[target] = append(p.preds[target], p.cur)
}

// CondBr branches on a bool value.
func (p *Proc) CondBr(cond Value, then, els *ir.Block) {
	if p.Terminated() {
		return
	}
	p.cur.NewCondBr(cond.V, then, els)
	p.preds[then] = append(p.preds[then], p.cur)
	p.preds[els] = append(p.preds[els], p.cur)
}

// Unreachable terminates the current block.
func (p *Proc) Unreachable() {
	if !p.Terminated() {
		p.cur.NewUnreachable()
	}
}

// Memory --------------------------------------------------------------------

// Local allocates a stack slot for t in the declaration block and, when
// zero is set, clears it at the current insertion point.
func (p *Proc) Local(t types.TypeID, zero bool) (Value, error) {
	lt, err := p.m.LLVMType(t)
	if err != nil {
		return Value{}, err
	}
	slot := p.decls.NewAlloca(lt)
	if align, err := p.m.Layout.AlignOf(t); err == nil && align > 0 {
		slot.Align = ir.Align(align)
	}
	addr := Value{V: slot, Type: p.m.Types.Pointer(t)}
	if zero {
		if err := p.MemZeroPtr(addr); err != nil {
			return Value{}, err
		}
	}
	return addr, nil
}

// Load reads the object addr points at and remembers where it came from.
func (p *Proc) Load(addr Value) (Value, error) {
	elem := p.m.Types.Elem(addr.Type)
	if p.m.Types.KindOf(addr.Type) != types.KindPointer || elem == types.NoTypeID {
		return Value{}, p.m.internalf("load", tys(addr.Type), "not a typed pointer")
	}
	lt, err := p.m.LLVMType(elem)
	if err != nil {
		return Value{}, err
	}
	ld := p.cur.NewLoad(lt, addr.V)
	res := Value{V: ld, Type: elem}
	p.loads[ld] = addr
	return res, nil
}

// Store writes v to addr. v must already have the pointee type.
func (p *Proc) Store(addr, v Value) error {
	elem := p.m.Types.Elem(addr.Type)
	if elem == types.NoTypeID {
		return p.m.internalf("store", tys(addr.Type), "not a typed pointer")
	}
	if elem != v.Type {
		conv, err := p.Conv(v, elem)
		if err != nil {
			return err
		}
		v = conv
	}
	p.cur.NewStore(v.V, addr.V)
	p.clobber()
	return nil
}

// AddressOfLoad returns the address a value was loaded from, if v is the
// direct result of a Load in the current block and nothing emitted through
// this Proc has written memory since. Stores built directly on Current()
// are not seen.
func (p *Proc) AddressOfLoad(v Value) (Value, bool) {
	addr, ok := p.loads[v.V]
	if !ok {
		return Value{}, false
	}
	return Value{V: addr.V, Type: p.m.Types.Pointer(v.Type)}, true
}

// AddressFromLoadOrGenerateLocal returns an address holding v: the load
// source when v was just loaded, otherwise a fresh local initialised with v.
func (p *Proc) AddressFromLoadOrGenerateLocal(v Value) (Value, error) {
	if addr, ok := p.AddressOfLoad(v); ok {
		return addr, nil
	}
	local, err := p.Local(v.Type, false)
	if err != nil {
		return Value{}, err
	}
	if err := p.Store(local, v); err != nil {
		return Value{}, err
	}
	return local, nil
}

// Returns -------------------------------------------------------------------

// Return converts vals to the declared result types and returns them.
func (p *Proc) Return(vals ...Value) error {
	results := p.Sig.Results
	if len(vals) != len(results) {
		return p.m.internalf("return", nil, "%d values for %d results", len(vals), len(results))
	}
	switch len(results) {
	case 0:
		p.cur.NewRet(nil)
		return nil
	case 1:
		v, err := p.Conv(vals[0], results[0].Type)
		if err != nil {
			return err
		}
		p.cur.NewRet(v.V)
		return nil
	}
	tuple := p.m.resultTuple(results)
	local, err := p.Local(tuple, false)
	if err != nil {
		return err
	}
	for i, v := range vals {
		field, err := p.StructEP(local, int32(i)) //nolint:gosec // result counts are small
		if err != nil {
			return err
		}
		if err := p.Store(field, v); err != nil {
			return err
		}
	}
	packed, err := p.Load(local)
	if err != nil {
		return err
	}
	p.cur.NewRet(packed.V)
	return nil
}

// ReturnNamed returns the current contents of the named result slots.
func (p *Proc) ReturnNamed() error {
	vals := make([]Value, len(p.slots))
	for i, slot := range p.slots {
		v, err := p.Load(slot)
		if err != nil {
			return err
		}
		vals[i] = v
	}
	return p.Return(vals...)
}

// Finish links the declaration block to the body and closes every open
// block: void routines and routines with named results return implicitly,
// anything else falling off the end is unreachable.
func (p *Proc) Finish() (*ir.Func, error) {
	p.decls.NewBr(p.body)
	for _, b := range p.Fn.Blocks {
		if b.Term != nil {
			continue
		}
		p.StartBlock(b)
		switch {
		case len(p.Sig.Results) == 0:
			b.NewRet(nil)
		case p.Sig.NamedResults():
			if err := p.ReturnNamed(); err != nil {
				return nil, err
			}
		default:
			b.NewUnreachable()
		}
	}
	return p.Fn, nil
}

// Constants -----------------------------------------------------------------

// ConstInt returns an integer constant of type t.
func (p *Proc) ConstInt(t types.TypeID, x int64) (Value, error) {
	lt, err := p.m.LLVMType(t)
	if err != nil {
		return Value{}, err
	}
	it, ok := lt.(*irtypes.IntType)
	if !ok {
		return Value{}, p.m.internalf("const int", tys(t), "not an integer type")
	}
	return Value{V: constant.NewInt(it, x), Type: t}, nil
}

// ConstBool returns true or false.
func (p *Proc) ConstBool(b bool) Value {
	return Value{V: constant.NewBool(b), Type: p.m.Types.Builtins().Bool}
}

// Zero returns the zero value of t.
func (p *Proc) Zero(t types.TypeID) (Value, error) {
	lt, err := p.m.LLVMType(t)
	if err != nil {
		return Value{}, err
	}
	return Value{V: zeroConst(lt), Type: t}, nil
}

func zeroConst(t irtypes.Type) constant.Constant {
	switch t := t.(type) {
	case *irtypes.IntType:
		return constant.NewInt(t, 0)
	case *irtypes.PointerType:
		return constant.NewNull(t)
	case *irtypes.FloatType:
		return constant.NewFloat(t, 0)
	default:
		return constant.NewZeroInitializer(t)
	}
}

func (p *Proc) wordConst(x int64) constant.Constant {
	return constant.NewInt(p.m.wordType(), x)
}

func i32Const(x int64) *constant.Int {
	return constant.NewInt(irtypes.I32, x)
}
