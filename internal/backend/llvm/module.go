package llvm

import (
	"fmt"
	"sync"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	irtypes "github.com/llir/llvm/ir/types"

	"lowir/internal/layout"
	"lowir/internal/source"
	"lowir/internal/types"
)

// Module owns one output IR module and the tables every routine lowering
// into it shares. Procs of the same Module may be lowered concurrently; all
// writes to the shared tables and to the ir.Module go through mu.
type Module struct {
	IR     *ir.Module
	Types  *types.Interner
	Layout *layout.LayoutEngine
	Files  *source.FileTable

	mu         sync.Mutex
	llvmTypes  map[types.TypeID]irtypes.Type
	typeNames  map[string]struct{}
	funcs      map[string]*ir.Func
	sigs       map[string]ProcSig
	intrinsics map[string]*ir.Func
	strs       map[string]*ir.Global
}

// NewModule prepares an empty module for the engine's target.
func NewModule(eng *layout.LayoutEngine, files *source.FileTable) *Module {
	if files == nil {
		files = source.NewFileTable()
	}
	irm := ir.NewModule()
	irm.TargetTriple = eng.Target.Triple
	return &Module{
		IR:         irm,
		Types:      eng.Types,
		Layout:     eng,
		Files:      files,
		llvmTypes:  make(map[types.TypeID]irtypes.Type, 64),
		typeNames:  make(map[string]struct{}, 16),
		funcs:      make(map[string]*ir.Func, 16),
		sigs:       make(map[string]ProcSig, 16),
		intrinsics: make(map[string]*ir.Func, 8),
		strs:       make(map[string]*ir.Global, 16),
	}
}

// DeclareProc declares a routine with the given signature. Declaring the same
// name twice returns the existing function when the signatures agree.
func (m *Module) DeclareProc(name string, sig ProcSig) (*ir.Func, error) {
	ret, params, err := m.signature(sig)
	if err != nil {
		return nil, fmt.Errorf("declare %s: %w", name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.funcs[name]; ok {
		if !irtypes.Equal(f.Sig, irtypes.NewFunc(ret, paramTypes(params)...)) {
			return nil, fmt.Errorf("declare %s: conflicting signature", name)
		}
		return f, nil
	}
	f := m.IR.NewFunc(name, ret, params...)
	m.funcs[name] = f
	m.sigs[name] = sig
	return f, nil
}

// Func returns a declared routine.
func (m *Module) Func(name string) (*ir.Func, ProcSig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.funcs[name]
	return f, m.sigs[name], ok
}

func (m *Module) signature(sig ProcSig) (irtypes.Type, []*ir.Param, error) {
	params := make([]*ir.Param, 0, len(sig.Params))
	for _, p := range sig.Params {
		t, err := m.LLVMType(p.Type)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, ir.NewParam(p.Name, t))
	}
	ret, err := m.resultType(sig.Results)
	if err != nil {
		return nil, nil, err
	}
	return ret, params, nil
}

func (m *Module) resultType(results []Result) (irtypes.Type, error) {
	switch len(results) {
	case 0:
		return irtypes.Void, nil
	case 1:
		return m.LLVMType(results[0].Type)
	default:
		return m.LLVMType(m.resultTuple(results))
	}
}

func (m *Module) resultTuple(results []Result) types.TypeID {
	ids := make([]types.TypeID, len(results))
	for i, r := range results {
		ids[i] = r.Type
	}
	return m.Types.Tuple(ids...)
}

func paramTypes(params []*ir.Param) []irtypes.Type {
	out := make([]irtypes.Type, len(params))
	for i, p := range params {
		out[i] = p.Typ
	}
	return out
}

// ConstString returns a constant string value {i8*, int} for s. Backing
// arrays are pooled per module.
func (m *Module) ConstString(s string) (Value, error) {
	strType, err := m.LLVMType(m.Types.Builtins().String)
	if err != nil {
		return Value{}, err
	}
	st, ok := strType.(*irtypes.StructType)
	if !ok {
		return Value{}, m.internalf("const string", nil, "string lowered to %s", strType)
	}
	m.mu.Lock()
	g, ok := m.strs[s]
	if !ok {
		data := constant.NewCharArrayFromString(s)
		g = m.IR.NewGlobalDef(fmt.Sprintf(".str.%d", len(m.strs)), data)
		g.Immutable = true
		m.strs[s] = g
	}
	m.mu.Unlock()

	zero := constant.NewInt(irtypes.I32, 0)
	ptr := constant.NewGetElementPtr(g.ContentType, g, zero, zero)
	length := constant.NewInt(m.wordType(), int64(len(s)))
	return Value{V: constant.NewStruct(st, ptr, length), Type: m.Types.Builtins().String}, nil
}

// TypeIDOf returns the runtime type identity of t as a typeid constant.
func (m *Module) TypeIDOf(t types.TypeID) Value {
	return Value{V: constant.NewInt(irtypes.I64, int64(t)), Type: m.Types.Builtins().Typeid}
}

// FilePath returns the path used in panic messages for pos.
func (m *Module) FilePath(pos source.Pos) string {
	return m.Files.PathOf(pos)
}

func (m *Module) wordType() *irtypes.IntType {
	return irtypes.NewInt(m.Layout.Target.WordBits())
}
