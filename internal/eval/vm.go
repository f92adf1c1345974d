// Package eval interprets emitted IR modules. It backs the lowering tests
// and `lowir check`: a routine is run over a flat little-endian memory laid
// out exactly as the layout engine describes, so byte-level properties of
// the lowering can be checked without a native toolchain.
package eval

import (
	"context"
	"log/slog"

	"github.com/llir/llvm/ir"
	irtypes "github.com/llir/llvm/ir/types"

	"lowir/internal/layout"
)

// DefaultStepLimit bounds the instructions one Call may execute.
const DefaultStepLimit = 1 << 20

// ExternFunc implements a body-less routine. Arguments arrive encoded as
// their IR types; a nil result means void.
type ExternFunc func(vm *VM, args [][]byte) ([]byte, error)

// ExternFuncs maps routine names to implementations.
type ExternFuncs map[string]ExternFunc

// VM executes the routines of one module. It is not safe for concurrent
// use.
type VM struct {
	Module    *ir.Module
	Layout    *layout.LayoutEngine
	Externs   ExternFuncs
	Logger    *slog.Logger
	StepLimit int

	mem      memory
	globals  map[*ir.Global]uint64
	funcAddr map[*ir.Func]uint64
	funcs    map[uint64]*ir.Func
	byName   map[string]*ir.Func
	steps    int
}

// New prepares a VM for mod. A nil logger discards debug output.
func New(mod *ir.Module, eng *layout.LayoutEngine, externs ExternFuncs, logger *slog.Logger) *VM {
	if externs == nil {
		externs = DefaultExternFuncs()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	vm := &VM{
		Module:    mod,
		Layout:    eng,
		Externs:   externs,
		Logger:    logger,
		StepLimit: DefaultStepLimit,
		globals:   make(map[*ir.Global]uint64, len(mod.Globals)),
		funcAddr:  make(map[*ir.Func]uint64, len(mod.Funcs)),
		funcs:     make(map[uint64]*ir.Func, len(mod.Funcs)),
		byName:    make(map[string]*ir.Func, len(mod.Funcs)),
	}
	for _, f := range mod.Funcs {
		vm.byName[f.Name()] = f
	}
	return vm
}

// Call runs the named routine with encoded arguments and returns its
// encoded result, or nil for void routines.
func (vm *VM) Call(ctx context.Context, name string, args ...[]byte) ([]byte, error) {
	f, ok := vm.lookup(name)
	if !ok {
		return nil, trapf(TrapBadCall, "no routine %q", name)
	}
	vm.steps = 0
	return vm.call(ctx, f, args)
}

// lookup finds a routine by name. Routines added to the module after New
// are picked up on first use.
func (vm *VM) lookup(name string) (*ir.Func, bool) {
	if f, ok := vm.byName[name]; ok {
		return f, true
	}
	for _, f := range vm.Module.Funcs {
		if f.Name() == name {
			vm.byName[name] = f
			return f, true
		}
	}
	return nil, false
}

// WordSize is the target pointer size in bytes.
func (vm *VM) WordSize() int { return vm.Layout.Target.PtrSize }

// Word encodes x as a target word.
func (vm *VM) Word(x int64) []byte {
	return Bytes(uint64(x), vm.WordSize()) //nolint:gosec // two's complement encoding
}

// Alloc reserves zeroed memory and returns its address.
func (vm *VM) Alloc(size, align int) uint64 {
	return vm.mem.alloc(size, align, 0)
}

// Read copies n bytes starting at addr.
func (vm *VM) Read(addr uint64, n int) ([]byte, error) {
	b, trap := vm.mem.read(addr, n)
	if trap != nil {
		return nil, trap
	}
	return b, nil
}

// Write stores b at addr.
func (vm *VM) Write(addr uint64, b []byte) error {
	if trap := vm.mem.write(addr, b); trap != nil {
		return trap
	}
	return nil
}

// ReadString decodes a string value {data, len} and reads its bytes.
func (vm *VM) ReadString(s []byte) (string, error) {
	w := vm.WordSize()
	if len(s) < 2*w {
		return "", trapf(TrapOutOfBounds, "string value of %d bytes", len(s))
	}
	n := Int(s[w : 2*w])
	if n == 0 {
		return "", nil
	}
	b, err := vm.Read(Uint(s[:w]), int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (vm *VM) size(t irtypes.Type) (int, error) {
	return vm.Layout.StorageSize(t)
}

func (vm *VM) storage(t irtypes.Type) (layout.TypeLayout, error) {
	return vm.Layout.StorageOf(t)
}
