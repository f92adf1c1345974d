package llvm

import (
	"context"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"lowir/internal/eval"
	"lowir/internal/layout"
	"lowir/internal/source"
	"lowir/internal/types"
)

// harness lowers routines into one module and runs them in the
// interpreter.
type harness struct {
	t   *testing.T
	r   *require.Assertions
	in  *types.Interner
	b   types.Builtins
	m   *Module
	pos source.Pos
	vm  *eval.VM
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	in := types.NewInterner()
	eng := layout.New(layout.X86_64LinuxGNU(), in)
	m := NewModule(eng, nil)
	file := m.Files.Add("lowir/test.src")
	return &harness{
		t:   t,
		r:   require.New(t),
		in:  in,
		b:   in.Builtins(),
		m:   m,
		pos: source.Pos{File: file, Line: 12, Column: 5},
	}
}

// proc starts a routine with unnamed parameters and results.
func (h *harness) proc(name string, params []types.TypeID, results ...types.TypeID) *Proc {
	h.t.Helper()
	sig := ProcSig{}
	for _, pt := range params {
		sig.Params = append(sig.Params, Param{Type: pt})
	}
	for _, rt := range results {
		sig.Results = append(sig.Results, Result{Type: rt})
	}
	p, err := h.m.NewProc(name, sig)
	h.r.NoError(err)
	return p
}

func (h *harness) finish(p *Proc) {
	h.t.Helper()
	_, err := p.Finish()
	h.r.NoError(err)
}

// machine returns the interpreter, created on first use after every
// routine was finished.
func (h *harness) machine() *eval.VM {
	if h.vm == nil {
		h.vm = eval.New(h.m.IR, h.m.Layout, nil, slogt.New(h.t))
	}
	return h.vm
}

func (h *harness) call(name string, args ...[]byte) ([]byte, error) {
	return h.machine().Call(context.Background(), name, args...)
}

func (h *harness) mustCall(name string, args ...[]byte) []byte {
	h.t.Helper()
	out, err := h.call(name, args...)
	h.r.NoError(err)
	return out
}

func (h *harness) must(v Value, err error) Value {
	h.t.Helper()
	h.r.NoError(err)
	return v
}

func (h *harness) ret(p *Proc, v Value) {
	h.t.Helper()
	h.r.NoError(p.Return(v))
}

// concat lays out little-endian fields at the given offsets of an n-byte
// value.
func concat(n int, fields ...field) []byte {
	out := make([]byte, n)
	for _, f := range fields {
		copy(out[f.off:], f.b)
	}
	return out
}

type field struct {
	off int
	b   []byte
}

func at(off int, b []byte) field { return field{off: off, b: b} }

func u64(x uint64) []byte { return eval.Bytes(x, 8) }
func u32(x uint32) []byte { return eval.Bytes(uint64(x), 4) }
func i64(x int64) []byte  { return eval.Bytes(uint64(x), 8) } //nolint:gosec // two's complement
func i32(x int32) []byte  { return eval.Bytes(uint64(uint32(x)), 4) }
func u8(x uint8) []byte   { return []byte{x} }
func boolean(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}
