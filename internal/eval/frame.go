package eval

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// Frame is the activation record of one interpreted routine.
type Frame struct {
	Func  *ir.Func
	Block *ir.Block
	Prev  *ir.Block // predecessor, for phi selection

	vals map[value.Value][]byte
}

func newFrame(f *ir.Func, args [][]byte) *Frame {
	fr := &Frame{
		Func: f,
		vals: make(map[value.Value][]byte, 64),
	}
	for i, p := range f.Params {
		if i < len(args) {
			fr.vals[p] = args[i]
		}
	}
	if len(f.Blocks) > 0 {
		fr.Block = f.Blocks[0]
	}
	return fr
}

func (fr *Frame) trap(t *TrapError) *TrapError {
	if t.Func == "" {
		t.Func = fr.Func.Name()
		if fr.Block != nil {
			t.Block = fr.Block.Ident()
		}
	}
	return t
}
