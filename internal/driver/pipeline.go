package driver

import (
	"context"

	"lowir/internal/backend/llvm"
	"lowir/internal/typetab"
)

// Probes lowers the layout probes of every entry of set into a new module.
func Probes(ctx context.Context, set *typetab.Set, opts Options) (*llvm.Module, []Check, error) {
	mod := llvm.NewModule(set.Layout, nil)
	done := opts.Timer.Track("probe")
	jobs, checks, err := Probe(mod, set.Decls)
	done("")
	if err != nil {
		return nil, nil, err
	}
	if err := LowerAll(ctx, mod, jobs, opts); err != nil {
		return nil, nil, err
	}
	return mod, checks, nil
}
