package driver

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strconv"

	"golang.org/x/sync/errgroup"

	"lowir/internal/backend/llvm"
	"lowir/internal/eval"
	"lowir/internal/trace"
)

// CheckOptions tune SelfCheck.
type CheckOptions struct {
	Jobs      int // 0 means GOMAXPROCS
	StepLimit int // 0 keeps the interpreter default
	Logger    *slog.Logger
}

// Failure is a probe that did not observe what its Check expects.
type Failure struct {
	Check   Check
	Routine string
	Detail  string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s %s: %s", f.Check.Kind, f.Routine, f.Detail)
}

// Report is the outcome of SelfCheck.
type Report struct {
	Checked  int
	Failures []Failure
}

// OK reports whether every check passed.
func (r Report) OK() bool { return len(r.Failures) == 0 }

// Pattern is the argument every probe reader receives: size bytes, none of
// them zero, no two neighbours equal.
func Pattern(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i%251 + 1)
	}
	return b
}

// SelfCheck runs checks against the lowered mod. Each worker interprets its
// share with a private VM. A failing check is reported, not returned; the
// error is only for cancellation.
func SelfCheck(ctx context.Context, mod *llvm.Module, checks []Check, opts CheckOptions) (Report, error) {
	ctx, span := trace.Start(ctx, trace.ScopePass, "check")
	workers := opts.Jobs
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = max(1, min(workers, len(checks)))

	type indexed struct {
		at int
		f  Failure
	}
	found := make([][]indexed, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			vm := eval.New(mod.IR, mod.Layout, nil, opts.Logger)
			if opts.StepLimit > 0 {
				vm.StepLimit = opts.StepLimit
			}
			for i := w; i < len(checks); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				for _, f := range runCheck(gctx, vm, checks[i]) {
					trace.Point(gctx, trace.ScopeRoutine, "mismatch", f.String())
					found[w] = append(found[w], indexed{i, f})
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.End("cancelled")
		return Report{}, err
	}

	var all []indexed
	for _, fs := range found {
		all = append(all, fs...)
	}
	slices.SortStableFunc(all, func(a, b indexed) int { return cmp.Compare(a.at, b.at) })
	rep := Report{Checked: len(checks)}
	for _, x := range all {
		rep.Failures = append(rep.Failures, x.f)
	}
	span.Set("failures", strconv.Itoa(len(rep.Failures))).End("")
	return rep, nil
}

func runCheck(ctx context.Context, vm *eval.VM, c Check) []Failure {
	var args [][]byte
	want := make([]byte, c.Width)
	if c.Kind != CheckZero {
		arg := Pattern(c.Size)
		args = append(args, arg)
		copy(want, arg[c.Offset:c.Offset+c.Width])
	}
	var out []Failure
	for _, name := range c.Routines {
		got, err := vm.Call(ctx, name, args...)
		switch {
		case err != nil:
			out = append(out, Failure{Check: c, Routine: name, Detail: err.Error()})
		case !bytes.Equal(got, want):
			out = append(out, Failure{Check: c, Routine: name, Detail: fmt.Sprintf("got % x, want % x", got, want)})
		}
	}
	return out
}
