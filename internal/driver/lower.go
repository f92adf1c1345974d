// Package driver runs the lowering layer over whole modules: it lowers
// routine bodies in parallel, generates layout probes for a type table and
// checks them by running the result through the interpreter.
package driver

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"lowir/internal/backend/llvm"
	"lowir/internal/observ"
	"lowir/internal/trace"
)

// RoutineJob is one routine to lower. Build emits the body into a Proc the
// worker owns; Finish is called by the driver.
type RoutineJob struct {
	Name  string
	Sig   llvm.ProcSig
	Build func(p *llvm.Proc) error
}

// Options tune LowerAll.
type Options struct {
	Jobs  int           // 0 means GOMAXPROCS
	Timer *observ.Timer // optional
}

// LowerAll lowers every job into mod. All routines are declared first on
// the calling goroutine so bodies may call each other regardless of order;
// bodies are then lowered by up to opts.Jobs workers. The first failing job
// cancels the rest and its error is returned.
func LowerAll(ctx context.Context, mod *llvm.Module, jobs []RoutineJob, opts Options) error {
	ctx, span := trace.Start(ctx, trace.ScopePass, "lower")
	defer span.Set("routines", strconv.Itoa(len(jobs))).End("")

	done := opts.Timer.Track("declare")
	for _, j := range jobs {
		if _, err := mod.DeclareProc(j.Name, j.Sig); err != nil {
			done("failed")
			return err
		}
	}
	done(strconv.Itoa(len(jobs)) + " routines")

	workers := opts.Jobs
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	done = opts.Timer.Track("lower")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(workers, len(jobs))))
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return lowerOne(gctx, mod, j)
		})
	}
	err := g.Wait()
	done(fmt.Sprintf("%d workers", workers))
	return err
}

func lowerOne(ctx context.Context, mod *llvm.Module, j RoutineJob) error {
	_, span := trace.Start(ctx, trace.ScopeRoutine, "routine:"+j.Name)
	p, err := mod.NewProc(j.Name, j.Sig)
	if err != nil {
		span.End("error")
		return fmt.Errorf("routine %s: %w", j.Name, err)
	}
	if err := j.Build(p); err != nil {
		span.End("error")
		return fmt.Errorf("routine %s: %w", j.Name, err)
	}
	fn, err := p.Finish()
	if err != nil {
		span.End("error")
		return fmt.Errorf("routine %s: %w", j.Name, err)
	}
	span.Set("blocks", strconv.Itoa(len(fn.Blocks))).End("")
	return nil
}
