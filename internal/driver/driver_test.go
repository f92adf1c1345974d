package driver

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"lowir/internal/backend/llvm"
	"lowir/internal/layout"
	"lowir/internal/observ"
	"lowir/internal/trace"
	"lowir/internal/types"
	"lowir/internal/typetab"
)

const table = `
probe = ["[5]u16", "string", "map[string]i32", "(u8, i64)"]

[[type]]
name = "Point"
kind = "struct"
fields = [{ name = "tag", type = "u8" }, { name = "x", type = "i32" }, { name = "next", type = "^Point" }, { name = "ok", type = "bool" }]

[[type]]
name = "Wide"
kind = "struct"
align = 32
fields = [{ name = "a", type = "u8" }, { name = "b", type = "f64" }]

[[type]]
name = "Tight"
kind = "struct"
packed = true
fields = [{ name = "a", type = "u8" }, { name = "b", type = "u32" }]

[[type]]
name = "Bits"
kind = "raw_union"
fields = [{ name = "f", type = "f32" }, { name = "u", type = "u32" }, { name = "b", type = "[2]u16" }]

[[type]]
name = "Shape"
kind = "union"
variants = ["Point", "f64", "Wide"]

[[type]]
name = "Maybe"
kind = "union"
variants = ["^Point"]
`

func buildSet(t *testing.T) *typetab.Set {
	t.Helper()
	tab, err := typetab.Decode(strings.NewReader(table), "table.toml")
	require.NoError(t, err)
	set, err := typetab.Build(tab)
	require.NoError(t, err)
	return set
}

func TestProbesPassSelfCheck(t *testing.T) {
	set := buildSet(t)
	ring := trace.NewRing(1024, trace.LevelDetail)
	ctx := trace.WithTracer(context.Background(), ring)
	timer := observ.NewTimer()

	mod, checks, err := Probes(ctx, set, Options{Jobs: 4, Timer: timer})
	require.NoError(t, err)

	kinds := map[CheckKind]int{}
	for _, c := range checks {
		kinds[c.Kind]++
	}
	require.Equal(t, len(set.Decls), kinds[CheckZero])
	// Point, Wide, Tight and Bits; the tuple probe has no struct fields.
	require.Equal(t, 4+2+2+3, kinds[CheckField])
	// Maybe is a bare pointer without a tag.
	require.Equal(t, 1, kinds[CheckTag])
	require.Equal(t, 1, kinds[CheckMapLen])
	require.Equal(t, 1, kinds[CheckMapCap])

	rep, err := SelfCheck(ctx, mod, checks, CheckOptions{Jobs: 3, Logger: slogt.New(t)})
	require.NoError(t, err)
	require.True(t, rep.OK(), "%v", rep.Failures)
	require.Equal(t, len(checks), rep.Checked)

	var passes []string
	for _, ev := range ring.Snapshot() {
		if ev.Scope == trace.ScopePass && ev.Kind == trace.KindEnd {
			passes = append(passes, ev.Name)
		}
	}
	require.Equal(t, []string{"lower", "check"}, passes)
	require.Len(t, timer.Report().Phases, 3)
}

func TestSelfCheckReportsMismatches(t *testing.T) {
	set := buildSet(t)
	mod, checks, err := Probes(context.Background(), set, Options{Jobs: 2})
	require.NoError(t, err)

	// Point a field check at the wrong offset and at a missing routine.
	var broken []Check
	for _, c := range checks {
		if c.Kind == CheckField && c.Entry.Name == "Point" && c.Field == 1 {
			c.Offset = 0
			broken = append(broken, c)
			c.Routines = []string{"ev.Nope.0"}
			broken = append(broken, c)
		}
	}
	require.Len(t, broken, 2)

	rep, err := SelfCheck(context.Background(), mod, broken, CheckOptions{Jobs: 2})
	require.NoError(t, err)
	require.Len(t, rep.Failures, 3)
	require.Equal(t, "ev.Point.1", rep.Failures[0].Routine)
	require.Equal(t, "ep.Point.1", rep.Failures[1].Routine)
	require.Equal(t, "ev.Nope.0", rep.Failures[2].Routine)
	require.Contains(t, rep.Failures[0].Detail, "want 01 02 03 04")
}

func TestLowerAllStopsOnFirstError(t *testing.T) {
	in := types.NewInterner()
	mod := llvm.NewModule(layout.New(layout.X86_64LinuxGNU(), in), nil)
	b := in.Builtins()
	boom := errors.New("boom")

	var built atomic.Int32
	var jobs []RoutineJob
	for i := range 64 {
		jobs = append(jobs, RoutineJob{
			Name: "r" + string(rune('A'+i%26)) + string(rune('a'+i/26)),
			Sig:  llvm.ProcSig{Results: []llvm.Result{{Type: b.I32}}},
			Build: func(p *llvm.Proc) error {
				built.Add(1)
				if i == 0 {
					return boom
				}
				v, err := p.ConstInt(b.I32, int64(i))
				if err != nil {
					return err
				}
				return p.Return(v)
			},
		})
	}
	err := LowerAll(context.Background(), mod, jobs, Options{Jobs: 1})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "routine rAa")
	require.Less(t, built.Load(), int32(64))
	// Every routine was declared before any body was built.
	_, _, ok := mod.Func("rZb")
	require.True(t, ok)
}

func TestLowerAllCallsAcrossJobs(t *testing.T) {
	in := types.NewInterner()
	eng := layout.New(layout.X86_64LinuxGNU(), in)
	mod := llvm.NewModule(eng, nil)
	b := in.Builtins()
	sig := llvm.ProcSig{Results: []llvm.Result{{Type: b.I64}}}

	jobs := []RoutineJob{
		{Name: "outer", Sig: sig, Build: func(p *llvm.Proc) error {
			callee, _, _ := p.Module().Func("inner")
			v := p.Current().NewCall(callee)
			return p.Return(llvm.Value{V: v, Type: b.I64})
		}},
		{Name: "inner", Sig: sig, Build: func(p *llvm.Proc) error {
			v, err := p.ConstInt(b.I64, 99)
			if err != nil {
				return err
			}
			return p.Return(v)
		}},
	}
	require.NoError(t, LowerAll(context.Background(), mod, jobs, Options{}))

	rep, err := SelfCheck(context.Background(), mod, []Check{{
		Kind: CheckZero, Routines: []string{"outer"}, Width: 8,
	}}, CheckOptions{})
	require.NoError(t, err)
	require.Len(t, rep.Failures, 1)
	require.Contains(t, rep.Failures[0].Detail, "got 63 00 00 00 00 00 00 00")
}

func TestPattern(t *testing.T) {
	p := Pattern(600)
	for i, x := range p {
		require.NotZero(t, x)
		if i > 0 {
			require.NotEqual(t, p[i-1], x)
		}
	}
}
