package driver

import (
	"fmt"

	"fortio.org/safecast"

	"lowir/internal/backend/llvm"
	"lowir/internal/types"
	"lowir/internal/typetab"
)

// CheckKind is what a probe verifies.
type CheckKind uint8

const (
	// CheckZero: a zeroed local of the type reads back as all zero bytes,
	// padding included.
	CheckZero CheckKind = iota + 1
	// CheckField: projecting a field from a value and loading it through
	// its address both yield the bytes at the field's layout offset.
	CheckField
	// CheckTag: the union tag sits at the layout's tag offset.
	CheckTag
	// CheckMapLen and CheckMapCap: map counters sit where the internal
	// layout puts them.
	CheckMapLen
	CheckMapCap
)

func (k CheckKind) String() string {
	switch k {
	case CheckZero:
		return "zero"
	case CheckField:
		return "field"
	case CheckTag:
		return "tag"
	case CheckMapLen:
		return "map len"
	case CheckMapCap:
		return "map cap"
	}
	return fmt.Sprintf("CheckKind(%d)", k)
}

// Check is one generated probe. Every routine of Routines takes a value of
// Type (none for CheckZero) and must return Size bytes equal to the
// argument's bytes at Offset.
type Check struct {
	Kind     CheckKind
	Entry    typetab.Entry
	Field    int
	Routines []string
	Size     int // value size of Entry.Type
	Offset   int
	Width    int
}

// Probe generates layout probes for entries. The jobs lower the probe
// routines; the checks describe what SelfCheck should observe.
func Probe(mod *llvm.Module, entries []typetab.Entry) ([]RoutineJob, []Check, error) {
	pb := &prober{mod: mod, in: mod.Types}
	for _, e := range entries {
		if err := pb.entry(e); err != nil {
			return nil, nil, fmt.Errorf("probe %s: %w", e.Name, err)
		}
	}
	return pb.jobs, pb.checks, nil
}

type prober struct {
	mod    *llvm.Module
	in     *types.Interner
	jobs   []RoutineJob
	checks []Check
}

func (pb *prober) entry(e typetab.Entry) error {
	in := pb.in
	t := e.Type
	size, err := pb.mod.Layout.SizeOf(t)
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	if err := pb.zero(e, size); err != nil {
		return err
	}

	switch in.KindOf(t) {
	case types.KindStruct:
		info, _ := in.StructInfo(in.Base(t))
		for i, f := range info.Fields {
			if err := pb.field(e, size, i, f); err != nil {
				return err
			}
		}

	case types.KindUnion:
		if in.UnionMaybePointer(t) {
			return nil
		}
		l, err := pb.mod.Layout.LayoutOf(t)
		if err != nil {
			return err
		}
		name := "tag." + e.Name
		pb.reader(name, t, in.UnionTagType(t), func(p *llvm.Proc) (llvm.Value, error) {
			return p.DeepFieldEV(p.Param(0), llvm.Selection{llvm.UnionTagIndex})
		})
		pb.checks = append(pb.checks, Check{
			Kind: CheckTag, Entry: e, Routines: []string{name},
			Size: size, Offset: l.TagOffset, Width: l.TagSize,
		})

	case types.KindMap:
		w := pb.mod.Layout.WordSize()
		for _, c := range []struct {
			kind CheckKind
			name string
			read func(*llvm.Proc, llvm.Value) (llvm.Value, error)
			word int
		}{
			{CheckMapLen, "len.", (*llvm.Proc).MapLen, 3},
			{CheckMapCap, "cap.", (*llvm.Proc).MapCap, 4},
		} {
			name := c.name + e.Name
			pb.reader(name, t, in.Builtins().Int, func(p *llvm.Proc) (llvm.Value, error) {
				return c.read(p, p.Param(0))
			})
			pb.checks = append(pb.checks, Check{
				Kind: c.kind, Entry: e, Routines: []string{name},
				Size: size, Offset: c.word * w, Width: w,
			})
		}
	}
	return nil
}

// zero builds zero.<T>: clear a local of T and return its bytes.
func (pb *prober) zero(e typetab.Entry, size int) error {
	n, err := safecast.Conv[uint64](size)
	if err != nil {
		return err
	}
	view := pb.in.Array(pb.in.Builtins().U8, n)
	name := "zero." + e.Name
	pb.jobs = append(pb.jobs, RoutineJob{
		Name: name,
		Sig:  llvm.ProcSig{Results: []llvm.Result{{Type: view}}},
		Build: func(p *llvm.Proc) error {
			local, err := p.Local(e.Type, true)
			if err != nil {
				return err
			}
			raw, err := p.Conv(local, p.Types().Pointer(view))
			if err != nil {
				return err
			}
			v, err := p.Load(raw)
			if err != nil {
				return err
			}
			return p.Return(v)
		},
	})
	pb.checks = append(pb.checks, Check{Kind: CheckZero, Entry: e, Routines: []string{name}, Size: size, Width: size})
	return nil
}

// field builds ev.<T>.<i> and ep.<T>.<i> for one struct field.
func (pb *prober) field(e typetab.Entry, size, i int, f types.Field) error {
	width, err := pb.mod.Layout.SizeOf(f.Type)
	if err != nil {
		return err
	}
	if width == 0 {
		return nil
	}
	off, err := pb.mod.Layout.FieldOffset(pb.in.Base(e.Type), i)
	if err != nil {
		return err
	}
	idx, err := safecast.Conv[int32](i)
	if err != nil {
		return err
	}
	ev := fmt.Sprintf("ev.%s.%d", e.Name, i)
	ep := fmt.Sprintf("ep.%s.%d", e.Name, i)
	pb.reader(ev, e.Type, f.Type, func(p *llvm.Proc) (llvm.Value, error) {
		return p.StructEV(p.Param(0), idx)
	})
	pb.reader(ep, e.Type, f.Type, func(p *llvm.Proc) (llvm.Value, error) {
		addr, err := p.AddressFromLoadOrGenerateLocal(p.Param(0))
		if err != nil {
			return llvm.Value{}, err
		}
		fp, err := p.StructEP(addr, idx)
		if err != nil {
			return llvm.Value{}, err
		}
		return p.Load(fp)
	})
	pb.checks = append(pb.checks, Check{
		Kind: CheckField, Entry: e, Field: i, Routines: []string{ev, ep},
		Size: size, Offset: off, Width: width,
	})
	return nil
}

// reader adds a routine taking one value of param and returning read(p).
func (pb *prober) reader(name string, param, result types.TypeID, read func(*llvm.Proc) (llvm.Value, error)) {
	pb.jobs = append(pb.jobs, RoutineJob{
		Name: name,
		Sig: llvm.ProcSig{
			Params:  []llvm.Param{{Name: "v", Type: param}},
			Results: []llvm.Result{{Type: result}},
		},
		Build: func(p *llvm.Proc) error {
			v, err := read(p)
			if err != nil {
				return err
			}
			return p.Return(v)
		},
	})
}
