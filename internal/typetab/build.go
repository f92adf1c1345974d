package typetab

import (
	"errors"
	"fmt"

	"lowir/internal/layout"
	"lowir/internal/types"
)

var soaKinds = map[string]types.SoaKind{
	"fixed":   types.SoaFixed,
	"slice":   types.SoaSlice,
	"dynamic": types.SoaDynamic,
}

// Entry is a resolved declaration or probe expression.
type Entry struct {
	Name string
	Type types.TypeID
}

// Set is a table materialised into a fresh interner.
type Set struct {
	Table  *Table
	Types  *types.Interner
	Layout *layout.LayoutEngine

	// Decls holds the declarations in table order, then the probe
	// expressions.
	Decls []Entry
	names map[string]types.TypeID
}

// Lookup finds a declaration by name.
func (s *Set) Lookup(name string) (types.TypeID, bool) {
	id, ok := s.names[name]
	return id, ok
}

// Resolve parses expr against the declarations of the set.
func (s *Set) Resolve(expr string) (types.TypeID, error) {
	return ParseExpr(s.Types, expr, s.Lookup)
}

// Build interns every declaration of tab. Each declaration becomes a named
// type registered before any body is resolved, so bodies may refer to each
// other through pointers. Value cycles are reported by the layout check
// that closes the build.
func Build(tab *Table) (*Set, error) {
	target, err := layout.TargetByTriple(tab.Target)
	if err != nil {
		return nil, err
	}
	in := types.NewInterner()
	s := &Set{
		Table:  tab,
		Types:  in,
		Layout: layout.New(target, in),
		names:  make(map[string]types.TypeID, len(tab.Types)),
	}
	for _, d := range tab.Types {
		if _, ok := s.names[d.Name]; ok {
			return nil, fmt.Errorf("type %s: declared twice", d.Name)
		}
		s.names[d.Name] = in.RegisterNamed(d.Name, types.NoTypeID)
	}

	var errs []error
	for i := range tab.Types {
		d := &tab.Types[i]
		id := s.names[d.Name]
		base, err := s.body(d)
		if err != nil {
			errs = append(errs, fmt.Errorf("type %s: %w", d.Name, err))
			continue
		}
		in.SetNamedBase(id, base)
		s.Decls = append(s.Decls, Entry{Name: d.Name, Type: id})
	}
	for _, expr := range tab.Probe {
		id, err := s.Resolve(expr)
		if err != nil {
			errs = append(errs, fmt.Errorf("probe: %w", err))
			continue
		}
		s.Decls = append(s.Decls, Entry{Name: expr, Type: id})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	for _, e := range s.Decls {
		if t, _ := in.Lookup(in.Base(e.Type)); t.Kind == types.KindNamed {
			errs = append(errs, fmt.Errorf("type %s: alias cycle", e.Name))
			continue
		}
		if _, err := s.Layout.LayoutOf(e.Type); err != nil {
			errs = append(errs, fmt.Errorf("type %s: %w", e.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) body(d *Decl) (types.TypeID, error) {
	in := s.Types
	switch d.Kind {
	case KindAlias:
		base, err := s.Resolve(d.Base)
		if err != nil {
			return types.NoTypeID, err
		}
		if base == s.names[d.Name] {
			return types.NoTypeID, errors.New("alias of itself")
		}
		return base, nil

	case KindUnion:
		info := types.UnionInfo{NoNil: d.NoNil, CustomAlign: d.Align}
		for _, v := range d.Variants {
			id, err := s.Resolve(v)
			if err != nil {
				return types.NoTypeID, err
			}
			info.Variants = append(info.Variants, id)
		}
		return in.RegisterUnion(info), nil
	}

	info := types.StructInfo{
		CustomAlign: d.Align,
		Packed:      d.Packed,
		RawUnion:    d.Kind == KindRawUnion,
	}
	for _, f := range d.Fields {
		id, err := s.Resolve(f.Type)
		if err != nil {
			return types.NoTypeID, fmt.Errorf("field %s: %w", f.Name, err)
		}
		info.Fields = append(info.Fields, types.Field{Name: f.Name, Type: id})
	}
	if d.SoaKind != "" {
		elem, err := s.Resolve(d.SoaElem)
		if err != nil {
			return types.NoTypeID, fmt.Errorf("soa_elem: %w", err)
		}
		info.Soa = soaKinds[d.SoaKind]
		info.SoaElem = elem
		info.SoaCount = d.SoaCount
	}
	return in.RegisterStruct(info), nil
}
