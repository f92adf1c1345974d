// Package typetab loads type graphs for the lowering layer from outside the
// compiler: human-written TOML tables and their packed msgpack snapshots.
//
// A table lists nominal declarations in order. Field, variant and base types
// are written as type expressions (see ParseExpr) and may refer to any
// declaration of the table, including later ones.
//
//	target = "x86_64-linux-gnu"
//	probe  = ["[5]u16", "map[string]i32"]
//
//	[[type]]
//	name   = "Point"
//	kind   = "struct"
//	align  = 16
//	fields = [{ name = "x", type = "i32" }, { name = "next", type = "^Point" }]
package typetab

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Decl kinds.
const (
	KindStruct   = "struct"
	KindRawUnion = "raw_union"
	KindUnion    = "union"
	KindAlias    = "alias"
)

// Table is the decoded form of a type table.
type Table struct {
	Target string   `toml:"target" msgpack:"target"`
	Probe  []string `toml:"probe" msgpack:"probe"`
	Types  []Decl   `toml:"type" msgpack:"types"`
}

// Decl is one named type.
type Decl struct {
	Name string `toml:"name" msgpack:"name"`
	Kind string `toml:"kind" msgpack:"kind"`

	Fields []Field `toml:"fields" msgpack:"fields,omitempty"` // struct, raw_union
	Packed bool    `toml:"packed" msgpack:"packed,omitempty"`
	Align  int     `toml:"align" msgpack:"align,omitempty"`

	SoaKind  string `toml:"soa" msgpack:"soa,omitempty"`
	SoaElem  string `toml:"soa_elem" msgpack:"soa_elem,omitempty"`
	SoaCount int64  `toml:"soa_count" msgpack:"soa_count,omitempty"`

	Variants []string `toml:"variants" msgpack:"variants,omitempty"` // union
	NoNil    bool     `toml:"no_nil" msgpack:"no_nil,omitempty"`

	Base string `toml:"base" msgpack:"base,omitempty"` // alias
}

// Field is a struct field.
type Field struct {
	Name string `toml:"name" msgpack:"name"`
	Type string `toml:"type" msgpack:"type"`
}

// Decode reads a TOML table from r. name is used in error messages only.
func Decode(r io.Reader, name string) (*Table, error) {
	var tab Table
	meta, err := toml.NewDecoder(r).Decode(&tab)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", name, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", name, strings.Join(keys, ", "))
	}
	if !meta.IsDefined("type") {
		return nil, fmt.Errorf("%s: no [[type]] declarations", name)
	}
	if err := tab.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &tab, nil
}

// Load reads a table from path: a .ttab snapshot or a TOML table.
func Load(path string) (*Table, error) {
	if filepath.Ext(path) == SnapshotExt {
		snap, err := ReadSnapshot(path)
		if err != nil {
			return nil, err
		}
		return &snap.Table, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, path)
}

func (t *Table) validate() error {
	var errs []error
	seen := make(map[string]bool, len(t.Types))
	for i, d := range t.Types {
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Errorf("type #%d: missing name", i+1))
			continue
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("type %s: declared twice", d.Name))
		}
		seen[d.Name] = true
		if err := d.validate(); err != nil {
			errs = append(errs, fmt.Errorf("type %s: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Decl) validate() error {
	switch d.Kind {
	case KindStruct, KindRawUnion:
		if d.Packed && d.Align != 0 {
			return errors.New("packed and align are exclusive")
		}
		if d.SoaKind != "" {
			if d.Kind == KindRawUnion {
				return errors.New("raw unions have no struct-of-arrays form")
			}
			if _, ok := soaKinds[d.SoaKind]; !ok {
				return fmt.Errorf("unknown soa kind %q", d.SoaKind)
			}
			if d.SoaElem == "" {
				return errors.New("soa needs soa_elem")
			}
		}
	case KindUnion:
		if len(d.Variants) == 0 {
			return errors.New("union without variants")
		}
	case KindAlias:
		if d.Base == "" {
			return errors.New("alias without base")
		}
	case "":
		return errors.New("missing kind")
	default:
		return fmt.Errorf("unknown kind %q", d.Kind)
	}
	if d.Align < 0 || d.Align&(d.Align-1) != 0 {
		return fmt.Errorf("align %d is not a power of two", d.Align)
	}
	return nil
}
