package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lowir/internal/layout"
	"lowir/internal/types"
	"lowir/internal/typetab"
	"lowir/internal/ui"
)

func newLayoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "layout <table.toml|table.ttab>",
		Short: "Print size, alignment and field offsets of every type in a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := a.loadSet(cmd, args[0])
			if err != nil {
				return a.fail(cmd, err)
			}
			tab, err := layoutTable(set)
			if err != nil {
				return a.fail(cmd, err)
			}
			return tab.Render(cmd.OutOrStdout(), a.styled)
		},
	}
}

func layoutTable(set *typetab.Set) (*ui.Table, error) {
	tab := &ui.Table{
		Title:    fmt.Sprintf("layout for %s", set.Layout.Target.Triple),
		Headers:  []string{"type", "kind", "size", "align", "layout"},
		Right:    []bool{false, false, true, true},
		MaxWidth: 48,
	}
	for _, e := range set.Decls {
		l, err := set.Layout.LayoutOf(e.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name, err)
		}
		tab.Rows = append(tab.Rows, []string{
			e.Name,
			set.Types.KindOf(e.Type).String(),
			strconv.Itoa(l.Size),
			strconv.Itoa(l.Align),
			describe(set.Types, e.Type, l),
		})
	}
	return tab, nil
}

// describe summarises where the parts of a value live.
func describe(in *types.Interner, t types.TypeID, l layout.TypeLayout) string {
	switch in.KindOf(t) {
	case types.KindStruct:
		info, _ := in.StructInfo(in.Base(t))
		parts := make([]string, len(info.Fields))
		for i, f := range info.Fields {
			parts[i] = fmt.Sprintf("%s@%d", f.Name, l.FieldOffsets[i])
		}
		return strings.Join(parts, " ")
	case types.KindUnion:
		if in.UnionMaybePointer(t) {
			return "nil-able pointer"
		}
		return fmt.Sprintf("payload %d, tag %s@%d", l.PayloadSize, in.TypeString(in.UnionTagType(t)), l.TagOffset)
	case types.KindTuple:
		parts := make([]string, len(l.FieldOffsets))
		for i, off := range l.FieldOffsets {
			parts[i] = "@" + strconv.Itoa(off)
		}
		return strings.Join(parts, " ")
	}
	if t != in.Base(t) {
		return in.TypeString(in.Base(t))
	}
	return ""
}
