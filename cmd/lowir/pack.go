package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lowir/internal/typetab"
)

func newPackCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pack <table.toml>",
		Short: "Validate a type table and write it as a binary snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			if filepath.Ext(src) == typetab.SnapshotExt {
				return a.fail(cmd, fmt.Errorf("%s is already a snapshot", src))
			}
			if out == "" {
				out = strings.TrimSuffix(src, filepath.Ext(src)) + typetab.SnapshotExt
			}
			set, err := a.loadSet(cmd, src)
			if err != nil {
				return a.fail(cmd, err)
			}
			done := a.timer.Track("pack")
			err = typetab.WriteSnapshot(out, src, set.Table)
			done(out)
			if err != nil {
				return a.fail(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "packed %d types into %s\n", len(set.Table.Types), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "snapshot path (default: input with "+typetab.SnapshotExt+")")
	return cmd
}
