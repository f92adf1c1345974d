package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lowir/internal/driver"
	"lowir/internal/typetab"
	"lowir/internal/ui"
)

func newCheckCmd(a *app) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "check <table.toml|table.ttab>",
		Short: "Lower the layout probes of a table and verify them in the interpreter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := a.loadSet(cmd, args[0])
			if err != nil {
				return a.fail(cmd, err)
			}
			ctx := cmd.Context()
			mod, checks, err := driver.Probes(ctx, set, driver.Options{Jobs: a.cfg.Lower.Jobs, Timer: a.timer})
			if err != nil {
				return a.fail(cmd, err)
			}
			done := a.timer.Track("check")
			rep, err := driver.SelfCheck(ctx, mod, checks, driver.CheckOptions{
				Jobs:      a.cfg.Lower.Jobs,
				StepLimit: a.cfg.Lower.StepLimit,
			})
			done(fmt.Sprintf("%d checks", len(checks)))
			if err != nil {
				return a.fail(cmd, err)
			}

			if err := checkTable(set.Decls, checks, rep, verbose).Render(cmd.OutOrStdout(), a.styled); err != nil {
				return err
			}
			if !rep.OK() {
				for _, f := range rep.Failures {
					fmt.Fprintln(cmd.ErrOrStderr(), f)
				}
				return a.fail(cmd, fmt.Errorf("%d of %d checks failed", len(rep.Failures), rep.Checked))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "one row per check instead of per type")
	return cmd
}

func checkTable(decls []typetab.Entry, checks []driver.Check, rep driver.Report, verbose bool) *ui.Table {
	failed := make(map[string]bool, len(rep.Failures))
	for _, f := range rep.Failures {
		failed[f.Routine] = true
	}
	status := func(c driver.Check) string {
		for _, r := range c.Routines {
			if failed[r] {
				return "FAIL"
			}
		}
		return "ok"
	}

	if verbose {
		tab := &ui.Table{Title: "checks", Headers: []string{"type", "check", "routines", "status"}}
		for _, c := range checks {
			what := c.Kind.String()
			if c.Kind == driver.CheckField {
				what += " " + strconv.Itoa(c.Field)
			}
			tab.Rows = append(tab.Rows, []string{c.Entry.Name, what, fmt.Sprint(c.Routines), status(c)})
		}
		return tab
	}

	type tally struct{ n, bad int }
	per := make(map[string]*tally)
	var order []string
	for _, c := range checks {
		t, ok := per[c.Entry.Name]
		if !ok {
			t = &tally{}
			per[c.Entry.Name] = t
			order = append(order, c.Entry.Name)
		}
		t.n++
		if status(c) != "ok" {
			t.bad++
		}
	}
	tab := &ui.Table{
		Title:   fmt.Sprintf("%d types, %d checks", len(decls), len(checks)),
		Headers: []string{"type", "checks", "status"},
		Right:   []bool{false, true},
	}
	for _, name := range order {
		t := per[name]
		st := "ok"
		if t.bad > 0 {
			st = "FAIL"
		}
		tab.Rows = append(tab.Rows, []string{name, strconv.Itoa(t.n), st})
	}
	return tab
}
