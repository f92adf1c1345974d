package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lowir/internal/config"
	"lowir/internal/observ"
	"lowir/internal/trace"
	"lowir/internal/typetab"
	"lowir/internal/version"
)

// app is the state the persistent pre-run prepares for every command.
type app struct {
	cfg    config.Config
	tracer trace.Tracer
	ring   *trace.Ring
	timer  *observ.Timer
	styled bool

	endDriver *trace.Span
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "lowir",
		Short:         "Lower typed values to LLVM IR and check the result",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to lowir.toml (default: nearest lowir.toml above the working directory)")
	flags.String("color", "", "colorize output (auto|on|off)")
	flags.String("target", "", "target triple")
	flags.Int("jobs", 0, "parallel lowering workers")
	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-format", "", "trace format (auto|text|ndjson)")
	flags.Bool("timings", false, "print phase timings")

	root.AddCommand(
		newLayoutCmd(a),
		newProbeCmd(a),
		newCheckCmd(a),
		newPackCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	var err error
	if path, _ := flags.GetString("config"); path != "" {
		a.cfg, err = config.Load(path)
	} else {
		a.cfg, err = config.Discover(".")
	}
	if err != nil {
		return err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"color", &a.cfg.UI.Color},
		{"target", &a.cfg.Target.Triple},
		{"trace", &a.cfg.Trace.Output},
		{"trace-level", &a.cfg.Trace.Level},
		{"trace-format", &a.cfg.Trace.Format},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			*o.dst, _ = flags.GetString(o.flag)
		}
	}
	if flags.Changed("jobs") {
		a.cfg.Lower.Jobs, _ = flags.GetInt("jobs")
	}
	// --trace alone turns tracing on at phase level.
	if flags.Changed("trace") && !flags.Changed("trace-level") && a.cfg.Trace.Level == "off" {
		a.cfg.Trace.Level = "phase"
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	switch a.cfg.UI.Color {
	case "on":
		a.styled = true
	case "off":
		a.styled = false
	default:
		a.styled = isTerminal(os.Stdout)
	}
	color.NoColor = !a.styled

	a.tracer, a.ring, err = a.cfg.Tracer()
	if err != nil {
		return err
	}
	if timings, _ := flags.GetBool("timings"); timings {
		a.timer = observ.NewTimer()
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = trace.WithTracer(ctx, a.tracer)
	ctx, span := trace.Start(ctx, trace.ScopeDriver, cmd.CommandPath())
	a.endDriver = span
	cmd.SetContext(ctx)
	return nil
}

func (a *app) teardown(cmd *cobra.Command) error {
	a.endDriver.End("")
	if a.timer != nil {
		fmt.Fprint(cmd.ErrOrStderr(), a.timer.Summary())
	}
	if a.tracer != nil {
		return a.tracer.Close()
	}
	return nil
}

// fail dumps the trace ring before returning err, so a failed run still
// shows what led up to it.
func (a *app) fail(cmd *cobra.Command, err error) error {
	if a.ring != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "recent trace events:")
		if dumpErr := a.ring.Dump(cmd.ErrOrStderr(), trace.FormatText); dumpErr != nil {
			return fmt.Errorf("%w (trace dump: %v)", err, dumpErr)
		}
	}
	if a.tracer != nil {
		_ = a.tracer.Close() //nolint:errcheck // the run already failed
		a.tracer = nil
	}
	return err
}

// loadSet reads and builds the table at path for the configured target.
// A table naming its own target keeps it unless --target was given.
func (a *app) loadSet(cmd *cobra.Command, path string) (*typetab.Set, error) {
	done := a.timer.Track("load")
	defer done(path)
	tab, err := typetab.Load(path)
	if err != nil {
		return nil, err
	}
	if tab.Target == "" || cmd.Root().PersistentFlags().Changed("target") {
		tab.Target = a.cfg.Target.Triple
	}
	return typetab.Build(tab)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
