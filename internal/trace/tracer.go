package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Tracer receives events. Implementations must be safe for concurrent use.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
}

type nop struct{}

func (nop) Emit(*Event)  {}
func (nop) Flush() error { return nil }
func (nop) Close() error { return nil }
func (nop) Level() Level { return LevelOff }

// Nop drops everything.
var Nop Tracer = nop{}

// Config selects the sinks New builds.
type Config struct {
	Level  Level
	Format Format    // FormatAuto picks by the extension of Path
	Output io.Writer // stream destination; takes precedence over Path
	Path   string    // "-" or empty is stderr
	Ring   int       // events kept in memory; 0 disables the ring
}

// New builds the tracer described by cfg. It returns the ring separately
// so callers can dump it when a run fails.
func New(cfg Config) (Tracer, *Ring, error) {
	if cfg.Level == LevelOff {
		return Nop, nil, nil
	}
	var sinks []Tracer
	var ring *Ring
	if cfg.Ring > 0 {
		ring = NewRing(cfg.Ring, cfg.Level)
		sinks = append(sinks, ring)
	}
	if cfg.Level.Streams() {
		w, err := openOutput(cfg)
		if err != nil {
			return nil, nil, err
		}
		format := cfg.Format
		if format == FormatAuto {
			format = FormatText
			if strings.HasSuffix(cfg.Path, ".ndjson") || strings.HasSuffix(cfg.Path, ".jsonl") {
				format = FormatNDJSON
			}
		}
		sinks = append(sinks, NewStream(w, cfg.Level, format))
	}
	switch len(sinks) {
	case 0:
		return Nop, nil, nil
	case 1:
		return sinks[0], ring, nil
	}
	return tee{level: cfg.Level, sinks: sinks}, ring, nil
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.Path == "" || cfg.Path == "-" {
		return nopCloser{os.Stderr}, nil
	}
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open trace output: %w", err)
	}
	return f, nil
}

// nopCloser keeps Close from closing stderr.
type nopCloser struct{ io.Writer }

// tee fans events out to several sinks. Each gets its own copy because
// sinks stamp sequence numbers.
type tee struct {
	level Level
	sinks []Tracer
}

func (t tee) Emit(ev *Event) {
	for _, s := range t.sinks {
		cp := *ev
		s.Emit(&cp)
	}
}

func (t tee) Flush() error {
	var errs []error
	for _, s := range t.sinks {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

func (t tee) Close() error {
	var errs []error
	for _, s := range t.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

func (t tee) Level() Level { return t.level }
