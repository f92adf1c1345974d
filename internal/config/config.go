// Package config loads lowir.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"lowir/internal/layout"
	"lowir/internal/trace"
)

// FileName is the name searched for by Find.
const FileName = "lowir.toml"

// Config is the resolved configuration. Zero fields of a loaded file keep
// their defaults.
type Config struct {
	Path string `toml:"-"` // empty when no file was loaded

	Target TargetConfig `toml:"target"`
	Lower  LowerConfig  `toml:"lower"`
	Trace  TraceConfig  `toml:"trace"`
	UI     UIConfig     `toml:"ui"`
}

type TargetConfig struct {
	Triple string `toml:"triple"`
}

type LowerConfig struct {
	Jobs      int `toml:"jobs"`       // routine lowering workers
	StepLimit int `toml:"step_limit"` // interpreter steps per self-check routine
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
	Format string `toml:"format"`
	Ring   int    `toml:"ring"`
}

type UIConfig struct {
	Color string `toml:"color"` // auto|on|off
}

// Default returns the configuration used without a file.
func Default() Config {
	return Config{
		Target: TargetConfig{Triple: layout.X86_64LinuxGNU().Triple},
		Lower:  LowerConfig{Jobs: runtime.GOMAXPROCS(0), StepLimit: 1 << 20},
		Trace:  TraceConfig{Level: "off", Output: "-", Format: "auto", Ring: 4096},
		UI:     UIConfig{Color: "auto"},
	}
}

// Find walks up from dir looking for lowir.toml.
func Find(dir string) (string, bool, error) {
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Load reads path over the defaults. Keys the file leaves out keep their
// default values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("target", "triple") && strings.TrimSpace(cfg.Target.Triple) == "" {
		return Config{}, fmt.Errorf("%s: empty [target].triple", path)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest lowir.toml above dir, or the defaults.
func Discover(dir string) (Config, error) {
	path, ok, err := Find(dir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks values that flags may also have set.
func (c *Config) Validate() error {
	var errs []error
	if _, err := layout.TargetByTriple(c.Target.Triple); err != nil {
		errs = append(errs, err)
	}
	if c.Lower.Jobs < 1 {
		errs = append(errs, fmt.Errorf("[lower].jobs must be positive, got %d", c.Lower.Jobs))
	}
	if c.Lower.StepLimit <= 0 {
		errs = append(errs, errors.New("[lower].step_limit must be positive"))
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		errs = append(errs, err)
	}
	switch c.UI.Color {
	case "auto", "on", "off":
	default:
		errs = append(errs, fmt.Errorf("[ui].color must be auto|on|off, got %q", c.UI.Color))
	}
	return errors.Join(errs...)
}

// Tracer builds the tracer the [trace] table describes.
func (c *Config) Tracer() (trace.Tracer, *trace.Ring, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return nil, nil, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return nil, nil, err
	}
	return trace.New(trace.Config{
		Level:  level,
		Format: format,
		Path:   c.Trace.Output,
		Ring:   c.Trace.Ring,
	})
}
