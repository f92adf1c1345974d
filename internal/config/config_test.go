package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := write(t, t.TempDir(), "[target]\ntriple = \"wasm32\"\n\n[trace]\nlevel = \"detail\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if cfg.Target.Triple != "wasm32" || cfg.Trace.Level != "detail" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.Lower != def.Lower || cfg.Trace.Ring != def.Trace.Ring || cfg.UI != def.UI {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Path != path {
		t.Fatalf("path %q", cfg.Path)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "[lower]\nworkers = 3\n",
		"empty triple": "[target]\ntriple = \"\"\n",
		"bad triple":   "[target]\ntriple = \"z80\"\n",
		"zero jobs":    "[lower]\njobs = 0\n",
		"bad level":    "[trace]\nlevel = \"chatty\"\n",
		"bad color":    "[ui]\ncolor = \"always\"\n",
		"not toml":     "[lower\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := write(t, t.TempDir(), body)
			if _, err := Load(path); err == nil {
				t.Fatal("accepted")
			} else if !strings.Contains(err.Error(), path) {
				t.Fatalf("error does not name the file: %v", err)
			}
		})
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	write(t, root, "[lower]\njobs = 3\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, err := Discover(nested)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Lower.Jobs != 3 {
		t.Fatalf("jobs = %d", cfg.Lower.Jobs)
	}
}
