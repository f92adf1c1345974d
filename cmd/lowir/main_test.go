package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const table = `
probe = ["[3]u16", "map[string]i64"]

[[type]]
name = "Point"
kind = "struct"
fields = [{ name = "x", type = "i32" }, { name = "next", type = "^Point" }]

[[type]]
name = "Shape"
kind = "union"
variants = ["Point", "f64"]
`

// fixture writes a table and a config next to each other and returns the
// table path and the flags that select the config.
func fixture(t *testing.T) (tablePath string, base []string) {
	t.Helper()
	dir := t.TempDir()
	tablePath = filepath.Join(dir, "shapes.toml")
	if err := os.WriteFile(tablePath, []byte(table), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := filepath.Join(dir, "lowir.toml")
	if err := os.WriteFile(cfg, []byte("[lower]\njobs = 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return tablePath, []string{"--config", cfg, "--color", "off"}
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestLayoutCommand(t *testing.T) {
	path, base := fixture(t)
	out, _, err := run(t, append(base, "layout", path)...)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	for _, want := range []string{"layout for x86_64-linux-gnu", "x@0 next@8", "payload 16, tag u8@16", "[3]u16"} {
		if !strings.Contains(out, want) {
			t.Errorf("layout output lacks %q:\n%s", want, out)
		}
	}
}

func TestProbeCommandWritesIR(t *testing.T) {
	path, base := fixture(t)
	irPath := filepath.Join(t.TempDir(), "probe.ll")
	if _, _, err := run(t, append(base, "probe", "-o", irPath, path)...); err != nil {
		t.Fatalf("probe: %v", err)
	}
	ir, err := os.ReadFile(irPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"zero.Point", "ev.Point.1", "tag.Shape"} {
		if !bytes.Contains(ir, []byte(want)) {
			t.Errorf("IR lacks %s", want)
		}
	}
}

func TestCheckCommandPasses(t *testing.T) {
	path, base := fixture(t)
	out, stderr, err := run(t, append(base, "--timings", "check", path)...)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, stderr)
	}
	if strings.Contains(out, "FAIL") || !strings.Contains(out, "ok") {
		t.Fatalf("unexpected check table:\n%s", out)
	}
	if !strings.Contains(stderr, "lower") {
		t.Fatalf("timings missing from stderr:\n%s", stderr)
	}
}

func TestPackThenLayoutSnapshot(t *testing.T) {
	path, base := fixture(t)
	out, _, err := run(t, append(base, "pack", path)...)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	snap := strings.TrimSuffix(path, ".toml") + ".ttab"
	if !strings.Contains(out, "packed 2 types into "+snap) {
		t.Fatalf("pack output = %q", out)
	}
	out, _, err = run(t, append(base, "layout", snap)...)
	if err != nil {
		t.Fatalf("layout of snapshot: %v", err)
	}
	if !strings.Contains(out, "x@0 next@8") {
		t.Fatalf("snapshot layout lost fields:\n%s", out)
	}
	if _, _, err := run(t, append(base, "pack", snap)...); err == nil {
		t.Fatal("packing a snapshot should fail")
	}
}

func TestVersionJSON(t *testing.T) {
	_, base := fixture(t)
	out, _, err := run(t, append(base, "--target", "wasm32-unknown-unknown", "version", "--format", "json")...)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var payload versionPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("bad json %q: %v", out, err)
	}
	if payload.Tool != "lowir" || payload.Target != "wasm32-unknown-unknown" {
		t.Fatalf("payload = %+v", payload)
	}
	if _, _, err := run(t, append(base, "version", "--format", "yaml")...); err == nil {
		t.Fatal("unknown format accepted")
	}
}

func TestBadFlagsAreRejected(t *testing.T) {
	path, base := fixture(t)
	if _, _, err := run(t, append(base, "--jobs", "0", "layout", path)...); err == nil {
		t.Fatal("--jobs 0 accepted")
	}
	if _, _, err := run(t, append(base, "--trace-level", "loud", "layout", path)...); err == nil {
		t.Fatal("bad trace level accepted")
	}
}
