package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestColoredWithoutColorIsPlain(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	if got := Colored(); got != Version {
		t.Fatalf("Colored() = %q, want %q", got, Version)
	}
}

func TestBannerIncludesOptionalFields(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	origCommit, origDate := GitCommit, BuildDate
	defer func() {
		color.NoColor = prev
		GitCommit, BuildDate = origCommit, origDate
	}()

	GitCommit = "abc123"
	BuildDate = "2026-01-15T10:30:00Z"
	got := Banner("x86_64-linux-gnu")
	for _, want := range []string{"lowir " + Version, "(abc123)", "built 2026-01-15", "target x86_64-linux-gnu"} {
		if !strings.Contains(got, want) {
			t.Fatalf("banner %q lacks %q", got, want)
		}
	}
}
