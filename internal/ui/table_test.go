package ui

import (
	"strings"
	"testing"
)

func TestRenderPlain(t *testing.T) {
	tab := &Table{
		Title:   "layout",
		Headers: []string{"type", "size", "status"},
		Rows: [][]string{
			{"Point", "24", "ok"},
			{"[5]u16", "10", "FAIL"},
		},
		Right: []bool{false, true},
	}
	var sb strings.Builder
	if err := tab.Render(&sb, false); err != nil {
		t.Fatal(err)
	}
	want := "layout\n" +
		"type    size  status\n" +
		"Point     24  ok\n" +
		"[5]u16    10  FAIL\n"
	if sb.String() != want {
		t.Fatalf("got\n%s\nwant\n%s", sb.String(), want)
	}
}

func TestRenderCapsWideCells(t *testing.T) {
	tab := &Table{
		Headers:  []string{"type", "size"},
		Rows:     [][]string{{"map[string]map[string][dynamic]i32", "56"}},
		MaxWidth: 12,
	}
	var sb strings.Builder
	if err := tab.Render(&sb, false); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(sb.String(), "\n")
	if lines[1] != "map[strin...  56" {
		t.Fatalf("row %q", lines[1])
	}
}

func TestTruncateCountsDisplayWidth(t *testing.T) {
	if got := Truncate("日本語テキスト", 8); got != "日本..." {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
}
