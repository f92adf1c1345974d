package source

import "testing"

func TestFileTableAddIsIdempotent(t *testing.T) {
	ft := NewFileTable()
	a := ft.Add("main.odin")
	b := ft.Add("util.odin")
	if a == b {
		t.Fatalf("expected distinct ids, got %d and %d", a, b)
	}
	if again := ft.Add("main.odin"); again != a {
		t.Fatalf("expected id %d for known path, got %d", a, again)
	}
	if got, ok := ft.Path(b); !ok || got != "util.odin" {
		t.Fatalf("Path(%d) = %q, %v", b, got, ok)
	}
	if ft.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", ft.Len())
	}
}

func TestFileTableUnknownID(t *testing.T) {
	ft := NewFileTable()
	if _, ok := ft.Path(42); ok {
		t.Fatal("expected unknown id to be reported")
	}
	if got := ft.PathOf(Pos{File: 42, Line: 1, Column: 1}); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}

func TestPosString(t *testing.T) {
	if NoPos.IsValid() {
		t.Fatal("NoPos must be invalid")
	}
	p := Pos{File: 2, Line: 10, Column: 4}
	if p.String() != "2:10:4" {
		t.Fatalf("unexpected pos string %q", p.String())
	}
}
