package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestSpansNestThroughContext(t *testing.T) {
	ring := NewRing(16, LevelDetail)
	ctx := WithTracer(context.Background(), ring)

	ctx, pass := Start(ctx, ScopePass, "lower")
	rctx, routine := Start(ctx, ScopeRoutine, "routine:f")
	Point(rctx, ScopeRoutine, "note", "x")
	routine.Set("blocks", "3").End("")
	pass.End("ok")

	evs := ring.Snapshot()
	if len(evs) != 5 {
		t.Fatalf("got %d events, want 5", len(evs))
	}
	if evs[1].ParentID != evs[0].SpanID || evs[2].ParentID != evs[1].SpanID {
		t.Fatalf("parents not propagated: %+v", evs)
	}
	if evs[3].Attrs["blocks"] != "3" || evs[3].Kind != KindEnd {
		t.Fatalf("end event lost attrs: %+v", evs[3])
	}
	for i, ev := range evs {
		if ev.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, ev.Seq)
		}
	}
}

func TestFilteredScopeGivesInertSpan(t *testing.T) {
	ring := NewRing(4, LevelPhase)
	ctx := WithTracer(context.Background(), ring)
	got, s := Start(ctx, ScopeRoutine, "routine:f")
	if s != nil || got != ctx {
		t.Fatal("routine span emitted at phase level")
	}
	if d := s.Set("k", "v").End(""); d != 0 {
		t.Fatalf("nil span reported %v", d)
	}
	if n := len(ring.Snapshot()); n != 0 {
		t.Fatalf("ring holds %d events", n)
	}
}

func TestRingWrapsOldestFirst(t *testing.T) {
	ring := NewRing(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ring.Emit(&Event{Kind: KindPoint, Scope: ScopeNode, Name: name})
	}
	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	if strings.Join(names, "") != "cde" {
		t.Fatalf("snapshot %v", names)
	}
}

func TestNewBuildsSinksByLevel(t *testing.T) {
	tr, ring, err := New(Config{Level: LevelOff, Ring: 8})
	if err != nil || tr != Nop || ring != nil {
		t.Fatalf("off: %v %v %v", tr, ring, err)
	}

	var buf bytes.Buffer
	tr, ring, err = New(Config{Level: LevelError, Output: &buf, Ring: 8})
	if err != nil || ring == nil {
		t.Fatalf("error level: %v %v", ring, err)
	}
	ctx := WithTracer(context.Background(), tr)
	_, s := Start(ctx, ScopePass, "lower")
	s.End("")
	if buf.Len() != 0 {
		t.Fatalf("error level streamed %q", buf.String())
	}
	if len(ring.Snapshot()) != 2 {
		t.Fatal("ring missed events")
	}

	buf.Reset()
	tr, _, err = New(Config{Level: LevelPhase, Output: &buf, Format: FormatNDJSON, Ring: 8})
	if err != nil {
		t.Fatal(err)
	}
	ctx = WithTracer(context.Background(), tr)
	Point(ctx, ScopePass, "probe", "12 routines")
	var ev map[string]any
	if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
		t.Fatalf("not ndjson: %q: %v", buf.String(), err)
	}
	if ev["name"] != "probe" || ev["kind"] != "point" || ev["scope"] != "pass" {
		t.Fatalf("unexpected event %v", ev)
	}
}

func TestTextFormat(t *testing.T) {
	line := string(FormatEvent(&Event{
		Seq:      7,
		Kind:     KindPoint,
		ParentID: 1,
		Name:     "mismatch",
		Detail:   "ev.Point.1",
		Attrs:    map[string]string{"b": "2", "a": "1"},
	}, FormatText))
	want := "#7        • mismatch (ev.Point.1) {a=1, b=2}\n"
	if line != want {
		t.Fatalf("got %q want %q", line, want)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"": LevelOff, "PHASE": LevelPhase, "debug": LevelDebug} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("accepted unknown level")
	}
}
