package graph_test

import (
	"testing"

	"github.com/jacentio/tether/graph"
)

func TestParseSelector_RoundTrip(t *testing.T) {
	sel := graph.ParseSelector("owner.ref")
	if sel.String() != "owner.ref" {
		t.Errorf("expected 'owner.ref', got %q", sel.String())
	}
	if sel.IsZero() {
		t.Error("expected non-zero selector")
	}
	if !graph.ParseSelector("").IsZero() {
		t.Error("expected empty path to parse to zero selector")
	}
}

func TestSelector_Matches(t *testing.T) {
	sel := graph.ParseSelector("a.b")

	tests := []struct {
		name string
		path []string
		want bool
	}{
		{"exact", []string{"a", "b"}, true},
		{"shorter", []string{"a"}, false},
		{"longer", []string{"a", "b", "c"}, false},
		{"different", []string{"a", "x"}, false},
		{"empty", nil, false},
		{"dotted component", []string{"a.b"}, true},
		{"dotted mismatch", []string{"a.x"}, false},
		{"dotted too long", []string{"a.b", "c"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sel.Matches(tt.path); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}

	// Filter keys may address nested fields with one dotted component.
	deep := graph.ParseSelector("a.b.c")
	for _, path := range [][]string{{"a.b.c"}, {"a", "b.c"}, {"a.b", "c"}} {
		if !deep.Matches(path) {
			t.Errorf("expected a.b.c to match %v", path)
		}
	}
}

func TestSelector_Get(t *testing.T) {
	doc := map[string]any{
		"a": map[string]any{"b": "value", "n": nil},
		"s": "scalar",
	}

	if v, ok := graph.ParseSelector("a.b").Get(doc); !ok || v != "value" {
		t.Errorf("expected ('value', true), got (%v, %v)", v, ok)
	}
	if v, ok := graph.ParseSelector("a.n").Get(doc); !ok || v != nil {
		t.Errorf("expected (nil, true) for explicit null, got (%v, %v)", v, ok)
	}
	if _, ok := graph.ParseSelector("a.missing").Get(doc); ok {
		t.Error("expected missing leaf to report false")
	}
	if _, ok := graph.ParseSelector("s.b").Get(doc); ok {
		t.Error("expected non-map intermediate to report false")
	}
}
