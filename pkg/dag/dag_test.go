package dag

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func build(t *testing.T, nodes []string, edges [][2]string) *DAG {
	t.Helper()
	g := New()
	for _, id := range nodes {
		if err := g.AddNode(Node{ID: id}); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(Edge{From: e[0], To: e[1]}); err != nil {
			t.Fatalf("AddEdge(%v): %v", e, err)
		}
	}
	return g
}

func TestAddNodeErrors(t *testing.T) {
	g := New()
	if err := g.AddNode(Node{}); err != ErrInvalidNodeID {
		t.Errorf("empty ID: got %v", err)
	}
	g.AddNode(Node{ID: "a"})
	if err := g.AddNode(Node{ID: "a"}); err != ErrDuplicateNodeID {
		t.Errorf("duplicate: got %v", err)
	}
	if err := g.AddEdge(Edge{From: "x", To: "a"}); err != ErrUnknownSourceNode {
		t.Errorf("unknown source: got %v", err)
	}
	if err := g.AddEdge(Edge{From: "a", To: "x"}); err != ErrUnknownTargetNode {
		t.Errorf("unknown target: got %v", err)
	}
}

func TestAddEdgeDeduplicates(t *testing.T) {
	g := build(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"a", "b"}})
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", g.EdgeCount())
	}
	g.RemoveEdge("a", "b")
	if g.EdgeCount() != 0 || len(g.Children("a")) != 0 || len(g.Parents("b")) != 0 {
		t.Error("RemoveEdge left edge behind")
	}
}

func TestNodesInsertionOrder(t *testing.T) {
	g := build(t, []string{"c", "a", "b"}, [][2]string{{"c", "a"}})
	if got := NodeIDs(g.Nodes()); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Errorf("Nodes() = %v", got)
	}
	if got := NodeIDs(g.Sources()); !reflect.DeepEqual(got, []string{"c", "b"}) {
		t.Errorf("Sources() = %v", got)
	}
	if got := NodeIDs(g.Sinks()); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Sinks() = %v", got)
	}
}

func TestClosure(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
		start string
		want  []string
	}{
		{
			name:  "chain",
			nodes: []string{"a", "b", "c"},
			edges: [][2]string{{"a", "b"}, {"b", "c"}},
			start: "a",
			want:  []string{"b", "c"},
		},
		{
			name:  "diamond",
			nodes: []string{"a", "b", "c", "d"},
			edges: [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
			start: "a",
			want:  []string{"b", "c", "d"},
		},
		{
			name:  "leaf",
			nodes: []string{"a", "b"},
			edges: [][2]string{{"a", "b"}},
			start: "b",
			want:  nil,
		},
		{
			name:  "cycle includes start",
			nodes: []string{"a", "b"},
			edges: [][2]string{{"a", "b"}, {"b", "a"}},
			start: "a",
			want:  []string{"b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, tt.nodes, tt.edges)
			if got := g.Closure(tt.start); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Closure(%s) = %v, want %v", tt.start, got, tt.want)
			}
		})
	}
}

func TestClosures(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})
	c := g.Closures()
	if !c["a"]["c"] || !c["a"]["b"] || c["c"]["a"] || len(c["c"]) != 0 {
		t.Errorf("Closures() = %v", c)
	}
}

func TestFindCycles(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
		want  [][]string
	}{
		{
			name:  "acyclic",
			nodes: []string{"a", "b", "c"},
			edges: [][2]string{{"a", "b"}, {"b", "c"}},
			want:  nil,
		},
		{
			name:  "pair",
			nodes: []string{"a", "b"},
			edges: [][2]string{{"a", "b"}, {"b", "a"}},
			want:  [][]string{{"a", "b", "a"}},
		},
		{
			name:  "triangle",
			nodes: []string{"a", "b", "c"},
			edges: [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}},
			want:  [][]string{{"a", "b", "c", "a"}},
		},
		{
			name:  "self loop",
			nodes: []string{"a"},
			edges: [][2]string{{"a", "a"}},
			want:  [][]string{{"a", "a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, tt.nodes, tt.edges)
			if got := FindCycles(g); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindCycles() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToDOT(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "@scope/app", Meta: Metadata{"version": "1.0.0"}})
	g.AddNode(Node{ID: "lib", Meta: Metadata{"private": true}})
	g.AddEdge(Edge{From: "@scope/app", To: "lib"})

	dot := ToDOT(g, DOTOptions{})
	for _, want := range []string{
		"digraph G {",
		`"@scope/app" [label="@scope/app"];`,
		`"lib" [label="lib", style="rounded,filled,dashed", fillcolor=lightgrey];`,
		`"@scope/app" -> "lib";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}

	detailed := ToDOT(g, DOTOptions{Detailed: true})
	if !strings.Contains(detailed, `label="@scope/app\nversion: 1.0.0"`) {
		t.Errorf("detailed label missing:\n%s", detailed)
	}
}

func TestRenderSVG(t *testing.T) {
	g := build(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	svg, err := RenderSVG(context.Background(), ToDOT(g, DOTOptions{}))
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Errorf("output is not SVG: %.80s", svg)
	}
}
